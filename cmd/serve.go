package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mrzscan/internal/api"
	"mrzscan/internal/logger"
	"mrzscan/internal/session"
	"mrzscan/internal/sheets"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve scan sessions over HTTP",
	Long: `Start an HTTP server that runs one scan session per client.

Routes:
  POST   /sessions               create a session, returns {"id": "..."}
  POST   /sessions/{id}/frames   submit one OCR frame, returns the scan event
  POST   /sessions/{id}/reset    clear the collected lines
  GET    /sessions/{id}          session statistics
  DELETE /sessions/{id}          end the session
  GET    /health                 liveness and session count

A frame posted while the previous frame of the same session is still being
processed is dropped and answered with {"type":"dropped"}. Add ?wait=true to
queue it instead. Sessions without frames for SESSION_IDLE_TIMEOUT are closed.`,
	Example: `  # Listen on the default address (HTTP_ADDR or :8080)
  mrzscan serve

  # Log every assembled MRZ to Google Sheets
  mrzscan serve --addr :9090 --sheet`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: HTTP_ADDR)")
	serveCmd.Flags().Bool("parse", true, "Attach parsed MRZ fields to results")
	serveCmd.Flags().Bool("sheet", false, "Append results to the Google Sheet in GOOGLE_SHEET_URL")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	addr, _ := cmd.Flags().GetString("addr")
	parseFields, _ := cmd.Flags().GetBool("parse")
	toSheet, _ := cmd.Flags().GetBool("sheet")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.HTTPAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var onResult api.ResultHandler
	if toSheet {
		if cfg.GoogleSheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL environment variable is required")
		}
		sheetsService, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
		if err != nil {
			return fmt.Errorf("failed to create Google Sheets service: %w", err)
		}
		sink := newSheetSink(sheetsService, cfg.GoogleSheetWorksheet, sheetSinkBuffer, log)
		defer sink.Close()
		onResult = sink.Handle
	}

	manager := session.NewManager(sessionOptions(cfg, parseFields), cfg.SessionIdleTimeout)
	defer manager.CloseAll()
	go manager.Run(ctx, sweepInterval(cfg.SessionIdleTimeout))

	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewServer(manager, onResult).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Dur("idle_timeout", cfg.SessionIdleTimeout).
			Bool("sheet", toSheet).
			Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return nil
}

func sweepInterval(idle time.Duration) time.Duration {
	interval := idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	return interval
}

const (
	sheetSinkBuffer   = 64
	sheetWriteTimeout = 30 * time.Second
)

type recordAppender interface {
	AppendRecords(ctx context.Context, records []sheets.Record, sheetName string) error
}

// sheetSink appends scan results to the scan log from a single writer
// goroutine, so the worksheet and its header row are created only once.
// Close waits until every accepted record has been written.
type sheetSink struct {
	appender  recordAppender
	sheetName string
	log       zerolog.Logger

	records chan sheets.Record
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

func newSheetSink(appender recordAppender, sheetName string, buffer int, log zerolog.Logger) *sheetSink {
	s := &sheetSink{
		appender:  appender,
		sheetName: sheetName,
		log:       log,
		records:   make(chan sheets.Record, buffer),
		done:      make(chan struct{}),
	}
	go s.run()
	return s
}

// Handle queues a result event. It blocks while the buffer is full.
func (s *sheetSink) Handle(sessionID string, event session.Event) {
	rec := record(sessionID, event)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Warn().Str("session_id", sessionID).Msg("Scan log closed, result not written")
		return
	}
	s.records <- rec
}

// Close stops accepting records and waits for pending writes.
func (s *sheetSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.records)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *sheetSink) run() {
	defer close(s.done)

	for rec := range s.records {
		batch := []sheets.Record{rec}
	drain:
		for {
			select {
			case next, ok := <-s.records:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), sheetWriteTimeout)
		err := s.appender.AppendRecords(ctx, batch, s.sheetName)
		cancel()
		if err != nil {
			s.log.Error().Err(err).Int("rows", len(batch)).Msg("Failed to write scan results to Google Sheet")
			continue
		}
		s.log.Debug().Int("rows", len(batch)).Msg("Scan results written to Google Sheet")
	}
}
