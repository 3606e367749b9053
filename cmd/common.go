package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"mrzscan/internal/config"
	"mrzscan/internal/mrz"
	"mrzscan/internal/ocr"
	"mrzscan/internal/session"
	"mrzscan/internal/sheets"
)

// loadConfig reads the environment configuration. An invalid value fails the
// command instead of replacing the whole configuration with defaults.
func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func sessionOptions(cfg *config.Config, parseFields bool) session.Options {
	return session.Options{
		Rules:       cfg.Rules(),
		Extractor:   cfg.Extractor(),
		ParseFields: parseFields,
	}
}

// createContextWithTimeout creates a context with timeout and signal handling.
// A zero timeout means no deadline.
func createContextWithTimeout(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// openInput opens path for reading; "" and "-" mean stdin.
func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("input file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	return f, nil
}

// eventWriter writes one JSON value per line.
type eventWriter struct {
	enc *json.Encoder
}

func newEventWriter(w io.Writer, pretty bool) *eventWriter {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &eventWriter{enc: enc}
}

func (w *eventWriter) Write(v interface{}) error {
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// record converts a result event into a sheet record.
func record(source string, event session.Event) sheets.Record {
	rec := sheets.Record{
		ScannedAt: time.Now(),
		Source:    source,
		MRZ:       event.MRZ,
		Fields:    event.Fields,
	}
	if rec.Fields == nil {
		if fields, err := mrz.Parse(event.MRZ); err == nil {
			rec.Fields = fields
		}
	}
	return rec
}

// writeRecords appends records to the configured Google Sheet.
func writeRecords(ctx context.Context, cfg *config.Config, records []sheets.Record, log zerolog.Logger) error {
	if len(records) == 0 {
		log.Info().Msg("No scan results to write to Google Sheet")
		return nil
	}
	if cfg.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL environment variable is required")
	}

	sheetsService, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
	if err != nil {
		return fmt.Errorf("failed to create Google Sheets service: %w", err)
	}

	if err := sheetsService.AppendRecords(ctx, records, cfg.GoogleSheetWorksheet); err != nil {
		return fmt.Errorf("failed to write to Google Sheet: %w", err)
	}

	log.Info().
		Str("sheet", cfg.GoogleSheetWorksheet).
		Int("rows", len(records)).
		Msg("Scan results written to Google Sheet")
	return nil
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing --timeout or using fewer images")
	case errors.Is(err, context.Canceled), errors.Is(err, ocr.ErrContextCanceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrEngineNotEnabled):
		return fmt.Errorf("the tesseract engine is not part of this build. Rebuild with -tags tesseract or set OCR_ENGINE=vision")
	case errors.Is(err, ocr.ErrImageTooLarge):
		return fmt.Errorf("image is too large (maximum 20MB). Try a smaller capture resolution")
	case errors.Is(err, ocr.ErrEmptyImage):
		return fmt.Errorf("image file is empty")
	case errors.Is(err, ocr.ErrInvalidConfiguration):
		return fmt.Errorf("OCR engine is not configured: %w", err)
	case errors.Is(err, ocr.ErrMissingCredentials),
		strings.Contains(errStr, "Unauthenticated"),
		strings.Contains(errStr, "invalid_grant"),
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return fmt.Errorf("Google Cloud authentication failed. Please check your credentials:\n\n" +
			"1. Set GOOGLE_APPLICATION_CREDENTIALS to your service account JSON file path:\n" +
			"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
			"2. Or set GOOGLE_CREDENTIALS with inline JSON:\n" +
			"   export GOOGLE_CREDENTIALS='{\"type\":\"service_account\",\"project_id\":\"your-project\",...}'\n\n" +
			"3. If using Application Default Credentials, run:\n" +
			"   gcloud auth application-default login\n\n" +
			"Original error: %v", err)
	case strings.Contains(errStr, "PERMISSION_DENIED"),
		strings.Contains(errStr, "permission"):
		return fmt.Errorf("permission denied. Please ensure your Google Cloud service account may use the selected OCR API")
	case strings.Contains(errStr, "QUOTA_EXCEEDED"),
		strings.Contains(errStr, "quota"):
		return fmt.Errorf("Google Cloud API quota exceeded. Check your project quotas in the Google Cloud Console")
	case errors.Is(err, ocr.ErrOCRFailed):
		return fmt.Errorf("OCR processing failed. This may be due to network issues, API quota limits, or service unavailability: %w", err)
	default:
		return fmt.Errorf("OCR processing failed: %w", err)
	}
}
