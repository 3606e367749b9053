package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mrzscan/internal/config"
	"mrzscan/internal/logger"
	"mrzscan/internal/mrz"
	"mrzscan/internal/ocr"
	"mrzscan/internal/session"
	"mrzscan/internal/sheets"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize [image...]",
	Short: "Run OCR on camera images and assemble their MRZ",
	Long: `Run each image through the configured OCR engine and feed the recognized
frames, in argument order, to one scan session.

Images are recognized in parallel (OCR_WORKERS at a time) but always reach the
session in the order given, so a burst of captures behaves like a live camera
feed.

Engines (OCR_ENGINE or --engine):
  vision     - Google Cloud Vision document text detection (default)
  documentai - Google Document AI OCR processor
  tesseract  - local Tesseract, requires a build with -tags tesseract

Required environment variables for Google engines:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_CLOUD_PROJECT, DOCUMENT_AI_PROCESSOR_ID - for documentai`,
	Example: `  # Recognize a burst of captures
  mrzscan recognize capture-*.jpg

  # Use Document AI and log the result to Google Sheets
  mrzscan recognize --engine documentai --sheet id-front.png id-back.png

  # Emit the recognized frames for later replay with "mrzscan scan"
  mrzscan recognize --frames capture-*.jpg > frames.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecognize,
}

// RecognizeOutput is one line of recognize output.
type RecognizeOutput struct {
	File  string `json:"file"`
	Error string `json:"error,omitempty"`
	session.Event
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().String("engine", "", "OCR engine (default: OCR_ENGINE)")
	recognizeCmd.Flags().Int("workers", 0, "Images recognized in parallel (default: OCR_WORKERS)")
	recognizeCmd.Flags().Int("timeout", 300, "Processing timeout in seconds")
	recognizeCmd.Flags().Bool("parse", true, "Attach parsed MRZ fields to results")
	recognizeCmd.Flags().Bool("frames", false, "Print recognized frames instead of scan events")
	recognizeCmd.Flags().Bool("sheet", false, "Append results to the Google Sheet in GOOGLE_SHEET_URL")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("recognize")

	engine, _ := cmd.Flags().GetString("engine")
	workers, _ := cmd.Flags().GetInt("workers")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	parseFields, _ := cmd.Flags().GetBool("parse")
	framesOnly, _ := cmd.Flags().GetBool("frames")
	toSheet, _ := cmd.Flags().GetBool("sheet")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if engine == "" {
		engine = cfg.OCREngine
	}
	if workers <= 0 {
		workers = cfg.OCRWorkers
	}

	log.Info().
		Int("images", len(args)).
		Str("engine", engine).
		Int("workers", workers).
		Int("timeout", timeoutSecs).
		Msg("Starting OCR recognition")

	for _, path := range args {
		if err := validateImageFile(path, log); err != nil {
			return err
		}
	}

	ctx, cancel := createContextWithTimeout(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	source, err := ocr.NewFrameSource(ctx, frameSourceSettings(cfg, engine))
	if err != nil {
		return handleOCRError(err, log)
	}
	defer func() {
		if closeErr := source.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close OCR client")
		}
	}()

	sess := session.New(uuid.NewString(), sessionOptions(cfg, parseFields))
	defer sess.Close()

	out := newEventWriter(os.Stdout, false)
	var records []sheets.Record
	var failed int

	startTime := time.Now()
	err = recognizeInOrder(ctx, source, args, workers, log, func(path string, frame *mrz.Frame, ocrErr error) error {
		if ocrErr != nil {
			failed++
			log.Error().Err(ocrErr).Str("file", path).Msg("OCR failed for image")
			return out.Write(RecognizeOutput{File: path, Error: ocrErr.Error()})
		}

		if framesOnly {
			return out.Write(frame)
		}

		event, err := sess.Process(*frame)
		if err != nil {
			return err
		}
		if event.Type == session.EventResult {
			log.Info().Str("file", path).Msg("MRZ assembled")
			records = append(records, record(filepath.Base(path), event))
		}
		return out.Write(RecognizeOutput{File: path, Event: event})
	})
	if err != nil {
		return handleOCRError(err, log)
	}

	stats := sess.Stats()
	log.Info().
		Int("images", len(args)).
		Int("failed", failed).
		Uint64("results", stats.Results).
		Dur("duration", time.Since(startTime)).
		Msg("OCR recognition completed")

	if toSheet && !framesOnly {
		return writeRecords(ctx, cfg, records, log)
	}
	return nil
}

func frameSourceSettings(cfg *config.Config, engine string) ocr.Settings {
	return ocr.Settings{
		Engine:           engine,
		ProjectID:        cfg.GoogleCloudProject,
		Location:         cfg.GoogleCloudLocation,
		ProcessorID:      cfg.DocumentAIProcessorID,
		ProcessorVersion: cfg.DocumentAIProcessorVersion,
	}
}

// recognizeInOrder runs OCR on paths with up to workers images in flight and
// calls handle for every image in the order of paths. A failed image is
// passed to handle with its error; an error returned by handle stops the run.
func recognizeInOrder(ctx context.Context, source ocr.FrameSource, paths []string, workers int,
	log zerolog.Logger, handle func(path string, frame *mrz.Frame, err error) error) error {

	type recognized struct {
		frame *mrz.Frame
		err   error
	}

	results := make([]recognized, len(paths))
	ready := make([]chan struct{}, len(paths))
	for i := range ready {
		ready[i] = make(chan struct{})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	// Start workers from a separate goroutine: g.Go blocks while the limit
	// is reached and the loop below must already be consuming.
	go func() {
		for i, path := range paths {
			g.Go(func() error {
				defer close(ready[i])

				if err := gctx.Err(); err != nil {
					results[i].err = err
					return err
				}

				image, err := os.ReadFile(path)
				if err != nil {
					results[i].err = fmt.Errorf("failed to read image: %w", err)
					return nil
				}

				start := time.Now()
				frame, err := source.RecognizeFrame(gctx, image)
				results[i] = recognized{frame: frame, err: err}

				log.Debug().
					Str("file", path).
					Int("index", i+1).
					Dur("duration", time.Since(start)).
					Msg("Image recognized")
				return nil
			})
		}
	}()

	var handleErr error
	for i, path := range paths {
		<-ready[i]
		if handleErr != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			handleErr = err
			continue
		}
		if handleErr = handle(path, results[i].frame, results[i].err); handleErr != nil {
			cancel()
		}
	}

	waitErr := g.Wait()
	if handleErr != nil {
		return handleErr
	}
	return waitErr
}

// validateImageFile checks that the file exists and is within the OCR size limit
func validateImageFile(path string, log zerolog.Logger) error {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("Image file not found")
			return fmt.Errorf("image file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing image file")
			return fmt.Errorf("permission denied accessing image file: %s", path)
		}
		return fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		return fmt.Errorf("path is not a regular file: %s", path)
	}
	if fileInfo.Size() == 0 {
		return fmt.Errorf("image file is empty: %s", path)
	}
	if fileInfo.Size() > ocr.MaxImageSizeBytes {
		log.Error().
			Str("file", path).
			Int64("size", fileInfo.Size()).
			Int64("max_size", ocr.MaxImageSizeBytes).
			Msg("Image file exceeds maximum size limit")
		return fmt.Errorf("image file too large (%d bytes). Maximum size is %d bytes (20MB)",
			fileInfo.Size(), ocr.MaxImageSizeBytes)
	}
	return nil
}
