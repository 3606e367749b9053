package cmd

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mrzscan/internal/logger"
	"mrzscan/internal/mrz"
	"mrzscan/internal/ocr"
	"mrzscan/internal/session"
	"mrzscan/internal/sheets"
)

var scanCmd = &cobra.Command{
	Use:   "scan [frames.json|-]",
	Short: "Run a scan session over recorded OCR frames",
	Long: `Feed OCR frames to a scan session and print one JSON event per frame.

Frames are read from the given file or from stdin, either as a JSON array or
as a stream of frame objects:

  {"blocks":[{"lines":[{"text":"..."}],"corners":[{"x":0,"y":0}]}]}

Each frame yields an event: "none" for a frame without text, "progress" with
the percentage of MRZ lines collected, or "result" with the assembled MRZ and
its parsed fields.

Scanner environment variables:
  MRZ_PREFIX_LENGTH - Characters compared to detect a re-read line (default 20)
  MRZ_REQUIRE_NUMERIC_LINE - Reset 3-line buffers without a digit-led line (default true)
  MRZ_EXTRACT_ALL_BLOCKS - Take candidates from every text block (default false)`,
	Example: `  # Scan recorded frames
  mrzscan scan frames.json

  # Read a frame stream from another tool, print only results
  camera-ocr | mrzscan scan --results-only

  # Log results to the configured Google Sheet
  mrzscan scan frames.json --sheet`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Bool("parse", true, "Attach parsed MRZ fields to results")
	scanCmd.Flags().Bool("results-only", false, "Print only result events")
	scanCmd.Flags().Bool("pretty", false, "Indent JSON output")
	scanCmd.Flags().Bool("sheet", false, "Append results to the Google Sheet in GOOGLE_SHEET_URL")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	parseFields, _ := cmd.Flags().GetBool("parse")
	resultsOnly, _ := cmd.Flags().GetBool("results-only")
	pretty, _ := cmd.Flags().GetBool("pretty")
	toSheet, _ := cmd.Flags().GetBool("sheet")

	input := "-"
	if len(args) == 1 {
		input = args[0]
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	in, err := openInput(input)
	if err != nil {
		return err
	}
	defer in.Close()

	ctx, cancel := createContextWithTimeout(0, log)
	defer cancel()

	sess := session.New(uuid.NewString(), sessionOptions(cfg, parseFields))
	defer sess.Close()

	log.Info().
		Str("input", input).
		Str("session_id", sess.ID()).
		Int("prefix_length", cfg.PrefixLength).
		Bool("all_blocks", cfg.ExtractAllBlocks).
		Msg("Starting scan")

	out := newEventWriter(os.Stdout, pretty)
	var records []sheets.Record

	err = ocr.DecodeFrames(in, func(index int, frame mrz.Frame) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		event, err := sess.Process(frame)
		if err != nil {
			return fmt.Errorf("frame %d: %w", index, err)
		}

		if event.Type == session.EventResult {
			log.Info().Int("frame", index).Msg("MRZ assembled")
			records = append(records, record(input, event))
		} else if resultsOnly {
			return nil
		}
		return out.Write(event)
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	stats := sess.Stats()
	log.Info().
		Uint64("frames", stats.Frames).
		Uint64("results", stats.Results).
		Int("buffered_lines", stats.BufferedLines).
		Msg("Scan finished")

	if toSheet {
		return writeRecords(ctx, cfg, records, log)
	}
	return nil
}
