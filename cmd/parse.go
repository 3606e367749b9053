package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mrzscan/internal/logger"
	"mrzscan/internal/mrz"
	"mrzscan/internal/sheets"
)

var parseCmd = &cobra.Command{
	Use:   "parse [mrz-file|-]",
	Short: "Parse MRZ text into document fields",
	Long: `Parse one or more machine readable zones and print their fields as JSON,
including the result of every check digit.

Input is read from the given file or stdin. Separate several documents with an
empty line. Lines are normalized the same way scanned lines are: spaces are
removed and chevron look-alikes are read as '<'.

With --from-sheet the MRZ column of the scan log in GOOGLE_SHEET_URL is parsed
instead.`,
	Example: `  # Parse a TD3 passport MRZ
  printf 'P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<\nL898902C36UTO7408122F1204159ZE184226B<<<<<10\n' | mrzscan parse

  # Re-check every logged scan
  mrzscan parse --from-sheet`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

// ParseOutput is one parsed document.
type ParseOutput struct {
	MRZ    string      `json:"mrz"`
	Fields *mrz.Fields `json:"fields,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().Bool("pretty", true, "Indent JSON output")
	parseCmd.Flags().Bool("from-sheet", false, "Parse the MRZ column of the Google Sheet scan log")
	parseCmd.Flags().Bool("strict", false, "Fail when a document has invalid check digits")
}

func runParse(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("parse")

	pretty, _ := cmd.Flags().GetBool("pretty")
	fromSheet, _ := cmd.Flags().GetBool("from-sheet")
	strict, _ := cmd.Flags().GetBool("strict")

	var documents []string
	if fromSheet {
		cfg, err := loadConfig(log)
		if err != nil {
			return err
		}
		if cfg.GoogleSheetURL == "" {
			return fmt.Errorf("GOOGLE_SHEET_URL environment variable is required")
		}

		ctx, cancel := createContextWithTimeout(0, log)
		defer cancel()

		sheetsService, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
		if err != nil {
			return fmt.Errorf("failed to create Google Sheets service: %w", err)
		}
		documents, err = sheetsService.ReadRecords(ctx, cfg.GoogleSheetWorksheet)
		if err != nil {
			return fmt.Errorf("failed to read scan log: %w", err)
		}
	} else {
		input := "-"
		if len(args) == 1 {
			input = args[0]
		}
		in, err := openInput(input)
		if err != nil {
			return err
		}
		defer in.Close()

		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		documents = splitDocuments(string(data))
	}

	log.Debug().Int("documents", len(documents)).Msg("Parsing MRZ documents")

	out := newEventWriter(os.Stdout, pretty)
	var invalid int
	for _, doc := range documents {
		result := ParseOutput{MRZ: doc}

		fields, err := mrz.Parse(doc)
		if err != nil {
			var perr *mrz.ParseError
			if !errors.As(err, &perr) {
				return err
			}
			result.Error = err.Error()
			invalid++
		} else {
			result.Fields = fields
			if !fields.Valid() {
				invalid++
			}
		}

		if err := out.Write(result); err != nil {
			return err
		}
	}

	if strict && invalid > 0 {
		return fmt.Errorf("%d of %d documents failed validation", invalid, len(documents))
	}
	return nil
}

// splitDocuments splits text into documents at empty lines and normalizes
// every line.
func splitDocuments(text string) []string {
	var docs []string
	var lines []string

	flush := func() {
		if len(lines) > 0 {
			docs = append(docs, strings.Join(lines, "\n"))
			lines = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = mrz.Normalize(line)
		if line == "" {
			flush()
			continue
		}
		lines = append(lines, line)
	}
	flush()

	return docs
}
