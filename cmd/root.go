package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mrzscan/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "mrzscan",
	Short: "mrzscan - assemble machine readable zones from OCR frames",
	Long: `mrzscan reads the machine readable zone (MRZ) of passports, ID cards and
visas from a stream of OCR results.

Camera frames are rarely read perfectly, so mrzscan collects candidate MRZ
lines across frames, throws away contradicting evidence and emits the MRZ once
a complete and well formed TD1, TD2 or TD3 zone has been seen.

Frames can come from JSON (scan), from images run through an OCR engine
(recognize) or from clients of the HTTP session API (serve).`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("mrzscan executed without subcommand")

		cmd.Help()
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
