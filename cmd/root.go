package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"idverify/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "idverify",
	Short: "Identity document verification for rental marketplace registration",
	Long: `idverify checks identity documents uploaded during tenant, owner and admin
registration. It reads the document with OCR, recognizes PAN cards, Aadhaar
cards, passports and driving licences, checks the role policy, extracts the
document number and holder name and scores the document on five checks.

A document passes when at least 60% of the checks pass.`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().Str("version", version).Msg("idverify executed without subcommand")

		fmt.Println("idverify - identity document verification")
		fmt.Println("Use --help to see available commands and options.")
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}
