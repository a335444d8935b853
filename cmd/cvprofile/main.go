// Package main implements the cvprofile CLI: render candidate profiles from
// local CV files and validate hand-edited profile JSON.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"alfredoptarigan/cv-profiler/internal/config"
	"alfredoptarigan/cv-profiler/internal/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "cvprofile",
	Short:         "German candidate profiles from CVs",
	Long:          "cvprofile turns CVs (PDF, JPEG, PNG) into German candidate profiles rendered into a Word template.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg = config.Load()
		logger.Init(logger.Config{Level: cfg.Log.Level, Format: "pretty"})
		return cfg.Validate()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
