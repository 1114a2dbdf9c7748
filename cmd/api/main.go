package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags.
var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "brody-api",
	Short: "Brody email triage and daily briefing API",
	Long: `brody-api serves the Brody assistant: email classification, task
suggestions, meeting briefs and asynchronous triage jobs backed by an
OpenRouter model gateway with heuristic fallbacks.`,
	SilenceUsage: true,
	Version:      version,
}

func main() {
	rootCmd.SetVersionTemplate(`{{printf "brody-api version %s\n" .Version}}`)
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newModelsCmd())

	// serve is the default when no subcommand is given.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
