// Package cmd implements the harborseal CLI using cobra.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"
const logo = "🦭"

var rootVerbose bool

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "harborseal",
	Short: logo + " harborseal — Multi-provider tool harness",
	Long: logo + " harborseal — a minimal agent harness that dispatches tool calls\n" +
		"across independent tool-provider processes, bundled with a retrieval\n" +
		"provider over a locally indexed document set",
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		initLogging()
	},
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogging routes slog to stderr so provider protocol traffic on stdout
// stays clean. Chat sessions default to warnings only; --verbose opens up
// the full runtime log.
func initLogging() {
	level := slog.LevelWarn
	if rootVerbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false, "Show runtime logs")

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(ragServeCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(authCmd)
}
