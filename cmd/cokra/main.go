// Package main provides the CLI entry point for the cokra agent runtime.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/brandlll-lee/cokra/internal/observability"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Bootstrap logger used until "run" loads its config and reconfigures
	// slog's default via observability.NewLogger with the resolved
	// LoggingConfig.
	logger := observability.NewLogger(observability.LogConfig{
		Level:  "info",
		Format: "json",
		Output: os.Stderr,
	})
	slog.SetDefault(logger.Slog())

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cokra",
		Short: "cokra - local, multi-provider AI coding-agent runtime",
		Long: `cokra drives a streaming turn-execution loop against Anthropic, OpenAI,
Bedrock, Gemini, or Venice, dispatching model tool calls through a
validated tool router.

The engine's external interface is a Submission/Event queue pair: feed it
framed JSON submissions, read framed JSON events back.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildServeCmd(),
		buildConfigCmd(),
	)

	return rootCmd
}
