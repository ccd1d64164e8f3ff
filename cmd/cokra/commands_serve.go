package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildServeCmd creates the "serve" command. The engine's external
// interface is the Op/Event queue pair consumed by "run", not a network
// listener (spec.md §1 non-goals); serve exists only so the binary has a
// named slot for a future long-running host to hang itself off of.
func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Reserved for a future network-facing host (not implemented)",
		Long: `serve is a placeholder. The engine's specified surface is the
Submission/Event queue pair driven by "cokra run" over stdin/stdout; a
network-facing host (HTTP/gRPC/WS) is explicitly out of the engine's
scope and is left to whatever wraps this binary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("serve is not implemented; use \"cokra run\"")
		},
	}
}
