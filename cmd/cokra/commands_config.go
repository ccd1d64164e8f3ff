package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brandlll-lee/cokra/internal/config"
)

// buildConfigCmd creates the "config" command group: operator-facing
// utilities around the config file format itself, as opposed to "run"
// which consumes it.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file format",
	}
	cmd.AddCommand(buildConfigSchemaCmd())
	return cmd
}

// buildConfigSchemaCmd prints the JSON Schema for Config, so an operator
// (or an editor's YAML-language-server integration) can validate a config
// file without booting the engine.
func buildConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for the configuration file format",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := config.JSONSchema()
			if err != nil {
				return fmt.Errorf("build config schema: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(append(schema, '\n'))
			return err
		},
	}
}
