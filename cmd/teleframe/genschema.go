// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TeleFrame Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teleframe/teleframe/internal/addon"
)

// NewGenSchemaCmd creates the gen-schema subcommand. It regenerates the
// addon manifest JSON Schema file for editors and CI.
func NewGenSchemaCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "gen-schema",
		Short: "Generate the addon manifest JSON Schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := addon.GenerateSchema()
			if err != nil {
				return err
			}

			if outPath == "-" {
				_, err = cmd.OutOrStdout().Write(schema)
				return err
			}

			if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
				return err
			}
			if err := os.WriteFile(outPath, schema, 0o600); err != nil {
				return err
			}
			cmd.Printf("Generated %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", filepath.Join("schemas", "addon.schema.json"), "output path ('-' for stdout)")

	return cmd
}
