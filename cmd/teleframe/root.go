package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the TeleFrame CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teleframe",
		Short: "TeleFrame - a messenger-fed digital photo frame",
		Long: `TeleFrame receives photos from messengers, shows them on an
attached display, and extends itself through addons: compiled-in Go
packages, sandboxed Lua scripts, and out-of-process binaries.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewAddonCmd())
	cmd.AddCommand(NewGenSchemaCmd())

	return cmd
}
