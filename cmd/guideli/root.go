// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Guideli Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/guideli/guideli/internal/config"
	"github.com/guideli/guideli/internal/xdg"
)

// NewRootCmd creates the root command for the guideli CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "guideli",
		Short: "guideli - identity and access service",
		Long: `guideli registers accounts, authenticates them with passwords or Google,
issues bearer tokens and manages roles.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "config file path (YAML)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}

// loadConfig reads the --config file, GUIDELI_ environment variables and the
// command's flags. Without --config, $XDG_CONFIG_HOME/guideli/config.yaml is
// used when it exists.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config") //nolint:errcheck // absent outside the root command
	if path == "" {
		found, err := xdg.ConfigFile()
		if err != nil {
			return nil, err
		}
		path = found
	}
	return config.Load(path, cmd.Flags())
}

// addDatabaseFlag registers --database-url on commands that only need the
// database. The flag is persistent so subcommands inherit it.
func addDatabaseFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL")
}
