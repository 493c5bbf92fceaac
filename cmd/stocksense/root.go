// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the StockSense CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stocksense",
		Short: "StockSense - company account authentication service",
		Long: `StockSense authenticates company accounts by company ID and password and
issues bearer session tokens, with per-company rate limiting and transparent
migration of legacy password hashes.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/stocksense/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}
