// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StockSense Contributors

package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the config command, which prints the effective
// configuration with secrets masked.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration serve would use, after applying defaults, the
config file and flags. Secrets taken from the environment are masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags(), nil)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg.Redacted())
			if err != nil {
				return oops.Code("CONFIG_MARSHAL_FAILED").Wrap(err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			if err := cfg.Validate(); err != nil {
				cmd.PrintErrf("warning: %v\n", err)
			}
			return nil
		},
	}
	addServeFlags(cmd.Flags())
	return cmd
}
