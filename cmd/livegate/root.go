// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the livegate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "livegate",
		Short: "Livegate - real-time event fan-out gateway",
		Long: `Livegate is the real-time core of a community platform: it fans
published records (chat messages, feed items) out to long-lived SSE and
WebSocket subscribers, with backlog replay on connect.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewTokenCmd())

	return cmd
}
