// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Reddical Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the Reddical CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reddical",
		Short: "Reddical - account and session service",
		Long: `Reddical serves user registration, login, and the
password-reset flow over a JSON HTTP API backed by PostgreSQL.`,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
