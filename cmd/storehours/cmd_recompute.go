/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Run one scheduled recompute pass",
	Long: `Recompute every merchant whose cached snapshot has reached its transition,
then exit. Useful from cron when the server runs without its own scheduler
or to drain a backlog after an outage.

Example:
  storehours recompute --env-file /etc/storehours.env
`,
	RunE: runRecompute,
}

func init() {
	rootCmd.AddCommand(recomputeCmd)
}

func runRecompute(cmd *cobra.Command, args []string) error {
	srv, err := openHeadless()
	if err != nil {
		return err
	}
	defer srv.Close()

	stats, err := srv.Scheduler().Tick(cmd.Context())
	if err != nil {
		return fmt.Errorf("recompute: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
