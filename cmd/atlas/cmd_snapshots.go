// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/AleutianAI/AleutianAtlas/pkg/ux"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/store"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	snapshotsJSON    bool
	snapshotsPayload bool
	snapshotsKeep    int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Manage saved analysis snapshots",
	Long: `List, inspect, and prune snapshots saved with analyze --save.

Snapshots live in a local store under ~/.atlas/snapshots (or the path
configured under store.path). Each one carries the summary counters
plus the full analysis payload.

Examples:
  atlas snapshots list                # Newest first
  atlas snapshots show <run-id>       # One snapshot's summary
  atlas snapshots show <run-id> --payload | jq   # Full analysis JSON
  atlas snapshots delete <run-id>     # Remove one snapshot
  atlas snapshots prune --keep 10     # Keep the 10 newest

Exit Codes:
  0 = Operation completed
  2 = Error (store failure, unknown snapshot)`,
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved snapshots, newest first",
	Run:   runSnapshotsList,
}

var snapshotsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one snapshot",
	Args:  cobra.ExactArgs(1),
	Run:   runSnapshotsShow,
}

var snapshotsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete one snapshot",
	Args:  cobra.ExactArgs(1),
	Run:   runSnapshotsDelete,
}

var snapshotsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest snapshots",
	Run:   runSnapshotsPrune,
}

func init() {
	snapshotsCmd.PersistentFlags().BoolVar(&snapshotsJSON, "json", false,
		"Output as JSON")
	snapshotsShowCmd.Flags().BoolVar(&snapshotsPayload, "payload", false,
		"Print the full analysis payload instead of the summary")
	snapshotsPruneCmd.Flags().IntVar(&snapshotsKeep, "keep", 20,
		"Number of newest snapshots to keep")

	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsShowCmd)
	snapshotsCmd.AddCommand(snapshotsDeleteCmd)
	snapshotsCmd.AddCommand(snapshotsPruneCmd)

	// Add to root
	rootCmd.AddCommand(snapshotsCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// withSnapshotStore opens the store, runs fn, and closes it again.
// Exits on open failure; every subcommand needs the store anyway.
func withSnapshotStore(fn func(ctx context.Context, st *store.Store)) {
	st, err := openSnapshotStore()
	if err != nil {
		outputCommandError(snapshotsJSON, "Failed to open snapshot store", err)
		os.Exit(exitError)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	fn(ctx, st)
}

func runSnapshotsList(cmd *cobra.Command, args []string) {
	withSnapshotStore(func(ctx context.Context, st *store.Store) {
		snaps, err := st.List(ctx)
		if err != nil {
			outputCommandError(snapshotsJSON, "Failed to list snapshots", err)
			os.Exit(exitError)
		}

		if snapshotsJSON {
			outputJSON(snaps)
			return
		}
		if len(snaps) == 0 {
			ux.Muted("No snapshots saved (run: atlas analyze --save)")
			return
		}
		for i := range snaps {
			renderSnapshotLine(&snaps[i])
		}
	})
	os.Exit(exitSuccess)
}

func runSnapshotsShow(cmd *cobra.Command, args []string) {
	withSnapshotStore(func(ctx context.Context, st *store.Store) {
		snap, err := st.Get(ctx, args[0])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				outputCommandError(snapshotsJSON, "Unknown snapshot", err)
			} else {
				outputCommandError(snapshotsJSON, "Failed to load snapshot", err)
			}
			os.Exit(exitError)
		}

		if snapshotsPayload {
			os.Stdout.Write(snap.Payload)
			fmt.Println()
			return
		}
		if snapshotsJSON {
			snap.Payload = nil
			outputJSON(snap)
			return
		}
		renderSnapshotDetail(snap)
	})
	os.Exit(exitSuccess)
}

func runSnapshotsDelete(cmd *cobra.Command, args []string) {
	withSnapshotStore(func(ctx context.Context, st *store.Store) {
		if err := st.Delete(ctx, args[0]); err != nil {
			outputCommandError(snapshotsJSON, "Failed to delete snapshot", err)
			os.Exit(exitError)
		}
		if snapshotsJSON {
			outputJSON(map[string]any{"deleted": args[0]})
		} else {
			ux.Success(fmt.Sprintf("Deleted %s", args[0]))
		}
	})
	os.Exit(exitSuccess)
}

func runSnapshotsPrune(cmd *cobra.Command, args []string) {
	withSnapshotStore(func(ctx context.Context, st *store.Store) {
		removed, err := st.Prune(ctx, snapshotsKeep)
		if err != nil {
			outputCommandError(snapshotsJSON, "Failed to prune snapshots", err)
			os.Exit(exitError)
		}
		if snapshotsJSON {
			outputJSON(map[string]any{"removed": removed, "kept": snapshotsKeep})
		} else {
			ux.Success(fmt.Sprintf("Removed %d snapshots, kept the newest %d", removed, snapshotsKeep))
		}
	})
	os.Exit(exitSuccess)
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func renderSnapshotLine(snap *store.Snapshot) {
	line := fmt.Sprintf("%s  %s  %-20s files=%d issues=%d findings=%d",
		snap.ID, snap.CreatedAt.Format("2006-01-02 15:04"), snap.ProjectName,
		snap.Files, snap.Issues, snap.Findings)
	if snap.Pattern != "" {
		line += "  " + snap.Pattern
	}
	fmt.Println(line)
}

func renderSnapshotDetail(snap *store.Snapshot) {
	ux.Title(fmt.Sprintf("Snapshot %s", snap.ID))
	ux.Field("project", snap.ProjectName)
	ux.Field("root", snap.RootPath)
	ux.Field("created", snap.CreatedAt.Format(time.RFC3339))
	ux.Field("files", fmt.Sprintf("%d", snap.Files))
	ux.Field("issues", fmt.Sprintf("%d", snap.Issues))
	ux.Field("findings", fmt.Sprintf("%d", snap.Findings))
	if snap.Pattern != "" {
		ux.Field("pattern", snap.Pattern)
	}
	ux.Muted("  (use --payload for the full analysis JSON)")
}
