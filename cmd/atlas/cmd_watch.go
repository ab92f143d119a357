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
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AleutianAI/AleutianAtlas/pkg/logging"
	"github.com/AleutianAI/AleutianAtlas/pkg/ux"
	"github.com/AleutianAI/AleutianAtlas/services/atlas"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	watchSecurity bool
	watchNoLLM    bool
	watchDebounce int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-analyze a project as it changes",
	Long: `Watch a project tree and re-run the analysis when files settle.

After an initial analysis, watch waits for the tree to go quiet for
the debounce interval, re-analyzes, and reports what moved: new and
resolved structural issues, and with --security, new and resolved
findings. Editor temp files and dependency directories are ignored.

Examples:
  atlas watch                         # Watch the current directory
  atlas watch ./backend               # Watch a specific path
  atlas watch --security              # Include the security scan each run
  atlas watch --debounce 2000         # Wait 2s of quiet before re-running

Exit Codes:
  0 = Stopped with Ctrl+C
  2 = Error (bad path, initial analysis failure)`,
	Run: runWatchCommand,
}

func init() {
	watchCmd.Flags().BoolVar(&watchSecurity, "security", false,
		"Run the security scan pipeline on each pass")
	watchCmd.Flags().BoolVar(&watchNoLLM, "no-llm", false,
		"Skip the AI validation stage of the security scan")
	watchCmd.Flags().IntVar(&watchDebounce, "debounce", 500,
		"Quiet interval in milliseconds before re-running")

	// Add to root
	rootCmd.AddCommand(watchCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runWatchCommand(cmd *cobra.Command, args []string) {
	root, err := resolveProjectRoot(args)
	if err != nil {
		outputCommandError(false, "Failed to resolve project root", err)
		os.Exit(exitError)
	}

	svc, cleanup, err := newAnalysisService(watchNoLLM, false)
	if err != nil {
		outputCommandError(false, "Failed to initialize analysis service", err)
		os.Exit(exitError)
	}
	defer cleanup()

	timeout := serviceConfigFromGlobal().MaxAnalysisDuration
	req := atlas.AnalyzeRequest{ProjectRoot: root, Security: watchSecurity}

	analyze := func(ctx context.Context) (*atlas.AnalysisResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return svc.Analyze(runCtx, req)
	}

	var result *atlas.AnalysisResult
	err = ux.WithSpinner(fmt.Sprintf("Analyzing %s", root), func() error {
		var runErr error
		result, runErr = analyze(context.Background())
		return runErr
	})
	if err != nil {
		outputCommandError(false, "Initial analysis failed", err)
		os.Exit(exitError)
	}

	prevIssues := result.Stats.Issues
	prevFindings := result.Stats.Findings
	ux.Summary(result.Stats.Files, prevIssues, prevFindings)
	ux.Info("Watching for changes (Ctrl+C to stop)")

	// Batches arrive on a single goroutine, so the prev counters need
	// no locking.
	handler := func(changes []atlas.Change) {
		ux.Info(fmt.Sprintf("%d files changed at %s", len(changes), time.Now().Format("15:04:05")))
		next, runErr := analyze(context.Background())
		if runErr != nil {
			ux.Error(fmt.Sprintf("re-analysis failed: %v", runErr))
			return
		}
		renderWatchDelta(next, prevIssues, prevFindings)
		prevIssues = next.Stats.Issues
		prevFindings = next.Stats.Findings
	}

	// Watcher internals log at warn so they stay out of the
	// interactive output.
	logger := logging.New(logging.Config{Level: logging.LevelWarn, Service: "atlas-watch"})
	defer logger.Close()

	opts := atlas.DefaultWatcherOptions()
	opts.Debounce = time.Duration(watchDebounce) * time.Millisecond
	watcher, err := atlas.NewWatcher(root, handler, opts, logger.Slog())
	if err != nil {
		outputCommandError(false, "Failed to create watcher", err)
		os.Exit(exitError)
	}
	if err := watcher.Start(context.Background()); err != nil {
		outputCommandError(false, "Failed to start watcher", err)
		os.Exit(exitError)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	watcher.Stop()
	fmt.Println()
	ux.Success("Watch stopped")
	os.Exit(exitSuccess)
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func renderWatchDelta(result *atlas.AnalysisResult, prevIssues, prevFindings int) {
	line := fmt.Sprintf("files=%d issues=%d (%s)",
		result.Stats.Files, result.Stats.Issues, deltaMark(result.Stats.Issues, prevIssues))
	if watchSecurity {
		line += fmt.Sprintf(" findings=%d (%s)", result.Stats.Findings, deltaMark(result.Stats.Findings, prevFindings))
	}

	switch {
	case result.Stats.Issues > prevIssues || result.Stats.Findings > prevFindings:
		ux.Warning(line)
	case result.Stats.Issues < prevIssues || result.Stats.Findings < prevFindings:
		ux.Success(line)
	default:
		ux.Muted(line)
	}
}

// deltaMark formats the change against the previous run: "+2", "-1",
// or "=" when nothing moved.
func deltaMark(cur, prev int) string {
	switch {
	case cur > prev:
		return fmt.Sprintf("+%d", cur-prev)
	case cur < prev:
		return fmt.Sprintf("-%d", prev-cur)
	default:
		return "="
	}
}
