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
	"sort"
	"time"

	"github.com/AleutianAI/AleutianAtlas/pkg/ux"
	"github.com/AleutianAI/AleutianAtlas/services/atlas"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/architecture"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	archJSON       bool
	archViolations bool
	archNoLLM      bool
	archTimeout    int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var archCmd = &cobra.Command{
	Use:   "arch [path]",
	Short: "Show architecture pattern detection in depth",
	Long: `Detect the architecture pattern and explain why it matched.

Where analyze gives the one-line verdict, arch shows the evidence:
which indicators matched, how files distribute across the pattern's
layers, which imports break the pattern's layering rules, and how
confident the per-file classification is.

Examples:
  atlas arch                          # Current directory
  atlas arch ./backend                # Specific path
  atlas arch --violations             # List every layering violation
  atlas arch --json                   # JSON output for automation

Exit Codes:
  0 = Detection completed
  2 = Error (bad path, scan failure, timeout)`,
	Run: runArchCommand,
}

func init() {
	archCmd.Flags().BoolVar(&archJSON, "json", false,
		"Output as JSON")
	archCmd.Flags().BoolVar(&archViolations, "violations", false,
		"List every layering violation instead of a count")
	archCmd.Flags().BoolVar(&archNoLLM, "no-llm", false,
		"Skip external classification of low-confidence files")
	archCmd.Flags().IntVar(&archTimeout, "timeout", 120,
		"Total timeout in seconds")

	// Add to root
	rootCmd.AddCommand(archCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runArchCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(archTimeout)*time.Second)
	defer cancel()

	root, err := resolveProjectRoot(args)
	if err != nil {
		outputCommandError(archJSON, "Failed to resolve project root", err)
		os.Exit(exitError)
	}

	svc, cleanup, err := newAnalysisService(archNoLLM, false)
	if err != nil {
		outputCommandError(archJSON, "Failed to initialize analysis service", err)
		os.Exit(exitError)
	}
	defer cleanup()

	req := atlas.AnalyzeRequest{ProjectRoot: root}

	var result *atlas.AnalysisResult
	run := func() error {
		var runErr error
		result, runErr = svc.Analyze(ctx, req)
		return runErr
	}

	if archJSON {
		err = run()
	} else {
		err = ux.WithSpinner(fmt.Sprintf("Detecting architecture in %s", root), run)
	}
	if err != nil {
		outputCommandError(archJSON, "Architecture detection failed", err)
		os.Exit(exitError)
	}

	if archJSON {
		outputJSON(result.Architecture)
	} else {
		renderArchText(result)
	}
	os.Exit(exitSuccess)
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func renderArchText(result *atlas.AnalysisResult) {
	ux.Title(fmt.Sprintf("Architecture: %s", result.Meta.ProjectName))

	if result.Architecture == nil || len(result.Architecture.Detected) == 0 {
		ux.Muted("No architecture pattern detected")
		return
	}

	for i := range result.Architecture.Detected {
		if i > 0 {
			fmt.Println()
		}
		renderDetection(&result.Architecture.Detected[i])
	}

	if cls := result.Architecture.Classification; cls != nil {
		fmt.Println()
		fmt.Println("Classification:")
		ux.Field("files", fmt.Sprintf("%d classified, %d with a layer, %d with a role",
			cls.Stats.TotalFiles, cls.Stats.WithLayer, cls.Stats.WithRole))
		if cls.Stats.Reclassified > 0 {
			ux.Field("reclassified", fmt.Sprintf("%d low-confidence files via AI", cls.Stats.Reclassified))
		} else if cls.Stats.LowConfidence > 0 {
			ux.Muted(fmt.Sprintf("  %d files below the confidence threshold", cls.Stats.LowConfidence))
		}
	}

	if result.Flows != nil && result.Flows.Pattern != "" {
		fmt.Println()
		ux.Field("flow pattern", result.Flows.Pattern)
	}
}

func renderDetection(det *architecture.DetectionResult) {
	ux.Field("pattern", fmt.Sprintf("%s (%.0f%% confidence)", det.Pattern.Name, det.Confidence))
	ux.Muted(fmt.Sprintf("  %s", det.Pattern.Description))

	if len(det.MatchedIndicators) > 0 {
		fmt.Println("  Indicators:")
		for _, ind := range det.MatchedIndicators {
			fmt.Printf("    %s %s\n", ux.IconBullet.Render(), ind)
		}
	}

	if len(det.LayerDistribution) > 0 {
		fmt.Println("  Layer distribution:")
		layers := make([]string, 0, len(det.LayerDistribution))
		for layer := range det.LayerDistribution {
			layers = append(layers, layer)
		}
		sort.Strings(layers)
		for _, layer := range layers {
			fmt.Printf("    %-16s %d files\n", layer, det.LayerDistribution[layer])
		}
	}

	if len(det.Violations) == 0 {
		return
	}
	if archViolations {
		fmt.Println("  Violations:")
		for _, v := range det.Violations {
			fmt.Printf("    %s %s (%s) imports %s (%s)\n",
				ux.SeverityBadge(string(v.Severity)), v.SourceFile, v.SourceLayer, v.TargetFile, v.TargetLayer)
			ux.Muted(fmt.Sprintf("      rule: %s", v.Rule))
		}
	} else {
		ux.Warning(fmt.Sprintf("%d layering violations (rerun with --violations)", len(det.Violations)))
	}
}
