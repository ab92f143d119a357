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
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	analyzeJSON     bool
	analyzeOut      string
	analyzeIncludes []string
	analyzeExcludes []string
	analyzeSecurity bool
	analyzeNoLLM    bool
	analyzeSave     bool
	analyzeTimeout  int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var analyzeCmd = &cobra.Command{
	Use:   "analyze [path]",
	Short: "Map the architecture of a codebase",
	Long: `Scan a project and report its architecture, layers, and data flows.

The analyze command walks the project tree, parses imports, builds the
code graph, detects the architecture pattern, classifies files into
layers, and traces data flows between them. With --security it also
runs the vulnerability scan pipeline over the same file set.

Examples:
  atlas analyze                        # Analyze the current directory
  atlas analyze ./backend              # Analyze a specific path
  atlas analyze --include 'src/**'     # Restrict the scan with globs
  atlas analyze --security             # Include the security scan
  atlas analyze --save                 # Persist a snapshot for later diffing
  atlas analyze --out ./atlas-report   # Write JSON artifacts to a directory
  atlas analyze --json                 # JSON output for automation

Exit Codes:
  0 = Analysis completed
  2 = Error (bad path, scan failure, timeout)`,
	Run: runAnalyzeCommand,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false,
		"Output as JSON")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "",
		"Write analysis.json, architecture.json, flows.json to this directory")
	analyzeCmd.Flags().StringSliceVar(&analyzeIncludes, "include", nil,
		"Glob patterns to include (repeatable)")
	analyzeCmd.Flags().StringSliceVar(&analyzeExcludes, "exclude", nil,
		"Glob patterns to exclude (repeatable)")
	analyzeCmd.Flags().BoolVar(&analyzeSecurity, "security", false,
		"Run the security scan pipeline as part of the analysis")
	analyzeCmd.Flags().BoolVar(&analyzeNoLLM, "no-llm", false,
		"Skip the AI validation stage of the security scan")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false,
		"Persist the result as a snapshot")
	analyzeCmd.Flags().IntVar(&analyzeTimeout, "timeout", 120,
		"Total timeout in seconds")

	// Add to root
	rootCmd.AddCommand(analyzeCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runAnalyzeCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(analyzeTimeout)*time.Second)
	defer cancel()

	root, err := resolveProjectRoot(args)
	if err != nil {
		outputCommandError(analyzeJSON, "Failed to resolve project root", err)
		os.Exit(exitError)
	}

	svc, cleanup, err := newAnalysisService(analyzeNoLLM, analyzeSave)
	if err != nil {
		outputCommandError(analyzeJSON, "Failed to initialize analysis service", err)
		os.Exit(exitError)
	}
	defer cleanup()

	req := atlas.AnalyzeRequest{
		ProjectRoot: root,
		Includes:    analyzeIncludes,
		Excludes:    analyzeExcludes,
		Security:    analyzeSecurity,
		Save:        analyzeSave,
	}

	var result *atlas.AnalysisResult
	run := func() error {
		var runErr error
		result, runErr = svc.Analyze(ctx, req)
		return runErr
	}

	// The spinner writes to stdout, which JSON consumers parse.
	if analyzeJSON {
		err = run()
	} else {
		err = ux.WithSpinner(fmt.Sprintf("Analyzing %s", root), run)
	}
	if err != nil {
		outputCommandError(analyzeJSON, "Analysis failed", err)
		os.Exit(exitError)
	}

	if analyzeOut != "" {
		if err := atlas.WriteArtifacts(analyzeOut, result); err != nil {
			outputCommandError(analyzeJSON, "Failed to write artifacts", err)
			os.Exit(exitError)
		}
		if !analyzeJSON {
			ux.Info(fmt.Sprintf("Artifacts written to %s", analyzeOut))
		}
	}

	if analyzeJSON {
		outputJSON(result)
	} else {
		renderAnalysisText(result)
	}
	os.Exit(exitSuccess)
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func renderAnalysisText(result *atlas.AnalysisResult) {
	ux.Title(fmt.Sprintf("Atlas Analysis: %s", result.Meta.ProjectName))
	ux.Field("root", result.Meta.Root)
	ux.Field("run", result.Meta.RunID)
	ux.Field("duration", fmt.Sprintf("%dms", result.Meta.DurationMs))
	fmt.Println()

	renderArchitectureSection(result)
	renderLayerSection(result)
	renderIssueSection(result)
	renderFlowSection(result)

	if result.Security != nil {
		fmt.Println()
		renderSecuritySummary(result.Security)
	}

	fmt.Println()
	ux.Summary(result.Stats.Files, result.Stats.Issues, result.Stats.Findings)
}

func renderArchitectureSection(result *atlas.AnalysisResult) {
	if result.Architecture == nil || len(result.Architecture.Detected) == 0 {
		ux.Muted("No architecture pattern detected")
		return
	}

	top := result.Architecture.Detected[0]
	ux.Field("pattern", fmt.Sprintf("%s (%.0f%% confidence)", top.Pattern.Name, top.Confidence))
	for _, alt := range result.Architecture.Detected[1:] {
		ux.Muted(fmt.Sprintf("  also matched: %s (%.0f%%)", alt.Pattern.Name, alt.Confidence))
	}
}

func renderLayerSection(result *atlas.AnalysisResult) {
	if len(result.Legend) == 0 {
		return
	}

	fmt.Println()
	fmt.Println("Layers:")
	for _, entry := range result.Legend {
		fmt.Printf("  %s %-16s %d files\n", ux.IconBullet.Render(), entry.Layer, entry.Files)
	}
}

func renderIssueSection(result *atlas.AnalysisResult) {
	if len(result.Issues) == 0 {
		return
	}

	fmt.Println()
	fmt.Println("Structural Issues:")
	for _, issue := range result.Issues {
		file, line := "", 0
		if issue.Location != nil {
			file, line = issue.Location.File, issue.Location.Line
		}
		fmt.Printf("  %s\n", ux.FindingLine(string(issue.Severity), file, line, issue.Message))
	}
}

func renderFlowSection(result *atlas.AnalysisResult) {
	if result.Flows == nil {
		return
	}

	fmt.Println()
	fmt.Println("Data Flows:")
	ux.Field("traced", fmt.Sprintf("%d flows from %d entry points", result.Flows.Metrics.TotalFlows, result.Flows.Metrics.EntryPoints))
	if result.Flows.Metrics.MaxFlowLength > 0 {
		ux.Field("depth", fmt.Sprintf("avg %.1f, max %d", result.Flows.Metrics.AverageFlowLength, result.Flows.Metrics.MaxFlowLength))
	}
	if result.Flows.Metrics.LayerCycles > 0 {
		ux.Warning(fmt.Sprintf("%d layer cycles detected", result.Flows.Metrics.LayerCycles))
	}
}

func severityOrder(s string) int {
	switch s {
	case "critical":
		return 0
	case "high":
		return 1
	case "medium":
		return 2
	case "low":
		return 3
	default:
		return 4
	}
}

// sortedSeverities returns the keys of a severity histogram ordered
// from critical down to info.
func sortedSeverities[K ~string](counts map[K]int) []K {
	keys := make([]K, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return severityOrder(string(keys[i])) < severityOrder(string(keys[j]))
	})
	return keys
}
