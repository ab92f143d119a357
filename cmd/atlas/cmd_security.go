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
	"time"

	"github.com/AleutianAI/AleutianAtlas/pkg/ux"
	"github.com/AleutianAI/AleutianAtlas/services/atlas"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/security"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	securityJSON     bool
	securitySARIF    string
	securityIncludes []string
	securityExcludes []string
	securityNoLLM    bool
	securityTimeout  int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var securityCmd = &cobra.Command{
	Use:   "security [path]",
	Short: "Scan a codebase for security vulnerabilities",
	Long: `Run the three-stage vulnerability scan pipeline over a project.

Stage 1 matches rule patterns against source lines. Stage 2 filters
matches with lightweight AST heuristics (taint adjacency, sanitizer
detection, comment and test-fixture suppression). Stage 3 sends the
survivors to a local AI judge for validation when one is configured.

Examples:
  atlas security                       # Scan the current directory
  atlas security ./backend             # Scan a specific path
  atlas security --no-llm              # Skip the AI validation stage
  atlas security --sarif out.sarif     # Write SARIF 2.1.0 for code scanning
  atlas security --json                # JSON output for automation

Exit Codes:
  0 = No findings
  1 = Findings present (requires review)
  2 = Error (bad path, scan failure, timeout)`,
	Run: runSecurityCommand,
}

func init() {
	securityCmd.Flags().BoolVar(&securityJSON, "json", false,
		"Output as JSON")
	securityCmd.Flags().StringVar(&securitySARIF, "sarif", "",
		"Write a SARIF 2.1.0 report to this file")
	securityCmd.Flags().StringSliceVar(&securityIncludes, "include", nil,
		"Glob patterns to include (repeatable)")
	securityCmd.Flags().StringSliceVar(&securityExcludes, "exclude", nil,
		"Glob patterns to exclude (repeatable)")
	securityCmd.Flags().BoolVar(&securityNoLLM, "no-llm", false,
		"Skip the AI validation stage")
	securityCmd.Flags().IntVar(&securityTimeout, "timeout", 120,
		"Total timeout in seconds")

	// Add to root
	rootCmd.AddCommand(securityCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runSecurityCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(securityTimeout)*time.Second)
	defer cancel()

	root, err := resolveProjectRoot(args)
	if err != nil {
		outputCommandError(securityJSON, "Failed to resolve project root", err)
		os.Exit(exitError)
	}

	svc, cleanup, err := newAnalysisService(securityNoLLM, false)
	if err != nil {
		outputCommandError(securityJSON, "Failed to initialize scan service", err)
		os.Exit(exitError)
	}
	defer cleanup()

	req := atlas.SecurityScanRequest{
		ProjectRoot: root,
		Includes:    securityIncludes,
		Excludes:    securityExcludes,
	}

	var report *security.EnhancedSecurityReport
	run := func() error {
		var runErr error
		report, runErr = svc.SecurityScan(ctx, req)
		return runErr
	}

	if securityJSON {
		err = run()
	} else {
		err = ux.WithSpinner(fmt.Sprintf("Scanning %s", root), run)
	}
	if err != nil {
		outputCommandError(securityJSON, "Security scan failed", err)
		os.Exit(exitError)
	}

	if securitySARIF != "" {
		if err := report.WriteSARIF(securitySARIF); err != nil {
			outputCommandError(securityJSON, "Failed to write SARIF report", err)
			os.Exit(exitError)
		}
		if !securityJSON {
			ux.Info(fmt.Sprintf("SARIF report written to %s", securitySARIF))
		}
	}

	if securityJSON {
		outputJSON(report)
	} else {
		renderSecurityText(report)
	}

	if report.Total > 0 {
		os.Exit(exitFindings)
	}
	os.Exit(exitSuccess)
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func renderSecurityText(report *security.EnhancedSecurityReport) {
	ux.Title(fmt.Sprintf("Security Scan: %s", report.ProjectName))
	ux.Field("root", report.Root)
	ux.Field("run", report.RunID)
	ux.Field("rules", report.RuleVersion)
	fmt.Println()

	if report.Total == 0 {
		ux.Success("No vulnerabilities found")
		return
	}

	renderSecuritySummary(report)

	fmt.Println()
	fmt.Println("Findings:")
	for i := range report.Vulnerabilities {
		v := &report.Vulnerabilities[i]
		fmt.Printf("  %s\n", ux.FindingLine(string(v.Severity), v.File, v.Line, v.Title))
		if v.Snippet != "" {
			ux.Muted(fmt.Sprintf("      %s", v.Snippet))
		}
		if v.NeedsReview {
			ux.Muted("      needs manual review")
		}
	}
}

// renderSecuritySummary prints the severity histogram and pipeline
// funnel. Shared with the analyze command's --security output.
func renderSecuritySummary(report *security.EnhancedSecurityReport) {
	fmt.Println("Security:")
	ux.Field("findings", fmt.Sprintf("%d", report.Total))
	for _, sev := range sortedSeverities(report.BySeverity) {
		fmt.Printf("    %s %d\n", ux.SeverityBadge(string(sev)), report.BySeverity[sev])
	}

	p := report.Pipeline
	ux.Field("pipeline", fmt.Sprintf("%d matched, %d after AST filter, %d after AI validation",
		p.OriginalCount, p.AfterASTFilter, p.AfterAIValidation))
	if !p.JudgeAvailable {
		ux.Muted("    AI validation skipped (no judge configured)")
	} else if p.NeedsReview > 0 {
		ux.Muted(fmt.Sprintf("    %d findings need manual review", p.NeedsReview))
	}
}
