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
	"github.com/AleutianAI/AleutianAtlas/services/atlas/flow"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	flowsJSON    bool
	flowsSteps   bool
	flowsType    string
	flowsNoLLM   bool
	flowsTimeout int
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var flowsCmd = &cobra.Command{
	Use:   "flows [path]",
	Short: "Trace data flows from entry points through the codebase",
	Long: `Trace how data moves through the project: from each entry point
(controllers, handlers, adapters) along the import graph, labeling
every traced path with a flow type (request-response, cqrs-command,
cqrs-query, event-driven) and a direction relative to the layer stack.

Also aggregates every inter-layer connection, flags the ones the
detected pattern's layering rules disallow, and counts layer cycles.

Examples:
  atlas flows                         # Current directory
  atlas flows ./backend --steps       # Show each step of every flow
  atlas flows --type cqrs-command     # Only flows of one type
  atlas flows --json                  # JSON output for automation

Exit Codes:
  0 = Trace completed
  2 = Error (bad path, scan failure, timeout)`,
	Run: runFlowsCommand,
}

func init() {
	flowsCmd.Flags().BoolVar(&flowsJSON, "json", false,
		"Output as JSON")
	flowsCmd.Flags().BoolVar(&flowsSteps, "steps", false,
		"Show every step of each traced flow")
	flowsCmd.Flags().StringVar(&flowsType, "type", "",
		"Only show flows of this type (e.g. request-response, cqrs-query)")
	flowsCmd.Flags().BoolVar(&flowsNoLLM, "no-llm", false,
		"Skip external classification of low-confidence files")
	flowsCmd.Flags().IntVar(&flowsTimeout, "timeout", 120,
		"Total timeout in seconds")

	// Add to root
	rootCmd.AddCommand(flowsCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runFlowsCommand(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(flowsTimeout)*time.Second)
	defer cancel()

	root, err := resolveProjectRoot(args)
	if err != nil {
		outputCommandError(flowsJSON, "Failed to resolve project root", err)
		os.Exit(exitError)
	}

	svc, cleanup, err := newAnalysisService(flowsNoLLM, false)
	if err != nil {
		outputCommandError(flowsJSON, "Failed to initialize analysis service", err)
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

	if flowsJSON {
		err = run()
	} else {
		err = ux.WithSpinner(fmt.Sprintf("Tracing flows in %s", root), run)
	}
	if err != nil {
		outputCommandError(flowsJSON, "Flow tracing failed", err)
		os.Exit(exitError)
	}

	flows := result.Flows
	if flows != nil && flowsType != "" {
		filtered := *flows
		filtered.Flows = nil
		for _, f := range flows.Flows {
			if string(f.Type) == flowsType {
				filtered.Flows = append(filtered.Flows, f)
			}
		}
		flows = &filtered
	}

	if flowsJSON {
		outputJSON(flows)
	} else {
		renderFlowsText(result.Meta.ProjectName, flows)
	}
	os.Exit(exitSuccess)
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func renderFlowsText(project string, flows *flow.FlowAnalysisResult) {
	ux.Title(fmt.Sprintf("Data Flows: %s", project))

	if flows == nil || len(flows.Flows) == 0 {
		ux.Muted("No flows traced (no entry-point files found)")
		return
	}

	if flows.Pattern != "" {
		ux.Field("pattern", flows.Pattern)
	}
	ux.Field("flows", fmt.Sprintf("%d traced from %d entry points",
		flows.Metrics.TotalFlows, flows.Metrics.EntryPoints))
	ux.Field("depth", fmt.Sprintf("avg %.1f, max %d",
		flows.Metrics.AverageFlowLength, flows.Metrics.MaxFlowLength))

	for i := range flows.Flows {
		fmt.Println()
		renderFlow(&flows.Flows[i])
	}

	if len(flows.LayerConnections) > 0 {
		fmt.Println()
		fmt.Println("Layer connections:")
		for _, conn := range flows.LayerConnections {
			mark := ux.IconSuccess
			if !conn.Allowed {
				mark = ux.IconWarning
			}
			fmt.Printf("  %s %s %s %s (%d imports)\n",
				mark.Render(), conn.From, ux.IconArrow.Render(), conn.To, conn.Count)
		}
	}

	if len(flows.Violations) > 0 {
		fmt.Println()
		fmt.Println("Violations:")
		for _, v := range flows.Violations {
			fmt.Printf("  %s %s\n", ux.SeverityBadge(string(v.Severity)), v.Description)
		}
	}

	if flows.Metrics.LayerCycles > 0 {
		fmt.Println()
		ux.Warning(fmt.Sprintf("%d layer cycles detected", flows.Metrics.LayerCycles))
	}
}

func renderFlow(f *flow.DataFlow) {
	fmt.Printf("%s %s\n", ux.IconAnchor.Render(), f.Name)
	ux.Muted(fmt.Sprintf("  %s, %s, %d steps", f.Type, f.Direction, len(f.Steps)))

	if !flowsSteps {
		return
	}
	for i, step := range f.Steps {
		fmt.Printf("  %2d. %s\n", i+1, step.File)
		detail := step.Action
		if step.Layer != "" {
			detail = fmt.Sprintf("%s (%s)", detail, step.Layer)
		}
		ux.Muted(fmt.Sprintf("      %s", detail))
	}
}
