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
	"fmt"

	"github.com/AleutianAI/AleutianAtlas/cmd/atlas/config"
	"github.com/AleutianAI/AleutianAtlas/pkg/ux"
	"github.com/AleutianAI/AleutianAtlas/services/atlas"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	plainOutput bool

	rootCmd = &cobra.Command{
		Use:   "atlas",
		Short: "A cli to map codebase architecture, data flows, and security findings",
		Long: `Atlas scans a project tree, builds a hierarchical code graph,
				detects the architecture pattern in use, traces data flows
				between layers, and runs a staged security funnel over the
				source.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if plainOutput {
				ux.SetPlain(true)
			}
			if err := config.Load(); err != nil {
				ux.Warning(fmt.Sprintf("Could not load config, using defaults: %v", err))
			}
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the atlas version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("atlas %s\n", atlas.ServiceVersion)
		},
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false,
		"Plain output without colors or spinners (scripting)")

	rootCmd.AddCommand(versionCmd)
}
