// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command atlas analyzes codebase architecture, data flows, and
// security findings from the command line, and serves the same
// analyses over HTTP.
//
// Usage:
//
//	atlas analyze .                  # full analysis of the current tree
//	atlas analyze --security --json  # include the security funnel, emit JSON
//	atlas security . --sarif out.sarif
//	atlas arch .                     # architecture pattern evidence
//	atlas flows . --steps            # traced data flows, step by step
//	atlas watch .                    # re-analyze when the tree settles
//	atlas serve --port 8080          # HTTP API
//	atlas snapshots list             # stored analysis runs
package main

import (
	"log"
)

func main() {
	// Execute the root command. Cobra handles parsing the arguments.
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
