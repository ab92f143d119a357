// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package security

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sarifDoc is the slice of the SARIF schema these tests care about.
type sarifDoc struct {
	Version string `json:"version"`
	Runs    []struct {
		Tool struct {
			Driver struct {
				Name  string `json:"name"`
				Rules []struct {
					ID string `json:"id"`
				} `json:"rules"`
			} `json:"driver"`
		} `json:"tool"`
		Results []struct {
			RuleID  string `json:"ruleId"`
			Level   string `json:"level"`
			Message struct {
				Text string `json:"text"`
			} `json:"message"`
			Locations []struct {
				PhysicalLocation struct {
					ArtifactLocation struct {
						URI string `json:"uri"`
					} `json:"artifactLocation"`
					Region struct {
						StartLine int `json:"startLine"`
					} `json:"region"`
				} `json:"physicalLocation"`
			} `json:"locations"`
			Properties map[string]any `json:"properties"`
		} `json:"results"`
	} `json:"runs"`
}

// TestWriteSARIF verifies the document shape, rule dedup, and severity
// levels.
func TestWriteSARIF(t *testing.T) {
	report := &EnhancedSecurityReport{
		SecurityReport: SecurityReport{
			RunID: "test-run",
			Vulnerabilities: []Vulnerability{
				{
					RuleID: "SEC-020", Title: "SQL Injection",
					Severity: SeverityCritical, Category: CategorySQLInjection,
					File: "src/a.js", Line: 10,
					Snippet: `db.execute(q)`, CWE: "CWE-89", Confidence: 0.8,
				},
				{
					RuleID: "SEC-020", Title: "SQL Injection",
					Severity: SeverityCritical, Category: CategorySQLInjection,
					File: "src/b.js", Line: 4,
				},
				{
					RuleID: "SEC-013", Title: "Hardcoded Password",
					Severity: SeverityMedium, Category: CategorySecrets,
					File: "src/config.js", Line: 2, NeedsReview: true,
				},
			},
		},
	}

	path := filepath.Join(t.TempDir(), "atlas.sarif")
	require.NoError(t, report.WriteSARIF(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc sarifDoc
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "2.1.0", doc.Version)
	require.Len(t, doc.Runs, 1)
	run := doc.Runs[0]
	assert.Equal(t, "aleutian-atlas", run.Tool.Driver.Name)

	// Two findings share SEC-020: one rule entry each for SEC-020 and
	// SEC-013.
	assert.Len(t, run.Tool.Driver.Rules, 2)

	require.Len(t, run.Results, 3)
	first := run.Results[0]
	assert.Equal(t, "SEC-020", first.RuleID)
	assert.Equal(t, "error", first.Level)
	assert.Contains(t, first.Message.Text, "db.execute(q)")
	require.Len(t, first.Locations, 1)
	loc := first.Locations[0].PhysicalLocation
	assert.Equal(t, "src/a.js", loc.ArtifactLocation.URI)
	assert.Equal(t, 10, loc.Region.StartLine)
	assert.Equal(t, "sql_injection", first.Properties["category"])
	assert.Equal(t, "CWE-89", first.Properties["cwe"])

	third := run.Results[2]
	assert.Equal(t, "warning", third.Level)
	assert.Equal(t, true, third.Properties["needsReview"])
}

// TestToSarifLevel verifies the severity mapping.
func TestToSarifLevel(t *testing.T) {
	assert.Equal(t, "error", toSarifLevel(SeverityCritical))
	assert.Equal(t, "error", toSarifLevel(SeverityHigh))
	assert.Equal(t, "warning", toSarifLevel(SeverityMedium))
	assert.Equal(t, "note", toSarifLevel(SeverityLow))
	assert.Equal(t, "note", toSarifLevel(SeverityInfo))
	assert.Equal(t, "none", toSarifLevel(Severity("bogus")))
}
