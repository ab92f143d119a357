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
	"sort"
	"time"
)

// ============================================================================
// Pipeline accounting
// ============================================================================

// PipelineStats records how the funnel narrowed across the run. The
// counts are monotone: OriginalCount >= AfterASTFilter >=
// AfterAIValidation always holds, since stages only remove.
type PipelineStats struct {
	// OriginalCount is the stage-1 finding count.
	OriginalCount int `json:"originalCount"`

	// AfterASTFilter is the count surviving the syntactic filter.
	AfterASTFilter int `json:"afterAstFilter"`

	// AfterAIValidation is the final count.
	AfterAIValidation int `json:"afterAiValidation"`

	// ConfirmedTruePositives counts judge-confirmed findings.
	ConfirmedTruePositives int `json:"confirmedTruePositives"`

	// NeedsReview counts findings marked for manual review.
	NeedsReview int `json:"needsReview"`

	// JudgeAvailable records whether the external stage ran.
	JudgeAvailable bool `json:"judgeAvailable"`

	// ProcessingTimeMs is the wall-clock duration of the full funnel.
	ProcessingTimeMs int64 `json:"processingTimeMs"`
}

// ============================================================================
// Reports
// ============================================================================

// SecurityReport is the base report: the surviving findings plus
// severity and category rollups.
type SecurityReport struct {
	// RunID uniquely identifies this scan run.
	RunID string `json:"runId"`

	// ProjectName is the scanned project's name.
	ProjectName string `json:"projectName"`

	// Root is the absolute scan root.
	Root string `json:"root"`

	// GeneratedAt is the report timestamp.
	GeneratedAt time.Time `json:"generatedAt"`

	// RuleVersion identifies the pattern tables that produced the
	// findings.
	RuleVersion string `json:"ruleVersion"`

	// Total is len(Vulnerabilities).
	Total int `json:"total"`

	// BySeverity counts findings per severity grade.
	BySeverity map[Severity]int `json:"bySeverity"`

	// ByCategory counts findings per vulnerability class.
	ByCategory map[Category]int `json:"byCategory"`

	// Vulnerabilities holds the surviving findings, ordered by severity
	// then location.
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

// EnhancedSecurityReport is the full funnel output: the base report
// plus the per-stage audit trail.
type EnhancedSecurityReport struct {
	SecurityReport

	// Pipeline records the stage-by-stage narrowing.
	Pipeline PipelineStats `json:"pipeline"`

	// AIValidations maps file:line to the judge's verdict for every
	// finding that was judged, kept or removed.
	AIValidations map[string]ValidationOutcome `json:"aiValidations,omitempty"`

	// ASTFiltered holds the stage-2 removal audit entries.
	ASTFiltered []FilteredVulnerability `json:"astFiltered,omitempty"`

	// AIFiltered holds the stage-3 removal audit entries.
	AIFiltered []FilteredVulnerability `json:"aiFiltered,omitempty"`
}

// buildReport assembles the base report from the surviving findings.
// The findings are sorted in place: severity descending, then file,
// then line, then rule. Ties cannot reorder across runs, so report
// output is deterministic for a given input tree.
func buildReport(runID, projectName, root string, vulns []Vulnerability) SecurityReport {
	sortVulnerabilities(vulns)

	bySeverity := make(map[Severity]int)
	byCategory := make(map[Category]int)
	for i := range vulns {
		bySeverity[vulns[i].Severity]++
		byCategory[vulns[i].Category]++
	}

	return SecurityReport{
		RunID:           runID,
		ProjectName:     projectName,
		Root:            root,
		GeneratedAt:     time.Now().UTC(),
		RuleVersion:     RuleVersion,
		Total:           len(vulns),
		BySeverity:      bySeverity,
		ByCategory:      byCategory,
		Vulnerabilities: vulns,
	}
}

// sortVulnerabilities orders findings for presentation: most severe
// first, then by file, line, and rule.
func sortVulnerabilities(vulns []Vulnerability) {
	sort.SliceStable(vulns, func(i, j int) bool {
		a, b := &vulns[i], &vulns[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.RuleID < b.RuleID
	})
}
