// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package security implements the three-stage vulnerability funnel: a
// high-recall pattern scan over raw source lines, a syntactic/taint
// filter that discards the obvious false positives, and an optional
// external validation pass over whatever survives.
//
// Findings are created once by the base scanner and only ever removed
// from the working set by later stages; every removal is recorded with
// its reason and method so the funnel stays auditable end to end.
package security

import (
	"errors"
	"fmt"
)

// ============================================================================
// Errors
// ============================================================================

var (
	// ErrJudgeUnavailable reports that the external judge failed its
	// availability probe. Callers treat this as a fallback signal, not
	// a failure.
	ErrJudgeUnavailable = errors.New("security: external judge unavailable")

	// ErrMalformedVerdict reports a judge response with no extractable
	// JSON verdict. The affected item is kept.
	ErrMalformedVerdict = errors.New("security: malformed judge verdict")
)

// ============================================================================
// Severity
// ============================================================================

// Severity grades a vulnerability finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Rank orders severities for comparison; higher is worse. Unknown
// values rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	case SeverityInfo:
		return 0
	default:
		return -1
	}
}

// AtLeast reports whether s is as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// ============================================================================
// Category
// ============================================================================

// Category tags the vulnerability class a finding belongs to. Values
// follow the sink taxonomy: each sink rule maps to exactly one.
type Category string

const (
	CategorySQLInjection     Category = "sql_injection"
	CategoryCommandInjection Category = "command_injection"
	CategoryXSS              Category = "xss"
	CategoryCodeInjection    Category = "code_injection"
	CategoryPathTraversal    Category = "path_traversal"
	CategorySSRF             Category = "ssrf"
	CategoryDeserialization  Category = "deserialization"
	CategorySecrets          Category = "secrets"
)

// ============================================================================
// Vulnerability
// ============================================================================

// Vulnerability is one finding produced by the base scanner.
//
// The identifying fields (rule, title, severity, category, location)
// are fixed at creation. Later stages annotate copies with confidence,
// taint traces, or a needs-review mark; they never rewrite a finding,
// only drop it from the working set.
type Vulnerability struct {
	// ID uniquely identifies this finding within its run.
	ID string `json:"id"`

	// RuleID names the pattern that fired (e.g. "SEC-020").
	RuleID string `json:"ruleId"`

	// Title is a short human-readable finding name.
	Title string `json:"title"`

	// Description explains what the pattern detects.
	Description string `json:"description,omitempty"`

	// Severity grades the finding.
	Severity Severity `json:"severity"`

	// Category tags the vulnerability class.
	Category Category `json:"category"`

	// File is the path relative to the scan root.
	File string `json:"file"`

	// Line is the 1-indexed flagged line.
	Line int `json:"line"`

	// Column is the 1-indexed match start within the line, when known.
	Column int `json:"column,omitempty"`

	// EndLine bounds multi-line findings, when known.
	EndLine int `json:"endLine,omitempty"`

	// Snippet is the flagged source line, trimmed. Secret values are
	// masked before the snippet is recorded.
	Snippet string `json:"snippet,omitempty"`

	// CWE is the Common Weakness Enumeration tag (e.g. "CWE-89").
	CWE string `json:"cwe,omitempty"`

	// OWASP is the OWASP Top 10 2021 tag (e.g. "A03:2021").
	OWASP string `json:"owasp,omitempty"`

	// Confidence is the current stage's confidence that the finding is
	// real, in [0,1]. Zero means no stage has scored it yet.
	Confidence float64 `json:"confidence,omitempty"`

	// TaintSource is the tag of the taint source found adjacent to the
	// sink, empty for unconditional sinks.
	TaintSource string `json:"taintSource,omitempty"`

	// Trace is the stage-2 taint trace, when one was performed.
	Trace *TaintTrace `json:"trace,omitempty"`

	// NeedsReview marks findings the external stage could not judge,
	// either past the cost cap or after a non-committal verdict.
	NeedsReview bool `json:"needsReview,omitempty"`

	// Remediation suggests a fix, when the rule carries one.
	Remediation string `json:"remediation,omitempty"`
}

// Key returns the file:line identity used to join findings with their
// validation outcomes.
func (v *Vulnerability) Key() string {
	return fmt.Sprintf("%s:%d", v.File, v.Line)
}

// ============================================================================
// Taint trace
// ============================================================================

// TaintTrace records the lightweight declaration-to-sink walk the
// stage-2 filter performs when no cheaper check resolves a finding.
type TaintTrace struct {
	// Variable is the traced identifier.
	Variable string `json:"variable"`

	// DeclaredAt is the line where the variable picks up taint.
	DeclaredAt int `json:"declaredAt"`

	// SanitizedAt is the line of the first sanitizer applied to the
	// variable after declaration, 0 when none was found.
	SanitizedAt int `json:"sanitizedAt,omitempty"`

	// Usages lists lines where the variable appears between its
	// declaration and the sink.
	Usages []int `json:"usages,omitempty"`

	// ReachesSink is true when the variable arrives at the flagged
	// sink with no sanitization recorded.
	ReachesSink bool `json:"reachesSink"`
}

// ============================================================================
// Filter audit
// ============================================================================

// FilterMethod names the stage that removed a finding.
type FilterMethod string

const (
	// FilterMethodAST marks removals by the syntactic/taint filter.
	FilterMethodAST FilterMethod = "ast"

	// FilterMethodAI marks removals by the external validation stage.
	FilterMethodAI FilterMethod = "ai"
)

// FilteredVulnerability is one audit entry for a removed finding.
type FilteredVulnerability struct {
	// Vulnerability is the removed finding, as it stood at removal.
	Vulnerability Vulnerability `json:"vulnerability"`

	// Reason is the specific removal reason (e.g. "parameterized
	// query", "test file").
	Reason string `json:"reason"`

	// Confidence is the false-positive confidence that justified the
	// removal.
	Confidence float64 `json:"confidence"`

	// Method names the removing stage.
	Method FilterMethod `json:"method"`
}
