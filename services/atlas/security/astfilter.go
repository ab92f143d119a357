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
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/scanner"
)

// DefaultFilterThreshold is the false-positive confidence at or above
// which stage 2 removes a finding outright.
const DefaultFilterThreshold = 0.85

// DefaultSanitizerWindow is how many lines above a sink the filter
// looks for a sanitizer call.
const DefaultSanitizerWindow = 5

// taintLookback bounds the backward search for a tainted variable's
// declaration during the lightweight trace.
const taintLookback = 40

// ============================================================================
// Stage 2: syntactic/taint filter
// ============================================================================

// ASTFilter is the second stage. It re-reads each flagged line in its
// file context and classifies the obvious false positives: commented
// code, log statements, test fixtures, parameterized queries, and
// sanitized inputs. Whatever it cannot classify gets a lightweight
// taint trace and moves on to external validation.
//
// The filter is deterministic over (finding, file content): running it
// again on its own kept set removes nothing further.
type ASTFilter struct {
	threshold       float64
	sanitizerWindow int
	log             *slog.Logger
}

// FilterResult splits the stage-2 working set.
type FilterResult struct {
	// Kept holds the findings that survived, possibly annotated with a
	// taint trace.
	Kept []Vulnerability

	// Removed holds one audit entry per filtered finding.
	Removed []FilteredVulnerability
}

// NewASTFilter builds a stage-2 filter. Non-positive arguments select
// the defaults; a nil logger selects slog.Default().
func NewASTFilter(threshold float64, sanitizerWindow int, logger *slog.Logger) *ASTFilter {
	if threshold <= 0 {
		threshold = DefaultFilterThreshold
	}
	if sanitizerWindow <= 0 {
		sanitizerWindow = DefaultSanitizerWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ASTFilter{threshold: threshold, sanitizerWindow: sanitizerWindow, log: logger}
}

// Filter classifies every candidate. Findings whose file cannot be
// re-read are kept as-is; cancellation keeps the unexamined remainder.
func (f *ASTFilter) Filter(ctx context.Context, vulns []Vulnerability, rc *runContext) FilterResult {
	var result FilterResult
	commentCache := make(map[string][]bool)

	for i := range vulns {
		if ctx.Err() != nil {
			result.Kept = append(result.Kept, vulns[i:]...)
			break
		}
		v := vulns[i]
		lines, err := rc.fileLines(v.File)
		if err != nil {
			result.Kept = append(result.Kept, v)
			continue
		}
		commented, ok := commentCache[v.File]
		if !ok {
			commented = commentedLines(lines, scanner.DetectLanguage(v.File))
			commentCache[v.File] = commented
		}

		d := f.evaluate(&v, lines, commented)
		if d.falsePositive && d.confidence >= f.threshold {
			f.log.Debug("stage 2 filtered finding",
				"file", v.File, "line", v.Line, "rule", v.RuleID,
				"reason", d.reason, "confidence", d.confidence)
			result.Removed = append(result.Removed, FilteredVulnerability{
				Vulnerability: v,
				Reason:        d.reason,
				Confidence:    d.confidence,
				Method:        FilterMethodAST,
			})
			continue
		}
		if d.trace != nil {
			v.Trace = d.trace
			if d.confirmed {
				v.Confidence = 0.8
			}
		}
		result.Kept = append(result.Kept, v)
	}

	f.log.Info("stage 2 filter complete",
		"candidates", len(vulns),
		"kept", len(result.Kept),
		"removed", len(result.Removed))
	return result
}

// filterDecision is the outcome of examining one finding.
type filterDecision struct {
	falsePositive bool
	reason        string
	confidence    float64
	trace         *TaintTrace
	confirmed     bool
}

// evaluate runs the checks in fixed order; the first one that fires
// decides. The taint trace only runs when nothing else resolved the
// finding.
func (f *ASTFilter) evaluate(v *Vulnerability, lines []string, commented []bool) filterDecision {
	idx := v.Line - 1
	if idx < 0 || idx >= len(lines) {
		// Stale location, cannot re-examine. Keep.
		return filterDecision{}
	}
	line := lines[idx]

	if commented[idx] {
		return filterDecision{falsePositive: true, reason: "commented-out code", confidence: 0.95}
	}
	if isLoggingLine(line) {
		return filterDecision{falsePositive: true, reason: "logging statement", confidence: 0.9}
	}
	if hasSuppressionComment(lines, idx) {
		return filterDecision{falsePositive: true, reason: "suppression comment", confidence: 0.95}
	}
	if IsTestFile(v.File) {
		return filterDecision{falsePositive: true, reason: "test file", confidence: 0.85}
	}
	if v.Category == CategorySQLInjection && isParameterized(lines, idx) {
		return filterDecision{falsePositive: true, reason: "parameterized query", confidence: 0.95}
	}
	if v.Category != CategorySecrets {
		if varName, conf, ok := f.sanitizerNearby(v, lines, idx); ok {
			reason := "sanitizer in preceding lines"
			if varName != "" {
				reason = fmt.Sprintf("sanitizer applied to %s", varName)
			}
			return filterDecision{falsePositive: true, reason: reason, confidence: conf}
		}
	}
	if v.TaintSource != "" {
		trace := traceTaint(lines, idx)
		if trace != nil {
			return filterDecision{
				trace:     trace,
				confirmed: trace.ReachesSink && trace.SanitizedAt == 0,
			}
		}
	}
	return filterDecision{}
}

// ============================================================================
// Check (a): comments and logging
// ============================================================================

// commentedLines marks every line that is part of a comment, using the
// same cheap line and block markers the extractor uses. Trailing
// comments do not mark a line; only lines that start inside or with a
// comment count.
func commentedLines(lines []string, lang scanner.Language) []bool {
	lineMark, blockOpen, blockClose := commentMarkersFor(lang)
	out := make([]bool, len(lines))
	inBlock := false
	for i, raw := range lines {
		t := strings.TrimSpace(raw)
		if inBlock {
			out[i] = true
			if blockClose != "" && strings.Contains(t, blockClose) {
				inBlock = false
			}
			continue
		}
		if lineMark != "" && strings.HasPrefix(t, lineMark) {
			out[i] = true
			continue
		}
		if blockOpen != "" && strings.HasPrefix(t, blockOpen) {
			out[i] = true
			rest := t[len(blockOpen):]
			if blockClose == "" || !strings.Contains(rest, blockClose) {
				inBlock = true
			}
		}
	}
	return out
}

// commentMarkersFor returns the comment delimiters for a language.
// Unknown languages fall back to the C family markers, which covers
// the common cases without claiming precision.
func commentMarkersFor(lang scanner.Language) (line, blockOpen, blockClose string) {
	switch lang {
	case scanner.LanguagePython:
		return "#", `"""`, `"""`
	case scanner.LanguageGo, scanner.LanguageRust, scanner.LanguageJava,
		scanner.LanguageTypeScript, scanner.LanguageJavaScript:
		return "//", "/*", "*/"
	default:
		return "//", "/*", "*/"
	}
}

// loggingNeedles mark output statements. A sink pattern matching
// inside a log string is noise, not a vulnerability.
var loggingNeedles = []string{
	"console.log", "console.error", "console.warn", "console.info",
	"console.debug", "logger.", "log.", "logging.", "slog.",
	"print(", "println", "printf", "fmt.Print", "System.out.print",
	"System.err.print", "println!", "eprintln!",
}

// isLoggingLine reports whether the line is an output statement.
func isLoggingLine(line string) bool {
	for _, n := range loggingNeedles {
		if needleAt(line, n) >= 0 {
			return true
		}
	}
	return false
}

// suppressionMarkers are in-source annotations that tell scanners to
// stand down.
var suppressionMarkers = []string{
	"nosec", "nolint:gosec", "NOSONAR", "security-ignore", "@SuppressWarnings",
}

// hasSuppressionComment reports whether the flagged line or the line
// above it carries a suppression marker.
func hasSuppressionComment(lines []string, idx int) bool {
	check := func(s string) bool {
		for _, m := range suppressionMarkers {
			if strings.Contains(s, m) {
				return true
			}
		}
		return false
	}
	if check(lines[idx]) {
		return true
	}
	return idx > 0 && check(lines[idx-1])
}

// ============================================================================
// Check (b): test files
// ============================================================================

// testPathSegments are directory names that hold test code.
var testPathSegments = []string{
	"/test/", "/tests/", "/__tests__/", "/testdata/", "/spec/", "/__mocks__/",
}

// IsTestFile reports whether a path follows test-file conventions for
// any of the supported languages.
func IsTestFile(path string) bool {
	lower := "/" + strings.ToLower(strings.TrimPrefix(path, "/"))
	for _, seg := range testPathSegments {
		if strings.Contains(lower, seg) {
			return true
		}
	}
	base := lower[strings.LastIndex(lower, "/")+1:]
	if strings.HasPrefix(base, "test_") || base == "conftest.py" {
		return true
	}
	for _, marker := range []string{"_test.", ".test.", ".spec.", "_spec."} {
		if strings.Contains(base, marker) {
			return true
		}
	}
	return false
}

// ============================================================================
// Check (c): parameterized queries
// ============================================================================

// paramMarkerRe matches SQL placeholder styles: positional "?", "$1",
// psycopg "%(name)s", named ":name", and T-SQL "@name" binds.
var paramMarkerRe = regexp.MustCompile(`\?\s*["']?\s*[,)]|\$\d+|%\(\w+\)s|:\w+|@\w+`)

// isParameterized reports whether the sink call at idx uses bind
// placeholders. The next line is included because call arguments
// frequently wrap.
func isParameterized(lines []string, idx int) bool {
	if paramMarkerRe.MatchString(lines[idx]) {
		return true
	}
	return idx+1 < len(lines) && paramMarkerRe.MatchString(lines[idx+1])
}

// ============================================================================
// Check (d): sanitizers
// ============================================================================

// sanitizerNeedles name escaping, encoding, and validation helpers
// across the supported ecosystems. Matched as case-insensitive
// substrings because most appear as prefixes (sanitizeHtml,
// validateInput, escapeShellArg).
var sanitizerNeedles = []string{
	"sanitize", "escape", "encodeuricomponent", "encodeuri",
	"htmlspecialchars", "htmlentities", "dompurify",
	"shlex.quote", "strip_tags", "secure_filename", "filepath.clean",
	"path.normalize", "quote_ident", "parameterize", "validate",
}

// hasSanitizer reports whether the lowercased line mentions any
// sanitizer.
func hasSanitizer(lower string) bool {
	for _, s := range sanitizerNeedles {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// identRe extracts candidate variable names from a call's argument
// text.
var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// identStoplist drops keywords and literals that identRe picks up but
// that can never name a sanitized variable.
var identStoplist = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "return": true,
	"const": true, "let": true, "var": true, "new": true, "await": true,
	"async": true, "function": true, "true": true, "false": true,
	"null": true, "nil": true, "none": true, "this": true, "self": true,
}

// sanitizerNearby looks for a sanitizer call in the window above the
// sink. A sanitizer that mentions one of the sink's argument variables
// scores 0.85; a sanitizer with no shared variable scores 0.8, which
// stays below the default removal threshold.
func (f *ASTFilter) sanitizerNearby(v *Vulnerability, lines []string, idx int) (string, float64, bool) {
	argText := lines[idx]
	if v.Column > 0 && v.Column-1 < len(argText) {
		argText = argText[v.Column-1:]
	}
	var sinkVars []string
	for _, id := range identRe.FindAllString(argText, -1) {
		if len(id) >= 2 && !identStoplist[strings.ToLower(id)] {
			sinkVars = append(sinkVars, id)
		}
	}

	start := idx - f.sanitizerWindow
	if start < 0 {
		start = 0
	}
	sawSanitizer := false
	for j := start; j < idx; j++ {
		if !hasSanitizer(strings.ToLower(lines[j])) {
			continue
		}
		sawSanitizer = true
		for _, sv := range sinkVars {
			if needleAt(lines[j], sv) >= 0 {
				return sv, 0.85, true
			}
		}
	}
	if sawSanitizer {
		return "", 0.8, true
	}
	return "", 0, false
}

// ============================================================================
// Check (e): lightweight taint trace
// ============================================================================

// assignRe captures "name = ..." and "name := ..." declarations.
var assignRe = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*:?=[^=]`)

// traceTaint walks backwards from the sink for the tainted variable's
// declaration, then forward for a sanitization point and usages. When
// the sink line itself reads the taint source directly, the trace is a
// single confirmed step.
func traceTaint(lines []string, idx int) *TaintTrace {
	sinkLine := lines[idx]

	// Direct use: the taint marker sits in the sink call itself.
	if src, ok := matchTaint(sinkLine); ok {
		return &TaintTrace{
			Variable:    src.Needle,
			DeclaredAt:  idx + 1,
			ReachesSink: true,
		}
	}

	// Otherwise find the nearest prior line that assigns from a taint
	// source.
	start := idx - taintLookback
	if start < 0 {
		start = 0
	}
	declLine := -1
	varName := ""
	for j := idx - 1; j >= start; j-- {
		if _, ok := matchTaint(lines[j]); !ok {
			continue
		}
		m := assignRe.FindStringSubmatch(lines[j])
		if m == nil {
			continue
		}
		declLine = j
		varName = m[1]
		break
	}
	if declLine < 0 {
		return nil
	}

	trace := &TaintTrace{Variable: varName, DeclaredAt: declLine + 1}
	for j := declLine + 1; j <= idx; j++ {
		if needleAt(lines[j], varName) < 0 {
			continue
		}
		trace.Usages = append(trace.Usages, j+1)
		if trace.SanitizedAt == 0 && j < idx && hasSanitizer(strings.ToLower(lines[j])) {
			trace.SanitizedAt = j + 1
		}
	}
	trace.ReachesSink = needleAt(sinkLine, varName) >= 0
	return trace
}
