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
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/scanner"
)

// DefaultTaintWindow is how many lines above a sink a taint source
// still counts as adjacent.
const DefaultTaintWindow = 3

// maxScanLineLen caps the line length the scanner will inspect.
// Longer lines are almost always minified or generated output.
const maxScanLineLen = 2000

// ============================================================================
// Per-run file cache
// ============================================================================

// runContext carries the per-run file-content cache shared by the
// pipeline stages. A fresh context is created for every run; nothing
// survives between runs.
type runContext struct {
	root   string
	lines  map[string][]string
	failed map[string]error
}

func newRunContext(root string) *runContext {
	return &runContext{
		root:   root,
		lines:  make(map[string][]string),
		failed: make(map[string]error),
	}
}

// fileLines returns the cached lines of the file at the given
// root-relative path, reading it on first use. Read failures are
// remembered so a bad file costs one syscall, not one per stage.
func (rc *runContext) fileLines(rel string) ([]string, error) {
	if ls, ok := rc.lines[rel]; ok {
		return ls, nil
	}
	if err, ok := rc.failed[rel]; ok {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(rc.root, filepath.FromSlash(rel)))
	if err != nil {
		rc.failed[rel] = err
		return nil, err
	}
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	ls := strings.Split(text, "\n")
	rc.lines[rel] = ls
	return ls, nil
}

// ============================================================================
// Stage 1: base scanner
// ============================================================================

// BaseScanner is the high-recall first stage. It walks every scanned
// file line by line, tags taint sources, and emits one finding per
// sink-rule match plus one per secret-rule match. Precision is the
// later stages' problem.
type BaseScanner struct {
	taintWindow int
	log         *slog.Logger
}

// NewBaseScanner builds a stage-1 scanner. A non-positive taintWindow
// selects DefaultTaintWindow; a nil logger selects slog.Default().
func NewBaseScanner(taintWindow int, logger *slog.Logger) *BaseScanner {
	if taintWindow <= 0 {
		taintWindow = DefaultTaintWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BaseScanner{taintWindow: taintWindow, log: logger}
}

// Scan runs the base patterns over every file in the scan result.
// Unreadable files are skipped and the walk continues; cancellation
// stops the walk and returns what was found so far.
func (s *BaseScanner) Scan(ctx context.Context, scan *scanner.ScanResult, rc *runContext) []Vulnerability {
	var found []Vulnerability
	for _, fi := range scan.Files {
		if fi == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		lines, err := rc.fileLines(fi.Path)
		if err != nil {
			s.log.Debug("base scan skipping unreadable file",
				"file", fi.Path, "error", err)
			continue
		}
		found = append(found, s.scanFile(fi.Path, lines)...)
	}
	s.log.Info("base scan complete",
		"files", len(scan.Files), "findings", len(found))
	return found
}

// scanFile applies the sink and secret tables to one file's lines.
func (s *BaseScanner) scanFile(path string, lines []string) []Vulnerability {
	var out []Vulnerability
	lastTaint := -1
	var lastTag TaintTag

	for i, line := range lines {
		if len(line) > maxScanLineLen {
			continue
		}
		if src, ok := matchTaint(line); ok {
			lastTaint = i
			lastTag = src.Tag
		}
		taintNear := lastTaint >= 0 && i-lastTaint <= s.taintWindow

		for r := range sinkRules {
			rule := &sinkRules[r]
			if rule.RequiresTaint && !taintNear {
				continue
			}
			col := rule.match(line)
			if col < 0 {
				continue
			}
			v := Vulnerability{
				ID:          uuid.NewString(),
				RuleID:      rule.ID,
				Title:       rule.Title,
				Description: rule.Description,
				Severity:    rule.Severity,
				Category:    rule.Category,
				File:        path,
				Line:        i + 1,
				Column:      col + 1,
				Snippet:     snippet(line),
				CWE:         rule.CWE,
				OWASP:       rule.OWASP,
				Confidence:  rule.BaseConfidence,
				Remediation: rule.Remediation,
			}
			if taintNear {
				v.TaintSource = string(lastTag)
			}
			out = append(out, v)
		}

		for _, hit := range matchSecrets(line) {
			masked := strings.Replace(line, hit.secret, maskSecret(hit.secret), 1)
			out = append(out, Vulnerability{
				ID:          uuid.NewString(),
				RuleID:      hit.rule.ID,
				Title:       hit.rule.Title,
				Description: hit.rule.Description,
				Severity:    hit.rule.Severity,
				Category:    CategorySecrets,
				File:        path,
				Line:        i + 1,
				Column:      hit.index + 1,
				Snippet:     snippet(masked),
				CWE:         hit.rule.CWE,
				OWASP:       hit.rule.OWASP,
				Confidence:  hit.rule.BaseConfidence,
				Remediation: "Move the credential to a secret store or environment variable.",
			})
		}
	}
	return out
}

// snippet trims and bounds a source line for inclusion in a finding.
func snippet(line string) string {
	t := strings.TrimSpace(line)
	if len(t) > 200 {
		t = t[:200] + "..."
	}
	return t
}
