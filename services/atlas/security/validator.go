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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/scanner"
	"github.com/AleutianAI/AleutianAtlas/services/llm"
)

// Stage-3 defaults. The cost cap keeps a pathological scan from
// turning into an unbounded bill.
const (
	DefaultMaxVulnsForAIValidation = 50
	DefaultValidationBatchSize     = 5
	DefaultBatchDelay              = 2 * time.Second
	DefaultRequestTimeout          = 45 * time.Second
	DefaultContextLines            = 10
	DefaultAIRemoveThreshold       = 0.80
)

// ============================================================================
// Verdicts
// ============================================================================

// Verdict is the judge's classification of one finding.
type Verdict string

const (
	VerdictTruePositive  Verdict = "TRUE_POSITIVE"
	VerdictFalsePositive Verdict = "FALSE_POSITIVE"
	VerdictNeedsReview   Verdict = "NEEDS_REVIEW"
)

// ValidationOutcome is one parsed judge response.
type ValidationOutcome struct {
	// Verdict is the judge's classification.
	Verdict Verdict `json:"verdict"`

	// Confidence is the judge's self-reported confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// Reasoning is the judge's one-line justification.
	Reasoning string `json:"reasoning,omitempty"`
}

// ============================================================================
// Stage 3: external validation
// ============================================================================

// ValidatorOptions tunes the external validation stage.
type ValidatorOptions struct {
	// MaxVulns caps how many findings are sent for judgment per run;
	// the remainder is marked for manual review.
	MaxVulns int

	// BatchSize is how many judge requests run concurrently.
	BatchSize int

	// BatchDelay is the pause enforced between batches.
	BatchDelay time.Duration

	// RequestTimeout bounds one judge request; on expiry that finding
	// is kept unjudged.
	RequestTimeout time.Duration

	// ContextLines is the radius of surrounding source included in
	// each prompt.
	ContextLines int

	// RemoveThreshold is the minimum false-positive confidence at
	// which a finding is actually removed.
	RemoveThreshold float64
}

// DefaultValidatorOptions returns the stage-3 defaults.
func DefaultValidatorOptions() ValidatorOptions {
	return ValidatorOptions{
		MaxVulns:        DefaultMaxVulnsForAIValidation,
		BatchSize:       DefaultValidationBatchSize,
		BatchDelay:      DefaultBatchDelay,
		RequestTimeout:  DefaultRequestTimeout,
		ContextLines:    DefaultContextLines,
		RemoveThreshold: DefaultAIRemoveThreshold,
	}
}

// AIValidator is the third stage. It sends each surviving finding,
// wrapped in its function body and import context, to an external
// judge and reconciles the verdicts. Every failure path keeps the
// finding: the stage fails open on removal.
type AIValidator struct {
	client llm.LLMClient
	opts   ValidatorOptions
	log    *slog.Logger
}

// NewAIValidator builds a stage-3 validator. A nil client disables
// judging; zero option fields take their defaults.
func NewAIValidator(client llm.LLMClient, opts ValidatorOptions, logger *slog.Logger) *AIValidator {
	if opts.MaxVulns <= 0 {
		opts.MaxVulns = DefaultMaxVulnsForAIValidation
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultValidationBatchSize
	}
	if opts.BatchDelay <= 0 {
		opts.BatchDelay = DefaultBatchDelay
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.ContextLines <= 0 {
		opts.ContextLines = DefaultContextLines
	}
	if opts.RemoveThreshold <= 0 {
		opts.RemoveThreshold = DefaultAIRemoveThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AIValidator{client: client, opts: opts, log: logger}
}

// ValidationResult is the stage-3 outcome.
type ValidationResult struct {
	// Kept holds the findings that survived, in input order.
	Kept []Vulnerability

	// Removed holds one audit entry per judged-away finding.
	Removed []FilteredVulnerability

	// Outcomes maps file:line to the parsed verdict for every finding
	// the judge answered.
	Outcomes map[string]ValidationOutcome

	// JudgeAvailable records the availability probe result.
	JudgeAvailable bool

	// Validated counts findings with a parsed verdict.
	Validated int

	// ConfirmedTruePositives counts TRUE_POSITIVE verdicts.
	ConfirmedTruePositives int

	// NeedsReview counts findings past the cap, with non-committal
	// verdicts, or whose requests failed.
	NeedsReview int
}

// Validate judges the candidates. With no client or an unavailable
// judge the stage degrades to a pass-through; that is the designed
// fallback, not an error.
func (v *AIValidator) Validate(ctx context.Context, vulns []Vulnerability, scan *scanner.ScanResult, rc *runContext) ValidationResult {
	result := ValidationResult{Outcomes: make(map[string]ValidationOutcome)}
	if len(vulns) == 0 {
		return result
	}

	if v.client == nil || !v.client.Available(ctx) {
		v.log.Warn("external judge unavailable, keeping all findings",
			"candidates", len(vulns))
		result.Kept = append(result.Kept, vulns...)
		return result
	}
	result.JudgeAvailable = true

	capN := min(v.opts.MaxVulns, len(vulns))
	head, tail := vulns[:capN], vulns[capN:]

	files := make(map[string]*scanner.FileInfo, len(scan.Files))
	for _, fi := range scan.Files {
		if fi != nil {
			files[fi.Path] = fi
		}
	}

	outcomes := make([]*ValidationOutcome, len(head))
	limiter := rate.NewLimiter(rate.Every(v.opts.BatchDelay), 1)
	for batchStart := 0; batchStart < len(head); batchStart += v.opts.BatchSize {
		if err := limiter.Wait(ctx); err != nil {
			v.log.Warn("validation cancelled, keeping remaining findings",
				"remaining", len(head)-batchStart)
			break
		}
		batchEnd := min(batchStart+v.opts.BatchSize, len(head))
		var g errgroup.Group
		for i := batchStart; i < batchEnd; i++ {
			g.Go(func() error {
				outcomes[i] = v.judgeOne(ctx, &head[i], files[head[i].File], rc)
				return nil
			})
		}
		_ = g.Wait()
	}

	for i := range head {
		item := head[i]
		outcome := outcomes[i]
		if outcome == nil {
			item.NeedsReview = true
			result.NeedsReview++
			result.Kept = append(result.Kept, item)
			continue
		}
		result.Outcomes[item.Key()] = *outcome
		result.Validated++

		switch outcome.Verdict {
		case VerdictFalsePositive:
			if outcome.Confidence >= v.opts.RemoveThreshold {
				reason := outcome.Reasoning
				if reason == "" {
					reason = "judged false positive"
				}
				result.Removed = append(result.Removed, FilteredVulnerability{
					Vulnerability: item,
					Reason:        reason,
					Confidence:    outcome.Confidence,
					Method:        FilterMethodAI,
				})
				continue
			}
			result.Kept = append(result.Kept, item)
		case VerdictTruePositive:
			result.ConfirmedTruePositives++
			if outcome.Confidence > item.Confidence {
				item.Confidence = outcome.Confidence
			}
			result.Kept = append(result.Kept, item)
		default:
			item.NeedsReview = true
			result.NeedsReview++
			result.Kept = append(result.Kept, item)
		}
	}

	for _, item := range tail {
		item.NeedsReview = true
		result.NeedsReview++
		result.Kept = append(result.Kept, item)
	}

	v.log.Info("stage 3 validation complete",
		"candidates", len(vulns),
		"validated", result.Validated,
		"confirmed", result.ConfirmedTruePositives,
		"removed", len(result.Removed),
		"needs_review", result.NeedsReview)
	return result
}

// judgeOne sends one finding to the judge. Any failure, timeout, or
// unparseable response returns nil and the caller keeps the finding.
func (v *AIValidator) judgeOne(ctx context.Context, item *Vulnerability, fi *scanner.FileInfo, rc *runContext) *ValidationOutcome {
	reqCtx, cancel := context.WithTimeout(ctx, v.opts.RequestTimeout)
	defer cancel()

	prompt := v.buildPrompt(item, fi, rc)
	temp := float32(0.1)
	maxTokens := 1024
	raw, err := v.client.Generate(reqCtx, prompt, llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		v.log.Debug("judge request failed, keeping finding",
			"file", item.File, "line", item.Line, "error", err)
		return nil
	}
	outcome, ok := parseVerdict(raw)
	if !ok {
		v.log.Debug("malformed judge verdict, keeping finding",
			"file", item.File, "line", item.Line)
		return nil
	}
	return &outcome
}

// maxFunctionLines caps how much of an enclosing function body goes
// into a prompt.
const maxFunctionLines = 80

// buildPrompt assembles the judge context: finding metadata, the
// file's imports, the full enclosing function body, and the
// surrounding lines with the flagged one marked.
func (v *AIValidator) buildPrompt(item *Vulnerability, fi *scanner.FileInfo, rc *runContext) string {
	var b strings.Builder
	b.WriteString("You are a security analyst reviewing one static-analysis finding.\n\n")
	fmt.Fprintf(&b, "Finding: %s (%s, severity %s, category %s)\n",
		item.Title, item.RuleID, item.Severity, item.Category)
	fmt.Fprintf(&b, "Location: %s:%d\n", item.File, item.Line)
	if item.Description != "" {
		fmt.Fprintf(&b, "Rule: %s\n", item.Description)
	}
	if item.TaintSource != "" {
		fmt.Fprintf(&b, "Taint source: %s\n", item.TaintSource)
	}

	lines, err := rc.fileLines(item.File)
	if err != nil {
		fmt.Fprintf(&b, "\nFlagged line:\n%s\n", item.Snippet)
		b.WriteString(verdictInstructions)
		return b.String()
	}

	if fi != nil && len(fi.Imports) > 0 {
		b.WriteString("\nFile imports:\n")
		for _, imp := range fi.Imports {
			fmt.Fprintf(&b, "  %s\n", imp.Path)
		}
	}

	if fn := enclosingFunction(fi, item.Line); fn != nil {
		fmt.Fprintf(&b, "\nEnclosing function (%s):\n", fn.Name)
		start := fn.StartLine - 1
		end := min(fn.EndLine, start+maxFunctionLines)
		for i := start; i < end && i < len(lines); i++ {
			fmt.Fprintf(&b, "%s\n", lines[i])
		}
		if fn.EndLine > end {
			b.WriteString("...\n")
		}
	}

	b.WriteString("\nSurrounding code:\n")
	from := max(0, item.Line-1-v.opts.ContextLines)
	to := min(len(lines), item.Line+v.opts.ContextLines)
	for i := from; i < to; i++ {
		marker := "   "
		if i == item.Line-1 {
			marker = ">>>"
		}
		fmt.Fprintf(&b, "%s %4d | %s\n", marker, i+1, lines[i])
	}

	b.WriteString(verdictInstructions)
	return b.String()
}

const verdictInstructions = "\nIs this a real, exploitable vulnerability? Respond with only a JSON object:\n" +
	`{"verdict": "TRUE_POSITIVE" | "FALSE_POSITIVE" | "NEEDS_REVIEW", "confidence": 0.0-1.0, "reasoning": "<one sentence>"}` + "\n"

// enclosingFunction returns the innermost extracted function whose
// span contains the line, or nil.
func enclosingFunction(fi *scanner.FileInfo, line int) *scanner.FunctionInfo {
	if fi == nil {
		return nil
	}
	var best *scanner.FunctionInfo
	for i := range fi.Functions {
		fn := &fi.Functions[i]
		if fn.StartLine <= line && line <= fn.EndLine {
			if best == nil || fn.StartLine > best.StartLine {
				best = fn
			}
		}
	}
	return best
}

// ============================================================================
// Verdict parsing
// ============================================================================

// parseVerdict extracts and decodes the first balanced JSON object in
// a judge response. Free text around the object is tolerated; a
// response with no decodable object is treated as unavailable.
func parseVerdict(raw string) (ValidationOutcome, bool) {
	obj, ok := extractJSONObject(raw)
	if !ok {
		return ValidationOutcome{}, false
	}
	var payload struct {
		Verdict    string  `json:"verdict"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return ValidationOutcome{}, false
	}
	verdict := normalizeVerdict(payload.Verdict)
	if verdict == "" {
		return ValidationOutcome{}, false
	}
	conf := payload.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return ValidationOutcome{Verdict: verdict, Confidence: conf, Reasoning: payload.Reasoning}, true
}

// normalizeVerdict maps spelling variants onto the three verdicts.
func normalizeVerdict(s string) Verdict {
	up := strings.ToUpper(strings.TrimSpace(s))
	up = strings.ReplaceAll(up, " ", "_")
	up = strings.ReplaceAll(up, "-", "_")
	switch up {
	case "TRUE_POSITIVE", "TP":
		return VerdictTruePositive
	case "FALSE_POSITIVE", "FP":
		return VerdictFalsePositive
	case "NEEDS_REVIEW", "UNSURE", "UNKNOWN", "UNCERTAIN":
		return VerdictNeedsReview
	default:
		return ""
	}
}

// extractJSONObject returns the first balanced top-level JSON object
// in s, honoring string literals and escapes.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
