// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package architecture

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianAtlas/services/llm"
)

// Layer assignment weights. A matched alias counts more than a matched
// name pattern because folder conventions are the stronger signal.
const (
	layerAliasWeight   = 50.0
	layerPatternWeight = 30.0
	layerScoreCap      = 100.0
)

const (
	// DefaultMinLayerConfidence is the layer confidence below which a
	// file becomes eligible for external re-classification.
	DefaultMinLayerConfidence = 50.0

	// DefaultClassifyBatchSize is how many files go into one external
	// re-classification request.
	DefaultClassifyBatchSize = 20

	// DefaultClassifyTimeout bounds one external batch request.
	DefaultClassifyTimeout = 60 * time.Second
)

// External classification is advisory: its confidence is blended with
// the heuristic score rather than replacing it. The ratio is deliberate
// and differs from the detector's.
const (
	classifierBlendExternal  = 0.60
	classifierBlendHeuristic = 0.40
)

// =============================================================================
// Layer assignment
// =============================================================================

// layerScore rates how well a path matches one layer. Each matched
// alias adds 50, each matched pattern adds 30, capped at 100.
func layerScore(l *Layer, path string) float64 {
	slashed := "/" + strings.ToLower(path)
	score := 0.0
	for _, alias := range l.Aliases {
		if strings.Contains(slashed, "/"+alias+"/") {
			score += layerAliasWeight
		}
	}
	for _, re := range l.Patterns {
		if re.MatchString(path) {
			score += layerPatternWeight
		}
	}
	return min(score, layerScoreCap)
}

// layerForFile picks the best-scoring layer of a pattern for a path.
// Ties keep the earlier (outer) layer. A zero score means no layer.
func layerForFile(p *ArchitecturePattern, path string) (string, float64) {
	best := ""
	bestScore := 0.0
	for i := range p.Layers {
		if s := layerScore(&p.Layers[i], path); s > bestScore {
			best = p.Layers[i].Name
			bestScore = s
		}
	}
	return best, bestScore
}

// =============================================================================
// Role assignment
// =============================================================================

// roleRule pairs a role with the path regex that detects it.
type roleRule struct {
	role    Role
	pattern *regexp.Regexp
}

// roleRules is evaluated in order; the first match wins. Specific
// conventions come before generic ones so that a UserService.test.ts
// lands on test, a ServiceFactory on factory, and a CommandHandler on
// command rather than handler.
var roleRules = []roleRule{
	{RoleTest, regexp.MustCompile(`(?i)(^|/)(tests?|__tests__|spec)(/)|[._-](test|spec)\.[a-z]+$|_test\.[a-z]+$|(^|/)test_[^/]+\.[a-z]+$`)},
	{RoleConfig, regexp.MustCompile(`(?i)(^|/)(configs?|settings)(/|\.)|[._-]config\.[a-z]+$`)},
	{RoleMiddleware, regexp.MustCompile(`(?i)middlewares?`)},
	{RoleValidator, regexp.MustCompile(`(?i)validat(e|or|ors|ion)`)},
	{RoleMapper, regexp.MustCompile(`(?i)mappers?[./_-]`)},
	{RoleDTO, regexp.MustCompile(`(?i)(^|/)dtos?(/|\.)|dtos?\.[a-z]+$`)},
	{RoleFactory, regexp.MustCompile(`(?i)factor(y|ies)`)},
	{RolePort, regexp.MustCompile(`(?i)(^|/)ports?(/|\.)|[._-]ports?\.`)},
	{RoleRepository, regexp.MustCompile(`(?i)repositor(y|ies)|(^|/)dao(/|\.)|[._-]dao\.`)},
	{RoleUseCase, regexp.MustCompile(`(?i)use[-_]?cases?|interactors?`)},
	{RoleAggregate, regexp.MustCompile(`(?i)aggregates?`)},
	{RoleValueObject, regexp.MustCompile(`(?i)value[-_]?objects?|(^|/)vo(/|\.)`)},
	{RoleAdapter, regexp.MustCompile(`(?i)adapters?`)},
	{RoleCommand, regexp.MustCompile(`(?i)commands?[./_-]|command_?handlers?`)},
	{RoleQuery, regexp.MustCompile(`(?i)quer(y|ies)[./_-]|query_?handlers?`)},
	{RoleEvent, regexp.MustCompile(`(?i)events?[./_-]|event_?(handler|listener|subscriber)s?`)},
	{RoleController, regexp.MustCompile(`(?i)controllers?`)},
	{RoleHandler, regexp.MustCompile(`(?i)handlers?`)},
	{RoleEntity, regexp.MustCompile(`(?i)entit(y|ies)|(^|/)models?(/|\.)|[._-]model\.`)},
	{RoleService, regexp.MustCompile(`(?i)services?`)},
	{RoleComponent, regexp.MustCompile(`(?i)components?`)},
	{RoleView, regexp.MustCompile(`(?i)(^|/)views?(/|\.)|[._-]view\.|(^|/)(pages|templates|screens)(/)`)},
	{RoleStore, regexp.MustCompile(`(?i)(^|/)stores?(/|\.)|[._-]stores?\.`)},
	{RoleHook, regexp.MustCompile(`(?i)(^|/)hooks?(/|\.)|(^|/)use[A-Z][A-Za-z0-9]*\.(ts|tsx|js|jsx)$`)},
	{RoleUtil, regexp.MustCompile(`(?i)(^|/)utils?(/|\.)|[._-]utils?\.`)},
	{RoleHelper, regexp.MustCompile(`(?i)helpers?`)},
	{RoleConstant, regexp.MustCompile(`(?i)constants?`)},
	{RoleType, regexp.MustCompile(`(?i)(^|/)types?(/|\.)|[._-]types?\.|\.d\.ts$`)},
}

// roleForPath resolves a file's functional role. Returns RoleUnknown
// when no rule matches.
func roleForPath(path string) Role {
	for _, r := range roleRules {
		if r.pattern.MatchString(path) {
			return r.role
		}
	}
	return RoleUnknown
}

// knownRoles indexes the role vocabulary for external-response
// validation.
var knownRoles = func() map[Role]bool {
	m := make(map[Role]bool, len(roleRules)+1)
	for _, r := range roleRules {
		m[r.role] = true
	}
	m[RoleUnknown] = true
	return m
}()

// normalizeRole maps free-text role spellings onto the closed role
// vocabulary. Returns RoleUnknown for anything outside it.
func normalizeRole(s string) Role {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")
	switch s {
	case "valueobject":
		s = "value-object"
	case "use-case", "usecases":
		s = "usecase"
	}
	r := Role(s)
	if knownRoles[r] {
		return r
	}
	return RoleUnknown
}

// =============================================================================
// Classifier
// =============================================================================

// ClassifierOptions tunes a classification pass.
type ClassifierOptions struct {
	// MinLayerConfidence is the eligibility threshold for external
	// re-classification.
	MinLayerConfidence float64

	// BatchSize is the number of files per external request.
	BatchSize int

	// RequestTimeout bounds one external request.
	RequestTimeout time.Duration
}

// DefaultClassifierOptions returns the default tuning.
func DefaultClassifierOptions() ClassifierOptions {
	return ClassifierOptions{
		MinLayerConfidence: DefaultMinLayerConfidence,
		BatchSize:          DefaultClassifyBatchSize,
		RequestTimeout:     DefaultClassifyTimeout,
	}
}

// Classifier assigns each scanned file a layer from one pattern and a
// functional role from the shared role table.
//
// The external client is optional. When present and available,
// low-confidence files are re-classified in batches and the external
// confidence is blended with the heuristic one; when absent the
// heuristic result stands alone.
type Classifier struct {
	pattern *ArchitecturePattern
	client  llm.LLMClient
	opts    ClassifierOptions
	log     *slog.Logger
}

// NewClassifier creates a Classifier for one detected pattern. The
// pattern may be nil, in which case only roles are assigned. A nil
// logger falls back to slog.Default().
func NewClassifier(pattern *ArchitecturePattern, client llm.LLMClient, opts ClassifierOptions, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MinLayerConfidence <= 0 {
		opts.MinLayerConfidence = DefaultMinLayerConfidence
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultClassifyBatchSize
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultClassifyTimeout
	}
	return &Classifier{pattern: pattern, client: client, opts: opts, log: logger}
}

// Classify assigns layers and roles to every file of a scan.
func (c *Classifier) Classify(ctx context.Context, paths []string) ClassificationResult {
	result := ClassificationResult{
		ByLayer: make(map[string][]string),
		ByRole:  make(map[Role][]string),
	}
	if c.pattern != nil {
		result.Pattern = c.pattern.Name
	}

	files := make([]ClassifiedFile, 0, len(paths))
	var eligible []int
	for _, p := range paths {
		cf := ClassifiedFile{Path: p, Role: roleForPath(p)}
		if c.pattern != nil {
			cf.Layer, cf.Confidence = layerForFile(c.pattern, p)
		}
		if cf.Role == RoleUnknown || cf.Confidence < c.opts.MinLayerConfidence {
			eligible = append(eligible, len(files))
		}
		files = append(files, cf)
	}
	result.Stats.LowConfidence = len(eligible)

	if c.client != nil && len(eligible) > 0 {
		if c.client.Available(ctx) {
			result.Stats.Reclassified = c.reclassify(ctx, files, eligible)
		} else {
			c.log.Warn("external classifier unavailable, keeping heuristic classification",
				"eligible", len(eligible))
		}
	}

	for i := range files {
		cf := &files[i]
		if cf.Layer != "" {
			result.ByLayer[cf.Layer] = append(result.ByLayer[cf.Layer], cf.Path)
			result.Stats.WithLayer++
		}
		result.ByRole[cf.Role] = append(result.ByRole[cf.Role], cf.Path)
		if cf.Role != RoleUnknown {
			result.Stats.WithRole++
		}
	}
	result.Files = files
	result.Stats.TotalFiles = len(files)
	return result
}

// externalFileClass is one entry of the external classifier's JSON
// response.
type externalFileClass struct {
	Path       string  `json:"path"`
	Layer      string  `json:"layer"`
	Role       string  `json:"role"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// reclassify sends eligible files to the external classifier in
// batches and merges what comes back. Returns the number of files the
// external answer actually updated. Malformed or missing entries leave
// the heuristic result untouched.
func (c *Classifier) reclassify(ctx context.Context, files []ClassifiedFile, eligible []int) int {
	byPath := make(map[string]int, len(eligible))
	for _, idx := range eligible {
		byPath[files[idx].Path] = idx
	}

	updated := 0
	for start := 0; start < len(eligible); start += c.opts.BatchSize {
		if ctx.Err() != nil {
			c.log.Debug("classification cancelled, keeping heuristic results",
				"remaining", len(eligible)-start)
			break
		}
		end := min(start+c.opts.BatchSize, len(eligible))
		batch := eligible[start:end]
		inBatch := make(map[string]bool, len(batch))
		for _, idx := range batch {
			inBatch[files[idx].Path] = true
		}

		entries, err := c.classifyBatch(ctx, files, batch)
		if err != nil {
			c.log.Debug("external classification batch failed", "error", err)
			continue
		}
		for _, e := range entries {
			idx, ok := byPath[e.Path]
			if !ok || !inBatch[e.Path] {
				continue
			}
			if c.merge(&files[idx], e) {
				updated++
			}
		}
	}
	return updated
}

// merge folds one external answer into a classified file. The external
// layer must belong to the active pattern and the role to the closed
// vocabulary; anything else is dropped. Confidence is blended, not
// overwritten.
func (c *Classifier) merge(cf *ClassifiedFile, e externalFileClass) bool {
	ext := &ExternalClassification{
		Confidence: clamp(e.Confidence, 0, 100),
		Reasoning:  e.Reasoning,
	}

	changed := false
	if c.pattern != nil && e.Layer != "" {
		if l := c.pattern.LayerByName(strings.ToLower(strings.TrimSpace(e.Layer))); l != nil {
			ext.Layer = l.Name
			cf.Layer = l.Name
			changed = true
		}
	}
	if role := normalizeRole(e.Role); role != RoleUnknown {
		ext.Role = role
		if cf.Role == RoleUnknown {
			cf.Role = role
			changed = true
		}
	}
	if !changed {
		return false
	}
	cf.Confidence = clamp(
		classifierBlendExternal*ext.Confidence+classifierBlendHeuristic*cf.Confidence, 0, 100)
	cf.External = ext
	return true
}

// classifyBatch issues one external request for a batch of files.
func (c *Classifier) classifyBatch(ctx context.Context, files []ClassifiedFile, batch []int) ([]externalFileClass, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	temp := float32(0.1)
	maxTokens := 2048
	raw, err := c.client.Generate(reqCtx, c.buildPrompt(files, batch), llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, err
	}

	payload := extractJSONArray(raw)
	if payload == "" {
		return nil, fmt.Errorf("no JSON array in response")
	}
	var entries []externalFileClass
	if err := json.Unmarshal([]byte(payload), &entries); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return entries, nil
}

// buildPrompt renders the batch re-classification prompt.
func (c *Classifier) buildPrompt(files []ClassifiedFile, batch []int) string {
	var b strings.Builder
	b.WriteString("Classify each source file into an architectural layer and a functional role.\n\n")

	if c.pattern != nil {
		fmt.Fprintf(&b, "The project follows the %s pattern. Valid layers:\n", c.pattern.Name)
		for i := range c.pattern.Layers {
			fmt.Fprintf(&b, "- %s\n", c.pattern.Layers[i].Name)
		}
		b.WriteString("\n")
	}

	b.WriteString("Valid roles: ")
	for i, r := range roleRules {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(r.role))
	}
	b.WriteString("\n\nFiles (with the current heuristic guess):\n")
	for _, idx := range batch {
		cf := &files[idx]
		layer := cf.Layer
		if layer == "" {
			layer = "none"
		}
		fmt.Fprintf(&b, "- %s (layer: %s, role: %s, confidence: %.0f)\n",
			cf.Path, layer, cf.Role, cf.Confidence)
	}

	b.WriteString(`
Respond with ONLY a JSON array, one entry per file:
[{"path": "<path>", "layer": "<layer or empty>", "role": "<role>", "confidence": <0-100>, "reasoning": "<one sentence>"}]
`)
	return b.String()
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
