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
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/scanner"
	"github.com/AleutianAI/AleutianAtlas/services/llm"
)

// Scoring shape: indicators carry 80 of the 100 points, layer coverage
// the other 20. A missing required indicator collapses the total but
// never disqualifies outright, so a project without the signature
// folder can still surface as a weak match.
const (
	indicatorScoreScale = 80.0
	coverageBonusScale  = 20.0
	requiredMissPenalty = 0.3
)

const (
	// DefaultMinConfidence is the score below which a candidate is
	// dropped from the ranking.
	DefaultMinConfidence = 30.0

	// DefaultDetectTimeout bounds the optional external assessment
	// request.
	DefaultDetectTimeout = 45 * time.Second
)

// The external assessment is a second opinion, weighted below the
// heuristic score. The ratio deliberately differs from the
// classifier's.
const (
	detectorBlendExternal  = 0.40
	detectorBlendHeuristic = 0.60
)

// DetectorOptions tunes a detection pass.
type DetectorOptions struct {
	// MinConfidence drops candidates scoring below it.
	MinConfidence float64

	// Catalog overrides the built-in pattern catalog. Nil means
	// DefaultCatalog().
	Catalog []*ArchitecturePattern

	// RequestTimeout bounds the external assessment request.
	RequestTimeout time.Duration
}

// DefaultDetectorOptions returns the default tuning.
func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{
		MinConfidence:  DefaultMinConfidence,
		RequestTimeout: DefaultDetectTimeout,
	}
}

// Detector scores catalog patterns against a scanned tree.
//
// The external client is optional. When present and available, one
// assessment request refines the ranking; when absent, the heuristic
// ranking stands alone.
type Detector struct {
	catalog []*ArchitecturePattern
	client  llm.LLMClient
	opts    DetectorOptions
	log     *slog.Logger
}

// NewDetector creates a Detector. A nil logger falls back to
// slog.Default().
func NewDetector(client llm.LLMClient, opts DetectorOptions, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultDetectTimeout
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Detector{catalog: catalog, client: client, opts: opts, log: logger}
}

// Detect ranks every catalog pattern against the scanned file set.
//
// deps maps each file path to the in-tree paths it imports and feeds
// violation detection; a nil map yields no violations. An empty result
// means no pattern cleared the minimum confidence, which is a valid
// outcome, not an error.
func (d *Detector) Detect(ctx context.Context, scan *scanner.ScanResult, deps map[string][]string) []DetectionResult {
	paths := make([]string, 0, len(scan.Files))
	for _, f := range scan.Files {
		if f != nil {
			paths = append(paths, f.Path)
		}
	}

	var results []DetectionResult
	for _, p := range d.catalog {
		r := d.scorePattern(p, paths, deps)
		if r.Confidence >= d.opts.MinConfidence {
			results = append(results, r)
		} else {
			d.log.Debug("pattern below minimum confidence",
				"pattern", p.Name, "confidence", r.Confidence)
		}
	}

	if d.client != nil && len(results) > 0 && d.client.Available(ctx) {
		d.refineWithExternal(ctx, scan, results)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Pattern.Name < results[j].Pattern.Name
	})

	if len(results) == 0 {
		d.log.Info("no architecture pattern detected",
			"files", len(paths), "minConfidence", d.opts.MinConfidence)
	} else {
		d.log.Info("architecture patterns detected",
			"top", results[0].Pattern.Name,
			"confidence", results[0].Confidence,
			"candidates", len(results))
	}
	return results
}

// scorePattern computes one pattern's confidence, layer distribution,
// and violations.
func (d *Detector) scorePattern(p *ArchitecturePattern, paths []string, deps map[string][]string) DetectionResult {
	totalWeight := 0
	matchedWeight := 0
	var matched []string
	requiredMiss := false
	for i := range p.Indicators {
		ind := &p.Indicators[i]
		totalWeight += ind.Weight
		if anyMatch(ind.Pattern, paths) {
			matchedWeight += ind.Weight
			matched = append(matched, ind.Description)
		} else if ind.Required {
			requiredMiss = true
		}
	}

	layers := assignLayers(p, paths)
	dist := make(map[string]int)
	for _, name := range layers {
		dist[name]++
	}
	covered := 0
	for i := range p.Layers {
		if dist[p.Layers[i].Name] > 0 {
			covered++
		}
	}

	score := 0.0
	if totalWeight > 0 {
		score = float64(matchedWeight) / float64(totalWeight) * indicatorScoreScale
	}
	if len(p.Layers) > 0 {
		score += float64(covered) / float64(len(p.Layers)) * coverageBonusScale
	}
	if requiredMiss {
		score *= requiredMissPenalty
	}

	return DetectionResult{
		Pattern:           p,
		Confidence:        score,
		MatchedIndicators: matched,
		LayerDistribution: dist,
		Violations:        detectViolations(p, layers, deps),
	}
}

// anyMatch reports whether any path matches the regex.
func anyMatch(re *regexp.Regexp, paths []string) bool {
	for _, p := range paths {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

// assignLayers maps each path to its best-matching layer under one
// pattern. Unmatched paths are absent from the map.
func assignLayers(p *ArchitecturePattern, paths []string) map[string]string {
	layers := make(map[string]string, len(paths))
	for _, fp := range paths {
		if name, _ := layerForFile(p, fp); name != "" {
			layers[fp] = name
		}
	}
	return layers
}

// detectViolations flags imports between layers the pattern does not
// allow. Imports into unlayered files and same-layer imports are fine.
func detectViolations(p *ArchitecturePattern, layers map[string]string, deps map[string][]string) []Violation {
	if len(deps) == 0 {
		return nil
	}
	sources := make([]string, 0, len(deps))
	for src := range deps {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	severity := p.ViolationSeverityFor()
	var out []Violation
	for _, src := range sources {
		srcLayerName, ok := layers[src]
		if !ok {
			continue
		}
		srcLayer := p.LayerByName(srcLayerName)
		if srcLayer == nil {
			continue
		}
		for _, target := range deps[src] {
			targetLayerName, ok := layers[target]
			if !ok || targetLayerName == srcLayerName {
				continue
			}
			if srcLayer.Allows(targetLayerName) {
				continue
			}
			out = append(out, Violation{
				Pattern:     p.Name,
				SourceFile:  src,
				SourceLayer: srcLayerName,
				TargetFile:  target,
				TargetLayer: targetLayerName,
				Rule:        fmt.Sprintf("%s may not depend on %s", srcLayerName, targetLayerName),
				Severity:    severity,
			})
		}
	}
	return out
}

// =============================================================================
// External assessment
// =============================================================================

// externalAssessment is the external judge's JSON answer.
type externalAssessment struct {
	Pattern    string  `json:"pattern"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// refineWithExternal asks the external judge for a second opinion and
// blends its confidence into the matching candidate. Failures leave
// the heuristic ranking untouched.
func (d *Detector) refineWithExternal(ctx context.Context, scan *scanner.ScanResult, results []DetectionResult) {
	reqCtx, cancel := context.WithTimeout(ctx, d.opts.RequestTimeout)
	defer cancel()

	temp := float32(0.1)
	maxTokens := 512
	raw, err := d.client.Generate(reqCtx, d.buildPrompt(scan, results), llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		d.log.Debug("external assessment failed, keeping heuristic ranking", "error", err)
		return
	}

	payload := extractJSONObject(raw)
	if payload == "" {
		d.log.Debug("external assessment returned no JSON object")
		return
	}
	var assessment externalAssessment
	if err := json.Unmarshal([]byte(payload), &assessment); err != nil {
		d.log.Debug("external assessment undecodable", "error", err)
		return
	}

	for i := range results {
		if !strings.EqualFold(results[i].Pattern.Name, assessment.Pattern) {
			continue
		}
		ext := clamp(assessment.Confidence, 0, 100)
		blended := detectorBlendExternal*ext + detectorBlendHeuristic*results[i].Confidence
		d.log.Debug("blended external assessment",
			"pattern", results[i].Pattern.Name,
			"heuristic", results[i].Confidence,
			"external", ext,
			"blended", blended)
		results[i].Confidence = clamp(blended, 0, 100)
		return
	}
	d.log.Debug("external assessment named no ranked pattern", "pattern", assessment.Pattern)
}

// buildPrompt renders the assessment prompt from the directory shape
// and the heuristic ranking.
func (d *Detector) buildPrompt(scan *scanner.ScanResult, results []DetectionResult) string {
	var b strings.Builder
	b.WriteString("Identify the architectural pattern of this project.\n\n")
	if scan.ProjectName != "" {
		fmt.Fprintf(&b, "Project: %s\n", scan.ProjectName)
	}

	b.WriteString("Directories:\n")
	for _, dir := range topDirectories(scan, 40) {
		fmt.Fprintf(&b, "- %s\n", dir)
	}

	b.WriteString("\nHeuristic candidates:\n")
	for i := range results {
		fmt.Fprintf(&b, "- %s (confidence %.0f)\n", results[i].Pattern.Name, results[i].Confidence)
	}

	b.WriteString(`
Respond with ONLY a JSON object:
{"pattern": "<one of the candidates>", "confidence": <0-100>, "reasoning": "<one sentence>"}
`)
	return b.String()
}

// topDirectories lists the distinct one- and two-segment directory
// prefixes of the scanned files, sorted, capped at limit.
func topDirectories(scan *scanner.ScanResult, limit int) []string {
	seen := make(map[string]bool)
	for _, f := range scan.Files {
		if f == nil {
			continue
		}
		dir := path.Dir(f.Path)
		if dir == "." {
			continue
		}
		parts := strings.Split(dir, "/")
		seen[parts[0]] = true
		if len(parts) > 1 {
			seen[parts[0]+"/"+parts[1]] = true
		}
	}
	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	if len(dirs) > limit {
		dirs = dirs[:limit]
	}
	return dirs
}
