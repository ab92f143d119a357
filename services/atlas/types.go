// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package atlas

import (
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/architecture"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/flow"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/graph"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/security"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/store"
)

// ServiceVersion is reported by the health endpoint and stamped into
// snapshot metadata.
const ServiceVersion = "0.1.0"

// requestValidate validates request bodies beyond what gin's binding
// tags express. Initialized in init() with the glob validator.
var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("glob", validateGlob)
}

// validateGlob reports whether a field holds a compilable glob
// pattern.
func validateGlob(fl validator.FieldLevel) bool {
	return doublestar.ValidatePattern(fl.Field().String())
}

// AnalysisMeta identifies one analysis run.
type AnalysisMeta struct {
	// RunID is the unique identifier for this run.
	RunID string `json:"runId"`

	// ProjectName is the detected project name.
	ProjectName string `json:"projectName"`

	// Root is the resolved absolute path that was analyzed.
	Root string `json:"root"`

	// GeneratedAt is the run timestamp.
	GeneratedAt time.Time `json:"generatedAt"`

	// Version is the Atlas version that produced the bundle.
	Version string `json:"version"`

	// DurationMs is the wall-clock run time in milliseconds.
	DurationMs int64 `json:"durationMs"`
}

// AnalysisStats aggregates one run for dashboards and list views.
type AnalysisStats struct {
	// Files is the number of analyzed files.
	Files int `json:"files"`

	// SkippedFiles counts files the scan could not extract.
	SkippedFiles int `json:"skippedFiles"`

	// Nodes and Edges size the built graph.
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`

	// ByLanguage counts files per detected language.
	ByLanguage map[string]int `json:"byLanguage"`

	// ByLevel counts graph nodes per hierarchy level.
	ByLevel map[string]int `json:"byLevel"`

	// ByLayer counts files per classified layer. Empty when no
	// pattern was detected.
	ByLayer map[string]int `json:"byLayer,omitempty"`

	// Issues counts structural findings on the graph.
	Issues int `json:"issues"`

	// Findings counts security findings, when the funnel ran.
	Findings int `json:"findings"`
}

// LegendEntry describes one layer for renderers, ordered outermost
// first.
type LegendEntry struct {
	// Layer is the canonical layer name.
	Layer string `json:"layer"`

	// Level orders layers from the outermost (1) inward.
	Level int `json:"level"`

	// Files is the number of files classified into the layer.
	Files int `json:"files"`
}

// FileSummary is one per-file row of the bundle, joining scan and
// classification data.
type FileSummary struct {
	// Path is the file path relative to the analyzed root.
	Path string `json:"path"`

	// Language is the detected source language.
	Language string `json:"language"`

	// Layer is the classified layer, when a pattern was detected.
	Layer string `json:"layer,omitempty"`

	// Role is the file's functional role.
	Role string `json:"role,omitempty"`

	// Lines is the file's line count.
	Lines int `json:"lines"`
}

// ArchitectureReport groups the detection ranking and the file
// classification of one run.
type ArchitectureReport struct {
	// Detected holds the ranked pattern candidates, best first.
	Detected []architecture.DetectionResult `json:"detected"`

	// Classification is the per-file layer and role assignment under
	// the top candidate. Nil when nothing was detected.
	Classification *architecture.ClassificationResult `json:"classification,omitempty"`
}

// AnalysisResult is the immutable output bundle of one full run. It
// carries everything a renderer needs: the graph, the per-file rows,
// the layer legend, structural issues, and the architecture, flow,
// and security reports.
type AnalysisResult struct {
	Meta  AnalysisMeta  `json:"meta"`
	Stats AnalysisStats `json:"stats"`

	// Nodes and Edges are the built graph, nodes sorted by ID so the
	// bundle is stable across runs over an unchanged tree.
	Nodes []*graph.CodeNode `json:"nodes"`
	Edges []*graph.CodeEdge `json:"edges"`

	Files  []FileSummary `json:"files"`
	Legend []LegendEntry `json:"legend,omitempty"`
	Issues []graph.Issue `json:"issues"`

	Architecture *ArchitectureReport              `json:"architecture,omitempty"`
	Flows        *flow.FlowAnalysisResult         `json:"flows,omitempty"`
	Security     *security.EnhancedSecurityReport `json:"security,omitempty"`
}

// AnalyzeRequest is the request body for POST /v1/analyze.
type AnalyzeRequest struct {
	// ProjectRoot is the absolute path to the project root directory.
	// Required.
	ProjectRoot string `json:"project_root" binding:"required"`

	// Includes is a list of glob patterns to scan. Default: the
	// built-in source globs.
	Includes []string `json:"includes" validate:"max=64,dive,glob"`

	// Excludes is a list of glob patterns to skip.
	Excludes []string `json:"excludes" validate:"max=64,dive,glob"`

	// Security runs the security funnel as part of the analysis.
	// Default: false.
	Security bool `json:"security"`

	// Save persists the result to the snapshot store. Default: false.
	Save bool `json:"save"`
}

// Validate checks the glob lists beyond gin's binding tags.
func (r *AnalyzeRequest) Validate() error {
	if err := requestValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid glob patterns: %w", err)
	}
	return nil
}

// SecurityScanRequest is the request body for POST /v1/security/scan.
type SecurityScanRequest struct {
	// ProjectRoot is the absolute path to the project root directory.
	// Required.
	ProjectRoot string `json:"project_root" binding:"required"`

	// Includes is a list of glob patterns to scan.
	Includes []string `json:"includes" validate:"max=64,dive,glob"`

	// Excludes is a list of glob patterns to skip.
	Excludes []string `json:"excludes" validate:"max=64,dive,glob"`
}

// Validate checks the glob lists beyond gin's binding tags.
func (r *SecurityScanRequest) Validate() error {
	if err := requestValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid glob patterns: %w", err)
	}
	return nil
}

// ErrorResponse is the error envelope every endpoint returns.
type ErrorResponse struct {
	// Error is a human-readable message.
	Error string `json:"error"`

	// Code is a machine-readable error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// PatternSummary is one catalog row of GET /v1/patterns.
type PatternSummary struct {
	// Name is the pattern's canonical name.
	Name string `json:"name"`

	// Description is a one-line summary.
	Description string `json:"description"`

	// Layers lists the layer names, outermost first.
	Layers []string `json:"layers"`

	// FlowDirection is the expected dependency direction.
	FlowDirection string `json:"flow_direction"`

	// Strictness decides whether violations are errors or warnings.
	Strictness string `json:"strictness"`
}

// PatternsResponse is returned by GET /v1/patterns.
type PatternsResponse struct {
	Patterns []PatternSummary `json:"patterns"`
	Total    int              `json:"total"`
}

// SnapshotsResponse is returned by GET /v1/snapshots.
type SnapshotsResponse struct {
	Snapshots []store.Snapshot `json:"snapshots"`
	Total     int              `json:"total"`
}
