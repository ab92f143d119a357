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
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/scanner"
	"github.com/AleutianAI/AleutianAtlas/services/llm"
)

var pipelineTracer = otel.Tracer("atlas.security")

// PipelineOptions configures the full funnel.
type PipelineOptions struct {
	// TaintWindow is the stage-1 source-to-sink adjacency window.
	TaintWindow int

	// FilterThreshold is the stage-2 auto-removal threshold.
	FilterThreshold float64

	// SanitizerWindow is the stage-2 sanitizer lookback.
	SanitizerWindow int

	// Validator tunes the external stage.
	Validator ValidatorOptions

	// Judge is the external judge. Nil disables stage 3; the funnel
	// then runs heuristic-only.
	Judge llm.LLMClient

	// Logger receives pipeline logs; nil uses slog.Default.
	Logger *slog.Logger
}

// DefaultPipelineOptions returns the funnel defaults with no judge
// attached.
func DefaultPipelineOptions() PipelineOptions {
	return PipelineOptions{
		TaintWindow:     DefaultTaintWindow,
		FilterThreshold: DefaultFilterThreshold,
		SanitizerWindow: DefaultSanitizerWindow,
		Validator:       DefaultValidatorOptions(),
	}
}

// Pipeline wires the three stages together.
type Pipeline struct {
	scanner   *BaseScanner
	filter    *ASTFilter
	validator *AIValidator
	log       *slog.Logger
}

// NewPipeline builds a funnel from options.
func NewPipeline(opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		scanner:   NewBaseScanner(opts.TaintWindow, logger),
		filter:    NewASTFilter(opts.FilterThreshold, opts.SanitizerWindow, logger),
		validator: NewAIValidator(opts.Judge, opts.Validator, logger),
		log:       logger,
	}
}

// Run executes the funnel over an extracted scan. The scan's root must
// point at the source tree so stages can re-read file content.
//
// A cancelled context stops work between files and batches; whatever
// was already found is reported rather than discarded.
func (p *Pipeline) Run(ctx context.Context, scan *scanner.ScanResult) (*EnhancedSecurityReport, error) {
	if scan == nil {
		return nil, fmt.Errorf("security: nil scan result")
	}
	if scan.Root == "" {
		return nil, fmt.Errorf("security: scan result has no root")
	}

	ctx, span := pipelineTracer.Start(ctx, "security.pipeline")
	defer span.End()

	start := time.Now()
	runID := uuid.NewString()
	rc := newRunContext(scan.Root)

	scanCtx, scanSpan := pipelineTracer.Start(ctx, "security.scan")
	vulns := p.scanner.Scan(scanCtx, scan, rc)
	scanSpan.SetAttributes(attribute.Int("findings", len(vulns)))
	scanSpan.End()
	originalCount := len(vulns)

	filterCtx, filterSpan := pipelineTracer.Start(ctx, "security.filter")
	filtered := p.filter.Filter(filterCtx, vulns, rc)
	filterSpan.SetAttributes(
		attribute.Int("kept", len(filtered.Kept)),
		attribute.Int("removed", len(filtered.Removed)),
	)
	filterSpan.End()

	validateCtx, validateSpan := pipelineTracer.Start(ctx, "security.validate")
	validated := p.validator.Validate(validateCtx, filtered.Kept, scan, rc)
	validateSpan.SetAttributes(
		attribute.Bool("judge_available", validated.JudgeAvailable),
		attribute.Int("kept", len(validated.Kept)),
		attribute.Int("removed", len(validated.Removed)),
	)
	validateSpan.End()

	report := &EnhancedSecurityReport{
		SecurityReport: buildReport(runID, scan.ProjectName, scan.Root, validated.Kept),
		Pipeline: PipelineStats{
			OriginalCount:          originalCount,
			AfterASTFilter:         len(filtered.Kept),
			AfterAIValidation:      len(validated.Kept),
			ConfirmedTruePositives: validated.ConfirmedTruePositives,
			NeedsReview:            validated.NeedsReview,
			JudgeAvailable:         validated.JudgeAvailable,
			ProcessingTimeMs:       time.Since(start).Milliseconds(),
		},
		ASTFiltered: filtered.Removed,
		AIFiltered:  validated.Removed,
	}
	if len(validated.Outcomes) > 0 {
		report.AIValidations = validated.Outcomes
	}

	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.Int("original", originalCount),
		attribute.Int("final", report.Total),
	)
	p.log.Info("security pipeline complete",
		"run_id", runID,
		"project", scan.ProjectName,
		"original", originalCount,
		"after_filter", len(filtered.Kept),
		"final", report.Total,
		"confirmed", validated.ConfirmedTruePositives,
		"needs_review", validated.NeedsReview,
		"judge_available", validated.JudgeAvailable,
		"duration_ms", report.Pipeline.ProcessingTimeMs)
	return report, nil
}
