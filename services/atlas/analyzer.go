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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/architecture"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/flow"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/graph"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/scanner"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/security"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/store"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/telemetry"
)

const serviceTracer = "atlas.service"

// Analyze runs the full pipeline over one project tree: scan, graph
// build, architecture detection and classification, flow tracing, and
// optionally the security funnel. The returned bundle is complete and
// immutable; the caller owns it.
//
// One run at a time is allowed per resolved root. The run is bounded
// by MaxAnalysisDuration; on timeout the error wraps
// ErrAnalysisTimeout.
func (s *Service) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalysisResult, error) {
	resolved, err := s.validateProjectRoot(req.ProjectRoot)
	if err != nil {
		return nil, err
	}
	release, err := s.acquireRun(resolved)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.config.MaxAnalysisDuration)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, serviceTracer, "Analyze",
		trace.WithAttributes(attribute.String("project.root", resolved)))
	defer span.End()

	runID := uuid.NewString()
	logger := telemetry.LoggerWithRun(ctx, s.log, runID)
	start := time.Now()

	logger.Info("analysis started", "root", resolved, "security", req.Security)

	scan, err := s.runScan(ctx, resolved, req.Includes, req.Excludes)
	if err != nil {
		return nil, s.finishRun(ctx, span, "scan", err)
	}

	build, err := s.runBuild(ctx, resolved, scan)
	if err != nil {
		return nil, s.finishRun(ctx, span, "graph", err)
	}
	deps := fileImports(build.Graph)

	arch, pattern := s.runArchitecture(ctx, logger, scan, deps)
	flows := s.runFlows(ctx, logger, pattern, arch.Classification, deps)

	var secReport *security.EnhancedSecurityReport
	if req.Security {
		secReport, err = s.runSecurity(ctx, logger, scan)
		if err != nil {
			return nil, s.finishRun(ctx, span, "security", err)
		}
	}

	result := s.assemble(runID, resolved, scan, build, arch, flows, secReport, start)

	if req.Save {
		s.saveSnapshot(ctx, logger, result)
	}

	if s.metrics != nil {
		status := metric.WithAttributes(attribute.String("status", "ok"))
		s.metrics.AnalysesTotal.Add(ctx, 1, status)
		s.metrics.AnalysisDuration.Record(ctx, time.Since(start).Seconds())
		s.metrics.FlowsTracedTotal.Add(ctx, int64(len(flows.Flows)))
	}
	telemetry.SetSpanOK(span)
	telemetry.AddSpanEvent(span, "analysis.completed",
		attribute.Int("files", result.Stats.Files),
		attribute.Int("issues", result.Stats.Issues),
		attribute.Int("findings", result.Stats.Findings))

	logger.Info("analysis complete",
		"project", result.Meta.ProjectName,
		"files", result.Stats.Files,
		"nodes", result.Stats.Nodes,
		"edges", result.Stats.Edges,
		"issues", result.Stats.Issues,
		"findings", result.Stats.Findings,
		"duration_ms", result.Meta.DurationMs)
	return result, nil
}

// SecurityScan runs only the security funnel over one project tree.
func (s *Service) SecurityScan(ctx context.Context, req SecurityScanRequest) (*security.EnhancedSecurityReport, error) {
	resolved, err := s.validateProjectRoot(req.ProjectRoot)
	if err != nil {
		return nil, err
	}
	release, err := s.acquireRun(resolved)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.config.MaxAnalysisDuration)
	defer cancel()

	ctx, span := telemetry.StartSpan(ctx, serviceTracer, "SecurityScan",
		trace.WithAttributes(attribute.String("project.root", resolved)))
	defer span.End()

	scan, err := s.runScan(ctx, resolved, req.Includes, req.Excludes)
	if err != nil {
		return nil, s.finishRun(ctx, span, "scan", err)
	}

	report, err := s.runSecurity(ctx, s.log, scan)
	if err != nil {
		return nil, s.finishRun(ctx, span, "security", err)
	}
	telemetry.SetSpanOK(span)
	return report, nil
}

// Patterns returns the architecture catalog in report form.
func (s *Service) Patterns() []PatternSummary {
	catalog := architecture.DefaultCatalog()
	summaries := make([]PatternSummary, 0, len(catalog))
	for _, p := range catalog {
		layers := make([]string, 0, len(p.Layers))
		for i := range p.Layers {
			layers = append(layers, p.Layers[i].Name)
		}
		summaries = append(summaries, PatternSummary{
			Name:          p.Name,
			Description:   p.Description,
			Layers:        layers,
			FlowDirection: string(p.FlowDirection),
			Strictness:    string(p.Strictness),
		})
	}
	return summaries
}

// Snapshots lists stored runs, newest first.
func (s *Service) Snapshots(ctx context.Context) ([]store.Snapshot, error) {
	if s.store == nil {
		return nil, ErrSnapshotsDisabled
	}
	return s.store.List(ctx)
}

// runScan scans the tree and enforces the project size limits.
func (s *Service) runScan(ctx context.Context, resolved string, includes, excludes []string) (*scanner.ScanResult, error) {
	start := time.Now()
	sc := scanner.New(
		scanner.WithIncludes(includes...),
		scanner.WithExcludes(excludes...),
	)
	scan, err := sc.Scan(ctx, resolved)
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.ScansTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", status)))
		s.metrics.ScanDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}

	if len(scan.Files) > s.config.MaxProjectFiles {
		return nil, fmt.Errorf("%w: %d files exceeds limit of %d",
			ErrProjectTooLarge, len(scan.Files), s.config.MaxProjectFiles)
	}
	var totalBytes int64
	for _, f := range scan.Files {
		totalBytes += f.Size
	}
	if totalBytes > s.config.MaxProjectSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d",
			ErrProjectTooLarge, totalBytes, s.config.MaxProjectSize)
	}
	return scan, nil
}

// runBuild constructs the code graph from the scan.
func (s *Service) runBuild(ctx context.Context, resolved string, scan *scanner.ScanResult) (*graph.BuildResult, error) {
	start := time.Now()
	builder := graph.NewBuilder(
		graph.WithProjectRoot(resolved),
		graph.WithProjectName(scan.ProjectName),
	)
	build, err := builder.Build(ctx, scan.Files)
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.GraphBuildsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", status)))
		s.metrics.GraphBuildDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	return build, nil
}

// runArchitecture detects the pattern and classifies every file under
// the top candidate. Detection finding nothing is a normal outcome,
// not an error.
func (s *Service) runArchitecture(ctx context.Context, logger *slog.Logger, scan *scanner.ScanResult, deps map[string][]string) (*ArchitectureReport, *architecture.ArchitecturePattern) {
	detector := architecture.NewDetector(s.judge, architecture.DefaultDetectorOptions(), logger)
	detected := detector.Detect(ctx, scan, deps)

	var pattern *architecture.ArchitecturePattern
	if len(detected) > 0 {
		pattern = detected[0].Pattern
	}

	paths := make([]string, 0, len(scan.Files))
	for _, f := range scan.Files {
		paths = append(paths, f.Path)
	}
	classifier := architecture.NewClassifier(pattern, s.judge, architecture.DefaultClassifierOptions(), logger)
	classification := classifier.Classify(ctx, paths)

	return &ArchitectureReport{
		Detected:       detected,
		Classification: &classification,
	}, pattern
}

// runFlows traces data flows under the detected pattern.
func (s *Service) runFlows(ctx context.Context, logger *slog.Logger, pattern *architecture.ArchitecturePattern, classification *architecture.ClassificationResult, deps map[string][]string) *flow.FlowAnalysisResult {
	analyzer := flow.NewAnalyzer(pattern, classification, flow.DefaultAnalyzerOptions(), logger)
	flows := analyzer.Analyze(ctx, deps)
	return &flows
}

// runSecurity pushes the scan through the three-stage funnel.
func (s *Service) runSecurity(ctx context.Context, logger *slog.Logger, scan *scanner.ScanResult) (*security.EnhancedSecurityReport, error) {
	start := time.Now()
	opts := security.DefaultPipelineOptions()
	if s.securityOpts != nil {
		opts = *s.securityOpts
	}
	opts.Judge = s.judge
	opts.Logger = logger
	report, err := security.NewPipeline(opts).Run(ctx, scan)
	if s.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.SecurityScansTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", status)))
		s.metrics.SecurityScanDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("security scan: %w", err)
	}
	if s.metrics != nil {
		for sev, n := range report.BySeverity {
			s.metrics.SecurityFindingsTotal.Add(ctx, int64(n),
				metric.WithAttributes(attribute.String("severity", string(sev))))
		}
	}
	return report, nil
}

// assemble builds the immutable result bundle.
func (s *Service) assemble(runID, resolved string, scan *scanner.ScanResult, build *graph.BuildResult, arch *ArchitectureReport, flows *flow.FlowAnalysisResult, secReport *security.EnhancedSecurityReport, start time.Time) *AnalysisResult {
	g := build.Graph

	nodes := make([]*graph.CodeNode, 0, g.NodeCount())
	for _, node := range g.Nodes() {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	byLanguage := make(map[string]int)
	for _, f := range scan.Files {
		byLanguage[string(f.Language)]++
	}
	byLevel := make(map[string]int)
	for _, node := range nodes {
		byLevel[node.Level.String()]++
	}

	classified := make(map[string]*architecture.ClassifiedFile)
	byLayer := make(map[string]int)
	if arch.Classification != nil {
		for i := range arch.Classification.Files {
			cf := &arch.Classification.Files[i]
			classified[cf.Path] = cf
			if cf.Layer != "" {
				byLayer[cf.Layer]++
			}
		}
	}

	files := make([]FileSummary, 0, len(scan.Files))
	for _, f := range scan.Files {
		row := FileSummary{
			Path:     f.Path,
			Language: string(f.Language),
			Lines:    f.Lines,
		}
		if cf, ok := classified[f.Path]; ok {
			row.Layer = cf.Layer
			row.Role = string(cf.Role)
		}
		files = append(files, row)
	}

	findings := 0
	if secReport != nil {
		findings = secReport.Total
	}

	result := &AnalysisResult{
		Meta: AnalysisMeta{
			RunID:       runID,
			ProjectName: scan.ProjectName,
			Root:        resolved,
			GeneratedAt: time.Now().UTC(),
			Version:     ServiceVersion,
			DurationMs:  time.Since(start).Milliseconds(),
		},
		Stats: AnalysisStats{
			Files:        len(scan.Files),
			SkippedFiles: scan.SkippedFiles,
			Nodes:        len(nodes),
			Edges:        g.EdgeCount(),
			ByLanguage:   byLanguage,
			ByLevel:      byLevel,
			ByLayer:      byLayer,
			Issues:       len(build.Issues),
			Findings:     findings,
		},
		Nodes:        nodes,
		Edges:        g.Edges(),
		Files:        files,
		Legend:       buildLegend(arch, byLayer),
		Issues:       build.Issues,
		Architecture: arch,
		Flows:        flows,
		Security:     secReport,
	}
	return result
}

// buildLegend derives the renderer legend from the top detected
// pattern's layer order. Without a pattern the legend is empty.
func buildLegend(arch *ArchitectureReport, byLayer map[string]int) []LegendEntry {
	if arch == nil || len(arch.Detected) == 0 || arch.Detected[0].Pattern == nil {
		return nil
	}
	pattern := arch.Detected[0].Pattern
	legend := make([]LegendEntry, 0, len(pattern.Layers))
	for i := range pattern.Layers {
		layer := &pattern.Layers[i]
		legend = append(legend, LegendEntry{
			Layer: layer.Name,
			Level: layer.Level,
			Files: byLayer[layer.Name],
		})
	}
	return legend
}

// saveSnapshot persists the bundle. Snapshot failures never fail the
// run; they are logged and counted.
func (s *Service) saveSnapshot(ctx context.Context, logger *slog.Logger, result *AnalysisResult) {
	if s.store == nil {
		logger.Warn("snapshot requested but no store configured")
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		logger.Error("marshal snapshot payload", "error", err)
		s.recordSnapshotWrite(ctx, "error")
		return
	}
	snap := &store.Snapshot{
		ID:          result.Meta.RunID,
		CreatedAt:   result.Meta.GeneratedAt,
		ProjectName: result.Meta.ProjectName,
		RootPath:    result.Meta.Root,
		Files:       result.Stats.Files,
		Issues:      result.Stats.Issues,
		Findings:    result.Stats.Findings,
		Payload:     payload,
	}
	if result.Architecture != nil && len(result.Architecture.Detected) > 0 && result.Architecture.Detected[0].Pattern != nil {
		snap.Pattern = result.Architecture.Detected[0].Pattern.Name
	}
	if err := s.store.Save(ctx, snap); err != nil {
		logger.Error("save snapshot", "run_id", snap.ID, "error", err)
		s.recordSnapshotWrite(ctx, "error")
		return
	}
	s.recordSnapshotWrite(ctx, "ok")
	if s.config.SnapshotKeep > 0 {
		removed, err := s.store.Prune(ctx, s.config.SnapshotKeep)
		if err != nil {
			logger.Warn("prune snapshots", "error", err)
		} else if removed > 0 {
			logger.Debug("pruned snapshots", "removed", removed, "keep", s.config.SnapshotKeep)
		}
	}
}

func (s *Service) recordSnapshotWrite(ctx context.Context, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.SnapshotWritesTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
}

// finishRun normalizes stage failures: the span records the error,
// the failure counter ticks, and deadline errors surface as
// ErrAnalysisTimeout so handlers can map them.
func (s *Service) finishRun(ctx context.Context, span trace.Span, stage string, err error) error {
	telemetry.RecordError(span, err, attribute.String("stage", stage))
	if s.metrics != nil {
		s.metrics.AnalysesTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", "error")))
		s.metrics.RecordError(ctx, stage)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s stage: %v", ErrAnalysisTimeout, stage, err)
	}
	return err
}

// fileImports flattens the graph's file-level import edges into the
// path map the detector and flow analyzer consume.
func fileImports(g *graph.Graph) map[string][]string {
	deps := make(map[string][]string)
	if g == nil {
		return deps
	}
	for _, e := range g.Edges() {
		if e.Kind != graph.EdgeKindImports {
			continue
		}
		src, ok := g.GetNode(e.Source)
		if !ok || src.Level != graph.LevelFile {
			continue
		}
		tgt, ok := g.GetNode(e.Target)
		if !ok || tgt.Level != graph.LevelFile {
			continue
		}
		deps[src.FullPath] = append(deps[src.FullPath], tgt.FullPath)
	}
	return deps
}
