// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the pre-registered instruments for the Atlas service.
// All metrics carry the "atlas_" prefix. Safe for concurrent use after
// creation.
type Metrics struct {
	// HTTPRequestsTotal counts HTTP requests by method, path, status.
	HTTPRequestsTotal metric.Int64Counter

	// HTTPRequestDuration records HTTP request duration in seconds.
	HTTPRequestDuration metric.Float64Histogram

	// HTTPActiveRequests tracks in-flight HTTP requests.
	HTTPActiveRequests metric.Int64UpDownCounter

	// ScansTotal counts project scans by status.
	ScansTotal metric.Int64Counter

	// ScanDuration records scan duration in seconds.
	ScanDuration metric.Float64Histogram

	// GraphBuildsTotal counts graph builds by status.
	GraphBuildsTotal metric.Int64Counter

	// GraphBuildDuration records graph build duration in seconds.
	GraphBuildDuration metric.Float64Histogram

	// SecurityScansTotal counts security pipeline runs by status.
	SecurityScansTotal metric.Int64Counter

	// SecurityScanDuration records security pipeline duration in
	// seconds.
	SecurityScanDuration metric.Float64Histogram

	// SecurityFindingsTotal counts surfaced findings by severity.
	SecurityFindingsTotal metric.Int64Counter

	// AnalysesTotal counts full analysis runs by status.
	AnalysesTotal metric.Int64Counter

	// AnalysisDuration records full analysis duration in seconds.
	AnalysisDuration metric.Float64Histogram

	// FlowsTracedTotal counts traced data flows.
	FlowsTracedTotal metric.Int64Counter

	// SnapshotWritesTotal counts snapshot store writes by status.
	SnapshotWritesTotal metric.Int64Counter

	// WatchEventsTotal counts filesystem watch events by kind.
	WatchEventsTotal metric.Int64Counter

	// ErrorsTotal counts errors by component.
	ErrorsTotal metric.Int64Counter
}

// NewMetrics registers every Atlas instrument with the meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"atlas_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_requests_total: %w", err)
	}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"atlas_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_request_duration: %w", err)
	}

	m.HTTPActiveRequests, err = meter.Int64UpDownCounter(
		"atlas_http_active_requests",
		metric.WithDescription("Currently active HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http_active_requests: %w", err)
	}

	m.ScansTotal, err = meter.Int64Counter(
		"atlas_scans_total",
		metric.WithDescription("Total project scans"),
		metric.WithUnit("{scan}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create scans_total: %w", err)
	}

	m.ScanDuration, err = meter.Float64Histogram(
		"atlas_scan_duration_seconds",
		metric.WithDescription("Project scan duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, fmt.Errorf("create scan_duration: %w", err)
	}

	m.GraphBuildsTotal, err = meter.Int64Counter(
		"atlas_graph_builds_total",
		metric.WithDescription("Total graph build operations"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_builds_total: %w", err)
	}

	m.GraphBuildDuration, err = meter.Float64Histogram(
		"atlas_graph_build_duration_seconds",
		metric.WithDescription("Graph build duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_build_duration: %w", err)
	}

	m.SecurityScansTotal, err = meter.Int64Counter(
		"atlas_security_scans_total",
		metric.WithDescription("Total security pipeline runs"),
		metric.WithUnit("{scan}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create security_scans_total: %w", err)
	}

	m.SecurityScanDuration, err = meter.Float64Histogram(
		"atlas_security_scan_duration_seconds",
		metric.WithDescription("Security pipeline duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, fmt.Errorf("create security_scan_duration: %w", err)
	}

	m.SecurityFindingsTotal, err = meter.Int64Counter(
		"atlas_security_findings_total",
		metric.WithDescription("Surfaced security findings"),
		metric.WithUnit("{finding}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create security_findings_total: %w", err)
	}

	m.AnalysesTotal, err = meter.Int64Counter(
		"atlas_analyses_total",
		metric.WithDescription("Total full analysis runs"),
		metric.WithUnit("{analysis}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create analyses_total: %w", err)
	}

	m.AnalysisDuration, err = meter.Float64Histogram(
		"atlas_analysis_duration_seconds",
		metric.WithDescription("Full analysis duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, fmt.Errorf("create analysis_duration: %w", err)
	}

	m.FlowsTracedTotal, err = meter.Int64Counter(
		"atlas_flows_traced_total",
		metric.WithDescription("Traced data flows"),
		metric.WithUnit("{flow}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create flows_traced_total: %w", err)
	}

	m.SnapshotWritesTotal, err = meter.Int64Counter(
		"atlas_snapshot_writes_total",
		metric.WithDescription("Snapshot store writes"),
		metric.WithUnit("{write}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create snapshot_writes_total: %w", err)
	}

	m.WatchEventsTotal, err = meter.Int64Counter(
		"atlas_watch_events_total",
		metric.WithDescription("Filesystem watch events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create watch_events_total: %w", err)
	}

	m.ErrorsTotal, err = meter.Int64Counter(
		"atlas_errors_total",
		metric.WithDescription("Total errors by component"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors_total: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records one finished HTTP request on the standard
// instruments.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, seconds, attrs)
}

// RecordError increments the error counter for a component.
func (m *Metrics) RecordError(ctx context.Context, component string) {
	m.ErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("component", component),
	))
}
