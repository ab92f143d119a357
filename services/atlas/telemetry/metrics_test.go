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
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// testMeter returns a real SDK meter without touching global state.
func testMeter(t *testing.T) metric.Meter {
	t.Helper()
	provider := sdkmetric.NewMeterProvider()
	t.Cleanup(func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Errorf("shutdown meter provider: %v", err)
		}
	})
	return provider.Meter("test_metrics")
}

func TestNewMetrics(t *testing.T) {
	metrics, err := NewMetrics(testMeter(t))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	if metrics.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal is nil")
	}
	if metrics.HTTPRequestDuration == nil {
		t.Error("HTTPRequestDuration is nil")
	}
	if metrics.HTTPActiveRequests == nil {
		t.Error("HTTPActiveRequests is nil")
	}
	if metrics.ScansTotal == nil {
		t.Error("ScansTotal is nil")
	}
	if metrics.ScanDuration == nil {
		t.Error("ScanDuration is nil")
	}
	if metrics.GraphBuildsTotal == nil {
		t.Error("GraphBuildsTotal is nil")
	}
	if metrics.GraphBuildDuration == nil {
		t.Error("GraphBuildDuration is nil")
	}
	if metrics.SecurityScansTotal == nil {
		t.Error("SecurityScansTotal is nil")
	}
	if metrics.SecurityScanDuration == nil {
		t.Error("SecurityScanDuration is nil")
	}
	if metrics.SecurityFindingsTotal == nil {
		t.Error("SecurityFindingsTotal is nil")
	}
	if metrics.AnalysesTotal == nil {
		t.Error("AnalysesTotal is nil")
	}
	if metrics.AnalysisDuration == nil {
		t.Error("AnalysisDuration is nil")
	}
	if metrics.FlowsTracedTotal == nil {
		t.Error("FlowsTracedTotal is nil")
	}
	if metrics.SnapshotWritesTotal == nil {
		t.Error("SnapshotWritesTotal is nil")
	}
	if metrics.WatchEventsTotal == nil {
		t.Error("WatchEventsTotal is nil")
	}
	if metrics.ErrorsTotal == nil {
		t.Error("ErrorsTotal is nil")
	}
}

func TestMetrics_RecordHTTPRequest(t *testing.T) {
	metrics, err := NewMetrics(testMeter(t))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()

	// Should not panic
	metrics.RecordHTTPRequest(ctx, "POST", "/v1/analyze", 200, 0.123)
	metrics.HTTPActiveRequests.Add(ctx, 1)
	metrics.HTTPActiveRequests.Add(ctx, -1)
}

func TestMetrics_RecordAnalysisMetrics(t *testing.T) {
	metrics, err := NewMetrics(testMeter(t))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()

	metrics.ScansTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", "success"),
	))
	metrics.ScanDuration.Record(ctx, 0.8)

	metrics.GraphBuildsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", "success"),
	))
	metrics.GraphBuildDuration.Record(ctx, 5.5)

	metrics.SecurityFindingsTotal.Add(ctx, 3, metric.WithAttributes(
		attribute.String("severity", "high"),
	))
	metrics.FlowsTracedTotal.Add(ctx, 12)
}

func TestMetrics_RecordError(t *testing.T) {
	metrics, err := NewMetrics(testMeter(t))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	metrics.RecordError(context.Background(), "scanner")
}
