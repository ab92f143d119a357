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
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestStartSpan(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	ctx, span := StartSpan(context.Background(), "atlas.test", "TestOperation")
	defer span.End()

	if !span.SpanContext().IsValid() {
		t.Error("expected valid span context")
	}

	fromCtx := trace.SpanFromContext(ctx)
	if fromCtx.SpanContext().SpanID() != span.SpanContext().SpanID() {
		t.Error("context should carry the created span")
	}
}

func TestSpanFromContext_NoSpan(t *testing.T) {
	span := SpanFromContext(context.Background())
	if span == nil {
		t.Fatal("should return a non-nil noop span")
	}
	if span.SpanContext().IsValid() {
		t.Error("noop span context should be invalid")
	}
}

func TestRecordError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer shutdown(context.Background())

	t.Run("records error on span", func(t *testing.T) {
		_, span := StartSpan(context.Background(), "atlas.test", "TestOp")
		defer span.End()

		RecordError(span, errors.New("test error"),
			attribute.String("file", "input.ts"),
		)
	})

	t.Run("nil span is a no-op", func(t *testing.T) {
		RecordError(nil, errors.New("test error"))
	})

	t.Run("nil error is a no-op", func(t *testing.T) {
		_, span := StartSpan(context.Background(), "atlas.test", "TestOp")
		defer span.End()

		RecordError(span, nil)
	})
}

func TestSetSpanOK(t *testing.T) {
	_, span := StartSpan(context.Background(), "atlas.test", "TestOp")
	defer span.End()

	SetSpanOK(span)
	SetSpanOK(nil)
}

func TestAddSpanEvent(t *testing.T) {
	_, span := StartSpan(context.Background(), "atlas.test", "TestOp")
	defer span.End()

	AddSpanEvent(span, "stage.completed", attribute.Int("findings", 3))
	AddSpanEvent(nil, "ignored")
}
