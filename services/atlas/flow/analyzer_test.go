// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package flow

import (
	"context"
	"testing"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/architecture"
)

func cf(path, layer string, role architecture.Role) architecture.ClassifiedFile {
	return architecture.ClassifiedFile{Path: path, Layer: layer, Role: role, Confidence: 80}
}

func classified(files ...architecture.ClassifiedFile) *architecture.ClassificationResult {
	return &architecture.ClassificationResult{Files: files}
}

func layeredPattern(t *testing.T) *architecture.ArchitecturePattern {
	t.Helper()
	p, ok := architecture.PatternByName("layered")
	if !ok {
		t.Fatal("Layered pattern missing from catalog")
	}
	return p
}

// orderFixture is a well-behaved layered shop: controller calls
// service calls repository calls model, nothing points back up.
func orderFixture() (*architecture.ClassificationResult, map[string][]string) {
	c := classified(
		cf("controllers/OrderController.ts", "presentation", architecture.RoleController),
		cf("services/OrderService.ts", "business", architecture.RoleService),
		cf("repositories/OrderRepository.ts", "persistence", architecture.RoleRepository),
		cf("models/Order.ts", "persistence", architecture.RoleEntity),
	)
	deps := map[string][]string{
		"controllers/OrderController.ts":  {"services/OrderService.ts"},
		"services/OrderService.ts":        {"repositories/OrderRepository.ts"},
		"repositories/OrderRepository.ts": {"models/Order.ts"},
	}
	return c, deps
}

func TestAnalyzer_Analyze_RequestResponseFlow(t *testing.T) {
	classification, deps := orderFixture()
	a := NewAnalyzer(layeredPattern(t), classification, DefaultAnalyzerOptions(), nil)

	result := a.Analyze(context.Background(), deps)

	if result.Pattern != "Layered" {
		t.Errorf("expected pattern Layered, got %q", result.Pattern)
	}
	if len(result.Flows) != 1 {
		t.Fatalf("expected one flow, got %d", len(result.Flows))
	}

	f := result.Flows[0]
	if f.ID == "" || f.Name != "OrderController flow" {
		t.Errorf("unexpected id/name: %q %q", f.ID, f.Name)
	}
	if f.Type != FlowRequestResponse {
		t.Errorf("expected request-response, got %q", f.Type)
	}
	if f.Direction != DirectionInbound {
		t.Errorf("expected inbound, got %q", f.Direction)
	}
	if f.EntryPoint != "controllers/OrderController.ts" || f.ExitPoint != "models/Order.ts" {
		t.Errorf("unexpected endpoints: %q -> %q", f.EntryPoint, f.ExitPoint)
	}

	wantSteps := []string{
		"controllers/OrderController.ts",
		"services/OrderService.ts",
		"repositories/OrderRepository.ts",
		"models/Order.ts",
	}
	if len(f.Steps) != len(wantSteps) {
		t.Fatalf("expected %d steps, got %d", len(wantSteps), len(f.Steps))
	}
	for i, want := range wantSteps {
		if f.Steps[i].File != want {
			t.Errorf("step %d: expected %s, got %s", i, want, f.Steps[i].File)
		}
	}
	if f.Steps[0].Action != "receives and routes the request" {
		t.Errorf("unexpected controller action %q", f.Steps[0].Action)
	}

	wantLayers := []string{"presentation", "business", "persistence"}
	if len(f.Layers) != len(wantLayers) {
		t.Fatalf("expected layers %v, got %v", wantLayers, f.Layers)
	}
	for i := range wantLayers {
		if f.Layers[i] != wantLayers[i] {
			t.Errorf("layer %d: expected %s, got %s", i, wantLayers[i], f.Layers[i])
		}
	}

	// Inter-layer edges only; the repository -> model edge stays
	// inside persistence.
	wantConnections := []LayerConnection{
		{From: "business", To: "persistence", Count: 1, Allowed: true},
		{From: "presentation", To: "business", Count: 1, Allowed: true},
	}
	if len(result.LayerConnections) != len(wantConnections) {
		t.Fatalf("expected %d connections, got %+v", len(wantConnections), result.LayerConnections)
	}
	for i, want := range wantConnections {
		if result.LayerConnections[i] != want {
			t.Errorf("connection %d: got %+v, want %+v", i, result.LayerConnections[i], want)
		}
	}
	if len(result.Violations) != 0 {
		t.Errorf("expected no violations, got %+v", result.Violations)
	}

	m := result.Metrics
	if m.TotalFlows != 1 || m.EntryPoints != 1 || m.LayerCycles != 0 {
		t.Errorf("unexpected metrics %+v", m)
	}
	if m.AverageFlowLength != 4 || m.MaxFlowLength != 4 {
		t.Errorf("expected length metrics 4/4, got %.1f/%d", m.AverageFlowLength, m.MaxFlowLength)
	}
	if m.FlowsByType[FlowRequestResponse] != 1 || m.FlowsByDirection[DirectionInbound] != 1 {
		t.Errorf("unexpected type/direction counts %+v", m)
	}
}

func TestAnalyzer_Analyze_UpwardViolationAndCycle(t *testing.T) {
	classification, deps := orderFixture()
	// The model reaching back up to the controller closes a layer
	// cycle and breaks both the allowed-dependency list and the
	// top-down flow.
	deps["models/Order.ts"] = []string{"controllers/OrderController.ts"}

	a := NewAnalyzer(layeredPattern(t), classification, DefaultAnalyzerOptions(), nil)
	result := a.Analyze(context.Background(), deps)

	var disallowed, upward *Violation
	for i := range result.Violations {
		v := &result.Violations[i]
		if v.FromLayer != "persistence" || v.ToLayer != "presentation" {
			t.Errorf("unexpected violation %+v", v)
			continue
		}
		switch v.Type {
		case ViolationDisallowedDependency:
			disallowed = v
		case ViolationUpwardDependency:
			upward = v
		}
	}
	if disallowed == nil || upward == nil {
		t.Fatalf("expected disallowed and upward violations, got %+v", result.Violations)
	}
	if disallowed.Severity != architecture.ViolationSeverityWarning {
		t.Errorf("flexible pattern violations should be warnings, got %q", disallowed.Severity)
	}
	if disallowed.Count != 1 || upward.Count != 1 {
		t.Errorf("expected count 1, got %d/%d", disallowed.Count, upward.Count)
	}

	if result.Metrics.LayerCycles != 1 {
		t.Errorf("expected one layer cycle, got %d", result.Metrics.LayerCycles)
	}

	// The trace still terminates: the controller is already visited
	// when the model points back at it.
	if len(result.Flows) != 1 {
		t.Fatalf("expected one flow, got %d", len(result.Flows))
	}
	steps := result.Flows[0].Steps
	if len(steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(steps))
	}
	last := steps[len(steps)-1]
	if len(last.Next) != 1 || last.Next[0] != "controllers/OrderController.ts" {
		t.Errorf("expected model step to list the controller as next, got %v", last.Next)
	}
}

func TestAnalyzer_Analyze_CQRSCommand(t *testing.T) {
	classification := classified(
		cf("api/OrdersApi.ts", "presentation", architecture.RoleHandler),
		cf("commands/CreateOrder.ts", "business", architecture.RoleCommand),
	)
	deps := map[string][]string{
		"api/OrdersApi.ts": {"commands/CreateOrder.ts"},
	}

	a := NewAnalyzer(layeredPattern(t), classification, DefaultAnalyzerOptions(), nil)
	result := a.Analyze(context.Background(), deps)

	if len(result.Flows) != 1 {
		t.Fatalf("expected one flow, got %d", len(result.Flows))
	}
	if result.Flows[0].Type != FlowCQRSCommand {
		t.Errorf("expected cqrs-command, got %q", result.Flows[0].Type)
	}
	if result.Flows[0].Direction != DirectionInbound {
		t.Errorf("expected inbound, got %q", result.Flows[0].Direction)
	}
}

func TestFlowType(t *testing.T) {
	steps := func(roles ...architecture.Role) []Step {
		out := make([]Step, len(roles))
		for i, r := range roles {
			out[i] = Step{Role: r}
		}
		return out
	}

	tests := []struct {
		name  string
		steps []Step
		want  FlowType
	}{
		{"command wins", steps(architecture.RoleHandler, architecture.RoleCommand, architecture.RoleEvent), FlowCQRSCommand},
		{"query beats event", steps(architecture.RoleHandler, architecture.RoleQuery, architecture.RoleEvent), FlowCQRSQuery},
		{"event", steps(architecture.RoleHandler, architecture.RoleEvent), FlowEventDriven},
		{"controller alone", steps(architecture.RoleController, architecture.RoleService), FlowRequestResponse},
		{"handler alone", steps(architecture.RoleHandler, architecture.RoleRepository), FlowRequestResponse},
		{"nothing recognizable", steps(architecture.RoleUtil, architecture.RoleEntity), FlowUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flowType(tt.steps); got != tt.want {
				t.Errorf("flowType = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAnalyzer_Trace_DiamondRecordsFirstTraversal(t *testing.T) {
	classification := classified(
		cf("controllers/A.ts", "presentation", architecture.RoleController),
		cf("services/B.ts", "business", architecture.RoleService),
		cf("services/C.ts", "business", architecture.RoleService),
		cf("repositories/D.ts", "persistence", architecture.RoleRepository),
	)
	deps := map[string][]string{
		"controllers/A.ts": {"services/B.ts", "services/C.ts"},
		"services/B.ts":    {"repositories/D.ts"},
		"services/C.ts":    {"repositories/D.ts"},
	}

	a := NewAnalyzer(layeredPattern(t), classification, DefaultAnalyzerOptions(), nil)
	result := a.Analyze(context.Background(), deps)
	if len(result.Flows) != 1 {
		t.Fatalf("expected one flow, got %d", len(result.Flows))
	}

	// D is reached through B first; C still lists it as next but the
	// step is not repeated.
	want := []string{"controllers/A.ts", "services/B.ts", "repositories/D.ts", "services/C.ts"}
	steps := result.Flows[0].Steps
	if len(steps) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(steps))
	}
	for i := range want {
		if steps[i].File != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], steps[i].File)
		}
	}
	cStep := steps[3]
	if len(cStep.Next) != 1 || cStep.Next[0] != "repositories/D.ts" {
		t.Errorf("expected C to list D as next, got %v", cStep.Next)
	}
}

func TestAnalyzer_Trace_DepthBound(t *testing.T) {
	classification := classified(
		cf("controllers/A.ts", "presentation", architecture.RoleController),
		cf("services/B.ts", "business", architecture.RoleService),
		cf("repositories/C.ts", "persistence", architecture.RoleRepository),
	)
	deps := map[string][]string{
		"controllers/A.ts": {"services/B.ts"},
		"services/B.ts":    {"repositories/C.ts"},
	}

	opts := AnalyzerOptions{MaxDepth: 2}
	a := NewAnalyzer(layeredPattern(t), classification, opts, nil)
	result := a.Analyze(context.Background(), deps)

	if len(result.Flows) != 1 {
		t.Fatalf("expected one flow, got %d", len(result.Flows))
	}
	steps := result.Flows[0].Steps
	if len(steps) != 2 {
		t.Fatalf("expected depth bound at 2 steps, got %d", len(steps))
	}
	if result.Flows[0].ExitPoint != "services/B.ts" {
		t.Errorf("expected exit at the bound, got %s", result.Flows[0].ExitPoint)
	}
}

func TestAnalyzer_Analyze_ShortPathDiscarded(t *testing.T) {
	classification := classified(
		cf("controllers/Lonely.ts", "presentation", architecture.RoleController),
	)
	a := NewAnalyzer(layeredPattern(t), classification, DefaultAnalyzerOptions(), nil)

	result := a.Analyze(context.Background(), map[string][]string{})
	if len(result.Flows) != 0 {
		t.Errorf("single-step path must be discarded, got %d flows", len(result.Flows))
	}
	if result.Metrics.EntryPoints != 1 {
		t.Errorf("entry point still counts, got %d", result.Metrics.EntryPoints)
	}
	if result.Metrics.TotalFlows != 0 || result.Metrics.AverageFlowLength != 0 {
		t.Errorf("unexpected metrics %+v", result.Metrics)
	}
}

func TestAnalyzer_Analyze_OutboundDirection(t *testing.T) {
	// An entry-point handler living deep in the stack that reaches an
	// outer layer flows outward.
	classification := classified(
		cf("repositories/ChangeFeed.ts", "persistence", architecture.RoleHandler),
		cf("controllers/Notifier.ts", "presentation", architecture.RoleView),
	)
	deps := map[string][]string{
		"repositories/ChangeFeed.ts": {"controllers/Notifier.ts"},
	}

	a := NewAnalyzer(layeredPattern(t), classification, DefaultAnalyzerOptions(), nil)
	result := a.Analyze(context.Background(), deps)
	if len(result.Flows) != 1 {
		t.Fatalf("expected one flow, got %d", len(result.Flows))
	}
	if result.Flows[0].Direction != DirectionOutbound {
		t.Errorf("expected outbound, got %q", result.Flows[0].Direction)
	}
}

func TestAnalyzer_NilPattern(t *testing.T) {
	classification := classified(
		cf("controllers/A.ts", "", architecture.RoleController),
		cf("lib/B.ts", "", architecture.RoleService),
	)
	deps := map[string][]string{
		"controllers/A.ts": {"lib/B.ts"},
	}

	a := NewAnalyzer(nil, classification, DefaultAnalyzerOptions(), nil)
	result := a.Analyze(context.Background(), deps)

	if result.Pattern != "" {
		t.Errorf("expected empty pattern name, got %q", result.Pattern)
	}
	if len(result.Flows) != 1 {
		t.Fatalf("role-based entry points still trace, got %d flows", len(result.Flows))
	}
	if result.Flows[0].Direction != DirectionInternal {
		t.Errorf("expected internal direction without layers, got %q", result.Flows[0].Direction)
	}
	if len(result.LayerConnections) != 0 || len(result.Violations) != 0 {
		t.Errorf("expected no layer data without layers, got %+v", result)
	}
}

func TestAnalyzer_Analyze_Cancelled(t *testing.T) {
	classification, deps := orderFixture()
	a := NewAnalyzer(layeredPattern(t), classification, DefaultAnalyzerOptions(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := a.Analyze(ctx, deps)
	if len(result.Flows) != 0 {
		t.Errorf("expected no flows after cancellation, got %d", len(result.Flows))
	}
	// Aggregation is CPU-only and still runs.
	if len(result.LayerConnections) != 2 {
		t.Errorf("expected connections despite cancellation, got %d", len(result.LayerConnections))
	}
}

func TestCountLayerCycles(t *testing.T) {
	conns := func(pairs ...[2]string) []LayerConnection {
		out := make([]LayerConnection, len(pairs))
		for i, p := range pairs {
			out[i] = LayerConnection{From: p[0], To: p[1], Count: 1}
		}
		return out
	}

	tests := []struct {
		name string
		in   []LayerConnection
		want int
	}{
		{"acyclic chain", conns([2]string{"a", "b"}, [2]string{"b", "c"}), 0},
		{"three-layer ring", conns([2]string{"a", "b"}, [2]string{"b", "c"}, [2]string{"c", "a"}), 1},
		{"two independent rings", conns([2]string{"a", "b"}, [2]string{"b", "a"}, [2]string{"c", "d"}, [2]string{"d", "c"}), 2},
		{"one component, two back edges", conns([2]string{"a", "b"}, [2]string{"b", "a"}, [2]string{"a", "c"}, [2]string{"c", "a"}), 1},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := countLayerCycles(tt.in); got != tt.want {
				t.Errorf("countLayerCycles = %d, want %d", got, tt.want)
			}
		})
	}
}
