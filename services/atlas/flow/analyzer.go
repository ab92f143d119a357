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
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/architecture"
)

// DefaultMaxFlowDepth bounds how many steps one trace may take.
const DefaultMaxFlowDepth = 20

// entryRoles are the roles whose files start a trace.
var entryRoles = map[architecture.Role]bool{
	architecture.RoleController: true,
	architecture.RoleHandler:    true,
	architecture.RoleAdapter:    true,
}

// entryLayers are the layers whose files start a trace even without an
// entry role.
var entryLayers = map[string]bool{
	"presentation": true,
	"interface":    true,
	"adapters-in":  true,
}

// AnalyzerOptions tunes an analysis pass.
type AnalyzerOptions struct {
	// MaxDepth bounds the number of steps per traced flow.
	MaxDepth int
}

// DefaultAnalyzerOptions returns the default tuning.
func DefaultAnalyzerOptions() AnalyzerOptions {
	return AnalyzerOptions{MaxDepth: DefaultMaxFlowDepth}
}

// Analyzer traces data flows for one detected pattern and its file
// classification.
//
// The pattern may be nil when detection found nothing; traces still
// run from role-based entry points, but directions come back internal
// and no layer rules are checked.
type Analyzer struct {
	pattern        *architecture.ArchitecturePattern
	classification *architecture.ClassificationResult
	byPath         map[string]*architecture.ClassifiedFile
	opts           AnalyzerOptions
	log            *slog.Logger
}

// NewAnalyzer creates an Analyzer over one classification result. A
// nil logger falls back to slog.Default().
func NewAnalyzer(pattern *architecture.ArchitecturePattern, classification *architecture.ClassificationResult, opts AnalyzerOptions, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxFlowDepth
	}
	a := &Analyzer{
		pattern:        pattern,
		classification: classification,
		byPath:         make(map[string]*architecture.ClassifiedFile),
		opts:           opts,
		log:            logger,
	}
	if classification != nil {
		for i := range classification.Files {
			cf := &classification.Files[i]
			a.byPath[cf.Path] = cf
		}
	}
	return a
}

// Analyze traces flows from every entry point and aggregates the
// layer-connection statistics.
//
// deps maps each file to the in-tree files it imports, the same map
// the detector consumes. Cancelling the context stops tracing early
// and returns what was gathered so far.
func (a *Analyzer) Analyze(ctx context.Context, deps map[string][]string) FlowAnalysisResult {
	result := FlowAnalysisResult{}
	if a.pattern != nil {
		result.Pattern = a.pattern.Name
	}
	if a.classification == nil {
		return result
	}

	entries := a.entryPoints()
	result.Metrics.EntryPoints = len(entries)

	for _, entry := range entries {
		if ctx.Err() != nil {
			a.log.Debug("flow analysis cancelled", "tracedFlows", len(result.Flows))
			break
		}
		steps := a.trace(entry, deps)
		if len(steps) < 2 {
			continue
		}
		result.Flows = append(result.Flows, a.buildFlow(entry, steps))
	}

	result.LayerConnections = a.layerConnections(deps)
	result.Violations = a.connectionViolations(result.LayerConnections)
	a.fillMetrics(&result)

	a.log.Info("flow analysis complete",
		"entryPoints", len(entries),
		"flows", len(result.Flows),
		"layerConnections", len(result.LayerConnections),
		"violations", len(result.Violations),
		"layerCycles", result.Metrics.LayerCycles)
	return result
}

// entryPoints lists the files a trace may start from, sorted for
// deterministic output.
func (a *Analyzer) entryPoints() []string {
	var entries []string
	for i := range a.classification.Files {
		cf := &a.classification.Files[i]
		if entryRoles[cf.Role] || entryLayers[cf.Layer] {
			entries = append(entries, cf.Path)
		}
	}
	sort.Strings(entries)
	return entries
}

// trace walks the import graph depth-first from entry. Each file is
// recorded once, in first-traversal order; revisits and files beyond
// the depth bound are skipped.
func (a *Analyzer) trace(entry string, deps map[string][]string) []Step {
	visited := make(map[string]bool)
	var steps []Step

	var walk func(file string, depth int)
	walk = func(file string, depth int) {
		if depth > a.opts.MaxDepth || visited[file] {
			return
		}
		cf, ok := a.byPath[file]
		if !ok {
			return
		}
		visited[file] = true

		var next []string
		for _, target := range deps[file] {
			if _, known := a.byPath[target]; known {
				next = append(next, target)
			}
		}
		steps = append(steps, Step{
			File:   file,
			Layer:  cf.Layer,
			Role:   cf.Role,
			Action: roleAction(cf.Role),
			Next:   next,
		})
		for _, target := range next {
			walk(target, depth+1)
		}
	}
	walk(entry, 1)
	return steps
}

// buildFlow assembles one DataFlow from a traced step list.
func (a *Analyzer) buildFlow(entry string, steps []Step) DataFlow {
	var layers []string
	seen := make(map[string]bool)
	for i := range steps {
		if l := steps[i].Layer; l != "" && !seen[l] {
			seen[l] = true
			layers = append(layers, l)
		}
	}
	return DataFlow{
		ID:         uuid.NewString(),
		Name:       flowName(entry),
		Type:       flowType(steps),
		Steps:      steps,
		EntryPoint: entry,
		ExitPoint:  steps[len(steps)-1].File,
		Layers:     layers,
		Direction:  a.direction(steps),
	}
}

// flowName derives a display name from the entry file.
func flowName(entry string) string {
	base := path.Base(entry)
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base + " flow"
}

// flowType infers the interaction kind from the roles a trace touched.
// Command beats query beats event; a plain controller or handler path
// is request-response.
func flowType(steps []Step) FlowType {
	roles := make(map[architecture.Role]bool, len(steps))
	for i := range steps {
		roles[steps[i].Role] = true
	}
	switch {
	case roles[architecture.RoleCommand]:
		return FlowCQRSCommand
	case roles[architecture.RoleQuery]:
		return FlowCQRSQuery
	case roles[architecture.RoleEvent]:
		return FlowEventDriven
	case roles[architecture.RoleController] || roles[architecture.RoleHandler]:
		return FlowRequestResponse
	default:
		return FlowUnknown
	}
}

// direction compares the layer level of the first and last step. Level
// 1 is outermost, so moving to a higher level number is moving inward.
func (a *Analyzer) direction(steps []Step) Direction {
	first := a.levelOf(steps[0].Layer)
	last := a.levelOf(steps[len(steps)-1].Layer)
	if first == 0 || last == 0 {
		return DirectionInternal
	}
	switch {
	case first < last:
		return DirectionInbound
	case first > last:
		return DirectionOutbound
	default:
		return DirectionInternal
	}
}

// levelOf resolves a layer name to its level under the active pattern.
// Zero means unknown.
func (a *Analyzer) levelOf(layer string) int {
	if a.pattern == nil || layer == "" {
		return 0
	}
	if l := a.pattern.LayerByName(layer); l != nil {
		return l.Level
	}
	return 0
}

// fillMetrics computes the aggregate metrics of one result.
func (a *Analyzer) fillMetrics(result *FlowAnalysisResult) {
	m := &result.Metrics
	m.TotalFlows = len(result.Flows)
	m.FlowsByType = make(map[FlowType]int)
	m.FlowsByDirection = make(map[Direction]int)

	totalSteps := 0
	for i := range result.Flows {
		f := &result.Flows[i]
		m.FlowsByType[f.Type]++
		m.FlowsByDirection[f.Direction]++
		totalSteps += len(f.Steps)
		if len(f.Steps) > m.MaxFlowLength {
			m.MaxFlowLength = len(f.Steps)
		}
	}
	if m.TotalFlows > 0 {
		m.AverageFlowLength = float64(totalSteps) / float64(m.TotalFlows)
	}
	m.LayerCycles = countLayerCycles(result.LayerConnections)
}

// roleAction renders a short description of what a step does.
func roleAction(role architecture.Role) string {
	switch role {
	case architecture.RoleController:
		return "receives and routes the request"
	case architecture.RoleHandler:
		return "handles the request"
	case architecture.RoleMiddleware:
		return "intercepts the request"
	case architecture.RoleValidator:
		return "validates input"
	case architecture.RoleAdapter:
		return "translates an external interface"
	case architecture.RolePort:
		return "declares a boundary contract"
	case architecture.RoleUseCase:
		return "orchestrates the use case"
	case architecture.RoleService:
		return "executes business logic"
	case architecture.RoleCommand:
		return "executes a command"
	case architecture.RoleQuery:
		return "answers a query"
	case architecture.RoleEvent:
		return "publishes or consumes an event"
	case architecture.RoleRepository:
		return "reads and writes persistent data"
	case architecture.RoleEntity:
		return "carries domain state"
	case architecture.RoleAggregate:
		return "guards aggregate consistency"
	case architecture.RoleValueObject:
		return "carries an immutable value"
	case architecture.RoleDTO:
		return "shapes transferred data"
	case architecture.RoleMapper:
		return "maps between representations"
	case architecture.RoleFactory:
		return "constructs domain objects"
	case architecture.RoleView:
		return "renders output"
	case architecture.RoleComponent:
		return "renders a UI component"
	case architecture.RoleStore:
		return "holds client state"
	case architecture.RoleHook:
		return "provides reusable view logic"
	case architecture.RoleConfig:
		return "supplies configuration"
	case architecture.RoleUtil, architecture.RoleHelper:
		return "provides supporting logic"
	case architecture.RoleConstant:
		return "provides shared constants"
	case architecture.RoleType:
		return "declares shared types"
	default:
		return "processes data"
	}
}

// =============================================================================
// Layer connections
// =============================================================================

// layerConnections aggregates every inter-layer import edge, not just
// the ones traced flows touched.
func (a *Analyzer) layerConnections(deps map[string][]string) []LayerConnection {
	type edge struct{ from, to string }
	counts := make(map[edge]int)
	for src, targets := range deps {
		srcFile, ok := a.byPath[src]
		if !ok || srcFile.Layer == "" {
			continue
		}
		for _, target := range targets {
			targetFile, ok := a.byPath[target]
			if !ok || targetFile.Layer == "" || targetFile.Layer == srcFile.Layer {
				continue
			}
			counts[edge{srcFile.Layer, targetFile.Layer}]++
		}
	}

	connections := make([]LayerConnection, 0, len(counts))
	for e, n := range counts {
		connections = append(connections, LayerConnection{
			From:    e.from,
			To:      e.to,
			Count:   n,
			Allowed: a.connectionAllowed(e.from, e.to),
		})
	}
	sort.Slice(connections, func(i, j int) bool {
		if connections[i].From != connections[j].From {
			return connections[i].From < connections[j].From
		}
		return connections[i].To < connections[j].To
	})
	return connections
}

// connectionAllowed checks a connection against the pattern's
// allowed-dependency lists.
func (a *Analyzer) connectionAllowed(from, to string) bool {
	if a.pattern == nil {
		return true
	}
	l := a.pattern.LayerByName(from)
	if l == nil {
		return true
	}
	return l.Allows(to)
}

// connectionViolations flags disallowed connections and, under
// top-down patterns, connections that point from a deeper layer back
// out to a shallower one.
func (a *Analyzer) connectionViolations(connections []LayerConnection) []Violation {
	if a.pattern == nil {
		return nil
	}
	severity := a.pattern.ViolationSeverityFor()
	var out []Violation
	for _, c := range connections {
		if !c.Allowed {
			out = append(out, Violation{
				Type:      ViolationDisallowedDependency,
				FromLayer: c.From,
				ToLayer:   c.To,
				Count:     c.Count,
				Severity:  severity,
				Description: fmt.Sprintf("%s may not depend on %s (%d imports)",
					c.From, c.To, c.Count),
			})
		}
		if a.pattern.FlowDirection == architecture.FlowTopDown {
			fromLevel := a.levelOf(c.From)
			toLevel := a.levelOf(c.To)
			if fromLevel > 0 && toLevel > 0 && fromLevel > toLevel {
				out = append(out, Violation{
					Type:      ViolationUpwardDependency,
					FromLayer: c.From,
					ToLayer:   c.To,
					Count:     c.Count,
					Severity:  severity,
					Description: fmt.Sprintf("%s depends upward on %s against the top-down flow (%d imports)",
						c.From, c.To, c.Count),
				})
			}
		}
	}
	return out
}

// countLayerCycles runs a depth-first search with a recursion stack
// over the layer connection graph and counts distinct cycle entry
// points: grey nodes reached again while still on the stack.
func countLayerCycles(connections []LayerConnection) int {
	adj := make(map[string][]string)
	nodes := make(map[string]bool)
	for _, c := range connections {
		adj[c.From] = append(adj[c.From], c.To)
		nodes[c.From] = true
		nodes[c.To] = true
	}

	const (
		white = 0
		grey  = 1
		black = 2
	)
	state := make(map[string]int, len(nodes))
	entries := make(map[string]bool)

	var visit func(n string)
	visit = func(n string) {
		state[n] = grey
		for _, m := range adj[n] {
			switch state[m] {
			case white:
				visit(m)
			case grey:
				entries[m] = true
			}
		}
		state[n] = black
	}

	ordered := make([]string, 0, len(nodes))
	for n := range nodes {
		ordered = append(ordered, n)
	}
	sort.Strings(ordered)
	for _, n := range ordered {
		if state[n] == white {
			visit(n)
		}
	}
	return len(entries)
}
