// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"
	"sort"
	"strings"
)

// IssueSeverity grades a structural finding.
type IssueSeverity string

const (
	// IssueSeverityInfo marks findings worth knowing, not acting on.
	IssueSeverityInfo IssueSeverity = "info"

	// IssueSeverityWarning marks findings that deserve attention.
	IssueSeverityWarning IssueSeverity = "warning"

	// IssueSeverityError marks findings that indicate real defects.
	IssueSeverityError IssueSeverity = "error"
)

// IssueKind tags the detector that produced a finding.
type IssueKind string

const (
	// IssueUnusedFunction flags private functions with no incoming
	// call or await edge.
	IssueUnusedFunction IssueKind = "unused_function"

	// IssueHighComplexity flags functions whose heuristic cyclomatic
	// complexity exceeds the configured thresholds.
	IssueHighComplexity IssueKind = "high_complexity"

	// IssueLongMethod flags functions whose line count exceeds the
	// configured thresholds.
	IssueLongMethod IssueKind = "long_method"

	// IssueGodClass flags types with too many direct children.
	IssueGodClass IssueKind = "god_class"

	// IssueCircularDependency flags module-level import cycles.
	IssueCircularDependency IssueKind = "circular_dependency"
)

// Issue is one structural finding on a built graph.
type Issue struct {
	// Kind tags the producing detector.
	Kind IssueKind `json:"kind"`

	// Severity grades the finding.
	Severity IssueSeverity `json:"severity"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// NodeID identifies the offending node, when the finding concerns
	// a single node.
	NodeID string `json:"nodeId,omitempty"`

	// Location points at the offending source, when known.
	Location *Location `json:"location,omitempty"`

	// Nodes lists every participant for multi-node findings (cycles).
	Nodes []string `json:"nodes,omitempty"`
}

// IssueOptions tunes the structural issue detectors.
type IssueOptions struct {
	// ComplexityWarn is the complexity above which a warning fires.
	ComplexityWarn int

	// ComplexityError is the complexity above which an error fires.
	ComplexityError int

	// LongMethodInfo is the line count above which an info fires.
	LongMethodInfo int

	// LongMethodWarn is the line count above which a warning fires.
	LongMethodWarn int

	// GodClassChildren is the direct-child count above which a type
	// is flagged.
	GodClassChildren int
}

// DefaultIssueOptions returns the standard thresholds.
func DefaultIssueOptions() IssueOptions {
	return IssueOptions{
		ComplexityWarn:   10,
		ComplexityError:  20,
		LongMethodInfo:   50,
		LongMethodWarn:   100,
		GodClassChildren: 20,
	}
}

// DetectIssues runs every structural detector over a built graph.
//
// Description:
//
//	Detectors run in a fixed order (unused functions, complexity,
//	long methods, god classes, module cycles) and only read the
//	graph, so the graph may be frozen. Output order is deterministic
//	for a given graph.
func DetectIssues(g *Graph, opts IssueOptions) []Issue {
	var issues []Issue
	issues = append(issues, detectUnusedFunctions(g)...)
	issues = append(issues, detectComplexity(g, opts)...)
	issues = append(issues, detectLongMethods(g, opts)...)
	issues = append(issues, detectGodClasses(g, opts)...)
	issues = append(issues, detectModuleCycles(g)...)
	return issues
}

// runtimeInvoked reports whether a function is entered by the runtime
// or language machinery rather than by an in-project call site, and
// therefore can never be "unused" on call-edge evidence alone.
func runtimeInvoked(node *CodeNode) bool {
	if node.Kind == NodeKindConstructor {
		return true
	}
	switch node.Name {
	case "main", "init":
		return true
	}
	// Python dunder methods are dispatched by the interpreter.
	return strings.HasPrefix(node.Name, "__") && strings.HasSuffix(node.Name, "__")
}

// detectUnusedFunctions flags private functions without incoming call
// or await edges.
func detectUnusedFunctions(g *Graph) []Issue {
	var issues []Issue
	for _, node := range g.NodesByLevel(LevelFunction) {
		if node.Visibility != VisibilityPrivate || runtimeInvoked(node) {
			continue
		}

		called := false
		for _, edge := range g.Incoming(node.ID) {
			if edge.Kind == EdgeKindCalls || edge.Kind == EdgeKindAwaits {
				called = true
				break
			}
		}
		if called {
			continue
		}

		loc := node.Location
		issues = append(issues, Issue{
			Kind:     IssueUnusedFunction,
			Severity: IssueSeverityWarning,
			Message:  fmt.Sprintf("private function %s is never called", node.Name),
			NodeID:   node.ID,
			Location: &loc,
		})
	}
	return issues
}

// detectComplexity flags functions above the complexity thresholds.
func detectComplexity(g *Graph, opts IssueOptions) []Issue {
	var issues []Issue
	for _, node := range g.NodesByLevel(LevelFunction) {
		c := node.Metrics.Complexity
		if c <= opts.ComplexityWarn {
			continue
		}

		severity := IssueSeverityWarning
		if c > opts.ComplexityError {
			severity = IssueSeverityError
		}
		loc := node.Location
		issues = append(issues, Issue{
			Kind:     IssueHighComplexity,
			Severity: severity,
			Message:  fmt.Sprintf("function %s has cyclomatic complexity %d", node.Name, c),
			NodeID:   node.ID,
			Location: &loc,
		})
	}
	return issues
}

// detectLongMethods flags functions above the length thresholds.
func detectLongMethods(g *Graph, opts IssueOptions) []Issue {
	var issues []Issue
	for _, node := range g.NodesByLevel(LevelFunction) {
		loc := node.Metrics.LOC
		if loc <= opts.LongMethodInfo {
			continue
		}

		severity := IssueSeverityInfo
		if loc > opts.LongMethodWarn {
			severity = IssueSeverityWarning
		}
		location := node.Location
		issues = append(issues, Issue{
			Kind:     IssueLongMethod,
			Severity: severity,
			Message:  fmt.Sprintf("function %s is %d lines long", node.Name, loc),
			NodeID:   node.ID,
			Location: &location,
		})
	}
	return issues
}

// detectGodClasses flags types with too many direct children.
func detectGodClasses(g *Graph, opts IssueOptions) []Issue {
	var issues []Issue
	for _, node := range g.NodesByLevel(LevelType) {
		if len(node.Children) <= opts.GodClassChildren {
			continue
		}
		loc := node.Location
		issues = append(issues, Issue{
			Kind:     IssueGodClass,
			Severity: IssueSeverityWarning,
			Message:  fmt.Sprintf("type %s has %d members", node.Name, len(node.Children)),
			NodeID:   node.ID,
			Location: &loc,
		})
	}
	return issues
}

// detectModuleCycles reports each strongly connected component of the
// module import graph as a single issue naming the full cycle.
func detectModuleCycles(g *Graph) []Issue {
	moduleLevel := func(id string) (*CodeNode, bool) {
		node, ok := g.GetNode(id)
		if !ok || node.Level != LevelModule {
			return nil, false
		}
		return node, true
	}

	adjacency := make(map[string][]string)
	for _, edge := range g.EdgesByKind(EdgeKindImports) {
		if _, ok := moduleLevel(edge.Source); !ok {
			continue
		}
		if _, ok := moduleLevel(edge.Target); !ok {
			continue
		}
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}

	var issues []Issue
	for _, scc := range stronglyConnected(adjacency) {
		names := make([]string, 0, len(scc))
		for _, id := range scc {
			if node, ok := g.GetNode(id); ok {
				names = append(names, node.Name)
			} else {
				names = append(names, id)
			}
		}
		sort.Strings(names)

		cycle := append(append([]string{}, names...), names[0])
		issues = append(issues, Issue{
			Kind:     IssueCircularDependency,
			Severity: IssueSeverityError,
			Message:  "circular module dependency: " + strings.Join(cycle, " -> "),
			Nodes:    names,
		})
	}

	// Deterministic ordering across SCC discovery order.
	sort.Slice(issues, func(i, j int) bool { return issues[i].Message < issues[j].Message })
	return issues
}

// stronglyConnected returns every SCC with more than one member,
// using Tarjan's algorithm.
func stronglyConnected(edges map[string][]string) [][]string {
	index := 0
	stack := make([]string, 0)
	onStack := make(map[string]bool)
	indices := make(map[string]int)
	lowlinks := make(map[string]int)
	var sccs [][]string

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlinks[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				if lowlinks[w] < lowlinks[v] {
					lowlinks[v] = lowlinks[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlinks[v] {
					lowlinks[v] = indices[w]
				}
			}
		}

		if lowlinks[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			if len(scc) > 1 {
				sccs = append(sccs, scc)
			}
		}
	}

	// Iterate in sorted order for reproducible discovery.
	keys := make([]string, 0, len(edges))
	for v := range edges {
		keys = append(keys, v)
	}
	sort.Strings(keys)
	for _, v := range keys {
		if _, visited := indices[v]; !visited {
			strongConnect(v)
		}
	}

	return sccs
}
