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
	"errors"
	"testing"
)

// Helper to create a valid test node.
func makeNode(id string, kind NodeKind, name string) *CodeNode {
	return &CodeNode{
		ID:       id,
		Level:    kind.Level(),
		Kind:     kind,
		Name:     name,
		FullPath: name,
		Location: Location{File: "src/" + name + ".ts", Line: 1, EndLine: 10},
	}
}

func TestGraphState_String(t *testing.T) {
	tests := []struct {
		state    GraphState
		expected string
	}{
		{GraphStateBuilding, "building"},
		{GraphStateReadOnly, "readonly"},
		{GraphState(99), "unknown"},
	}

	for _, tc := range tests {
		got := tc.state.String()
		if got != tc.expected {
			t.Errorf("GraphState(%d).String() = %q, expected %q", tc.state, got, tc.expected)
		}
	}
}

func TestEdgeKind_String(t *testing.T) {
	tests := []struct {
		kind     EdgeKind
		expected string
	}{
		{EdgeKindUnknown, "unknown"},
		{EdgeKindContains, "contains"},
		{EdgeKindImports, "imports"},
		{EdgeKindExports, "exports"},
		{EdgeKindCalls, "calls"},
		{EdgeKindAwaits, "awaits"},
		{EdgeKindExtends, "extends"},
		{EdgeKindImplements, "implements"},
		{EdgeKindReads, "reads"},
		{EdgeKindWrites, "writes"},
		{EdgeKind(99), "unknown"},
	}

	for _, tc := range tests {
		got := tc.kind.String()
		if got != tc.expected {
			t.Errorf("EdgeKind(%d).String() = %q, expected %q", tc.kind, got, tc.expected)
		}
	}
}

func TestNodeKind_Level(t *testing.T) {
	tests := []struct {
		kind     NodeKind
		expected NodeLevel
	}{
		{NodeKindSystem, LevelSystem},
		{NodeKindModule, LevelModule},
		{NodeKindFile, LevelFile},
		{NodeKindClass, LevelType},
		{NodeKindInterface, LevelType},
		{NodeKindFunction, LevelFunction},
		{NodeKindMethod, LevelFunction},
		{NodeKindLoop, LevelBlock},
		{NodeKindVariable, LevelVariable},
		{NodeKindParameter, LevelVariable},
	}

	for _, tc := range tests {
		if got := tc.kind.Level(); got != tc.expected {
			t.Errorf("%s.Level() = %v, expected %v", tc.kind, got, tc.expected)
		}
	}
}

func TestNewGraph(t *testing.T) {
	t.Run("default options", func(t *testing.T) {
		g := NewGraph("/path/to/project")

		if g.ProjectRoot != "/path/to/project" {
			t.Errorf("ProjectRoot = %q, expected %q", g.ProjectRoot, "/path/to/project")
		}
		if g.State() != GraphStateBuilding {
			t.Errorf("State = %v, expected Building", g.State())
		}
		if g.NodeCount() != 0 || g.EdgeCount() != 0 {
			t.Errorf("new graph not empty: %d nodes, %d edges", g.NodeCount(), g.EdgeCount())
		}
	})

	t.Run("custom limits", func(t *testing.T) {
		g := NewGraph("/p", WithMaxNodes(2), WithMaxEdges(1))
		if g.options.MaxNodes != 2 {
			t.Errorf("MaxNodes = %d, expected 2", g.options.MaxNodes)
		}
		if g.options.MaxEdges != 1 {
			t.Errorf("MaxEdges = %d, expected 1", g.options.MaxEdges)
		}
	})
}

func TestGraph_AddNode(t *testing.T) {
	t.Run("valid node", func(t *testing.T) {
		g := NewGraph("/p")
		n := makeNode("n1", NodeKindFunction, "handler")

		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode failed: %v", err)
		}
		got, ok := g.GetNode("n1")
		if !ok || got != n {
			t.Error("GetNode did not return the added node")
		}
		if len(g.NodesByKind(NodeKindFunction)) != 1 {
			t.Error("kind index not updated")
		}
		if len(g.NodesByLevel(LevelFunction)) != 1 {
			t.Error("level index not updated")
		}
	})

	t.Run("nil node", func(t *testing.T) {
		g := NewGraph("/p")
		if err := g.AddNode(nil); !errors.Is(err, ErrInvalidNode) {
			t.Errorf("expected ErrInvalidNode, got %v", err)
		}
	})

	t.Run("empty ID", func(t *testing.T) {
		g := NewGraph("/p")
		n := makeNode("", NodeKindFunction, "f")
		if err := g.AddNode(n); !errors.Is(err, ErrInvalidNode) {
			t.Errorf("expected ErrInvalidNode, got %v", err)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		g := NewGraph("/p")
		n := &CodeNode{ID: "n1", Level: NodeLevel(9), Kind: NodeKindFunction}
		if err := g.AddNode(n); !errors.Is(err, ErrInvalidNode) {
			t.Errorf("expected ErrInvalidNode, got %v", err)
		}
	})

	t.Run("duplicate ID", func(t *testing.T) {
		g := NewGraph("/p")
		if err := g.AddNode(makeNode("n1", NodeKindFunction, "a")); err != nil {
			t.Fatal(err)
		}
		if err := g.AddNode(makeNode("n1", NodeKindFunction, "b")); !errors.Is(err, ErrDuplicateNode) {
			t.Errorf("expected ErrDuplicateNode, got %v", err)
		}
	})

	t.Run("capacity", func(t *testing.T) {
		g := NewGraph("/p", WithMaxNodes(1))
		if err := g.AddNode(makeNode("n1", NodeKindFunction, "a")); err != nil {
			t.Fatal(err)
		}
		if err := g.AddNode(makeNode("n2", NodeKindFunction, "b")); !errors.Is(err, ErrMaxNodesExceeded) {
			t.Errorf("expected ErrMaxNodesExceeded, got %v", err)
		}
	})

	t.Run("frozen", func(t *testing.T) {
		g := NewGraph("/p")
		g.Freeze()
		if err := g.AddNode(makeNode("n1", NodeKindFunction, "a")); !errors.Is(err, ErrGraphFrozen) {
			t.Errorf("expected ErrGraphFrozen, got %v", err)
		}
	})

	t.Run("first system node becomes root", func(t *testing.T) {
		g := NewGraph("/p")
		root := makeNode("sys", NodeKindSystem, "project")
		if err := g.AddNode(root); err != nil {
			t.Fatal(err)
		}
		if g.Root() != root {
			t.Error("Root() did not return the system node")
		}
	})
}

func TestGraph_AddChild(t *testing.T) {
	setup := func(t *testing.T) *Graph {
		t.Helper()
		g := NewGraph("/p")
		for _, n := range []*CodeNode{
			makeNode("sys", NodeKindSystem, "project"),
			makeNode("mod", NodeKindModule, "src"),
			makeNode("file", NodeKindFile, "main.ts"),
			makeNode("fn", NodeKindFunction, "main"),
		} {
			if err := g.AddNode(n); err != nil {
				t.Fatal(err)
			}
		}
		return g
	}

	t.Run("links both sides", func(t *testing.T) {
		g := setup(t)
		if err := g.AddChild("sys", "mod"); err != nil {
			t.Fatalf("AddChild failed: %v", err)
		}

		sys, _ := g.GetNode("sys")
		mod, _ := g.GetNode("mod")
		if len(sys.Children) != 1 || sys.Children[0] != "mod" {
			t.Errorf("parent children = %v, expected [mod]", sys.Children)
		}
		if mod.Parent != "sys" {
			t.Errorf("child parent = %q, expected sys", mod.Parent)
		}
	})

	t.Run("idempotent relink", func(t *testing.T) {
		g := setup(t)
		if err := g.AddChild("sys", "mod"); err != nil {
			t.Fatal(err)
		}
		if err := g.AddChild("sys", "mod"); err != nil {
			t.Fatalf("relink should be a no-op, got %v", err)
		}
		sys, _ := g.GetNode("sys")
		if len(sys.Children) != 1 {
			t.Errorf("children duplicated: %v", sys.Children)
		}
	})

	t.Run("second parent rejected", func(t *testing.T) {
		g := setup(t)
		if err := g.AddChild("sys", "file"); err != nil {
			t.Fatal(err)
		}
		if err := g.AddChild("mod", "file"); !errors.Is(err, ErrAlreadyParented) {
			t.Errorf("expected ErrAlreadyParented, got %v", err)
		}
	})

	t.Run("level order enforced", func(t *testing.T) {
		g := setup(t)
		if err := g.AddChild("fn", "mod"); !errors.Is(err, ErrLevelOrder) {
			t.Errorf("expected ErrLevelOrder, got %v", err)
		}
	})

	t.Run("missing nodes", func(t *testing.T) {
		g := setup(t)
		if err := g.AddChild("nope", "mod"); !errors.Is(err, ErrNodeNotFound) {
			t.Errorf("expected ErrNodeNotFound for parent, got %v", err)
		}
		if err := g.AddChild("sys", "nope"); !errors.Is(err, ErrNodeNotFound) {
			t.Errorf("expected ErrNodeNotFound for child, got %v", err)
		}
	})

	t.Run("no node becomes its own ancestor", func(t *testing.T) {
		g := NewGraph("/p")
		a := makeNode("a", NodeKindFunction, "a")
		b := makeNode("b", NodeKindFunction, "b")
		if err := g.AddNode(a); err != nil {
			t.Fatal(err)
		}
		if err := g.AddNode(b); err != nil {
			t.Fatal(err)
		}
		if err := g.AddChild("a", "b"); err != nil {
			t.Fatal(err)
		}
		if err := g.AddChild("b", "a"); !errors.Is(err, ErrAncestryCycle) {
			t.Errorf("expected ErrAncestryCycle, got %v", err)
		}
	})
}

func TestGraph_AddEdge(t *testing.T) {
	setup := func(t *testing.T) *Graph {
		t.Helper()
		g := NewGraph("/p")
		if err := g.AddNode(makeNode("a", NodeKindFunction, "a")); err != nil {
			t.Fatal(err)
		}
		if err := g.AddNode(makeNode("b", NodeKindFunction, "b")); err != nil {
			t.Fatal(err)
		}
		return g
	}

	t.Run("valid edge", func(t *testing.T) {
		g := setup(t)
		edge, err := g.AddEdge("a", "b", EdgeKindCalls, &Location{File: "src/a.ts", Line: 5})
		if err != nil {
			t.Fatalf("AddEdge failed: %v", err)
		}
		if edge.Source != "a" || edge.Target != "b" || edge.Kind != EdgeKindCalls {
			t.Errorf("edge fields wrong: %+v", edge)
		}
		if g.EdgeCount() != 1 {
			t.Errorf("EdgeCount = %d, expected 1", g.EdgeCount())
		}
		if len(g.Outgoing("a")) != 1 || len(g.Incoming("b")) != 1 {
			t.Error("adjacency not updated")
		}
		if len(g.EdgesByKind(EdgeKindCalls)) != 1 {
			t.Error("kind index not updated")
		}
	})

	t.Run("counters increment exactly once", func(t *testing.T) {
		g := setup(t)
		if _, err := g.AddEdge("a", "b", EdgeKindCalls, nil); err != nil {
			t.Fatal(err)
		}

		a, _ := g.GetNode("a")
		b, _ := g.GetNode("b")
		if a.Metrics.Dependencies != 1 {
			t.Errorf("source Dependencies = %d, expected 1", a.Metrics.Dependencies)
		}
		if b.Metrics.Dependents != 1 {
			t.Errorf("target Dependents = %d, expected 1", b.Metrics.Dependents)
		}

		// A rejected duplicate must not touch the counters.
		if _, err := g.AddEdge("a", "b", EdgeKindCalls, nil); !errors.Is(err, ErrDuplicateEdge) {
			t.Fatalf("expected ErrDuplicateEdge, got %v", err)
		}
		if a.Metrics.Dependencies != 1 || b.Metrics.Dependents != 1 {
			t.Error("duplicate edge changed counters")
		}
	})

	t.Run("duplicate triple rejected", func(t *testing.T) {
		g := setup(t)
		if _, err := g.AddEdge("a", "b", EdgeKindCalls, nil); err != nil {
			t.Fatal(err)
		}
		if _, err := g.AddEdge("a", "b", EdgeKindCalls, nil); !errors.Is(err, ErrDuplicateEdge) {
			t.Errorf("expected ErrDuplicateEdge, got %v", err)
		}
		// Same pair with a different kind is a distinct triple.
		if _, err := g.AddEdge("a", "b", EdgeKindAwaits, nil); err != nil {
			t.Errorf("distinct kind should be allowed: %v", err)
		}
	})

	t.Run("missing nodes", func(t *testing.T) {
		g := setup(t)
		if _, err := g.AddEdge("nope", "b", EdgeKindCalls, nil); !errors.Is(err, ErrNodeNotFound) {
			t.Errorf("expected ErrNodeNotFound, got %v", err)
		}
		if _, err := g.AddEdge("a", "nope", EdgeKindCalls, nil); !errors.Is(err, ErrNodeNotFound) {
			t.Errorf("expected ErrNodeNotFound, got %v", err)
		}
	})

	t.Run("capacity", func(t *testing.T) {
		g := NewGraph("/p", WithMaxEdges(1))
		if err := g.AddNode(makeNode("a", NodeKindFunction, "a")); err != nil {
			t.Fatal(err)
		}
		if err := g.AddNode(makeNode("b", NodeKindFunction, "b")); err != nil {
			t.Fatal(err)
		}
		if _, err := g.AddEdge("a", "b", EdgeKindCalls, nil); err != nil {
			t.Fatal(err)
		}
		if _, err := g.AddEdge("b", "a", EdgeKindCalls, nil); !errors.Is(err, ErrMaxEdgesExceeded) {
			t.Errorf("expected ErrMaxEdgesExceeded, got %v", err)
		}
	})

	t.Run("frozen", func(t *testing.T) {
		g := setup(t)
		g.Freeze()
		if _, err := g.AddEdge("a", "b", EdgeKindCalls, nil); !errors.Is(err, ErrGraphFrozen) {
			t.Errorf("expected ErrGraphFrozen, got %v", err)
		}
	})
}

func TestGraph_NoDuplicateTriplesAfterBuild(t *testing.T) {
	g := NewGraph("/p")
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		if err := g.AddNode(makeNode(id, NodeKindFunction, id)); err != nil {
			t.Fatal(err)
		}
	}

	// Attempt overlapping adds, including duplicates.
	for i := 0; i < 3; i++ {
		for _, from := range ids {
			for _, to := range ids {
				if from == to {
					continue
				}
				_, _ = g.AddEdge(from, to, EdgeKindCalls, nil)
			}
		}
	}
	g.Freeze()

	seen := make(map[string]bool)
	for _, e := range g.Edges() {
		key := e.Source + "|" + e.Target + "|" + e.Kind.String()
		if seen[key] {
			t.Errorf("duplicate edge triple after build: %s", key)
		}
		seen[key] = true
	}
}

func TestGraph_Freeze(t *testing.T) {
	g := NewGraph("/p")
	if g.IsFrozen() {
		t.Error("new graph should not be frozen")
	}
	g.Freeze()
	if !g.IsFrozen() {
		t.Error("graph should be frozen after Freeze()")
	}
	if g.BuiltAtMilli == 0 {
		t.Error("BuiltAtMilli not set by Freeze()")
	}
}

func TestGraph_Stats(t *testing.T) {
	g := NewGraph("/p")
	if err := g.AddNode(makeNode("sys", NodeKindSystem, "project")); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(makeNode("f1", NodeKindFile, "a.ts")); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(makeNode("f2", NodeKindFile, "b.ts")); err != nil {
		t.Fatal(err)
	}
	if _, err := g.AddEdge("f1", "f2", EdgeKindImports, nil); err != nil {
		t.Fatal(err)
	}
	g.Freeze()

	stats := g.Stats()
	if stats.NodeCount != 3 {
		t.Errorf("NodeCount = %d, expected 3", stats.NodeCount)
	}
	if stats.EdgeCount != 1 {
		t.Errorf("EdgeCount = %d, expected 1", stats.EdgeCount)
	}
	if stats.NodesByLevel[LevelFile] != 2 {
		t.Errorf("NodesByLevel[file] = %d, expected 2", stats.NodesByLevel[LevelFile])
	}
	if stats.EdgesByKind[EdgeKindImports] != 1 {
		t.Errorf("EdgesByKind[imports] = %d, expected 1", stats.EdgesByKind[EdgeKindImports])
	}
	if stats.BuiltAtMilli == 0 {
		t.Error("BuiltAtMilli not propagated")
	}
}

func TestGraph_Nodes_Iterator(t *testing.T) {
	g := NewGraph("/p")
	if err := g.AddNode(makeNode("a", NodeKindFunction, "a")); err != nil {
		t.Fatal(err)
	}
	if err := g.AddNode(makeNode("b", NodeKindFunction, "b")); err != nil {
		t.Fatal(err)
	}

	count := 0
	for range g.Nodes() {
		count++
	}
	if count != 2 {
		t.Errorf("iterated %d nodes, expected 2", count)
	}
}
