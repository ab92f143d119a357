// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the multi-level code graph model and its builder.
//
// The graph package represents an analyzed source tree as a directed graph
// over a seven-level hierarchy: system (L1), module (L2), file (L3), type
// (L4), function (L5), block (L6, reserved), and variable (L7). Edges
// capture structural relationships (contains, imports, exports) and
// behavioral ones (calls, awaits, extends, implements, reads, writes).
//
// # Hierarchy Model
//
// Every node except the system root has exactly one parent, and a node's
// Children list and each child's Parent field always agree. A child's
// level is numerically greater than or equal to its parent's level.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use during building. It is designed for:
//   - Single-writer access during build phase (AddNode, AddEdge calls)
//   - Read-only access after Freeze() is called
//
// After Freeze(), the graph can be safely read from multiple goroutines.
//
// # Lifecycle
//
// A typical graph lifecycle:
//  1. Create with NewGraph(projectRoot)
//  2. Build with AddNode(), AddChild(), and AddEdge() calls
//  3. Call Freeze() to finalize
//  4. Query with GetNode(), NodesByLevel(), Outgoing(), etc.
package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	// Once Freeze() is called, the graph becomes read-only and no further
	// nodes or edges can be added.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrNodeNotFound is returned when an operation references a
	// non-existent node. Both source and target nodes must exist before
	// an edge can be created.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when adding a node with an ID that
	// already exists in the graph.
	ErrDuplicateNode = errors.New("duplicate node ID")

	// ErrDuplicateEdge is returned when an edge with the same
	// (source, target, kind) triple already exists. The graph keeps at
	// most one edge per triple per run.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrMaxNodesExceeded is returned when the graph has reached its
	// configured maximum node capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when the graph has reached its
	// configured maximum edge capacity.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrInvalidNode is returned when attempting to add a nil node or a
	// node that fails validation.
	ErrInvalidNode = errors.New("invalid node")

	// ErrLevelOrder is returned when AddChild would place a child at a
	// numerically lower level than its parent.
	ErrLevelOrder = errors.New("child level below parent level")

	// ErrAlreadyParented is returned when AddChild targets a node that
	// already has a different parent. Every non-root node has exactly
	// one parent.
	ErrAlreadyParented = errors.New("node already has a parent")

	// ErrAncestryCycle is returned when AddChild would make a node its
	// own ancestor.
	ErrAncestryCycle = errors.New("node would become its own ancestor")

	// ErrBuildCancelled is returned when a build operation is cancelled
	// via context.
	ErrBuildCancelled = errors.New("build cancelled")
)
