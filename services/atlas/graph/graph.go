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
	"time"
)

// edgeKey identifies an edge by its (source, target, kind) triple.
//
// The graph keeps at most one edge per triple per run.
type edgeKey struct {
	source string
	target string
	kind   EdgeKind
}

// Graph represents the multi-level code graph for one analyzed tree.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use during building. It is designed
//	for single-writer access during build, then read-only after Freeze().
//	After Freeze() is called, the graph can be safely read from multiple
//	goroutines, but no further modifications are allowed.
//
// Lifecycle:
//
//  1. Create with NewGraph(projectRoot)
//  2. Build with AddNode(), AddChild(), and AddEdge() calls
//  3. Call Freeze() to finalize
//  4. Query with GetNode(), NodesByLevel(), traversal helpers, etc.
type Graph struct {
	// ProjectRoot is the absolute path to the analyzed root directory.
	ProjectRoot string

	// nodes maps node ID to CodeNode. Unexported to prevent direct access.
	nodes map[string]*CodeNode

	// edges contains all edges in insertion order.
	edges []*CodeEdge

	// rootID is the ID of the single L1 system node, once added.
	rootID string

	// nodesByLevel groups nodes by hierarchy level.
	// Secondary index for O(1) level-based lookup; array indexed by
	// NodeLevel for cache-friendly access (index 0 unused).
	// Thread safety: writes during build only, reads after Freeze().
	nodesByLevel [LevelVariable + 1][]*CodeNode

	// nodesByKind groups nodes by kind.
	// Thread safety: writes during build only, reads after Freeze().
	nodesByKind map[NodeKind][]*CodeNode

	// edgesByKind groups edges by kind. Array indexed by EdgeKind.
	// Thread safety: writes during build only, reads after Freeze().
	edgesByKind [NumEdgeKinds][]*CodeEdge

	// edgeKeys tracks (source, target, kind) triples for duplicate
	// rejection.
	edgeKeys map[edgeKey]struct{}

	// outgoing maps node ID to edges where that node is the source.
	outgoing map[string][]*CodeEdge

	// incoming maps node ID to edges where that node is the target.
	incoming map[string][]*CodeEdge

	// state is the current lifecycle state.
	state GraphState

	// options contains configuration.
	options GraphOptions

	// BuiltAtMilli is the Unix timestamp in milliseconds when Freeze()
	// was called. Zero if the graph has not been frozen.
	BuiltAtMilli int64
}

// NewGraph creates a new empty graph for the given project root.
//
// Description:
//
//	Creates a graph in the Building state, ready to accept AddNode and
//	AddEdge calls. The graph must be frozen with Freeze() before it is
//	shared across goroutines.
//
// Inputs:
//
//	projectRoot - Absolute path to the analyzed root directory.
//	opts - Optional configuration options.
//
// Example:
//
//	// Default options
//	g := NewGraph("/path/to/project")
//
//	// Custom limits
//	g := NewGraph("/path/to/project",
//	    WithMaxNodes(100_000),
//	    WithMaxEdges(1_000_000),
//	)
func NewGraph(projectRoot string, opts ...GraphOption) *Graph {
	options := DefaultGraphOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Graph{
		ProjectRoot: projectRoot,
		nodes:       make(map[string]*CodeNode),
		edges:       make([]*CodeEdge, 0),
		nodesByKind: make(map[NodeKind][]*CodeNode),
		edgeKeys:    make(map[edgeKey]struct{}),
		outgoing:    make(map[string][]*CodeEdge),
		incoming:    make(map[string][]*CodeEdge),
		state:       GraphStateBuilding,
		options:     options,
	}
}

// State returns the current lifecycle state of the graph.
func (g *Graph) State() GraphState {
	return g.state
}

// IsFrozen returns true if the graph is in read-only mode.
func (g *Graph) IsFrozen() bool {
	return g.state == GraphStateReadOnly
}

// Freeze transitions the graph to read-only mode.
//
// After calling Freeze(), AddNode, AddChild, and AddEdge return
// ErrGraphFrozen. This operation is irreversible. The BuiltAtMilli
// timestamp is set to the current time.
func (g *Graph) Freeze() {
	g.state = GraphStateReadOnly
	g.BuiltAtMilli = time.Now().UnixMilli()
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Root returns the L1 system node, or nil if none has been added.
func (g *Graph) Root() *CodeNode {
	if g.rootID == "" {
		return nil
	}
	return g.nodes[g.rootID]
}

// AddNode adds a node to the graph.
//
// Description:
//
//	Validates and stores the node, updating the level and kind indexes.
//	The first LevelSystem node added becomes the graph root. The node's
//	Dependencies/Dependents counters must be zero on entry; they are
//	maintained by AddEdge.
//
// Inputs:
//
//	node - The node to add. Must be non-nil with a non-empty ID and a
//	       valid level.
//
// Outputs:
//
//	error - Non-nil if the graph is frozen, at capacity, or the node is
//	        invalid or a duplicate.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrInvalidNode - Node is nil, has no ID, or has an invalid level
//	ErrDuplicateNode - Node with same ID already exists
//	ErrMaxNodesExceeded - Graph is at node capacity
//
// Ownership:
//
//	The graph stores the node pointer and takes ownership of hierarchy
//	and metrics mutation. Callers MUST NOT modify the node after this
//	call.
func (g *Graph) AddNode(node *CodeNode) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}

	if node == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidNode)
	}
	if node.ID == "" {
		return fmt.Errorf("%w: empty ID", ErrInvalidNode)
	}
	if !node.Level.Valid() {
		return fmt.Errorf("%w: level %d out of range", ErrInvalidNode, node.Level)
	}

	if len(g.nodes) >= g.options.MaxNodes {
		return ErrMaxNodesExceeded
	}

	if _, exists := g.nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}

	g.nodes[node.ID] = node
	g.nodesByLevel[node.Level] = append(g.nodesByLevel[node.Level], node)
	g.nodesByKind[node.Kind] = append(g.nodesByKind[node.Kind], node)

	if node.Level == LevelSystem && g.rootID == "" {
		g.rootID = node.ID
	}

	return nil
}

// GetNode retrieves a node by its ID.
//
// Performs O(1) lookup in the node map. Returns the node and true if
// found, nil and false otherwise.
func (g *Graph) GetNode(id string) (*CodeNode, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// AddChild links a child node under a parent in the hierarchy.
//
// Description:
//
//	Appends childID to the parent's Children list and sets the child's
//	Parent field, keeping both sides consistent. Re-linking a child to
//	the parent it already has is a no-op.
//
// Inputs:
//
//	parentID - ID of the parent node. Must exist.
//	childID - ID of the child node. Must exist.
//
// Outputs:
//
//	error - Non-nil if the link would violate the hierarchy model.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrNodeNotFound - Parent or child does not exist
//	ErrAlreadyParented - Child already has a different parent
//	ErrLevelOrder - Child level is numerically below parent level
//	ErrAncestryCycle - Link would make the child its own ancestor
func (g *Graph) AddChild(parentID, childID string) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}

	parent, ok := g.nodes[parentID]
	if !ok {
		return fmt.Errorf("%w: parent %s", ErrNodeNotFound, parentID)
	}
	child, ok := g.nodes[childID]
	if !ok {
		return fmt.Errorf("%w: child %s", ErrNodeNotFound, childID)
	}

	if child.Parent == parentID {
		return nil
	}
	if child.Parent != "" {
		return fmt.Errorf("%w: %s is under %s", ErrAlreadyParented, childID, child.Parent)
	}
	if child.Level < parent.Level {
		return fmt.Errorf("%w: child %s (L%d) under parent %s (L%d)",
			ErrLevelOrder, childID, child.Level, parentID, parent.Level)
	}
	if g.isAncestor(childID, parentID) {
		return fmt.Errorf("%w: %s", ErrAncestryCycle, childID)
	}

	parent.Children = append(parent.Children, childID)
	child.Parent = parentID
	return nil
}

// isAncestor reports whether candidate is an ancestor of nodeID (or the
// node itself).
func (g *Graph) isAncestor(candidate, nodeID string) bool {
	seen := make(map[string]bool)
	for id := nodeID; id != ""; {
		if id == candidate {
			return true
		}
		if seen[id] {
			return false
		}
		seen[id] = true
		node, ok := g.nodes[id]
		if !ok {
			return false
		}
		id = node.Parent
	}
	return false
}

// AddEdge creates a directed edge between two nodes.
//
// Description:
//
//	Creates an edge from the source node to the target node with the
//	given kind. Both nodes must already exist. At most one edge per
//	(source, target, kind) triple is kept; a second attempt returns
//	ErrDuplicateEdge and changes nothing. On success the source node's
//	Dependencies counter and the target node's Dependents counter are
//	each incremented exactly once.
//
// Inputs:
//
//	source - ID of the source node.
//	target - ID of the target node.
//	kind - The relationship kind.
//	loc - Where the relationship is expressed, or nil.
//
// Outputs:
//
//	*CodeEdge - The stored edge on success, nil on error.
//	error - Non-nil if the graph is frozen, at capacity, nodes are
//	        missing, or the triple already exists.
//
// Errors:
//
//	ErrGraphFrozen - Graph has been frozen
//	ErrNodeNotFound - Source or target node doesn't exist
//	ErrDuplicateEdge - The (source, target, kind) triple already exists
//	ErrMaxEdgesExceeded - Graph is at edge capacity
func (g *Graph) AddEdge(source, target string, kind EdgeKind, loc *Location) (*CodeEdge, error) {
	if g.state == GraphStateReadOnly {
		return nil, ErrGraphFrozen
	}

	if len(g.edges) >= g.options.MaxEdges {
		return nil, ErrMaxEdgesExceeded
	}

	fromNode, fromOK := g.nodes[source]
	if !fromOK {
		return nil, fmt.Errorf("%w: source %s", ErrNodeNotFound, source)
	}
	toNode, toOK := g.nodes[target]
	if !toOK {
		return nil, fmt.Errorf("%w: target %s", ErrNodeNotFound, target)
	}

	key := edgeKey{source: source, target: target, kind: kind}
	if _, exists := g.edgeKeys[key]; exists {
		return nil, fmt.Errorf("%w: %s -[%s]-> %s", ErrDuplicateEdge, source, kind, target)
	}

	edge := &CodeEdge{
		ID:       fmt.Sprintf("e%d", len(g.edges)+1),
		Source:   source,
		Target:   target,
		Kind:     kind,
		Location: loc,
	}

	g.edges = append(g.edges, edge)
	g.edgeKeys[key] = struct{}{}
	g.outgoing[source] = append(g.outgoing[source], edge)
	g.incoming[target] = append(g.incoming[target], edge)

	if kind >= 0 && kind < NumEdgeKinds {
		g.edgesByKind[kind] = append(g.edgesByKind[kind], edge)
	}

	fromNode.Metrics.Dependencies++
	toNode.Metrics.Dependents++

	return edge, nil
}

// HasEdge reports whether an edge with the given triple exists.
func (g *Graph) HasEdge(source, target string, kind EdgeKind) bool {
	_, exists := g.edgeKeys[edgeKey{source: source, target: target, kind: kind}]
	return exists
}

// Nodes returns an iterator function over all nodes in the graph.
//
// Description:
//
//	Returns a function usable with range-over-func iteration. This
//	allows iteration without exposing the internal map.
//
// Example:
//
//	for id, node := range g.Nodes() {
//	    fmt.Printf("Node: %s (%s)\n", id, node.Kind)
//	}
func (g *Graph) Nodes() func(yield func(string, *CodeNode) bool) {
	return func(yield func(string, *CodeNode) bool) {
		for id, node := range g.nodes {
			if !yield(id, node) {
				return
			}
		}
	}
}

// Edges returns a slice of all edges in the graph.
//
// Returns the internal edge slice. Callers should NOT modify the
// returned slice.
func (g *Graph) Edges() []*CodeEdge {
	return g.edges
}

// NodesByLevel returns all nodes at the given hierarchy level.
//
// Uses the level index for O(1) lookup plus an O(k) defensive copy.
// Returns an empty slice for invalid levels.
func (g *Graph) NodesByLevel(level NodeLevel) []*CodeNode {
	if !level.Valid() {
		return []*CodeNode{}
	}
	nodes := g.nodesByLevel[level]
	result := make([]*CodeNode, len(nodes))
	copy(result, nodes)
	return result
}

// NodesByKind returns all nodes of the given kind.
//
// Uses the kind index for O(1) lookup plus an O(k) defensive copy.
func (g *Graph) NodesByKind(kind NodeKind) []*CodeNode {
	nodes := g.nodesByKind[kind]
	if len(nodes) == 0 {
		return []*CodeNode{}
	}
	result := make([]*CodeNode, len(nodes))
	copy(result, nodes)
	return result
}

// EdgesByKind returns all edges of the given kind.
//
// Uses the kind index for O(1) lookup plus an O(k) defensive copy.
// Returns an empty slice for invalid kinds.
func (g *Graph) EdgesByKind(kind EdgeKind) []*CodeEdge {
	if kind < 0 || kind >= NumEdgeKinds {
		return []*CodeEdge{}
	}
	edges := g.edgesByKind[kind]
	if len(edges) == 0 {
		return []*CodeEdge{}
	}
	result := make([]*CodeEdge, len(edges))
	copy(result, edges)
	return result
}

// Outgoing returns the edges where the given node is the source.
//
// Returns a defensive copy; empty slice if the node has no outgoing
// edges or does not exist.
func (g *Graph) Outgoing(id string) []*CodeEdge {
	edges := g.outgoing[id]
	if len(edges) == 0 {
		return []*CodeEdge{}
	}
	result := make([]*CodeEdge, len(edges))
	copy(result, edges)
	return result
}

// Incoming returns the edges where the given node is the target.
//
// Returns a defensive copy; empty slice if the node has no incoming
// edges or does not exist.
func (g *Graph) Incoming(id string) []*CodeEdge {
	edges := g.incoming[id]
	if len(edges) == 0 {
		return []*CodeEdge{}
	}
	result := make([]*CodeEdge, len(edges))
	copy(result, edges)
	return result
}

// GraphStats contains statistics about the graph.
//
// Thread Safety: GraphStats is a value type with no internal state.
// Safe for concurrent use as long as the source Graph is frozen.
type GraphStats struct {
	// NodeCount is the total number of nodes.
	NodeCount int `json:"nodeCount"`

	// EdgeCount is the total number of edges.
	EdgeCount int `json:"edgeCount"`

	// NodesByLevel maps each populated level to its node count.
	NodesByLevel map[NodeLevel]int `json:"nodesByLevel"`

	// NodesByKind maps each populated kind to its node count.
	NodesByKind map[NodeKind]int `json:"nodesByKind"`

	// EdgesByKind maps each populated edge kind to its edge count.
	EdgesByKind map[EdgeKind]int `json:"edgesByKind"`

	// MaxNodes is the configured maximum node capacity.
	MaxNodes int `json:"maxNodes"`

	// MaxEdges is the configured maximum edge capacity.
	MaxEdges int `json:"maxEdges"`

	// State is the current graph state.
	State GraphState `json:"-"`

	// BuiltAtMilli is when Freeze() was called (0 if not frozen).
	BuiltAtMilli int64 `json:"builtAtMilli"`
}

// Stats returns statistics about the graph.
//
// Description:
//
//	Returns node/edge counts with breakdowns by level, kind, and edge
//	kind. Uses the secondary indexes rather than O(V+E) iteration.
//
// Thread Safety:
//
//	Safe for concurrent use on frozen graphs. Not safe during building.
func (g *Graph) Stats() GraphStats {
	nodesByLevel := make(map[NodeLevel]int)
	for level := LevelSystem; level <= LevelVariable; level++ {
		if count := len(g.nodesByLevel[level]); count > 0 {
			nodesByLevel[level] = count
		}
	}

	nodesByKind := make(map[NodeKind]int)
	for kind, nodes := range g.nodesByKind {
		if len(nodes) > 0 {
			nodesByKind[kind] = len(nodes)
		}
	}

	edgesByKind := make(map[EdgeKind]int)
	for i := 0; i < int(NumEdgeKinds); i++ {
		if count := len(g.edgesByKind[i]); count > 0 {
			edgesByKind[EdgeKind(i)] = count
		}
	}

	return GraphStats{
		NodeCount:    len(g.nodes),
		EdgeCount:    len(g.edges),
		NodesByLevel: nodesByLevel,
		NodesByKind:  nodesByKind,
		EdgesByKind:  edgesByKind,
		MaxNodes:     g.options.MaxNodes,
		MaxEdges:     g.options.MaxEdges,
		State:        g.state,
		BuiltAtMilli: g.BuiltAtMilli,
	}
}
