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
	"encoding/json"
	"fmt"
)

// Default configuration values.
const (
	// DefaultMaxNodes is the default maximum number of nodes a graph can hold.
	DefaultMaxNodes = 1_000_000

	// DefaultMaxEdges is the default maximum number of edges a graph can hold.
	DefaultMaxEdges = 10_000_000
)

// GraphState represents the lifecycle state of the graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph is accepting AddNode/AddEdge calls.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen and read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// NodeLevel identifies a node's position in the seven-level hierarchy.
//
// Levels are numeric so that hierarchy checks reduce to integer
// comparison: a child's level is always >= its parent's level.
type NodeLevel int

const (
	// LevelSystem is the single root node for the analyzed tree (L1).
	LevelSystem NodeLevel = iota + 1

	// LevelModule is one node per top-level path segment (L2).
	LevelModule

	// LevelFile is one node per scanned source file (L3).
	LevelFile

	// LevelType covers classes, structs, interfaces, traits, enums,
	// and type aliases (L4).
	LevelType

	// LevelFunction covers functions, methods, constructors, closures,
	// and handlers (L5).
	LevelFunction

	// LevelBlock covers blocks, conditionals, and loops (L6).
	// Reserved: the default extractor does not populate this level.
	LevelBlock

	// LevelVariable covers variables, constants, parameters, attributes,
	// and properties (L7).
	LevelVariable
)

// levelNames maps NodeLevel values to their string representations.
var levelNames = map[NodeLevel]string{
	LevelSystem:   "system",
	LevelModule:   "module",
	LevelFile:     "file",
	LevelType:     "type",
	LevelFunction: "function",
	LevelBlock:    "block",
	LevelVariable: "variable",
}

// String returns the string representation of the NodeLevel.
func (l NodeLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the level is one of the seven defined levels.
func (l NodeLevel) Valid() bool {
	return l >= LevelSystem && l <= LevelVariable
}

// NodeKind identifies the concrete construct a node represents.
type NodeKind int

const (
	// NodeKindUnknown indicates an unrecognized construct.
	NodeKindUnknown NodeKind = iota

	// === L1/L2/L3 structural kinds ===

	// NodeKindSystem is the analyzed tree's root.
	NodeKindSystem

	// NodeKindModule is a top-level path segment grouping files.
	NodeKindModule

	// NodeKindFile is a single scanned source file.
	NodeKindFile

	// === L4 type kinds ===

	// NodeKindClass is a class declaration.
	NodeKindClass

	// NodeKindStruct is a struct declaration.
	NodeKindStruct

	// NodeKindInterface is an interface declaration.
	NodeKindInterface

	// NodeKindTrait is a trait declaration.
	NodeKindTrait

	// NodeKindEnum is an enum declaration.
	NodeKindEnum

	// NodeKindTypeAlias is a named type alias.
	NodeKindTypeAlias

	// === L5 callable kinds ===

	// NodeKindFunction is a free function.
	NodeKindFunction

	// NodeKindMethod is a function bound to a type.
	NodeKindMethod

	// NodeKindConstructor is a type's construction function.
	NodeKindConstructor

	// NodeKindClosure is an anonymous function.
	NodeKindClosure

	// NodeKindHandler is a function registered as a request/event handler.
	NodeKindHandler

	// === L6 block kinds (reserved) ===

	// NodeKindBlock is a bare lexical block.
	NodeKindBlock

	// NodeKindConditional is an if/switch/match construct.
	NodeKindConditional

	// NodeKindLoop is a for/while construct.
	NodeKindLoop

	// === L7 value kinds ===

	// NodeKindVariable is a mutable binding.
	NodeKindVariable

	// NodeKindConstant is an immutable binding.
	NodeKindConstant

	// NodeKindParameter is a function parameter.
	NodeKindParameter

	// NodeKindAttribute is a type-level data member.
	NodeKindAttribute

	// NodeKindProperty is a computed or accessor-backed member.
	NodeKindProperty

	// NumNodeKinds is the total number of node kinds (for array sizing).
	NumNodeKinds
)

// nodeKindNames maps NodeKind values to their string representations.
var nodeKindNames = map[NodeKind]string{
	NodeKindUnknown:     "unknown",
	NodeKindSystem:      "system",
	NodeKindModule:      "module",
	NodeKindFile:        "file",
	NodeKindClass:       "class",
	NodeKindStruct:      "struct",
	NodeKindInterface:   "interface",
	NodeKindTrait:       "trait",
	NodeKindEnum:        "enum",
	NodeKindTypeAlias:   "type_alias",
	NodeKindFunction:    "function",
	NodeKindMethod:      "method",
	NodeKindConstructor: "constructor",
	NodeKindClosure:     "closure",
	NodeKindHandler:     "handler",
	NodeKindBlock:       "block",
	NodeKindConditional: "conditional",
	NodeKindLoop:        "loop",
	NodeKindVariable:    "variable",
	NodeKindConstant:    "constant",
	NodeKindParameter:   "parameter",
	NodeKindAttribute:   "attribute",
	NodeKindProperty:    "property",
}

// nodeKindLevels maps each kind to the hierarchy level it lives at.
var nodeKindLevels = map[NodeKind]NodeLevel{
	NodeKindSystem:      LevelSystem,
	NodeKindModule:      LevelModule,
	NodeKindFile:        LevelFile,
	NodeKindClass:       LevelType,
	NodeKindStruct:      LevelType,
	NodeKindInterface:   LevelType,
	NodeKindTrait:       LevelType,
	NodeKindEnum:        LevelType,
	NodeKindTypeAlias:   LevelType,
	NodeKindFunction:    LevelFunction,
	NodeKindMethod:      LevelFunction,
	NodeKindConstructor: LevelFunction,
	NodeKindClosure:     LevelFunction,
	NodeKindHandler:     LevelFunction,
	NodeKindBlock:       LevelBlock,
	NodeKindConditional: LevelBlock,
	NodeKindLoop:        LevelBlock,
	NodeKindVariable:    LevelVariable,
	NodeKindConstant:    LevelVariable,
	NodeKindParameter:   LevelVariable,
	NodeKindAttribute:   LevelVariable,
	NodeKindProperty:    LevelVariable,
}

// String returns the string representation of the NodeKind.
//
// Returns "unknown" for unrecognized values.
func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Level returns the hierarchy level this kind lives at.
//
// Returns 0 for NodeKindUnknown; callers must set the level explicitly
// for unknown kinds.
func (k NodeKind) Level() NodeLevel {
	return nodeKindLevels[k]
}

// ParseNodeKind converts a string name back to a NodeKind.
func ParseNodeKind(s string) NodeKind {
	for kind, name := range nodeKindNames {
		if name == s {
			return kind
		}
	}
	return NodeKindUnknown
}

// MarshalJSON implements json.Marshaler for NodeKind.
func (k NodeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler for NodeKind.
func (k *NodeKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = ParseNodeKind(s)
		return nil
	}

	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("NodeKind must be string or int: %w", err)
	}
	*k = NodeKind(i)
	return nil
}

// EdgeKind defines the type of relationship between nodes.
type EdgeKind int

const (
	// EdgeKindUnknown indicates an unrecognized relationship type.
	EdgeKindUnknown EdgeKind = iota

	// EdgeKindContains links a parent node to a child in the hierarchy.
	EdgeKindContains

	// EdgeKindImports indicates a file imports another file or package.
	EdgeKindImports

	// EdgeKindExports indicates a file exports a symbol.
	EdgeKindExports

	// EdgeKindCalls indicates a function/method calls another.
	EdgeKindCalls

	// EdgeKindAwaits indicates an asynchronous call site.
	EdgeKindAwaits

	// EdgeKindExtends indicates a type extends another type.
	EdgeKindExtends

	// EdgeKindImplements indicates a type implements an interface.
	EdgeKindImplements

	// EdgeKindReads indicates a function reads a variable.
	EdgeKindReads

	// EdgeKindWrites indicates a function writes a variable.
	EdgeKindWrites

	// NumEdgeKinds is the total number of edge kinds (for array sizing).
	NumEdgeKinds
)

// edgeKindNames maps EdgeKind values to their string representations.
var edgeKindNames = map[EdgeKind]string{
	EdgeKindUnknown:    "unknown",
	EdgeKindContains:   "contains",
	EdgeKindImports:    "imports",
	EdgeKindExports:    "exports",
	EdgeKindCalls:      "calls",
	EdgeKindAwaits:     "awaits",
	EdgeKindExtends:    "extends",
	EdgeKindImplements: "implements",
	EdgeKindReads:      "reads",
	EdgeKindWrites:     "writes",
}

// String returns the string representation of the EdgeKind.
func (k EdgeKind) String() string {
	if name, ok := edgeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseEdgeKind converts a string name back to an EdgeKind.
func ParseEdgeKind(s string) EdgeKind {
	for kind, name := range edgeKindNames {
		if name == s {
			return kind
		}
	}
	return EdgeKindUnknown
}

// MarshalJSON implements json.Marshaler for EdgeKind.
func (k EdgeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler for EdgeKind.
func (k *EdgeKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*k = ParseEdgeKind(s)
		return nil
	}

	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("EdgeKind must be string or int: %w", err)
	}
	*k = EdgeKind(i)
	return nil
}

// Visibility describes a symbol's access level.
type Visibility int

const (
	// VisibilityUnknown indicates visibility could not be determined.
	VisibilityUnknown Visibility = iota

	// VisibilityPublic indicates the symbol is accessible everywhere.
	VisibilityPublic

	// VisibilityPrivate indicates the symbol is file- or type-local.
	VisibilityPrivate

	// VisibilityProtected indicates subclass-only access.
	VisibilityProtected

	// VisibilityInternal indicates package/module-internal access.
	VisibilityInternal
)

// visibilityNames maps Visibility values to their string representations.
var visibilityNames = map[Visibility]string{
	VisibilityUnknown:   "unknown",
	VisibilityPublic:    "public",
	VisibilityPrivate:   "private",
	VisibilityProtected: "protected",
	VisibilityInternal:  "internal",
}

// String returns the string representation of the Visibility.
func (v Visibility) String() string {
	if name, ok := visibilityNames[v]; ok {
		return name
	}
	return "unknown"
}

// ParseVisibility converts a string name back to a Visibility.
func ParseVisibility(s string) Visibility {
	for vis, name := range visibilityNames {
		if name == s {
			return vis
		}
	}
	return VisibilityUnknown
}

// MarshalJSON implements json.Marshaler for Visibility.
func (v Visibility) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON implements json.Unmarshaler for Visibility.
func (v *Visibility) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = ParseVisibility(s)
		return nil
	}

	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return fmt.Errorf("Visibility must be string or int: %w", err)
	}
	*v = Visibility(i)
	return nil
}

// Location identifies where a node or edge is expressed in source.
//
// Line numbers are 1-indexed. EndLine and Column are zero when unknown.
type Location struct {
	// File is the path relative to the project root, with forward slashes.
	File string `json:"file"`

	// Line is the 1-indexed starting line.
	Line int `json:"line"`

	// EndLine is the 1-indexed final line, or 0 if unknown.
	EndLine int `json:"endLine,omitempty"`

	// Column is the 0-indexed starting column, or 0 if unknown.
	Column int `json:"column,omitempty"`
}

// NodeMetrics carries per-node size and coupling measurements.
//
// Dependencies and Dependents are edge-derived: they are incremented by
// Graph.AddEdge and must not be set independently.
type NodeMetrics struct {
	// LOC is the number of source lines the node spans.
	LOC int `json:"loc"`

	// Complexity is the heuristic cyclomatic complexity, or 0 when not
	// computed for this node kind.
	Complexity int `json:"complexity,omitempty"`

	// Dependencies counts edges where this node is the source.
	Dependencies int `json:"dependencies"`

	// Dependents counts edges where this node is the target.
	Dependents int `json:"dependents"`
}

// CodeNode is a single node in the seven-level hierarchy.
//
// Nodes are created during graph building and are mutated only to append
// children or bump edge-derived counters while the graph is in the
// Building state. After Freeze() they must be treated as immutable.
type CodeNode struct {
	// ID is the unique identifier for this node within one run.
	ID string `json:"id"`

	// Level is the node's position in the hierarchy (L1..L7).
	Level NodeLevel `json:"level"`

	// Kind is the concrete construct this node represents.
	Kind NodeKind `json:"kind"`

	// Name is the short display name (function name, file base name).
	Name string `json:"name"`

	// FullPath is the namespaced identity string, stable across runs for
	// the same source (e.g. "src/auth/login.ts::LoginService::validate").
	FullPath string `json:"fullPath"`

	// Location is where the node is declared.
	Location Location `json:"location"`

	// Visibility is the symbol's access level.
	Visibility Visibility `json:"visibility"`

	// Modifiers carries extra declaration modifiers (async, static,
	// const, exported, …). Order follows source order.
	Modifiers []string `json:"modifiers,omitempty"`

	// Signature is the declaration signature for callables, if captured.
	Signature string `json:"signature,omitempty"`

	// DataType is the declared or inferred type for value nodes.
	DataType string `json:"dataType,omitempty"`

	// Metrics carries size and coupling measurements.
	Metrics NodeMetrics `json:"metrics"`

	// Children holds the IDs of child nodes in insertion order.
	Children []string `json:"children,omitempty"`

	// Parent is the ID of the parent node, empty only for the system root.
	Parent string `json:"parent,omitempty"`
}

// CodeEdge is a directed relationship between two nodes.
type CodeEdge struct {
	// ID is the unique edge identifier within one run.
	ID string `json:"id"`

	// Source is the ID of the source node.
	Source string `json:"source"`

	// Target is the ID of the target node.
	Target string `json:"target"`

	// Kind is the relationship type.
	Kind EdgeKind `json:"kind"`

	// Location is where the relationship is expressed, if known.
	Location *Location `json:"location,omitempty"`
}

// GraphOptions configures Graph behavior and limits.
type GraphOptions struct {
	// MaxNodes is the maximum number of nodes the graph can hold.
	// Default: 1,000,000
	MaxNodes int

	// MaxEdges is the maximum number of edges the graph can hold.
	// Default: 10,000,000
	MaxEdges int
}

// DefaultGraphOptions returns sensible defaults for graph configuration.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{
		MaxNodes: DefaultMaxNodes,
		MaxEdges: DefaultMaxEdges,
	}
}

// GraphOption is a functional option for configuring Graph.
type GraphOption func(*GraphOptions)

// WithMaxNodes sets the maximum number of nodes the graph can hold.
func WithMaxNodes(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxNodes = n
	}
}

// WithMaxEdges sets the maximum number of edges the graph can hold.
func WithMaxEdges(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxEdges = n
	}
}
