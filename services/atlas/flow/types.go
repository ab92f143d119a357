// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package flow traces data flows through a classified project: bounded
// walks from entry-point files along the import graph, typed and
// directed by the roles and layers the walk touches, plus aggregate
// layer-connection statistics with violation and cycle detection.
package flow

import (
	"github.com/AleutianAI/AleutianAtlas/services/atlas/architecture"
)

// FlowType labels what kind of interaction a traced flow represents.
type FlowType string

const (
	FlowRequestResponse FlowType = "request-response"
	FlowEventDriven     FlowType = "event-driven"
	FlowCQRSCommand     FlowType = "cqrs-command"
	FlowCQRSQuery       FlowType = "cqrs-query"
	FlowDataPipeline    FlowType = "data-pipeline"
	FlowMessaging       FlowType = "messaging"
	FlowBatch           FlowType = "batch"
	FlowUnknown         FlowType = "unknown"
)

// Direction describes where a flow moves relative to the layer stack.
// Level 1 is the outermost layer, so a flow whose last step sits at a
// higher level number than its first has moved inward.
type Direction string

const (
	// DirectionInbound enters the system: outer layer toward inner.
	DirectionInbound Direction = "inbound"

	// DirectionOutbound leaves the system: inner layer toward outer.
	DirectionOutbound Direction = "outbound"

	// DirectionInternal stays at one depth, or touches files whose
	// layer is unknown.
	DirectionInternal Direction = "internal"
)

// Step is one file visited by a flow trace.
type Step struct {
	File string `json:"file"`

	// Layer and Role come from the classification; either may be
	// empty/unknown.
	Layer string            `json:"layer,omitempty"`
	Role  architecture.Role `json:"role"`

	// Action is a short human-readable description of what this step
	// does, derived from its role.
	Action string `json:"action"`

	// Next lists the in-tree files this step imports. Targets already
	// visited by the trace appear here but are not recorded as steps
	// again.
	Next []string `json:"next,omitempty"`
}

// DataFlow is one traced path from an entry point.
//
// Steps form a simple path: a visited-set keeps cyclic imports from
// recurring, which also means a diamond dependency records its shared
// target only under the branch reached first.
type DataFlow struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       FlowType  `json:"type"`
	Steps      []Step    `json:"steps"`
	EntryPoint string    `json:"entryPoint"`
	ExitPoint  string    `json:"exitPoint"`
	Layers     []string  `json:"layers,omitempty"`
	Direction  Direction `json:"direction"`
}

// LayerConnection aggregates every import edge between two distinct
// layers, traced or not.
type LayerConnection struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Count   int    `json:"count"`
	Allowed bool   `json:"allowed"`
}

// ViolationType labels why a layer connection is flagged.
type ViolationType string

const (
	// ViolationDisallowedDependency is a connection the pattern's
	// allowed-dependency lists do not permit.
	ViolationDisallowedDependency ViolationType = "disallowed-dependency"

	// ViolationUpwardDependency is a connection from a deeper layer to
	// an outer one under a top-down pattern.
	ViolationUpwardDependency ViolationType = "upward-dependency"
)

// Violation is one flagged layer connection.
type Violation struct {
	Type        ViolationType                  `json:"type"`
	FromLayer   string                         `json:"fromLayer"`
	ToLayer     string                         `json:"toLayer"`
	Count       int                            `json:"count"`
	Severity    architecture.ViolationSeverity `json:"severity"`
	Description string                         `json:"description"`
}

// Metrics summarizes one analysis pass.
type Metrics struct {
	TotalFlows        int                `json:"totalFlows"`
	FlowsByType       map[FlowType]int   `json:"flowsByType"`
	FlowsByDirection  map[Direction]int  `json:"flowsByDirection"`
	AverageFlowLength float64            `json:"averageFlowLength"`
	MaxFlowLength     int                `json:"maxFlowLength"`
	EntryPoints       int                `json:"entryPoints"`
	LayerCycles       int                `json:"layerCycles"`
}

// FlowAnalysisResult is the full output of one analysis pass.
type FlowAnalysisResult struct {
	// Pattern names the architecture pattern the analysis ran under;
	// empty when no pattern was detected.
	Pattern string `json:"pattern,omitempty"`

	Flows            []DataFlow        `json:"flows"`
	LayerConnections []LayerConnection `json:"layerConnections"`
	Violations       []Violation       `json:"violations"`
	Metrics          Metrics           `json:"metrics"`
}
