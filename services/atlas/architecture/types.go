// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package architecture

import "regexp"

// FlowDirection describes how dependencies are expected to point in a
// pattern: top-down layer stacks, inward-facing cores, or free-form.
type FlowDirection string

const (
	// FlowTopDown expects dependencies to point from outer layers
	// toward inner ones (presentation down to storage). Upward
	// dependencies are flagged by the flow analyzer.
	FlowTopDown FlowDirection = "top-down"

	// FlowInward expects all dependencies to point at the domain core,
	// as in Clean and Hexagonal designs.
	FlowInward FlowDirection = "inward"

	// FlowBidirectional places no direction constraint beyond each
	// layer's allowed-dependency set.
	FlowBidirectional FlowDirection = "bidirectional"
)

// Strictness controls how dependency violations are graded.
type Strictness string

const (
	// StrictnessStrict grades violations as errors.
	StrictnessStrict Strictness = "strict"

	// StrictnessFlexible grades violations as warnings.
	StrictnessFlexible Strictness = "flexible"
)

// ViolationSeverity grades a single dependency violation.
type ViolationSeverity string

const (
	// ViolationSeverityError marks a violation of a strict pattern.
	ViolationSeverityError ViolationSeverity = "error"

	// ViolationSeverityWarning marks a violation of a flexible pattern.
	ViolationSeverityWarning ViolationSeverity = "warning"
)

// Layer is one architectural grouping inside a pattern.
//
// Aliases name the directory conventions that place a file in the
// layer; Patterns catch files whose names, rather than folders, carry
// the convention (UserController.ts outside a controllers/ folder).
type Layer struct {
	// Name is the canonical layer name.
	Name string `json:"name"`

	// Aliases are folder names, matched as path segments.
	Aliases []string `json:"aliases"`

	// Patterns are compiled path regexes.
	Patterns []*regexp.Regexp `json:"-"`

	// Level orders layers from the outermost (1) inward/downward.
	Level int `json:"level"`

	// AllowedDependencies names the layers this layer may import from.
	// Same-layer imports are always allowed and need not be listed.
	AllowedDependencies []string `json:"allowedDependencies"`
}

// Allows reports whether the layer may depend on the named target
// layer.
func (l *Layer) Allows(target string) bool {
	if target == l.Name {
		return true
	}
	for _, dep := range l.AllowedDependencies {
		if dep == target {
			return true
		}
	}
	return false
}

// Indicator is one weighted piece of evidence for a pattern.
type Indicator struct {
	// Description names the evidence in reports.
	Description string `json:"description"`

	// Pattern is the compiled path regex that detects the evidence.
	Pattern *regexp.Regexp `json:"-"`

	// Weight is the indicator's share of the match score.
	Weight int `json:"weight"`

	// Required marks evidence a project claiming this pattern should
	// always carry. A missing required indicator collapses the score
	// but does not disqualify the pattern outright.
	Required bool `json:"required"`
}

// ArchitecturePattern is one immutable catalog entry.
//
// Catalog entries are shared between runs and must never be mutated
// after construction.
type ArchitecturePattern struct {
	// Name is the pattern's canonical name.
	Name string `json:"name"`

	// Description is a one-line summary for reports.
	Description string `json:"description"`

	// Layers are ordered outermost first.
	Layers []Layer `json:"layers"`

	// Indicators are the weighted detection signals.
	Indicators []Indicator `json:"indicators"`

	// FlowDirection is the expected dependency direction.
	FlowDirection FlowDirection `json:"flowDirection"`

	// Strictness decides whether violations are errors or warnings.
	Strictness Strictness `json:"strictness"`
}

// LayerByName returns the named layer, or nil.
func (p *ArchitecturePattern) LayerByName(name string) *Layer {
	for i := range p.Layers {
		if p.Layers[i].Name == name {
			return &p.Layers[i]
		}
	}
	return nil
}

// ViolationSeverityFor returns the severity violations of this pattern
// carry.
func (p *ArchitecturePattern) ViolationSeverityFor() ViolationSeverity {
	if p.Strictness == StrictnessStrict {
		return ViolationSeverityError
	}
	return ViolationSeverityWarning
}

// Violation is one disallowed inter-layer import.
type Violation struct {
	// Pattern is the pattern whose rules were violated.
	Pattern string `json:"pattern"`

	// SourceFile is the importing file.
	SourceFile string `json:"sourceFile"`

	// SourceLayer is the importing file's layer.
	SourceLayer string `json:"sourceLayer"`

	// TargetFile is the imported file.
	TargetFile string `json:"targetFile"`

	// TargetLayer is the imported file's layer.
	TargetLayer string `json:"targetLayer"`

	// Rule restates the broken rule in words.
	Rule string `json:"rule"`

	// Severity is error for strict patterns, warning otherwise.
	Severity ViolationSeverity `json:"severity"`
}

// DetectionResult is one ranked pattern candidate.
type DetectionResult struct {
	// Pattern is the matched catalog entry.
	Pattern *ArchitecturePattern `json:"pattern"`

	// Confidence is the blended match score on a 0-100 scale.
	Confidence float64 `json:"confidence"`

	// MatchedIndicators lists the descriptions of matched indicators.
	MatchedIndicators []string `json:"matchedIndicators"`

	// LayerDistribution counts files per matched layer.
	LayerDistribution map[string]int `json:"layerDistribution"`

	// Violations are the disallowed inter-layer imports found under
	// this pattern's layer assignment.
	Violations []Violation `json:"violations"`
}

// Role is a file's functional role, independent of its layer.
type Role string

// Functional roles, in report vocabulary. RoleUnknown marks files no
// role rule matched.
const (
	RoleController  Role = "controller"
	RoleService     Role = "service"
	RoleRepository  Role = "repository"
	RoleEntity      Role = "entity"
	RoleDTO         Role = "dto"
	RoleMapper      Role = "mapper"
	RoleValidator   Role = "validator"
	RoleMiddleware  Role = "middleware"
	RoleHandler     Role = "handler"
	RoleUseCase     Role = "usecase"
	RoleAggregate   Role = "aggregate"
	RoleValueObject Role = "value-object"
	RoleFactory     Role = "factory"
	RoleEvent       Role = "event"
	RoleCommand     Role = "command"
	RoleQuery       Role = "query"
	RolePort        Role = "port"
	RoleAdapter     Role = "adapter"
	RoleConfig      Role = "config"
	RoleUtil        Role = "util"
	RoleHelper      Role = "helper"
	RoleType        Role = "type"
	RoleConstant    Role = "constant"
	RoleTest        Role = "test"
	RoleView        Role = "view"
	RoleComponent   Role = "component"
	RoleStore       Role = "store"
	RoleHook        Role = "hook"
	RoleUnknown     Role = "unknown"
)

// ExternalClassification is the payload an external classifier returned
// for one file. It is kept verbatim for audit next to the blended
// result.
type ExternalClassification struct {
	// Layer is the externally suggested layer. May be empty.
	Layer string `json:"layer,omitempty"`

	// Role is the externally suggested role. May be empty.
	Role Role `json:"role,omitempty"`

	// Confidence is the external confidence on a 0-100 scale.
	Confidence float64 `json:"confidence"`

	// Reasoning is the classifier's one-line justification, if any.
	Reasoning string `json:"reasoning,omitempty"`
}

// ClassifiedFile is one file's layer and role assignment.
type ClassifiedFile struct {
	// Path is the file's path relative to the scanned root.
	Path string `json:"path"`

	// Layer is the resolved layer name. Empty when no layer matched.
	Layer string `json:"layer,omitempty"`

	// Role is the file's functional role.
	Role Role `json:"role"`

	// Confidence is the layer confidence on a 0-100 scale, blended
	// when an external classifier contributed.
	Confidence float64 `json:"confidence"`

	// External holds the raw external classification, when one was
	// requested and parsed.
	External *ExternalClassification `json:"external,omitempty"`
}

// ClassificationStats summarizes one classification pass.
type ClassificationStats struct {
	// TotalFiles is the number of files classified.
	TotalFiles int `json:"totalFiles"`

	// WithLayer is the number of files with a non-empty layer.
	WithLayer int `json:"withLayer"`

	// WithRole is the number of files with a known role.
	WithRole int `json:"withRole"`

	// LowConfidence is the number of files eligible for external
	// re-classification (unknown role or layer confidence below the
	// threshold).
	LowConfidence int `json:"lowConfidence"`

	// Reclassified is the number of files an external classifier
	// actually re-classified.
	Reclassified int `json:"reclassified"`
}

// ClassificationResult is the full classification of one scanned tree.
type ClassificationResult struct {
	// Pattern is the pattern whose layers were applied.
	Pattern string `json:"pattern"`

	// Files are the per-file assignments, in scan order.
	Files []ClassifiedFile `json:"files"`

	// ByLayer indexes file paths by layer name.
	ByLayer map[string][]string `json:"byLayer"`

	// ByRole indexes file paths by role.
	ByRole map[Role][]string `json:"byRole"`

	// Stats summarizes the pass.
	Stats ClassificationStats `json:"stats"`
}

// FileByPath returns the classified entry for a path, or nil.
func (r *ClassificationResult) FileByPath(path string) *ClassifiedFile {
	for i := range r.Files {
		if r.Files[i].Path == path {
			return &r.Files[i]
		}
	}
	return nil
}
