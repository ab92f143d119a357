// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

// Import represents one import statement in a scanned file.
type Import struct {
	// Path is the imported module path as written in source
	// (e.g. "./user.service", "fmt", "os.path").
	Path string `json:"path"`

	// Names lists the specific symbols imported, if the statement
	// names any (e.g. {validate, sanitize}).
	Names []string `json:"names,omitempty"`

	// Alias is the local binding name, if aliased.
	Alias string `json:"alias,omitempty"`

	// IsRelative is true for relative imports ("./x", "../y", ".mod").
	IsRelative bool `json:"isRelative"`

	// Line is the 1-indexed line of the import statement.
	Line int `json:"line"`
}

// CallRef records one call site observed inside a function body.
//
// Resolution to a callee node happens later in the graph builder; the
// extractor records only the called identifier's trailing segment.
type CallRef struct {
	// Name is the called identifier (trailing segment for dotted calls).
	Name string `json:"name"`

	// Line is the 1-indexed line of the call site.
	Line int `json:"line"`

	// Awaited is true when the call is awaited.
	Awaited bool `json:"awaited"`
}

// FunctionInfo describes one extracted function or method.
type FunctionInfo struct {
	// Name is the declared function name.
	Name string `json:"name"`

	// Class is the enclosing type name for methods, empty for free
	// functions.
	Class string `json:"class,omitempty"`

	// StartLine and EndLine bound the declaration and its body
	// (1-indexed, inclusive). EndLine is heuristic for brace- and
	// indent-delimited bodies alike.
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`

	// Signature is the declaration line with the body stripped.
	Signature string `json:"signature,omitempty"`

	// Params lists declared parameter names.
	Params []string `json:"params,omitempty"`

	// Calls lists call sites observed inside the body.
	Calls []CallRef `json:"calls,omitempty"`

	// Complexity is the heuristic cyclomatic complexity (1 + branch
	// points counted in the body).
	Complexity int `json:"complexity"`

	// Exported is true when the symbol is visible outside the file.
	Exported bool `json:"exported"`

	// Modifiers carries declaration modifiers in source order
	// (async, static, const, pub, …).
	Modifiers []string `json:"modifiers,omitempty"`

	// IsConstructor is true for constructor-like declarations
	// (constructor, __init__, New* in Go by convention is NOT tagged).
	IsConstructor bool `json:"isConstructor,omitempty"`
}

// ClassInfo describes one extracted type declaration.
type ClassInfo struct {
	// Name is the declared type name.
	Name string `json:"name"`

	// Kind is the declaration keyword: class, struct, interface,
	// trait, enum, or type_alias.
	Kind string `json:"kind"`

	// StartLine and EndLine bound the declaration (1-indexed,
	// inclusive).
	StartLine int `json:"startLine"`
	EndLine   int `json:"endLine"`

	// Extends is the base class name, if declared.
	Extends string `json:"extends,omitempty"`

	// Implements lists implemented interface names, if declared.
	Implements []string `json:"implements,omitempty"`

	// Attributes lists type-level data members found in the body.
	Attributes []VariableInfo `json:"attributes,omitempty"`

	// Exported is true when the symbol is visible outside the file.
	Exported bool `json:"exported"`

	// Modifiers carries declaration modifiers in source order.
	Modifiers []string `json:"modifiers,omitempty"`
}

// VariableInfo describes one extracted top-level or member variable.
type VariableInfo struct {
	// Name is the declared name.
	Name string `json:"name"`

	// Line is the 1-indexed declaration line.
	Line int `json:"line"`

	// Constant is true for const-like declarations.
	Constant bool `json:"constant"`

	// DataType is the declared type annotation, if present.
	DataType string `json:"dataType,omitempty"`

	// Exported is true when the symbol is visible outside the file.
	Exported bool `json:"exported"`
}

// FileInfo is the per-file record produced by the scanner.
//
// One FileInfo is emitted per matched file; the graph builder consumes
// these records to materialize the node hierarchy.
type FileInfo struct {
	// Path is the file path relative to the scan root, with forward
	// slashes on all platforms.
	Path string `json:"path"`

	// Language is the detected source language.
	Language Language `json:"language"`

	// Layer is the cheap path-prefix layer tag (first directory
	// segment, lowercased). The architecture classifier assigns real
	// layers later; this tag only feeds aggregate stats.
	Layer string `json:"layer,omitempty"`

	// Lines is the total line count.
	Lines int `json:"lines"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// Imports lists extracted import statements.
	Imports []Import `json:"imports,omitempty"`

	// Exports lists exported symbol names.
	Exports []string `json:"exports,omitempty"`

	// Classes lists extracted type declarations.
	Classes []ClassInfo `json:"classes,omitempty"`

	// Functions lists extracted functions and methods.
	Functions []FunctionInfo `json:"functions,omitempty"`

	// Variables lists extracted top-level variables.
	Variables []VariableInfo `json:"variables,omitempty"`
}

// ScanResult is the outcome of one scan pass.
type ScanResult struct {
	// Root is the absolute path that was scanned.
	Root string `json:"root"`

	// ProjectName is the detected project name (go.mod module path,
	// package.json name, or the root directory base name).
	ProjectName string `json:"projectName"`

	// Files holds one record per successfully extracted file, in
	// walk order.
	Files []*FileInfo `json:"files"`

	// SkippedFiles counts files that matched the globs but could not
	// be read or extracted.
	SkippedFiles int `json:"skippedFiles"`

	// Skipped records one audit entry per skipped file.
	Skipped []SkippedFile `json:"skipped,omitempty"`

	// DurationMs is the wall-clock scan time in milliseconds.
	DurationMs int64 `json:"durationMs"`
}

// SkippedFile is an audit entry for a file the scan could not process.
type SkippedFile struct {
	// Path is the file path relative to the scan root.
	Path string `json:"path"`

	// Reason is a short human-readable skip reason.
	Reason string `json:"reason"`
}
