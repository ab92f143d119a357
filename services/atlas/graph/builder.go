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
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/scanner"
)

// RootModuleName groups files that live directly under the project
// root, which have no top path segment of their own.
const RootModuleName = "(root)"

// ProgressPhase indicates which phase of building is in progress.
type ProgressPhase int

const (
	// ProgressPhaseCollecting indicates nodes are being created.
	ProgressPhaseCollecting ProgressPhase = iota

	// ProgressPhaseLinking indicates edges are being created.
	ProgressPhaseLinking

	// ProgressPhaseFinalizing indicates the graph is being frozen and
	// issue detectors are running.
	ProgressPhaseFinalizing
)

// String returns the string representation of the ProgressPhase.
func (p ProgressPhase) String() string {
	switch p {
	case ProgressPhaseCollecting:
		return "collecting"
	case ProgressPhaseLinking:
		return "linking"
	case ProgressPhaseFinalizing:
		return "finalizing"
	default:
		return "unknown"
	}
}

// BuildProgress contains progress information during a build.
type BuildProgress struct {
	// Phase is the current build phase.
	Phase ProgressPhase

	// FilesTotal is the total number of files to process.
	FilesTotal int

	// FilesProcessed is the number of files processed so far.
	FilesProcessed int

	// NodesCreated is the number of nodes created so far.
	NodesCreated int

	// EdgesCreated is the number of edges created so far.
	EdgesCreated int
}

// ProgressFunc is a callback function for build progress updates.
type ProgressFunc func(progress BuildProgress)

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// ProjectRoot is the absolute path to the project root directory.
	ProjectRoot string

	// ProjectName is the project's display name. For Go projects this
	// is the module path and doubles as the prefix used to resolve
	// intra-project imports.
	ProjectName string

	// IssueOptions tunes the structural issue detectors.
	IssueOptions IssueOptions

	// ProgressCallback is called periodically with build progress.
	// May be nil.
	ProgressCallback ProgressFunc

	// MaxNodes is the maximum number of nodes (passed to Graph).
	MaxNodes int

	// MaxEdges is the maximum number of edges (passed to Graph).
	MaxEdges int
}

// DefaultBuilderOptions returns sensible defaults.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		IssueOptions: DefaultIssueOptions(),
		MaxNodes:     DefaultMaxNodes,
		MaxEdges:     DefaultMaxEdges,
	}
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithProjectRoot sets the project root path.
func WithProjectRoot(root string) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProjectRoot = root
	}
}

// WithProjectName sets the project name used for the system node and
// for Go import resolution.
func WithProjectName(name string) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProjectName = name
	}
}

// WithIssueOptions sets the issue detector thresholds.
func WithIssueOptions(opts IssueOptions) BuilderOption {
	return func(o *BuilderOptions) {
		o.IssueOptions = opts
	}
}

// WithProgressCallback sets the progress callback function.
func WithProgressCallback(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) {
		o.ProgressCallback = fn
	}
}

// WithBuilderMaxNodes sets the maximum number of nodes.
func WithBuilderMaxNodes(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxNodes = n
	}
}

// WithBuilderMaxEdges sets the maximum number of edges.
func WithBuilderMaxEdges(n int) BuilderOption {
	return func(o *BuilderOptions) {
		o.MaxEdges = n
	}
}

// Builder constructs seven-level code graphs from scanned file records.
//
// The builder is stateless and can be reused across multiple builds.
// Each Build() call creates a new graph.
//
// Thread Safety:
//
//	Builder is safe for concurrent use. Each Build() call operates
//	independently with its own internal state.
type Builder struct {
	options BuilderOptions
}

// NewBuilder creates a new Builder with the given options.
//
// Example:
//
//	builder := NewBuilder(
//	    WithProjectRoot("/path/to/project"),
//	    WithProjectName("my-app"),
//	)
func NewBuilder(opts ...BuilderOption) *Builder {
	options := DefaultBuilderOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Builder{options: options}
}

// buildState holds mutable state during a single build operation.
type buildState struct {
	graph  *Graph
	result *BuildResult

	system      *CodeNode
	moduleNodes map[string]*CodeNode            // module name -> node
	fileNodes   map[string]*CodeNode            // rel path -> node
	funcsByName map[string][]*CodeNode          // bare name -> function-level nodes
	typesByName map[string][]*CodeNode          // bare name -> type-level nodes
	varsByFile  map[string]map[string]*CodeNode // rel path -> top-level variable nodes
	fileSet     map[string]bool                 // known rel paths
	dirFiles    map[string][]string             // rel dir -> rel paths

	startTime time.Time
}

// Build constructs a graph from scanned file records.
//
// Description:
//
//	Creates the seven-level node hierarchy (system, modules, files,
//	types, functions, variables; blocks are reserved and left
//	unpopulated by this extractor), then links import, call, await,
//	extends, implements, and reads edges. The build is resilient to
//	individual file failures, and unresolved references are dropped
//	silently with a counter rather than an error. After linking, the
//	graph is frozen and the structural issue detectors run.
//
// Inputs:
//
//	ctx - Context for cancellation. Build checks context per file.
//	files - Scanned file records. Nil entries are skipped with error.
//
// Outputs:
//
//	*BuildResult - Contains the graph, issues, errors, and statistics.
//	error - Always nil today; cancellation sets result.Incomplete
//	        instead so partial results remain usable.
//
// Build Phases:
//
//  1. COLLECT: Create system/module/file/type/function/variable nodes
//  2. LINK: Create import, call, inheritance, and read edges
//  3. FINALIZE: Freeze graph, run issue detectors, compute statistics
func (b *Builder) Build(ctx context.Context, files []*scanner.FileInfo) (*BuildResult, error) {
	state := &buildState{
		graph: NewGraph(b.options.ProjectRoot,
			WithMaxNodes(b.options.MaxNodes),
			WithMaxEdges(b.options.MaxEdges),
		),
		result: &BuildResult{
			FileErrors: make([]FileError, 0),
			EdgeErrors: make([]EdgeError, 0),
		},
		moduleNodes: make(map[string]*CodeNode),
		fileNodes:   make(map[string]*CodeNode),
		funcsByName: make(map[string][]*CodeNode),
		typesByName: make(map[string][]*CodeNode),
		varsByFile:  make(map[string]map[string]*CodeNode),
		fileSet:     make(map[string]bool),
		dirFiles:    make(map[string][]string),
		startTime:   time.Now(),
	}
	state.result.Graph = state.graph

	for _, f := range files {
		if f == nil {
			continue
		}
		state.fileSet[f.Path] = true
		dir := path.Dir(f.Path)
		state.dirFiles[dir] = append(state.dirFiles[dir], f.Path)
	}

	if err := b.collectPhase(ctx, state, files); err != nil {
		return b.finish(state, true), nil
	}
	if err := b.linkPhase(ctx, state, files); err != nil {
		return b.finish(state, true), nil
	}

	b.reportProgress(state, ProgressPhaseFinalizing, len(files), len(files))
	return b.finish(state, false), nil
}

// finish freezes the graph, runs detectors, and stamps statistics.
func (b *Builder) finish(state *buildState, incomplete bool) *BuildResult {
	state.graph.Freeze()
	state.result.Incomplete = incomplete
	if !incomplete {
		state.result.Issues = DetectIssues(state.graph, b.options.IssueOptions)
	}

	duration := time.Since(state.startTime)
	state.result.Stats.DurationMilli = duration.Milliseconds()
	state.result.Stats.DurationMicro = duration.Microseconds()
	return state.result
}

// =============================================================================
// Phase 1: Collect
// =============================================================================

// collectPhase creates the node hierarchy for every scanned file.
func (b *Builder) collectPhase(ctx context.Context, state *buildState, files []*scanner.FileInfo) error {
	name := b.options.ProjectName
	if name == "" {
		name = path.Base(b.options.ProjectRoot)
	}
	if name == "" || name == "." {
		name = "system"
	}

	state.system = &CodeNode{
		ID:       state.uniqueID(name, 0),
		Level:    LevelSystem,
		Kind:     NodeKindSystem,
		Name:     name,
		FullPath: name,
	}
	if err := state.graph.AddNode(state.system); err != nil {
		state.result.FileErrors = append(state.result.FileErrors, FileError{FilePath: name, Err: err})
		return nil
	}
	state.result.Stats.NodesCreated++

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f == nil {
			state.result.Stats.FilesFailed++
			continue
		}

		if err := b.collectFile(state, f); err != nil {
			state.result.FileErrors = append(state.result.FileErrors, FileError{FilePath: f.Path, Err: err})
			state.result.Stats.FilesFailed++
			continue
		}

		state.result.Stats.FilesProcessed++
		b.reportProgress(state, ProgressPhaseCollecting, len(files), i+1)
	}
	return nil
}

// collectFile creates the module, file, type, function, and variable
// nodes for one scanned file.
func (b *Builder) collectFile(state *buildState, f *scanner.FileInfo) error {
	module, err := state.ensureModule(moduleOf(f.Path))
	if err != nil {
		return err
	}
	module.Metrics.LOC += f.Lines
	state.system.Metrics.LOC += f.Lines

	fileNode := &CodeNode{
		ID:       state.uniqueID(f.Path, 0),
		Level:    LevelFile,
		Kind:     NodeKindFile,
		Name:     path.Base(f.Path),
		FullPath: f.Path,
		Location: Location{File: f.Path, Line: 1, EndLine: f.Lines},
		Metrics:  NodeMetrics{LOC: f.Lines},
	}
	if err := state.addNode(fileNode, module); err != nil {
		return err
	}
	state.fileNodes[f.Path] = fileNode

	// Types, with their attributes, and an index of methods by class
	// name so function nodes can attach beneath their type.
	classNodes := make(map[string]*CodeNode, len(f.Classes))
	for i := range f.Classes {
		c := &f.Classes[i]
		classNode := &CodeNode{
			ID:         state.uniqueID(f.Path+"#"+c.Name, c.StartLine),
			Level:      LevelType,
			Kind:       typeKind(c.Kind),
			Name:       c.Name,
			FullPath:   f.Path + "#" + c.Name,
			Location:   Location{File: f.Path, Line: c.StartLine, EndLine: c.EndLine},
			Visibility: visibilityOf(c.Exported),
			Modifiers:  c.Modifiers,
			Metrics:    NodeMetrics{LOC: c.EndLine - c.StartLine + 1},
		}
		if err := state.addNode(classNode, fileNode); err != nil {
			continue
		}
		classNodes[c.Name] = classNode
		state.typesByName[c.Name] = append(state.typesByName[c.Name], classNode)

		for _, attr := range c.Attributes {
			attrNode := &CodeNode{
				ID:         state.uniqueID(classNode.FullPath+"."+attr.Name, attr.Line),
				Level:      LevelVariable,
				Kind:       NodeKindAttribute,
				Name:       attr.Name,
				FullPath:   classNode.FullPath + "." + attr.Name,
				Location:   Location{File: f.Path, Line: attr.Line},
				Visibility: visibilityOf(attr.Exported),
				DataType:   attr.DataType,
			}
			_ = state.addNode(attrNode, classNode)
		}
	}

	for i := range f.Functions {
		fn := &f.Functions[i]
		parent := fileNode
		fullPath := f.Path + "#" + fn.Name
		if fn.Class != "" {
			if classNode, ok := classNodes[fn.Class]; ok {
				parent = classNode
			}
			fullPath = f.Path + "#" + fn.Class + "." + fn.Name
		}

		fnNode := &CodeNode{
			ID:         state.uniqueID(fullPath, fn.StartLine),
			Level:      LevelFunction,
			Kind:       functionKind(fn),
			Name:       fn.Name,
			FullPath:   fullPath,
			Location:   Location{File: f.Path, Line: fn.StartLine, EndLine: fn.EndLine},
			Visibility: visibilityOf(fn.Exported),
			Modifiers:  fn.Modifiers,
			Signature:  fn.Signature,
			Metrics: NodeMetrics{
				LOC:        fn.EndLine - fn.StartLine + 1,
				Complexity: fn.Complexity,
			},
		}
		if err := state.addNode(fnNode, parent); err != nil {
			continue
		}
		state.funcsByName[fn.Name] = append(state.funcsByName[fn.Name], fnNode)

		for _, p := range fn.Params {
			paramNode := &CodeNode{
				ID:         state.uniqueID(fullPath+"("+p+")", fn.StartLine),
				Level:      LevelVariable,
				Kind:       NodeKindParameter,
				Name:       p,
				FullPath:   fullPath + "(" + p + ")",
				Location:   Location{File: f.Path, Line: fn.StartLine},
				Visibility: VisibilityPrivate,
			}
			_ = state.addNode(paramNode, fnNode)
		}
	}

	fileVars := make(map[string]*CodeNode, len(f.Variables))
	for i := range f.Variables {
		v := &f.Variables[i]
		kind := NodeKindVariable
		if v.Constant {
			kind = NodeKindConstant
		}
		varNode := &CodeNode{
			ID:         state.uniqueID(f.Path+"#"+v.Name, v.Line),
			Level:      LevelVariable,
			Kind:       kind,
			Name:       v.Name,
			FullPath:   f.Path + "#" + v.Name,
			Location:   Location{File: f.Path, Line: v.Line},
			Visibility: visibilityOf(v.Exported),
			DataType:   v.DataType,
		}
		if err := state.addNode(varNode, fileNode); err != nil {
			continue
		}
		fileVars[v.Name] = varNode
	}
	state.varsByFile[f.Path] = fileVars

	return nil
}

// ensureModule returns the module node for a name, creating it (and
// its contains edge from the system root) on first use.
func (st *buildState) ensureModule(name string) (*CodeNode, error) {
	if node, ok := st.moduleNodes[name]; ok {
		return node, nil
	}
	node := &CodeNode{
		ID:       st.uniqueID("module:"+name, 0),
		Level:    LevelModule,
		Kind:     NodeKindModule,
		Name:     name,
		FullPath: name,
	}
	if err := st.addNode(node, st.system); err != nil {
		return nil, err
	}
	st.moduleNodes[name] = node
	return node, nil
}

// addNode inserts a node, parents it, and records the contains edge.
func (st *buildState) addNode(node *CodeNode, parent *CodeNode) error {
	if err := st.graph.AddNode(node); err != nil {
		return err
	}
	st.result.Stats.NodesCreated++

	if parent == nil {
		return nil
	}
	if err := st.graph.AddChild(parent.ID, node.ID); err != nil {
		return err
	}
	if _, err := st.graph.AddEdge(parent.ID, node.ID, EdgeKindContains, nil); err != nil {
		st.result.EdgeErrors = append(st.result.EdgeErrors, EdgeError{
			FromID: parent.ID, ToID: node.ID, Kind: EdgeKindContains, Err: err,
		})
		return nil
	}
	st.result.Stats.EdgesCreated++
	return nil
}

// uniqueID returns base when free, otherwise disambiguates with the
// declaration line. FullPath stays identical across colliding nodes;
// only ids diverge.
func (st *buildState) uniqueID(base string, line int) string {
	if _, ok := st.graph.GetNode(base); !ok {
		return base
	}
	id := fmt.Sprintf("%s@%d", base, line)
	for i := 2; ; i++ {
		if _, ok := st.graph.GetNode(id); !ok {
			return id
		}
		id = fmt.Sprintf("%s@%d.%d", base, line, i)
	}
}

// =============================================================================
// Phase 2: Link
// =============================================================================

// linkPhase creates import, call, inheritance, and read edges.
func (b *Builder) linkPhase(ctx context.Context, state *buildState, files []*scanner.FileInfo) error {
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f == nil {
			continue
		}

		b.linkImports(state, f)
		b.linkCalls(state, f)
		b.linkInheritance(state, f)

		b.reportProgress(state, ProgressPhaseLinking, len(files), i+1)
	}
	return nil
}

// linkImports resolves a file's imports against the known file set and
// creates file-level and module-level import edges, plus reads edges
// for named imports that land on exported variables.
func (b *Builder) linkImports(state *buildState, f *scanner.FileInfo) {
	fileNode, ok := state.fileNodes[f.Path]
	if !ok {
		return
	}

	for _, imp := range f.Imports {
		targets := b.resolveImport(state, f, imp)
		if len(targets) == 0 {
			if importLooksInternal(f, imp, b.options.ProjectName) {
				state.result.Stats.UnresolvedImports++
			}
			continue
		}

		loc := &Location{File: f.Path, Line: imp.Line}
		for _, target := range targets {
			targetNode, ok := state.fileNodes[target]
			if !ok {
				continue
			}
			state.addEdge(fileNode, targetNode, EdgeKindImports, loc)

			// Cross-module imports roll up to the module graph used
			// by circular dependency detection.
			srcModule := state.moduleNodes[moduleOf(f.Path)]
			dstModule := state.moduleNodes[moduleOf(target)]
			if srcModule != nil && dstModule != nil && srcModule.ID != dstModule.ID {
				state.addEdge(srcModule, dstModule, EdgeKindImports, nil)
			}

			for _, name := range imp.Names {
				if varNode, ok := state.varsByFile[target][name]; ok {
					state.addEdge(fileNode, varNode, EdgeKindReads, loc)
				}
			}
		}
	}
}

// linkCalls creates call/await edges from every function to every
// known function sharing the called name. Name-only resolution is a
// deliberate precision/recall tradeoff; ambiguous matches produce an
// edge per candidate.
func (b *Builder) linkCalls(state *buildState, f *scanner.FileInfo) {
	for i := range f.Functions {
		fn := &f.Functions[i]
		callerPath := f.Path + "#" + fn.Name
		if fn.Class != "" {
			callerPath = f.Path + "#" + fn.Class + "." + fn.Name
		}
		caller := state.nodeByFullPathAndLine(callerPath, fn.StartLine)
		if caller == nil {
			continue
		}

		for _, call := range fn.Calls {
			targets := state.funcsByName[call.Name]
			if len(targets) == 0 {
				state.result.Stats.CallEdgesUnresolved++
				continue
			}
			state.result.Stats.CallEdgesResolved++
			if len(targets) > 1 {
				state.result.Stats.AmbiguousResolves++
			}

			kind := EdgeKindCalls
			if call.Awaited {
				kind = EdgeKindAwaits
			}
			loc := &Location{File: f.Path, Line: call.Line}
			for _, target := range targets {
				state.addEdge(caller, target, kind, loc)
			}
		}
	}
}

// linkInheritance creates extends/implements edges by type name.
func (b *Builder) linkInheritance(state *buildState, f *scanner.FileInfo) {
	for i := range f.Classes {
		c := &f.Classes[i]
		source := state.nodeByFullPathAndLine(f.Path+"#"+c.Name, c.StartLine)
		if source == nil {
			continue
		}
		loc := &Location{File: f.Path, Line: c.StartLine}

		if c.Extends != "" {
			for _, target := range state.typesByName[baseTypeName(c.Extends)] {
				if target.ID != source.ID {
					state.addEdge(source, target, EdgeKindExtends, loc)
				}
			}
		}
		for _, impl := range c.Implements {
			for _, target := range state.typesByName[baseTypeName(impl)] {
				if target.ID != source.ID {
					state.addEdge(source, target, EdgeKindImplements, loc)
				}
			}
		}
	}
}

// addEdge creates an edge, treating duplicates as a silent no-op and
// recording real failures.
func (st *buildState) addEdge(from, to *CodeNode, kind EdgeKind, loc *Location) {
	_, err := st.graph.AddEdge(from.ID, to.ID, kind, loc)
	if err == nil {
		st.result.Stats.EdgesCreated++
		return
	}
	if errors.Is(err, ErrDuplicateEdge) {
		return
	}
	st.result.EdgeErrors = append(st.result.EdgeErrors, EdgeError{
		FromID: from.ID, ToID: to.ID, Kind: kind, Err: err,
	})
}

// nodeByFullPathAndLine finds the node whose ID is either the full
// path or its line-disambiguated form.
func (st *buildState) nodeByFullPathAndLine(fullPath string, line int) *CodeNode {
	if node, ok := st.graph.GetNode(fullPath); ok && node.FullPath == fullPath {
		return node
	}
	if node, ok := st.graph.GetNode(fmt.Sprintf("%s@%d", fullPath, line)); ok {
		return node
	}
	return nil
}

// =============================================================================
// Import resolution
// =============================================================================

// tsExtensions are tried, in order, when resolving extensionless
// TypeScript/JavaScript import specifiers.
var tsExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".mts"}

// resolveImport expands an import specifier into candidate relative
// paths and returns those present in the scanned file set. Unresolved
// imports return nil; the caller decides whether that is noteworthy.
func (b *Builder) resolveImport(state *buildState, f *scanner.FileInfo, imp scanner.Import) []string {
	switch f.Language {
	case scanner.LanguageTypeScript, scanner.LanguageJavaScript:
		if !imp.IsRelative {
			return nil
		}
		return state.firstExisting(tsCandidates(path.Dir(f.Path), imp.Path))

	case scanner.LanguagePython:
		return state.firstExisting(pythonCandidates(f.Path, imp.Path))

	case scanner.LanguageRust:
		if !imp.IsRelative {
			return nil
		}
		return state.firstExisting(rustCandidates(f.Path, imp.Path))

	case scanner.LanguageGo:
		return b.goPackageFiles(state, imp.Path)

	case scanner.LanguageJava:
		return state.javaMatch(imp.Path)

	default:
		return nil
	}
}

// firstExisting returns the first candidate present in the file set.
func (st *buildState) firstExisting(candidates []string) []string {
	for _, c := range candidates {
		c = path.Clean(c)
		if st.fileSet[c] {
			return []string{c}
		}
	}
	return nil
}

// tsCandidates expands "./x" style specifiers with extension and
// index-file fallbacks.
func tsCandidates(dir, spec string) []string {
	base := path.Join(dir, spec)
	candidates := []string{base}
	for _, ext := range tsExtensions {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range []string{".ts", ".tsx", ".js", ".jsx"} {
		candidates = append(candidates, base+"/index"+ext)
	}
	return candidates
}

// pythonCandidates handles both relative ("from .x import y") and
// absolute ("import app.models") specifiers against the scanned tree.
func pythonCandidates(filePath, spec string) []string {
	var base string
	if strings.HasPrefix(spec, ".") {
		dots := 0
		for dots < len(spec) && spec[dots] == '.' {
			dots++
		}
		dir := path.Dir(filePath)
		for i := 1; i < dots; i++ {
			dir = path.Dir(dir)
		}
		base = path.Join(dir, strings.ReplaceAll(spec[dots:], ".", "/"))
	} else {
		base = strings.ReplaceAll(spec, ".", "/")
	}

	base = path.Clean(base)
	if base == "." || base == "" {
		return []string{path.Join(path.Dir(filePath), "__init__.py")}
	}
	candidates := []string{base + ".py", base + "/__init__.py"}
	if parent := path.Dir(base); parent != "." {
		// The trailing segment may be a symbol, not a module.
		candidates = append(candidates, parent+".py", parent+"/__init__.py")
	}
	return candidates
}

// rustCandidates handles crate/super/self paths and mod declarations.
func rustCandidates(filePath, spec string) []string {
	dir := path.Dir(filePath)

	var rest string
	var roots []string
	switch {
	case strings.HasPrefix(spec, "crate"):
		rest = strings.TrimPrefix(strings.TrimPrefix(spec, "crate"), "::")
		roots = []string{"src", "."}
	case strings.HasPrefix(spec, "super"):
		rest = strings.TrimPrefix(strings.TrimPrefix(spec, "super"), "::")
		roots = []string{path.Dir(dir)}
	case strings.HasPrefix(spec, "self"):
		rest = strings.TrimPrefix(strings.TrimPrefix(spec, "self"), "::")
		roots = []string{dir}
	default:
		// mod child; pulls in a sibling file
		rest = spec
		roots = []string{dir}
	}

	restSlash := strings.ReplaceAll(rest, "::", "/")
	var candidates []string
	for _, root := range roots {
		base := path.Join(root, restSlash)
		candidates = append(candidates,
			base+".rs",
			base+"/mod.rs",
			// The trailing segment may be an item, not a module.
			path.Dir(base)+".rs",
			path.Dir(base)+"/mod.rs",
		)
	}
	return candidates
}

// goPackageFiles resolves an intra-module Go import to every file in
// the target package directory.
func (b *Builder) goPackageFiles(state *buildState, spec string) []string {
	modPath := b.options.ProjectName
	if modPath == "" || !strings.HasPrefix(spec, modPath) {
		return nil
	}

	rel := strings.TrimPrefix(spec, modPath)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		rel = "."
	}
	return state.dirFiles[rel]
}

// javaMatch resolves a fully-qualified class import by path suffix.
func (st *buildState) javaMatch(spec string) []string {
	spec = strings.TrimSuffix(spec, ".*")
	suffix := "/" + strings.ReplaceAll(spec, ".", "/") + ".java"

	var best string
	for p := range st.fileSet {
		if strings.HasSuffix("/"+p, suffix) && (best == "" || p < best) {
			best = p
		}
	}
	if best == "" {
		return nil
	}
	return []string{best}
}

// importLooksInternal reports whether an unresolved import plausibly
// targeted the scanned tree, for the UnresolvedImports statistic.
// External package imports are expected to be unresolvable.
func importLooksInternal(f *scanner.FileInfo, imp scanner.Import, projectName string) bool {
	if imp.IsRelative {
		return true
	}
	if f.Language == scanner.LanguageGo && projectName != "" {
		return strings.HasPrefix(imp.Path, projectName)
	}
	return false
}

// =============================================================================
// Mapping helpers
// =============================================================================

// moduleOf returns the top path segment, or RootModuleName for files
// directly under the root.
func moduleOf(relPath string) string {
	idx := strings.Index(relPath, "/")
	if idx < 0 {
		return RootModuleName
	}
	return relPath[:idx]
}

// typeKind maps an extracted class kind tag to a node kind.
func typeKind(kind string) NodeKind {
	switch kind {
	case "struct":
		return NodeKindStruct
	case "interface":
		return NodeKindInterface
	case "trait":
		return NodeKindTrait
	case "enum":
		return NodeKindEnum
	case "type_alias":
		return NodeKindTypeAlias
	default:
		return NodeKindClass
	}
}

// functionKind maps an extracted function record to a node kind.
func functionKind(fn *scanner.FunctionInfo) NodeKind {
	switch {
	case fn.IsConstructor:
		return NodeKindConstructor
	case fn.Class != "":
		return NodeKindMethod
	default:
		return NodeKindFunction
	}
}

// visibilityOf maps the extractor's exported flag to a visibility.
func visibilityOf(exported bool) Visibility {
	if exported {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

// baseTypeName strips generic parameters and namespace prefixes from
// an extends/implements reference.
func baseTypeName(ref string) string {
	ref = strings.TrimSpace(ref)
	if idx := strings.IndexAny(ref, "<("); idx > 0 {
		ref = ref[:idx]
	}
	if idx := strings.LastIndexAny(ref, ".:"); idx >= 0 {
		ref = ref[idx+1:]
	}
	return strings.TrimSpace(ref)
}

// reportProgress invokes the progress callback when configured.
func (b *Builder) reportProgress(state *buildState, phase ProgressPhase, total, processed int) {
	if b.options.ProgressCallback == nil {
		return
	}
	b.options.ProgressCallback(BuildProgress{
		Phase:          phase,
		FilesTotal:     total,
		FilesProcessed: processed,
		NodesCreated:   state.result.Stats.NodesCreated,
		EdgesCreated:   state.result.Stats.EdgesCreated,
	})
}
