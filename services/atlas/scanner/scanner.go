// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scanner walks a project tree and extracts structural facts
// from source files using regex tables and brace/indent heuristics.
//
// Description:
//
//	The scanner is the first stage of every analysis run. It walks the
//	root, filters files by extension and glob, and produces one
//	FileInfo per source file: imports, exports, classes, functions
//	with call sites and complexity, and top-level variables. File
//	contents are not retained; downstream stages that need raw text
//	(the security pipeline) read files themselves.
//
//	Extraction is deliberately heuristic. Brace counting and
//	indentation comparison delimit bodies; there is no grammar and no
//	syntax tree. This keeps one engine working across six languages at
//	the cost of bounded precision, which downstream consumers absorb
//	through confidence scoring.
//
// Thread Safety:
//
//	A Scanner is safe for concurrent use. Each Scan call is
//	independent; files within a run are extracted by a bounded worker
//	pool.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/mod/modfile"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianAtlas/pkg/logging"
)

// ErrInvalidRoot indicates the scan root does not exist or is not a
// directory. This is the only fatal scanner error; everything else
// degrades to a skip entry or an empty result.
var ErrInvalidRoot = errors.New("scan root is not a directory")

// DefaultMaxFileSize is the per-file size cap. Larger files are
// skipped and audited; they are almost always generated or vendored.
const DefaultMaxFileSize = 1 << 20 // 1 MiB

// defaultExcludedDirs are directory names pruned during the walk.
var defaultExcludedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".next":        true,
	"coverage":     true,
	".idea":        true,
	".vscode":      true,
}

// Scanner walks project trees and extracts FileInfo records.
type Scanner struct {
	includes    []string
	excludes    []string
	maxFileSize int64
	workers     int
	log         *logging.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithIncludes restricts the scan to files matching at least one
// doublestar glob (relative to the root, forward slashes).
func WithIncludes(globs ...string) Option {
	return func(s *Scanner) { s.includes = append(s.includes, globs...) }
}

// WithExcludes skips files matching any doublestar glob, in addition
// to the built-in directory exclusions.
func WithExcludes(globs ...string) Option {
	return func(s *Scanner) { s.excludes = append(s.excludes, globs...) }
}

// WithMaxFileSize overrides the per-file size cap in bytes.
func WithMaxFileSize(n int64) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxFileSize = n
		}
	}
}

// WithWorkers overrides the extraction worker count.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the logger. Defaults to logging.Default().
func WithLogger(log *logging.Logger) Option {
	return func(s *Scanner) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		maxFileSize: DefaultMaxFileSize,
		workers:     min(runtime.NumCPU(), 8),
		log:         logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan walks root and extracts every supported source file.
//
// Description:
//
//	Walks the tree once collecting candidate paths, then extracts them
//	with a bounded worker pool. Individual file failures (unreadable,
//	oversized, binary) are recorded as skip entries and never fail the
//	run. Glob sets that match nothing produce an empty result, not an
//	error.
//
// Inputs:
//
//	ctx - Cancels the walk and the worker pool.
//	root - Project root directory.
//
// Outputs:
//
//	*ScanResult - Files sorted by path, skip audit, project name,
//	              duration. Never nil on nil error.
//	error - ErrInvalidRoot when root is missing or not a directory,
//	        or the context error on cancellation.
func (s *Scanner) Scan(ctx context.Context, root string) (*ScanResult, error) {
	start := time.Now()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoot, root)
	}
	fi, err := os.Stat(absRoot)
	if err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoot, root)
	}

	result := &ScanResult{
		Root:        absRoot,
		ProjectName: detectProjectName(absRoot),
	}

	paths, walkSkips, err := s.collectPaths(ctx, absRoot)
	if err != nil {
		return nil, err
	}
	result.Skipped = walkSkips

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	files := make([]*FileInfo, 0, len(paths))
	for _, rel := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info, skip := s.extractOne(absRoot, rel)
			mu.Lock()
			defer mu.Unlock()
			if skip != nil {
				result.Skipped = append(result.Skipped, *skip)
				return nil
			}
			files = append(files, info)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	sort.Slice(result.Skipped, func(i, j int) bool { return result.Skipped[i].Path < result.Skipped[j].Path })

	result.Files = files
	result.SkippedFiles = len(result.Skipped)
	result.DurationMs = time.Since(start).Milliseconds()

	s.log.Debug("scan complete",
		"root", absRoot,
		"project", result.ProjectName,
		"files", len(files),
		"skipped", result.SkippedFiles,
		"duration_ms", result.DurationMs,
	)
	return result, nil
}

// collectPaths walks the tree and returns relative candidate paths.
func (s *Scanner) collectPaths(ctx context.Context, absRoot string) ([]string, []SkippedFile, error) {
	var paths []string
	var skips []SkippedFile

	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			rel := relSlash(absRoot, path)
			skips = append(skips, SkippedFile{Path: rel, Reason: "walk error: " + walkErr.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if defaultExcludedDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if DetectLanguage(name) == LanguageUnknown {
			return nil
		}

		rel := relSlash(absRoot, path)
		if !s.matches(rel) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return paths, skips, nil
}

// matches applies include and exclude globs to a relative path.
func (s *Scanner) matches(rel string) bool {
	for _, pattern := range s.excludes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	if len(s.includes) == 0 {
		return true
	}
	for _, pattern := range s.includes {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// extractOne reads and extracts a single file. Failures return a skip
// entry instead of an error.
func (s *Scanner) extractOne(absRoot, rel string) (*FileInfo, *SkippedFile) {
	full := filepath.Join(absRoot, filepath.FromSlash(rel))

	st, err := os.Stat(full)
	if err != nil {
		return nil, &SkippedFile{Path: rel, Reason: "stat error: " + err.Error()}
	}
	if st.Size() > s.maxFileSize {
		return nil, &SkippedFile{Path: rel, Reason: fmt.Sprintf("file too large (%d bytes)", st.Size())}
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, &SkippedFile{Path: rel, Reason: "read error: " + err.Error()}
	}
	if isBinary(data) {
		return nil, &SkippedFile{Path: rel, Reason: "binary content"}
	}

	info := ExtractFile(rel, DetectLanguage(rel), string(data))
	info.Layer = layerFromPath(rel)
	return info, nil
}

// isBinary sniffs for NUL bytes in the leading segment.
func isBinary(data []byte) bool {
	n := min(len(data), 1024)
	for i := 0; i < n; i++ {
		if data[i] == 0 {
			return true
		}
	}
	return false
}

// relSlash returns path relative to root with forward slashes.
func relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// =============================================================================
// Project metadata
// =============================================================================

var cargoNameRe = regexp.MustCompile(`(?m)^name\s*=\s*"([^"]+)"`)

// detectProjectName derives the project name from build manifests,
// falling back to the root directory name.
//
// Go modules are parsed properly because the module path doubles as
// the import prefix used to resolve intra-project Go imports.
func detectProjectName(absRoot string) string {
	if data, err := os.ReadFile(filepath.Join(absRoot, "go.mod")); err == nil {
		if f, err := modfile.ParseLax("go.mod", data, nil); err == nil && f.Module != nil {
			return f.Module.Mod.Path
		}
	}

	if data, err := os.ReadFile(filepath.Join(absRoot, "package.json")); err == nil {
		var pkg struct {
			Name string `json:"name"`
		}
		if json.Unmarshal(data, &pkg) == nil && pkg.Name != "" {
			return pkg.Name
		}
	}

	if data, err := os.ReadFile(filepath.Join(absRoot, "Cargo.toml")); err == nil {
		if m := cargoNameRe.FindSubmatch(data); m != nil {
			return string(m[1])
		}
	}

	if data, err := os.ReadFile(filepath.Join(absRoot, "pyproject.toml")); err == nil {
		if m := cargoNameRe.FindSubmatch(data); m != nil {
			return string(m[1])
		}
	}

	return filepath.Base(absRoot)
}

// layerSegments maps path segments to coarse architectural layers.
// Ordered so the most specific segments win.
var layerSegments = []struct {
	segment string
	layer   string
}{
	{"domain", "domain"},
	{"entities", "domain"},
	{"usecases", "application"},
	{"use_cases", "application"},
	{"use-cases", "application"},
	{"application", "application"},
	{"services", "application"},
	{"infrastructure", "infrastructure"},
	{"infra", "infrastructure"},
	{"repositories", "infrastructure"},
	{"adapters", "infrastructure"},
	{"persistence", "infrastructure"},
	{"db", "infrastructure"},
	{"presentation", "presentation"},
	{"controllers", "presentation"},
	{"handlers", "presentation"},
	{"routes", "presentation"},
	{"views", "presentation"},
	{"ui", "presentation"},
	{"components", "presentation"},
	{"pages", "presentation"},
	{"api", "presentation"},
	{"shared", "shared"},
	{"common", "shared"},
	{"utils", "shared"},
	{"lib", "shared"},
}

// layerFromPath assigns a coarse layer tag from path segments. The
// architecture classifier refines this later; this tag exists so the
// graph carries a usable default even when architecture analysis is
// skipped.
func layerFromPath(rel string) string {
	segs := strings.Split(strings.ToLower(rel), "/")
	for _, seg := range segs {
		for _, ls := range layerSegments {
			if seg == ls.segment {
				return ls.layer
			}
		}
	}
	return ""
}
