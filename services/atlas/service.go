// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package atlas wires the scanner, graph builder, architecture
// subsystem, flow analyzer, and security funnel into one analysis
// service, and exposes it over HTTP.
//
// The service exposes endpoints for:
//   - Running a full analysis of a project tree
//   - Running the security funnel on its own
//   - Listing the architecture pattern catalog
//   - Listing stored analysis snapshots
package atlas

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/security"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/store"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/telemetry"
	"github.com/AleutianAI/AleutianAtlas/services/llm"
)

// ServiceConfig configures the analysis service.
type ServiceConfig struct {
	// MaxAnalysisDuration is the maximum time allowed for one run.
	// Default: 120s
	MaxAnalysisDuration time.Duration

	// MaxProjectFiles is the maximum number of files to analyze.
	// Default: 10000
	MaxProjectFiles int

	// MaxProjectSize is the maximum total size of files in bytes.
	// Default: 100MB
	MaxProjectSize int64

	// MaxRequestBytes caps request bodies on the HTTP surface.
	// Default: 1MB
	MaxRequestBytes int64

	// SnapshotKeep is how many snapshots to retain after a saved run.
	// Default: 20. Zero disables pruning.
	SnapshotKeep int

	// AllowedRoots is an optional list of allowed project root
	// prefixes. If empty, all absolute paths are allowed. Security
	// feature.
	AllowedRoots []string
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxAnalysisDuration: 120 * time.Second,
		MaxProjectFiles:     10000,
		MaxProjectSize:      100 * 1024 * 1024, // 100MB
		MaxRequestBytes:     1024 * 1024,       // 1MB
		SnapshotKeep:        20,
	}
}

// Service runs analyses. One run at a time is allowed per project
// root; concurrent runs for different roots proceed independently.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Multiple goroutines can call
//	any combination of methods simultaneously.
type Service struct {
	config       ServiceConfig
	store        *store.Store
	judge        llm.LLMClient
	metrics      *telemetry.Metrics
	securityOpts *security.PipelineOptions
	log          *slog.Logger
	runLocks     sync.Map // resolved root -> *sync.Mutex
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithStore attaches a snapshot store. Without one, Save requests are
// ignored and the snapshots endpoint reports unavailable.
func WithStore(st *store.Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithJudge attaches the external judge consulted by architecture
// detection, classification, and security validation. Nil keeps every
// stage heuristic-only.
func WithJudge(client llm.LLMClient) Option {
	return func(s *Service) {
		s.judge = client
	}
}

// WithMetrics attaches the telemetry instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSecurityOptions overrides the funnel tuning (thresholds, stage-3
// cost caps). The Judge and Logger fields are ignored; the service
// supplies its own on every run.
func WithSecurityOptions(opts security.PipelineOptions) Option {
	return func(s *Service) {
		s.securityOpts = &opts
	}
}

// WithServiceLogger sets the logger. Defaults to slog.Default().
func WithServiceLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.log = logger
		}
	}
}

// NewService creates an analysis service.
func NewService(config ServiceConfig, opts ...Option) *Service {
	if config.MaxAnalysisDuration <= 0 {
		config.MaxAnalysisDuration = 120 * time.Second
	}
	if config.MaxProjectFiles <= 0 {
		config.MaxProjectFiles = 10000
	}
	if config.MaxProjectSize <= 0 {
		config.MaxProjectSize = 100 * 1024 * 1024
	}
	if config.MaxRequestBytes <= 0 {
		config.MaxRequestBytes = 1024 * 1024
	}
	s := &Service{
		config: config,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns a copy of the service configuration.
func (s *Service) Config() ServiceConfig {
	return s.config
}

// validateProjectRoot checks a requested root against the path rules
// and returns the symlink-resolved path analyses should use.
func (s *Service) validateProjectRoot(projectRoot string) (string, error) {
	// Must be absolute
	if !filepath.IsAbs(projectRoot) {
		return "", ErrRelativePath
	}

	// No path traversal
	if strings.Contains(projectRoot, "..") {
		return "", ErrPathTraversal
	}

	// Resolve symlinks so allowlist checks see the real location
	resolved, err := filepath.EvalSymlinks(projectRoot)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	// Check against allowlist if configured
	if len(s.config.AllowedRoots) > 0 {
		allowed := false
		for _, root := range s.config.AllowedRoots {
			if strings.HasPrefix(resolved, root) {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", ErrRootNotAllowed
		}
	}

	return resolved, nil
}

// acquireRun takes the per-root run lock. It returns a release
// function on success and ErrAnalysisInProgress when another run
// already holds the root.
func (s *Service) acquireRun(resolvedRoot string) (func(), error) {
	lock, _ := s.runLocks.LoadOrStore(resolvedRoot, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, ErrAnalysisInProgress
	}
	return mu.Unlock, nil
}
