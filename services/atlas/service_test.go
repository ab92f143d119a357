// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package atlas

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAtlas/services/atlas/security"
	"github.com/AleutianAI/AleutianAtlas/services/atlas/store"
)

// writeProject writes a fixture tree and returns its symlink-resolved
// root, which is what the service compares against allowlists.
func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	resolved, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	return resolved
}

// mvcFixture is a three-layer express-style project whose imports
// resolve in-tree, so the graph carries file-level import edges and
// flow tracing has a controller -> service -> model chain to walk.
func mvcFixture() map[string]string {
	return map[string]string{
		"controllers/user_controller.js": strings.Join([]string{
			`import { UserService } from '../services/user_service.js';`,
			``,
			`export class UserController {`,
			`  constructor() {`,
			`    this.service = new UserService();`,
			`  }`,
			``,
			`  list(req, res) {`,
			`    return this.service.findAll();`,
			`  }`,
			`}`,
		}, "\n"),
		"services/user_service.js": strings.Join([]string{
			`import { User } from '../models/user.js';`,
			``,
			`export class UserService {`,
			`  findAll() {`,
			`    return User.all();`,
			`  }`,
			`}`,
		}, "\n"),
		"models/user.js": strings.Join([]string{
			`export class User {`,
			`  static all() {`,
			`    return [];`,
			`  }`,
			`}`,
		}, "\n"),
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestDefaultServiceConfig(t *testing.T) {
	cfg := DefaultServiceConfig()
	assert.Equal(t, 120*time.Second, cfg.MaxAnalysisDuration)
	assert.Equal(t, 10000, cfg.MaxProjectFiles)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxProjectSize)
	assert.Equal(t, int64(1024*1024), cfg.MaxRequestBytes)
	assert.Equal(t, 20, cfg.SnapshotKeep)
	assert.Empty(t, cfg.AllowedRoots)
}

func TestValidateProjectRoot(t *testing.T) {
	root := writeProject(t, mvcFixture())

	t.Run("relative path rejected", func(t *testing.T) {
		svc := NewService(DefaultServiceConfig())
		_, err := svc.validateProjectRoot("relative/path")
		require.ErrorIs(t, err, ErrRelativePath)
	})

	t.Run("traversal rejected", func(t *testing.T) {
		svc := NewService(DefaultServiceConfig())
		_, err := svc.validateProjectRoot("/tmp/../etc")
		require.ErrorIs(t, err, ErrPathTraversal)
	})

	t.Run("missing path errors", func(t *testing.T) {
		svc := NewService(DefaultServiceConfig())
		_, err := svc.validateProjectRoot("/does/not/exist/anywhere")
		require.Error(t, err)
	})

	t.Run("allowlist miss rejected", func(t *testing.T) {
		cfg := DefaultServiceConfig()
		cfg.AllowedRoots = []string{"/somewhere/else"}
		svc := NewService(cfg)
		_, err := svc.validateProjectRoot(root)
		require.ErrorIs(t, err, ErrRootNotAllowed)
	})

	t.Run("allowlist hit accepted", func(t *testing.T) {
		cfg := DefaultServiceConfig()
		cfg.AllowedRoots = []string{root}
		svc := NewService(cfg)
		resolved, err := svc.validateProjectRoot(root)
		require.NoError(t, err)
		assert.Equal(t, root, resolved)
	})
}

func TestAnalyze_Full(t *testing.T) {
	root := writeProject(t, mvcFixture())
	st := newTestStore(t)
	svc := NewService(DefaultServiceConfig(),
		WithStore(st),
		WithServiceLogger(quietLogger()))

	result, err := svc.Analyze(context.Background(), AnalyzeRequest{
		ProjectRoot: root,
		Save:        true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Meta.RunID)
	assert.Equal(t, ServiceVersion, result.Meta.Version)
	assert.Equal(t, root, result.Meta.Root)
	assert.False(t, result.Meta.GeneratedAt.IsZero())

	assert.Equal(t, 3, result.Stats.Files)
	assert.Len(t, result.Files, 3)
	assert.Equal(t, 3, result.Stats.ByLanguage["javascript"])
	assert.NotEmpty(t, result.Nodes)
	assert.NotEmpty(t, result.Edges)
	assert.Equal(t, len(result.Nodes), result.Stats.Nodes)

	assert.True(t, sort.SliceIsSorted(result.Nodes, func(i, j int) bool {
		return result.Nodes[i].ID < result.Nodes[j].ID
	}), "nodes must be sorted by ID")

	require.NotNil(t, result.Architecture)
	assert.NotEmpty(t, result.Architecture.Detected)
	require.NotNil(t, result.Architecture.Classification)

	require.NotNil(t, result.Flows)
	assert.GreaterOrEqual(t, result.Flows.Metrics.EntryPoints, 1)

	// Security was not requested.
	assert.Nil(t, result.Security)
	assert.Equal(t, 0, result.Stats.Findings)

	// The run was snapshotted.
	snaps, err := st.List(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, result.Meta.RunID, snaps[0].ID)
	assert.Equal(t, 3, snaps[0].Files)
	assert.NotEmpty(t, snaps[0].Payload)
}

func TestAnalyze_WithSecurity(t *testing.T) {
	files := mvcFixture()
	files["src/routes.js"] = strings.Join([]string{
		`const express = require('express');`,
		`const router = express.Router();`,
		``,
		`router.get('/lookup', (req, res) => {`,
		`  db.execute("SELECT * FROM user_sessions WHERE id=" + req.query.id);`,
		`  res.send('ok');`,
		`});`,
	}, "\n")
	root := writeProject(t, files)
	svc := NewService(DefaultServiceConfig(), WithServiceLogger(quietLogger()))

	result, err := svc.Analyze(context.Background(), AnalyzeRequest{
		ProjectRoot: root,
		Security:    true,
	})
	require.NoError(t, err)

	require.NotNil(t, result.Security)
	assert.GreaterOrEqual(t, result.Security.Total, 1)
	assert.Equal(t, result.Security.Total, result.Stats.Findings)
}

func TestAnalyze_ProjectTooLarge(t *testing.T) {
	root := writeProject(t, mvcFixture())
	cfg := DefaultServiceConfig()
	cfg.MaxProjectFiles = 1
	svc := NewService(cfg, WithServiceLogger(quietLogger()))

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{ProjectRoot: root})
	require.ErrorIs(t, err, ErrProjectTooLarge)
}

func TestAnalyze_ByteLimit(t *testing.T) {
	root := writeProject(t, mvcFixture())
	cfg := DefaultServiceConfig()
	cfg.MaxProjectSize = 10
	svc := NewService(cfg, WithServiceLogger(quietLogger()))

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{ProjectRoot: root})
	require.ErrorIs(t, err, ErrProjectTooLarge)
}

func TestAnalyze_InProgress(t *testing.T) {
	root := writeProject(t, mvcFixture())
	svc := NewService(DefaultServiceConfig(), WithServiceLogger(quietLogger()))

	release, err := svc.acquireRun(root)
	require.NoError(t, err)
	defer release()

	_, err = svc.Analyze(context.Background(), AnalyzeRequest{ProjectRoot: root})
	require.ErrorIs(t, err, ErrAnalysisInProgress)
}

func TestAnalyze_LockReleased(t *testing.T) {
	root := writeProject(t, mvcFixture())
	svc := NewService(DefaultServiceConfig(), WithServiceLogger(quietLogger()))

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{ProjectRoot: root})
	require.NoError(t, err)

	// A second run over the same root must not see a held lock.
	_, err = svc.Analyze(context.Background(), AnalyzeRequest{ProjectRoot: root})
	require.NoError(t, err)
}

func TestSecurityScan(t *testing.T) {
	root := writeProject(t, map[string]string{
		"src/routes.js": strings.Join([]string{
			`const express = require('express');`,
			`const router = express.Router();`,
			``,
			`router.get('/lookup', (req, res) => {`,
			`  db.execute("SELECT * FROM user_sessions WHERE id=" + req.query.id);`,
			`  res.send('ok');`,
			`});`,
		}, "\n"),
	})
	svc := NewService(DefaultServiceConfig(), WithServiceLogger(quietLogger()))

	report, err := svc.SecurityScan(context.Background(), SecurityScanRequest{ProjectRoot: root})
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.GreaterOrEqual(t, report.Total, 1)
	assert.GreaterOrEqual(t, report.Pipeline.OriginalCount, report.Total)
}

func TestSecurityScan_TunedFunnel(t *testing.T) {
	// A parameterized query is filtered at 0.95 confidence, so it is
	// removed under the default 0.85 threshold but kept under 0.99.
	files := map[string]string{
		"src/routes.js": strings.Join([]string{
			`router.get('/safe', (req, res) => {`,
			`  db.execute("SELECT * FROM users WHERE id = ?", [req.query.id]);`,
			`  res.send('ok');`,
			`});`,
		}, "\n"),
	}

	strict := security.DefaultPipelineOptions()
	strict.FilterThreshold = 0.99

	tests := []struct {
		name string
		opts []Option
		want int
	}{
		{"default threshold removes it", nil, 0},
		{"raised threshold keeps it", []Option{WithSecurityOptions(strict)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t, files)
			opts := append([]Option{WithServiceLogger(quietLogger())}, tt.opts...)
			svc := NewService(DefaultServiceConfig(), opts...)

			report, err := svc.SecurityScan(context.Background(), SecurityScanRequest{ProjectRoot: root})
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Total)
		})
	}
}

func TestPatterns(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	patterns := svc.Patterns()
	require.NotEmpty(t, patterns)

	names := make([]string, 0, len(patterns))
	for _, p := range patterns {
		names = append(names, p.Name)
		assert.NotEmpty(t, p.Layers, "pattern %s has no layers", p.Name)
	}
	assert.Contains(t, names, "MVC")
	assert.Contains(t, names, "Clean Architecture")
}

func TestSnapshots_Disabled(t *testing.T) {
	svc := NewService(DefaultServiceConfig())
	_, err := svc.Snapshots(context.Background())
	require.ErrorIs(t, err, ErrSnapshotsDisabled)
}

func TestSnapshotPruning(t *testing.T) {
	root := writeProject(t, mvcFixture())
	st := newTestStore(t)
	cfg := DefaultServiceConfig()
	cfg.SnapshotKeep = 1
	svc := NewService(cfg, WithStore(st), WithServiceLogger(quietLogger()))

	for i := 0; i < 3; i++ {
		_, err := svc.Analyze(context.Background(), AnalyzeRequest{ProjectRoot: root, Save: true})
		require.NoError(t, err)
	}

	snaps, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestFileImports(t *testing.T) {
	root := writeProject(t, mvcFixture())
	svc := NewService(DefaultServiceConfig(), WithServiceLogger(quietLogger()))

	scan, err := svc.runScan(context.Background(), root, nil, nil)
	require.NoError(t, err)
	build, err := svc.runBuild(context.Background(), root, scan)
	require.NoError(t, err)

	deps := fileImports(build.Graph)
	assert.Contains(t, deps["controllers/user_controller.js"], "services/user_service.js")
	assert.Contains(t, deps["services/user_service.js"], "models/user.js")
}
