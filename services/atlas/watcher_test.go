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
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertOp(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want ChangeOp
	}{
		{fsnotify.Create, OpCreate},
		{fsnotify.Write, OpWrite},
		{fsnotify.Remove, OpRemove},
		{fsnotify.Rename, OpRename},
		{fsnotify.Chmod, OpWrite},
		{fsnotify.Create | fsnotify.Write, OpCreate},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, convertOp(tt.op), "op %v", tt.op)
	}
}

func TestDedupe(t *testing.T) {
	now := time.Now()
	changes := []Change{
		{Path: "a.js", Op: OpCreate, At: now},
		{Path: "b.js", Op: OpCreate, At: now},
		{Path: "a.js", Op: OpWrite, At: now.Add(time.Millisecond)},
		{Path: "a.js", Op: OpRemove, At: now.Add(2 * time.Millisecond)},
	}

	got := dedupe(changes)
	require.Len(t, got, 2)

	// First-seen order, newest op per path.
	assert.Equal(t, "a.js", got[0].Path)
	assert.Equal(t, OpRemove, got[0].Op)
	assert.Equal(t, "b.js", got[1].Path)
	assert.Equal(t, OpCreate, got[1].Op)
}

func TestWatcher_IgnoredPath(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil, DefaultWatcherOptions(), quietLogger())
	require.NoError(t, err)
	defer w.Stop()

	tests := []struct {
		path    string
		ignored bool
	}{
		{"/project/src/app.js", false},
		{"/project/node_modules/lib/index.js", true},
		{"/project/.git/HEAD", true},
		{"/project/src/.app.js.swp", true},
		{"/project/src/app.js~", true},
		{"/project/build/out.js", true},
		{"/project/builder/out.js", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ignored, w.ignoredPath(tt.path), "path %s", tt.path)
	}
}

// batchRecorder collects delivered batches for assertions.
type batchRecorder struct {
	mu      sync.Mutex
	batches [][]Change
}

func (r *batchRecorder) handle(changes []Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, changes)
}

// paths flattens every delivered batch into a path set.
func (r *batchRecorder) paths() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool)
	for _, batch := range r.batches {
		for _, change := range batch {
			seen[change.Path] = true
		}
	}
	return seen
}

func startTestWatcher(t *testing.T) (string, *Watcher, *batchRecorder) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	rec := &batchRecorder{}
	opts := DefaultWatcherOptions()
	opts.Debounce = 50 * time.Millisecond
	w, err := NewWatcher(root, rec.handle, opts, quietLogger())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
	return root, w, rec
}

func TestWatcher_BatchesChanges(t *testing.T) {
	root, w, rec := startTestWatcher(t)
	assert.True(t, w.IsWatching())

	first := filepath.Join(root, "app.js")
	second := filepath.Join(root, "util.js")
	require.NoError(t, os.WriteFile(first, []byte("export {}\n"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("export {}\n"), 0o644))

	require.Eventually(t, func() bool {
		seen := rec.paths()
		return seen[first] && seen[second]
	}, 3*time.Second, 20*time.Millisecond, "expected both files in a batch")
}

func TestWatcher_NewDirectoryWatched(t *testing.T) {
	root, _, rec := startTestWatcher(t)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// Wait for the directory create to land so the new watch is in
	// place before writing into it.
	require.Eventually(t, func() bool {
		return rec.paths()[sub]
	}, 3*time.Second, 20*time.Millisecond, "expected directory create to be seen")

	inner := filepath.Join(sub, "inner.js")
	require.NoError(t, os.WriteFile(inner, []byte("export {}\n"), 0o644))

	require.Eventually(t, func() bool {
		return rec.paths()[inner]
	}, 3*time.Second, 20*time.Millisecond, "expected file in new directory to be seen")
}

func TestWatcher_IgnoresTempFiles(t *testing.T) {
	root, _, rec := startTestWatcher(t)

	real := filepath.Join(root, "app.js")
	swap := filepath.Join(root, ".app.js.swp")
	require.NoError(t, os.WriteFile(swap, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(real, []byte("export {}\n"), 0o644))

	require.Eventually(t, func() bool {
		return rec.paths()[real]
	}, 3*time.Second, 20*time.Millisecond)

	assert.False(t, rec.paths()[swap], "swap file must not be reported")
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil, DefaultWatcherOptions(), quietLogger())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.True(t, w.IsWatching())

	w.Stop()
	w.Stop()
	assert.False(t, w.IsWatching())
}
