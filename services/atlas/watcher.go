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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeOp is the kind of filesystem change.
type ChangeOp string

// Filesystem change kinds, in report vocabulary.
const (
	OpCreate ChangeOp = "create"
	OpWrite  ChangeOp = "write"
	OpRemove ChangeOp = "remove"
	OpRename ChangeOp = "rename"
)

// Change is one debounced filesystem event.
type Change struct {
	// Path is the absolute path of the changed file.
	Path string

	// Op is the kind of change.
	Op ChangeOp

	// At is when the change was observed.
	At time.Time
}

// ChangeHandler receives each debounced batch. It is called from a
// single goroutine; batches never overlap.
type ChangeHandler func(changes []Change)

// WatcherOptions tunes the watcher.
type WatcherOptions struct {
	// Debounce is how long the tree must stay quiet before a batch
	// fires. Default: 500ms.
	Debounce time.Duration

	// IgnoreDirs are directory names that are never watched.
	// Default: VCS, dependency, and build-output directories.
	IgnoreDirs []string

	// IgnoreSuffixes skip editor temp files by name suffix.
	// Default: [".swp", ".tmp", "~"]
	IgnoreSuffixes []string

	// BufferSize is the pending-event channel capacity. Events beyond
	// a full buffer are dropped; the next settle still fires. Default:
	// 1024.
	BufferSize int
}

// DefaultWatcherOptions returns the defaults.
func DefaultWatcherOptions() WatcherOptions {
	return WatcherOptions{
		Debounce:       500 * time.Millisecond,
		IgnoreDirs:     []string{".git", ".hg", "node_modules", "vendor", "dist", "build", "target", "__pycache__", ".idea", ".vscode"},
		IgnoreSuffixes: []string{".swp", ".tmp", "~"},
		BufferSize:     1024,
	}
}

// Watcher watches a project tree and reports debounced change
// batches. It exists so watch mode can re-run analyses when the tree
// settles instead of on every keystroke.
//
// Thread Safety:
//
//	Safe for concurrent use. The handler runs on one goroutine.
type Watcher struct {
	root     string
	handler  ChangeHandler
	fsw      *fsnotify.Watcher
	debounce time.Duration
	ignore   map[string]bool
	suffixes []string
	pending  chan Change
	done     chan struct{}
	stopOnce sync.Once
	log      *slog.Logger

	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a watcher over root. The handler is called with
// each settled batch. A nil logger falls back to slog.Default().
func NewWatcher(root string, handler ChangeHandler, opts WatcherOptions, logger *slog.Logger) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1024
	}
	if opts.IgnoreDirs == nil {
		opts.IgnoreDirs = DefaultWatcherOptions().IgnoreDirs
	}
	if opts.IgnoreSuffixes == nil {
		opts.IgnoreSuffixes = DefaultWatcherOptions().IgnoreSuffixes
	}
	if logger == nil {
		logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ignore := make(map[string]bool, len(opts.IgnoreDirs))
	for _, dir := range opts.IgnoreDirs {
		ignore[dir] = true
	}

	return &Watcher{
		root:     root,
		handler:  handler,
		fsw:      fsw,
		debounce: opts.Debounce,
		ignore:   ignore,
		suffixes: opts.IgnoreSuffixes,
		pending:  make(chan Change, opts.BufferSize),
		done:     make(chan struct{}),
		log:      logger,
	}, nil
}

// Start begins watching. The root and every non-ignored subdirectory
// are registered; directories created later are added as they appear.
// Watching stops when ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.collect(ctx)
	go w.flush(ctx)

	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		if err := w.fsw.Close(); err != nil {
			w.log.Warn("close watcher", "error", err)
		}
		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// addRecursive registers root and every subdirectory that is not
// ignored. Walk errors on individual entries are skipped so one
// unreadable directory cannot stop the watch.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignoredDir(d.Name()) && path != root {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// ignoredDir reports whether a directory name is in the ignore set.
func (w *Watcher) ignoredDir(name string) bool {
	return w.ignore[name]
}

// ignoredPath reports whether a changed path should be dropped: a
// path under an ignored directory, or an editor temp file.
func (w *Watcher) ignoredPath(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if w.ignore[part] {
			return true
		}
	}
	base := filepath.Base(path)
	for _, suffix := range w.suffixes {
		if strings.HasSuffix(base, suffix) {
			return true
		}
	}
	return false
}

// collect converts raw fsnotify events into pending changes and
// registers newly created directories.
func (w *Watcher) collect(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.ignoredPath(event.Name) {
				continue
			}

			change := Change{
				Path: event.Name,
				Op:   convertOp(event.Op),
				At:   time.Now(),
			}
			select {
			case w.pending <- change:
			default:
				w.log.Debug("watch buffer full, dropping event", "path", event.Name)
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.fsw.Add(event.Name); err != nil {
						w.log.Warn("watch new directory", "path", event.Name, "error", err)
					}
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// flush batches pending changes and calls the handler once the tree
// has stayed quiet for the debounce window. The final batch is
// delivered on shutdown.
func (w *Watcher) flush(ctx context.Context) {
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	deliver := func() {
		if len(batch) > 0 && w.handler != nil {
			w.handler(dedupe(batch))
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			deliver()
			return
		case <-w.done:
			deliver()
			return
		case change := <-w.pending:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			deliver()
		}
	}
}

// convertOp maps fsnotify operations onto change kinds.
func convertOp(op fsnotify.Op) ChangeOp {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

// dedupe keeps the newest change per path, preserving first-seen
// order.
func dedupe(changes []Change) []Change {
	index := make(map[string]int, len(changes))
	result := make([]Change, 0, len(changes))
	for _, change := range changes {
		if i, seen := index[change.Path]; seen {
			result[i] = change
			continue
		}
		index[change.Path] = len(result)
		result = append(result, change)
	}
	return result
}
