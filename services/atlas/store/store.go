// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists analysis snapshots in an embedded BadgerDB.
//
// One analysis run produces one immutable snapshot. Metadata and the
// full result payload live under separate key prefixes so listing runs
// never decodes result bundles:
//
//	runmeta:<id> -> Snapshot metadata (JSON)
//	run:<id>     -> full AnalysisResult bundle (JSON)
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var (
	// ErrNotFound is returned when no snapshot exists for the given id.
	ErrNotFound = errors.New("store: snapshot not found")

	// ErrMissingID is returned when a snapshot is saved without an id.
	ErrMissingID = errors.New("store: snapshot id is required")
)

const (
	runKeyPrefix  = "run:"
	metaKeyPrefix = "runmeta:"
)

// Snapshot is one persisted analysis run. Payload carries the full
// result bundle and is omitted from List results.
type Snapshot struct {
	// ID is the run identifier, assigned by the caller.
	ID string `json:"id"`

	// CreatedAt is when the run finished. Set on Save when zero.
	CreatedAt time.Time `json:"createdAt"`

	// ProjectName labels the analyzed project.
	ProjectName string `json:"projectName"`

	// RootPath is the analyzed directory.
	RootPath string `json:"rootPath"`

	// Files is the number of source files analyzed.
	Files int `json:"files"`

	// Issues is the number of structural issues found.
	Issues int `json:"issues"`

	// Findings is the number of security findings surfaced.
	Findings int `json:"findings"`

	// Pattern is the top detected architecture pattern, if any.
	Pattern string `json:"pattern,omitempty"`

	// Payload is the full analysis bundle as JSON.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Config holds store configuration.
type Config struct {
	// Path is the directory for database files. Required unless
	// InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Data is lost on Close.
	InMemory bool

	// SyncWrites makes every write durable before returning.
	SyncWrites bool

	// Logger receives store and BadgerDB log output. Badger's internal
	// logging is disabled when nil.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Zero disables GC.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum garbage ratio before a value log
	// file is rewritten.
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults: durable writes and GC
// every five minutes.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests: no disk, no sync,
// no GC.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
	}
}

// Store is a snapshot store over BadgerDB. Safe for concurrent use.
type Store struct {
	db  *badger.DB
	gc  *gcRunner
	log *slog.Logger
}

// Open opens the store, creating the database directory if needed.
// Call Close when done.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store: path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Store{db: db, log: log}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.gc = newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, log)
		s.gc.start()
	}
	return s, nil
}

// Close stops garbage collection and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// Save persists a snapshot. CreatedAt is set to now when zero. Saving
// an existing id overwrites it.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	if snap == nil {
		return errors.New("store: nil snapshot")
	}
	if snap.ID == "" {
		return ErrMissingID
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	meta := *snap
	meta.Payload = nil
	metaBytes, err := json.Marshal(&meta)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
	}

	return s.withTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(metaKey(snap.ID), metaBytes); err != nil {
			return err
		}
		if len(snap.Payload) > 0 {
			return txn.Set(runKey(snap.ID), snap.Payload)
		}
		return txn.Delete(runKey(snap.ID))
	})
}

// Get returns the snapshot with its payload, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Snapshot, error) {
	var snap Snapshot
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		}); err != nil {
			return fmt.Errorf("decode snapshot %s: %w", id, err)
		}

		item, err = txn.Get(runKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // metadata-only snapshot
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			snap.Payload = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// List returns snapshot metadata, newest first. Payloads are not
// loaded. Entries that fail to decode are skipped with a warning.
func (s *Store) List(ctx context.Context) ([]Snapshot, error) {
	snaps := []Snapshot{}
	err := s.withReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(metaKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var snap Snapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				s.log.Warn("skipping undecodable snapshot",
					slog.String("key", string(it.Item().KeyCopy(nil))),
					slog.String("error", err.Error()))
				continue
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(snaps, func(i, j int) bool {
		if !snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
		}
		return snaps[i].ID < snaps[j].ID
	})
	return snaps, nil
}

// Delete removes a snapshot, or returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.withTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(metaKey(id)); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		if err := txn.Delete(metaKey(id)); err != nil {
			return err
		}
		return txn.Delete(runKey(id))
	})
}

// Prune deletes all but the keep newest snapshots and returns how many
// were removed. keep <= 0 removes everything.
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	snaps, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(snaps) <= keep {
		return 0, nil
	}

	removed := 0
	for _, snap := range snaps[keep:] {
		if err := s.Delete(ctx, snap.ID); err != nil {
			return removed, fmt.Errorf("prune snapshot %s: %w", snap.ID, err)
		}
		removed++
	}
	return removed, nil
}

// withTxn runs fn in a read-write transaction, committing on nil.
func (s *Store) withTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// withReadTxn runs fn in a read-only transaction.
func (s *Store) withReadTxn(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	txn := s.db.NewTransaction(false)
	defer txn.Discard()
	return fn(txn)
}

func runKey(id string) []byte  { return []byte(runKeyPrefix + id) }
func metaKey(id string) []byte { return []byte(metaKeyPrefix + id) }

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// gcRunner periodically rewrites garbage value log files.
type gcRunner struct {
	db       *badger.DB
	interval time.Duration
	ratio    float64
	stopCh   chan struct{}
	doneCh   chan struct{}
	log      *slog.Logger
}

func newGCRunner(db *badger.DB, interval time.Duration, ratio float64, log *slog.Logger) *gcRunner {
	return &gcRunner{
		db:       db,
		interval: interval,
		ratio:    ratio,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		log:      log,
	}
}

func (r *gcRunner) start() {
	go r.run()
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *gcRunner) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			// ErrNoRewrite means nothing met the discard ratio, not a
			// failure.
			err := r.db.RunValueLogGC(r.ratio)
			switch {
			case err == nil:
				r.log.Debug("badger value log GC completed")
			case !errors.Is(err, badger.ErrNoRewrite):
				r.log.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}
