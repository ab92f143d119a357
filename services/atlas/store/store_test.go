// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func testSnapshot(id string, created time.Time) *Snapshot {
	return &Snapshot{
		ID:          id,
		CreatedAt:   created,
		ProjectName: "shop-api",
		RootPath:    "/tmp/shop-api",
		Files:       42,
		Issues:      3,
		Findings:    2,
		Pattern:     "Layered",
		Payload:     json.RawMessage(`{"meta":{"projectName":"shop-api"}}`),
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC)
	snap := testSnapshot("run-1", created)
	require.NoError(t, s.Save(ctx, snap))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", got.ID)
	assert.True(t, created.Equal(got.CreatedAt), "CreatedAt = %v, want %v", got.CreatedAt, created)
	assert.Equal(t, "shop-api", got.ProjectName)
	assert.Equal(t, "/tmp/shop-api", got.RootPath)
	assert.Equal(t, 42, got.Files)
	assert.Equal(t, 3, got.Issues)
	assert.Equal(t, 2, got.Findings)
	assert.Equal(t, "Layered", got.Pattern)
	assert.JSONEq(t, `{"meta":{"projectName":"shop-api"}}`, string(got.Payload))
}

func TestStore_Save_Validation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.Save(ctx, nil))
	assert.ErrorIs(t, s.Save(ctx, &Snapshot{}), ErrMissingID)
}

func TestStore_Save_SetsCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := &Snapshot{ID: "run-now"}
	require.NoError(t, s.Save(ctx, snap))
	assert.False(t, snap.CreatedAt.IsZero(), "Save should stamp CreatedAt")

	got, err := s.Get(ctx, "run-now")
	require.NoError(t, err)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStore_Save_Overwrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, testSnapshot("run-1", created)))

	updated := testSnapshot("run-1", created)
	updated.Files = 50
	updated.Payload = json.RawMessage(`{"meta":{"projectName":"shop-api-v2"}}`)
	require.NoError(t, s.Save(ctx, updated))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.Files)
	assert.JSONEq(t, `{"meta":{"projectName":"shop-api-v2"}}`, string(got.Payload))

	snaps, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestStore_Save_MetadataOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := testSnapshot("run-meta", time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	snap.Payload = nil
	require.NoError(t, s.Save(ctx, snap))

	got, err := s.Get(ctx, "run-meta")
	require.NoError(t, err)
	assert.Equal(t, "shop-api", got.ProjectName)
	assert.Empty(t, got.Payload)
}

func TestStore_Get_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_List_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		snap := testSnapshot(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.Save(ctx, snap))
	}

	snaps, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 3)

	assert.Equal(t, "run-2", snaps[0].ID)
	assert.Equal(t, "run-1", snaps[1].ID)
	assert.Equal(t, "run-0", snaps[2].ID)

	for _, snap := range snaps {
		assert.Empty(t, snap.Payload, "List should not load payloads")
	}
}

func TestStore_List_Empty(t *testing.T) {
	s := newTestStore(t)

	snaps, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, testSnapshot("run-1", time.Now().UTC())))
	require.NoError(t, s.Delete(ctx, "run-1"))

	_, err := s.Get(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "run-1"), ErrNotFound)
}

func TestStore_Prune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		snap := testSnapshot(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Save(ctx, snap))
	}

	removed, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	snaps, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "run-4", snaps[0].ID)
	assert.Equal(t, "run-3", snaps[1].ID)

	t.Run("keep above count is a no-op", func(t *testing.T) {
		removed, err := s.Prune(ctx, 10)
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("keep zero removes everything", func(t *testing.T) {
		removed, err := s.Prune(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		snaps, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, snaps)
	})
}

func TestStore_ContextCancelled(t *testing.T) {
	s := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, s.Save(ctx, testSnapshot("run-1", time.Now().UTC())))
	_, err := s.List(ctx)
	assert.Error(t, err)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{InMemory: false, Path: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig()
	cfg.Path = dir

	s, err := Open(cfg)
	require.NoError(t, err)

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, testSnapshot("run-durable", created)))
	require.NoError(t, s.Close())

	s2, err := Open(cfg)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get(ctx, "run-durable")
	require.NoError(t, err)
	assert.Equal(t, "shop-api", got.ProjectName)
	assert.JSONEq(t, `{"meta":{"projectName":"shop-api"}}`, string(got.Payload))
}
