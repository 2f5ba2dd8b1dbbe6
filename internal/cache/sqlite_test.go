// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	index, err := NewSQLiteIndex(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })
	return index
}

func TestSQLiteIndexUpsertAndQuery(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.Upsert(ctx, "what is a goroutine", []float32{1, 0, 0}, "a lightweight thread", "gpt-4o-mini"))
	require.NoError(t, index.Upsert(ctx, "what is a channel", []float32{0, 1, 0}, "a typed conduit", "gpt-4o-mini"))

	matches, err := index.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	// Ordered by descending similarity.
	assert.Equal(t, "a lightweight thread", matches[0].Answer)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
}

func TestSQLiteIndexTopK(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, index.Upsert(ctx, "q", []float32{1, float32(i)}, "a", "m"))
	}

	matches, err := index.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Len(t, matches, 3)

	matches, err = index.Query(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSQLiteIndexEmpty(t *testing.T) {
	index := newTestIndex(t)
	matches, err := index.Query(context.Background(), []float32{1}, 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSQLiteIndexCount(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	n, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, index.Upsert(ctx, "q1", []float32{1}, "a1", "m"))
	require.NoError(t, index.Upsert(ctx, "q2", []float32{2}, "a2", "m"))

	n, err = index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteIndexPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	index, err := NewSQLiteIndex(path)
	require.NoError(t, err)
	require.NoError(t, index.Upsert(ctx, "q", []float32{1, 2, 3}, "answer", "model-x"))
	require.NoError(t, index.Close())

	reopened, err := NewSQLiteIndex(path)
	require.NoError(t, err)
	defer reopened.Close()

	matches, err := reopened.Query(ctx, []float32{1, 2, 3}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "answer", matches[0].Answer)
	assert.Equal(t, "model-x", matches[0].SourceModelID)
}

func TestEmbeddingRoundTrip(t *testing.T) {
	vec := []float32{0.1, -2.5, 3.75, 0}
	decoded, err := decodeEmbedding(encodeEmbedding(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)
}

func TestDecodeEmbeddingRejectsCorruptBlob(t *testing.T) {
	_, err := decodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestGateWithSQLiteIndex(t *testing.T) {
	index := newTestIndex(t)
	gate := NewGate(&fakeEmbedder{vec: []float32{1, 0, 0}}, index)
	ctx := context.Background()

	// Miss, store, then hit with an identical embedding.
	hit, err := gate.Lookup(ctx, "what is a goroutine")
	require.NoError(t, err)
	assert.Nil(t, hit)

	require.NoError(t, gate.Store(ctx, "what is a goroutine", "a lightweight thread", "gpt-4o-mini"))

	hit, err = gate.Lookup(ctx, "what is a goroutine")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "a lightweight thread", hit.Answer)
	assert.Equal(t, "gpt-4o-mini", hit.SourceModelID)
	assert.GreaterOrEqual(t, hit.Similarity, SimilarityThreshold)
}
