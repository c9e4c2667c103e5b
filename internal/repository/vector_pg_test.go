//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowlabs/burrow/internal/domain"
	"github.com/burrowlabs/burrow/internal/testutil"
)

const pgTestDim = 768

func axisVector(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func TestPGVectorIndex_RoundTrip(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	idx := NewPGVectorIndex(pool)
	require.NoError(t, idx.Ping(ctx))

	entries := []domain.IndexEntry{
		chunkEntry("11111111-1111-1111-1111-111111111111", "doc1", "a.txt", 0, axisVector(pgTestDim, 0), "first chunk"),
		chunkEntry("22222222-2222-2222-2222-222222222222", "doc1", "a.txt", 1, axisVector(pgTestDim, 1), "second chunk"),
		chunkEntry("33333333-3333-3333-3333-333333333333", "doc2", "b.txt", 0, axisVector(pgTestDim, 2), "other doc"),
	}
	require.NoError(t, idx.Upsert(ctx, entries))

	hits, err := idx.Search(ctx, axisVector(pgTestDim, 0), 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", hits[0].ChunkID)
	assert.Equal(t, "first chunk", hits[0].Text)
	assert.Equal(t, "a.txt", hits[0].Meta.DocumentName)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Chunks)
	assert.Equal(t, int64(2), stats.Documents)
	assert.NotNil(t, stats.LastIndexedAt)
}

func TestPGVectorIndex_UpsertReplacesByChunkID(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	idx := NewPGVectorIndex(pool)

	id := "11111111-1111-1111-1111-111111111111"
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		chunkEntry(id, "doc1", "a.txt", 0, axisVector(pgTestDim, 0), "first"),
	}))
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		chunkEntry(id, "doc1", "a.txt", 0, axisVector(pgTestDim, 0), "rewritten"),
	}))

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Chunks)

	hits, err := idx.Search(ctx, axisVector(pgTestDim, 0), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "rewritten", hits[0].Text)
}

func TestPGVectorIndex_CatalogAndPurge(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	idx := NewPGVectorIndex(pool)

	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		chunkEntry("11111111-1111-1111-1111-111111111111", "hash-b", "zebra.md", 0, axisVector(pgTestDim, 0), "z one"),
		chunkEntry("22222222-2222-2222-2222-222222222222", "hash-b", "zebra.md", 1, axisVector(pgTestDim, 1), "z two"),
		chunkEntry("33333333-3333-3333-3333-333333333333", "hash-a", "alpha.md", 0, axisVector(pgTestDim, 2), "a one"),
	}))

	catalog, err := idx.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, "alpha.md", catalog[0].Name)
	assert.Equal(t, int64(1), catalog[0].Chunks)
	assert.Equal(t, "zebra.md", catalog[1].Name)
	assert.Equal(t, int64(2), catalog[1].Chunks)

	removed, err := idx.PurgeDocument(ctx, "hash-b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	removed, err = idx.PurgeDocument(ctx, "hash-b")
	require.NoError(t, err)
	assert.Zero(t, removed)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Chunks)
	assert.Equal(t, int64(1), stats.Documents)
}
