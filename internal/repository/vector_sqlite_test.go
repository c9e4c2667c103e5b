package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/burrowlabs/burrow/internal/domain"
)

func newTestSQLiteIndex(t *testing.T) *SQLiteVectorIndex {
	t.Helper()
	idx, err := NewSQLiteVectorIndex(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestNewSQLiteVectorIndex_RequiresPath(t *testing.T) {
	_, err := NewSQLiteVectorIndex("")
	assert.Error(t, err)
}

func TestNewSQLiteVectorIndex_CreatesRestrictedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	idx, err := NewSQLiteVectorIndex(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	defer idx.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}

func TestSQLiteVectorIndex_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	idx, err := NewSQLiteVectorIndex(path)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		chunkEntry("c1", "doc1", "a.txt", 0, []float32{1, 0}, "survives restart"),
	}))
	require.NoError(t, idx.Close())

	reopened, err := NewSQLiteVectorIndex(path)
	require.NoError(t, err)
	defer reopened.Close()

	hits, err := reopened.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c1", hits[0].ChunkID)
	assert.Equal(t, "survives restart", hits[0].Text)
	assert.Equal(t, "doc1", hits[0].Meta.DocumentHash)
	assert.Equal(t, "a.txt", hits[0].Meta.DocumentName)
}

func TestSQLiteVectorIndex_UpsertReplacesByChunkID(t *testing.T) {
	ctx := context.Background()
	idx := newTestSQLiteIndex(t)

	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		chunkEntry("c1", "doc1", "a.txt", 0, []float32{1, 0}, "first"),
	}))
	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		chunkEntry("c1", "doc1", "a.txt", 0, []float32{1, 0}, "rewritten"),
	}))

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Chunks)

	hits, err := idx.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "rewritten", hits[0].Text)
}

func TestSQLiteVectorIndex_SearchOrdersByScore(t *testing.T) {
	ctx := context.Background()
	idx := newTestSQLiteIndex(t)

	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		chunkEntry("far", "doc1", "a.txt", 0, []float32{0, 1}, "orthogonal"),
		chunkEntry("near", "doc1", "a.txt", 1, []float32{1, 0}, "identical"),
		chunkEntry("mid", "doc1", "a.txt", 2, []float32{1, 1}, "between"),
	}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].ChunkID)
	assert.Equal(t, "mid", hits[1].ChunkID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSQLiteVectorIndex_SearchSkipsMismatchedDimensions(t *testing.T) {
	ctx := context.Background()
	idx := newTestSQLiteIndex(t)

	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		chunkEntry("old", "doc1", "a.txt", 0, []float32{1, 0, 0}, "stale model"),
		chunkEntry("new", "doc1", "a.txt", 1, []float32{1, 0}, "current model"),
	}))

	hits, err := idx.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "new", hits[0].ChunkID)
}

func TestSQLiteVectorIndex_Catalog(t *testing.T) {
	ctx := context.Background()
	idx := newTestSQLiteIndex(t)

	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		chunkEntry("c1", "hash-b", "zebra.md", 0, []float32{1, 0}, "z one"),
		chunkEntry("c2", "hash-b", "zebra.md", 1, []float32{0, 1}, "z two"),
		chunkEntry("c3", "hash-a", "alpha.md", 0, []float32{1, 1}, "a one"),
	}))

	catalog, err := idx.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, "alpha.md", catalog[0].Name)
	assert.Equal(t, int64(1), catalog[0].Chunks)
	assert.Equal(t, "zebra.md", catalog[1].Name)
	assert.Equal(t, int64(2), catalog[1].Chunks)
}

func TestSQLiteVectorIndex_PurgeDocument(t *testing.T) {
	ctx := context.Background()
	idx := newTestSQLiteIndex(t)

	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		chunkEntry("c1", "doc1", "a.txt", 0, []float32{1, 0}, "keep"),
		chunkEntry("c2", "doc2", "b.txt", 0, []float32{0, 1}, "purge"),
		chunkEntry("c3", "doc2", "b.txt", 1, []float32{1, 1}, "purge too"),
	}))

	removed, err := idx.PurgeDocument(ctx, "doc2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Chunks)
	assert.Equal(t, int64(1), stats.Documents)

	removed, err = idx.PurgeDocument(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSQLiteVectorIndex_Stats(t *testing.T) {
	ctx := context.Background()
	idx := newTestSQLiteIndex(t)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Chunks)
	assert.Nil(t, stats.LastIndexedAt)

	require.NoError(t, idx.Upsert(ctx, []domain.IndexEntry{
		chunkEntry("c1", "doc1", "a.txt", 0, []float32{1, 0}, "text"),
		chunkEntry("c2", "doc2", "b.txt", 0, []float32{0, 1}, "text"),
	}))

	stats, err = idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Chunks)
	assert.Equal(t, int64(2), stats.Documents)
	require.NotNil(t, stats.LastIndexedAt)

	assert.NoError(t, idx.Ping(ctx))
}

func TestVectorBlobRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.75, 0}
	decoded, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
