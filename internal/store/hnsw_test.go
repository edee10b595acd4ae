package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
)

func newTestVectorStore(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func entry(id, dept, class string) *IndexEntry {
	return &IndexEntry{ChunkID: id, Content: id, Department: dept, Classification: class}
}

func TestHNSWStore_AddAndSearch(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	entries := []*IndexEntry{
		entry("chunk-a", "engineering", "internal"),
		entry("chunk-b", "engineering", "internal"),
		entry("chunk-c", "hr", "confidential"),
	}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
	require.NoError(t, s.Add(ctx, entries, vectors))
	assert.Equal(t, 3, s.Count())

	results, err := s.Search(ctx, []float32{1, 0.1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "chunk-a", results[0].ID)
	assert.Greater(t, results[0].Score, float32(0.9))
}

func TestHNSWStore_Search_EqualDistancesOrderedByID(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	// Identical vectors: every hit is the same distance from the query,
	// so ordering must fall back to chunk id.
	entries := []*IndexEntry{
		entry("chunk-c", "engineering", "internal"),
		entry("chunk-a", "engineering", "internal"),
		entry("chunk-b", "engineering", "internal"),
	}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{1, 0, 0, 0},
		{1, 0, 0, 0},
	}
	require.NoError(t, s.Add(ctx, entries, vectors))

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "chunk-a", results[0].ID)
	assert.Equal(t, "chunk-b", results[1].ID)
	assert.Equal(t, "chunk-c", results[2].ID)
}

func TestHNSWStore_Search_RespectsFilter(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	entries := []*IndexEntry{
		entry("chunk-a", "engineering", "internal"),
		entry("chunk-b", "hr", "confidential"),
		entry("chunk-c", "engineering", "confidential"),
	}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0.9, 0.1, 0, 0},
		{0.8, 0.2, 0, 0},
	}
	require.NoError(t, s.Add(ctx, entries, vectors))

	// Only engineering/internal is allowed
	filter := buildFilter(t, access.Pair{Department: "engineering", Classification: "internal"})

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 3, filter)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-a", results[0].ID)
}

func TestHNSWStore_Search_EmptyFilterReturnsNothing(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]*IndexEntry{entry("chunk-a", "engineering", "internal")},
		[][]float32{{1, 0, 0, 0}}))

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5, emptyFilter(t))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	err := s.Add(ctx, []*IndexEntry{entry("chunk-a", "engineering", "internal")},
		[][]float32{{1, 0}})
	require.Error(t, err)
	assert.IsType(t, ErrDimensionMismatch{}, err)

	_, err = s.Search(ctx, []float32{1, 0}, 5, nil)
	require.Error(t, err)
	assert.IsType(t, ErrDimensionMismatch{}, err)
}

func TestHNSWStore_Delete(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]*IndexEntry{
			entry("chunk-a", "engineering", "internal"),
			entry("chunk-b", "engineering", "internal"),
		},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))

	require.NoError(t, s.Delete(ctx, []string{"chunk-a"}))
	assert.False(t, s.Contains("chunk-a"))
	assert.True(t, s.Contains("chunk-b"))
	assert.Equal(t, 1, s.Count())

	// Lazy-deleted node never appears in results
	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "chunk-a", r.ID)
	}
}

func TestHNSWStore_Replace(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]*IndexEntry{entry("chunk-a", "engineering", "internal")},
		[][]float32{{1, 0, 0, 0}}))
	require.NoError(t, s.Add(ctx,
		[]*IndexEntry{entry("chunk-a", "hr", "public")},
		[][]float32{{0, 1, 0, 0}}))

	assert.Equal(t, 1, s.Count())

	// The replacement's attributes are what the filter sees
	filter := buildFilter(t, access.Pair{Department: "hr", Classification: "public"})
	results, err := s.Search(ctx, []float32{0, 1, 0, 0}, 5, filter)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-a", results[0].ID)
}

func TestHNSWStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")
	ctx := context.Background()

	s, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)

	require.NoError(t, s.Add(ctx,
		[]*IndexEntry{
			entry("chunk-a", "engineering", "internal"),
			entry("chunk-b", "hr", "public"),
		},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, s.Save(path))
	require.NoError(t, s.Close())

	dims, err := ReadHNSWStoreDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 4, dims)

	loaded, err := NewHNSWStore(DefaultVectorStoreConfig(4))
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.Count())

	// Access attributes survive the round trip
	filter := buildFilter(t, access.Pair{Department: "hr", Classification: "public"})
	results, err := loaded.Search(ctx, []float32{0, 1, 0, 0}, 5, filter)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-b", results[0].ID)
}

func TestReadHNSWStoreDimensions_FreshStart(t *testing.T) {
	dims, err := ReadHNSWStoreDimensions(filepath.Join(t.TempDir(), "vectors.hnsw"))
	require.NoError(t, err)
	assert.Equal(t, 0, dims)
}
