package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
)

// keywordBackends runs a subtest against each keyword index backend.
func keywordBackends(t *testing.T, fn func(t *testing.T, idx KeywordIndex)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		idx, err := NewSQLiteKeywordIndex("", DefaultKeywordConfig())
		require.NoError(t, err)
		defer idx.Close()
		fn(t, idx)
	})

	t.Run("bleve", func(t *testing.T) {
		idx, err := NewBleveKeywordIndex("", DefaultKeywordConfig())
		require.NoError(t, err)
		defer idx.Close()
		fn(t, idx)
	})
}

func seedKeywordIndex(t *testing.T, idx KeywordIndex) {
	t.Helper()
	entries := []*IndexEntry{
		{ChunkID: "chunk-a", Content: "incident response runbook for database outages",
			Department: "engineering", Classification: "internal"},
		{ChunkID: "chunk-b", Content: "database migration checklist and rollback steps",
			Department: "engineering", Classification: "confidential"},
		{ChunkID: "chunk-c", Content: "employee onboarding guide and benefits overview",
			Department: "hr", Classification: "internal"},
	}
	require.NoError(t, idx.Index(context.Background(), entries))
}

func TestKeywordIndex_SearchUnfiltered(t *testing.T) {
	keywordBackends(t, func(t *testing.T, idx KeywordIndex) {
		seedKeywordIndex(t, idx)

		results, err := idx.Search(context.Background(), "database", 10, nil)
		require.NoError(t, err)
		require.Len(t, results, 2)

		ids := []string{results[0].ChunkID, results[1].ChunkID}
		assert.ElementsMatch(t, []string{"chunk-a", "chunk-b"}, ids)
		for _, r := range results {
			assert.Greater(t, r.Score, 0.0)
		}
	})
}

func TestKeywordIndex_EqualScoresOrderedByID(t *testing.T) {
	keywordBackends(t, func(t *testing.T, idx KeywordIndex) {
		// Identical content scores identically in every backend, so
		// ordering must fall back to chunk id.
		entries := []*IndexEntry{
			{ChunkID: "chunk-z", Content: "database failover notes",
				Department: "engineering", Classification: "internal"},
			{ChunkID: "chunk-m", Content: "database failover notes",
				Department: "engineering", Classification: "internal"},
			{ChunkID: "chunk-a", Content: "database failover notes",
				Department: "engineering", Classification: "internal"},
		}
		require.NoError(t, idx.Index(context.Background(), entries))

		results, err := idx.Search(context.Background(), "database", 10, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "chunk-a", results[0].ChunkID)
		assert.Equal(t, "chunk-m", results[1].ChunkID)
		assert.Equal(t, "chunk-z", results[2].ChunkID)
	})
}

func TestKeywordIndex_SearchRespectsFilter(t *testing.T) {
	keywordBackends(t, func(t *testing.T, idx KeywordIndex) {
		seedKeywordIndex(t, idx)

		filter := buildFilter(t, access.Pair{Department: "engineering", Classification: "internal"})

		results, err := idx.Search(context.Background(), "database", 10, filter)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "chunk-a", results[0].ChunkID)
	})
}

func TestKeywordIndex_SearchEmptyFilterReturnsNothing(t *testing.T) {
	keywordBackends(t, func(t *testing.T, idx KeywordIndex) {
		seedKeywordIndex(t, idx)

		results, err := idx.Search(context.Background(), "database", 10, emptyFilter(t))
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestKeywordIndex_SearchEmptyQuery(t *testing.T) {
	keywordBackends(t, func(t *testing.T, idx KeywordIndex) {
		seedKeywordIndex(t, idx)

		results, err := idx.Search(context.Background(), "   ", 10, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestKeywordIndex_Delete(t *testing.T) {
	keywordBackends(t, func(t *testing.T, idx KeywordIndex) {
		seedKeywordIndex(t, idx)

		require.NoError(t, idx.Delete(context.Background(), []string{"chunk-a", "chunk-b"}))
		assert.Equal(t, 1, idx.Count())

		results, err := idx.Search(context.Background(), "database", 10, nil)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestKeywordIndex_Reindex(t *testing.T) {
	keywordBackends(t, func(t *testing.T, idx KeywordIndex) {
		ctx := context.Background()
		seedKeywordIndex(t, idx)

		// Replacing an entry updates content and attributes
		require.NoError(t, idx.Index(ctx, []*IndexEntry{
			{ChunkID: "chunk-a", Content: "travel expense policy",
				Department: "finance", Classification: "public"},
		}))
		assert.Equal(t, 3, idx.Count())

		results, err := idx.Search(ctx, "expense policy", 10, nil)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "chunk-a", results[0].ChunkID)
	})
}

func TestKeywordIndex_AllIDs(t *testing.T) {
	keywordBackends(t, func(t *testing.T, idx KeywordIndex) {
		seedKeywordIndex(t, idx)

		ids, err := idx.AllIDs()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"chunk-a", "chunk-b", "chunk-c"}, ids)
	})
}

func TestNewKeywordIndexWithBackend(t *testing.T) {
	dir := t.TempDir()

	sqliteIdx, err := NewKeywordIndexWithBackend(filepath.Join(dir, "kw"), DefaultKeywordConfig(), "sqlite")
	require.NoError(t, err)
	require.NoError(t, sqliteIdx.Close())
	assert.Equal(t, KeywordBackendSQLite, DetectKeywordBackend(filepath.Join(dir, "kw")))

	_, err = NewKeywordIndexWithBackend("", DefaultKeywordConfig(), "elastic")
	require.Error(t, err)
}

func TestSQLiteKeywordIndex_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keyword.db")
	ctx := context.Background()

	idx, err := NewSQLiteKeywordIndex(path, DefaultKeywordConfig())
	require.NoError(t, err)
	seedKeywordIndex(t, idx)
	require.NoError(t, idx.Save(path))
	require.NoError(t, idx.Close())

	reopened, err := NewSQLiteKeywordIndex(path, DefaultKeywordConfig())
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.Search(ctx, "onboarding", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-c", results[0].ChunkID)
}
