package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RajeshTechForge/sentinel-rag/internal/chunk"
	"github.com/RajeshTechForge/sentinel-rag/internal/store"
)

// seedResolverStore ingests one document with two parents: parent-1 has
// children child-1a and child-1b, parent-2 has child-2a. A second flat
// document provides flat-1.
func seedResolverStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	now := time.Now()

	doc := &store.Document{
		ID: "doc-1", Title: "Incident Runbook",
		Department: "engineering", Classification: "internal", CreatedAt: now,
	}
	chunks := []*chunk.Chunk{
		{ID: "parent-1", DocumentID: "doc-1", Kind: chunk.KindParent, Content: "parent one content", CreatedAt: now},
		{ID: "parent-2", DocumentID: "doc-1", Kind: chunk.KindParent, Ordinal: 1, Content: "parent two content", CreatedAt: now},
		{ID: "child-1a", DocumentID: "doc-1", ParentID: "parent-1", Kind: chunk.KindChild, Content: "child 1a", CreatedAt: now},
		{ID: "child-1b", DocumentID: "doc-1", ParentID: "parent-1", Kind: chunk.KindChild, Ordinal: 1, Content: "child 1b", CreatedAt: now},
		{ID: "child-2a", DocumentID: "doc-1", ParentID: "parent-2", Kind: chunk.KindChild, Ordinal: 2, Content: "child 2a", CreatedAt: now},
	}
	require.NoError(t, s.SaveHierarchy(ctx, doc, chunks))

	flatDoc := &store.Document{
		ID: "doc-2", Title: "Travel Policy",
		Department: "hr", Classification: "public", CreatedAt: now,
	}
	flat := []*chunk.Chunk{
		{ID: "flat-1", DocumentID: "doc-2", Kind: chunk.KindFlat, Content: "flat content", CreatedAt: now},
	}
	require.NoError(t, s.SaveHierarchy(ctx, flatDoc, flat))

	return s
}

func TestResolver_Direct(t *testing.T) {
	s := seedResolverStore(t)
	r, err := NewResolver(s, AggregationMax)
	require.NoError(t, err)

	fused := []*FusedResult{
		{ChunkID: "child-1a", Score: 0.030, MatchedTerms: []string{"child"}},
		{ChunkID: "flat-1", Score: 0.020},
	}

	passages, err := r.Resolve(context.Background(), fused, ModeDirect, 10)
	require.NoError(t, err)
	require.Len(t, passages, 2)

	assert.Equal(t, "child-1a", passages[0].ChunkID)
	assert.Equal(t, "direct", passages[0].Kind)
	assert.Equal(t, "child 1a", passages[0].Content)
	assert.Equal(t, "doc-1", passages[0].DocumentID)
	assert.Equal(t, "engineering", passages[0].Department)
	assert.Equal(t, "internal", passages[0].Classification)
	assert.Equal(t, 1, passages[0].ChildMatches)
	assert.Equal(t, []string{"child"}, passages[0].MatchedTerms)

	assert.Equal(t, "flat-1", passages[1].ChunkID)
	assert.Equal(t, "hr", passages[1].Department)
}

func TestResolver_Parent_MaxAggregation(t *testing.T) {
	s := seedResolverStore(t)
	r, err := NewResolver(s, AggregationMax)
	require.NoError(t, err)

	fused := []*FusedResult{
		{ChunkID: "child-1a", Score: 0.030},
		{ChunkID: "child-1b", Score: 0.010},
		{ChunkID: "child-2a", Score: 0.020},
	}

	passages, err := r.Resolve(context.Background(), fused, ModeParent, 10)
	require.NoError(t, err)
	require.Len(t, passages, 2)

	// parent-1 scores max(0.030, 0.010) = 0.030, parent-2 scores 0.020
	assert.Equal(t, "parent-1", passages[0].ChunkID)
	assert.Equal(t, "parent", passages[0].Kind)
	assert.Equal(t, "parent one content", passages[0].Content)
	assert.InDelta(t, 0.030, passages[0].Score, 1e-12)
	assert.Equal(t, 2, passages[0].ChildMatches)

	assert.Equal(t, "parent-2", passages[1].ChunkID)
	assert.InDelta(t, 0.020, passages[1].Score, 1e-12)
	assert.Equal(t, 1, passages[1].ChildMatches)
}

func TestResolver_Parent_SumAggregation(t *testing.T) {
	s := seedResolverStore(t)
	r, err := NewResolver(s, AggregationSum)
	require.NoError(t, err)

	fused := []*FusedResult{
		{ChunkID: "child-1a", Score: 0.015},
		{ChunkID: "child-1b", Score: 0.010},
		{ChunkID: "child-2a", Score: 0.020},
	}

	passages, err := r.Resolve(context.Background(), fused, ModeParent, 10)
	require.NoError(t, err)
	require.Len(t, passages, 2)

	// parent-1 sums to 0.025, beating parent-2's single 0.020
	assert.Equal(t, "parent-1", passages[0].ChunkID)
	assert.InDelta(t, 0.025, passages[0].Score, 1e-12)
	assert.Equal(t, "parent-2", passages[1].ChunkID)
}

func TestResolver_Parent_FlatChunkPassesThrough(t *testing.T) {
	s := seedResolverStore(t)
	r, err := NewResolver(s, AggregationMax)
	require.NoError(t, err)

	fused := []*FusedResult{
		{ChunkID: "child-1a", Score: 0.010},
		{ChunkID: "flat-1", Score: 0.030},
	}

	passages, err := r.Resolve(context.Background(), fused, ModeParent, 10)
	require.NoError(t, err)
	require.Len(t, passages, 2)

	// The flat chunk competes on its own score and stays direct
	assert.Equal(t, "flat-1", passages[0].ChunkID)
	assert.Equal(t, "direct", passages[0].Kind)
	assert.Equal(t, "parent-1", passages[1].ChunkID)
	assert.Equal(t, "parent", passages[1].Kind)
}

func TestResolver_Parent_Truncates(t *testing.T) {
	s := seedResolverStore(t)
	r, err := NewResolver(s, AggregationMax)
	require.NoError(t, err)

	fused := []*FusedResult{
		{ChunkID: "child-1a", Score: 0.030},
		{ChunkID: "child-2a", Score: 0.020},
		{ChunkID: "flat-1", Score: 0.010},
	}

	passages, err := r.Resolve(context.Background(), fused, ModeParent, 1)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "parent-1", passages[0].ChunkID)
}

func TestResolver_Parent_TieBreaksByChunkID(t *testing.T) {
	s := seedResolverStore(t)
	r, err := NewResolver(s, AggregationMax)
	require.NoError(t, err)

	fused := []*FusedResult{
		{ChunkID: "child-2a", Score: 0.020},
		{ChunkID: "child-1a", Score: 0.020},
	}

	passages, err := r.Resolve(context.Background(), fused, ModeParent, 10)
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "parent-1", passages[0].ChunkID)
	assert.Equal(t, "parent-2", passages[1].ChunkID)
}

func TestResolver_SkipsDeletedChunks(t *testing.T) {
	s := seedResolverStore(t)
	r, err := NewResolver(s, AggregationMax)
	require.NoError(t, err)

	fused := []*FusedResult{
		{ChunkID: "child-1a", Score: 0.030},
		{ChunkID: "ghost", Score: 0.050},
	}

	passages, err := r.Resolve(context.Background(), fused, ModeDirect, 10)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.Equal(t, "child-1a", passages[0].ChunkID)
}

func TestResolver_UnknownMode(t *testing.T) {
	s := seedResolverStore(t)
	r, err := NewResolver(s, AggregationMax)
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), []*FusedResult{{ChunkID: "child-1a"}}, "graph", 10)
	require.Error(t, err)
}

func TestNewResolver_InvalidAggregation(t *testing.T) {
	s := seedResolverStore(t)
	_, err := NewResolver(s, "median")
	require.Error(t, err)
}
