package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
	"github.com/RajeshTechForge/sentinel-rag/internal/audit"
	"github.com/RajeshTechForge/sentinel-rag/internal/config"
	"github.com/RajeshTechForge/sentinel-rag/internal/embed"
	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
	"github.com/RajeshTechForge/sentinel-rag/internal/search"
	"github.com/RajeshTechForge/sentinel-rag/internal/store"
)

const testMatrixYAML = `
classifications:
  internal:
    engineering: [engineer, lead]
  public:
    engineering: [engineer]
    hr: [hr-admin]
`

// recordingSink captures audit events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Record(event audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) byAction(action audit.Action) []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

func testMatrix(t *testing.T) *access.Matrix {
	t.Helper()
	m, err := access.ParseMatrix([]byte(testMatrixYAML))
	require.NoError(t, err)
	return m
}

func engineer() access.UserContext {
	return access.UserContext{
		UserID:      "alice",
		Memberships: []access.Membership{{Department: "engineering", Role: "engineer"}},
	}
}

// newTestEngine builds an engine on in-memory stores with the static
// embedder and a recording audit sink.
func newTestEngine(t *testing.T) (*Engine, *recordingSink) {
	t.Helper()

	metadata, err := store.NewSQLiteStore("")
	require.NoError(t, err)

	embedder := embed.NewStaticEmbedder()

	vector, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	require.NoError(t, err)

	keyword, err := store.NewSQLiteKeywordIndex("", store.DefaultKeywordConfig())
	require.NoError(t, err)

	sink := &recordingSink{}

	e, err := New(context.Background(), config.NewConfig(),
		WithMetadataStore(metadata),
		WithVectorStore(vector),
		WithKeywordIndex(keyword),
		WithEmbedder(embedder),
		WithAuditSink(sink),
		WithMatrix(testMatrix(t)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	return e, sink
}

func ingestRunbook(t *testing.T, e *Engine) string {
	t.Helper()
	docID, err := e.Ingest(context.Background(), IngestRequest{
		Title:          "Failover Runbook",
		Department:     "engineering",
		Classification: "internal",
		Content:        "When the primary database fails, promote the replica.\n\nVerify replication lag before switching traffic.",
	})
	require.NoError(t, err)
	return docID
}

func TestEngine_IngestAndQuery(t *testing.T) {
	e, sink := newTestEngine(t)
	docID := ingestRunbook(t, e)

	result, err := e.Query(context.Background(), QueryRequest{
		User:  engineer(),
		Query: "database failover",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Passages)

	top := result.Passages[0]
	assert.Equal(t, docID, top.DocumentID)
	assert.Equal(t, "Failover Runbook", top.Title)
	assert.Equal(t, "engineering", top.Department)
	assert.Equal(t, "internal", top.Classification)
	assert.False(t, result.Meta.Degraded)
	assert.False(t, result.Meta.Partial)

	queries := sink.byAction(audit.ActionQuery)
	require.Len(t, queries, 1)
	assert.Equal(t, "alice", queries[0].UserID)
	assert.Equal(t, len(result.Passages), queries[0].ResultCount)
	assert.Equal(t, []string{"engineering:internal", "engineering:public"}, queries[0].Filter)
	assert.Len(t, queries[0].ChunkIDs, len(result.Passages))

	ingests := sink.byAction(audit.ActionIngest)
	require.Len(t, ingests, 1)
	assert.Equal(t, docID, ingests[0].DocumentID)
}

func TestEngine_Query_ParentModeExpandsChildren(t *testing.T) {
	e, _ := newTestEngine(t)
	ingestRunbook(t, e)

	result, err := e.Query(context.Background(), QueryRequest{
		User:  engineer(),
		Query: "replication lag",
		Mode:  search.ModeParent,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Passages)

	// The small document fits in one parent chunk
	assert.Equal(t, "parent", result.Passages[0].Kind)
	assert.Contains(t, result.Passages[0].Content, "promote the replica")
}

func TestEngine_Query_DirectModeFlatDocument(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Ingest(context.Background(), IngestRequest{
		Title:          "Travel Policy",
		Department:     "engineering",
		Classification: "public",
		Content:        "Employees book travel through the internal portal.",
		Flat:           true,
	})
	require.NoError(t, err)

	result, err := e.Query(context.Background(), QueryRequest{
		User:  engineer(),
		Query: "travel portal",
		Mode:  search.ModeDirect,
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Passages)
	assert.Equal(t, "direct", result.Passages[0].Kind)
}

func TestEngine_Query_NoGrantsReturnsEmpty(t *testing.T) {
	e, _ := newTestEngine(t)
	ingestRunbook(t, e)

	nobody := access.UserContext{UserID: "mallory"}
	result, err := e.Query(context.Background(), QueryRequest{User: nobody, Query: "database failover"})
	require.NoError(t, err)
	assert.Empty(t, result.Passages)
}

func TestEngine_Query_FilterExcludesOtherDepartments(t *testing.T) {
	e, _ := newTestEngine(t)
	ingestRunbook(t, e)

	hr := access.UserContext{
		UserID:      "harriet",
		Memberships: []access.Membership{{Department: "hr", Role: "hr-admin"}},
	}
	result, err := e.Query(context.Background(), QueryRequest{User: hr, Query: "database failover"})
	require.NoError(t, err)
	assert.Empty(t, result.Passages)
}

func TestEngine_Ingest_Validation(t *testing.T) {
	e, _ := newTestEngine(t)

	base := IngestRequest{
		Title:          "Doc",
		Department:     "engineering",
		Classification: "internal",
		Content:        "some content",
	}

	tests := []struct {
		name   string
		mutate func(*IngestRequest)
	}{
		{"missing title", func(r *IngestRequest) { r.Title = " " }},
		{"missing department", func(r *IngestRequest) { r.Department = "" }},
		{"missing classification", func(r *IngestRequest) { r.Classification = "" }},
		{"empty content", func(r *IngestRequest) { r.Content = "\n\t " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := e.Ingest(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, sentinelerrors.ErrCodeInvalidInput, sentinelerrors.GetCode(err))
		})
	}
}

func TestEngine_DeleteDocument(t *testing.T) {
	e, sink := newTestEngine(t)
	docID := ingestRunbook(t, e)

	require.NoError(t, e.DeleteDocument(context.Background(), docID))

	result, err := e.Query(context.Background(), QueryRequest{User: engineer(), Query: "database failover"})
	require.NoError(t, err)
	assert.Empty(t, result.Passages)

	docs, err := e.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)

	deletes := sink.byAction(audit.ActionDelete)
	require.Len(t, deletes, 1)
	assert.Equal(t, docID, deletes[0].DocumentID)
}

func TestEngine_DeleteDocument_NotFound(t *testing.T) {
	e, _ := newTestEngine(t)

	err := e.DeleteDocument(context.Background(), "no-such-doc")
	require.Error(t, err)
	assert.Equal(t, sentinelerrors.ErrCodeDocumentNotFound, sentinelerrors.GetCode(err))
}

func TestEngine_ListDocuments(t *testing.T) {
	e, _ := newTestEngine(t)
	ingestRunbook(t, e)

	_, err := e.Ingest(context.Background(), IngestRequest{
		Title:          "Second Doc",
		Department:     "engineering",
		Classification: "public",
		Content:        "More content here.",
	})
	require.NoError(t, err)

	docs, err := e.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestEngine_ReloadMatrix(t *testing.T) {
	e, _ := newTestEngine(t)
	ingestRunbook(t, e)

	// The new matrix revokes engineering's internal access
	path := filepath.Join(t.TempDir(), "matrix.yaml")
	revoked := "classifications:\n  public:\n    hr: [hr-admin]\n"
	require.NoError(t, os.WriteFile(path, []byte(revoked), 0o644))

	require.NoError(t, e.ReloadMatrix(path))

	result, err := e.Query(context.Background(), QueryRequest{User: engineer(), Query: "database failover"})
	require.NoError(t, err)
	assert.Empty(t, result.Passages)
}

func TestEngine_ReloadMatrix_InvalidFileKeepsSnapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	ingestRunbook(t, e)

	path := filepath.Join(t.TempDir(), "matrix.yaml")
	require.NoError(t, os.WriteFile(path, []byte("classifications: {}\n"), 0o644))

	require.Error(t, e.ReloadMatrix(path))

	// The previous snapshot still grants access
	result, err := e.Query(context.Background(), QueryRequest{User: engineer(), Query: "database failover"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Passages)
}

func TestEngine_New_DimensionMismatch(t *testing.T) {
	metadata, err := store.NewSQLiteStore("")
	require.NoError(t, err)
	defer metadata.Close()

	ctx := context.Background()
	require.NoError(t, metadata.SetState(ctx, store.StateKeyIndexDimension, "768"))

	cfg := config.NewConfig()
	cfg.Paths.DataDir = t.TempDir()

	_, err = New(ctx, cfg,
		WithMetadataStore(metadata),
		WithEmbedder(embed.NewStaticEmbedder()),
		WithAuditSink(audit.NopSink{}),
	)
	require.Error(t, err)
	assert.Equal(t, sentinelerrors.ErrCodeDimensionMismatch, sentinelerrors.GetCode(err))
	assert.Contains(t, err.Error(), "reindex")
}

func TestEngine_Reindex(t *testing.T) {
	metadata, err := store.NewSQLiteStore("")
	require.NoError(t, err)

	embedder := embed.NewStaticEmbedder()

	newEngine := func() *Engine {
		vector, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
		require.NoError(t, err)
		keyword, err := store.NewSQLiteKeywordIndex("", store.DefaultKeywordConfig())
		require.NoError(t, err)

		e, err := New(context.Background(), config.NewConfig(),
			WithMetadataStore(metadata),
			WithVectorStore(vector),
			WithKeywordIndex(keyword),
			WithEmbedder(embedder),
			WithAuditSink(audit.NopSink{}),
			WithMatrix(testMatrix(t)),
			WithFreshIndexes(),
		)
		require.NoError(t, err)
		return e
	}

	first := newEngine()
	ingestRunbook(t, first)

	// Fresh indexes know nothing about the persisted hierarchy
	second := newEngine()
	result, err := second.Query(context.Background(), QueryRequest{User: engineer(), Query: "database failover"})
	require.NoError(t, err)
	assert.Empty(t, result.Passages)

	count, err := second.Reindex(context.Background())
	require.NoError(t, err)
	assert.Positive(t, count)

	result, err = second.Query(context.Background(), QueryRequest{User: engineer(), Query: "database failover"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Passages)
}

func TestEngine_Ingest_NormalizesLabels(t *testing.T) {
	e, _ := newTestEngine(t)

	docID, err := e.Ingest(context.Background(), IngestRequest{
		Title:          "Mixed Case",
		Department:     "  Engineering ",
		Classification: "INTERNAL",
		Content:        "Case-insensitive access labels.",
	})
	require.NoError(t, err)

	docs, err := e.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, docID, docs[0].ID)
	assert.Equal(t, "engineering", docs[0].Department)
	assert.Equal(t, "internal", docs[0].Classification)
	assert.False(t, strings.Contains(docs[0].Department, " "))
}
