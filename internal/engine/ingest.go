package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RajeshTechForge/sentinel-rag/internal/audit"
	"github.com/RajeshTechForge/sentinel-rag/internal/chunk"
	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
	"github.com/RajeshTechForge/sentinel-rag/internal/store"
)

// IngestRequest describes one document to ingest.
type IngestRequest struct {
	// Title is the document title shown in results.
	Title string

	// Department and Classification are the access labels every chunk
	// of the document inherits. Both are required.
	Department     string
	Classification string

	// Content is the document text (plain text or markdown).
	Content string

	// Metadata carries free-form key-value attributes.
	Metadata map[string]string

	// Flat disables the parent/child hierarchy and splits the document
	// into a single chunk level.
	Flat bool
}

// validate checks the request at the boundary, before any store is
// touched.
func (r *IngestRequest) validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return sentinelerrors.ValidationError("document title is required", nil)
	}
	if strings.TrimSpace(r.Department) == "" {
		return sentinelerrors.ValidationError("document department is required", nil)
	}
	if strings.TrimSpace(r.Classification) == "" {
		return sentinelerrors.ValidationError("document classification is required", nil)
	}
	if strings.TrimSpace(r.Content) == "" {
		return sentinelerrors.ValidationError("document content is empty", nil)
	}
	return nil
}

// Ingest chunks, embeds, and indexes one document. The document and all
// of its chunks are persisted in a single transaction before indexing;
// if indexing fails, the persisted hierarchy is rolled back with a
// compensating delete so no partially indexed document is searchable.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (string, error) {
	start := time.Now()

	if err := req.validate(); err != nil {
		return "", err
	}

	docID := uuid.NewString()
	doc := &store.Document{
		ID:             docID,
		Title:          strings.TrimSpace(req.Title),
		Department:     strings.ToLower(strings.TrimSpace(req.Department)),
		Classification: strings.ToLower(strings.TrimSpace(req.Classification)),
		Metadata:       req.Metadata,
		CreatedAt:      time.Now(),
	}

	chunks, err := e.buildChunks(docID, req)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", sentinelerrors.ValidationError("document produced no chunks", nil)
	}
	doc.ChunkCount = len(chunks)

	entries := leafEntries(doc, chunks)
	vectors, err := e.embedEntries(ctx, entries)
	if err != nil {
		return "", sentinelerrors.IngestError("failed to embed document chunks", err)
	}

	if err := e.metadata.SaveHierarchy(ctx, doc, chunks); err != nil {
		return "", sentinelerrors.IngestError("failed to persist document hierarchy", err)
	}

	if err := e.indexEntries(ctx, entries, vectors); err != nil {
		e.compensate(ctx, docID)
		return "", sentinelerrors.IngestError("failed to index document", err)
	}

	e.audit.Record(audit.Event{
		Action:      audit.ActionIngest,
		DocumentID:  docID,
		ResultCount: len(chunks),
		Duration:    time.Since(start),
	})

	slog.Info("ingest_complete",
		slog.String("document_id", docID),
		slog.Int("chunks", len(chunks)),
		slog.Int("indexed", len(entries)),
		slog.Duration("duration", time.Since(start)))

	return docID, nil
}

// buildChunks splits the document into its configured chunk layout.
func (e *Engine) buildChunks(docID string, req IngestRequest) ([]*chunk.Chunk, error) {
	if req.Flat {
		return e.builder.BuildFlat(docID, req.Content)
	}

	h, err := e.builder.BuildHierarchy(docID, req.Content)
	if err != nil {
		return nil, err
	}

	chunks := make([]*chunk.Chunk, 0, len(h.Parents)+len(h.Children))
	chunks = append(chunks, h.Parents...)
	chunks = append(chunks, h.Children...)
	return chunks, nil
}

// leafEntries converts the indexable chunks to index entries carrying
// the document's access labels. Parents are context-only and never
// indexed.
func leafEntries(doc *store.Document, chunks []*chunk.Chunk) []*store.IndexEntry {
	entries := make([]*store.IndexEntry, 0, len(chunks))
	for _, c := range chunks {
		if !c.IsLeaf() {
			continue
		}
		entries = append(entries, &store.IndexEntry{
			ChunkID:        c.ID,
			Content:        c.Content,
			Department:     doc.Department,
			Classification: doc.Classification,
		})
	}
	return entries
}

// embedEntries embeds entry contents in batches.
func (e *Engine) embedEntries(ctx context.Context, entries []*store.IndexEntry) ([][]float32, error) {
	vectors := make([][]float32, 0, len(entries))

	for lo := 0; lo < len(entries); lo += e.batchSize {
		hi := lo + e.batchSize
		if hi > len(entries) {
			hi = len(entries)
		}

		texts := make([]string, 0, hi-lo)
		for _, entry := range entries[lo:hi] {
			texts = append(texts, entry.Content)
		}

		batch, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

// indexEntries writes the entries into both search indexes.
func (e *Engine) indexEntries(ctx context.Context, entries []*store.IndexEntry, vectors [][]float32) error {
	if err := e.vector.Add(ctx, entries, vectors); err != nil {
		return fmt.Errorf("vector index: %w", err)
	}
	if err := e.keyword.Index(ctx, entries); err != nil {
		return fmt.Errorf("keyword index: %w", err)
	}
	return nil
}

// compensate undoes a partially indexed ingest. Best effort: a failure
// here is logged, and the next Reindex reconciles the stores.
func (e *Engine) compensate(ctx context.Context, docID string) {
	ids, err := e.metadata.DeleteDocument(ctx, docID)
	if err != nil {
		slog.Error("ingest rollback failed to delete document",
			slog.String("document_id", docID),
			slog.String("error", err.Error()))
		return
	}
	if err := e.vector.Delete(ctx, ids); err != nil {
		slog.Error("ingest rollback failed to evict vectors",
			slog.String("document_id", docID),
			slog.String("error", err.Error()))
	}
	if err := e.keyword.Delete(ctx, ids); err != nil {
		slog.Error("ingest rollback failed to evict keywords",
			slog.String("document_id", docID),
			slog.String("error", err.Error()))
	}
}
