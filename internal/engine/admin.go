package engine

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
	"github.com/RajeshTechForge/sentinel-rag/internal/audit"
	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
	"github.com/RajeshTechForge/sentinel-rag/internal/store"
)

// DeleteDocument removes a document and all of its chunks from the
// metadata store and both search indexes.
func (e *Engine) DeleteDocument(ctx context.Context, docID string) error {
	start := time.Now()

	chunkIDs, err := e.metadata.DeleteDocument(ctx, docID)
	if err != nil {
		return err
	}

	if err := e.vector.Delete(ctx, chunkIDs); err != nil {
		return sentinelerrors.StorageError("failed to evict document vectors", err)
	}
	if err := e.keyword.Delete(ctx, chunkIDs); err != nil {
		return sentinelerrors.StorageError("failed to evict document keywords", err)
	}

	e.audit.Record(audit.Event{
		Action:      audit.ActionDelete,
		DocumentID:  docID,
		ResultCount: len(chunkIDs),
		Duration:    time.Since(start),
	})

	slog.Info("document_deleted",
		slog.String("document_id", docID),
		slog.Int("chunks", len(chunkIDs)))

	return nil
}

// ListDocuments returns all ingested documents.
func (e *Engine) ListDocuments(ctx context.Context) ([]*store.Document, error) {
	return e.metadata.ListDocuments(ctx)
}

// ReloadMatrix loads a new access matrix snapshot and swaps it in
// atomically. Queries already in flight keep the snapshot they compiled
// their filter from; a parse failure leaves the current snapshot
// untouched.
func (e *Engine) ReloadMatrix(path string) error {
	m, err := access.LoadMatrix(path)
	if err != nil {
		return err
	}

	e.matrix.Store(m)

	e.audit.Record(audit.Event{Action: audit.ActionMatrixReload})
	slog.Info("access_matrix_reloaded", slog.String("path", path))
	return nil
}

// Reindex rebuilds both search indexes from the metadata store using
// the active embedder. Use after switching embedding models or when an
// index file is lost or corrupt.
func (e *Engine) Reindex(ctx context.Context) (int, error) {
	start := time.Now()

	entries, err := e.metadata.ListLeafChunks(ctx)
	if err != nil {
		return 0, err
	}

	// Evict any stale index state before re-adding
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ChunkID)
	}
	if len(ids) > 0 {
		if err := e.vector.Delete(ctx, ids); err != nil {
			return 0, sentinelerrors.StorageError("failed to clear vector index", err)
		}
		if err := e.keyword.Delete(ctx, ids); err != nil {
			return 0, sentinelerrors.StorageError("failed to clear keyword index", err)
		}
	}

	vectors, err := e.embedEntries(ctx, entries)
	if err != nil {
		return 0, sentinelerrors.IngestError("failed to re-embed chunks", err)
	}

	if err := e.indexEntries(ctx, entries, vectors); err != nil {
		return 0, sentinelerrors.IngestError("failed to rebuild indexes", err)
	}

	dims := strconv.Itoa(e.embedder.Dimensions())
	if err := e.metadata.SetState(ctx, store.StateKeyIndexDimension, dims); err != nil {
		return 0, err
	}
	if err := e.metadata.SetState(ctx, store.StateKeyIndexModel, e.embedder.ModelName()); err != nil {
		return 0, err
	}

	slog.Info("reindex_complete",
		slog.Int("chunks", len(entries)),
		slog.String("dimensions", dims),
		slog.Duration("duration", time.Since(start)))

	return len(entries), nil
}
