package engine

import (
	"context"
	"log/slog"
	"time"

	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
)

// InconsistencyType categorizes cross-store issues.
type InconsistencyType int

const (
	// InconsistencyOrphanKeyword is a keyword index entry whose chunk no
	// longer exists in the metadata store.
	InconsistencyOrphanKeyword InconsistencyType = iota

	// InconsistencyMissingKeyword is an indexable chunk absent from the
	// keyword index.
	InconsistencyMissingKeyword

	// InconsistencyMissingVector is an indexable chunk absent from the
	// vector index.
	InconsistencyMissingVector
)

// String returns a short label for the inconsistency type.
func (t InconsistencyType) String() string {
	switch t {
	case InconsistencyOrphanKeyword:
		return "orphan_keyword"
	case InconsistencyMissingKeyword:
		return "missing_keyword"
	case InconsistencyMissingVector:
		return "missing_vector"
	default:
		return "unknown"
	}
}

// Inconsistency is one detected cross-store issue.
type Inconsistency struct {
	Type    InconsistencyType
	ChunkID string
}

// CheckResult is the outcome of a consistency check.
type CheckResult struct {
	// Checked is the number of indexable chunks verified.
	Checked int

	// KeywordCount and VectorCount are the index sizes at check time.
	KeywordCount int
	VectorCount  int

	Inconsistencies []Inconsistency
	Duration        time.Duration
}

// Consistent reports whether no issues were found.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// CheckConsistency compares the metadata store, the source of truth,
// against both search indexes. It detects chunks a failed delete left
// behind in the keyword index and chunks a failed ingest never indexed.
func (e *Engine) CheckConsistency(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	entries, err := e.metadata.ListLeafChunks(ctx)
	if err != nil {
		return nil, err
	}

	known := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		known[entry.ChunkID] = struct{}{}
	}

	keywordIDs, err := e.keyword.AllIDs()
	if err != nil {
		return nil, sentinelerrors.StorageError("failed to enumerate keyword index", err)
	}

	var issues []Inconsistency

	indexed := make(map[string]struct{}, len(keywordIDs))
	for _, id := range keywordIDs {
		indexed[id] = struct{}{}
		if _, ok := known[id]; !ok {
			issues = append(issues, Inconsistency{Type: InconsistencyOrphanKeyword, ChunkID: id})
		}
	}

	for _, entry := range entries {
		if _, ok := indexed[entry.ChunkID]; !ok {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingKeyword, ChunkID: entry.ChunkID})
		}
		if !e.vector.Contains(entry.ChunkID) {
			issues = append(issues, Inconsistency{Type: InconsistencyMissingVector, ChunkID: entry.ChunkID})
		}
	}

	return &CheckResult{
		Checked:         len(entries),
		KeywordCount:    e.keyword.Count(),
		VectorCount:     e.vector.Count(),
		Inconsistencies: issues,
		Duration:        time.Since(start),
	}, nil
}

// RepairConsistency evicts orphaned index entries. Missing entries
// cannot be repaired in place and need a Reindex; they are only logged.
// Returns the number of evicted orphans.
func (e *Engine) RepairConsistency(ctx context.Context, issues []Inconsistency) (int, error) {
	var orphans []string
	var missing int

	for _, issue := range issues {
		switch issue.Type {
		case InconsistencyOrphanKeyword:
			orphans = append(orphans, issue.ChunkID)
		case InconsistencyMissingKeyword, InconsistencyMissingVector:
			missing++
		}
	}

	if len(orphans) > 0 {
		if err := e.keyword.Delete(ctx, orphans); err != nil {
			return 0, sentinelerrors.StorageError("failed to evict orphaned keyword entries", err)
		}
		// Evict from the vector index too in case the same chunk
		// lingers there
		if err := e.vector.Delete(ctx, orphans); err != nil {
			return 0, sentinelerrors.StorageError("failed to evict orphaned vectors", err)
		}
		slog.Info("evicted orphaned index entries", slog.Int("count", len(orphans)))
	}

	if missing > 0 {
		slog.Warn("indexes are missing chunks, run 'sentinel reindex' to rebuild",
			slog.Int("missing", missing))
	}

	return len(orphans), nil
}
