package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
	"github.com/RajeshTechForge/sentinel-rag/internal/audit"
	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
	"github.com/RajeshTechForge/sentinel-rag/internal/search"
)

// DefaultTopK is the passage count returned when the request does not
// set one.
const DefaultTopK = 10

// QueryRequest describes one retrieval query.
type QueryRequest struct {
	// User is the requesting principal. The access filter is compiled
	// from its memberships against the active matrix snapshot.
	User access.UserContext

	// Query is the search text.
	Query string

	// TopK caps the number of returned passages (default: 10).
	TopK int

	// Mode selects direct chunks or parent expansion (default: parent).
	Mode search.Mode
}

// QueryResult is the outcome of one retrieval query.
type QueryResult struct {
	Passages []*search.Passage
	Meta     search.Meta
	Duration time.Duration
}

// Query runs the full retrieval pipeline: compile the access filter,
// search both modalities, fuse, resolve passages, and audit. A user
// with no grants receives an empty result, not an error, and no store
// is consulted on their behalf.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	start := time.Now()

	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	mode := req.Mode
	if mode == "" {
		mode = search.ModeParent
	}

	filter := access.Compile(req.User, e.matrix.Load())

	candidates, err := e.coordinator.Search(ctx, req.Query, filter)
	if err != nil {
		return nil, err
	}

	fused := e.fuser.Fuse(candidates.Keyword, candidates.Vector, 0)

	passages, err := e.resolver.Resolve(ctx, fused, mode, topK)
	if err != nil {
		return nil, sentinelerrors.New(sentinelerrors.ErrCodeSearchFailed,
			"failed to resolve passages", err)
	}

	result := &QueryResult{
		Passages: passages,
		Meta:     candidates.Meta,
		Duration: time.Since(start),
	}

	e.audit.Record(audit.Event{
		UserID:      req.User.UserID,
		Action:      audit.ActionQuery,
		Query:       req.Query,
		Filter:      filterPairs(filter),
		ChunkIDs:    passageIDs(passages),
		ResultCount: len(passages),
		Degraded:    result.Meta.Degraded,
		Partial:     result.Meta.Partial,
		Duration:    result.Duration,
	})

	slog.Debug("query_complete",
		slog.String("user_id", req.User.UserID),
		slog.Int("passages", len(passages)),
		slog.Bool("degraded", result.Meta.Degraded),
		slog.Bool("partial", result.Meta.Partial),
		slog.Duration("duration", result.Duration))

	return result, nil
}

// filterPairs renders compiled grants for the audit record.
func filterPairs(filter *access.Filter) []string {
	pairs := filter.Pairs()
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.Department+":"+p.Classification)
	}
	return out
}

func passageIDs(passages []*search.Passage) []string {
	ids := make([]string, 0, len(passages))
	for _, p := range passages {
		ids = append(ids, p.ChunkID)
	}
	return ids
}
