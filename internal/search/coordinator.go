package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
	"github.com/RajeshTechForge/sentinel-rag/internal/embed"
	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
	"github.com/RajeshTechForge/sentinel-rag/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Candidates holds per-modality results of one coordinated search.
type Candidates struct {
	Keyword []*store.KeywordResult
	Vector  []*store.VectorResult
	Meta    Meta
}

// Coordinator runs keyword and vector search in parallel against the
// same access filter. Both stores receive the filter so denied chunks
// never leave storage; the coordinator never widens results afterwards.
type Coordinator struct {
	vector   store.VectorStore
	keyword  store.KeywordIndex
	embedder embed.Embedder
	breaker  *sentinelerrors.CircuitBreaker
	config   Config
}

// NewCoordinator creates a search coordinator.
// Returns an error if any required dependency is nil.
func NewCoordinator(
	vector store.VectorStore,
	keyword store.KeywordIndex,
	embedder embed.Embedder,
	config Config,
) (*Coordinator, error) {
	if vector == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if keyword == nil {
		return nil, fmt.Errorf("%w: keyword index is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if config.RRFConstant <= 0 {
		config.RRFConstant = DefaultRRFConstant
	}
	if config.MaxCandidatesPerModality <= 0 {
		config.MaxCandidatesPerModality = DefaultConfig().MaxCandidatesPerModality
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Coordinator{
		vector:   vector,
		keyword:  keyword,
		embedder: embedder,
		breaker:  sentinelerrors.NewCircuitBreaker("embedder"),
		config:   config,
	}, nil
}

// Search executes keyword and vector search concurrently.
//
// An empty filter short-circuits: the caller has no grants, so no store
// is consulted at all. Embedding failures degrade the query to
// keyword-only and set Meta.Degraded. A single-modality store failure or
// the per-query timeout yields the surviving results with Meta.Partial.
// Caller cancellation propagates as an error with no results.
func (c *Coordinator) Search(ctx context.Context, query string, filter *access.Filter) (*Candidates, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, sentinelerrors.New(sentinelerrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}

	// Fail closed: no grants means no results and zero store calls.
	if filter == nil || filter.IsEmpty() {
		return &Candidates{
			Keyword: []*store.KeywordResult{},
			Vector:  []*store.VectorResult{},
		}, nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var (
		kwResults  []*store.KeywordResult
		vecResults []*store.VectorResult
		kwErr      error
		vecErr     error
		embedErr   error
	)

	g, gctx := errgroup.WithContext(searchCtx)

	g.Go(func() error {
		kwResults, kwErr = c.keyword.Search(gctx, query, c.config.MaxCandidatesPerModality, filter)
		// Errors are handled after Wait so the other modality can finish
		return nil
	})

	g.Go(func() error {
		embedding, err := c.embedQuery(gctx, query)
		if err != nil {
			embedErr = err
			return nil
		}

		results, err := c.vector.Search(gctx, embedding, c.config.MaxCandidatesPerModality, filter)
		if err != nil {
			vecErr = err
			return nil
		}
		vecResults = c.applyThreshold(results)
		return nil
	})

	_ = g.Wait()

	// Caller cancellation wins over everything: no partial results.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// The per-query deadline fired while the caller is still waiting.
	// Errors induced by the expired deadline are not modality
	// failures: whatever arrived in time is returned, flagged as
	// partial below.
	if searchCtx.Err() != nil {
		if isContextError(kwErr) {
			kwErr = nil
		}
		if isContextError(vecErr) {
			vecErr = nil
		}
		if isContextError(embedErr) {
			embedErr = nil
		}
	}

	candidates := &Candidates{Keyword: kwResults, Vector: vecResults}

	if embedErr != nil {
		// Keyword-only degradation
		candidates.Meta.Degraded = true
		candidates.Vector = []*store.VectorResult{}
		slog.Warn("embedding failed, serving keyword-only results",
			slog.String("error", embedErr.Error()))
	}

	if vecErr != nil {
		candidates.Meta.Partial = true
		candidates.Vector = []*store.VectorResult{}
		slog.Warn("vector search failed",
			slog.String("error", vecErr.Error()))
	}

	if kwErr != nil {
		if embedErr != nil || vecErr != nil {
			// Both modalities failed
			return nil, sentinelerrors.New(sentinelerrors.ErrCodeSearchFailed,
				"both search modalities failed", errors.Join(kwErr, vecErr, embedErr))
		}
		candidates.Meta.Partial = true
		candidates.Keyword = []*store.KeywordResult{}
		slog.Warn("keyword search failed",
			slog.String("error", kwErr.Error()))
	}

	// The per-query deadline fired but the caller is still waiting:
	// return whatever arrived, flagged as partial.
	if searchCtx.Err() != nil {
		candidates.Meta.Partial = true
	}

	if candidates.Keyword == nil {
		candidates.Keyword = []*store.KeywordResult{}
	}
	if candidates.Vector == nil {
		candidates.Vector = []*store.VectorResult{}
	}

	return candidates, nil
}

// isContextError reports whether err stems from context expiry or
// cancellation rather than a store or provider failure.
func isContextError(err error) bool {
	return err != nil &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
}

// embedQuery embeds the query text behind the circuit breaker, retrying
// once with bounded backoff. Query latency matters more than eventual
// success: after the retry the coordinator degrades to keyword-only.
func (c *Coordinator) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if !c.breaker.Allow() {
		return nil, sentinelerrors.ErrCircuitOpen
	}

	vec, err := sentinelerrors.RetryWithResult(ctx, sentinelerrors.EmbedRetryConfig(), func() ([]float32, error) {
		return c.embedder.Embed(ctx, query)
	})
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}

	c.breaker.RecordSuccess()
	return vec, nil
}

// applyThreshold drops vector hits below the similarity threshold.
func (c *Coordinator) applyThreshold(results []*store.VectorResult) []*store.VectorResult {
	if c.config.SimilarityThreshold <= 0 {
		return results
	}
	kept := make([]*store.VectorResult, 0, len(results))
	for _, r := range results {
		if r.Score >= c.config.SimilarityThreshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// BreakerState exposes the embedding circuit breaker state for status
// reporting.
func (c *Coordinator) BreakerState() sentinelerrors.State {
	return c.breaker.State()
}
