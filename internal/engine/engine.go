// Package engine wires the stores, the embedding provider, and the
// search pipeline into the exposed retrieval operations: Ingest, Query,
// DeleteDocument, ReloadMatrix, ListDocuments, and Reindex.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
	"github.com/RajeshTechForge/sentinel-rag/internal/audit"
	"github.com/RajeshTechForge/sentinel-rag/internal/chunk"
	"github.com/RajeshTechForge/sentinel-rag/internal/config"
	"github.com/RajeshTechForge/sentinel-rag/internal/embed"
	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
	"github.com/RajeshTechForge/sentinel-rag/internal/search"
	"github.com/RajeshTechForge/sentinel-rag/internal/store"
)

// Engine is the secure retrieval engine. All read paths go through a
// compiled access filter; the matrix snapshot is swapped atomically so
// in-flight queries keep the snapshot they started with.
type Engine struct {
	cfg      *config.Config
	builder  *chunk.Builder
	metadata store.MetadataStore
	vector   store.VectorStore
	keyword  store.KeywordIndex
	embedder embed.Embedder

	coordinator *search.Coordinator
	fuser       *search.Fuser
	resolver    *search.Resolver

	matrix atomic.Pointer[access.Matrix]
	audit  audit.Sink

	batchSize int
}

// options collects injectable collaborators, for tests and for callers
// that manage their own stores.
type options struct {
	metadata store.MetadataStore
	vector   store.VectorStore
	keyword  store.KeywordIndex
	embedder embed.Embedder
	audit    audit.Sink
	matrix   *access.Matrix

	skipIndexLoad bool
}

// Option customizes engine construction.
type Option func(*options)

// WithMetadataStore injects a metadata store instead of opening one
// from the configured path.
func WithMetadataStore(s store.MetadataStore) Option {
	return func(o *options) { o.metadata = s }
}

// WithVectorStore injects a vector store.
func WithVectorStore(s store.VectorStore) Option {
	return func(o *options) { o.vector = s }
}

// WithKeywordIndex injects a keyword index.
func WithKeywordIndex(k store.KeywordIndex) Option {
	return func(o *options) { o.keyword = k }
}

// WithEmbedder injects an embedding provider.
func WithEmbedder(e embed.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithAuditSink injects an audit sink.
func WithAuditSink(s audit.Sink) Option {
	return func(o *options) { o.audit = s }
}

// WithMatrix injects an access matrix snapshot, bypassing the
// configured matrix file.
func WithMatrix(m *access.Matrix) Option {
	return func(o *options) { o.matrix = m }
}

// WithFreshIndexes skips loading the persisted vector index so Reindex
// can rebuild it from the metadata store, e.g. after the embedding
// dimension changed.
func WithFreshIndexes() Option {
	return func(o *options) { o.skipIndexLoad = true }
}

// New constructs an engine from configuration. Stores not injected via
// options are opened under cfg.Paths. A stored index dimension that
// disagrees with the active embedder fails construction unless
// WithFreshIndexes is set.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, sentinelerrors.ConfigError("engine requires a configuration", nil)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	builder, err := chunk.NewBuilder(chunk.Config{
		ParentSize:    cfg.Chunking.ParentChunkSize,
		ParentOverlap: cfg.Chunking.ParentOverlap,
		ChildSize:     cfg.Chunking.ChildChunkSize,
		ChildOverlap:  cfg.Chunking.ChildOverlap,
		FlatSize:      cfg.Chunking.FlatChunkSize,
		FlatOverlap:   cfg.Chunking.FlatOverlap,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		builder:   builder,
		metadata:  o.metadata,
		vector:    o.vector,
		keyword:   o.keyword,
		embedder:  o.embedder,
		audit:     o.audit,
		batchSize: cfg.Embeddings.BatchSize,
	}
	if e.batchSize <= 0 {
		e.batchSize = embed.DefaultBatchSize
	}

	if e.metadata == nil || e.vector == nil || e.keyword == nil || e.audit == nil {
		if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
			return nil, sentinelerrors.StorageError(
				fmt.Sprintf("failed to create data directory %s", cfg.Paths.DataDir), err)
		}
	}

	if e.embedder == nil {
		e.embedder, err = embed.NewEmbedder(ctx, embed.Options{
			Provider:   embed.ParseProvider(cfg.Embeddings.Provider),
			Model:      cfg.Embeddings.Model,
			Host:       cfg.Embeddings.OllamaHost,
			Dimensions: cfg.Embeddings.Dimensions,
			BatchSize:  cfg.Embeddings.BatchSize,
			CacheSize:  cfg.Embeddings.CacheSize,
		})
		if err != nil {
			return nil, err
		}
	}

	if e.metadata == nil {
		e.metadata, err = store.NewSQLiteStore(cfg.Paths.MetadataDB)
		if err != nil {
			e.closePartial()
			return nil, err
		}
	}

	if err := e.checkIndexCompatibility(ctx, o.skipIndexLoad); err != nil {
		e.closePartial()
		return nil, err
	}

	if e.vector == nil {
		e.vector, err = store.NewHNSWStore(store.DefaultVectorStoreConfig(e.embedder.Dimensions()))
		if err != nil {
			e.closePartial()
			return nil, err
		}
		if !o.skipIndexLoad {
			if _, statErr := os.Stat(cfg.Paths.VectorIndex); statErr == nil {
				if err := e.vector.Load(cfg.Paths.VectorIndex); err != nil {
					e.closePartial()
					return nil, sentinelerrors.New(sentinelerrors.ErrCodeCorruptIndex,
						fmt.Sprintf("failed to load vector index %s", cfg.Paths.VectorIndex), err)
				}
			}
		}
	}

	if e.keyword == nil {
		e.keyword, err = store.NewKeywordIndexWithBackend(
			cfg.Paths.KeywordIndex, store.DefaultKeywordConfig(), cfg.Retrieval.KeywordBackend)
		if err != nil {
			e.closePartial()
			return nil, err
		}
	}

	e.coordinator, err = search.NewCoordinator(e.vector, e.keyword, e.embedder, search.Config{
		RRFConstant:              cfg.Retrieval.RRFConstant,
		SimilarityThreshold:      float32(cfg.Retrieval.SimilarityThreshold),
		MaxCandidatesPerModality: cfg.Retrieval.MaxCandidatesPerModality,
		Timeout:                  cfg.SearchTimeoutDuration(),
		ParentAggregation:        search.Aggregation(cfg.Retrieval.ParentAggregation),
	})
	if err != nil {
		e.closePartial()
		return nil, err
	}

	e.fuser = search.NewFuser(cfg.Retrieval.RRFConstant)

	e.resolver, err = search.NewResolver(e.metadata, search.Aggregation(cfg.Retrieval.ParentAggregation))
	if err != nil {
		e.closePartial()
		return nil, err
	}

	if o.matrix != nil {
		e.matrix.Store(o.matrix)
	} else if cfg.Access.MatrixPath != "" {
		m, err := access.LoadMatrix(cfg.Access.MatrixPath)
		if err != nil {
			e.closePartial()
			return nil, err
		}
		e.matrix.Store(m)
	}

	if e.audit == nil {
		sink, err := audit.NewSQLiteSink(cfg.Paths.AuditDB)
		if err != nil {
			slog.Warn("audit database unavailable, falling back to log sink",
				slog.String("path", cfg.Paths.AuditDB),
				slog.String("error", err.Error()))
			e.audit = audit.NewLogSink(nil)
		} else {
			e.audit = sink
		}
	}

	return e, nil
}

// checkIndexCompatibility compares the dimension the vector index was
// built with against the active embedder and records the current
// values. Fresh-index construction skips the comparison so a rebuild
// can proceed.
func (e *Engine) checkIndexCompatibility(ctx context.Context, rebuilding bool) error {
	dims := e.embedder.Dimensions()

	stored, err := e.metadata.GetState(ctx, store.StateKeyIndexDimension)
	if err != nil {
		return err
	}
	if stored != "" && !rebuilding {
		storedDims, convErr := strconv.Atoi(stored)
		if convErr == nil && storedDims != dims {
			return sentinelerrors.New(sentinelerrors.ErrCodeDimensionMismatch,
				store.ErrDimensionMismatch{Expected: storedDims, Got: dims}.Error(), nil)
		}
	}

	if err := e.metadata.SetState(ctx, store.StateKeyIndexDimension, strconv.Itoa(dims)); err != nil {
		return err
	}
	return e.metadata.SetState(ctx, store.StateKeyIndexModel, e.embedder.ModelName())
}

// Matrix returns the active access matrix snapshot, or nil when none is
// loaded. Compiling against a nil matrix yields an empty filter, so an
// engine without a matrix denies every query.
func (e *Engine) Matrix() *access.Matrix {
	return e.matrix.Load()
}

// Embedder returns the active embedding provider.
func (e *Engine) Embedder() embed.Embedder {
	return e.embedder
}

// BreakerState exposes the embedding circuit breaker state.
func (e *Engine) BreakerState() sentinelerrors.State {
	return e.coordinator.BreakerState()
}

// closePartial releases whatever was opened before a constructor error.
func (e *Engine) closePartial() {
	if e.keyword != nil {
		_ = e.keyword.Close()
	}
	if e.vector != nil {
		_ = e.vector.Close()
	}
	if e.metadata != nil {
		_ = e.metadata.Close()
	}
	if e.embedder != nil {
		_ = e.embedder.Close()
	}
}

// Close persists the vector index and releases all resources.
func (e *Engine) Close() error {
	var errs []error

	if e.cfg.Paths.VectorIndex != "" && e.vector.Count() > 0 {
		if err := e.vector.Save(e.cfg.Paths.VectorIndex); err != nil {
			errs = append(errs, fmt.Errorf("save vector index: %w", err))
		}
	}

	if err := e.audit.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close audit sink: %w", err))
	}
	if err := e.keyword.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close keyword index: %w", err))
	}
	if err := e.vector.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close vector store: %w", err))
	}
	if err := e.metadata.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close metadata store: %w", err))
	}
	if err := e.embedder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close embedder: %w", err))
	}

	return errors.Join(errs...)
}
