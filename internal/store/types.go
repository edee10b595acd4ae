// Package store provides the persistence layer: document and chunk
// metadata in SQLite, vector search over HNSW, and keyword search over
// SQLite FTS5 or Bleve. All search entry points take a compiled access
// filter and never return chunks outside it.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
	"github.com/RajeshTechForge/sentinel-rag/internal/chunk"
)

// Document is an ingested source document. Department and
// classification are the access-control dimensions; both are required.
type Document struct {
	ID             string
	Title          string
	Department     string
	Classification string
	Metadata       map[string]string
	ChunkCount     int
	CreatedAt      time.Time
}

// MetadataStore persists documents and their chunk hierarchies.
type MetadataStore interface {
	// SaveHierarchy persists a document and all of its chunks in one
	// transaction. Either the whole hierarchy becomes visible or none
	// of it does; a query never observes a child without its parent.
	SaveHierarchy(ctx context.Context, doc *Document, chunks []*chunk.Chunk) error

	GetDocument(ctx context.Context, id string) (*Document, error)
	ListDocuments(ctx context.Context) ([]*Document, error)

	// DeleteDocument removes a document and cascades to its chunks.
	// Returns the IDs of the deleted chunks so callers can evict them
	// from the search indexes.
	DeleteDocument(ctx context.Context, id string) ([]string, error)

	GetChunk(ctx context.Context, id string) (*chunk.Chunk, error)
	GetChunks(ctx context.Context, ids []string) ([]*chunk.Chunk, error)
	GetChunksByDocument(ctx context.Context, docID string) ([]*chunk.Chunk, error)

	// ListLeafChunks returns all indexable chunks with their access
	// attributes, for index rebuilds.
	ListLeafChunks(ctx context.Context) ([]*IndexEntry, error)

	// State is a key-value store for runtime state such as the
	// embedding dimension the vector index was built with.
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	Close() error
}

// State keys for the metadata store.
const (
	// StateKeyIndexDimension stores the embedding dimension used for the index
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel stores the embedding model name used for the index
	StateKeyIndexModel = "index_embedding_model"
)

// IndexEntry is one chunk as seen by the search indexes: content plus
// the document attributes the access filter matches against.
type IndexEntry struct {
	ChunkID        string
	Content        string
	Department     string
	Classification string
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID       string  // Chunk ID
	Distance float32 // Lower is more similar (0-2 for cosine)
	Score    float32 // Normalized similarity (0-1)
}

// VectorStore provides filtered nearest-neighbor search.
type VectorStore interface {
	// Add inserts vectors with their IDs and access attributes. If an
	// ID exists, it is replaced.
	Add(ctx context.Context, entries []*IndexEntry, vectors [][]float32) error

	// Search finds up to k nearest neighbors whose (department,
	// classification) is allowed by the filter. A nil filter means no
	// restriction; an empty filter matches nothing.
	Search(ctx context.Context, query []float32, k int, filter *access.Filter) ([]*VectorResult, error)

	Delete(ctx context.Context, ids []string) error
	Contains(id string) bool
	Count() int

	Save(path string) error
	Load(path string) error
	Close() error
}

// VectorStoreConfig configures the vector store.
type VectorStoreConfig struct {
	// Dimensions is the vector dimension (768 for nomic-embed-text, 256 for static)
	Dimensions int

	// Metric is the distance metric: "cos" (cosine), "l2" (euclidean) (default: "cos")
	Metric string

	// M is HNSW max connections per layer (default: 16)
	M int

	// EfSearch is HNSW query-time search width (default: 20)
	EfSearch int
}

// DefaultVectorStoreConfig returns sensible defaults for the vector store.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   40,
	}
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ChunkID      string
	Score        float64
	MatchedTerms []string
}

// KeywordIndex provides filtered lexical search.
type KeywordIndex interface {
	// Index adds entries to the index. Existing IDs are replaced.
	Index(ctx context.Context, entries []*IndexEntry) error

	// Search returns up to limit entries matching the query, best
	// first, restricted to the filter's allowed (department,
	// classification) pairs. A nil filter means no restriction.
	Search(ctx context.Context, query string, limit int, filter *access.Filter) ([]*KeywordResult, error)

	Delete(ctx context.Context, ids []string) error

	// AllIDs returns all indexed chunk IDs, for consistency checks.
	AllIDs() ([]string, error)

	Count() int

	Save(path string) error
	Close() error
}

// KeywordConfig configures the keyword index.
type KeywordConfig struct {
	// StopWords is a list of words to filter out during tokenization.
	StopWords []string

	// MinTokenLength is the minimum token length to index (default: 2).
	MinTokenLength int
}

// DefaultKeywordConfig returns the default keyword index configuration.
func DefaultKeywordConfig() KeywordConfig {
	return KeywordConfig{
		StopWords:      DefaultStopWords,
		MinTokenLength: 2,
	}
}

// DefaultStopWords contains common English words excluded from the
// keyword index.
var DefaultStopWords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "that", "the",
	"to", "was", "were", "will", "with",
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'sentinel reindex' to rebuild)", e.Expected, e.Got)
}
