// Package chunk splits documents into a two-level retrieval hierarchy.
//
// Parent chunks are large spans that provide generation context; child
// chunks are small spans nested inside a parent and carry the actual
// embeddings. Flat chunking produces a single level for callers that do
// not want the hierarchy.
package chunk

import (
	"time"

	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
)

// Chunk size defaults. Parent spans target generation context windows,
// child spans target embedding model sweet spots.
const (
	DefaultParentSize    = 2000
	DefaultParentOverlap = 200
	DefaultChildSize     = 400
	DefaultChildOverlap  = 50
	DefaultFlatSize      = 1000
	DefaultFlatOverlap   = 100
)

// Kind distinguishes the levels of the chunk hierarchy.
type Kind string

const (
	KindParent Kind = "parent"
	KindChild  Kind = "child"
	KindFlat   Kind = "flat"
)

// Chunk is a retrievable span of a document. Start and End are rune
// offsets into the document, End exclusive.
type Chunk struct {
	ID         string
	DocumentID string
	ParentID   string // Empty for parent and flat chunks
	Kind       Kind
	Ordinal    int // Position within its level, 0-indexed
	Content    string
	Start      int
	End        int
	CreatedAt  time.Time
}

// IsLeaf reports whether the chunk is an indexable retrieval granule.
// Parents are resolved for context only and never indexed directly.
func (c *Chunk) IsLeaf() bool {
	return c.Kind != KindParent
}

// Hierarchy is the result of hierarchical chunking. Children reference
// parents by ID and every child span is contained in its parent's span.
type Hierarchy struct {
	Parents  []*Chunk
	Children []*Chunk
}

// Config controls chunk geometry. All sizes and overlaps are in runes.
type Config struct {
	ParentSize    int
	ParentOverlap int
	ChildSize     int
	ChildOverlap  int
	FlatSize      int
	FlatOverlap   int
}

// DefaultConfig returns the default chunk geometry.
func DefaultConfig() Config {
	return Config{
		ParentSize:    DefaultParentSize,
		ParentOverlap: DefaultParentOverlap,
		ChildSize:     DefaultChildSize,
		ChildOverlap:  DefaultChildOverlap,
		FlatSize:      DefaultFlatSize,
		FlatOverlap:   DefaultFlatOverlap,
	}
}

// Validate checks the geometry invariants: parent > child > 0 and every
// overlap in [0, size).
func (c Config) Validate() error {
	if c.ChildSize <= 0 {
		return sentinelerrors.ChunkConfigError("child size must be positive", nil)
	}
	if c.ParentSize <= c.ChildSize {
		return sentinelerrors.ChunkConfigError("parent size must exceed child size", nil)
	}
	if c.ParentOverlap < 0 || c.ParentOverlap >= c.ParentSize {
		return sentinelerrors.ChunkConfigError("parent overlap must be non-negative and smaller than parent size", nil)
	}
	if c.ChildOverlap < 0 || c.ChildOverlap >= c.ChildSize {
		return sentinelerrors.ChunkConfigError("child overlap must be non-negative and smaller than child size", nil)
	}
	if c.FlatSize <= 0 {
		return sentinelerrors.ChunkConfigError("flat size must be positive", nil)
	}
	if c.FlatOverlap < 0 || c.FlatOverlap >= c.FlatSize {
		return sentinelerrors.ChunkConfigError("flat overlap must be non-negative and smaller than flat size", nil)
	}
	return nil
}
