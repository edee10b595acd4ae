// Package search provides hybrid retrieval combining keyword and vector
// search. Candidate lists are fused with Reciprocal Rank Fusion and
// resolved to passages, optionally expanding child chunks to their
// parents for fuller context.
package search

import (
	"time"
)

// DefaultRRFConstant is the standard RRF smoothing parameter.
// k=60 is empirically validated across domains (used by Azure AI Search,
// OpenSearch, and others).
const DefaultRRFConstant = 60

// Mode selects how fused chunk hits are resolved to passages.
type Mode string

const (
	// ModeDirect returns the matched leaf chunks themselves.
	ModeDirect Mode = "direct"

	// ModeParent expands child chunk hits to their parent chunks,
	// aggregating scores per parent. Flat chunks have no parent and
	// pass through unchanged.
	ModeParent Mode = "parent"
)

// Aggregation selects how child scores combine into a parent score.
type Aggregation string

const (
	// AggregationMax scores a parent by its best child. This is the
	// default: one strong match should not be outranked by many weak
	// ones.
	AggregationMax Aggregation = "max"

	// AggregationSum scores a parent by the sum of its child scores.
	AggregationSum Aggregation = "sum"
)

// Config configures the search coordinator and fusion.
type Config struct {
	// RRFConstant is the RRF smoothing constant k (default: 60).
	RRFConstant int

	// SimilarityThreshold excludes vector hits scoring below it (0-1).
	SimilarityThreshold float32

	// MaxCandidatesPerModality caps each modality's candidate list
	// before fusion.
	MaxCandidatesPerModality int

	// Timeout is the maximum duration for one query (default: 5s).
	Timeout time.Duration

	// ParentAggregation selects the parent scoring rule.
	ParentAggregation Aggregation
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		RRFConstant:              DefaultRRFConstant,
		SimilarityThreshold:      0.4,
		MaxCandidatesPerModality: 20,
		Timeout:                  5 * time.Second,
		ParentAggregation:        AggregationMax,
	}
}

// Meta reports how a query was actually served.
type Meta struct {
	// Degraded is true when the embedding provider failed and the
	// query was served by keyword search alone.
	Degraded bool

	// Partial is true when the per-query timeout or a single modality
	// failure left the candidate set incomplete.
	Partial bool
}

// FusedResult is a single chunk hit after RRF fusion.
type FusedResult struct {
	ChunkID      string   // Chunk identifier
	Score        float64  // Combined RRF score
	KeywordRank  int      // Position in keyword list (1-indexed, 0 if absent)
	VectorRank   int      // Position in vector list (1-indexed, 0 if absent)
	KeywordScore float64  // Original keyword score (preserved)
	VectorScore  float64  // Original vector similarity score (preserved)
	MatchedTerms []string // Keyword matched terms (for highlighting)
}

// Passage is a resolved retrieval result ready to return to the caller.
type Passage struct {
	// ChunkID identifies the returned chunk (the parent chunk in
	// parent mode).
	ChunkID string

	// DocumentID identifies the source document.
	DocumentID string

	// Title is the source document title.
	Title string

	// Department and Classification are the document's access labels.
	Department     string
	Classification string

	// Content is the passage text.
	Content string

	// Kind is "parent" when the passage was expanded from child hits,
	// "direct" otherwise.
	Kind string

	// Score is the fused (and, in parent mode, aggregated) score.
	Score float64

	// ChildMatches is the number of distinct child hits that
	// contributed to this passage. Always 1 for direct passages.
	ChildMatches int

	// MatchedTerms are keyword terms that matched contributing chunks.
	MatchedTerms []string
}
