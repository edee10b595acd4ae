package search

import (
	"sort"

	"github.com/RajeshTechForge/sentinel-rag/internal/store"
)

// Fuser combines keyword and vector search results using Reciprocal
// Rank Fusion.
//
// Algorithm: score(d) = Σ 1 / (k + rank_i)
//
// Where k is the smoothing constant (default 60) and rank_i is the
// 1-indexed position of d in ranked list i. A chunk absent from a list
// simply receives no contribution from it. Scores are not weighted or
// normalized; rank positions carry all the signal.
type Fuser struct {
	k int
}

// NewFuser creates a fuser with the given RRF constant.
// If k <= 0, defaults to 60.
func NewFuser(k int) *Fuser {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &Fuser{k: k}
}

// K returns the RRF smoothing constant in use.
func (f *Fuser) K() int {
	return f.k
}

// Fuse combines the two candidate lists and returns fused results
// sorted by score descending, ties broken by chunk ID ascending.
// If limit > 0 the result is truncated to at most limit entries.
func (f *Fuser) Fuse(keyword []*store.KeywordResult, vector []*store.VectorResult, limit int) []*FusedResult {
	if len(keyword) == 0 && len(vector) == 0 {
		return []*FusedResult{}
	}

	scores := make(map[string]*FusedResult, len(keyword)+len(vector))

	for rank, r := range keyword {
		result := f.getOrCreate(scores, r.ChunkID)
		result.KeywordScore = r.Score
		result.KeywordRank = rank + 1
		result.MatchedTerms = r.MatchedTerms
		result.Score += 1.0 / float64(f.k+rank+1)
	}

	for rank, r := range vector {
		result := f.getOrCreate(scores, r.ID)
		result.VectorScore = float64(r.Score)
		result.VectorRank = rank + 1
		result.Score += 1.0 / float64(f.k+rank+1)
	}

	results := make([]*FusedResult, 0, len(scores))
	for _, r := range scores {
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results
}

// getOrCreate returns existing result or creates new one.
func (f *Fuser) getOrCreate(m map[string]*FusedResult, id string) *FusedResult {
	if r, ok := m[id]; ok {
		return r
	}
	r := &FusedResult{ChunkID: id}
	m[id] = r
	return r
}
