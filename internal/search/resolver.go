package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/RajeshTechForge/sentinel-rag/internal/chunk"
	"github.com/RajeshTechForge/sentinel-rag/internal/store"
)

// Resolver turns fused chunk hits into passages. In parent mode child
// hits are grouped under their parent chunk so the caller gets wider
// context than the individual matching windows.
type Resolver struct {
	metadata    store.MetadataStore
	aggregation Aggregation
}

// NewResolver creates a resolver. An empty aggregation defaults to max.
func NewResolver(metadata store.MetadataStore, aggregation Aggregation) (*Resolver, error) {
	if metadata == nil {
		return nil, fmt.Errorf("%w: metadata store is required", ErrNilDependency)
	}
	switch aggregation {
	case AggregationMax, AggregationSum:
	case "":
		aggregation = AggregationMax
	default:
		return nil, fmt.Errorf("unknown parent aggregation: %s (valid options: max, sum)", aggregation)
	}
	return &Resolver{metadata: metadata, aggregation: aggregation}, nil
}

// Resolve converts fused hits to passages in the given mode, truncated
// to limit. Results are sorted by score descending with ties broken by
// chunk ID ascending.
func (r *Resolver) Resolve(ctx context.Context, fused []*FusedResult, mode Mode, limit int) ([]*Passage, error) {
	if len(fused) == 0 {
		return []*Passage{}, nil
	}

	switch mode {
	case ModeDirect, "":
		return r.resolveDirect(ctx, fused, limit)
	case ModeParent:
		return r.resolveParent(ctx, fused, limit)
	default:
		return nil, fmt.Errorf("unknown resolve mode: %s (valid options: direct, parent)", mode)
	}
}

// resolveDirect returns the matched chunks themselves. Fused results
// are already deduplicated and sorted; chunks missing from the
// metadata store (deleted since indexing) are skipped.
func (r *Resolver) resolveDirect(ctx context.Context, fused []*FusedResult, limit int) ([]*Passage, error) {
	ids := make([]string, len(fused))
	byID := make(map[string]*FusedResult, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
		byID[f.ChunkID] = f
	}

	chunks, err := r.metadata.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	docs := newDocCache(r.metadata)
	passages := make([]*Passage, 0, len(chunks))
	for _, c := range chunks {
		f := byID[c.ID]
		if f == nil {
			continue
		}
		p, err := r.newPassage(ctx, docs, c, "direct", f.Score, 1, f.MatchedTerms)
		if err != nil {
			return nil, err
		}
		passages = append(passages, p)
	}

	sortPassages(passages)
	return truncatePassages(passages, limit), nil
}

// parentGroup accumulates child hits under one parent chunk.
type parentGroup struct {
	score        float64
	childMatches int
	matchedTerms []string
}

// resolveParent groups child hits by parent and aggregates their
// scores. Flat chunks have no parent and pass through as direct
// passages competing on their own fused score.
func (r *Resolver) resolveParent(ctx context.Context, fused []*FusedResult, limit int) ([]*Passage, error) {
	ids := make([]string, len(fused))
	byID := make(map[string]*FusedResult, len(fused))
	for i, f := range fused {
		ids[i] = f.ChunkID
		byID[f.ChunkID] = f
	}

	chunks, err := r.metadata.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*parentGroup)
	var flat []*chunk.Chunk

	for _, c := range chunks {
		f := byID[c.ID]
		if f == nil {
			continue
		}
		if c.ParentID == "" {
			flat = append(flat, c)
			continue
		}

		g := groups[c.ParentID]
		if g == nil {
			g = &parentGroup{}
			groups[c.ParentID] = g
		}
		g.childMatches++
		g.matchedTerms = mergeTerms(g.matchedTerms, f.MatchedTerms)
		switch r.aggregation {
		case AggregationSum:
			g.score += f.Score
		default:
			if f.Score > g.score {
				g.score = f.Score
			}
		}
	}

	docs := newDocCache(r.metadata)
	passages := make([]*Passage, 0, len(groups)+len(flat))

	if len(groups) > 0 {
		parentIDs := make([]string, 0, len(groups))
		for id := range groups {
			parentIDs = append(parentIDs, id)
		}
		sort.Strings(parentIDs)

		parents, err := r.metadata.GetChunks(ctx, parentIDs)
		if err != nil {
			return nil, err
		}
		for _, pc := range parents {
			g := groups[pc.ID]
			if g == nil {
				continue
			}
			p, err := r.newPassage(ctx, docs, pc, "parent", g.score, g.childMatches, g.matchedTerms)
			if err != nil {
				return nil, err
			}
			passages = append(passages, p)
		}
	}

	for _, c := range flat {
		f := byID[c.ID]
		p, err := r.newPassage(ctx, docs, c, "direct", f.Score, 1, f.MatchedTerms)
		if err != nil {
			return nil, err
		}
		passages = append(passages, p)
	}

	sortPassages(passages)
	return truncatePassages(passages, limit), nil
}

// newPassage builds a passage, pulling the document's access labels
// through a per-call cache.
func (r *Resolver) newPassage(
	ctx context.Context,
	docs *docCache,
	c *chunk.Chunk,
	kind string,
	score float64,
	childMatches int,
	matchedTerms []string,
) (*Passage, error) {
	doc, err := docs.get(ctx, c.DocumentID)
	if err != nil {
		return nil, err
	}
	return &Passage{
		ChunkID:        c.ID,
		DocumentID:     doc.ID,
		Title:          doc.Title,
		Department:     doc.Department,
		Classification: doc.Classification,
		Content:        c.Content,
		Kind:           kind,
		Score:          score,
		ChildMatches:   childMatches,
		MatchedTerms:   matchedTerms,
	}, nil
}

// docCache memoizes document lookups within a single resolve call.
type docCache struct {
	metadata store.MetadataStore
	docs     map[string]*store.Document
}

func newDocCache(metadata store.MetadataStore) *docCache {
	return &docCache{metadata: metadata, docs: make(map[string]*store.Document)}
}

func (dc *docCache) get(ctx context.Context, id string) (*store.Document, error) {
	if doc, ok := dc.docs[id]; ok {
		return doc, nil
	}
	doc, err := dc.metadata.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	dc.docs[id] = doc
	return doc, nil
}

// mergeTerms unions matched terms preserving first-seen order.
func mergeTerms(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		seen[t] = struct{}{}
	}
	for _, t := range incoming {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			existing = append(existing, t)
		}
	}
	return existing
}

func sortPassages(passages []*Passage) {
	sort.Slice(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].ChunkID < passages[j].ChunkID
	})
}

func truncatePassages(passages []*Passage, limit int) []*Passage {
	if limit > 0 && len(passages) > limit {
		return passages[:limit]
	}
	return passages
}
