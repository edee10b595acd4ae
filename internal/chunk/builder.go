package chunk

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Boundary sequences tried when snapping a window end, strongest first.
// A window end prefers to land just after a section break, then a
// paragraph break, then a line break, then sentence or word boundaries.
var boundarySeqs = [][]rune{
	[]rune("\n\n\n"),
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune("."),
	[]rune(" "),
}

// Builder splits documents into parent/child hierarchies or flat chunks.
type Builder struct {
	cfg Config
}

// NewBuilder creates a builder after validating the chunk geometry.
func NewBuilder(cfg Config) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg}, nil
}

// span is a half-open rune range within a document.
type span struct {
	start int
	end   int
}

// BuildHierarchy splits a document into parent chunks and, within each
// parent, child chunks. Child spans never cross parent boundaries.
// Whitespace-only documents produce an empty hierarchy.
func (b *Builder) BuildHierarchy(docID, content string) (*Hierarchy, error) {
	if strings.TrimSpace(content) == "" {
		return &Hierarchy{}, nil
	}

	runes := []rune(content)
	now := time.Now()
	h := &Hierarchy{}

	parentSpans := slidingWindows(runes, 0, len(runes), b.cfg.ParentSize, b.cfg.ParentOverlap)
	childOrdinal := 0

	for i, ps := range parentSpans {
		parent := newChunk(docID, "", KindParent, i, runes, ps, now)
		h.Parents = append(h.Parents, parent)

		childSpans := slidingWindows(runes, ps.start, ps.end, b.cfg.ChildSize, b.cfg.ChildOverlap)
		for _, cs := range childSpans {
			child := newChunk(docID, parent.ID, KindChild, childOrdinal, runes, cs, now)
			h.Children = append(h.Children, child)
			childOrdinal++
		}
	}

	return h, nil
}

// BuildFlat splits a document into a single level of chunks.
func (b *Builder) BuildFlat(docID, content string) ([]*Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	runes := []rune(content)
	now := time.Now()

	var chunks []*Chunk
	for i, s := range slidingWindows(runes, 0, len(runes), b.cfg.FlatSize, b.cfg.FlatOverlap) {
		chunks = append(chunks, newChunk(docID, "", KindFlat, i, runes, s, now))
	}
	return chunks, nil
}

func newChunk(docID, parentID string, kind Kind, ordinal int, runes []rune, s span, now time.Time) *Chunk {
	return &Chunk{
		ID:         uuid.NewString(),
		DocumentID: docID,
		ParentID:   parentID,
		Kind:       kind,
		Ordinal:    ordinal,
		Content:    string(runes[s.start:s.end]),
		Start:      s.start,
		End:        s.end,
		CreatedAt:  now,
	}
}

// slidingWindows covers [lo, hi) with windows of at most size runes,
// consecutive windows sharing overlap runes. Window ends snap back to a
// natural boundary when one exists in the second half of the window. A
// trailing remainder shorter than the overlap is absorbed into the last
// window instead of becoming a fragment.
func slidingWindows(runes []rune, lo, hi, size, overlap int) []span {
	var spans []span
	start := lo

	for start < hi {
		end := start + size
		if end >= hi {
			spans = append(spans, span{start, hi})
			break
		}

		end = snapEnd(runes, start, end, size, overlap)

		// Absorbing a tiny tail avoids emitting a chunk the next
		// overlap would fully contain anyway.
		if hi-end <= overlap {
			spans = append(spans, span{start, hi})
			break
		}

		spans = append(spans, span{start, end})
		start = end - overlap
	}

	return spans
}

// snapEnd moves a window end backward onto the strongest boundary found
// in the second half of the window. The boundary sequence stays with the
// left chunk. Returns the original end when no boundary is found, or
// when snapping would stall the window advance.
func snapEnd(runes []rune, start, end, size, overlap int) int {
	floor := start + size/2
	if floor <= start+overlap {
		floor = start + overlap + 1
	}
	if floor >= end {
		return end
	}

	for _, seq := range boundarySeqs {
		for i := end - len(seq); i >= floor; i-- {
			if matchAt(runes, i, seq) {
				return i + len(seq)
			}
		}
	}
	return end
}

func matchAt(runes []rune, pos int, seq []rune) bool {
	if pos < 0 || pos+len(seq) > len(runes) {
		return false
	}
	for i, r := range seq {
		if runes[pos+i] != r {
			return false
		}
	}
	return true
}
