package search

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/RajeshTechForge/sentinel-rag/internal/access"
	"github.com/RajeshTechForge/sentinel-rag/internal/store"
)

// allowFilter compiles a filter allowing exactly the given
// (department, classification) pairs.
func allowFilter(t *testing.T, pairs ...access.Pair) *access.Filter {
	t.Helper()

	classifications := map[string]map[string][]string{}
	seen := map[string]struct{}{}
	var memberships []access.Membership
	for _, p := range pairs {
		if classifications[p.Classification] == nil {
			classifications[p.Classification] = map[string][]string{}
		}
		classifications[p.Classification][p.Department] = []string{"reader"}
		if _, ok := seen[p.Department]; !ok {
			seen[p.Department] = struct{}{}
			memberships = append(memberships, access.Membership{Department: p.Department, Role: "reader"})
		}
	}

	data, err := yaml.Marshal(map[string]any{"classifications": classifications})
	require.NoError(t, err)
	matrix, err := access.ParseMatrix(data)
	require.NoError(t, err)

	return access.Compile(access.UserContext{UserID: "test", Memberships: memberships}, matrix)
}

// denyAllFilter compiles a filter with no grants.
func denyAllFilter(t *testing.T) *access.Filter {
	t.Helper()
	matrix, err := access.ParseMatrix([]byte("classifications:\n  public:\n    engineering: [reader]\n"))
	require.NoError(t, err)
	return access.Compile(access.UserContext{UserID: "nobody"}, matrix)
}

// mockVectorStore implements store.VectorStore with canned results and
// call counting.
type mockVectorStore struct {
	results     []*store.VectorResult
	searchErr   error
	searchCalls int64
}

func (m *mockVectorStore) Add(context.Context, []*store.IndexEntry, [][]float32) error { return nil }

func (m *mockVectorStore) Search(ctx context.Context, query []float32, k int, filter *access.Filter) ([]*store.VectorResult, error) {
	atomic.AddInt64(&m.searchCalls, 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.results, nil
}

func (m *mockVectorStore) Delete(context.Context, []string) error { return nil }
func (m *mockVectorStore) Contains(string) bool                   { return false }
func (m *mockVectorStore) Count() int                             { return len(m.results) }
func (m *mockVectorStore) Save(string) error                      { return nil }
func (m *mockVectorStore) Load(string) error                      { return nil }
func (m *mockVectorStore) Close() error                           { return nil }

// mockKeywordIndex implements store.KeywordIndex with canned results and
// call counting.
type mockKeywordIndex struct {
	results     []*store.KeywordResult
	searchErr   error
	searchCalls int64
}

func (m *mockKeywordIndex) Index(context.Context, []*store.IndexEntry) error { return nil }

func (m *mockKeywordIndex) Search(ctx context.Context, query string, limit int, filter *access.Filter) ([]*store.KeywordResult, error) {
	atomic.AddInt64(&m.searchCalls, 1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.results, nil
}

func (m *mockKeywordIndex) Delete(context.Context, []string) error { return nil }
func (m *mockKeywordIndex) AllIDs() ([]string, error)              { return nil, nil }
func (m *mockKeywordIndex) Count() int                             { return len(m.results) }
func (m *mockKeywordIndex) Save(string) error                      { return nil }
func (m *mockKeywordIndex) Close() error                           { return nil }

// mockEmbedder returns a fixed vector, or fails, counting calls.
type mockEmbedder struct {
	vector     []float32
	embedErr   error
	embedCalls int64
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt64(&m.embedCalls, 1)
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := m.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int                 { return len(m.vector) }
func (m *mockEmbedder) ModelName() string               { return "mock" }
func (m *mockEmbedder) Available(context.Context) bool  { return m.embedErr == nil }
func (m *mockEmbedder) Close() error                    { return nil }
