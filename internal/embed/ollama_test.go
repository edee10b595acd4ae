package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama serves /api/tags and /api/embed with fixed 4-dim embeddings.
type fakeOllama struct {
	models     []string
	dims       int
	embedCalls int64
	failFirst  int64 // number of embed calls to fail with 500
}

func (f *fakeOllama) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		resp := OllamaModelListResponse{}
		for _, m := range f.models {
			resp.Models = append(resp.Models, OllamaModelInfo{Name: m})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		call := atomic.AddInt64(&f.embedCalls, 1)
		if call <= atomic.LoadInt64(&f.failFirst) {
			http.Error(w, "model busy", http.StatusInternalServerError)
			return
		}

		var req OllamaEmbedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		count := 1
		if texts, ok := req.Input.([]any); ok {
			count = len(texts)
		}

		resp := OllamaEmbedResponse{Model: req.Model}
		for i := 0; i < count; i++ {
			vec := make([]float64, f.dims)
			vec[i%f.dims] = 1
			resp.Embeddings = append(resp.Embeddings, vec)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func newFakeOllamaEmbedder(t *testing.T, fake *fakeOllama) *OllamaEmbedder {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL
	e, err := NewOllamaEmbedder(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestOllamaEmbedder_DiscoversModelAndDimensions(t *testing.T) {
	fake := &fakeOllama{models: []string{"nomic-embed-text:latest"}, dims: 4}
	e := newFakeOllamaEmbedder(t, fake)

	assert.Equal(t, "nomic-embed-text:latest", e.ModelName())
	assert.Equal(t, 4, e.Dimensions())
	assert.True(t, e.Available(context.Background()))
}

func TestOllamaEmbedder_FallbackModel(t *testing.T) {
	fake := &fakeOllama{models: []string{"mxbai-embed-large:latest"}, dims: 4}
	e := newFakeOllamaEmbedder(t, fake)

	assert.Equal(t, "mxbai-embed-large:latest", e.ModelName())
}

func TestOllamaEmbedder_NoModelAvailable(t *testing.T) {
	srv := httptest.NewServer((&fakeOllama{models: []string{"llama3:8b"}, dims: 4}).handler())
	defer srv.Close()

	cfg := DefaultOllamaConfig()
	cfg.Host = srv.URL
	_, err := NewOllamaEmbedder(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no embedding model available")
}

func TestOllamaEmbedder_Embed(t *testing.T) {
	fake := &fakeOllama{models: []string{"nomic-embed-text"}, dims: 4}
	e := newFakeOllamaEmbedder(t, fake)

	vec, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	require.Len(t, vec, 4)
}

func TestOllamaEmbedder_EmbedEmptyReturnsZeroVector(t *testing.T) {
	fake := &fakeOllama{models: []string{"nomic-embed-text"}, dims: 4}
	e := newFakeOllamaEmbedder(t, fake)

	before := atomic.LoadInt64(&fake.embedCalls)
	vec, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, vec, 4)
	for _, v := range vec {
		assert.Zero(t, v)
	}
	assert.Equal(t, before, atomic.LoadInt64(&fake.embedCalls), "no API call for empty input")
}

func TestOllamaEmbedder_EmbedBatch(t *testing.T) {
	fake := &fakeOllama{models: []string{"nomic-embed-text"}, dims: 4}
	e := newFakeOllamaEmbedder(t, fake)

	vecs, err := e.EmbedBatch(context.Background(), []string{"one", "", "three"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 4)
	}
	// Empty text got a zero vector without an API call
	for _, v := range vecs[1] {
		assert.Zero(t, v)
	}
}

func TestOllamaEmbedder_RetriesTransientFailure(t *testing.T) {
	fake := &fakeOllama{models: []string{"nomic-embed-text"}, dims: 4}
	e := newFakeOllamaEmbedder(t, fake)

	atomic.StoreInt64(&fake.failFirst, atomic.LoadInt64(&fake.embedCalls)+1)

	vec, err := e.Embed(context.Background(), "retry me")
	require.NoError(t, err)
	require.Len(t, vec, 4)
}

func TestOllamaEmbedder_ClosedRejectsRequests(t *testing.T) {
	fake := &fakeOllama{models: []string{"nomic-embed-text"}, dims: 4}
	e := newFakeOllamaEmbedder(t, fake)

	require.NoError(t, e.Close())
	_, err := e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}
