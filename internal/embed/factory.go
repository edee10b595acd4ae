package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	sentinelerrors "github.com/RajeshTechForge/sentinel-rag/internal/errors"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses the Ollama API for embeddings (default)
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings (no external service)
	ProviderStatic ProviderType = "static"

	// ProviderAuto tries Ollama first and falls back to static
	ProviderAuto ProviderType = ""
)

// Options configures embedder construction.
type Options struct {
	// Provider selects the embedding backend. Empty means auto-detect:
	// Ollama when reachable, static otherwise.
	Provider ProviderType

	// Model is the embedding model name (Ollama only).
	Model string

	// Host is the Ollama API endpoint.
	Host string

	// Dimensions overrides auto-detection when non-zero.
	Dimensions int

	// BatchSize for batch embedding requests.
	BatchSize int

	// CacheSize is the query embedding LRU capacity. Zero uses the
	// default; negative disables caching.
	CacheSize int
}

// NewEmbedder creates an embedder based on the configured provider.
//
// The SENTINEL_EMBEDDER environment variable overrides the provider:
//   - "ollama": require Ollama, fail if unreachable
//   - "static": hash-based embeddings, no external service
//
// An explicitly selected provider never falls back silently; only
// auto-detection does. Query embedding caching is enabled unless
// SENTINEL_EMBED_CACHE is set to a false value.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	provider := opts.Provider
	if env := os.Getenv("SENTINEL_EMBEDDER"); env != "" {
		provider = ParseProvider(env)
	}

	var embedder Embedder
	var err error

	switch provider {
	case ProviderOllama:
		embedder, err = newOllama(ctx, opts)
		if err != nil {
			return nil, sentinelerrors.ProviderError(
				"ollama unavailable (start it with 'ollama serve' or set embeddings.provider to static)", err)
		}

	case ProviderStatic:
		embedder = NewStaticEmbedder()

	case ProviderAuto:
		embedder, err = newOllama(ctx, opts)
		if err != nil {
			slog.Warn("ollama unreachable, using static embeddings",
				slog.String("error", err.Error()))
			embedder = NewStaticEmbedder()
		}

	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (valid options: ollama, static)", provider)
	}

	if opts.CacheSize >= 0 && !isCacheDisabled() {
		size := opts.CacheSize
		if size == 0 {
			size = DefaultEmbeddingCacheSize
		}
		embedder = NewCachedEmbedder(embedder, size)
	}

	return embedder, nil
}

// newOllama builds an Ollama embedder from options.
func newOllama(ctx context.Context, opts Options) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if opts.Model != "" {
		cfg.Model = opts.Model
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Dimensions > 0 {
		cfg.Dimensions = opts.Dimensions
	}
	if opts.BatchSize > 0 {
		cfg.BatchSize = opts.BatchSize
	}
	return NewOllamaEmbedder(ctx, cfg)
}

// isCacheDisabled checks if embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("SENTINEL_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// ParseProvider converts a string to ProviderType
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ollama":
		return ProviderOllama
	case "static":
		return ProviderStatic
	case "", "auto":
		return ProviderAuto
	default:
		return ProviderType(s)
	}
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	if p == ProviderAuto {
		return "auto"
	}
	return string(p)
}

// ValidProviders returns all valid provider names
func ValidProviders() []string {
	return []string{
		string(ProviderOllama),
		string(ProviderStatic),
		"auto",
	}
}

// IsValidProvider checks if a provider name is valid
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return lower == ""
}

// EmbedderInfo contains information about an embedder
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	// Unwrap cached embedder to get underlying type
	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch inner.(type) {
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	default:
		info.Provider = ProviderStatic
	}

	return info
}
