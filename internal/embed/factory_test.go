package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEmbedder_Static(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderStatic})
	require.NoError(t, err)
	defer e.Close()

	// Wrapped with the query cache by default
	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	assert.IsType(t, &StaticEmbedder{}, cached.Inner())
	assert.Equal(t, StaticDimensions, e.Dimensions())
}

func TestNewEmbedder_CacheDisabledByEnv(t *testing.T) {
	t.Setenv("SENTINEL_EMBED_CACHE", "false")

	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderStatic})
	require.NoError(t, err)
	defer e.Close()

	assert.IsType(t, &StaticEmbedder{}, e)
}

func TestNewEmbedder_CacheDisabledByOption(t *testing.T) {
	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderStatic, CacheSize: -1})
	require.NoError(t, err)
	defer e.Close()

	assert.IsType(t, &StaticEmbedder{}, e)
}

func TestNewEmbedder_EnvOverridesProvider(t *testing.T) {
	t.Setenv("SENTINEL_EMBEDDER", "static")

	e, err := NewEmbedder(context.Background(), Options{Provider: ProviderOllama})
	require.NoError(t, err)
	defer e.Close()

	info := GetInfo(context.Background(), e)
	assert.Equal(t, ProviderStatic, info.Provider)
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	_, err := NewEmbedder(context.Background(), Options{Provider: "elastic"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown embedding provider")
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in   string
		want ProviderType
	}{
		{"ollama", ProviderOllama},
		{"OLLAMA", ProviderOllama},
		{"static", ProviderStatic},
		{"auto", ProviderAuto},
		{"", ProviderAuto},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseProvider(tt.in), "input %q", tt.in)
	}
}

func TestIsValidProvider(t *testing.T) {
	assert.True(t, IsValidProvider("ollama"))
	assert.True(t, IsValidProvider("static"))
	assert.True(t, IsValidProvider("auto"))
	assert.True(t, IsValidProvider(""))
	assert.False(t, IsValidProvider("elastic"))
}

func TestGetInfo_UnwrapsCache(t *testing.T) {
	e := NewCachedEmbedderWithDefaults(NewStaticEmbedder())
	defer e.Close()

	info := GetInfo(context.Background(), e)
	assert.Equal(t, ProviderStatic, info.Provider)
	assert.Equal(t, "static", info.Model)
	assert.Equal(t, StaticDimensions, info.Dimensions)
	assert.True(t, info.Available)
}
