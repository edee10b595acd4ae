package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with SentinelError
	sentErr := New(ErrCodeStoreUnavailable, "metadata store unavailable", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, sentErr)
	assert.Equal(t, originalErr, errors.Unwrap(sentErr))
	assert.True(t, errors.Is(sentErr, originalErr))
}

func TestSentinelError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "chunk config error",
			code:     ErrCodeChunkConfigInvalid,
			message:  "child size must be smaller than parent size",
			expected: "[ERR_103_CHUNK_CONFIG_INVALID] child size must be smaller than parent size",
		},
		{
			name:     "provider error",
			code:     ErrCodeProviderTimeout,
			message:  "embedding request timed out",
			expected: "[ERR_301_PROVIDER_TIMEOUT] embedding request timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestSentinelError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeDocumentNotFound, "document A not found", nil)
	err2 := New(ErrCodeDocumentNotFound, "document B not found", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestSentinelError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	// Given: two errors with different codes
	err1 := New(ErrCodeDocumentNotFound, "document not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	// Then: they don't match
	assert.False(t, errors.Is(err1, err2))
}

func TestSentinelError_WithDetails_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeIngestFailed, "vector indexing failed", nil)

	// When: adding details
	err = err.WithDetail("document_id", "doc-42")
	err = err.WithDetail("chunks", "17")

	// Then: details are available
	assert.Equal(t, "doc-42", err.Details["document_id"])
	assert.Equal(t, "17", err.Details["chunks"])
}

func TestSentinelError_WithSuggestion_AddsSuggestion(t *testing.T) {
	// Given: a provider error
	err := New(ErrCodeProviderUnavailable, "ollama is not running", nil)

	// When: adding suggestion
	err = err.WithSuggestion("Start Ollama or switch to the static provider")

	// Then: suggestion is available
	assert.Equal(t, "Start Ollama or switch to the static provider", err.Suggestion)
}

func TestCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		expected Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeChunkConfigInvalid, CategoryConfig},
		{ErrCodeCorruptIndex, CategoryStorage},
		{ErrCodeProviderTimeout, CategoryProvider},
		{ErrCodeAccessDenied, CategoryValidation},
		{ErrCodeSearchFailed, CategoryInternal},
		{"bogus", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, categoryFromCode(tt.code))
		})
	}
}

func TestIsRetryable_ProviderErrorsOnly(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeProviderTimeout, "timeout", nil)))
	assert.True(t, IsRetryable(New(ErrCodeEmbedFailed, "embed failed", nil)))
	assert.False(t, IsRetryable(New(ErrCodeConfigInvalid, "bad config", nil)))
	assert.False(t, IsRetryable(errors.New("plain error")))
	assert.False(t, IsRetryable(nil))
}

func TestIsFatal_CorruptIndex(t *testing.T) {
	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "index corrupted", nil)))
	assert.False(t, IsFatal(New(ErrCodeSearchFailed, "search failed", nil)))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	var typed *SentinelError = Wrap(ErrCodeInternal, nil)
	assert.Nil(t, typed)
}
