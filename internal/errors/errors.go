package errors

import (
	"fmt"
)

// SentinelError is the structured error type for sentinel-rag.
// It provides rich context for error handling, logging, and API responses.
type SentinelError struct {
	// Code is the unique error code (e.g., "ERR_103_CHUNK_CONFIG_INVALID").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Provider, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the operator.
	Suggestion string
}

// Error implements the error interface.
func (e *SentinelError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SentinelError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SentinelError.
func (e *SentinelError) Is(target error) bool {
	if t, ok := target.(*SentinelError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SentinelError) WithDetail(key, value string) *SentinelError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the operator.
// Returns the error for method chaining.
func (e *SentinelError) WithSuggestion(suggestion string) *SentinelError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SentinelError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SentinelError {
	return &SentinelError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SentinelError from an existing error.
// The error's message becomes the SentinelError message.
func Wrap(code string, err error) *SentinelError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SentinelError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ChunkConfigError creates an error for invalid chunking parameters.
func ChunkConfigError(message string, cause error) *SentinelError {
	return New(ErrCodeChunkConfigInvalid, message, cause)
}

// StorageError creates a storage-related error.
func StorageError(message string, cause error) *SentinelError {
	return New(ErrCodeStoreUnavailable, message, cause)
}

// ProviderError creates an embedding-provider error.
// Provider errors are typically retryable.
func ProviderError(message string, cause error) *SentinelError {
	return New(ErrCodeProviderUnavailable, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *SentinelError {
	return New(ErrCodeInvalidInput, message, cause)
}

// IngestError creates an ingestion-failure error.
func IngestError(message string, cause error) *SentinelError {
	return New(ErrCodeIngestFailed, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SentinelError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a SentinelError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SentinelError); ok {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SentinelError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a SentinelError.
// Returns empty string if not a SentinelError.
func GetCode(err error) string {
	if se, ok := err.(*SentinelError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SentinelError.
// Returns empty string if not a SentinelError.
func GetCategory(err error) Category {
	if se, ok := err.(*SentinelError); ok {
		return se.Category
	}
	return ""
}
