package ports

import (
	"errors"
	"fmt"
	"time"
)

// Errors shared by adapters behind the ports.
var (
	// ErrRateLimited indicates that the remote service throttled the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the remote service is down.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that the operation exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrInvalidResponse indicates a response that could not be used.
	ErrInvalidResponse = errors.New("invalid response")
)

// LLMError represents an error from a coaching provider call.
type LLMError struct {
	// Provider is the coaching provider id (openai, claude, gemini).
	Provider string

	// Model is the model that was addressed.
	Model string

	// Err is the underlying error.
	Err error

	// RetryAfter is set when the provider told us when to come back.
	RetryAfter *time.Duration
}

// Error implements the error interface for LLMError.
func (e *LLMError) Error() string {
	msg := fmt.Sprintf("llm error: provider=%s, model=%s, err=%v", e.Provider, e.Model, e.Err)
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(", retry_after=%v", *e.RetryAfter)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *LLMError) Unwrap() error { return e.Err }

// IsRetryable reports whether the failure is transient.
func (e *LLMError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewLLMError creates a new LLMError with the given details.
func NewLLMError(provider, model string, err error) *LLMError {
	return &LLMError{
		Provider: provider,
		Model:    model,
		Err:      err,
	}
}

// StoreError wraps a persistence failure with the operation that caused it.
type StoreError struct {
	// Operation names the store method, e.g. "create judgment".
	Operation string

	// Err is the underlying driver error.
	Err error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError creates a new StoreError.
func NewStoreError(operation string, err error) *StoreError {
	return &StoreError{Operation: operation, Err: err}
}
