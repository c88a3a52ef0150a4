package ports

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestLLMError tests the functionality of the LLMError error type.
// It covers message formatting, unwrapping and the retryable classification.
func TestLLMError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := NewLLMError("claude", "claude-sonnet-4-5", ErrInvalidResponse)

		assert.Equal(t, "llm error: provider=claude, model=claude-sonnet-4-5, err=invalid response", err.Error())
		assert.True(t, errors.Is(err, ErrInvalidResponse))
	})

	t.Run("with retry after", func(t *testing.T) {
		retryAfter := 30 * time.Second
		err := &LLMError{Provider: "openai", Model: "gpt-5.2", Err: ErrRateLimited, RetryAfter: &retryAfter}

		assert.Contains(t, err.Error(), "retry_after=30s")
	})

	t.Run("retryable errors", func(t *testing.T) {
		for _, baseErr := range []error{ErrRateLimited, ErrServiceUnavailable, ErrTimeout} {
			err := NewLLMError("gemini", "gemini-2.5-flash", baseErr)
			assert.True(t, err.IsRetryable(), "%v should be retryable", baseErr)
		}

		for _, baseErr := range []error{ErrInvalidResponse, errors.New("bad api key")} {
			err := NewLLMError("gemini", "gemini-2.5-flash", baseErr)
			assert.False(t, err.IsRetryable(), "%v should not be retryable", baseErr)
		}
	})
}

// TestStoreError verifies formatting and unwrapping of persistence failures.
func TestStoreError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewStoreError("create judgment", cause)

	assert.Equal(t, "storage: create judgment: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}
