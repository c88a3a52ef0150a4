package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// TestRateLimitMiddleware_Paces checks that requests beyond the burst wait
// for a token.
func TestRateLimitMiddleware_Paces(t *testing.T) {
	core := newFakeCore()
	wrapped := RateLimitMiddleware(rate.Every(50*time.Millisecond), 1)(core)
	ctx := context.Background()

	start := time.Now()
	for range 3 {
		_, _, _, err := wrapped.DoRequest(ctx, "p", nil)
		require.NoError(t, err)
	}

	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, 3, core.callCount())
}

// TestRateLimitMiddleware_ContextCancelled checks that a waiting caller gives
// up when its context ends.
func TestRateLimitMiddleware_ContextCancelled(t *testing.T) {
	core := newFakeCore()
	wrapped := RateLimitMiddleware(rate.Every(time.Hour), 1)(core)

	_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, _, _, err = wrapped.DoRequest(ctx, "p", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, 1, core.callCount())
}
