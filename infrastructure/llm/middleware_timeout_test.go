package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTimeoutMiddleware checks that slow providers are cut off and fast
// ones see a context carrying the deadline.
func TestTimeoutMiddleware(t *testing.T) {
	t.Run("slow_provider_times_out", func(t *testing.T) {
		core := newFakeCore()
		core.delay = time.Second
		wrapped := TimeoutMiddleware(20 * time.Millisecond)(core)

		_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("fast_provider_succeeds", func(t *testing.T) {
		core := newFakeCore()
		wrapped := TimeoutMiddleware(time.Second)(core)

		response, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)

		require.NoError(t, err)
		assert.Equal(t, "test response", response)
		_, hasDeadline := core.lastCtx.Deadline()
		assert.True(t, hasDeadline)
	})
}
