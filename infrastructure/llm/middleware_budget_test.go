package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewBudgetManager rejects negative limits.
func TestNewBudgetManager(t *testing.T) {
	tests := []struct {
		name    string
		budget  Budget
		wantErr string
	}{
		{"unlimited", Budget{}, ""},
		{"limited", Budget{MaxTokens: 100, MaxCalls: 3, Window: time.Hour}, ""},
		{"negative_tokens", Budget{MaxTokens: -1}, "max_tokens cannot be negative"},
		{"negative_calls", Budget{MaxCalls: -1}, "max_calls cannot be negative"},
		{"negative_window", Budget{Window: -time.Second}, "window cannot be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBudgetManager(tt.budget)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestBudgetMiddleware stops requests once a limit is spent.
func TestBudgetMiddleware(t *testing.T) {
	t.Run("call_limit", func(t *testing.T) {
		manager, err := NewBudgetManager(Budget{MaxCalls: 2})
		require.NoError(t, err)
		core := newFakeCore()
		wrapped := BudgetMiddleware(manager)(core)

		for range 2 {
			_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
			require.NoError(t, err)
		}
		_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)

		require.ErrorIs(t, err, ErrBudgetExceeded)
		var budgetErr *BudgetExceededError
		require.True(t, errors.As(err, &budgetErr))
		assert.Equal(t, "calls", budgetErr.Resource)
		assert.Equal(t, int64(2), budgetErr.Used)
		assert.Equal(t, 2, core.calls)
	})

	t.Run("token_limit", func(t *testing.T) {
		manager, err := NewBudgetManager(Budget{MaxTokens: 50})
		require.NoError(t, err)
		wrapped := BudgetMiddleware(manager)(newFakeCore())

		// 30 tokens per call: the second call is admitted at 30 and ends at 60.
		for range 2 {
			_, _, _, err := wrapped.DoRequest(context.Background(), "p", nil)
			require.NoError(t, err)
		}
		_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)
		require.ErrorIs(t, err, ErrBudgetExceeded)
		assert.Equal(t, "coaching budget exceeded: tokens used 60 of 50", err.Error())
	})

	t.Run("failed_calls_count", func(t *testing.T) {
		manager, err := NewBudgetManager(Budget{MaxCalls: 1})
		require.NoError(t, err)
		core := newFakeCore()
		core.err = errSimulated
		wrapped := BudgetMiddleware(manager)(core)

		_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)
		assert.ErrorIs(t, err, errSimulated)
		_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)
		assert.ErrorIs(t, err, ErrBudgetExceeded)
	})
}

// TestBudgetManager_WindowResets clears usage once the window passes.
func TestBudgetManager_WindowResets(t *testing.T) {
	manager, err := NewBudgetManager(Budget{MaxCalls: 1, Window: time.Hour})
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return now }
	manager.windowStart = now

	wrapped := BudgetMiddleware(manager)(newFakeCore())
	_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)
	require.NoError(t, err)
	_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)
	require.ErrorIs(t, err, ErrBudgetExceeded)

	now = now.Add(time.Hour)
	tokens, calls := manager.Usage()
	assert.Zero(t, tokens)
	assert.Zero(t, calls)
	_, _, _, err = wrapped.DoRequest(context.Background(), "p", nil)
	assert.NoError(t, err)
}

// TestBudgetMiddleware_Concurrent admits exactly MaxCalls requests.
func TestBudgetMiddleware_Concurrent(t *testing.T) {
	manager, err := NewBudgetManager(Budget{MaxCalls: 5})
	require.NoError(t, err)
	wrapped := BudgetMiddleware(manager)(newFakeCore())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, _, err := wrapped.DoRequest(context.Background(), "p", nil); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, admitted)
	_, calls := manager.Usage()
	assert.Equal(t, int64(5), calls)
}
