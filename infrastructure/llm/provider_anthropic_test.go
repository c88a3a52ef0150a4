package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claudeMessage(texts ...string) map[string]any {
	content := make([]map[string]any, 0, len(texts))
	for _, text := range texts {
		content = append(content, map[string]any{"type": "text", "text": text})
	}
	return map[string]any{
		"id":            "msg_1",
		"type":          "message",
		"role":          "assistant",
		"model":         ClaudeDefaultModel,
		"content":       content,
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": 30, "output_tokens": 12},
	}
}

// TestClaudeProvider_DoRequest checks that the system prompt travels in the
// system field and multiple text blocks are joined.
func TestClaudeProvider_DoRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ClaudeDefaultModel, req["model"])
		assert.Equal(t, float64(8192), req["max_tokens"])
		assert.Equal(t, 1.0, req["temperature"], "temperature is capped at 1.0")

		system := req["system"].([]any)
		require.Len(t, system, 1)
		assert.Equal(t, "You are a coach.", system[0].(map[string]any)["text"])

		messages := req["messages"].([]any)
		require.Len(t, messages, 1)
		assert.Equal(t, "user", messages[0].(map[string]any)["role"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(claudeMessage("Consider ", "base rates."))
	}))
	defer server.Close()

	provider, err := newClaudeProvider(ClientConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	response, tokensIn, tokensOut, err := provider.DoRequest(context.Background(), "Help", map[string]any{
		"system":      "You are a coach.",
		"temperature": 1.5,
	})

	require.NoError(t, err)
	assert.Equal(t, "Consider base rates.", response)
	assert.Equal(t, 30, tokensIn)
	assert.Equal(t, 12, tokensOut)
}

// TestClaudeProvider_DoRequest_Errors checks status classification and that
// the SDK does not retry on its own.
func TestClaudeProvider_DoRequest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantType ErrorType
	}{
		{"rate_limited", http.StatusTooManyRequests, ErrorTypeRateLimit},
		{"overloaded", http.StatusServiceUnavailable, ErrorTypeServerError},
		{"forbidden", http.StatusForbidden, ErrorTypeAuthentication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"type":  "error",
					"error": map[string]any{"type": "api_error", "message": "nope"},
				})
			}))
			defer server.Close()

			provider, err := newClaudeProvider(ClientConfig{APIKey: "test-key", BaseURL: server.URL})
			require.NoError(t, err)

			_, _, _, err = provider.DoRequest(context.Background(), "p", nil)

			var perr *ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantType, perr.Type)
			assert.Equal(t, ProviderClaude, perr.Provider)
			assert.Equal(t, 1, calls)
		})
	}
}

// TestClaudeProvider_DoRequest_Cancelled checks that cancellation is
// reported as a context error.
func TestClaudeProvider_DoRequest_Cancelled(t *testing.T) {
	provider, err := newClaudeProvider(ClientConfig{APIKey: "test-key", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, _, err = provider.DoRequest(ctx, "p", nil)

	assert.ErrorIs(t, err, context.Canceled)
}
