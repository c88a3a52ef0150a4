package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clarvoy/clarvoy/internal/ports"
)

// TestErrorClassifier_ClassifyHTTPError maps status codes to error types.
func TestErrorClassifier_ClassifyHTTPError(t *testing.T) {
	ec := &ErrorClassifier{Provider: ProviderOpenAI}

	tests := []struct {
		status int
		want   ErrorType
	}{
		{http.StatusUnauthorized, ErrorTypeAuthentication},
		{http.StatusForbidden, ErrorTypeAuthentication},
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusNotFound, ErrorTypeNotFound},
		{http.StatusRequestTimeout, ErrorTypeTimeout},
		{http.StatusGatewayTimeout, ErrorTypeTimeout},
		{http.StatusBadGateway, ErrorTypeServerError},
		{http.StatusUnprocessableEntity, ErrorTypeBadRequest},
		{http.StatusOK, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ec.ClassifyHTTPError(tt.status, "msg", nil)
			assert.Equal(t, tt.want, err.Type)
			assert.Equal(t, tt.status, err.StatusCode)
		})
	}
}

// TestErrorClassifier_ClassifyContextError covers deadline and cancel.
func TestErrorClassifier_ClassifyContextError(t *testing.T) {
	ec := &ErrorClassifier{Provider: ProviderClaude}

	assert.Equal(t, ErrorTypeTimeout, ec.ClassifyContextError(context.DeadlineExceeded).Type)
	assert.Equal(t, ErrorTypeNetwork, ec.ClassifyContextError(context.Canceled).Type)
	assert.Equal(t, ErrorTypeUnknown, ec.ClassifyContextError(errors.New("x")).Type)
}

// TestProviderError_PortSentinels checks the mapping onto ports sentinels.
func TestProviderError_PortSentinels(t *testing.T) {
	rate := NewProviderError("p", ErrorTypeRateLimit, 429, "", nil)
	server := NewProviderError("p", ErrorTypeServerError, 500, "", nil)
	timeout := NewProviderError("p", ErrorTypeTimeout, 0, "", nil)
	network := NewProviderError("p", ErrorTypeNetwork, 0, "", nil)

	assert.ErrorIs(t, rate, ports.ErrRateLimited)
	assert.ErrorIs(t, server, ports.ErrServiceUnavailable)
	assert.ErrorIs(t, timeout, ports.ErrTimeout)
	assert.NotErrorIs(t, network, ports.ErrServiceUnavailable)
	assert.NotErrorIs(t, rate, ports.ErrTimeout)
}

// TestProviderError_Error checks the message layout.
func TestProviderError_Error(t *testing.T) {
	err := NewProviderError("claude", ErrorTypeRateLimit, 429, "claude rate limit exceeded", errors.New("body"))
	assert.Equal(t, "claude error (HTTP 429) [rate_limit]: claude rate limit exceeded: body", err.Error())

	bare := NewProviderError("gemini", ErrorTypeUnknown, 0, "", nil)
	assert.Equal(t, "gemini error", bare.Error())
}

// TestParseRequestOptions covers defaults, JSON-style numbers and
// passthrough keys.
func TestParseRequestOptions(t *testing.T) {
	opts := ParseRequestOptions(map[string]any{
		"max_tokens":  float64(1024),
		"system":      "be brief",
		"temperature": 3.5,
		"top_p":       0.9,
		"seed":        7,
	}, "default-model")

	assert.Equal(t, 1024, opts.MaxTokens)
	assert.Equal(t, "default-model", opts.Model)
	assert.Equal(t, "be brief", opts.System)
	assert.Nil(t, opts.Temperature, "out of range temperature is dropped")
	if assert.NotNil(t, opts.TopP) {
		assert.InDelta(t, 0.9, *opts.TopP, 1e-9)
	}
	assert.Equal(t, map[string]any{"seed": 7}, opts.Extra)

	defaults := ParseRequestOptions(map[string]any{"max_tokens": -1, "model": ""}, "m")
	assert.Equal(t, DefaultMaxTokens, defaults.MaxTokens)
	assert.Equal(t, "m", defaults.Model)
}

// TestSafeInt covers accepted and rejected numeric forms.
func TestSafeInt(t *testing.T) {
	tests := []struct {
		in     any
		want   int
		wantOK bool
	}{
		{5, 5, true},
		{int64(6), 6, true},
		{float64(7), 7, true},
		{7.5, 0, false},
		{"8", 0, false},
		{float64(1 << 40), 0, false},
	}
	for _, tt := range tests {
		got, ok := SafeInt(tt.in)
		assert.Equal(t, tt.wantOK, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}
