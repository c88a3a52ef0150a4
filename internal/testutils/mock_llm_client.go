// Package testutils provides test doubles shared across packages.
package testutils

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/clarvoy/clarvoy/internal/ports"
)

var _ ports.LLMClient = (*MockLLMClient)(nil)

// MockLLMClient is a testify mock of ports.LLMClient.
type MockLLMClient struct {
	mock.Mock
	model string
}

// NewMockLLMClient returns a mock reporting model from GetModel.
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{model: model}
}

// NewCoachStub returns a mock that answers every CompleteWithUsage call with
// reply and fixed token counts.
func NewCoachStub(model, reply string) *MockLLMClient {
	m := NewMockLLMClient(model)
	m.On("CompleteWithUsage", mock.Anything, mock.Anything, mock.Anything).Return(reply, 12, 34, nil)
	return m
}

// Complete records the call and returns the configured response.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	args := m.Called(ctx, prompt, options)
	return args.String(0), args.Error(1)
}

// CompleteWithUsage records the call and returns the configured response
// and token counts.
func (m *MockLLMClient) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	args := m.Called(ctx, prompt, options)
	return args.String(0), args.Int(1), args.Int(2), args.Error(3)
}

// EstimateTokens approximates four characters per token.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	return len(text) / 4, nil
}

// GetModel returns the model given at construction.
func (m *MockLLMClient) GetModel() string { return m.model }

// LastOptions returns the options of the most recent completion call, or
// nil when there has been none. Call it once the calls have completed.
func (m *MockLLMClient) LastOptions() map[string]any {
	for i := len(m.Calls) - 1; i >= 0; i-- {
		c := m.Calls[i]
		if c.Method == "Complete" || c.Method == "CompleteWithUsage" {
			opts, _ := c.Arguments.Get(2).(map[string]any)
			return opts
		}
	}
	return nil
}
