// Package llm talks to the chat models behind Clarvoy's decision coach.
//
// Each supported provider (OpenAI, Anthropic's Claude, Google's Gemini)
// implements CoreLLM. A Client wraps a provider in a chain of Middleware for
// rate limiting, retries, circuit breaking, timeouts, metrics and tracing,
// and exposes the result as a ports.LLMClient. The Registry maps coaching
// provider ids to lazily built clients.
//
// Basic usage:
//
//	client, err := llm.NewClient(llm.ProviderOpenAI, llm.ClientConfig{
//	    APIKey: os.Getenv("AI_INTEGRATIONS_OPENAI_API_KEY"),
//	    Model:  "gpt-5.2",
//	    Middleware: []llm.Middleware{
//	        llm.TimeoutMiddleware(60 * time.Second),
//	        llm.RetryMiddleware(2, time.Second, 8*time.Second),
//	    },
//	})
//	reply, err := client.Complete(ctx, "How do I run a pre-mortem?", map[string]any{
//	    "system":     coachPrompt,
//	    "max_tokens": 8192,
//	})
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/clarvoy/clarvoy/internal/ports"
)

// Coaching provider ids.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// CoreLLM is the minimal contract a provider implements. Middleware wraps
// CoreLLM values, so every layer of the chain satisfies it too.
type CoreLLM interface {
	// DoRequest sends prompt and returns the response text plus input and
	// output token counts.
	DoRequest(ctx context.Context, prompt string, opts map[string]any) (response string, tokensIn, tokensOut int, err error)

	// GetModel returns the model requests are sent to.
	GetModel() string

	// SetModel changes the model for subsequent requests.
	SetModel(model string)
}

// TokenEstimator approximates token counts before a request is sent.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// ClientConfig holds everything needed to build a Client.
type ClientConfig struct {
	// APIKey authenticates requests to the provider.
	APIKey string

	// Model names the provider model.
	Model string

	// BaseURL overrides the provider endpoint, e.g. for a proxy.
	BaseURL string

	// Timeout bounds the underlying HTTP client. Zero keeps the SDK default.
	Timeout time.Duration

	// TokenEstimator overrides the character based default.
	TokenEstimator TokenEstimator

	// Middleware is applied in order; the first entry is outermost.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM to add behaviour around each request.
type Middleware func(CoreLLM) CoreLLM

// Client implements ports.LLMClient on top of a middleware chain.
type Client struct {
	provider  string
	core      CoreLLM
	estimator TokenEstimator
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient builds a client for the named provider.
func NewClient(provider string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}
	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := providerFactories[provider]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", provider, err)
	}

	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = NewTokenCounter()
	}

	return &Client{provider: provider, core: core, estimator: estimator}, nil
}

// Provider returns the coaching provider id the client was built for.
func (c *Client) Provider() string { return c.provider }

// Complete sends prompt and returns only the response text.
func (c *Client) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	response, _, _, err := c.CompleteWithUsage(ctx, prompt, options)
	return response, err
}

// CompleteWithUsage sends prompt through the middleware chain. Failures are
// returned as *ports.LLMError so callers can check retryability without
// knowing about provider specific types.
func (c *Client) CompleteWithUsage(ctx context.Context, prompt string, options map[string]any) (string, int, int, error) {
	response, tokensIn, tokensOut, err := c.core.DoRequest(ctx, prompt, options)
	if err != nil {
		return "", 0, 0, ports.NewLLMError(c.provider, c.core.GetModel(), err)
	}
	return response, tokensIn, tokensOut, nil
}

// EstimateTokens approximates the token count of text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the configured model.
func (c *Client) GetModel() string { return c.core.GetModel() }

// ProviderFactory builds a CoreLLM from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory makes a provider available to NewClient.
// It is called from init functions and is not safe for concurrent use.
func RegisterProviderFactory(provider string, factory ProviderFactory) {
	providerFactories[provider] = factory
}
