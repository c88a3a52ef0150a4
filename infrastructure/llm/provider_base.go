package llm

import (
	"sync"
	"unicode/utf8"
)

// DefaultMaxTokens caps responses when the caller does not say otherwise.
const DefaultMaxTokens = 8192

// BaseProvider holds the model name behind a lock so SetModel can race with
// in-flight requests.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the current model.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel replaces the model.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the normalised form of the options map passed to
// DoRequest.
type RequestOptions struct {
	MaxTokens int
	Model     string
	// System is the system prompt, sent through each provider's native
	// channel for it.
	System      string
	Temperature *float64
	TopP        *float64
	// Extra carries options the common set does not cover.
	Extra map[string]any
}

// ParseRequestOptions reads the recognised keys from opts, falling back to
// defaults for anything missing or out of range.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: ExtractOptionalInt(opts, "max_tokens", DefaultMaxTokens, IsPositiveInt),
		Model:     ExtractOptionalString(opts, "model", defaultModel, IsNonEmptyString),
		System:    ExtractOptionalString(opts, "system", "", nil),
		Extra:     make(map[string]any),
	}

	if temp := ExtractOptionalFloat64(opts, "temperature", -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}
	if topP := ExtractOptionalFloat64(opts, "top_p", -1, IsValidTopP); topP != -1 {
		options.TopP = &topP
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "temperature", "top_p":
		default:
			options.Extra[k] = v
		}
	}

	return options
}

// TokenCounter estimates tokens from character counts.
type TokenCounter struct {
	CharactersPerToken float64
}

// NewTokenCounter returns a counter tuned for English prose.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4.0}
}

// EstimateTokens returns ceil(runes / CharactersPerToken).
func (tc *TokenCounter) EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	est := int(float64(n)/tc.CharactersPerToken + 0.999)
	if est < 1 {
		return 1
	}
	return est
}

// Count prefers the provider reported count and estimates otherwise.
func (tc *TokenCounter) Count(reported int64, text string) int {
	if reported > 0 {
		return int(reported)
	}
	return tc.EstimateTokens(text)
}
