package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeDefaultModel is the coaching model used when none is configured.
const ClaudeDefaultModel = "claude-sonnet-4-5"

func init() {
	RegisterProviderFactory(ProviderClaude, newClaudeProvider)
}

// claudeProvider implements CoreLLM with Anthropic's messages API.
type claudeProvider struct {
	BaseProvider
	client       anthropic.Client
	tokenCounter *TokenCounter
	classifier   *ErrorClassifier
}

func newClaudeProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = ClaudeDefaultModel
	}

	// Retries are handled by RetryMiddleware.
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey), option.WithMaxRetries(0)}
	if config.BaseURL != "" {
		baseURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: timeout}))
	}

	return &claudeProvider{
		BaseProvider: BaseProvider{model: model},
		client:       anthropic.NewClient(opts...),
		tokenCounter: NewTokenCounter(),
		classifier:   &ErrorClassifier{Provider: ProviderClaude},
	}, nil
}

// DoRequest sends the prompt as a single user turn with the system prompt in
// the dedicated system field.
func (p *claudeProvider) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	options := ParseRequestOptions(opts, p.GetModel())

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(options.Model),
		MaxTokens: int64(options.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if options.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: options.System}}
	}
	if options.Temperature != nil {
		// Claude accepts at most 1.0.
		params.Temperature = anthropic.Float(ClampFloat64(*options.Temperature, MinTemperature, 1.0))
	}
	if options.TopP != nil {
		params.TopP = anthropic.Float(*options.TopP)
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	content := text.String()
	if content == "" {
		return "", 0, 0, NewProviderError(ProviderClaude, ErrorTypeUnknown, 0, "", ErrEmptyResponse)
	}

	tokensIn := p.tokenCounter.Count(message.Usage.InputTokens, options.System+prompt)
	tokensOut := p.tokenCounter.Count(message.Usage.OutputTokens, content)
	return content, tokensIn, tokensOut, nil
}

func (p *claudeProvider) handleError(err error) error {
	if isContextError(err) {
		return p.classifier.ClassifyContextError(err)
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return p.classifier.ClassifyHTTPError(apiErr.StatusCode, http.StatusText(apiErr.StatusCode), err)
	}

	return NewProviderError(ProviderClaude, ErrorTypeNetwork, 0, "request failed", err)
}
