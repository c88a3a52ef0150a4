package llm

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/clarvoy/clarvoy/internal/ports"
)

// ProviderDefinition describes one coaching provider.
type ProviderDefinition struct {
	// ID is the value clients send in the chat request ("openai").
	ID string
	// Name is the display name ("OpenAI").
	Name string
	// Model is the model requests go to.
	Model string
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string
	// BaseURLEnv names the environment variable holding an optional
	// endpoint override.
	BaseURLEnv string
}

// DefaultProviders lists the coaching providers in display order.
var DefaultProviders = []ProviderDefinition{
	{
		ID:         ProviderOpenAI,
		Name:       "OpenAI",
		Model:      OpenAIDefaultModel,
		APIKeyEnv:  "AI_INTEGRATIONS_OPENAI_API_KEY",
		BaseURLEnv: "AI_INTEGRATIONS_OPENAI_BASE_URL",
	},
	{
		ID:         ProviderClaude,
		Name:       "Claude",
		Model:      ClaudeDefaultModel,
		APIKeyEnv:  "AI_INTEGRATIONS_ANTHROPIC_API_KEY",
		BaseURLEnv: "AI_INTEGRATIONS_ANTHROPIC_BASE_URL",
	},
	{
		ID:         ProviderGemini,
		Name:       "Gemini",
		Model:      GeminiDefaultModel,
		APIKeyEnv:  "AI_INTEGRATIONS_GEMINI_API_KEY",
		BaseURLEnv: "AI_INTEGRATIONS_GEMINI_BASE_URL",
	},
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Providers defaults to DefaultProviders.
	Providers []ProviderDefinition
	// DefaultProvider is used for empty or unknown ids. Defaults to openai.
	DefaultProvider string
	// Timeout bounds the underlying HTTP client of every provider.
	Timeout time.Duration
	// Middleware builds the chain for a provider. It receives the provider
	// id so metrics and traces can be labelled.
	Middleware func(provider string) []Middleware
	// Getenv reads credentials. Defaults to os.Getenv.
	Getenv func(string) string
}

// Registry maps coaching provider ids to clients, building each one on
// first use.
type Registry struct {
	providers       []ProviderDefinition
	byID            map[string]ProviderDefinition
	defaultProvider string
	timeout         time.Duration
	middleware      func(string) []Middleware
	getenv          func(string) string

	mu      sync.RWMutex
	clients map[string]ports.LLMClient
}

// NewRegistry validates config and returns an empty registry.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	providers := config.Providers
	if len(providers) == 0 {
		providers = DefaultProviders
	}
	defaultProvider := config.DefaultProvider
	if defaultProvider == "" {
		defaultProvider = ProviderOpenAI
	}

	byID := make(map[string]ProviderDefinition, len(providers))
	for _, p := range providers {
		if p.ID == "" || p.Model == "" {
			return nil, fmt.Errorf("provider %q: id and model are required", p.ID)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("provider %q registered twice", p.ID)
		}
		byID[p.ID] = p
	}
	if _, ok := byID[defaultProvider]; !ok {
		return nil, fmt.Errorf("default provider %q not found in providers configuration", defaultProvider)
	}

	getenv := config.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	return &Registry{
		providers:       providers,
		byID:            byID,
		defaultProvider: defaultProvider,
		timeout:         config.Timeout,
		middleware:      config.Middleware,
		getenv:          getenv,
		clients:         make(map[string]ports.LLMClient),
	}, nil
}

// Providers returns the definitions in display order.
func (r *Registry) Providers() []ProviderDefinition {
	out := make([]ProviderDefinition, len(r.providers))
	copy(out, r.providers)
	return out
}

// DefaultProvider returns the fallback provider id.
func (r *Registry) DefaultProvider() string { return r.defaultProvider }

// Resolve returns the definition for id. Empty or unknown ids resolve to
// the default provider with ok set to false.
func (r *Registry) Resolve(id string) (def ProviderDefinition, ok bool) {
	if p, found := r.byID[id]; found {
		return p, true
	}
	return r.byID[r.defaultProvider], false
}

// Suggest returns the known provider id closest to id by edit distance, or
// "" when nothing is within two edits.
func (r *Registry) Suggest(id string) string {
	best, bestDist := "", 3
	for _, p := range r.providers {
		if d := levenshtein.ComputeDistance(id, p.ID); d < bestDist {
			best, bestDist = p.ID, d
		}
	}
	return best
}

// Client returns the cached client for a known provider id, building it
// from the environment on first use.
func (r *Registry) Client(id string) (ports.LLMClient, error) {
	def, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", id)
	}

	r.mu.RLock()
	client, exists := r.clients[id]
	r.mu.RUnlock()
	if exists {
		return client, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, exists := r.clients[id]; exists {
		return client, nil
	}

	client, err := r.createClient(def)
	if err != nil {
		return nil, err
	}
	r.clients[id] = client
	return client, nil
}

// RegisterClient installs a prebuilt client for a known provider id,
// replacing any cached one.
func (r *Registry) RegisterClient(id string, client ports.LLMClient) error {
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("unknown provider %q", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[id] = client
	return nil
}

func (r *Registry) createClient(def ProviderDefinition) (ports.LLMClient, error) {
	apiKey := r.getenv(def.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set for provider %q", def.APIKeyEnv, def.ID)
	}

	config := ClientConfig{
		APIKey:  apiKey,
		Model:   def.Model,
		BaseURL: r.getenv(def.BaseURLEnv),
		Timeout: r.timeout,
	}
	if r.middleware != nil {
		config.Middleware = r.middleware(def.ID)
	}

	return NewClient(def.ID, config)
}
