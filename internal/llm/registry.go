package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/soyeahso/steve/internal/config"
	"github.com/soyeahso/steve/internal/logging"
)

// Known OpenAI-compatible endpoints.
const (
	MistralBaseURL    = "https://api.mistral.ai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Registry manages provider clients and resolves model references to clients.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client // provider name → client
	aliases  map[string]string // bare model name → provider name
	fallback string            // default provider name
	log      *logging.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients: make(map[string]Client),
		aliases: make(map[string]string),
		log:     log.Sub("llm.registry"),
	}
}

// Register adds a client under the given provider name.
func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = client
	r.log.Info().Str("provider", name).Msg("registered LLM provider")
}

// Alias maps a bare model name to a provider, so that "gemini-2.0-flash"
// resolves like "gemini:gemini-2.0-flash".
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// SetFallback sets the provider used for bare model names with no alias.
func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// ParseModelRef splits "provider:model" on the first colon. A reference
// without a colon has an empty provider.
func ParseModelRef(ref string) (provider, model string) {
	provider, model, ok := strings.Cut(ref, ":")
	if !ok {
		return "", ref
	}
	return provider, model
}

// Resolve returns the Client and provider-local model name for ref.
// Resolution order: explicit provider prefix → alias → fallback.
func (r *Registry) Resolve(ref string) (Client, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, model := ParseModelRef(ref)
	if provider != "" {
		if c, ok := r.clients[provider]; ok {
			return c, model, nil
		}
		return nil, "", fmt.Errorf("no LLM provider %q for model %q", provider, ref)
	}

	if p, ok := r.aliases[model]; ok {
		if c, ok := r.clients[p]; ok {
			return c, model, nil
		}
	}

	if r.fallback != "" {
		if c, ok := r.clients[r.fallback]; ok {
			return c, model, nil
		}
	}

	return nil, "", fmt.Errorf("no LLM provider for model %q", ref)
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for n := range r.clients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig builds a Registry with one client per provider that
// has credentials. Well-known provider names pick their API and endpoint;
// other names must set api explicitly.
func NewRegistryFromConfig(cfg config.ModelsConfig, log *logging.Logger) (*Registry, error) {
	reg := NewRegistry(log)

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := cfg.Providers[name]
		if p.APIKey == "" {
			reg.log.Debug().Str("provider", name).Msg("no API key, skipping provider")
			continue
		}

		client, err := newProviderClient(name, p, log)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		reg.Register(name, client)
	}

	if provider, _ := ParseModelRef(cfg.Reasoning); provider != "" {
		reg.SetFallback(provider)
	}
	return reg, nil
}

func newProviderClient(name string, p config.ProviderConfig, log *logging.Logger) (Client, error) {
	api := p.API
	if api == "" {
		switch name {
		case "gemini", "google":
			api = "gemini"
		case "anthropic", "claude":
			api = "anthropic"
		case "mistral", "openrouter", "openai":
			api = "openai"
		default:
			return nil, fmt.Errorf("unknown provider; set api to gemini, openai or anthropic")
		}
	}

	baseURL := p.BaseURL
	if baseURL == "" {
		switch name {
		case "mistral":
			baseURL = MistralBaseURL
		case "openrouter":
			baseURL = OpenRouterBaseURL
		}
	}

	switch api {
	case "gemini":
		return NewGeminiClient(context.Background(), name, p.APIKey, baseURL, log)
	case "openai":
		return NewOpenAIClient(name, p.APIKey, baseURL, log), nil
	case "anthropic":
		return NewAnthropicClient(name, p.APIKey, baseURL, log), nil
	default:
		return nil, fmt.Errorf("unsupported api %q", api)
	}
}
