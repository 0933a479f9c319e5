package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sidekick-dev/sidekick/internal/logging"
	"github.com/sidekick-dev/sidekick/pkg/types"
)

// Resolution failures are configuration problems; sentinels let callers
// classify them without parsing message text.
var (
	// ErrProviderNotConfigured reports a provider id with no registered
	// provider behind it.
	ErrProviderNotConfigured = errors.New("provider not configured")
	// ErrModelNotFound reports a model id the provider does not serve.
	ErrModelNotFound = errors.New("model not found")
	// ErrNoModels reports an empty registry with no default to fall back on.
	ErrNoModels = errors.New("no models available")
)

// KeySource resolves an API key for a provider; the secret store and plain
// config both satisfy it.
type KeySource interface {
	Get(ctx context.Context, provider string) (string, error)
}

// Registry holds the configured providers.
type Registry struct {
	mu           sync.RWMutex
	providers    map[string]Provider
	defaultModel string
}

// NewRegistry creates an empty registry with the given default model
// ("provider/model" or empty).
func NewRegistry(defaultModel string) *Registry {
	return &Registry{
		providers:    make(map[string]Provider),
		defaultModel: defaultModel,
	}
}

// Register adds a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Get returns the provider with the given id.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, providerID)
	}
	return p, nil
}

// List returns all providers sorted by id.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID() < providers[j].ID() })
	return providers
}

// GetModel returns one model of one provider.
func (r *Registry) GetModel(providerID, modelID string) (*types.Model, error) {
	p, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}
	for _, m := range p.Models() {
		if m.ID == modelID {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrModelNotFound, providerID, modelID)
}

// AllModels returns every model of every provider.
func (r *Registry) AllModels() []types.Model {
	var models []types.Model
	for _, p := range r.List() {
		models = append(models, p.Models()...)
	}
	return models
}

// DefaultModel resolves the configured default, falling back to the first
// available model.
func (r *Registry) DefaultModel() (*types.Model, error) {
	if r.defaultModel != "" {
		providerID, modelID := ParseModelRef(r.defaultModel)
		if m, err := r.GetModel(providerID, modelID); err == nil {
			return m, nil
		}
	}

	models := r.AllModels()
	if len(models) == 0 {
		return nil, ErrNoModels
	}
	return &models[0], nil
}

// ParseModelRef splits "provider/model".
func ParseModelRef(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

// InitializeProviders builds a registry from configuration. API keys come
// from the config entry when present, otherwise from the key source. A
// provider without a key is skipped, not an error: the serve loop reports
// missing configuration when a chat actually selects it.
func InitializeProviders(ctx context.Context, cfg *types.Config, keys KeySource) *Registry {
	registry := NewRegistry(cfg.DefaultModel)

	resolveKey := func(id string) string {
		if pc, ok := cfg.Provider[id]; ok {
			if pc.Disabled {
				return ""
			}
			if pc.APIKey != "" {
				return pc.APIKey
			}
		}
		if keys == nil {
			return ""
		}
		key, err := keys.Get(ctx, id)
		if err != nil {
			return ""
		}
		return key
	}
	baseURL := func(id string) string {
		if pc, ok := cfg.Provider[id]; ok {
			return pc.BaseURL
		}
		return ""
	}
	disabled := func(id string) bool {
		pc, ok := cfg.Provider[id]
		return ok && pc.Disabled
	}

	if key := resolveKey("anthropic"); key != "" {
		p, err := NewAnthropicProvider(ctx, &AnthropicConfig{APIKey: key, BaseURL: baseURL("anthropic")})
		if err != nil {
			logging.Warn().Err(err).Msg("anthropic provider unavailable")
		} else {
			registry.Register(p)
		}
	}

	if key := resolveKey("openai"); key != "" {
		p, err := NewOpenAIProvider(ctx, &OpenAIConfig{APIKey: key, BaseURL: baseURL("openai")})
		if err != nil {
			logging.Warn().Err(err).Msg("openai provider unavailable")
		} else {
			registry.Register(p)
		}
	}

	if key := resolveKey("gemini"); key != "" {
		p, err := NewGeminiProvider(ctx, &GeminiConfig{APIKey: key})
		if err != nil {
			logging.Warn().Err(err).Msg("gemini provider unavailable")
		} else {
			registry.Register(p)
		}
	}

	// OpenAI-compatible endpoints share the same component.
	compatible := []struct {
		id      string
		name    string
		baseURL string
	}{
		{"openrouter", "OpenRouter", "https://openrouter.ai/api/v1"},
		{"deepseek", "DeepSeek", "https://api.deepseek.com/v1"},
	}
	for _, c := range compatible {
		if disabled(c.id) {
			continue
		}
		key := resolveKey(c.id)
		if key == "" {
			continue
		}
		url := baseURL(c.id)
		if url == "" {
			url = c.baseURL
		}
		p, err := NewOpenAIProvider(ctx, &OpenAIConfig{
			ID:      c.id,
			Name:    c.name,
			APIKey:  key,
			BaseURL: url,
			Models:  []types.Model{},
		})
		if err != nil {
			logging.Warn().Str("provider", c.id).Err(err).Msg("provider unavailable")
			continue
		}
		registry.Register(p)
	}

	return registry
}
