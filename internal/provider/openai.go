package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/sidekick-dev/sidekick/pkg/types"
)

// OpenAIProvider serves OpenAI models, and doubles as the provider for any
// OpenAI-compatible endpoint (OpenRouter, DeepSeek, Ollama) via BaseURL.
type OpenAIProvider struct {
	id        string
	name      string
	chatModel model.ToolCallingChatModel
	models    []types.Model
}

// OpenAIConfig configures an OpenAI-compatible provider.
type OpenAIConfig struct {
	// ID overrides the provider identifier for compatible endpoints
	// ("openrouter", "deepseek", "ollama"); empty means "openai".
	ID        string
	Name      string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Models    []types.Model
}

// NewOpenAIProvider creates an OpenAI-compatible provider.
func NewOpenAIProvider(ctx context.Context, config *OpenAIConfig) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("openai api key not set")
	}

	modelID := config.Model
	if modelID == "" {
		modelID = "gpt-4o"
	}
	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	cfg := &openai.ChatModelConfig{
		APIKey:              config.APIKey,
		Model:               modelID,
		MaxCompletionTokens: &maxTokens,
	}
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}

	id := config.ID
	if id == "" {
		id = "openai"
	}
	name := config.Name
	if name == "" {
		name = "OpenAI"
	}
	models := config.Models
	if models == nil {
		models = openAIModels()
	}

	return &OpenAIProvider{
		id:        id,
		name:      name,
		chatModel: chatModel,
		models:    models,
	}, nil
}

func (p *OpenAIProvider) ID() string            { return p.id }
func (p *OpenAIProvider) Name() string          { return p.name }
func (p *OpenAIProvider) Models() []types.Model { return p.models }

func (p *OpenAIProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	return streamFrom(ctx, p.chatModel, req)
}

func openAIModels() []types.Model {
	return []types.Model{
		{
			ID:              "gpt-4o",
			Name:            "GPT-4o",
			ProviderID:      "openai",
			ContextLength:   128000,
			MaxOutputTokens: 16384,
			SupportsTools:   true,
			SupportsVision:  true,
		},
		{
			ID:              "gpt-4o-mini",
			Name:            "GPT-4o mini",
			ProviderID:      "openai",
			ContextLength:   128000,
			MaxOutputTokens: 16384,
			SupportsTools:   true,
			SupportsVision:  true,
		},
		{
			ID:              "o3-mini",
			Name:            "o3-mini",
			ProviderID:      "openai",
			ContextLength:   200000,
			MaxOutputTokens: 100000,
			SupportsTools:   true,
		},
	}
}
