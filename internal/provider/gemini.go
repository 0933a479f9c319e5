package provider

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/sidekick-dev/sidekick/pkg/types"
)

// GeminiProvider serves Google Gemini models through the eino gemini
// component on top of the genai SDK.
type GeminiProvider struct {
	chatModel model.ToolCallingChatModel
	models    []types.Model
}

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// NewGeminiProvider creates the Gemini provider.
func NewGeminiProvider(ctx context.Context, config *GeminiConfig) (*GeminiProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("gemini api key not set")
	}

	modelID := config.Model
	if modelID == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client: client,
		Model:  modelID,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini model: %w", err)
	}

	return &GeminiProvider{
		chatModel: chatModel,
		models:    geminiModels(),
	}, nil
}

func (p *GeminiProvider) ID() string            { return "gemini" }
func (p *GeminiProvider) Name() string          { return "Google Gemini" }
func (p *GeminiProvider) Models() []types.Model { return p.models }

func (p *GeminiProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	return streamFrom(ctx, p.chatModel, req)
}

func geminiModels() []types.Model {
	return []types.Model{
		{
			ID:              "gemini-2.5-pro",
			Name:            "Gemini 2.5 Pro",
			ProviderID:      "gemini",
			ContextLength:   1048576,
			MaxOutputTokens: 65536,
			SupportsTools:   true,
			SupportsVision:  true,
		},
		{
			ID:              "gemini-2.5-flash",
			Name:            "Gemini 2.5 Flash",
			ProviderID:      "gemini",
			ContextLength:   1048576,
			MaxOutputTokens: 65536,
			SupportsTools:   true,
			SupportsVision:  true,
		},
	}
}
