package server

import (
	"context"
	"fmt"
	"sort"

	"github.com/sidekick-dev/sidekick/internal/clienttool"
)

func (s *Server) rpcListModels(ctx context.Context, req *requestData) (any, error) {
	return s.deps.Providers.AllModels(), nil
}

func (s *Server) rpcListProviders(ctx context.Context, req *requestData) (any, error) {
	type providerInfo struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Models int    `json:"models"`
	}
	providers := s.deps.Providers.List()
	out := make([]providerInfo, 0, len(providers))
	for _, p := range providers {
		out = append(out, providerInfo{ID: p.ID(), Name: p.Name(), Models: len(p.Models())})
	}
	return out, nil
}

func (s *Server) rpcSetAPIKey(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		Provider string `json:"provider"`
		APIKey   string `json:"apiKey"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	if params.Provider == "" || params.APIKey == "" {
		return nil, fmt.Errorf("%w: provider and apiKey required", errBadParams)
	}
	if err := s.deps.Secrets.Set(ctx, params.Provider, params.APIKey); err != nil {
		return nil, err
	}
	return okPayload(), nil
}

func (s *Server) rpcDeleteAPIKey(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		Provider string `json:"provider"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Secrets.Delete(ctx, params.Provider); err != nil {
		return nil, err
	}
	return okPayload(), nil
}

func (s *Server) rpcListAPIKeys(ctx context.Context, req *requestData) (any, error) {
	// Names only; key material never crosses the transport.
	return s.deps.Secrets.List(ctx)
}

func (s *Server) rpcToolStatus(ctx context.Context, req *requestData) (any, error) {
	return s.deps.Tools.Statuses(s.deps.Policy()), nil
}

func (s *Server) rpcListTools(ctx context.Context, req *requestData) (any, error) {
	type toolInfo struct {
		ID          string `json:"id"`
		Description string `json:"description"`
		Category    string `json:"category"`
		Status      string `json:"status"`
	}
	policy := s.deps.Policy()
	all := s.deps.Tools.List(nil)
	out := make([]toolInfo, 0, len(all))
	for _, t := range all {
		out = append(out, toolInfo{
			ID:          t.ID(),
			Description: t.Description(),
			Category:    t.Category(),
			Status:      string(policy.Resolve(t.ID(), t.Category())),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Server) rpcGetConfig(ctx context.Context, req *requestData) (any, error) {
	// API keys configured inline stay on the backend.
	cfg := *s.deps.AppConfig
	if cfg.Provider != nil {
		redacted := make(map[string]struct {
			BaseURL  string `json:"baseUrl,omitempty"`
			Disabled bool   `json:"disabled,omitempty"`
			HasKey   bool   `json:"hasKey"`
		}, len(cfg.Provider))
		for id, pc := range cfg.Provider {
			redacted[id] = struct {
				BaseURL  string `json:"baseUrl,omitempty"`
				Disabled bool   `json:"disabled,omitempty"`
				HasKey   bool   `json:"hasKey"`
			}{BaseURL: pc.BaseURL, Disabled: pc.Disabled, HasKey: pc.APIKey != ""}
		}
		return map[string]any{
			"defaultModel": cfg.DefaultModel,
			"provider":     redacted,
			"tools":        cfg.Tools,
			"logLevel":     cfg.LogLevel,
		}, nil
	}
	return cfg, nil
}

func (s *Server) rpcMCPStatus(ctx context.Context, req *requestData) (any, error) {
	if s.deps.MCP == nil {
		return nil, fmt.Errorf("tool servers not configured")
	}
	return s.deps.MCP.Status(), nil
}

func (s *Server) rpcMCPRetry(ctx context.Context, req *requestData) (any, error) {
	if s.deps.MCP == nil {
		return nil, fmt.Errorf("tool servers not configured")
	}
	params, err := decode[struct {
		Server string `json:"server"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	if err := s.deps.MCP.Retry(ctx, params.Server); err != nil {
		return nil, err
	}
	return okPayload(), nil
}

func (s *Server) rpcMCPReload(ctx context.Context, req *requestData) (any, error) {
	if s.deps.MCP == nil {
		return nil, fmt.Errorf("tool servers not configured")
	}
	if err := s.deps.MCP.ReloadAll(ctx); err != nil {
		return nil, err
	}
	return okPayload(), nil
}

func (s *Server) rpcSubscribe(ctx context.Context, req *requestData) (any, error) {
	clientID, err := requireClient(req)
	if err != nil {
		return nil, err
	}
	params, err := decode[struct {
		Topic string `json:"topic"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	if params.Topic == "" {
		return nil, fmt.Errorf("%w: topic required", errBadParams)
	}
	client, ok := s.client(clientID)
	if !ok {
		return nil, fmt.Errorf("unknown client: %s", clientID)
	}
	client.subs.Subscribe(params.Topic)
	return okPayload(), nil
}

func (s *Server) rpcUnsubscribe(ctx context.Context, req *requestData) (any, error) {
	clientID, err := requireClient(req)
	if err != nil {
		return nil, err
	}
	params, err := decode[struct {
		Topic string `json:"topic"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	client, ok := s.client(clientID)
	if !ok {
		return nil, fmt.Errorf("unknown client: %s", clientID)
	}
	client.subs.Unsubscribe(params.Topic)
	return okPayload(), nil
}

func (s *Server) rpcRegisterClientTools(ctx context.Context, req *requestData) (any, error) {
	clientID, err := requireClient(req)
	if err != nil {
		return nil, err
	}
	params, err := decode[struct {
		Tools []clienttool.Definition `json:"tools"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	ids := s.deps.ClientTools.Register(clientID, params.Tools)
	return map[string]any{"registered": ids}, nil
}

func (s *Server) rpcUnregisterClientTools(ctx context.Context, req *requestData) (any, error) {
	clientID, err := requireClient(req)
	if err != nil {
		return nil, err
	}
	params, err := decode[struct {
		ToolIDs []string `json:"toolIds"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	ids := s.deps.ClientTools.Unregister(clientID, params.ToolIDs)
	return map[string]any{"unregistered": ids}, nil
}

func (s *Server) rpcClientToolResult(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		RequestID string              `json:"requestId"`
		Response  clienttool.Response `json:"response"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	if !s.deps.ClientTools.SubmitResult(params.RequestID, params.Response) {
		return nil, fmt.Errorf("unknown request: %s", params.RequestID)
	}
	return okPayload(), nil
}
