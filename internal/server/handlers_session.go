package server

import (
	"context"
	"fmt"

	"github.com/sidekick-dev/sidekick/pkg/types"
)

// buildHandlers wires every RPC request type to its handler.
func (s *Server) buildHandlers() map[string]rpcHandler {
	return map[string]rpcHandler{
		// Chats.
		"create-chat":     s.rpcCreateChat,
		"list-chats":      s.rpcListChats,
		"get-chat":        s.rpcGetChat,
		"delete-chat":     s.rpcDeleteChat,
		"rename-chat":     s.rpcRenameChat,
		"set-chat-config": s.rpcSetChatConfig,
		"clear-history":   s.rpcClearHistory,
		"delete-message":  s.rpcDeleteMessage,

		// Streaming.
		"send-message": s.rpcSendMessage,
		"abort-stream": s.rpcAbortStream,

		// App state.
		"get-app-state":     s.rpcGetAppState,
		"set-last-active":   s.rpcSetLastActive,
		"set-last-location": s.rpcSetLastLocation,

		// Models and keys.
		"list-models":    s.rpcListModels,
		"list-providers": s.rpcListProviders,
		"set-api-key":    s.rpcSetAPIKey,
		"delete-api-key": s.rpcDeleteAPIKey,
		"list-api-keys":  s.rpcListAPIKeys,

		// Tools and config.
		"tool-status": s.rpcToolStatus,
		"list-tools":  s.rpcListTools,
		"get-config":  s.rpcGetConfig,

		// External tool servers.
		"mcp-status": s.rpcMCPStatus,
		"mcp-retry":  s.rpcMCPRetry,
		"mcp-reload": s.rpcMCPReload,

		// Subscriptions.
		"subscribe":   s.rpcSubscribe,
		"unsubscribe": s.rpcUnsubscribe,

		// Editor tools.
		"register-client-tools":   s.rpcRegisterClientTools,
		"unregister-client-tools": s.rpcUnregisterClientTools,
		"client-tool-result":      s.rpcClientToolResult,
	}
}

func (s *Server) rpcCreateChat(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		Name   string           `json:"name"`
		Config types.ChatConfig `json:"config"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	return s.deps.Sessions.CreateSession(ctx, params.Name, params.Config)
}

func (s *Server) rpcListChats(ctx context.Context, req *requestData) (any, error) {
	return s.deps.Sessions.ListSessions(ctx)
}

func (s *Server) rpcGetChat(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		ChatID string `json:"chatId"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	return s.deps.Sessions.GetSession(ctx, params.ChatID)
}

func (s *Server) rpcDeleteChat(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		ChatID string `json:"chatId"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	// A live stream for the chat must not outlive its storage.
	s.deps.Orchestrator.Abort(params.ChatID)
	s.deps.Orchestrator.Wait(params.ChatID)
	if err := s.deps.Sessions.DeleteSession(ctx, params.ChatID); err != nil {
		return nil, err
	}
	return okPayload(), nil
}

func (s *Server) rpcRenameChat(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		ChatID string `json:"chatId"`
		Name   string `json:"name"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Sessions.RenameSession(ctx, params.ChatID, params.Name); err != nil {
		return nil, err
	}
	return okPayload(), nil
}

func (s *Server) rpcSetChatConfig(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		ChatID string           `json:"chatId"`
		Config types.ChatConfig `json:"config"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Sessions.SetSessionConfig(ctx, params.ChatID, params.Config); err != nil {
		return nil, err
	}
	return okPayload(), nil
}

func (s *Server) rpcClearHistory(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		ChatID string `json:"chatId"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	s.deps.Orchestrator.Abort(params.ChatID)
	s.deps.Orchestrator.Wait(params.ChatID)
	if err := s.deps.Sessions.ClearHistory(ctx, params.ChatID); err != nil {
		return nil, err
	}
	return okPayload(), nil
}

func (s *Server) rpcDeleteMessage(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		ChatID    string `json:"chatId"`
		MessageID string `json:"messageId"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Sessions.DeleteMessage(ctx, params.ChatID, params.MessageID); err != nil {
		return nil, err
	}
	return okPayload(), nil
}

func (s *Server) rpcSendMessage(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		ChatID string             `json:"chatId"`
		Text   string             `json:"text"`
		Images []*types.ImagePart `json:"images,omitempty"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	frame, err := s.deps.Orchestrator.SendMessage(ctx, params.ChatID, params.Text, params.Images)
	if err != nil {
		return nil, err
	}
	return map[string]any{"messageId": frame.ID}, nil
}

func (s *Server) rpcAbortStream(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		ChatID string `json:"chatId"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	s.deps.Orchestrator.Abort(params.ChatID)
	return okPayload(), nil
}

func (s *Server) rpcGetAppState(ctx context.Context, req *requestData) (any, error) {
	return s.deps.Sessions.AppState(ctx)
}

func (s *Server) rpcSetLastActive(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		ChatID string `json:"chatId"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Sessions.SetLastActiveSession(ctx, params.ChatID); err != nil {
		return nil, err
	}
	return okPayload(), nil
}

func (s *Server) rpcSetLastLocation(ctx context.Context, req *requestData) (any, error) {
	params, err := decode[struct {
		Location string `json:"location"`
	}](req.Payload)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Sessions.SetLastLocation(ctx, params.Location); err != nil {
		return nil, err
	}
	return okPayload(), nil
}

func okPayload() map[string]bool {
	return map[string]bool{"success": true}
}

func requireClient(req *requestData) (string, error) {
	if req.ClientID == "" {
		return "", fmt.Errorf("%w: clientId required", errBadParams)
	}
	return req.ClientID, nil
}
