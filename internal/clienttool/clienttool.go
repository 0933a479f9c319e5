// Package clienttool bridges tools that only the editor frontend can run
// (open a file, show a diff, read the active selection) into the regular
// tool registry. The backend publishes an execution request on the bus, the
// frontend performs it and posts the result back over RPC, and the waiting
// tool call completes as if it had run locally.
package clienttool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sidekick-dev/sidekick/internal/event"
	"github.com/sidekick-dev/sidekick/internal/logging"
	"github.com/sidekick-dev/sidekick/internal/tool"
)

// DefaultTimeout bounds how long the backend waits for the frontend to
// answer an execution request.
const DefaultTimeout = 30 * time.Second

// Definition is one editor tool as the frontend declares it.
type Definition struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Request asks the frontend to execute one tool call. Published on the
// client-tool-request topic.
type Request struct {
	RequestID string          `json:"requestId"`
	ClientID  string          `json:"clientId"`
	SessionID string          `json:"sessionId"`
	MessageID string          `json:"messageId"`
	CallID    string          `json:"callId"`
	Tool      string          `json:"tool"`
	Input     json.RawMessage `json:"input"`
}

// Response is what the frontend posts back for a request.
type Response struct {
	Status string `json:"status"` // "success" | "error"
	Title  string `json:"title,omitempty"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

type pendingRequest struct {
	clientID string
	result   chan Response
}

// Registry tracks editor tools per connected client and the execution
// requests in flight. Registered tools are mirrored into the main tool
// registry under the editor category, so the orchestrator offers them to
// the model like any other tool.
type Registry struct {
	tools   *tool.Registry
	bus     *event.Bus
	timeout time.Duration

	mu      sync.Mutex
	byID    map[string]map[string]Definition // clientID -> toolID -> definition
	pending map[string]*pendingRequest
}

// NewRegistry creates a client-tool registry mirroring into tools.
func NewRegistry(tools *tool.Registry, bus *event.Bus, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		tools:   tools,
		bus:     bus,
		timeout: timeout,
		byID:    make(map[string]map[string]Definition),
		pending: make(map[string]*pendingRequest),
	}
}

// Register declares a client's editor tools and returns the registered ids.
// Re-registering replaces the client's previous set.
func (r *Registry) Register(clientID string, defs []Definition) []string {
	r.unregisterAll(clientID)

	r.mu.Lock()
	if r.byID[clientID] == nil {
		r.byID[clientID] = make(map[string]Definition)
	}
	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		id := prefixID(clientID, def.ID)
		params := def.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object"}`)
		}
		r.byID[clientID][id] = Definition{ID: id, Description: def.Description, Parameters: params}
		ids = append(ids, id)
	}
	defsCopy := r.byID[clientID]
	r.mu.Unlock()

	for id, def := range defsCopy {
		r.tools.Register(newEditorTool(r, clientID, id, def))
	}
	r.notifyToolsChanged(clientID)
	logging.Info().Str("client", clientID).Int("tools", len(ids)).Msg("client tools registered")
	return ids
}

// Unregister removes a client's editor tools. Empty toolIDs removes all.
func (r *Registry) Unregister(clientID string, toolIDs []string) []string {
	if len(toolIDs) == 0 {
		return r.unregisterAll(clientID)
	}

	r.mu.Lock()
	clientTools := r.byID[clientID]
	var removed []string
	for _, id := range toolIDs {
		full := id
		if !IsClientTool(id) {
			full = prefixID(clientID, id)
		}
		if _, ok := clientTools[full]; ok {
			delete(clientTools, full)
			removed = append(removed, full)
		}
	}
	r.mu.Unlock()

	for _, id := range removed {
		r.tools.Unregister(id)
	}
	if len(removed) > 0 {
		r.notifyToolsChanged(clientID)
	}
	return removed
}

func (r *Registry) unregisterAll(clientID string) []string {
	r.mu.Lock()
	clientTools := r.byID[clientID]
	ids := make([]string, 0, len(clientTools))
	for id := range clientTools {
		ids = append(ids, id)
	}
	delete(r.byID, clientID)
	r.mu.Unlock()

	for _, id := range ids {
		r.tools.Unregister(id)
	}
	if len(ids) > 0 {
		r.notifyToolsChanged(clientID)
	}
	return ids
}

// notifyToolsChanged tells subscribers the aggregated toolset moved, so
// they re-query tool statuses instead of serving a stale list.
func (r *Registry) notifyToolsChanged(clientID string) {
	if r.bus != nil {
		r.bus.Publish(event.TopicToolStatus, map[string]string{"source": "client:" + clientID})
	}
}

// Cleanup drops a disconnected client: its tools unregister and its in
// flight requests fail immediately instead of waiting out the timeout.
func (r *Registry) Cleanup(clientID string) {
	r.unregisterAll(clientID)

	r.mu.Lock()
	var orphaned []*pendingRequest
	for id, p := range r.pending {
		if p.clientID == clientID {
			orphaned = append(orphaned, p)
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()

	for _, p := range orphaned {
		p.result <- Response{Status: "error", Error: "client disconnected"}
	}
}

// SubmitResult completes a pending request. Returns false when the request
// is unknown, already answered, or timed out.
func (r *Registry) SubmitResult(requestID string, resp Response) bool {
	r.mu.Lock()
	p, ok := r.pending[requestID]
	if ok {
		delete(r.pending, requestID)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	p.result <- resp
	return true
}

// Execute sends a request to the owning client and blocks for the answer.
func (r *Registry) Execute(ctx context.Context, clientID string, req Request) (*tool.Result, error) {
	req.ClientID = clientID
	if req.RequestID == "" {
		req.RequestID = ulid.Make().String()
	}

	p := &pendingRequest{clientID: clientID, result: make(chan Response, 1)}
	r.mu.Lock()
	r.pending[req.RequestID] = p
	r.mu.Unlock()

	r.bus.Publish(event.TopicClientToolRequest, req)

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case resp := <-p.result:
		if resp.Status != "success" {
			msg := resp.Error
			if msg == "" {
				msg = "client tool failed"
			}
			return nil, errors.New(msg)
		}
		return &tool.Result{Title: resp.Title, Output: resp.Output}, nil

	case <-timer.C:
		r.drop(req.RequestID)
		return nil, fmt.Errorf("client tool timed out after %s", r.timeout)

	case <-ctx.Done():
		r.drop(req.RequestID)
		return nil, ctx.Err()
	}
}

func (r *Registry) drop(requestID string) {
	r.mu.Lock()
	delete(r.pending, requestID)
	r.mu.Unlock()
}

// IsClientTool reports whether a tool id names a client-registered tool.
func IsClientTool(toolID string) bool {
	return len(toolID) > 7 && toolID[:7] == "client_"
}

func prefixID(clientID, toolID string) string {
	return "client_" + clientID + "_" + toolID
}

// newEditorTool wraps a client definition as a registry tool whose Execute
// round-trips through the frontend.
func newEditorTool(r *Registry, clientID, id string, def Definition) tool.Tool {
	return tool.NewBaseTool(id, def.Description, tool.CategoryEditor, def.Parameters,
		func(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
			req := Request{
				Tool:  id,
				Input: input,
			}
			if toolCtx != nil {
				req.SessionID = toolCtx.SessionID
				req.MessageID = toolCtx.MessageID
				req.CallID = toolCtx.CallID
			}
			toolCtx.Progress("waiting for editor")
			return r.Execute(ctx, clientID, req)
		})
}
