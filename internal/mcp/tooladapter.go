package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sidekick-dev/sidekick/internal/tool"
)

// serverTool adapts one discovered MCP tool into the registry's Tool
// interface. The exposed id is "<server>_<tool>" with both parts sanitized;
// the policy category is the raw server name.
type serverTool struct {
	manager    *Manager
	serverName string
	sdkTool    *sdkmcp.Tool
	params     json.RawMessage
}

func newServerTool(m *Manager, serverName string, t *sdkmcp.Tool) *serverTool {
	params := json.RawMessage(`{"type":"object"}`)
	if t.InputSchema != nil {
		if data, err := json.Marshal(t.InputSchema); err == nil {
			params = data
		}
	}
	return &serverTool{
		manager:    m,
		serverName: serverName,
		sdkTool:    t,
		params:     params,
	}
}

func (t *serverTool) ID() string {
	return sanitizeName(t.serverName) + "_" + sanitizeName(t.sdkTool.Name)
}

func (t *serverTool) Description() string {
	desc := t.sdkTool.Description
	if desc == "" {
		desc = fmt.Sprintf("Tool %s from server %s", t.sdkTool.Name, t.serverName)
	}
	return desc
}

func (t *serverTool) Category() string            { return t.serverName }
func (t *serverTool) Parameters() json.RawMessage { return t.params }

func (t *serverTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *tool.Context) (*tool.Result, error) {
	var args map[string]any
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
	}

	toolCtx.Progress("calling " + t.serverName + "/" + t.sdkTool.Name)

	output, err := t.manager.CallTool(ctx, t.serverName, t.sdkTool.Name, args)
	if err != nil {
		return nil, err
	}
	return &tool.Result{
		Title:  t.ID(),
		Output: output,
		Metadata: map[string]any{
			"server": t.serverName,
			"tool":   t.sdkTool.Name,
		},
	}, nil
}

func (t *serverTool) EinoTool() einotool.InvokableTool {
	return tool.AdaptEino(t)
}

// sanitizeName maps arbitrary server/tool names onto the [a-zA-Z0-9_]
// alphabet the model APIs accept for tool names.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
