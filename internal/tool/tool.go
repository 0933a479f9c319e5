// Package tool provides the tool framework: local built-in tools, the
// registry that aggregates them with externally discovered ones, and the
// availability policy that filters the set handed to the model.
package tool

import (
	"context"
	"encoding/json"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Built-in tool categories used by the availability policy.
const (
	CategoryFilesystem = "filesystem"
	CategoryWeb        = "web"
	CategoryUtility    = "utility"
	CategoryEditor     = "editor"
)

// Tool is one invokable capability offered to the model.
type Tool interface {
	// ID returns the tool identifier as exposed to the model.
	ID() string

	// Description returns the tool description.
	Description() string

	// Parameters returns the JSON Schema for tool arguments.
	Parameters() json.RawMessage

	// Category returns the policy grouping key: a built-in category for
	// local tools, or the server name for externally discovered tools.
	Category() string

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)

	// EinoTool adapts the tool to eino's invokable interface.
	EinoTool() einotool.InvokableTool
}

// Context carries per-invocation state to tools.
type Context struct {
	SessionID string
	MessageID string
	CallID    string
	WorkDir   string

	// OnProgress reports a short human-readable progress line while the
	// tool runs; the history engine mirrors it onto the tool-call part.
	OnProgress func(line string)
}

// Progress reports a progress line if a listener is attached.
func (c *Context) Progress(line string) {
	if c != nil && c.OnProgress != nil {
		c.OnProgress(line)
	}
}

// Result is the output of a tool execution.
type Result struct {
	Title    string         `json:"title"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// AdaptEino wraps any Tool as an eino InvokableTool. Tools outside this
// package use it to implement EinoTool.
func AdaptEino(t Tool) einotool.InvokableTool {
	return &einoAdapter{tool: t}
}

// einoAdapter bridges a Tool to eino's InvokableTool.
type einoAdapter struct {
	tool Tool
}

func (a *einoAdapter) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        a.tool.ID(),
		Desc:        a.tool.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(schemaToParams(a.tool.Parameters())),
	}, nil
}

func (a *einoAdapter) InvokableRun(ctx context.Context, argsJSON string, opts ...einotool.Option) (string, error) {
	result, err := a.tool.Execute(ctx, json.RawMessage(argsJSON), &Context{})
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// schemaToParams converts a JSON Schema object to eino parameter infos.
// Only the property shapes eino models directly are mapped; nested schemas
// degrade to their top-level type.
func schemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var js struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schemaJSON, &js); err != nil {
		return nil
	}

	required := make(map[string]bool, len(js.Required))
	for _, r := range js.Required {
		required[r] = true
	}

	params := make(map[string]*schema.ParameterInfo, len(js.Properties))
	for name, prop := range js.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}
		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: required[name],
		}
	}
	return params
}

// BaseTool implements Tool from plain values, for tools whose behavior is a
// single function (external tools use this via an adapter).
type BaseTool struct {
	id          string
	description string
	category    string
	parameters  json.RawMessage
	run         func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// NewBaseTool assembles a Tool from its parts.
func NewBaseTool(id, description, category string, params json.RawMessage, run func(context.Context, json.RawMessage, *Context) (*Result, error)) *BaseTool {
	return &BaseTool{id: id, description: description, category: category, parameters: params, run: run}
}

func (t *BaseTool) ID() string                  { return t.id }
func (t *BaseTool) Description() string         { return t.description }
func (t *BaseTool) Category() string            { return t.category }
func (t *BaseTool) Parameters() json.RawMessage { return t.parameters }

func (t *BaseTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	return t.run(ctx, input, toolCtx)
}

func (t *BaseTool) EinoTool() einotool.InvokableTool {
	return &einoAdapter{tool: t}
}
