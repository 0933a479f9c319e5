// Package demo provides a small MCP server used to exercise the external
// tool-server integration end to end without third-party servers.
package demo

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates the demo MCP server with its tools.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(
		"sidekick-demo",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	echoTool := mcp.NewTool("echo",
		mcp.WithDescription("Echoes the given message back"),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("Message to echo"),
		),
	)
	s.AddTool(echoTool, echoHandler)

	timeTool := mcp.NewTool("current_time",
		mcp.WithDescription("Returns the current time"),
		mcp.WithString("format",
			mcp.Description("Go time layout, defaults to RFC3339"),
		),
	)
	s.AddTool(timeTool, timeHandler)

	return s
}

func echoHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	message, ok := args["message"].(string)
	if !ok || message == "" {
		return mcp.NewToolResultError("message argument is required"), nil
	}
	return mcp.NewToolResultText(message), nil
}

func timeHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layout := time.RFC3339
	if f, ok := request.GetArguments()["format"].(string); ok && f != "" {
		layout = f
	}
	return mcp.NewToolResultText(time.Now().Format(layout)), nil
}
