package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	einotool "github.com/cloudwego/eino/components/tool"
)

const writeFileDescription = `Writes a text file in the workspace, creating parent directories as
needed. Overwrites the file if it already exists.`

// WriteFileTool writes workspace files.
type WriteFileTool struct {
	workDir string
}

// WriteFileInput is the argument shape for write_file.
type WriteFileInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NewWriteFileTool creates the write_file tool.
func NewWriteFileTool(workDir string) *WriteFileTool {
	return &WriteFileTool{workDir: workDir}
}

func (t *WriteFileTool) ID() string          { return "write_file" }
func (t *WriteFileTool) Description() string { return writeFileDescription }
func (t *WriteFileTool) Category() string    { return CategoryFilesystem }

func (t *WriteFileTool) EinoTool() einotool.InvokableTool {
	return &einoAdapter{tool: t}
}

func (t *WriteFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Path to the file, relative to the workspace root"
			},
			"content": {
				"type": "string",
				"description": "Full content to write"
			}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteFileTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params WriteFileInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	path, err := resolveWorkspacePath(t.workDir, toolCtx, params.Path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(params.Content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", params.Path, err)
	}

	return &Result{
		Title:  params.Path,
		Output: fmt.Sprintf("Wrote %d bytes to %s", len(params.Content), params.Path),
		Metadata: map[string]any{
			"bytes": len(params.Content),
		},
	}, nil
}
