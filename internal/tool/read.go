package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
)

const readFileDescription = `Reads a text file from the workspace.

Usage:
- The path parameter is resolved against the workspace root
- By default, reads up to 2000 lines from the beginning
- Use offset and limit to page through large files
- Output is prefixed with 1-based line numbers`

const defaultReadLimit = 2000

// ReadFileTool reads workspace files.
type ReadFileTool struct {
	workDir string
}

// ReadFileInput is the argument shape for read_file.
type ReadFileInput struct {
	Path   string `json:"path"`
	Offset int    `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// NewReadFileTool creates the read_file tool.
func NewReadFileTool(workDir string) *ReadFileTool {
	return &ReadFileTool{workDir: workDir}
}

func (t *ReadFileTool) ID() string          { return "read_file" }
func (t *ReadFileTool) EinoTool() einotool.InvokableTool {
	return &einoAdapter{tool: t}
}
func (t *ReadFileTool) Description() string { return readFileDescription }
func (t *ReadFileTool) Category() string    { return CategoryFilesystem }

func (t *ReadFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Path to the file, relative to the workspace root"
			},
			"offset": {
				"type": "integer",
				"description": "1-based line number to start reading from"
			},
			"limit": {
				"type": "integer",
				"description": "Number of lines to read (default: 2000)"
			}
		},
		"required": ["path"]
	}`)
}

func (t *ReadFileTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ReadFileInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.Limit <= 0 {
		params.Limit = defaultReadLimit
	}
	if params.Offset <= 0 {
		params.Offset = 1
	}

	path, err := resolveWorkspacePath(t.workDir, toolCtx, params.Path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", params.Path)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", params.Path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", params.Path, err)
	}

	lines := strings.Split(string(data), "\n")
	start := params.Offset - 1
	if start >= len(lines) {
		return &Result{
			Title:  params.Path,
			Output: "(offset beyond end of file)",
		}, nil
	}
	end := start + params.Limit
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&b, "%d\t%s\n", i+1, lines[i])
	}

	return &Result{
		Title:  params.Path,
		Output: b.String(),
		Metadata: map[string]any{
			"lines":     end - start,
			"truncated": end < len(lines),
		},
	}, nil
}

// resolveWorkspacePath resolves a tool-supplied path against the workspace
// root and rejects escapes above it.
func resolveWorkspacePath(workDir string, toolCtx *Context, path string) (string, error) {
	root := workDir
	if toolCtx != nil && toolCtx.WorkDir != "" {
		root = toolCtx.WorkDir
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(root, resolved)
	}
	resolved = filepath.Clean(resolved)

	if root != "" {
		rel, err := filepath.Rel(root, resolved)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("path escapes the workspace: %s", path)
		}
	}
	return resolved, nil
}
