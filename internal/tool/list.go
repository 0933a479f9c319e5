package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	einotool "github.com/cloudwego/eino/components/tool"
)

const listDirDescription = `Lists the entries of a workspace directory. Directories are suffixed
with a slash. Hidden entries are included.`

// ListDirTool lists directory contents.
type ListDirTool struct {
	workDir string
}

// ListDirInput is the argument shape for list_dir.
type ListDirInput struct {
	Path string `json:"path,omitempty"`
}

// NewListDirTool creates the list_dir tool.
func NewListDirTool(workDir string) *ListDirTool {
	return &ListDirTool{workDir: workDir}
}

func (t *ListDirTool) ID() string          { return "list_dir" }
func (t *ListDirTool) Description() string { return listDirDescription }
func (t *ListDirTool) Category() string    { return CategoryFilesystem }

func (t *ListDirTool) EinoTool() einotool.InvokableTool {
	return &einoAdapter{tool: t}
}

func (t *ListDirTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Directory path relative to the workspace root (default: the root itself)"
			}
		}
	}`)
}

func (t *ListDirTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params ListDirInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.Path == "" {
		params.Path = "."
	}

	path, err := resolveWorkspacePath(t.workDir, toolCtx, params.Path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", params.Path, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	return &Result{
		Title:  params.Path,
		Output: strings.Join(names, "\n"),
		Metadata: map[string]any{
			"count": len(names),
		},
	}, nil
}
