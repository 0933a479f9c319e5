package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	einotool "github.com/cloudwego/eino/components/tool"
)

const globDescription = `Finds workspace files by glob pattern.

Usage:
- Supports patterns like "**/*.go" or "src/**/*.ts"
- Matching is relative to the workspace root
- Returns matching paths sorted alphabetically`

const globMaxResults = 500

// GlobTool matches files by pattern.
type GlobTool struct {
	workDir string
}

// GlobInput is the argument shape for glob.
type GlobInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

// NewGlobTool creates the glob tool.
func NewGlobTool(workDir string) *GlobTool {
	return &GlobTool{workDir: workDir}
}

func (t *GlobTool) ID() string          { return "glob" }
func (t *GlobTool) Description() string { return globDescription }
func (t *GlobTool) Category() string    { return CategoryFilesystem }

func (t *GlobTool) EinoTool() einotool.InvokableTool {
	return &einoAdapter{tool: t}
}

func (t *GlobTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "The glob pattern to match files against"
			},
			"path": {
				"type": "string",
				"description": "Directory to search in, relative to the workspace root"
			}
		},
		"required": ["pattern"]
	}`)
}

func (t *GlobTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params GlobInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if params.Pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}
	if params.Path == "" {
		params.Path = "."
	}

	root, err := resolveWorkspacePath(t.workDir, toolCtx, params.Path)
	if err != nil {
		return nil, err
	}

	matches, err := doublestar.Glob(os.DirFS(root), params.Pattern,
		doublestar.WithFilesOnly(), doublestar.WithNoFollow())
	if err != nil {
		if errors.Is(err, doublestar.ErrBadPattern) {
			return nil, fmt.Errorf("invalid glob pattern: %s", params.Pattern)
		}
		return nil, fmt.Errorf("glob %s: %w", params.Pattern, err)
	}

	sort.Strings(matches)
	truncated := false
	if len(matches) > globMaxResults {
		matches = matches[:globMaxResults]
		truncated = true
	}

	if len(matches) == 0 {
		return &Result{
			Title:  params.Pattern,
			Output: "No files matched the pattern",
			Metadata: map[string]any{
				"count": 0,
			},
		}, nil
	}

	return &Result{
		Title:  params.Pattern,
		Output: strings.Join(matches, "\n"),
		Metadata: map[string]any{
			"count":     len(matches),
			"truncated": truncated,
		},
	}, nil
}
