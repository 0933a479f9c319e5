package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	einotool "github.com/cloudwego/eino/components/tool"
)

const fetchDescription = `Fetches a URL and returns its content.

Usage:
- format "markdown" (default) converts HTML pages to markdown
- format "text" strips HTML down to visible text
- format "html" returns the raw body
- Responses are capped at 5MB`

const (
	fetchMaxBody        = 5 * 1024 * 1024
	fetchDefaultTimeout = 30 * time.Second
	fetchMaxTimeout     = 120 * time.Second
)

// FetchTool retrieves web content for the model.
type FetchTool struct {
	client *http.Client
}

// FetchInput is the argument shape for fetch.
type FetchInput struct {
	URL     string `json:"url"`
	Format  string `json:"format,omitempty"`
	Timeout int    `json:"timeout,omitempty"`
}

// NewFetchTool creates the fetch tool.
func NewFetchTool() *FetchTool {
	return &FetchTool{
		client: &http.Client{Timeout: fetchDefaultTimeout},
	}
}

func (t *FetchTool) ID() string          { return "fetch" }
func (t *FetchTool) Description() string { return fetchDescription }
func (t *FetchTool) Category() string    { return CategoryWeb }

func (t *FetchTool) EinoTool() einotool.InvokableTool {
	return &einoAdapter{tool: t}
}

func (t *FetchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "The http or https URL to fetch"
			},
			"format": {
				"type": "string",
				"description": "Output format: markdown, text, or html (default: markdown)"
			},
			"timeout": {
				"type": "integer",
				"description": "Optional timeout in seconds (max 120)"
			}
		},
		"required": ["url"]
	}`)
}

func (t *FetchTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	var params FetchInput
	if err := json.Unmarshal(input, &params); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if !strings.HasPrefix(params.URL, "http://") && !strings.HasPrefix(params.URL, "https://") {
		return nil, fmt.Errorf("url must start with http:// or https://")
	}
	if params.Format == "" {
		params.Format = "markdown"
	}
	if params.Format != "markdown" && params.Format != "text" && params.Format != "html" {
		return nil, fmt.Errorf("format must be 'markdown', 'text', or 'html'")
	}

	timeout := fetchDefaultTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Second
		if timeout > fetchMaxTimeout {
			timeout = fetchMaxTimeout
		}
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, params.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "sidekick/1.0")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	toolCtx.Progress("fetching " + params.URL)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if len(body) > fetchMaxBody {
		return nil, fmt.Errorf("response too large (exceeds 5MB limit)")
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")
	isHTML := strings.Contains(contentType, "text/html")

	var output string
	switch params.Format {
	case "markdown":
		if isHTML {
			output, err = htmlToMarkdown(content)
		} else {
			output = content
		}
	case "text":
		if isHTML {
			output, err = htmlToText(content)
		} else {
			output = content
		}
	case "html":
		output = content
	}
	if err != nil {
		return nil, fmt.Errorf("convert response: %w", err)
	}

	return &Result{
		Title:  params.URL,
		Output: output,
		Metadata: map[string]any{
			"contentType": contentType,
			"bytes":       len(body),
		},
	}, nil
}

// htmlToText strips an HTML document down to its visible text.
func htmlToText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	return strings.TrimSpace(doc.Text()), nil
}

// htmlToMarkdown converts an HTML document to markdown.
func htmlToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")
	return converter.ConvertString(html)
}
