package types

import (
	"encoding/json"
	"fmt"
)

// ContentPart is one element of a message's ordered content sequence.
type ContentPart interface {
	PartType() string
}

// ToolCallStatus tracks the lifecycle of a tool call. Transitions are
// monotonic forward: pending -> running -> complete | error.
type ToolCallStatus string

const (
	ToolCallPending  ToolCallStatus = "pending"
	ToolCallRunning  ToolCallStatus = "running"
	ToolCallComplete ToolCallStatus = "complete"
	ToolCallError    ToolCallStatus = "error"
)

// Terminal reports whether the status admits no further transitions.
func (s ToolCallStatus) Terminal() bool {
	return s == ToolCallComplete || s == ToolCallError
}

// TextPart holds assistant or user text. Streaming deltas append to the
// trailing text part of a message rather than creating new parts.
type TextPart struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

func (p *TextPart) PartType() string { return "text" }

// ToolCallPart records a tool invocation issued by the model. Identity is
// ToolCallID, unique within the whole chat history.
type ToolCallPart struct {
	Type       string         `json:"type"` // always "tool-call"
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args,omitempty"`
	Status     ToolCallStatus `json:"status"`
	Result     *string        `json:"result,omitempty"`
	Progress   *string        `json:"progress,omitempty"`
}

func (p *ToolCallPart) PartType() string { return "tool-call" }

// ImagePart is user-supplied image content, immutable once created.
type ImagePart struct {
	Type      string `json:"type"` // always "image"
	MediaType string `json:"mediaType"`
	Data      string `json:"data"` // base64
}

func (p *ImagePart) PartType() string { return "image" }

// UnmarshalContentPart decodes a single part from its tagged JSON form.
func UnmarshalContentPart(data []byte) (ContentPart, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case "text":
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "tool-call":
		var p ToolCallPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "image":
		var p ImagePart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown content part type: %q", probe.Type)
	}
}

// NewTextPart returns a text part with the tag filled in.
func NewTextPart(text string) *TextPart {
	return &TextPart{Type: "text", Text: text}
}

// NewToolCallPart returns a pending tool-call part with the tag filled in.
func NewToolCallPart(callID, name string, args map[string]any) *ToolCallPart {
	return &ToolCallPart{
		Type:       "tool-call",
		ToolCallID: callID,
		ToolName:   name,
		Args:       args,
		Status:     ToolCallPending,
	}
}
