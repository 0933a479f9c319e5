package types

import "encoding/json"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Message statuses surfaced to the frontend.
const (
	StatusPending  = "pending"
	StatusComplete = "complete"
	StatusError    = "error"
	StatusAborted  = "aborted"
)

// UiMessage is one entry in a chat's history. Content order is rendering
// order and is preserved across persistence. Assistant messages are created
// as empty frames, mutated in place while a stream is live, then replaced
// wholesale by reconciliation and never touched again except deletion.
type UiMessage struct {
	ID         string        `json:"id"`
	Role       string        `json:"role"`
	Content    []ContentPart `json:"content"`
	Timestamp  int64         `json:"timestamp"` // unix millis
	Status     string        `json:"status,omitempty"`
	ProviderID string        `json:"providerId,omitempty"`
	ModelID    string        `json:"modelId,omitempty"`
	Error      *MessageError `json:"error,omitempty"`
}

// UnmarshalJSON decodes the content array through the part union.
func (m *UiMessage) UnmarshalJSON(data []byte) error {
	type alias UiMessage
	aux := struct {
		*alias
		Content []json.RawMessage `json:"content"`
	}{alias: (*alias)(m)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.Content = make([]ContentPart, 0, len(aux.Content))
	for _, raw := range aux.Content {
		part, err := UnmarshalContentPart(raw)
		if err != nil {
			return err
		}
		m.Content = append(m.Content, part)
	}
	return nil
}

// Text concatenates all text parts in content order.
func (m *UiMessage) Text() string {
	var out string
	for _, part := range m.Content {
		if tp, ok := part.(*TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// ToolCall returns the tool-call part with the given id, if present.
func (m *UiMessage) ToolCall(callID string) (*ToolCallPart, bool) {
	for _, part := range m.Content {
		if tc, ok := part.(*ToolCallPart); ok && tc.ToolCallID == callID {
			return tc, true
		}
	}
	return nil, false
}

// MessageError annotates a message whose turn failed or was cut short.
type MessageError struct {
	Name    string `json:"name"` // "ConfigError" | "TransportError" | "AbortError" | "UnknownError"
	Message string `json:"message"`
}

// NewConfigError reports a provider/model resolution failure.
func NewConfigError(message string) *MessageError {
	return &MessageError{Name: "ConfigError", Message: message}
}

// NewTransportError reports a model API or network failure.
func NewTransportError(message string) *MessageError {
	return &MessageError{Name: "TransportError", Message: message}
}

// NewAbortError reports an explicit user cancellation.
func NewAbortError() *MessageError {
	return &MessageError{Name: "AbortError", Message: "stream aborted"}
}

// ModelRef references a specific model from a provider.
type ModelRef struct {
	ProviderID string `json:"providerId"`
	ModelID    string `json:"modelId"`
}

// SuggestedAction is one follow-up the model proposed in its trailing
// structured block. Extracted at reconciliation time and pushed to the
// frontend instead of being persisted as message text.
type SuggestedAction struct {
	Label      string `json:"label"`
	ActionType string `json:"action_type"` // "send_message" | "fill_input" | "open_file"
	Value      string `json:"value"`
}
