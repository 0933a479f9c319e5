package session

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/sidekick-dev/sidekick/pkg/types"
)

// TranslateToModelMessages maps a chat's UI history to the wire messages a
// model API expects. Tool calls that reached a terminal status get a
// synthesized tool-result message right after their assistant turn; calls
// still pending are dropped, because a call without a result is not a legal
// conversation for any provider. Messages that reduce to nothing are
// omitted. A non-empty system prompt is prepended.
func TranslateToModelMessages(sess *types.ChatSession, systemPrompt string) []*schema.Message {
	out := make([]*schema.Message, 0, len(sess.History)+1)
	if systemPrompt != "" {
		out = append(out, &schema.Message{Role: schema.System, Content: systemPrompt})
	}

	for _, msg := range sess.History {
		switch msg.Role {
		case types.RoleUser:
			if m := translateUser(msg); m != nil {
				out = append(out, m)
			}
		case types.RoleAssistant:
			turn, results := translateAssistant(msg)
			if turn != nil {
				out = append(out, turn)
				out = append(out, results...)
			}
		}
	}
	return out
}

func translateUser(msg *types.UiMessage) *schema.Message {
	var text string
	var images []*types.ImagePart
	for _, part := range msg.Content {
		switch p := part.(type) {
		case *types.TextPart:
			text += p.Text
		case *types.ImagePart:
			images = append(images, p)
		}
	}

	if len(images) == 0 {
		if text == "" {
			return nil
		}
		return &schema.Message{Role: schema.User, Content: text}
	}

	parts := make([]schema.ChatMessagePart, 0, len(images)+1)
	if text != "" {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeText,
			Text: text,
		})
	}
	for _, img := range images {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL:      fmt.Sprintf("data:%s;base64,%s", img.MediaType, img.Data),
				MIMEType: img.MediaType,
			},
		})
	}
	return &schema.Message{Role: schema.User, MultiContent: parts}
}

func translateAssistant(msg *types.UiMessage) (*schema.Message, []*schema.Message) {
	var text string
	var calls []schema.ToolCall
	var results []*schema.Message

	for _, part := range msg.Content {
		switch p := part.(type) {
		case *types.TextPart:
			text += p.Text
		case *types.ToolCallPart:
			if !p.Status.Terminal() {
				continue
			}
			args := "{}"
			if p.Args != nil {
				if data, err := json.Marshal(p.Args); err == nil {
					args = string(data)
				}
			}
			calls = append(calls, schema.ToolCall{
				ID:   p.ToolCallID,
				Type: "function",
				Function: schema.FunctionCall{
					Name:      p.ToolName,
					Arguments: args,
				},
			})

			result := ""
			if p.Result != nil {
				result = *p.Result
			}
			if p.Status == types.ToolCallError && result == "" {
				result = "tool execution failed"
			}
			results = append(results, &schema.Message{
				Role:       schema.Tool,
				Content:    result,
				ToolCallID: p.ToolCallID,
			})
		}
	}

	if text == "" && len(calls) == 0 {
		return nil, nil
	}
	return &schema.Message{
		Role:      schema.Assistant,
		Content:   text,
		ToolCalls: calls,
	}, results
}
