package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/sidekick-dev/sidekick/internal/event"
	"github.com/sidekick-dev/sidekick/internal/logging"
	"github.com/sidekick-dev/sidekick/pkg/types"
)

// AddUserMessage appends a user message. Text with nothing but whitespace
// and no attachments is rejected.
func (s *Service) AddUserMessage(ctx context.Context, sessionID, text string, images []*types.ImagePart) (*types.UiMessage, error) {
	if strings.TrimSpace(text) == "" && len(images) == 0 {
		return nil, fmt.Errorf("%w: message must not be empty", ErrInvalidInput)
	}

	msg := &types.UiMessage{
		ID:        NewID(),
		Role:      types.RoleUser,
		Content:   []types.ContentPart{},
		Timestamp: nowMillis(),
		Status:    types.StatusComplete,
	}
	if text != "" {
		msg.Content = append(msg.Content, types.NewTextPart(text))
	}
	for _, img := range images {
		img.Type = "image"
		msg.Content = append(msg.Content, img)
	}

	_, err := s.mutate(ctx, sessionID, func(sess *types.ChatSession) error {
		sess.History = append(sess.History, msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// AddAssistantFrame appends an empty assistant message that a live stream
// will fill in. The frame starts pending and is finalized by
// ReconcileFinalMessage.
func (s *Service) AddAssistantFrame(ctx context.Context, sessionID string, ref types.ModelRef) (*types.UiMessage, error) {
	msg := &types.UiMessage{
		ID:         NewID(),
		Role:       types.RoleAssistant,
		Content:    []types.ContentPart{},
		Timestamp:  nowMillis(),
		Status:     types.StatusPending,
		ProviderID: ref.ProviderID,
		ModelID:    ref.ModelID,
	}

	_, err := s.mutate(ctx, sessionID, func(sess *types.ChatSession) error {
		sess.History = append(sess.History, msg)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// AppendTextChunk appends a streaming text delta to a message. Deltas extend
// the trailing text part; a new part is only opened when the tail is not
// text (e.g. after a tool call).
func (s *Service) AppendTextChunk(ctx context.Context, sessionID, messageID, delta string) error {
	if delta == "" {
		return nil
	}
	_, err := s.mutate(ctx, sessionID, func(sess *types.ChatSession) error {
		msg := findMessage(sess, messageID)
		if msg == nil {
			return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
		}
		if n := len(msg.Content); n > 0 {
			if tp, ok := msg.Content[n-1].(*types.TextPart); ok {
				tp.Text += delta
				return nil
			}
		}
		msg.Content = append(msg.Content, types.NewTextPart(delta))
		return nil
	})
	return err
}

// AddToolCall appends a pending tool-call part to a message. A call id that
// already exists anywhere in the message is ignored, preserving identity.
func (s *Service) AddToolCall(ctx context.Context, sessionID, messageID, callID, toolName string, args map[string]any) error {
	_, err := s.mutate(ctx, sessionID, func(sess *types.ChatSession) error {
		msg := findMessage(sess, messageID)
		if msg == nil {
			return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
		}
		if _, exists := msg.ToolCall(callID); exists {
			return nil
		}
		msg.Content = append(msg.Content, types.NewToolCallPart(callID, toolName, args))
		return nil
	})
	return err
}

// UpdateToolCallStatus updates the part with the given call id, searching
// history newest-first since live calls are always near the tail. Status
// moves forward only: once terminal, later updates are dropped. Reaching a
// terminal status clears any progress note.
func (s *Service) UpdateToolCallStatus(ctx context.Context, sessionID, callID string, status types.ToolCallStatus, result, progress *string) error {
	_, err := s.mutate(ctx, sessionID, func(sess *types.ChatSession) error {
		part := findToolCall(sess, callID)
		if part == nil {
			return fmt.Errorf("%w: %s", ErrToolCallNotFound, callID)
		}
		if part.Status.Terminal() {
			logging.Debug().Str("call", callID).Str("status", string(status)).Msg("ignoring update to terminal tool call")
			return nil
		}
		part.Status = status
		if result != nil {
			part.Result = result
		}
		if status.Terminal() {
			part.Progress = nil
		} else if progress != nil {
			part.Progress = progress
		}
		return nil
	})
	return err
}

// FindMessageByToolCallID returns a snapshot of the message containing the
// given tool call, newest first.
func (s *Service) FindMessageByToolCallID(ctx context.Context, sessionID, callID string) (*types.UiMessage, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := len(sess.History) - 1; i >= 0; i-- {
		if _, ok := sess.History[i].ToolCall(callID); ok {
			return sess.History[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrToolCallNotFound, callID)
}

// DeleteMessage removes one message from a session's history.
func (s *Service) DeleteMessage(ctx context.Context, sessionID, messageID string) error {
	_, err := s.mutate(ctx, sessionID, func(sess *types.ChatSession) error {
		for i, msg := range sess.History {
			if msg.ID == messageID {
				sess.History = append(sess.History[:i], sess.History[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	})
	return err
}

// ClearHistory removes every message from a session.
func (s *Service) ClearHistory(ctx context.Context, sessionID string) error {
	_, err := s.mutate(ctx, sessionID, func(sess *types.ChatSession) error {
		sess.History = []*types.UiMessage{}
		return nil
	})
	return err
}

// ReconcileFinalMessage settles an assistant frame after its stream ended,
// normally or not. The text accumulated in the frame is the source of truth:
// an interrupted stream keeps whatever arrived. When the completed stream
// produced a definitive tool-call list it overrides the incrementally built
// parts, though each call keeps its last-known status and result. The
// rebuilt content puts tool calls first, then the cleaned text. A trailing
// structured-actions block is stripped from the text and published on the
// bus instead of being persisted; if it fails to parse the text is left
// untouched.
//
// finalToolCalls nil means "no definitive set" (abort, transport error);
// status is the message's final status; msgErr annotates failed or aborted
// turns and may be nil.
func (s *Service) ReconcileFinalMessage(ctx context.Context, sessionID, messageID string, finalToolCalls []*types.ToolCallPart, status string, msgErr *types.MessageError) ([]types.SuggestedAction, error) {
	var actions []types.SuggestedAction

	_, err := s.mutate(ctx, sessionID, func(sess *types.ChatSession) error {
		msg := findMessage(sess, messageID)
		if msg == nil {
			return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
		}

		text := msg.Text()

		var calls []*types.ToolCallPart
		if finalToolCalls != nil {
			for _, fc := range finalToolCalls {
				merged := &types.ToolCallPart{
					Type:       "tool-call",
					ToolCallID: fc.ToolCallID,
					ToolName:   fc.ToolName,
					Args:       fc.Args,
					Status:     fc.Status,
					Result:     fc.Result,
				}
				// Statuses recorded during the stream win over the
				// definitive list's defaults.
				if prev, ok := msg.ToolCall(fc.ToolCallID); ok {
					if prev.Status != types.ToolCallPending {
						merged.Status = prev.Status
						merged.Result = prev.Result
					}
					if merged.Args == nil {
						merged.Args = prev.Args
					}
				}
				calls = append(calls, merged)
			}
		} else {
			for _, part := range msg.Content {
				if tc, ok := part.(*types.ToolCallPart); ok {
					calls = append(calls, tc)
				}
			}
		}

		for _, tc := range calls {
			if tc.Status.Terminal() {
				continue
			}
			if status == types.StatusComplete {
				tc.Status = types.ToolCallComplete
			} else {
				tc.Status = types.ToolCallError
				r := "interrupted"
				tc.Result = &r
			}
			tc.Progress = nil
		}

		cleaned, extracted := extractSuggestedActions(text)
		actions = extracted

		content := make([]types.ContentPart, 0, len(calls)+1)
		for _, tc := range calls {
			content = append(content, tc)
		}
		if cleaned != "" {
			content = append(content, types.NewTextPart(cleaned))
		}

		msg.Content = content
		msg.Status = status
		msg.Error = msgErr
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(actions) > 0 {
		s.bus.Publish(event.TopicSuggestedActions(sessionID, messageID), actions)
	}
	return actions, nil
}

func findMessage(sess *types.ChatSession, messageID string) *types.UiMessage {
	for i := len(sess.History) - 1; i >= 0; i-- {
		if sess.History[i].ID == messageID {
			return sess.History[i]
		}
	}
	return nil
}

func findToolCall(sess *types.ChatSession, callID string) *types.ToolCallPart {
	for i := len(sess.History) - 1; i >= 0; i-- {
		if tc, ok := sess.History[i].ToolCall(callID); ok {
			return tc
		}
	}
	return nil
}
