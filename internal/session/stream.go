package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/sidekick-dev/sidekick/internal/logging"
	"github.com/sidekick-dev/sidekick/internal/provider"
	"github.com/sidekick-dev/sidekick/pkg/types"
)

// turnResult is what one consumed model stream produced.
type turnResult struct {
	text         string
	toolCalls    []schema.ToolCall
	finishReason string
}

// run executes one send: a chain of model turns, each streamed into its own
// assistant frame, with tool execution between turns. The chain ends when a
// turn finishes without tool calls, the round bound is hit, the stream is
// aborted, or transport fails. Every exit path reconciles the in-flight
// frame, so partial content always persists.
func (o *Orchestrator) run(ctx context.Context, sessionID, frameID string, p provider.Provider, model *types.Model, chatCfg types.ChatConfig) {
	messageID := frameID

	for round := 0; round < maxToolRounds; round++ {
		if round > 0 {
			ref := types.ModelRef{ProviderID: model.ProviderID, ModelID: model.ID}
			frame, err := o.service.AddAssistantFrame(ctx, sessionID, ref)
			if err != nil {
				logging.Error().Err(err).Str("session", sessionID).Msg("create follow-up frame")
				return
			}
			messageID = frame.ID
		}

		o.publishState(sessionID, StateRequesting, messageID, "")

		sess, err := o.service.GetSession(ctx, sessionID)
		if err != nil {
			o.fail(ctx, sessionID, messageID, types.NewTransportError(err.Error()))
			return
		}

		req := &provider.CompletionRequest{
			Model:    model.ID,
			Messages: TranslateToModelMessages(sess, chatCfg.SystemPrompt),
			Tools:    o.tools.ToolInfos(o.policy()),
		}
		if chatCfg.MaxTokens > 0 {
			req.MaxTokens = chatCfg.MaxTokens
		}
		if chatCfg.Temperature != nil {
			req.Temperature = *chatCfg.Temperature
		}

		stream, err := p.CreateCompletion(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				o.abortTurn(sessionID, messageID)
				return
			}
			o.fail(ctx, sessionID, messageID, types.NewTransportError(err.Error()))
			return
		}

		o.publishState(sessionID, StateStreaming, messageID, "")
		result, streamErr := o.consumeStream(ctx, sessionID, messageID, stream)
		stream.Close()

		if streamErr != nil {
			if errors.Is(streamErr, context.Canceled) || ctx.Err() != nil {
				o.abortTurn(sessionID, messageID)
				return
			}
			o.fail(ctx, sessionID, messageID, types.NewTransportError(streamErr.Error()))
			return
		}
		// Some providers end the stream quietly when the context is
		// cancelled instead of surfacing an error.
		if ctx.Err() != nil {
			o.abortTurn(sessionID, messageID)
			return
		}

		if len(result.toolCalls) == 0 {
			o.finish(ctx, sessionID, messageID, nil)
			return
		}

		finalParts := o.executeToolCalls(ctx, sessionID, messageID, result.toolCalls, p, model)
		// An abort during tool execution must not finalize the turn as
		// complete; the recorded tool parts persist either way.
		if ctx.Err() != nil {
			o.abortTurn(sessionID, messageID)
			return
		}
		o.finish(ctx, sessionID, messageID, finalParts)
	}

	logging.Warn().Str("session", sessionID).Int("rounds", maxToolRounds).Msg("tool round bound reached")
}

// consumeStream demultiplexes one model stream into history mutations.
// Text chunks may arrive either as pure deltas or as the full accumulated
// content so far; both shapes reduce to an append. Tool calls are keyed by
// call id, with argument fragments concatenated across chunks.
func (o *Orchestrator) consumeStream(ctx context.Context, sessionID, messageID string, stream *provider.CompletionStream) (*turnResult, error) {
	result := &turnResult{}

	var callOrder []string
	argBuffers := make(map[string]*strings.Builder)
	callNames := make(map[string]string)
	lastCallID := ""

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, err
		}
		if chunk == nil {
			continue
		}

		if chunk.Content != "" {
			delta := chunk.Content
			if len(delta) > len(result.text) && strings.HasPrefix(delta, result.text) && result.text != "" {
				delta = delta[len(result.text):]
			}
			result.text += delta
			if err := o.service.AppendTextChunk(ctx, sessionID, messageID, delta); err != nil {
				return result, err
			}
		}

		for _, tc := range chunk.ToolCalls {
			id := tc.ID
			if id == "" {
				// Argument continuation chunks omit the id.
				id = lastCallID
				if id == "" {
					continue
				}
			} else if _, seen := argBuffers[id]; !seen {
				callOrder = append(callOrder, id)
				argBuffers[id] = &strings.Builder{}
				callNames[id] = tc.Function.Name
				if err := o.service.AddToolCall(ctx, sessionID, messageID, id, tc.Function.Name, nil); err != nil {
					return result, err
				}
			}
			lastCallID = id
			if tc.Function.Name != "" {
				callNames[id] = tc.Function.Name
			}
			argBuffers[id].WriteString(tc.Function.Arguments)
		}

		if chunk.ResponseMeta != nil && chunk.ResponseMeta.FinishReason != "" {
			result.finishReason = chunk.ResponseMeta.FinishReason
		}
	}

	for _, id := range callOrder {
		result.toolCalls = append(result.toolCalls, schema.ToolCall{
			ID:   id,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      callNames[id],
				Arguments: argBuffers[id].String(),
			},
		})
	}
	return result, nil
}

// finish reconciles a normally completed turn and returns the machine to
// idle.
func (o *Orchestrator) finish(ctx context.Context, sessionID, messageID string, finalParts []*types.ToolCallPart) {
	o.publishState(sessionID, StateFinalizing, messageID, "")
	if _, err := o.service.ReconcileFinalMessage(ctx, sessionID, messageID, finalParts, types.StatusComplete, nil); err != nil {
		logging.Error().Err(err).Str("message", messageID).Msg("reconcile completed turn")
	}
	o.publishState(sessionID, StateIdle, "", "")
}

// abortTurn reconciles a cancelled turn, keeping whatever was accumulated.
func (o *Orchestrator) abortTurn(sessionID, messageID string) {
	// The stream context is already cancelled; persistence must still run.
	ctx := context.Background()
	o.publishState(sessionID, StateAborted, messageID, "")
	if _, err := o.service.ReconcileFinalMessage(ctx, sessionID, messageID, nil, types.StatusAborted, types.NewAbortError()); err != nil {
		logging.Error().Err(err).Str("message", messageID).Msg("reconcile aborted turn")
	}
	o.publishState(sessionID, StateIdle, "", "")
}

// fail reconciles a turn cut short by a transport or model error. The
// partial content persists; the error is surfaced on the message.
func (o *Orchestrator) fail(ctx context.Context, sessionID, messageID string, msgErr *types.MessageError) {
	o.publishState(sessionID, StateFailed, messageID, msgErr.Message)
	if _, err := o.service.ReconcileFinalMessage(context.WithoutCancel(ctx), sessionID, messageID, nil, types.StatusError, msgErr); err != nil {
		logging.Error().Err(err).Str("message", messageID).Msg("reconcile failed turn")
	}
	o.publishState(sessionID, StateIdle, "", "")
}

// rawArgs parses a tool call's accumulated argument JSON.
func rawArgs(arguments string) (map[string]any, error) {
	trimmed := strings.TrimSpace(arguments)
	if trimmed == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(trimmed), &args); err != nil {
		return nil, err
	}
	return args, nil
}
