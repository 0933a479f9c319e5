package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/sidekick-dev/sidekick/internal/logging"
	"github.com/sidekick-dev/sidekick/internal/provider"
	"github.com/sidekick-dev/sidekick/internal/tool"
	"github.com/sidekick-dev/sidekick/pkg/types"
)

// executeToolCalls runs the tool calls a completed turn produced and
// returns the authoritative tool-call parts for reconciliation. Failures
// are captured per call as error-status parts; they never escape the
// orchestrator boundary. Malformed arguments get one bounded repair
// attempt through the model before the call is given up.
func (o *Orchestrator) executeToolCalls(ctx context.Context, sessionID, messageID string, calls []schema.ToolCall, p provider.Provider, model *types.Model) []*types.ToolCallPart {
	parts := make([]*types.ToolCallPart, 0, len(calls))

	for _, call := range calls {
		part := &types.ToolCallPart{
			Type:       "tool-call",
			ToolCallID: call.ID,
			ToolName:   call.Function.Name,
			Status:     types.ToolCallPending,
		}
		parts = append(parts, part)

		args, err := rawArgs(call.Function.Arguments)
		if err != nil {
			repaired, repairErr := o.repairArguments(ctx, p, model, call.Function.Name, call.Function.Arguments, err)
			if repairErr != nil {
				o.failCall(ctx, sessionID, part, fmt.Sprintf("invalid tool arguments: %v", err))
				continue
			}
			args = repaired
		}
		part.Args = args

		impl, ok := o.tools.Get(call.Function.Name)
		if !ok {
			o.failCall(ctx, sessionID, part, fmt.Sprintf("unknown tool: %s", call.Function.Name))
			continue
		}
		if !o.policy().Usable(impl.ID(), impl.Category()) {
			o.failCall(ctx, sessionID, part, fmt.Sprintf("tool not available: %s", call.Function.Name))
			continue
		}

		if err := o.service.UpdateToolCallStatus(ctx, sessionID, call.ID, types.ToolCallRunning, nil, nil); err != nil {
			logging.Warn().Err(err).Str("call", call.ID).Msg("mark tool call running")
		}

		toolCtx := &tool.Context{
			SessionID: sessionID,
			MessageID: messageID,
			CallID:    call.ID,
			WorkDir:   o.tools.WorkDir(),
			OnProgress: func(line string) {
				if err := o.service.UpdateToolCallStatus(ctx, sessionID, call.ID, types.ToolCallRunning, nil, &line); err != nil {
					logging.Debug().Err(err).Str("call", call.ID).Msg("report tool progress")
				}
			},
		}

		input, _ := marshalArgs(args)
		result, execErr := impl.Execute(ctx, input, toolCtx)
		if execErr != nil {
			o.failCall(ctx, sessionID, part, execErr.Error())
			continue
		}

		output := result.Output
		part.Status = types.ToolCallComplete
		part.Result = &output
		if err := o.service.UpdateToolCallStatus(ctx, sessionID, call.ID, types.ToolCallComplete, &output, nil); err != nil {
			logging.Warn().Err(err).Str("call", call.ID).Msg("record tool result")
		}
	}

	return parts
}

func (o *Orchestrator) failCall(ctx context.Context, sessionID string, part *types.ToolCallPart, message string) {
	logging.Warn().Str("call", part.ToolCallID).Str("tool", part.ToolName).Msg(message)
	part.Status = types.ToolCallError
	part.Result = &message
	if err := o.service.UpdateToolCallStatus(ctx, sessionID, part.ToolCallID, types.ToolCallError, &message, nil); err != nil {
		logging.Debug().Err(err).Str("call", part.ToolCallID).Msg("record tool failure")
	}
}

// repairArguments asks the model, once and with a tight token budget, to
// turn a malformed argument payload into valid JSON.
func (o *Orchestrator) repairArguments(ctx context.Context, p provider.Provider, model *types.Model, toolName, malformed string, parseErr error) (map[string]any, error) {
	prompt := fmt.Sprintf(
		"The arguments for the tool %q failed to parse as JSON (%v). "+
			"Reply with only the corrected JSON object, no prose, no code fence.\n\n%s",
		toolName, parseErr, malformed,
	)

	stream, err := p.CreateCompletion(ctx, &provider.CompletionRequest{
		Model: model.ID,
		Messages: []*schema.Message{
			{Role: schema.User, Content: prompt},
		},
		MaxTokens: 1024,
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			reply.WriteString(chunk.Content)
		}
	}

	cleaned := strings.TrimSpace(reply.String())
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	args, err := rawArgs(cleaned)
	if err != nil {
		return nil, fmt.Errorf("repair attempt still malformed: %w", err)
	}
	logging.Info().Str("tool", toolName).Msg("repaired malformed tool arguments")
	return args, nil
}

func marshalArgs(args map[string]any) ([]byte, error) {
	if args == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return []byte("{}"), err
	}
	return data, nil
}
