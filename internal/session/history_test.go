package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidekick-dev/sidekick/internal/event"
	"github.com/sidekick-dev/sidekick/pkg/types"
)

func newSessionWithFrame(t *testing.T) (*Service, *event.Bus, string, string) {
	t.Helper()
	svc, bus, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "", types.ChatConfig{})
	require.NoError(t, err)
	frame, err := svc.AddAssistantFrame(ctx, sess.ID, types.ModelRef{ProviderID: "p", ModelID: "m"})
	require.NoError(t, err)
	return svc, bus, sess.ID, frame.ID
}

func lastMessage(t *testing.T, svc *Service, sessionID string) *types.UiMessage {
	t.Helper()
	sess, err := svc.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotEmpty(t, sess.History)
	return sess.History[len(sess.History)-1]
}

func TestAddUserMessage_RejectsEmpty(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	sess, err := svc.CreateSession(ctx, "", types.ChatConfig{})
	require.NoError(t, err)

	_, err = svc.AddUserMessage(ctx, sess.ID, "   \n\t", nil)
	assert.Error(t, err)

	// An image with no text is fine.
	_, err = svc.AddUserMessage(ctx, sess.ID, "", []*types.ImagePart{
		{MediaType: "image/png", Data: "aGk="},
	})
	assert.NoError(t, err)
}

func TestAppendTextChunk_ConcatenatesInOrder(t *testing.T) {
	svc, _, sessionID, frameID := newSessionWithFrame(t)
	ctx := context.Background()

	for _, delta := range []string{"Hel", "lo", " world"} {
		require.NoError(t, svc.AppendTextChunk(ctx, sessionID, frameID, delta))
	}

	msg := lastMessage(t, svc, sessionID)
	assert.Equal(t, "Hello world", msg.Text())
	// Deltas extend one part instead of piling up.
	require.Len(t, msg.Content, 1)
}

func TestAppendTextChunk_OpensNewPartAfterToolCall(t *testing.T) {
	svc, _, sessionID, frameID := newSessionWithFrame(t)
	ctx := context.Background()

	require.NoError(t, svc.AppendTextChunk(ctx, sessionID, frameID, "before"))
	require.NoError(t, svc.AddToolCall(ctx, sessionID, frameID, "t1", "echo", nil))
	require.NoError(t, svc.AppendTextChunk(ctx, sessionID, frameID, "after"))

	msg := lastMessage(t, svc, sessionID)
	require.Len(t, msg.Content, 3)
	assert.Equal(t, "text", msg.Content[0].PartType())
	assert.Equal(t, "tool-call", msg.Content[1].PartType())
	assert.Equal(t, "text", msg.Content[2].PartType())
}

func TestToolCallIdentity(t *testing.T) {
	svc, _, sessionID, frameID := newSessionWithFrame(t)
	ctx := context.Background()

	require.NoError(t, svc.AddToolCall(ctx, sessionID, frameID, "tc1", "foo", map[string]any{}))
	// Re-adding the same id is ignored, not duplicated.
	require.NoError(t, svc.AddToolCall(ctx, sessionID, frameID, "tc1", "foo", map[string]any{}))

	result := "42"
	require.NoError(t, svc.UpdateToolCallStatus(ctx, sessionID, "tc1", types.ToolCallComplete, &result, nil))

	msg := lastMessage(t, svc, sessionID)
	count := 0
	for _, part := range msg.Content {
		if tc, ok := part.(*types.ToolCallPart); ok && tc.ToolCallID == "tc1" {
			count++
			assert.Equal(t, types.ToolCallComplete, tc.Status)
			require.NotNil(t, tc.Result)
			assert.Equal(t, "42", *tc.Result)
		}
	}
	assert.Equal(t, 1, count)
}

func TestUpdateToolCallStatus_MonotonicAndProgress(t *testing.T) {
	svc, _, sessionID, frameID := newSessionWithFrame(t)
	ctx := context.Background()

	require.NoError(t, svc.AddToolCall(ctx, sessionID, frameID, "tc1", "foo", nil))

	progress := "reading file 3/10"
	require.NoError(t, svc.UpdateToolCallStatus(ctx, sessionID, "tc1", types.ToolCallRunning, nil, &progress))
	tc, ok := lastMessage(t, svc, sessionID).ToolCall("tc1")
	require.True(t, ok)
	assert.Equal(t, types.ToolCallRunning, tc.Status)
	require.NotNil(t, tc.Progress)
	assert.Equal(t, progress, *tc.Progress)

	result := "done"
	require.NoError(t, svc.UpdateToolCallStatus(ctx, sessionID, "tc1", types.ToolCallComplete, &result, nil))
	tc, _ = lastMessage(t, svc, sessionID).ToolCall("tc1")
	assert.Equal(t, types.ToolCallComplete, tc.Status)
	assert.Nil(t, tc.Progress, "terminal status clears progress")

	// A late regression to running is dropped.
	require.NoError(t, svc.UpdateToolCallStatus(ctx, sessionID, "tc1", types.ToolCallRunning, nil, nil))
	tc, _ = lastMessage(t, svc, sessionID).ToolCall("tc1")
	assert.Equal(t, types.ToolCallComplete, tc.Status)

	err := svc.UpdateToolCallStatus(ctx, sessionID, "missing", types.ToolCallComplete, nil, nil)
	assert.Error(t, err)
}

func TestReconcile_PreservesPartialTextOnAbort(t *testing.T) {
	svc, _, sessionID, frameID := newSessionWithFrame(t)
	ctx := context.Background()

	require.NoError(t, svc.AppendTextChunk(ctx, sessionID, frameID, "partial answer"))

	_, err := svc.ReconcileFinalMessage(ctx, sessionID, frameID, nil, types.StatusAborted, types.NewAbortError())
	require.NoError(t, err)

	msg := lastMessage(t, svc, sessionID)
	require.Len(t, msg.Content, 1)
	tp, ok := msg.Content[0].(*types.TextPart)
	require.True(t, ok)
	assert.Equal(t, "partial answer", tp.Text)
	assert.Equal(t, types.StatusAborted, msg.Status)
	require.NotNil(t, msg.Error)
	assert.Equal(t, "AbortError", msg.Error.Name)
}

func TestReconcile_ToolCallsPrecedeText(t *testing.T) {
	svc, _, sessionID, frameID := newSessionWithFrame(t)
	ctx := context.Background()

	require.NoError(t, svc.AppendTextChunk(ctx, sessionID, frameID, "Hello"))
	require.NoError(t, svc.AddToolCall(ctx, sessionID, frameID, "t1", "echo", nil))
	result := "ok"
	require.NoError(t, svc.UpdateToolCallStatus(ctx, sessionID, "t1", types.ToolCallComplete, &result, nil))

	final := []*types.ToolCallPart{{
		ToolCallID: "t1",
		ToolName:   "echo",
		Args:       map[string]any{"x": float64(1)},
		Status:     types.ToolCallComplete,
		Result:     &result,
	}}
	_, err := svc.ReconcileFinalMessage(ctx, sessionID, frameID, final, types.StatusComplete, nil)
	require.NoError(t, err)

	msg := lastMessage(t, svc, sessionID)
	require.Len(t, msg.Content, 2)
	tc, ok := msg.Content[0].(*types.ToolCallPart)
	require.True(t, ok)
	assert.Equal(t, "t1", tc.ToolCallID)
	assert.Equal(t, types.ToolCallComplete, tc.Status)
	require.NotNil(t, tc.Result)
	assert.Equal(t, "ok", *tc.Result)

	tp, ok := msg.Content[1].(*types.TextPart)
	require.True(t, ok)
	assert.Equal(t, "Hello", tp.Text)
	assert.Equal(t, types.StatusComplete, msg.Status)
}

func TestReconcile_FinalSetIsAuthoritative(t *testing.T) {
	svc, _, sessionID, frameID := newSessionWithFrame(t)
	ctx := context.Background()

	require.NoError(t, svc.AddToolCall(ctx, sessionID, frameID, "t1", "echo", nil))
	require.NoError(t, svc.AddToolCall(ctx, sessionID, frameID, "t2", "stale", nil))
	result := "ran"
	require.NoError(t, svc.UpdateToolCallStatus(ctx, sessionID, "t1", types.ToolCallComplete, &result, nil))

	// The definitive list drops t2 and introduces t3.
	final := []*types.ToolCallPart{
		{ToolCallID: "t1", ToolName: "echo", Status: types.ToolCallPending},
		{ToolCallID: "t3", ToolName: "late", Status: types.ToolCallComplete},
	}
	_, err := svc.ReconcileFinalMessage(ctx, sessionID, frameID, final, types.StatusComplete, nil)
	require.NoError(t, err)

	msg := lastMessage(t, svc, sessionID)
	_, stale := msg.ToolCall("t2")
	assert.False(t, stale, "tool call outside the definitive set is removed")

	t1, ok := msg.ToolCall("t1")
	require.True(t, ok)
	assert.Equal(t, types.ToolCallComplete, t1.Status, "recorded status survives the definitive list")
	require.NotNil(t, t1.Result)
	assert.Equal(t, "ran", *t1.Result)

	_, ok = msg.ToolCall("t3")
	assert.True(t, ok)
}

func TestReconcile_PendingCallsErrorOnAbort(t *testing.T) {
	svc, _, sessionID, frameID := newSessionWithFrame(t)
	ctx := context.Background()

	require.NoError(t, svc.AddToolCall(ctx, sessionID, frameID, "t1", "echo", nil))
	_, err := svc.ReconcileFinalMessage(ctx, sessionID, frameID, nil, types.StatusAborted, types.NewAbortError())
	require.NoError(t, err)

	tc, ok := lastMessage(t, svc, sessionID).ToolCall("t1")
	require.True(t, ok)
	assert.Equal(t, types.ToolCallError, tc.Status)
}

func TestReconcile_ExtractsSuggestedActions(t *testing.T) {
	svc, bus, sessionID, frameID := newSessionWithFrame(t)
	ctx := context.Background()

	text := "Answer text\n```json\n{\"suggested_actions\":[{\"label\":\"Retry\",\"action_type\":\"send_message\",\"value\":\"retry\"}]}\n```"
	require.NoError(t, svc.AppendTextChunk(ctx, sessionID, frameID, text))

	var published []types.SuggestedAction
	done := make(chan struct{})
	unsub := bus.Subscribe(event.TopicSuggestedActions(sessionID, frameID), func(u event.Update) {
		if actions, ok := u.Data.([]types.SuggestedAction); ok {
			published = actions
			close(done)
		}
	})
	defer unsub()

	actions, err := svc.ReconcileFinalMessage(ctx, sessionID, frameID, nil, types.StatusComplete, nil)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "Retry", actions[0].Label)

	<-done
	require.Len(t, published, 1)
	assert.Equal(t, "send_message", published[0].ActionType)

	assert.Equal(t, "Answer text", lastMessage(t, svc, sessionID).Text())
}

func TestDeleteMessageAndClearHistory(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.CreateSession(ctx, "", types.ChatConfig{})
	require.NoError(t, err)
	first, err := svc.AddUserMessage(ctx, sess.ID, "one", nil)
	require.NoError(t, err)
	_, err = svc.AddUserMessage(ctx, sess.ID, "two", nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMessage(ctx, sess.ID, first.ID))
	got, err := svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 1)
	assert.Equal(t, "two", got.History[0].Text())

	assert.Error(t, svc.DeleteMessage(ctx, sess.ID, "missing"))

	require.NoError(t, svc.ClearHistory(ctx, sess.ID))
	got, err = svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.History)
}

func TestFindMessageByToolCallID(t *testing.T) {
	svc, _, sessionID, frameID := newSessionWithFrame(t)
	ctx := context.Background()

	require.NoError(t, svc.AddToolCall(ctx, sessionID, frameID, "tcx", "echo", nil))

	msg, err := svc.FindMessageByToolCallID(ctx, sessionID, "tcx")
	require.NoError(t, err)
	assert.Equal(t, frameID, msg.ID)

	_, err = svc.FindMessageByToolCallID(ctx, sessionID, "absent")
	assert.Error(t, err)
}
