package session

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidekick-dev/sidekick/pkg/types"
)

func strptr(s string) *string { return &s }

func TestTranslate_SystemPromptAndUserText(t *testing.T) {
	sess := &types.ChatSession{History: []*types.UiMessage{
		{Role: types.RoleUser, Content: []types.ContentPart{types.NewTextPart("hi")}},
	}}

	msgs := TranslateToModelMessages(sess, "be terse")
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, "be terse", msgs[0].Content)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, "hi", msgs[1].Content)

	msgs = TranslateToModelMessages(sess, "")
	require.Len(t, msgs, 1)
	assert.Equal(t, schema.User, msgs[0].Role)
}

func TestTranslate_UserImagesBecomeMultiContent(t *testing.T) {
	sess := &types.ChatSession{History: []*types.UiMessage{
		{Role: types.RoleUser, Content: []types.ContentPart{
			types.NewTextPart("what is this"),
			&types.ImagePart{Type: "image", MediaType: "image/png", Data: "aGk="},
		}},
	}}

	msgs := TranslateToModelMessages(sess, "")
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].MultiContent, 2)
	assert.Equal(t, schema.ChatMessagePartTypeText, msgs[0].MultiContent[0].Type)
	assert.Equal(t, schema.ChatMessagePartTypeImageURL, msgs[0].MultiContent[1].Type)
	assert.Equal(t, "data:image/png;base64,aGk=", msgs[0].MultiContent[1].ImageURL.URL)
}

func TestTranslate_CompletedToolCallSynthesizesResult(t *testing.T) {
	sess := &types.ChatSession{History: []*types.UiMessage{
		{Role: types.RoleUser, Content: []types.ContentPart{types.NewTextPart("run it")}},
		{Role: types.RoleAssistant, Content: []types.ContentPart{
			&types.ToolCallPart{
				ToolCallID: "t1",
				ToolName:   "echo",
				Args:       map[string]any{"x": float64(1)},
				Status:     types.ToolCallComplete,
				Result:     strptr("ok"),
			},
			types.NewTextPart("running"),
		}},
	}}

	msgs := TranslateToModelMessages(sess, "")
	require.Len(t, msgs, 3)

	turn := msgs[1]
	assert.Equal(t, schema.Assistant, turn.Role)
	assert.Equal(t, "running", turn.Content)
	require.Len(t, turn.ToolCalls, 1)
	assert.Equal(t, "t1", turn.ToolCalls[0].ID)
	assert.Equal(t, "echo", turn.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"x":1}`, turn.ToolCalls[0].Function.Arguments)

	result := msgs[2]
	assert.Equal(t, schema.Tool, result.Role)
	assert.Equal(t, "t1", result.ToolCallID)
	assert.Equal(t, "ok", result.Content)
}

func TestTranslate_ErroredToolCallGetsFallbackResult(t *testing.T) {
	sess := &types.ChatSession{History: []*types.UiMessage{
		{Role: types.RoleAssistant, Content: []types.ContentPart{
			&types.ToolCallPart{ToolCallID: "t1", ToolName: "echo", Status: types.ToolCallError},
		}},
	}}

	msgs := TranslateToModelMessages(sess, "")
	require.Len(t, msgs, 2)
	assert.Equal(t, "tool execution failed", msgs[1].Content)
}

func TestTranslate_OmitsEmptyMessages(t *testing.T) {
	sess := &types.ChatSession{History: []*types.UiMessage{
		// Assistant turn whose only call never finished: no legal wire form.
		{Role: types.RoleAssistant, Content: []types.ContentPart{
			&types.ToolCallPart{ToolCallID: "t1", ToolName: "echo", Status: types.ToolCallPending},
		}},
		{Role: types.RoleUser, Content: []types.ContentPart{}},
		{Role: types.RoleUser, Content: []types.ContentPart{types.NewTextPart("still here")}},
	}}

	msgs := TranslateToModelMessages(sess, "")
	require.Len(t, msgs, 1)
	assert.Equal(t, "still here", msgs[0].Content)
}
