package clienttool

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidekick-dev/sidekick/internal/event"
	"github.com/sidekick-dev/sidekick/internal/tool"
)

func newTestRegistry(t *testing.T, timeout time.Duration) (*Registry, *tool.Registry, *event.Bus) {
	t.Helper()
	bus := event.NewBus()
	t.Cleanup(func() { bus.Close() })
	tools := tool.NewRegistry(t.TempDir())
	return NewRegistry(tools, bus, timeout), tools, bus
}

func TestRegister_MirrorsIntoToolRegistry(t *testing.T) {
	r, tools, _ := newTestRegistry(t, 0)

	ids := r.Register("vscode", []Definition{
		{ID: "open_file", Description: "opens a file in the editor"},
		{ID: "show_diff", Description: "shows a diff"},
	})
	require.Len(t, ids, 2)
	assert.Contains(t, ids, "client_vscode_open_file")

	mirrored, ok := tools.Get("client_vscode_open_file")
	require.True(t, ok)
	assert.Equal(t, tool.CategoryEditor, mirrored.Category())

	// Re-registering replaces the set.
	r.Register("vscode", []Definition{{ID: "open_file", Description: "v2"}})
	_, ok = tools.Get("client_vscode_show_diff")
	assert.False(t, ok)
	_, ok = tools.Get("client_vscode_open_file")
	assert.True(t, ok)
}

func TestUnregister(t *testing.T) {
	r, tools, _ := newTestRegistry(t, 0)
	r.Register("c1", []Definition{{ID: "a"}, {ID: "b"}})

	removed := r.Unregister("c1", []string{"a"})
	assert.Equal(t, []string{"client_c1_a"}, removed)
	_, ok := tools.Get("client_c1_a")
	assert.False(t, ok)
	_, ok = tools.Get("client_c1_b")
	assert.True(t, ok)

	removed = r.Unregister("c1", nil)
	assert.Len(t, removed, 1)
	_, ok = tools.Get("client_c1_b")
	assert.False(t, ok)
}

func TestExecute_RoundTrip(t *testing.T) {
	r, tools, bus := newTestRegistry(t, time.Second)
	r.Register("vscode", []Definition{{ID: "open_file", Description: "opens"}})

	// The frontend side: answer every request over the bus.
	unsub := bus.Subscribe(event.TopicClientToolRequest, func(u event.Update) {
		req, ok := u.Data.(Request)
		require.True(t, ok)
		assert.Equal(t, "client_vscode_open_file", req.Tool)
		ok = r.SubmitResult(req.RequestID, Response{Status: "success", Output: "opened"})
		assert.True(t, ok)
	})
	defer unsub()

	mirrored, ok := tools.Get("client_vscode_open_file")
	require.True(t, ok)

	result, err := mirrored.Execute(context.Background(), json.RawMessage(`{"path":"main.go"}`), &tool.Context{CallID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "opened", result.Output)
}

func TestExecute_ErrorResponse(t *testing.T) {
	r, _, bus := newTestRegistry(t, time.Second)

	unsub := bus.Subscribe(event.TopicClientToolRequest, func(u event.Update) {
		req := u.Data.(Request)
		r.SubmitResult(req.RequestID, Response{Status: "error", Error: "no active editor"})
	})
	defer unsub()

	_, err := r.Execute(context.Background(), "vscode", Request{Tool: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active editor")
}

func TestExecute_Timeout(t *testing.T) {
	r, _, _ := newTestRegistry(t, 50*time.Millisecond)

	_, err := r.Execute(context.Background(), "vscode", Request{Tool: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestSubmitResult_UnknownRequest(t *testing.T) {
	r, _, _ := newTestRegistry(t, 0)
	assert.False(t, r.SubmitResult("nope", Response{Status: "success"}))
}

func TestCleanup_FailsPendingRequests(t *testing.T) {
	r, tools, _ := newTestRegistry(t, 5*time.Second)
	r.Register("vscode", []Definition{{ID: "a"}})

	errCh := make(chan error, 1)
	go func() {
		_, err := r.Execute(context.Background(), "vscode", Request{Tool: "a"})
		errCh <- err
	}()

	// Let the request become pending, then drop the client.
	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.pending) == 1
	}, time.Second, 5*time.Millisecond)

	r.Cleanup("vscode")

	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client disconnected")

	_, ok := tools.Get("client_vscode_a")
	assert.False(t, ok)
}
