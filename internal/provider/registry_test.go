package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidekick-dev/sidekick/pkg/types"
)

// stubProvider backs registry tests without touching a real API.
type stubProvider struct {
	id     string
	models []types.Model
}

func (s *stubProvider) ID() string            { return s.id }
func (s *stubProvider) Name() string          { return s.id }
func (s *stubProvider) Models() []types.Model { return s.models }
func (s *stubProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	return nil, nil
}

func TestRegistry_GetAndList(t *testing.T) {
	r := NewRegistry("")
	r.Register(&stubProvider{id: "beta"})
	r.Register(&stubProvider{id: "alpha"})

	p, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", p.ID())

	_, err = r.Get("missing")
	assert.Error(t, err)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].ID())
	assert.Equal(t, "beta", list[1].ID())
}

func TestRegistry_GetModel(t *testing.T) {
	r := NewRegistry("")
	r.Register(&stubProvider{id: "p", models: []types.Model{
		{ID: "m1", ProviderID: "p"},
		{ID: "m2", ProviderID: "p"},
	}})

	m, err := r.GetModel("p", "m2")
	require.NoError(t, err)
	assert.Equal(t, "m2", m.ID)

	_, err = r.GetModel("p", "m3")
	assert.Error(t, err)
}

func TestRegistry_DefaultModel(t *testing.T) {
	r := NewRegistry("p/m2")
	r.Register(&stubProvider{id: "p", models: []types.Model{
		{ID: "m1", ProviderID: "p"},
		{ID: "m2", ProviderID: "p"},
	}})

	m, err := r.DefaultModel()
	require.NoError(t, err)
	assert.Equal(t, "m2", m.ID)

	// Unresolvable default falls back to the first model.
	r = NewRegistry("gone/none")
	r.Register(&stubProvider{id: "p", models: []types.Model{{ID: "m1", ProviderID: "p"}}})
	m, err = r.DefaultModel()
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)

	// No providers at all is an error.
	_, err = NewRegistry("").DefaultModel()
	assert.Error(t, err)
}

func TestParseModelRef(t *testing.T) {
	p, m := ParseModelRef("anthropic/claude-sonnet-4-20250514")
	assert.Equal(t, "anthropic", p)
	assert.Equal(t, "claude-sonnet-4-20250514", m)

	p, m = ParseModelRef("bare-model")
	assert.Empty(t, p)
	assert.Equal(t, "bare-model", m)
}
