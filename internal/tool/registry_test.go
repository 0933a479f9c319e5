package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidekick-dev/sidekick/pkg/types"
)

func TestRegistry_DefaultHasBuiltins(t *testing.T) {
	r := DefaultRegistry(t.TempDir())

	for _, id := range []string{"read_file", "write_file", "list_dir", "glob", "fetch", "hash", "base64", "uuid"} {
		_, ok := r.Get(id)
		assert.True(t, ok, "missing builtin %s", id)
	}
}

func TestRegistry_ListAppliesPolicy(t *testing.T) {
	r := DefaultRegistry(t.TempDir())
	policy := NewPolicy(&types.ToolPolicyConfig{
		Categories: map[string]types.ToolAvailability{
			CategoryWeb: types.ToolDisabled,
		},
	})

	for _, tl := range r.List(policy) {
		assert.NotEqual(t, "fetch", tl.ID(), "disabled tool must be excluded")
	}
	// Statuses still reports the disabled tool.
	statuses := r.Statuses(policy)
	assert.Equal(t, types.ToolDisabled, statuses["fetch"])
	assert.Equal(t, types.ToolAlwaysAvailable, statuses["read_file"])
}

func TestRegistry_UnregisterCategory(t *testing.T) {
	r := NewRegistry(t.TempDir())
	r.Register(NewBaseTool("srv_a", "a", "srv", nil, nil))
	r.Register(NewBaseTool("srv_b", "b", "srv", nil, nil))
	r.Register(NewBaseTool("other", "o", CategoryUtility, nil, nil))

	r.UnregisterCategory("srv")

	_, ok := r.Get("srv_a")
	assert.False(t, ok)
	_, ok = r.Get("other")
	assert.True(t, ok)
}

func TestRegistry_ToolInfos(t *testing.T) {
	r := DefaultRegistry(t.TempDir())

	infos := r.ToolInfos(nil)
	require.NotEmpty(t, infos)
	names := make(map[string]bool)
	for _, info := range infos {
		names[info.Name] = true
		assert.NotEmpty(t, info.Desc)
	}
	assert.True(t, names["glob"])
}
