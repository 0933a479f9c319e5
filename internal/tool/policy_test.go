package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sidekick-dev/sidekick/pkg/types"
)

func TestPolicy_NilPermitsEverything(t *testing.T) {
	p := NewPolicy(nil)
	assert.Equal(t, types.ToolAlwaysAvailable, p.Resolve("anything", "anywhere"))
	assert.True(t, p.Usable("anything", "anywhere"))
}

func TestPolicy_TierPrecedence(t *testing.T) {
	p := NewPolicy(&types.ToolPolicyConfig{
		Default: types.ToolRequiresAuthorization,
		Categories: map[string]types.ToolAvailability{
			CategoryFilesystem: types.ToolAlwaysAvailable,
		},
		Servers: map[string]types.ToolAvailability{
			"github": types.ToolDisabled,
		},
		Overrides: map[string]types.ToolAvailability{
			"write_file":           types.ToolDisabled,
			"github_create_issue":  types.ToolAlwaysAvailable,
		},
	})

	// Override beats category.
	assert.Equal(t, types.ToolDisabled, p.Resolve("write_file", CategoryFilesystem))
	// Category beats default.
	assert.Equal(t, types.ToolAlwaysAvailable, p.Resolve("read_file", CategoryFilesystem))
	// Server default applies to its tools.
	assert.Equal(t, types.ToolDisabled, p.Resolve("github_search", "github"))
	// Override beats server default.
	assert.Equal(t, types.ToolAlwaysAvailable, p.Resolve("github_create_issue", "github"))
	// Global default catches the rest.
	assert.Equal(t, types.ToolRequiresAuthorization, p.Resolve("fetch", CategoryWeb))
}

func TestPolicy_RequiresAuthIsUsable(t *testing.T) {
	p := NewPolicy(&types.ToolPolicyConfig{Default: types.ToolRequiresAuthorization})
	assert.True(t, p.Usable("fetch", CategoryWeb))

	p = NewPolicy(&types.ToolPolicyConfig{Default: types.ToolDisabled})
	assert.False(t, p.Usable("fetch", CategoryWeb))
}
