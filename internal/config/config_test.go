package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidekick-dev/sidekick/pkg/types"
)

func writeProjectConfig(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".sidekick"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".sidekick", "sidekick.json"), []byte(content), 0o644))
}

func isolateGlobalConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
}

func TestLoad_ProjectConfig(t *testing.T) {
	isolateGlobalConfig(t)
	dir := t.TempDir()
	writeProjectConfig(t, dir, `{
		// jsonc comments are allowed
		"defaultModel": "anthropic/claude-sonnet-4-5",
		"provider": {"anthropic": {"apiKey": "sk-file"}}
	}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-sonnet-4-5", cfg.DefaultModel)
	assert.Equal(t, "sk-file", cfg.Provider["anthropic"].APIKey)
}

func TestLoad_ProjectOverridesGlobal(t *testing.T) {
	isolateGlobalConfig(t)
	globalDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "sidekick")
	require.NoError(t, os.MkdirAll(globalDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "sidekick.json"), []byte(`{
		"defaultModel": "openai/gpt-4o",
		"logLevel": "debug",
		"provider": {"openai": {"apiKey": "sk-global"}}
	}`), 0o644))

	dir := t.TempDir()
	writeProjectConfig(t, dir, `{"defaultModel": "anthropic/claude-sonnet-4-5"}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	// Project wins on the scalar it sets; untouched global values survive.
	assert.Equal(t, "anthropic/claude-sonnet-4-5", cfg.DefaultModel)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "sk-global", cfg.Provider["openai"].APIKey)
}

func TestLoad_EnvInterpolation(t *testing.T) {
	isolateGlobalConfig(t)
	t.Setenv("TEST_SIDEKICK_KEY", "sk-env-interp")

	dir := t.TempDir()
	writeProjectConfig(t, dir, `{"provider": {"openai": {"apiKey": "{env:TEST_SIDEKICK_KEY}"}}}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-env-interp", cfg.Provider["openai"].APIKey)
}

func TestLoad_EnvOverridesDoNotClobberFiles(t *testing.T) {
	isolateGlobalConfig(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")
	t.Setenv("OPENAI_API_KEY", "sk-openai-env")

	dir := t.TempDir()
	writeProjectConfig(t, dir, `{"provider": {"anthropic": {"apiKey": "sk-from-file"}}}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sk-from-file", cfg.Provider["anthropic"].APIKey)
	assert.Equal(t, "sk-openai-env", cfg.Provider["openai"].APIKey)
}

func TestLoad_ToolPolicyMerge(t *testing.T) {
	isolateGlobalConfig(t)
	globalDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "sidekick")
	require.NoError(t, os.MkdirAll(globalDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "sidekick.json"), []byte(`{
		"tools": {"default": "requires-auth", "overrides": {"fetch": "disabled"}}
	}`), 0o644))

	dir := t.TempDir()
	writeProjectConfig(t, dir, `{"tools": {"overrides": {"read_file": "always"}}}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg.Tools)
	assert.Equal(t, types.ToolRequiresAuthorization, cfg.Tools.Default)
	assert.Equal(t, types.ToolDisabled, cfg.Tools.Overrides["fetch"])
	assert.Equal(t, types.ToolAlwaysAvailable, cfg.Tools.Overrides["read_file"])
}

func TestLoad_MissingFilesAreFine(t *testing.T) {
	isolateGlobalConfig(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.DefaultModel)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sidekick.json")
	in := &types.Config{DefaultModel: "gemini/gemini-2.5-pro"}
	require.NoError(t, Save(in, path))

	isolateGlobalConfig(t)
	t.Setenv("SIDEKICK_CONFIG", path)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini/gemini-2.5-pro", cfg.DefaultModel)
}
