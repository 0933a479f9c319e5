package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/sidekick-dev/sidekick/internal/storage"
)

func newTestKeys(t *testing.T) *Keys {
	t.Helper()
	keyring.MockInit()
	return NewKeys(storage.New(t.TempDir()))
}

func TestKeys_SetGetDelete(t *testing.T) {
	keys := newTestKeys(t)
	ctx := context.Background()

	require.NoError(t, keys.Set(ctx, "anthropic", "sk-test"))

	got, err := keys.Get(ctx, "anthropic")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", got)

	providers, err := keys.List(ctx)
	require.NoError(t, err)
	assert.Contains(t, providers, "anthropic")

	require.NoError(t, keys.Delete(ctx, "anthropic"))
	_, err = keys.Get(ctx, "anthropic")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestKeys_EnvFallback(t *testing.T) {
	keys := newTestKeys(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")

	got, err := keys.Get(context.Background(), "openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-env", got)
}

func TestKeys_UnknownProviderEnvName(t *testing.T) {
	keys := newTestKeys(t)
	t.Setenv("SIDEKICK_MY_LLM_API_KEY", "sk-custom")

	got, err := keys.Get(context.Background(), "my-llm")
	require.NoError(t, err)
	assert.Equal(t, "sk-custom", got)
}

func TestKeys_Validation(t *testing.T) {
	keys := newTestKeys(t)
	ctx := context.Background()

	assert.Error(t, keys.Set(ctx, "", "sk"))
	assert.Error(t, keys.Set(ctx, "anthropic", ""))

	// Deleting a provider that never had a key is fine.
	assert.NoError(t, keys.Delete(ctx, "never-stored"))
}
