// Package secrets stores provider API keys in the operating system keychain
// via go-keyring, with environment variables as a read-only fallback for
// headless setups.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/sidekick-dev/sidekick/internal/storage"
)

const keychainService = "sidekick"

// ErrNotFound is returned when no key is stored for a provider.
var ErrNotFound = errors.New("no api key stored")

// envVarNames maps known provider ids to the environment variables their
// SDKs conventionally read.
var envVarNames = map[string]string{
	"anthropic":  "ANTHROPIC_API_KEY",
	"openai":     "OPENAI_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"deepseek":   "DEEPSEEK_API_KEY",
}

// Keys manages per-provider API keys. The keychain holds the secret; the
// storage layer keeps a non-secret index of which providers have one, so
// List does not have to probe the keychain blindly.
type Keys struct {
	store *storage.Store
}

// NewKeys creates a key manager backed by the given store.
func NewKeys(store *storage.Store) *Keys {
	return &Keys{store: store}
}

// Set saves the API key for a provider in the keychain.
func (k *Keys) Set(ctx context.Context, provider, apiKey string) error {
	if provider == "" {
		return errors.New("provider is required")
	}
	if apiKey == "" {
		return errors.New("api key is empty")
	}

	if err := keyring.Set(keychainService, provider, apiKey); err != nil {
		return fmt.Errorf("keychain set %s: %w", provider, err)
	}
	return k.indexAdd(ctx, provider)
}

// Get returns the API key for a provider, preferring the keychain and
// falling back to the provider's conventional environment variable.
func (k *Keys) Get(ctx context.Context, provider string) (string, error) {
	if provider == "" {
		return "", errors.New("provider is required")
	}

	secret, err := keyring.Get(keychainService, provider)
	if err == nil && secret != "" {
		return secret, nil
	}

	if env := envVarFor(provider); env != "" {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}
	return "", ErrNotFound
}

// Delete removes a provider's key from the keychain and the index. Deleting
// an absent key is a no-op.
func (k *Keys) Delete(ctx context.Context, provider string) error {
	if provider == "" {
		return errors.New("provider is required")
	}

	if err := keyring.Delete(keychainService, provider); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keychain delete %s: %w", provider, err)
	}
	return k.indexRemove(ctx, provider)
}

// List returns the providers that currently have a retrievable key, from
// the keychain or the environment.
func (k *Keys) List(ctx context.Context) ([]string, error) {
	indexed, err := k.indexLoad(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var providers []string
	for _, p := range indexed {
		if _, err := keyring.Get(keychainService, p); err != nil {
			continue
		}
		providers = append(providers, p)
		seen[p] = true
	}
	for p, env := range envVarNames {
		if !seen[p] && os.Getenv(env) != "" {
			providers = append(providers, p)
		}
	}
	return providers, nil
}

func envVarFor(provider string) string {
	if env, ok := envVarNames[provider]; ok {
		return env
	}
	// Unknown providers get SIDEKICK_<PROVIDER>_API_KEY.
	sanitized := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, strings.ToUpper(provider))
	return "SIDEKICK_" + sanitized + "_API_KEY"
}

func (k *Keys) indexLoad(ctx context.Context) ([]string, error) {
	var providers []string
	err := k.store.Get(ctx, []string{"secrets", "providers"}, &providers)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return providers, nil
}

func (k *Keys) indexAdd(ctx context.Context, provider string) error {
	providers, err := k.indexLoad(ctx)
	if err != nil {
		return err
	}
	for _, p := range providers {
		if p == provider {
			return nil
		}
	}
	return k.store.Put(ctx, []string{"secrets", "providers"}, append(providers, provider))
}

func (k *Keys) indexRemove(ctx context.Context, provider string) error {
	providers, err := k.indexLoad(ctx)
	if err != nil {
		return err
	}
	kept := providers[:0]
	for _, p := range providers {
		if p != provider {
			kept = append(kept, p)
		}
	}
	return k.store.Put(ctx, []string{"secrets", "providers"}, kept)
}
