package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image2md/internal/config"
	"image2md/internal/secrets"
)

func testSecretsConfig(t *testing.T) config.SecretsConfig {
	t.Helper()

	key, err := secrets.GenerateKey(32)
	require.NoError(t, err)
	t.Setenv(secretsKeyEnv, key)

	return config.SecretsConfig{Path: filepath.Join(t.TempDir(), "credentials.enc")}
}

func TestStoredKeyRoundTrip(t *testing.T) {
	cfg := testSecretsConfig(t)

	require.NoError(t, saveStoredKey(cfg, "anthropic=sk-ant-test"))

	got, err := storedAPIKey(cfg, "anthropic")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", got)

	got, err = storedAPIKey(cfg, "gemini")
	require.NoError(t, err)
	assert.Empty(t, got, "unsaved providers have no stored key")
}

func TestSaveStoredKeyReplacesAndLowercases(t *testing.T) {
	cfg := testSecretsConfig(t)

	require.NoError(t, saveStoredKey(cfg, "llm=first"))
	require.NoError(t, saveStoredKey(cfg, "azure=az-key"))
	require.NoError(t, saveStoredKey(cfg, "LLM=second"))

	got, err := storedAPIKey(cfg, "llm")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	got, err = storedAPIKey(cfg, "azure")
	require.NoError(t, err)
	assert.Equal(t, "az-key", got, "replacing one key keeps the others")
}

func TestSaveStoredKeyErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(t *testing.T) config.SecretsConfig
		pair string
	}{
		{
			name: "missing separator",
			cfg:  testSecretsConfig,
			pair: "anthropic",
		},
		{
			name: "empty provider",
			cfg:  testSecretsConfig,
			pair: "=sk-test",
		},
		{
			name: "empty key",
			cfg:  testSecretsConfig,
			pair: "anthropic=",
		},
		{
			name: "no credentials path configured",
			cfg: func(t *testing.T) config.SecretsConfig {
				key, err := secrets.GenerateKey(32)
				require.NoError(t, err)
				t.Setenv(secretsKeyEnv, key)
				return config.SecretsConfig{}
			},
			pair: "anthropic=sk-test",
		},
		{
			name: "encryption key env var unset",
			cfg: func(t *testing.T) config.SecretsConfig {
				t.Setenv(secretsKeyEnv, "")
				return config.SecretsConfig{Path: filepath.Join(t.TempDir(), "credentials.enc")}
			},
			pair: "anthropic=sk-test",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, saveStoredKey(tt.cfg(t), tt.pair))
		})
	}
}

func TestStoredAPIKeyMissingStoreIsNotAnError(t *testing.T) {
	t.Run("no path configured", func(t *testing.T) {
		t.Setenv(secretsKeyEnv, "")
		got, err := storedAPIKey(config.SecretsConfig{}, "llm")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("no encryption key in the environment", func(t *testing.T) {
		t.Setenv(secretsKeyEnv, "")
		cfg := config.SecretsConfig{Path: filepath.Join(t.TempDir(), "credentials.enc")}
		got, err := storedAPIKey(cfg, "llm")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("credentials file absent", func(t *testing.T) {
		cfg := testSecretsConfig(t)
		got, err := storedAPIKey(cfg, "llm")
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
