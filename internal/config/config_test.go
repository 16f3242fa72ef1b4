package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "llm", cfg.ConverterType)
	assert.Equal(t, "eng", cfg.Language)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 1000, cfg.Cache.Capacity)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "dir", cfg.Archive.Backend)
	assert.False(t, cfg.History.Enabled)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
converter_type: anthropic
model: claude-3-5-sonnet-20241022
max_tokens: 2000
history:
  enabled: true
  path: /tmp/history.db
cache:
  enabled: true
  backend: redis
  redis_address: redis.internal:6379
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.ConverterType)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Model)
	assert.Equal(t, 2000, cfg.MaxTokens)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "/tmp/history.db", cfg.History.Path)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis.internal:6379", cfg.Cache.RedisAddress)

	// Unset fields keep their defaults.
	assert.Equal(t, "eng", cfg.Language)
	assert.Equal(t, 1000, cfg.Cache.Capacity)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("converter_type: gemini\n"), 0o644))

	t.Setenv("IMAGE2MD_CONVERTER", "azure")
	t.Setenv("IMAGE2MD_MAX_TOKENS", "512")
	t.Setenv("IMAGE2MD_TEMPERATURE", "0.5")
	t.Setenv("IMAGE2MD_CACHE_ENABLED", "true")
	t.Setenv("IMAGE2MD_CACHE_TTL", "30m")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "azure", cfg.ConverterType)
	assert.Equal(t, 512, cfg.MaxTokens)
	assert.Equal(t, 0.5, cfg.Temperature)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("converter_type: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_Validation(t *testing.T) {
	t.Run("bad cache backend", func(t *testing.T) {
		t.Setenv("IMAGE2MD_CACHE_BACKEND", "memcached")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cache backend")
	})

	t.Run("s3 archive without bucket", func(t *testing.T) {
		t.Setenv("IMAGE2MD_ARCHIVE_ENABLED", "true")
		t.Setenv("IMAGE2MD_ARCHIVE_BACKEND", "s3")
		_, err := Load("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket")
	})
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("X_INT", "notanint")
	assert.Equal(t, 7, getEnvInt("X_INT", 7))

	t.Setenv("X_FLOAT", "0.25")
	assert.Equal(t, 0.25, getEnvFloat("X_FLOAT", 1.0))

	t.Setenv("X_BOOL", "1")
	assert.True(t, getEnvBool("X_BOOL", false))

	t.Setenv("X_DUR", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("X_DUR", time.Minute))

	assert.Equal(t, "fallback", getEnvString("X_UNSET_STRING", "fallback"))
}
