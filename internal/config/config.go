package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tool configuration. Values come from an optional YAML file
// overlaid with environment variables; flags are applied by the caller on top.
type Config struct {
	ConverterType string  `yaml:"converter_type"`
	Model         string  `yaml:"model"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`
	Language      string  `yaml:"language"`

	History HistoryConfig `yaml:"history"`
	Cache   CacheConfig   `yaml:"cache"`
	Archive ArchiveConfig `yaml:"archive"`
	Secrets SecretsConfig `yaml:"secrets"`
}

// HistoryConfig controls the local conversion log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CacheConfig controls result caching.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Backend       string        `yaml:"backend"` // "memory" or "redis"
	Capacity      int           `yaml:"capacity"`
	TTL           time.Duration `yaml:"ttl"`
	RedisAddress  string        `yaml:"redis_address"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

// ArchiveConfig controls where conversion artifacts are archived.
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Backend  string `yaml:"backend"` // "dir" or "s3"
	Dir      string `yaml:"dir"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Region string `yaml:"s3_region"`
	S3Prefix string `yaml:"s3_prefix"`
}

// SecretsConfig points at the encrypted credentials file.
type SecretsConfig struct {
	Path string `yaml:"path"`
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvFloat(key string, defaultValue float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val == "true" || val == "1"
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

// defaults returns the built-in configuration.
func defaults() *Config {
	return &Config{
		ConverterType: "llm",
		Language:      "eng",
		History: HistoryConfig{
			Path: "image2md-history.db",
		},
		Cache: CacheConfig{
			Backend:      "memory",
			Capacity:     1000,
			TTL:          24 * time.Hour,
			RedisAddress: "localhost:6379",
		},
		Archive: ArchiveConfig{
			Backend:  "dir",
			Dir:      "image2md-archive",
			S3Region: "us-east-1",
			S3Prefix: "conversions/",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file at path
// (empty means no file) and environment variable overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ConverterType = getEnvString("IMAGE2MD_CONVERTER", cfg.ConverterType)
	cfg.Model = getEnvString("IMAGE2MD_MODEL", cfg.Model)
	cfg.MaxTokens = getEnvInt("IMAGE2MD_MAX_TOKENS", cfg.MaxTokens)
	cfg.Temperature = getEnvFloat("IMAGE2MD_TEMPERATURE", cfg.Temperature)
	cfg.Language = getEnvString("IMAGE2MD_LANGUAGE", cfg.Language)

	cfg.History.Enabled = getEnvBool("IMAGE2MD_HISTORY_ENABLED", cfg.History.Enabled)
	cfg.History.Path = getEnvString("IMAGE2MD_HISTORY_PATH", cfg.History.Path)

	cfg.Cache.Enabled = getEnvBool("IMAGE2MD_CACHE_ENABLED", cfg.Cache.Enabled)
	cfg.Cache.Backend = getEnvString("IMAGE2MD_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.Capacity = getEnvInt("IMAGE2MD_CACHE_CAPACITY", cfg.Cache.Capacity)
	cfg.Cache.TTL = getEnvDuration("IMAGE2MD_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.RedisAddress = getEnvString("IMAGE2MD_REDIS_ADDRESS", cfg.Cache.RedisAddress)
	cfg.Cache.RedisPassword = getEnvString("IMAGE2MD_REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = getEnvInt("IMAGE2MD_REDIS_DB", cfg.Cache.RedisDB)

	cfg.Archive.Enabled = getEnvBool("IMAGE2MD_ARCHIVE_ENABLED", cfg.Archive.Enabled)
	cfg.Archive.Backend = getEnvString("IMAGE2MD_ARCHIVE_BACKEND", cfg.Archive.Backend)
	cfg.Archive.Dir = getEnvString("IMAGE2MD_ARCHIVE_DIR", cfg.Archive.Dir)
	cfg.Archive.S3Bucket = getEnvString("IMAGE2MD_ARCHIVE_S3_BUCKET", cfg.Archive.S3Bucket)
	cfg.Archive.S3Region = getEnvString("IMAGE2MD_ARCHIVE_S3_REGION", cfg.Archive.S3Region)
	cfg.Archive.S3Prefix = getEnvString("IMAGE2MD_ARCHIVE_S3_PREFIX", cfg.Archive.S3Prefix)

	cfg.Secrets.Path = getEnvString("IMAGE2MD_SECRETS_PATH", cfg.Secrets.Path)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q (want memory or redis)", c.Cache.Backend)
	}
	switch c.Archive.Backend {
	case "dir", "s3":
	default:
		return fmt.Errorf("unknown archive backend %q (want dir or s3)", c.Archive.Backend)
	}
	if c.Archive.Enabled && c.Archive.Backend == "s3" && c.Archive.S3Bucket == "" {
		return fmt.Errorf("archive backend s3 requires a bucket")
	}
	return nil
}
