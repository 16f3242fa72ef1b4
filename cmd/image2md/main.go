// Command image2md converts an image to markdown using one of the registered
// converter backends and optionally records the run in the local history
// database, caches results, and archives artifacts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"image2md/internal/cache"
	"image2md/internal/config"
	"image2md/internal/convert"
	"image2md/internal/history"
	"image2md/internal/logging"
	"image2md/internal/secrets"
	"image2md/internal/sink"
)

// Exit codes: 1 generic, 2 configuration, 3 input image missing, 4 provider
// or conversion failure.
const (
	exitGeneric    = 1
	exitConfig     = 2
	exitNotFound   = 3
	exitConversion = 4
)

type options struct {
	configPath    string
	converterType string
	outputPath    string
	model         string
	prompt        string
	maxTokens     int
	temperature   float64
	language      string
	apiKey        string
	endpoint      string
	saveJSON      bool
	jsonOutput    string
	noCache       bool
	list          bool
	saveKey       string
	verbose       bool
}

// secretsKeyEnv holds the base64 AES key that seals the credentials file.
const secretsKeyEnv = "IMAGE2MD_SECRETS_KEY"

// providerEnvKeys maps converter types to the environment variable their
// backend reads a key from. Flags and environment variables win over the
// stored credentials file.
var providerEnvKeys = map[string]string{
	"llm":       "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GOOGLE_API_KEY",
	"azure":     "AZURE_API_KEY",
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to YAML config file")
	flag.StringVar(&opts.converterType, "type", "", "converter type (see -list)")
	flag.StringVar(&opts.outputPath, "o", "", "output markdown path (default: image path with .md)")
	flag.StringVar(&opts.model, "model", "", "model name for LLM-backed converters")
	flag.StringVar(&opts.prompt, "prompt", "", "custom conversion prompt")
	flag.IntVar(&opts.maxTokens, "max-tokens", 0, "token budget for LLM-backed converters")
	flag.Float64Var(&opts.temperature, "temperature", -1, "sampling temperature (-1 uses the converter default)")
	flag.StringVar(&opts.language, "language", "", "OCR language code")
	flag.StringVar(&opts.apiKey, "api-key", "", "provider API key (default: provider environment variable)")
	flag.StringVar(&opts.endpoint, "endpoint", "", "Azure Document Intelligence endpoint")
	flag.BoolVar(&opts.saveJSON, "save-json", false, "write a JSON sidecar with provenance")
	flag.StringVar(&opts.jsonOutput, "json-output", "", "sidecar path (default: image path with .json)")
	flag.BoolVar(&opts.noCache, "no-cache", false, "bypass the result cache")
	flag.BoolVar(&opts.list, "list", false, "list available converter types and exit")
	flag.StringVar(&opts.saveKey, "save-key", "", "store a provider API key as provider=key and exit")
	flag.BoolVar(&opts.verbose, "v", false, "verbose logging")
	flag.Usage = usage
	flag.Parse()

	if opts.verbose {
		logging.SetLevel("debug")
	}

	if opts.list {
		fmt.Println(strings.Join(convert.Names(), "\n"))
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "image2md: %v\n", err)
		return exitConfig
	}

	if opts.saveKey != "" {
		if err := saveStoredKey(cfg.Secrets, opts.saveKey); err != nil {
			fmt.Fprintf(os.Stderr, "image2md: %v\n", err)
			return exitConfig
		}
		return 0
	}

	if flag.NArg() != 1 {
		usage()
		return exitConfig
	}
	imagePath := flag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := convertImage(ctx, cfg, opts, imagePath); err != nil {
		fmt.Fprintf(os.Stderr, "image2md: %v\n", err)
		switch {
		case errors.Is(err, convert.ErrImageNotFound):
			return exitNotFound
		case errors.Is(err, convert.ErrUnknownConverter),
			errors.Is(err, convert.ErrMissingCredentials):
			return exitConfig
		case errors.Is(err, context.Canceled):
			return exitGeneric
		}
		return exitConversion
	}
	return 0
}

func convertImage(ctx context.Context, cfg *config.Config, opts options, imagePath string) error {
	runID := uuid.New()
	converterType := strings.ToLower(firstNonEmpty(opts.converterType, cfg.ConverterType))
	model := firstNonEmpty(opts.model, cfg.Model)

	bag := convert.Options{
		APIKey:         opts.apiKey,
		Model:          model,
		MaxTokens:      pickInt(opts.maxTokens, cfg.MaxTokens),
		Language:       firstNonEmpty(opts.language, cfg.Language),
		Endpoint:       opts.endpoint,
		Prompt:         opts.prompt,
		SaveJSON:       opts.saveJSON,
		JSONOutputPath: opts.jsonOutput,
	}
	if opts.temperature >= 0 {
		bag.Temperature = &opts.temperature
	} else if cfg.Temperature > 0 {
		bag.Temperature = &cfg.Temperature
	}

	if bag.APIKey == "" && os.Getenv(providerEnvKeys[converterType]) == "" {
		stored, err := storedAPIKey(cfg.Secrets, converterType)
		if err != nil {
			logging.Log.Warn().Err(err).Msg("failed to load stored credentials")
		} else {
			bag.APIKey = stored
		}
	}

	conv, err := convert.Get(converterType, bag)
	if err != nil {
		return err
	}

	if cfg.Cache.Enabled && !opts.noCache {
		resultCache, err := buildCache(cfg.Cache)
		if err != nil {
			logging.Log.Warn().Err(err).Msg("cache unavailable; continuing without it")
		} else {
			conv = cache.NewCachedConverter(conv, resultCache, converterType, model)
		}
	}

	logging.Log.Info().
		Str("run_id", runID.String()).
		Str("converter", converterType).
		Str("image", imagePath).
		Msg("converting")

	start := time.Now()
	outputPath, err := convert.SaveMarkdown(ctx, conv, imagePath, opts.outputPath, bag.ConvertOptions())
	if err != nil {
		return err
	}
	duration := time.Since(start)

	fmt.Println(outputPath)

	markdown, err := os.ReadFile(outputPath)
	if err != nil {
		return fmt.Errorf("failed to read written markdown: %w", err)
	}

	if cfg.History.Enabled {
		if err := recordHistory(ctx, cfg.History.Path, history.Record{
			ID:            runID,
			ImagePath:     imagePath,
			OutputPath:    outputPath,
			ConverterType: converterType,
			Model:         model,
			MarkdownSize:  len(markdown),
			DurationMS:    duration.Milliseconds(),
		}); err != nil {
			logging.Log.Warn().Err(err).Msg("failed to record conversion history")
		}
	}

	if cfg.Archive.Enabled {
		sidecarPath := ""
		if opts.saveJSON {
			sidecarPath = firstNonEmpty(opts.jsonOutput, strings.TrimSuffix(imagePath, filepath.Ext(imagePath))+".json")
		}
		if err := archive(ctx, cfg.Archive, outputPath, markdown, sidecarPath); err != nil {
			logging.Log.Warn().Err(err).Msg("failed to archive conversion artifacts")
		}
	}

	return nil
}

func buildCache(cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Backend {
	case "redis":
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.TTL,
		})
	default:
		return cache.NewMemoryCache(cfg.Capacity, cfg.TTL), nil
	}
}

func recordHistory(ctx context.Context, path string, rec history.Record) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	_, err = store.Add(ctx, rec)
	return err
}

func archive(ctx context.Context, cfg config.ArchiveConfig, outputPath string, markdown []byte, sidecarPath string) error {
	var (
		dest sink.Sink
		err  error
	)
	switch cfg.Backend {
	case "s3":
		dest, err = sink.NewS3Sink(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
	default:
		dest, err = sink.NewDirSink(cfg.Dir)
	}
	if err != nil {
		return err
	}

	location, err := dest.Write(ctx, filepath.Base(outputPath), markdown, "text/markdown")
	if err != nil {
		return err
	}
	logging.Log.Info().Str("location", location).Msg("archived markdown")

	if sidecarPath != "" {
		sidecar, err := os.ReadFile(sidecarPath)
		if err != nil {
			return fmt.Errorf("failed to read sidecar for archiving: %w", err)
		}
		location, err = dest.Write(ctx, filepath.Base(sidecarPath), sidecar, "application/json")
		if err != nil {
			return err
		}
		logging.Log.Info().Str("location", location).Msg("archived sidecar")
	}
	return nil
}

// storedAPIKey looks up the key for converterType in the encrypted
// credentials file. An unset path, unset key env var, or missing file is not
// an error; the converter then performs its own credential checks.
func storedAPIKey(cfg config.SecretsConfig, converterType string) (string, error) {
	if cfg.Path == "" {
		return "", nil
	}
	encoded := os.Getenv(secretsKeyEnv)
	if encoded == "" {
		return "", nil
	}
	enc, err := secrets.NewEncryptionFromBase64(encoded)
	if err != nil {
		return "", err
	}
	creds, err := enc.LoadCredentials(cfg.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return creds[converterType], nil
}

// saveStoredKey adds or replaces one provider key in the credentials file.
// The pair argument has the form provider=key.
func saveStoredKey(cfg config.SecretsConfig, pair string) error {
	provider, key, ok := strings.Cut(pair, "=")
	if !ok || provider == "" || key == "" {
		return fmt.Errorf("invalid -save-key value %q: expected provider=key", pair)
	}
	if cfg.Path == "" {
		return fmt.Errorf("no credentials file configured: set secrets.path or IMAGE2MD_SECRETS_PATH")
	}
	encoded := os.Getenv(secretsKeyEnv)
	if encoded == "" {
		return fmt.Errorf("%s is not set", secretsKeyEnv)
	}
	enc, err := secrets.NewEncryptionFromBase64(encoded)
	if err != nil {
		return err
	}
	creds, err := enc.LoadCredentials(cfg.Path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		creds = map[string]string{}
	}
	creds[strings.ToLower(provider)] = key
	return enc.SaveCredentials(cfg.Path, creds)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func pickInt(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: image2md [flags] <image>

Converts an image to markdown. The output path defaults to the image path
with a .md extension.

Flags:
`)
	flag.PrintDefaults()
}
