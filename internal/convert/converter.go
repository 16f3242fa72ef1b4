package convert

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const providerTimeout = 60 * time.Second

// ConvertOptions carries per-call parameters. A nil value is equivalent to the
// zero value; zero fields fall back to the converter's construction defaults.
type ConvertOptions struct {
	// Prompt overrides the converter's default prompt.
	Prompt string

	// MaxTokens and MaxCompletionTokens override the construction defaults
	// when non-zero. Which of the two applies depends on the model.
	MaxTokens           int
	MaxCompletionTokens int

	// Temperature overrides the construction default when non-nil.
	Temperature *float64

	// SaveJSON requests a JSON sidecar with provenance next to the output.
	// JSONOutputPath overrides the default sidecar location (image path with
	// a .json extension).
	SaveJSON       bool
	JSONOutputPath string
}

// Converter is implemented by each backend (OCR, structure analysis, vision
// models, LLM providers). Convert reads the image at imagePath and returns its
// markdown representation.
type Converter interface {
	Convert(ctx context.Context, imagePath string, opts *ConvertOptions) (string, error)
}

// SaveMarkdown converts an image and writes the markdown to outputPath. When
// outputPath is empty the image path with a .md extension is used. Parent
// directories are created as needed. Returns the path actually written.
func SaveMarkdown(ctx context.Context, c Converter, imagePath, outputPath string, opts *ConvertOptions) (string, error) {
	markdown, err := c.Convert(ctx, imagePath, opts)
	if err != nil {
		return "", err
	}

	if outputPath == "" {
		outputPath = replaceExt(imagePath, ".md")
	}

	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, []byte(markdown), 0o644); err != nil {
		return "", fmt.Errorf("failed to write markdown: %w", err)
	}

	return outputPath, nil
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// checkImage validates the input path before any backend work happens.
func checkImage(imagePath string) error {
	if _, err := os.Stat(imagePath); err != nil {
		return fmt.Errorf("%w: %s", ErrImageNotFound, imagePath)
	}
	return nil
}

// mediaType resolves the wire media type from the file extension. PNG is the
// fallback when the extension is not recognized.
func mediaType(imagePath string) string {
	switch strings.ToLower(filepath.Ext(imagePath)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: providerTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
