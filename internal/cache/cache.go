package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Cache stores rendered markdown keyed by image content and conversion
// parameters. Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached markdown and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores markdown under key. TTL handling is implementation-defined.
	Set(ctx context.Context, key, markdown string) error
}

// Key derives a stable cache key from the image bytes and the parameters
// that influence the conversion result. Two images with identical content
// converted the same way share an entry regardless of their paths.
func Key(imagePath, converterType, model, prompt string) (string, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash image: %w", err)
	}
	fmt.Fprintf(h, "|%s|%s|%s", converterType, model, prompt)

	return hex.EncodeToString(h.Sum(nil)), nil
}
