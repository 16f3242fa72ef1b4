package cache

import (
	"context"

	"image2md/internal/convert"
	"image2md/internal/logging"
)

// CachedConverter wraps a converter with a result cache. The wrapped converter
// only runs on a cache miss. Calls that request a JSON sidecar bypass the
// cache entirely since the sidecar must reflect a real conversion.
type CachedConverter struct {
	inner         convert.Converter
	cache         Cache
	converterType string
	model         string
}

// NewCachedConverter wraps inner. converterType and model become part of the
// cache key so different backends never share entries.
func NewCachedConverter(inner convert.Converter, c Cache, converterType, model string) *CachedConverter {
	return &CachedConverter{
		inner:         inner,
		cache:         c,
		converterType: converterType,
		model:         model,
	}
}

func (c *CachedConverter) Convert(ctx context.Context, imagePath string, opts *convert.ConvertOptions) (string, error) {
	if opts != nil && opts.SaveJSON {
		return c.inner.Convert(ctx, imagePath, opts)
	}

	prompt := ""
	if opts != nil {
		prompt = opts.Prompt
	}

	key, err := Key(imagePath, c.converterType, c.model, prompt)
	if err != nil {
		// Hashing failures fall through to the real converter, which will
		// report the underlying problem with better context.
		return c.inner.Convert(ctx, imagePath, opts)
	}

	if markdown, ok, err := c.cache.Get(ctx, key); err != nil {
		logging.Log.Warn().Err(err).Str("key", key).Msg("cache read failed; converting")
	} else if ok {
		logging.Log.Debug().Str("key", key).Msg("cache hit")
		return markdown, nil
	}

	markdown, err := c.inner.Convert(ctx, imagePath, opts)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, key, markdown); err != nil {
		logging.Log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return markdown, nil
}
