package convert

import (
	"context"
	"fmt"
	"path/filepath"
)

// OCRConverter is a deterministic local stand-in for a real OCR engine. It
// performs no network I/O and exists to exercise the Converter contract.
type OCRConverter struct {
	language string
}

// NewOCRConverter builds an OCR converter. The language defaults to "eng".
func NewOCRConverter(opts Options) (*OCRConverter, error) {
	return &OCRConverter{language: strOr(opts.Language, "eng")}, nil
}

func (c *OCRConverter) Convert(_ context.Context, imagePath string, _ *ConvertOptions) (string, error) {
	if err := checkImage(imagePath); err != nil {
		return "", err
	}

	return fmt.Sprintf(`# Content from %s

This text was extracted using OCR (%s) from the image.

- First detected text item
- Second detected text item
- Third detected text item

> Some quoted text detected in the image

`, filepath.Base(imagePath), c.language), nil
}
