package convert

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOCRConverter(t *testing.T) {
	imagePath := writeTestImage(t, "receipt.png")

	t.Run("default language", func(t *testing.T) {
		conv, err := NewOCRConverter(Options{})
		require.NoError(t, err)

		markdown, err := conv.Convert(context.Background(), imagePath, nil)
		require.NoError(t, err)
		assert.Contains(t, markdown, "# Content from receipt.png")
		assert.Contains(t, markdown, "OCR (eng)")
	})

	t.Run("custom language", func(t *testing.T) {
		conv, err := NewOCRConverter(Options{Language: "fra"})
		require.NoError(t, err)

		markdown, err := conv.Convert(context.Background(), imagePath, nil)
		require.NoError(t, err)
		assert.Contains(t, markdown, "OCR (fra)")
	})

	t.Run("missing image", func(t *testing.T) {
		conv, err := NewOCRConverter(Options{})
		require.NoError(t, err)

		_, err = conv.Convert(context.Background(), "/nonexistent/img.png", nil)
		assert.True(t, errors.Is(err, ErrImageNotFound))
	})
}

func TestStructureConverter(t *testing.T) {
	imagePath := writeTestImage(t, "report.png")
	off := false

	t.Run("defaults include everything", func(t *testing.T) {
		conv, err := NewStructureConverter(Options{})
		require.NoError(t, err)

		markdown, err := conv.Convert(context.Background(), imagePath, nil)
		require.NoError(t, err)
		assert.Contains(t, markdown, "# Document from report")
		assert.Contains(t, markdown, "*Source: report.png*")
		assert.Contains(t, markdown, "# Main Heading")
		assert.Contains(t, markdown, "- Item 1")
		assert.Contains(t, markdown, "1. First step")
		assert.Contains(t, markdown, "| Column 1 | Column 2 | Column 3 |")
	})

	t.Run("tables disabled", func(t *testing.T) {
		conv, err := NewStructureConverter(Options{DetectTables: &off})
		require.NoError(t, err)

		markdown, err := conv.Convert(context.Background(), imagePath, nil)
		require.NoError(t, err)
		assert.NotContains(t, markdown, "Column 1")
		assert.Contains(t, markdown, "- Item 1")
	})

	t.Run("headings disabled", func(t *testing.T) {
		conv, err := NewStructureConverter(Options{DetectHeadings: &off})
		require.NoError(t, err)

		markdown, err := conv.Convert(context.Background(), imagePath, nil)
		require.NoError(t, err)
		assert.NotContains(t, markdown, "Main Heading")
		// Paragraphs still appear, just not attached to headings.
		assert.Contains(t, markdown, "first paragraph")
	})

	t.Run("lists disabled", func(t *testing.T) {
		conv, err := NewStructureConverter(Options{DetectLists: &off})
		require.NoError(t, err)

		markdown, err := conv.Convert(context.Background(), imagePath, nil)
		require.NoError(t, err)
		assert.NotContains(t, markdown, "- Item 1")
		assert.NotContains(t, markdown, "1. First step")
		assert.Contains(t, markdown, "Column 1")
	})
}

func TestVisionConverter(t *testing.T) {
	imagePath := writeTestImage(t, "diagram.png")

	t.Run("defaults", func(t *testing.T) {
		conv, err := NewVisionConverter(Options{})
		require.NoError(t, err)

		markdown, err := conv.Convert(context.Background(), imagePath, nil)
		require.NoError(t, err)
		assert.Contains(t, markdown, "# diagram.png Analysis")
		assert.Contains(t, markdown, "gpt-4-vision")
		assert.Contains(t, markdown, "max token limit of 1000")
		assert.Contains(t, markdown, visionDefaultPrompt)
	})

	t.Run("overrides", func(t *testing.T) {
		conv, err := NewVisionConverter(Options{Model: "custom-vision", MaxTokens: 256})
		require.NoError(t, err)

		markdown, err := conv.Convert(context.Background(), imagePath, &ConvertOptions{Prompt: "List every shape"})
		require.NoError(t, err)
		assert.Contains(t, markdown, "custom-vision")
		assert.Contains(t, markdown, "max token limit of 256")
		assert.Contains(t, markdown, `"List every shape"`)
	})
}
