package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveMarkdown_DefaultPath(t *testing.T) {
	imagePath := writeTestImage(t, "scan.jpg")
	stub := &stubConverter{markdown: "# Saved"}

	written, err := SaveMarkdown(context.Background(), stub, imagePath, "", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(imagePath), "scan.md"), written)

	content, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.Equal(t, "# Saved", string(content))
}

func TestSaveMarkdown_ExplicitPathCreatesParents(t *testing.T) {
	imagePath := writeTestImage(t, "scan.png")
	outputPath := filepath.Join(t.TempDir(), "nested", "deeper", "out.md")
	stub := &stubConverter{markdown: "# Nested"}

	written, err := SaveMarkdown(context.Background(), stub, imagePath, outputPath, nil)
	require.NoError(t, err)
	assert.Equal(t, outputPath, written)

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "# Nested", string(content))
}

func TestSaveMarkdown_ConverterError(t *testing.T) {
	imagePath := writeTestImage(t, "scan.png")
	stub := &stubConverter{err: errors.New("backend down")}

	_, err := SaveMarkdown(context.Background(), stub, imagePath, "", nil)
	require.Error(t, err)

	// Nothing should have been written.
	_, statErr := os.Stat(replaceExt(imagePath, ".md"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCheckImage_NotFound(t *testing.T) {
	err := checkImage(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrImageNotFound))
	assert.Contains(t, err.Error(), "missing.png")
}

func TestMediaType(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"a.png", "image/png"},
		{"a.PNG", "image/png"},
		{"a.jpg", "image/jpeg"},
		{"a.jpeg", "image/jpeg"},
		{"a.gif", "image/gif"},
		{"a.webp", "image/webp"},
		{"a.tiff", "image/png"},
		{"noext", "image/png"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, mediaType(tt.path), "path %s", tt.path)
	}
}

func TestReplaceExt(t *testing.T) {
	assert.Equal(t, "dir/file.md", replaceExt("dir/file.png", ".md"))
	assert.Equal(t, "file.json", replaceExt("file.jpeg", ".json"))
	assert.Equal(t, "file.md", replaceExt("file", ".md"))
}
