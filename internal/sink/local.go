package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirSink archives artifacts under a local directory.
type DirSink struct {
	root string
}

// NewDirSink creates a sink rooted at dir, creating it if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create sink directory: %w", err)
	}
	return &DirSink{root: dir}, nil
}

func (s *DirSink) Write(_ context.Context, name string, data []byte, _ string) (string, error) {
	path := filepath.Join(s.root, name)
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create artifact directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return path, nil
}
