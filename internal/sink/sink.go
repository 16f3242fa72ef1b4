// Package sink delivers conversion artifacts (markdown and JSON sidecars) to
// a destination beyond the local output path, such as an archive directory or
// an S3 bucket.
package sink

import "context"

// Sink writes a named artifact and returns the location it was stored at.
type Sink interface {
	Write(ctx context.Context, name string, data []byte, contentType string) (string, error)
}
