// Package storage persists uploaded media blobs. Keys are slash-separated
// relative paths such as "posts/<uuid>.png".
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Read when no blob exists under the key.
var ErrNotFound = errors.New("storage: object not found")

// Storage is the media storage collaborator.
type Storage interface {
	// Write stores content from r under key. size is -1 when unknown.
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Read returns the content for key. The caller closes the reader.
	Read(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
