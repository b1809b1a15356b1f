// Package storage abstracts the object store that holds recipient lists
// and unsubscribe data. Production runs against S3; tests use the
// in-memory implementation.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when the requested key does not exist.
// Callers decide whether a missing object is fatal; a missing
// unsubscribe list, for example, just means nobody unsubscribed yet.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore reads and writes opaque objects by key.
type ObjectStore interface {
	// Get returns a streaming reader for the object. The caller must
	// close it. Returns ErrObjectNotFound if the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Put stores the object, replacing any existing content.
	Put(ctx context.Context, key, contentType string, body io.Reader) error

	// List returns all keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
