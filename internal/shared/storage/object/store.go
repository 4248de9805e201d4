package object

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned by Open when no object exists under the key.
	ErrNotFound = errors.New("object not found")

	// ErrExists is returned by SaveWithKey when the key is already taken.
	// Backends without create-only writes may overwrite instead.
	ErrExists = errors.New("object already exists")
)

// ObjectStore defines the contract for staging, reading and removing binary objects.
type ObjectStore interface {
	SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing key returns nil.
	Delete(ctx context.Context, storageKey string) error
}
