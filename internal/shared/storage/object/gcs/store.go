package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"bloodwork-backend/internal/shared/storage/object"
)


type bucket interface {
	NewWriter(ctx context.Context, name, contentType string) io.WriteCloser
	NewReader(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

type handleBucket struct {
	h *storage.BucketHandle
}

func (b handleBucket) NewWriter(ctx context.Context, name, contentType string) io.WriteCloser {
	w := b.h.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType
	return w
}

func (b handleBucket) NewReader(ctx context.Context, name string) (io.ReadCloser, error) {
	return b.h.Object(name).NewReader(ctx)
}

func (b handleBucket) Delete(ctx context.Context, name string) error {
	return b.h.Object(name).Delete(ctx)
}

// Store implements ObjectStore on a Google Cloud Storage bucket.
type Store struct {
	bucket bucket
	name   string
	prefix string
	closer func() error
}

// New creates a GCS-backed store using application default credentials.
func New(ctx context.Context, bucketName, prefix string) (*Store, error) {
	if strings.TrimSpace(bucketName) == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	s := newWithBucket(handleBucket{h: client.Bucket(bucketName)}, bucketName, prefix)
	s.closer = client.Close
	return s, nil
}

func newWithBucket(b bucket, name, prefix string) *Store {
	return &Store{bucket: b, name: name, prefix: strings.Trim(strings.TrimSpace(prefix), "/")}
}

// Close releases the storage client.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// SaveWithKey writes r under storageKey only if no object exists there yet.
func (s *Store) SaveWithKey(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	name := s.objectName(storageKey)
	// Cancelling the writer's context aborts the upload.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.bucket.NewWriter(ctx, name, contentType)
	n, err := io.Copy(w, r)
	if err != nil {
		cancel()
		_ = w.Close()
		return 0, fmt.Errorf("gcs write bucket=%s object=%s: %w", s.name, name, err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return 0, fmt.Errorf("%w: gcs object %s", object.ErrExists, name)
		}
		return 0, fmt.Errorf("gcs finalize bucket=%s object=%s: %w", s.name, name, err)
	}
	return n, nil
}

// Open returns a reader for the stored object.
func (s *Store) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := s.objectName(storageKey)
	rc, err := s.bucket.NewReader(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil, object.ErrNotFound
		}
		return nil, fmt.Errorf("gcs read bucket=%s object=%s: %w", s.name, name, err)
	}
	return rc, nil
}

// Delete removes the object; a missing object is not an error.
func (s *Store) Delete(ctx context.Context, storageKey string) error {
	name := s.objectName(storageKey)
	if err := s.bucket.Delete(ctx, name); err != nil && !isNotFound(err) {
		return fmt.Errorf("gcs delete bucket=%s object=%s: %w", s.name, name, err)
	}
	return nil
}

func (s *Store) objectName(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func isNotFound(err error) bool {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return true
	}
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

var _ object.ObjectStore = (*Store)(nil)
