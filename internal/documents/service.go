package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"bloodwork-backend/internal/shared/storage/object"
	"bloodwork-backend/internal/shared/telemetry"
	"bloodwork-backend/internal/shared/util"
)

const (
	releaseTimeout = 10 * time.Second
	maxKeyAttempts = 2
)

// Service stages uploaded documents for a single pipeline run.
type Service struct {
	Store object.ObjectStore
	// NewID overrides run key generation in tests.
	NewID func() (uuid.UUID, error)
}

// NewService constructs a Service backed by store.
func NewService(store object.ObjectStore) *Service {
	return &Service{Store: store, NewID: uuid.NewV7}
}

// Stage validates the upload and writes it under a run-unique key.
// Media type is checked before size; neither check touches storage.
func (s *Service) Stage(ctx context.Context, up Upload, maxSizeBytes int64) (Handle, error) {
	mediaType := NormalizeMediaType(up.MediaType)
	if !IsAllowed(mediaType) {
		return Handle{}, &UnsupportedMediaTypeError{MediaType: up.MediaType}
	}
	size := int64(len(up.Data))
	if size > maxSizeBytes {
		return Handle{}, &OversizeError{SizeBytes: size, MaxBytes: maxSizeBytes}
	}

	var (
		key     string
		written int64
		err     error
	)
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err = s.newKey(up.FileName)
		if err != nil {
			return Handle{}, err
		}
		written, err = s.Store.SaveWithKey(ctx, key, mediaType, bytes.NewReader(up.Data))
		if !errors.Is(err, object.ErrExists) {
			break
		}
		// The key belongs to another run; never clean it up from here.
		telemetry.Warn("documents.key_collision", map[string]any{"storage_key": key})
	}
	if err != nil {
		if !errors.Is(err, object.ErrExists) {
			// Partial writes must not leak.
			s.delete(ctx, key)
		}
		return Handle{}, fmt.Errorf("stage document: %w", err)
	}

	return Handle{
		Key:       key,
		MediaType: mediaType,
		FileName:  up.FileName,
		SizeBytes: written,
	}, nil
}

// Open reads the staged bytes back.
func (s *Service) Open(ctx context.Context, h Handle) ([]byte, error) {
	rc, err := s.Store.Open(ctx, h.Key)
	if err != nil {
		return nil, fmt.Errorf("open staged document: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read staged document: %w", err)
	}
	return data, nil
}

// Release deletes the staged object. It is idempotent, never panics and
// keeps running when ctx is cancelled; failures are logged, not returned.
func (s *Service) Release(ctx context.Context, h Handle) {
	if h.Key == "" {
		return
	}
	s.delete(ctx, h.Key)
}

func (s *Service) delete(ctx context.Context, key string) {
	defer func() {
		if rec := recover(); rec != nil {
			telemetry.Error("documents.release_panic", map[string]any{
				"storage_key": key,
				"error":       fmt.Sprint(rec),
			})
		}
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := s.Store.Delete(ctx, key); err != nil {
		telemetry.Error("documents.release_failed", map[string]any{
			"storage_key": key,
			"error":       err.Error(),
		})
	}
}

func (s *Service) newKey(fileName string) (string, error) {
	gen := s.NewID
	if gen == nil {
		gen = uuid.NewV7
	}
	id, err := gen()
	if err != nil {
		return "", fmt.Errorf("generate staging key: %w", err)
	}
	return path.Join("runs", id.String(), util.FileNameOr(fileName, "upload")), nil
}
