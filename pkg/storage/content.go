package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-drive-api/pkg/config"
)

// ErrContentNotFound is returned when a storage key has no backing object.
var ErrContentNotFound = errors.New("content not found")

// ContentStore keeps file bytes addressed by opaque keys. Keys are never
// reused, so removing one key never affects content referenced by another.
type ContentStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	Delete(ctx context.Context, key string) error
}

// NewKey allocates a fresh storage key scoped to a drive.
func NewKey(driveID string) string {
	return fmt.Sprintf("%s/%s", driveID, uuid.NewString())
}

// NewContentStore builds the backend selected in configuration and wraps it
// with a circuit breaker for the remote backends.
func NewContentStore(ctx context.Context, cfg config.ContentConfig) (ContentStore, error) {
	switch cfg.Backend {
	case "", config.ContentBackendLocal:
		return NewLocalStorage(cfg.LocalDir)
	case config.ContentBackendMinio:
		store, err := NewMinioStorage(ctx, cfg.Minio)
		if err != nil {
			return nil, err
		}
		return NewBreakerStore("minio", store), nil
	case config.ContentBackendS3:
		store, err := NewS3Storage(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return NewBreakerStore("s3", store), nil
	default:
		return nil, fmt.Errorf("unknown content backend %q", cfg.Backend)
	}
}
