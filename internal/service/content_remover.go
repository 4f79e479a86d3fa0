package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-drive-api/pkg/jobs"
	"github.com/noah-isme/sma-drive-api/pkg/storage"
)

// ContentDeleteJob is the job type removing one content object.
const ContentDeleteJob = "content-delete"

type contentDeleter interface {
	Delete(ctx context.Context, key string) error
}

// contentRemoval schedules deletion of content whose catalog rows are gone.
type contentRemoval interface {
	Remove(ctx context.Context, keys ...string)
}

// ContentRemover deletes purged content in the background, falling back to
// an inline delete when the queue is unavailable. Failures are logged only.
type ContentRemover struct {
	store  contentDeleter
	queue  jobEnqueuer
	logger *zap.Logger
}

// NewContentRemover constructs the remover. queue may be nil.
func NewContentRemover(store contentDeleter, queue jobEnqueuer, logger *zap.Logger) *ContentRemover {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentRemover{store: store, queue: queue, logger: logger}
}

// Remove schedules every non-empty key for deletion.
func (r *ContentRemover) Remove(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if r.queue != nil {
			err := r.queue.TryEnqueue(jobs.Job{ID: key, Type: ContentDeleteJob, Payload: key})
			if err == nil {
				continue
			}
			r.logger.Debug("content delete queue unavailable, deleting inline", zap.String("key", key), zap.Error(err))
		}
		if err := deleteContent(ctx, r.store, key); err != nil {
			r.logger.Warn("failed to delete content", zap.String("key", key), zap.Error(err))
		}
	}
}

// ContentDeleteHandler processes queued content deletions.
func ContentDeleteHandler(store contentDeleter) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		return deleteContent(ctx, store, job.Payload)
	}
}

func deleteContent(ctx context.Context, store contentDeleter, key string) error {
	if err := store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrContentNotFound) {
		return err
	}
	return nil
}
