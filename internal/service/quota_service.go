package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/internal/repository"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
)

type quotaStore interface {
	GetByID(ctx context.Context, id string) (*models.Drive, error)
	ReserveStorage(ctx context.Context, id string, delta int64) (bool, error)
	ReleaseStorage(ctx context.Context, id string, delta int64) (bool, error)
}

// QuotaService is the only writer of a drive's storage_used counter. Each
// call is a single conditional UPDATE, so concurrent callers never lose updates.
type QuotaService struct {
	store   quotaStore
	summary summaryInvalidator
	metrics *MetricsService
	logger  *zap.Logger
}

// NewQuotaService constructs the ledger. summary may be nil.
func NewQuotaService(store quotaStore, summary summaryInvalidator, metrics *MetricsService, logger *zap.Logger) *QuotaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuotaService{store: store, summary: summary, metrics: metrics, logger: logger}
}

// Reserve adds delta bytes to the drive's usage or fails with
// InsufficientStorage when the limit would be exceeded.
func (s *QuotaService) Reserve(ctx context.Context, driveID string, delta int64) error {
	if delta < 0 {
		return appErrors.Clone(appErrors.ErrValidation, "reservation must not be negative")
	}
	if delta == 0 {
		return nil
	}
	ok, err := s.store.ReserveStorage(ctx, driveID, delta)
	if err != nil {
		return appErrors.Internal(err, "failed to reserve storage")
	}
	if !ok {
		drive, getErr := s.store.GetByID(ctx, driveID)
		if getErr != nil {
			if repository.IsNotFound(getErr) {
				return appErrors.Clone(appErrors.ErrNotFound, "drive not found")
			}
			return appErrors.Internal(getErr, "failed to load drive")
		}
		s.metrics.RecordQuotaRejection()
		return appErrors.WithDetails(appErrors.ErrInsufficientStorage, map[string]interface{}{
			"required":  delta,
			"available": drive.Available(),
			"limit":     drive.StorageLimit,
		})
	}
	s.invalidate(ctx, driveID)
	return nil
}

// Release subtracts delta bytes from the drive's usage, never below zero.
func (s *QuotaService) Release(ctx context.Context, driveID string, delta int64) error {
	if delta <= 0 {
		return nil
	}
	ok, err := s.store.ReleaseStorage(ctx, driveID, delta)
	if err != nil {
		return appErrors.Internal(err, "failed to release storage")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "drive not found")
	}
	s.invalidate(ctx, driveID)
	return nil
}

// quotaLedger is what callers that move bytes depend on.
type quotaLedger interface {
	Reserve(ctx context.Context, driveID string, delta int64) error
	Release(ctx context.Context, driveID string, delta int64) error
}

// releaseQuietly undoes a reservation on a compensation path where the
// original error is the one reported.
func releaseQuietly(ctx context.Context, quota quotaLedger, logger *zap.Logger, driveID string, delta int64) {
	if err := quota.Release(ctx, driveID, delta); err != nil {
		logger.Error("failed to release reserved storage",
			zap.String("drive_id", driveID),
			zap.Int64("bytes", delta),
			zap.Error(err),
		)
	}
}

func (s *QuotaService) invalidate(ctx context.Context, driveID string) {
	if s.summary != nil {
		s.summary.InvalidateSummary(ctx, driveID)
	}
}
