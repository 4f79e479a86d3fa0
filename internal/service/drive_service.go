package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/internal/repository"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
)

const (
	defaultStorageLimit = int64(1 << 30)
	summaryCachePrefix  = "drive:summary:"
)

type driveStore interface {
	GetByID(ctx context.Context, id string) (*models.Drive, error)
	GetByOwner(ctx context.Context, ownerID string) (*models.Drive, error)
	CreateIfAbsent(ctx context.Context, drive *models.Drive) (*models.Drive, error)
	Stats(ctx context.Context, driveID string) (*repository.DriveStats, error)
}

// driveResolver returns the caller's drive, provisioning it on first use.
type driveResolver interface {
	Ensure(ctx context.Context, ownerID string) (*models.Drive, error)
}

// summaryInvalidator drops the cached summary after storage or trash changes.
type summaryInvalidator interface {
	InvalidateSummary(ctx context.Context, driveID string)
}

// DriveServiceConfig tunes onboarding and summary caching.
type DriveServiceConfig struct {
	DefaultStorageLimit int64
	SummaryTTL          time.Duration
}

// DriveService onboards drives and serves the cached drive summary.
type DriveService struct {
	store  driveStore
	cache  *CacheService
	cfg    DriveServiceConfig
	logger *zap.Logger
}

// NewDriveService constructs the service.
func NewDriveService(store driveStore, cache *CacheService, cfg DriveServiceConfig, logger *zap.Logger) *DriveService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultStorageLimit <= 0 {
		cfg.DefaultStorageLimit = defaultStorageLimit
	}
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = time.Minute
	}
	return &DriveService{store: store, cache: cache, cfg: cfg, logger: logger}
}

// Ensure returns the user's drive, creating it with the default quota when absent.
func (s *DriveService) Ensure(ctx context.Context, ownerID string) (*models.Drive, error) {
	if ownerID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	drive, err := s.store.GetByOwner(ctx, ownerID)
	if err == nil {
		return drive, nil
	}
	if !repository.IsNotFound(err) {
		return nil, appErrors.Internal(err, "failed to load drive")
	}
	drive, err = s.store.CreateIfAbsent(ctx, &models.Drive{
		OwnerID:      ownerID,
		StorageLimit: s.cfg.DefaultStorageLimit,
		IsPrivate:    true,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to create drive")
	}
	s.logger.Info("drive provisioned", zap.String("owner_id", ownerID), zap.String("drive_id", drive.ID))
	return drive, nil
}

// GetByOwner returns an existing drive without provisioning one.
func (s *DriveService) GetByOwner(ctx context.Context, ownerID string) (*models.Drive, error) {
	drive, err := s.store.GetByOwner(ctx, ownerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "drive not found")
		}
		return nil, appErrors.Internal(err, "failed to load drive")
	}
	return drive, nil
}

// Summary returns usage and catalog counters for the caller's drive. cached
// reports whether the counters came from the cache.
func (s *DriveService) Summary(ctx context.Context, actor *models.JWTClaims) (*models.DriveSummary, bool, error) {
	scope, err := resolveScope(ctx, s, actor)
	if err != nil {
		return nil, false, err
	}
	key := summaryCachePrefix + scope.drive.ID

	var summary models.DriveSummary
	if hit, err := s.cache.Get(ctx, key, &summary); err == nil && hit {
		return &summary, true, nil
	}

	drive, err := s.store.GetByID(ctx, scope.drive.ID)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load drive")
	}
	stats, err := s.store.Stats(ctx, drive.ID)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to compute drive summary")
	}
	summary = models.DriveSummary{
		Drive:       *drive,
		FolderCount: stats.FolderCount,
		FileCount:   stats.FileCount,
		TrashCount:  stats.TrashCount,
		TrashBytes:  stats.TrashBytes,
	}
	_ = s.cache.Set(ctx, key, summary, s.cfg.SummaryTTL)
	return &summary, false, nil
}

// InvalidateSummary drops the cached summary of a drive.
func (s *DriveService) InvalidateSummary(ctx context.Context, driveID string) {
	if s == nil {
		return
	}
	_ = s.cache.Delete(ctx, summaryCachePrefix+driveID)
}

// driveScope binds an authenticated user to the drive they operate on.
type driveScope struct {
	userID string
	drive  *models.Drive
}

func resolveScope(ctx context.Context, drives driveResolver, actor *models.JWTClaims) (*driveScope, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	drive, err := drives.Ensure(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return &driveScope{userID: actor.UserID, drive: drive}, nil
}
