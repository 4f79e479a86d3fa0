package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/pkg/database"
)

const driveColumns = `id, owner_id, storage_used, storage_limit, is_private, created_at, updated_at`

// DriveRepository persists drives and their storage counters.
type DriveRepository struct {
	db *sqlx.DB
}

// NewDriveRepository constructs the repository.
func NewDriveRepository(db *sqlx.DB) *DriveRepository {
	return &DriveRepository{db: db}
}

// GetByID fetches a drive by identifier.
func (r *DriveRepository) GetByID(ctx context.Context, id string) (*models.Drive, error) {
	var drive models.Drive
	if err := r.db.GetContext(ctx, &drive, `SELECT `+driveColumns+` FROM drives WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &drive, nil
}

// GetByOwner fetches the drive owned by a user.
func (r *DriveRepository) GetByOwner(ctx context.Context, ownerID string) (*models.Drive, error) {
	var drive models.Drive
	if err := r.db.GetContext(ctx, &drive, `SELECT `+driveColumns+` FROM drives WHERE owner_id = $1`, ownerID); err != nil {
		return nil, err
	}
	return &drive, nil
}

// CreateIfAbsent inserts the drive unless the owner already has one, in
// which case the existing row is returned.
func (r *DriveRepository) CreateIfAbsent(ctx context.Context, drive *models.Drive) (*models.Drive, error) {
	if drive.ID == "" {
		drive.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	drive.CreatedAt = now
	drive.UpdatedAt = now

	const query = `INSERT INTO drives (id, owner_id, storage_used, storage_limit, is_private, created_at, updated_at)
	VALUES (:id, :owner_id, :storage_used, :storage_limit, :is_private, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, drive); err != nil {
		if !database.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create drive: %w", err)
		}
		existing, getErr := r.GetByOwner(ctx, drive.OwnerID)
		if getErr != nil {
			return nil, fmt.Errorf("reload drive after conflict: %w", getErr)
		}
		return existing, nil
	}
	return drive, nil
}

// ReserveStorage adds delta to storage_used only when the result stays within
// storage_limit. It reports false when the condition did not hold or the drive is missing.
func (r *DriveRepository) ReserveStorage(ctx context.Context, id string, delta int64) (bool, error) {
	const query = `UPDATE drives SET storage_used = storage_used + $2, updated_at = NOW()
	WHERE id = $1 AND storage_used + $2 <= storage_limit`
	return r.execAffected(ctx, "reserve storage", query, id, delta)
}

// ReleaseStorage subtracts delta from storage_used, floored at zero.
func (r *DriveRepository) ReleaseStorage(ctx context.Context, id string, delta int64) (bool, error) {
	const query = `UPDATE drives SET storage_used = GREATEST(storage_used - $2, 0), updated_at = NOW()
	WHERE id = $1`
	return r.execAffected(ctx, "release storage", query, id, delta)
}

// DriveStats aggregates catalog counters for a drive summary.
type DriveStats struct {
	FolderCount int   `db:"folder_count"`
	FileCount   int   `db:"file_count"`
	TrashCount  int   `db:"trash_count"`
	TrashBytes  int64 `db:"trash_bytes"`
}

// Stats counts live folders and files plus trashed files of a drive.
func (r *DriveRepository) Stats(ctx context.Context, driveID string) (*DriveStats, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM folders WHERE drive_id = $1 AND deleted_at IS NULL) AS folder_count,
	(SELECT COUNT(*) FROM files WHERE drive_id = $1 AND deleted_at IS NULL) AS file_count,
	(SELECT COUNT(*) FROM files WHERE drive_id = $1 AND deleted_at IS NOT NULL) AS trash_count,
	(SELECT COALESCE(SUM(file_size), 0) FROM files WHERE drive_id = $1 AND deleted_at IS NOT NULL) AS trash_bytes`
	var stats DriveStats
	if err := r.db.GetContext(ctx, &stats, query, driveID); err != nil {
		return nil, fmt.Errorf("drive stats: %w", err)
	}
	return &stats, nil
}

func (r *DriveRepository) execAffected(ctx context.Context, op, query string, args ...interface{}) (bool, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows affected: %w", op, err)
	}
	return affected == 1, nil
}

// IsNotFound reports whether err means the row does not exist. An id that is
// not a valid uuid cannot name a row either.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || database.IsInvalidText(err)
}
