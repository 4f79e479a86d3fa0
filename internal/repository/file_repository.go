package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/pkg/database"
)

const fileColumns = `id, drive_id, folder_id, original_name, storage_key, file_size, mime_type, category, content_hash,
       is_public, thumbnail_path, deleted_at, download_count, view_count, created_at, updated_at`

// FileRepository persists file catalog rows.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// GetByID fetches a file, live or trashed.
func (r *FileRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	var file models.File
	if err := r.db.GetContext(ctx, &file, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &file, nil
}

// ListByFolder returns every file directly inside folderID, trashed ones included.
func (r *FileRepository) ListByFolder(ctx context.Context, folderID string) ([]models.File, error) {
	const query = `SELECT ` + fileColumns + ` FROM files WHERE folder_id = $1 ORDER BY original_name, id`
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, folderID); err != nil {
		return nil, fmt.Errorf("list folder files: %w", err)
	}
	return files, nil
}

// List returns files matching the filter with the total count.
func (r *FileRepository) List(ctx context.Context, filter models.FileFilter) ([]models.File, int, error) {
	conditions := []string{"drive_id = $1"}
	args := []interface{}{filter.DriveID}

	switch {
	case filter.FolderID != nil:
		args = append(args, *filter.FolderID)
		conditions = append(conditions, fmt.Sprintf("folder_id = $%d", len(args)))
	case filter.RootOnly:
		conditions = append(conditions, "folder_id IS NULL")
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if !filter.IncludeDeleted {
		conditions = append(conditions, "deleted_at IS NULL")
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM files`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count files: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM files%s ORDER BY original_name, id LIMIT %d OFFSET %d`, fileColumns, where, limit, offset)

	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list files: %w", err)
	}
	return files, total, nil
}

// ListTrashedRoots returns trashed files whose folder is live or absent.
func (r *FileRepository) ListTrashedRoots(ctx context.Context, driveID string) ([]models.File, error) {
	const query = `SELECT f.id, f.drive_id, f.folder_id, f.original_name, f.storage_key, f.file_size, f.mime_type, f.category,
       f.content_hash, f.is_public, f.thumbnail_path, f.deleted_at, f.download_count, f.view_count, f.created_at, f.updated_at
	FROM files f
	LEFT JOIN folders p ON p.id = f.folder_id
	WHERE f.drive_id = $1 AND f.deleted_at IS NOT NULL AND (p.id IS NULL OR p.deleted_at IS NULL)
	ORDER BY f.deleted_at DESC, f.original_name`
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, driveID); err != nil {
		return nil, fmt.Errorf("list trashed files: %w", err)
	}
	return files, nil
}

// Create inserts a file row. When the file belongs to a folder that folder is
// share-locked and must be live, otherwise ErrStaleTree is returned.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now

	const query = `INSERT INTO files (id, drive_id, folder_id, original_name, storage_key, file_size, mime_type, category,
	content_hash, is_public, thumbnail_path, deleted_at, download_count, view_count, created_at, updated_at)
	VALUES (:id, :drive_id, :folder_id, :original_name, :storage_key, :file_size, :mime_type, :category,
	:content_hash, :is_public, :thumbnail_path, :deleted_at, :download_count, :view_count, :created_at, :updated_at)`
	if file.FolderID == nil {
		if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
			return fmt.Errorf("create file: %w", err)
		}
		return nil
	}
	return r.withFolder(ctx, *file.FolderID, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, file); err != nil {
			return fmt.Errorf("create file: %w", err)
		}
		return nil
	})
}

// Update applies owner-editable metadata.
func (r *FileRepository) Update(ctx context.Context, id string, update models.FileUpdate) error {
	setParts := []string{"updated_at = NOW()"}
	args := []interface{}{id}
	if update.OriginalName != nil {
		args = append(args, *update.OriginalName)
		setParts = append(setParts, fmt.Sprintf("original_name = $%d", len(args)))
	}
	if update.IsPublic != nil {
		args = append(args, *update.IsPublic)
		setParts = append(setParts, fmt.Sprintf("is_public = $%d", len(args)))
	}
	query := fmt.Sprintf("UPDATE files SET %s WHERE id = $1", strings.Join(setParts, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

// Move sets the folder of a file; nil moves it to the drive root. A target
// folder that is no longer live yields ErrStaleTree.
func (r *FileRepository) Move(ctx context.Context, id string, folderID *string) error {
	const query = `UPDATE files SET folder_id = $2, updated_at = NOW() WHERE id = $1`
	if folderID == nil {
		if _, err := r.db.ExecContext(ctx, query, id, folderID); err != nil {
			return fmt.Errorf("move file: %w", err)
		}
		return nil
	}
	return r.withFolder(ctx, *folderID, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, query, id, folderID); err != nil {
			return fmt.Errorf("move file: %w", err)
		}
		return nil
	})
}

func (r *FileRepository) withFolder(ctx context.Context, folderID string, fn func(tx *sqlx.Tx) error) error {
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := requireLiveFolder(ctx, tx, folderID, nil); err != nil {
			return err
		}
		return fn(tx)
	})
	if err != nil && database.IsRetryable(err) {
		return ErrStaleTree
	}
	return err
}

// IncrementCounters bumps download and view counters.
func (r *FileRepository) IncrementCounters(ctx context.Context, id string, downloads, views int) error {
	const query = `UPDATE files SET download_count = download_count + $2, view_count = view_count + $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, downloads, views); err != nil {
		return fmt.Errorf("increment file counters: %w", err)
	}
	return nil
}

// SetThumbnail caches the generated thumbnail key on the row.
func (r *FileRepository) SetThumbnail(ctx context.Context, id, path string) error {
	const query = `UPDATE files SET thumbnail_path = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, path); err != nil {
		return fmt.Errorf("set thumbnail: %w", err)
	}
	return nil
}
