package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/pkg/database"
)

const folderColumns = `id, drive_id, parent_id, name, path, is_public, deleted_at, created_at, updated_at`

// FolderRepository persists folder rows.
type FolderRepository struct {
	db *sqlx.DB
}

// NewFolderRepository constructs the repository.
func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// GetByID fetches a folder, live or trashed.
func (r *FolderRepository) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	var folder models.Folder
	if err := r.db.GetContext(ctx, &folder, `SELECT `+folderColumns+` FROM folders WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &folder, nil
}

// ListChildren returns every direct child of parentID, trashed ones included,
// ordered by name then id.
func (r *FolderRepository) ListChildren(ctx context.Context, parentID string) ([]models.Folder, error) {
	const query = `SELECT ` + folderColumns + ` FROM folders WHERE parent_id = $1 ORDER BY name, id`
	var folders []models.Folder
	if err := r.db.SelectContext(ctx, &folders, query, parentID); err != nil {
		return nil, fmt.Errorf("list child folders: %w", err)
	}
	return folders, nil
}

// List returns folders matching the filter ordered by name.
func (r *FolderRepository) List(ctx context.Context, filter models.FolderFilter) ([]models.Folder, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + folderColumns + ` FROM folders WHERE drive_id = $1`)
	args := []interface{}{filter.DriveID}

	switch {
	case filter.ParentID != nil:
		args = append(args, *filter.ParentID)
		builder.WriteString(fmt.Sprintf(" AND parent_id = $%d", len(args)))
	case filter.RootOnly:
		builder.WriteString(" AND parent_id IS NULL")
	}
	if !filter.IncludeDeleted {
		builder.WriteString(" AND deleted_at IS NULL")
	}
	builder.WriteString(" ORDER BY name, id")

	var folders []models.Folder
	if err := r.db.SelectContext(ctx, &folders, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return folders, nil
}

// ListTrashedRoots returns trashed folders whose parent is live or absent,
// i.e. the top-level entries shown in the trash.
func (r *FolderRepository) ListTrashedRoots(ctx context.Context, driveID string) ([]models.Folder, error) {
	const query = `SELECT f.id, f.drive_id, f.parent_id, f.name, f.path, f.is_public, f.deleted_at, f.created_at, f.updated_at
	FROM folders f
	LEFT JOIN folders p ON p.id = f.parent_id
	WHERE f.drive_id = $1 AND f.deleted_at IS NOT NULL AND (p.id IS NULL OR p.deleted_at IS NULL)
	ORDER BY f.deleted_at DESC, f.name`
	var folders []models.Folder
	if err := r.db.SelectContext(ctx, &folders, query, driveID); err != nil {
		return nil, fmt.Errorf("list trashed folders: %w", err)
	}
	return folders, nil
}

// FindLiveByName looks up a live sibling by exact name.
func (r *FolderRepository) FindLiveByName(ctx context.Context, driveID string, parentID *string, name string) (*models.Folder, error) {
	var (
		folder models.Folder
		err    error
	)
	if parentID == nil {
		const query = `SELECT ` + folderColumns + ` FROM folders
		WHERE drive_id = $1 AND parent_id IS NULL AND name = $2 AND deleted_at IS NULL`
		err = r.db.GetContext(ctx, &folder, query, driveID, name)
	} else {
		const query = `SELECT ` + folderColumns + ` FROM folders
		WHERE drive_id = $1 AND parent_id = $2 AND name = $3 AND deleted_at IS NULL`
		err = r.db.GetContext(ctx, &folder, query, driveID, *parentID, name)
	}
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// Create inserts a folder. A live sibling with the same name yields
// ErrDuplicate. Child folders share-lock their parent so the stored path is
// derived from the parent as committed; a trashed, missing or moved parent
// yields ErrStaleTree.
func (r *FolderRepository) Create(ctx context.Context, folder *models.Folder) error {
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if folder.CreatedAt.IsZero() {
		folder.CreatedAt = now
	}
	folder.UpdatedAt = now

	const query = `INSERT INTO folders (id, drive_id, parent_id, name, path, is_public, deleted_at, created_at, updated_at)
	VALUES (:id, :drive_id, :parent_id, :name, :path, :is_public, :deleted_at, :created_at, :updated_at)`
	insert := func(exec sqlx.ExtContext) error {
		if _, err := sqlx.NamedExecContext(ctx, exec, query, folder); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("create folder: %w", err)
		}
		return nil
	}
	if folder.ParentID == nil {
		return insert(r.db)
	}

	parentPath := folder.Path[:strings.LastIndex(folder.Path, "/")]
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := requireLiveFolder(ctx, tx, *folder.ParentID, &parentPath); err != nil {
			return err
		}
		return insert(tx)
	})
	if err != nil && database.IsRetryable(err) {
		return ErrStaleTree
	}
	return err
}

// CreateIfAbsent inserts the folder or, when a live sibling with the same
// name already exists, returns that sibling. created reports which happened.
func (r *FolderRepository) CreateIfAbsent(ctx context.Context, folder *models.Folder) (*models.Folder, bool, error) {
	err := r.Create(ctx, folder)
	if err == nil {
		return folder, true, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		return nil, false, err
	}
	existing, getErr := r.FindLiveByName(ctx, folder.DriveID, folder.ParentID, folder.Name)
	if getErr != nil {
		return nil, false, fmt.Errorf("reload folder after conflict: %w", getErr)
	}
	return existing, false, nil
}

// SetPublic toggles folder visibility.
func (r *FolderRepository) SetPublic(ctx context.Context, id string, public bool) error {
	const query = `UPDATE folders SET is_public = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, public); err != nil {
		return fmt.Errorf("update folder visibility: %w", err)
	}
	return nil
}
