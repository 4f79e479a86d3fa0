package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-drive-api/pkg/database"
)

// PathUpdate rewrites one folder path. OldPath guards against concurrent changes.
type PathUpdate struct {
	ID      string
	OldPath string
	NewPath string
}

// Relocation renames and/or reparents a folder. Paths[0] must describe the
// folder itself, followed by every descendant whose path changes.
// SubtreeIDs lists the folder and all of its descendants as walked when the
// plan was made; ParentPath is the path of ParentID the plan was computed from.
type Relocation struct {
	FolderID   string
	ParentID   *string
	ParentPath string
	Name       string
	SubtreeIDs []string
	Paths      []PathUpdate
}

// TrashChange stamps (DeletedAt set) or clears (DeletedAt nil) deleted_at
// on a precomputed set of rows. On restore the root item may be detached
// to the drive root, with Paths rebasing the restored folders.
type TrashChange struct {
	FolderIDs      []string
	FileIDs        []string
	DeletedAt      *time.Time
	DetachFolderID string
	DetachFileID   string
	// KeepUnderID names a folder that must still be live for a restore to
	// reattach beneath it.
	KeepUnderID string
	Paths       []PathUpdate
}

// TreeRepository applies multi-row folder and file mutations atomically.
type TreeRepository struct {
	db *sqlx.DB
}

// NewTreeRepository constructs the repository.
func NewTreeRepository(db *sqlx.DB) *TreeRepository {
	return &TreeRepository{db: db}
}

// Relocate applies a rename or move in a single transaction. The moved row is
// locked first, then the new parent and the planned subtree; any row that no
// longer matches the plan aborts with ErrStaleTree.
func (r *TreeRepository) Relocate(ctx context.Context, relocation Relocation) error {
	if len(relocation.Paths) == 0 || relocation.Paths[0].ID != relocation.FolderID {
		return fmt.Errorf("relocation must start with the moved folder")
	}
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		var current lockedFolder
		const lockQuery = `SELECT path, deleted_at FROM folders WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &current, lockQuery, relocation.FolderID); err != nil {
			if IsNotFound(err) {
				return ErrStaleTree
			}
			return fmt.Errorf("lock folder: %w", err)
		}
		if current.Path != relocation.Paths[0].OldPath || current.DeletedAt != nil {
			return ErrStaleTree
		}
		if relocation.ParentID != nil {
			if err := requireLiveFolder(ctx, tx, *relocation.ParentID, &relocation.ParentPath); err != nil {
				return err
			}
		}
		if err := lockSubtree(ctx, tx, relocation.SubtreeIDs, nil, false); err != nil {
			return err
		}

		const moveQuery = `UPDATE folders SET parent_id = $2, name = $3, path = $4, updated_at = NOW() WHERE id = $1`
		if _, err := tx.ExecContext(ctx, moveQuery, relocation.FolderID, relocation.ParentID, relocation.Name, relocation.Paths[0].NewPath); err != nil {
			return mapWriteErr("relocate folder", err)
		}
		return rewritePaths(ctx, tx, relocation.Paths[1:])
	})
}

// SetTrashed applies a soft delete or restore in a single transaction.
func (r *TreeRepository) SetTrashed(ctx context.Context, change TrashChange) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSubtree(ctx, tx, change.FolderIDs, change.FileIDs, true); err != nil {
			return err
		}
		if change.KeepUnderID != "" {
			if err := requireLiveFolder(ctx, tx, change.KeepUnderID, nil); err != nil {
				return err
			}
		}
		if change.DetachFolderID != "" {
			const query = `UPDATE folders SET parent_id = NULL, updated_at = NOW() WHERE id = $1`
			if _, err := tx.ExecContext(ctx, query, change.DetachFolderID); err != nil {
				return mapWriteErr("detach folder", err)
			}
		}
		if change.DetachFileID != "" {
			const query = `UPDATE files SET folder_id = NULL, updated_at = NOW() WHERE id = $1`
			if _, err := tx.ExecContext(ctx, query, change.DetachFileID); err != nil {
				return mapWriteErr("detach file", err)
			}
		}
		if err := rewritePaths(ctx, tx, change.Paths); err != nil {
			return err
		}
		if len(change.FolderIDs) > 0 {
			const query = `UPDATE folders SET deleted_at = $1, updated_at = NOW() WHERE id = ANY($2::uuid[])`
			if _, err := tx.ExecContext(ctx, query, change.DeletedAt, pq.Array(change.FolderIDs)); err != nil {
				return mapWriteErr("update folder trash state", err)
			}
		}
		if len(change.FileIDs) > 0 {
			const query = `UPDATE files SET deleted_at = $1, updated_at = NOW() WHERE id = ANY($2::uuid[])`
			if _, err := tx.ExecContext(ctx, query, change.DeletedAt, pq.Array(change.FileIDs)); err != nil {
				return mapWriteErr("update file trash state", err)
			}
		}
		return nil
	})
}

// Purge deletes catalog rows for the given folders and files in one
// transaction. Rows attached to the folders but missing from the plan abort
// with ErrStaleTree so their bytes are never orphaned.
func (r *TreeRepository) Purge(ctx context.Context, folderIDs, fileIDs []string) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := lockSubtree(ctx, tx, folderIDs, fileIDs, true); err != nil {
			return err
		}
		if len(fileIDs) > 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM files WHERE id = ANY($1::uuid[])`, pq.Array(fileIDs)); err != nil {
				return fmt.Errorf("purge files: %w", err)
			}
		}
		if len(folderIDs) > 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ANY($1::uuid[])`, pq.Array(folderIDs)); err != nil {
				return fmt.Errorf("purge folders: %w", err)
			}
		}
		return nil
	})
}

func (r *TreeRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	err := database.WithTx(ctx, r.db, fn)
	if err != nil && database.IsRetryable(err) {
		return ErrStaleTree
	}
	return err
}

type lockedFolder struct {
	Path      string     `db:"path"`
	DeletedAt *time.Time `db:"deleted_at"`
}

// requireLiveFolder share-locks a folder and checks it is live and, when
// wantPath is set, still at the expected path.
func requireLiveFolder(ctx context.Context, tx *sqlx.Tx, id string, wantPath *string) error {
	var folder lockedFolder
	const query = `SELECT path, deleted_at FROM folders WHERE id = $1 FOR SHARE`
	if err := tx.GetContext(ctx, &folder, query, id); err != nil {
		if IsNotFound(err) {
			return ErrStaleTree
		}
		return fmt.Errorf("lock folder: %w", err)
	}
	if folder.DeletedAt != nil || (wantPath != nil && folder.Path != *wantPath) {
		return ErrStaleTree
	}
	return nil
}

// lockSubtree locks the planned folders and then confirms nothing outside the
// plan hangs off them. The check runs as a separate statement after the lock so
// it observes rows committed by writers that held a share lock on a subtree folder.
func lockSubtree(ctx context.Context, tx *sqlx.Tx, folderIDs, fileIDs []string, checkFiles bool) error {
	if len(folderIDs) == 0 {
		return nil
	}
	folders := pq.Array(nonNil(folderIDs))

	var locked []string
	const lockQuery = `SELECT id FROM folders WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`
	if err := tx.SelectContext(ctx, &locked, lockQuery, folders); err != nil {
		return fmt.Errorf("lock subtree: %w", err)
	}
	if len(locked) != len(folderIDs) {
		return ErrStaleTree
	}

	var strays int
	const folderQuery = `SELECT COUNT(*) FROM folders WHERE parent_id = ANY($1::uuid[]) AND NOT (id = ANY($1::uuid[]))`
	if err := tx.GetContext(ctx, &strays, folderQuery, folders); err != nil {
		return fmt.Errorf("verify subtree folders: %w", err)
	}
	if strays > 0 {
		return ErrStaleTree
	}
	if !checkFiles {
		return nil
	}
	const fileQuery = `SELECT COUNT(*) FROM files WHERE folder_id = ANY($1::uuid[]) AND NOT (id = ANY($2::uuid[]))`
	if err := tx.GetContext(ctx, &strays, fileQuery, folders, pq.Array(nonNil(fileIDs))); err != nil {
		return fmt.Errorf("verify subtree files: %w", err)
	}
	if strays > 0 {
		return ErrStaleTree
	}
	return nil
}

// nonNil keeps pq.Array from encoding an empty plan as NULL.
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func rewritePaths(ctx context.Context, tx *sqlx.Tx, updates []PathUpdate) error {
	const query = `UPDATE folders SET path = $3, updated_at = NOW() WHERE id = $1 AND path = $2`
	for _, update := range updates {
		result, err := tx.ExecContext(ctx, query, update.ID, update.OldPath, update.NewPath)
		if err != nil {
			return mapWriteErr("rewrite folder path", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rewrite folder path rows affected: %w", err)
		}
		if affected != 1 {
			return ErrStaleTree
		}
	}
	return nil
}

func mapWriteErr(op string, err error) error {
	if database.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}
