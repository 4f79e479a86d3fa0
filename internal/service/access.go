package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/internal/repository"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
)

const maxTreeAttempts = 3

type folderGetter interface {
	GetByID(ctx context.Context, id string) (*models.Folder, error)
}

type fileGetter interface {
	GetByID(ctx context.Context, id string) (*models.File, error)
}

// loadOwnedFolder fetches a folder, live or trashed, that must belong to driveID.
func loadOwnedFolder(ctx context.Context, store folderGetter, driveID, id string) (*models.Folder, error) {
	if !isUUID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "folder not found")
	}
	folder, err := store.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "folder not found")
		}
		return nil, appErrors.Internal(err, "failed to load folder")
	}
	if folder.DriveID != driveID {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "folder belongs to another drive")
	}
	return folder, nil
}

// loadOwnedFile fetches a file, live or trashed, that must belong to driveID.
func loadOwnedFile(ctx context.Context, store fileGetter, driveID, id string) (*models.File, error) {
	file, err := loadFile(ctx, store, id)
	if err != nil {
		return nil, err
	}
	if file.DriveID != driveID {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "file belongs to another drive")
	}
	return file, nil
}

func loadFile(ctx context.Context, store fileGetter, id string) (*models.File, error) {
	if !isUUID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	file, err := store.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Internal(err, "failed to load file")
	}
	return file, nil
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// loadTargetFolder resolves a destination folder: it must be live and in driveID.
func loadTargetFolder(ctx context.Context, store folderGetter, driveID string, id *string) (*models.Folder, error) {
	if id == nil {
		return nil, nil
	}
	folder, err := loadOwnedFolder(ctx, store, driveID, *id)
	if err != nil {
		return nil, err
	}
	if folder.IsTrashed() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "target folder is in trash")
	}
	return folder, nil
}

type folderNameFinder interface {
	FindLiveByName(ctx context.Context, driveID string, parentID *string, name string) (*models.Folder, error)
}

// ensureFolderNameFree fails with NamingConflict when a live sibling other
// than selfID already uses name under parentID.
func ensureFolderNameFree(ctx context.Context, finder folderNameFinder, driveID string, parentID *string, name, selfID string) error {
	existing, err := finder.FindLiveByName(ctx, driveID, parentID, name)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil
		}
		return appErrors.Internal(err, "failed to check folder name")
	}
	if existing.ID == selfID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrNamingConflict, fmt.Sprintf("a folder named %q already exists there", name))
}

// retryStale reruns fn while its plan keeps going stale, then gives up with
// a conflict the caller may retry.
func retryStale(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxTreeAttempts; attempt++ {
		if err = fn(); !errors.Is(err, repository.ErrStaleTree) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, appErrors.ErrConflict.Message)
}

// treeWriteErr maps repository errors from tree mutations to typed errors.
// ErrStaleTree passes through so retryStale can replan.
func treeWriteErr(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStaleTree):
		return err
	case errors.Is(err, repository.ErrDuplicate):
		return appErrors.Clone(appErrors.ErrNamingConflict, "")
	case errors.Is(err, ErrTreeCorrupted):
		return appErrors.Internal(err, "folder tree is corrupted")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Internal(err, message)
}

func strPtr(value string) *string {
	return &value
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
