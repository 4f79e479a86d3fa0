package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/internal/repository"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
)

type trashFolderStore interface {
	GetByID(ctx context.Context, id string) (*models.Folder, error)
	FindLiveByName(ctx context.Context, driveID string, parentID *string, name string) (*models.Folder, error)
	ListTrashedRoots(ctx context.Context, driveID string) ([]models.Folder, error)
}

type trashFileStore interface {
	GetByID(ctx context.Context, id string) (*models.File, error)
	ListTrashedRoots(ctx context.Context, driveID string) ([]models.File, error)
}

type treeStore interface {
	Relocate(ctx context.Context, relocation repository.Relocation) error
	SetTrashed(ctx context.Context, change repository.TrashChange) error
	Purge(ctx context.Context, folderIDs, fileIDs []string) error
}

type subtreeWalker interface {
	Subtree(ctx context.Context, root *models.Folder) (*Subtree, error)
}

// TrashServiceParams groups constructor dependencies.
type TrashServiceParams struct {
	Folders  trashFolderStore
	Files    trashFileStore
	Tree     treeStore
	Walker   subtreeWalker
	Quota    quotaLedger
	Content  contentRemoval
	Activity activityRecorder
	Drives   driveResolver
	Summary  summaryInvalidator
	Logger   *zap.Logger
}

// TrashService soft-deletes, restores and purges folders and files.
type TrashService struct {
	folders  trashFolderStore
	files    trashFileStore
	tree     treeStore
	walker   subtreeWalker
	quota    quotaLedger
	content  contentRemoval
	activity activityRecorder
	drives   driveResolver
	summary  summaryInvalidator
	logger   *zap.Logger
	now      func() time.Time
}

// NewTrashService constructs the engine.
func NewTrashService(params TrashServiceParams) *TrashService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrashService{
		folders:  params.Folders,
		files:    params.Files,
		tree:     params.Tree,
		walker:   params.Walker,
		quota:    params.Quota,
		content:  params.Content,
		activity: params.Activity,
		drives:   params.Drives,
		summary:  params.Summary,
		logger:   logger,
		now:      time.Now,
	}
}

// SoftDeleteFolder moves a folder and its whole subtree to the trash.
func (s *TrashService) SoftDeleteFolder(ctx context.Context, actor *models.JWTClaims, id string) error {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return err
	}
	return s.softDeleteFolder(ctx, scope, id, nil)
}

// SoftDeleteFile moves a single file to the trash.
func (s *TrashService) SoftDeleteFile(ctx context.Context, actor *models.JWTClaims, id string) error {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return err
	}
	return s.softDeleteFile(ctx, scope, id, nil)
}

// RestoreFolder brings a trashed folder and its subtree back.
func (s *TrashService) RestoreFolder(ctx context.Context, actor *models.JWTClaims, id string) (*models.Folder, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	return s.restoreFolder(ctx, scope, id, nil)
}

// RestoreFile brings a trashed file back.
func (s *TrashService) RestoreFile(ctx context.Context, actor *models.JWTClaims, id string) (*models.File, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	return s.restoreFile(ctx, scope, id, nil)
}

// PurgeFolder permanently deletes a trashed folder subtree and frees its bytes.
func (s *TrashService) PurgeFolder(ctx context.Context, actor *models.JWTClaims, id string) error {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return err
	}
	_, err = s.purgeFolder(ctx, scope, id)
	return err
}

// PurgeFile permanently deletes a trashed file and frees its bytes.
func (s *TrashService) PurgeFile(ctx context.Context, actor *models.JWTClaims, id string) error {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return err
	}
	_, err = s.purgeFile(ctx, scope, id)
	return err
}

// ListTrash returns the top-level trashed folders and files of the caller's drive.
func (s *TrashService) ListTrash(ctx context.Context, actor *models.JWTClaims) (*dto.TrashListing, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	folders, err := s.folders.ListTrashedRoots(ctx, scope.drive.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list trashed folders")
	}
	files, err := s.files.ListTrashedRoots(ctx, scope.drive.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list trashed files")
	}

	listing := &dto.TrashListing{Folders: []dto.TrashedFolder{}, Files: []dto.TrashedFile{}}
	for i := range folders {
		subtree, err := s.walker.Subtree(ctx, &folders[i])
		if err != nil {
			return nil, treeWriteErr(err, "failed to inspect trashed folder")
		}
		listing.Folders = append(listing.Folders, dto.TrashedFolder{
			Folder:    folders[i],
			FileCount: len(subtree.Files),
			Bytes:     subtree.Bytes(),
		})
	}
	for _, file := range files {
		listing.Files = append(listing.Files, dto.TrashedFile{File: file})
	}
	return listing, nil
}

// EmptyTrash purges every top-level trashed item. Items are purged
// independently; failures are reported and do not stop the run.
func (s *TrashService) EmptyTrash(ctx context.Context, actor *models.JWTClaims) (*dto.EmptyTrashResult, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	folders, err := s.folders.ListTrashedRoots(ctx, scope.drive.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list trashed folders")
	}
	files, err := s.files.ListTrashedRoots(ctx, scope.drive.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list trashed files")
	}

	result := &dto.EmptyTrashResult{}
	fail := func(id string, err error) {
		appErr := appErrors.FromError(err)
		result.Failed = append(result.Failed, dto.BulkFailure{ID: id, Error: appErr.Code, Message: appErr.Message})
	}
	for _, folder := range folders {
		freed, err := s.purgeFolder(ctx, scope, folder.ID)
		if err != nil {
			fail(folder.ID, err)
			continue
		}
		result.PurgedFolders++
		result.FreedBytes += freed
	}
	for _, file := range files {
		freed, err := s.purgeFile(ctx, scope, file.ID)
		if err != nil {
			fail(file.ID, err)
			continue
		}
		result.PurgedFiles++
		result.FreedBytes += freed
	}
	return result, nil
}

func (s *TrashService) softDeleteFolder(ctx context.Context, scope *driveScope, id string, meta map[string]interface{}) error {
	var folder *models.Folder
	err := retryStale(ctx, func() error {
		var err error
		folder, err = loadOwnedFolder(ctx, s.folders, scope.drive.ID, id)
		if err != nil {
			return err
		}
		if folder.IsTrashed() {
			return appErrors.Clone(appErrors.ErrConflict, "folder is already in trash")
		}
		subtree, err := s.walker.Subtree(ctx, folder)
		if err != nil {
			return treeWriteErr(err, "failed to walk folder")
		}
		deletedAt := s.now().UTC()
		return treeWriteErr(s.tree.SetTrashed(ctx, repository.TrashChange{
			FolderIDs: subtree.FolderIDs(),
			FileIDs:   subtree.FileIDs(),
			DeletedAt: &deletedAt,
		}), "failed to move folder to trash")
	})
	if err != nil {
		return err
	}
	s.changed(ctx, scope)
	s.record(ctx, scope, models.ActivityDelete, models.TargetFolder, folder.ID, folder.Name, meta)
	return nil
}

func (s *TrashService) softDeleteFile(ctx context.Context, scope *driveScope, id string, meta map[string]interface{}) error {
	file, err := loadOwnedFile(ctx, s.files, scope.drive.ID, id)
	if err != nil {
		return err
	}
	if file.IsTrashed() {
		return appErrors.Clone(appErrors.ErrConflict, "file is already in trash")
	}
	deletedAt := s.now().UTC()
	if err := s.tree.SetTrashed(ctx, repository.TrashChange{FileIDs: []string{file.ID}, DeletedAt: &deletedAt}); err != nil {
		return appErrors.Internal(err, "failed to move file to trash")
	}
	s.changed(ctx, scope)
	s.record(ctx, scope, models.ActivityDelete, models.TargetFile, file.ID, file.OriginalName, meta)
	return nil
}

func (s *TrashService) restoreFolder(ctx context.Context, scope *driveScope, id string, meta map[string]interface{}) (*models.Folder, error) {
	var (
		folder     *models.Folder
		reattached bool
	)
	err := retryStale(ctx, func() error {
		var err error
		folder, err = loadOwnedFolder(ctx, s.folders, scope.drive.ID, id)
		if err != nil {
			return err
		}
		if !folder.IsTrashed() {
			return appErrors.Clone(appErrors.ErrNotInTrash, "folder is not in trash")
		}

		parent, err := s.liveParent(ctx, folder.ParentID)
		if err != nil {
			return err
		}
		change := repository.TrashChange{}
		var parentID *string
		parentPath := ""
		if parent != nil {
			parentID = &parent.ID
			parentPath = parent.Path
			change.KeepUnderID = parent.ID
		} else if folder.ParentID != nil {
			change.DetachFolderID = folder.ID
		}
		reattached = change.DetachFolderID != ""

		if err := ensureFolderNameFree(ctx, s.folders, scope.drive.ID, parentID, folder.Name, folder.ID); err != nil {
			return err
		}
		subtree, err := s.walker.Subtree(ctx, folder)
		if err != nil {
			return treeWriteErr(err, "failed to walk folder")
		}
		updates := planPaths(folder, ComputePath(parentPath, folder.Name), subtree.Folders)
		if updates[0].NewPath == updates[0].OldPath {
			updates = updates[1:]
		}
		change.FolderIDs = subtree.FolderIDs()
		change.FileIDs = subtree.FileIDs()
		change.Paths = updates
		return treeWriteErr(s.tree.SetTrashed(ctx, change), "failed to restore folder")
	})
	if err != nil {
		return nil, err
	}
	if reattached {
		meta = withMeta(meta, "reattachedToRoot", true)
	}
	s.changed(ctx, scope)
	s.record(ctx, scope, models.ActivityRestore, models.TargetFolder, folder.ID, folder.Name, meta)
	return s.reloadFolder(ctx, folder), nil
}

func (s *TrashService) restoreFile(ctx context.Context, scope *driveScope, id string, meta map[string]interface{}) (*models.File, error) {
	var (
		file       *models.File
		reattached bool
	)
	err := retryStale(ctx, func() error {
		var err error
		file, err = loadOwnedFile(ctx, s.files, scope.drive.ID, id)
		if err != nil {
			return err
		}
		if !file.IsTrashed() {
			return appErrors.Clone(appErrors.ErrNotInTrash, "file is not in trash")
		}
		parent, err := s.liveParent(ctx, file.FolderID)
		if err != nil {
			return err
		}
		change := repository.TrashChange{FileIDs: []string{file.ID}}
		if parent != nil {
			change.KeepUnderID = parent.ID
		} else if file.FolderID != nil {
			change.DetachFileID = file.ID
		}
		reattached = change.DetachFileID != ""
		return treeWriteErr(s.tree.SetTrashed(ctx, change), "failed to restore file")
	})
	if err != nil {
		return nil, err
	}
	file.DeletedAt = nil
	if reattached {
		file.FolderID = nil
		meta = withMeta(meta, "reattachedToRoot", true)
	}
	s.changed(ctx, scope)
	s.record(ctx, scope, models.ActivityRestore, models.TargetFile, file.ID, file.OriginalName, meta)
	return file, nil
}

// purgeFolder deletes catalog rows first, then releases quota and schedules
// content removal, so usage never drops below the bytes still catalogued.
func (s *TrashService) purgeFolder(ctx context.Context, scope *driveScope, id string) (int64, error) {
	var (
		folder  *models.Folder
		subtree *Subtree
	)
	err := retryStale(ctx, func() error {
		var err error
		folder, err = loadOwnedFolder(ctx, s.folders, scope.drive.ID, id)
		if err != nil {
			return err
		}
		if !folder.IsTrashed() {
			return appErrors.Clone(appErrors.ErrNotInTrash, "folder must be in trash before it is purged")
		}
		subtree, err = s.walker.Subtree(ctx, folder)
		if err != nil {
			return treeWriteErr(err, "failed to walk folder")
		}
		return treeWriteErr(s.tree.Purge(ctx, subtree.FolderIDs(), subtree.FileIDs()), "failed to purge folder")
	})
	if err != nil {
		return 0, err
	}

	freed := subtree.Bytes()
	s.release(ctx, scope.drive.ID, freed)
	s.content.Remove(ctx, contentKeys(subtree.Files)...)
	s.changed(ctx, scope)
	s.record(ctx, scope, models.ActivityPurge, models.TargetFolder, folder.ID, folder.Name, map[string]interface{}{
		"folders":    len(subtree.Folders) + 1,
		"files":      len(subtree.Files),
		"freedBytes": freed,
	})
	return freed, nil
}

func (s *TrashService) purgeFile(ctx context.Context, scope *driveScope, id string) (int64, error) {
	file, err := loadOwnedFile(ctx, s.files, scope.drive.ID, id)
	if err != nil {
		return 0, err
	}
	if !file.IsTrashed() {
		return 0, appErrors.Clone(appErrors.ErrNotInTrash, "file must be in trash before it is purged")
	}
	if err := s.tree.Purge(ctx, nil, []string{file.ID}); err != nil {
		return 0, appErrors.Internal(err, "failed to purge file")
	}
	s.release(ctx, scope.drive.ID, file.FileSize)
	s.content.Remove(ctx, contentKeys([]models.File{*file})...)
	s.changed(ctx, scope)
	s.record(ctx, scope, models.ActivityPurge, models.TargetFile, file.ID, file.OriginalName, map[string]interface{}{
		"freedBytes": file.FileSize,
	})
	return file.FileSize, nil
}

// liveParent returns the parent folder when it still exists and is live.
func (s *TrashService) liveParent(ctx context.Context, parentID *string) (*models.Folder, error) {
	if parentID == nil {
		return nil, nil
	}
	parent, err := s.folders.GetByID(ctx, *parentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, appErrors.Internal(err, "failed to load parent folder")
	}
	if parent.IsTrashed() {
		return nil, nil
	}
	return parent, nil
}

func (s *TrashService) reloadFolder(ctx context.Context, folder *models.Folder) *models.Folder {
	fresh, err := s.folders.GetByID(ctx, folder.ID)
	if err != nil {
		s.logger.Warn("failed to reload folder", zap.String("folder_id", folder.ID), zap.Error(err))
		return folder
	}
	return fresh
}

func (s *TrashService) release(ctx context.Context, driveID string, bytes int64) {
	if err := s.quota.Release(ctx, driveID, bytes); err != nil {
		s.logger.Error("failed to release purged storage",
			zap.String("drive_id", driveID),
			zap.Int64("bytes", bytes),
			zap.Error(err),
		)
	}
}

func (s *TrashService) changed(ctx context.Context, scope *driveScope) {
	if s.summary != nil {
		s.summary.InvalidateSummary(ctx, scope.drive.ID)
	}
}

func (s *TrashService) record(ctx context.Context, scope *driveScope, action models.ActivityAction, targetType models.TargetType, id, name string, meta map[string]interface{}) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, ActivityEntry{
		DriveID:    scope.drive.ID,
		UserID:     scope.userID,
		Action:     action,
		TargetType: targetType,
		TargetID:   id,
		TargetName: name,
		Metadata:   meta,
	})
}

// withMeta returns a copy of meta with key set, leaving the caller's map untouched.
func withMeta(meta map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out[key] = value
	return out
}

func contentKeys(files []models.File) []string {
	keys := make([]string, 0, len(files))
	for _, file := range files {
		keys = append(keys, file.StorageKey)
		if file.ThumbnailPath != nil {
			keys = append(keys, *file.ThumbnailPath)
		}
	}
	return keys
}
