package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/internal/repository"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
)

const maxListedFiles = 500

type folderStore interface {
	GetByID(ctx context.Context, id string) (*models.Folder, error)
	List(ctx context.Context, filter models.FolderFilter) ([]models.Folder, error)
	FindLiveByName(ctx context.Context, driveID string, parentID *string, name string) (*models.Folder, error)
	Create(ctx context.Context, folder *models.Folder) error
	CreateIfAbsent(ctx context.Context, folder *models.Folder) (*models.Folder, bool, error)
	SetPublic(ctx context.Context, id string, public bool) error
}

type folderFileLister interface {
	List(ctx context.Context, filter models.FileFilter) ([]models.File, int, error)
}

type folderWalker interface {
	Descendants(ctx context.Context, root *models.Folder) ([]models.Folder, error)
}

// FolderServiceParams groups constructor dependencies.
type FolderServiceParams struct {
	Folders        folderStore
	Files          folderFileLister
	Tree           treeStore
	Walker         folderWalker
	Activity       activityRecorder
	Drives         driveResolver
	Validator      *validator.Validate
	DefaultFolders []string
	Logger         *zap.Logger
}

// FolderService creates, lists, renames and moves folders.
type FolderService struct {
	folders        folderStore
	files          folderFileLister
	tree           treeStore
	walker         folderWalker
	activity       activityRecorder
	drives         driveResolver
	validator      *validator.Validate
	defaultFolders []string
	logger         *zap.Logger
}

// NewFolderService constructs the service.
func NewFolderService(params FolderServiceParams) *FolderService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &FolderService{
		folders:        params.Folders,
		files:          params.Files,
		tree:           params.Tree,
		walker:         params.Walker,
		activity:       params.Activity,
		drives:         params.Drives,
		validator:      validate,
		defaultFolders: params.DefaultFolders,
		logger:         logger,
	}
}

// Create adds a folder at the drive root or under a live parent.
func (s *FolderService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateFolderRequest) (*models.Folder, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, err
	}
	folder, err := s.createFolder(ctx, scope, req.ParentID, name, req.IsPublic)
	if err != nil {
		return nil, err
	}
	s.record(ctx, scope, models.ActivityCreate, folder, map[string]interface{}{"path": folder.Path})
	return folder, nil
}

func (s *FolderService) createFolder(ctx context.Context, scope *driveScope, parentID *string, name string, public bool) (*models.Folder, error) {
	var folder *models.Folder
	err := retryStale(ctx, func() error {
		parent, err := loadTargetFolder(ctx, s.folders, scope.drive.ID, parentID)
		if err != nil {
			return err
		}
		parentPath := ""
		if parent != nil {
			parentPath = parent.Path
		}
		if err := ensureFolderNameFree(ctx, s.folders, scope.drive.ID, parentID, name, ""); err != nil {
			return err
		}
		folder = &models.Folder{
			DriveID:  scope.drive.ID,
			ParentID: parentID,
			Name:     name,
			Path:     ComputePath(parentPath, name),
			IsPublic: public,
		}
		return treeWriteErr(s.folders.Create(ctx, folder), "failed to create folder")
	})
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// List returns the live children of parentID, or of the drive root when nil.
// Root listings provision the configured default folders first.
func (s *FolderService) List(ctx context.Context, actor *models.JWTClaims, parentID *string) (*models.FolderContents, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	if parentID == nil {
		s.provisionDefaults(ctx, scope)
		return s.contents(ctx, scope, nil, false)
	}
	parent, err := loadOwnedFolder(ctx, s.folders, scope.drive.ID, *parentID)
	if err != nil {
		return nil, err
	}
	if parent.IsTrashed() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "folder is in trash")
	}
	contents, err := s.contents(ctx, scope, &parent.ID, false)
	if err != nil {
		return nil, err
	}
	contents.Folder = parent
	return contents, nil
}

// Get returns a folder with its children. Trashed folders list their trashed children.
func (s *FolderService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.FolderContents, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	folder, err := loadOwnedFolder(ctx, s.folders, scope.drive.ID, id)
	if err != nil {
		return nil, err
	}
	contents, err := s.contents(ctx, scope, &folder.ID, folder.IsTrashed())
	if err != nil {
		return nil, err
	}
	contents.Folder = folder
	return contents, nil
}

// Update renames a folder and/or changes its visibility.
func (s *FolderService) Update(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateFolderRequest) (*models.Folder, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.Name == nil && req.IsPublic == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "nothing to update")
	}

	var folder *models.Folder
	if req.Name != nil {
		name, err := normalizeName(*req.Name)
		if err != nil {
			return nil, err
		}
		if folder, err = s.rename(ctx, scope, id, name); err != nil {
			return nil, err
		}
	}
	if req.IsPublic != nil {
		if folder == nil {
			if folder, err = s.loadLive(ctx, scope, id); err != nil {
				return nil, err
			}
		}
		if folder.IsPublic != *req.IsPublic {
			if err := s.folders.SetPublic(ctx, folder.ID, *req.IsPublic); err != nil {
				return nil, appErrors.Internal(err, "failed to update folder")
			}
			folder.IsPublic = *req.IsPublic
			s.record(ctx, scope, models.ActivityUpdate, folder, map[string]interface{}{"isPublic": folder.IsPublic})
		}
	}
	return folder, nil
}

// Move reparents a folder under req.TargetFolderID, or to the root when nil.
func (s *FolderService) Move(ctx context.Context, actor *models.JWTClaims, id string, req dto.MoveRequest) (*models.Folder, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return s.moveFolder(ctx, scope, id, req.TargetFolderID, nil)
}

func (s *FolderService) rename(ctx context.Context, scope *driveScope, id, name string) (*models.Folder, error) {
	var (
		folder  *models.Folder
		oldName string
		changed bool
	)
	err := retryStale(ctx, func() error {
		var err error
		if folder, err = s.loadLive(ctx, scope, id); err != nil {
			return err
		}
		parent, err := loadTargetFolder(ctx, s.folders, scope.drive.ID, folder.ParentID)
		if err != nil {
			return err
		}
		oldName = folder.Name
		changed, err = s.relocate(ctx, folder, parent, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return folder, nil
	}
	folder = s.reload(ctx, folder)
	s.record(ctx, scope, models.ActivityRename, folder, map[string]interface{}{"from": oldName, "to": name})
	return folder, nil
}

func (s *FolderService) moveFolder(ctx context.Context, scope *driveScope, id string, targetID *string, meta map[string]interface{}) (*models.Folder, error) {
	var (
		folder  *models.Folder
		oldPath string
		changed bool
	)
	err := retryStale(ctx, func() error {
		var err error
		if folder, err = s.loadLive(ctx, scope, id); err != nil {
			return err
		}
		target, err := loadTargetFolder(ctx, s.folders, scope.drive.ID, targetID)
		if err != nil {
			return err
		}
		if target != nil && (target.ID == folder.ID || IsSameOrDescendantPath(target.Path, folder.Path)) {
			return appErrors.ErrInvalidMove
		}
		oldPath = folder.Path
		changed, err = s.relocate(ctx, folder, target, folder.Name)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return folder, nil
	}
	folder = s.reload(ctx, folder)
	meta = withMeta(meta, "fromPath", oldPath)
	meta["toPath"] = folder.Path
	s.record(ctx, scope, models.ActivityMove, folder, meta)
	return folder, nil
}

// relocate plans and applies a rename or move of folder under parent. It
// reports false when folder already has that parent and name.
func (s *FolderService) relocate(ctx context.Context, folder, parent *models.Folder, name string) (bool, error) {
	var (
		parentID   *string
		parentPath string
	)
	if parent != nil {
		parentID = &parent.ID
		parentPath = parent.Path
	}
	if sameParent(folder.ParentID, parentID) && folder.Name == name {
		return false, nil
	}
	if err := ensureFolderNameFree(ctx, s.folders, folder.DriveID, parentID, name, folder.ID); err != nil {
		return false, err
	}
	descendants, err := s.walker.Descendants(ctx, folder)
	if err != nil {
		return false, treeWriteErr(err, "failed to walk folder")
	}
	subtreeIDs := []string{folder.ID}
	for _, descendant := range descendants {
		if parent != nil && descendant.ID == parent.ID {
			return false, appErrors.ErrInvalidMove
		}
		subtreeIDs = append(subtreeIDs, descendant.ID)
	}
	err = s.tree.Relocate(ctx, repository.Relocation{
		FolderID:   folder.ID,
		ParentID:   parentID,
		ParentPath: parentPath,
		Name:       name,
		SubtreeIDs: subtreeIDs,
		Paths:      planPaths(folder, ComputePath(parentPath, name), descendants),
	})
	if err != nil {
		return false, treeWriteErr(err, "failed to relocate folder")
	}
	return true, nil
}

func (s *FolderService) loadLive(ctx context.Context, scope *driveScope, id string) (*models.Folder, error) {
	folder, err := loadOwnedFolder(ctx, s.folders, scope.drive.ID, id)
	if err != nil {
		return nil, err
	}
	if folder.IsTrashed() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "folder is in trash")
	}
	return folder, nil
}

func (s *FolderService) contents(ctx context.Context, scope *driveScope, parentID *string, includeDeleted bool) (*models.FolderContents, error) {
	folders, err := s.folders.List(ctx, models.FolderFilter{
		DriveID:        scope.drive.ID,
		ParentID:       parentID,
		RootOnly:       parentID == nil,
		IncludeDeleted: includeDeleted,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list folders")
	}
	files, _, err := s.files.List(ctx, models.FileFilter{
		DriveID:        scope.drive.ID,
		FolderID:       parentID,
		RootOnly:       parentID == nil,
		IncludeDeleted: includeDeleted,
		Limit:          maxListedFiles,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list files")
	}
	if folders == nil {
		folders = []models.Folder{}
	}
	if files == nil {
		files = []models.File{}
	}
	return &models.FolderContents{Folders: folders, Files: files}, nil
}

// provisionDefaults creates any configured root folder the drive has never
// had. Concurrent callers converge through the live-sibling unique index.
func (s *FolderService) provisionDefaults(ctx context.Context, scope *driveScope) {
	if len(s.defaultFolders) == 0 {
		return
	}
	existing, err := s.folders.List(ctx, models.FolderFilter{DriveID: scope.drive.ID, RootOnly: true, IncludeDeleted: true})
	if err != nil {
		s.logger.Warn("failed to list root folders for provisioning", zap.String("drive_id", scope.drive.ID), zap.Error(err))
		return
	}
	present := make(map[string]bool, len(existing))
	for _, folder := range existing {
		present[folder.Name] = true
	}
	for _, raw := range s.defaultFolders {
		name, err := normalizeName(raw)
		if err != nil || present[name] {
			continue
		}
		present[name] = true
		folder, created, err := s.folders.CreateIfAbsent(ctx, &models.Folder{
			DriveID: scope.drive.ID,
			Name:    name,
			Path:    ComputePath("", name),
		})
		if err != nil {
			s.logger.Warn("failed to provision default folder", zap.String("drive_id", scope.drive.ID), zap.String("name", name), zap.Error(err))
			continue
		}
		if created {
			s.record(ctx, scope, models.ActivityCreate, folder, map[string]interface{}{"path": folder.Path, "provisioned": true})
		}
	}
}

func (s *FolderService) reload(ctx context.Context, folder *models.Folder) *models.Folder {
	fresh, err := s.folders.GetByID(ctx, folder.ID)
	if err != nil {
		s.logger.Warn("failed to reload folder", zap.String("folder_id", folder.ID), zap.Error(err))
		return folder
	}
	return fresh
}

func (s *FolderService) record(ctx context.Context, scope *driveScope, action models.ActivityAction, folder *models.Folder, meta map[string]interface{}) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, ActivityEntry{
		DriveID:    scope.drive.ID,
		UserID:     scope.userID,
		Action:     action,
		TargetType: models.TargetFolder,
		TargetID:   folder.ID,
		TargetName: folder.Name,
		Metadata:   meta,
	})
}
