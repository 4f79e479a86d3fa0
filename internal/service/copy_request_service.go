package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/internal/repository"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
)

const maxCopyNameAttempts = 20

type copyRequestStore interface {
	Create(ctx context.Context, request *models.CopyRequest) error
	GetByID(ctx context.Context, id string) (*models.CopyRequest, error)
	List(ctx context.Context, filter models.CopyRequestFilter) ([]models.CopyRequest, int, error)
	Transition(ctx context.Context, id string, status models.CopyRequestStatus, processedAt time.Time) (bool, error)
	DeletePending(ctx context.Context, id string) (bool, error)
}

type copyFolderStore interface {
	GetByID(ctx context.Context, id string) (*models.Folder, error)
	FindLiveByName(ctx context.Context, driveID string, parentID *string, name string) (*models.Folder, error)
	Create(ctx context.Context, folder *models.Folder) error
}

type fileDuplicator interface {
	duplicate(ctx context.Context, src *models.File, driveID string, folderID *string, name string, public bool) (*models.File, error)
}

type treePurger interface {
	Purge(ctx context.Context, folderIDs, fileIDs []string) error
}

type driveByOwner interface {
	GetByOwner(ctx context.Context, ownerID string) (*models.Drive, error)
}

// CopyRequestServiceParams groups constructor dependencies.
type CopyRequestServiceParams struct {
	Requests   copyRequestStore
	Folders    copyFolderStore
	Files      fileGetter
	Duplicator fileDuplicator
	Walker     subtreeWalker
	Tree       treePurger
	Quota      quotaLedger
	Remover    contentRemoval
	Activity   activityRecorder
	Drives     driveResolver
	Owners     driveByOwner
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// CopyRequestService runs the cross-user copy workflow:
// PENDING -> APPROVED | DENIED, or removal on cancel.
type CopyRequestService struct {
	requests   copyRequestStore
	folders    copyFolderStore
	files      fileGetter
	duplicator fileDuplicator
	walker     subtreeWalker
	tree       treePurger
	quota      quotaLedger
	remover    contentRemoval
	activity   activityRecorder
	drives     driveResolver
	owners     driveByOwner
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewCopyRequestService constructs the workflow.
func NewCopyRequestService(params CopyRequestServiceParams) *CopyRequestService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &CopyRequestService{
		requests:   params.Requests,
		folders:    params.Folders,
		files:      params.Files,
		duplicator: params.Duplicator,
		walker:     params.Walker,
		tree:       params.Tree,
		quota:      params.Quota,
		remover:    params.Remover,
		activity:   params.Activity,
		drives:     params.Drives,
		owners:     params.Owners,
		metrics:    params.Metrics,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
	}
}

// copyTarget is the live source item of a request.
type copyTarget struct {
	folder *models.Folder
	file   *models.File
}

func (t copyTarget) name() string {
	if t.folder != nil {
		return t.folder.Name
	}
	return t.file.OriginalName
}

// Create files a PENDING request for one of the recipient's items.
func (s *CopyRequestService) Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateCopyRequest) (*models.CopyRequest, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.RecipientID == scope.userID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot request a copy of your own item")
	}
	recipientDrive, err := s.owners.GetByOwner(ctx, req.RecipientID)
	if err != nil {
		return nil, err
	}
	target, err := s.loadTarget(ctx, recipientDrive.ID, req.TargetType, req.TargetID)
	if err != nil {
		return nil, err
	}

	request := &models.CopyRequest{
		RequesterID:      scope.userID,
		RequesterDriveID: scope.drive.ID,
		RecipientID:      req.RecipientID,
		RecipientDriveID: recipientDrive.ID,
		TargetType:       req.TargetType,
		TargetID:         req.TargetID,
		Message:          req.Message,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Internal(err, "failed to create copy request")
	}
	s.metrics.RecordCopyRequestTransition("created")
	s.record(ctx, scope.drive.ID, scope.userID, models.ActivityRequest, req.TargetType, req.TargetID, target.name(), map[string]interface{}{
		"requestId":   request.ID,
		"recipientId": request.RecipientID,
	})
	return request, nil
}

// Process applies the recipient's decision.
func (s *CopyRequestService) Process(ctx context.Context, actor *models.JWTClaims, id string, req dto.ProcessCopyRequest) (*models.CopyRequestResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if req.Action == dto.CopyRequestApprove {
		return s.Approve(ctx, actor, id)
	}
	request, err := s.Deny(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return &models.CopyRequestResult{Request: request}, nil
}

// Approve copies the target into the requester's drive and marks the request
// APPROVED. The footprint is reserved on the requester's drive before any
// copy, and everything created is rolled back if a later step fails.
func (s *CopyRequestService) Approve(ctx context.Context, actor *models.JWTClaims, id string) (*models.CopyRequestResult, error) {
	request, err := s.pendingFor(ctx, actor, id, func(r *models.CopyRequest) string { return r.RecipientID })
	if err != nil {
		return nil, err
	}
	target, err := s.loadTarget(ctx, request.RecipientDriveID, request.TargetType, request.TargetID)
	if err != nil {
		return nil, err
	}

	var (
		footprint int64
		subtree   *Subtree
	)
	if target.folder != nil {
		full, err := s.walker.Subtree(ctx, target.folder)
		if err != nil {
			return nil, treeWriteErr(err, "failed to walk folder")
		}
		subtree = full.Live()
		footprint = subtree.Bytes()
	} else {
		footprint = target.file.FileSize
	}

	if err := s.quota.Reserve(ctx, request.RequesterDriveID, footprint); err != nil {
		return nil, err
	}
	copied := &copyLedger{}
	if target.folder != nil {
		err = s.copyFolderTree(ctx, request.RequesterDriveID, subtree, copied)
	} else {
		err = s.copyFile(ctx, request.RequesterDriveID, target.file, nil, target.file.OriginalName, copied)
	}
	if err == nil {
		err = s.transition(ctx, request, models.CopyRequestApproved)
	}
	if err != nil {
		s.compensate(ctx, request.RequesterDriveID, footprint, copied)
		return nil, err
	}

	s.metrics.RecordCopyRequestTransition("approved")
	for _, item := range copied.items {
		s.record(ctx, request.RequesterDriveID, request.RequesterID, models.ActivityImport, item.Type, item.ID, item.Name, map[string]interface{}{
			"requestId": request.ID,
			"sourceId":  request.TargetID,
		})
	}
	s.record(ctx, request.RecipientDriveID, request.RecipientID, models.ActivityApprove, request.TargetType, request.TargetID, target.name(), map[string]interface{}{
		"requestId":   request.ID,
		"requesterId": request.RequesterID,
		"bytes":       footprint,
	})
	return &models.CopyRequestResult{Request: request, Created: copied.items}, nil
}

// Deny marks a pending request DENIED without copying anything.
func (s *CopyRequestService) Deny(ctx context.Context, actor *models.JWTClaims, id string) (*models.CopyRequest, error) {
	request, err := s.pendingFor(ctx, actor, id, func(r *models.CopyRequest) string { return r.RecipientID })
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, request, models.CopyRequestDenied); err != nil {
		return nil, err
	}
	s.metrics.RecordCopyRequestTransition("denied")
	s.record(ctx, request.RecipientDriveID, request.RecipientID, models.ActivityDeny, request.TargetType, request.TargetID, "", map[string]interface{}{
		"requestId":   request.ID,
		"requesterId": request.RequesterID,
	})
	return request, nil
}

// Cancel withdraws a pending request. Only the requester may cancel.
func (s *CopyRequestService) Cancel(ctx context.Context, actor *models.JWTClaims, id string) error {
	request, err := s.pendingFor(ctx, actor, id, func(r *models.CopyRequest) string { return r.RequesterID })
	if err != nil {
		return err
	}
	ok, err := s.requests.DeletePending(ctx, request.ID)
	if err != nil {
		return appErrors.Internal(err, "failed to cancel copy request")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrAlreadyProcessed, "copy request was already processed")
	}
	s.metrics.RecordCopyRequestTransition("cancelled")
	s.record(ctx, request.RequesterDriveID, request.RequesterID, models.ActivityCancel, request.TargetType, request.TargetID, "", map[string]interface{}{
		"requestId": request.ID,
	})
	return nil
}

// List returns the caller's incoming or outgoing requests.
func (s *CopyRequestService) List(ctx context.Context, actor *models.JWTClaims, query dto.CopyRequestQuery) ([]models.CopyRequest, *models.Pagination, error) {
	if actor == nil || actor.UserID == "" {
		return nil, nil, appErrors.ErrUnauthorized
	}
	switch query.Status {
	case "", models.CopyRequestPending, models.CopyRequestApproved, models.CopyRequestDenied:
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", query.Status))
	}
	page, size, offset := pageWindow(query.Page, query.PageSize)
	filter := models.CopyRequestFilter{Status: query.Status, Limit: size, Offset: offset}
	switch query.Box {
	case "", dto.CopyRequestIncoming:
		filter.RecipientID = actor.UserID
	case dto.CopyRequestOutgoing:
		filter.RequesterID = actor.UserID
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "box must be incoming or outgoing")
	}
	requests, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list copy requests")
	}
	if requests == nil {
		requests = []models.CopyRequest{}
	}
	return requests, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a request visible to either party.
func (s *CopyRequestService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.CopyRequest, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.RequesterID != actor.UserID && request.RecipientID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "copy request belongs to other users")
	}
	return request, nil
}

func (s *CopyRequestService) load(ctx context.Context, id string) (*models.CopyRequest, error) {
	if !isUUID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "copy request not found")
	}
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "copy request not found")
		}
		return nil, appErrors.Internal(err, "failed to load copy request")
	}
	return request, nil
}

// pendingFor loads a request that must still be PENDING and whose party,
// as selected by who, is the caller.
func (s *CopyRequestService) pendingFor(ctx context.Context, actor *models.JWTClaims, id string, who func(*models.CopyRequest) string) (*models.CopyRequest, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if who(request) != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the other party may act on this request")
	}
	if request.Status != models.CopyRequestPending {
		return nil, appErrors.Clone(appErrors.ErrAlreadyProcessed, fmt.Sprintf("copy request is already %s", request.Status))
	}
	return request, nil
}

func (s *CopyRequestService) transition(ctx context.Context, request *models.CopyRequest, status models.CopyRequestStatus) error {
	processedAt := s.now().UTC()
	ok, err := s.requests.Transition(ctx, request.ID, status, processedAt)
	if err != nil {
		return appErrors.Internal(err, "failed to update copy request")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrAlreadyProcessed, "copy request was already processed")
	}
	request.Status = status
	request.ProcessedAt = &processedAt
	return nil
}

// loadTarget resolves a live item of driveID. Items that are missing, trashed
// or belong to another drive all read as not found.
func (s *CopyRequestService) loadTarget(ctx context.Context, driveID string, targetType models.TargetType, id string) (copyTarget, error) {
	switch targetType {
	case models.TargetFolder:
		folder, err := s.folders.GetByID(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return copyTarget{}, appErrors.Clone(appErrors.ErrNotFound, "folder not found")
			}
			return copyTarget{}, appErrors.Internal(err, "failed to load folder")
		}
		if folder.DriveID != driveID || folder.IsTrashed() {
			return copyTarget{}, appErrors.Clone(appErrors.ErrNotFound, "folder not found")
		}
		return copyTarget{folder: folder}, nil
	case models.TargetFile:
		file, err := loadFile(ctx, s.files, id)
		if err != nil {
			return copyTarget{}, err
		}
		if file.DriveID != driveID || file.IsTrashed() {
			return copyTarget{}, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return copyTarget{file: file}, nil
	default:
		return copyTarget{}, appErrors.Clone(appErrors.ErrValidation, "targetType must be file or folder")
	}
}

// copyLedger tracks what an approval has created so far.
type copyLedger struct {
	folderIDs []string
	fileIDs   []string
	keys      []string
	items     []models.CreatedItem
}

// copyFolderTree recreates the live subtree at the root of driveID, keeping
// its nesting. Only the new root is renamed to avoid a sibling clash.
func (s *CopyRequestService) copyFolderTree(ctx context.Context, driveID string, subtree *Subtree, copied *copyLedger) error {
	root, err := s.createCopyRoot(ctx, driveID, subtree.Root.Name)
	if err != nil {
		return err
	}
	copied.addFolder(root)

	mapped := map[string]*models.Folder{subtree.Root.ID: root}
	for _, src := range subtree.Folders {
		if src.ParentID == nil {
			return appErrors.Internal(ErrTreeCorrupted, "folder tree is corrupted")
		}
		parent, ok := mapped[*src.ParentID]
		if !ok {
			return appErrors.Internal(ErrTreeCorrupted, "folder tree is corrupted")
		}
		folder := &models.Folder{
			DriveID:  driveID,
			ParentID: &parent.ID,
			Name:     src.Name,
			Path:     ComputePath(parent.Path, src.Name),
		}
		if err := s.folders.Create(ctx, folder); err != nil {
			return treeWriteErr(err, "failed to copy folder")
		}
		copied.addFolder(folder)
		mapped[src.ID] = folder
	}

	for i := range subtree.Files {
		src := &subtree.Files[i]
		if src.FolderID == nil {
			return appErrors.Internal(ErrTreeCorrupted, "folder tree is corrupted")
		}
		parent, ok := mapped[*src.FolderID]
		if !ok {
			return appErrors.Internal(ErrTreeCorrupted, "folder tree is corrupted")
		}
		if err := s.copyFile(ctx, driveID, src, &parent.ID, src.OriginalName, copied); err != nil {
			return err
		}
	}
	return nil
}

// createCopyRoot creates a private root folder named after the source, adding
// " (copy)" or " (copy N)" when the name is taken.
func (s *CopyRequestService) createCopyRoot(ctx context.Context, driveID, name string) (*models.Folder, error) {
	for attempt := 0; attempt < maxCopyNameAttempts; attempt++ {
		candidate := copyFolderName(name, attempt)
		existing, err := s.folders.FindLiveByName(ctx, driveID, nil, candidate)
		if err == nil && existing != nil {
			continue
		}
		if err != nil && !repository.IsNotFound(err) {
			return nil, appErrors.Internal(err, "failed to check folder name")
		}
		folder := &models.Folder{DriveID: driveID, Name: candidate, Path: ComputePath("", candidate)}
		err = s.folders.Create(ctx, folder)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, appErrors.Internal(err, "failed to create folder copy")
		}
		return folder, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNamingConflict, fmt.Sprintf("no free name for a copy of %q", name))
}

func (s *CopyRequestService) copyFile(ctx context.Context, driveID string, src *models.File, folderID *string, name string, copied *copyLedger) error {
	dup, err := s.duplicator.duplicate(ctx, src, driveID, folderID, name, false)
	if err != nil {
		return err
	}
	copied.fileIDs = append(copied.fileIDs, dup.ID)
	copied.keys = append(copied.keys, dup.StorageKey)
	copied.items = append(copied.items, models.CreatedItem{ID: dup.ID, Type: models.TargetFile, Name: dup.OriginalName})
	return nil
}

// compensate removes whatever a failed approval created and returns the
// reservation to the requester's drive.
func (s *CopyRequestService) compensate(ctx context.Context, driveID string, reserved int64, copied *copyLedger) {
	if len(copied.folderIDs) > 0 || len(copied.fileIDs) > 0 {
		if err := s.tree.Purge(ctx, copied.folderIDs, copied.fileIDs); err != nil {
			s.logger.Error("failed to roll back copied items",
				zap.String("drive_id", driveID),
				zap.Strings("folder_ids", copied.folderIDs),
				zap.Strings("file_ids", copied.fileIDs),
				zap.Error(err),
			)
			// Rows survive, so their bytes must stay reserved.
			return
		}
	}
	s.remover.Remove(ctx, copied.keys...)
	releaseQuietly(ctx, s.quota, s.logger, driveID, reserved)
}

func (s *CopyRequestService) record(ctx context.Context, driveID, userID string, action models.ActivityAction, targetType models.TargetType, id, name string, meta map[string]interface{}) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, ActivityEntry{
		DriveID:    driveID,
		UserID:     userID,
		Action:     action,
		TargetType: targetType,
		TargetID:   id,
		TargetName: name,
		Metadata:   meta,
	})
}

func (l *copyLedger) addFolder(folder *models.Folder) {
	l.folderIDs = append(l.folderIDs, folder.ID)
	l.items = append(l.items, models.CreatedItem{ID: folder.ID, Type: models.TargetFolder, Name: folder.Name})
}

func copyFolderName(name string, attempt int) string {
	switch attempt {
	case 0:
		return name
	case 1:
		return name + " (copy)"
	default:
		return fmt.Sprintf("%s (copy %d)", name, attempt)
	}
}
