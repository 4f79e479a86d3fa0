package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/internal/repository"
	"github.com/noah-isme/sma-drive-api/pkg/bandwidth"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
	"github.com/noah-isme/sma-drive-api/pkg/storage"
)

const defaultMaxUploadSize = int64(100 << 20)

type fileStore interface {
	GetByID(ctx context.Context, id string) (*models.File, error)
	List(ctx context.Context, filter models.FileFilter) ([]models.File, int, error)
	Create(ctx context.Context, file *models.File) error
	Update(ctx context.Context, id string, update models.FileUpdate) error
	Move(ctx context.Context, id string, folderID *string) error
	IncrementCounters(ctx context.Context, id string, downloads, views int) error
	SetThumbnail(ctx context.Context, id, path string) error
}

type driveGetter interface {
	GetByID(ctx context.Context, id string) (*models.Drive, error)
}

type linkSigner interface {
	Generate(fileID, issuedBy string) (string, time.Time, error)
	Parse(token string) (*storage.LinkClaims, error)
}

// ThumbnailGenerator renders a preview for a file and returns the content key
// it was stored under.
type ThumbnailGenerator interface {
	Generate(ctx context.Context, file *models.File) (string, error)
}

// FileUpload carries upload metadata and the stream reader.
type FileUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// FileDownload bundles an open content stream with its metadata. Size is -1
// when unknown.
type FileDownload struct {
	Content  io.ReadCloser
	Filename string
	MimeType string
	Size     int64
	Inline   bool
}

// FileServiceConfig holds upload limits and link settings.
type FileServiceConfig struct {
	MaxUploadSize int64
	LinkBaseURL   string
}

// FileServiceParams groups constructor dependencies.
type FileServiceParams struct {
	Files      fileStore
	Folders    folderGetter
	Drives     driveResolver
	Owners     driveGetter
	Content    storage.ContentStore
	Quota      quotaLedger
	Remover    contentRemoval
	Signer     linkSigner
	Thumbnails ThumbnailGenerator
	Bandwidth  bandwidth.Limiter
	Activity   activityRecorder
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
	Config     FileServiceConfig
}

// FileService manages uploads, metadata, downloads and file copies.
type FileService struct {
	files      fileStore
	folders    folderGetter
	drives     driveResolver
	owners     driveGetter
	content    storage.ContentStore
	quota      quotaLedger
	remover    contentRemoval
	signer     linkSigner
	thumbnails ThumbnailGenerator
	bandwidth  bandwidth.Limiter
	activity   activityRecorder
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        FileServiceConfig
}

// NewFileService constructs the service.
func NewFileService(params FileServiceParams) *FileService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	limiter := params.Bandwidth
	if limiter == nil {
		limiter = bandwidth.Unlimited{}
	}
	cfg := params.Config
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = defaultMaxUploadSize
	}
	return &FileService{
		files:      params.Files,
		folders:    params.Folders,
		drives:     params.Drives,
		owners:     params.Owners,
		content:    params.Content,
		quota:      params.Quota,
		remover:    params.Remover,
		signer:     params.Signer,
		thumbnails: params.Thumbnails,
		bandwidth:  limiter,
		activity:   params.Activity,
		metrics:    params.Metrics,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// Upload stores new content and catalogs it after reserving its bytes.
func (s *FileService) Upload(ctx context.Context, actor *models.JWTClaims, req dto.UploadFileRequest, upload FileUpload) (*models.File, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxUploadSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the maximum size of %d bytes", s.cfg.MaxUploadSize))
	}
	name, err := normalizeName(filepath.Base(upload.Filename))
	if err != nil {
		return nil, err
	}
	if _, err := loadTargetFolder(ctx, s.folders, scope.drive.ID, req.FolderID); err != nil {
		return nil, err
	}

	mimeType, err := detectMime(upload, name)
	if err != nil {
		return nil, err
	}
	hash, size, err := hashContent(upload.Content)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	if size > s.cfg.MaxUploadSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the maximum size of %d bytes", s.cfg.MaxUploadSize))
	}

	if err := s.quota.Reserve(ctx, scope.drive.ID, size); err != nil {
		return nil, err
	}
	key := storage.NewKey(scope.drive.ID)
	if err := s.content.Put(ctx, key, upload.Content, size, mimeType); err != nil {
		releaseQuietly(ctx, s.quota, s.logger, scope.drive.ID, size)
		return nil, appErrors.Wrap(err, appErrors.ErrInternalStorage.Code, appErrors.ErrInternalStorage.Status, "failed to store file content")
	}

	file := &models.File{
		DriveID:      scope.drive.ID,
		FolderID:     req.FolderID,
		OriginalName: name,
		StorageKey:   key,
		FileSize:     size,
		MimeType:     mimeType,
		Category:     models.CategoryForMime(mimeType),
		ContentHash:  hash,
		IsPublic:     req.IsPublic,
	}
	if err := s.files.Create(ctx, file); err != nil {
		s.remover.Remove(ctx, key)
		releaseQuietly(ctx, s.quota, s.logger, scope.drive.ID, size)
		if errors.Is(err, repository.ErrStaleTree) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target folder is no longer available")
		}
		return nil, appErrors.Internal(err, "failed to save file metadata")
	}
	s.metrics.AddContentBytes("upload", size)
	s.record(ctx, scope, models.ActivityUpload, file, map[string]interface{}{"size": size, "mimeType": mimeType})
	return file, nil
}

// List returns live files of a folder, or of the drive root when no folder is given.
func (s *FileService) List(ctx context.Context, actor *models.JWTClaims, query dto.FileQuery) ([]models.File, *models.Pagination, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, nil, err
	}
	if _, err := loadTargetFolder(ctx, s.folders, scope.drive.ID, query.FolderID); err != nil {
		return nil, nil, err
	}
	page, size, offset := pageWindow(query.Page, query.PageSize)
	files, total, err := s.files.List(ctx, models.FileFilter{
		DriveID:  scope.drive.ID,
		FolderID: query.FolderID,
		RootOnly: query.FolderID == nil,
		Category: query.Category,
		Limit:    size,
		Offset:   offset,
	})
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list files")
	}
	if files == nil {
		files = []models.File{}
	}
	return files, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns file metadata visible to the caller.
func (s *FileService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.File, error) {
	file, _, err := s.accessible(ctx, actor, id)
	return file, err
}

// Update renames a file and/or toggles its visibility.
func (s *FileService) Update(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateFileRequest) (*models.File, error) {
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
	file, err := s.loadLive(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	update := models.FileUpdate{IsPublic: req.IsPublic}
	meta := map[string]interface{}{}
	action := models.ActivityUpdate
	if req.Name != nil {
		name, err := normalizeName(*req.Name)
		if err != nil {
			return nil, err
		}
		if name != file.OriginalName {
			update.OriginalName = &name
			meta["from"] = file.OriginalName
			meta["to"] = name
			action = models.ActivityRename
		}
	}
	if req.IsPublic != nil {
		meta["isPublic"] = *req.IsPublic
	}
	if err := s.files.Update(ctx, file.ID, update); err != nil {
		return nil, appErrors.Internal(err, "failed to update file")
	}
	if update.OriginalName != nil {
		file.OriginalName = *update.OriginalName
	}
	if update.IsPublic != nil {
		file.IsPublic = *update.IsPublic
	}
	s.record(ctx, scope, action, file, meta)
	return file, nil
}

// Move places a file in another live folder, or at the drive root when nil.
func (s *FileService) Move(ctx context.Context, actor *models.JWTClaims, id string, req dto.MoveRequest) (*models.File, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return s.moveFile(ctx, scope, id, req.TargetFolderID, nil)
}

func (s *FileService) moveFile(ctx context.Context, scope *driveScope, id string, targetID *string, meta map[string]interface{}) (*models.File, error) {
	file, err := s.loadLive(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if _, err := loadTargetFolder(ctx, s.folders, scope.drive.ID, targetID); err != nil {
		return nil, err
	}
	if sameParent(file.FolderID, targetID) {
		return file, nil
	}
	if err := s.files.Move(ctx, file.ID, targetID); err != nil {
		if errors.Is(err, repository.ErrStaleTree) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target folder is no longer available")
		}
		return nil, appErrors.Internal(err, "failed to move file")
	}
	meta = withMeta(meta, "fromFolderId", file.FolderID)
	meta["toFolderId"] = targetID
	file.FolderID = targetID
	s.record(ctx, scope, models.ActivityMove, file, meta)
	return file, nil
}

// copyFile duplicates a live file into targetID within the same drive,
// reserving its bytes first.
func (s *FileService) copyFile(ctx context.Context, scope *driveScope, id string, targetID *string, meta map[string]interface{}) (*models.File, error) {
	src, err := s.loadLive(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if _, err := loadTargetFolder(ctx, s.folders, scope.drive.ID, targetID); err != nil {
		return nil, err
	}
	if err := s.quota.Reserve(ctx, scope.drive.ID, src.FileSize); err != nil {
		return nil, err
	}
	dup, err := s.duplicate(ctx, src, scope.drive.ID, targetID, copyName(src.OriginalName), src.IsPublic)
	if err != nil {
		releaseQuietly(ctx, s.quota, s.logger, scope.drive.ID, src.FileSize)
		return nil, err
	}
	s.record(ctx, scope, models.ActivityCopy, dup, withMeta(meta, "sourceId", src.ID))
	return dup, nil
}

// duplicate copies src's content to a fresh key and catalogs the copy. The
// caller owns the quota reservation.
func (s *FileService) duplicate(ctx context.Context, src *models.File, driveID string, folderID *string, name string, public bool) (*models.File, error) {
	key := storage.NewKey(driveID)
	if err := s.content.Copy(ctx, src.StorageKey, key); err != nil {
		if errors.Is(err, storage.ErrContentNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "source content is missing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternalStorage.Code, appErrors.ErrInternalStorage.Status, "failed to copy file content")
	}
	dup := &models.File{
		DriveID:      driveID,
		FolderID:     folderID,
		OriginalName: name,
		StorageKey:   key,
		FileSize:     src.FileSize,
		MimeType:     src.MimeType,
		Category:     src.Category,
		ContentHash:  src.ContentHash,
		IsPublic:     public,
	}
	if err := s.files.Create(ctx, dup); err != nil {
		s.remover.Remove(ctx, key)
		if errors.Is(err, repository.ErrStaleTree) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "target folder is no longer available")
		}
		return nil, appErrors.Internal(err, "failed to save copied file")
	}
	s.metrics.AddContentBytes("copy", src.FileSize)
	return dup, nil
}

// Download opens the file for the caller. Non-owners may only fetch live
// public files and are charged against the owner's bandwidth.
func (s *FileService) Download(ctx context.Context, actor *models.JWTClaims, id string) (*FileDownload, error) {
	file, owner, err := s.accessible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !owner {
		if err := s.consumeBandwidth(ctx, file, file.FileSize); err != nil {
			return nil, err
		}
	}
	return s.serve(ctx, file, file.StorageKey, file.FileSize, false, 1, 0)
}

// CreateLink issues a signed, expiring download link for a live file the caller can see.
func (s *FileService) CreateLink(ctx context.Context, actor *models.JWTClaims, id string) (*dto.FileLinkResponse, error) {
	file, _, err := s.accessible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if file.IsTrashed() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file is in trash")
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download links are not configured")
	}
	token, expiresAt, err := s.signer.Generate(file.ID, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign download link")
	}
	return &dto.FileLinkResponse{FileID: file.ID, URL: s.cfg.LinkBaseURL + token, ExpiresAt: expiresAt}, nil
}

// DownloadByLink serves a file through a signed link. The issuer must still
// be entitled to the file; link downloads always count against bandwidth.
func (s *FileService) DownloadByLink(ctx context.Context, token string) (*FileDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "download links are not configured")
	}
	claims, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrLinkExpired) {
			return nil, appErrors.Clone(appErrors.ErrAccessDenied, "download link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "invalid download link")
	}
	file, err := loadFile(ctx, s.files, claims.FileID)
	if err != nil {
		return nil, err
	}
	if file.IsTrashed() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	if !file.IsPublic {
		drive, err := s.ownerDrive(ctx, file)
		if err != nil {
			return nil, err
		}
		if drive.OwnerID != claims.IssuedBy {
			return nil, appErrors.Clone(appErrors.ErrAccessDenied, "download link is no longer valid")
		}
	}
	if err := s.consumeBandwidth(ctx, file, file.FileSize); err != nil {
		return nil, err
	}
	return s.serve(ctx, file, file.StorageKey, file.FileSize, false, 1, 0)
}

// Preview streams the cached thumbnail, generating it on first use, or the
// original content inline when no thumbnail can be produced.
func (s *FileService) Preview(ctx context.Context, actor *models.JWTClaims, id string) (*FileDownload, error) {
	file, owner, err := s.accessible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if file.ThumbnailPath == nil && s.thumbnails != nil {
		key, err := s.thumbnails.Generate(ctx, file)
		switch {
		case err != nil:
			s.logger.Warn("thumbnail generation failed", zap.String("file_id", file.ID), zap.Error(err))
		case key != "":
			if err := s.files.SetThumbnail(ctx, file.ID, key); err != nil {
				s.logger.Warn("failed to cache thumbnail", zap.String("file_id", file.ID), zap.Error(err))
			}
			file.ThumbnailPath = &key
		}
	}
	if file.ThumbnailPath != nil {
		download, err := s.serve(ctx, file, *file.ThumbnailPath, -1, true, 0, 1)
		if err == nil {
			return download, nil
		}
		s.logger.Warn("thumbnail unavailable, serving original", zap.String("file_id", file.ID), zap.Error(err))
	}
	if !owner {
		if err := s.consumeBandwidth(ctx, file, file.FileSize); err != nil {
			return nil, err
		}
	}
	return s.serve(ctx, file, file.StorageKey, file.FileSize, true, 0, 1)
}

// accessible loads a file and reports whether the caller owns it. Others see
// only live public files.
func (s *FileService) accessible(ctx context.Context, actor *models.JWTClaims, id string) (*models.File, bool, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, false, err
	}
	file, err := loadFile(ctx, s.files, id)
	if err != nil {
		return nil, false, err
	}
	if file.DriveID == scope.drive.ID {
		return file, true, nil
	}
	if file.IsTrashed() {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	if !file.IsPublic {
		return nil, false, appErrors.Clone(appErrors.ErrAccessDenied, "file is private")
	}
	return file, false, nil
}

func (s *FileService) loadLive(ctx context.Context, scope *driveScope, id string) (*models.File, error) {
	file, err := loadOwnedFile(ctx, s.files, scope.drive.ID, id)
	if err != nil {
		return nil, err
	}
	if file.IsTrashed() {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file is in trash")
	}
	return file, nil
}

func (s *FileService) ownerDrive(ctx context.Context, file *models.File) (*models.Drive, error) {
	drive, err := s.owners.GetByID(ctx, file.DriveID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "drive not found")
		}
		return nil, appErrors.Internal(err, "failed to load drive")
	}
	return drive, nil
}

// consumeBandwidth charges bytes to the owner of file. Limiter outages fail open.
func (s *FileService) consumeBandwidth(ctx context.Context, file *models.File, bytes int64) error {
	drive, err := s.ownerDrive(ctx, file)
	if err != nil {
		return err
	}
	decision, err := s.bandwidth.CheckAndConsume(ctx, drive.OwnerID, bytes)
	if err != nil {
		s.logger.Warn("bandwidth check failed, allowing download", zap.String("owner_id", drive.OwnerID), zap.Error(err))
		return nil
	}
	if decision.Allowed {
		return nil
	}
	s.metrics.RecordBandwidthDenied()
	details := map[string]interface{}{}
	if !decision.ResetTime.IsZero() {
		details["resetTime"] = decision.ResetTime.UTC().Format(time.RFC3339)
	}
	return appErrors.WithDetails(appErrors.ErrRateLimited, details)
}

func (s *FileService) serve(ctx context.Context, file *models.File, key string, size int64, inline bool, downloads, views int) (*FileDownload, error) {
	reader, err := s.content.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrContentNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file content is missing")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternalStorage.Code, appErrors.ErrInternalStorage.Status, "failed to open file content")
	}
	if err := s.files.IncrementCounters(ctx, file.ID, downloads, views); err != nil {
		s.logger.Warn("failed to update file counters", zap.String("file_id", file.ID), zap.Error(err))
	}
	direction := "download"
	if inline {
		direction = "preview"
	}
	s.metrics.AddContentBytes(direction, size)

	mimeType := file.MimeType
	if key != file.StorageKey {
		mimeType = "image/jpeg"
	}
	return &FileDownload{Content: reader, Filename: file.OriginalName, MimeType: mimeType, Size: size, Inline: inline}, nil
}

func (s *FileService) record(ctx context.Context, scope *driveScope, action models.ActivityAction, file *models.File, meta map[string]interface{}) {
	if s.activity == nil {
		return
	}
	s.activity.Record(ctx, ActivityEntry{
		DriveID:    scope.drive.ID,
		UserID:     scope.userID,
		Action:     action,
		TargetType: models.TargetFile,
		TargetID:   file.ID,
		TargetName: file.OriginalName,
		Metadata:   meta,
	})
}

// detectMime sniffs the first bytes of the upload, falling back to the
// declared type and then the extension when sniffing is inconclusive.
func detectMime(upload FileUpload, name string) (string, error) {
	header := make([]byte, 512)
	n, err := io.ReadFull(upload.Content, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", appErrors.Internal(err, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Internal(err, "failed to reset upload stream")
	}
	sniffed := http.DetectContentType(header[:n])
	generic := sniffed == "application/octet-stream" || strings.HasPrefix(sniffed, "text/plain")
	if !generic {
		return sniffed, nil
	}
	if declared := strings.TrimSpace(upload.MimeType); declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		return byExt, nil
	}
	return sniffed, nil
}

// hashContent returns the SHA-256 of the stream and its length, rewinding it afterwards.
func hashContent(content io.ReadSeeker) (string, int64, error) {
	hasher := sha256.New()
	n, err := io.Copy(hasher, content)
	if err != nil {
		return "", 0, appErrors.Internal(err, "failed to read upload")
	}
	if _, err := content.Seek(0, io.SeekStart); err != nil {
		return "", 0, appErrors.Internal(err, "failed to reset upload stream")
	}
	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

// copyName suffixes the base name: "notes.pdf" becomes "notes (copy).pdf".
func copyName(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		return name + " (copy)"
	}
	return base + " (copy)" + ext
}
