package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
)

type bulkFolderOps interface {
	moveFolder(ctx context.Context, scope *driveScope, id string, targetID *string, meta map[string]interface{}) (*models.Folder, error)
}

type bulkFileOps interface {
	moveFile(ctx context.Context, scope *driveScope, id string, targetID *string, meta map[string]interface{}) (*models.File, error)
	copyFile(ctx context.Context, scope *driveScope, id string, targetID *string, meta map[string]interface{}) (*models.File, error)
}

type bulkTrashOps interface {
	softDeleteFolder(ctx context.Context, scope *driveScope, id string, meta map[string]interface{}) error
	softDeleteFile(ctx context.Context, scope *driveScope, id string, meta map[string]interface{}) error
	restoreFolder(ctx context.Context, scope *driveScope, id string, meta map[string]interface{}) (*models.Folder, error)
	restoreFile(ctx context.Context, scope *driveScope, id string, meta map[string]interface{}) (*models.File, error)
}

// BulkServiceParams groups constructor dependencies.
type BulkServiceParams struct {
	Folders   bulkFolderOps
	Files     bulkFileOps
	Trash     bulkTrashOps
	Drives    driveResolver
	Metrics   *MetricsService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// BulkService applies one operation to many items, isolating per-item failures.
type BulkService struct {
	folders   bulkFolderOps
	files     bulkFileOps
	trash     bulkTrashOps
	drives    driveResolver
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBulkService constructs the executor.
func NewBulkService(params BulkServiceParams) *BulkService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &BulkService{
		folders:   params.Folders,
		files:     params.Files,
		trash:     params.Trash,
		drives:    params.Drives,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
	}
}

// Execute runs the operation on every item in order. A failing item is
// recorded and skipped; completed items are never rolled back.
func (s *BulkService) Execute(ctx context.Context, actor *models.JWTClaims, req dto.BulkRequest) (*dto.BulkResult, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	needsTarget := req.Operation == dto.BulkMove || (req.Operation == dto.BulkCopy && req.ItemType == models.TargetFile)
	if needsTarget && req.TargetFolderID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "targetFolderId is required for "+string(req.Operation))
	}

	result := &dto.BulkResult{Success: []string{}, Failed: []dto.BulkFailure{}}
	meta := map[string]interface{}{"bulk": true}
	for i, id := range req.ItemIDs {
		if ctxErr := ctx.Err(); ctxErr != nil {
			for _, rest := range req.ItemIDs[i:] {
				result.Failed = append(result.Failed, dto.BulkFailure{ID: rest, Error: appErrors.ErrInternal.Code, Message: "request cancelled"})
			}
			s.logger.Warn("bulk operation cancelled",
				zap.String("operation", string(req.Operation)),
				zap.Int("remaining", len(req.ItemIDs)-i),
				zap.Error(ctxErr),
			)
			break
		}
		if err := s.apply(ctx, scope, req, id, meta); err != nil {
			appErr := appErrors.FromError(err)
			if appErr.Status >= 500 {
				s.logger.Error("bulk item failed",
					zap.String("operation", string(req.Operation)),
					zap.String("item_id", id),
					zap.Error(err),
				)
			}
			result.Failed = append(result.Failed, dto.BulkFailure{ID: id, Error: appErr.Code, Message: appErr.Message})
			s.metrics.RecordBulkItem(string(req.Operation), "failed")
			continue
		}
		result.Success = append(result.Success, id)
		s.metrics.RecordBulkItem(string(req.Operation), "success")
	}
	return result, nil
}

func (s *BulkService) apply(ctx context.Context, scope *driveScope, req dto.BulkRequest, id string, meta map[string]interface{}) error {
	folder := req.ItemType == models.TargetFolder
	var err error
	switch req.Operation {
	case dto.BulkDelete:
		if folder {
			return s.trash.softDeleteFolder(ctx, scope, id, meta)
		}
		return s.trash.softDeleteFile(ctx, scope, id, meta)
	case dto.BulkRestore:
		if folder {
			_, err = s.trash.restoreFolder(ctx, scope, id, meta)
		} else {
			_, err = s.trash.restoreFile(ctx, scope, id, meta)
		}
	case dto.BulkMove:
		if folder {
			_, err = s.folders.moveFolder(ctx, scope, id, req.TargetFolderID, meta)
		} else {
			_, err = s.files.moveFile(ctx, scope, id, req.TargetFolderID, meta)
		}
	case dto.BulkCopy:
		if folder {
			return appErrors.Clone(appErrors.ErrUnsupportedOperation, "folders cannot be copied in bulk; use a copy request")
		}
		_, err = s.files.copyFile(ctx, scope, id, req.TargetFolderID, meta)
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown bulk operation")
	}
	return err
}
