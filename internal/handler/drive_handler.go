package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/middleware"
	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/pkg/response"
)

type driveSummaryService interface {
	Summary(ctx context.Context, actor *models.JWTClaims) (*models.DriveSummary, bool, error)
}

type trashLister interface {
	ListTrash(ctx context.Context, actor *models.JWTClaims) (*dto.TrashListing, error)
	EmptyTrash(ctx context.Context, actor *models.JWTClaims) (*dto.EmptyTrashResult, error)
}

// DriveHandler serves the drive summary and the trash.
type DriveHandler struct {
	drives driveSummaryService
	trash  trashLister
}

// NewDriveHandler constructs the handler.
func NewDriveHandler(drives driveSummaryService, trash trashLister) *DriveHandler {
	return &DriveHandler{drives: drives, trash: trash}
}

// Summary godoc
// @Summary Drive usage summary
// @Description Returns quota usage and item counters, provisioning the drive on first access.
// @Tags Drive
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /drive [get]
func (h *DriveHandler) Summary(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	summary, cached, err := h.drives.Summary(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.MarkCached(c, cached)
	response.JSON(c, http.StatusOK, summary, nil, middleware.Meta(c))
}

// Trash godoc
// @Summary List trash
// @Tags Drive
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /drive/trash [get]
func (h *DriveHandler) Trash(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	listing, err := h.trash.ListTrash(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, listing, nil)
}

// EmptyTrash godoc
// @Summary Permanently delete everything in the trash
// @Tags Drive
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /drive/trash [delete]
func (h *DriveHandler) EmptyTrash(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	result, err := h.trash.EmptyTrash(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
