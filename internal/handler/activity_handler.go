package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
	"github.com/noah-isme/sma-drive-api/pkg/response"
)

type activityService interface {
	List(ctx context.Context, actor *models.JWTClaims, query dto.ActivityQuery) ([]models.Activity, *models.Pagination, error)
	Export(ctx context.Context, actor *models.JWTClaims, query dto.ActivityQuery, format string) (*dto.ExportFile, error)
}

// ActivityHandler serves the drive's activity log.
type ActivityHandler struct {
	activities activityService
}

// NewActivityHandler constructs the handler.
func NewActivityHandler(activities activityService) *ActivityHandler {
	return &ActivityHandler{activities: activities}
}

// List godoc
// @Summary List drive activity
// @Tags Activity
// @Produce json
// @Param action query string false "Action filter"
// @Param targetType query string false "file or folder"
// @Param since query string false "RFC3339 lower bound"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /activities [get]
func (h *ActivityHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	query, err := activityQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	activities, pagination, err := h.activities.List(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, activities, pagination)
}

// Export godoc
// @Summary Export drive activity
// @Tags Activity
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} binary
// @Router /activities/export [get]
func (h *ActivityHandler) Export(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	query, err := activityQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format := strings.TrimSpace(c.DefaultQuery("format", "csv"))
	file, err := h.activities.Export(c.Request.Context(), claims, query, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Payload)
}

func activityQuery(c *gin.Context) (dto.ActivityQuery, error) {
	query := dto.ActivityQuery{
		Action:     models.ActivityAction(strings.ToLower(strings.TrimSpace(c.Query("action")))),
		TargetType: models.TargetType(strings.ToLower(strings.TrimSpace(c.Query("targetType")))),
		Page:       queryInt(c, "page"),
		PageSize:   queryInt(c, "pageSize"),
	}
	if raw := strings.TrimSpace(c.Query("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, appErrors.Clone(appErrors.ErrValidation, "since must be an RFC3339 timestamp")
		}
		query.Since = &since
	}
	return query, nil
}
