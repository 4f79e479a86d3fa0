package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/pkg/response"
)

type bulkExecutor interface {
	Execute(ctx context.Context, actor *models.JWTClaims, req dto.BulkRequest) (*dto.BulkResult, error)
}

// BulkHandler runs one operation over many items.
type BulkHandler struct {
	bulk bulkExecutor
}

// NewBulkHandler constructs the handler.
func NewBulkHandler(bulk bulkExecutor) *BulkHandler {
	return &BulkHandler{bulk: bulk}
}

// Execute godoc
// @Summary Bulk delete, move, copy or restore
// @Description Items are processed independently; a failing item does not stop the rest.
// @Tags Bulk
// @Accept json
// @Produce json
// @Param payload body dto.BulkRequest true "Bulk request"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /bulk [post]
func (h *BulkHandler) Execute(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.BulkRequest
	if !bindJSON(c, &req, "invalid bulk payload") {
		return
	}
	result, err := h.bulk.Execute(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BulkResponse{Results: *result}, nil)
}
