package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/pkg/response"
)

type copyRequestService interface {
	Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateCopyRequest) (*models.CopyRequest, error)
	Process(ctx context.Context, actor *models.JWTClaims, id string, req dto.ProcessCopyRequest) (*models.CopyRequestResult, error)
	Cancel(ctx context.Context, actor *models.JWTClaims, id string) error
	List(ctx context.Context, actor *models.JWTClaims, query dto.CopyRequestQuery) ([]models.CopyRequest, *models.Pagination, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.CopyRequest, error)
}

// CopyRequestHandler exposes the cross-user copy workflow.
type CopyRequestHandler struct {
	requests copyRequestService
}

// NewCopyRequestHandler constructs the handler.
func NewCopyRequestHandler(requests copyRequestService) *CopyRequestHandler {
	return &CopyRequestHandler{requests: requests}
}

// Create godoc
// @Summary Ask another user for a copy of one of their items
// @Tags CopyRequests
// @Accept json
// @Produce json
// @Param payload body dto.CreateCopyRequest true "Copy request"
// @Success 201 {object} response.Envelope
// @Router /copy-requests [post]
func (h *CopyRequestHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreateCopyRequest
	if !bindJSON(c, &req, "invalid copy request payload") {
		return
	}
	request, err := h.requests.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// List godoc
// @Summary List copy requests
// @Tags CopyRequests
// @Produce json
// @Param box query string false "incoming (default) or outgoing"
// @Param status query string false "PENDING, APPROVED or DENIED"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /copy-requests [get]
func (h *CopyRequestHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	requests, pagination, err := h.requests.List(c.Request.Context(), claims, dto.CopyRequestQuery{
		Box:      dto.CopyRequestBox(strings.ToLower(strings.TrimSpace(c.Query("box")))),
		Status:   models.CopyRequestStatus(strings.ToUpper(strings.TrimSpace(c.Query("status")))),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "pageSize"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, pagination)
}

// Get godoc
// @Summary Get copy request
// @Tags CopyRequests
// @Produce json
// @Param id path string true "Copy request ID"
// @Success 200 {object} response.Envelope
// @Router /copy-requests/{id} [get]
func (h *CopyRequestHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	request, err := h.requests.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// Process godoc
// @Summary Approve or deny a copy request
// @Tags CopyRequests
// @Accept json
// @Produce json
// @Param id path string true "Copy request ID"
// @Param payload body dto.ProcessCopyRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 507 {object} response.Envelope
// @Router /copy-requests/{id} [put]
func (h *CopyRequestHandler) Process(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.ProcessCopyRequest
	if !bindJSON(c, &req, "invalid decision payload") {
		return
	}
	result, err := h.requests.Process(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Cancel godoc
// @Summary Withdraw a pending copy request
// @Tags CopyRequests
// @Param id path string true "Copy request ID"
// @Success 204
// @Router /copy-requests/{id} [delete]
func (h *CopyRequestHandler) Cancel(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.requests.Cancel(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
