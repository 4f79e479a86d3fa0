package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/pkg/response"
)

type folderService interface {
	Create(ctx context.Context, actor *models.JWTClaims, req dto.CreateFolderRequest) (*models.Folder, error)
	List(ctx context.Context, actor *models.JWTClaims, parentID *string) (*models.FolderContents, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.FolderContents, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateFolderRequest) (*models.Folder, error)
	Move(ctx context.Context, actor *models.JWTClaims, id string, req dto.MoveRequest) (*models.Folder, error)
}

type folderTrash interface {
	SoftDeleteFolder(ctx context.Context, actor *models.JWTClaims, id string) error
	RestoreFolder(ctx context.Context, actor *models.JWTClaims, id string) (*models.Folder, error)
	PurgeFolder(ctx context.Context, actor *models.JWTClaims, id string) error
}

// FolderHandler exposes folder endpoints.
type FolderHandler struct {
	folders folderService
	trash   folderTrash
}

// NewFolderHandler constructs the handler.
func NewFolderHandler(folders folderService, trash folderTrash) *FolderHandler {
	return &FolderHandler{folders: folders, trash: trash}
}

// List godoc
// @Summary List folder contents
// @Description Lists the live children of parentId, or of the drive root when omitted.
// @Tags Folders
// @Produce json
// @Param parentId query string false "Parent folder ID"
// @Success 200 {object} response.Envelope
// @Router /folders [get]
func (h *FolderHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	contents, err := h.folders.List(c.Request.Context(), claims, optionalQuery(c, "parentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contents, nil)
}

// Create godoc
// @Summary Create folder
// @Tags Folders
// @Accept json
// @Produce json
// @Param payload body dto.CreateFolderRequest true "Folder payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /folders [post]
func (h *FolderHandler) Create(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.CreateFolderRequest
	if !bindJSON(c, &req, "invalid folder payload") {
		return
	}
	folder, err := h.folders.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, folder)
}

// Get godoc
// @Summary Get folder with its children
// @Tags Folders
// @Produce json
// @Param id path string true "Folder ID"
// @Success 200 {object} response.Envelope
// @Router /folders/{id} [get]
func (h *FolderHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	contents, err := h.folders.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contents, nil)
}

// Update godoc
// @Summary Rename folder or change visibility
// @Tags Folders
// @Accept json
// @Produce json
// @Param id path string true "Folder ID"
// @Param payload body dto.UpdateFolderRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /folders/{id} [patch]
func (h *FolderHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.UpdateFolderRequest
	if !bindJSON(c, &req, "invalid folder payload") {
		return
	}
	folder, err := h.folders.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, folder, nil)
}

// Move godoc
// @Summary Move folder
// @Tags Folders
// @Accept json
// @Produce json
// @Param id path string true "Folder ID"
// @Param payload body dto.MoveRequest true "Target folder; null moves to the root"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /folders/{id}/move [post]
func (h *FolderHandler) Move(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.MoveRequest
	if !bindJSON(c, &req, "invalid move payload") {
		return
	}
	folder, err := h.folders.Move(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, folder, nil)
}

// Delete godoc
// @Summary Move folder to trash
// @Tags Folders
// @Param id path string true "Folder ID"
// @Success 204
// @Router /folders/{id} [delete]
func (h *FolderHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.trash.SoftDeleteFolder(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Restore godoc
// @Summary Restore folder from trash
// @Tags Folders
// @Produce json
// @Param id path string true "Folder ID"
// @Success 200 {object} response.Envelope
// @Router /folders/{id}/restore [post]
func (h *FolderHandler) Restore(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	folder, err := h.trash.RestoreFolder(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, folder, nil)
}

// Purge godoc
// @Summary Permanently delete a trashed folder
// @Tags Folders
// @Param id path string true "Folder ID"
// @Success 204
// @Router /folders/{id}/permanent [delete]
func (h *FolderHandler) Purge(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.trash.PurgeFolder(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
