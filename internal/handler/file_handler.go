package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/internal/service"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
	"github.com/noah-isme/sma-drive-api/pkg/response"
)

type fileService interface {
	Upload(ctx context.Context, actor *models.JWTClaims, req dto.UploadFileRequest, upload service.FileUpload) (*models.File, error)
	List(ctx context.Context, actor *models.JWTClaims, query dto.FileQuery) ([]models.File, *models.Pagination, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.File, error)
	Update(ctx context.Context, actor *models.JWTClaims, id string, req dto.UpdateFileRequest) (*models.File, error)
	Move(ctx context.Context, actor *models.JWTClaims, id string, req dto.MoveRequest) (*models.File, error)
	Download(ctx context.Context, actor *models.JWTClaims, id string) (*service.FileDownload, error)
	CreateLink(ctx context.Context, actor *models.JWTClaims, id string) (*dto.FileLinkResponse, error)
	DownloadByLink(ctx context.Context, token string) (*service.FileDownload, error)
	Preview(ctx context.Context, actor *models.JWTClaims, id string) (*service.FileDownload, error)
}

type fileTrash interface {
	SoftDeleteFile(ctx context.Context, actor *models.JWTClaims, id string) error
	RestoreFile(ctx context.Context, actor *models.JWTClaims, id string) (*models.File, error)
	PurgeFile(ctx context.Context, actor *models.JWTClaims, id string) error
}

// FileHandler exposes file endpoints, including the public signed-link download.
type FileHandler struct {
	files fileService
	trash fileTrash
}

// NewFileHandler constructs the handler.
func NewFileHandler(files fileService, trash fileTrash) *FileHandler {
	return &FileHandler{files: files, trash: trash}
}

// Upload godoc
// @Summary Upload file
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param folderId formData string false "Target folder; omitted for the root"
// @Param isPublic formData bool false "Share publicly"
// @Param file formData file true "Content"
// @Success 201 {object} response.Envelope
// @Failure 507 {object} response.Envelope
// @Router /files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.UploadFileRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid upload payload"))
		return
	}
	if req.FolderID != nil && strings.TrimSpace(*req.FolderID) == "" {
		req.FolderID = nil
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to open file"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Internal(readErr, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}
	file, err := h.files.Upload(c.Request.Context(), claims, req, service.FileUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  reader,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, file)
}

// List godoc
// @Summary List files
// @Tags Files
// @Produce json
// @Param folderId query string false "Folder ID; omitted lists the root"
// @Param category query string false "Category filter"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /files [get]
func (h *FileHandler) List(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	files, pagination, err := h.files.List(c.Request.Context(), claims, dto.FileQuery{
		FolderID: optionalQuery(c, "folderId"),
		Category: strings.TrimSpace(c.Query("category")),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "pageSize"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, files, pagination)
}

// Get godoc
// @Summary Get file metadata
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id} [get]
func (h *FileHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	file, err := h.files.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Update godoc
// @Summary Rename file or change visibility
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.UpdateFileRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Router /files/{id} [patch]
func (h *FileHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.UpdateFileRequest
	if !bindJSON(c, &req, "invalid file payload") {
		return
	}
	file, err := h.files.Update(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Move godoc
// @Summary Move file
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "File ID"
// @Param payload body dto.MoveRequest true "Target folder; null moves to the root"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/move [post]
func (h *FileHandler) Move(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.MoveRequest
	if !bindJSON(c, &req, "invalid move payload") {
		return
	}
	file, err := h.files.Move(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Delete godoc
// @Summary Move file to trash
// @Tags Files
// @Param id path string true "File ID"
// @Success 204
// @Router /files/{id} [delete]
func (h *FileHandler) Delete(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.trash.SoftDeleteFile(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Restore godoc
// @Summary Restore file from trash
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/restore [post]
func (h *FileHandler) Restore(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	file, err := h.trash.RestoreFile(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Purge godoc
// @Summary Permanently delete a trashed file
// @Tags Files
// @Param id path string true "File ID"
// @Success 204
// @Router /files/{id}/permanent [delete]
func (h *FileHandler) Purge(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	if err := h.trash.PurgeFile(c.Request.Context(), claims, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download godoc
// @Summary Download file content
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Success 200 {file} binary
// @Failure 429 {object} response.Envelope
// @Router /files/{id}/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	download, err := h.files.Download(c.Request.Context(), claims, c.Param("id"))
	h.stream(c, download, err)
}

// Link godoc
// @Summary Create a signed download link
// @Tags Files
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} response.Envelope
// @Router /files/{id}/link [get]
func (h *FileHandler) Link(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	link, err := h.files.CreateLink(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Preview godoc
// @Summary Preview file inline, using its thumbnail when available
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Success 200 {file} binary
// @Router /files/{id}/preview [get]
func (h *FileHandler) Preview(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	download, err := h.files.Preview(c.Request.Context(), claims, c.Param("id"))
	h.stream(c, download, err)
}

// LinkDownload godoc
// @Summary Download through a signed link
// @Tags Links
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /links/{token} [get]
func (h *FileHandler) LinkDownload(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.files.DownloadByLink(c.Request.Context(), token)
	h.stream(c, download, err)
}

func (h *FileHandler) stream(c *gin.Context, download *service.FileDownload, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.Content.Close() //nolint:errcheck
	response.Stream(c, download.Content, download.Filename, download.MimeType, download.Size, download.Inline)
}
