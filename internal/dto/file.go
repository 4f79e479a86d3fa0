package dto

import (
	"time"

	"github.com/noah-isme/sma-drive-api/internal/models"
)

// UploadFileRequest holds the form fields sent with a multipart upload.
type UploadFileRequest struct {
	FolderID *string `form:"folderId" json:"folderId" validate:"omitempty,uuid"`
	IsPublic bool    `form:"isPublic" json:"isPublic"`
}

// UpdateFileRequest renames a file and/or toggles its visibility.
type UpdateFileRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=255"`
	IsPublic *bool   `json:"isPublic"`
}

// FileQuery captures list filters.
type FileQuery struct {
	FolderID *string
	Category string
	Page     int
	PageSize int
}

// FileLinkResponse carries a signed, expiring download link.
type FileLinkResponse struct {
	FileID    string    `json:"fileId"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TrashedFolder is a trashed top-level folder with the bytes it still holds.
type TrashedFolder struct {
	models.Folder
	FileCount int   `json:"fileCount"`
	Bytes     int64 `json:"bytes"`
}

// TrashedFile is a trashed file shown at the top level of the trash.
type TrashedFile struct {
	models.File
}
