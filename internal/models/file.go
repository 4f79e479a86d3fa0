package models

import (
	"strings"
	"time"
)

// File is a catalog row referencing content in the content store.
type File struct {
	ID            string     `db:"id" json:"id"`
	DriveID       string     `db:"drive_id" json:"driveId"`
	FolderID      *string    `db:"folder_id" json:"folderId,omitempty"`
	OriginalName  string     `db:"original_name" json:"originalName"`
	StorageKey    string     `db:"storage_key" json:"-"`
	FileSize      int64      `db:"file_size" json:"fileSize"`
	MimeType      string     `db:"mime_type" json:"mimeType"`
	Category      string     `db:"category" json:"category"`
	ContentHash   string     `db:"content_hash" json:"contentHash"`
	IsPublic      bool       `db:"is_public" json:"isPublic"`
	ThumbnailPath *string    `db:"thumbnail_path" json:"thumbnailPath,omitempty"`
	DeletedAt     *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	DownloadCount int64      `db:"download_count" json:"downloadCount"`
	ViewCount     int64      `db:"view_count" json:"viewCount"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsTrashed reports whether the file is soft-deleted.
func (f *File) IsTrashed() bool {
	return f.DeletedAt != nil
}

// File categories derived from the MIME type.
const (
	FileCategoryDocument = "document"
	FileCategoryImage    = "image"
	FileCategoryVideo    = "video"
	FileCategoryAudio    = "audio"
	FileCategoryArchive  = "archive"
	FileCategoryOther    = "other"
)

// CategoryForMime maps a MIME type to a coarse file category.
func CategoryForMime(mime string) string {
	mime = strings.ToLower(mime)
	switch {
	case strings.HasPrefix(mime, "image/"):
		return FileCategoryImage
	case strings.HasPrefix(mime, "video/"):
		return FileCategoryVideo
	case strings.HasPrefix(mime, "audio/"):
		return FileCategoryAudio
	case strings.HasPrefix(mime, "text/"),
		strings.Contains(mime, "pdf"),
		strings.Contains(mime, "msword"),
		strings.Contains(mime, "officedocument"),
		strings.Contains(mime, "opendocument"):
		return FileCategoryDocument
	case strings.Contains(mime, "zip"),
		strings.Contains(mime, "tar"),
		strings.Contains(mime, "gzip"),
		strings.Contains(mime, "rar"),
		strings.Contains(mime, "7z"):
		return FileCategoryArchive
	default:
		return FileCategoryOther
	}
}

// FileFilter narrows file listings.
type FileFilter struct {
	DriveID        string
	FolderID       *string
	RootOnly       bool
	Category       string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// FileUpdate carries owner-editable metadata.
type FileUpdate struct {
	OriginalName *string
	IsPublic     *bool
}
