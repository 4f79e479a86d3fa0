package models

import "time"

// Folder is a node of a drive's tree. Path is materialized from the ancestor
// names: "/" + name at the root, parent path + "/" + name below it.
type Folder struct {
	ID        string     `db:"id" json:"id"`
	DriveID   string     `db:"drive_id" json:"driveId"`
	ParentID  *string    `db:"parent_id" json:"parentId,omitempty"`
	Name      string     `db:"name" json:"name"`
	Path      string     `db:"path" json:"path"`
	IsPublic  bool       `db:"is_public" json:"isPublic"`
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsTrashed reports whether the folder is soft-deleted.
func (f *Folder) IsTrashed() bool {
	return f.DeletedAt != nil
}

// FolderFilter narrows folder listings.
type FolderFilter struct {
	DriveID        string
	ParentID       *string
	RootOnly       bool
	IncludeDeleted bool
}

// FolderContents lists the live children of a folder (or of the drive root).
type FolderContents struct {
	Folder  *Folder  `json:"folder,omitempty"`
	Folders []Folder `json:"folders"`
	Files   []File   `json:"files"`
}
