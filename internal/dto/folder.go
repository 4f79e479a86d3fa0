package dto

// CreateFolderRequest creates a folder at the drive root or under ParentID.
type CreateFolderRequest struct {
	Name     string  `json:"name" validate:"required,max=255"`
	ParentID *string `json:"parentId" validate:"omitempty,uuid"`
	IsPublic bool    `json:"isPublic"`
}

// UpdateFolderRequest renames a folder and/or toggles its visibility.
type UpdateFolderRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=255"`
	IsPublic *bool   `json:"isPublic"`
}

// MoveRequest reparents a folder or file; a nil target means the drive root.
type MoveRequest struct {
	TargetFolderID *string `json:"targetFolderId" validate:"omitempty,uuid"`
}

// TrashListing groups the top-level trashed items of a drive.
type TrashListing struct {
	Folders []TrashedFolder `json:"folders"`
	Files   []TrashedFile   `json:"files"`
}

// EmptyTrashResult reports what an empty-trash run removed.
type EmptyTrashResult struct {
	PurgedFolders int           `json:"purgedFolders"`
	PurgedFiles   int           `json:"purgedFiles"`
	FreedBytes    int64         `json:"freedBytes"`
	Failed        []BulkFailure `json:"failed,omitempty"`
}
