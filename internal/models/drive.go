package models

import "time"

// Drive is a user's storage container with a byte quota.
type Drive struct {
	ID           string    `db:"id" json:"id"`
	OwnerID      string    `db:"owner_id" json:"ownerId"`
	StorageUsed  int64     `db:"storage_used" json:"storageUsed"`
	StorageLimit int64     `db:"storage_limit" json:"storageLimit"`
	IsPrivate    bool      `db:"is_private" json:"isPrivate"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Available returns the number of bytes still reservable.
func (d *Drive) Available() int64 {
	if d.StorageUsed >= d.StorageLimit {
		return 0
	}
	return d.StorageLimit - d.StorageUsed
}

// DriveSummary is the cached overview returned by GET /drive.
type DriveSummary struct {
	Drive       Drive `json:"drive"`
	FolderCount int   `json:"folderCount"`
	FileCount   int   `json:"fileCount"`
	TrashCount  int   `json:"trashCount"`
	TrashBytes  int64 `json:"trashBytes"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
