package dto

import "github.com/noah-isme/sma-drive-api/internal/models"

// BulkOperation enumerates the supported bulk operations.
type BulkOperation string

const (
	BulkDelete  BulkOperation = "delete"
	BulkMove    BulkOperation = "move"
	BulkCopy    BulkOperation = "copy"
	BulkRestore BulkOperation = "restore"
)

// BulkRequest applies one operation to many items of the same type.
type BulkRequest struct {
	Operation      BulkOperation     `json:"operation" validate:"required,oneof=delete move copy restore"`
	ItemIDs        []string          `json:"itemIds" validate:"required,min=1,max=500,dive,required"`
	ItemType       models.TargetType `json:"itemType" validate:"required,oneof=file folder"`
	TargetFolderID *string           `json:"targetFolderId" validate:"omitempty,uuid"`
}

// BulkFailure reports why one item failed.
type BulkFailure struct {
	ID      string `json:"id"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// BulkResult lists per-item outcomes.
type BulkResult struct {
	Success []string      `json:"success"`
	Failed  []BulkFailure `json:"failed"`
}

// BulkResponse is the body returned by POST /bulk.
type BulkResponse struct {
	Results BulkResult `json:"results"`
}
