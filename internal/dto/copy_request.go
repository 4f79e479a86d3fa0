package dto

import "github.com/noah-isme/sma-drive-api/internal/models"

// CreateCopyRequest asks another user to copy one of their items into the caller's drive.
type CreateCopyRequest struct {
	RecipientID string            `json:"recipientId" validate:"required"`
	TargetType  models.TargetType `json:"targetType" validate:"required,oneof=file folder"`
	TargetID    string            `json:"targetId" validate:"required,uuid"`
	Message     *string           `json:"message" validate:"omitempty,max=1000"`
}

// CopyRequestAction enumerates recipient decisions.
type CopyRequestAction string

const (
	CopyRequestApprove CopyRequestAction = "approve"
	CopyRequestDeny    CopyRequestAction = "deny"
)

// ProcessCopyRequest carries the recipient's decision.
type ProcessCopyRequest struct {
	Action CopyRequestAction `json:"action" validate:"required,oneof=approve deny"`
}

// CopyRequestBox selects which side of the workflow is listed.
type CopyRequestBox string

const (
	CopyRequestIncoming CopyRequestBox = "incoming"
	CopyRequestOutgoing CopyRequestBox = "outgoing"
)

// CopyRequestQuery captures list filters.
type CopyRequestQuery struct {
	Box      CopyRequestBox
	Status   models.CopyRequestStatus
	Page     int
	PageSize int
}
