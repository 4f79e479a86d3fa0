package models

import "time"

// CopyRequestStatus captures the workflow state of a copy request.
type CopyRequestStatus string

const (
	CopyRequestPending  CopyRequestStatus = "PENDING"
	CopyRequestApproved CopyRequestStatus = "APPROVED"
	CopyRequestDenied   CopyRequestStatus = "DENIED"
)

// CopyRequest asks the recipient to copy one of their items into the requester's drive.
type CopyRequest struct {
	ID               string            `db:"id" json:"id"`
	RequesterID      string            `db:"requester_id" json:"requesterId"`
	RequesterDriveID string            `db:"requester_drive_id" json:"requesterDriveId"`
	RecipientID      string            `db:"recipient_id" json:"recipientId"`
	RecipientDriveID string            `db:"recipient_drive_id" json:"recipientDriveId"`
	TargetType       TargetType        `db:"target_type" json:"targetType"`
	TargetID         string            `db:"target_id" json:"targetId"`
	Status           CopyRequestStatus `db:"status" json:"status"`
	Message          *string           `db:"message" json:"message,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"createdAt"`
	ProcessedAt      *time.Time        `db:"processed_at" json:"processedAt,omitempty"`
}

// CopyRequestFilter narrows copy request listings.
type CopyRequestFilter struct {
	RequesterID string
	RecipientID string
	Status      CopyRequestStatus
	Limit       int
	Offset      int
}

// CopyRequestResult is returned after a transition; Created lists the new items on approval.
type CopyRequestResult struct {
	Request *CopyRequest  `json:"request"`
	Created []CreatedItem `json:"created,omitempty"`
}

// CreatedItem references one item produced by a copy.
type CreatedItem struct {
	ID   string     `json:"id"`
	Type TargetType `json:"type"`
	Name string     `json:"name"`
}
