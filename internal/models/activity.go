package models

import (
	"encoding/json"
	"time"
)

// ActivityAction enumerates audit verbs.
type ActivityAction string

const (
	ActivityUpload   ActivityAction = "upload"
	ActivityCreate   ActivityAction = "create"
	ActivityRename   ActivityAction = "rename"
	ActivityMove     ActivityAction = "move"
	ActivityCopy     ActivityAction = "copy"
	ActivityUpdate   ActivityAction = "update"
	ActivityDelete   ActivityAction = "delete"
	ActivityRestore  ActivityAction = "restore"
	ActivityPurge    ActivityAction = "purge"
	ActivityImport   ActivityAction = "import"
	ActivityRequest  ActivityAction = "request"
	ActivityApprove  ActivityAction = "approve"
	ActivityDeny     ActivityAction = "deny"
	ActivityCancel   ActivityAction = "cancel"
)

// TargetType distinguishes files from folders.
type TargetType string

const (
	TargetFile   TargetType = "file"
	TargetFolder TargetType = "folder"
)

// Valid reports whether the target type is known.
func (t TargetType) Valid() bool {
	return t == TargetFile || t == TargetFolder
}

// Activity is an immutable audit record.
type Activity struct {
	ID         string          `db:"id" json:"id"`
	DriveID    string          `db:"drive_id" json:"driveId"`
	UserID     string          `db:"user_id" json:"userId"`
	Action     ActivityAction  `db:"action" json:"action"`
	TargetType TargetType      `db:"target_type" json:"targetType"`
	TargetID   string          `db:"target_id" json:"targetId"`
	TargetName string          `db:"target_name" json:"targetName"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

// ActivityFilter narrows activity listings.
type ActivityFilter struct {
	DriveID    string
	Action     ActivityAction
	TargetType TargetType
	Since      *time.Time
	Limit      int
	Offset     int
}
