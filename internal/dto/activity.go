package dto

import (
	"time"

	"github.com/noah-isme/sma-drive-api/internal/models"
)

// ActivityQuery captures list and export filters.
type ActivityQuery struct {
	Action     models.ActivityAction
	TargetType models.TargetType
	Since      *time.Time
	Page       int
	PageSize   int
}

// ExportFile is a rendered activity export ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}
