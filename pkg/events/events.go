// Package events publishes drive activity to a message broker.
package events

import (
	"context"
	"time"
)

// ActivityEvent is the message published for every recorded activity.
type ActivityEvent struct {
	ID         string                 `json:"id"`
	DriveID    string                 `json:"drive_id"`
	UserID     string                 `json:"user_id"`
	Action     string                 `json:"action"`
	TargetType string                 `json:"target_type"`
	TargetID   string                 `json:"target_id"`
	TargetName string                 `json:"target_name"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Publisher delivers activity events.
type Publisher interface {
	PublishActivity(ctx context.Context, event ActivityEvent) error
	Close() error
}

// NopPublisher drops every event; used when the broker is disabled.
type NopPublisher struct{}

// PublishActivity does nothing.
func (NopPublisher) PublishActivity(context.Context, ActivityEvent) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }
