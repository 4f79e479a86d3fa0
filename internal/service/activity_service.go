package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
	"github.com/noah-isme/sma-drive-api/pkg/events"
	"github.com/noah-isme/sma-drive-api/pkg/export"
	"github.com/noah-isme/sma-drive-api/pkg/jobs"
)

// ActivityEventJob is the job type carrying an activity event to the publisher.
const ActivityEventJob = "activity-event"

const maxExportRows = 5000

type activityStore interface {
	Create(ctx context.Context, activity *models.Activity) error
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error)
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// ActivityEntry describes one audit record to append.
type ActivityEntry struct {
	DriveID    string
	UserID     string
	Action     models.ActivityAction
	TargetType models.TargetType
	TargetID   string
	TargetName string
	Metadata   map[string]interface{}
}

// activityRecorder is what mutating services depend on.
type activityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry)
}

// ActivityService appends audit records, fans them out as events and serves
// listings and exports.
type ActivityService struct {
	store  activityStore
	drives driveResolver
	events jobEnqueuer
	logger *zap.Logger
	now    func() time.Time
}

// NewActivityService constructs the service. events may be nil.
func NewActivityService(store activityStore, drives driveResolver, events jobEnqueuer, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{store: store, drives: drives, events: events, logger: logger, now: time.Now}
}

// Record persists the entry and queues its event. Failures are logged only;
// an audit hiccup never fails the operation that produced it.
func (s *ActivityService) Record(ctx context.Context, entry ActivityEntry) {
	if s == nil || s.store == nil {
		return
	}
	activity := &models.Activity{
		DriveID:    entry.DriveID,
		UserID:     entry.UserID,
		Action:     entry.Action,
		TargetType: entry.TargetType,
		TargetID:   entry.TargetID,
		TargetName: entry.TargetName,
		CreatedAt:  s.now().UTC(),
	}
	if len(entry.Metadata) > 0 {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			s.logger.Warn("failed to encode activity metadata", zap.String("action", string(entry.Action)), zap.Error(err))
		} else {
			activity.Metadata = raw
		}
	}
	if err := s.store.Create(ctx, activity); err != nil {
		s.logger.Warn("failed to record activity",
			zap.String("drive_id", entry.DriveID),
			zap.String("action", string(entry.Action)),
			zap.String("target_id", entry.TargetID),
			zap.Error(err),
		)
		return
	}
	s.publish(activity, entry.Metadata)
}

func (s *ActivityService) publish(activity *models.Activity, metadata map[string]interface{}) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(events.ActivityEvent{
		ID:         activity.ID,
		DriveID:    activity.DriveID,
		UserID:     activity.UserID,
		Action:     string(activity.Action),
		TargetType: string(activity.TargetType),
		TargetID:   activity.TargetID,
		TargetName: activity.TargetName,
		Metadata:   metadata,
		OccurredAt: activity.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("failed to encode activity event", zap.Error(err))
		return
	}
	job := jobs.Job{ID: activity.ID, Type: ActivityEventJob, Payload: string(payload)}
	if err := s.events.TryEnqueue(job); err != nil {
		s.logger.Warn("activity event dropped", zap.String("activity_id", activity.ID), zap.Error(err))
	}
}

// ActivityPublishHandler decodes queued activity events and hands them to the publisher.
func ActivityPublishHandler(publisher events.Publisher) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		var event events.ActivityEvent
		if err := json.Unmarshal([]byte(job.Payload), &event); err != nil {
			return fmt.Errorf("decode activity event %s: %w", job.ID, err)
		}
		return publisher.PublishActivity(ctx, event)
	}
}

// List returns the caller's activities newest first.
func (s *ActivityService) List(ctx context.Context, actor *models.JWTClaims, query dto.ActivityQuery) ([]models.Activity, *models.Pagination, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, nil, err
	}
	if query.TargetType != "" && !query.TargetType.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "targetType must be file or folder")
	}
	page, size, offset := pageWindow(query.Page, query.PageSize)
	activities, total, err := s.store.List(ctx, models.ActivityFilter{
		DriveID:    scope.drive.ID,
		Action:     query.Action,
		TargetType: query.TargetType,
		Since:      query.Since,
		Limit:      size,
		Offset:     offset,
	})
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list activities")
	}
	return activities, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Export renders the caller's most recent activities as CSV or PDF.
func (s *ActivityService) Export(ctx context.Context, actor *models.JWTClaims, query dto.ActivityQuery, format string) (*dto.ExportFile, error) {
	scope, err := resolveScope(ctx, s.drives, actor)
	if err != nil {
		return nil, err
	}
	activities, _, err := s.store.List(ctx, models.ActivityFilter{
		DriveID:    scope.drive.ID,
		Action:     query.Action,
		TargetType: query.TargetType,
		Since:      query.Since,
		Limit:      maxExportRows,
	})
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load activities")
	}

	generatedAt := s.now().UTC()
	dataset := export.Dataset{
		Title:       "Drive activity",
		Headers:     []string{"When", "Action", "Type", "Target", "Details"},
		GeneratedAt: generatedAt,
	}
	for _, activity := range activities {
		dataset.Rows = append(dataset.Rows, []string{
			activity.CreatedAt.UTC().Format(time.RFC3339),
			string(activity.Action),
			string(activity.TargetType),
			activity.TargetName,
			string(activity.Metadata),
		})
	}
	payload, contentType, err := export.Render(format, dataset)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	extension := export.FormatCSV
	if contentType == "application/pdf" {
		extension = export.FormatPDF
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("activity-%s.%s", generatedAt.Format("20060102-150405"), extension),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func pageWindow(page, size int) (int, int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	return page, size, (page - 1) * size
}
