package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
	"github.com/noah-isme/sma-drive-api/pkg/events"
	"github.com/noah-isme/sma-drive-api/pkg/jobs"
)

type enqueuerStub struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (e *enqueuerStub) TryEnqueue(job jobs.Job) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

type publisherStub struct {
	events []events.ActivityEvent
}

func (p *publisherStub) PublishActivity(_ context.Context, event events.ActivityEvent) error {
	p.events = append(p.events, event)
	return nil
}

func (p *publisherStub) Close() error { return nil }

func TestActivityRecordQueuesEvent(t *testing.T) {
	store := newMemStore()
	drives := NewDriveService(memDrives{store}, nil, DriveServiceConfig{DefaultStorageLimit: 10}, nil)
	queue := &enqueuerStub{}
	svc := NewActivityService(memActivities{store}, drives, queue, nil)

	svc.Record(context.Background(), ActivityEntry{
		DriveID:    "drive-1",
		UserID:     "alice",
		Action:     models.ActivityUpload,
		TargetType: models.TargetFile,
		TargetID:   "file-1",
		TargetName: "a.txt",
		Metadata:   map[string]interface{}{"size": 3},
	})

	require.Len(t, store.activities, 1)
	require.JSONEq(t, `{"size":3}`, string(store.activities[0].Metadata))
	require.Len(t, queue.jobs, 1)
	require.Equal(t, ActivityEventJob, queue.jobs[0].Type)

	publisher := &publisherStub{}
	require.NoError(t, ActivityPublishHandler(publisher)(context.Background(), queue.jobs[0]))
	require.Len(t, publisher.events, 1)
	require.Equal(t, "drive-1", publisher.events[0].DriveID)
	require.Equal(t, "upload", publisher.events[0].Action)

	err := ActivityPublishHandler(publisher)(context.Background(), jobs.Job{ID: "bad", Payload: "{"})
	require.Error(t, err)
}

func TestActivityRecordSurvivesFullQueue(t *testing.T) {
	store := newMemStore()
	svc := NewActivityService(memActivities{store}, nil, &enqueuerStub{err: jobs.ErrQueueFull}, nil)
	svc.Record(context.Background(), ActivityEntry{DriveID: "d", Action: models.ActivityCreate})
	require.Len(t, store.activities, 1)

	var nilService *ActivityService
	nilService.Record(context.Background(), ActivityEntry{DriveID: "d"})
}

func TestActivityListFiltersAndPaginates(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()
	alice := actor("alice")
	folder := f.mkdir(t, alice, nil, "Docs")
	f.upload(t, alice, &folder.ID, "a.txt", "a")
	f.upload(t, alice, nil, "b.txt", "b")
	f.upload(t, actor("bob"), nil, "c.txt", "c")

	all, page, err := f.activity.List(ctx, alice, dto.ActivityQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, 3, page.TotalCount)

	uploads, _, err := f.activity.List(ctx, alice, dto.ActivityQuery{Action: models.ActivityUpload, PageSize: 1})
	require.NoError(t, err)
	require.Len(t, uploads, 1)

	_, _, err = f.activity.List(ctx, alice, dto.ActivityQuery{TargetType: "drive"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	_, _, err = f.activity.List(ctx, nil, dto.ActivityQuery{})
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestActivityExport(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()
	alice := actor("alice")
	f.upload(t, alice, nil, "report.txt", "r")

	csv, err := f.activity.Export(ctx, alice, dto.ActivityQuery{}, "csv")
	require.NoError(t, err)
	require.Equal(t, "text/csv", csv.ContentType)
	require.True(t, strings.HasSuffix(csv.Filename, ".csv"))
	lines := strings.Split(strings.TrimSpace(string(csv.Payload)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[1], "report.txt")

	pdf, err := f.activity.Export(ctx, alice, dto.ActivityQuery{}, "pdf")
	require.NoError(t, err)
	require.Equal(t, "application/pdf", pdf.ContentType)
	require.True(t, strings.HasSuffix(pdf.Filename, ".pdf"))

	_, err = f.activity.Export(ctx, alice, dto.ActivityQuery{}, "xml")
	require.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestActivityMetadataRoundTrip(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()
	alice := actor("alice")
	file := f.upload(t, alice, nil, "old.txt", "x")
	name := "new.txt"
	_, err := f.files.Update(ctx, alice, file.ID, dto.UpdateFileRequest{Name: &name})
	require.NoError(t, err)

	renames, _, err := f.activity.List(ctx, alice, dto.ActivityQuery{Action: models.ActivityRename})
	require.NoError(t, err)
	require.Len(t, renames, 1)
	var meta map[string]string
	require.NoError(t, json.Unmarshal(renames[0].Metadata, &meta))
	require.Equal(t, "old.txt", meta["from"])
	require.Equal(t, "new.txt", meta["to"])
}
