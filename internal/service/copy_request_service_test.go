package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
)

func requestCopy(t *testing.T, f *driveFixture, requester, recipient string, targetType models.TargetType, targetID string) *models.CopyRequest {
	t.Helper()
	request, err := f.copies.Create(context.Background(), actor(requester), dto.CreateCopyRequest{
		RecipientID: recipient,
		TargetType:  targetType,
		TargetID:    targetID,
	})
	require.NoError(t, err)
	require.Equal(t, models.CopyRequestPending, request.Status)
	return request
}

func TestCopyRequestApproveFolderPreservesNesting(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()
	bob := actor("bob")
	math := f.mkdir(t, bob, nil, "Math")
	algebra := f.mkdir(t, bob, &math.ID, "Algebra")
	trashed := f.mkdir(t, bob, &math.ID, "Old")
	f.upload(t, bob, &math.ID, "syllabus.txt", "1234")
	f.upload(t, bob, &algebra.ID, "proofs.txt", "123456")
	f.upload(t, bob, &trashed.ID, "stale.txt", "xx")
	require.NoError(t, f.trash.SoftDeleteFolder(ctx, bob, trashed.ID))

	alice := actor("alice")
	f.mkdir(t, alice, nil, "Math")
	request := requestCopy(t, f, "alice", "bob", models.TargetFolder, math.ID)

	result, err := f.copies.Approve(ctx, bob, request.ID)
	require.NoError(t, err)
	require.Equal(t, models.CopyRequestApproved, result.Request.Status)
	require.Len(t, result.Created, 4)

	aliceDrive := f.driveOf(t, alice)
	require.EqualValues(t, 10, aliceDrive.StorageUsed)

	root, err := memFolders{f.store}.FindLiveByName(ctx, aliceDrive.ID, nil, "Math (copy)")
	require.NoError(t, err)
	require.Equal(t, "/Math (copy)", root.Path)
	sub, err := memFolders{f.store}.FindLiveByName(ctx, aliceDrive.ID, &root.ID, "Algebra")
	require.NoError(t, err)
	require.Equal(t, "/Math (copy)/Algebra", sub.Path)

	files, _, err := memFiles{f.store}.List(ctx, models.FileFilter{DriveID: aliceDrive.ID, FolderID: &sub.ID})
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.False(t, files[0].IsPublic)
	require.Equal(t, "proofs.txt", files[0].OriginalName)

	imports := 0
	for _, action := range f.actions(aliceDrive.ID) {
		if action == models.ActivityImport {
			imports++
		}
	}
	require.Equal(t, 4, imports)
	require.Contains(t, f.actions(f.driveOf(t, bob).ID), models.ActivityApprove)
}

func TestCopyRequestApproveFileGoesToRootPrivate(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()
	bob := actor("bob")
	file := f.upload(t, bob, nil, "notes.txt", "public notes")
	_, err := f.files.Update(ctx, bob, file.ID, dto.UpdateFileRequest{IsPublic: boolPtr(true)})
	require.NoError(t, err)

	request := requestCopy(t, f, "alice", "bob", models.TargetFile, file.ID)
	result, err := f.copies.Approve(ctx, bob, request.ID)
	require.NoError(t, err)
	require.Len(t, result.Created, 1)

	copied := f.file(t, result.Created[0].ID)
	require.Nil(t, copied.FolderID)
	require.False(t, copied.IsPublic)
	require.NotEqual(t, file.StorageKey, copied.StorageKey)
	require.EqualValues(t, len("public notes"), f.driveOf(t, actor("alice")).StorageUsed)
}

func TestCopyRequestInsufficientStorageScenario(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()
	alice := actor("alice")
	f.upload(t, alice, nil, "used.bin", strings.Repeat("u", 200))
	bob := actor("bob")
	big := f.upload(t, bob, nil, "big.bin", strings.Repeat("b", 450))
	f.upload(t, bob, nil, "pad.bin", strings.Repeat("p", 450))
	// Grow the source past the requester's headroom without a second upload limit.
	f.store.mu.Lock()
	f.store.files[big.ID].FileSize = 900
	f.store.mu.Unlock()

	request := requestCopy(t, f, "alice", "bob", models.TargetFile, big.ID)
	_, err := f.copies.Approve(ctx, bob, request.ID)
	require.ErrorIs(t, err, appErrors.ErrInsufficientStorage)
	require.EqualValues(t, 200, f.driveOf(t, alice).StorageUsed)

	stored, err := f.copies.Get(ctx, alice, request.ID)
	require.NoError(t, err)
	require.Equal(t, models.CopyRequestPending, stored.Status)
}

func TestCopyRequestStateMachine(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()
	bob := actor("bob")
	file := f.upload(t, bob, nil, "a.txt", "abc")

	request := requestCopy(t, f, "alice", "bob", models.TargetFile, file.ID)
	_, err := f.copies.Approve(ctx, actor("alice"), request.ID)
	require.ErrorIs(t, err, appErrors.ErrForbidden)

	denied, err := f.copies.Deny(ctx, bob, request.ID)
	require.NoError(t, err)
	require.Equal(t, models.CopyRequestDenied, denied.Status)
	require.EqualValues(t, 0, f.driveOf(t, actor("alice")).StorageUsed)

	_, err = f.copies.Approve(ctx, bob, request.ID)
	require.ErrorIs(t, err, appErrors.ErrAlreadyProcessed)
	_, err = f.copies.Deny(ctx, bob, request.ID)
	require.ErrorIs(t, err, appErrors.ErrAlreadyProcessed)
	require.ErrorIs(t, f.copies.Cancel(ctx, actor("alice"), request.ID), appErrors.ErrAlreadyProcessed)

	second := requestCopy(t, f, "alice", "bob", models.TargetFile, file.ID)
	require.ErrorIs(t, f.copies.Cancel(ctx, bob, second.ID), appErrors.ErrForbidden)
	require.NoError(t, f.copies.Cancel(ctx, actor("alice"), second.ID))
	_, err = f.copies.Get(ctx, actor("alice"), second.ID)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCopyRequestCreateValidation(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()
	bob := actor("bob")
	file := f.upload(t, bob, nil, "a.txt", "abc")
	mine := f.upload(t, actor("alice"), nil, "mine.txt", "m")

	_, err := f.copies.Create(ctx, bob, dto.CreateCopyRequest{RecipientID: "bob", TargetType: models.TargetFile, TargetID: file.ID})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	// The target must live in the recipient's drive.
	_, err = f.copies.Create(ctx, actor("alice"), dto.CreateCopyRequest{RecipientID: "bob", TargetType: models.TargetFile, TargetID: mine.ID})
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.copies.Create(ctx, actor("alice"), dto.CreateCopyRequest{RecipientID: "nobody", TargetType: models.TargetFile, TargetID: file.ID})
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	require.NoError(t, f.trash.SoftDeleteFile(ctx, bob, file.ID))
	_, err = f.copies.Create(ctx, actor("alice"), dto.CreateCopyRequest{RecipientID: "bob", TargetType: models.TargetFile, TargetID: file.ID})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCopyRequestApproveCompensatesFailedCopy(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()
	bob := actor("bob")
	folder := f.mkdir(t, bob, nil, "Src")
	f.upload(t, bob, &folder.ID, "one.txt", "111")
	f.upload(t, bob, &folder.ID, "two.txt", "2222")
	alice := actor("alice")
	request := requestCopy(t, f, "alice", "bob", models.TargetFolder, folder.ID)

	// Let the first file copy succeed and fail the second.
	f.store.mu.Lock()
	f.store.failFileCreateAfter = f.store.fileCreates + 1
	f.store.mu.Unlock()

	_, err := f.copies.Approve(ctx, bob, request.ID)
	require.Error(t, err)
	aliceDrive := f.driveOf(t, alice)
	require.EqualValues(t, 0, aliceDrive.StorageUsed)

	folders, err := memFolders{f.store}.List(ctx, models.FolderFilter{DriveID: aliceDrive.ID, IncludeDeleted: true})
	require.NoError(t, err)
	require.Empty(t, folders)
	files, _, err := memFiles{f.store}.List(ctx, models.FileFilter{DriveID: aliceDrive.ID, IncludeDeleted: true})
	require.NoError(t, err)
	require.Empty(t, files)
	require.Len(t, f.content.objects, 2)

	stored, err := f.copies.Get(ctx, bob, request.ID)
	require.NoError(t, err)
	require.Equal(t, models.CopyRequestPending, stored.Status)
}

func TestCopyRequestListAndGet(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()
	file := f.upload(t, actor("bob"), nil, "a.txt", "abc")
	request := requestCopy(t, f, "alice", "bob", models.TargetFile, file.ID)

	incoming, page, err := f.copies.List(ctx, actor("bob"), dto.CopyRequestQuery{Box: dto.CopyRequestIncoming})
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	require.Equal(t, 1, page.TotalCount)

	outgoing, _, err := f.copies.List(ctx, actor("bob"), dto.CopyRequestQuery{Box: dto.CopyRequestOutgoing})
	require.NoError(t, err)
	require.Empty(t, outgoing)

	_, _, err = f.copies.List(ctx, actor("bob"), dto.CopyRequestQuery{Box: "sideways"})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.copies.Get(ctx, actor("mallory"), request.ID)
	require.ErrorIs(t, err, appErrors.ErrAccessDenied)
	require.True(t, errors.Is(f.copies.Cancel(ctx, nil, request.ID), appErrors.ErrUnauthorized))
}
