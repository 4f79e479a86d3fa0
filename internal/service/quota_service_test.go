package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
)

func TestQuotaReserveAndRelease(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()
	drive := f.driveOf(t, actor("u1"))

	require.NoError(t, f.quota.Reserve(ctx, drive.ID, 600))
	require.NoError(t, f.quota.Reserve(ctx, drive.ID, 0))

	err := f.quota.Reserve(ctx, drive.ID, 401)
	require.ErrorIs(t, err, appErrors.ErrInsufficientStorage)
	appErr := appErrors.FromError(err)
	require.EqualValues(t, 401, appErr.Details["required"])
	require.EqualValues(t, 400, appErr.Details["available"])
	require.EqualValues(t, 600, f.driveOf(t, actor("u1")).StorageUsed)

	require.NoError(t, f.quota.Release(ctx, drive.ID, 100))
	require.EqualValues(t, 500, f.driveOf(t, actor("u1")).StorageUsed)

	// Release is floored at zero.
	require.NoError(t, f.quota.Release(ctx, drive.ID, 10_000))
	require.EqualValues(t, 0, f.driveOf(t, actor("u1")).StorageUsed)
}

func TestQuotaRejectsNegativeAndUnknownDrive(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.quota.Reserve(ctx, "missing", -1), appErrors.ErrValidation)
	require.ErrorIs(t, f.quota.Reserve(ctx, "missing", 1), appErrors.ErrNotFound)
	require.ErrorIs(t, f.quota.Release(ctx, "missing", 1), appErrors.ErrNotFound)
}

// requireUsageMatchesCatalog checks that every drive's usage equals the bytes
// of the files it still catalogues, trashed ones included.
func requireUsageMatchesCatalog(t *testing.T, f *driveFixture, step string) {
	t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	sums := map[string]int64{}
	for _, file := range f.store.files {
		sums[file.DriveID] += file.FileSize
	}
	for id, drive := range f.store.drives {
		require.Equalf(t, sums[id], drive.StorageUsed, "%s: drive %s of %s", step, id, drive.OwnerID)
	}
}

func TestQuotaConservedAcrossMixedOperations(t *testing.T) {
	f := newDriveFixture(t)
	ctx := context.Background()
	alice, bob := actor("alice"), actor("bob")

	f.upload(t, alice, nil, "a.txt", "0123456789")
	docs := f.mkdir(t, alice, nil, "Docs")
	f.upload(t, alice, &docs.ID, "b.txt", "01234567890123456789")
	deep := f.mkdir(t, alice, &docs.ID, "Deep")
	f.upload(t, alice, &deep.ID, "c.txt", "01234")
	requireUsageMatchesCatalog(t, f, "alice uploads")

	x := f.upload(t, bob, nil, "x.bin", "012345678901234567890123456789")
	share := f.mkdir(t, bob, nil, "Share")
	f.upload(t, bob, &share.ID, "y.txt", "0123456")
	inner := f.mkdir(t, bob, &share.ID, "Inner")
	f.upload(t, bob, &inner.ID, "z.txt", "012")
	requireUsageMatchesCatalog(t, f, "bob uploads")

	rootFiles, _, err := f.files.List(ctx, alice, dto.FileQuery{})
	require.NoError(t, err)
	require.Len(t, rootFiles, 1)
	result, err := f.bulk.Execute(ctx, alice, dto.BulkRequest{
		Operation:      dto.BulkCopy,
		ItemType:       models.TargetFile,
		ItemIDs:        []string{rootFiles[0].ID, missingID},
		TargetFolderID: &docs.ID,
	})
	require.NoError(t, err)
	require.Len(t, result.Success, 1)
	requireUsageMatchesCatalog(t, f, "bulk copy")

	folderRequest := requestCopy(t, f, "alice", "bob", models.TargetFolder, share.ID)
	f.store.mu.Lock()
	f.store.failFileCreateAfter = f.store.fileCreates + 1
	f.store.mu.Unlock()
	_, err = f.copies.Approve(ctx, bob, folderRequest.ID)
	require.Error(t, err)
	requireUsageMatchesCatalog(t, f, "compensated approval")

	f.store.mu.Lock()
	f.store.failFileCreateAfter = -1
	f.store.mu.Unlock()
	_, err = f.copies.Approve(ctx, bob, folderRequest.ID)
	require.NoError(t, err)
	requireUsageMatchesCatalog(t, f, "folder approval")

	fileRequest := requestCopy(t, f, "alice", "bob", models.TargetFile, x.ID)
	_, err = f.copies.Deny(ctx, bob, fileRequest.ID)
	require.NoError(t, err)
	requireUsageMatchesCatalog(t, f, "denial")

	require.NoError(t, f.trash.SoftDeleteFolder(ctx, alice, docs.ID))
	requireUsageMatchesCatalog(t, f, "soft delete")
	require.NoError(t, f.trash.PurgeFolder(ctx, alice, docs.ID))
	requireUsageMatchesCatalog(t, f, "purge")

	require.NoError(t, f.trash.SoftDeleteFile(ctx, bob, x.ID))
	_, err = f.trash.EmptyTrash(ctx, bob)
	require.NoError(t, err)
	requireUsageMatchesCatalog(t, f, "empty trash")

	require.EqualValues(t, 20, f.driveOf(t, alice).StorageUsed)
	require.EqualValues(t, 10, f.driveOf(t, bob).StorageUsed)
}
