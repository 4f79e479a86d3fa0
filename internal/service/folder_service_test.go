package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-drive-api/internal/dto"
	"github.com/noah-isme/sma-drive-api/internal/models"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
)

func TestFolderServiceCreateMaterializesPath(t *testing.T) {
	f := newDriveFixture(t)
	user := actor("u1")

	math := f.mkdir(t, user, nil, "Math")
	require.Equal(t, "/Math", math.Path)
	algebra := f.mkdir(t, user, &math.ID, "Algebra")
	require.Equal(t, "/Math/Algebra", algebra.Path)

	_, err := f.folders.Create(context.Background(), user, dto.CreateFolderRequest{Name: "Algebra", ParentID: &math.ID})
	require.ErrorIs(t, err, appErrors.ErrNamingConflict)

	_, err = f.folders.Create(context.Background(), user, dto.CreateFolderRequest{Name: "a/b"})
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.folders.Create(context.Background(), nil, dto.CreateFolderRequest{Name: "x"})
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}

func TestFolderServiceRenameRewritesDescendants(t *testing.T) {
	f := newDriveFixture(t)
	user := actor("u1")
	math := f.mkdir(t, user, nil, "Math")
	year := f.mkdir(t, user, &math.ID, "2024")
	notes := f.mkdir(t, user, &year.ID, "notes")

	renamed, err := f.folders.Update(context.Background(), user, math.ID, dto.UpdateFolderRequest{Name: strPtr("Maths")})
	require.NoError(t, err)
	require.Equal(t, "/Maths", renamed.Path)
	require.Equal(t, "/Maths/2024", f.folder(t, year.ID).Path)
	require.Equal(t, "/Maths/2024/notes", f.folder(t, notes.ID).Path)
	require.Contains(t, f.actions(math.DriveID), models.ActivityRename)
}

func TestFolderServiceMoveScenario(t *testing.T) {
	f := newDriveFixture(t)
	user := actor("u1")
	math := f.mkdir(t, user, nil, "Math")
	archive := f.mkdir(t, user, nil, "Archive")
	notes := f.upload(t, user, &math.ID, "notes.pdf", "%PDF-1.4 tiny")

	moved, err := f.folders.Move(context.Background(), user, math.ID, dto.MoveRequest{TargetFolderID: &archive.ID})
	require.NoError(t, err)
	require.Equal(t, "/Archive/Math", moved.Path)
	require.Equal(t, archive.ID, *moved.ParentID)

	file := f.file(t, notes.ID)
	require.Equal(t, math.ID, *file.FolderID)
	require.Equal(t, "/Archive/Math", f.folder(t, *file.FolderID).Path)
}

func TestFolderServiceMoveRejectsCycles(t *testing.T) {
	f := newDriveFixture(t)
	user := actor("u1")
	a := f.mkdir(t, user, nil, "A")
	b := f.mkdir(t, user, &a.ID, "B")
	c := f.mkdir(t, user, &b.ID, "C")

	for _, target := range []string{a.ID, b.ID, c.ID} {
		target := target
		_, err := f.folders.Move(context.Background(), user, a.ID, dto.MoveRequest{TargetFolderID: &target})
		require.ErrorIs(t, err, appErrors.ErrInvalidMove)
	}
	require.Equal(t, "/A", f.folder(t, a.ID).Path)
	require.Nil(t, f.folder(t, a.ID).ParentID)
	require.Equal(t, "/A/B/C", f.folder(t, c.ID).Path)
}

func TestFolderServiceMoveChecksDestination(t *testing.T) {
	f := newDriveFixture(t)
	user := actor("u1")
	a := f.mkdir(t, user, nil, "Reports")
	dest := f.mkdir(t, user, nil, "Dest")
	f.mkdir(t, user, &dest.ID, "Reports")
	other := f.mkdir(t, actor("u2"), nil, "Theirs")

	_, err := f.folders.Move(context.Background(), user, a.ID, dto.MoveRequest{TargetFolderID: &dest.ID})
	require.ErrorIs(t, err, appErrors.ErrNamingConflict)

	_, err = f.folders.Move(context.Background(), user, a.ID, dto.MoveRequest{TargetFolderID: &other.ID})
	require.ErrorIs(t, err, appErrors.ErrAccessDenied)

	missing := "00000000-0000-0000-0000-000000000001"
	_, err = f.folders.Move(context.Background(), user, a.ID, dto.MoveRequest{TargetFolderID: &missing})
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	// Moving to where it already is changes nothing.
	same, err := f.folders.Move(context.Background(), user, a.ID, dto.MoveRequest{})
	require.NoError(t, err)
	require.Equal(t, "/Reports", same.Path)
}

func TestFolderServiceListProvisionsDefaultsOnce(t *testing.T) {
	f := newDriveFixture(t)
	f.folders.defaultFolders = []string{"Mathematics", "Physics", " "}
	user := actor("u1")
	ctx := context.Background()

	contents, err := f.folders.List(ctx, user, nil)
	require.NoError(t, err)
	require.Len(t, contents.Folders, 2)

	// A trashed default is not recreated.
	require.NoError(t, f.trash.SoftDeleteFolder(ctx, user, contents.Folders[0].ID))
	contents, err = f.folders.List(ctx, user, nil)
	require.NoError(t, err)
	require.Len(t, contents.Folders, 1)
	require.Equal(t, "Physics", contents.Folders[0].Name)
}

func TestFolderServiceGetOtherDriveDenied(t *testing.T) {
	f := newDriveFixture(t)
	folder := f.mkdir(t, actor("u1"), nil, "Private")

	_, err := f.folders.Get(context.Background(), actor("u2"), folder.ID)
	require.ErrorIs(t, err, appErrors.ErrAccessDenied)

	_, err = f.folders.Get(context.Background(), actor("u1"), "00000000-0000-0000-0000-000000000009")
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}
