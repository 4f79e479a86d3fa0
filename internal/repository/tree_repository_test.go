package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func expectSubtreeLock(mock sqlmock.Sqlmock, folderIDs []string, folderStrays int) {
	rows := sqlmock.NewRows([]string{"id"})
	for _, id := range folderIDs {
		rows.AddRow(id)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM folders WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE")).
		WithArgs(pq.Array(folderIDs)).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM folders WHERE parent_id = ANY($1::uuid[])")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(folderStrays))
}

func TestTreeRepositoryRelocateRewritesDescendants(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTreeRepository(db)

	parent := "archive"
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT path, deleted_at FROM folders WHERE id = $1 FOR UPDATE")).
		WithArgs("math").
		WillReturnRows(sqlmock.NewRows([]string{"path", "deleted_at"}).AddRow("/Math", nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT path, deleted_at FROM folders WHERE id = $1 FOR SHARE")).
		WithArgs("archive").
		WillReturnRows(sqlmock.NewRows([]string{"path", "deleted_at"}).AddRow("/Archive", nil))
	expectSubtreeLock(mock, []string{"math", "algebra"}, 0)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE folders SET parent_id = $2, name = $3, path = $4")).
		WithArgs("math", &parent, "Math", "/Archive/Math").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE folders SET path = $3, updated_at = NOW() WHERE id = $1 AND path = $2")).
		WithArgs("algebra", "/Math/Algebra", "/Archive/Math/Algebra").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Relocate(context.Background(), Relocation{
		FolderID:   "math",
		ParentID:   &parent,
		ParentPath: "/Archive",
		Name:       "Math",
		SubtreeIDs: []string{"math", "algebra"},
		Paths: []PathUpdate{
			{ID: "math", OldPath: "/Math", NewPath: "/Archive/Math"},
			{ID: "algebra", OldPath: "/Math/Algebra", NewPath: "/Archive/Math/Algebra"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTreeRepositoryRelocateDetectsStalePlan(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTreeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("math").
		WillReturnRows(sqlmock.NewRows([]string{"path", "deleted_at"}).AddRow("/Renamed", nil))
	mock.ExpectRollback()

	err := repo.Relocate(context.Background(), Relocation{
		FolderID: "math",
		Name:     "Maths",
		Paths:    []PathUpdate{{ID: "math", OldPath: "/Math", NewPath: "/Maths"}},
	})
	require.ErrorIs(t, err, ErrStaleTree)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTreeRepositoryRelocateDetectsChildAddedSinceWalk(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTreeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("math").
		WillReturnRows(sqlmock.NewRows([]string{"path", "deleted_at"}).AddRow("/Math", nil))
	expectSubtreeLock(mock, []string{"math"}, 1)
	mock.ExpectRollback()

	err := repo.Relocate(context.Background(), Relocation{
		FolderID:   "math",
		Name:       "Maths",
		SubtreeIDs: []string{"math"},
		Paths:      []PathUpdate{{ID: "math", OldPath: "/Math", NewPath: "/Maths"}},
	})
	require.ErrorIs(t, err, ErrStaleTree)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTreeRepositoryRelocateMapsUniqueViolation(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTreeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("math").
		WillReturnRows(sqlmock.NewRows([]string{"path", "deleted_at"}).AddRow("/Math", nil))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE folders SET parent_id")).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := repo.Relocate(context.Background(), Relocation{
		FolderID: "math",
		Name:     "Physics",
		Paths:    []PathUpdate{{ID: "math", OldPath: "/Math", NewPath: "/Physics"}},
	})
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTreeRepositorySetTrashedStampsSubtree(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTreeRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	expectSubtreeLock(mock, []string{"f1", "f2"}, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM files WHERE folder_id = ANY($1::uuid[])")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE folders SET deleted_at = $1, updated_at = NOW() WHERE id = ANY($2::uuid[])")).
		WithArgs(&now, pq.Array([]string{"f1", "f2"})).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE files SET deleted_at = $1, updated_at = NOW() WHERE id = ANY($2::uuid[])")).
		WithArgs(&now, pq.Array([]string{"x"})).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SetTrashed(context.Background(), TrashChange{FolderIDs: []string{"f1", "f2"}, FileIDs: []string{"x"}, DeletedAt: &now})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTreeRepositoryRestoreRequiresLiveParent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTreeRepository(db)

	trashedAt := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT path, deleted_at FROM folders WHERE id = $1 FOR SHARE")).
		WithArgs("parent").
		WillReturnRows(sqlmock.NewRows([]string{"path", "deleted_at"}).AddRow("/Parent", trashedAt))
	mock.ExpectRollback()

	err := repo.SetTrashed(context.Background(), TrashChange{FileIDs: []string{"x"}, KeepUnderID: "parent"})
	require.ErrorIs(t, err, ErrStaleTree)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTreeRepositoryPurgeDeletesFilesThenFolders(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTreeRepository(db)

	mock.ExpectBegin()
	expectSubtreeLock(mock, []string{"f1"}, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM files WHERE folder_id = ANY($1::uuid[])")).
		WithArgs(pq.Array([]string{"f1"}), pq.Array([]string{"x", "y"})).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM files WHERE id = ANY($1::uuid[])")).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM folders WHERE id = ANY($1::uuid[])")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Purge(context.Background(), []string{"f1"}, []string{"x", "y"}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTreeRepositoryPurgeMapsDeadlockToStale(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTreeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM files")).WillReturnError(&pq.Error{Code: "40P01"})
	mock.ExpectRollback()

	require.ErrorIs(t, repo.Purge(context.Background(), nil, []string{"x"}), ErrStaleTree)
	require.NoError(t, mock.ExpectationsWereMet())
}
