package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-drive-api/internal/models"
)

type folderChildrenStub map[string][]models.Folder

func (s folderChildrenStub) ListChildren(ctx context.Context, parentID string) ([]models.Folder, error) {
	return s[parentID], nil
}

type folderFilesStub map[string][]models.File

func (s folderFilesStub) ListByFolder(ctx context.Context, folderID string) ([]models.File, error) {
	return s[folderID], nil
}

func child(id, parentID, name string) models.Folder {
	return models.Folder{ID: id, ParentID: &parentID, Name: name, Path: "/" + name}
}

func TestTreeWalkerPreOrder(t *testing.T) {
	tree := folderChildrenStub{
		"root": {child("a", "root", "A"), child("b", "root", "B")},
		"a":    {child("a1", "a", "A1")},
	}
	files := folderFilesStub{
		"root": {{ID: "f0", FileSize: 10}},
		"a1":   {{ID: "f1", FileSize: 5}},
		"b":    {{ID: "f2", FileSize: 7}},
	}
	walker := NewTreeWalker(tree, files)
	root := &models.Folder{ID: "root", Name: "Root", Path: "/Root"}

	subtree, err := walker.Subtree(context.Background(), root)
	require.NoError(t, err)
	require.Equal(t, []string{"root", "a", "a1", "b"}, subtree.FolderIDs())
	require.ElementsMatch(t, []string{"f0", "f1", "f2"}, subtree.FileIDs())
	require.EqualValues(t, 22, subtree.Bytes())
	require.True(t, subtree.Contains("a1"))
	require.False(t, subtree.Contains("elsewhere"))

	descendants, err := walker.Descendants(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, descendants, 3)
}

func TestTreeWalkerDetectsCycle(t *testing.T) {
	tree := folderChildrenStub{
		"root": {child("a", "root", "A")},
		"a":    {child("root", "a", "Root")},
	}
	walker := NewTreeWalker(tree, folderFilesStub{})

	_, err := walker.Descendants(context.Background(), &models.Folder{ID: "root"})
	require.ErrorIs(t, err, ErrTreeCorrupted)
}

func TestTreeWalkerHandlesDeepChains(t *testing.T) {
	const depth = 2000
	tree := folderChildrenStub{}
	files := folderFilesStub{}
	for i := 0; i < depth; i++ {
		parent := fmt.Sprintf("n%d", i)
		tree[parent] = []models.Folder{child(fmt.Sprintf("n%d", i+1), parent, "x")}
	}
	files[fmt.Sprintf("n%d", depth)] = []models.File{{ID: "leaf", FileSize: 3}}
	walker := NewTreeWalker(tree, files)

	subtree, err := walker.Subtree(context.Background(), &models.Folder{ID: "n0"})
	require.NoError(t, err)
	require.Len(t, subtree.Folders, depth)
	require.Equal(t, "n1", subtree.Folders[0].ID)
	require.Equal(t, fmt.Sprintf("n%d", depth), subtree.Folders[depth-1].ID)
	require.EqualValues(t, 3, subtree.Bytes())
}

func TestTreeWalkerNodeCap(t *testing.T) {
	tree := folderChildrenStub{"root": {child("a", "root", "A"), child("b", "root", "B"), child("c", "root", "C")}}
	walker := NewTreeWalker(tree, folderFilesStub{})
	walker.maxNodes = 2

	_, err := walker.Descendants(context.Background(), &models.Folder{ID: "root"})
	require.ErrorIs(t, err, ErrTreeCorrupted)
}

func TestTreeWalkerStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewTreeWalker(folderChildrenStub{}, folderFilesStub{}).Subtree(ctx, &models.Folder{ID: "root"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSubtreeLivePrunesTrashedBranches(t *testing.T) {
	now := time.Now()
	trashed := child("b", "root", "B")
	trashed.DeletedAt = &now
	subtree := &Subtree{
		Root: models.Folder{ID: "root"},
		Folders: []models.Folder{
			child("a", "root", "A"),
			trashed,
			child("b1", "b", "B1"),
		},
		Files: []models.File{
			{ID: "f1", FolderID: strPtr("a"), FileSize: 3},
			{ID: "f2", FolderID: strPtr("b1"), FileSize: 4},
			{ID: "f3", FolderID: strPtr("root"), FileSize: 5, DeletedAt: &now},
		},
	}

	live := subtree.Live()
	require.Equal(t, []string{"root", "a"}, live.FolderIDs())
	require.Equal(t, []string{"f1"}, live.FileIDs())
	require.EqualValues(t, 3, live.Bytes())
}
