package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/noah-isme/sma-drive-api/internal/models"
)

const defaultMaxTreeNodes = 100000

// ErrTreeCorrupted is returned when a walk meets a folder twice or exceeds the
// node cap, which only happens on a cyclic or runaway tree. Depth is not
// bounded: the walk keeps its own stack.
var ErrTreeCorrupted = errors.New("folder tree is corrupted")

type treeFolderReader interface {
	ListChildren(ctx context.Context, parentID string) ([]models.Folder, error)
}

type treeFileReader interface {
	ListByFolder(ctx context.Context, folderID string) ([]models.File, error)
}

// Subtree is the result of one walk. Folders excludes Root and is in
// pre-order with siblings sorted by (name, id). Trashed rows are included.
type Subtree struct {
	Root    models.Folder
	Folders []models.Folder
	Files   []models.File
}

// FolderIDs returns the root id followed by every descendant id.
func (s *Subtree) FolderIDs() []string {
	ids := make([]string, 0, len(s.Folders)+1)
	ids = append(ids, s.Root.ID)
	for _, folder := range s.Folders {
		ids = append(ids, folder.ID)
	}
	return ids
}

// FileIDs returns the ids of every file in the subtree.
func (s *Subtree) FileIDs() []string {
	ids := make([]string, 0, len(s.Files))
	for _, file := range s.Files {
		ids = append(ids, file.ID)
	}
	return ids
}

// Bytes sums the size of every file, live or trashed.
func (s *Subtree) Bytes() int64 {
	var total int64
	for _, file := range s.Files {
		total += file.FileSize
	}
	return total
}

// Contains reports whether folderID is the root or one of its descendants.
func (s *Subtree) Contains(folderID string) bool {
	if s.Root.ID == folderID {
		return true
	}
	for _, folder := range s.Folders {
		if folder.ID == folderID {
			return true
		}
	}
	return false
}

// Live prunes trashed folders (with everything below them) and trashed files.
func (s *Subtree) Live() *Subtree {
	live := &Subtree{Root: s.Root}
	keep := map[string]bool{s.Root.ID: true}
	for _, folder := range s.Folders {
		if folder.IsTrashed() || folder.ParentID == nil || !keep[*folder.ParentID] {
			continue
		}
		keep[folder.ID] = true
		live.Folders = append(live.Folders, folder)
	}
	for _, file := range s.Files {
		if file.IsTrashed() || file.FolderID == nil || !keep[*file.FolderID] {
			continue
		}
		live.Files = append(live.Files, file)
	}
	return live
}

// TreeWalker enumerates the descendants of a folder with an explicit stack.
type TreeWalker struct {
	folders  treeFolderReader
	files    treeFileReader
	maxNodes int
}

// NewTreeWalker constructs a walker with the default size guard.
func NewTreeWalker(folders treeFolderReader, files treeFileReader) *TreeWalker {
	return &TreeWalker{folders: folders, files: files, maxNodes: defaultMaxTreeNodes}
}

// Descendants returns every folder below root in deterministic pre-order.
func (w *TreeWalker) Descendants(ctx context.Context, root *models.Folder) ([]models.Folder, error) {
	subtree, err := w.walk(ctx, root, false)
	if err != nil {
		return nil, err
	}
	return subtree.Folders, nil
}

// FilesUnder returns every file whose folder is root or one of its descendants.
func (w *TreeWalker) FilesUnder(ctx context.Context, root *models.Folder) ([]models.File, error) {
	subtree, err := w.walk(ctx, root, true)
	if err != nil {
		return nil, err
	}
	return subtree.Files, nil
}

// Subtree returns folders and files below root in one walk.
func (w *TreeWalker) Subtree(ctx context.Context, root *models.Folder) (*Subtree, error) {
	return w.walk(ctx, root, true)
}

type walkFrame struct {
	folder models.Folder
	depth  int
}

func (w *TreeWalker) walk(ctx context.Context, root *models.Folder, withFiles bool) (*Subtree, error) {
	subtree := &Subtree{Root: *root}
	visited := map[string]bool{root.ID: true}
	stack := []walkFrame{{folder: *root}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if frame.depth > 0 {
			subtree.Folders = append(subtree.Folders, frame.folder)
		}
		if withFiles {
			files, err := w.files.ListByFolder(ctx, frame.folder.ID)
			if err != nil {
				return nil, fmt.Errorf("walk files of %s: %w", frame.folder.ID, err)
			}
			subtree.Files = append(subtree.Files, files...)
		}

		children, err := w.folders.ListChildren(ctx, frame.folder.ID)
		if err != nil {
			return nil, fmt.Errorf("walk children of %s: %w", frame.folder.ID, err)
		}
		// Push in reverse so the first child by (name, id) is popped first.
		for i := len(children) - 1; i >= 0; i-- {
			child := children[i]
			if visited[child.ID] {
				return nil, fmt.Errorf("%w: folder %s reached twice", ErrTreeCorrupted, child.ID)
			}
			visited[child.ID] = true
			if len(visited) > w.maxNodes {
				return nil, fmt.Errorf("%w: more than %d folders below %s", ErrTreeCorrupted, w.maxNodes, root.ID)
			}
			stack = append(stack, walkFrame{folder: child, depth: frame.depth + 1})
		}
	}
	return subtree, nil
}
