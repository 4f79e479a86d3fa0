package service

import (
	"strings"
	"unicode/utf8"

	"github.com/noah-isme/sma-drive-api/internal/models"
	"github.com/noah-isme/sma-drive-api/internal/repository"
	appErrors "github.com/noah-isme/sma-drive-api/pkg/errors"
)

const maxNameLength = 255

// ComputePath returns the materialized path of a folder called name whose
// parent has parentPath. An empty parentPath means the drive root.
func ComputePath(parentPath, name string) string {
	return parentPath + "/" + name
}

// RebasePath replaces oldPrefix with newPrefix when path equals oldPrefix or
// lies beneath it. ok is false when path is outside the prefix.
func RebasePath(path, oldPrefix, newPrefix string) (rebased string, ok bool) {
	if path == oldPrefix {
		return newPrefix, true
	}
	if strings.HasPrefix(path, oldPrefix+"/") {
		return newPrefix + path[len(oldPrefix):], true
	}
	return path, false
}

// IsSameOrDescendantPath reports whether candidate is ancestor itself or sits
// below it.
func IsSameOrDescendantPath(candidate, ancestor string) bool {
	_, ok := RebasePath(candidate, ancestor, ancestor)
	return ok
}

// normalizeName trims a folder or file name and rejects names that cannot be
// used as a path segment.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", appErrors.Clone(appErrors.ErrValidation, "name is required")
	case name == "." || name == "..":
		return "", appErrors.Clone(appErrors.ErrValidation, "name is reserved")
	case strings.ContainsAny(name, "/\x00"):
		return "", appErrors.Clone(appErrors.ErrValidation, "name must not contain '/'")
	case utf8.RuneCountInString(name) > maxNameLength:
		return "", appErrors.Clone(appErrors.ErrValidation, "name is too long")
	}
	return name, nil
}

// planPaths recomputes the path of root and every folder of the subtree from
// the parent chain, returning updates for rows whose stored path differs.
// folders must be in pre-order so parents precede their children.
func planPaths(root *models.Folder, rootPath string, folders []models.Folder) []repository.PathUpdate {
	updates := []repository.PathUpdate{{ID: root.ID, OldPath: root.Path, NewPath: rootPath}}
	computed := map[string]string{root.ID: rootPath}
	for _, folder := range folders {
		if folder.ParentID == nil {
			continue
		}
		parentPath, ok := computed[*folder.ParentID]
		if !ok {
			continue
		}
		newPath := ComputePath(parentPath, folder.Name)
		computed[folder.ID] = newPath
		if newPath != folder.Path {
			updates = append(updates, repository.PathUpdate{ID: folder.ID, OldPath: folder.Path, NewPath: newPath})
		}
	}
	return updates
}
