// BUILD file discovery over the workspace filesystem.
package analyzer

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// fileLister is the optional enumeration capability of a FileSystem. The
// in-memory filesystem implements it; the OS filesystem is walked instead.
type fileLister interface {
	ListFiles() []string
}

// DiscoverBuildFiles returns the workspace's BUILD files as workspace-relative
// paths in sorted order. A directory containing both BUILD.bazel and BUILD
// contributes only BUILD.bazel, matching Bazel's preference.
func (a *Analyzer) DiscoverBuildFiles() ([]string, error) {
	byDir := make(map[string]string)

	if lister, ok := a.fsys.(fileLister); ok {
		for _, path := range lister.ListFiles() {
			recordBuildFile(byDir, path)
		}
	} else {
		root := a.root
		if root == "" {
			root = "."
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && skipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			recordBuildFile(byDir, rel)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("discovering BUILD files: %w", err)
		}
	}

	files := make([]string, 0, len(byDir))
	for _, path := range byDir {
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

// recordBuildFile keeps at most one BUILD file per directory, preferring
// BUILD.bazel over BUILD.
func recordBuildFile(byDir map[string]string, path string) {
	base := filepath.Base(path)
	if base != "BUILD" && base != "BUILD.bazel" {
		return
	}
	dir := filepath.Dir(path)
	if existing, ok := byDir[dir]; ok && filepath.Base(existing) == "BUILD.bazel" {
		return
	}
	byDir[dir] = path
}

// skipDir reports directories never considered part of the workspace:
// hidden directories and the bazel-* convenience symlinks.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "bazel-")
}
