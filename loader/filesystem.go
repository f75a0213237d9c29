// Package loader provides filesystem abstractions and .bzl module loading.
//
// This package implements the loading of Starlark .bzl files, following
// the semantics of Bazel's BzlLoadFunction.java and BzlLoadValue.java.
//
// Reference: bazel/src/main/java/com/google/devtools/build/lib/skyframe/BzlLoadFunction.java
package loader

import (
	"io/fs"
	"path/filepath"
	"sort"
	"time"
)

// MemoryFileSystem implements FileSystem using an in-memory map.
// Useful for tests and for embedding workspaces.
type MemoryFileSystem struct {
	files  map[string][]byte
	mtimes map[string]time.Time
	seq    int64
}

// NewMemoryFileSystem creates an empty in-memory filesystem.
func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{
		files:  make(map[string][]byte),
		mtimes: make(map[string]time.Time),
	}
}

// AddFile adds a file to the in-memory filesystem. Re-adding a path advances
// its modification time, so callers keyed on (path, mtime) observe the change.
func (f *MemoryFileSystem) AddFile(path string, content []byte) {
	f.seq++
	f.files[path] = content
	f.mtimes[path] = time.Unix(0, f.seq)
}

// RemoveFile removes a file from the in-memory filesystem.
func (f *MemoryFileSystem) RemoveFile(path string) {
	delete(f.files, path)
	delete(f.mtimes, path)
}

// ReadFile reads a file from memory.
func (f *MemoryFileSystem) ReadFile(path string) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fs.ErrNotExist}
	}
	return content, nil
}

// Stat returns file info for an in-memory file.
func (f *MemoryFileSystem) Stat(path string) (fs.FileInfo, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return &memFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(content)),
		modTime: f.mtimes[path],
	}, nil
}

// ListFiles returns every file path in sorted order.
func (f *MemoryFileSystem) ListFiles() []string {
	paths := make([]string, 0, len(f.files))
	for path := range f.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Glob matches files in the in-memory filesystem.
// Supports basic glob patterns.
func (f *MemoryFileSystem) Glob(pattern string) ([]string, error) {
	var matches []string
	for path := range f.files {
		match, err := filepath.Match(pattern, path)
		if err != nil {
			return nil, err
		}
		if match {
			matches = append(matches, path)
		}
	}
	return matches, nil
}

// memFileInfo implements fs.FileInfo for in-memory files.
type memFileInfo struct {
	name    string
	size    int64
	modTime time.Time
}

func (fi *memFileInfo) Name() string       { return fi.name }
func (fi *memFileInfo) Size() int64        { return fi.size }
func (fi *memFileInfo) Mode() fs.FileMode  { return 0644 }
func (fi *memFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *memFileInfo) IsDir() bool        { return false }
func (fi *memFileInfo) Sys() any           { return nil }

// Join implements FileSystem.Join for MemoryFileSystem.
func (f *MemoryFileSystem) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// Abs implements FileSystem.Abs for MemoryFileSystem.
func (f *MemoryFileSystem) Abs(path string) (string, error) {
	// In-memory paths are already "absolute" in the sense that they're complete
	return path, nil
}
