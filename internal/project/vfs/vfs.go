// Package vfs provides the file system abstraction documents are loaded
// from and saved to.
//
// OSFS talks to the operating system; MemFS keeps everything in memory and
// is used by tests and by callers that stage documents without touching disk.
package vfs

import (
	"io"
	"io/fs"
	"time"
)

// VFS is the set of file operations the document store needs.
type VFS interface {
	// Open opens a file for reading.
	Open(path string) (io.ReadCloser, error)

	// Create creates or truncates a file for writing.
	Create(path string) (io.WriteCloser, error)

	// Stat returns file information.
	Stat(path string) (FileInfo, error)

	// Rename renames (moves) a file, replacing any existing target.
	Rename(oldPath, newPath string) error

	// Remove removes a file.
	Remove(path string) error

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm fs.FileMode) error

	// Abs returns the absolute, cleaned path.
	Abs(path string) (string, error)

	// Exists returns true if the path exists.
	Exists(path string) bool
}

// FileInfo describes a file.
type FileInfo struct {
	path    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
}

// NewFileInfo creates a FileInfo from the given parameters.
func NewFileInfo(path string, size int64, mode fs.FileMode, modTime time.Time) FileInfo {
	return FileInfo{path: path, size: size, mode: mode, modTime: modTime}
}

// Path returns the full path.
func (fi FileInfo) Path() string { return fi.path }

// Size returns the file size in bytes.
func (fi FileInfo) Size() int64 { return fi.size }

// Mode returns the file mode.
func (fi FileInfo) Mode() fs.FileMode { return fi.mode }

// ModTime returns the modification time.
func (fi FileInfo) ModTime() time.Time { return fi.modTime }

// IsDir returns true if this is a directory.
func (fi FileInfo) IsDir() bool { return fi.mode.IsDir() }

// IsRegular returns true if this is a regular file.
func (fi FileInfo) IsRegular() bool { return fi.mode.IsRegular() }

// WriteFileAtomic writes the content produced by write to a temporary file
// next to path and renames it over path once write succeeds.
func WriteFileAtomic(v VFS, path string, write func(io.Writer) error) error {
	tmp := path + ".piecebuf-tmp"
	w, err := v.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		_ = w.Close()
		_ = v.Remove(tmp)
		return err
	}
	if err := w.Close(); err != nil {
		_ = v.Remove(tmp)
		return err
	}
	return v.Rename(tmp, path)
}
