// Package errors defines the errors returned by the document store,
// the file system layer and the watcher.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrIsDirectory     = errors.New("is a directory")
	ErrFileTooLarge    = errors.New("file too large")
	ErrBinaryFile      = errors.New("binary file")
	ErrAlreadyOpen     = errors.New("document already open")
	ErrDocumentNotOpen = errors.New("document not open")
	ErrDocumentDirty   = errors.New("document has unsaved changes")
	ErrModifiedOnDisk  = errors.New("file changed on disk")
	ErrWatcherFailed   = errors.New("watcher failed")
	ErrClosed          = errors.New("closed")
)

// PathError records an error and the operation and file path that caused it.
type PathError struct {
	Op   string
	Path string
	Err  error
}

// NewPathError creates a PathError.
func NewPathError(op, path string, err error) *PathError {
	return &PathError{Op: op, Path: path, Err: err}
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PathError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err indicates a missing file or document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDirty reports whether err was caused by unsaved changes.
func IsDirty(err error) bool {
	return errors.Is(err, ErrDocumentDirty)
}
