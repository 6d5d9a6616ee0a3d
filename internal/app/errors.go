package app

import (
	"errors"
	"strings"
)

// Application errors.
var (
	// ErrAlreadyRunning indicates the application is already running.
	ErrAlreadyRunning = errors.New("application already running")

	// ErrNotRunning indicates the application is not running.
	ErrNotRunning = errors.New("application not running")

	// ErrUnsavedChanges indicates there are unsaved changes.
	ErrUnsavedChanges = errors.New("unsaved changes")

	// ErrInitialization indicates an initialization failure.
	ErrInitialization = errors.New("initialization failed")

	// ErrShutdownTimeout indicates shutdown timed out.
	ErrShutdownTimeout = errors.New("shutdown timed out")
)

// OperationError is a failed operation on a document or script, such as
// "script /work/fix.lua (/work/a.txt): ...".
type OperationError struct {
	Op      string // "open", "save", "script", ...
	Target  string // path or script name
	Context string // document the operation ran against, if any
	Err     error
}

// NewOperationError creates an OperationError.
func NewOperationError(op, target string, err error) *OperationError {
	return &OperationError{Op: op, Target: target, Err: err}
}

// WithContext records the document the operation ran against. It is safe
// to call on a nil receiver.
func (e *OperationError) WithContext(ctx string) *OperationError {
	if e != nil {
		e.Context = ctx
	}
	return e
}

func (e *OperationError) Error() string {
	if e == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(e.Op)
	if e.Target != "" {
		sb.WriteString(" " + e.Target)
	}
	if e.Context != "" {
		sb.WriteString(" (" + e.Context + ")")
	}
	if e.Err != nil {
		sb.WriteString(": " + e.Err.Error())
	}
	return sb.String()
}

func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ComponentError is a failure while setting up or tearing down one of the
// application's services. Every ComponentError matches ErrInitialization.
type ComponentError struct {
	Component string // "config", "watcher", "sync", ...
	Action    string
	Err       error
}

// NewComponentError creates a ComponentError.
func NewComponentError(component, action string, err error) *ComponentError {
	return &ComponentError{Component: component, Action: action, Err: err}
}

func (e *ComponentError) Error() string {
	if e == nil {
		return ""
	}
	parts := []string{e.Component}
	if e.Action != "" {
		parts = append(parts, e.Action)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ComponentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ComponentError) Is(target error) bool {
	return e != nil && target == ErrInitialization
}
