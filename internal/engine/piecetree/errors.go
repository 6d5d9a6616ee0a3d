package piecetree

import (
	"errors"
	"fmt"
)

// Errors carried by the panics of a Tree. Callers that cannot guarantee
// valid arguments should validate first, as the buffer package does.
var (
	// ErrOutOfRange indicates an offset or line outside the document.
	ErrOutOfRange = errors.New("piecetree: position out of range")

	// ErrCorrupted indicates a broken red-black or aggregate invariant.
	ErrCorrupted = errors.New("piecetree: tree invariant violated")
)

// RangeError describes a contract violation by the caller.
type RangeError struct {
	Op    string // operation name
	Kind  string // "offset", "line" or "column"
	Value int
	Limit int // largest valid value
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("piecetree: %s: %s %d out of range [%d, %d]",
		e.Op, e.Kind, e.Value, e.minimum(), e.Limit)
}

func (e *RangeError) minimum() int {
	if e.Kind == "offset" {
		return 0
	}
	return 1
}

// Unwrap returns ErrOutOfRange.
func (e *RangeError) Unwrap() error {
	return ErrOutOfRange
}

// InvariantError describes a structural inconsistency found by Validate.
type InvariantError struct {
	Node   int
	Reason string
}

func (e *InvariantError) Error() string {
	if e.Node == sentinel {
		return fmt.Sprintf("piecetree: %s", e.Reason)
	}
	return fmt.Sprintf("piecetree: node %d: %s", e.Node, e.Reason)
}

// Unwrap returns ErrCorrupted.
func (e *InvariantError) Unwrap() error {
	return ErrCorrupted
}
