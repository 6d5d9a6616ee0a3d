package buffer

import (
	"fmt"
	"sync/atomic"

	"github.com/dshills/piecebuf/internal/engine/piecetree"
)

// ByteOffset represents a byte position in the buffer.
// This is the fundamental position type, directly indexing into the text.
type ByteOffset = int64

// Position is a 1-based line and column. Column counts bytes.
type Position = piecetree.Position

// LineRange is the span between two positions.
type LineRange = piecetree.Range

// FormatPosition returns a human-readable representation of a position.
func FormatPosition(p Position) string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// ComparePositions returns -1 if a < b, 0 if a == b, 1 if a > b.
func ComparePositions(a, b Position) int {
	switch {
	case a.Line < b.Line:
		return -1
	case a.Line > b.Line:
		return 1
	case a.Column < b.Column:
		return -1
	case a.Column > b.Column:
		return 1
	}
	return 0
}

// RevisionID uniquely identifies a buffer revision.
// Each modification to the buffer creates a new revision.
type RevisionID uint64

// revisionCounter is used to generate unique revision IDs.
var revisionCounter uint64

// NewRevisionID generates a new unique revision ID.
// This is thread-safe using atomic operations.
func NewRevisionID() RevisionID {
	return RevisionID(atomic.AddUint64(&revisionCounter, 1))
}
