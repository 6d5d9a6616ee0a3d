package buffer

import (
	"errors"
	"io"
	"iter"
	"strings"
	"sync"

	"github.com/dshills/piecebuf/internal/engine/piecetree"
)

// Errors returned by buffer operations.
var (
	ErrOffsetOutOfRange = errors.New("offset out of range")
	ErrLineOutOfRange   = errors.New("line out of range")
	ErrRangeInvalid     = errors.New("invalid range")
	ErrEditsOverlap     = errors.New("edits overlap")
	ErrEditsOrder       = errors.New("edits are not in reverse order")
)

// Buffer wraps a piece tree with validation and locking.
// It provides the primary interface for text manipulation.
// All methods are thread-safe.
type Buffer struct {
	mu sync.RWMutex

	// lookupMu serializes readers whose queries update the tree's search
	// cache or line memo. Writers hold mu exclusively and skip it.
	lookupMu sync.Mutex

	tree       *piecetree.Tree
	revisionID RevisionID
	lineEnding LineEnding
	hadBOM     bool

	fixedEnding bool // lineEnding set by option, not detected
	normalize   bool
	blockSize   int
	treeOpts    []piecetree.Option
}

// New creates a new empty buffer.
func New(opts ...Option) *Buffer {
	b := newBuffer(opts)
	b.tree = piecetree.New(nil, b.normalize, b.treeOpts...)
	return b
}

func newBuffer(opts []Option) *Buffer {
	b := &Buffer{
		revisionID: NewRevisionID(),
		lineEnding: LineEndingLF,
		normalize:  true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewFromString creates a buffer with initial content. Unless disabled with
// WithNormalizeEOL, line endings are normalized to "\n" and the dominant
// style is remembered for WriteTo.
func NewFromString(s string, opts ...Option) *Buffer {
	b, _ := NewFromReader(strings.NewReader(s), opts...)
	return b
}

// NewFromReader creates a buffer from UTF-8 text read in fixed-size blocks.
// A leading byte order mark is stripped and line endings are normalized.
func NewFromReader(r io.Reader, opts ...Option) (*Buffer, error) {
	b := newBuffer(opts)
	builder := piecetree.NewBuilder(
		piecetree.WithNormalizeEOL(b.normalize),
		piecetree.WithBlockSize(b.blockSize),
	)
	if _, err := builder.ReadFrom(r); err != nil {
		return nil, err
	}
	b.tree = builder.Build(b.treeOpts...)
	b.hadBOM = builder.HadBOM()
	if !b.fixedEnding {
		b.lineEnding = chooseLineEnding(builder.LineEndings())
	}
	return b, nil
}

// Read Operations

// Text returns the full buffer content as a string.
// For large buffers, prefer WriteTo or Lines.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tree.Content()
}

// TextRange returns text in the given byte range.
func (b *Buffer) TextRange(start, end ByteOffset) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.validRange(start, end) {
		return "", ErrRangeInvalid
	}
	b.lookupMu.Lock()
	defer b.lookupMu.Unlock()
	return b.tree.Slice(int(start), int(end)), nil
}

// Len returns the total byte length of the buffer.
func (b *Buffer) Len() ByteOffset {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return ByteOffset(b.tree.TextLength())
}

// IsEmpty returns true if the buffer is empty.
func (b *Buffer) IsEmpty() bool {
	return b.Len() == 0
}

// LineCount returns the number of lines.
func (b *Buffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tree.LineCount()
}

// Line returns line lineNo (1-based) including its terminator.
func (b *Buffer) Line(lineNo int) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if lineNo < 1 || lineNo > b.tree.LineCount() {
		return "", ErrLineOutOfRange
	}
	b.lookupMu.Lock()
	defer b.lookupMu.Unlock()
	return b.tree.LineContent(lineNo), nil
}

// LineText returns line lineNo (1-based) without its terminator.
func (b *Buffer) LineText(lineNo int) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if lineNo < 1 || lineNo > b.tree.LineCount() {
		return "", ErrLineOutOfRange
	}
	b.lookupMu.Lock()
	defer b.lookupMu.Unlock()
	return b.tree.LineText(lineNo), nil
}

// LineLen returns the length of line lineNo in bytes, without terminator.
func (b *Buffer) LineLen(lineNo int) (int, error) {
	line, err := b.LineText(lineNo)
	return len(line), err
}

// LinesRange returns lines first through last inclusive, each with its
// terminator.
func (b *Buffer) LinesRange(first, last int) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if first < 1 || last > b.tree.LineCount() {
		return nil, ErrLineOutOfRange
	}
	if first > last {
		return nil, ErrRangeInvalid
	}
	b.lookupMu.Lock()
	defer b.lookupMu.Unlock()
	lines := make([]string, 0, last-first+1)
	for n := first; n <= last; n++ {
		lines = append(lines, b.tree.LineContent(n))
	}
	return lines, nil
}

// Lines returns an iterator over all lines with their 1-based numbers.
// The read lock is held for the duration of the loop, so the loop body
// must not modify the buffer.
func (b *Buffer) Lines() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		b.mu.RLock()
		defer b.mu.RUnlock()
		for n, line := range b.tree.Lines() {
			if !yield(n, line) {
				return
			}
		}
	}
}

// ContentInRange returns the text between two positions. Columns past the
// end of a line clamp to the line end.
func (b *Buffer) ContentInRange(r LineRange) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.validPosition(r.Start) || !b.validPosition(r.End) {
		return "", ErrLineOutOfRange
	}
	if ComparePositions(r.Start, r.End) > 0 {
		return "", ErrRangeInvalid
	}
	b.lookupMu.Lock()
	defer b.lookupMu.Unlock()
	return b.tree.ContentInRange(r), nil
}

// Coordinate Conversion

// OffsetAt converts a position to a byte offset.
func (b *Buffer) OffsetAt(pos Position) (ByteOffset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.validPosition(pos) {
		return 0, ErrLineOutOfRange
	}
	b.lookupMu.Lock()
	defer b.lookupMu.Unlock()
	return ByteOffset(b.tree.OffsetAt(pos)), nil
}

// PositionAt converts a byte offset to a position.
func (b *Buffer) PositionAt(offset ByteOffset) (Position, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.validOffset(offset) {
		return Position{}, ErrOffsetOutOfRange
	}
	return b.tree.PositionAt(int(offset)), nil
}

// Write Operations

// Insert inserts text at the given offset.
// Returns the end offset of the inserted text after normalization.
func (b *Buffer) Insert(offset ByteOffset, text string) (ByteOffset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.validOffset(offset) {
		return 0, ErrOffsetOutOfRange
	}
	if text == "" {
		return offset, nil
	}
	n := b.replace(int(offset), int(offset), text)
	return offset + ByteOffset(n), nil
}

// Delete removes text in the given range.
func (b *Buffer) Delete(start, end ByteOffset) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.validRange(start, end) {
		return ErrRangeInvalid
	}
	if start == end {
		return nil
	}
	b.replace(int(start), int(end), "")
	return nil
}

// DeleteAfter removes count bytes starting at offset. The span is clamped
// to the end of the buffer; a non-positive count does nothing.
func (b *Buffer) DeleteAfter(offset ByteOffset, count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.validOffset(offset) {
		return ErrOffsetOutOfRange
	}
	if count <= 0 || int(offset) == b.tree.TextLength() {
		return nil
	}
	b.tree.DeleteAfter(int(offset), count)
	b.revisionID = NewRevisionID()
	return nil
}

// DeleteBefore removes count bytes ending at offset. The span is clamped
// to the start of the buffer; a non-positive count does nothing.
func (b *Buffer) DeleteBefore(offset ByteOffset, count int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.validOffset(offset) {
		return ErrOffsetOutOfRange
	}
	if count <= 0 || offset == 0 {
		return nil
	}
	b.tree.DeleteBefore(int(offset), count)
	b.revisionID = NewRevisionID()
	return nil
}

// Replace replaces text in the given range with new text.
// Returns the end offset of the replacement text.
func (b *Buffer) Replace(start, end ByteOffset, text string) (ByteOffset, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.validRange(start, end) {
		return 0, ErrRangeInvalid
	}
	n := b.replace(int(start), int(end), text)
	return start + ByteOffset(n), nil
}

// replace swaps [start, end) for text and returns the stored length of
// text. The caller holds the write lock and has validated the range.
func (b *Buffer) replace(start, end int, text string) int {
	if start == end && text == "" {
		return 0
	}
	b.tree.DeleteAfter(start, end-start)
	before := b.tree.TextLength()
	b.tree.Insert(start, text)
	b.revisionID = NewRevisionID()
	return b.tree.TextLength() - before
}

// Buffer State

// RevisionID returns the current revision ID.
func (b *Buffer) RevisionID() RevisionID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.revisionID
}

// LineEnding returns the line ending written by WriteTo.
func (b *Buffer) LineEnding() LineEnding {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lineEnding
}

// SetLineEnding sets the line ending written by WriteTo.
// Stored text always uses "\n".
func (b *Buffer) SetLineEnding(le LineEnding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lineEnding = le
}

// HadBOM reports whether the loaded text started with a byte order mark.
func (b *Buffer) HadBOM() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hadBOM
}

// Stats returns the internal statistics of the underlying tree.
func (b *Buffer) Stats() piecetree.Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.lookupMu.Lock()
	defer b.lookupMu.Unlock()
	return b.tree.Stats()
}

// Validate checks the structural invariants of the underlying tree.
func (b *Buffer) Validate() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tree.Validate()
}

// WriteTo writes the buffer content to w using the buffer's line ending.
// Text kept with its original line endings is written unchanged.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.lineEnding == LineEndingLF || !b.tree.EOLNormalized() {
		return b.tree.WriteTo(w)
	}
	seq := b.lineEnding.Sequence()
	var total int64
	for _, line := range b.tree.Lines() {
		if body, ok := strings.CutSuffix(line, "\n"); ok {
			line = body + seq
		}
		n, err := io.WriteString(w, line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (b *Buffer) validOffset(offset ByteOffset) bool {
	return offset >= 0 && offset <= ByteOffset(b.tree.TextLength())
}

func (b *Buffer) validRange(start, end ByteOffset) bool {
	return start >= 0 && start <= end && end <= ByteOffset(b.tree.TextLength())
}

func (b *Buffer) validPosition(p Position) bool {
	return p.Line >= 1 && p.Line <= b.tree.LineCount() && p.Column >= 1
}
