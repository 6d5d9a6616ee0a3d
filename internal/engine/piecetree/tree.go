package piecetree

import (
	"fmt"
	"strings"
)

// Tree is a piece table indexed by a red-black tree.
//
// The zero value is not usable; create trees with New or a Builder.
type Tree struct {
	nodes []node // arena; nodes[0] is the sentinel
	free  []int
	root  int

	originals    []*chunk
	accumulation *chunk
	cache        *searchCache

	length    int
	lineCount int

	// lastEditEnd is the end of the accumulation chunk after the last
	// append. A piece ending here can grow in place.
	lastEditEnd Cursor

	// lastLine memoizes the most recent LineContent result.
	lastLine struct {
		number int
		text   string
	}

	eolNormalized   bool
	chunkSize       int
	cacheSize       int
	checkInvariants bool
}

// Position is a 1-based line and column. Columns count bytes.
type Position struct {
	Line   int
	Column int
}

// Range is the span between two positions, Start inclusive, End exclusive.
type Range struct {
	Start Position
	End   Position
}

// New creates a tree whose content is the concatenation of chunks.
// eolNormalized records that every line ending in chunks is "\n"; inserts
// into a normalized tree are normalized the same way.
func New(chunks []string, eolNormalized bool, opts ...Option) *Tree {
	t := &Tree{
		nodes:         make([]node, 1, 1+len(chunks)),
		root:          sentinel,
		eolNormalized: eolNormalized,
		chunkSize:     DefaultChunkSize,
		cacheSize:     DefaultSearchCacheSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.cache = newSearchCache(t.cacheSize)
	t.accumulation = newAccumulationChunk()

	last := sentinel
	for _, s := range chunks {
		if s == "" {
			continue
		}
		c := newChunk(s)
		t.originals = append(t.originals, c)
		p := t.makePiece(OriginalChunk, len(t.originals)-1, Cursor{}, c.endCursor())
		last = t.rbInsertRight(last, p)
	}
	t.computeBufferMetadata()
	return t
}

// NewFromString creates a tree holding s.
func NewFromString(s string, opts ...Option) *Tree {
	return New([]string{s}, !strings.ContainsRune(s, '\r'), opts...)
}

// TextLength returns the document length in bytes.
func (t *Tree) TextLength() int {
	return t.length
}

// LineCount returns the number of lines, one more than the line feed count.
func (t *Tree) LineCount() int {
	return t.lineCount
}

// EOLNormalized reports whether the tree holds only "\n" line endings.
func (t *Tree) EOLNormalized() bool {
	return t.eolNormalized
}

// PieceCount returns the number of pieces in the tree.
func (t *Tree) PieceCount() int {
	return len(t.nodes) - 1 - len(t.free)
}

// computeBufferMetadata recomputes the document totals from the right spine.
func (t *Tree) computeBufferMetadata() {
	length, lf := 0, 0
	for x := t.root; x != sentinel; x = t.nodes[x].right {
		n := &t.nodes[x]
		length += n.sizeLeft + n.piece.Length
		lf += n.lfLeft + n.piece.LineFeeds
	}
	t.length = length
	t.lineCount = lf + 1
}

// afterEdit refreshes derived state after a mutation at offset.
func (t *Tree) afterEdit(offset int) {
	t.cache.validate(offset)
	t.computeBufferMetadata()
	t.resetLineMemo()
	if t.checkInvariants {
		if err := t.Validate(); err != nil {
			panic(err)
		}
	}
}

func (t *Tree) resetLineMemo() {
	t.lastLine.number = 0
	t.lastLine.text = ""
}

func (t *Tree) checkOffset(op string, offset int) {
	if offset < 0 || offset > t.length {
		panic(&RangeError{Op: op, Kind: "offset", Value: offset, Limit: t.length})
	}
}

func (t *Tree) checkLine(op string, lineNo int) {
	if lineNo < 1 || lineNo > t.lineCount {
		panic(&RangeError{Op: op, Kind: "line", Value: lineNo, Limit: t.lineCount})
	}
}

// String returns a debug dump of the pieces in document order.
func (t *Tree) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tree{len=%d lines=%d pieces=%d}", t.length, t.lineCount, t.PieceCount())
	for x := t.first(); x != sentinel; x = t.next(x) {
		sb.WriteString("\n  ")
		sb.WriteString(t.nodes[x].piece.String())
	}
	return sb.String()
}

// first returns the leftmost node, or the sentinel for an empty tree.
func (t *Tree) first() int {
	if t.root == sentinel {
		return sentinel
	}
	return t.leftmost(t.root)
}

// Stats describes the internal shape of a tree.
type Stats struct {
	Pieces           int
	OriginalChunks   int
	AccumulationSize int
	CachedLookups    int
	Height           int
}

// Stats returns the current internal statistics.
func (t *Tree) Stats() Stats {
	return Stats{
		Pieces:           t.PieceCount(),
		OriginalChunks:   len(t.originals),
		AccumulationSize: t.accumulation.len(),
		CachedLookups:    t.cache.len(),
		Height:           t.height(t.root),
	}
}

func (t *Tree) height(x int) int {
	if x == sentinel {
		return 0
	}
	return 1 + max(t.height(t.nodes[x].left), t.height(t.nodes[x].right))
}
