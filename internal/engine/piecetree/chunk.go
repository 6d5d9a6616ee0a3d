package piecetree

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the preferred size of a backing chunk in bytes.
// Inserts longer than this are stored in new original chunks instead of the
// accumulation chunk, and the builder reads input in blocks of this size.
const DefaultChunkSize = 65535

// ChunkKind identifies the backing store a piece refers to.
type ChunkKind uint8

const (
	// OriginalChunk is an immutable chunk created at load time or for a
	// large insert.
	OriginalChunk ChunkKind = iota

	// AccumulationChunk is the append-only chunk receiving typed text.
	AccumulationChunk
)

// String returns a short name for the kind.
func (k ChunkKind) String() string {
	switch k {
	case OriginalChunk:
		return "original"
	case AccumulationChunk:
		return "accumulation"
	default:
		return "unknown"
	}
}

// Cursor is a position inside a chunk: a zero-based line index into the
// chunk's line-start table and a byte column within that line.
type Cursor struct {
	Line   int
	Column int
}

// chunk is a backing text store plus the offsets at which its lines start.
type chunk struct {
	text       string
	lineStarts []int

	// sb backs text for the accumulation chunk. Strings previously taken
	// from it stay valid because written bytes are never modified.
	sb *strings.Builder
}

func newChunk(text string) *chunk {
	return &chunk{text: text, lineStarts: computeLineStarts(text)}
}

func newAccumulationChunk() *chunk {
	return &chunk{lineStarts: []int{0}, sb: &strings.Builder{}}
}

// computeLineStarts returns the offsets following each "\n", preceded by 0.
// Only "\n" ends a line: normalized text holds no "\r", and in text that
// is not normalized a "\r" is ordinary content, so splitting a piece
// between "\r" and "\n" never changes the line structure.
func computeLineStarts(text string) []int {
	starts := make([]int, 1, 1+strings.Count(text, "\n"))
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (c *chunk) len() int {
	return len(c.text)
}

// substring returns text[start:end].
func (c *chunk) substring(start, end int) string {
	return c.text[start:end]
}

// offset converts a cursor to a byte offset in the chunk.
func (c *chunk) offset(cur Cursor) int {
	return c.lineStarts[cur.Line] + cur.Column
}

// endCursor returns the cursor just past the last byte.
func (c *chunk) endCursor() Cursor {
	last := len(c.lineStarts) - 1
	return Cursor{Line: last, Column: len(c.text) - c.lineStarts[last]}
}

// cursorAt converts offset to a cursor, searching only lines lo..hi.
func (c *chunk) cursorAt(offset, lo, hi int) Cursor {
	// Largest line in [lo, hi] whose start is <= offset.
	n := sort.Search(hi-lo+1, func(i int) bool {
		return c.lineStarts[lo+i] > offset
	})
	line := lo + n - 1
	if line < lo {
		line = lo
	}
	return Cursor{Line: line, Column: offset - c.lineStarts[line]}
}

// append adds s to the accumulation chunk and returns the offset at which
// it was stored. The line-start table only grows.
func (c *chunk) append(s string) int {
	start := c.sb.Len()
	c.sb.WriteString(s)
	for _, ls := range computeLineStarts(s)[1:] {
		c.lineStarts = append(c.lineStarts, start+ls)
	}
	c.text = c.sb.String()
	return start
}

// splitText cuts s into parts of at most size bytes without splitting a
// UTF-8 sequence or a "\r\n" pair.
func splitText(s string, size int) []string {
	if size <= 0 || len(s) <= size {
		return []string{s}
	}
	parts := make([]string, 0, len(s)/size+1)
	for len(s) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut > 0 && s[cut-1] == '\r' && s[cut] == '\n' {
			cut--
		}
		if cut == 0 {
			// A single sequence longer than size; keep it whole.
			_, w := utf8.DecodeRuneInString(s)
			cut = w
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
