package piecetree

import "fmt"

// Piece references the range [Start, End) of one chunk.
type Piece struct {
	Kind  ChunkKind
	Chunk int // index of the original chunk; 0 for the accumulation chunk
	Start Cursor
	End   Cursor

	LineFeeds int
	Length    int
}

func (p Piece) String() string {
	return fmt.Sprintf("%s#%d[%d:%d-%d:%d] len=%d lf=%d",
		p.Kind, p.Chunk, p.Start.Line, p.Start.Column, p.End.Line, p.End.Column, p.Length, p.LineFeeds)
}

// chunkOf returns the chunk a piece refers to.
func (t *Tree) chunkOf(p Piece) *chunk {
	if p.Kind == AccumulationChunk {
		return t.accumulation
	}
	return t.originals[p.Chunk]
}

// makePiece builds a piece over [start, end) of the given chunk.
func (t *Tree) makePiece(kind ChunkKind, index int, start, end Cursor) Piece {
	p := Piece{Kind: kind, Chunk: index, Start: start, End: end}
	c := t.chunkOf(p)
	p.Length = c.offset(end) - c.offset(start)
	p.LineFeeds = end.Line - start.Line
	return p
}

// pieceText returns the text referenced by p.
func (t *Tree) pieceText(p Piece) string {
	c := t.chunkOf(p)
	start := c.offset(p.Start)
	return c.substring(start, start+p.Length)
}

// positionInPiece converts a byte offset relative to the start of p into a
// chunk cursor.
func (t *Tree) positionInPiece(p Piece, remainder int) Cursor {
	c := t.chunkOf(p)
	return c.cursorAt(c.offset(p.Start)+remainder, p.Start.Line, p.End.Line)
}

// accumulatedValue returns the length of p's text up to the start of its
// (index+1)-th line, or the whole length when p has fewer line feeds.
// A negative index yields 0.
func (t *Tree) accumulatedValue(p Piece, index int) int {
	if index < 0 {
		return 0
	}
	c := t.chunkOf(p)
	line := p.Start.Line + index + 1
	if line > p.End.Line {
		return p.Length
	}
	return c.lineStarts[line] - c.offset(p.Start)
}
