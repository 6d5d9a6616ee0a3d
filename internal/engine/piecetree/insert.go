package piecetree

import "strings"

// Insert inserts text before the byte currently at offset. Empty text is a
// no-op. It panics with a *RangeError if offset is outside [0, TextLength()].
func (t *Tree) Insert(offset int, text string) {
	t.checkOffset("Insert", offset)
	if text == "" {
		return
	}
	if t.eolNormalized {
		text = normalizeEOL(text)
	}
	t.resetLineMemo()

	if t.root == sentinel {
		pieces := t.createPieces(text)
		x := t.rbInsertLeft(sentinel, pieces[0])
		for _, p := range pieces[1:] {
			x = t.rbInsertRight(x, p)
		}
		t.afterEdit(offset)
		return
	}

	x, _, remainder := t.nodeAt(offset)
	switch {
	case remainder == 0:
		if prev := t.prev(x); prev != sentinel && t.canAppend(prev, text) {
			t.appendToNode(prev, text)
			break
		}
		t.insertLeftOf(x, text)
	case remainder == t.nodes[x].piece.Length:
		// Only reachable at the end of the document.
		if t.canAppend(x, text) {
			t.appendToNode(x, text)
			break
		}
		t.insertRightOf(x, text)
	default:
		t.insertInside(x, remainder, text)
	}
	t.afterEdit(offset)
}

// canAppend reports whether text can be appended in place to x's piece:
// the piece must end exactly where the accumulation chunk ends.
func (t *Tree) canAppend(x int, text string) bool {
	p := t.nodes[x].piece
	return p.Kind == AccumulationChunk &&
		p.End == t.lastEditEnd &&
		len(text) < t.chunkSize
}

// appendToNode grows x's piece by text stored in the accumulation chunk.
func (t *Tree) appendToNode(x int, text string) {
	t.accumulation.append(text)
	end := t.accumulation.endCursor()
	t.lastEditEnd = end

	p := &t.nodes[x].piece
	lfDelta := (end.Line - p.Start.Line) - p.LineFeeds
	p.End = end
	p.Length += len(text)
	p.LineFeeds += lfDelta
	t.updateTreeMetadata(x, len(text), lfDelta)
}

// createPieces stores text and returns the pieces referencing it. Text
// longer than the chunk size becomes new original chunks; shorter text is
// appended to the accumulation chunk.
func (t *Tree) createPieces(text string) []Piece {
	if len(text) > t.chunkSize {
		parts := splitText(text, t.chunkSize)
		pieces := make([]Piece, 0, len(parts))
		for _, s := range parts {
			c := newChunk(s)
			t.originals = append(t.originals, c)
			pieces = append(pieces, t.makePiece(OriginalChunk, len(t.originals)-1, Cursor{}, c.endCursor()))
		}
		return pieces
	}

	acc := t.accumulation
	offset := acc.append(text)
	end := acc.endCursor()
	start := acc.cursorAt(offset, 0, end.Line)
	t.lastEditEnd = end
	return []Piece{t.makePiece(AccumulationChunk, 0, start, end)}
}

func (t *Tree) insertLeftOf(x int, text string) {
	pieces := t.createPieces(text)
	z := t.rbInsertLeft(x, pieces[len(pieces)-1])
	for i := len(pieces) - 2; i >= 0; i-- {
		z = t.rbInsertLeft(z, pieces[i])
	}
}

func (t *Tree) insertRightOf(x int, text string) {
	pieces := t.createPieces(text)
	z := x
	for _, p := range pieces {
		z = t.rbInsertRight(z, p)
	}
}

// insertInside splits x at remainder and places text between the halves.
func (t *Tree) insertInside(x, remainder int, text string) {
	p := t.nodes[x].piece
	split := t.positionInPiece(p, remainder)
	right := t.makePiece(p.Kind, p.Chunk, split, p.End)

	t.trimTail(x, split)
	pieces := t.createPieces(text)
	if right.Length > 0 {
		t.rbInsertRight(x, right)
	}
	z := x
	for _, np := range pieces {
		z = t.rbInsertRight(z, np)
	}
}

// normalizeEOL converts "\r\n" and lone "\r" to "\n".
func normalizeEOL(s string) string {
	if strings.IndexByte(s, '\r') < 0 {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
