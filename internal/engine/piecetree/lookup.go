package piecetree

// nodeAt resolves offset to the node whose piece contains it. An offset on
// a piece boundary resolves to the start of the right-hand piece, except at
// the end of the document where the last piece is returned with remainder
// equal to its length. Returns the sentinel for an empty tree.
func (t *Tree) nodeAt(offset int) (x, nodeStart, remainder int) {
	if e, ok := t.cache.get(t.nodes, offset); ok {
		return e.node, e.start, offset - e.start
	}

	x = t.root
	for x != sentinel {
		n := &t.nodes[x]
		switch {
		case offset < n.sizeLeft:
			x = n.left
		case offset < n.sizeLeft+n.piece.Length || n.right == sentinel:
			nodeStart += n.sizeLeft
			t.cache.set(cacheEntry{node: x, start: nodeStart})
			return x, nodeStart, offset - n.sizeLeft
		default:
			offset -= n.sizeLeft + n.piece.Length
			nodeStart += n.sizeLeft + n.piece.Length
			x = n.right
		}
	}
	return sentinel, 0, 0
}

// lineStartOffset returns the document offset of the first byte of lineNo.
// It descends by line feed aggregates and finishes inside the owning piece
// with the chunk's line-start table.
func (t *Tree) lineStartOffset(lineNo int) int {
	offset := 0
	x := t.root
	for x != sentinel {
		n := &t.nodes[x]
		switch {
		case n.left != sentinel && n.lfLeft+1 >= lineNo:
			x = n.left
		case n.lfLeft+n.piece.LineFeeds+1 >= lineNo:
			return offset + n.sizeLeft + t.accumulatedValue(n.piece, lineNo-n.lfLeft-2)
		default:
			lineNo -= n.lfLeft + n.piece.LineFeeds
			offset += n.sizeLeft + n.piece.Length
			x = n.right
		}
	}
	return offset
}

// OffsetAt converts a position to a document offset. Columns past the end
// of the line clamp to the position before the line terminator. It panics
// with a *RangeError if the line is out of range or the column is below 1.
func (t *Tree) OffsetAt(pos Position) int {
	t.checkLine("OffsetAt", pos.Line)
	if pos.Column < 1 {
		panic(&RangeError{Op: "OffsetAt", Kind: "column", Value: pos.Column, Limit: t.LineLength(pos.Line) + 1})
	}
	return t.lineStartOffset(pos.Line) + min(pos.Column-1, t.LineLength(pos.Line))
}

// PositionAt converts a document offset to a position. It panics with a
// *RangeError if offset is outside [0, TextLength()].
func (t *Tree) PositionAt(offset int) Position {
	t.checkOffset("PositionAt", offset)

	lf := 0
	rest := offset
	x := t.root
	for x != sentinel {
		n := &t.nodes[x]
		switch {
		case rest < n.sizeLeft:
			x = n.left
		case rest < n.sizeLeft+n.piece.Length || n.right == sentinel:
			cur := t.positionInPiece(n.piece, rest-n.sizeLeft)
			index := cur.Line - n.piece.Start.Line
			line := lf + n.lfLeft + index + 1
			if index > 0 {
				return Position{Line: line, Column: cur.Column + 1}
			}
			return Position{Line: line, Column: offset - t.lineStartOffset(line) + 1}
		default:
			rest -= n.sizeLeft + n.piece.Length
			lf += n.lfLeft + n.piece.LineFeeds
			x = n.right
		}
	}
	return Position{Line: 1, Column: 1}
}
