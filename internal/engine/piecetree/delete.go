package piecetree

// DeleteAfter removes count bytes starting at offset. The end of the span
// is clamped to TextLength(). A non-positive count is a no-op. It panics
// with a *RangeError if offset is outside [0, TextLength()].
func (t *Tree) DeleteAfter(offset, count int) {
	t.checkOffset("DeleteAfter", offset)
	if count <= 0 {
		return
	}
	count = min(count, t.length-offset)
	if count == 0 {
		return
	}
	t.delete(offset, count)
}

// DeleteBefore removes count bytes ending at offset. The start of the span
// is clamped to 0. A non-positive count is a no-op. It panics with a
// *RangeError if offset is outside [0, TextLength()].
func (t *Tree) DeleteBefore(offset, count int) {
	t.checkOffset("DeleteBefore", offset)
	if count <= 0 {
		return
	}
	count = min(count, offset)
	if count == 0 {
		return
	}
	t.delete(offset-count, count)
}

// delete removes [offset, offset+count), which must be a non-empty span of
// the document.
func (t *Tree) delete(offset, count int) {
	t.resetLineMemo()

	startNode, startOffset, startRem := t.nodeAt(offset)
	endNode, _, endRem := t.nodeAt(offset + count)

	if startNode == endNode {
		p := t.nodes[startNode].piece
		startSplit := t.positionInPiece(p, startRem)
		endSplit := t.positionInPiece(p, endRem)
		switch {
		case startOffset == offset && count == p.Length:
			t.rbDelete(startNode)
		case startOffset == offset:
			t.trimHead(startNode, endSplit)
		case startOffset+p.Length == offset+count:
			t.trimTail(startNode, startSplit)
		default:
			t.shrinkNode(startNode, startSplit, endSplit)
		}
		t.afterEdit(offset)
		return
	}

	var doomed []int

	p := t.nodes[startNode].piece
	t.trimTail(startNode, t.positionInPiece(p, startRem))
	if t.nodes[startNode].piece.Length == 0 {
		doomed = append(doomed, startNode)
	}

	for x := t.next(startNode); x != sentinel && x != endNode; x = t.next(x) {
		doomed = append(doomed, x)
	}

	p = t.nodes[endNode].piece
	t.trimHead(endNode, t.positionInPiece(p, endRem))
	if t.nodes[endNode].piece.Length == 0 {
		doomed = append(doomed, endNode)
	}

	for _, x := range doomed {
		t.rbDelete(x)
	}
	t.afterEdit(offset)
}

// trimTail cuts x's piece so that it ends at pos.
func (t *Tree) trimTail(x int, pos Cursor) {
	p := &t.nodes[x].piece
	c := t.chunkOf(*p)
	lf := pos.Line - p.Start.Line
	delta := c.offset(pos) - c.offset(p.End)
	lfDelta := lf - p.LineFeeds

	p.End = pos
	p.Length += delta
	p.LineFeeds = lf
	t.updateTreeMetadata(x, delta, lfDelta)
}

// trimHead cuts x's piece so that it starts at pos.
func (t *Tree) trimHead(x int, pos Cursor) {
	p := &t.nodes[x].piece
	c := t.chunkOf(*p)
	lf := p.End.Line - pos.Line
	delta := c.offset(p.Start) - c.offset(pos)
	lfDelta := lf - p.LineFeeds

	p.Start = pos
	p.Length += delta
	p.LineFeeds = lf
	t.updateTreeMetadata(x, delta, lfDelta)
}

// shrinkNode removes [start, end) from the middle of x's piece, leaving the
// left part in x and inserting the right part as a new node after it.
func (t *Tree) shrinkNode(x int, start, end Cursor) {
	p := t.nodes[x].piece
	right := t.makePiece(p.Kind, p.Chunk, end, p.End)
	t.trimTail(x, start)
	t.rbInsertRight(x, right)
}
