package piecetree

import (
	"fmt"
	"strings"
)

// Validate checks every structural invariant of the tree: red-black
// coloring, black height, parent links, subtree aggregates, piece bounds
// and the cached document totals. It returns an *InvariantError describing
// the first violation found.
func (t *Tree) Validate() error {
	s := t.nodes[sentinel]
	if s.color != black {
		return &InvariantError{Reason: "sentinel is not black"}
	}
	if s.sizeLeft != 0 || s.lfLeft != 0 {
		return &InvariantError{Reason: "sentinel carries aggregates"}
	}
	if t.root != sentinel {
		if t.nodes[t.root].color != black {
			return &InvariantError{Node: t.root, Reason: "root is not black"}
		}
		if t.nodes[t.root].parent != sentinel {
			return &InvariantError{Node: t.root, Reason: "root has a parent"}
		}
	}

	size, lf, _, err := t.validateSubtree(t.root)
	if err != nil {
		return err
	}
	if size != t.length {
		return &InvariantError{Reason: fmt.Sprintf("text length %d, tree holds %d", t.length, size)}
	}
	if lf+1 != t.lineCount {
		return &InvariantError{Reason: fmt.Sprintf("line count %d, tree holds %d line feeds", t.lineCount, lf)}
	}
	return nil
}

// validateSubtree returns the size, line feeds and black height of the
// subtree rooted at x.
func (t *Tree) validateSubtree(x int) (size, lf, blackHeight int, err error) {
	if x == sentinel {
		return 0, 0, 1, nil
	}
	n := &t.nodes[x]
	if n.parent == detached {
		return 0, 0, 0, &InvariantError{Node: x, Reason: "freed node is linked"}
	}

	if n.color == red {
		if t.nodes[n.left].color == red || t.nodes[n.right].color == red {
			return 0, 0, 0, &InvariantError{Node: x, Reason: "red node has a red child"}
		}
	}
	for _, child := range [2]int{n.left, n.right} {
		if child != sentinel && t.nodes[child].parent != x {
			return 0, 0, 0, &InvariantError{Node: child, Reason: fmt.Sprintf("parent link is %d, want %d", t.nodes[child].parent, x)}
		}
	}
	if err := t.validatePiece(x); err != nil {
		return 0, 0, 0, err
	}

	lsize, llf, lbh, err := t.validateSubtree(n.left)
	if err != nil {
		return 0, 0, 0, err
	}
	rsize, rlf, rbh, err := t.validateSubtree(n.right)
	if err != nil {
		return 0, 0, 0, err
	}
	if lbh != rbh {
		return 0, 0, 0, &InvariantError{Node: x, Reason: fmt.Sprintf("black height %d on the left, %d on the right", lbh, rbh)}
	}
	if n.sizeLeft != lsize {
		return 0, 0, 0, &InvariantError{Node: x, Reason: fmt.Sprintf("sizeLeft is %d, left subtree holds %d", n.sizeLeft, lsize)}
	}
	if n.lfLeft != llf {
		return 0, 0, 0, &InvariantError{Node: x, Reason: fmt.Sprintf("lfLeft is %d, left subtree holds %d", n.lfLeft, llf)}
	}

	if n.color == black {
		lbh++
	}
	return lsize + n.piece.Length + rsize, llf + n.piece.LineFeeds + rlf, lbh, nil
}

func (t *Tree) validatePiece(x int) error {
	p := t.nodes[x].piece
	if p.Length <= 0 {
		return &InvariantError{Node: x, Reason: "empty piece"}
	}
	if p.Kind == OriginalChunk && (p.Chunk < 0 || p.Chunk >= len(t.originals)) {
		return &InvariantError{Node: x, Reason: fmt.Sprintf("chunk index %d out of range", p.Chunk)}
	}
	c := t.chunkOf(p)
	if p.End.Line >= len(c.lineStarts) || p.Start.Line > p.End.Line {
		return &InvariantError{Node: x, Reason: "piece cursors outside chunk"}
	}
	start, end := c.offset(p.Start), c.offset(p.End)
	if start < 0 || end > c.len() || end-start != p.Length {
		return &InvariantError{Node: x, Reason: fmt.Sprintf("piece length %d does not match range [%d, %d)", p.Length, start, end)}
	}
	if p.LineFeeds != p.End.Line-p.Start.Line {
		return &InvariantError{Node: x, Reason: fmt.Sprintf("piece line feeds %d, range spans %d", p.LineFeeds, p.End.Line-p.Start.Line)}
	}
	if n := strings.Count(c.substring(start, end), "\n"); n != p.LineFeeds {
		return &InvariantError{Node: x, Reason: fmt.Sprintf("piece line feeds %d, text holds %d", p.LineFeeds, n)}
	}
	return nil
}
