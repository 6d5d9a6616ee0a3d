package piecetree

type color uint8

const (
	black color = iota
	red
)

// sentinel is the arena index of the shared NIL node. It is always black
// and its size aggregates are always zero outside of a structural update.
const sentinel = 0

// detached marks the parent link of a freed arena slot.
const detached = -1

// node is a red-black tree node holding one piece.
type node struct {
	piece  Piece
	color  color
	left   int
	right  int
	parent int

	// sizeLeft and lfLeft cache the byte length and line feed count of
	// the whole left subtree.
	sizeLeft int
	lfLeft   int
}

// newNode allocates a red node for p, reusing a freed slot if one exists.
func (t *Tree) newNode(p Piece) int {
	n := node{piece: p, color: red}
	if k := len(t.free); k > 0 {
		x := t.free[k-1]
		t.free = t.free[:k-1]
		t.nodes[x] = n
		return x
	}
	t.nodes = append(t.nodes, n)
	return len(t.nodes) - 1
}

// freeNode releases x to the free list.
func (t *Tree) freeNode(x int) {
	t.nodes[x] = node{parent: detached}
	t.free = append(t.free, x)
	t.cache.forget(x)
}

func (t *Tree) leftmost(x int) int {
	for t.nodes[x].left != sentinel {
		x = t.nodes[x].left
	}
	return x
}

func (t *Tree) rightmost(x int) int {
	for t.nodes[x].right != sentinel {
		x = t.nodes[x].right
	}
	return x
}

// next returns the in-order successor of x, or the sentinel.
func (t *Tree) next(x int) int {
	if r := t.nodes[x].right; r != sentinel {
		return t.leftmost(r)
	}
	for x != t.root {
		p := t.nodes[x].parent
		if t.nodes[p].left == x {
			return p
		}
		x = p
	}
	return sentinel
}

// prev returns the in-order predecessor of x, or the sentinel.
func (t *Tree) prev(x int) int {
	if l := t.nodes[x].left; l != sentinel {
		return t.rightmost(l)
	}
	for x != t.root {
		p := t.nodes[x].parent
		if t.nodes[p].right == x {
			return p
		}
		x = p
	}
	return sentinel
}

// subtreeSize returns the total byte length of the subtree rooted at x.
func (t *Tree) subtreeSize(x int) int {
	size := 0
	for x != sentinel {
		n := &t.nodes[x]
		size += n.sizeLeft + n.piece.Length
		x = n.right
	}
	return size
}

// subtreeLineFeeds returns the total line feed count of the subtree at x.
func (t *Tree) subtreeLineFeeds(x int) int {
	lf := 0
	for x != sentinel {
		n := &t.nodes[x]
		lf += n.lfLeft + n.piece.LineFeeds
		x = n.right
	}
	return lf
}

// offsetOfNode returns the document offset at which x's piece starts.
func (t *Tree) offsetOfNode(x int) int {
	pos := t.nodes[x].sizeLeft
	for x != t.root {
		p := t.nodes[x].parent
		if t.nodes[p].right == x {
			pos += t.nodes[p].sizeLeft + t.nodes[p].piece.Length
		}
		x = p
	}
	return pos
}
