package piecetree

// Red-black balancing with size aggregate maintenance. The algorithms follow
// CLRS; rotations move the rotated subtree's contribution between the
// sizeLeft/lfLeft fields of the two nodes involved.

func (t *Tree) leftRotate(x int) {
	nodes := t.nodes
	y := nodes[x].right

	nodes[y].sizeLeft += nodes[x].sizeLeft + nodes[x].piece.Length
	nodes[y].lfLeft += nodes[x].lfLeft + nodes[x].piece.LineFeeds

	nodes[x].right = nodes[y].left
	if nodes[y].left != sentinel {
		nodes[nodes[y].left].parent = x
	}
	nodes[y].parent = nodes[x].parent
	switch p := nodes[x].parent; {
	case p == sentinel:
		t.root = y
	case nodes[p].left == x:
		nodes[p].left = y
	default:
		nodes[p].right = y
	}
	nodes[y].left = x
	nodes[x].parent = y
}

func (t *Tree) rightRotate(y int) {
	nodes := t.nodes
	x := nodes[y].left

	nodes[y].left = nodes[x].right
	if nodes[x].right != sentinel {
		nodes[nodes[x].right].parent = y
	}
	nodes[x].parent = nodes[y].parent

	nodes[y].sizeLeft -= nodes[x].sizeLeft + nodes[x].piece.Length
	nodes[y].lfLeft -= nodes[x].lfLeft + nodes[x].piece.LineFeeds

	switch p := nodes[y].parent; {
	case p == sentinel:
		t.root = x
	case nodes[p].right == y:
		nodes[p].right = x
	default:
		nodes[p].left = x
	}
	nodes[x].right = y
	nodes[y].parent = x
}

// resetSentinel restores the NIL node after structural updates that used
// its parent link.
func (t *Tree) resetSentinel() {
	t.nodes[sentinel] = node{color: black}
}

// updateTreeMetadata propagates a length and line feed change of x's piece
// to the ancestors that hold x in their left subtree.
func (t *Tree) updateTreeMetadata(x, delta, lfDelta int) {
	nodes := t.nodes
	for x != t.root && x != sentinel {
		p := nodes[x].parent
		if nodes[p].left == x {
			nodes[p].sizeLeft += delta
			nodes[p].lfLeft += lfDelta
		}
		x = p
	}
}

// recomputeTreeMetadata repairs aggregates after the subtree containing x
// changed shape.
func (t *Tree) recomputeTreeMetadata(x int) {
	nodes := t.nodes
	if x == t.root {
		return
	}

	// Climb to the first ancestor whose left subtree contains x.
	for x != t.root && x == nodes[nodes[x].parent].right {
		x = nodes[x].parent
	}
	if x == t.root {
		return
	}
	x = nodes[x].parent

	delta := t.subtreeSize(nodes[x].left) - nodes[x].sizeLeft
	lfDelta := t.subtreeLineFeeds(nodes[x].left) - nodes[x].lfLeft
	nodes[x].sizeLeft += delta
	nodes[x].lfLeft += lfDelta

	for x != t.root && (delta != 0 || lfDelta != 0) {
		p := nodes[x].parent
		if nodes[p].left == x {
			nodes[p].sizeLeft += delta
			nodes[p].lfLeft += lfDelta
		}
		x = p
	}
}

func (t *Tree) fixInsert(x int) {
	t.recomputeTreeMetadata(x)
	nodes := t.nodes

	for x != t.root && nodes[nodes[x].parent].color == red {
		p := nodes[x].parent
		g := nodes[p].parent
		if p == nodes[g].left {
			y := nodes[g].right
			if nodes[y].color == red {
				nodes[p].color = black
				nodes[y].color = black
				nodes[g].color = red
				x = g
				continue
			}
			if x == nodes[p].right {
				x = p
				t.leftRotate(x)
			}
			p = nodes[x].parent
			g = nodes[p].parent
			nodes[p].color = black
			nodes[g].color = red
			t.rightRotate(g)
		} else {
			y := nodes[g].left
			if nodes[y].color == red {
				nodes[p].color = black
				nodes[y].color = black
				nodes[g].color = red
				x = g
				continue
			}
			if x == nodes[p].left {
				x = p
				t.rightRotate(x)
			}
			p = nodes[x].parent
			g = nodes[p].parent
			nodes[p].color = black
			nodes[g].color = red
			t.leftRotate(g)
		}
	}
	nodes[t.root].color = black
}

// rbInsertRight inserts p immediately after node x in document order and
// returns the new node. x is ignored when the tree is empty.
func (t *Tree) rbInsertRight(x int, p Piece) int {
	z := t.newNode(p)
	nodes := t.nodes
	switch {
	case t.root == sentinel:
		t.root = z
		nodes[z].color = black
	case nodes[x].right == sentinel:
		nodes[x].right = z
		nodes[z].parent = x
	default:
		succ := t.leftmost(nodes[x].right)
		nodes[succ].left = z
		nodes[z].parent = succ
	}
	t.fixInsert(z)
	return z
}

// rbInsertLeft inserts p immediately before node x in document order and
// returns the new node. x is ignored when the tree is empty.
func (t *Tree) rbInsertLeft(x int, p Piece) int {
	z := t.newNode(p)
	nodes := t.nodes
	switch {
	case t.root == sentinel:
		t.root = z
		nodes[z].color = black
	case nodes[x].left == sentinel:
		nodes[x].left = z
		nodes[z].parent = x
	default:
		pred := t.rightmost(nodes[x].left)
		nodes[pred].right = z
		nodes[z].parent = pred
	}
	t.fixInsert(z)
	return z
}

// rbDelete unlinks z from the tree and frees its slot. Other nodes keep
// their arena indices.
func (t *Tree) rbDelete(z int) {
	nodes := t.nodes
	var x, y int
	switch {
	case nodes[z].left == sentinel:
		y = z
		x = nodes[y].right
	case nodes[z].right == sentinel:
		y = z
		x = nodes[y].left
	default:
		y = t.leftmost(nodes[z].right)
		x = nodes[y].right
	}

	if y == t.root {
		t.root = x
		nodes[x].color = black
		t.freeNode(z)
		t.resetSentinel()
		nodes[t.root].parent = sentinel
		return
	}

	yWasRed := nodes[y].color == red

	if yp := nodes[y].parent; y == nodes[yp].left {
		nodes[yp].left = x
	} else {
		nodes[yp].right = x
	}

	if y == z {
		nodes[x].parent = nodes[y].parent
		t.recomputeTreeMetadata(x)
	} else {
		if nodes[y].parent == z {
			nodes[x].parent = y
		} else {
			nodes[x].parent = nodes[y].parent
		}

		// x's ancestry changed; fix aggregates before y takes z's place.
		t.recomputeTreeMetadata(x)

		nodes[y].left = nodes[z].left
		nodes[y].right = nodes[z].right
		nodes[y].parent = nodes[z].parent
		nodes[y].color = nodes[z].color

		if z == t.root {
			t.root = y
		} else if zp := nodes[z].parent; z == nodes[zp].left {
			nodes[zp].left = y
		} else {
			nodes[zp].right = y
		}

		if nodes[y].left != sentinel {
			nodes[nodes[y].left].parent = y
		}
		if nodes[y].right != sentinel {
			nodes[nodes[y].right].parent = y
		}
		nodes[y].sizeLeft = nodes[z].sizeLeft
		nodes[y].lfLeft = nodes[z].lfLeft
		t.recomputeTreeMetadata(y)
	}

	t.freeNode(z)

	if xp := nodes[x].parent; nodes[xp].left == x {
		size := t.subtreeSize(x)
		lf := t.subtreeLineFeeds(x)
		if size != nodes[xp].sizeLeft || lf != nodes[xp].lfLeft {
			delta := size - nodes[xp].sizeLeft
			lfDelta := lf - nodes[xp].lfLeft
			nodes[xp].sizeLeft = size
			nodes[xp].lfLeft = lf
			t.updateTreeMetadata(xp, delta, lfDelta)
		}
	}
	t.recomputeTreeMetadata(nodes[x].parent)

	if yWasRed {
		t.resetSentinel()
		return
	}

	for x != t.root && nodes[x].color == black {
		xp := nodes[x].parent
		if x == nodes[xp].left {
			w := nodes[xp].right
			if nodes[w].color == red {
				nodes[w].color = black
				nodes[xp].color = red
				t.leftRotate(xp)
				xp = nodes[x].parent
				w = nodes[xp].right
			}
			if nodes[nodes[w].left].color == black && nodes[nodes[w].right].color == black {
				nodes[w].color = red
				x = xp
				continue
			}
			if nodes[nodes[w].right].color == black {
				nodes[nodes[w].left].color = black
				nodes[w].color = red
				t.rightRotate(w)
				xp = nodes[x].parent
				w = nodes[xp].right
			}
			nodes[w].color = nodes[xp].color
			nodes[xp].color = black
			nodes[nodes[w].right].color = black
			t.leftRotate(xp)
			x = t.root
		} else {
			w := nodes[xp].left
			if nodes[w].color == red {
				nodes[w].color = black
				nodes[xp].color = red
				t.rightRotate(xp)
				xp = nodes[x].parent
				w = nodes[xp].left
			}
			if nodes[nodes[w].left].color == black && nodes[nodes[w].right].color == black {
				nodes[w].color = red
				x = xp
				continue
			}
			if nodes[nodes[w].left].color == black {
				nodes[nodes[w].right].color = black
				nodes[w].color = red
				t.leftRotate(w)
				xp = nodes[x].parent
				w = nodes[xp].left
			}
			nodes[w].color = nodes[xp].color
			nodes[xp].color = black
			nodes[nodes[w].left].color = black
			t.rightRotate(xp)
			x = t.root
		}
	}
	nodes[x].color = black
	t.resetSentinel()
}
