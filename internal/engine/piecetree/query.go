package piecetree

import (
	"io"
	"iter"
	"strings"
)

// LineContent returns line lineNo (1-based) including its terminator. The
// last line has no terminator. Repeated queries for the same line are
// answered from a memo until the next edit. It panics with a *RangeError if
// lineNo is outside [1, LineCount()].
func (t *Tree) LineContent(lineNo int) string {
	t.checkLine("LineContent", lineNo)
	if t.lastLine.number == lineNo {
		return t.lastLine.text
	}
	text := t.lineRawContent(lineNo)
	t.lastLine.number = lineNo
	t.lastLine.text = text
	return text
}

// LineText returns line lineNo without its terminator.
func (t *Tree) LineText(lineNo int) string {
	return trimEOL(t.LineContent(lineNo))
}

// LineLength returns the byte length of line lineNo without its terminator.
func (t *Tree) LineLength(lineNo int) int {
	return len(t.LineText(lineNo))
}

func (t *Tree) lineRawContent(lineNo int) string {
	var sb strings.Builder
	x := t.root

	if e, ok := t.cache.getLine(t.nodes, lineNo); ok {
		x = e.node
		p := t.nodes[x].piece
		text := t.pieceText(p)
		from := t.accumulatedValue(p, lineNo-e.startLine-1)
		if e.startLine+p.LineFeeds != lineNo {
			return text[from:t.accumulatedValue(p, lineNo-e.startLine)]
		}
		sb.WriteString(text[from:])
	} else {
		rest := lineNo
		nodeStart := 0
		for x != sentinel {
			n := &t.nodes[x]
			switch {
			case n.left != sentinel && n.lfLeft >= rest-1:
				x = n.left
				continue
			case n.lfLeft+n.piece.LineFeeds > rest-1:
				// The line starts and ends inside this piece.
				text := t.pieceText(n.piece)
				from := t.accumulatedValue(n.piece, rest-n.lfLeft-2)
				to := t.accumulatedValue(n.piece, rest-n.lfLeft-1)
				nodeStart += n.sizeLeft
				t.cache.set(cacheEntry{node: x, start: nodeStart, startLine: lineNo - (rest - 1 - n.lfLeft)})
				return text[from:to]
			case n.lfLeft+n.piece.LineFeeds == rest-1:
				// The line starts in this piece and continues past it.
				text := t.pieceText(n.piece)
				sb.WriteString(text[t.accumulatedValue(n.piece, rest-n.lfLeft-2):])
			default:
				rest -= n.lfLeft + n.piece.LineFeeds
				nodeStart += n.sizeLeft + n.piece.Length
				x = n.right
				continue
			}
			break
		}
	}

	// Collect following pieces up to the first line terminator.
	for x = t.next(x); x != sentinel; x = t.next(x) {
		p := t.nodes[x].piece
		text := t.pieceText(p)
		if p.LineFeeds > 0 {
			sb.WriteString(text[:t.accumulatedValue(p, 0)])
			break
		}
		sb.WriteString(text)
	}
	return sb.String()
}

// Content returns the whole document.
func (t *Tree) Content() string {
	var sb strings.Builder
	sb.Grow(t.length)
	for x := t.first(); x != sentinel; x = t.next(x) {
		sb.WriteString(t.pieceText(t.nodes[x].piece))
	}
	return sb.String()
}

// ContentInRange returns the text between two positions. Both endpoints are
// resolved with OffsetAt; an inverted range yields "".
func (t *Tree) ContentInRange(r Range) string {
	return t.Slice(t.OffsetAt(r.Start), t.OffsetAt(r.End))
}

// Slice returns the text in [start, end). It panics with a *RangeError if
// either offset is outside [0, TextLength()].
func (t *Tree) Slice(start, end int) string {
	t.checkOffset("Slice", start)
	t.checkOffset("Slice", end)
	if start >= end {
		return ""
	}

	var sb strings.Builder
	sb.Grow(end - start)
	x, nodeStart, rem := t.nodeAt(start)
	for ; x != sentinel && nodeStart < end; x = t.next(x) {
		p := t.nodes[x].piece
		text := t.pieceText(p)
		to := min(p.Length, end-nodeStart)
		sb.WriteString(text[rem:to])
		nodeStart += p.Length
		rem = 0
	}
	return sb.String()
}

// Lines returns an iterator over line numbers and line contents, each line
// including its terminator. The tree must not be modified during iteration.
func (t *Tree) Lines() iter.Seq2[int, string] {
	return func(yield func(int, string) bool) {
		var sb strings.Builder
		lineNo := 1
		for x := t.first(); x != sentinel; x = t.next(x) {
			p := t.nodes[x].piece
			text := t.pieceText(p)
			from := 0
			for i := 0; i < p.LineFeeds; i++ {
				to := t.accumulatedValue(p, i)
				sb.WriteString(text[from:to])
				if !yield(lineNo, sb.String()) {
					return
				}
				sb.Reset()
				lineNo++
				from = to
			}
			sb.WriteString(text[from:])
		}
		yield(lineNo, sb.String())
	}
}

// WriteTo writes the document to w piece by piece.
func (t *Tree) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for x := t.first(); x != sentinel; x = t.next(x) {
		n, err := io.WriteString(w, t.pieceText(t.nodes[x].piece))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// trimEOL removes a trailing "\n" or "\r\n".
func trimEOL(s string) string {
	switch {
	case strings.HasSuffix(s, "\r\n"):
		return s[:len(s)-2]
	case strings.HasSuffix(s, "\n"):
		return s[:len(s)-1]
	}
	return s
}
