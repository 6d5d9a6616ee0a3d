package filestore

import (
	"slices"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dshills/piecebuf/internal/engine/buffer"
)

// lineModeThreshold is the text size above which the diff first matches
// whole lines.
const lineModeThreshold = 64 * 1024

// diffEdits returns the edits that turn oldText into newText, sorted by
// descending offset as buffer.ApplyEdits expects. Adjacent deletions and
// insertions are merged into one replacement.
func diffEdits(oldText, newText string) []buffer.Edit {
	if oldText == newText {
		return nil
	}

	dmp := diffmatchpatch.New()
	lineMode := len(oldText) > lineModeThreshold || len(newText) > lineModeThreshold
	diffs := dmp.DiffMain(oldText, newText, lineMode)
	diffs = dmp.DiffCleanupEfficiency(diffs)

	var edits []buffer.Edit
	var off buffer.ByteOffset
	for i := 0; i < len(diffs); i++ {
		d := diffs[i]
		n := buffer.ByteOffset(len(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			off += n

		case diffmatchpatch.DiffDelete:
			e := buffer.NewDelete(off, off+n)
			off += n
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffInsert {
				e.NewText = diffs[i+1].Text
				i++
			}
			edits = append(edits, e)

		case diffmatchpatch.DiffInsert:
			e := buffer.NewInsert(off, d.Text)
			if i+1 < len(diffs) && diffs[i+1].Type == diffmatchpatch.DiffDelete {
				del := buffer.ByteOffset(len(diffs[i+1].Text))
				e.Range.End = off + del
				off += del
				i++
			}
			edits = append(edits, e)
		}
	}

	slices.Reverse(edits)
	return edits
}
