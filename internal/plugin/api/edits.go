package api

import (
	"cmp"
	"slices"

	"github.com/dshills/piecebuf/internal/engine/buffer"
)

// sortEditsDescending orders edits for buffer.ApplyEdits. Inserts at the
// same offset as a replacement's start sort after it so both apply.
func sortEditsDescending(edits []buffer.Edit) {
	slices.SortStableFunc(edits, func(a, b buffer.Edit) int {
		if c := cmp.Compare(b.Range.Start, a.Range.Start); c != 0 {
			return c
		}
		return cmp.Compare(b.Range.End, a.Range.End)
	})
}

// firstOverlap returns the first adjacent pair of sorted edits whose
// ranges overlap.
func firstOverlap(edits []buffer.Edit) (buffer.Edit, buffer.Edit, bool) {
	for i := 1; i < len(edits); i++ {
		if edits[i].Range.Overlaps(edits[i-1].Range) {
			return edits[i], edits[i-1], true
		}
	}
	return buffer.Edit{}, buffer.Edit{}, false
}
