package buffer

import "fmt"

// Edit replaces a byte range with new text.
type Edit struct {
	Range   Range
	NewText string
}

// NewInsert creates an Edit that inserts text at offset.
func NewInsert(offset ByteOffset, text string) Edit {
	return Edit{Range: Range{Start: offset, End: offset}, NewText: text}
}

// NewDelete creates an Edit that deletes [start, end).
func NewDelete(start, end ByteOffset) Edit {
	return Edit{Range: Range{Start: start, End: end}}
}

func (e Edit) String() string {
	switch {
	case e.Range.IsEmpty():
		return fmt.Sprintf("Insert(%d, %q)", e.Range.Start, e.NewText)
	case e.NewText == "":
		return "Delete" + e.Range.String()
	default:
		return fmt.Sprintf("Replace%s with %q", e.Range.String(), e.NewText)
	}
}

// IsNoOp returns true if this edit does nothing.
func (e Edit) IsNoOp() bool {
	return e.Range.IsEmpty() && e.NewText == ""
}

// EditResult describes an applied edit.
type EditResult struct {
	OldRange Range  // range before the edit
	NewRange Range  // range covering the new text
	OldText  string // text that was replaced
	Delta    int64  // change in stored length, after normalization
}

// ApplyEdit applies a single edit.
func (b *Buffer) ApplyEdit(edit Edit) (EditResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.validRange(edit.Range.Start, edit.Range.End) {
		return EditResult{}, ErrRangeInvalid
	}

	start, end := int(edit.Range.Start), int(edit.Range.End)
	oldText := b.tree.Slice(start, end)
	newLen := b.replace(start, end, edit.NewText)

	return EditResult{
		OldRange: edit.Range,
		NewRange: Range{Start: edit.Range.Start, End: edit.Range.Start + ByteOffset(newLen)},
		OldText:  oldText,
		Delta:    int64(newLen) - int64(edit.Range.Len()),
	}, nil
}

// ApplyEdits applies multiple edits atomically. Edits must be sorted by
// descending offset and must not overlap; either all are applied or none.
func (b *Buffer) ApplyEdits(edits []Edit) error {
	if len(edits) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 1; i < len(edits); i++ {
		prev, cur := edits[i-1].Range, edits[i].Range
		if cur.Overlaps(prev) {
			return ErrEditsOverlap
		}
		if cur.End > prev.Start {
			return ErrEditsOrder
		}
	}
	for _, edit := range edits {
		if !b.validRange(edit.Range.Start, edit.Range.End) {
			return ErrRangeInvalid
		}
	}

	for _, edit := range edits {
		b.replace(int(edit.Range.Start), int(edit.Range.End), edit.NewText)
	}
	return nil
}
