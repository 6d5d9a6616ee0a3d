package buffer

import "fmt"

// Range is a half-open byte span [Start, End).
type Range struct {
	Start ByteOffset
	End   ByteOffset
}

func (r Range) String() string {
	return fmt.Sprintf("[%d:%d)", r.Start, r.End)
}

// Len returns the number of bytes covered.
func (r Range) Len() ByteOffset {
	return r.End - r.Start
}

// IsEmpty reports whether r is an insertion point.
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// Overlaps reports whether r and o share a byte, or one is an insertion
// point strictly inside the other. Ranges that only touch do not overlap.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}
