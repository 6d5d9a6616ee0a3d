package filestore

import (
	"testing"

	"github.com/dshills/piecebuf/internal/engine/buffer"
)

func TestDiffEdits(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
	}{
		{"identical", "same\n", "same\n"},
		{"from empty", "", "new text\n"},
		{"to empty", "old text\n", ""},
		{"insert middle", "hello world", "hello brave world"},
		{"delete middle", "hello brave world", "hello world"},
		{"replace word", "the cat sat", "the dog sat"},
		{"several lines", "a\nb\nc\nd\n", "a\nB\nc\nd\ne\n"},
		{"multibyte", "héllo wörld", "hallo welt 世界"},
		{"prefix and suffix", "xyz", "axyzb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edits := diffEdits(tt.old, tt.new)
			if tt.old == tt.new && len(edits) != 0 {
				t.Errorf("diffEdits() = %v for identical texts", edits)
			}

			b := buffer.NewFromString(tt.old)
			if err := b.ApplyEdits(edits); err != nil {
				t.Fatalf("ApplyEdits(%v) error = %v", edits, err)
			}
			if got := b.Text(); got != tt.new {
				t.Errorf("after edits = %q, want %q", got, tt.new)
			}
		})
	}
}

func TestDiffEditsLineMode(t *testing.T) {
	var old, updated []byte
	for i := 0; i < 5000; i++ {
		line := []byte("line of text number\n")
		old = append(old, line...)
		if i%1000 == 0 {
			updated = append(updated, "changed line\n"...)
		}
		updated = append(updated, line...)
	}

	edits := diffEdits(string(old), string(updated))
	if len(edits) == 0 || len(edits) > 10 {
		t.Errorf("diffEdits() produced %d edits, want a handful", len(edits))
	}
	b := buffer.NewFromString(string(old))
	if err := b.ApplyEdits(edits); err != nil {
		t.Fatal(err)
	}
	if b.Text() != string(updated) {
		t.Error("line-mode edits did not reproduce the new text")
	}
}
