package buffer

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
)

func TestNewBuffer(t *testing.T) {
	b := New()

	if !b.IsEmpty() {
		t.Error("new buffer should be empty")
	}
	if b.Len() != 0 {
		t.Errorf("expected length 0, got %d", b.Len())
	}
	if b.LineCount() != 1 {
		t.Errorf("expected 1 line, got %d", b.LineCount())
	}
}

func TestNewFromString(t *testing.T) {
	text := "Hello, World!"
	b := NewFromString(text)

	if b.Text() != text {
		t.Errorf("expected %q, got %q", text, b.Text())
	}
	if b.Len() != int64(len(text)) {
		t.Errorf("expected length %d, got %d", len(text), b.Len())
	}
}

func TestNewFromStringBOMOnly(t *testing.T) {
	for _, text := range []string{"\uFEFF", "\uFEFF\r\n"} {
		b := NewFromString(text)
		if !b.HadBOM() {
			t.Errorf("%q: HadBOM() = false", text)
		}
		want := strings.TrimPrefix(strings.ReplaceAll(text, "\r\n", "\n"), "\uFEFF")
		if b.Text() != want {
			t.Errorf("%q: Text() = %q, want %q", text, b.Text(), want)
		}
	}

	b, err := NewFromReader(iotest.OneByteReader(strings.NewReader("\uFEFF")))
	if err != nil {
		t.Fatalf("NewFromReader failed: %v", err)
	}
	if b.Len() != 0 || b.LineCount() != 1 {
		t.Errorf("Len() = %d, LineCount() = %d; want empty buffer", b.Len(), b.LineCount())
	}
}

func TestNewFromStringMultiline(t *testing.T) {
	b := NewFromString("line1\nline2\nline3")

	if b.LineCount() != 3 {
		t.Errorf("expected 3 lines, got %d", b.LineCount())
	}
	for i, want := range []string{"line1", "line2", "line3"} {
		got, err := b.LineText(i + 1)
		if err != nil {
			t.Fatalf("LineText(%d) failed: %v", i+1, err)
		}
		if got != want {
			t.Errorf("LineText(%d) = %q, want %q", i+1, got, want)
		}
	}
}

func TestNewFromReader(t *testing.T) {
	r := iotest.HalfReader(strings.NewReader("\uFEFFone\r\ntwo\r\n"))
	b, err := NewFromReader(r)
	if err != nil {
		t.Fatalf("NewFromReader failed: %v", err)
	}
	if b.Text() != "one\ntwo\n" {
		t.Errorf("expected normalized text, got %q", b.Text())
	}
	if !b.HadBOM() {
		t.Error("expected HadBOM to be true")
	}
	if b.LineEnding() != LineEndingCRLF {
		t.Errorf("expected CRLF line ending, got %s", b.LineEnding())
	}
}

func TestNewFromReaderError(t *testing.T) {
	boom := errors.New("boom")
	if _, err := NewFromReader(iotest.ErrReader(boom)); !errors.Is(err, boom) {
		t.Errorf("expected %v, got %v", boom, err)
	}
}

func TestBufferInsert(t *testing.T) {
	b := NewFromString("Hello World")

	end, err := b.Insert(5, ",")
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if end != 6 {
		t.Errorf("expected end position 6, got %d", end)
	}
	if b.Text() != "Hello, World" {
		t.Errorf("expected 'Hello, World', got %q", b.Text())
	}
}

func TestBufferInsertNormalizes(t *testing.T) {
	b := NewFromString("ab")

	end, err := b.Insert(1, "\r\n")
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if end != 2 {
		t.Errorf("expected end position 2, got %d", end)
	}
	if b.Text() != "a\nb" {
		t.Errorf("expected %q, got %q", "a\nb", b.Text())
	}
}

func TestBufferInsertOutOfRange(t *testing.T) {
	b := NewFromString("Hello")
	rev := b.RevisionID()

	if _, err := b.Insert(100, "x"); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Errorf("expected ErrOffsetOutOfRange, got %v", err)
	}
	if _, err := b.Insert(-1, "x"); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Errorf("expected ErrOffsetOutOfRange, got %v", err)
	}
	if b.RevisionID() != rev {
		t.Error("failed insert should not change the revision")
	}
}

func TestBufferDelete(t *testing.T) {
	b := NewFromString("Hello, World")

	if err := b.Delete(5, 7); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if b.Text() != "HelloWorld" {
		t.Errorf("expected 'HelloWorld', got %q", b.Text())
	}
}

func TestBufferDeleteInvalidRange(t *testing.T) {
	b := NewFromString("Hello")

	tests := []struct {
		name       string
		start, end ByteOffset
	}{
		{"inverted", 3, 1},
		{"past end", 0, 100},
		{"negative", -1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := b.Delete(tt.start, tt.end); !errors.Is(err, ErrRangeInvalid) {
				t.Errorf("expected ErrRangeInvalid, got %v", err)
			}
		})
	}
	if b.Text() != "Hello" {
		t.Errorf("failed deletes changed text to %q", b.Text())
	}
}

func TestBufferDeleteAfterAndBefore(t *testing.T) {
	tests := []struct {
		name   string
		before bool
		offset ByteOffset
		count  int
		want   string
	}{
		{"after", false, 1, 2, "hlo"},
		{"after clamped", false, 3, 50, "hel"},
		{"after zero", false, 1, 0, "hello"},
		{"after at end", false, 5, 1, "hello"},
		{"before", true, 3, 2, "hlo"},
		{"before clamped", true, 2, 50, "llo"},
		{"before negative", true, 2, -1, "hello"},
		{"before at start", true, 0, 1, "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewFromString("hello", WithInvariantChecks(true))
			var err error
			if tt.before {
				err = b.DeleteBefore(tt.offset, tt.count)
			} else {
				err = b.DeleteAfter(tt.offset, tt.count)
			}
			if err != nil {
				t.Fatalf("delete failed: %v", err)
			}
			if b.Text() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, b.Text())
			}
		})
	}

	b := NewFromString("hello")
	if err := b.DeleteAfter(6, 1); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Errorf("expected ErrOffsetOutOfRange, got %v", err)
	}
	if err := b.DeleteBefore(-1, 1); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Errorf("expected ErrOffsetOutOfRange, got %v", err)
	}
}

func TestBufferReplace(t *testing.T) {
	b := NewFromString("Hello, World")

	end, err := b.Replace(7, 12, "Go")
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if end != 9 {
		t.Errorf("expected end position 9, got %d", end)
	}
	if b.Text() != "Hello, Go" {
		t.Errorf("expected 'Hello, Go', got %q", b.Text())
	}
}

func TestBufferApplyEdit(t *testing.T) {
	b := NewFromString("Hello, World")

	result, err := b.ApplyEdit(Edit{Range: Range{Start: 7, End: 12}, NewText: "Gopher"})
	if err != nil {
		t.Fatalf("apply edit failed: %v", err)
	}
	if result.OldText != "World" {
		t.Errorf("expected old text 'World', got %q", result.OldText)
	}
	if result.NewRange != (Range{Start: 7, End: 13}) {
		t.Errorf("unexpected new range %s", result.NewRange)
	}
	if result.Delta != 1 {
		t.Errorf("expected delta 1, got %d", result.Delta)
	}
	if b.Text() != "Hello, Gopher" {
		t.Errorf("expected 'Hello, Gopher', got %q", b.Text())
	}
}

func TestBufferApplyEdits(t *testing.T) {
	b := NewFromString("aaa bbb ccc")

	edits := []Edit{
		{Range: Range{Start: 8, End: 11}, NewText: "CCC"},
		NewDelete(4, 8),
		NewInsert(0, ">"),
	}
	if err := b.ApplyEdits(edits); err != nil {
		t.Fatalf("apply edits failed: %v", err)
	}
	if b.Text() != ">aaa CCC" {
		t.Errorf("expected '>aaa CCC', got %q", b.Text())
	}
}

func TestBufferApplyEditsOverlap(t *testing.T) {
	b := NewFromString("Hello, World")

	edits := []Edit{
		{Range: Range{Start: 0, End: 5}, NewText: "Hi"},
		{Range: Range{Start: 3, End: 8}, NewText: "X"},
	}
	if err := b.ApplyEdits(edits); !errors.Is(err, ErrEditsOverlap) {
		t.Errorf("expected ErrEditsOverlap, got %v", err)
	}
	if b.Text() != "Hello, World" {
		t.Errorf("buffer should be unchanged, got %q", b.Text())
	}
}

func TestBufferApplyEditsOutOfOrder(t *testing.T) {
	tests := []struct {
		name  string
		edits []Edit
	}{
		{"ascending", []Edit{NewDelete(0, 2), NewDelete(4, 6)}},
		{"insert before delete at same offset", []Edit{NewInsert(5, "x"), NewDelete(5, 8)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewFromString("Hello, World")
			if err := b.ApplyEdits(tt.edits); !errors.Is(err, ErrEditsOrder) {
				t.Errorf("expected ErrEditsOrder, got %v", err)
			}
			if b.Text() != "Hello, World" {
				t.Errorf("buffer should be unchanged, got %q", b.Text())
			}
		})
	}
}

func TestBufferApplyEditsInsertInsideDelete(t *testing.T) {
	b := NewFromString("Hello, World")

	edits := []Edit{NewInsert(7, "x"), NewDelete(5, 9)}
	if err := b.ApplyEdits(edits); !errors.Is(err, ErrEditsOverlap) {
		t.Errorf("expected ErrEditsOverlap, got %v", err)
	}
}

func TestBufferLineOperations(t *testing.T) {
	b := NewFromString("first\nsecond\n\nlast")

	tests := []struct {
		line    int
		content string
		length  int
	}{
		{1, "first\n", 5},
		{2, "second\n", 6},
		{3, "\n", 0},
		{4, "last", 4},
	}
	for _, tt := range tests {
		got, err := b.Line(tt.line)
		if err != nil || got != tt.content {
			t.Errorf("Line(%d) = %q, %v; want %q", tt.line, got, err, tt.content)
		}
		n, err := b.LineLen(tt.line)
		if err != nil || n != tt.length {
			t.Errorf("LineLen(%d) = %d, %v; want %d", tt.line, n, err, tt.length)
		}
	}

	if _, err := b.Line(0); !errors.Is(err, ErrLineOutOfRange) {
		t.Errorf("expected ErrLineOutOfRange, got %v", err)
	}
	if _, err := b.Line(5); !errors.Is(err, ErrLineOutOfRange) {
		t.Errorf("expected ErrLineOutOfRange, got %v", err)
	}

	lines, err := b.LinesRange(2, 3)
	if err != nil {
		t.Fatalf("LinesRange failed: %v", err)
	}
	if strings.Join(lines, "") != "second\n\n" {
		t.Errorf("unexpected LinesRange result %q", lines)
	}
	if _, err := b.LinesRange(3, 2); !errors.Is(err, ErrRangeInvalid) {
		t.Errorf("expected ErrRangeInvalid, got %v", err)
	}
}

func TestBufferLines(t *testing.T) {
	b := NewFromString("a\nb\nc")
	var got []string
	for n, line := range b.Lines() {
		if n != len(got)+1 {
			t.Errorf("unexpected line number %d", n)
		}
		got = append(got, line)
	}
	if strings.Join(got, "|") != "a\n|b\n|c" {
		t.Errorf("unexpected lines %q", got)
	}
}

func TestBufferPositionConversion(t *testing.T) {
	b := NewFromString("abc\nde\n")

	tests := []struct {
		offset ByteOffset
		pos    Position
	}{
		{0, Position{Line: 1, Column: 1}},
		{3, Position{Line: 1, Column: 4}},
		{4, Position{Line: 2, Column: 1}},
		{6, Position{Line: 2, Column: 3}},
		{7, Position{Line: 3, Column: 1}},
	}
	for _, tt := range tests {
		pos, err := b.PositionAt(tt.offset)
		if err != nil || pos != tt.pos {
			t.Errorf("PositionAt(%d) = %s, %v; want %s", tt.offset, FormatPosition(pos), err, FormatPosition(tt.pos))
		}
		off, err := b.OffsetAt(tt.pos)
		if err != nil || off != tt.offset {
			t.Errorf("OffsetAt(%s) = %d, %v; want %d", FormatPosition(tt.pos), off, err, tt.offset)
		}
	}

	if _, err := b.PositionAt(8); !errors.Is(err, ErrOffsetOutOfRange) {
		t.Errorf("expected ErrOffsetOutOfRange, got %v", err)
	}
	if _, err := b.OffsetAt(Position{Line: 4, Column: 1}); !errors.Is(err, ErrLineOutOfRange) {
		t.Errorf("expected ErrLineOutOfRange, got %v", err)
	}
}

func TestBufferContentInRange(t *testing.T) {
	b := NewFromString("I love cats!\nI love dogs!")

	got, err := b.ContentInRange(LineRange{
		Start: Position{Line: 1, Column: 8},
		End:   Position{Line: 2, Column: 7},
	})
	if err != nil {
		t.Fatalf("ContentInRange failed: %v", err)
	}
	if got != "cats!\nI love" {
		t.Errorf("expected %q, got %q", "cats!\nI love", got)
	}

	_, err = b.ContentInRange(LineRange{
		Start: Position{Line: 2, Column: 1},
		End:   Position{Line: 1, Column: 1},
	})
	if !errors.Is(err, ErrRangeInvalid) {
		t.Errorf("expected ErrRangeInvalid, got %v", err)
	}
}

func TestBufferWriteTo(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  []Option
		want  string
	}{
		{"lf", "a\nb\n", nil, "a\nb\n"},
		{"detected crlf", "a\r\nb\r\nc", nil, "a\r\nb\r\nc"},
		{"forced crlf", "a\nb", []Option{WithCRLF()}, "a\r\nb"},
		{"forced lf", "a\r\nb", []Option{WithLF()}, "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewFromString(tt.input, tt.opts...)
			var sb strings.Builder
			n, err := b.WriteTo(&sb)
			if err != nil {
				t.Fatalf("WriteTo failed: %v", err)
			}
			if sb.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, sb.String())
			}
			if n != int64(len(tt.want)) {
				t.Errorf("expected %d bytes, got %d", len(tt.want), n)
			}
		})
	}
}

func TestBufferRevisionID(t *testing.T) {
	b := NewFromString("Hello")

	rev1 := b.RevisionID()
	b.Insert(5, " World")
	rev2 := b.RevisionID()
	if rev1 == rev2 {
		t.Error("revision ID should change after insert")
	}

	b.Insert(0, "")
	if b.RevisionID() != rev2 {
		t.Error("revision ID should not change after empty insert")
	}

	b.DeleteAfter(0, 1)
	if b.RevisionID() == rev2 {
		t.Error("revision ID should change after delete")
	}
}

func TestBufferConcurrentRead(t *testing.T) {
	b := NewFromString(strings.Repeat("line of text\n", 200))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 1; j <= 100; j++ {
				line := (i*100+j)%200 + 1
				if got, _ := b.Line(line); got != "line of text\n" {
					t.Errorf("Line(%d) = %q", line, got)
					return
				}
				_ = b.Text()
			}
		}(i)
	}
	wg.Wait()
}

func TestBufferConcurrentReadWrite(t *testing.T) {
	b := NewFromString("", WithInvariantChecks(true))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Insert(b.Len(), "x\n")
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				n := b.LineCount()
				b.Line(n)
				b.PositionAt(b.Len())
			}
		}()
	}
	wg.Wait()

	if b.Len() != 800 {
		t.Errorf("expected length 800, got %d", b.Len())
	}
	if b.LineCount() != 401 {
		t.Errorf("expected 401 lines, got %d", b.LineCount())
	}
	if err := b.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestDetectLineEnding(t *testing.T) {
	tests := []struct {
		text string
		want LineEnding
	}{
		{"", LineEndingLF},
		{"a\nb\n", LineEndingLF},
		{"a\r\nb\r\n", LineEndingCRLF},
		{"a\rb\r", LineEndingCR},
		{"a\r\nb\nc\r\n", LineEndingCRLF},
		{"a\nb\r\n", LineEndingLF},
	}
	for _, tt := range tests {
		if got := DetectLineEnding(tt.text); got != tt.want {
			t.Errorf("DetectLineEnding(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestParseLineEnding(t *testing.T) {
	for in, want := range map[string]LineEnding{"LF": LineEndingLF, "crlf": LineEndingCRLF, "cr": LineEndingCR} {
		got, ok := ParseLineEnding(in)
		if !ok || got != want {
			t.Errorf("ParseLineEnding(%q) = %s, %v", in, got, ok)
		}
	}
	if _, ok := ParseLineEnding("bogus"); ok {
		t.Error("expected bogus to be rejected")
	}
}

func TestRangeOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Range
		want bool
	}{
		{"shared bytes", Range{5, 10}, Range{9, 12}, true},
		{"touching", Range{5, 10}, Range{10, 12}, false},
		{"disjoint", Range{0, 2}, Range{5, 8}, false},
		{"insert inside", Range{7, 7}, Range{5, 10}, true},
		{"insert at start", Range{5, 5}, Range{5, 10}, false},
		{"insert at end", Range{10, 10}, Range{5, 10}, false},
		{"same insert point", Range{4, 4}, Range{4, 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("%s.Overlaps(%s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("%s.Overlaps(%s) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestEditOperations(t *testing.T) {
	tests := []struct {
		edit Edit
		str  string
	}{
		{NewInsert(3, "ab"), `Insert(3, "ab")`},
		{NewDelete(1, 4), "Delete[1:4)"},
		{Edit{Range: Range{Start: 0, End: 2}, NewText: "xyz"}, `Replace[0:2) with "xyz"`},
	}
	for _, tt := range tests {
		if tt.edit.String() != tt.str {
			t.Errorf("String() = %q, want %q", tt.edit.String(), tt.str)
		}
	}
	if !NewInsert(0, "").IsNoOp() {
		t.Error("empty insert should be a no-op")
	}
	if NewDelete(1, 4).Range.Len() != 3 {
		t.Error("delete range should cover 3 bytes")
	}
}

func TestBufferApplyEditNormalizesNewText(t *testing.T) {
	b := NewFromString("ab\ncd")

	result, err := b.ApplyEdit(Edit{Range: Range{Start: 1, End: 2}, NewText: "X\r\nY"})
	if err != nil {
		t.Fatalf("apply edit failed: %v", err)
	}
	if b.Text() != "aX\nY\ncd" {
		t.Errorf("Text() = %q, want %q", b.Text(), "aX\nY\ncd")
	}
	if result.Delta != 2 {
		t.Errorf("Delta = %d, want 2", result.Delta)
	}
	if result.NewRange != (Range{Start: 1, End: 4}) {
		t.Errorf("NewRange = %s, want [1:4)", result.NewRange)
	}
	if int64(b.Len()) != int64(len("ab\ncd"))+result.Delta {
		t.Errorf("Len() = %d does not match reported delta %d", b.Len(), result.Delta)
	}
}

func TestBufferWithoutNormalization(t *testing.T) {
	b := NewFromString("one\r\ntwo\r\n", WithNormalizeEOL(false), WithReadBlockSize(3))

	if got := b.Text(); got != "one\r\ntwo\r\n" {
		t.Errorf("Text() = %q, want original line endings", got)
	}
	if b.LineCount() != 3 {
		t.Errorf("LineCount() = %d, want 3", b.LineCount())
	}
	if got, _ := b.LineText(1); got != "one" {
		t.Errorf("LineText(1) = %q, want %q", got, "one")
	}
	if got, _ := b.Line(2); got != "two\r\n" {
		t.Errorf("Line(2) = %q, want %q", got, "two\r\n")
	}

	var sb strings.Builder
	if _, err := b.WriteTo(&sb); err != nil {
		t.Fatal(err)
	}
	if sb.String() != "one\r\ntwo\r\n" {
		t.Errorf("WriteTo() = %q, want unchanged text", sb.String())
	}
}
