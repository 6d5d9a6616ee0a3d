package api

import (
	"context"
	"errors"
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/piecebuf/internal/engine/buffer"
	plua "github.com/dshills/piecebuf/internal/plugin/lua"
)

// setup returns a state with the buf module bound to a buffer holding text.
func setup(t *testing.T, text string, opts ...plua.StateOption) (*plua.State, *buffer.Buffer, *Context) {
	t.Helper()

	state, err := plua.NewState(opts...)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	t.Cleanup(func() { _ = state.Close() })

	buf := buffer.NewFromString(text)
	ctx := &Context{Buffer: buf, Path: "/tmp/doc.txt", Meter: state.Sandbox()}

	reg := NewRegistry()
	if err := reg.Register(NewBufferModule(ctx)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.InjectAll(state); err != nil {
		t.Fatalf("InjectAll: %v", err)
	}
	return state, buf, ctx
}

func run(t *testing.T, state *plua.State, code string) {
	t.Helper()
	if err := state.DoString(context.Background(), code); err != nil {
		t.Fatalf("DoString(%q): %v", code, err)
	}
}

func TestBufferModuleQueries(t *testing.T) {
	state, _, _ := setup(t, "alpha\nbeta\ngamma")

	run(t, state, `
		assert(buf.text() == "alpha\nbeta\ngamma")
		assert(buf.len() == 16)
		assert(buf.line_count() == 3)
		assert(buf.line(2) == "beta")
		assert(buf.text_range(6, 10) == "beta")
		assert(buf.range(1, 3, 2, 3) == "pha\nbe")

		local all = buf.lines()
		assert(#all == 3 and all[1] == "alpha\n" and all[3] == "gamma")
		local tail = buf.lines(2)
		assert(#tail == 2 and tail[1] == "beta\n")
		local one = buf.lines(1, 1)
		assert(#one == 1 and one[1] == "alpha\n")

		assert(buf.offset_at(2, 1) == 6)
		local l, c = buf.position_at(8)
		assert(l == 2 and c == 3)
		assert(buf.path() == "/tmp/doc.txt")
		assert(buf.modified() == false)
	`)
}

func TestBufferModuleEdits(t *testing.T) {
	tests := []struct {
		name string
		text string
		code string
		want string
	}{
		{"insert", "world", `assert(buf.insert(0, "hello ") == 6)`, "hello world"},
		{"delete", "hello world", `buf.delete(5, 11)`, "hello"},
		{"delete_after default", "abc", `buf.delete_after(0)`, "bc"},
		{"delete_after count", "abcdef", `buf.delete_after(1, 3)`, "aef"},
		{"delete_before default", "abc", `buf.delete_before(3)`, "ab"},
		{"delete_before count", "abcdef", `buf.delete_before(4, 2)`, "abef"},
		{"replace", "one two", `assert(buf.replace(4, 7, "three") == 9)`, "one three"},
		{
			"apply any order",
			"aaa bbb ccc",
			`buf.apply({{start = 0, stop = 3, text = "A"}, {start = 8, stop = 11, text = "C"}, {start = 4, text = "+"}})`,
			"A +bbb C",
		},
		{"multiline insert", "x", `buf.insert(1, "\ny\nz")`, "x\ny\nz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, buf, _ := setup(t, tt.text)
			run(t, state, tt.code)
			if got := buf.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
			if err := buf.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestBufferModuleErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"negative offset", `buf.insert(-1, "x")`, "non-negative"},
		{"offset past end", `buf.insert(100, "x")`, "insert"},
		{"bad line", `buf.line(9)`, "line"},
		{"inverted delete", `buf.delete(3, 1)`, "stop must be >= start"},
		{"overlapping apply", `buf.apply({{start = 0, stop = 3}, {start = 1, stop = 2}})`, "[0:3) and [1:2) overlap"},
		{"insert inside apply delete", `buf.apply({{start = 0, stop = 4}, {start = 2, text = "x"}})`, "overlap"},
		{"inverted apply", `buf.apply({{start = 3, stop = 1}})`, "stop must be >= start"},
		{"apply without start", `buf.apply({{text = "x"}})`, "start"},
		{"bad position", `buf.offset_at(0, 1)`, "offset_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, buf, _ := setup(t, "abcdef")
			err := state.DoString(context.Background(), tt.code)
			if err == nil {
				t.Fatalf("%s: expected error", tt.code)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
			if buf.Text() != "abcdef" {
				t.Errorf("failed call modified buffer: %q", buf.Text())
			}
		})
	}
}

func TestBufferModuleNoBuffer(t *testing.T) {
	state, _, ctx := setup(t, "")
	ctx.Buffer = nil
	err := state.DoString(context.Background(), `buf.text()`)
	if err == nil || !strings.Contains(err.Error(), "no buffer available") {
		t.Errorf("err = %v, want no buffer available", err)
	}
}

func TestBufferModuleModified(t *testing.T) {
	state, _, ctx := setup(t, "x")
	dirty := true
	ctx.Modified = func() bool { return dirty }
	run(t, state, `assert(buf.modified() == true)`)
	dirty = false
	run(t, state, `assert(buf.modified() == false)`)
}

func TestBufferModuleMetered(t *testing.T) {
	state, _, _ := setup(t, "abc", plua.WithInstructionLimit(5))

	run(t, state, `for i = 1, 5 do buf.len() end`)

	err := state.DoString(context.Background(), `for i = 1, 6 do buf.len() end`)
	if !errors.Is(err, plua.ErrInstructionLimit) {
		t.Errorf("err = %v, want ErrInstructionLimit", err)
	}
}

func TestRequireModules(t *testing.T) {
	state, buf, _ := setup(t, "")

	run(t, state, `
		local b = require("buf")
		b.insert(0, "via require")
		local pb = require("piecebuf")
		assert(pb.buf == b)
		assert(pb.version == "`+Version+`")
	`)
	if buf.Text() != "via require" {
		t.Errorf("Text() = %q", buf.Text())
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	mod := NewBufferModule(&Context{})

	if err := reg.Register(mod); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(mod); err == nil {
		t.Error("duplicate Register should fail")
	}
	if err := reg.Register(namedModule(AggregateModule)); err == nil {
		t.Error("reserved name should be rejected")
	}
	if err := reg.Register(namedModule("aaa")); err != nil {
		t.Fatal(err)
	}

	if got, ok := reg.Get("buf"); !ok || got != mod {
		t.Error("Get(buf) failed")
	}
	if _, ok := reg.Get("nope"); ok {
		t.Error("Get(nope) should fail")
	}
	if names := reg.List(); len(names) != 2 || names[0] != "aaa" || names[1] != "buf" {
		t.Errorf("List() = %v", names)
	}

	state, err := plua.NewState()
	if err != nil {
		t.Fatal(err)
	}
	_ = state.Close()
	if err := reg.InjectAll(state); !errors.Is(err, plua.ErrStateClosed) {
		t.Errorf("InjectAll on closed state = %v", err)
	}
}

type namedModule string

func (m namedModule) Name() string                         { return string(m) }
func (m namedModule) Functions() map[string]lua.LGFunction { return nil }

func TestSortEditsDescending(t *testing.T) {
	edits := []buffer.Edit{
		buffer.NewInsert(5, "a"),
		buffer.NewDelete(0, 2),
		buffer.NewDelete(5, 8),
		buffer.NewInsert(9, "b"),
	}
	sortEditsDescending(edits)

	want := []buffer.Range{{Start: 9, End: 9}, {Start: 5, End: 8}, {Start: 5, End: 5}, {Start: 0, End: 2}}
	for i, e := range edits {
		if e.Range != want[i] {
			t.Errorf("edits[%d] = %v, want %v", i, e.Range, want[i])
		}
	}
}

func TestFirstOverlap(t *testing.T) {
	tests := []struct {
		name  string
		edits []buffer.Edit
		want  bool
	}{
		{"none", nil, false},
		{"disjoint", []buffer.Edit{buffer.NewDelete(4, 6), buffer.NewDelete(0, 2)}, false},
		{"touching", []buffer.Edit{buffer.NewInsert(4, "x"), buffer.NewDelete(2, 4)}, false},
		{"shared bytes", []buffer.Edit{buffer.NewDelete(3, 6), buffer.NewDelete(0, 4)}, true},
		{"insert inside delete", []buffer.Edit{buffer.NewInsert(3, "x"), buffer.NewDelete(0, 4)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, got := firstOverlap(tt.edits); got != tt.want {
				t.Errorf("firstOverlap = %v, want %v", got, tt.want)
			}
		})
	}
}
