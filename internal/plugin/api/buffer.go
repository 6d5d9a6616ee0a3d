package api

import (
	"iter"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/piecebuf/internal/engine/buffer"
	plua "github.com/dshills/piecebuf/internal/plugin/lua"
)

// BufferProvider is the subset of *buffer.Buffer the buf module uses.
type BufferProvider interface {
	Text() string
	TextRange(start, end int64) (string, error)
	LineText(lineNo int) (string, error)
	LinesRange(first, last int) ([]string, error)
	Lines() iter.Seq2[int, string]
	LineCount() int
	Len() int64
	Insert(offset int64, text string) (int64, error)
	Delete(start, end int64) error
	DeleteAfter(offset int64, count int) error
	DeleteBefore(offset int64, count int) error
	Replace(start, end int64, text string) (int64, error)
	ContentInRange(r buffer.LineRange) (string, error)
	OffsetAt(pos buffer.Position) (int64, error)
	PositionAt(offset int64) (buffer.Position, error)
	ApplyEdits(edits []buffer.Edit) error
}

// Meter charges host calls against a script's budget.
type Meter interface {
	Charge(L *lua.LState, n int64)
}

// Context carries what modules need from the host.
type Context struct {
	Buffer BufferProvider
	Path   string
	// Modified reports unsaved changes; nil means never modified.
	Modified func() bool
	// Meter may be nil for unmetered use.
	Meter Meter
}

// BufferModule implements the buf API module.
type BufferModule struct {
	ctx *Context
}

// NewBufferModule creates a new buffer module.
func NewBufferModule(ctx *Context) *BufferModule {
	return &BufferModule{ctx: ctx}
}

// Name returns the module name.
func (m *BufferModule) Name() string {
	return "buf"
}

// Functions returns the module's Lua functions.
func (m *BufferModule) Functions() map[string]lua.LGFunction {
	fns := map[string]lua.LGFunction{
		"text":          m.text,
		"text_range":    m.textRange,
		"line":          m.line,
		"lines":         m.lines,
		"line_count":    m.lineCount,
		"len":           m.bufLen,
		"insert":        m.insert,
		"delete":        m.delete,
		"delete_after":  m.deleteAfter,
		"delete_before": m.deleteBefore,
		"replace":       m.replace,
		"range":         m.contentInRange,
		"offset_at":     m.offsetAt,
		"position_at":   m.positionAt,
		"apply":         m.apply,
		"path":          m.path,
		"modified":      m.modified,
	}
	for name, fn := range fns {
		fns[name] = m.metered(fn)
	}
	return fns
}

func (m *BufferModule) metered(fn lua.LGFunction) lua.LGFunction {
	return func(L *lua.LState) int {
		if m.ctx.Meter != nil {
			m.ctx.Meter.Charge(L, 1)
		}
		return fn(L)
	}
}

// buf returns the buffer or raises a Lua error naming op.
func (m *BufferModule) buf(L *lua.LState, op string) BufferProvider {
	if m.ctx.Buffer == nil {
		L.RaiseError("%s: no buffer available", op)
	}
	return m.ctx.Buffer
}

func checkOffset(L *lua.LState, n int, name string) int64 {
	v := L.CheckInt64(n)
	if v < 0 {
		L.ArgError(n, name+" must be non-negative")
	}
	return v
}

// text() -> string
func (m *BufferModule) text(L *lua.LState) int {
	L.Push(lua.LString(m.buf(L, "text").Text()))
	return 1
}

// text_range(start, stop) -> string
func (m *BufferModule) textRange(L *lua.LState) int {
	start := checkOffset(L, 1, "start")
	end := checkOffset(L, 2, "stop")
	text, err := m.buf(L, "text_range").TextRange(start, end)
	if err != nil {
		L.RaiseError("text_range: %v", err)
	}
	L.Push(lua.LString(text))
	return 1
}

// line(n) -> string
func (m *BufferModule) line(L *lua.LState) int {
	n := L.CheckInt(1)
	text, err := m.buf(L, "line").LineText(n)
	if err != nil {
		L.RaiseError("line: %v", err)
	}
	L.Push(lua.LString(text))
	return 1
}

// lines([first[, last]]) -> {string}
func (m *BufferModule) lines(L *lua.LState) int {
	b := m.buf(L, "lines")
	bridge := plua.NewBridge(L)

	if L.GetTop() == 0 {
		var all []string
		for _, line := range b.Lines() {
			all = append(all, line)
		}
		L.Push(bridge.StringSliceToTable(all))
		return 1
	}

	first := L.CheckInt(1)
	last := L.OptInt(2, b.LineCount())
	lines, err := b.LinesRange(first, last)
	if err != nil {
		L.RaiseError("lines: %v", err)
	}
	L.Push(bridge.StringSliceToTable(lines))
	return 1
}

// line_count() -> number
func (m *BufferModule) lineCount(L *lua.LState) int {
	L.Push(lua.LNumber(m.buf(L, "line_count").LineCount()))
	return 1
}

// len() -> number
func (m *BufferModule) bufLen(L *lua.LState) int {
	L.Push(lua.LNumber(m.buf(L, "len").Len()))
	return 1
}

// insert(offset, text) -> end_offset
func (m *BufferModule) insert(L *lua.LState) int {
	offset := checkOffset(L, 1, "offset")
	text := L.CheckString(2)
	end, err := m.buf(L, "insert").Insert(offset, text)
	if err != nil {
		L.RaiseError("insert: %v", err)
	}
	L.Push(lua.LNumber(end))
	return 1
}

// delete(start, stop)
func (m *BufferModule) delete(L *lua.LState) int {
	start := checkOffset(L, 1, "start")
	end := L.CheckInt64(2)
	if end < start {
		L.ArgError(2, "stop must be >= start")
	}
	if err := m.buf(L, "delete").Delete(start, end); err != nil {
		L.RaiseError("delete: %v", err)
	}
	return 0
}

// delete_after(offset[, count])
func (m *BufferModule) deleteAfter(L *lua.LState) int {
	offset := checkOffset(L, 1, "offset")
	count := L.OptInt(2, 1)
	if err := m.buf(L, "delete_after").DeleteAfter(offset, count); err != nil {
		L.RaiseError("delete_after: %v", err)
	}
	return 0
}

// delete_before(offset[, count])
func (m *BufferModule) deleteBefore(L *lua.LState) int {
	offset := checkOffset(L, 1, "offset")
	count := L.OptInt(2, 1)
	if err := m.buf(L, "delete_before").DeleteBefore(offset, count); err != nil {
		L.RaiseError("delete_before: %v", err)
	}
	return 0
}

// replace(start, stop, text) -> end_offset
func (m *BufferModule) replace(L *lua.LState) int {
	start := checkOffset(L, 1, "start")
	end := L.CheckInt64(2)
	text := L.CheckString(3)
	if end < start {
		L.ArgError(2, "stop must be >= start")
	}
	newEnd, err := m.buf(L, "replace").Replace(start, end, text)
	if err != nil {
		L.RaiseError("replace: %v", err)
	}
	L.Push(lua.LNumber(newEnd))
	return 1
}

// range(line, col, end_line, end_col) -> string
func (m *BufferModule) contentInRange(L *lua.LState) int {
	r := buffer.LineRange{
		Start: buffer.Position{Line: L.CheckInt(1), Column: L.CheckInt(2)},
		End:   buffer.Position{Line: L.CheckInt(3), Column: L.CheckInt(4)},
	}
	text, err := m.buf(L, "range").ContentInRange(r)
	if err != nil {
		L.RaiseError("range: %v", err)
	}
	L.Push(lua.LString(text))
	return 1
}

// offset_at(line, col) -> offset
func (m *BufferModule) offsetAt(L *lua.LState) int {
	pos := buffer.Position{Line: L.CheckInt(1), Column: L.CheckInt(2)}
	offset, err := m.buf(L, "offset_at").OffsetAt(pos)
	if err != nil {
		L.RaiseError("offset_at: %v", err)
	}
	L.Push(lua.LNumber(offset))
	return 1
}

// position_at(offset) -> line, col
func (m *BufferModule) positionAt(L *lua.LState) int {
	offset := checkOffset(L, 1, "offset")
	pos, err := m.buf(L, "position_at").PositionAt(offset)
	if err != nil {
		L.RaiseError("position_at: %v", err)
	}
	L.Push(lua.LNumber(pos.Line))
	L.Push(lua.LNumber(pos.Column))
	return 2
}

// apply({{start=, stop=, text=}, ...})
// Edits are applied atomically, last offset first; the order in the
// table does not matter.
func (m *BufferModule) apply(L *lua.LState) int {
	tbl := L.CheckTable(1)
	bridge := plua.NewBridge(L)

	edits := make([]buffer.Edit, 0, tbl.Len())
	for i := 1; i <= tbl.Len(); i++ {
		et, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			L.ArgError(1, "edits must be tables")
		}
		start, ok := bridge.GetTableInt(et, "start")
		if !ok {
			L.ArgError(1, "edit needs an integer start")
		}
		end, ok := bridge.GetTableInt(et, "stop")
		if !ok {
			end = start
		}
		if end < start {
			L.ArgError(1, "edit stop must be >= start")
		}
		text, _ := bridge.GetTableString(et, "text")
		edits = append(edits, buffer.Edit{Range: buffer.Range{Start: start, End: end}, NewText: text})
	}

	sortEditsDescending(edits)
	if a, b, ok := firstOverlap(edits); ok {
		L.RaiseError("apply: edits %s and %s overlap", a.Range, b.Range)
	}
	if err := m.buf(L, "apply").ApplyEdits(edits); err != nil {
		L.RaiseError("apply: %v", err)
	}
	return 0
}

// path() -> string
func (m *BufferModule) path(L *lua.LState) int {
	L.Push(lua.LString(m.ctx.Path))
	return 1
}

// modified() -> boolean
func (m *BufferModule) modified(L *lua.LState) int {
	L.Push(lua.LBool(m.ctx.Modified != nil && m.ctx.Modified()))
	return 1
}
