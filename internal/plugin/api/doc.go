// Package api provides the Lua modules scripts use to edit a buffer.
//
// Modules are collected in a Registry and injected into a sandboxed
// state. Each module is available as a global and through require, and
// the aggregate "piecebuf" module exposes all of them:
//
//	local pb = require("piecebuf")
//	pb.buf.insert(0, "-- header\n")
//
// The buf module works in byte offsets starting at 0 and in 1-based
// line and column positions, matching the buffer package:
//
//	buf.text() -> string
//	buf.text_range(start, stop) -> string
//	buf.line(n) -> string                   -- without terminator
//	buf.lines([first[, last]]) -> {string}  -- with terminators
//	buf.line_count() -> number
//	buf.len() -> number
//	buf.insert(offset, text) -> end_offset
//	buf.delete(start, stop)
//	buf.delete_after(offset[, count])      -- count defaults to 1
//	buf.delete_before(offset[, count])     -- count defaults to 1
//	buf.replace(start, stop, text) -> end_offset
//	buf.range(line, col, end_line, end_col) -> string
//	buf.offset_at(line, col) -> offset
//	buf.position_at(offset) -> line, col
//	buf.apply({{start=, stop=, text=}, ...})
//	buf.path() -> string
//	buf.modified() -> boolean
//
// Every call is charged to the state's sandbox, so the instruction limit
// bounds how much host work a script can request.
package api
