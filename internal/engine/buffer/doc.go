// Package buffer provides a thread-safe text buffer built on top of the
// piece tree. It serves as the primary interface for text manipulation by
// documents, scripts and the command line.
//
// The buffer package provides:
//
//   - Single-writer, multi-reader access via sync.RWMutex
//   - Validated edits that return errors instead of panicking
//   - Conversion between byte offsets and 1-based line/column positions
//   - Line ending detection on load and restoration on save
//   - Revision tracking for change management
//
// Basic usage:
//
//	// Create a buffer with some text
//	buf := buffer.NewFromString("Hello, World!")
//
//	// Insert text
//	buf.Insert(7, "Beautiful ")  // "Hello, Beautiful World!"
//
//	// Delete text
//	buf.Delete(0, 7)  // "Beautiful World!"
//
//	// Read a line, terminator included
//	line, _ := buf.Line(1)
//
// Position Types:
//
//   - ByteOffset: Raw byte position in the buffer
//   - Position: Line and column, both 1-based, column in bytes
//   - Range: Half-open byte range
//   - LineRange: Half-open range between two positions
//
// Thread Safety:
//
// All Buffer methods are thread-safe. Write operations acquire an exclusive
// lock. Read operations share a read lock; the few queries that update the
// tree's lookup caches are additionally serialized among themselves.
package buffer
