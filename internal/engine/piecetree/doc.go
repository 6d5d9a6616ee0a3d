// Package piecetree implements the text storage of a buffer as a piece table
// indexed by a red-black tree.
//
// The document is a sequence of pieces. Each piece references a contiguous
// range of one backing chunk. Chunks loaded from disk are immutable; text
// typed or pasted afterwards is appended to a single accumulation chunk.
// Edits never copy document text, they only split, trim and relink pieces.
//
// # Tree Structure
//
// Pieces are kept in document order in a red-black tree. Every node caches
// the byte length and line feed count of its left subtree, so offset and line
// lookups descend the tree in O(log n). Nodes live in an arena slice and link
// to each other by index; index 0 is the black NIL sentinel.
//
// # Units
//
// Offsets, lengths and columns are UTF-8 byte counts. Lines are numbered
// from 1. A line's content includes its terminator.
//
// # Thread Safety
//
// A Tree is not safe for concurrent use. Queries update internal caches, so
// even concurrent reads must be serialized. The buffer package wraps a Tree
// with the locking required for a single-writer, multi-reader discipline.
//
// # Basic Usage
//
//	b := piecetree.NewBuilder()
//	b.AcceptChunk("I love cats!\n")
//	b.AcceptChunk("I love dogs!")
//	t := b.Build()
//
//	t.Insert(1, "+")
//	t.LineContent(1) // "I+ love cats!\n"
//	t.LineCount()    // 2
package piecetree
