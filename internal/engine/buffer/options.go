package buffer

import (
	"strings"

	"github.com/dshills/piecebuf/internal/engine/piecetree"
)

// LineEnding specifies the line ending style used when writing a buffer.
type LineEnding uint8

const (
	LineEndingLF   LineEnding = iota // Unix: \n
	LineEndingCRLF                   // Windows: \r\n
	LineEndingCR                     // Old Mac: \r
)

// String returns the string representation of the line ending.
func (le LineEnding) String() string {
	switch le {
	case LineEndingCRLF:
		return "\\r\\n"
	case LineEndingCR:
		return "\\r"
	default:
		return "\\n"
	}
}

// Sequence returns the actual line ending characters.
func (le LineEnding) Sequence() string {
	switch le {
	case LineEndingCRLF:
		return "\r\n"
	case LineEndingCR:
		return "\r"
	default:
		return "\n"
	}
}

// ParseLineEnding parses "lf", "crlf" or "cr" (case-insensitive).
func ParseLineEnding(s string) (LineEnding, bool) {
	switch strings.ToLower(s) {
	case "lf", "unix":
		return LineEndingLF, true
	case "crlf", "windows", "dos":
		return LineEndingCRLF, true
	case "cr", "mac":
		return LineEndingCR, true
	}
	return LineEndingLF, false
}

// Option is a functional option for configuring a Buffer.
type Option func(*Buffer)

// WithLineEnding fixes the line ending used by WriteTo instead of
// detecting it from the loaded text.
func WithLineEnding(le LineEnding) Option {
	return func(b *Buffer) {
		b.lineEnding = le
		b.fixedEnding = true
	}
}

// WithLF configures the buffer to write Unix line endings (\n).
func WithLF() Option {
	return WithLineEnding(LineEndingLF)
}

// WithCRLF configures the buffer to write Windows line endings (\r\n).
func WithCRLF() Option {
	return WithLineEnding(LineEndingCRLF)
}

// WithNormalizeEOL controls whether loaded and inserted text has its line
// endings converted to "\n". Enabled by default.
func WithNormalizeEOL(enabled bool) Option {
	return func(b *Buffer) {
		b.normalize = enabled
	}
}

// WithReadBlockSize sets the block size used by NewFromReader.
func WithReadBlockSize(size int) Option {
	return func(b *Buffer) {
		b.blockSize = size
	}
}

// WithTreeOptions passes options to the underlying piece tree.
func WithTreeOptions(opts ...piecetree.Option) Option {
	return func(b *Buffer) {
		b.treeOpts = append(b.treeOpts, opts...)
	}
}

// WithChunkSize sets the insert size above which text gets its own chunk.
func WithChunkSize(size int) Option {
	return WithTreeOptions(piecetree.WithChunkSize(size))
}

// WithSearchCacheSize sets the number of recent lookups the tree remembers.
func WithSearchCacheSize(size int) Option {
	return WithTreeOptions(piecetree.WithSearchCacheSize(size))
}

// WithInvariantChecks validates the tree after every edit. Debug only.
func WithInvariantChecks(enabled bool) Option {
	return WithTreeOptions(piecetree.WithInvariantChecks(enabled))
}

// DetectLineEnding returns a LineEnding based on the most common line ending in the text.
// Returns LineEndingLF if no line endings are found.
func DetectLineEnding(text string) LineEnding {
	crlf := strings.Count(text, "\r\n")
	cr := strings.Count(text, "\r") - crlf
	lf := strings.Count(text, "\n") - crlf
	return chooseLineEnding(lf, crlf, cr)
}

// chooseLineEnding picks the most common style, preferring LF on ties.
func chooseLineEnding(lf, crlf, cr int) LineEnding {
	switch {
	case crlf > lf && crlf >= cr:
		return LineEndingCRLF
	case cr > lf && cr > crlf:
		return LineEndingCR
	default:
		return LineEndingLF
	}
}
