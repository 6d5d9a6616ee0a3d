package piecetree

import (
	"io"
	"strings"
	"unicode/utf8"
)

// bom is the UTF-8 encoded byte order mark.
const bom = "\uFEFF"

// Builder assembles a Tree from text delivered in chunks, such as blocks
// read from a file.
//
// The first chunk loses a leading byte order mark. A "\r" at the end of a
// chunk is held back until the next chunk arrives so that a "\r\n" split
// across chunks is still recognized as one line ending.
type Builder struct {
	chunks    []string
	started   bool
	pendingCR bool
	hadBOM    bool
	hasCR     bool

	lf, crlf, cr int

	normalize bool
	blockSize int
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithNormalizeEOL controls whether Build converts line endings to "\n".
// Enabled by default.
func WithNormalizeEOL(enabled bool) BuilderOption {
	return func(b *Builder) {
		b.normalize = enabled
	}
}

// WithBlockSize sets the read size used by ReadFrom.
func WithBlockSize(size int) BuilderOption {
	return func(b *Builder) {
		if size > 0 {
			b.blockSize = size
		}
	}
}

// NewBuilder creates an empty builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		chunks:    make([]string, 0, 16),
		normalize: true,
		blockSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AcceptChunk appends a block of text.
func (b *Builder) AcceptChunk(s string) {
	if s == "" {
		return
	}
	if !b.started {
		b.started = true
		if strings.HasPrefix(s, bom) {
			b.hadBOM = true
			s = s[len(bom):]
		}
		if s == "" {
			return
		}
	}
	if b.pendingCR {
		s = "\r" + s
		b.pendingCR = false
	}
	if s[len(s)-1] == '\r' {
		b.pendingCR = true
		s = s[:len(s)-1]
	}
	if s == "" {
		return
	}
	b.countLineEndings(s)
	b.chunks = append(b.chunks, s)
}

// ReadFrom reads r to EOF in fixed-size blocks, feeding each block to
// AcceptChunk. Blocks never end inside a UTF-8 sequence.
func (b *Builder) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, b.blockSize)
	var carry []byte
	var total int64
	for {
		n, err := r.Read(buf)
		total += int64(n)
		if n > 0 {
			data := append(carry, buf[:n]...)
			cut := completeRunes(data)
			b.AcceptChunk(string(data[:cut]))
			carry = append([]byte(nil), data[cut:]...)
		}
		if err == io.EOF {
			if len(carry) > 0 {
				b.AcceptChunk(string(carry))
			}
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// completeRunes returns the length of the longest prefix of data that does
// not end inside a UTF-8 sequence.
func completeRunes(data []byte) int {
	for i := len(data) - 1; i >= 0 && i >= len(data)-utf8.UTFMax; i-- {
		if utf8.RuneStart(data[i]) {
			if utf8.FullRune(data[i:]) {
				return len(data)
			}
			return i
		}
	}
	return len(data)
}

func (b *Builder) countLineEndings(s string) {
	crlf := strings.Count(s, "\r\n")
	cr := strings.Count(s, "\r") - crlf
	b.crlf += crlf
	b.cr += cr
	b.lf += strings.Count(s, "\n") - crlf
	if crlf+cr > 0 {
		b.hasCR = true
	}
}

// LineEndings returns how many "\n", "\r\n" and lone "\r" line endings
// the input contained before normalization.
func (b *Builder) LineEndings() (lf, crlf, cr int) {
	return b.lf, b.crlf, b.cr
}

// HadBOM reports whether the input started with a byte order mark.
func (b *Builder) HadBOM() bool {
	return b.hadBOM
}

// Build creates the tree. The builder should not be used afterwards.
func (b *Builder) Build(opts ...Option) *Tree {
	if b.pendingCR {
		b.chunks = append(b.chunks, "\r")
		b.countLineEndings("\r")
		b.pendingCR = false
	}
	normalized := !b.hasCR
	if b.normalize && b.hasCR {
		for i, s := range b.chunks {
			b.chunks[i] = normalizeEOL(s)
		}
		normalized = true
	}
	return New(b.chunks, normalized, opts...)
}
