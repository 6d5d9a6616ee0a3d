package vfs

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding represents a character encoding.
type Encoding string

const (
	// EncodingUTF8 is UTF-8 encoding (default).
	EncodingUTF8 Encoding = "utf-8"

	// EncodingUTF8BOM is UTF-8 encoding with BOM.
	EncodingUTF8BOM Encoding = "utf-8-bom"

	// EncodingUTF16LE is UTF-16 Little Endian with BOM.
	EncodingUTF16LE Encoding = "utf-16le"

	// EncodingUTF16BE is UTF-16 Big Endian with BOM.
	EncodingUTF16BE Encoding = "utf-16be"

	// EncodingLatin1 is ISO-8859-1 (Latin-1).
	EncodingLatin1 Encoding = "iso-8859-1"
)

// sniffLen is how much of a file is inspected to pick an encoding.
const sniffLen = 8192

// BOM (Byte Order Mark) constants
var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DetectEncoding picks the encoding of content from its BOM, falling back to
// UTF-8 when the sample is valid UTF-8 and Latin-1 otherwise. A rune cut off
// at the end of the sample does not count as invalid.
func DetectEncoding(sample []byte) Encoding {
	switch {
	case bytes.HasPrefix(sample, bomUTF8):
		return EncodingUTF8BOM
	case bytes.HasPrefix(sample, bomUTF16LE):
		return EncodingUTF16LE
	case bytes.HasPrefix(sample, bomUTF16BE):
		return EncodingUTF16BE
	}

	if n := len(sample); n > 0 {
		start := n - 1
		for start > 0 && start > n-utf8.UTFMax && !utf8.RuneStart(sample[start]) {
			start--
		}
		if !utf8.FullRune(sample[start:]) {
			sample = sample[:start]
		}
	}
	if utf8.Valid(sample) {
		return EncodingUTF8
	}
	return EncodingLatin1
}

// IsBinary attempts to detect if content is binary (not text).
// Uses heuristics: presence of null bytes, high ratio of non-printable characters.
func IsBinary(sample []byte) bool {
	if len(sample) == 0 {
		return false
	}
	if len(sample) > sniffLen {
		sample = sample[:sniffLen]
	}
	// UTF-16 text is full of NUL bytes.
	if bytes.HasPrefix(sample, bomUTF16LE) || bytes.HasPrefix(sample, bomUTF16BE) {
		return false
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}

	nonText := 0
	for _, b := range sample {
		if b < 32 && b != '\t' && b != '\n' && b != '\r' && b != '\f' {
			nonText++
		}
	}
	return float64(nonText)/float64(len(sample)) > 0.1
}

// Decoded is a UTF-8 view of an encoded stream.
type Decoded struct {
	io.Reader
	Encoding Encoding
	Binary   bool
}

// NewDecoder sniffs the head of r and returns a reader producing UTF-8 text
// without a byte order mark.
func NewDecoder(r io.Reader) (*Decoded, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, err
	}

	d := &Decoded{Encoding: DetectEncoding(head), Binary: IsBinary(head)}
	switch d.Encoding {
	case EncodingUTF8:
		d.Reader = br
	case EncodingLatin1:
		d.Reader = transform.NewReader(br, charmap.ISO8859_1.NewDecoder())
	default:
		// BOMOverride consumes the mark and switches to the matching decoder.
		d.Reader = transform.NewReader(br, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	}
	return d, nil
}

// NewEncoder returns a writer that encodes UTF-8 text written to it as enc,
// emitting a byte order mark first where enc carries one. Close flushes any
// buffered output; it does not close w.
func NewEncoder(w io.Writer, enc Encoding) io.WriteCloser {
	switch enc {
	case EncodingUTF8BOM:
		return &bomWriter{w: w, bom: bomUTF8}
	case EncodingUTF16LE:
		return transform.NewWriter(w, unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder())
	case EncodingUTF16BE:
		return transform.NewWriter(w, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder())
	case EncodingLatin1:
		return transform.NewWriter(w, charmap.ISO8859_1.NewEncoder())
	default:
		return nopWriteCloser{w}
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// bomWriter writes bom before the first byte, or on Close if nothing
// was written.
type bomWriter struct {
	w       io.Writer
	bom     []byte
	written bool
}

func (b *bomWriter) Write(p []byte) (int, error) {
	if err := b.writeBOM(); err != nil {
		return 0, err
	}
	return b.w.Write(p)
}

func (b *bomWriter) Close() error {
	return b.writeBOM()
}

func (b *bomWriter) writeBOM() error {
	if b.written {
		return nil
	}
	b.written = true
	_, err := b.w.Write(b.bom)
	return err
}
