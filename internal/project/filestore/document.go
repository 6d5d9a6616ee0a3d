// Package filestore manages open documents.
//
// A Document pairs a file on disk with the buffer holding its text. The
// FileStore loads documents through the vfs layer, saves them atomically,
// and reloads them after external changes by applying only the edits that
// turn the buffer's text into the text on disk.
package filestore

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/dshills/piecebuf/internal/engine/buffer"
	"github.com/dshills/piecebuf/internal/project/vfs"
)

// Document represents an open file.
type Document struct {
	// ID identifies the document for the lifetime of the process.
	ID uuid.UUID

	// Buffer holds the document text. It is safe for concurrent use and
	// may be edited directly.
	Buffer *buffer.Buffer

	// OpenedAt is when the document was opened.
	OpenedAt time.Time

	mu            sync.RWMutex
	path          string
	encoding      vfs.Encoding
	savedRevision buffer.RevisionID
	savedHash     uint64 // hash of the text as last loaded or saved
	diskHash      uint64 // hash of the raw file bytes
	diskModTime   time.Time
	closed        bool
}

func newDocument(path string, l *loaded) *Document {
	return &Document{
		ID:            uuid.New(),
		path:          path,
		Buffer:        l.buf,
		OpenedAt:      time.Now(),
		encoding:      l.encoding,
		savedRevision: l.buf.RevisionID(),
		savedHash:     textHash(l.buf),
		diskHash:      l.diskHash,
		diskModTime:   l.modTime,
	}
}

// Path returns the absolute path to the file.
func (d *Document) Path() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.path
}

func (d *Document) setPath(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.path = path
}

// IsDirty returns true if the text differs from what was last loaded or
// saved. Edits that restore the saved text leave the document clean.
func (d *Document) IsDirty() bool {
	d.mu.RLock()
	rev, hash := d.savedRevision, d.savedHash
	d.mu.RUnlock()

	if d.Buffer.RevisionID() == rev {
		return false
	}
	return textHash(d.Buffer) != hash
}

// IsClosed returns true if the document has been closed.
func (d *Document) IsClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}

// Encoding returns the encoding the document is saved with.
func (d *Document) Encoding() vfs.Encoding {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.encoding
}

// SetEncoding changes the encoding used by the next save.
func (d *Document) SetEncoding(enc vfs.Encoding) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.encoding = enc
}

// DiskModTime returns the file's modification time when it was last read
// or written.
func (d *Document) DiskModTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.diskModTime
}

// markSynced records that revision rev, whose text hashes to hash, matches
// the file on disk.
func (d *Document) markSynced(rev buffer.RevisionID, hash, diskHash uint64, modTime time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.savedRevision = rev
	d.savedHash = hash
	d.diskHash = diskHash
	d.diskModTime = modTime
}

// markSeen records a file hash that was reported without being loaded, so
// the same content is not reported again.
func (d *Document) markSeen(diskHash uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.diskHash = diskHash
}

func (d *Document) markClosed() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

func (d *Document) lastDiskHash() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.diskHash
}

// textHash hashes the stored text of b line by line.
func textHash(b *buffer.Buffer) uint64 {
	h := xxhash.New()
	for _, line := range b.Lines() {
		_, _ = h.WriteString(line)
	}
	return h.Sum64()
}
