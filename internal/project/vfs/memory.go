package vfs

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"slices"
	"sync"
	"syscall"
	"time"
)

// MemFS is an in-memory VFS. Paths are slash-separated and rooted at "/".
//
// Every write stamps the file with a strictly increasing modification time,
// so a rewrite is always visible to modification time checks even when it
// happens within the clock's resolution. MemFS is safe for concurrent use.
type MemFS struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	clock   time.Time
}

type memEntry struct {
	dir     bool
	data    []byte
	modTime time.Time
}

// NewMemFS creates an empty file system containing only "/".
func NewMemFS() *MemFS {
	return &MemFS{
		entries: map[string]*memEntry{"/": {dir: true}},
	}
}

var _ VFS = (*MemFS)(nil)

func clean(p string) string {
	return path.Clean("/" + p)
}

func pathErr(op, p string, err error) error {
	return &fs.PathError{Op: op, Path: p, Err: err}
}

// tick returns the next modification time. Caller holds mu for writing.
func (m *MemFS) tick() time.Time {
	now := time.Now()
	if !now.After(m.clock) {
		now = m.clock.Add(time.Nanosecond)
	}
	m.clock = now
	return now
}

// lookup returns the entry at p. Caller holds mu.
func (m *MemFS) lookup(p string) (*memEntry, bool) {
	e, ok := m.entries[p]
	return e, ok
}

// Open returns a reader over a snapshot of the file's content.
func (m *MemFS) Open(filePath string) (io.ReadCloser, error) {
	p := clean(filePath)
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.lookup(p)
	switch {
	case !ok:
		return nil, pathErr("open", p, fs.ErrNotExist)
	case e.dir:
		return nil, pathErr("open", p, syscall.EISDIR)
	}
	return io.NopCloser(bytes.NewReader(e.data)), nil
}

// Create returns a writer whose content replaces the file on Close.
// The parent directory must exist.
func (m *MemFS) Create(filePath string) (io.WriteCloser, error) {
	p := clean(filePath)
	m.mu.RLock()
	defer m.mu.RUnlock()

	if e, ok := m.lookup(p); ok && e.dir {
		return nil, pathErr("create", p, syscall.EISDIR)
	}
	if parent, ok := m.lookup(path.Dir(p)); !ok || !parent.dir {
		return nil, pathErr("create", p, fs.ErrNotExist)
	}
	return &memWriter{fs: m, path: p}, nil
}

// Stat describes the file or directory at filePath.
func (m *MemFS) Stat(filePath string) (FileInfo, error) {
	p := clean(filePath)
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.lookup(p)
	if !ok {
		return FileInfo{}, pathErr("stat", p, fs.ErrNotExist)
	}
	if e.dir {
		return NewFileInfo(p, 0, fs.ModeDir|0755, e.modTime), nil
	}
	return NewFileInfo(p, int64(len(e.data)), 0644, e.modTime), nil
}

// Rename moves a file, replacing any file at newPath. The file keeps its
// modification time, as rename(2) does.
func (m *MemFS) Rename(oldPath, newPath string) error {
	from, to := clean(oldPath), clean(newPath)
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(from)
	if !ok || e.dir {
		return pathErr("rename", from, fs.ErrNotExist)
	}
	if dst, ok := m.lookup(to); ok && dst.dir {
		return pathErr("rename", to, syscall.EISDIR)
	}
	if parent, ok := m.lookup(path.Dir(to)); !ok || !parent.dir {
		return pathErr("rename", to, fs.ErrNotExist)
	}
	delete(m.entries, from)
	m.entries[to] = e
	return nil
}

// Remove deletes a file.
func (m *MemFS) Remove(filePath string) error {
	p := clean(filePath)
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.lookup(p); !ok || e.dir {
		return pathErr("remove", p, fs.ErrNotExist)
	}
	delete(m.entries, p)
	return nil
}

// MkdirAll creates dirPath and any missing parents.
func (m *MemFS) MkdirAll(dirPath string, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mkdirAll(clean(dirPath))
}

func (m *MemFS) mkdirAll(p string) error {
	var missing []string
	for ; p != "/"; p = path.Dir(p) {
		if e, ok := m.lookup(p); ok {
			if !e.dir {
				return pathErr("mkdir", p, syscall.ENOTDIR)
			}
			break
		}
		missing = append(missing, p)
	}
	for _, dir := range missing {
		m.entries[dir] = &memEntry{dir: true, modTime: m.tick()}
	}
	return nil
}

// Abs returns the cleaned, rooted path.
func (m *MemFS) Abs(filePath string) (string, error) {
	return clean(filePath), nil
}

// Exists reports whether a file or directory exists at filePath.
func (m *MemFS) Exists(filePath string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.lookup(clean(filePath))
	return ok
}

func (m *MemFS) write(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[p] = &memEntry{data: data, modTime: m.tick()}
}

type memWriter struct {
	fs   *MemFS
	path string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	w.fs.write(w.path, bytes.Clone(w.buf.Bytes()))
	return nil
}

// AddFile writes content to filePath, creating parent directories. It
// replaces an existing file, which makes it handy for simulating external
// edits in tests.
func (m *MemFS) AddFile(filePath string, content string) error {
	p := clean(filePath)
	m.mu.Lock()
	err := m.mkdirAll(path.Dir(p))
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.write(p, []byte(content))
	return nil
}

// Files returns the paths of all regular files, sorted.
func (m *MemFS) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var files []string
	for p, e := range m.entries {
		if !e.dir {
			files = append(files, p)
		}
	}
	slices.Sort(files)
	return files
}
