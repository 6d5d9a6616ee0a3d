package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"runtime"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/piecebuf/internal/engine/buffer"
	perrors "github.com/dshills/piecebuf/internal/project/errors"
	"github.com/dshills/piecebuf/internal/project/vfs"
)

// DefaultMaxFileSize is the largest file Open accepts unless configured.
const DefaultMaxFileSize = 256 * 1024 * 1024

// FileStore manages open documents.
// It provides thread-safe access to documents and tracks their state.
type FileStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
	vfs       vfs.VFS

	maxFileSize int64 // 0 = unlimited
	bufferOpts  []buffer.Option
	parallelism int

	onOpen   []func(doc *Document)
	onClose  []func(path string)
	onSave   []func(doc *Document)
	onReload []func(doc *Document)
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithMaxFileSize sets the maximum file size. Zero means unlimited.
func WithMaxFileSize(size int64) Option {
	return func(s *FileStore) {
		s.maxFileSize = size
	}
}

// WithBufferOptions sets the options every document buffer is created with.
func WithBufferOptions(opts ...buffer.Option) Option {
	return func(s *FileStore) {
		s.bufferOpts = append(s.bufferOpts, opts...)
	}
}

// WithParallelism bounds how many files OpenAll loads at once.
func WithParallelism(n int) Option {
	return func(s *FileStore) {
		s.parallelism = n
	}
}

// NewFileStore creates a new FileStore.
func NewFileStore(v vfs.VFS, opts ...Option) *FileStore {
	s := &FileStore{
		documents:   make(map[string]*Document),
		vfs:         v,
		maxFileSize: DefaultMaxFileSize,
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loaded is the result of reading a file into a fresh buffer.
type loaded struct {
	buf      *buffer.Buffer
	encoding vfs.Encoding
	diskHash uint64
	modTime  time.Time
}

// load decodes the file at absPath into a new buffer, hashing the raw bytes
// on the way through.
func (s *FileStore) load(ctx context.Context, op, absPath string) (*loaded, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := s.vfs.Stat(absPath)
	if err != nil {
		return nil, &perrors.PathError{Op: op, Path: absPath, Err: notFound(err)}
	}
	if info.IsDir() {
		return nil, &perrors.PathError{Op: op, Path: absPath, Err: perrors.ErrIsDirectory}
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return nil, &perrors.PathError{Op: op, Path: absPath, Err: perrors.ErrFileTooLarge}
	}

	f, err := s.vfs.Open(absPath)
	if err != nil {
		return nil, &perrors.PathError{Op: op, Path: absPath, Err: notFound(err)}
	}
	defer f.Close()

	h := xxhash.New()
	dec, err := vfs.NewDecoder(io.TeeReader(f, h))
	if err != nil {
		return nil, &perrors.PathError{Op: op, Path: absPath, Err: err}
	}
	if dec.Binary {
		return nil, &perrors.PathError{Op: op, Path: absPath, Err: perrors.ErrBinaryFile}
	}

	buf, err := buffer.NewFromReader(dec, s.bufferOpts...)
	if err != nil {
		return nil, &perrors.PathError{Op: op, Path: absPath, Err: err}
	}
	return &loaded{
		buf:      buf,
		encoding: dec.Encoding,
		diskHash: h.Sum64(),
		modTime:  info.ModTime(),
	}, nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", perrors.ErrNotFound, err)
	}
	return err
}

// hashFile returns the hash of the raw bytes of the file at absPath.
func (s *FileStore) hashFile(absPath string) (uint64, error) {
	f, err := s.vfs.Open(absPath)
	if err != nil {
		return 0, notFound(err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

// Open opens a file and returns its Document.
// If the file is already open, returns the existing Document.
func (s *FileStore) Open(ctx context.Context, path string) (*Document, error) {
	absPath, err := s.vfs.Abs(path)
	if err != nil {
		return nil, &perrors.PathError{Op: "open", Path: path, Err: err}
	}

	if doc, ok := s.Get(absPath); ok {
		return doc, nil
	}

	l, err := s.load(ctx, "open", absPath)
	if err != nil {
		return nil, err
	}
	doc := newDocument(absPath, l)

	s.mu.Lock()
	// Double-check in case another goroutine opened it
	if existing, ok := s.documents[absPath]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.documents[absPath] = doc
	handlers := slices.Clone(s.onOpen)
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(doc)
	}
	return doc, nil
}

// OpenAll opens several files concurrently. Documents are returned in the
// order of paths. If any file fails to open, the first error is returned
// and the documents opened so far stay open.
func (s *FileStore) OpenAll(ctx context.Context, paths []string) ([]*Document, error) {
	docs := make([]*Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	if s.parallelism > 0 {
		g.SetLimit(s.parallelism)
	}
	for i, path := range paths {
		g.Go(func() error {
			doc, err := s.Open(gctx, path)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// Close closes a document.
// Returns an error if the document has unsaved changes and force is false.
func (s *FileStore) Close(ctx context.Context, path string, force bool) error {
	absPath, err := s.vfs.Abs(path)
	if err != nil {
		return &perrors.PathError{Op: "close", Path: path, Err: err}
	}

	s.mu.Lock()
	doc, ok := s.documents[absPath]
	if !ok {
		s.mu.Unlock()
		return &perrors.PathError{Op: "close", Path: path, Err: perrors.ErrDocumentNotOpen}
	}
	if !force && doc.IsDirty() {
		s.mu.Unlock()
		return &perrors.PathError{Op: "close", Path: path, Err: perrors.ErrDocumentDirty}
	}
	doc.markClosed()
	delete(s.documents, absPath)
	handlers := slices.Clone(s.onClose)
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(absPath)
	}
	return nil
}

// Get returns a document by path if it is open.
func (s *FileStore) Get(path string) (*Document, bool) {
	absPath, err := s.vfs.Abs(path)
	if err != nil {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[absPath]
	return doc, ok
}

// IsOpen returns true if the file is open.
func (s *FileStore) IsOpen(path string) bool {
	_, ok := s.Get(path)
	return ok
}

// Documents returns all open documents sorted by path.
func (s *FileStore) Documents() []*Document {
	s.mu.RLock()
	docs := make([]*Document, 0, len(s.documents))
	for _, doc := range s.documents {
		docs = append(docs, doc)
	}
	s.mu.RUnlock()

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path() < docs[j].Path() })
	return docs
}

// DirtyDocuments returns all documents with unsaved changes.
func (s *FileStore) DirtyDocuments() []*Document {
	var dirty []*Document
	for _, doc := range s.Documents() {
		if doc.IsDirty() {
			dirty = append(dirty, doc)
		}
	}
	return dirty
}

// Count returns the number of open documents.
func (s *FileStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

func (s *FileStore) mustGet(op, path string) (*Document, error) {
	doc, ok := s.Get(path)
	if !ok {
		return nil, &perrors.PathError{Op: op, Path: path, Err: perrors.ErrDocumentNotOpen}
	}
	return doc, nil
}

// Save writes a document to disk in its encoding and line ending style.
// The file is replaced atomically.
func (s *FileStore) Save(ctx context.Context, path string) error {
	doc, err := s.mustGet("save", path)
	if err != nil {
		return err
	}
	if err := s.write(ctx, "save", doc, doc.Path()); err != nil {
		return err
	}

	s.mu.RLock()
	handlers := slices.Clone(s.onSave)
	s.mu.RUnlock()
	for _, handler := range handlers {
		handler(doc)
	}
	return nil
}

// SaveAll saves every dirty document and returns the errors joined.
func (s *FileStore) SaveAll(ctx context.Context) error {
	var errs []error
	for _, doc := range s.DirtyDocuments() {
		if err := s.Save(ctx, doc.Path()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveAs writes a document to a new path and moves it there. The file at
// the old path is left untouched.
func (s *FileStore) SaveAs(ctx context.Context, oldPath, newPath string) error {
	doc, err := s.mustGet("saveas", oldPath)
	if err != nil {
		return err
	}
	newAbsPath, err := s.vfs.Abs(newPath)
	if err != nil {
		return &perrors.PathError{Op: "saveas", Path: newPath, Err: err}
	}
	if newAbsPath == doc.Path() {
		return s.Save(ctx, oldPath)
	}
	if s.IsOpen(newAbsPath) {
		return &perrors.PathError{Op: "saveas", Path: newPath, Err: perrors.ErrAlreadyOpen}
	}

	if err := s.write(ctx, "saveas", doc, newAbsPath); err != nil {
		return err
	}

	s.mu.Lock()
	oldAbsPath := doc.Path()
	delete(s.documents, oldAbsPath)
	doc.setPath(newAbsPath)
	s.documents[newAbsPath] = doc
	closeHandlers := slices.Clone(s.onClose)
	openHandlers := slices.Clone(s.onOpen)
	s.mu.Unlock()

	for _, handler := range closeHandlers {
		handler(oldAbsPath)
	}
	for _, handler := range openHandlers {
		handler(doc)
	}
	return nil
}

// write saves doc's text to absPath and records the result. Edits made
// while the write is in progress leave the document dirty.
func (s *FileStore) write(ctx context.Context, op string, doc *Document, absPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rev := doc.Buffer.RevisionID()
	hash := textHash(doc.Buffer)
	h := xxhash.New()
	err := vfs.WriteFileAtomic(s.vfs, absPath, func(w io.Writer) error {
		enc := vfs.NewEncoder(io.MultiWriter(w, h), doc.Encoding())
		if _, err := doc.Buffer.WriteTo(enc); err != nil {
			return err
		}
		return enc.Close()
	})
	if err != nil {
		return &perrors.PathError{Op: op, Path: absPath, Err: err}
	}

	modTime := time.Now()
	if info, err := s.vfs.Stat(absPath); err == nil {
		modTime = info.ModTime()
	}
	doc.markSynced(rev, hash, h.Sum64(), modTime)
	return nil
}

// Reload replaces a document's text with the file on disk. Only the
// differing spans are edited, so unchanged regions keep their pieces.
// Returns whether the text changed. A dirty document is only reloaded
// when force is set.
func (s *FileStore) Reload(ctx context.Context, path string, force bool) (bool, error) {
	doc, err := s.mustGet("reload", path)
	if err != nil {
		return false, err
	}
	if !force && doc.IsDirty() {
		return false, &perrors.PathError{Op: "reload", Path: doc.Path(), Err: perrors.ErrDocumentDirty}
	}

	l, err := s.load(ctx, "reload", doc.Path())
	if err != nil {
		return false, err
	}

	edits := diffEdits(doc.Buffer.Text(), l.buf.Text())
	if err := doc.Buffer.ApplyEdits(edits); err != nil {
		return false, &perrors.PathError{Op: "reload", Path: doc.Path(), Err: err}
	}
	doc.Buffer.SetLineEnding(l.buf.LineEnding())
	doc.SetEncoding(l.encoding)
	doc.markSynced(doc.Buffer.RevisionID(), textHash(doc.Buffer), l.diskHash, l.modTime)

	s.mu.RLock()
	handlers := slices.Clone(s.onReload)
	s.mu.RUnlock()
	for _, handler := range handlers {
		handler(doc)
	}
	return len(edits) > 0, nil
}

// ExternalChange describes a document whose file changed on disk.
type ExternalChange struct {
	Document *Document
	Removed  bool

	diskHash uint64 // hash of the changed file
}

// CheckExternalChanges compares every open document with its file.
func (s *FileStore) CheckExternalChanges(ctx context.Context) []ExternalChange {
	var changes []ExternalChange
	for _, doc := range s.Documents() {
		if ctx.Err() != nil {
			break
		}
		if change, ok := s.checkDocument(doc); ok {
			changes = append(changes, change)
		}
	}
	return changes
}

func (s *FileStore) checkDocument(doc *Document) (ExternalChange, bool) {
	hash, err := s.hashFile(doc.Path())
	if err != nil {
		if errors.Is(err, perrors.ErrNotFound) {
			return ExternalChange{Document: doc, Removed: true}, true
		}
		return ExternalChange{}, false
	}
	if hash == doc.lastDiskHash() {
		return ExternalChange{}, false
	}
	return ExternalChange{Document: doc, diskHash: hash}, true
}

// CloseAll closes all documents. Dirty documents are skipped unless force
// is set; their errors are returned joined.
func (s *FileStore) CloseAll(ctx context.Context, force bool) error {
	var errs []error
	for _, doc := range s.Documents() {
		if err := s.Close(ctx, doc.Path(), force); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Event handler registration

// OnOpen registers a handler called when a document is opened.
func (s *FileStore) OnOpen(handler func(doc *Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOpen = append(s.onOpen, handler)
}

// OnClose registers a handler called when a document is closed.
func (s *FileStore) OnClose(handler func(path string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, handler)
}

// OnSave registers a handler called when a document is saved.
func (s *FileStore) OnSave(handler func(doc *Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSave = append(s.onSave, handler)
}

// OnReload registers a handler called when a document is reloaded.
func (s *FileStore) OnReload(handler func(doc *Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = append(s.onReload, handler)
}
