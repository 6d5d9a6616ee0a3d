package filestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/dshills/piecebuf/internal/engine/buffer"
	perrors "github.com/dshills/piecebuf/internal/project/errors"
	"github.com/dshills/piecebuf/internal/project/vfs"
)

func newTestStore(t *testing.T, files map[string]string, opts ...Option) (*FileStore, *vfs.MemFS) {
	t.Helper()
	m := vfs.NewMemFS()
	for path, content := range files {
		if err := m.AddFile(path, content); err != nil {
			t.Fatalf("AddFile(%q) error = %v", path, err)
		}
	}
	return NewFileStore(m, opts...), m
}

func fileContent(t *testing.T, m *vfs.MemFS, path string) string {
	t.Helper()
	r, err := m.Open(path)
	if err != nil {
		t.Fatalf("Open(%q) error = %v", path, err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	return string(data)
}

func encode(t *testing.T, text string, enc vfs.Encoding) string {
	t.Helper()
	var buf bytes.Buffer
	w := vfs.NewEncoder(&buf, enc)
	_, _ = io.WriteString(w, text)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.String()
}

func TestOpen(t *testing.T) {
	s, _ := newTestStore(t, map[string]string{"/src/a.txt": "hello\r\nworld\r\n"})
	ctx := context.Background()

	doc, err := s.Open(ctx, "src/a.txt")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if doc.Path() != "/src/a.txt" {
		t.Errorf("Path() = %q, want /src/a.txt", doc.Path())
	}
	if doc.ID == uuid.Nil {
		t.Error("ID not assigned")
	}
	if got := doc.Buffer.Text(); got != "hello\nworld\n" {
		t.Errorf("Text() = %q", got)
	}
	if doc.Buffer.LineEnding() != buffer.LineEndingCRLF {
		t.Errorf("LineEnding() = %v, want CRLF", doc.Buffer.LineEnding())
	}
	if doc.Encoding() != vfs.EncodingUTF8 {
		t.Errorf("Encoding() = %q", doc.Encoding())
	}
	if doc.IsDirty() {
		t.Error("new document is dirty")
	}

	again, err := s.Open(ctx, "/src/a.txt")
	if err != nil || again != doc {
		t.Errorf("second Open() = %p, %v; want same document", again, err)
	}
	if s.Count() != 1 || !s.IsOpen("/src/a.txt") {
		t.Error("store does not track the document")
	}
}

func TestOpenErrors(t *testing.T) {
	s, _ := newTestStore(t, map[string]string{
		"/dir/file.txt": "x",
		"/big.txt":      strings.Repeat("x", 100),
		"/bin.dat":      "abc\x00def",
	}, WithMaxFileSize(50))
	ctx := context.Background()

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing", "/nope.txt", perrors.ErrNotFound},
		{"directory", "/dir", perrors.ErrIsDirectory},
		{"too large", "/big.txt", perrors.ErrFileTooLarge},
		{"binary", "/bin.dat", perrors.ErrBinaryFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Open(ctx, tt.path)
			if !errors.Is(err, tt.want) {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}
			var pe *perrors.PathError
			if !errors.As(err, &pe) || pe.Op != "open" {
				t.Errorf("error %v is not an open PathError", err)
			}
		})
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.Open(cancelled, "/dir/file.txt"); !errors.Is(err, context.Canceled) {
		t.Errorf("Open(cancelled) error = %v", err)
	}
}

func TestOpenAll(t *testing.T) {
	files := map[string]string{"/a": "A", "/b": "B", "/c": "C"}
	s, _ := newTestStore(t, files, WithParallelism(2))
	ctx := context.Background()

	docs, err := s.OpenAll(ctx, []string{"/c", "/a", "/b"})
	if err != nil {
		t.Fatalf("OpenAll() error = %v", err)
	}
	for i, want := range []string{"C", "A", "B"} {
		if got := docs[i].Buffer.Text(); got != want {
			t.Errorf("docs[%d] = %q, want %q", i, got, want)
		}
	}

	if _, err := s.OpenAll(ctx, []string{"/a", "/missing"}); !perrors.IsNotFound(err) {
		t.Errorf("OpenAll() with missing file error = %v", err)
	}
}

func TestDirtyTracking(t *testing.T) {
	s, _ := newTestStore(t, map[string]string{"/f": "abc"})
	doc, _ := s.Open(context.Background(), "/f")

	if _, err := doc.Buffer.Insert(1, "X"); err != nil {
		t.Fatal(err)
	}
	if !doc.IsDirty() {
		t.Error("edited document is not dirty")
	}
	if got := s.DirtyDocuments(); len(got) != 1 || got[0] != doc {
		t.Errorf("DirtyDocuments() = %v", got)
	}

	if err := doc.Buffer.DeleteAfter(1, 1); err != nil {
		t.Fatal(err)
	}
	if doc.IsDirty() {
		t.Error("document restored to saved text is still dirty")
	}
}

func TestSave(t *testing.T) {
	tests := []struct {
		name    string
		content string
		enc     vfs.Encoding
	}{
		{"utf8 lf", "one\ntwo\n", vfs.EncodingUTF8},
		{"utf8 crlf", "one\r\ntwo\r\n", vfs.EncodingUTF8},
		{"utf8 bom", "\uFEFFone\ntwo\n", vfs.EncodingUTF8BOM},
		{"utf16le", encode(t, "one\r\ntwö\r\n", vfs.EncodingUTF16LE), vfs.EncodingUTF16LE},
		{"latin1", encode(t, "café\n", vfs.EncodingLatin1), vfs.EncodingLatin1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newTestStore(t, map[string]string{"/f": tt.content})
			ctx := context.Background()
			doc, err := s.Open(ctx, "/f")
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if doc.Encoding() != tt.enc {
				t.Errorf("Encoding() = %q, want %q", doc.Encoding(), tt.enc)
			}

			// Round trip without edits reproduces the file byte for byte.
			if err := s.Save(ctx, "/f"); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if got := fileContent(t, m, "/f"); got != tt.content {
				t.Errorf("saved = %q, want %q", got, tt.content)
			}

			if _, err := doc.Buffer.Insert(0, "new\n"); err != nil {
				t.Fatal(err)
			}
			if err := s.Save(ctx, "/f"); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			if doc.IsDirty() {
				t.Error("document dirty after Save")
			}

			reopened, _ := NewFileStore(m).Open(ctx, "/f")
			if got, want := reopened.Buffer.Text(), doc.Buffer.Text(); got != want {
				t.Errorf("reopened text = %q, want %q", got, want)
			}
			if reopened.Encoding() != tt.enc {
				t.Errorf("reopened encoding = %q, want %q", reopened.Encoding(), tt.enc)
			}
		})
	}
}

func TestSaveHandlersAndErrors(t *testing.T) {
	s, _ := newTestStore(t, map[string]string{"/f": "x"})
	ctx := context.Background()

	if err := s.Save(ctx, "/f"); !errors.Is(err, perrors.ErrDocumentNotOpen) {
		t.Errorf("Save(unopened) error = %v", err)
	}

	var saved []string
	s.OnSave(func(doc *Document) { saved = append(saved, doc.Path()) })
	doc, _ := s.Open(ctx, "/f")
	_, _ = doc.Buffer.Insert(1, "y")
	if err := s.SaveAll(ctx); err != nil {
		t.Fatalf("SaveAll() error = %v", err)
	}
	if len(saved) != 1 || saved[0] != "/f" {
		t.Errorf("OnSave calls = %v", saved)
	}
	if err := s.SaveAll(ctx); err != nil || len(saved) != 1 {
		t.Errorf("SaveAll() on clean store saved again: %v, %v", saved, err)
	}
}

func TestSaveAs(t *testing.T) {
	s, m := newTestStore(t, map[string]string{"/old.txt": "body", "/taken.txt": "t"})
	ctx := context.Background()
	doc, _ := s.Open(ctx, "/old.txt")
	_, _ = s.Open(ctx, "/taken.txt")

	var closed []string
	s.OnClose(func(path string) { closed = append(closed, path) })

	if err := s.SaveAs(ctx, "/old.txt", "/taken.txt"); !errors.Is(err, perrors.ErrAlreadyOpen) {
		t.Errorf("SaveAs(open target) error = %v", err)
	}

	_, _ = doc.Buffer.Insert(4, "!")
	if err := s.SaveAs(ctx, "/old.txt", "/new.txt"); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	if doc.Path() != "/new.txt" || !s.IsOpen("/new.txt") || s.IsOpen("/old.txt") {
		t.Errorf("document not moved: path %q", doc.Path())
	}
	if got := fileContent(t, m, "/new.txt"); got != "body!" {
		t.Errorf("new file = %q", got)
	}
	if got := fileContent(t, m, "/old.txt"); got != "body" {
		t.Errorf("old file changed to %q", got)
	}
	if len(closed) != 1 || closed[0] != "/old.txt" {
		t.Errorf("OnClose calls = %v", closed)
	}
}

func TestClose(t *testing.T) {
	s, _ := newTestStore(t, map[string]string{"/a": "a", "/b": "b"})
	ctx := context.Background()
	a, _ := s.Open(ctx, "/a")
	_, _ = s.Open(ctx, "/b")
	_, _ = a.Buffer.Insert(0, "dirty ")

	if err := s.Close(ctx, "/a", false); !perrors.IsDirty(err) {
		t.Errorf("Close(dirty) error = %v, want ErrDocumentDirty", err)
	}
	if err := s.CloseAll(ctx, false); !perrors.IsDirty(err) {
		t.Errorf("CloseAll() error = %v", err)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want the dirty document left", s.Count())
	}
	if err := s.Close(ctx, "/a", true); err != nil {
		t.Fatalf("Close(force) error = %v", err)
	}
	if !a.IsClosed() {
		t.Error("IsClosed() = false")
	}
	if err := s.Close(ctx, "/a", true); !errors.Is(err, perrors.ErrDocumentNotOpen) {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestReload(t *testing.T) {
	s, m := newTestStore(t, map[string]string{"/f": "alpha\nbeta\ngamma\n"})
	ctx := context.Background()
	doc, _ := s.Open(ctx, "/f")

	reloads := 0
	s.OnReload(func(*Document) { reloads++ })

	_ = m.AddFile("/f", "alpha\nBETA\ngamma\ndelta\r\n")
	changed, err := s.Reload(ctx, "/f", false)
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if !changed {
		t.Error("Reload() reported no change")
	}
	if got := doc.Buffer.Text(); got != "alpha\nBETA\ngamma\ndelta\n" {
		t.Errorf("Text() = %q", got)
	}
	if doc.IsDirty() {
		t.Error("reloaded document is dirty")
	}
	if err := doc.Buffer.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if reloads != 1 {
		t.Errorf("OnReload calls = %d", reloads)
	}

	changed, err = s.Reload(ctx, "/f", false)
	if err != nil || changed {
		t.Errorf("Reload() unchanged file = %v, %v", changed, err)
	}

	_, _ = doc.Buffer.Insert(0, "local ")
	if _, err := s.Reload(ctx, "/f", false); !perrors.IsDirty(err) {
		t.Errorf("Reload(dirty) error = %v", err)
	}
	if _, err := s.Reload(ctx, "/f", true); err != nil {
		t.Fatalf("Reload(force) error = %v", err)
	}
	if strings.HasPrefix(doc.Buffer.Text(), "local") {
		t.Error("forced reload kept local edit")
	}
}

func TestCheckExternalChanges(t *testing.T) {
	s, m := newTestStore(t, map[string]string{"/a": "a", "/b": "b", "/c": "c"})
	ctx := context.Background()
	_, _ = s.OpenAll(ctx, []string{"/a", "/b", "/c"})

	if got := s.CheckExternalChanges(ctx); len(got) != 0 {
		t.Fatalf("CheckExternalChanges() = %v, want none", got)
	}

	_ = m.AddFile("/b", "changed")
	_ = m.Remove("/c")

	got := s.CheckExternalChanges(ctx)
	if len(got) != 2 {
		t.Fatalf("CheckExternalChanges() = %d changes, want 2", len(got))
	}
	if got[0].Document.Path() != "/b" || got[0].Removed {
		t.Errorf("change[0] = %s removed=%v", got[0].Document.Path(), got[0].Removed)
	}
	if got[1].Document.Path() != "/c" || !got[1].Removed {
		t.Errorf("change[1] = %s removed=%v", got[1].Document.Path(), got[1].Removed)
	}
}
