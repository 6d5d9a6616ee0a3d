package vfs

import (
	"errors"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"testing"
	"time"
)

func readAll(t *testing.T, v VFS, path string) string {
	t.Helper()
	r, err := v.Open(path)
	if err != nil {
		t.Fatalf("Open(%q) error = %v", path, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll error = %v", err)
	}
	return string(data)
}

func TestMemFSAddFileAndOpen(t *testing.T) {
	m := NewMemFS()
	if err := m.AddFile("/a/b/c.txt", "hello"); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}

	if got := readAll(t, m, "a/b/c.txt"); got != "hello" {
		t.Errorf("content = %q, want %q", got, "hello")
	}
	if !m.Exists("/a/b") {
		t.Error("parent directory not created")
	}

	info, err := m.Stat("/a/b/c.txt")
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() != 5 || !info.IsRegular() || info.IsDir() {
		t.Errorf("Stat() = size %d regular %v dir %v", info.Size(), info.IsRegular(), info.IsDir())
	}

	dir, err := m.Stat("/a")
	if err != nil || !dir.IsDir() {
		t.Errorf("Stat(/a) = %v, %v; want directory", dir.Mode(), err)
	}
}

func TestMemFSErrors(t *testing.T) {
	m := NewMemFS()
	_ = m.AddFile("/dir/file", "x")

	tests := []struct {
		name string
		op   func() error
		want error
	}{
		{"open missing", func() error { _, err := m.Open("/nope"); return err }, fs.ErrNotExist},
		{"stat missing", func() error { _, err := m.Stat("/nope"); return err }, fs.ErrNotExist},
		{"create without parent", func() error { _, err := m.Create("/missing/x"); return err }, fs.ErrNotExist},
		{"remove missing", func() error { return m.Remove("/nope") }, fs.ErrNotExist},
		{"rename missing", func() error { return m.Rename("/nope", "/dir/x") }, fs.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			var pe *fs.PathError
			if !errors.As(err, &pe) {
				t.Errorf("error %T is not *fs.PathError", err)
			}
		})
	}

	if _, err := m.Open("/dir"); err == nil {
		t.Error("Open(directory) succeeded")
	}
	if err := m.MkdirAll("/dir/file/sub", 0755); err == nil {
		t.Error("MkdirAll through a file succeeded")
	}
}

func TestMemFSModTimeAdvances(t *testing.T) {
	m := NewMemFS()
	var prev time.Time
	for i := range 5 {
		if err := m.AddFile("/f", strconv.Itoa(i)); err != nil {
			t.Fatal(err)
		}
		info, err := m.Stat("/f")
		if err != nil {
			t.Fatal(err)
		}
		if !info.ModTime().After(prev) {
			t.Fatalf("write %d: ModTime %v not after %v", i, info.ModTime(), prev)
		}
		prev = info.ModTime()
	}

	if err := m.Rename("/f", "/g"); err != nil {
		t.Fatal(err)
	}
	if info, _ := m.Stat("/g"); !info.ModTime().Equal(prev) {
		t.Errorf("Rename changed ModTime to %v, want %v", info.ModTime(), prev)
	}
}

func TestMemFSCreateVisibleOnClose(t *testing.T) {
	m := NewMemFS()
	w, err := m.Create("/f.txt")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	_, _ = io.WriteString(w, "data")
	if m.Exists("/f.txt") {
		t.Error("file visible before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := readAll(t, m, "/f.txt"); got != "data" {
		t.Errorf("content = %q, want %q", got, "data")
	}
}

func TestMemFSRenameAndRemove(t *testing.T) {
	m := NewMemFS()
	_ = m.AddFile("/old", "1")
	_ = m.AddFile("/new", "2")

	if err := m.Rename("/old", "/new"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if m.Exists("/old") {
		t.Error("source still exists after Rename")
	}
	if got := readAll(t, m, "/new"); got != "1" {
		t.Errorf("target content = %q, want %q", got, "1")
	}
	if err := m.Remove("/new"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if got := m.Files(); len(got) != 0 {
		t.Errorf("Files() = %v, want empty", got)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	m := NewMemFS()
	_ = m.AddFile("/doc.txt", "old")

	err := WriteFileAtomic(m, "/doc.txt", func(w io.Writer) error {
		_, err := io.WriteString(w, "new")
		return err
	})
	if err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if got := readAll(t, m, "/doc.txt"); got != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}
	if files := m.Files(); len(files) != 1 {
		t.Errorf("Files() = %v, temporary file left behind", files)
	}

	boom := errors.New("boom")
	err = WriteFileAtomic(m, "/doc.txt", func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("WriteFileAtomic() error = %v, want %v", err, boom)
	}
	if got := readAll(t, m, "/doc.txt"); got != "new" {
		t.Errorf("content after failed write = %q, want %q", got, "new")
	}
	if files := m.Files(); strings.Join(files, ",") != "/doc.txt" {
		t.Errorf("Files() = %v", files)
	}
}

func TestOSFS(t *testing.T) {
	dir := t.TempDir()
	o := NewOSFS()
	path := dir + "/sub/file.txt"

	if err := o.MkdirAll(dir+"/sub", 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	err := WriteFileAtomic(o, path, func(w io.Writer) error {
		_, err := io.WriteString(w, "on disk")
		return err
	})
	if err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	if !o.Exists(path) {
		t.Fatal("file does not exist")
	}
	if got := readAll(t, o, path); got != "on disk" {
		t.Errorf("content = %q", got)
	}
	info, err := o.Stat(path)
	if err != nil || info.Size() != 7 {
		t.Errorf("Stat() = %d, %v", info.Size(), err)
	}
	abs, err := o.Abs(path)
	if err != nil || abs != path {
		t.Errorf("Abs() = %q, %v", abs, err)
	}
	if err := o.Remove(path); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
}
