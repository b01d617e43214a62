package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAndRead(t *testing.T) {
	s := NewFS()
	p := filepath.Join(t.TempDir(), "note.json")
	content := []byte(`{"hello":"world"}`)
	if err := s.WriteFile(p, content); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := s.ReadFile(p)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteDoesNotCreateParents(t *testing.T) {
	s := NewFS()
	p := filepath.Join(t.TempDir(), "a", "b", "c.txt")
	err := s.WriteFile(p, []byte("deep"))
	if err == nil {
		t.Fatal("expected error for missing parent")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist in chain", err)
	}
	if _, statErr := os.Stat(filepath.Dir(p)); !os.IsNotExist(statErr) {
		t.Error("parent directory should not have been created")
	}
}

func TestWriteOntoDirectoryFails(t *testing.T) {
	s := NewFS()
	dir := t.TempDir()
	if err := s.WriteFile(dir, []byte("x")); err == nil {
		t.Fatal("expected error writing onto a directory")
	}
}

func TestWritePreservesMode(t *testing.T) {
	s := NewFS()
	p := filepath.Join(t.TempDir(), "script.sh")
	if err := os.WriteFile(p, []byte("v1"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteFile(p, []byte("v2")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestMkdirAllIdempotent(t *testing.T) {
	s := NewFS()
	p := filepath.Join(t.TempDir(), "x", "y", "z")
	for i := 0; i < 2; i++ {
		if err := s.MkdirAll(p); err != nil {
			t.Fatalf("MkdirAll #%d: %v", i+1, err)
		}
	}
	info, err := s.Stat(p)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected a directory")
	}
}

func TestMkdirAllThroughFile(t *testing.T) {
	s := NewFS()
	dir := t.TempDir()
	file := filepath.Join(dir, "plain")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.MkdirAll(filepath.Join(file, "child")); err == nil {
		t.Error("expected error when a path component is a file")
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := NewFS()
	dir := t.TempDir()
	p := filepath.Join(dir, "atomic.txt")
	_ = s.WriteFile(p, []byte("original content"))

	updated := []byte("updated content")
	if err := s.WriteFile(p, updated); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, _ := s.ReadFile(p)
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, ".fsgate-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestReadMissing(t *testing.T) {
	s := NewFS()
	_, err := s.ReadFile(filepath.Join(t.TempDir(), "nope.txt"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestIsTemp(t *testing.T) {
	cases := map[string]bool{
		"/a/b/.fsgate-tmp-123": true,
		".fsgate-tmp-x":        true,
		"/a/b/file.txt":        false,
		"/a/.fsgate-tmp-/x":    false,
	}
	for name, want := range cases {
		if got := IsTemp(name); got != want {
			t.Errorf("IsTemp(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestWriteThroughSymlink(t *testing.T) {
	s := NewFS()
	dir := t.TempDir()
	target := filepath.Join(dir, "target.txt")
	link := filepath.Join(dir, "link.txt")
	if err := os.WriteFile(target, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("target.txt", link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if err := s.WriteFile(link, []byte("v2")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Errorf("target = %q, want v2", got)
	}
	info, err := os.Lstat(link)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Error("link was replaced by a regular file")
	}
}

func TestWriteThroughDanglingSymlinkCreatesTarget(t *testing.T) {
	s := NewFS()
	dir := t.TempDir()
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink("new.txt", link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	if err := s.WriteFile(link, []byte("hello")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "new.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("target = %q, want hello", got)
	}
}

func TestWriteSymlinkLoopFails(t *testing.T) {
	s := NewFS()
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	if err := os.Symlink("b", a); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink("a", filepath.Join(dir, "b")); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteFile(a, []byte("x")); err == nil {
		t.Fatal("expected error for a symlink loop")
	}
}

func TestWriteReadOnlyFileIsRefused(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses file permission bits")
	}
	s := NewFS()
	p := filepath.Join(t.TempDir(), "locked.txt")
	if err := os.WriteFile(p, []byte("orig"), 0o444); err != nil {
		t.Fatal(err)
	}

	err := s.WriteFile(p, []byte("new"))
	if !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("err = %v, want permission error", err)
	}
	got, _ := os.ReadFile(p)
	if string(got) != "orig" {
		t.Errorf("content = %q, want orig", got)
	}
}
