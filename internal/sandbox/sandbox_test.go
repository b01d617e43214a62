package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/fsgate/internal/apperr"
)

func tempRoot(t *testing.T) *RootPolicy {
	t.Helper()
	p, err := NewRoot(t.TempDir(), false)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	return p
}

func TestResolveRelative(t *testing.T) {
	p := tempRoot(t)
	got, err := p.Resolve("data/plans.json")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join(p.Root(), "data", "plans.json")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveAbsoluteInsideRoot(t *testing.T) {
	p := tempRoot(t)
	in := filepath.Join(p.Root(), "a", "b.txt")
	got, err := p.Resolve(in)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != in {
		t.Errorf("got %q, want %q", got, in)
	}
}

func TestTraversalBlocked(t *testing.T) {
	p := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.txt",
		"a/../../outside.txt",
		"/etc/shadow",
	}
	for _, c := range cases {
		_, err := p.Resolve(c)
		if !apperr.Is(err, apperr.PermissionDenied) {
			t.Errorf("Resolve(%q) err = %v, want PermissionDenied", c, err)
		}
	}
}

func TestSymlinkEscapeBlocked(t *testing.T) {
	p := tempRoot(t)
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(p.Root(), "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	_, err := p.Resolve("link/secret.txt")
	if !apperr.Is(err, apperr.PermissionDenied) {
		t.Errorf("err = %v, want PermissionDenied", err)
	}
}

func TestEmptyPassesThrough(t *testing.T) {
	p := tempRoot(t)
	got, err := p.Resolve("")
	if err != nil || got != "" {
		t.Errorf("Resolve(\"\") = %q, %v", got, err)
	}
}

func TestNewRootCreate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "app", "data")
	if _, err := NewRoot(dir, false); err == nil {
		t.Fatal("expected error for missing root without create")
	}
	p, err := NewRoot(dir, true)
	if err != nil {
		t.Fatalf("NewRoot(create): %v", err)
	}
	if info, err := os.Stat(p.Root()); err != nil || !info.IsDir() {
		t.Errorf("root not created: %v", err)
	}
}

func TestNewRootFileNotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRoot(f, false); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestUnrestricted(t *testing.T) {
	var p Policy = Unrestricted{}
	got, err := p.Resolve("../anything")
	if err != nil || got != "../anything" {
		t.Errorf("Resolve = %q, %v", got, err)
	}
	if p.Root() != "" {
		t.Error("unrestricted root should be empty")
	}
}

func TestDanglingSymlinkEscapeBlocked(t *testing.T) {
	p := tempRoot(t)
	outside := filepath.Join(t.TempDir(), "new.txt")
	if err := os.Symlink(outside, filepath.Join(p.Root(), "dangling")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	_, err := p.Resolve("dangling")
	if !apperr.Is(err, apperr.PermissionDenied) {
		t.Fatalf("err = %v, want PermissionDenied", err)
	}
}

func TestDanglingSymlinkInsideRootAllowed(t *testing.T) {
	p := tempRoot(t)
	if err := os.Symlink("new.txt", filepath.Join(p.Root(), "alias")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	got, err := p.Resolve("alias")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := filepath.Join(p.Root(), "new.txt"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFilesystemRoot(t *testing.T) {
	p, err := NewRoot(string(filepath.Separator), false)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	in := filepath.Join(t.TempDir(), "a.txt")
	got, err := p.Resolve(in)
	if err != nil {
		t.Fatalf("Resolve(%q): %v", in, err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("got %q, want an absolute path", got)
	}
}

func TestSiblingWithRootPrefixBlocked(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "data")
	p, err := NewRoot(root, true)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Resolve(filepath.Join(parent, "data-other", "x.txt"))
	if !apperr.Is(err, apperr.PermissionDenied) {
		t.Fatalf("err = %v, want PermissionDenied", err)
	}
}

func TestDotDotPrefixedNameAllowed(t *testing.T) {
	p := tempRoot(t)
	if _, err := p.Resolve("..notes.txt"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
}
