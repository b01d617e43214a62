// Package sandbox decides which paths a caller may reach before a request
// is handed to the gateway.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/starford/fsgate/internal/apperr"
)

const (
	op = "sandbox"

	maxSymlinkHops = 40
)

var errOutside = errors.New("path escapes sandbox root")

// Policy resolves a caller-supplied path to the path handed to the
// gateway, or denies it. An empty path is returned unchanged so that the
// gateway can report it as an invalid argument.
type Policy interface {
	Resolve(path string) (string, error)
	// Root returns the confining directory, or "" when unrestricted.
	Root() string
}

// Unrestricted passes every path through untouched.
type Unrestricted struct{}

// Resolve returns path unchanged.
func (Unrestricted) Resolve(path string) (string, error) { return path, nil }

// Root returns "".
func (Unrestricted) Root() string { return "" }

// RootPolicy confines paths to a directory tree.
type RootPolicy struct {
	root string // absolute, symlink-free
}

// NewRoot creates a policy rooted at dir. When create is true the
// directory is created first, otherwise it must already exist.
func NewRoot(dir string, create bool) (*RootPolicy, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve root: %w", err)
	}
	if create {
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("sandbox: create root: %w", err)
		}
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("sandbox: eval root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("sandbox: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox: root is not a directory: %s", resolved)
	}
	return &RootPolicy{root: resolved}, nil
}

// Root returns the resolved root directory.
func (p *RootPolicy) Root() string { return p.root }

// Resolve joins relative paths onto the root, follows symlinks of the
// existing part of the path and rejects anything that ends up outside the
// root with PermissionDenied.
func (p *RootPolicy) Resolve(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(p.root, abs)
	}
	abs = filepath.Clean(abs)

	// Lexical check first so traversal attempts never touch the disk.
	if !p.within(abs) {
		return "", apperr.New(apperr.PermissionDenied, op, path, errOutside)
	}

	resolved, err := evalExisting(abs)
	if err != nil {
		return "", apperr.New(apperr.PermissionDenied, op, path, err)
	}
	if !p.within(resolved) {
		return "", apperr.New(apperr.PermissionDenied, op, path, errOutside)
	}
	return resolved, nil
}

func (p *RootPolicy) within(path string) bool {
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// evalExisting resolves symlinks in the longest existing prefix of path
// and re-attaches the components that do not exist yet. A regular file in
// the middle of the path ends the prefix the same way a missing entry does;
// the gateway reports that case itself. A dangling symlink is followed to
// its target so that a write through it is checked where it will land.
func evalExisting(path string) (string, error) {
	var missing []string
	cur := path
	hops := 0
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
			return "", err
		}
		if info, lerr := os.Lstat(cur); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
			if hops++; hops > maxSymlinkHops {
				return "", &fs.PathError{Op: "evalsymlinks", Path: path, Err: syscall.ELOOP}
			}
			link, rerr := os.Readlink(cur)
			if rerr != nil {
				return "", rerr
			}
			if !filepath.IsAbs(link) {
				link = filepath.Join(filepath.Dir(cur), link)
			}
			cur = link
			continue
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		missing = append(missing, filepath.Base(cur))
		cur = parent
	}
}
