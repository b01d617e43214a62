package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644

	tmpPrefix = ".fsgate-tmp-"

	maxSymlinkHops = 40
)

// IsTemp reports whether name is an in-flight temp file of WriteFile.
func IsTemp(name string) bool {
	return strings.HasPrefix(filepath.Base(name), tmpPrefix)
}

// FS implements Provider on the local file system.
type FS struct{}

// NewFS creates a local file system provider.
func NewFS() *FS {
	return &FS{}
}

// Name returns "local".
func (f *FS) Name() string { return "local" }

// MkdirAll creates path and all missing parents. An existing directory is
// not an error.
func (f *FS) MkdirAll(path string) error {
	if err := os.MkdirAll(path, dirPerm); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	return nil
}

// ReadFile returns the raw bytes of a file.
func (f *FS) ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read: %w", err)
	}
	return data, nil
}

// Stat returns file metadata.
func (f *FS) Stat(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("storage: stat: %w", err)
	}
	return info, nil
}

// WriteFile atomically replaces content: tmp file → fsync → rename.
// The temp file lives next to the target, so a missing parent directory
// fails here instead of being created. A symlink is written through: the
// file it points at is replaced and the link itself is left in place.
func (f *FS) WriteFile(path string, content []byte) error {
	target, err := resolveTarget(path)
	if err != nil {
		return fmt.Errorf("storage: write: %w", err)
	}
	dir := filepath.Dir(target)

	perm := os.FileMode(filePerm)
	if info, err := os.Stat(target); err == nil {
		if info.IsDir() {
			return fmt.Errorf("storage: write: %w", &fs.PathError{Op: "write", Path: path, Err: errIsDir})
		}
		perm = info.Mode().Perm()
		// Rename only needs write access to the directory; the file's own
		// mode must still refuse the write.
		if info.Mode().IsRegular() {
			w, err := os.OpenFile(target, os.O_WRONLY, 0)
			if err != nil {
				return fmt.Errorf("storage: write: %w", err)
			}
			_ = w.Close()
		}
	}

	tmp, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("storage: chmod temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// resolveTarget follows path while it is a symlink, including a dangling
// one, and returns the final non-link path.
func resolveTarget(path string) (string, error) {
	cur := path
	for range maxSymlinkHops {
		info, err := os.Lstat(cur)
		if err != nil || info.Mode()&fs.ModeSymlink == 0 {
			return cur, nil
		}
		link, err := os.Readlink(cur)
		if err != nil {
			return "", err
		}
		if !filepath.IsAbs(link) {
			link = filepath.Join(filepath.Dir(cur), link)
		}
		cur = link
	}
	return "", &fs.PathError{Op: "readlink", Path: path, Err: syscall.ELOOP}
}

var errIsDir = errors.New("is a directory")
