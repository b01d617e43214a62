// Package storage defines the filesystem backend the gateway delegates to.
package storage

import "io/fs"

// Provider is the interface for the three filesystem primitives plus the
// metadata lookup the gateway needs for size checks. Paths are passed
// through unchanged; resolving or confining them is the caller's job.
type Provider interface {
	// MkdirAll creates path and every missing ancestor.
	MkdirAll(path string) error
	// ReadFile returns the raw bytes of the file at path.
	ReadFile(path string) ([]byte, error)
	// WriteFile replaces the file at path with content. It never creates
	// missing parent directories.
	WriteFile(path string, content []byte) error
	// Stat returns file metadata for path.
	Stat(path string) (fs.FileInfo, error)
	// Name identifies the backend in logs.
	Name() string
}
