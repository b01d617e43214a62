// Package apperr defines the typed failure returned by every gateway operation.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it without parsing text.
type Kind string

const (
	InvalidArgument  Kind = "InvalidArgument"
	NotFound         Kind = "NotFound"
	PermissionDenied Kind = "PermissionDenied"
	AlreadyExists    Kind = "AlreadyExists" // reserved: creation is idempotent and writes overwrite
	EncodingError    Kind = "EncodingError"
	IOError          Kind = "IOError"
)

// Error is a failure with a kind, the operation that produced it and the
// underlying cause. The message is for humans only.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Message())
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message())
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the diagnostic text without the op/path prefix.
func (e *Error) Message() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// New creates an Error wrapping err.
func New(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Newf creates an Error with a formatted cause.
func Newf(kind Kind, op, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of err, or IOError for errors that carry none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return IOError
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
