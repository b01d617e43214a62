package gateway

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/fsgate/internal/apperr"
)

// Op names a gateway operation. The values double as the command names
// exposed to callers.
type Op string

const (
	OpCreateDir Op = "create_dir"
	OpReadFile  Op = "read_file"
	OpWriteFile Op = "write_file"
)

// Ops lists every operation in a stable order.
var Ops = []Op{OpCreateDir, OpReadFile, OpWriteFile}

// PathRequest is a single call into the gateway. Contents must be set
// for OpWriteFile and only for it; an empty string is a valid payload.
type PathRequest struct {
	Op       Op
	Path     string
	Contents *string
}

// CreateDir builds a create_dir request.
func CreateDir(path string) PathRequest {
	return PathRequest{Op: OpCreateDir, Path: path}
}

// ReadFile builds a read_file request.
func ReadFile(path string) PathRequest {
	return PathRequest{Op: OpReadFile, Path: path}
}

// WriteFile builds a write_file request.
func WriteFile(path, contents string) PathRequest {
	return PathRequest{Op: OpWriteFile, Path: path, Contents: &contents}
}

var errNulByte = errors.New("must not contain NUL bytes")

// Validate checks the request invariants without touching the filesystem.
func (r PathRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Op, validation.Required, validation.In(OpCreateDir, OpReadFile, OpWriteFile)),
		validation.Field(&r.Path, validation.Required, validation.By(func(any) error {
			if strings.ContainsRune(r.Path, 0) {
				return errNulByte
			}
			return nil
		})),
		validation.Field(&r.Contents,
			validation.When(r.Op == OpWriteFile, validation.NotNil).Else(validation.Nil)),
	)
	if err != nil {
		return apperr.New(apperr.InvalidArgument, string(r.Op), r.Path, err)
	}
	return nil
}

// Result is the tagged outcome of an operation: either success, carrying
// Content for reads, or a Failure.
type Result struct {
	Op      Op
	Content *string
	Failure *apperr.Error
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool { return r.Failure == nil }

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

func success(op Op) Result {
	return Result{Op: op}
}

func successWithContent(op Op, content string) Result {
	return Result{Op: op, Content: &content}
}

// Failed converts err into a failed Result. Errors that are not an
// *apperr.Error are reported as IOError.
func Failed(op Op, err error) Result {
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.New(apperr.IOError, string(op), "", err)
	}
	return Result{Op: op, Failure: e}
}
