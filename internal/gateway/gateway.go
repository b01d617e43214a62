// Package gateway mediates filesystem access for an external caller. Each
// operation validates its input, delegates to a single storage primitive
// and reports a typed failure. The gateway keeps no state between calls.
package gateway

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"syscall"

	"github.com/starford/fsgate/internal/apperr"
	"github.com/starford/fsgate/internal/storage"
)

// DefaultMaxFileBytes bounds reads and writes; files are loaded in memory.
const DefaultMaxFileBytes int64 = 16 << 20

// Gateway performs create_dir, read_file and write_file.
type Gateway struct {
	store    storage.Provider
	codec    Codec
	maxBytes int64
	logger   *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCodec sets the declared text encoding.
func WithCodec(c Codec) Option {
	return func(g *Gateway) {
		g.codec = c
	}
}

// WithMaxFileBytes sets the size limit. Zero or negative disables it.
func WithMaxFileBytes(n int64) Option {
	return func(g *Gateway) {
		g.maxBytes = n
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// New creates a gateway backed by store.
func New(store storage.Provider, opts ...Option) *Gateway {
	g := &Gateway{
		store:    store,
		codec:    Codec{name: DefaultEncoding},
		maxBytes: DefaultMaxFileBytes,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Encoding returns the declared encoding name.
func (g *Gateway) Encoding() string { return g.codec.Name() }

// Execute validates req and runs the matching operation.
func (g *Gateway) Execute(ctx context.Context, req PathRequest) Result {
	if err := req.Validate(); err != nil {
		return Failed(req.Op, err)
	}
	switch req.Op {
	case OpCreateDir:
		if err := g.EnsureDirectory(ctx, req.Path); err != nil {
			return Failed(req.Op, err)
		}
		return success(req.Op)
	case OpReadFile:
		text, err := g.ReadTextFile(ctx, req.Path)
		if err != nil {
			return Failed(req.Op, err)
		}
		return successWithContent(req.Op, text)
	case OpWriteFile:
		if err := g.WriteTextFile(ctx, req.Path, *req.Contents); err != nil {
			return Failed(req.Op, err)
		}
		return success(req.Op)
	}
	// Unreachable: Validate rejects unknown ops.
	return Failed(req.Op, apperr.Newf(apperr.InvalidArgument, string(req.Op), req.Path, "unknown operation"))
}

// EnsureDirectory creates path and all missing ancestors. It succeeds
// silently when the directory already exists.
func (g *Gateway) EnsureDirectory(_ context.Context, path string) error {
	const op = string(OpCreateDir)
	if path == "" {
		return emptyPath(op)
	}
	if err := g.store.MkdirAll(path); err != nil {
		return classify(op, path, err, apperr.IOError)
	}
	g.logger.Debug("gateway: directory ensured", slog.String("path", path))
	return nil
}

// ReadTextFile returns the full contents of the file at path decoded with
// the declared encoding.
func (g *Gateway) ReadTextFile(_ context.Context, path string) (string, error) {
	const op = string(OpReadFile)
	if path == "" {
		return "", emptyPath(op)
	}
	info, err := g.store.Stat(path)
	if err != nil {
		return "", classify(op, path, err, apperr.NotFound)
	}
	if info.IsDir() {
		return "", apperr.Newf(apperr.IOError, op, path, "is a directory")
	}
	if g.maxBytes > 0 && info.Size() > g.maxBytes {
		return "", apperr.Newf(apperr.IOError, op, path, "file size %d exceeds limit %d", info.Size(), g.maxBytes)
	}
	data, err := g.store.ReadFile(path)
	if err != nil {
		return "", classify(op, path, err, apperr.NotFound)
	}
	text, err := g.codec.Decode(data)
	if err != nil {
		return "", apperr.New(apperr.EncodingError, op, path, err)
	}
	g.logger.Debug("gateway: file read", slog.String("path", path), slog.Int("bytes", len(data)))
	return text, nil
}

// WriteTextFile replaces or creates the file at path with contents. Missing
// parent directories are not created.
func (g *Gateway) WriteTextFile(_ context.Context, path, contents string) error {
	const op = string(OpWriteFile)
	if path == "" {
		return emptyPath(op)
	}
	data, err := g.codec.Encode(contents)
	if err != nil {
		return apperr.New(apperr.EncodingError, op, path, err)
	}
	if g.maxBytes > 0 && int64(len(data)) > g.maxBytes {
		return apperr.Newf(apperr.IOError, op, path, "content size %d exceeds limit %d", len(data), g.maxBytes)
	}
	if err := g.store.WriteFile(path, data); err != nil {
		return classify(op, path, err, apperr.IOError)
	}
	g.logger.Debug("gateway: file written", slog.String("path", path), slog.Int("bytes", len(data)))
	return nil
}

func emptyPath(op string) error {
	return apperr.New(apperr.InvalidArgument, op, "", errors.New("path: cannot be blank"))
}

// classify maps an OS error onto a Kind. notExist is the kind reported for
// a missing path, which differs per operation: a read reports NotFound
// while a write into a missing directory is an IOError. A regular file used
// as a directory component (ENOTDIR) counts as missing.
func classify(op, path string, err error, notExist apperr.Kind) error {
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return apperr.New(notExist, op, path, err)
	case errors.Is(err, fs.ErrPermission):
		return apperr.New(apperr.PermissionDenied, op, path, err)
	default:
		return apperr.New(apperr.IOError, op, path, err)
	}
}
