// Package dispatch runs gateway requests on a bounded worker pool and
// performs the host-side bookkeeping around each call: path policy,
// auditing, change notification and tracing.
package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/starford/fsgate/internal/apperr"
	"github.com/starford/fsgate/internal/audit"
	"github.com/starford/fsgate/internal/gateway"
	"github.com/starford/fsgate/internal/sandbox"
	"github.com/starford/fsgate/internal/sse"
	"github.com/starford/fsgate/internal/tracing"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 8

// Recorder persists one audit entry per invocation.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Notifier receives successful mutations.
type Notifier interface {
	PublishChange(kind, path, source string)
}

// Dispatcher executes requests against a gateway.
type Dispatcher struct {
	gw       *gateway.Gateway
	policy   sandbox.Policy
	sem      *semaphore.Weighted
	workers  int64
	recorder Recorder
	notifier Notifier
	logger   *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithPolicy sets the path policy applied before the gateway is called.
func WithPolicy(p sandbox.Policy) Option {
	return func(d *Dispatcher) { d.policy = p }
}

// WithWorkers bounds the number of operations running at once.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = int64(n)
		}
	}
}

// WithRecorder sets the audit sink.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// WithNotifier sets the change sink.
func WithNotifier(n Notifier) Option {
	return func(d *Dispatcher) { d.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a dispatcher in front of gw.
func New(gw *gateway.Gateway, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		gw:      gw,
		policy:  sandbox.Unrestricted{},
		workers: DefaultWorkers,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.sem = semaphore.NewWeighted(d.workers)
	return d
}

// Policy returns the active path policy.
func (d *Dispatcher) Policy() sandbox.Policy { return d.policy }

// Do runs req on behalf of caller. Waiting for a free worker honours ctx;
// once the gateway is called the operation runs to completion regardless
// of cancellation.
func (d *Dispatcher) Do(ctx context.Context, caller string, req gateway.PathRequest) gateway.Result {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "gateway."+string(req.Op),
		attribute.String("fsgate.caller", caller),
		attribute.String("fsgate.path", req.Path),
	)

	res, resolved := d.run(ctx, req)

	entry := audit.Entry{
		Time:      start,
		Caller:    caller,
		Operation: string(req.Op),
		Path:      resolved,
		Outcome:   audit.OutcomeOK,
		Duration:  time.Since(start),
	}
	if res.OK() {
		entry.Bytes, entry.Digest = payloadStats(req, res)
		d.notify(caller, req.Op, resolved)
		tracing.End(span, "", "")
	} else {
		entry.Outcome = string(res.Failure.Kind)
		entry.Message = res.Failure.Message()
		tracing.End(span, string(res.Failure.Kind), res.Failure.Message())
		d.logger.Debug("dispatch: operation failed",
			slog.String("caller", caller),
			slog.String("op", string(req.Op)),
			slog.String("path", req.Path),
			slog.String("kind", string(res.Failure.Kind)),
			slog.String("error", res.Failure.Message()))
	}
	d.record(ctx, entry)
	return res
}

func (d *Dispatcher) run(ctx context.Context, req gateway.PathRequest) (gateway.Result, string) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return gateway.Failed(req.Op, apperr.New(apperr.IOError, string(req.Op), req.Path, fmt.Errorf("dispatch: %w", err))), req.Path
	}
	defer d.sem.Release(1)

	resolved, err := d.policy.Resolve(req.Path)
	if err != nil {
		return gateway.Failed(req.Op, err), req.Path
	}
	req.Path = resolved

	return d.gw.Execute(context.WithoutCancel(ctx), req), resolved
}

func (d *Dispatcher) notify(caller string, op gateway.Op, path string) {
	if d.notifier == nil {
		return
	}
	switch op {
	case gateway.OpCreateDir:
		d.notifier.PublishChange(sse.KindDirCreated, path, caller)
	case gateway.OpWriteFile:
		d.notifier.PublishChange(sse.KindFileWritten, path, caller)
	}
}

func (d *Dispatcher) record(ctx context.Context, e audit.Entry) {
	if d.recorder == nil {
		return
	}
	if err := d.recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		d.logger.Warn("dispatch: audit record failed",
			slog.String("op", e.Operation),
			slog.String("path", e.Path),
			slog.String("error", err.Error()))
	}
}

// payloadStats returns the size and SHA-256 of the text that crossed the
// gateway: written contents or read content.
func payloadStats(req gateway.PathRequest, res gateway.Result) (int, string) {
	var text string
	switch {
	case req.Contents != nil:
		text = *req.Contents
	case res.Content != nil:
		text = *res.Content
	default:
		return 0, ""
	}
	h := sha256.Sum256([]byte(text))
	return len(text), hex.EncodeToString(h[:])
}
