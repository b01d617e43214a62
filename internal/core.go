package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/starford/fsgate/internal/api"
	"github.com/starford/fsgate/internal/audit"
	"github.com/starford/fsgate/internal/command"
	"github.com/starford/fsgate/internal/dispatch"
	"github.com/starford/fsgate/internal/gateway"
	"github.com/starford/fsgate/internal/sandbox"
	"github.com/starford/fsgate/internal/storage"
	"github.com/starford/fsgate/internal/tracing"
)

// core is the transport-independent part of the application: sandbox,
// gateway, dispatcher, audit log and command registry.
type core struct {
	cfg        *Config
	logger     *slog.Logger
	policy     sandbox.Policy
	auditDB    *audit.DB
	dispatcher *dispatch.Dispatcher
	registry   *command.Registry

	shutdownTracing func(context.Context) error
}

func newApplication(defaultOut io.Writer, opts ...Option) (*application, error) {
	app := &application{logOutput: defaultOut, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger initialises the structured JSON logger and makes it the default.
func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// buildCore wires everything a transport needs. notifier may be nil.
func buildCore(a *application, logger *slog.Logger, notifier dispatch.Notifier) (*core, error) {
	cfg := a.config
	c := &core{cfg: cfg, logger: logger}

	shutdown, err := tracing.Setup(cfg.Tracing.Enabled, cfg.Tracing.Exporter, a.logOutput)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	c.shutdownTracing = shutdown

	if cfg.Sandbox.Root != "" {
		root, err := sandbox.NewRoot(cfg.Sandbox.Root, cfg.Sandbox.CreateRoot)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init sandbox: %w", err)
		}
		c.policy = root
	} else {
		logger.Warn("sandbox: no root configured, paths are unrestricted")
		c.policy = sandbox.Unrestricted{}
	}

	codec, err := gateway.LookupEncoding(cfg.Gateway.Encoding)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init gateway: %w", err)
	}
	store := storage.NewFS()
	gw := gateway.New(store,
		gateway.WithCodec(codec),
		gateway.WithMaxFileBytes(cfg.Gateway.MaxFileBytes),
		gateway.WithLogger(logger),
	)

	dopts := []dispatch.Option{
		dispatch.WithPolicy(c.policy),
		dispatch.WithWorkers(cfg.Dispatch.Workers),
		dispatch.WithLogger(logger),
	}
	if cfg.Audit.Enabled {
		db, err := audit.Open(cfg.Audit.Path)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init audit: %w", err)
		}
		c.auditDB = db
		dopts = append(dopts, dispatch.WithRecorder(db))
	}
	if notifier != nil {
		dopts = append(dopts, dispatch.WithNotifier(notifier))
	}

	c.dispatcher = dispatch.New(gw, dopts...)
	c.registry = command.NewRegistry(c.dispatcher)

	logger.Info("Configuration loaded",
		slog.String("storage", store.Name()),
		slog.String("sandbox_root", c.policy.Root()),
		slog.String("encoding", gw.Encoding()),
		slog.Int64("max_file_bytes", cfg.Gateway.MaxFileBytes),
		slog.Int("workers", cfg.Dispatch.Workers),
		slog.Bool("audit", cfg.Audit.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	return c, nil
}

// auditLister returns the audit store as an api.AuditLister, or nil when
// auditing is off.
func (c *core) auditLister() api.AuditLister {
	if c.auditDB == nil {
		return nil
	}
	return c.auditDB
}

// runRetention prunes the audit log until ctx is done.
func (c *core) runRetention(ctx context.Context) {
	if c.auditDB == nil {
		return
	}
	audit.RunRetention(ctx, c.auditDB, c.cfg.Audit.Retention, c.cfg.Audit.PruneInterval, c.logger)
}

// Close releases the audit database and flushes spans.
func (c *core) Close() {
	if c.auditDB != nil {
		if err := c.auditDB.Close(); err != nil {
			c.logger.Warn("audit: close failed", slog.String("error", err.Error()))
		}
	}
	if c.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.shutdownTracing(ctx); err != nil {
			c.logger.Warn("tracing: shutdown failed", slog.String("error", err.Error()))
		}
	}
}
