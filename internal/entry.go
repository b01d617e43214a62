// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/fsgate/internal/api"
	"github.com/starford/fsgate/internal/gateway"
	"github.com/starford/fsgate/internal/mcpserver"
	"github.com/starford/fsgate/internal/sandbox"
	"github.com/starford/fsgate/internal/sse"
	"github.com/starford/fsgate/internal/watch"
)

// CallerCLI is recorded in the audit log for one-shot calls.
const CallerCLI = "cli"

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(os.Stdout, opts...)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := buildCore(app, logger, broker)
	if err != nil {
		return err
	}
	defer c.Close()

	apiRouter := api.NewRouter(c.registry, api.RouterConfig{
		AuthEnabled: cfg.Auth.AuthEnabled(),
		Token:       cfg.Auth.Token,
		SSE:         broker,
		Audit:       c.auditLister(),
	})

	g, gCtx := errgroup.WithContext(ctx)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		resp := readyResponse{Status: "ok", SSEClients: broker.ClientCount()}
		code := http.StatusOK
		if c.auditDB != nil {
			if err := c.auditDB.Ping(r.Context()); err != nil {
				resp.Status = "unavailable"
				code = http.StatusServiceUnavailable
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	})

	// Mount API routes under /api.
	r.Route("/api", func(r chi.Router) {
		r.Use(api.RateLimit(gCtx, api.RateLimitConfig{
			RequestsPerMin: cfg.RateLimit.RequestsPerMin,
			Burst:          cfg.RateLimit.Burst,
		}))
		r.Mount("/", apiRouter)
	})

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	// Audit retention.
	g.Go(func() error {
		c.runRetention(gCtx)
		return nil
	})

	// Watch the sandbox root for out-of-band changes.
	if root, ok := c.policy.(*sandbox.RootPolicy); ok && cfg.Watch.Enabled {
		g.Go(func() error {
			if err := watch.Watch(gCtx, root.Root(), watch.DefaultDebounce, logger, broker); err != nil {
				logger.Warn("watcher: failed to start", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// Event streams never finish on their own; end them before Shutdown
		// waits for open connections.
		broker.Publish(sse.Event{Type: sse.KindShutdown, Data: map[string]string{}})
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

type readyResponse struct {
	Status     string `json:"status"`
	SSEClients int    `json:"sse_clients"`
}

// errShutdown cancels the group so background loops stop with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the commands over MCP on stdin/stdout until stdin closes.
// Logs go to stderr unless WithLogOutput says otherwise.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(os.Stderr, opts...)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	c, err := buildCore(app, logger, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c.runRetention(gCtx)
		return nil
	})

	g.Go(func() error {
		defer cancel()
		logger.Info("mcp: serving on stdio")
		if err := mcpserver.New(c.registry, app.version).ServeStdio(); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Call runs a single command and returns its result. params is the JSON
// object of command parameters. Logs go to stderr.
func Call(ctx context.Context, name string, params json.RawMessage, opts ...Option) (gateway.Result, error) {
	app, err := newApplication(os.Stderr, opts...)
	if err != nil {
		return gateway.Result{}, err
	}
	logger := app.newLogger()

	c, err := buildCore(app, logger, nil)
	if err != nil {
		return gateway.Result{}, err
	}
	defer c.Close()

	return c.registry.Invoke(ctx, CallerCLI, name, params), nil
}
