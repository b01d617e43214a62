package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fsgate/internal/command"
)

// RouterConfig holds the optional pieces of the API router.
type RouterConfig struct {
	AuthEnabled bool
	Token       string
	// SSE, if non-nil, is mounted at GET /events inside the auth group.
	SSE http.Handler
	// Audit, if non-nil, serves GET /audit.
	Audit AuditLister
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(reg *command.Registry, cfg RouterConfig) chi.Router {
	h := NewHandler(reg, cfg.Audit)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	r.Get("/commands", h.ListCommands)
	r.Post("/commands/{name}", h.InvokeCommand)

	if cfg.Audit != nil {
		r.Get("/audit", h.ListAudit)
	}

	if cfg.SSE != nil {
		r.Get("/events", cfg.SSE.ServeHTTP)
	}

	return r
}
