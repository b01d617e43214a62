package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fsgate/internal/apperr"
	"github.com/starford/fsgate/internal/audit"
	"github.com/starford/fsgate/internal/command"
)

// CallerHTTP is recorded in the audit log for requests served here.
const CallerHTTP = "http"

// maxBodyBytes leaves room for JSON escaping of a maximum-size file.
const maxBodyBytes = 64 << 20

// AuditLister reads recent audit entries.
type AuditLister interface {
	List(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
}

// Handler holds API route handlers.
type Handler struct {
	reg   *command.Registry
	audit AuditLister
}

// NewHandler creates a new Handler. auditLog may be nil.
func NewHandler(reg *command.Registry, auditLog AuditLister) *Handler {
	return &Handler{reg: reg, audit: auditLog}
}

// ListCommands handles GET /api/commands.
//
//	@Summary		List commands with their parameter schemas
//	@Tags			commands
//	@Produce		json
//	@Success		200	{object}	CommandListResponse
//	@Security		BearerAuth
//	@Router			/commands [get]
func (h *Handler) ListCommands(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CommandListResponse{Commands: h.reg.Describe()})
}

// InvokeCommand handles POST /api/commands/{name}.
//
//	@Summary		Invoke a filesystem command
//	@Tags			commands
//	@Accept			json
//	@Produce		json
//	@Param			name	path		string	true	"Command name"	Enums(create_dir, read_file, write_file)
//	@Success		200		{object}	CommandResponse
//	@Failure		400		{object}	CommandResponse
//	@Failure		403		{object}	CommandResponse
//	@Failure		404		{object}	CommandResponse
//	@Failure		422		{object}	CommandResponse
//	@Failure		500		{object}	CommandResponse
//	@Security		BearerAuth
//	@Router			/commands/{name} [post]
func (h *Handler) InvokeCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody(kindTooLarge, "request body too large"))
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody(string(apperr.InvalidArgument), "failed to read body"))
		return
	}

	res := h.reg.Invoke(r.Context(), CallerHTTP, name, json.RawMessage(body))
	if !res.OK() {
		writeJSON(w, statusFor(res.Failure.Kind), errorBody(string(res.Failure.Kind), res.Failure.Message()))
		return
	}
	writeJSON(w, http.StatusOK, CommandResponse{OK: true, Content: res.Content})
}

// ListAudit handles GET /api/audit.
//
//	@Summary		List recent invocations
//	@Tags			audit
//	@Produce		json
//	@Param			limit		query		int		false	"Max entries"
//	@Param			operation	query		string	false	"Filter by command name"
//	@Param			outcome		query		string	false	"Filter by outcome (ok or an error kind)"
//	@Param			caller		query		string	false	"Filter by transport"
//	@Success		200			{object}	AuditListResponse
//	@Security		BearerAuth
//	@Router			/audit [get]
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))

	entries, err := h.audit.List(r.Context(), audit.Filter{
		Limit:     limit,
		Operation: q.Get("operation"),
		Outcome:   q.Get("outcome"),
		Caller:    q.Get("caller"),
	})
	if err != nil {
		slog.Error("list audit failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody(kindInternal, "internal error"))
		return
	}
	writeJSON(w, http.StatusOK, AuditListResponse{Entries: entries})
}

// statusFor maps a failure kind onto an HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidArgument:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.PermissionDenied:
		return http.StatusForbidden
	case apperr.AlreadyExists:
		return http.StatusConflict
	case apperr.EncodingError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
