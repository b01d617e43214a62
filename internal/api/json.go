package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Kinds reported by the HTTP layer itself, outside the gateway's set.
const (
	kindUnauthorized = "Unauthorized"
	kindRateLimited  = "RateLimited"
	kindTooLarge     = "PayloadTooLarge"
	kindInternal     = "Internal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func errorBody(kind, msg string) CommandResponse {
	return CommandResponse{OK: false, Error: &ErrorDetail{Kind: kind, Message: msg}}
}
