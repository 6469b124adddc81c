package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/maraichr/docpipe/pkg/apierr"
)

// writeJSON writes v as the response body. Every route reports live state, so
// responses are marked uncacheable.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeAPIError writes e's JSON body. Server-side failures are logged with
// their cause, which never reaches the client.
func writeAPIError(w http.ResponseWriter, logger *slog.Logger, e *apierr.Error) {
	if e.Status() >= http.StatusInternalServerError && logger != nil {
		logger.Error(e.Message(), slog.String("code", string(e.Code())), slog.String("error", e.Error()))
	}
	if e.Temporary() {
		w.Header().Set("Retry-After", "5")
	}
	writeJSON(w, e.Status(), e.Response())
}
