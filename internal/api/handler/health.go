package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/maraichr/docpipe/pkg/apierr"
)

// ReadinessCheck tests one dependency.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	logger *slog.Logger
	checks []ReadinessCheck
}

func NewHealthHandler(logger *slog.Logger, checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{logger: logger, checks: checks}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz runs every check and reports the first failing dependency.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	for _, c := range h.checks {
		if err := c.Check(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", slog.String("dependency", c.Name), slog.String("error", err.Error()))
			writeAPIError(w, nil, apierr.DependencyNotReady(c.Name, err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
