package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/maraichr/docpipe/internal/observer"
	"github.com/maraichr/docpipe/pkg/apierr"
)

// MetricsCollector runs one metrics sweep.
type MetricsCollector interface {
	Collect(ctx context.Context) (observer.Counters, error)
}

type MetricsHandler struct {
	logger  *slog.Logger
	metrics MetricsCollector
}

func NewMetricsHandler(logger *slog.Logger, metrics MetricsCollector) *MetricsHandler {
	return &MetricsHandler{logger: logger, metrics: metrics}
}

// Get runs a sweep on demand.
// GET /metrics
func (h *MetricsHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.metrics.Collect(r.Context())
	if err != nil {
		writeAPIError(w, h.logger, apierr.MetricsFailed(err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}
