// Package api serves the operations HTTP API: health, per-document manifests,
// on-demand metrics, dead-letter redrive and lineage queries.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apihandler "github.com/maraichr/docpipe/internal/api/handler"
)

// RouterDeps holds the collaborators behind the routes. Lineage is optional.
type RouterDeps struct {
	Manifest  apihandler.ManifestReader
	Metrics   apihandler.MetricsCollector
	Redriver  apihandler.Redriver
	Lineage   apihandler.LineageQuerier
	Readiness []apihandler.ReadinessCheck
}

func NewRouter(logger *slog.Logger, deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)

	// Health checks
	health := apihandler.NewHealthHandler(logger, deps.Readiness...)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route("/api/v1", func(r chi.Router) {
		documents := apihandler.NewDocumentHandler(logger, deps.Manifest)
		r.Get("/documents/{docID}/manifest", documents.Manifest)

		metrics := apihandler.NewMetricsHandler(logger, deps.Metrics)
		r.Get("/metrics", metrics.Get)

		dlq := apihandler.NewDLQHandler(logger, deps.Redriver)
		r.Post("/dlq/{stage}/redrive", dlq.Redrive)

		lineage := apihandler.NewLineageHandler(logger, deps.Lineage)
		r.Get("/lineage", lineage.Get)
	})

	return r
}

// requestLogger logs one line per request at debug level for health checks and info
// otherwise.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelInfo
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
				level = slog.LevelDebug
			}
			logger.Log(r.Context(), level, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", chimw.GetReqID(r.Context())))
		})
	}
}
