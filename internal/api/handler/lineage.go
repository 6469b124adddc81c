package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/maraichr/docpipe/internal/graph"
	"github.com/maraichr/docpipe/pkg/apierr"
)

// LineageQuerier walks the dataset lineage graph.
type LineageQuerier interface {
	Lineage(ctx context.Context, datasetID, direction string, maxDepth int) (*graph.LineageResult, error)
}

type LineageHandler struct {
	logger *slog.Logger
	graph  LineageQuerier
}

func NewLineageHandler(logger *slog.Logger, g LineageQuerier) *LineageHandler {
	return &LineageHandler{logger: logger, graph: g}
}

// Get returns the datasets connected to ?uri=.
// GET /lineage?uri=s3://bucket/key&direction=upstream|downstream|both&depth=N
func (h *LineageHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.graph == nil {
		writeAPIError(w, h.logger, apierr.NotImplemented("Lineage graph"))
		return
	}

	q := r.URL.Query()
	uri := q.Get("uri")
	if e := validateDatasetURI(uri); e != nil {
		writeAPIError(w, h.logger, e)
		return
	}
	direction := q.Get("direction")
	if direction == "" {
		direction = "both"
	}
	if !validDirections[direction] {
		writeAPIError(w, h.logger, apierr.InvalidRequest("direction must be upstream, downstream or both"))
		return
	}
	depth, _ := strconv.Atoi(q.Get("depth"))

	result, err := h.graph.Lineage(r.Context(), uri, direction, depth)
	if err != nil {
		writeAPIError(w, h.logger, apierr.LineageQueryFailed(err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}
