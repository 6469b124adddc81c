package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/queue"
	"github.com/maraichr/docpipe/pkg/apierr"
)

// Redriver moves dead letters back onto a stage's consume queue.
type Redriver interface {
	Redrive(ctx context.Context, stage contract.Stage, limit int) (queue.RedriveResult, error)
}

type DLQHandler struct {
	logger   *slog.Logger
	redriver Redriver
}

func NewDLQHandler(logger *slog.Logger, redriver Redriver) *DLQHandler {
	return &DLQHandler{logger: logger, redriver: redriver}
}

// Redrive replays up to ?limit= dead letters of one stage.
// POST /dlq/{stage}/redrive
func (h *DLQHandler) Redrive(w http.ResponseWriter, r *http.Request) {
	stage, e := parseStage(chi.URLParam(r, "stage"))
	if e != nil {
		writeAPIError(w, h.logger, e)
		return
	}
	limit, e := parseLimit(r.URL.Query().Get("limit"))
	if e != nil {
		writeAPIError(w, h.logger, e)
		return
	}

	res, err := h.redriver.Redrive(r.Context(), stage, limit)
	if err != nil {
		if errors.Is(err, queue.ErrNoQueue) {
			writeAPIError(w, h.logger, apierr.StageNotRedrivable(string(stage)))
			return
		}
		writeAPIError(w, h.logger, apierr.RedriveFailed(err))
		return
	}
	h.logger.Info("dead letters redriven",
		slog.String("stage", string(stage)),
		slog.Int("moved", res.Moved),
		slog.Int("dropped", res.Dropped))
	writeJSON(w, http.StatusOK, map[string]any{
		"stage":   stage,
		"moved":   res.Moved,
		"dropped": res.Dropped,
	})
}
