package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maraichr/docpipe/pkg/apierr"
	"github.com/maraichr/docpipe/pkg/models"
)

// ManifestReader derives a document's stage status.
type ManifestReader interface {
	Status(ctx context.Context, docID string) (models.ManifestStatus, error)
}

type DocumentHandler struct {
	logger   *slog.Logger
	manifest ManifestReader
}

func NewDocumentHandler(logger *slog.Logger, manifest ManifestReader) *DocumentHandler {
	return &DocumentHandler{logger: logger, manifest: manifest}
}

// Manifest returns the live stage status of one document.
// GET /documents/{docID}/manifest
func (h *DocumentHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if e := validateDocID(docID); e != nil {
		writeAPIError(w, h.logger, e)
		return
	}

	status, err := h.manifest.Status(r.Context(), docID)
	if err != nil {
		writeAPIError(w, h.logger, apierr.ManifestFailed(err))
		return
	}
	if !status.Stages[models.StageParseDocument] {
		writeAPIError(w, h.logger, apierr.DocumentNotFound())
		return
	}
	writeJSON(w, http.StatusOK, status)
}
