// Package observer runs the read-only sweeps over the bucket: the manifest
// writer and the metrics counter.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/maraichr/docpipe/internal/store"
	"github.com/maraichr/docpipe/pkg/models"
)

// Manifest derives per-document stage status from artifact presence and
// overwrites 07_metadata/manifest/{doc_id}.json on every sweep.
type Manifest struct {
	bucket   *store.Bucket
	interval time.Duration
	logger   *slog.Logger
}

func NewManifest(bucket *store.Bucket, interval time.Duration, logger *slog.Logger) *Manifest {
	return &Manifest{bucket: bucket, interval: interval, logger: logger.With(slog.String("observer", "manifest"))}
}

// Status checks every stage artifact of docID.
func (m *Manifest) Status(ctx context.Context, docID string) (models.ManifestStatus, error) {
	artifacts := []struct {
		stage string
		key   string
	}{
		{models.StageParseDocument, store.ProcessedKey(docID)},
		{models.StageChunkText, store.ChunksKey(docID)},
		{models.StageEmbedChunks, store.EmbeddingsKey(docID)},
		{models.StageIndexWeaviate, store.IndexedKey(docID)},
	}
	status := models.ManifestStatus{
		DocID:    docID,
		Stages:   make(map[string]bool, len(artifacts)),
		Attempts: 1,
	}
	for _, p := range artifacts {
		ok, err := m.bucket.Exists(ctx, p.key)
		if err != nil {
			return models.ManifestStatus{}, fmt.Errorf("stat %s: %w", p.key, err)
		}
		status.Stages[p.stage] = ok
	}
	return status, nil
}

// Sweep writes a manifest for every processed document and returns how many
// were written.
func (m *Manifest) Sweep(ctx context.Context) (int, error) {
	keys, err := m.bucket.List(ctx, store.PrefixProcessed)
	if err != nil {
		return 0, fmt.Errorf("list processed: %w", err)
	}
	written := 0
	for _, key := range keys {
		docID, ok := store.DocIDFromKey(key, store.PrefixProcessed, store.SuffixProcessed)
		if !ok {
			continue
		}
		status, err := m.Status(ctx, docID)
		if err != nil {
			return written, err
		}
		body, err := json.Marshal(status)
		if err != nil {
			return written, fmt.Errorf("marshal manifest %s: %w", docID, err)
		}
		if err := m.bucket.Write(ctx, store.ManifestKey(docID), body, "application/json"); err != nil {
			return written, fmt.Errorf("write manifest %s: %w", docID, err)
		}
		written++
	}
	return written, nil
}

func (m *Manifest) Serve(ctx context.Context) error {
	return loop(ctx, m.interval, m.logger, func(ctx context.Context) error {
		n, err := m.Sweep(ctx)
		if err == nil {
			m.logger.Debug("manifests written", slog.Int("documents", n))
		}
		return err
	})
}

// loop runs sweep, then sleeps interval, until ctx is cancelled. Sweep errors
// are logged and the loop carries on.
func loop(ctx context.Context, interval time.Duration, logger *slog.Logger, sweep func(context.Context) error) error {
	logger.Info("observer started", slog.Duration("interval", interval))
	for {
		if err := sweep(ctx); err != nil && ctx.Err() == nil {
			logger.Error("sweep failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			logger.Info("observer stopped")
			return nil
		case <-time.After(interval):
		}
	}
}
