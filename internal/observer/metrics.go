package observer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maraichr/docpipe/internal/store"
)

// Counters is one metrics sweep. A fresh value is produced every sweep.
type Counters struct {
	FilesProcessed     int   `json:"files_processed"`
	ChunksCreated      int   `json:"chunks_created"`
	EmbeddingArtifacts int   `json:"embedding_artifacts"`
	IndexUpserts       int   `json:"index_upserts"`
	Failures           int64 `json:"failures"`
}

// DLQDepther reports a dead-letter queue's depth. *queue.StageQueue satisfies it.
type DLQDepther interface {
	DLQDepth(ctx context.Context) (int64, error)
}

// EmitFunc receives the counters of one sweep.
type EmitFunc func(Counters)

// LogEmitter writes one structured log line per sweep.
func LogEmitter(logger *slog.Logger) EmitFunc {
	return func(c Counters) {
		logger.Info("counters",
			slog.Int("files_processed", c.FilesProcessed),
			slog.Int("chunks_created", c.ChunksCreated),
			slog.Int("embedding_artifacts", c.EmbeddingArtifacts),
			slog.Int("index_upserts", c.IndexUpserts),
			slog.Int64("failures", c.Failures))
	}
}

// Metrics counts stage artifacts and dead letters.
type Metrics struct {
	bucket   *store.Bucket
	dlqs     []DLQDepther
	interval time.Duration
	emit     EmitFunc
	logger   *slog.Logger
}

// NewMetrics builds the observer. dlqs may be empty, in which case failures
// stays zero.
func NewMetrics(bucket *store.Bucket, dlqs []DLQDepther, interval time.Duration, emit EmitFunc, logger *slog.Logger) *Metrics {
	logger = logger.With(slog.String("observer", "metrics"))
	if emit == nil {
		emit = LogEmitter(logger)
	}
	return &Metrics{bucket: bucket, dlqs: dlqs, interval: interval, emit: emit, logger: logger}
}

// Collect performs one sweep.
func (m *Metrics) Collect(ctx context.Context) (Counters, error) {
	var c Counters
	targets := []struct {
		prefix string
		suffix string
		dst    *int
	}{
		{store.PrefixProcessed, store.SuffixProcessed, &c.FilesProcessed},
		{store.PrefixChunks, store.SuffixChunks, &c.ChunksCreated},
		{store.PrefixEmbeddings, store.SuffixEmbeddings, &c.EmbeddingArtifacts},
		{store.PrefixIndexes, store.SuffixIndexed, &c.IndexUpserts},
	}
	for _, t := range targets {
		keys, err := m.bucket.List(ctx, t.prefix)
		if err != nil {
			return Counters{}, fmt.Errorf("list %s: %w", t.prefix, err)
		}
		for _, k := range keys {
			if strings.HasSuffix(k, t.suffix) {
				*t.dst++
			}
		}
	}
	for _, q := range m.dlqs {
		n, err := q.DLQDepth(ctx)
		if err != nil {
			return Counters{}, fmt.Errorf("dead-letter depth: %w", err)
		}
		c.Failures += n
	}
	return c, nil
}

func (m *Metrics) Serve(ctx context.Context) error {
	return loop(ctx, m.interval, m.logger, func(ctx context.Context) error {
		c, err := m.Collect(ctx)
		if err != nil {
			return err
		}
		m.emit(c)
		return nil
	})
}
