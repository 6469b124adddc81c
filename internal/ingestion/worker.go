package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/ident"
	"github.com/maraichr/docpipe/internal/queue"
)

// WorkQueue is the slice of queue.StageQueue the worker loop needs.
type WorkQueue interface {
	Contract() contract.StageContract
	PopMessage(ctx context.Context) (*queue.Envelope, error)
	Ack(ctx context.Context, d *queue.Delivery) error
	PushDLQMessage(ctx context.Context, m contract.Message) error
}

// WorkerOptions tune the loop timing.
type WorkerOptions struct {
	PollInterval time.Duration
	// FallbackInterval is the minimum time between listings of the input prefix
	// for stages that consume a queue. Scan lists on every iteration.
	FallbackInterval time.Duration
}

// Worker drives one processor: it pops a message, falls back to listing the
// input prefix when the queue is empty, and routes failures to the
// dead-letter queue.
type Worker struct {
	proc     Processor
	queue    WorkQueue
	poll     time.Duration
	consumes bool
	fallback *rate.Limiter
	logger   *slog.Logger
}

func NewWorker(proc Processor, q WorkQueue, opts WorkerOptions, logger *slog.Logger) *Worker {
	w := &Worker{
		proc:     proc,
		queue:    q,
		poll:     opts.PollInterval,
		consumes: !q.Contract().Consume.None(),
		logger:   logger.With(slog.String("stage", string(proc.Stage()))),
	}
	if w.consumes && opts.FallbackInterval > 0 {
		w.fallback = rate.NewLimiter(rate.Every(opts.FallbackInterval), 1)
	}
	return w
}

// Serve loops until ctx is cancelled, sleeping the poll interval after every
// iteration.
func (w *Worker) Serve(ctx context.Context) error {
	w.logger.Info("worker started", slog.Duration("poll_interval", w.poll))
	for {
		w.RunOnce(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return nil
		case <-time.After(w.poll):
		}
	}
}

// RunOnce performs one iteration and returns the number of units handled.
func (w *Worker) RunOnce(ctx context.Context) int {
	if w.consumes {
		env, err := w.queue.PopMessage(ctx)
		var schemaErr *contract.SchemaError
		switch {
		case errors.As(err, &schemaErr):
			w.logger.Warn("discarded malformed message", slog.String("error", err.Error()))
			return 0
		case err != nil:
			if ctx.Err() == nil {
				w.logger.Error("pop message", slog.String("error", err.Error()))
			}
			return 0
		case env != nil:
			w.handle(ctx, env.Message, env.Delivery)
			return 1
		}
		if w.fallback != nil && !w.fallback.Allow() {
			return 0
		}
	}
	return w.sweep(ctx)
}

func (w *Worker) sweep(ctx context.Context) int {
	candidates, err := w.proc.Candidates(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("list candidates", slog.String("error", err.Error()))
		}
		return 0
	}
	n := 0
	for _, msg := range candidates {
		if ctx.Err() != nil {
			break
		}
		w.handle(ctx, msg, nil)
		n++
	}
	if n > 0 {
		w.logger.Debug("fallback sweep", slog.Int("candidates", n))
	}
	return n
}

// handle processes msg and decides its disposition. A failed unit is
// dead-lettered before the delivery is acknowledged; when the dead-letter push
// fails the delivery stays pending for redelivery.
func (w *Worker) handle(ctx context.Context, msg contract.Message, d *queue.Delivery) {
	if err := w.proc.Process(ctx, msg); err != nil {
		w.logger.Error("process failed", slog.String("key", msg.Key()), slog.String("error", err.Error()))
		if dlqErr := w.queue.PushDLQMessage(ctx, msg.Failed(err.Error(), ident.UTCNow())); dlqErr != nil {
			w.logger.Error("push dead letter", slog.String("key", msg.Key()), slog.String("error", dlqErr.Error()))
			return
		}
	}
	if d == nil {
		return
	}
	if err := w.queue.Ack(ctx, d); err != nil {
		w.logger.Error("ack message", slog.String("key", msg.Key()), slog.String("error", err.Error()))
	}
}
