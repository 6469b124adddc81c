package lineage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
)

// Dispatcher sends events from a bounded goroutine pool. Submission never blocks:
// when every worker is busy the event is dropped and logged.
type Dispatcher struct {
	pool    *ants.Pool
	sink    Sink
	timeout time.Duration
	logger  *slog.Logger
}

func NewDispatcher(sink Sink, workers int, timeout time.Duration, logger *slog.Logger) (*Dispatcher, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &Dispatcher{pool: pool, sink: sink, timeout: timeout, logger: logger}, nil
}

// Dispatch hands ev to a pool worker.
func (d *Dispatcher) Dispatch(ev RunEvent) {
	err := d.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.sink.Send(ctx, ev); err != nil {
			d.logger.Warn("lineage emit failed",
				slog.String("error", err.Error()),
				slog.String("job", ev.Job.Name),
				slog.String("event_type", string(ev.EventType)),
				slog.String("run_id", ev.Run.RunID))
		}
	})
	if err != nil {
		reason := err.Error()
		if errors.Is(err, ants.ErrPoolOverload) {
			reason = "pool overloaded"
		}
		d.logger.Warn("lineage event dropped",
			slog.String("reason", reason),
			slog.String("job", ev.Job.Name),
			slog.String("event_type", string(ev.EventType)))
	}
}

// Close waits up to wait for in-flight sends, then releases the pool.
func (d *Dispatcher) Close(wait time.Duration) {
	if err := d.pool.ReleaseTimeout(wait); err != nil {
		d.logger.Warn("lineage dispatcher release", slog.String("error", err.Error()))
	}
}
