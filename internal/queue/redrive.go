package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RedriveResult summarizes one redrive pass.
type RedriveResult struct {
	Moved   int `json:"moved"`
	Dropped int `json:"dropped"`
}

const redrivePopTimeout = 100 * time.Millisecond

// Redrive moves up to limit dead-lettered messages back onto the stage's consume
// queue with their error fields stripped. Dead-lettered payloads that no longer
// match the dead-letter schema are acknowledged and counted as dropped.
//
// Nothing in the pipeline calls this automatically; replay is an operator action.
func (q *StageQueue) Redrive(ctx context.Context, limit int) (RedriveResult, error) {
	var res RedriveResult
	if q.contract.Consume.None() {
		return res, fmt.Errorf("redrive %s: %w", q.contract.Stage, ErrNoQueue)
	}
	for i := 0; limit <= 0 || i < limit; i++ {
		d, err := q.get(ctx, q.contract.DLQ.Name, redrivePopTimeout)
		if err != nil {
			return res, fmt.Errorf("redrive pop: %w", err)
		}
		if d == nil {
			break
		}

		msg, err := q.contract.DLQ.Schema.Decode(d.Body)
		if err != nil {
			q.logger.Warn("dropping malformed dead-letter message",
				slog.String("tag", d.Tag), slog.String("error", err.Error()))
			if err := q.Ack(ctx, d); err != nil {
				return res, fmt.Errorf("redrive ack: %w", err)
			}
			res.Dropped++
			continue
		}

		body, err := q.contract.Consume.Schema.Encode(msg.Retry())
		if err != nil {
			return res, withQueue(err, q.contract.Consume.Name)
		}
		if err := q.publish(ctx, q.contract.Consume.Name, body); err != nil {
			return res, fmt.Errorf("redrive publish: %w", err)
		}
		if err := q.Ack(ctx, d); err != nil {
			return res, fmt.Errorf("redrive ack: %w", err)
		}
		res.Moved++
	}
	q.logger.Info("dead-letter redrive finished", slog.Int("moved", res.Moved), slog.Int("dropped", res.Dropped))
	return res, nil
}
