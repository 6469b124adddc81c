package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maraichr/docpipe/internal/contract"
)

// Set lazily opens one StageQueue per stage over a shared dialer. It serves
// the processes that touch several stages at once: the metrics observer and
// the ops API.
type Set struct {
	dial       Dialer
	table      contract.Table
	popTimeout time.Duration
	logger     *slog.Logger

	mu     sync.Mutex
	queues map[contract.Stage]*StageQueue
}

func NewSet(dial Dialer, table contract.Table, popTimeout time.Duration, logger *slog.Logger) *Set {
	return &Set{
		dial:       dial,
		table:      table,
		popTimeout: popTimeout,
		logger:     logger,
		queues:     make(map[contract.Stage]*StageQueue),
	}
}

// Queue returns the StageQueue for stage, connecting on first use.
func (s *Set) Queue(ctx context.Context, stage contract.Stage) (*StageQueue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[stage]; ok {
		return q, nil
	}
	q, err := New(ctx, s.dial, s.table, stage, s.popTimeout, s.logger)
	if err != nil {
		return nil, err
	}
	s.queues[stage] = q
	return q, nil
}

// All returns a queue for every pipeline stage.
func (s *Set) All(ctx context.Context) ([]*StageQueue, error) {
	out := make([]*StageQueue, 0, len(contract.Stages))
	for _, stage := range contract.Stages {
		q, err := s.Queue(ctx, stage)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// Redrive moves dead letters of stage back to its consume queue.
func (s *Set) Redrive(ctx context.Context, stage contract.Stage, limit int) (RedriveResult, error) {
	q, err := s.Queue(ctx, stage)
	if err != nil {
		return RedriveResult{}, err
	}
	return q.Redrive(ctx, limit)
}

// Ping checks the broker answers by reading the scan dead-letter depth.
func (s *Set) Ping(ctx context.Context) error {
	q, err := s.Queue(ctx, contract.StageScan)
	if err != nil {
		return err
	}
	_, err = q.DLQDepth(ctx)
	return err
}

func (s *Set) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for stage, q := range s.queues {
		q.Close()
		delete(s.queues, stage)
	}
}
