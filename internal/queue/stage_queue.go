package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maraichr/docpipe/internal/contract"
)

// ErrNoQueue is returned when an operation targets a side of the contract that is
// the "no queue" sentinel (scan has nothing to consume, index_weaviate nothing to produce).
var ErrNoQueue = errors.New("stage has no queue for this operation")

// StageQueue is the reconnecting, typed broker wrapper bound to one stage.
type StageQueue struct {
	contract   contract.StageContract
	popTimeout time.Duration
	dial       Dialer
	logger     *slog.Logger

	mu     sync.Mutex
	broker Broker
}

// New binds stage through table and opens the first broker connection. An unknown
// stage is a configuration error and is reported before any connection is made.
func New(ctx context.Context, dial Dialer, table contract.Table, stage contract.Stage, popTimeout time.Duration, logger *slog.Logger) (*StageQueue, error) {
	c, err := table.Bind(stage)
	if err != nil {
		return nil, err
	}
	b, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	return &StageQueue{
		contract:   c,
		popTimeout: popTimeout,
		dial:       dial,
		logger:     logger.With(slog.String("stage", string(stage))),
		broker:     b,
	}, nil
}

// Contract returns the bound stage contract.
func (q *StageQueue) Contract() contract.StageContract { return q.contract }

// Push publishes a raw payload to the produce queue.
func (q *StageQueue) Push(ctx context.Context, body []byte) error {
	if q.contract.Produce.None() {
		return ErrNoQueue
	}
	return q.publish(ctx, q.contract.Produce.Name, body)
}

// PushDLQ publishes a raw payload to the dead-letter queue.
func (q *StageQueue) PushDLQ(ctx context.Context, body []byte) error {
	return q.publish(ctx, q.contract.DLQ.Name, body)
}

// Pop fetches one message from the consume queue, waiting at most timeout
// (the configured pop timeout when timeout is zero). The delivery stays pending
// until Ack.
func (q *StageQueue) Pop(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	if q.contract.Consume.None() {
		return nil, ErrNoQueue
	}
	if timeout <= 0 {
		timeout = q.popTimeout
	}
	return q.get(ctx, q.contract.Consume.Name, timeout)
}

// Ack acknowledges a delivery obtained from this queue.
func (q *StageQueue) Ack(ctx context.Context, d *Delivery) error {
	return q.withRetry(ctx, "ack:"+d.Queue, func(b Broker) error {
		return b.Ack(ctx, d)
	})
}

// Envelope is a delivery decoded against the consume schema.
type Envelope struct {
	*Delivery
	Message contract.Message
}

// PopMessage pops one message and validates it against the consume schema. A
// payload that does not match is acknowledged (it can never become valid) and
// returned as a *contract.SchemaError.
func (q *StageQueue) PopMessage(ctx context.Context) (*Envelope, error) {
	d, err := q.Pop(ctx, 0)
	if err != nil || d == nil {
		return nil, err
	}
	msg, err := q.contract.Consume.Schema.Decode(d.Body)
	if err != nil {
		if ackErr := q.Ack(ctx, d); ackErr != nil {
			q.logger.Error("ack malformed message", slog.String("error", ackErr.Error()), slog.String("tag", d.Tag))
		}
		return nil, withQueue(err, d.Queue)
	}
	return &Envelope{Delivery: d, Message: msg}, nil
}

// PushProduceMessage validates m against the produce schema and publishes it.
func (q *StageQueue) PushProduceMessage(ctx context.Context, m contract.Message) error {
	if q.contract.Produce.None() {
		return ErrNoQueue
	}
	body, err := q.contract.Produce.Schema.Encode(m)
	if err != nil {
		return withQueue(err, q.contract.Produce.Name)
	}
	return q.publish(ctx, q.contract.Produce.Name, body)
}

// PushDLQMessage validates m against the dead-letter schema and publishes it.
func (q *StageQueue) PushDLQMessage(ctx context.Context, m contract.Message) error {
	body, err := q.contract.DLQ.Schema.Encode(m)
	if err != nil {
		return withQueue(err, q.contract.DLQ.Name)
	}
	return q.publish(ctx, q.contract.DLQ.Name, body)
}

// DLQDepth reports the number of messages held by the stage's dead-letter queue.
func (q *StageQueue) DLQDepth(ctx context.Context) (int64, error) {
	var n int64
	err := q.withRetry(ctx, "depth:"+q.contract.DLQ.Name, func(b Broker) error {
		var err error
		n, err = b.Depth(ctx, q.contract.DLQ.Name)
		return err
	})
	return n, err
}

// Close releases the broker connection.
func (q *StageQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.broker != nil {
		q.broker.Close()
		q.broker = nil
	}
}

func (q *StageQueue) publish(ctx context.Context, queue string, body []byte) error {
	return q.withRetry(ctx, "publish:"+queue, func(b Broker) error {
		if err := b.Declare(ctx, queue); err != nil {
			return fmt.Errorf("declare %s: %w", queue, err)
		}
		return b.Publish(ctx, queue, body)
	})
}

func (q *StageQueue) get(ctx context.Context, queue string, timeout time.Duration) (*Delivery, error) {
	var d *Delivery
	err := q.withRetry(ctx, "consume:"+queue, func(b Broker) error {
		if err := b.Declare(ctx, queue); err != nil {
			return fmt.Errorf("declare %s: %w", queue, err)
		}
		var err error
		d, err = b.Get(ctx, queue, timeout)
		return err
	})
	return d, err
}

// withRetry runs fn once; on failure it reconnects and runs fn exactly once more.
// The second failure is returned to the caller.
func (q *StageQueue) withRetry(ctx context.Context, op string, fn func(Broker) error) error {
	b, err := q.current(ctx)
	if err == nil {
		err = fn(b)
		if err == nil {
			return nil
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	q.logger.Warn("queue operation failed, reconnecting", slog.String("op", op), slog.String("error", err.Error()))

	b, err = q.reconnect(ctx)
	if err != nil {
		return fmt.Errorf("%s: reconnect: %w", op, err)
	}
	if err := fn(b); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (q *StageQueue) current(ctx context.Context) (Broker, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.broker != nil {
		return q.broker, nil
	}
	b, err := q.dial(ctx)
	if err != nil {
		return nil, err
	}
	q.broker = b
	return b, nil
}

func (q *StageQueue) reconnect(ctx context.Context) (Broker, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.broker != nil {
		q.broker.Close()
		q.broker = nil
	}
	b, err := q.dial(ctx)
	if err != nil {
		return nil, err
	}
	q.broker = b
	return b, nil
}

func withQueue(err error, queue string) error {
	var se *contract.SchemaError
	if errors.As(err, &se) {
		se.Queue = queue
	}
	return err
}
