// Package queue binds a pipeline stage to its broker queues. StageQueue resolves the
// stage's consume/produce/dead-letter queues from the contract table, validates
// payloads against their schemas and survives transient broker failures by
// reconnecting and retrying once.
package queue

import (
	"context"
	"time"
)

// Delivery is one message fetched from a queue and not yet acknowledged.
type Delivery struct {
	Queue string
	Tag   string
	Body  []byte
}

// Broker is the durable-queue primitive the pipeline is built on. Implementations
// must keep a delivery pending until Ack so that a consumer crash leads to redelivery.
type Broker interface {
	// Declare makes sure queue exists and survives broker restarts.
	Declare(ctx context.Context, queue string) error
	// Publish appends a persistent message to queue.
	Publish(ctx context.Context, queue string, body []byte) error
	// Get waits up to timeout for one message. It returns (nil, nil) when the queue
	// stayed empty.
	Get(ctx context.Context, queue string, timeout time.Duration) (*Delivery, error)
	// Ack acknowledges a delivery returned by Get.
	Ack(ctx context.Context, d *Delivery) error
	// Depth reports how many messages the queue holds.
	Depth(ctx context.Context, queue string) (int64, error)
	Close()
}

// Dialer opens a fresh broker connection. StageQueue calls it at construction and
// again on every reconnect.
type Dialer func(ctx context.Context) (Broker, error)
