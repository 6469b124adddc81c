package valkey

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/maraichr/docpipe/internal/config"
	"github.com/maraichr/docpipe/internal/queue"
)

// ErrUnexpectedReply reports a server reply whose shape the broker cannot read.
var ErrUnexpectedReply = errors.New("unexpected valkey reply")

const (
	// ClaimTimeout is how long a delivery may stay unacknowledged before another
	// consumer reclaims it.
	ClaimTimeout = 5 * time.Minute

	dataField = "data"
)

// Broker implements queue.Broker on valkey streams. Each queue is a stream with
// one consumer group shared by every worker; acknowledged entries are deleted so
// stream length equals outstanding work.
type Broker struct {
	client     valkey.Client
	group      string
	consumerID string
	claimAfter time.Duration

	mu       sync.Mutex
	declared map[string]bool
}

var _ queue.Broker = (*Broker)(nil)

func NewBroker(client valkey.Client, group, consumerID string) *Broker {
	return &Broker{
		client:     client,
		group:      group,
		consumerID: consumerID,
		claimAfter: ClaimTimeout,
		declared:   make(map[string]bool),
	}
}

// Dialer returns a queue.Dialer that opens a fresh client per connection.
func Dialer(cfg config.BrokerConfig) queue.Dialer {
	return func(ctx context.Context) (queue.Broker, error) {
		client, err := NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewBroker(client, cfg.Group, cfg.ConsumerID), nil
	}
}

// Declare creates the stream and its consumer group if they don't exist.
func (b *Broker) Declare(ctx context.Context, name string) error {
	b.mu.Lock()
	done := b.declared[name]
	b.mu.Unlock()
	if done {
		return nil
	}

	resp := b.client.Do(ctx, b.client.B().XgroupCreate().
		Key(name).Group(b.group).Id("0").Mkstream().Build())
	if err := resp.Error(); err != nil {
		if !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("xgroup create %s: %w", name, err)
		}
	}

	b.mu.Lock()
	b.declared[name] = true
	b.mu.Unlock()
	return nil
}

func (b *Broker) Publish(ctx context.Context, name string, body []byte) error {
	resp := b.client.Do(ctx, b.client.B().Xadd().
		Key(name).Id("*").
		FieldValue().FieldValue(dataField, string(body)).
		Build())
	if err := resp.Error(); err != nil {
		return fmt.Errorf("xadd %s: %w", name, err)
	}
	return nil
}

// Get first reclaims an entry abandoned by a dead consumer, then blocks up to
// timeout for a new one. It returns nil, nil when nothing arrives.
func (b *Broker) Get(ctx context.Context, name string, timeout time.Duration) (*queue.Delivery, error) {
	d, err := b.claimIdle(ctx, name)
	if err != nil || d != nil {
		return d, err
	}

	blockMs := timeout.Milliseconds()
	if blockMs < 1 {
		blockMs = 1
	}
	resp := b.client.Do(ctx, b.client.B().Xreadgroup().
		Group(b.group, b.consumerID).
		Count(1).Block(blockMs).
		Streams().Key(name).Id(">").
		Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", name, err)
	}

	results, err := resp.AsXRead()
	if err != nil {
		return nil, fmt.Errorf("parse xreadgroup %s: %w", name, err)
	}
	for _, entries := range results {
		for _, e := range entries {
			return toDelivery(name, e), nil
		}
	}
	return nil, nil
}

func (b *Broker) claimIdle(ctx context.Context, name string) (*queue.Delivery, error) {
	resp := b.client.Do(ctx, b.client.B().Xautoclaim().
		Key(name).Group(b.group).Consumer(b.consumerID).
		MinIdleTime(strconv.FormatInt(b.claimAfter.Milliseconds(), 10)).
		Start("0-0").Count(1).
		Build())
	if err := resp.Error(); err != nil {
		return nil, fmt.Errorf("xautoclaim %s: %w", name, err)
	}
	arr, err := resp.ToArray()
	if err != nil {
		return nil, fmt.Errorf("parse xautoclaim %s: %w", name, err)
	}
	entry, ok, err := firstClaimed(arr)
	if err != nil {
		return nil, fmt.Errorf("parse xautoclaim %s: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	return toDelivery(name, entry), nil
}

// firstClaimed reads an XAUTOCLAIM reply: [next-cursor, entries, deleted-ids].
func firstClaimed(reply []valkey.ValkeyMessage) (valkey.XRangeEntry, bool, error) {
	if len(reply) < 2 {
		return valkey.XRangeEntry{}, false, fmt.Errorf("%w: %d elements", ErrUnexpectedReply, len(reply))
	}
	entries, err := reply[1].AsXRange()
	if err != nil {
		return valkey.XRangeEntry{}, false, fmt.Errorf("%w: %w", ErrUnexpectedReply, err)
	}
	if len(entries) == 0 {
		return valkey.XRangeEntry{}, false, nil
	}
	return entries[0], true, nil
}

// Ack acknowledges the entry and removes it from the stream.
func (b *Broker) Ack(ctx context.Context, d *queue.Delivery) error {
	for _, resp := range b.client.DoMulti(ctx,
		b.client.B().Xack().Key(d.Queue).Group(b.group).Id(d.Tag).Build(),
		b.client.B().Xdel().Key(d.Queue).Id(d.Tag).Build(),
	) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("ack %s %s: %w", d.Queue, d.Tag, err)
		}
	}
	return nil
}

// Depth counts ready and in-flight entries.
func (b *Broker) Depth(ctx context.Context, name string) (int64, error) {
	n, err := b.client.Do(ctx, b.client.B().Xlen().Key(name).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("xlen %s: %w", name, err)
	}
	return n, nil
}

func (b *Broker) Close() {
	b.client.Close()
}

func toDelivery(name string, e valkey.XRangeEntry) *queue.Delivery {
	return &queue.Delivery{
		Queue: name,
		Tag:   e.ID,
		Body:  []byte(e.FieldValues[dataField]),
	}
}
