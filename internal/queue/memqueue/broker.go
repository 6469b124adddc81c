// Package memqueue is an in-process queue.Broker used by tests and local dry runs.
// Deliveries stay pending until acknowledged, like the valkey stream broker.
package memqueue

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/maraichr/docpipe/internal/queue"
)

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("memqueue: connection closed")

// Server holds queue state shared by every connection dialed from it, so a
// reconnect observes the same queues.
type Server struct {
	mu      sync.Mutex
	queues  map[string]*state
	seq     int
	failing int
	dials   int
}

type state struct {
	ready   []queue.Delivery
	pending map[string]queue.Delivery
	total   int64
}

// NewServer returns an empty broker server.
func NewServer() *Server {
	return &Server{queues: make(map[string]*state)}
}

// FailNext makes the next n broker operations fail with a transport error.
func (s *Server) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = n
}

// Dials returns how many connections have been opened.
func (s *Server) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Messages returns the bodies currently ready on queueName.
func (s *Server) Messages(queueName string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.queues[queueName]
	if st == nil {
		return nil
	}
	out := make([][]byte, 0, len(st.ready))
	for _, d := range st.ready {
		out = append(out, d.Body)
	}
	return out
}

// Pending returns the number of unacknowledged deliveries on queueName.
func (s *Server) Pending(queueName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.queues[queueName]; st != nil {
		return len(st.pending)
	}
	return 0
}

// Requeue moves every pending delivery back to the head of its queue, as the
// broker does for a consumer that died.
func (s *Server) Requeue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.queues {
		for tag, d := range st.pending {
			st.ready = append([]queue.Delivery{d}, st.ready...)
			delete(st.pending, tag)
		}
	}
}

// Dialer returns a queue.Dialer that opens connections to s.
func (s *Server) Dialer() queue.Dialer {
	return func(context.Context) (queue.Broker, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.dials++
		return &conn{srv: s}, nil
	}
}

type conn struct {
	srv    *Server
	closed bool
}

var _ queue.Broker = (*conn)(nil)

// fault must be called with srv.mu held.
func (c *conn) fault() error {
	if c.closed {
		return ErrClosed
	}
	if c.srv.failing > 0 {
		c.srv.failing--
		return errors.New("memqueue: injected transport failure")
	}
	return nil
}

func (c *conn) queue(name string) *state {
	st := c.srv.queues[name]
	if st == nil {
		st = &state{pending: make(map[string]queue.Delivery)}
		c.srv.queues[name] = st
	}
	return st
}

func (c *conn) Declare(_ context.Context, name string) error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if err := c.fault(); err != nil {
		return err
	}
	c.queue(name)
	return nil
}

func (c *conn) Publish(_ context.Context, name string, body []byte) error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if err := c.fault(); err != nil {
		return err
	}
	c.srv.seq++
	st := c.queue(name)
	st.ready = append(st.ready, queue.Delivery{
		Queue: name,
		Tag:   strconv.Itoa(c.srv.seq),
		Body:  append([]byte(nil), body...),
	})
	st.total++
	return nil
}

func (c *conn) Get(_ context.Context, name string, _ time.Duration) (*queue.Delivery, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if err := c.fault(); err != nil {
		return nil, err
	}
	st := c.queue(name)
	if len(st.ready) == 0 {
		return nil, nil
	}
	d := st.ready[0]
	st.ready = st.ready[1:]
	st.pending[d.Tag] = d
	return &d, nil
}

func (c *conn) Ack(_ context.Context, d *queue.Delivery) error {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if err := c.fault(); err != nil {
		return err
	}
	delete(c.queue(d.Queue).pending, d.Tag)
	return nil
}

func (c *conn) Depth(_ context.Context, name string) (int64, error) {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	if err := c.fault(); err != nil {
		return 0, err
	}
	st := c.queue(name)
	return int64(len(st.ready) + len(st.pending)), nil
}

func (c *conn) Close() {
	c.srv.mu.Lock()
	defer c.srv.mu.Unlock()
	c.closed = true
}
