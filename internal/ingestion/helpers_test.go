package ingestion_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/index"
	"github.com/maraichr/docpipe/internal/ingestion"
	"github.com/maraichr/docpipe/internal/lineage"
	"github.com/maraichr/docpipe/internal/queue"
	"github.com/maraichr/docpipe/internal/queue/memqueue"
	"github.com/maraichr/docpipe/internal/store"
	"github.com/maraichr/docpipe/internal/store/memstore"
)

const testBucket = "docpipe-test"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	mem    *memstore.Store
	bucket *store.Bucket
	srv    *memqueue.Server
	env    ingestion.Env
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem := memstore.New().WithBucket(testBucket)
	bucket := store.NewBucket(mem, testBucket)
	logger := testLogger()
	return &harness{
		mem:    mem,
		bucket: bucket,
		srv:    memqueue.NewServer(),
		env: ingestion.Env{
			Bucket:  bucket,
			Lineage: lineage.NewEmitter(lineage.Config{Namespace: "docpipe-test"}, nil, logger),
			Logger:  logger,
		},
	}
}

func (h *harness) queue(t *testing.T, stage contract.Stage) *queue.StageQueue {
	t.Helper()
	q, err := queue.New(context.Background(), h.srv.Dialer(), contract.DefaultTable(), stage, 0, testLogger())
	if err != nil {
		t.Fatalf("new queue %s: %v", stage, err)
	}
	t.Cleanup(q.Close)
	return q
}

func (h *harness) put(t *testing.T, key, body string) {
	t.Helper()
	if err := h.bucket.Write(context.Background(), key, []byte(body), "text/html"); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func (h *harness) putJSON(t *testing.T, key string, v any) {
	t.Helper()
	if err := h.bucket.WriteJSON(context.Background(), key, v); err != nil {
		t.Fatalf("put %s: %v", key, err)
	}
}

func (h *harness) exists(t *testing.T, key string) bool {
	t.Helper()
	ok, err := h.bucket.Exists(context.Background(), key)
	if err != nil {
		t.Fatalf("exists %s: %v", key, err)
	}
	return ok
}

func (h *harness) readJSON(t *testing.T, key string, v any) {
	t.Helper()
	if err := h.bucket.ReadJSON(context.Background(), key, v); err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
}

// messages decodes every ready message on queueName.
func (h *harness) messages(t *testing.T, queueName string) []map[string]string {
	t.Helper()
	var out []map[string]string
	for _, body := range h.srv.Messages(queueName) {
		var m map[string]string
		if err := json.Unmarshal(body, &m); err != nil {
			t.Fatalf("decode message on %s: %v", queueName, err)
		}
		out = append(out, m)
	}
	return out
}

// recordingPublisher captures produce messages without a broker.
type recordingPublisher struct {
	mu   sync.Mutex
	msgs []contract.Message
	err  error
}

func (p *recordingPublisher) PushProduceMessage(_ context.Context, m contract.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, m)
	return nil
}

// fakeIndex stores upserted objects by chunk id.
type fakeIndex struct {
	mu      sync.Mutex
	objects map[string]index.Object
	upserts int
	err     error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{objects: make(map[string]index.Object)}
}

func (f *fakeIndex) EnsureSchema(context.Context) error { return nil }

func (f *fakeIndex) Upsert(_ context.Context, obj index.Object) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserts++
	f.objects[obj.ChunkID] = obj
	return nil
}

func (f *fakeIndex) Backend() string { return "fake" }
func (f *fakeIndex) Close()          {}

func (f *fakeIndex) count() (objects, upserts int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects), f.upserts
}
