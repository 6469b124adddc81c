package observer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/maraichr/docpipe/internal/observer"
	"github.com/maraichr/docpipe/internal/store"
	"github.com/maraichr/docpipe/internal/store/memstore"
)

const bucket = "observer-test"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seed(t *testing.T, keys ...string) (*memstore.Store, *store.Bucket) {
	t.Helper()
	mem := memstore.New().WithBucket(bucket)
	b := store.NewBucket(mem, bucket)
	for _, k := range keys {
		if err := b.Write(context.Background(), k, []byte("{}"), "application/json"); err != nil {
			t.Fatal(err)
		}
	}
	return mem, b
}

func TestManifest_Sweep(t *testing.T) {
	ctx := context.Background()
	mem, b := seed(t,
		"03_processed/",
		"03_processed/d1.json",
		"03_processed/d2.json",
		"04_chunks/d1.chunks.json",
		"05_embeddings/d1.embeddings.json",
		"06_indexes/d1.indexed.json",
		"04_chunks/d2.chunks.json",
	)

	n, err := observer.NewManifest(b, time.Second, testLogger()).Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("wrote %d manifests, want 2", n)
	}

	raw, err := b.Read(ctx, "07_metadata/manifest/d1.json")
	if err != nil {
		t.Fatal(err)
	}
	want := `{"attempts":1,"doc_id":"d1","last_error":null,"stages":{"chunk_text":true,"embed_chunks":true,"index_weaviate":true,"parse_document":true}}`
	if string(raw) != want {
		t.Errorf("manifest d1 =\n%s\nwant\n%s", raw, want)
	}
	if ct := mem.ContentType(bucket, "07_metadata/manifest/d1.json"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var d2 struct {
		Stages map[string]bool `json:"stages"`
	}
	if err := b.ReadJSON(ctx, "07_metadata/manifest/d2.json", &d2); err != nil {
		t.Fatal(err)
	}
	if !d2.Stages["chunk_text"] || d2.Stages["embed_chunks"] || d2.Stages["index_weaviate"] {
		t.Errorf("d2 stages = %v", d2.Stages)
	}
}

func TestManifest_StatusComplete(t *testing.T) {
	_, b := seed(t, "03_processed/d1.json", "04_chunks/d1.chunks.json")
	m := observer.NewManifest(b, time.Second, testLogger())
	status, err := m.Status(context.Background(), "d1")
	if err != nil {
		t.Fatal(err)
	}
	if status.Complete() {
		t.Error("partially processed document reported complete")
	}
	if status.LastError != nil || status.Attempts != 1 {
		t.Errorf("status = %+v", status)
	}
}

func TestManifest_StoreError(t *testing.T) {
	mem, b := seed(t, "03_processed/d1.json")
	mem.FailOn("07_metadata/manifest/d1.json", errors.New("write refused"))
	if _, err := observer.NewManifest(b, time.Second, testLogger()).Sweep(context.Background()); err == nil {
		t.Fatal("expected sweep error")
	}
}

type fixedDepth int64

func (d fixedDepth) DLQDepth(context.Context) (int64, error) { return int64(d), nil }

type failingDepth struct{}

func (failingDepth) DLQDepth(context.Context) (int64, error) { return 0, errors.New("broker down") }

func TestMetrics_Collect(t *testing.T) {
	_, b := seed(t,
		"03_processed/",
		"03_processed/d1.json",
		"03_processed/d2.json",
		"04_chunks/d1.chunks.json",
		"04_chunks/d1.tmp",
		"05_embeddings/d1.embeddings.json",
		"06_indexes/d1.indexed.json",
	)
	m := observer.NewMetrics(b, []observer.DLQDepther{fixedDepth(2), fixedDepth(3)}, time.Second, nil, testLogger())
	got, err := m.Collect(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := observer.Counters{FilesProcessed: 2, ChunksCreated: 1, EmbeddingArtifacts: 1, IndexUpserts: 1, Failures: 5}
	if got != want {
		t.Errorf("counters = %+v, want %+v", got, want)
	}
}

func TestMetrics_CollectIsFreshEachSweep(t *testing.T) {
	ctx := context.Background()
	_, b := seed(t, "03_processed/d1.json")
	m := observer.NewMetrics(b, nil, time.Second, nil, testLogger())
	first, err := m.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Delete(ctx, "03_processed/d1.json"); err != nil {
		t.Fatal(err)
	}
	second, err := m.Collect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.FilesProcessed != 1 || second.FilesProcessed != 0 {
		t.Errorf("first = %d, second = %d", first.FilesProcessed, second.FilesProcessed)
	}
}

func TestMetrics_DepthError(t *testing.T) {
	_, b := seed(t)
	m := observer.NewMetrics(b, []observer.DLQDepther{failingDepth{}}, time.Second, nil, testLogger())
	if _, err := m.Collect(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestMetrics_ServeEmits(t *testing.T) {
	_, b := seed(t, "03_processed/d1.json")
	got := make(chan observer.Counters, 4)
	m := observer.NewMetrics(b, nil, 5*time.Millisecond, func(c observer.Counters) { got <- c }, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	select {
	case c := <-got:
		if c.FilesProcessed != 1 {
			t.Errorf("counters = %+v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no counters emitted")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not stop")
	}
}
