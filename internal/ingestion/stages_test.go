package ingestion_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/embedding"
	"github.com/maraichr/docpipe/internal/ident"
	"github.com/maraichr/docpipe/internal/ingestion"
	"github.com/maraichr/docpipe/internal/lineage"
	"github.com/maraichr/docpipe/internal/parser"
	"github.com/maraichr/docpipe/internal/parser/html"
	"github.com/maraichr/docpipe/internal/store"
	"github.com/maraichr/docpipe/pkg/models"
)

var htmlExtensions = []string{".html", ".htm"}

func newParse(h *harness, out ingestion.Publisher) *ingestion.ParseProcessor {
	return ingestion.NewParseProcessor(h.env, out, parser.NewRegistry(html.New()), htmlExtensions,
		ingestion.DocumentDefaults{SourceType: "html", SecurityClearance: "internal"})
}

func TestScan_MovesIncomingObject(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	q := h.queue(t, contract.StageScan)
	h.put(t, "01_incoming/a.html", "<p>a</p>")

	p := ingestion.NewScanProcessor(h.env, q, htmlExtensions)
	if err := p.Process(ctx, contract.Message{StorageKey: "01_incoming/a.html"}); err != nil {
		t.Fatalf("process: %v", err)
	}

	if !h.exists(t, "02_raw/a.html") {
		t.Error("raw copy missing")
	}
	if h.exists(t, "01_incoming/a.html") {
		t.Error("incoming object not deleted")
	}
	msgs := h.messages(t, contract.QueueParseDocument)
	if len(msgs) != 1 || msgs[0]["storage_key"] != "02_raw/a.html" || len(msgs[0]) != 1 {
		t.Errorf("parse queue = %v, want one {storage_key: 02_raw/a.html}", msgs)
	}
}

func TestScan_KeepsRelativePath(t *testing.T) {
	if got := ingestion.RawKey("01_incoming/team/x/b.htm"); got != "02_raw/team/x/b.htm" {
		t.Errorf("RawKey = %q", got)
	}
}

func TestScan_AlreadyPresentDeletesWithoutEnqueue(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	out := &recordingPublisher{}
	h.put(t, "01_incoming/a.html", "new")
	h.put(t, "02_raw/a.html", "old")

	p := ingestion.NewScanProcessor(h.env, out, htmlExtensions)
	if err := p.Process(ctx, contract.Message{StorageKey: "01_incoming/a.html"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if h.exists(t, "01_incoming/a.html") {
		t.Error("incoming object not deleted")
	}
	raw, _ := h.bucket.Read(ctx, "02_raw/a.html")
	if string(raw) != "old" {
		t.Errorf("raw object overwritten: %q", raw)
	}
	if len(out.msgs) != 0 {
		t.Errorf("enqueued %v for an already present raw object", out.msgs)
	}
}

func TestScan_IgnoresNonMatchingKeys(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	out := &recordingPublisher{}
	h.put(t, "01_incoming/notes.txt", "x")
	h.put(t, "02_raw/a.html", "x")

	p := ingestion.NewScanProcessor(h.env, out, htmlExtensions)
	for _, key := range []string{"01_incoming/notes.txt", "02_raw/a.html", "01_incoming/", "01_incoming/gone.html"} {
		if err := p.Process(ctx, contract.Message{StorageKey: key}); err != nil {
			t.Errorf("process %q: %v", key, err)
		}
	}
	if !h.exists(t, "01_incoming/notes.txt") {
		t.Error("non-matching object was moved")
	}
	if len(out.msgs) != 0 {
		t.Errorf("unexpected messages %v", out.msgs)
	}
}

func TestScan_Candidates(t *testing.T) {
	h := newHarness(t)
	h.put(t, "01_incoming/", "")
	h.put(t, "01_incoming/a.html", "x")
	h.put(t, "01_incoming/b.HTM", "x")
	h.put(t, "01_incoming/c.pdf", "x")

	p := ingestion.NewScanProcessor(h.env, &recordingPublisher{}, htmlExtensions)
	got, err := p.Candidates(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].StorageKey != "01_incoming/a.html" || got[1].StorageKey != "01_incoming/b.HTM" {
		t.Errorf("candidates = %v", got)
	}
}

func TestParse_TitleAndText(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	out := &recordingPublisher{}
	h.put(t, "02_raw/a.html", "<title>T</title><p>Hello world.</p>")

	p := newParse(h, out)
	if err := p.Process(ctx, contract.Message{StorageKey: "02_raw/a.html"}); err != nil {
		t.Fatalf("process: %v", err)
	}

	sum := sha256.Sum256([]byte("02_raw/a.html"))
	docID := hex.EncodeToString(sum[:])[:24]
	var doc models.ProcessedDocument
	h.readJSON(t, "03_processed/"+docID+".json", &doc)
	if doc.DocID != docID {
		t.Errorf("doc_id = %q, want %q", doc.DocID, docID)
	}
	if doc.Title != "T" {
		t.Errorf("title = %q, want T", doc.Title)
	}
	if !strings.Contains(doc.Text, "Hello world.") {
		t.Errorf("text = %q", doc.Text)
	}
	if doc.SourceKey != "02_raw/a.html" || doc.SourceType != "html" || doc.SecurityClearance != "internal" {
		t.Errorf("metadata = %+v", doc)
	}
	if _, err := time.Parse(time.RFC3339Nano, doc.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", doc.Timestamp, err)
	}
	if len(out.msgs) != 1 || out.msgs[0].StorageKey != store.ProcessedKey(docID) {
		t.Errorf("enqueued %v", out.msgs)
	}
	if ct := h.mem.ContentType(testBucket, store.ProcessedKey(docID)); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
}

func TestParse_Idempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	out := &recordingPublisher{}
	h.put(t, "02_raw/a.html", "<title>T</title><p>x</p>")

	p := newParse(h, out)
	msg := contract.Message{StorageKey: "02_raw/a.html"}
	if err := p.Process(ctx, msg); err != nil {
		t.Fatal(err)
	}
	dest := store.ProcessedKey(ident.DocID("02_raw/a.html"))
	first, _ := h.bucket.Read(ctx, dest)

	h.put(t, "02_raw/a.html", "<title>Changed</title>")
	if err := p.Process(ctx, msg); err != nil {
		t.Fatal(err)
	}
	second, _ := h.bucket.Read(ctx, dest)
	if string(first) != string(second) {
		t.Error("second run rewrote the processed artifact")
	}
	if len(out.msgs) != 1 {
		t.Errorf("second run enqueued again: %d messages", len(out.msgs))
	}
}

func TestParse_UnsupportedExtension(t *testing.T) {
	h := newHarness(t)
	h.put(t, "02_raw/a.xhtml", "<p>x</p>")
	p := ingestion.NewParseProcessor(h.env, &recordingPublisher{}, parser.NewRegistry(html.New()),
		[]string{".html", ".xhtml"}, ingestion.DocumentDefaults{})

	err := p.Process(context.Background(), contract.Message{StorageKey: "02_raw/a.xhtml"})
	if !errors.Is(err, ingestion.ErrUnsupportedDocument) {
		t.Fatalf("expected ErrUnsupportedDocument, got %v", err)
	}
}

func TestParse_IgnoresOutsideAllowList(t *testing.T) {
	h := newHarness(t)
	out := &recordingPublisher{}
	h.put(t, "02_raw/a.pdf", "x")
	if err := newParse(h, out).Process(context.Background(), contract.Message{StorageKey: "02_raw/a.pdf"}); err != nil {
		t.Fatalf("expected nil for a non-matching key, got %v", err)
	}
	if len(h.mem.Keys(testBucket)) != 1 {
		t.Errorf("unexpected writes: %v", h.mem.Keys(testBucket))
	}
}

func TestParse_StoreErrorSurfaces(t *testing.T) {
	h := newHarness(t)
	h.put(t, "02_raw/a.html", "<p>x</p>")
	boom := errors.New("read timeout")
	h.mem.FailOn("02_raw/a.html", boom)

	err := newParse(h, &recordingPublisher{}).Process(context.Background(), contract.Message{StorageKey: "02_raw/a.html"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestChunk_WritesRecords(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	out := &recordingPublisher{}
	doc := models.ProcessedDocument{
		DocID:             "d1",
		SourceKey:         "02_raw/d1.html",
		SourceType:        "html",
		Timestamp:         "2026-01-01T00:00:00Z",
		SecurityClearance: "internal",
		Text:              "Aaaa. Bbbb. Cccc.",
	}
	h.putJSON(t, "03_processed/d1.json", doc)

	p := ingestion.NewChunkProcessor(h.env, out, 11)
	if err := p.Process(ctx, contract.Message{StorageKey: "03_processed/d1.json"}); err != nil {
		t.Fatalf("process: %v", err)
	}

	var chunks []models.ChunkRecord
	h.readJSON(t, "04_chunks/d1.chunks.json", &chunks)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i || c.DocID != "d1" {
			t.Errorf("chunk %d = %+v", i, c)
		}
		if c.ChunkID != ident.ChunkID("d1", i, c.ChunkText) {
			t.Errorf("chunk %d id = %s", i, c.ChunkID)
		}
		if c.SourceKey != doc.SourceKey || c.SecurityClearance != "internal" || c.Timestamp != doc.Timestamp || c.SourceType != "html" {
			t.Errorf("chunk %d metadata not carried: %+v", i, c)
		}
	}
	if len(out.msgs) != 1 || out.msgs[0].StorageKey != "04_chunks/d1.chunks.json" {
		t.Errorf("enqueued %v", out.msgs)
	}
}

func TestChunk_Idempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	out := &recordingPublisher{}
	h.putJSON(t, "03_processed/d1.json", models.ProcessedDocument{DocID: "d1", Text: "One. Two."})

	p := ingestion.NewChunkProcessor(h.env, out, 100)
	msg := contract.Message{StorageKey: "03_processed/d1.json"}
	if err := p.Process(ctx, msg); err != nil {
		t.Fatal(err)
	}
	first, _ := h.bucket.Read(ctx, "04_chunks/d1.chunks.json")

	h.putJSON(t, "03_processed/d1.json", models.ProcessedDocument{DocID: "d1", Text: "Changed."})
	if err := p.Process(ctx, msg); err != nil {
		t.Fatal(err)
	}
	second, _ := h.bucket.Read(ctx, "04_chunks/d1.chunks.json")
	if string(first) != string(second) {
		t.Error("second run rewrote the chunks artifact")
	}
	if len(out.msgs) != 1 {
		t.Errorf("second run enqueued again: %d messages", len(out.msgs))
	}
}

// Inline markup must not split sentences before chunking.
func TestParseThenChunk_InlineMarkup(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	out := &recordingPublisher{}
	h.put(t, "02_raw/a.html", `<p>See the <a href="x">docs</a>. Then <b>more</b> text.</p>`)

	if err := newParse(h, out).Process(ctx, contract.Message{StorageKey: "02_raw/a.html"}); err != nil {
		t.Fatal(err)
	}
	var doc models.ProcessedDocument
	h.readJSON(t, out.msgs[0].StorageKey, &doc)

	got := ingestion.ChunkText(doc.Text, ingestion.DefaultChunkTargetSize)
	if len(got) != 1 || got[0] != "See the docs. Then more text." {
		t.Errorf("chunks = %q", got)
	}
}

func TestChunk_WithoutLineage(t *testing.T) {
	h := newHarness(t)
	h.env.Lineage = nil
	out := &recordingPublisher{}
	h.putJSON(t, "03_processed/d1.json", models.ProcessedDocument{DocID: "d1", Text: "One."})

	p := ingestion.NewChunkProcessor(h.env, out, 100)
	if err := p.Process(context.Background(), contract.Message{StorageKey: "03_processed/d1.json"}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if !h.exists(t, "04_chunks/d1.chunks.json") || len(out.msgs) != 1 {
		t.Errorf("chunks written = %v, enqueued = %d", h.exists(t, "04_chunks/d1.chunks.json"), len(out.msgs))
	}
}

func TestChunk_ChunkIDFromText(t *testing.T) {
	sum := sha256.Sum256([]byte("d1|0|X"))
	if got := ident.ChunkID("d1", 0, "X"); got != hex.EncodeToString(sum[:]) {
		t.Errorf("ChunkID = %s", got)
	}
}

func TestChunk_MalformedInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "{not json"},
		{name: "missing doc_id", body: `{"text":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.put(t, "03_processed/d1.json", tt.body)
			p := ingestion.NewChunkProcessor(h.env, &recordingPublisher{}, 100)
			err := p.Process(context.Background(), contract.Message{StorageKey: "03_processed/d1.json"})
			if !errors.Is(err, ingestion.ErrMalformedInput) {
				t.Fatalf("expected ErrMalformedInput, got %v", err)
			}
			if h.exists(t, "04_chunks/d1.chunks.json") {
				t.Error("wrote an artifact for malformed input")
			}
		})
	}
}

func TestChunk_IgnoresMarkersAndOtherPrefixes(t *testing.T) {
	h := newHarness(t)
	h.put(t, "03_processed/", "")
	h.putJSON(t, "03_processed/d1.json", models.ProcessedDocument{DocID: "d1", Text: "x"})
	h.put(t, "03_processed/nested/d2.json", "{}")
	h.put(t, "03_processed/readme.txt", "x")

	p := ingestion.NewChunkProcessor(h.env, &recordingPublisher{}, 100)
	got, err := p.Candidates(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].StorageKey != "03_processed/d1.json" {
		t.Errorf("candidates = %v", got)
	}
	if err := p.Process(context.Background(), contract.Message{StorageKey: "03_processed/"}); err != nil {
		t.Errorf("marker: %v", err)
	}
}

func TestEmbed_WritesVectorsAndIndexRequest(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	q := h.queue(t, contract.StageEmbedChunks)
	chunks := []models.ChunkRecord{
		{ChunkID: ident.ChunkID("d1", 0, "abc"), DocID: "d1", ChunkIndex: 0, ChunkText: "abc", SourceKey: "02_raw/d1.html"},
		{ChunkID: ident.ChunkID("d1", 1, "def"), DocID: "d1", ChunkIndex: 1, ChunkText: "def", SourceKey: "02_raw/d1.html"},
	}
	h.putJSON(t, "04_chunks/d1.chunks.json", chunks)

	embedder := embedding.NewHashEmbedder(4)
	p := ingestion.NewEmbedProcessor(h.env, q, embedder)
	if err := p.Process(ctx, contract.Message{StorageKey: "04_chunks/d1.chunks.json"}); err != nil {
		t.Fatalf("process: %v", err)
	}

	var records []models.EmbeddingRecord
	h.readJSON(t, "05_embeddings/d1.embeddings.json", &records)
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	for i, r := range records {
		if r.ChunkID != chunks[i].ChunkID || r.Metadata.ChunkText != chunks[i].ChunkText || r.Metadata.ChunkIndex != i {
			t.Errorf("record %d = %+v", i, r)
		}
		if len(r.Vector) != 4 {
			t.Errorf("record %d has %d dims", i, len(r.Vector))
		}
		want := embedder.Embed(chunks[i].ChunkText)
		for j := range want {
			if r.Vector[j] != want[j] {
				t.Errorf("record %d dim %d = %v, want %v", i, j, r.Vector[j], want[j])
			}
		}
	}

	msgs := h.messages(t, contract.QueueIndexWeaviate)
	if len(msgs) != 1 || msgs[0]["embeddings_key"] != "05_embeddings/d1.embeddings.json" || msgs[0]["doc_id"] != "d1" {
		t.Errorf("index queue = %v", msgs)
	}
}

func TestEmbed_MissingChunkID(t *testing.T) {
	h := newHarness(t)
	h.putJSON(t, "04_chunks/d1.chunks.json", []models.ChunkRecord{{DocID: "d1", ChunkText: "x"}})
	p := ingestion.NewEmbedProcessor(h.env, &recordingPublisher{}, embedding.NewHashEmbedder(4))
	err := p.Process(context.Background(), contract.Message{StorageKey: "04_chunks/d1.chunks.json"})
	if !errors.Is(err, ingestion.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestEmbed_Idempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	out := &recordingPublisher{}
	seed := func(text string) {
		h.putJSON(t, "04_chunks/d1.chunks.json", []models.ChunkRecord{
			{ChunkID: ident.ChunkID("d1", 0, text), DocID: "d1", ChunkText: text},
		})
	}
	seed("abc")

	p := ingestion.NewEmbedProcessor(h.env, out, embedding.NewHashEmbedder(4))
	msg := contract.Message{StorageKey: "04_chunks/d1.chunks.json"}
	if err := p.Process(ctx, msg); err != nil {
		t.Fatal(err)
	}
	first, _ := h.bucket.Read(ctx, "05_embeddings/d1.embeddings.json")

	seed("xyz")
	if err := p.Process(ctx, msg); err != nil {
		t.Fatal(err)
	}
	second, _ := h.bucket.Read(ctx, "05_embeddings/d1.embeddings.json")
	if string(first) != string(second) {
		t.Error("second run rewrote the embeddings artifact")
	}
	if len(out.msgs) != 1 {
		t.Errorf("second run enqueued again: %d messages", len(out.msgs))
	}
}

func seedEmbeddings(t *testing.T, h *harness, docID string, n int) {
	t.Helper()
	e := embedding.NewHashEmbedder(4)
	records := make([]models.EmbeddingRecord, n)
	for i := range records {
		text := strings.Repeat("x", i+1)
		records[i] = models.EmbeddingRecord{
			ChunkID:  ident.ChunkID(docID, i, text),
			Vector:   e.Embed(text),
			Metadata: models.EmbeddingMetadata{DocID: docID, ChunkIndex: i, ChunkText: text},
		}
	}
	h.putJSON(t, store.EmbeddingsKey(docID), records)
}

func TestIndex_UpsertsAndWritesStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	seedEmbeddings(t, h, "d1", 3)
	idx := newFakeIndex()

	p := ingestion.NewIndexProcessor(h.env, idx)
	msg := contract.Message{EmbeddingsKey: "05_embeddings/d1.embeddings.json", DocID: "d1"}
	if err := p.Process(ctx, msg); err != nil {
		t.Fatalf("process: %v", err)
	}
	if objects, _ := idx.count(); objects != 3 {
		t.Errorf("indexed %d objects, want 3", objects)
	}
	var status models.IndexStatus
	h.readJSON(t, "06_indexes/d1.indexed.json", &status)
	if status.DocID != "d1" || status.Status != ingestion.StatusIndexed || status.ChunkCount != 3 || status.Backend != "fake" {
		t.Errorf("status = %+v", status)
	}
}

// An index request for an already indexed document is an error so that the
// worker dead-letters it, and nothing is upserted again.
func TestIndex_AlreadyIndexed(t *testing.T) {
	h := newHarness(t)
	seedEmbeddings(t, h, "d1", 2)
	h.putJSON(t, "06_indexes/d1.indexed.json", models.IndexStatus{DocID: "d1", Status: "indexed"})
	idx := newFakeIndex()

	p := ingestion.NewIndexProcessor(h.env, idx)
	err := p.Process(context.Background(), contract.Message{EmbeddingsKey: "05_embeddings/d1.embeddings.json", DocID: "d1"})
	if !errors.Is(err, ingestion.ErrAlreadyIndexed) {
		t.Fatalf("expected ErrAlreadyIndexed, got %v", err)
	}
	if _, upserts := idx.count(); upserts != 0 {
		t.Errorf("re-upserted %d objects", upserts)
	}
}

func TestIndex_DocIDMismatch(t *testing.T) {
	h := newHarness(t)
	seedEmbeddings(t, h, "d1", 1)
	p := ingestion.NewIndexProcessor(h.env, newFakeIndex())
	err := p.Process(context.Background(), contract.Message{EmbeddingsKey: "05_embeddings/d1.embeddings.json", DocID: "d2"})
	if !errors.Is(err, ingestion.ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestIndex_UpsertFailureWritesNoStatus(t *testing.T) {
	h := newHarness(t)
	seedEmbeddings(t, h, "d1", 2)
	idx := newFakeIndex()
	idx.err = errors.New("weaviate unavailable")

	p := ingestion.NewIndexProcessor(h.env, idx)
	if err := p.Process(context.Background(), contract.Message{EmbeddingsKey: "05_embeddings/d1.embeddings.json", DocID: "d1"}); err == nil {
		t.Fatal("expected upsert error")
	}
	if h.exists(t, "06_indexes/d1.indexed.json") {
		t.Error("status written after a failed upsert")
	}
}

func TestIndex_CandidatesSkipIndexed(t *testing.T) {
	h := newHarness(t)
	seedEmbeddings(t, h, "d1", 1)
	seedEmbeddings(t, h, "d2", 1)
	h.putJSON(t, "06_indexes/d1.indexed.json", models.IndexStatus{DocID: "d1"})

	got, err := ingestion.NewIndexProcessor(h.env, newFakeIndex()).Candidates(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].DocID != "d2" || got[0].EmbeddingsKey != "05_embeddings/d2.embeddings.json" {
		t.Errorf("candidates = %v", got)
	}
}

// Running the whole chain twice over the same input yields the same artifact
// keys, chunk ids and vectors.
func TestPipeline_EndToEndDeterministic(t *testing.T) {
	run := func() (keys []string, embeddings []models.EmbeddingRecord) {
		ctx := context.Background()
		h := newHarness(t)
		h.put(t, "01_incoming/guide.html", "<html><head><title>Guide</title></head><body><p>First sentence. Second sentence!</p><p>Third?</p></body></html>")
		out := &recordingPublisher{}
		procs := []ingestion.Processor{
			ingestion.NewScanProcessor(h.env, out, htmlExtensions),
			newParse(h, out),
			ingestion.NewChunkProcessor(h.env, out, 20),
			ingestion.NewEmbedProcessor(h.env, out, embedding.NewHashEmbedder(8)),
			ingestion.NewIndexProcessor(h.env, newFakeIndex()),
		}
		for _, p := range procs {
			cands, err := p.Candidates(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(cands) != 1 {
				t.Fatalf("%s: %d candidates", p.Stage(), len(cands))
			}
			if err := p.Process(ctx, cands[0]); err != nil {
				t.Fatalf("%s: %v", p.Stage(), err)
			}
		}
		docID := ident.DocID("02_raw/guide.html")
		h.readJSON(t, store.EmbeddingsKey(docID), &embeddings)
		return h.mem.Keys(testBucket), embeddings
	}

	firstKeys, first := run()
	secondKeys, second := run()
	if strings.Join(firstKeys, ",") != strings.Join(secondKeys, ",") {
		t.Errorf("artifact keys differ: %v vs %v", firstKeys, secondKeys)
	}
	if len(firstKeys) != 5 {
		t.Errorf("got keys %v, want raw, processed, chunks, embeddings and index status", firstKeys)
	}
	if len(first) < 2 || len(first) != len(second) {
		t.Fatalf("embeddings: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ChunkID != second[i].ChunkID {
			t.Errorf("chunk %d id differs", i)
		}
		for j := range first[i].Vector {
			if first[i].Vector[j] != second[i].Vector[j] {
				t.Errorf("chunk %d vector differs at %d", i, j)
				break
			}
		}
	}
}

type recordingSink struct {
	events chan lineage.RunEvent
}

func (s *recordingSink) Send(_ context.Context, ev lineage.RunEvent) error {
	s.events <- ev
	return nil
}

func TestProcess_EmitsLineage(t *testing.T) {
	h := newHarness(t)
	sink := &recordingSink{events: make(chan lineage.RunEvent, 8)}
	d, err := lineage.NewDispatcher(sink, 4, time.Second, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	h.env.Lineage = lineage.NewEmitter(lineage.Config{Namespace: "docpipe-test"}, d, testLogger())
	h.put(t, "02_raw/a.html", "<p>x</p>")

	if err := newParse(h, &recordingPublisher{}).Process(context.Background(), contract.Message{StorageKey: "02_raw/a.html"}); err != nil {
		t.Fatal(err)
	}
	d.Close(time.Second)
	close(sink.events)

	var types []lineage.EventType
	runIDs := make(map[string]bool)
	for ev := range sink.events {
		types = append(types, ev.EventType)
		runIDs[ev.Run.RunID] = true
		if ev.Job.Name != string(contract.StageParseDocument) {
			t.Errorf("job = %q", ev.Job.Name)
		}
		if len(ev.Inputs) != 1 || ev.Inputs[0].Name != "02_raw/a.html" || ev.Inputs[0].Namespace != "s3://"+testBucket {
			t.Errorf("inputs = %v", ev.Inputs)
		}
		if ev.EventType == lineage.EventComplete && (len(ev.Outputs) != 1 || !strings.HasPrefix(ev.Outputs[0].Name, store.PrefixProcessed)) {
			t.Errorf("outputs = %v", ev.Outputs)
		}
	}
	if len(types) != 2 || len(runIDs) != 1 {
		t.Errorf("events = %v over %d runs, want START and COMPLETE of one run", types, len(runIDs))
	}
}
