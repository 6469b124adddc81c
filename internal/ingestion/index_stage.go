package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/ident"
	"github.com/maraichr/docpipe/internal/index"
	"github.com/maraichr/docpipe/internal/store"
	"github.com/maraichr/docpipe/pkg/models"
)

// StatusIndexed is the status recorded once every embedding is upserted.
const StatusIndexed = "indexed"

// IndexProcessor upserts embedding artifacts into the vector index and writes
// the terminal index status object.
type IndexProcessor struct {
	env   Env
	index index.VectorIndex
	now   func() string
}

func NewIndexProcessor(env Env, idx index.VectorIndex) *IndexProcessor {
	return &IndexProcessor{env: env, index: idx, now: ident.UTCNow}
}

func (p *IndexProcessor) Stage() contract.Stage { return contract.StageIndexWeaviate }

func (p *IndexProcessor) docID(key string) (string, bool) {
	return store.DocIDFromKey(key, store.PrefixEmbeddings, store.SuffixEmbeddings)
}

// Candidates skips documents whose status object already exists, so the
// fallback scan never feeds finished work into the dead-letter queue.
func (p *IndexProcessor) Candidates(ctx context.Context) ([]contract.Message, error) {
	keys, err := p.env.Bucket.List(ctx, store.PrefixEmbeddings)
	if err != nil {
		return nil, err
	}
	var out []contract.Message
	for _, k := range keys {
		docID, ok := p.docID(k)
		if !ok {
			continue
		}
		indexed, err := p.env.Bucket.Exists(ctx, store.IndexedKey(docID))
		if err != nil {
			return nil, err
		}
		if !indexed {
			out = append(out, contract.Message{EmbeddingsKey: k, DocID: docID})
		}
	}
	return out, nil
}

// Process returns ErrAlreadyIndexed when the status object exists; nothing is
// upserted in that case.
func (p *IndexProcessor) Process(ctx context.Context, msg contract.Message) error {
	source := msg.EmbeddingsKey
	keyDocID, ok := p.docID(source)
	if !ok {
		return nil
	}
	docID := msg.DocID
	if docID == "" {
		docID = keyDocID
	}
	if docID != keyDocID {
		return fmt.Errorf("%w: doc_id %q does not match %s", ErrMalformedInput, docID, source)
	}
	dest := store.IndexedKey(docID)

	exists, err := p.env.Bucket.Exists(ctx, dest)
	if err != nil {
		return fmt.Errorf("check destination %s: %w", dest, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrAlreadyIndexed, dest)
	}

	run := p.env.startRun(p.Stage(), source, map[string]any{
		"doc_id":  docID,
		"backend": p.index.Backend(),
	})
	run.AddOutput(p.env.dataset(dest))
	return finishRun(run, p.upsert(ctx, source, docID, dest))
}

func (p *IndexProcessor) upsert(ctx context.Context, source, docID, dest string) error {
	raw, err := p.env.Bucket.Read(ctx, source)
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	var records []models.EmbeddingRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedInput, source, err)
	}

	for i, rec := range records {
		if rec.ChunkID == "" {
			return fmt.Errorf("%w: %s embedding %d has no chunk_id", ErrMalformedInput, source, i)
		}
		obj := index.Object{
			ChunkID:           rec.ChunkID,
			DocID:             rec.Metadata.DocID,
			ChunkText:         rec.Metadata.ChunkText,
			SourceKey:         rec.Metadata.SourceKey,
			SecurityClearance: rec.Metadata.SecurityClearance,
			Vector:            rec.Vector,
		}
		if err := p.index.Upsert(ctx, obj); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", rec.ChunkID, err)
		}
	}

	status := models.IndexStatus{
		DocID:      docID,
		Status:     StatusIndexed,
		ChunkCount: len(records),
		Backend:    p.index.Backend(),
		IndexedAt:  p.now(),
	}
	if err := p.env.Bucket.WriteJSON(ctx, dest, status); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	p.env.Logger.Info("document indexed",
		slog.String("doc_id", docID),
		slog.Int("chunks", len(records)),
		slog.String("backend", p.index.Backend()))
	return nil
}
