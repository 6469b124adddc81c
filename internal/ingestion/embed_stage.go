package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/embedding"
	"github.com/maraichr/docpipe/internal/store"
	"github.com/maraichr/docpipe/pkg/models"
)

// EmbedProcessor turns chunk artifacts into embedding artifacts.
type EmbedProcessor struct {
	env      Env
	out      Publisher
	embedder embedding.Embedder
}

func NewEmbedProcessor(env Env, out Publisher, embedder embedding.Embedder) *EmbedProcessor {
	return &EmbedProcessor{env: env, out: out, embedder: embedder}
}

func (p *EmbedProcessor) Stage() contract.Stage { return contract.StageEmbedChunks }

func (p *EmbedProcessor) docID(key string) (string, bool) {
	return store.DocIDFromKey(key, store.PrefixChunks, store.SuffixChunks)
}

func (p *EmbedProcessor) Candidates(ctx context.Context) ([]contract.Message, error) {
	keep := func(k string) bool { _, ok := p.docID(k); return ok }
	return listCandidates(ctx, p.env.Bucket, store.PrefixChunks, keep, storageKeyMessage)
}

func (p *EmbedProcessor) Process(ctx context.Context, msg contract.Message) error {
	source := msg.StorageKey
	docID, ok := p.docID(source)
	if !ok {
		return nil
	}
	dest := store.EmbeddingsKey(docID)

	exists, err := p.env.Bucket.Exists(ctx, dest)
	if err != nil {
		return fmt.Errorf("check destination %s: %w", dest, err)
	}
	if exists {
		return nil
	}

	run := p.env.startRun(p.Stage(), source, map[string]any{
		"doc_id":    docID,
		"model":     p.embedder.ModelID(),
		"dimension": p.embedder.Dimension(),
	})
	run.AddOutput(p.env.dataset(dest))
	return finishRun(run, p.embed(ctx, source, docID, dest))
}

func (p *EmbedProcessor) embed(ctx context.Context, source, docID, dest string) error {
	raw, err := p.env.Bucket.Read(ctx, source)
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	var chunks []models.ChunkRecord
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedInput, source, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		if c.ChunkID == "" {
			return fmt.Errorf("%w: %s chunk %d has no chunk_id", ErrMalformedInput, source, i)
		}
		texts[i] = c.ChunkText
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %s: %w", source, err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed %s: got %d vectors for %d chunks", source, len(vectors), len(chunks))
	}

	records := make([]models.EmbeddingRecord, len(chunks))
	for i, c := range chunks {
		records[i] = models.EmbeddingRecord{
			ChunkID: c.ChunkID,
			Vector:  vectors[i],
			Metadata: models.EmbeddingMetadata{
				DocID:             c.DocID,
				ChunkIndex:        c.ChunkIndex,
				ChunkText:         c.ChunkText,
				SourceKey:         c.SourceKey,
				SourceType:        c.SourceType,
				SecurityClearance: c.SecurityClearance,
				Timestamp:         c.Timestamp,
			},
		}
	}

	if err := p.env.Bucket.WriteJSON(ctx, dest, records); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := p.out.PushProduceMessage(ctx, contract.Message{EmbeddingsKey: dest, DocID: docID}); err != nil {
		return fmt.Errorf("enqueue %s: %w", dest, err)
	}
	p.env.Logger.Info("chunks embedded", slog.String("doc_id", docID), slog.Int("embeddings", len(records)))
	return nil
}
