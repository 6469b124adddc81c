package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/ident"
	"github.com/maraichr/docpipe/internal/store"
	"github.com/maraichr/docpipe/pkg/models"
)

// ChunkProcessor splits processed documents into ordered chunk records.
type ChunkProcessor struct {
	env        Env
	out        Publisher
	targetSize int
}

func NewChunkProcessor(env Env, out Publisher, targetSize int) *ChunkProcessor {
	return &ChunkProcessor{env: env, out: out, targetSize: targetSize}
}

func (p *ChunkProcessor) Stage() contract.Stage { return contract.StageChunkText }

func (p *ChunkProcessor) docID(key string) (string, bool) {
	return store.DocIDFromKey(key, store.PrefixProcessed, store.SuffixProcessed)
}

func (p *ChunkProcessor) Candidates(ctx context.Context) ([]contract.Message, error) {
	keep := func(k string) bool { _, ok := p.docID(k); return ok }
	return listCandidates(ctx, p.env.Bucket, store.PrefixProcessed, keep, storageKeyMessage)
}

func (p *ChunkProcessor) Process(ctx context.Context, msg contract.Message) error {
	source := msg.StorageKey
	docID, ok := p.docID(source)
	if !ok {
		return nil
	}
	dest := store.ChunksKey(docID)

	exists, err := p.env.Bucket.Exists(ctx, dest)
	if err != nil {
		return fmt.Errorf("check destination %s: %w", dest, err)
	}
	if exists {
		return nil
	}

	run := p.env.startRun(p.Stage(), source, map[string]any{"doc_id": docID})
	run.AddOutput(p.env.dataset(dest))
	return finishRun(run, p.chunk(ctx, source, dest))
}

func (p *ChunkProcessor) chunk(ctx context.Context, source, dest string) error {
	raw, err := p.env.Bucket.Read(ctx, source)
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	var doc models.ProcessedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrMalformedInput, source, err)
	}
	if doc.DocID == "" {
		return fmt.Errorf("%w: %s has no doc_id", ErrMalformedInput, source)
	}

	texts := ChunkText(doc.Text, p.targetSize)
	records := make([]models.ChunkRecord, len(texts))
	for i, text := range texts {
		records[i] = models.ChunkRecord{
			ChunkID:           ident.ChunkID(doc.DocID, i, text),
			DocID:             doc.DocID,
			ChunkIndex:        i,
			ChunkText:         text,
			SourceType:        doc.SourceType,
			Timestamp:         doc.Timestamp,
			SecurityClearance: doc.SecurityClearance,
			SourceKey:         doc.SourceKey,
		}
	}

	if err := p.env.Bucket.WriteJSON(ctx, dest, records); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := p.out.PushProduceMessage(ctx, contract.Message{StorageKey: dest}); err != nil {
		return fmt.Errorf("enqueue %s: %w", dest, err)
	}
	p.env.Logger.Info("document chunked", slog.String("doc_id", doc.DocID), slog.Int("chunks", len(records)))
	return nil
}
