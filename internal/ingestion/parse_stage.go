package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/ident"
	"github.com/maraichr/docpipe/internal/parser"
	"github.com/maraichr/docpipe/internal/store"
	"github.com/maraichr/docpipe/pkg/models"
)

// DocumentDefaults are stamped on every processed document.
type DocumentDefaults struct {
	SourceType        string
	SecurityClearance string
}

// ParseProcessor extracts title and text from raw documents.
type ParseProcessor struct {
	env        Env
	out        Publisher
	registry   *parser.Registry
	extensions []string
	defaults   DocumentDefaults
	now        func() string
}

// NewParseProcessor accepts raw keys with one of extensions; keys whose
// extension has no registered parser fail with ErrUnsupportedDocument.
func NewParseProcessor(env Env, out Publisher, registry *parser.Registry, extensions []string, defaults DocumentDefaults) *ParseProcessor {
	return &ParseProcessor{
		env:        env,
		out:        out,
		registry:   registry,
		extensions: extensions,
		defaults:   defaults,
		now:        ident.UTCNow,
	}
}

func (p *ParseProcessor) Stage() contract.Stage { return contract.StageParseDocument }

func (p *ParseProcessor) accepts(key string) bool {
	return strings.HasPrefix(key, store.PrefixRaw) && !store.IsMarker(key) && store.HasExtension(key, p.extensions)
}

func (p *ParseProcessor) Candidates(ctx context.Context) ([]contract.Message, error) {
	return listCandidates(ctx, p.env.Bucket, store.PrefixRaw, p.accepts, storageKeyMessage)
}

func (p *ParseProcessor) Process(ctx context.Context, msg contract.Message) error {
	source := msg.StorageKey
	if !p.accepts(source) {
		return nil
	}
	docID := ident.DocID(source)
	dest := store.ProcessedKey(docID)

	exists, err := p.env.Bucket.Exists(ctx, dest)
	if err != nil {
		return fmt.Errorf("check destination %s: %w", dest, err)
	}
	if exists {
		return nil
	}

	run := p.env.startRun(p.Stage(), source, map[string]any{"doc_id": docID})
	run.AddOutput(p.env.dataset(dest))
	return finishRun(run, p.parse(ctx, source, docID, dest))
}

func (p *ParseProcessor) parse(ctx context.Context, source, docID, dest string) error {
	raw, err := p.env.Bucket.Read(ctx, source)
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	parsed, err := p.registry.ParseFile(parser.FileInput{Path: source, Content: raw})
	if err != nil {
		if errors.Is(err, parser.ErrUnsupported) {
			return fmt.Errorf("%w: %s", ErrUnsupportedDocument, source)
		}
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	doc := models.ProcessedDocument{
		DocID:             docID,
		SourceKey:         source,
		SourceType:        p.defaults.SourceType,
		Timestamp:         p.now(),
		SecurityClearance: p.defaults.SecurityClearance,
		Title:             parsed.Title,
		Text:              parsed.Text,
	}
	if err := p.env.Bucket.WriteJSON(ctx, dest, doc); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	if err := p.out.PushProduceMessage(ctx, contract.Message{StorageKey: dest}); err != nil {
		return fmt.Errorf("enqueue %s: %w", dest, err)
	}
	p.env.Logger.Info("document parsed",
		slog.String("source", source),
		slog.String("doc_id", docID),
		slog.String("title", doc.Title))
	return nil
}
