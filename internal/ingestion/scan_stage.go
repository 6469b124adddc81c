package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/store"
)

// ScanProcessor moves newly dropped files from the incoming prefix to the raw
// prefix and announces them to the parse stage.
type ScanProcessor struct {
	env        Env
	out        Publisher
	extensions []string
}

func NewScanProcessor(env Env, out Publisher, extensions []string) *ScanProcessor {
	return &ScanProcessor{env: env, out: out, extensions: extensions}
}

func (p *ScanProcessor) Stage() contract.Stage { return contract.StageScan }

func (p *ScanProcessor) accepts(key string) bool {
	return strings.HasPrefix(key, store.PrefixIncoming) && !store.IsMarker(key) && store.HasExtension(key, p.extensions)
}

func (p *ScanProcessor) Candidates(ctx context.Context) ([]contract.Message, error) {
	return listCandidates(ctx, p.env.Bucket, store.PrefixIncoming, p.accepts, storageKeyMessage)
}

// RawKey maps an incoming key to its raw-prefix destination.
func RawKey(incomingKey string) string {
	return store.PrefixRaw + strings.TrimPrefix(incomingKey, store.PrefixIncoming)
}

// Process copies the object to the raw prefix unless it is already there,
// enqueues the raw key after a fresh copy, and deletes the incoming object in
// both cases. A source that vanished (another scanner got it) is skipped.
func (p *ScanProcessor) Process(ctx context.Context, msg contract.Message) error {
	source := msg.StorageKey
	if !p.accepts(source) {
		return nil
	}
	exists, err := p.env.Bucket.Exists(ctx, source)
	if err != nil {
		return fmt.Errorf("check source %s: %w", source, err)
	}
	if !exists {
		return nil
	}

	dest := RawKey(source)
	run := p.env.startRun(p.Stage(), source, map[string]any{"raw_key": dest})
	run.AddOutput(p.env.dataset(dest))
	return finishRun(run, p.move(ctx, source, dest))
}

func (p *ScanProcessor) move(ctx context.Context, source, dest string) error {
	present, err := p.env.Bucket.Exists(ctx, dest)
	if err != nil {
		return fmt.Errorf("check destination %s: %w", dest, err)
	}
	if !present {
		if err := p.env.Bucket.Copy(ctx, source, dest); err != nil {
			return fmt.Errorf("copy %s: %w", source, err)
		}
		if err := p.out.PushProduceMessage(ctx, contract.Message{StorageKey: dest}); err != nil {
			return fmt.Errorf("enqueue %s: %w", dest, err)
		}
		p.env.Logger.Info("incoming object moved", slog.String("source", source), slog.String("destination", dest))
	}
	if err := p.env.Bucket.Delete(ctx, source); err != nil {
		return fmt.Errorf("delete %s: %w", source, err)
	}
	return nil
}
