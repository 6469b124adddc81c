package ingestion

import (
	"context"
	"log/slog"

	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/lineage"
	"github.com/maraichr/docpipe/internal/store"
)

// Processor performs one stage's transformation for one input key.
//
// Process must be idempotent: when the destination artifact already exists it
// returns nil without writing or enqueuing. Keys outside the stage's input
// prefix and suffix are ignored, also returning nil.
type Processor interface {
	Stage() contract.Stage

	// Candidates lists the work a fallback scan of the input prefix would offer.
	Candidates(ctx context.Context) ([]contract.Message, error)

	Process(ctx context.Context, msg contract.Message) error
}

// Service is a long-running loop. Serve returns when ctx is cancelled.
type Service interface {
	Serve(ctx context.Context) error
}

// Publisher hands a message to the next stage.
type Publisher interface {
	PushProduceMessage(ctx context.Context, m contract.Message) error
}

// Env carries the collaborators every processor shares.
type Env struct {
	Bucket  *store.Bucket
	Lineage *lineage.Emitter
	Logger  *slog.Logger
}

func (e Env) dataset(key string) lineage.Dataset {
	return lineage.S3Dataset(e.Bucket.Name(), key)
}

// startRun opens a lineage run for one unit of work on inputKey.
func (e Env) startRun(stage contract.Stage, inputKey string, fields map[string]any) *lineage.Run {
	facet := map[string]any{"stage": string(stage), "input_key": inputKey}
	for k, v := range fields {
		facet[k] = v
	}
	return e.Lineage.StartRun(string(stage), []lineage.Dataset{e.dataset(inputKey)}, nil, facet)
}

// finishRun closes run according to err and returns err unchanged.
func finishRun(run *lineage.Run, err error) error {
	if err != nil {
		run.Fail(err.Error())
		return err
	}
	run.Complete()
	return nil
}

// listCandidates lists prefix and wraps every key accepted by keep in a message
// built by wrap.
func listCandidates(ctx context.Context, b *store.Bucket, prefix string, keep func(string) bool, wrap func(string) contract.Message) ([]contract.Message, error) {
	keys, err := b.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out []contract.Message
	for _, k := range keys {
		if keep(k) {
			out = append(out, wrap(k))
		}
	}
	return out, nil
}

func storageKeyMessage(key string) contract.Message {
	return contract.Message{StorageKey: key}
}
