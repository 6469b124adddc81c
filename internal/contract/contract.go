// Package contract holds the static stage contract table: for every pipeline stage,
// the queue it consumes, the queue it produces to and its dead-letter queue, each with
// the message schema carried on that queue.
package contract

import (
	"errors"
	"fmt"

	"github.com/maraichr/docpipe/pkg/models"
)

// ErrUnknownStage is returned when binding a stage the table does not define.
var ErrUnknownStage = errors.New("unknown stage")

// Stage names a pipeline step.
type Stage string

const (
	StageScan          Stage = models.StageScan
	StageParseDocument Stage = models.StageParseDocument
	StageChunkText     Stage = models.StageChunkText
	StageEmbedChunks   Stage = models.StageEmbedChunks
	StageIndexWeaviate Stage = models.StageIndexWeaviate
)

// Stages lists the pipeline in execution order.
var Stages = []Stage{StageScan, StageParseDocument, StageChunkText, StageEmbedChunks, StageIndexWeaviate}

// QueueDef binds a queue name to the schema of messages it carries.
type QueueDef struct {
	Name   string
	Schema Schema
}

// NoQueue is the sentinel for "this stage has no queue on this side".
var NoQueue = QueueDef{Schema: SchemaNone}

// None reports whether q is the sentinel.
func (q QueueDef) None() bool { return q.Name == "" }

// StageContract is the consume/produce/dlq binding for one stage.
type StageContract struct {
	Stage   Stage
	Consume QueueDef
	Produce QueueDef
	DLQ     QueueDef
}

// Table maps stage names to their contracts.
type Table map[Stage]StageContract

// Default queue names.
const (
	QueueParseDocument    = "q.parse_document"
	QueueChunkText        = "q.chunk_text"
	QueueEmbedChunks      = "q.embed_chunks"
	QueueIndexWeaviate    = "q.index_weaviate"
	QueueScanDLQ          = "q.scan.dlq"
	QueueParseDocumentDLQ = "q.parse_document.dlq"
	QueueChunkTextDLQ     = "q.chunk_text.dlq"
	QueueEmbedChunksDLQ   = "q.embed_chunks.dlq"
	QueueIndexWeaviateDLQ = "q.index_weaviate.dlq"
)

// DefaultTable returns the pipeline DAG
// scan → parse_document → chunk_text → embed_chunks → index_weaviate.
func DefaultTable() Table {
	parse := QueueDef{Name: QueueParseDocument, Schema: SchemaStorageKey}
	chunk := QueueDef{Name: QueueChunkText, Schema: SchemaStorageKey}
	embed := QueueDef{Name: QueueEmbedChunks, Schema: SchemaStorageKey}
	index := QueueDef{Name: QueueIndexWeaviate, Schema: SchemaIndexRequest}

	return Table{
		StageScan: {
			Stage:   StageScan,
			Consume: NoQueue,
			Produce: parse,
			DLQ:     QueueDef{Name: QueueScanDLQ, Schema: SchemaStorageKeyFailed},
		},
		StageParseDocument: {
			Stage:   StageParseDocument,
			Consume: parse,
			Produce: chunk,
			DLQ:     QueueDef{Name: QueueParseDocumentDLQ, Schema: SchemaStorageKeyFailed},
		},
		StageChunkText: {
			Stage:   StageChunkText,
			Consume: chunk,
			Produce: embed,
			DLQ:     QueueDef{Name: QueueChunkTextDLQ, Schema: SchemaStorageKeyFailed},
		},
		StageEmbedChunks: {
			Stage:   StageEmbedChunks,
			Consume: embed,
			Produce: index,
			DLQ:     QueueDef{Name: QueueEmbedChunksDLQ, Schema: SchemaStorageKeyFailed},
		},
		StageIndexWeaviate: {
			Stage:   StageIndexWeaviate,
			Consume: index,
			Produce: NoQueue,
			DLQ:     QueueDef{Name: QueueIndexWeaviateDLQ, Schema: SchemaIndexRequestFailed},
		},
	}
}

// Bind returns the contract for stage or ErrUnknownStage.
func (t Table) Bind(stage Stage) (StageContract, error) {
	c, ok := t[stage]
	if !ok {
		return StageContract{}, fmt.Errorf("bind %q: %w", stage, ErrUnknownStage)
	}
	return c, nil
}

// WithQueueNames returns a copy of t with queue names replaced by overrides, keyed
// by the default queue name. Schemas are never overridden.
func (t Table) WithQueueNames(overrides map[string]string) Table {
	rename := func(q QueueDef) QueueDef {
		if q.None() {
			return q
		}
		if n, ok := overrides[q.Name]; ok && n != "" {
			q.Name = n
		}
		return q
	}
	out := make(Table, len(t))
	for stage, c := range t {
		c.Consume = rename(c.Consume)
		c.Produce = rename(c.Produce)
		c.DLQ = rename(c.DLQ)
		out[stage] = c
	}
	return out
}

// Validate checks the table is total over Stages and that every produce queue is
// consumed by exactly one downstream stage with the same schema.
func (t Table) Validate() error {
	consumers := make(map[string]StageContract)
	for _, stage := range Stages {
		c, ok := t[stage]
		if !ok {
			return fmt.Errorf("stage %q: %w", stage, ErrUnknownStage)
		}
		if c.DLQ.None() {
			return fmt.Errorf("stage %q has no dead-letter queue", stage)
		}
		if !c.Consume.None() {
			if prev, dup := consumers[c.Consume.Name]; dup {
				return fmt.Errorf("queue %q consumed by both %q and %q", c.Consume.Name, prev.Stage, stage)
			}
			consumers[c.Consume.Name] = c
		}
	}
	for _, stage := range Stages {
		c := t[stage]
		if c.Produce.None() {
			continue
		}
		down, ok := consumers[c.Produce.Name]
		if !ok {
			return fmt.Errorf("stage %q produces to %q which no stage consumes", stage, c.Produce.Name)
		}
		if !down.Consume.Schema.Equal(c.Produce.Schema) {
			return fmt.Errorf("stage %q produces %s but %q consumes %s",
				stage, c.Produce.Schema.Name, down.Stage, down.Consume.Schema.Name)
		}
	}
	return nil
}

// ParseStage validates a stage name from configuration or the command line.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%q: %w", s, ErrUnknownStage)
}
