package lineage

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink delivers one event. Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, ev RunEvent) error
}

// Config holds emitter identity settings.
type Config struct {
	Namespace string
	Producer  string
}

// Emitter creates runs and hands their events to a Dispatcher. A nil dispatcher
// or a nil *Emitter disables emission; runs still work so callers need no
// branches.
type Emitter struct {
	cfg        Config
	dispatcher *Dispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewEmitter(cfg Config, dispatcher *Dispatcher, logger *slog.Logger) *Emitter {
	return &Emitter{
		cfg:        cfg,
		dispatcher: dispatcher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run is one attempt of one job. Inputs and outputs belong to this run only.
type Run struct {
	e       *Emitter
	id      uuid.UUID
	job     string
	facets  map[string]any
	mu      sync.Mutex
	inputs  []Dataset
	outputs []Dataset
	done    bool
}

// StartRun allocates a fresh run id and fires START. fields become the custom
// docpipe run facet.
func (e *Emitter) StartRun(job string, inputs, outputs []Dataset, fields map[string]any) *Run {
	if e == nil {
		return &Run{id: uuid.New(), job: job, inputs: slices.Clone(inputs), outputs: slices.Clone(outputs)}
	}
	facet := map[string]any{
		"_producer":  e.cfg.Producer,
		"_schemaURL": DocpipeFacetSchemaURL,
	}
	maps.Copy(facet, fields)

	r := &Run{
		e:       e,
		id:      uuid.New(),
		job:     job,
		facets:  map[string]any{docpipeFacetName: facet},
		inputs:  slices.Clone(inputs),
		outputs: slices.Clone(outputs),
	}
	e.emit(r.event(EventStart, r.facets))
	return r
}

func (r *Run) ID() uuid.UUID { return r.id }

func (r *Run) AddInput(ds Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inputs = append(r.inputs, ds)
}

func (r *Run) AddOutput(ds Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = append(r.outputs, ds)
}

// Complete fires COMPLETE. Only the first terminal call emits.
func (r *Run) Complete() {
	if !r.finish() || r.e == nil {
		return
	}
	r.e.emit(r.event(EventComplete, r.facets))
}

// Fail fires FAIL with an errorMessage facet. Only the first terminal call emits.
func (r *Run) Fail(message string) {
	if !r.finish() || r.e == nil {
		return
	}
	facets := maps.Clone(r.facets)
	facets[errorMessageFacetName] = map[string]any{
		"_producer":           r.e.cfg.Producer,
		"_schemaURL":          ErrorMessageSchemaURL,
		"message":             message,
		"programmingLanguage": programmingLanguageTag,
	}
	r.e.emit(r.event(EventFail, facets))
}

func (r *Run) finish() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return false
	}
	r.done = true
	return true
}

func (r *Run) event(t EventType, facets map[string]any) RunEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	inputs := slices.Clone(r.inputs)
	outputs := slices.Clone(r.outputs)
	if inputs == nil {
		inputs = []Dataset{}
	}
	if outputs == nil {
		outputs = []Dataset{}
	}
	return RunEvent{
		EventType: t,
		EventTime: r.e.now().Format(time.RFC3339Nano),
		Run:       RunRef{RunID: r.id.String(), Facets: facets},
		Job:       JobRef{Namespace: r.e.cfg.Namespace, Name: r.job},
		Producer:  r.e.cfg.Producer,
		SchemaURL: RunEventSchemaURL,
		Inputs:    inputs,
		Outputs:   outputs,
	}
}

func (e *Emitter) emit(ev RunEvent) {
	if e == nil || e.dispatcher == nil {
		return
	}
	e.dispatcher.Dispatch(ev)
}
