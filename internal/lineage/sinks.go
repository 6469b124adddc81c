package lineage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/maraichr/docpipe/internal/graph"
)

// HTTPSink posts events as JSON to an OpenLineage endpoint such as Marquez's
// /api/v1/lineage.
type HTTPSink struct {
	url  string
	http *http.Client
}

func NewHTTPSink(url string) *HTTPSink {
	return &HTTPSink{url: url, http: &http.Client{}}
}

func (s *HTTPSink) Send(ctx context.Context, ev RunEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("lineage endpoint returned status %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}

// RunRecorder is the part of graph.Client GraphSink needs.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec graph.RunRecord) error
}

// GraphSink mirrors events into the Neo4j lineage graph.
type GraphSink struct {
	graph RunRecorder
}

func NewGraphSink(g RunRecorder) *GraphSink {
	return &GraphSink{graph: g}
}

func (s *GraphSink) Send(ctx context.Context, ev RunEvent) error {
	rec := graph.RunRecord{
		RunID:        ev.Run.RunID,
		JobNamespace: ev.Job.Namespace,
		JobName:      ev.Job.Name,
		State:        string(ev.EventType),
		EventTime:    ev.EventTime,
		Inputs:       datasetRefs(ev.Inputs),
		Outputs:      datasetRefs(ev.Outputs),
	}
	if facet, ok := ev.Run.Facets[errorMessageFacetName].(map[string]any); ok {
		rec.Error, _ = facet["message"].(string)
	}
	return s.graph.RecordRun(ctx, rec)
}

func datasetRefs(ds []Dataset) []graph.DatasetRef {
	out := make([]graph.DatasetRef, len(ds))
	for i, d := range ds {
		out[i] = graph.DatasetRef{ID: d.Namespace + "/" + d.Name, Namespace: d.Namespace, Name: d.Name}
	}
	return out
}

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Send(ctx context.Context, ev RunEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
