package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/graph"
	"github.com/maraichr/docpipe/internal/index"
	"github.com/maraichr/docpipe/internal/index/pgvector"
	"github.com/maraichr/docpipe/internal/index/weaviate"
	"github.com/maraichr/docpipe/internal/lineage"
	"github.com/maraichr/docpipe/internal/queue"
	"github.com/maraichr/docpipe/internal/store"
	minioclient "github.com/maraichr/docpipe/internal/store/minio"
	s3client "github.com/maraichr/docpipe/internal/store/s3"
	vk "github.com/maraichr/docpipe/internal/store/valkey"
)

const lineageDrainTimeout = 5 * time.Second

// openObjectStore connects to the configured object store backend.
func (a *app) openObjectStore(ctx context.Context) (store.ObjectStore, error) {
	switch a.cfg.Storage.Backend {
	case "s3":
		c, err := s3client.NewClient(ctx, a.cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("connect s3: %w", err)
		}
		a.logger.Info("connected to s3", slog.String("region", a.cfg.S3.Region))
		return c, nil
	default:
		c, err := minioclient.NewClient(a.cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		a.logger.Info("connected to minio", slog.String("endpoint", a.cfg.MinIO.Endpoint))
		return c, nil
	}
}

func (a *app) openBucket(ctx context.Context) (*store.Bucket, error) {
	s, err := a.openObjectStore(ctx)
	if err != nil {
		return nil, err
	}
	return store.NewBucket(s, a.cfg.Storage.Bucket), nil
}

// contractTable returns the validated contract table with configured queue
// names applied.
func (a *app) contractTable() (contract.Table, error) {
	table := contract.DefaultTable().WithQueueNames(a.cfg.Pipeline.QueueNames)
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stage contract table: %w", err)
	}
	return table, nil
}

func (a *app) newQueueSet() (*queue.Set, error) {
	table, err := a.contractTable()
	if err != nil {
		return nil, err
	}
	return queue.NewSet(vk.Dialer(a.cfg.Broker), table, a.cfg.Worker.PopTimeout, a.logger), nil
}

// openIndex connects to the configured vector index.
func (a *app) openIndex(ctx context.Context) (index.VectorIndex, error) {
	switch a.cfg.Index.Backend {
	case "pgvector":
		s, err := pgvector.New(ctx, a.cfg.Index.PGVectorDSN, a.cfg.Pipeline.EmbeddingDimension, a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect pgvector: %w", err)
		}
		return s, nil
	default:
		c, err := weaviate.NewClient(a.cfg.Index.WeaviateURL, a.logger)
		if err != nil {
			return nil, fmt.Errorf("weaviate client: %w", err)
		}
		return c, nil
	}
}

// lineageStack holds the emitter and whatever must be released on exit.
type lineageStack struct {
	Emitter    *lineage.Emitter
	Graph      *graph.Client
	dispatcher *lineage.Dispatcher
}

// openLineage builds the emitter over the configured sinks: an OpenLineage
// HTTP endpoint, the Neo4j lineage graph, both, or neither.
func (a *app) openLineage(ctx context.Context) (*lineageStack, error) {
	ls := &lineageStack{}
	var sinks lineage.MultiSink
	if a.cfg.Lineage.URL != "" {
		sinks = append(sinks, lineage.NewHTTPSink(a.cfg.Lineage.URL))
	}
	if a.cfg.Lineage.Neo4jURI != "" {
		g, err := a.openGraph(ctx)
		if err != nil {
			return nil, err
		}
		ls.Graph = g
		sinks = append(sinks, lineage.NewGraphSink(g))
	}

	if len(sinks) > 0 {
		var sink lineage.Sink = sinks
		if len(sinks) == 1 {
			sink = sinks[0]
		}
		d, err := lineage.NewDispatcher(sink, a.cfg.Lineage.Workers, a.cfg.Lineage.Timeout, a.logger)
		if err != nil {
			ls.Close(ctx)
			return nil, fmt.Errorf("lineage dispatcher: %w", err)
		}
		ls.dispatcher = d
		a.logger.Info("lineage enabled", slog.Int("sinks", len(sinks)))
	}
	ls.Emitter = lineage.NewEmitter(lineage.Config{
		Namespace: a.cfg.Lineage.Namespace,
		Producer:  a.cfg.Lineage.Producer,
	}, ls.dispatcher, a.logger)
	return ls, nil
}

func (ls *lineageStack) Close(ctx context.Context) {
	if ls.dispatcher != nil {
		ls.dispatcher.Close(lineageDrainTimeout)
	}
	if ls.Graph != nil {
		ls.Graph.Close(ctx)
	}
}

func (a *app) openGraph(ctx context.Context) (*graph.Client, error) {
	g, err := graph.NewClient(a.cfg.Lineage)
	if err != nil {
		return nil, fmt.Errorf("connect neo4j: %w", err)
	}
	if err := g.EnsureIndexes(ctx); err != nil {
		a.logger.Warn("neo4j ensure indexes failed, lineage queries may be slow", slog.String("error", err.Error()))
	}
	a.logger.Info("connected to neo4j")
	return g, nil
}
