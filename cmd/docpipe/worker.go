package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/maraichr/docpipe/internal/config"
	"github.com/maraichr/docpipe/internal/contract"
	"github.com/maraichr/docpipe/internal/embedding"
	"github.com/maraichr/docpipe/internal/ingestion"
	"github.com/maraichr/docpipe/internal/parser"
	"github.com/maraichr/docpipe/internal/parser/html"
	"github.com/maraichr/docpipe/internal/queue"
	vk "github.com/maraichr/docpipe/internal/store/valkey"
)

var workerCmd = &cobra.Command{
	Use:   "worker <stage>...",
	Short: "Run one or more stage worker loops",
	Long: `Runs a worker loop for each named stage in this process. Stages are
scan, parse_document, chunk_text, embed_chunks and index_weaviate; "all"
runs every stage. The process stops on SIGINT or SIGTERM, leaving any
unacknowledged message for redelivery.`,
	Example: `  docpipe worker scan parse_document
  docpipe worker all`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func parseStageArgs(args []string) ([]contract.Stage, error) {
	if len(args) == 1 && args[0] == "all" {
		return contract.Stages, nil
	}
	seen := make(map[contract.Stage]bool)
	var stages []contract.Stage
	for _, a := range args {
		s, err := contract.ParseStage(a)
		if err != nil {
			return nil, err
		}
		if !seen[s] {
			seen[s] = true
			stages = append(stages, s)
		}
	}
	return stages, nil
}

func needsIndex(stages []contract.Stage) bool {
	for _, s := range stages {
		if s == contract.StageIndexWeaviate {
			return true
		}
	}
	return false
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := appFrom(cmd)
	if err != nil {
		return err
	}
	stages, err := parseStageArgs(args)
	if err != nil {
		return err
	}
	role := config.RoleWorker
	if needsIndex(stages) {
		role = config.RoleIndexer
	}
	if err := a.cfg.Validate(role); err != nil {
		return err
	}
	table, err := a.contractTable()
	if err != nil {
		return err
	}

	bucket, err := a.openBucket(ctx)
	if err != nil {
		return err
	}
	lin, err := a.openLineage(ctx)
	if err != nil {
		return err
	}
	defer lin.Close(context.Background())

	embedder, err := embedding.NewEmbedder(a.cfg.Pipeline)
	if err != nil {
		return err
	}
	deps := ingestion.Deps{
		Env: ingestion.Env{
			Bucket:  bucket,
			Lineage: lin.Emitter,
			Logger:  a.logger,
		},
		Pipeline: a.cfg.Pipeline,
		Parsers:  parser.NewRegistry(html.New()),
		Embedder: embedder,
	}
	if needsIndex(stages) {
		idx, err := a.openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close()
		if err := idx.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure %s schema: %w", idx.Backend(), err)
		}
		deps.Index = idx
	}

	dial := vk.Dialer(a.cfg.Broker)
	opts := ingestion.WorkerOptions{
		PollInterval:     a.cfg.Worker.PollInterval,
		FallbackInterval: a.cfg.Worker.FallbackInterval,
	}

	var services []ingestion.Service
	for _, stage := range stages {
		q, err := queue.New(ctx, dial, table, stage, a.cfg.Worker.PopTimeout, a.logger)
		if err != nil {
			return fmt.Errorf("open queue for %s: %w", stage, err)
		}
		defer q.Close()

		var out ingestion.Publisher
		if !q.Contract().Produce.None() {
			out = q
		}
		proc, err := ingestion.NewProcessor(stage, deps, out)
		if err != nil {
			return err
		}
		services = append(services, ingestion.NewWorker(proc, q, opts, a.logger))
	}

	a.logger.Info("workers starting",
		slog.Int("stages", len(stages)),
		slog.String("bucket", bucket.Name()),
		slog.String("consumer", a.cfg.Broker.ConsumerID))
	return serveAll(ctx, services)
}

// serveAll runs every service until ctx is cancelled or one of them fails.
func serveAll(ctx context.Context, services []ingestion.Service) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range services {
		s := s
		g.Go(func() error { return s.Serve(gctx) })
	}
	return g.Wait()
}
