package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/maraichr/docpipe/internal/api"
	apihandler "github.com/maraichr/docpipe/internal/api/handler"
	"github.com/maraichr/docpipe/internal/config"
	"github.com/maraichr/docpipe/internal/observer"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operations HTTP API",
	Long: `Serves health and readiness checks, per-document manifests, on-demand
metrics, dead-letter redrive and, when LINEAGE_NEO4J_URI is set, lineage
queries over the dataset graph.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := appFrom(cmd)
	if err != nil {
		return err
	}
	if err := a.cfg.Validate(config.RoleServe); err != nil {
		return err
	}

	bucket, err := a.openBucket(ctx)
	if err != nil {
		return err
	}
	set, err := a.newQueueSet()
	if err != nil {
		return err
	}
	defer set.Close()

	queues, err := set.All(ctx)
	if err != nil {
		return fmt.Errorf("open stage queues: %w", err)
	}
	dlqs := make([]observer.DLQDepther, len(queues))
	for i, q := range queues {
		dlqs[i] = q
	}

	deps := api.RouterDeps{
		Manifest: observer.NewManifest(bucket, a.cfg.Worker.PollInterval, a.logger),
		Metrics:  observer.NewMetrics(bucket, dlqs, a.cfg.Worker.PollInterval, nil, a.logger),
		Redriver: set,
		Readiness: []apihandler.ReadinessCheck{
			{Name: "storage", Check: bucket.Ready},
			{Name: "broker", Check: set.Ping},
		},
	}

	// Neo4j (optional, enables lineage queries)
	if a.cfg.Lineage.Neo4jURI != "" {
		g, err := a.openGraph(ctx)
		if err != nil {
			a.logger.Warn("neo4j connection failed, lineage queries disabled", slog.String("error", err.Error()))
		} else {
			defer g.Close(context.Background())
			deps.Lineage = g
			deps.Readiness = append(deps.Readiness, apihandler.ReadinessCheck{Name: "lineage_graph", Check: g.Verify})
		}
	}

	srv := &http.Server{
		Addr:         a.cfg.Server.Addr(),
		Handler:      api.NewRouter(a.logger, deps),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting API server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	case <-ctx.Done():
	}
	a.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	a.logger.Info("server stopped")
	return nil
}
