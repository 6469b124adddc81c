package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maraichr/docpipe/internal/config"
	"github.com/maraichr/docpipe/internal/ingestion"
	"github.com/maraichr/docpipe/internal/observer"
	"github.com/maraichr/docpipe/internal/store"
)

var observeCmd = &cobra.Command{
	Use:   "observe manifest|metrics...",
	Short: "Run the manifest and/or metrics observer loops",
	Long: "The manifest observer rewrites " + store.PrefixManifest + `<doc_id>.json for
every processed document. The metrics observer logs artifact counters and the
summed dead-letter depth. Both sweep once per poll interval.`,
	Args:      cobra.MinimumNArgs(1),
	ValidArgs: []string{"manifest", "metrics"},
	RunE:      runObserve,
}

func init() {
	rootCmd.AddCommand(observeCmd)
}

func runObserve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := appFrom(cmd)
	if err != nil {
		return err
	}
	if err := a.cfg.Validate(config.RoleObserver); err != nil {
		return err
	}
	bucket, err := a.openBucket(ctx)
	if err != nil {
		return err
	}

	var services []ingestion.Service
	for _, name := range args {
		switch name {
		case "manifest":
			services = append(services, observer.NewManifest(bucket, a.cfg.Worker.PollInterval, a.logger))
		case "metrics":
			set, err := a.newQueueSet()
			if err != nil {
				return err
			}
			defer set.Close()
			queues, err := set.All(ctx)
			if err != nil {
				return fmt.Errorf("open dead-letter queues: %w", err)
			}
			dlqs := make([]observer.DLQDepther, len(queues))
			for i, q := range queues {
				dlqs[i] = q
			}
			services = append(services, observer.NewMetrics(bucket, dlqs, a.cfg.Worker.PollInterval, nil, a.logger))
		default:
			return fmt.Errorf("unknown observer %q: want manifest or metrics", name)
		}
	}
	return serveAll(ctx, services)
}
