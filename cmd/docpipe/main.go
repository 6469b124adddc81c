// Command docpipe runs the staged document pipeline: stage workers, the
// manifest and metrics observers, bucket bootstrap, dead-letter redrive and
// the operations API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/maraichr/docpipe/internal/config"
)

// app is the configuration and logger built once per invocation and handed
// to every subcommand through the command context.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

type appKey struct{}

func appFrom(cmd *cobra.Command) (*app, error) {
	a, ok := cmd.Context().Value(appKey{}).(*app)
	if !ok {
		return nil, errors.New("docpipe: configuration not loaded")
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "docpipe",
	Short: "Staged HTML ingestion pipeline",
	Long: `docpipe moves documents through scan, parse_document, chunk_text,
embed_chunks and index_weaviate. Each stage reads the previous stage's
artifacts from the object store and hands work on through a broker queue.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; the environment may already be set.
		_ = godotenv.Load()

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		a := &app{cfg: cfg, logger: newLogger(cfg.LogLevel)}
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
		return nil
	},
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
