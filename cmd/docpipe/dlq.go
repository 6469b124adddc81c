package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maraichr/docpipe/internal/config"
	"github.com/maraichr/docpipe/internal/contract"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Dead-letter queue operations",
}

var dlqRedriveCmd = &cobra.Command{
	Use:   "redrive",
	Short: "Move dead letters back onto a stage's consume queue",
	Long: `Pops up to --limit messages from the stage's dead-letter queue, strips
the error fields and republishes them on the queue the stage consumes. The
stage's processor is idempotent, so redriving a message whose artifact was
written in the meantime is harmless.`,
	Example: `  docpipe dlq redrive --stage chunk_text --limit 50`,
	RunE:    runRedrive,
}

func init() {
	dlqRedriveCmd.Flags().String("stage", "", "stage whose dead letters to redrive (required)")
	dlqRedriveCmd.Flags().Int("limit", 100, "maximum number of messages to move")
	_ = dlqRedriveCmd.MarkFlagRequired("stage")
	dlqCmd.AddCommand(dlqRedriveCmd)
	rootCmd.AddCommand(dlqCmd)
}

func runRedrive(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := appFrom(cmd)
	if err != nil {
		return err
	}
	stageName, _ := cmd.Flags().GetString("stage")
	limit, _ := cmd.Flags().GetInt("limit")

	stage, err := contract.ParseStage(stageName)
	if err != nil {
		return err
	}
	if err := a.cfg.Validate(config.RoleRedrive); err != nil {
		return err
	}
	set, err := a.newQueueSet()
	if err != nil {
		return err
	}
	defer set.Close()

	res, err := set.Redrive(ctx, stage, limit)
	if err != nil {
		return err
	}
	a.logger.Info("redrive complete",
		slog.String("stage", string(stage)),
		slog.Int("moved", res.Moved),
		slog.Int("dropped", res.Dropped))
	cmd.Printf("Moved %d message(s) for %s (%d dropped).\n", res.Moved, stage, res.Dropped)
	return nil
}
