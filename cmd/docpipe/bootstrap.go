package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maraichr/docpipe/internal/config"
	"github.com/maraichr/docpipe/internal/store"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the bucket, the stage prefixes and the vector index schema",
	Long: `Ensures the storage bucket exists with a marker object for each stage
prefix (01_incoming/ through 09_tmp/), then ensures the vector index schema
when an index backend is reachable. Safe to run repeatedly.`,
	RunE: runBootstrap,
}

func init() {
	bootstrapCmd.Flags().Bool("skip-index", false, "do not touch the vector index schema")
	rootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := appFrom(cmd)
	if err != nil {
		return err
	}
	skipIndex, _ := cmd.Flags().GetBool("skip-index")
	if err := a.cfg.Validate(config.RoleBootstrap); err != nil {
		return err
	}

	objects, err := a.openObjectStore(ctx)
	if err != nil {
		return err
	}
	if err := store.Bootstrap(ctx, objects, a.cfg.Storage.Bucket, a.logger); err != nil {
		return fmt.Errorf("bootstrap bucket: %w", err)
	}
	cmd.Printf("Bucket %s ready.\n", a.cfg.Storage.Bucket)

	if skipIndex || (a.cfg.Index.Backend == "weaviate" && a.cfg.Index.WeaviateURL == "") {
		return nil
	}
	idx, err := a.openIndex(ctx)
	if err != nil {
		return err
	}
	defer idx.Close()
	if err := idx.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure %s schema: %w", idx.Backend(), err)
	}
	cmd.Printf("Vector index schema ready (%s).\n", idx.Backend())
	return nil
}
