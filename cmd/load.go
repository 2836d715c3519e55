package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonewheel/studiorag/db"
	"github.com/tonewheel/studiorag/internal/index"
)

var loadFlags struct {
	input string
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load embedded chunks into the PostgreSQL index",
	Long: `Runs pending schema migrations, then upserts every embedded chunk
into the manuals table keyed by chunk id, so reloading a corpus is
idempotent.

Documents without a usable metadata.json are skipped whole. Chunk files
missing an id, embeddings or content are rejected individually.`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVarP(&loadFlags.input, "input", "i", "data/embedded", "directory of embedded chunk files")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	ctx := cmd.Context()

	// Loading is API-free; no key required.
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return err
	}

	pool, err := connectPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	sum, err := index.New(pool, logger).LoadDirectory(ctx, loadFlags.input)
	if err != nil {
		return err
	}

	fmt.Printf("Loaded %d chunks from %d documents (%d documents skipped, %d chunks rejected)\n",
		sum.Loaded, sum.Documents, sum.SkippedDocs, sum.Rejected)
	return nil
}
