package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonewheel/studiorag/internal/chunk"
)

var chunkFlags struct {
	input  string
	output string
}

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Split markdown documents into enriched, classified chunks",
	Long: `Splits each markdown document into chunks bounded by headings, pulls
tables out as standalone chunks, generates a situating context per chunk
and classifies each document once (brand, model, product type, keywords).

Output is one directory per document with a JSON file per chunk plus a
metadata.json classification record.`,
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().StringVarP(&chunkFlags.input, "input", "i", "data/markdown", "directory of markdown documents")
	chunkCmd.Flags().StringVarP(&chunkFlags.output, "output", "o", "data/chunks", "directory for chunk files")
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	ctx := cmd.Context()

	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}

	client, err := newGeminiClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	proc := chunk.New(
		chunk.NewGeminiEnricher(client, cfg.EnrichModel),
		chunk.Config{
			Limits: chunk.Limits{
				CombineUnder: cfg.CombineUnderSize,
				MaxSize:      cfg.MaxChunkSize,
				Overlap:      cfg.ChunkOverlap,
			},
			Workers: cfg.DocumentWorkers,
		},
		logger)

	sum, err := proc.ProcessDirectory(ctx, chunkFlags.input, chunkFlags.output)
	if err != nil {
		return err
	}

	fmt.Printf("Chunked %d documents (%d failed): %d chunks (%d tables), %d context failures, %d unclassified\n",
		sum.Documents, sum.Failed, sum.Chunks, sum.TableChunks, sum.EnrichErrors, sum.Unclassified)
	return nil
}
