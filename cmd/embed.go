package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonewheel/studiorag/internal/embed"
)

var embedFlags struct {
	input  string
	output string
}

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Attach embedding vectors to chunk files",
	Long: `Embeds each chunk's content together with its situating context and
writes the chunk files, vectors included, to a mirrored directory tree.

Chunks missing content or context are skipped before any API call.
Rate-limited calls back off exponentially; other API errors fail only
the affected chunk.`,
	RunE: runEmbed,
}

func init() {
	embedCmd.Flags().StringVarP(&embedFlags.input, "input", "i", "data/chunks", "directory of chunk files")
	embedCmd.Flags().StringVarP(&embedFlags.output, "output", "o", "data/embedded", "directory for embedded chunk files")
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, _ []string) error {
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

	proc := embed.New(
		embed.NewGeminiEmbedder(client, cfg.EmbedderModel),
		embed.Config{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Workers:     cfg.DocumentWorkers,
		},
		logger)

	sum, err := proc.ProcessDirectory(ctx, embedFlags.input, embedFlags.output)
	if err != nil {
		return err
	}

	fmt.Printf("Embedded %d documents: %d chunks, %d skipped, %d failed\n",
		sum.Documents, sum.Chunks, sum.Skipped, sum.Failed)
	return nil
}
