package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tonewheel/studiorag/internal/segment"
)

var segmentFlags struct {
	input  string
	output string
}

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Convert PDF manuals to per-document markdown",
	Long: `Splits each PDF in the input directory into single pages, converts
every page to markdown with the conversion model, and writes one assembled
markdown file plus a per-page audit (<name>_results.json) per document.

Failed pages are excluded from the markdown but recorded in the audit;
a document with failures does not stop the batch.`,
	RunE: runSegment,
}

func init() {
	segmentCmd.Flags().StringVarP(&segmentFlags.input, "input", "i", "data/manuals", "directory of source PDFs")
	segmentCmd.Flags().StringVarP(&segmentFlags.output, "output", "o", "data/markdown", "directory for markdown and audits")
	rootCmd.AddCommand(segmentCmd)
}

func runSegment(cmd *cobra.Command, _ []string) error {
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

	seg := segment.New(
		segment.NewGeminiConverter(client, cfg.ConvertModel),
		segment.Config{
			MaxAttempts: cfg.MaxAttempts,
			RetryDelay:  cfg.RetryBaseDelay,
			Pacing:      cfg.PagePacing,
			Workers:     cfg.DocumentWorkers,
		},
		logger)

	sum, err := seg.ProcessDirectory(ctx, segmentFlags.input, segmentFlags.output)
	if err != nil {
		return err
	}

	fmt.Printf("Segmented %d documents (%d failed): %d pages ok, %d warnings, %d errors\n",
		sum.Documents, sum.Failed, sum.PagesOK, sum.PagesWarning, sum.PagesError)
	return nil
}
