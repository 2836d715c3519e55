// Package cmd wires the pipeline stages and the chat loop into the
// studiorag command line tool.
package cmd

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "studiorag",
	Short: "Retrieval pipeline and chat assistant for technical product manuals",
	Long: `studiorag ingests PDF product manuals into a searchable index and
answers questions about them.

The ingestion pipeline runs in four stages, each reading the previous
stage's output directory:

  segment   PDFs           -> per-document markdown plus audit
  chunk     markdown       -> enriched, classified chunk files
  embed     chunk files    -> chunk files with embedding vectors
  load      embedded files -> PostgreSQL manuals table

chat starts an interactive session over the loaded index.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
