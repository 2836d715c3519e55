package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonewheel/studiorag/internal/answer"
	"github.com/tonewheel/studiorag/internal/query"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about the loaded manuals",
	Long: `Starts an interactive session over the loaded index.

Each question is matched against the indexed brands and models; once a
product is in scope, answers are grounded in excerpts retrieved for it.
Questions asked before any product is mentioned are answered without
retrieval. Type /quit to exit.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
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

	pool, err := connectPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	engine, err := query.NewEngine(ctx,
		query.NewStore(pool, logger),
		query.NewGeminiQueryEmbedder(client, cfg.EmbedderModel),
		query.NewGeminiExtractor(client, cfg.EnrichModel),
		query.Config{
			MinOccurrences:  cfg.MinOccurrences,
			UnfilteredLimit: cfg.UnfilteredLimit,
			FilteredLimit:   cfg.FilteredLimit,
			EntityPolicy:    cfg.EntityPolicy,
		},
		logger)
	if err != nil {
		return err
	}

	answerer := answer.New(answer.NewGeminiGenerator(client, cfg.AnswerModel), logger)

	fmt.Printf("studiorag chat. %d brands and %d models indexed. Type /quit to exit.\n\n",
		len(engine.KnownBrands()), len(engine.KnownModels()))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "/quit" || question == "/exit" {
			break
		}

		results, err := engine.Retrieve(ctx, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "retrieval error: %v\n", err)
			continue
		}

		reply, err := answerer.Answer(ctx, question, results)
		if err != nil {
			fmt.Fprintf(os.Stderr, "answer error: %v\n", err)
			continue
		}

		fmt.Println(reply)
		fmt.Println()
	}

	return scanner.Err()
}
