// Package embed attaches document-side embedding vectors to chunk files.
//
// The embedded text is the chunk content and its situating context joined
// together, so retrieval sees the chunk the way the enrichment stage
// framed it. Rate-limit responses back off exponentially; any other API
// error fails just that chunk.
package embed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tonewheel/studiorag/internal/corpus"
	"github.com/tonewheel/studiorag/internal/gemini"
	"github.com/tonewheel/studiorag/internal/log"
	"github.com/tonewheel/studiorag/internal/retry"
)

// Embedder produces a document-side embedding for one text.
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

// Config holds embedder tuning.
type Config struct {
	// MaxAttempts bounds embedding attempts per chunk. Only rate-limit
	// errors are retried.
	MaxAttempts int

	// BaseDelay is the first backoff delay; it doubles per retry.
	BaseDelay time.Duration

	// Workers bounds concurrently processed documents.
	Workers int
}

// Summary is the run-level result of an embedding batch.
type Summary struct {
	Documents int
	Chunks    int
	Skipped   int // chunks missing content or context, never sent to the API
	Failed    int // chunks whose embedding call failed after retries
}

// Processor drives the chunk-embedding stage.
type Processor struct {
	embedder Embedder
	policy   retry.Policy
	workers  int
	logger   log.Logger
}

// New creates a Processor.
func New(embedder Embedder, cfg Config, logger log.Logger) *Processor {
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Processor{
		embedder: embedder,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BaseDelay,
			Multiplier:  2,
			Retryable:   gemini.IsRateLimit,
		},
		workers: cfg.Workers,
		logger:  logger,
	}
}

// ProcessDirectory embeds every document directory under inputDir into a
// mirrored directory under outputDir. Per-chunk failures are counted and
// skipped; only missing directories or context cancellation fail the run.
func (p *Processor) ProcessDirectory(ctx context.Context, inputDir, outputDir string) (Summary, error) {
	dirs, err := corpus.DocumentDirs(inputDir)
	if err != nil {
		return Summary{}, err
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return Summary{}, fmt.Errorf("creating output directory: %w", err)
	}
	if len(dirs) == 0 {
		p.logger.Warn("no document directories found", "dir", inputDir)
		return Summary{}, nil
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.workers)

	summaries := make([]Summary, len(dirs))
	for i, docDir := range dirs {
		eg.Go(func() error {
			sum, err := p.ProcessDocument(gctx, docDir, outputDir)
			if err != nil {
				p.logger.Error("document failed", "dir", filepath.Base(docDir), "error", err)
			}
			sum.Documents = 1
			summaries[i] = sum
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Summary{}, err
	}

	var total Summary
	for _, sum := range summaries {
		total.Documents += sum.Documents
		total.Chunks += sum.Chunks
		total.Skipped += sum.Skipped
		total.Failed += sum.Failed
	}

	p.logger.Info("embedding complete",
		"documents", total.Documents,
		"chunks", total.Chunks,
		"skipped", total.Skipped,
		"failed", total.Failed)
	return total, nil
}

// ProcessDocument embeds every chunk of one document directory into
// outputDir/<document>/, carrying the metadata file through unchanged.
func (p *Processor) ProcessDocument(ctx context.Context, docDir, outputDir string) (Summary, error) {
	name := filepath.Base(docDir)
	logger := p.logger.With("document", name)

	outDir := filepath.Join(outputDir, name)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return Summary{}, fmt.Errorf("creating document directory: %w", err)
	}

	var sum Summary
	if meta, err := corpus.ReadMetadata(docDir); err != nil {
		// The load stage decides what a missing classification means;
		// embedding proceeds without it.
		logger.Warn("no usable metadata, carrying on", "error", err)
	} else if err := corpus.WriteMetadata(outDir, meta); err != nil {
		return sum, fmt.Errorf("writing metadata: %w", err)
	}

	files, err := corpus.ChunkFiles(docDir)
	if err != nil {
		return sum, err
	}

	for _, path := range files {
		chunk, err := corpus.ReadChunk(path)
		if err != nil {
			logger.Warn("unreadable chunk file", "file", filepath.Base(path), "error", err)
			sum.Failed++
			continue
		}

		// Incomplete chunks are filtered before any API spend.
		if chunk.Content == "" || chunk.Contextualization == "" {
			logger.Warn("chunk missing content or context", "id", chunk.ID)
			sum.Skipped++
			continue
		}

		vec, err := p.embedChunk(ctx, chunk)
		if err != nil {
			logger.Warn("embedding failed", "id", chunk.ID, "error", err)
			sum.Failed++
			continue
		}

		chunk.Embeddings = vec
		if err := corpus.WriteChunk(outDir, chunk); err != nil {
			return sum, err
		}
		sum.Chunks++
	}

	logger.Info("embedded document", "chunks", sum.Chunks, "skipped", sum.Skipped, "failed", sum.Failed)
	return sum, nil
}

func (p *Processor) embedChunk(ctx context.Context, chunk corpus.Chunk) ([]float32, error) {
	text := chunk.Content + "\n\n" + chunk.Contextualization

	var vec []float32
	err := p.policy.Do(ctx, func(ctx context.Context) error {
		v, err := p.embedder.EmbedDocument(ctx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, gemini.ErrEmptyResponse
	}
	return vec, nil
}
