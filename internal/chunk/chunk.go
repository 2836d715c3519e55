// Package chunk turns per-document markdown into enriched, classified
// chunk files ready for embedding.
//
// Tables are pulled out before the generic pass and stored with both a
// plain and a literal markdown rendering. Every chunk gets a situating
// context from the enrichment model; a failed enrichment call stores a
// placeholder instead of dropping the chunk. Each document is classified
// once into brand, model, product type and keywords.
package chunk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tonewheel/studiorag/internal/corpus"
	"github.com/tonewheel/studiorag/internal/log"
	"github.com/tonewheel/studiorag/internal/tagparse"
)

const jsonOutputTag = "json_output"

// Config holds chunker tuning.
type Config struct {
	Limits Limits

	// Workers bounds concurrently processed documents.
	Workers int
}

// Summary is the run-level result of a chunking batch.
type Summary struct {
	Documents    int
	Failed       int // documents that could not be read or written
	Chunks       int
	TableChunks  int
	EnrichErrors int // chunks that carry the placeholder context
	Unclassified int // documents whose classification fell back to empty
}

// Processor drives the markdown-to-chunks stage.
type Processor struct {
	enricher Enricher
	cfg      Config
	logger   log.Logger
}

// New creates a Processor.
func New(enricher Enricher, cfg Config, logger log.Logger) *Processor {
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Processor{enricher: enricher, cfg: cfg, logger: logger}
}

// ProcessDirectory chunks every markdown file in inputDir into a
// per-document directory under outputDir. Per-document failures are
// counted, not propagated.
func (p *Processor) ProcessDirectory(ctx context.Context, inputDir, outputDir string) (Summary, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return Summary{}, fmt.Errorf("reading input directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return Summary{}, fmt.Errorf("creating output directory: %w", err)
	}

	var docs []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".md") {
			continue
		}
		docs = append(docs, filepath.Join(inputDir, e.Name()))
	}
	if len(docs) == 0 {
		p.logger.Warn("no markdown files found", "dir", inputDir)
		return Summary{}, nil
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.cfg.Workers)

	summaries := make([]Summary, len(docs))
	for i, docPath := range docs {
		eg.Go(func() error {
			sum, err := p.ProcessFile(gctx, docPath, outputDir)
			if err != nil {
				p.logger.Error("document failed", "file", filepath.Base(docPath), "error", err)
				sum.Failed = 1
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
		total.Failed += sum.Failed
		total.Chunks += sum.Chunks
		total.TableChunks += sum.TableChunks
		total.EnrichErrors += sum.EnrichErrors
		total.Unclassified += sum.Unclassified
	}

	p.logger.Info("chunking complete",
		"documents", total.Documents,
		"failed_documents", total.Failed,
		"chunks", total.Chunks,
		"table_chunks", total.TableChunks,
		"enrich_errors", total.EnrichErrors,
		"unclassified", total.Unclassified)
	return total, nil
}

// ProcessFile chunks one markdown document into outputDir/<base>/.
func (p *Processor) ProcessFile(ctx context.Context, docPath, outputDir string) (Summary, error) {
	name := filepath.Base(docPath)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	logger := p.logger.With("file", name)

	data, err := os.ReadFile(docPath)
	if err != nil {
		return Summary{}, fmt.Errorf("reading document: %w", err)
	}
	document := string(data)

	docDir := filepath.Join(outputDir, base)
	if err := os.MkdirAll(docDir, 0o750); err != nil {
		return Summary{}, fmt.Errorf("creating document directory: %w", err)
	}

	chunks, sum := p.buildChunks(ctx, name, document, logger)
	logger.Info("chunked document", "chunks", len(chunks), "tables", sum.TableChunks)

	for _, c := range chunks {
		if err := corpus.WriteChunk(docDir, c); err != nil {
			return sum, fmt.Errorf("writing chunk: %w", err)
		}
	}

	meta, classified := p.classify(ctx, document, logger)
	if !classified {
		sum.Unclassified = 1
	}
	if err := corpus.WriteMetadata(docDir, meta); err != nil {
		return sum, fmt.Errorf("writing metadata: %w", err)
	}

	return sum, nil
}

// buildChunks parses, chunks and enriches one document. Enrichment
// failures degrade to the placeholder context and never drop a chunk.
func (p *Processor) buildChunks(ctx context.Context, sourceFile, document string, logger log.Logger) ([]corpus.Chunk, Summary) {
	tables, flow := splitElements(parseMarkdown(document))

	var sum Summary
	var chunks []corpus.Chunk

	add := func(category, content, rawTable string) {
		c := corpus.Chunk{
			ID:         uuid.NewString(),
			SourceFile: sourceFile,
			Category:   category,
			Content:    content,
			RawTable:   rawTable,
			CreatedAt:  time.Now().Format(time.RFC3339),
		}
		c.Contextualization = p.situate(ctx, document, content, logger, &sum)
		chunks = append(chunks, c)
		sum.Chunks++
	}

	for _, table := range tables {
		add(corpus.CategoryTable, table.Text, table.Raw)
		sum.TableChunks++
	}
	for _, text := range chunkByTitle(flow, p.cfg.Limits) {
		add(corpus.CategoryText, text, "")
	}

	return chunks, sum
}

func (p *Processor) situate(ctx context.Context, document, content string, logger log.Logger, sum *Summary) string {
	text, err := p.enricher.Situate(ctx, document, content)
	if err != nil || strings.TrimSpace(text) == "" {
		logger.Warn("contextualization failed", "error", err)
		sum.EnrichErrors++
		return corpus.PlaceholderContext
	}
	return strings.TrimSpace(text)
}

// classify runs the once-per-document classification call. Any failure,
// including a missing or malformed <json_output> section, falls back to
// the empty record so downstream stages still find a metadata file.
func (p *Processor) classify(ctx context.Context, document string, logger log.Logger) (corpus.Metadata, bool) {
	var meta corpus.Metadata

	text, err := p.enricher.Classify(ctx, document)
	if err != nil {
		logger.Warn("classification call failed", "error", err)
		return corpus.Metadata{Keywords: []string{}}, false
	}

	status, err := tagparse.JSON(text, jsonOutputTag, &meta)
	if status != tagparse.Present || err != nil {
		logger.Warn("classification response unusable", "status", status.String(), "error", err)
		return corpus.Metadata{Keywords: []string{}}, false
	}
	if meta.Keywords == nil {
		meta.Keywords = []string{}
	}
	return meta, true
}
