// Package query answers the retrieval side of a conversation: deciding
// which manuals a question is about, tracking that across turns, and
// running the fused vector plus keyword search.
//
// Retrieval is gated on product mentions. Until some turn names a known
// brand or model, questions are answered without search results at all;
// once one has, every turn searches within the session's product scope.
package query

import (
	"context"
	"fmt"
	"slices"

	"github.com/tonewheel/studiorag/internal/gemini"
	"github.com/tonewheel/studiorag/internal/log"
)

// Searcher is the store surface the engine needs.
type Searcher interface {
	DistinctBrands(ctx context.Context, minOccurrences int) ([]string, error)
	DistinctModels(ctx context.Context, minOccurrences int) ([]string, error)
	Hybrid(ctx context.Context, queryText string, vector []float32, filter Filter, limit int) ([]Result, error)
}

// Embedder produces a query-side embedding for one question.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Config holds engine tuning.
type Config struct {
	// MinOccurrences is the chunk count below which an indexed brand or
	// model is too marginal to enter the known-entity catalog.
	MinOccurrences int

	// UnfilteredLimit and FilteredLimit bound search results. A filtered
	// search returns more because the filter already guarantees relevance.
	UnfilteredLimit int
	FilteredLimit   int

	// EntityPolicy is PolicyAccumulate or PolicyReplace.
	EntityPolicy string
}

// Engine drives per-turn retrieval for one conversation.
type Engine struct {
	searcher  Searcher
	embedder  Embedder
	extractor Extractor
	cfg       Config
	session   *Session
	logger    log.Logger

	knownBrands []string
	knownModels []string
}

// NewEngine creates an Engine, loading the known-entity catalog from the
// index. An unreachable index is a setup error.
func NewEngine(ctx context.Context, searcher Searcher, embedder Embedder, extractor Extractor, cfg Config, logger log.Logger) (*Engine, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	brands, err := searcher.DistinctBrands(ctx, cfg.MinOccurrences)
	if err != nil {
		return nil, fmt.Errorf("loading brand catalog: %w", err)
	}
	models, err := searcher.DistinctModels(ctx, cfg.MinOccurrences)
	if err != nil {
		return nil, fmt.Errorf("loading model catalog: %w", err)
	}
	logger.Info("entity catalog loaded", "brands", len(brands), "models", len(models))

	return &Engine{
		searcher:    searcher,
		embedder:    embedder,
		extractor:   extractor,
		cfg:         cfg,
		session:     NewSession(cfg.EntityPolicy),
		logger:      logger,
		knownBrands: brands,
		knownModels: models,
	}, nil
}

// KnownBrands returns the catalog loaded at startup.
func (e *Engine) KnownBrands() []string { return slices.Clone(e.knownBrands) }

// KnownModels returns the catalog loaded at startup.
func (e *Engine) KnownModels() []string { return slices.Clone(e.knownModels) }

// Retrieve runs one conversation turn's retrieval. It returns no results,
// and no error, while the session has no product scope yet. An extraction
// failure degrades to "no mention" rather than failing the turn.
//
// Results follow the store's fused ranking; callers that assemble prompts
// across turns own any deduplication of repeated chunks.
func (e *Engine) Retrieve(ctx context.Context, question string) ([]Result, error) {
	entities, err := e.extractor.Extract(ctx, question, e.knownBrands, e.knownModels)
	if err != nil {
		e.logger.Warn("entity extraction failed, treating as no mention", "error", err)
		entities = Entities{}
	}
	entities = e.restrictToCatalog(entities)
	e.session.Observe(entities)

	if e.session.Empty() {
		e.logger.Debug("no product scope yet, skipping retrieval")
		return nil, nil
	}

	vector, err := e.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	filter := e.session.Filter()
	limit := e.cfg.FilteredLimit
	if filter.Empty() {
		limit = e.cfg.UnfilteredLimit
	}

	results, err := e.searcher.Hybrid(ctx, question, vector, filter, limit)
	if err != nil {
		return nil, err
	}

	e.logger.Info("retrieval done",
		"results", len(results),
		"brands", filter.Brands,
		"models", filter.Models)
	return results, nil
}

// restrictToCatalog drops extracted values that are not in the known
// catalog. The model is asked to match against the lists, but a filter on
// an unindexed value would silently return nothing.
func (e *Engine) restrictToCatalog(entities Entities) Entities {
	return Entities{
		Brands: intersectLower(entities.Brands, e.knownBrands),
		Models: intersectLower(entities.Models, e.knownModels),
	}
}

func intersectLower(values, catalog []string) []string {
	var kept []string
	for _, v := range mergeLower(nil, values) {
		if slices.Contains(catalog, v) {
			kept = append(kept, v)
		}
	}
	return kept
}

// GeminiQueryEmbedder implements Embedder with a fixed embedding model.
type GeminiQueryEmbedder struct {
	client *gemini.Client
	model  string
}

// NewGeminiQueryEmbedder creates a query-side embedder.
func NewGeminiQueryEmbedder(client *gemini.Client, model string) *GeminiQueryEmbedder {
	return &GeminiQueryEmbedder{client: client, model: model}
}

func (g *GeminiQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return g.client.EmbedQuery(ctx, g.model, text)
}
