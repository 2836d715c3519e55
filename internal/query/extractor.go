package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/tonewheel/studiorag/internal/gemini"
	"github.com/tonewheel/studiorag/internal/tagparse"
)

// Extractor identifies which known products a question refers to.
type Extractor interface {
	Extract(ctx context.Context, question string, knownBrands, knownModels []string) (Entities, error)
}

const (
	brandsTag = "brands"
	modelsTag = "models"
)

const extractPrompt = `You match user questions against a catalog of product
manuals. Decide which of the known brands and models, if any, the question
refers to. Match loosely: abbreviations, misspellings and partial names count,
but never invent an entry that is not in the lists.

Known brands:
%s

Known models:
%s

Question:
%s

Respond with two sections. In <brands></brands>, list each matching known
brand on its own line, or the single word "none". In <models></models>, do
the same for models. Output nothing outside the tags.`

// GeminiExtractor implements Extractor with a Gemini generation call.
type GeminiExtractor struct {
	client *gemini.Client
	model  string
}

// NewGeminiExtractor creates an extractor using the given model.
func NewGeminiExtractor(client *gemini.Client, model string) *GeminiExtractor {
	return &GeminiExtractor{client: client, model: model}
}

func (g *GeminiExtractor) Extract(ctx context.Context, question string, knownBrands, knownModels []string) (Entities, error) {
	prompt := fmt.Sprintf(extractPrompt,
		formatCatalog(knownBrands), formatCatalog(knownModels), question)

	text, err := g.client.GenerateText(ctx, g.model, gemini.GenerateOptions{MaxTokens: 512}, prompt)
	if err != nil {
		return Entities{}, fmt.Errorf("entity extraction call: %w", err)
	}
	return parseEntities(text), nil
}

// parseEntities reads the tagged sections. A missing or malformed section
// counts as no mention; extraction must never invent a filter.
func parseEntities(text string) Entities {
	return Entities{
		Brands: tagparse.Values(text, brandsTag),
		Models: tagparse.Values(text, modelsTag),
	}
}

func formatCatalog(values []string) string {
	if len(values) == 0 {
		return "(none indexed)"
	}
	var b strings.Builder
	for _, v := range values {
		b.WriteString("- ")
		b.WriteString(v)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
