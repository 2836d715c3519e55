package embed

import (
	"context"

	"github.com/tonewheel/studiorag/internal/gemini"
)

// GeminiEmbedder implements Embedder with a fixed embedding model.
type GeminiEmbedder struct {
	client *gemini.Client
	model  string
}

// NewGeminiEmbedder creates an embedder using the given model.
func NewGeminiEmbedder(client *gemini.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model}
}

func (g *GeminiEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return g.client.EmbedDocument(ctx, g.model, text)
}
