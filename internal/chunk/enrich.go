package chunk

import (
	"context"
	"fmt"

	"github.com/tonewheel/studiorag/internal/gemini"
)

// Enricher performs the two per-document generation calls of this stage:
// situating each chunk inside its document and classifying the document
// once. Implementations return raw response text; parsing stays here.
type Enricher interface {
	Situate(ctx context.Context, document, chunk string) (string, error)
	Classify(ctx context.Context, document string) (string, error)
}

const situatePrompt = `<document>
%s
</document>`

const situateChunkPrompt = `Here is the chunk we want to situate within the whole document:
<chunk>
%s
</chunk>

Give a short succinct context to situate this chunk within the overall
document for the purposes of improving search retrieval of the chunk.
Answer only with the succinct context and nothing else.`

const classifyPrompt = `The document below is an excerpt from a product manual.
Identify the product it describes.

<document>
%s
</document>

Respond with a JSON object inside <json_output></json_output> tags, with
exactly these keys:
  "brand": the manufacturer name, or "" if not identifiable
  "model": the product model designation, or "" if not identifiable
  "product_type": a short generic noun phrase for the product category
  "keywords": 3 to 10 lowercase terms a user might search this manual by

Output nothing outside the tags.`

// GeminiEnricher implements Enricher with Gemini generation calls. The
// document goes first in the situate call so the shared prefix is stable
// across the chunks of one document.
type GeminiEnricher struct {
	client *gemini.Client
	model  string
}

// NewGeminiEnricher creates an enricher using the given model.
func NewGeminiEnricher(client *gemini.Client, model string) *GeminiEnricher {
	return &GeminiEnricher{client: client, model: model}
}

func (g *GeminiEnricher) Situate(ctx context.Context, document, chunk string) (string, error) {
	return g.client.GenerateText(ctx, g.model, gemini.GenerateOptions{MaxTokens: 1024},
		fmt.Sprintf(situatePrompt, document),
		fmt.Sprintf(situateChunkPrompt, chunk))
}

func (g *GeminiEnricher) Classify(ctx context.Context, document string) (string, error) {
	return g.client.GenerateText(ctx, g.model, gemini.GenerateOptions{MaxTokens: 1024},
		fmt.Sprintf(classifyPrompt, document))
}
