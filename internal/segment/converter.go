package segment

import (
	"context"

	"github.com/tonewheel/studiorag/internal/gemini"
)

const conversionSystem = "You are an advanced assistant specializing in PDF content analysis and conversion. Convert the provided PDF content into markdown format while adhering to the given guidelines."

const conversionPrompt = `Analyze the attached single PDF page and convert its content to markdown.

Rules:
- Ignore page headers and footers (page numbers, document names, running section titles).
- Preserve semantic markup: headings, bold, italics, bullet points.
- Replace pictures or diagrams with a markdown description of their purpose.
- Treat multi-column layouts as one continuous flow.
- Convert tables to markdown tables.
- Do not omit, summarize, or truncate any content.

Before the final output, wrap your analysis in a <pdf_analysis> tag: list the
sections found, quote headers/footers you are ignoring, describe images, and
confirm nothing was truncated.

After the analysis, provide the converted markdown inside
<markdown_output></markdown_output> tags with no additional commentary.
Do not forget the closing tag.`

// GeminiConverter implements Converter with a Gemini generation call.
type GeminiConverter struct {
	client *gemini.Client
	model  string
}

// NewGeminiConverter creates a converter using the given model.
func NewGeminiConverter(client *gemini.Client, model string) *GeminiConverter {
	return &GeminiConverter{client: client, model: model}
}

// ConvertPage sends one single-page PDF through the conversion prompt.
func (g *GeminiConverter) ConvertPage(ctx context.Context, pdf []byte) (string, error) {
	return g.client.GenerateWithPDF(ctx, g.model, pdf, conversionPrompt, gemini.GenerateOptions{
		System:    conversionSystem,
		MaxTokens: 8192,
	})
}
