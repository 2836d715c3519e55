// Package gemini wraps the Google genai SDK behind the small surface the
// pipeline needs: text generation (optionally with an inline PDF part) and
// document/query embeddings.
//
// Stages depend on their own narrow interfaces and receive *Client through
// them, so no other package imports the genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/tonewheel/studiorag/internal/log"
)

// VectorDimension is the embedding size stored in the manuals table.
// gemini-embedding-001 truncates to this via OutputDimensionality; the
// pgvector column in db/migrations must match.
const VectorDimension = 768

// Embedding task types, per the Gemini API. Document-side embeddings and
// query-side embeddings are asymmetric and must use the matching task type.
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

// ErrEmptyResponse indicates the model returned no usable payload.
var ErrEmptyResponse = errors.New("empty model response")

// Client is a thin wrapper over genai.Client.
type Client struct {
	genai  *genai.Client
	logger log.Logger
}

// New creates a Client. A missing API key is a setup error: the pipeline
// must fail before any stage starts, not on the first call.
func New(ctx context.Context, apiKey string, logger log.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &Client{genai: c, logger: logger}, nil
}

// GenerateOptions configures a generation call. Temperature is pinned to 0
// for every pipeline call: extraction and conversion must be deterministic.
type GenerateOptions struct {
	// System is the optional system instruction.
	System string

	// MaxTokens bounds the response. 0 uses the model default.
	MaxTokens int32
}

// GenerateText runs one generation call over the given prompt parts, in
// order. Callers that want prompt caching pass the stable document framing
// as the first part and the variable suffix last.
func (c *Client) GenerateText(ctx context.Context, model string, opts GenerateOptions, promptParts ...string) (string, error) {
	parts := make([]*genai.Part, 0, len(promptParts))
	for _, p := range promptParts {
		parts = append(parts, genai.NewPartFromText(p))
	}
	return c.generate(ctx, model, parts, opts)
}

// GenerateWithPDF runs one generation call with an inline PDF document part
// followed by the text prompt.
func (c *Client) GenerateWithPDF(ctx context.Context, model string, pdf []byte, prompt string, opts GenerateOptions) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromBytes(pdf, "application/pdf"),
		genai.NewPartFromText(prompt),
	}
	return c.generate(ctx, model, parts, opts)
}

func (c *Client) generate(ctx context.Context, model string, parts []*genai.Part, opts GenerateOptions) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = opts.MaxTokens
	}
	if opts.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(opts.System, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := c.genai.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		// An empty body is a transport-level failure, not a parse failure:
		// callers retry it like any API error.
		return "", ErrEmptyResponse
	}
	return text, nil
}

// EmbedDocument produces a document-side embedding of text.
func (c *Client) EmbedDocument(ctx context.Context, model, text string) ([]float32, error) {
	return c.embed(ctx, model, text, taskRetrievalDocument)
}

// EmbedQuery produces a query-side embedding of text.
func (c *Client) EmbedQuery(ctx context.Context, model, text string) ([]float32, error) {
	return c.embed(ctx, model, text, taskRetrievalQuery)
}

func (c *Client) embed(ctx context.Context, model, text, taskType string) ([]float32, error) {
	resp, err := c.genai.Models.EmbedContent(ctx, model,
		genai.Text(text),
		&genai.EmbedContentConfig{
			TaskType:             taskType,
			OutputDimensionality: genai.Ptr[int32](VectorDimension),
		})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Embeddings[0].Values, nil
}

// IsRateLimit reports whether err is an HTTP 429 from the Gemini API.
// The embedding stage backs off only on these; other API errors fail the
// unit immediately.
func IsRateLimit(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests
	}
	return false
}
