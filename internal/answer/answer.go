// Package answer turns retrieval results and conversation history into
// the final grounded reply.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/tonewheel/studiorag/internal/gemini"
	"github.com/tonewheel/studiorag/internal/log"
	"github.com/tonewheel/studiorag/internal/query"
)

const system = `You are a support assistant for technical product manuals.
Answer using only the retrieved manual excerpts and the conversation so far.
When the excerpts do not cover the question, say so instead of guessing.
When no excerpts are provided, ask the user which product they are asking
about. Keep answers practical and concise.`

// Generator runs one grounded generation call.
type Generator interface {
	Generate(ctx context.Context, parts ...string) (string, error)
}

// Turn is one exchange kept in the conversation history.
type Turn struct {
	Question string
	Reply    string
}

// Answerer produces replies for one conversation. It is not safe for
// concurrent use; each conversation owns one Answerer.
type Answerer struct {
	gen     Generator
	logger  log.Logger
	history []Turn
}

// New creates an Answerer.
func New(gen Generator, logger log.Logger) *Answerer {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Answerer{gen: gen, logger: logger}
}

// Answer generates the reply for one turn and records it in the history.
// The retrieved excerpts may be empty; the model is instructed to ask for
// a product instead of answering from nothing.
func (a *Answerer) Answer(ctx context.Context, question string, results []query.Result) (string, error) {
	prompt := buildTurnPrompt(question, results)

	parts := make([]string, 0, len(a.history)+1)
	for _, t := range a.history {
		parts = append(parts, fmt.Sprintf("User: %s\nAssistant: %s", t.Question, t.Reply))
	}
	parts = append(parts, prompt)

	reply, err := a.gen.Generate(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	reply = strings.TrimSpace(reply)

	a.history = append(a.history, Turn{Question: question, Reply: reply})
	a.logger.Debug("turn answered", "history_len", len(a.history), "excerpts", len(results))
	return reply, nil
}

// History returns the recorded turns.
func (a *Answerer) History() []Turn {
	out := make([]Turn, len(a.history))
	copy(out, a.history)
	return out
}

// buildTurnPrompt frames the current question with its retrieval results.
// Excerpts keep their result order; ids let an answer reference a source.
func buildTurnPrompt(question string, results []query.Result) string {
	var b strings.Builder

	b.WriteString("<retrieved_documents>\n")
	for _, r := range results {
		fmt.Fprintf(&b, "<document id=%q>\n%s\n</document>\n", r.ID, r.Content)
	}
	b.WriteString("</retrieved_documents>\n\n")

	b.WriteString("<user_query>\n")
	b.WriteString(question)
	b.WriteString("\n</user_query>")

	return b.String()
}

// GeminiGenerator implements Generator with a fixed model and the support
// assistant system instruction.
type GeminiGenerator struct {
	client *gemini.Client
	model  string
}

// NewGeminiGenerator creates a generator using the given model.
func NewGeminiGenerator(client *gemini.Client, model string) *GeminiGenerator {
	return &GeminiGenerator{client: client, model: model}
}

func (g *GeminiGenerator) Generate(ctx context.Context, parts ...string) (string, error) {
	return g.client.GenerateText(ctx, g.model, gemini.GenerateOptions{System: system}, parts...)
}
