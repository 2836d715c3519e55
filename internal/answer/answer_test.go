package answer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonewheel/studiorag/internal/log"
	"github.com/tonewheel/studiorag/internal/query"
)

// recordingGenerator captures the prompt parts of every call.
type recordingGenerator struct {
	reply string
	err   error
	calls [][]string
}

func (g *recordingGenerator) Generate(_ context.Context, parts ...string) (string, error) {
	g.calls = append(g.calls, parts)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func TestAnswer_PromptCarriesExcerptsInOrder(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	gen := &recordingGenerator{reply: "Hold SHIFT and press FILTER."}
	a := New(gen, log.NewNop())

	reply, err := a.Answer(context.Background(), "how do I reset the filter?", []query.Result{
		{ID: first, Content: "Resetting: hold SHIFT.", Score: 0.9},
		{ID: second, Content: "The FILTER button is on the left.", Score: 0.7},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hold SHIFT and press FILTER.", reply)

	require.Len(t, gen.calls, 1)
	prompt := gen.calls[0][len(gen.calls[0])-1]
	assert.Contains(t, prompt, "<retrieved_documents>")
	assert.Contains(t, prompt, first.String())
	assert.Contains(t, prompt, "<user_query>\nhow do I reset the filter?\n</user_query>")
	assert.Less(t,
		strings.Index(prompt, "Resetting: hold SHIFT."),
		strings.Index(prompt, "The FILTER button is on the left."),
		"excerpts keep their retrieval order")
}

func TestAnswer_EmptyResultsStillProducePrompt(t *testing.T) {
	gen := &recordingGenerator{reply: "Which product are you asking about?"}
	a := New(gen, log.NewNop())

	_, err := a.Answer(context.Background(), "how loud is it?", nil)
	require.NoError(t, err)

	prompt := gen.calls[0][0]
	assert.Contains(t, prompt, "<retrieved_documents>\n</retrieved_documents>")
}

func TestAnswer_HistoryAccumulatesAcrossTurns(t *testing.T) {
	gen := &recordingGenerator{reply: "reply"}
	a := New(gen, log.NewNop())

	_, err := a.Answer(context.Background(), "first question", nil)
	require.NoError(t, err)
	_, err = a.Answer(context.Background(), "second question", nil)
	require.NoError(t, err)

	require.Len(t, gen.calls, 2)
	require.Len(t, gen.calls[1], 2, "second call carries the first turn as a part")
	assert.Contains(t, gen.calls[1][0], "User: first question")
	assert.Contains(t, gen.calls[1][0], "Assistant: reply")

	history := a.History()
	require.Len(t, history, 2)
	assert.Equal(t, "second question", history[1].Question)
}

func TestAnswer_GenerationFailureLeavesHistoryUntouched(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("model overloaded")}
	a := New(gen, log.NewNop())

	_, err := a.Answer(context.Background(), "question", nil)
	require.Error(t, err)
	assert.Empty(t, a.History(), "failed turns are not recorded")
}
