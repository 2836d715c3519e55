package embed

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/tonewheel/studiorag/internal/corpus"
	"github.com/tonewheel/studiorag/internal/log"
)

// scriptedEmbedder records embedded texts and answers per call count.
type scriptedEmbedder struct {
	respond func(call int, text string) ([]float32, error)
	texts   []string
}

func (e *scriptedEmbedder) EmbedDocument(_ context.Context, text string) ([]float32, error) {
	e.texts = append(e.texts, text)
	if e.respond == nil {
		return []float32{0.1, 0.2, 0.3}, nil
	}
	return e.respond(len(e.texts), text)
}

func testConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Millisecond, Workers: 1}
}

func seedDocument(t *testing.T, root, name string, meta *corpus.Metadata, chunks ...corpus.Chunk) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	if meta != nil {
		require.NoError(t, corpus.WriteMetadata(dir, *meta))
	}
	for _, c := range chunks {
		require.NoError(t, corpus.WriteChunk(dir, c))
	}
	return dir
}

func chunkFixture(id, content, contextualization string) corpus.Chunk {
	return corpus.Chunk{
		ID:                id,
		SourceFile:        "manual.md",
		Category:          corpus.CategoryText,
		Content:           content,
		Contextualization: contextualization,
		CreatedAt:         "2026-08-25T10:00:00Z",
	}
}

func TestProcessDocument_EmbedsContentWithContext(t *testing.T) {
	inRoot, outRoot := t.TempDir(), t.TempDir()
	meta := &corpus.Metadata{Brand: "Moog", Model: "Sub 37", ProductType: "synthesizer", Keywords: []string{"analog"}}
	docDir := seedDocument(t, inRoot, "manual", meta,
		chunkFixture("aaa", "Filter section overview.", "Located in chapter 3."))

	embedder := &scriptedEmbedder{}
	p := New(embedder, testConfig(), log.NewNop())

	sum, err := p.ProcessDocument(context.Background(), docDir, outRoot)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Chunks)

	require.Len(t, embedder.texts, 1)
	assert.Equal(t, "Filter section overview.\n\nLocated in chapter 3.", embedder.texts[0])

	outDir := filepath.Join(outRoot, "manual")
	got, err := corpus.ReadChunk(filepath.Join(outDir, "aaa.json"))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got.Embeddings)
	assert.Equal(t, "Filter section overview.", got.Content, "chunk fields pass through unchanged")

	gotMeta, err := corpus.ReadMetadata(outDir)
	require.NoError(t, err)
	assert.Equal(t, *meta, gotMeta)
}

func TestProcessDocument_IncompleteChunkNeverReachesAPI(t *testing.T) {
	tests := []struct {
		name  string
		chunk corpus.Chunk
	}{
		{"empty content", chunkFixture("aaa", "", "some context")},
		{"empty context", chunkFixture("bbb", "some content", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inRoot, outRoot := t.TempDir(), t.TempDir()
			docDir := seedDocument(t, inRoot, "manual", nil, tt.chunk)

			embedder := &scriptedEmbedder{}
			p := New(embedder, testConfig(), log.NewNop())

			sum, err := p.ProcessDocument(context.Background(), docDir, outRoot)
			require.NoError(t, err)
			assert.Equal(t, 1, sum.Skipped)
			assert.Zero(t, sum.Chunks)
			assert.Empty(t, embedder.texts, "incomplete chunks must not be sent")

			files, err := corpus.ChunkFiles(filepath.Join(outRoot, "manual"))
			require.NoError(t, err)
			assert.Empty(t, files)
		})
	}
}

func TestProcessDocument_RateLimitIsRetried(t *testing.T) {
	inRoot, outRoot := t.TempDir(), t.TempDir()
	docDir := seedDocument(t, inRoot, "manual", nil,
		chunkFixture("aaa", "content", "context"))

	embedder := &scriptedEmbedder{
		respond: func(call int, _ string) ([]float32, error) {
			if call < 3 {
				return nil, genai.APIError{Code: http.StatusTooManyRequests, Message: "quota"}
			}
			return []float32{1, 2}, nil
		},
	}
	p := New(embedder, testConfig(), log.NewNop())

	sum, err := p.ProcessDocument(context.Background(), docDir, outRoot)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Chunks)
	assert.Zero(t, sum.Failed)
	assert.Len(t, embedder.texts, 3)
}

func TestProcessDocument_OtherAPIErrorFailsImmediately(t *testing.T) {
	inRoot, outRoot := t.TempDir(), t.TempDir()
	docDir := seedDocument(t, inRoot, "manual", nil,
		chunkFixture("aaa", "content", "context"))

	embedder := &scriptedEmbedder{
		respond: func(int, string) ([]float32, error) {
			return nil, errors.New("invalid argument")
		},
	}
	p := New(embedder, testConfig(), log.NewNop())

	sum, err := p.ProcessDocument(context.Background(), docDir, outRoot)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Len(t, embedder.texts, 1, "non-rate-limit errors are not retried")

	files, err := corpus.ChunkFiles(filepath.Join(outRoot, "manual"))
	require.NoError(t, err)
	assert.Empty(t, files, "failed chunks are not written")
}

func TestProcessDocument_EmptyVectorIsFailure(t *testing.T) {
	inRoot, outRoot := t.TempDir(), t.TempDir()
	docDir := seedDocument(t, inRoot, "manual", nil,
		chunkFixture("aaa", "content", "context"))

	embedder := &scriptedEmbedder{
		respond: func(int, string) ([]float32, error) { return []float32{}, nil },
	}
	p := New(embedder, testConfig(), log.NewNop())

	sum, err := p.ProcessDocument(context.Background(), docDir, outRoot)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
	assert.Zero(t, sum.Chunks)
}

func TestProcessDirectory_AggregatesAcrossDocuments(t *testing.T) {
	inRoot, outRoot := t.TempDir(), t.TempDir()
	seedDocument(t, inRoot, "doc-a", nil,
		chunkFixture("aaa", "content a", "context a"),
		chunkFixture("bbb", "content b", "context b"))
	seedDocument(t, inRoot, "doc-b", nil,
		chunkFixture("ccc", "content c", ""))

	p := New(&scriptedEmbedder{}, Config{MaxAttempts: 3, BaseDelay: time.Millisecond, Workers: 2}, log.NewNop())

	sum, err := p.ProcessDirectory(context.Background(), inRoot, outRoot)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Documents)
	assert.Equal(t, 2, sum.Chunks)
	assert.Equal(t, 1, sum.Skipped)
}
