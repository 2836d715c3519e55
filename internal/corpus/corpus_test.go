package corpus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkRoundTrip(t *testing.T) {
	dir := t.TempDir()

	c := Chunk{
		ID:                uuid.NewString(),
		SourceFile:        "minilogue.md",
		Category:          CategoryText,
		Content:           "The filter section provides a 2-pole low pass filter.",
		Contextualization: "Describes the filter section of the synthesizer voice chapter.",
		CreatedAt:         time.Now().Format(time.RFC3339),
	}
	require.NoError(t, WriteChunk(dir, c))

	got, err := ReadChunk(filepath.Join(dir, c.ID+".json"))
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestChunkFieldNames(t *testing.T) {
	// The JSON field names are the inter-stage contract; a rename would
	// silently break the embed and load stages.
	dir := t.TempDir()
	c := Chunk{
		ID:                uuid.NewString(),
		SourceFile:        "m.md",
		Category:          CategoryTable,
		Content:           "a | b",
		Contextualization: "ctx",
		RawTable:          "| a | b |",
		CreatedAt:         "2025-01-01T00:00:00Z",
		Embeddings:        []float32{0.1, 0.2},
	}
	require.NoError(t, WriteChunk(dir, c))

	data, err := os.ReadFile(filepath.Join(dir, c.ID+".json"))
	require.NoError(t, err)

	for _, field := range []string{
		`"id"`, `"source_file"`, `"category"`, `"content"`,
		`"contextualization"`, `"raw_table"`, `"created_at"`, `"embeddings"`,
	} {
		assert.Contains(t, string(data), field)
	}
}

func TestWriteChunk_RequiresID(t *testing.T) {
	err := WriteChunk(t.TempDir(), Chunk{Content: "no id"})
	assert.Error(t, err)
}

func TestMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := Metadata{
		Brand:       "Moog",
		Model:       "Minimoog Model D",
		ProductType: "synthesizer",
		Keywords:    []string{"analog", "monophonic", "ladder filter"},
	}
	require.NoError(t, WriteMetadata(dir, m))

	got, err := ReadMetadata(dir)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestReadMetadata_MissingFile(t *testing.T) {
	_, err := ReadMetadata(t.TempDir())
	assert.Error(t, err)
}

func TestReadMetadata_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFileName), []byte("{broken"), 0o644))

	_, err := ReadMetadata(dir)
	assert.Error(t, err)
}

func TestChunkFiles_ExcludesMetadata(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, WriteMetadata(dir, Metadata{Brand: "Korg"}))
	c1 := Chunk{ID: uuid.NewString(), Content: "one"}
	c2 := Chunk{ID: uuid.NewString(), Content: "two"}
	require.NoError(t, WriteChunk(dir, c1))
	require.NoError(t, WriteChunk(dir, c2))
	// Non-JSON clutter is ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	files, err := ChunkFiles(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.NotEqual(t, MetadataFileName, filepath.Base(f))
	}
}

func TestDocumentDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "minilogue"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "model-d"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.json"), []byte("{}"), 0o644))

	dirs, err := DocumentDirs(root)
	require.NoError(t, err)
	assert.Len(t, dirs, 2)
}
