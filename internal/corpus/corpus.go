// Package corpus defines the durable artifacts handed between pipeline
// stages and the directory-per-document layout they live in.
//
// Layout under a stage's output root:
//
//	<root>/<document>/<chunk-uuid>.json   one file per chunk
//	<root>/<document>/metadata.json       document classification record
//
// This layout is the sole contract between the chunk, embed and load
// stages; JSON field names must stay stable across stages.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MetadataFileName is the reserved per-document classification file.
// Chunk files are named by UUID, so the name can never collide.
const MetadataFileName = "metadata.json"

// PlaceholderContext is stored when the enrichment call for a chunk fails.
// The chunk still proceeds through the pipeline with this sentinel.
const PlaceholderContext = "Error generating context"

// Chunk categories.
const (
	CategoryTable = "Table"
	CategoryTitle = "Title"
	CategoryText  = "Text"
)

// Chunk is one semantically coherent unit of document text. ID is generated
// once at chunking time and is the join key across every downstream stage;
// it is never regenerated for the same logical unit.
type Chunk struct {
	ID                string    `json:"id"`
	SourceFile        string    `json:"source_file"`
	Category          string    `json:"category"`
	Content           string    `json:"content"`
	Contextualization string    `json:"contextualization"`
	RawTable          string    `json:"raw_table,omitempty"` // table chunks only
	CreatedAt         string    `json:"created_at"`
	Embeddings        []float32 `json:"embeddings,omitempty"` // added by the embed stage
}

// Metadata is the once-per-document classification record.
type Metadata struct {
	Brand       string   `json:"brand"`
	Model       string   `json:"model"`
	ProductType string   `json:"product_type"`
	Keywords    []string `json:"keywords"`
}

// Page statuses recorded in the segmentation audit.
const (
	PageStatusSuccess = "success"
	PageStatusWarning = "warning"
	PageStatusError   = "error"
)

// PageResult is the terminal record for one page of a source document.
type PageResult struct {
	PageNumber int    `json:"page_number"`
	Status     string `json:"status"`
	RetryCount int    `json:"retry_count"`
	Response   string `json:"response,omitempty"`
	Warning    string `json:"warning,omitempty"`
	ErrorMsg   string `json:"error_message,omitempty"`
}

// DocumentAudit is the full per-page history for one source document,
// written alongside the assembled markdown for diagnosis.
type DocumentAudit struct {
	Filename  string       `json:"filename"`
	Path      string       `json:"path"`
	Timestamp string       `json:"timestamp"`
	Pages     []PageResult `json:"pages"`
	Error     string       `json:"error,omitempty"`
}

// WriteChunk persists c under dir as <id>.json.
func WriteChunk(dir string, c Chunk) error {
	if c.ID == "" {
		return fmt.Errorf("chunk has no id")
	}
	return writeJSON(filepath.Join(dir, c.ID+".json"), c)
}

// ReadChunk loads a chunk file.
func ReadChunk(path string) (Chunk, error) {
	var c Chunk
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("reading chunk file: %w", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing chunk file %s: %w", filepath.Base(path), err)
	}
	return c, nil
}

// WriteMetadata persists the document classification record under dir.
func WriteMetadata(dir string, m Metadata) error {
	return writeJSON(filepath.Join(dir, MetadataFileName), m)
}

// ReadMetadata loads a document's classification record. Missing or invalid
// metadata is an error; callers decide whether that skips the document.
func ReadMetadata(dir string) (Metadata, error) {
	var m Metadata
	data, err := os.ReadFile(filepath.Join(dir, MetadataFileName))
	if err != nil {
		return m, fmt.Errorf("reading metadata: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("parsing metadata in %s: %w", dir, err)
	}
	return m, nil
}

// ChunkFiles returns the chunk file paths in a document directory, sorted,
// excluding the reserved metadata file.
func ChunkFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing document directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == MetadataFileName {
			continue
		}
		if !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// DocumentDirs returns the per-document subdirectories of a stage root,
// sorted by name.
func DocumentDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("listing root directory: %w", err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
