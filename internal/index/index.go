// Package index loads embedded chunk files into the manuals table.
//
// The chunk id is the upsert key, so reloading a corpus is idempotent.
// Classification fields are folded to lowercase at load time; every query
// filter compares against lowercase, never at search time.
package index

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/tonewheel/studiorag/internal/corpus"
	"github.com/tonewheel/studiorag/internal/log"
)

// querier is the subset of pgxpool.Pool the loader needs; pgx.Tx also
// satisfies it.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const upsertManualSQL = `INSERT INTO manuals
	(id, source_file, doc_type, content, contextualization, raw_table,
	 brand, model, product_type, keywords, embedding, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
	source_file = EXCLUDED.source_file,
	doc_type = EXCLUDED.doc_type,
	content = EXCLUDED.content,
	contextualization = EXCLUDED.contextualization,
	raw_table = EXCLUDED.raw_table,
	brand = EXCLUDED.brand,
	model = EXCLUDED.model,
	product_type = EXCLUDED.product_type,
	keywords = EXCLUDED.keywords,
	embedding = EXCLUDED.embedding,
	created_at = EXCLUDED.created_at`

// Summary is the run-level result of a load batch.
type Summary struct {
	Documents   int
	SkippedDocs int // documents without usable metadata
	Loaded      int
	Rejected    int // chunk files failing validation
}

// Loader writes embedded chunks into PostgreSQL.
type Loader struct {
	db     querier
	logger log.Logger
}

// New creates a Loader.
func New(db querier, logger log.Logger) *Loader {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Loader{db: db, logger: logger}
}

// LoadDirectory loads every document directory under inputDir. A document
// without usable metadata is skipped whole; an invalid chunk file is
// rejected alone. Database errors abort the run.
func (l *Loader) LoadDirectory(ctx context.Context, inputDir string) (Summary, error) {
	dirs, err := corpus.DocumentDirs(inputDir)
	if err != nil {
		return Summary{}, err
	}
	if len(dirs) == 0 {
		l.logger.Warn("no document directories found", "dir", inputDir)
		return Summary{}, nil
	}

	var sum Summary
	for _, docDir := range dirs {
		sum.Documents++

		meta, err := corpus.ReadMetadata(docDir)
		if err != nil {
			l.logger.Warn("skipping document without usable metadata",
				"document", filepath.Base(docDir), "error", err)
			sum.SkippedDocs++
			continue
		}

		loaded, rejected, err := l.loadDocument(ctx, docDir, meta)
		if err != nil {
			return sum, err
		}
		sum.Loaded += loaded
		sum.Rejected += rejected
	}

	l.logger.Info("load complete",
		"documents", sum.Documents,
		"skipped_documents", sum.SkippedDocs,
		"loaded", sum.Loaded,
		"rejected", sum.Rejected)
	return sum, nil
}

func (l *Loader) loadDocument(ctx context.Context, docDir string, meta corpus.Metadata) (loaded, rejected int, err error) {
	logger := l.logger.With("document", filepath.Base(docDir))

	brand := strings.ToLower(strings.TrimSpace(meta.Brand))
	model := strings.ToLower(strings.TrimSpace(meta.Model))
	productType := strings.ToLower(strings.TrimSpace(meta.ProductType))
	keywords := joinKeywords(meta.Keywords)

	files, err := corpus.ChunkFiles(docDir)
	if err != nil {
		return 0, 0, err
	}

	for _, path := range files {
		chunk, err := corpus.ReadChunk(path)
		if err != nil {
			logger.Warn("unreadable chunk file", "file", filepath.Base(path), "error", err)
			rejected++
			continue
		}
		id, err := validateChunk(chunk)
		if err != nil {
			logger.Warn("rejecting chunk", "file", filepath.Base(path), "error", err)
			rejected++
			continue
		}

		createdAt, err := time.Parse(time.RFC3339, chunk.CreatedAt)
		if err != nil {
			createdAt = time.Now()
		}

		_, err = l.db.Exec(ctx, upsertManualSQL,
			id, chunk.SourceFile, chunk.Category, chunk.Content,
			chunk.Contextualization, chunk.RawTable,
			brand, model, productType, keywords,
			pgvector.NewVector(chunk.Embeddings), createdAt)
		if err != nil {
			return loaded, rejected, fmt.Errorf("upserting chunk %s: %w", id, err)
		}
		loaded++
	}

	logger.Info("loaded document", "chunks", loaded, "rejected", rejected)
	return loaded, rejected, nil
}

// validateChunk enforces the load contract: a chunk without an id, an
// embedding vector or content cannot be stored.
func validateChunk(c corpus.Chunk) (uuid.UUID, error) {
	id, err := uuid.Parse(c.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("chunk id is not a UUID: %w", err)
	}
	if len(c.Embeddings) == 0 {
		return uuid.Nil, fmt.Errorf("chunk %s has no embeddings", c.ID)
	}
	if c.Content == "" {
		return uuid.Nil, fmt.Errorf("chunk %s has no content", c.ID)
	}
	return id, nil
}

func joinKeywords(keywords []string) string {
	cleaned := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			cleaned = append(cleaned, k)
		}
	}
	return strings.Join(cleaned, ",")
}
