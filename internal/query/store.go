package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/tonewheel/studiorag/internal/log"
)

// querier is the subset of pgxpool.Pool the store needs; pgx.Tx also
// satisfies it.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Result is one retrieved chunk with its fused relevance score.
type Result struct {
	ID      uuid.UUID
	Content string
	Score   float64
}

// Filter restricts retrieval to chunks from manuals of the mentioned
// brands or models. Values must already be lowercase; the table stores
// classification fields folded at load time.
type Filter struct {
	Brands []string
	Models []string
}

// Empty reports whether the filter matches everything.
func (f Filter) Empty() bool {
	return len(f.Brands) == 0 && len(f.Models) == 0
}

// poolSize bounds each search arm before fusion. Normalizing over a
// candidate pool larger than the final limit keeps the min-max scaling
// meaningful.
const poolSize = 50

const distinctEntitySQL = `SELECT %s FROM manuals
WHERE %s <> ''
GROUP BY %s
HAVING count(*) >= $1
ORDER BY count(*) DESC, %s`

// hybridSearchSQL fuses the vector and keyword arms with relative score
// fusion: each arm is min-max normalized over its candidate pool, then the
// two are averaged, with a missing arm contributing zero. A single-row arm
// normalizes to 0.5 rather than dividing by zero.
const hybridSearchSQL = `WITH vec AS (
	SELECT id, content, 1 - (embedding <=> $1) AS score
	FROM manuals
	WHERE (cardinality($3::text[]) = 0 AND cardinality($4::text[]) = 0)
	   OR brand = ANY($3::text[]) OR model = ANY($4::text[])
	ORDER BY embedding <=> $1
	LIMIT $5
), kw AS (
	SELECT id, content, ts_rank(content_tsv, plainto_tsquery('english', $2)) AS score
	FROM manuals
	WHERE content_tsv @@ plainto_tsquery('english', $2)
	  AND ((cardinality($3::text[]) = 0 AND cardinality($4::text[]) = 0)
	   OR brand = ANY($3::text[]) OR model = ANY($4::text[]))
	ORDER BY score DESC
	LIMIT $5
), vec_n AS (
	SELECT id, content,
		CASE WHEN max(score) OVER () = min(score) OVER () THEN 0.5
		     ELSE (score - min(score) OVER ()) / (max(score) OVER () - min(score) OVER ())
		END AS nscore
	FROM vec
), kw_n AS (
	SELECT id, content,
		CASE WHEN max(score) OVER () = min(score) OVER () THEN 0.5
		     ELSE (score - min(score) OVER ()) / (max(score) OVER () - min(score) OVER ())
		END AS nscore
	FROM kw
)
SELECT id,
	COALESCE(v.content, k.content) AS content,
	(COALESCE(v.nscore, 0) + COALESCE(k.nscore, 0)) / 2 AS score
FROM vec_n v
FULL OUTER JOIN kw_n k USING (id)
ORDER BY score DESC
LIMIT $6`

// Store runs retrieval queries against the manuals table.
type Store struct {
	db     querier
	logger log.Logger
}

// NewStore creates a Store.
func NewStore(db querier, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// DistinctBrands returns the brands appearing in at least minOccurrences
// chunks, most frequent first.
func (s *Store) DistinctBrands(ctx context.Context, minOccurrences int) ([]string, error) {
	return s.distinct(ctx, "brand", minOccurrences)
}

// DistinctModels returns the models appearing in at least minOccurrences
// chunks, most frequent first.
func (s *Store) DistinctModels(ctx context.Context, minOccurrences int) ([]string, error) {
	return s.distinct(ctx, "model", minOccurrences)
}

func (s *Store) distinct(ctx context.Context, column string, minOccurrences int) ([]string, error) {
	// column is one of two compile-time constants, never user input.
	sql := fmt.Sprintf(distinctEntitySQL, column, column, column, column)

	rows, err := s.db.Query(ctx, sql, minOccurrences)
	if err != nil {
		return nil, fmt.Errorf("listing distinct %s values: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning %s value: %w", column, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s values: %w", column, err)
	}
	return values, nil
}

// Hybrid runs the fused vector plus keyword search over the manuals
// table, restricted by filter when it is non-empty.
func (s *Store) Hybrid(ctx context.Context, queryText string, vector []float32, filter Filter, limit int) ([]Result, error) {
	brands := filter.Brands
	if brands == nil {
		brands = []string{}
	}
	models := filter.Models
	if models == nil {
		models = []string{}
	}

	rows, err := s.db.Query(ctx, hybridSearchSQL,
		pgvector.NewVector(vector), queryText, brands, models, poolSize, limit)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.ID, &r.Content, &r.Score); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}

	s.logger.Debug("hybrid search done", "results", len(results), "filtered", !filter.Empty())
	return results, nil
}
