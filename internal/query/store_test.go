package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonewheel/studiorag/internal/log"
)

// fakeQuerier records every query and serves canned rows.
type fakeQuerier struct {
	sqls []string
	args [][]any
	rows [][]any
	fail error
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.sqls = append(f.sqls, sql)
	f.args = append(f.args, args)
	return &fakeRows{rows: f.rows}, nil
}

// fakeRows implements pgx.Rows over in-memory rows.
type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx < len(r.rows) {
		r.idx++
		return true
	}
	return false
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	for i, d := range dest {
		switch d := d.(type) {
		case *string:
			*d = row[i].(string)
		case *float64:
			*d = row[i].(float64)
		case *uuid.UUID:
			*d = row[i].(uuid.UUID)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

func TestDistinctEntities_ApplyOccurrenceFloor(t *testing.T) {
	tests := []struct {
		name   string
		call   func(s *Store, ctx context.Context) ([]string, error)
		column string
	}{
		{"brands", func(s *Store, ctx context.Context) ([]string, error) {
			return s.DistinctBrands(ctx, 5)
		}, "brand"},
		{"models", func(s *Store, ctx context.Context) ([]string, error) {
			return s.DistinctModels(ctx, 5)
		}, "model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeQuerier{rows: [][]any{{"moog"}, {"behringer"}}}
			s := NewStore(db, log.NewNop())

			values, err := tt.call(s, context.Background())
			require.NoError(t, err)
			assert.Equal(t, []string{"moog", "behringer"}, values,
				"values keep the store's frequency order")

			require.Len(t, db.sqls, 1)
			sql := db.sqls[0]
			assert.Contains(t, sql, "GROUP BY "+tt.column)
			assert.Contains(t, sql, "HAVING count(*) >= $1")
			assert.Contains(t, sql, "ORDER BY count(*) DESC")
			assert.Equal(t, []any{5}, db.args[0])
		})
	}
}

func TestHybrid_PassesFilterPoolAndLimit(t *testing.T) {
	db := &fakeQuerier{}
	s := NewStore(db, log.NewNop())

	vector := []float32{0.1, 0.2}
	filter := Filter{Brands: []string{"moog"}, Models: []string{"sub 37"}}

	_, err := s.Hybrid(context.Background(), "filter cutoff", vector, filter, 10)
	require.NoError(t, err)

	require.Len(t, db.args, 1)
	args := db.args[0]
	require.Len(t, args, 6)
	assert.Equal(t, pgvector.NewVector(vector), args[0])
	assert.Equal(t, "filter cutoff", args[1])
	assert.Equal(t, []string{"moog"}, args[2])
	assert.Equal(t, []string{"sub 37"}, args[3])
	assert.Equal(t, poolSize, args[4], "each arm normalizes over the candidate pool")
	assert.Equal(t, 10, args[5])
}

func TestHybrid_SQLFusesBothArms(t *testing.T) {
	db := &fakeQuerier{}
	s := NewStore(db, log.NewNop())

	_, err := s.Hybrid(context.Background(), "q", []float32{0.1}, Filter{}, 5)
	require.NoError(t, err)

	require.Len(t, db.sqls, 1)
	sql := db.sqls[0]

	// Vector arm: cosine distance; keyword arm: ts_rank over content_tsv.
	assert.Contains(t, sql, "embedding <=> $1")
	assert.Contains(t, sql, "ts_rank(content_tsv, plainto_tsquery('english', $2))")

	// Each arm min-max normalized, then averaged over a full outer join.
	assert.Contains(t, sql, "min(score) OVER ()")
	assert.Contains(t, sql, "max(score) OVER ()")
	assert.Contains(t, sql, "(COALESCE(v.nscore, 0) + COALESCE(k.nscore, 0)) / 2")
	assert.Contains(t, sql, "FULL OUTER JOIN")

	// Any-of predicate across brand OR model.
	assert.Contains(t, sql, "brand = ANY($3::text[]) OR model = ANY($4::text[])")
}

func TestHybrid_EmptyFilterSendsEmptyArrays(t *testing.T) {
	db := &fakeQuerier{}
	s := NewStore(db, log.NewNop())

	_, err := s.Hybrid(context.Background(), "q", []float32{0.1}, Filter{}, 5)
	require.NoError(t, err)

	args := db.args[0]
	assert.Equal(t, []string{}, args[2], "nil slices must reach the driver as empty arrays")
	assert.Equal(t, []string{}, args[3])
}

func TestHybrid_ScansResultsInRankOrder(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	db := &fakeQuerier{rows: [][]any{
		{first, "top excerpt", 0.95},
		{second, "runner up", 0.60},
	}}
	s := NewStore(db, log.NewNop())

	results, err := s.Hybrid(context.Background(), "q", []float32{0.1}, Filter{}, 5)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, Result{ID: first, Content: "top excerpt", Score: 0.95}, results[0])
	assert.Equal(t, Result{ID: second, Content: "runner up", Score: 0.60}, results[1])
}

func TestHybrid_QueryErrorIsWrapped(t *testing.T) {
	db := &fakeQuerier{fail: errors.New("connection reset")}
	s := NewStore(db, log.NewNop())

	_, err := s.Hybrid(context.Background(), "q", []float32{0.1}, Filter{}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hybrid search")
}
