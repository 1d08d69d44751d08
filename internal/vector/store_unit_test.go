package vector

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/askdoc/askdoc/internal/log"
)

// noRowsDB answers every lookup the way Postgres answers a query for a
// collection name with no row.
type noRowsDB struct{}

func (noRowsDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (noRowsDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, pgx.ErrNoRows
}

func (noRowsDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{pgx.ErrNoRows}
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

type countingEmbedder struct {
	calls int
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = make([]float32, Dimension)
	}
	return out, nil
}

func TestSearchMissingCollectionReturnsSentinel(t *testing.T) {
	embedder := &countingEmbedder{}
	store := New(noRowsDB{}, embedder, log.NewNop())

	results, err := store.Search(context.Background(), "missing", "anything")

	assert.ErrorIs(t, err, ErrCollectionNotFound)
	assert.Nil(t, results)
	assert.Zero(t, embedder.calls, "query must not be embedded for an unknown collection")
}

func TestAddDocumentsMissingCollectionReturnsSentinel(t *testing.T) {
	store := New(noRowsDB{}, &countingEmbedder{}, log.NewNop())

	err := store.AddDocuments(context.Background(), "missing", []Document{
		{ID: "a", Content: "orphaned chunk"},
	})

	assert.ErrorIs(t, err, ErrCollectionNotFound)
}
