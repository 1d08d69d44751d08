// Package vector manages named vector collections in PostgreSQL with
// pgvector similarity search.
//
// Two kinds of collections exist in practice: a long-lived shared
// corpus collection and short-lived per-session collections named
// after the session. Dropping a collection cascades to its documents.
package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// ErrCollectionNotFound indicates the named collection does not exist.
var ErrCollectionNotFound = errors.New("collection not found")

// Embedder turns text into embedding vectors. Defined here, on the
// consumer side; llm.Client satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store manages documents in named collections with vector search.
// Safe for concurrent use as long as the underlying DB is.
type Store struct {
	db       DB
	embedder Embedder
	logger   *slog.Logger
}

// New creates a Store.
func New(db DB, embedder Embedder, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		db:       db,
		embedder: embedder,
		logger:   logger,
	}
}

// EnsureCollection creates the named collection if it does not exist
// and returns its id. Idempotent.
func (s *Store) EnsureCollection(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO collections (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`,
		name,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("ensuring collection %q: %w", name, err)
	}

	s.logger.Debug("collection ready", "name", name, "id", id)
	return id, nil
}

// DropCollection deletes the named collection and, via cascade, all of
// its documents. Dropping a collection that does not exist is not an
// error; the desired end state holds either way.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM collections WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("dropping collection %q: %w", name, err)
	}

	s.logger.Debug("collection dropped", "name", name, "existed", tag.RowsAffected() > 0)
	return nil
}

// AddDocuments embeds and upserts documents into the named collection.
// All contents are embedded in a single call to the embedder.
func (s *Store) AddDocuments(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	collectionID, err := s.collectionID(ctx, collection)
	if err != nil {
		return err
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d documents: %w", len(docs), err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	for i, doc := range docs {
		metadataJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for document %q: %w", doc.ID, err)
		}

		createdAt := doc.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}

		_, err = s.db.Exec(ctx,
			`INSERT INTO documents (id, collection_id, content, embedding, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (collection_id, id) DO UPDATE
			 SET content = EXCLUDED.content,
			     embedding = EXCLUDED.embedding,
			     metadata = EXCLUDED.metadata`,
			doc.ID, collectionID, doc.Content, pgvector.NewVector(vectors[i]), metadataJSON, createdAt,
		)
		if err != nil {
			return fmt.Errorf("upserting document %q: %w", doc.ID, err)
		}
	}

	s.logger.Debug("documents added", "collection", collection, "count", len(docs))
	return nil
}

// Search returns the documents in the named collection most similar to
// the query, ordered by descending cosine similarity. Searching a
// collection that does not exist fails with ErrCollectionNotFound.
func (s *Store) Search(ctx context.Context, collection, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)

	queryCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	collectionID, err := s.collectionID(queryCtx, collection)
	if err != nil {
		return nil, err
	}

	vectors, err := s.embedder.Embed(queryCtx, []string{query})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("empty embedding returned for query")
	}

	rows, err := s.db.Query(queryCtx,
		`SELECT d.id, d.content, d.metadata, d.created_at,
		        1 - (d.embedding <=> $1) AS similarity
		 FROM documents d
		 WHERE d.collection_id = $2
		 ORDER BY d.embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(vectors[0]), collectionID, cfg.topK,
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search query timeout: %w", err)
		}
		return nil, fmt.Errorf("searching collection %q: %w", collection, err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			doc          Document
			metadataJSON []byte
			similarity   float64
		)
		if err := rows.Scan(&doc.ID, &doc.Content, &metadataJSON, &doc.CreatedAt, &similarity); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}

		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			s.logger.Warn("failed to parse document metadata", "document_id", doc.ID, "error", err)
			doc.Metadata = make(map[string]string)
		}

		results = append(results, Result{Document: doc, Similarity: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}

	return results, nil
}

// Count returns the number of documents in the named collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT count(*)
		 FROM documents d
		 JOIN collections c ON c.id = d.collection_id
		 WHERE c.name = $1`,
		collection,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting documents in %q: %w", collection, err)
	}
	return count, nil
}

// collectionID resolves a collection name to its id.
func (s *Store) collectionID(ctx context.Context, name string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM collections WHERE name = $1`, name).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: %q", ErrCollectionNotFound, name)
		}
		return uuid.Nil, fmt.Errorf("looking up collection %q: %w", name, err)
	}
	return id, nil
}
