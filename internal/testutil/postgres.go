// Package testutil provides shared test infrastructure: a disposable
// Postgres instance with pgvector and a deterministic offline embedder.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/askdoc/askdoc/db"
	"github.com/askdoc/askdoc/internal/database"
)

// TestDB wraps a Postgres test container with a ready connection pool.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB starts a Postgres container with the pgvector extension,
// applies the schema migrations and returns a pool with vector types
// registered. The returned cleanup must be deferred.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("askdoc_test"),
		postgres.WithUsername("askdoc_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("getting connection string: %v", err)
	}

	if err := db.Migrate(connStr); err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("running migrations: %v", err)
	}

	pool, err := database.Connect(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connecting to test database: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		Pool:      pool,
		ConnStr:   connStr,
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(context.Background())
	}

	return testDB, cleanup
}
