// Package testdb spins up throwaway PostgreSQL containers for
// repository-level tests.
package testdb

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// StartPostgres launches a PostgreSQL container, applies the schema, and
// returns a connected pool. The container and pool are torn down with the
// test. Skipped in -short mode since it needs a container runtime.
func StartPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("requires a container runtime")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("stocklens_test"),
		tcpostgres.WithUsername("stocklens"),
		tcpostgres.WithPassword("stocklens"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "container connection string")

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "connect pool")
	t.Cleanup(pool.Close)

	applySchema(t, pool)
	return pool
}

func applySchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	data, err := os.ReadFile(schemaPath())
	require.NoError(t, err, "read schema")

	for _, stmt := range strings.Split(string(data), ";") {
		if isBlank(stmt) {
			continue
		}
		_, err := pool.Exec(context.Background(), stmt)
		require.NoError(t, err, "apply schema statement")
	}
}

func isBlank(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}

func schemaPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "scripts", "schema.sql")
}
