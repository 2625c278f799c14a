// Package testutil provides utilities for testing
package testutil

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/mlawther/newsgrid/internal/database"
)

// TestDB wraps a test database connection
type TestDB struct {
	*database.DB
	t *testing.T
}

func getTestConfig() database.Config {
	cfg := database.DefaultConfig()
	cfg.Host = getEnvOrDefault("DB_HOST", "localhost")
	cfg.User = getEnvOrDefault("DB_USER", "test")
	cfg.Password = getEnvOrDefault("DB_PASSWORD", "test")
	cfg.Database = getEnvOrDefault("DB_NAME", "newsgrid_test")
	cfg.SSLMode = getEnvOrDefault("DB_SSLMODE", "disable")

	if port, err := strconv.Atoi(getEnvOrDefault("DB_PORT", "5432")); err == nil {
		cfg.Port = port
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// NewTestDB creates a new test database connection with migrations applied.
// It skips the test if the database is not available.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	db, err := database.New(getTestConfig())
	if err != nil {
		t.Skipf("Skipping test: unable to connect to database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		t.Skipf("Skipping test: unable to run migrations: %v", err)
	}

	return &TestDB{DB: db, t: t}
}

func (tdb *TestDB) Close() {
	if err := tdb.DB.Close(); err != nil {
		tdb.t.Errorf("Failed to close test database: %v", err)
	}
}

// Cleanup removes all test data
func (tdb *TestDB) Cleanup(ctx context.Context) {
	tdb.t.Helper()

	if _, err := tdb.ExecContext(ctx, "DELETE FROM articles"); err != nil {
		tdb.t.Logf("Warning: failed to cleanup articles table: %v", err)
	}
}

// MustExec executes a query and fails the test on error
func (tdb *TestDB) MustExec(ctx context.Context, query string, args ...interface{}) {
	tdb.t.Helper()
	if _, err := tdb.ExecContext(ctx, query, args...); err != nil {
		tdb.t.Fatalf("Failed to execute query: %v\nQuery: %s", err, query)
	}
}
