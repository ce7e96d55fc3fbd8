// Package testhelpers spins up throwaway PostgreSQL containers for
// integration tests.
package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quantfolio/riskd/internal/db"
)

// PostgresContainer holds the container instance and connection details.
type PostgresContainer struct {
	Container     *postgres.PostgresContainer
	ConnectionStr string
	DB            *db.DB
	t             *testing.T
}

// SetupTestDatabase starts a PostgreSQL container and connects the store
// to it. The container is terminated through t.Cleanup.
func SetupTestDatabase(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("riskd_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to get connection string: %v", err)
	}

	store, err := db.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	tc := &PostgresContainer{
		Container:     container,
		ConnectionStr: connStr,
		DB:            store,
		t:             t,
	}

	t.Cleanup(func() {
		tc.Cleanup()
	})

	return tc
}

// ApplyMigrations runs the repository migrations against the container.
func (tc *PostgresContainer) ApplyMigrations(migrationsPath string) error {
	tc.t.Helper()

	sqlDB, err := sql.Open("postgres", tc.ConnectionStr)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer sqlDB.Close()

	migrator := db.NewMigrator(sqlDB, migrationsPath)
	if err := migrator.Migrate(context.Background()); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// TruncateAllTables clears stored data between tests.
func (tc *PostgresContainer) TruncateAllTables() error {
	tables := []string{
		"daily_prices",
		"assets",
		"devices",
		"notification_log",
	}

	for _, table := range tables {
		if err := tc.ExecuteSQL(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

// ExecuteSQL runs arbitrary SQL, useful for test setup.
func (tc *PostgresContainer) ExecuteSQL(query string) error {
	sqlDB, err := sql.Open("postgres", tc.ConnectionStr)
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	defer sqlDB.Close()

	if _, err := sqlDB.ExecContext(context.Background(), query); err != nil {
		return err
	}
	return nil
}

// Cleanup closes the store and terminates the container.
func (tc *PostgresContainer) Cleanup() {
	ctx := context.Background()

	if tc.DB != nil {
		tc.DB.Close()
	}

	if tc.Container != nil {
		if err := tc.Container.Terminate(ctx); err != nil {
			tc.t.Logf("Failed to terminate container: %v", err)
		}
	}
}
