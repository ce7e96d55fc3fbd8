// Package db provides the PostgreSQL price and asset store plus the
// migration runner.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/quantfolio/riskd/internal/metrics"
)

// Pool is the subset of pgxpool.Pool the store uses. Tests substitute a
// pgxmock pool through the same interface.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// DB wraps the PostgreSQL connection pool.
type DB struct {
	pool    Pool
	pgxpool *pgxpool.Pool
}

// New creates a connection pool for the given database URL and verifies
// connectivity.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Database connection pool created successfully")

	return &DB{pool: pool, pgxpool: pool}, nil
}

// NewWithPool wraps an existing pool, used by tests to inject a mock.
func NewWithPool(pool Pool) *DB {
	return &DB{pool: pool}
}

// PgxPool returns the concrete pgx pool for callers that need pool
// statistics. It is nil when the store wraps an injected mock.
func (db *DB) PgxPool() *pgxpool.Pool {
	return db.pgxpool
}

// Close closes the underlying connection pool.
func (db *DB) Close() {
	if db.pgxpool != nil {
		db.pgxpool.Close()
		log.Info().Msg("Database connection pool closed")
	}
}

// Health checks database connectivity.
func (db *DB) Health(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// observe records one store operation's duration, used as
// defer observe("daily_closes", time.Now()).
func observe(queryType string, start time.Time) {
	metrics.RecordDatabaseQuery(queryType, float64(time.Since(start).Microseconds())/1000.0)
}
