package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quantfolio/riskd/internal/risk"
)

// dayFormat is the calendar-day layout used across the store and the
// risk engine.
const dayFormat = "2006-01-02"

// ErrNoPrices signals that a ticker has no stored history.
var ErrNoPrices = errors.New("no stored prices")

// UpsertDailyPrices writes a batch of dated closes for one ticker. The
// whole batch is one transaction; a duplicate day overwrites the stored
// close. Points without a date are rejected because the table is keyed
// by calendar day.
func (db *DB) UpsertDailyPrices(ctx context.Context, ticker string, points []risk.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	defer observe("upsert_daily_prices", time.Now())

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO daily_prices (ticker, day, close)
		VALUES ($1, $2, $3)
		ON CONFLICT (ticker, day)
		DO UPDATE SET close = EXCLUDED.close
	`

	for _, p := range points {
		if p.Date == "" {
			return fmt.Errorf("price point for %s has no date", ticker)
		}
		day, err := time.Parse(dayFormat, p.Date)
		if err != nil {
			return fmt.Errorf("invalid price date %q for %s: %w", p.Date, ticker, err)
		}
		if _, err := tx.Exec(ctx, query, ticker, day, p.Close); err != nil {
			return fmt.Errorf("failed to upsert price: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DailyCloses returns up to limit most recent closes for a ticker in
// chronological order. A ticker with no rows yields ErrNoPrices.
func (db *DB) DailyCloses(ctx context.Context, ticker string, limit int) ([]risk.PricePoint, error) {
	defer observe("daily_closes", time.Now())

	query := `
		SELECT day, close
		FROM daily_prices
		WHERE ticker = $1
		ORDER BY day DESC
		LIMIT $2
	`

	rows, err := db.pool.Query(ctx, query, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var newestFirst []risk.PricePoint
	for rows.Next() {
		var day time.Time
		var close float64
		if err := rows.Scan(&day, &close); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		newestFirst = append(newestFirst, risk.PricePoint{
			Date:  day.Format(dayFormat),
			Close: close,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("price rows iteration failed: %w", err)
	}

	if len(newestFirst) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPrices, ticker)
	}

	points := make([]risk.PricePoint, len(newestFirst))
	for i, p := range newestFirst {
		points[len(points)-1-i] = p
	}
	return points, nil
}

// LatestDay returns the most recent stored day for a ticker, or the zero
// time when nothing is stored yet.
func (db *DB) LatestDay(ctx context.Context, ticker string) (time.Time, error) {
	defer observe("latest_day", time.Now())

	query := `
		SELECT day
		FROM daily_prices
		WHERE ticker = $1
		ORDER BY day DESC
		LIMIT 1
	`

	var day time.Time
	err := db.pool.QueryRow(ctx, query, ticker).Scan(&day)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest day: %w", err)
	}
	return day, nil
}

// PriceStats summarizes one ticker's stored history.
type PriceStats struct {
	Ticker   string `json:"ticker"`
	Days     int    `json:"days"`
	Earliest string `json:"earliest,omitempty"`
	Latest   string `json:"latest,omitempty"`
}

// Stats reports how much history is stored for a ticker.
func (db *DB) Stats(ctx context.Context, ticker string) (*PriceStats, error) {
	defer observe("price_stats", time.Now())

	query := `
		SELECT COUNT(*), MIN(day), MAX(day)
		FROM daily_prices
		WHERE ticker = $1
	`

	var count int
	var earliest, latest *time.Time
	if err := db.pool.QueryRow(ctx, query, ticker).Scan(&count, &earliest, &latest); err != nil {
		return nil, fmt.Errorf("failed to query price stats: %w", err)
	}

	stats := &PriceStats{Ticker: ticker, Days: count}
	if earliest != nil {
		stats.Earliest = earliest.Format(dayFormat)
	}
	if latest != nil {
		stats.Latest = latest.Format(dayFormat)
	}
	return stats, nil
}
