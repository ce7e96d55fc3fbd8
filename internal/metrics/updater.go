package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Updater periodically updates metrics from the database
type Updater struct {
	db       *pgxpool.Pool
	interval time.Duration
	stopCh   chan struct{}
}

// NewUpdater creates a new metrics updater
func NewUpdater(db *pgxpool.Pool, interval time.Duration) *Updater {
	return &Updater{
		db:       db,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the metrics update loop
func (u *Updater) Start(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	// Update immediately on start
	u.update(ctx)

	for {
		select {
		case <-ticker.C:
			u.update(ctx)
		case <-u.stopCh:
			log.Info().Msg("Metrics updater stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Metrics updater context cancelled")
			return
		}
	}
}

// Stop stops the metrics updater
func (u *Updater) Stop() {
	close(u.stopCh)
}

// update fetches and updates all metrics
func (u *Updater) update(ctx context.Context) {
	log.Debug().Msg("Updating metrics from database")

	u.updateCoverageMetrics(ctx)
	u.updateFreshnessMetrics(ctx)
	u.updateDatabaseMetrics()
}

// updateCoverageMetrics updates price history coverage gauges
func (u *Updater) updateCoverageMetrics(ctx context.Context) {
	var assets, priceRows int64

	query := `
		SELECT
			(SELECT COUNT(*) FROM assets) as assets,
			(SELECT COUNT(*) FROM daily_prices) as price_rows
	`

	err := u.db.QueryRow(ctx, query).Scan(&assets, &priceRows)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch coverage metrics")
		return
	}

	ActiveAssets.Set(float64(assets))
	PriceHistoryRows.Set(float64(priceRows))
}

// updateFreshnessMetrics updates per-ticker price staleness gauges.
// Weekends and holidays show up as one or two days of age, which is
// normal; alerting thresholds live with the alert rules, not here.
func (u *Updater) updateFreshnessMetrics(ctx context.Context) {
	query := `
		SELECT
			a.ticker,
			COALESCE(CURRENT_DATE - MAX(p.day), -1) as age_days
		FROM assets a
		LEFT JOIN daily_prices p ON p.ticker = a.ticker
		GROUP BY a.ticker
	`

	rows, err := u.db.Query(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch price freshness")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var ticker string
		var ageDays int64
		if err := rows.Scan(&ticker, &ageDays); err != nil {
			continue
		}
		PriceAgeDays.WithLabelValues(ticker).Set(float64(ageDays))
	}
}

// updateDatabaseMetrics updates database connection pool metrics
func (u *Updater) updateDatabaseMetrics() {
	stat := u.db.Stat()
	UpdateDatabaseConnections(stat.AcquiredConns(), stat.IdleConns())
}
