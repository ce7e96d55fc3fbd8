package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfolio/riskd/internal/metrics"
)

// defaultBackfillDays is how much history a brand-new ticker gets.
const defaultBackfillDays = 90

// SyncService keeps stored daily history fresh for a set of tickers.
type SyncService struct {
	provider Provider
	store    PriceStore
	tickers  []string
	interval time.Duration
	stopCh   chan struct{}
}

// NewSyncService creates a periodic price synchronization service.
func NewSyncService(provider Provider, store PriceStore, tickers []string, interval time.Duration) *SyncService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SyncService{
		provider: provider,
		store:    store,
		tickers:  tickers,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic synchronization. It blocks until the context
// is cancelled or Stop is called.
func (s *SyncService) Start(ctx context.Context) error {
	log.Info().
		Strs("tickers", s.tickers).
		Dur("interval", s.interval).
		Msg("Starting price sync service")

	// Do initial sync
	if err := s.syncAll(ctx); err != nil {
		log.Error().Err(err).Msg("Initial sync failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Price sync service stopped (context cancelled)")
			return ctx.Err()
		case <-s.stopCh:
			log.Info().Msg("Price sync service stopped")
			return nil
		case <-ticker.C:
			if err := s.syncAll(ctx); err != nil {
				log.Error().Err(err).Msg("Periodic sync failed")
			}
		}
	}
}

// Stop stops the sync service.
func (s *SyncService) Stop() {
	close(s.stopCh)
}

// syncAll refreshes every configured ticker, continuing past per-ticker
// failures.
func (s *SyncService) syncAll(ctx context.Context) error {
	startTime := time.Now()

	failed := 0
	for _, ticker := range s.tickers {
		if err := s.syncTicker(ctx, ticker); err != nil {
			failed++
			log.Error().
				Err(err).
				Str("ticker", ticker).
				Msg("Failed to sync ticker")
			continue
		}
	}

	metrics.RecordSyncRun(failed == 0, float64(time.Since(startTime).Milliseconds()))

	log.Info().
		Dur("duration", time.Since(startTime)).
		Int("tickers_count", len(s.tickers)).
		Int("failed", failed).
		Msg("Completed sync for all tickers")

	return nil
}

// syncTicker fetches and stores whatever daily history a ticker is missing.
func (s *SyncService) syncTicker(ctx context.Context, ticker string) error {
	lastDay, err := s.store.LatestDay(ctx, ticker)
	if err != nil {
		return fmt.Errorf("failed to get latest stored day: %w", err)
	}

	days := daysToFetch(lastDay, time.Now())
	if days == 0 {
		log.Debug().
			Str("ticker", ticker).
			Msg("Ticker is up to date, skipping")
		return nil
	}

	points, err := s.provider.DailyCloses(ctx, ticker, days)
	if err != nil {
		return fmt.Errorf("failed to fetch daily closes: %w", err)
	}
	if len(points) == 0 {
		log.Debug().
			Str("ticker", ticker).
			Msg("No new closes to store")
		return nil
	}

	if err := s.store.UpsertDailyPrices(ctx, ticker, points); err != nil {
		return fmt.Errorf("failed to store daily closes: %w", err)
	}
	metrics.RecordPriceRowsUpserted(len(points))

	log.Info().
		Str("ticker", ticker).
		Int("points", len(points)).
		Msg("Synced ticker history")

	return nil
}

// daysToFetch computes how many daily candles a ticker is behind. A ticker
// with no stored history gets the default backfill window.
func daysToFetch(lastDay time.Time, now time.Time) int {
	if lastDay.IsZero() {
		return defaultBackfillDays
	}

	days := int(now.Sub(lastDay).Hours() / 24)
	if days > defaultBackfillDays {
		days = defaultBackfillDays
	}
	if days < 1 {
		return 0
	}
	return days
}
