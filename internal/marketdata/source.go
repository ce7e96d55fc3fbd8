// Package marketdata feeds the risk engine with daily close history,
// combining the PostgreSQL store, Redis cache and the Binance API.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/quantfolio/riskd/internal/db"
	"github.com/quantfolio/riskd/internal/risk"
)

// maxConcurrentFetches bounds basket fan-out against provider rate limits.
const maxConcurrentFetches = 4

// PriceStore is the subset of the database layer the source needs. An
// unknown ticker yields db.ErrNoPrices from DailyCloses.
type PriceStore interface {
	DailyCloses(ctx context.Context, ticker string, limit int) ([]risk.PricePoint, error)
	UpsertDailyPrices(ctx context.Context, ticker string, points []risk.PricePoint) error
	LatestDay(ctx context.Context, ticker string) (time.Time, error)
}

// Source resolves price history store-first, falling back to the provider
// and writing fetched history back through.
type Source struct {
	store    PriceStore
	provider Provider
	breakers *BreakerManager
}

// NewSource wires the store and provider behind circuit breakers.
func NewSource(store PriceStore, provider Provider, breakers *BreakerManager) *Source {
	if breakers == nil {
		breakers = NewBreakerManager()
	}
	return &Source{
		store:    store,
		provider: provider,
		breakers: breakers,
	}
}

// History returns up to days daily closes for a ticker, oldest first.
// Stored history short of the requested window triggers a provider fetch;
// if the provider is down, whatever the store holds is served.
func (s *Source) History(ctx context.Context, ticker string, days int) ([]risk.PricePoint, error) {
	stored, err := s.storeCloses(ctx, ticker, days)
	if err != nil {
		log.Warn().Err(err).Str("ticker", ticker).Msg("Store read failed, falling back to provider")
	}
	if len(stored) >= days {
		return stored, nil
	}

	fetched, err := s.providerCloses(ctx, ticker, days)
	if err != nil {
		if len(stored) > 0 {
			log.Warn().
				Err(err).
				Str("ticker", ticker).
				Int("stored", len(stored)).
				Msg("Provider fetch failed, serving stored history")
			return stored, nil
		}
		return nil, err
	}

	s.writeBack(ctx, ticker, fetched)
	return fetched, nil
}

// FetchBasket resolves history for all tickers concurrently.
func (s *Source) FetchBasket(ctx context.Context, tickers []string, days int) (map[string][]risk.PricePoint, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)

	var mu sync.Mutex
	basket := make(map[string][]risk.PricePoint, len(tickers))

	for _, ticker := range tickers {
		g.Go(func() error {
			points, err := s.History(ctx, ticker, days)
			if err != nil {
				return fmt.Errorf("failed to fetch history for %s: %w", ticker, err)
			}
			mu.Lock()
			basket[ticker] = points
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return basket, nil
}

// storeCloses reads through the database breaker. An empty history is not
// counted as a database failure.
func (s *Source) storeCloses(ctx context.Context, ticker string, days int) ([]risk.PricePoint, error) {
	result, err := s.breakers.Database().Execute(func() (interface{}, error) {
		points, err := s.store.DailyCloses(ctx, ticker, days)
		if err != nil && !errors.Is(err, db.ErrNoPrices) {
			return nil, err
		}
		return points, nil
	})
	s.breakers.Metrics().RecordRequest("database", err == nil)
	if err != nil {
		return nil, err
	}
	points, _ := result.([]risk.PricePoint)
	return points, nil
}

// providerCloses fetches through the provider breaker.
func (s *Source) providerCloses(ctx context.Context, ticker string, days int) ([]risk.PricePoint, error) {
	result, err := s.breakers.Provider().Execute(func() (interface{}, error) {
		return s.provider.DailyCloses(ctx, ticker, days)
	})
	s.breakers.Metrics().RecordRequest("provider", err == nil)
	if err != nil {
		return nil, fmt.Errorf("provider fetch for %s failed: %w", ticker, err)
	}
	points, _ := result.([]risk.PricePoint)
	return points, nil
}

// writeBack persists fetched history. Failures are logged, not returned;
// the caller already has the data it asked for.
func (s *Source) writeBack(ctx context.Context, ticker string, points []risk.PricePoint) {
	_, err := s.breakers.Database().Execute(func() (interface{}, error) {
		return nil, s.store.UpsertDailyPrices(ctx, ticker, points)
	})
	s.breakers.Metrics().RecordRequest("database", err == nil)
	if err != nil {
		log.Warn().
			Err(err).
			Str("ticker", ticker).
			Int("points", len(points)).
			Msg("Failed to persist fetched history")
	}
}
