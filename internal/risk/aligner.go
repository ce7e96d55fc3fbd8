package risk

import (
	"fmt"
	"math"
	"sort"
)

// maxSkippedRatio is the share of dropped return observations a series can
// absorb before it is flagged as degraded.
const maxSkippedRatio = 0.05

// alignedBasket is the output of series alignment: a dense T×N log-return
// matrix with parallel ticker and weight slices.
type alignedBasket struct {
	tickers      []string
	weights      []float64
	returns      [][]float64 // rows are time steps, columns are assets
	dates        []string    // common price dates, empty for undated input
	observations int         // rows in returns
	maxSkipRatio float64
	warnings     []string
}

// alignSeries turns per-asset price histories into one aligned log-return
// matrix. When every price point carries a date the histories are
// inner-joined on their common dates; otherwise each series is truncated
// to the shortest common length. Both paths require at least
// MinObservations aligned price rows.
func (e *Engine) alignSeries(assets []AssetSeries) (*alignedBasket, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: no assets supplied", ErrInsufficientHistory)
	}

	basket := &alignedBasket{
		tickers: make([]string, len(assets)),
		weights: make([]float64, len(assets)),
	}
	for i, a := range assets {
		basket.tickers[i] = a.Ticker
		basket.weights[i] = a.Weight
	}

	var (
		closes [][]float64
		err    error
	)
	if allDated(assets) {
		closes, basket.dates, err = e.alignByDates(assets)
	} else {
		closes, err = e.alignByLength(assets)
	}
	if err != nil {
		return nil, err
	}

	// Log returns per asset. Pairs with invalid prices are skipped, not
	// replaced by placeholders, so heavy skipping is surfaced as a
	// data-quality warning.
	perAsset := make([][]float64, len(assets))
	for i, series := range closes {
		returns, skipped := logReturns(series)
		perAsset[i] = returns

		if pairs := len(series) - 1; pairs > 0 && skipped > 0 {
			ratio := float64(skipped) / float64(pairs)
			if ratio > basket.maxSkipRatio {
				basket.maxSkipRatio = ratio
			}
			if ratio > maxSkippedRatio {
				basket.warnings = append(basket.warnings, fmt.Sprintf(
					"%s: %.1f%% of return observations dropped due to invalid prices",
					basket.tickers[i], ratio*100))
				e.log.Warn().
					Str("ticker", basket.tickers[i]).
					Int("skipped", skipped).
					Float64("skip_ratio", ratio).
					Msg("Price series quality degraded")
			}
		}
	}

	// Every asset must contribute the same number of returns, or the
	// matrix cannot be formed. Divergence here means the skip filter
	// dropped different rows per asset.
	t := len(perAsset[0])
	for i, returns := range perAsset {
		if len(returns) != t {
			e.log.Error().
				Str("ticker", basket.tickers[i]).
				Int("expected", t).
				Int("got", len(returns)).
				Msg("Return series misaligned after filtering")
			return nil, fmt.Errorf("%w: %s has %d returns, expected %d",
				ErrAlignment, basket.tickers[i], len(returns), t)
		}
	}
	if t < 2 {
		return nil, fmt.Errorf("%w: only %d valid return observations", ErrInsufficientHistory, t)
	}

	basket.returns = transpose(perAsset)
	basket.observations = t
	return basket, nil
}

// allDated reports whether every price point of every series carries a
// date, which is what date-based alignment requires.
func allDated(assets []AssetSeries) bool {
	for _, a := range assets {
		if len(a.Prices) == 0 {
			return false
		}
		for _, p := range a.Prices {
			if p.Date == "" {
				return false
			}
		}
	}
	return true
}

// alignByDates inner-joins all series on their common dates, ascending.
func (e *Engine) alignByDates(assets []AssetSeries) ([][]float64, []string, error) {
	counts := make(map[string]int)
	for _, a := range assets {
		seen := make(map[string]bool, len(a.Prices))
		for _, p := range a.Prices {
			if !seen[p.Date] {
				seen[p.Date] = true
				counts[p.Date]++
			}
		}
	}

	dates := make([]string, 0, len(counts))
	for d, c := range counts {
		if c == len(assets) {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)

	if len(dates) < e.cfg.MinObservations {
		return nil, nil, fmt.Errorf("%w: only %d common dates across %d assets (need at least %d)",
			ErrInsufficientHistory, len(dates), len(assets), e.cfg.MinObservations)
	}

	closes := make([][]float64, len(assets))
	for i, a := range assets {
		byDate := make(map[string]float64, len(a.Prices))
		for _, p := range a.Prices {
			byDate[p.Date] = p.Close // duplicate dates: the later quote wins
		}
		series := make([]float64, len(dates))
		for j, d := range dates {
			series[j] = byDate[d]
		}
		closes[i] = series
	}
	return closes, dates, nil
}

// alignByLength truncates every series to the shortest one, keeping the
// most recent points.
func (e *Engine) alignByLength(assets []AssetSeries) ([][]float64, error) {
	shortest := len(assets[0].Prices)
	for _, a := range assets[1:] {
		if len(a.Prices) < shortest {
			shortest = len(a.Prices)
		}
	}
	if shortest < e.cfg.MinObservations {
		return nil, fmt.Errorf("%w: shortest series has %d points (need at least %d)",
			ErrInsufficientHistory, shortest, e.cfg.MinObservations)
	}

	closes := make([][]float64, len(assets))
	for i, a := range assets {
		tail := a.Prices[len(a.Prices)-shortest:]
		series := make([]float64, shortest)
		for j, p := range tail {
			series[j] = p.Close
		}
		closes[i] = series
	}
	return closes, nil
}

// logReturns computes ln(p_t / p_{t-1}) over consecutive valid price
// pairs. A pair containing a non-positive or non-finite price is skipped.
func logReturns(closes []float64) (returns []float64, skipped int) {
	if len(closes) < 2 {
		return []float64{}, 0
	}
	returns = make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if !validPrice(prev) || !validPrice(cur) {
			skipped++
			continue
		}
		returns = append(returns, math.Log(cur/prev))
	}
	return returns, skipped
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
