package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// minAutocorrPairs is the minimum number of lagged observation pairs
// required before an autocorrelation estimate is considered meaningful.
// Below this the estimate is reported as 0.
const minAutocorrPairs = 10

// annualization captures how a daily volatility is scaled to an annual
// figure, including the serial-correlation adjustment when one applied.
type annualization struct {
	factor   float64
	lagRho   float64
	adjusted bool
}

// autocorrelation estimates the lag-k serial correlation of a return
// series: the lagged cross-product of demeaned observations over the
// lag-0 sum of squares. Returns 0 for degenerate inputs (too few pairs
// or a constant series).
func autocorrelation(series []float64, lag int) float64 {
	if lag <= 0 || len(series)-lag < minAutocorrPairs {
		return 0
	}
	mean := stat.Mean(series, nil)

	var num float64
	for t := 0; t < len(series)-lag; t++ {
		num += (series[t] - mean) * (series[t+lag] - mean)
	}
	var den float64
	for _, x := range series {
		den += (x - mean) * (x - mean)
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// annualizationFactor converts daily volatility scaling to annual. With
// materially autocorrelated returns the naive sqrt(252) rule misstates
// annual risk, so the factor becomes sqrt(252·(1+2ρ)) whenever |ρ|
// exceeds the configured threshold. Strongly negative ρ can push the
// radicand below zero; it is floored at 0 and flagged rather than
// producing a NaN.
func (e *Engine) annualizationFactor(portfolioReturns []float64, warnings *[]string) annualization {
	days := float64(e.cfg.TradingDays)
	rho := autocorrelation(portfolioReturns, e.cfg.AutocorrLag)

	a := annualization{factor: math.Sqrt(days), lagRho: rho}
	if math.Abs(rho) <= e.cfg.AutocorrThreshold {
		return a
	}

	radicand := days * (1 + 2*rho)
	if radicand < 0 {
		*warnings = append(*warnings,
			fmt.Sprintf("autocorrelation %.3f drove annualization radicand below zero; floored at 0", rho))
		e.log.Warn().
			Float64("lag_rho", rho).
			Float64("radicand", radicand).
			Msg("Annualization radicand floored at zero")
		radicand = 0
	}
	a.factor = math.Sqrt(radicand)
	a.adjusted = true
	e.log.Debug().
		Float64("lag_rho", rho).
		Float64("factor", a.factor).
		Msg("Autocorrelation-adjusted annualization factor")
	return a
}
