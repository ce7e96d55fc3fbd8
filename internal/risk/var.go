package risk

import (
	"fmt"
	"math"
	"slices"
)

// zScore maps a confidence level to the one-sided normal quantile used by
// parametric VaR. Unrecognized levels fall back to the 95% quantile.
func zScore(confidence float64) float64 {
	switch confidence {
	case 0.90:
		return 1.28
	case 0.95:
		return 1.65
	case 0.99:
		return 2.33
	default:
		return 1.65
	}
}

// portfolioReturns collapses the T×N return matrix into the weighted
// portfolio return series w·R per day.
func portfolioReturns(returns [][]float64, weights []float64) ([]float64, error) {
	out := make([]float64, len(returns))
	for t, row := range returns {
		r, err := dot(weights, row)
		if err != nil {
			return nil, err
		}
		out[t] = r
	}
	return out, nil
}

// varResult holds the parametric VaR decomposition at one confidence
// level.
type varResult struct {
	dailyVol      float64
	annualVol     float64
	diversified   float64
	undiversified float64
	benefit       float64
	zScore        float64
	confidence    float64
	ann           annualization
}

// parametricVaR computes diversified VaR from the portfolio volatility
// wᵀΣw and undiversified VaR from the weighted sum of standalone
// volatilities. Both are positive loss magnitudes in capital units. The
// diversification benefit 1 - div/undiv is 0 for a degenerate
// denominator.
func (e *Engine) parametricVaR(cov [][]float64, stdDevs, weights []float64, capital, confidence float64, portReturns []float64, warnings *[]string) (varResult, error) {
	weighted, err := matMul(cov, columnVector(weights))
	if err != nil {
		return varResult{}, err
	}
	variance, err := dot(weights, flattenColumn(weighted))
	if err != nil {
		return varResult{}, err
	}
	if variance < 0 {
		*warnings = append(*warnings,
			fmt.Sprintf("portfolio variance %.3g clamped to zero", variance))
		e.log.Warn().
			Float64("variance", variance).
			Msg("Negative portfolio variance clamped")
		variance = 0
	}

	res := varResult{
		dailyVol:   math.Sqrt(variance),
		zScore:     zScore(confidence),
		confidence: confidence,
	}
	res.ann = e.annualizationFactor(portReturns, warnings)
	res.annualVol = res.dailyVol * res.ann.factor

	res.diversified = res.zScore * res.dailyVol * capital

	var standalone float64
	for i, w := range weights {
		standalone += w * stdDevs[i]
	}
	res.undiversified = res.zScore * standalone * capital

	if res.undiversified != 0 {
		res.benefit = 1 - res.diversified/res.undiversified
	}
	return res, nil
}

// cvarResult holds the historical expected shortfall at one confidence
// level.
type cvarResult struct {
	magnitude float64 // positive loss in capital units
	percent   float64 // raw mean tail return, typically negative
	tailSize  int
}

// historicalCVaR averages the worst ceil((1-confidence)·T) daily
// portfolio returns. The tail size is clamped to [1, T] so thin samples
// still produce an estimate from at least the single worst day.
func historicalCVaR(portReturns []float64, confidence, capital float64) cvarResult {
	t := len(portReturns)
	if t == 0 {
		return cvarResult{}
	}

	k := int(math.Ceil((1 - confidence) * float64(t)))
	if k < 1 {
		k = 1
	}
	if k > t {
		k = t
	}

	sorted := make([]float64, t)
	copy(sorted, portReturns)
	slices.Sort(sorted)

	var sum float64
	for _, r := range sorted[:k] {
		sum += r
	}
	mean := sum / float64(k)

	return cvarResult{
		magnitude: math.Abs(mean) * capital,
		percent:   mean,
		tailSize:  k,
	}
}
