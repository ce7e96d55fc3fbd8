package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// symmetryTolerance bounds the acceptable asymmetry of a sample covariance
// matrix before it is flagged as a numeric anomaly.
const symmetryTolerance = 1e-10

// CorrelationPair identifies two assets whose correlation magnitude
// crossed the singularity threshold, marking them as near-duplicates for
// collinearity diagnostics.
type CorrelationPair struct {
	TickerA     string  `json:"tickerA"`
	TickerB     string  `json:"tickerB"`
	Correlation float64 `json:"correlation"`
}

// covarianceResult bundles the covariance estimate with everything derived
// from it.
type covarianceResult struct {
	cov        [][]float64
	corr       [][]float64
	dist       [][]float64
	stdDevs    []float64 // daily, per asset
	shrinkage  float64   // blend intensity, 0 when not applied
	applied    bool
	avgCorr    float64
	duplicates []CorrelationPair
	warnings   []string
}

// estimateCovariance computes Σ = XᵀX/(T-1) over centered columns of the
// T×N return matrix, blends in the constant-correlation shrinkage target
// for short samples, and derives standard deviations, the clipped
// correlation matrix, the distance matrix, and the near-duplicate scan.
//
// Numeric anomalies (asymmetry beyond tolerance, negative variances) are
// recorded as warnings and repaired with clamped values; estimation noise
// on real data is expected and never aborts the pipeline.
func (e *Engine) estimateCovariance(returns [][]float64, tickers []string) (*covarianceResult, error) {
	t := len(returns)
	if t < 2 {
		return nil, fmt.Errorf("%w: %d return rows (need at least 2)", ErrInsufficientHistory, t)
	}

	centered := centerColumns(returns)
	product, err := matMul(transpose(centered), centered)
	if err != nil {
		return nil, err
	}
	scale := 1.0 / float64(t-1)
	for i := range product {
		for j := range product[i] {
			product[i][j] *= scale
		}
	}

	res := &covarianceResult{cov: product}
	n := len(product)

	if asym := maxAsymmetry(res.cov); asym > symmetryTolerance {
		res.warnings = append(res.warnings,
			fmt.Sprintf("covariance asymmetry %.3g exceeds tolerance %.0e", asym, symmetryTolerance))
		e.log.Warn().
			Float64("asymmetry", asym).
			Msg("Covariance matrix asymmetric beyond tolerance")
	}

	if t < e.cfg.ShrinkageHorizon {
		res.shrinkage = shrinkageIntensity(t, n)
		res.cov = shrinkCovariance(res.cov, res.shrinkage)
		res.applied = true
		e.log.Debug().
			Int("observations", t).
			Int("assets", n).
			Float64("intensity", res.shrinkage).
			Msg("Applied constant-correlation shrinkage")
	}

	res.stdDevs = e.standardDeviations(res.cov, tickers, &res.warnings)
	res.corr = correlationFromCovariance(res.cov, res.stdDevs)
	res.dist = distanceFromCorrelation(res.corr)
	res.avgCorr = averageOffDiagonal(res.corr)
	res.duplicates = e.nearDuplicates(res.corr, tickers)
	return res, nil
}

// shrinkageIntensity is the closed-form blend weight δ = (N+1)/(T·N),
// clamped to [0, 1]. It grows as assets outnumber observations and decays
// toward zero as history lengthens.
func shrinkageIntensity(t, n int) float64 {
	if t <= 0 || n <= 0 {
		return 1
	}
	delta := float64(n+1) / (float64(t) * float64(n))
	if delta < 0 {
		return 0
	}
	if delta > 1 {
		return 1
	}
	return delta
}

// shrinkCovariance blends the sample covariance with the
// constant-correlation target F: diagonal entries equal the average
// variance v̄, off-diagonal entries equal v̄·ρ̄ with ρ̄ the mean implied
// pairwise correlation. The result is δ·F + (1-δ)·Σ.
func shrinkCovariance(cov [][]float64, delta float64) [][]float64 {
	n := len(cov)

	var avgVar float64
	for i := 0; i < n; i++ {
		avgVar += cov[i][i]
	}
	avgVar /= float64(n)

	// Mean implied off-diagonal correlation. Pairs involving a
	// zero-variance asset contribute 0, matching the correlation
	// derivation below.
	sds := make([]float64, n)
	for i := 0; i < n; i++ {
		sds[i] = math.Sqrt(math.Max(0, cov[i][i]))
	}
	var rhoSum float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if sds[i] > 0 && sds[j] > 0 {
				rhoSum += cov[i][j] / (sds[i] * sds[j])
			}
			pairs++
		}
	}
	var avgRho float64
	if pairs > 0 {
		avgRho = rhoSum / float64(pairs)
	}

	target := mat.NewDense(n, n, nil)
	sample := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				target.Set(i, j, avgVar)
			} else {
				target.Set(i, j, avgVar*avgRho)
			}
			sample.Set(i, j, cov[i][j])
		}
	}

	var blended mat.Dense
	blended.Scale(delta, target)
	var scaledSample mat.Dense
	scaledSample.Scale(1-delta, sample)
	blended.Add(&blended, &scaledSample)

	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = blended.At(i, j)
		}
	}
	return out
}

// standardDeviations takes the square root of the diagonal. Negative
// variances are clamped to zero first and reported as anomalies.
func (e *Engine) standardDeviations(cov [][]float64, tickers []string, warnings *[]string) []float64 {
	out := make([]float64, len(cov))
	for i := range cov {
		v := cov[i][i]
		if v < 0 {
			ticker := fmt.Sprintf("asset %d", i)
			if i < len(tickers) {
				ticker = tickers[i]
			}
			*warnings = append(*warnings,
				fmt.Sprintf("%s: negative variance %.3g clamped to zero", ticker, v))
			e.log.Warn().
				Str("ticker", ticker).
				Float64("variance", v).
				Msg("Negative variance clamped")
			v = 0
		}
		out[i] = math.Sqrt(v)
	}
	return out
}

// correlationFromCovariance derives ρ_ij = Σ_ij/(σ_i·σ_j) with a unit
// diagonal. The correlation is defined as 0 when either standard
// deviation is exactly 0, and every entry is clipped to [-1, 1] to absorb
// floating-point drift.
func correlationFromCovariance(cov [][]float64, stdDevs []float64) [][]float64 {
	n := len(cov)
	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				corr[i][j] = 1
				continue
			}
			if stdDevs[i] == 0 || stdDevs[j] == 0 {
				corr[i][j] = 0
				continue
			}
			corr[i][j] = clip(cov[i][j]/(stdDevs[i]*stdDevs[j]), -1, 1)
		}
	}
	return corr
}

// distanceFromCorrelation maps correlations onto the metric
// d_ij = sqrt(2·(1-ρ_ij)), the distance used by hierarchical clustering
// and risk-parity allocators downstream.
func distanceFromCorrelation(corr [][]float64) [][]float64 {
	n := len(corr)
	dist := make([][]float64, n)
	for i := 0; i < n; i++ {
		dist[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			dist[i][j] = math.Sqrt(math.Max(0, 2*(1-corr[i][j])))
		}
	}
	return dist
}

// nearDuplicates scans the upper triangle for pairs whose correlation
// magnitude crosses the singularity threshold. Purely diagnostic; it
// never blocks computation.
func (e *Engine) nearDuplicates(corr [][]float64, tickers []string) []CorrelationPair {
	var pairs []CorrelationPair
	for i := 0; i < len(corr); i++ {
		for j := i + 1; j < len(corr); j++ {
			if math.Abs(corr[i][j]) > e.cfg.SingularityThreshold {
				pairs = append(pairs, CorrelationPair{
					TickerA:     tickerAt(tickers, i),
					TickerB:     tickerAt(tickers, j),
					Correlation: corr[i][j],
				})
			}
		}
	}
	if len(pairs) > 0 {
		e.log.Warn().
			Int("pairs", len(pairs)).
			Float64("threshold", e.cfg.SingularityThreshold).
			Msg("Near-duplicate asset pairs detected")
	}
	return pairs
}

func averageOffDiagonal(corr [][]float64) float64 {
	var sum float64
	var count int
	for i := 0; i < len(corr); i++ {
		for j := i + 1; j < len(corr); j++ {
			sum += corr[i][j]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

func maxAsymmetry(m [][]float64) float64 {
	var worst float64
	for i := 0; i < len(m); i++ {
		for j := i + 1; j < len(m); j++ {
			if d := math.Abs(m[i][j] - m[j][i]); d > worst {
				worst = d
			}
		}
	}
	return worst
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func tickerAt(tickers []string, i int) string {
	if i < len(tickers) {
		return tickers[i]
	}
	return fmt.Sprintf("asset %d", i)
}
