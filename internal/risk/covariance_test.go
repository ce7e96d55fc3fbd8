package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// alternating returns two synchronized alternating series y = 2x, which
// makes variances and the cross term exactly computable.
func alternating(n int) (x, y []float64) {
	x = make([]float64, n)
	y = make([]float64, n)
	for i := range x {
		x[i] = 0.01
		if i%2 == 1 {
			x[i] = -0.01
		}
		y[i] = 2 * x[i]
	}
	return x, y
}

func rowsOf(cols ...[]float64) [][]float64 {
	rows := make([][]float64, len(cols[0]))
	for t := range rows {
		row := make([]float64, len(cols))
		for j, col := range cols {
			row[j] = col[t]
		}
		rows[t] = row
	}
	return rows
}

func TestShrinkageIntensity(t *testing.T) {
	assert.InDelta(t, 0.03, shrinkageIntensity(50, 2), 1e-15)
	assert.InDelta(t, 1.0/252+1.0/(252*10), shrinkageIntensity(252, 10), 1e-15)

	t.Run("clamped to one when observations are scarce", func(t *testing.T) {
		assert.Equal(t, 1.0, shrinkageIntensity(1, 200))
		assert.Equal(t, 1.0, shrinkageIntensity(0, 5))
	})
}

func TestEstimateCovariance_SampleMoments(t *testing.T) {
	// Horizon 2 disables shrinkage so the raw sample estimate is visible.
	engine := NewEngine(Config{ShrinkageHorizon: 2})

	returns := [][]float64{
		{0.01, 0.02},
		{0.03, -0.02},
		{-0.01, 0.03},
	}

	res, err := engine.estimateCovariance(returns, []string{"AAA", "BBB"})
	require.NoError(t, err)

	assert.False(t, res.applied)
	assert.Zero(t, res.shrinkage)

	assert.InDelta(t, 4e-4, res.cov[0][0], 1e-12)
	assert.InDelta(t, 7e-4, res.cov[1][1], 1e-12)
	assert.InDelta(t, -5e-4, res.cov[0][1], 1e-12)
	assert.Equal(t, res.cov[0][1], res.cov[1][0])

	assert.InDelta(t, 0.02, res.stdDevs[0], 1e-12)
	assert.InDelta(t, math.Sqrt(7e-4), res.stdDevs[1], 1e-12)

	wantRho := -5e-4 / (0.02 * math.Sqrt(7e-4))
	assert.InDelta(t, wantRho, res.corr[0][1], 1e-12)
	assert.Equal(t, 1.0, res.corr[0][0])
	assert.Equal(t, 1.0, res.corr[1][1])
	assert.InDelta(t, wantRho, res.avgCorr, 1e-12)

	assert.InDelta(t, math.Sqrt(2*(1-wantRho)), res.dist[0][1], 1e-12)
	assert.Zero(t, res.dist[0][0])
}

func TestEstimateCovariance_ShrinkageBlend(t *testing.T) {
	engine := NewEngine(Config{})

	x, y := alternating(50)
	returns := rowsOf(x, y)

	res, err := engine.estimateCovariance(returns, []string{"X", "Y"})
	require.NoError(t, err)

	require.True(t, res.applied)
	assert.InDelta(t, 0.03, res.shrinkage, 1e-15)

	// Sample moments: var(x)=v, var(y)=4v, cov=2v with v = Σx²/(T-1).
	// Constant-correlation target: v̄=2.5v on the diagonal, v̄·ρ̄=2.5v off
	// it (ρ̄=1). Blend with δ=0.03.
	var v float64
	for _, xi := range x {
		v += xi * xi
	}
	v /= 49

	assert.InDelta(t, 1.045*v, res.cov[0][0], 1e-12)
	assert.InDelta(t, 3.955*v, res.cov[1][1], 1e-12)
	assert.InDelta(t, 2.015*v, res.cov[0][1], 1e-12)
	assert.InDelta(t, res.cov[0][1], res.cov[1][0], 1e-15)

	// Shrinkage pulls the implied correlation strictly inside (-1, 1).
	assert.Less(t, res.corr[0][1], 1.0)
	assert.Greater(t, res.corr[0][1], 0.9)
}

func TestEstimateCovariance_TooFewRows(t *testing.T) {
	engine := NewEngine(Config{})

	_, err := engine.estimateCovariance([][]float64{{0.01, 0.02}}, []string{"A", "B"})
	assert.ErrorIs(t, err, ErrInsufficientHistory)
}

func TestCorrelationFromCovariance(t *testing.T) {
	t.Run("zero variance defines correlation as zero", func(t *testing.T) {
		cov := [][]float64{{0, 0}, {0, 4e-4}}
		corr := correlationFromCovariance(cov, []float64{0, 0.02})

		assert.Equal(t, 1.0, corr[0][0])
		assert.Equal(t, 1.0, corr[1][1])
		assert.Zero(t, corr[0][1])
		assert.Zero(t, corr[1][0])
	})

	t.Run("entries clipped to the unit interval", func(t *testing.T) {
		// A numerically impossible ρ=1.2 from accumulated drift.
		cov := [][]float64{{1e-4, 1.2e-4}, {1.2e-4, 1e-4}}
		corr := correlationFromCovariance(cov, []float64{0.01, 0.01})

		assert.Equal(t, 1.0, corr[0][1])
	})
}

func TestDistanceFromCorrelation(t *testing.T) {
	corr := [][]float64{
		{1, 0.5, -1},
		{0.5, 1, 0},
		{-1, 0, 1},
	}

	dist := distanceFromCorrelation(corr)

	assert.Zero(t, dist[0][0])
	assert.InDelta(t, 1.0, dist[0][1], 1e-12)
	assert.InDelta(t, 2.0, dist[0][2], 1e-12)
	assert.InDelta(t, math.Sqrt2, dist[1][2], 1e-12)
}

func TestStandardDeviations_NegativeVarianceClamped(t *testing.T) {
	engine := NewEngine(Config{})
	var warnings []string

	cov := [][]float64{{-1e-9, 0}, {0, 4e-4}}
	sds := engine.standardDeviations(cov, []string{"AAA", "BBB"}, &warnings)

	assert.Zero(t, sds[0])
	assert.InDelta(t, 0.02, sds[1], 1e-12)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "AAA")
	assert.Contains(t, warnings[0], "clamped")
}

func TestNearDuplicates(t *testing.T) {
	engine := NewEngine(Config{})

	t.Run("perfectly duplicated series flagged", func(t *testing.T) {
		// Horizon 2 keeps the raw ρ=1 visible to the scan.
		raw := NewEngine(Config{ShrinkageHorizon: 2})
		x, _ := alternating(50)

		res, err := raw.estimateCovariance(rowsOf(x, x), []string{"SPY", "VOO"})
		require.NoError(t, err)

		require.Len(t, res.duplicates, 1)
		assert.Equal(t, "SPY", res.duplicates[0].TickerA)
		assert.Equal(t, "VOO", res.duplicates[0].TickerB)
		assert.InDelta(t, 1.0, res.duplicates[0].Correlation, 1e-12)
	})

	t.Run("strong negative correlation also flagged", func(t *testing.T) {
		corr := [][]float64{{1, -0.9995}, {-0.9995, 1}}
		pairs := engine.nearDuplicates(corr, []string{"A", "B"})
		require.Len(t, pairs, 1)
		assert.Equal(t, -0.9995, pairs[0].Correlation)
	})

	t.Run("ordinary correlations pass", func(t *testing.T) {
		corr := [][]float64{{1, 0.8}, {0.8, 1}}
		assert.Empty(t, engine.nearDuplicates(corr, []string{"A", "B"}))
	})
}

func TestAverageOffDiagonal(t *testing.T) {
	corr := [][]float64{
		{1, 0.2, 0.4},
		{0.2, 1, 0.6},
		{0.4, 0.6, 1},
	}
	assert.InDelta(t, 0.4, averageOffDiagonal(corr), 1e-12)

	assert.Zero(t, averageOffDiagonal([][]float64{{1}}))
}

func TestMaxAsymmetry(t *testing.T) {
	m := [][]float64{{1, 2}, {2 + 1e-9, 1}}
	assert.InDelta(t, 1e-9, maxAsymmetry(m), 1e-15)
	assert.Zero(t, maxAsymmetry([][]float64{{1, 3}, {3, 1}}))
}
