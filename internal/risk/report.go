package risk

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// weightSumTolerance bounds how far portfolio weights may drift from 1.0
// before the report carries a warning. Weights are never renormalized;
// the caller owns the allocation.
const weightSumTolerance = 0.01

// ==================== Report Types ====================

// Report is the complete risk picture for one portfolio snapshot. Field
// names and fixed-point strings follow the dashboard contract, so every
// field is always present and finite even when computation failed; a
// degraded report carries the failure in Error with zeroed figures.
type Report struct {
	GeneratedAt  string          `json:"generatedAt"`
	Capital      string          `json:"capital"`
	Confidence   float64         `json:"confidence"`
	Observations int             `json:"observations"`
	Assets       []string        `json:"assets"`
	Weights      []float64       `json:"weights"`
	VaR          PortfolioVaR    `json:"var"`
	Metrics      RiskMetrics     `json:"metrics"`
	Correlation  CorrelationData `json:"correlation"`
	Stress       []StressResult  `json:"stress"`
	Raw          *RawMatrices    `json:"raw,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// PortfolioVaR is the loss-estimate block of a report.
type PortfolioVaR struct {
	Diversified            string  `json:"diversified"`
	Undiversified          string  `json:"undiversified"`
	DiversificationBenefit string  `json:"diversificationBenefit"`
	CVaR                   string  `json:"cvar"`
	CVaRPercent            string  `json:"cvarPercent"`
	ZScore                 float64 `json:"zScore"`
	TailDays               int     `json:"tailDays"`
}

// RiskMetrics is the volatility and estimator-diagnostics block.
type RiskMetrics struct {
	DailyVolatility     string `json:"dailyVolatility"`
	AnnualVolatility    string `json:"annualVolatility"`
	AnnualizationFactor string `json:"annualizationFactor"`
	LagAutocorrelation  string `json:"lagAutocorrelation"`
	AutocorrAdjusted    bool   `json:"autocorrAdjusted"`
	ShrinkageIntensity  string `json:"shrinkageIntensity"`
	ShrinkageApplied    bool   `json:"shrinkageApplied"`
	AverageCorrelation  string `json:"averageCorrelation"`
}

// CorrelationData carries the ticker ordering of the raw matrices and
// any near-duplicate pairs found during the singularity scan.
type CorrelationData struct {
	Tickers        []string          `json:"tickers"`
	NearDuplicates []CorrelationPair `json:"nearDuplicates,omitempty"`
}

// StressResult is a formatted scenario impact.
type StressResult struct {
	Name           string           `json:"name"`
	Description    string           `json:"description,omitempty"`
	MarketDrop     string           `json:"marketDrop"`
	PortfolioLoss  string           `json:"portfolioLoss"`
	LossPercent    string           `json:"lossPercent"`
	WorstPositions []PositionResult `json:"worstPositions"`
}

// PositionResult is a formatted position-level stress impact.
type PositionResult struct {
	Ticker string `json:"ticker"`
	Beta   string `json:"beta"`
	Drop   string `json:"drop"`
	Loss   string `json:"loss"`
}

// RawMatrices exposes the unformatted estimates for downstream numeric
// consumers (allocators, clustering) that must not reparse strings.
type RawMatrices struct {
	Covariance  [][]float64 `json:"covariance"`
	Correlation [][]float64 `json:"correlation"`
	Distance    [][]float64 `json:"distance"`
	StdDevs     []float64   `json:"stdDevs"`
}

// ==================== Assembly ====================

// ComputeReport runs the full pipeline: align, estimate, measure, stress,
// format. It never fails outright. Any error along the way downgrades the
// result to a zeroed, structurally complete report whose Error field
// names the cause, so a rendering client always has every field it
// expects.
func (e *Engine) ComputeReport(input ReportInput) *Report {
	confidence := input.Confidence
	if confidence == 0 {
		confidence = e.cfg.DefaultConfidence
	}

	report := &Report{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Capital:     money(input.Capital),
		Confidence:  confidence,
	}

	if len(input.Assets) < 2 {
		return e.failReport(report,
			fmt.Errorf("%w: need at least 2 assets, got %d", ErrInsufficientHistory, len(input.Assets)))
	}

	var weightSum float64
	for _, a := range input.Assets {
		weightSum += a.Weight
	}
	if math.Abs(weightSum-1) > weightSumTolerance {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("portfolio weights sum to %.4f, expected 1.0", weightSum))
		e.log.Warn().
			Float64("weight_sum", weightSum).
			Msg("Portfolio weights do not sum to one")
	}

	basket, err := e.alignSeries(input.Assets)
	if err != nil {
		return e.failReport(report, err)
	}
	report.Warnings = append(report.Warnings, basket.warnings...)
	report.Observations = basket.observations
	report.Assets = basket.tickers
	report.Weights = basket.weights

	cov, err := e.estimateCovariance(basket.returns, basket.tickers)
	if err != nil {
		return e.failReport(report, err)
	}
	report.Warnings = append(report.Warnings, cov.warnings...)

	portReturns, err := portfolioReturns(basket.returns, basket.weights)
	if err != nil {
		return e.failReport(report, err)
	}

	pv, err := e.parametricVaR(cov.cov, cov.stdDevs, basket.weights, input.Capital, confidence, portReturns, &report.Warnings)
	if err != nil {
		return e.failReport(report, err)
	}
	cv := historicalCVaR(portReturns, confidence, input.Capital)

	report.VaR = PortfolioVaR{
		Diversified:            money(pv.diversified),
		Undiversified:          money(pv.undiversified),
		DiversificationBenefit: ratio(pv.benefit),
		CVaR:                   money(cv.magnitude),
		CVaRPercent:            percent(cv.percent),
		ZScore:                 pv.zScore,
		TailDays:               cv.tailSize,
	}
	report.Metrics = RiskMetrics{
		DailyVolatility:     percent(pv.dailyVol),
		AnnualVolatility:    percent(pv.annualVol),
		AnnualizationFactor: ratio(pv.ann.factor),
		LagAutocorrelation:  ratio(pv.ann.lagRho),
		AutocorrAdjusted:    pv.ann.adjusted,
		ShrinkageIntensity:  ratio(cov.shrinkage),
		ShrinkageApplied:    cov.applied,
		AverageCorrelation:  ratio(cov.avgCorr),
	}
	report.Correlation = CorrelationData{
		Tickers:        basket.tickers,
		NearDuplicates: cov.duplicates,
	}

	positions := e.stressPositions(basket, cov.stdDevs, pv.ann.factor, input.Capital)
	impacts := e.StressTest(positions, input.Scenarios)
	report.Stress = formatStress(impacts)

	report.Raw = &RawMatrices{
		Covariance:  cov.cov,
		Correlation: cov.corr,
		Distance:    cov.dist,
		StdDevs:     cov.stdDevs,
	}
	if n := sanitizeRaw(report.Raw); n > 0 {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("%d non-finite matrix entries replaced with zero", n))
		e.log.Warn().
			Int("entries", n).
			Msg("Non-finite matrix entries zeroed in report")
	}

	e.log.Info().
		Int("assets", len(report.Assets)).
		Int("observations", report.Observations).
		Float64("confidence", confidence).
		Str("diversified_var", report.VaR.Diversified).
		Msg("Risk report computed")
	return report
}

// stressPositions projects the aligned basket into stress inputs: each
// asset's value is its weight share of capital and its volatility is the
// annualized standard deviation in percent.
func (e *Engine) stressPositions(basket *alignedBasket, stdDevs []float64, annFactor, capital float64) []Position {
	positions := make([]Position, len(basket.tickers))
	for i, ticker := range basket.tickers {
		positions[i] = Position{
			Ticker:     ticker,
			Value:      basket.weights[i] * capital,
			Volatility: stdDevs[i] * annFactor * 100,
		}
	}
	return positions
}

// FormatStress renders scenario impacts into the fixed-point dashboard
// shape. Exported for the stress endpoint, which serves impacts without
// a surrounding report.
func FormatStress(impacts []ScenarioImpact) []StressResult {
	return formatStress(impacts)
}

func formatStress(impacts []ScenarioImpact) []StressResult {
	out := make([]StressResult, 0, len(impacts))
	for _, im := range impacts {
		sr := StressResult{
			Name:           im.Scenario.Name,
			Description:    im.Scenario.Description,
			MarketDrop:     percent(im.Scenario.MarketDrop),
			PortfolioLoss:  money(im.PortfolioLoss),
			LossPercent:    percent(im.LossPercent),
			WorstPositions: make([]PositionResult, 0, len(im.WorstPositions)),
		}
		for _, pi := range im.WorstPositions {
			sr.WorstPositions = append(sr.WorstPositions, PositionResult{
				Ticker: pi.Ticker,
				Beta:   ratio(pi.Beta),
				Drop:   percent(pi.Drop),
				Loss:   money(pi.Loss),
			})
		}
		out = append(out, sr)
	}
	return out
}

// failReport downgrades the in-progress report to its zeroed form.
// Alignment and dimension errors indicate corrupted inputs and log at
// error level; everything else is an expected data shortfall.
func (e *Engine) failReport(report *Report, err error) *Report {
	if errors.Is(err, ErrAlignment) || errors.Is(err, ErrDimensionMismatch) {
		e.log.Error().
			Err(err).
			Msg("Risk report degraded by pipeline failure")
	} else {
		e.log.Warn().
			Err(err).
			Msg("Risk report degraded")
	}
	zeroReport(report)
	report.Error = err.Error()
	return report
}

// zeroReport fills every block with zero values while keeping the
// structure complete. Collected warnings survive; raw matrices are
// omitted because there is nothing numeric to expose.
func zeroReport(report *Report) {
	if report.Assets == nil {
		report.Assets = []string{}
	}
	if report.Weights == nil {
		report.Weights = []float64{}
	}
	report.Observations = 0
	report.VaR = PortfolioVaR{
		Diversified:            money(0),
		Undiversified:          money(0),
		DiversificationBenefit: ratio(0),
		CVaR:                   money(0),
		CVaRPercent:            percent(0),
	}
	report.Metrics = RiskMetrics{
		DailyVolatility:     percent(0),
		AnnualVolatility:    percent(0),
		AnnualizationFactor: ratio(0),
		LagAutocorrelation:  ratio(0),
		ShrinkageIntensity:  ratio(0),
		AverageCorrelation:  ratio(0),
	}
	report.Correlation = CorrelationData{Tickers: []string{}}
	report.Stress = []StressResult{}
	report.Raw = nil
}

func sanitizeRaw(raw *RawMatrices) int {
	var count int
	for _, m := range [][][]float64{raw.Covariance, raw.Correlation, raw.Distance} {
		for i := range m {
			for j := range m[i] {
				if !finite(m[i][j]) {
					m[i][j] = 0
					count++
				}
			}
		}
	}
	for i := range raw.StdDevs {
		if !finite(raw.StdDevs[i]) {
			raw.StdDevs[i] = 0
			count++
		}
	}
	return count
}
