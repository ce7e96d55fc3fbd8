package risk

import (
	"sort"
)

// maxWorstPositions caps how many position-level impacts a scenario
// reports.
const maxWorstPositions = 3

// Scenario is a hypothetical market-wide shock expressed as a decimal
// drop, e.g. -0.20 for a 20% selloff.
type Scenario struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	MarketDrop  float64 `yaml:"market_drop" json:"marketDrop"`
}

// DefaultScenarios returns the built-in shock ladder used when a request
// does not supply its own catalog.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: "mild_pullback", Description: "Routine 5% market pullback", MarketDrop: -0.05},
		{Name: "correction", Description: "10% market correction", MarketDrop: -0.10},
		{Name: "crash", Description: "20% market crash", MarketDrop: -0.20},
		{Name: "black_swan", Description: "40% systemic collapse", MarketDrop: -0.40},
	}
}

// Position is a holding subjected to stress scenarios. Volatility is the
// annualized percentage figure (30 means 30%).
type Position struct {
	Ticker     string  `json:"ticker"`
	Value      float64 `json:"value"`
	Volatility float64 `json:"volatility"`
}

// PositionImpact is the modeled effect of one scenario on one position.
type PositionImpact struct {
	Ticker string  `json:"ticker"`
	Beta   float64 `json:"beta"`
	Drop   float64 `json:"drop"`
	Loss   float64 `json:"loss"`
}

// ScenarioImpact aggregates a scenario's effect across the portfolio.
type ScenarioImpact struct {
	Scenario       Scenario         `json:"scenario"`
	PortfolioLoss  float64          `json:"portfolioLoss"`
	LossPercent    float64          `json:"lossPercent"`
	WorstPositions []PositionImpact `json:"worstPositions"`
}

// StressTest applies each scenario to every position using a volatility
// beta proxy: beta = volatility / reference volatility, so a position
// twice as volatile as the reference asset is assumed to fall twice as
// hard. Per scenario it reports the total loss, the loss as a fraction
// of portfolio value, and the hardest-hit positions.
func (e *Engine) StressTest(positions []Position, scenarios []Scenario) []ScenarioImpact {
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}

	var totalValue float64
	for _, p := range positions {
		totalValue += p.Value
	}

	out := make([]ScenarioImpact, 0, len(scenarios))
	for _, sc := range scenarios {
		impact := ScenarioImpact{Scenario: sc}

		impacts := make([]PositionImpact, 0, len(positions))
		for _, p := range positions {
			beta := 0.0
			if e.cfg.ReferenceVolatility > 0 {
				beta = p.Volatility / e.cfg.ReferenceVolatility
			}
			drop := sc.MarketDrop * beta
			loss := p.Value * drop
			impacts = append(impacts, PositionImpact{
				Ticker: p.Ticker,
				Beta:   beta,
				Drop:   drop,
				Loss:   loss,
			})
			impact.PortfolioLoss += loss
		}

		sort.Slice(impacts, func(i, j int) bool {
			return impacts[i].Loss < impacts[j].Loss
		})
		if len(impacts) > maxWorstPositions {
			impacts = impacts[:maxWorstPositions]
		}
		impact.WorstPositions = impacts

		if totalValue != 0 {
			impact.LossPercent = impact.PortfolioLoss / totalValue
		}
		out = append(out, impact)
	}

	e.log.Debug().
		Int("scenarios", len(out)).
		Int("positions", len(positions)).
		Msg("Stress test completed")
	return out
}
