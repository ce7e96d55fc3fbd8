package risk

// PricePoint is a single daily close. Date, when present, is an ISO
// calendar day ("2006-01-02"). A basket falls back to length-based
// alignment as soon as any point of any series is undated.
type PricePoint struct {
	Date  string  `json:"date,omitempty"`
	Close float64 `json:"close"`
}

// AssetSeries is one asset's target weight and price history as supplied
// by the caller. Prices must be chronologically ordered when dated. The
// engine never mutates the input.
type AssetSeries struct {
	Ticker string       `json:"ticker"`
	Weight float64      `json:"weight"`
	Prices []PricePoint `json:"prices"`
}

// ReportInput is one report request: a weighted basket, the capital the
// weights apply to, and an optional confidence level and scenario set.
type ReportInput struct {
	Assets     []AssetSeries
	Capital    float64
	Confidence float64    // zero selects the engine default
	Scenarios  []Scenario // nil selects DefaultScenarios
}
