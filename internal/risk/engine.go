// Package risk implements the portfolio risk and covariance engine:
// time-series alignment, sample covariance with constant-correlation
// shrinkage, parametric VaR and historical CVaR, autocorrelation-aware
// annualization, and scenario stress testing.
//
// Every computation is a pure function over its arguments. The Engine
// carries configuration only, so one instance can serve concurrent
// report requests without locking.
package risk

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds the tunable parameters of the risk engine.
type Config struct {
	// TradingDays is the day count used for annualization (default 252).
	TradingDays int

	// ShrinkageHorizon is the observation count below which the sample
	// covariance is blended with the constant-correlation target.
	ShrinkageHorizon int

	// MinObservations is the minimum number of aligned price rows a basket
	// must provide before a report is considered reliable.
	MinObservations int

	// ReferenceVolatility is the annualized market volatility (in percent)
	// that stress-test betas are measured against.
	ReferenceVolatility float64

	// SingularityThreshold flags asset pairs whose correlation magnitude
	// exceeds it as near-duplicates.
	SingularityThreshold float64

	// AutocorrLag is the lag used when estimating serial correlation of
	// realized portfolio returns.
	AutocorrLag int

	// AutocorrThreshold is the autocorrelation magnitude above which the
	// annualization factor is adjusted for serial correlation.
	AutocorrThreshold float64

	// DefaultConfidence is used when a request does not specify a VaR
	// confidence level.
	DefaultConfidence float64
}

// DefaultConfig returns the standard engine parameters.
func DefaultConfig() Config {
	return Config{
		TradingDays:          252,
		ShrinkageHorizon:     252,
		MinObservations:      30,
		ReferenceVolatility:  15.0,
		SingularityThreshold: 0.999,
		AutocorrLag:          1,
		AutocorrThreshold:    0.1,
		DefaultConfidence:    0.95,
	}
}

// Engine computes portfolio risk reports.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

// NewEngine creates a risk engine. Zero-valued config fields are filled
// from DefaultConfig, so NewEngine(Config{}) yields the standard engine.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.TradingDays <= 0 {
		cfg.TradingDays = def.TradingDays
	}
	if cfg.ShrinkageHorizon <= 0 {
		cfg.ShrinkageHorizon = def.ShrinkageHorizon
	}
	if cfg.MinObservations <= 0 {
		cfg.MinObservations = def.MinObservations
	}
	if cfg.ReferenceVolatility <= 0 {
		cfg.ReferenceVolatility = def.ReferenceVolatility
	}
	if cfg.SingularityThreshold <= 0 {
		cfg.SingularityThreshold = def.SingularityThreshold
	}
	if cfg.AutocorrLag <= 0 {
		cfg.AutocorrLag = def.AutocorrLag
	}
	if cfg.AutocorrThreshold <= 0 {
		cfg.AutocorrThreshold = def.AutocorrThreshold
	}
	if cfg.DefaultConfidence <= 0 {
		cfg.DefaultConfidence = def.DefaultConfidence
	}

	return &Engine{
		cfg: cfg,
		log: log.With().Str("component", "risk_engine").Logger(),
	}
}

// Configuration returns the effective engine parameters.
func (e *Engine) Configuration() Config {
	return e.cfg
}
