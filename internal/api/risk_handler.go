package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/quantfolio/riskd/internal/events"
	"github.com/quantfolio/riskd/internal/metrics"
	"github.com/quantfolio/riskd/internal/risk"
)

// ReportPosition is one basket entry in a report request. Inline prices
// are honored as-is; positions without prices are resolved through the
// price source.
type ReportPosition struct {
	Ticker string            `json:"ticker" binding:"required"`
	Weight float64           `json:"weight" binding:"required,gt=0"`
	Prices []risk.PricePoint `json:"prices"`
}

// ReportRequest is the body of POST /api/v1/risk/report.
type ReportRequest struct {
	Positions    []ReportPosition `json:"positions" binding:"required,min=1,dive"`
	Capital      float64          `json:"capital" binding:"required,gt=0"`
	Confidence   float64          `json:"confidence" binding:"omitempty,gt=0,lt=1"`
	LookbackDays int              `json:"lookback_days" binding:"omitempty,gt=0"`
}

// StressPosition is one holding in a stress-only request.
type StressPosition struct {
	Ticker     string  `json:"ticker" binding:"required"`
	Value      float64 `json:"value" binding:"required,gt=0"`
	Volatility float64 `json:"volatility" binding:"required,gt=0"`
}

// StressRequest is the body of POST /api/v1/risk/stress. Scenarios
// filters the catalog by name; empty runs the whole catalog.
type StressRequest struct {
	Positions []StressPosition `json:"positions" binding:"required,min=1,dive"`
	Scenarios []string         `json:"scenarios"`
}

// handleComputeReport runs the full risk pipeline for a basket. A
// degraded report still returns 200 with the reason in the report's
// error field; only malformed requests and price-resolution failures
// map to error statuses.
func (s *Server) handleComputeReport(c *gin.Context) {
	start := time.Now()

	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	lookback := req.LookbackDays
	if lookback <= 0 {
		lookback = s.lookback
	}

	// Resolve price history for positions that carry none inline
	var missing []string
	for _, p := range req.Positions {
		if len(p.Prices) == 0 {
			missing = append(missing, p.Ticker)
		}
	}

	fetched := map[string][]risk.PricePoint{}
	if len(missing) > 0 {
		if s.prices == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error": "price source not configured",
			})
			return
		}

		basket, err := s.prices.FetchBasket(c.Request.Context(), missing, lookback)
		if err != nil {
			log.Error().Err(err).Strs("tickers", missing).Msg("Failed to resolve price history")
			c.JSON(http.StatusBadGateway, gin.H{
				"error": fmt.Sprintf("failed to fetch price history: %v", err),
			})
			return
		}
		fetched = basket
	}

	assets := make([]risk.AssetSeries, 0, len(req.Positions))
	for _, p := range req.Positions {
		prices := p.Prices
		if len(prices) == 0 {
			prices = fetched[p.Ticker]
		}
		assets = append(assets, risk.AssetSeries{
			Ticker: p.Ticker,
			Weight: p.Weight,
			Prices: prices,
		})
	}

	report := s.engine.ComputeReport(risk.ReportInput{
		Assets:     assets,
		Capital:    req.Capital,
		Confidence: req.Confidence,
		Scenarios:  s.catalog.Scenarios,
	})

	durationMs := time.Since(start).Milliseconds()

	reportStatus := metrics.ReportStatusOK
	if report.Error != "" {
		reportStatus = metrics.ReportStatusDegraded
	}
	metrics.RecordReportComputation(reportStatus, float64(durationMs), report.Observations, len(report.Assets))

	event := events.NewReportEvent(report, durationMs)
	if err := s.events.PublishReportCompleted(c.Request.Context(), event); err != nil {
		log.Warn().Err(err).Msg("Failed to publish report event")
	}

	if s.alerts != nil {
		// Rule evaluation fans out to external channels; a detached
		// context keeps it alive after the response is written.
		go func(report *risk.Report) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			s.alerts.EvaluateReport(ctx, report, s.rules)
		}(report)
	}

	c.JSON(http.StatusOK, gin.H{
		"report_id":   event.ID,
		"duration_ms": durationMs,
		"report":      report,
	})
}

// handleStressTest runs catalog scenarios against explicit holdings.
func (s *Server) handleStressTest(c *gin.Context) {
	var req StressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("invalid request: %v", err),
		})
		return
	}

	selected := s.catalog.Scenarios
	if len(req.Scenarios) > 0 {
		selected = make([]risk.Scenario, 0, len(req.Scenarios))
		for _, name := range req.Scenarios {
			scenario, ok := s.catalog.Lookup(name)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": fmt.Sprintf("unknown scenario %q", name),
				})
				return
			}
			selected = append(selected, scenario)
		}
	}

	positions := make([]risk.Position, 0, len(req.Positions))
	var totalValue float64
	for _, p := range req.Positions {
		positions = append(positions, risk.Position{
			Ticker:     p.Ticker,
			Value:      p.Value,
			Volatility: p.Volatility,
		})
		totalValue += p.Value
	}

	impacts := s.engine.StressTest(positions, selected)
	metrics.RecordStressRun()

	c.JSON(http.StatusOK, gin.H{
		"portfolio_value": totalValue,
		"scenarios":       risk.FormatStress(impacts),
		"total":           len(impacts),
	})
}

// handleListScenarios returns the active stress catalog.
func (s *Server) handleListScenarios(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":           s.catalog.Metadata.Name,
		"schema_version": s.catalog.Metadata.SchemaVersion,
		"scenarios":      s.catalog.Scenarios,
		"total":          len(s.catalog.Scenarios),
	})
}
