//nolint:goconst // MCP tool names are defined by protocol spec
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfolio/riskd/internal/metrics"
	"github.com/quantfolio/riskd/internal/risk"
)

const serverName = "risk-report"

func main() {
	// Setup logging to stderr (stdout is reserved for MCP protocol)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	log.Info().Msg("Risk Report MCP Server starting...")

	// Start MCP server with stdio transport
	server := NewMCPServer()

	if err := server.Run(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// MCPServer handles MCP protocol over stdio
type MCPServer struct {
	engine *risk.Engine
}

// NewMCPServer creates a server around a default-configured engine
func NewMCPServer() *MCPServer {
	return &MCPServer{
		engine: risk.NewEngine(risk.DefaultConfig()),
	}
}

// Run starts the MCP server
func (s *MCPServer) Run() error {
	log.Info().Msg("MCP server ready, listening on stdio")

	// Read from stdin, process requests, write to stdout
	decoder := json.NewDecoder(os.Stdin)
	encoder := json.NewEncoder(os.Stdout)

	for {
		var request MCPRequest
		if err := decoder.Decode(&request); err != nil {
			if err.Error() == "EOF" {
				log.Info().Msg("Client disconnected")
				return nil
			}
			log.Error().Err(err).Msg("Failed to decode request")
			continue
		}

		log.Debug().
			Str("method", request.Method).
			Str("tool", request.Params.Name).
			Msg("Received request")

		// Handle request
		response := s.handleRequest(&request)

		// Send response
		if err := encoder.Encode(response); err != nil {
			log.Error().Err(err).Msg("Failed to encode response")
			return err
		}
	}
}

// MCPRequest represents an MCP tool call request
type MCPRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	} `json:"params"`
}

// MCPResponse represents an MCP response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents an MCP error
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// handleRequest routes the request to the appropriate handler
func (s *MCPServer) handleRequest(req *MCPRequest) *MCPResponse {
	resp := &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
	}

	switch req.Method {
	case "initialize":
		resp.Result = map[string]interface{}{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]interface{}{
				"tools": map[string]bool{
					"listChanged": true,
				},
			},
			"serverInfo": map[string]string{
				"name":    serverName,
				"version": "1.0.0",
			},
		}
	case "tools/list":
		resp.Result = s.listTools()
	case "tools/call":
		result, err := s.callTool(req.Params.Name, req.Params.Arguments)
		if err != nil {
			resp.Error = &MCPError{
				Code:    -32603,
				Message: err.Error(),
			}
		} else {
			resp.Result = result
		}
	default:
		resp.Error = &MCPError{
			Code:    -32601,
			Message: fmt.Sprintf("Method not found: %s", req.Method),
		}
	}

	return resp
}

// listTools returns the list of available tools
func (s *MCPServer) listTools() interface{} {
	return map[string]interface{}{
		"tools": []map[string]interface{}{
			{
				"name":        "compute_risk_report",
				"description": "Compute a full portfolio risk report (VaR, CVaR, volatility, correlation, stress scenarios) from inline price series",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"positions": map[string]interface{}{
							"type":        "array",
							"items":       map[string]string{"type": "object"},
							"description": "Basket entries: [{ticker, weight, prices: [{date?, close}]}] with closes oldest first",
						},
						"capital": map[string]interface{}{
							"type":        "number",
							"description": "Portfolio capital the weights apply to",
						},
						"confidence": map[string]interface{}{
							"type":        "number",
							"description": "Confidence level: 0.90, 0.95 or 0.99 (default 0.95)",
						},
					},
					"required": []string{"positions", "capital"},
				},
			},
			{
				"name":        "run_stress_test",
				"description": "Apply market-shock scenarios to explicit holdings using a volatility beta proxy",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"positions": map[string]interface{}{
							"type":        "array",
							"items":       map[string]string{"type": "object"},
							"description": "Holdings: [{ticker, value, volatility}] with volatility as annualized percent",
						},
						"scenarios": map[string]interface{}{
							"type":        "array",
							"items":       map[string]string{"type": "object"},
							"description": "Optional custom scenarios: [{name, description?, marketDrop}] with marketDrop as negative decimal; omit for the built-in ladder",
						},
					},
					"required": []string{"positions"},
				},
			},
			{
				"name":        "correlation_matrix",
				"description": "Estimate the shrunk correlation and distance matrices for a set of price series",
				"inputSchema": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"series": map[string]interface{}{
							"type":        "array",
							"items":       map[string]string{"type": "object"},
							"description": "Price series: [{ticker, prices: [{date?, close}]}] with closes oldest first",
						},
					},
					"required": []string{"series"},
				},
			},
		},
	}
}

// callTool executes the specified tool
func (s *MCPServer) callTool(name string, args map[string]interface{}) (interface{}, error) {
	start := time.Now()
	defer func() {
		metrics.RecordMCPToolCall(name, serverName, float64(time.Since(start).Milliseconds()))
	}()

	switch name {
	case "compute_risk_report":
		return s.computeRiskReport(args)
	case "run_stress_test":
		return s.runStressTest(args)
	case "correlation_matrix":
		return s.correlationMatrix(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// decodeArgs maps loosely-typed MCP arguments onto a typed request
func decodeArgs(args map[string]interface{}, v interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

type reportPosition struct {
	Ticker string            `json:"ticker"`
	Weight float64           `json:"weight"`
	Prices []risk.PricePoint `json:"prices"`
}

type reportArgs struct {
	Positions  []reportPosition `json:"positions"`
	Capital    float64          `json:"capital"`
	Confidence float64          `json:"confidence"`
}

// computeRiskReport runs the full pipeline over inline series
func (s *MCPServer) computeRiskReport(args map[string]interface{}) (interface{}, error) {
	var req reportArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}

	if len(req.Positions) == 0 {
		return nil, fmt.Errorf("positions is required")
	}
	if req.Capital <= 0 {
		return nil, fmt.Errorf("capital must be positive (got %f)", req.Capital)
	}

	assets := make([]risk.AssetSeries, 0, len(req.Positions))
	for i, p := range req.Positions {
		if p.Ticker == "" {
			return nil, fmt.Errorf("positions[%d]: ticker is required", i)
		}
		if p.Weight <= 0 {
			return nil, fmt.Errorf("positions[%d]: weight must be positive (got %f)", i, p.Weight)
		}
		if len(p.Prices) == 0 {
			return nil, fmt.Errorf("positions[%d]: prices is required", i)
		}
		assets = append(assets, risk.AssetSeries{
			Ticker: p.Ticker,
			Weight: p.Weight,
			Prices: p.Prices,
		})
	}

	report := s.engine.ComputeReport(risk.ReportInput{
		Assets:     assets,
		Capital:    req.Capital,
		Confidence: req.Confidence,
	})

	log.Info().
		Int("assets", len(report.Assets)).
		Int("observations", report.Observations).
		Str("error", report.Error).
		Msg("Risk report computed")

	return report, nil
}

type stressArgs struct {
	Positions []risk.Position `json:"positions"`
	Scenarios []risk.Scenario `json:"scenarios"`
}

// runStressTest applies scenarios to explicit holdings
func (s *MCPServer) runStressTest(args map[string]interface{}) (interface{}, error) {
	var req stressArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}

	if len(req.Positions) == 0 {
		return nil, fmt.Errorf("positions is required")
	}

	var totalValue float64
	for i, p := range req.Positions {
		if p.Ticker == "" {
			return nil, fmt.Errorf("positions[%d]: ticker is required", i)
		}
		if p.Value <= 0 {
			return nil, fmt.Errorf("positions[%d]: value must be positive (got %f)", i, p.Value)
		}
		if p.Volatility <= 0 {
			return nil, fmt.Errorf("positions[%d]: volatility must be positive (got %f)", i, p.Volatility)
		}
		totalValue += p.Value
	}

	for i, sc := range req.Scenarios {
		if sc.Name == "" {
			return nil, fmt.Errorf("scenarios[%d]: name is required", i)
		}
		if sc.MarketDrop >= 0 {
			return nil, fmt.Errorf("scenarios[%d]: marketDrop must be a negative decimal (got %f)", i, sc.MarketDrop)
		}
	}

	impacts := s.engine.StressTest(req.Positions, req.Scenarios)

	return map[string]interface{}{
		"portfolio_value": totalValue,
		"scenarios":       risk.FormatStress(impacts),
	}, nil
}

type correlationSeries struct {
	Ticker string            `json:"ticker"`
	Prices []risk.PricePoint `json:"prices"`
}

type correlationArgs struct {
	Series []correlationSeries `json:"series"`
}

// correlationMatrix estimates the shrunk correlation structure of a
// basket, weighting every series equally
func (s *MCPServer) correlationMatrix(args map[string]interface{}) (interface{}, error) {
	var req correlationArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}

	if len(req.Series) < 2 {
		return nil, fmt.Errorf("series requires at least 2 entries (got %d)", len(req.Series))
	}

	weight := 1.0 / float64(len(req.Series))
	assets := make([]risk.AssetSeries, 0, len(req.Series))
	for i, entry := range req.Series {
		if entry.Ticker == "" {
			return nil, fmt.Errorf("series[%d]: ticker is required", i)
		}
		if len(entry.Prices) == 0 {
			return nil, fmt.Errorf("series[%d]: prices is required", i)
		}
		assets = append(assets, risk.AssetSeries{
			Ticker: entry.Ticker,
			Weight: weight,
			Prices: entry.Prices,
		})
	}

	report := s.engine.ComputeReport(risk.ReportInput{
		Assets:  assets,
		Capital: 1,
	})
	if report.Error != "" {
		return nil, fmt.Errorf("estimation failed: %s", report.Error)
	}

	return map[string]interface{}{
		"tickers":             report.Correlation.Tickers,
		"observations":        report.Observations,
		"correlation":         report.Raw.Correlation,
		"distance":            report.Raw.Distance,
		"std_devs":            report.Raw.StdDevs,
		"near_duplicates":     report.Correlation.NearDuplicates,
		"average_correlation": report.Metrics.AverageCorrelation,
	}, nil
}
