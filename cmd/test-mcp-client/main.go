package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"os/exec"
)

// Request/response mirror the stdio protocol the risk-report server speaks.
type mcpRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments,omitempty"`
	} `json:"params"`
}

type mcpResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func main() {
	serverPath := flag.String("server", "./bin/risk-report", "Path to the risk-report MCP server binary")
	flag.Parse()

	fmt.Println("=== riskd MCP Client Test ===")
	fmt.Println()

	cmd := exec.Command(*serverPath)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		fmt.Printf("  ✗ Failed to open stdin pipe: %v\n", err)
		os.Exit(1)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		fmt.Printf("  ✗ Failed to open stdout pipe: %v\n", err)
		os.Exit(1)
	}
	if err := cmd.Start(); err != nil {
		fmt.Printf("  ✗ Failed to start server %s: %v\n", *serverPath, err)
		fmt.Println("  ℹ Build it with: go build -o bin/risk-report ./cmd/mcp-servers/risk-report")
		os.Exit(1)
	}

	enc := json.NewEncoder(stdin)
	dec := json.NewDecoder(stdout)
	nextID := 0

	call := func(method, tool string, args map[string]interface{}) *mcpResponse {
		nextID++
		req := mcpRequest{JSONRPC: "2.0", ID: nextID, Method: method}
		req.Params.Name = tool
		req.Params.Arguments = args

		if err := enc.Encode(req); err != nil {
			fmt.Printf("  ✗ Failed to send %s: %v\n", method, err)
			os.Exit(1)
		}
		var resp mcpResponse
		if err := dec.Decode(&resp); err != nil {
			fmt.Printf("  ✗ Failed to read response for %s: %v\n", method, err)
			os.Exit(1)
		}
		return &resp
	}

	// Handshake
	resp := call("initialize", "", nil)
	if resp.Error != nil {
		fmt.Printf("  ✗ initialize failed: %s\n", resp.Error.Message)
		os.Exit(1)
	}
	fmt.Println("  ✓ initialize handshake complete")

	// Tool discovery
	resp = call("tools/list", "", nil)
	if resp.Error != nil {
		fmt.Printf("  ✗ tools/list failed: %s\n", resp.Error.Message)
		os.Exit(1)
	}
	var toolList struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(resp.Result, &toolList); err != nil {
		fmt.Printf("  ✗ Unexpected tools/list payload: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  ✓ %d tools available:\n", len(toolList.Tools))
	for _, tool := range toolList.Tools {
		fmt.Printf("      - %s: %s\n", tool.Name, tool.Description)
	}
	fmt.Println()

	// Stress test against the built-in scenario ladder
	fmt.Println("Stress test (built-in ladder):")
	resp = call("tools/call", "run_stress_test", map[string]interface{}{
		"positions": []map[string]interface{}{
			{"ticker": "SPY", "value": 600000, "volatility": 18},
			{"ticker": "AGG", "value": 400000, "volatility": 6},
		},
	})
	if resp.Error != nil {
		fmt.Printf("  ✗ run_stress_test failed: %s\n", resp.Error.Message)
	} else {
		var stress struct {
			PortfolioValue float64 `json:"portfolio_value"`
			Scenarios      []struct {
				Name          string `json:"name"`
				PortfolioLoss string `json:"portfolioLoss"`
				LossPercent   string `json:"lossPercent"`
			} `json:"scenarios"`
		}
		if err := json.Unmarshal(resp.Result, &stress); err != nil {
			fmt.Printf("  ✗ Unexpected stress payload: %v\n", err)
		} else {
			fmt.Printf("  ✓ Portfolio value: %.2f\n", stress.PortfolioValue)
			for _, sc := range stress.Scenarios {
				fmt.Printf("      %-14s loss %s (%s%%)\n", sc.Name, sc.PortfolioLoss, sc.LossPercent)
			}
		}
	}
	fmt.Println()

	// Full report over synthetic series
	fmt.Println("Risk report (synthetic two-asset basket):")
	resp = call("tools/call", "compute_risk_report", map[string]interface{}{
		"positions": []map[string]interface{}{
			{"ticker": "AAA", "weight": 0.6, "prices": syntheticSeries(252, 100, 0.0004)},
			{"ticker": "BBB", "weight": 0.4, "prices": syntheticSeries(252, 120, 0.0002)},
		},
		"capital":    1000000,
		"confidence": 0.95,
	})
	if resp.Error != nil {
		fmt.Printf("  ✗ compute_risk_report failed: %s\n", resp.Error.Message)
	} else {
		var report struct {
			Observations int `json:"observations"`
			VaR          struct {
				Diversified   string `json:"diversified"`
				Undiversified string `json:"undiversified"`
				CVaR          string `json:"cvar"`
			} `json:"var"`
			Error string `json:"error"`
		}
		if err := json.Unmarshal(resp.Result, &report); err != nil {
			fmt.Printf("  ✗ Unexpected report payload: %v\n", err)
		} else if report.Error != "" {
			fmt.Printf("  ✗ Report degraded: %s\n", report.Error)
		} else {
			fmt.Printf("  ✓ Observations: %d\n", report.Observations)
			fmt.Printf("      Diversified VaR:   %s\n", report.VaR.Diversified)
			fmt.Printf("      Undiversified VaR: %s\n", report.VaR.Undiversified)
			fmt.Printf("      CVaR:              %s\n", report.VaR.CVaR)
		}
	}

	stdin.Close()
	if err := cmd.Wait(); err != nil {
		fmt.Printf("  ✗ Server exited with error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
	fmt.Println("=== All MCP calls completed ===")
}

// syntheticSeries builds a deterministic drifting price path with a mild
// oscillation so the correlation structure is not degenerate.
func syntheticSeries(n int, start, drift float64) []map[string]interface{} {
	prices := make([]map[string]interface{}, n)
	price := start
	for i := 0; i < n; i++ {
		price *= 1 + drift + 0.003*math.Sin(float64(i)/5)
		prices[i] = map[string]interface{}{"close": price}
	}
	return prices
}
