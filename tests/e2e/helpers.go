// Shared helper functions for E2E tests
package e2e

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/riskd/internal/risk"
)

// startEmbeddedNATS starts an embedded NATS server for testing
func startEmbeddedNATS(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:           "127.0.0.1",
		Port:           -1, // Random port
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 4096,
	}
	ns, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go ns.Start()

	// Wait for server to be ready
	if !ns.ReadyForConnections(4 * time.Second) {
		t.Fatal("NATS server did not start in time")
	}

	return ns
}

// postJSON drives one POST through the router and returns the recorder
func postJSON(t *testing.T, router http.Handler, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// getJSON drives one GET through the router and returns the recorder
func getJSON(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// basketPayload builds a report request over a two-asset basket: one
// linear grower and one compounding grower, so returns are correlated
// but not identical.
func basketPayload(days int) map[string]interface{} {
	linear := make([]risk.PricePoint, days)
	compound := make([]risk.PricePoint, days)
	for i := 0; i < days; i++ {
		linear[i] = risk.PricePoint{Close: 100 + float64(i)}
		compound[i] = risk.PricePoint{Close: 120 * math.Pow(1.012, float64(i))}
	}
	return map[string]interface{}{
		"positions": []map[string]interface{}{
			{"ticker": "SPY", "weight": 0.6, "prices": linear},
			{"ticker": "AGG", "weight": 0.4, "prices": compound},
		},
		"capital":    1000000,
		"confidence": 0.95,
	}
}
