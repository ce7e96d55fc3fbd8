package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/riskd/internal/risk"
)

// startTestNATSServer starts an embedded NATS server for testing
func startTestNATSServer(t *testing.T) *server.Server {
	opts := &server.Options{
		Host: "127.0.0.1",
		Port: -1, // Random port
	}

	ns, err := server.NewServer(opts)
	require.NoError(t, err)

	go ns.Start()

	// Wait for server to be ready
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}

	return ns
}

// setupTestBus creates a bus connected to an embedded server
func setupTestBus(t *testing.T) (*Bus, *server.Server) {
	ns := startTestNATSServer(t)

	bus, err := Connect(BusConfig{
		URL:    ns.ClientURL(),
		Prefix: "test",
	})
	require.NoError(t, err)
	require.NotNil(t, bus)

	return bus, ns
}

func TestConnect(t *testing.T) {
	ns := startTestNATSServer(t)
	defer ns.Shutdown()

	bus, err := Connect(BusConfig{
		URL:    ns.ClientURL(),
		Prefix: "test",
	})
	require.NoError(t, err)
	require.NotNil(t, bus)
	assert.Equal(t, "test", bus.prefix)
	assert.True(t, bus.nc.IsConnected())

	_ = bus.Close() // Test cleanup
}

func TestConnect_PrefixNormalization(t *testing.T) {
	ns := startTestNATSServer(t)
	defer ns.Shutdown()

	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{"empty falls back to default", "", "riskd"},
		{"trailing dot trimmed", "riskd.", "riskd"},
		{"whitespace only falls back", "   ", "riskd"},
		{"plain prefix kept", "staging", "staging"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus, err := Connect(BusConfig{URL: ns.ClientURL(), Prefix: tt.prefix})
			require.NoError(t, err)
			assert.Equal(t, tt.want, bus.prefix)
			assert.Equal(t, tt.want+".reports.completed", bus.subject(SubjectReportsCompleted))
			_ = bus.Close() // Test cleanup
		})
	}
}

func TestConnect_ServerUnreachable(t *testing.T) {
	_, err := Connect(BusConfig{
		URL:    "nats://127.0.0.1:1",
		Prefix: "test",
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to NATS")
}

func TestDefaultBusConfig(t *testing.T) {
	config := DefaultBusConfig()

	assert.Equal(t, "nats://localhost:4222", config.URL)
	assert.Equal(t, "riskd", config.Prefix)
}

func TestNewReportEvent(t *testing.T) {
	report := &risk.Report{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Capital:     "1000000.00",
		Confidence:  0.95,
		Assets:      []string{"SPY", "AGG"},
		VaR: risk.PortfolioVaR{
			Diversified:   "16500.25",
			Undiversified: "18200.00",
		},
	}

	event := NewReportEvent(report, 42)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, []string{"SPY", "AGG"}, event.Tickers)
	assert.InDelta(t, 1000000.0, event.Capital, 1e-9)
	assert.InDelta(t, 0.95, event.Confidence, 1e-9)
	assert.InDelta(t, 16500.25, event.DiversifiedVaR, 1e-9)
	assert.Empty(t, event.Error)
	assert.Equal(t, int64(42), event.DurationMs)
	assert.False(t, event.GeneratedAt.IsZero())
}

func TestNewReportEvent_DegradedReport(t *testing.T) {
	// A degraded report carries zeroed figures and an error string.
	report := &risk.Report{
		Capital:    "250000.00",
		Confidence: 0.99,
		Assets:     []string{"SPY"},
		VaR:        risk.PortfolioVaR{Diversified: "0.00"},
		Error:      "insufficient overlapping history: need at least 30 common dates, have 12",
	}

	event := NewReportEvent(report, 7)

	assert.InDelta(t, 250000.0, event.Capital, 1e-9)
	assert.InDelta(t, 0.0, event.DiversifiedVaR, 1e-9)
	assert.Contains(t, event.Error, "insufficient overlapping history")
}

func TestPublishReportCompleted(t *testing.T) {
	bus, ns := setupTestBus(t)
	defer ns.Shutdown()
	defer func() { _ = bus.Close() }() // Test cleanup

	ctx := context.Background()

	// Subscribe to receive events
	var receivedEvent *ReportEvent
	var wg sync.WaitGroup
	wg.Add(1)

	sub, err := bus.SubscribeReportCompleted(func(event *ReportEvent) {
		receivedEvent = event
		wg.Done()
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }() // Test cleanup

	// Give subscription time to establish
	time.Sleep(100 * time.Millisecond)

	event := &ReportEvent{
		Tickers:        []string{"SPY", "AGG", "GLD"},
		Capital:        500000,
		Confidence:     0.95,
		DiversifiedVaR: 12345.67,
		DurationMs:     18,
	}
	err = bus.PublishReportCompleted(ctx, event)
	require.NoError(t, err)

	// ID and timestamp are filled in during publish
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.GeneratedAt.IsZero())

	// Wait for event
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Success
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for event")
	}

	require.NotNil(t, receivedEvent)
	assert.Equal(t, event.ID, receivedEvent.ID)
	assert.Equal(t, []string{"SPY", "AGG", "GLD"}, receivedEvent.Tickers)
	assert.InDelta(t, 500000.0, receivedEvent.Capital, 1e-9)
	assert.InDelta(t, 12345.67, receivedEvent.DiversifiedVaR, 1e-9)
	assert.Equal(t, int64(18), receivedEvent.DurationMs)
}

func TestPublishReportCompleted_CancelledContext(t *testing.T) {
	bus, ns := setupTestBus(t)
	defer ns.Shutdown()
	defer func() { _ = bus.Close() }() // Test cleanup

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.PublishReportCompleted(ctx, &ReportEvent{Tickers: []string{"SPY"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPublishReportCompleted_Disconnected(t *testing.T) {
	bus, ns := setupTestBus(t)
	defer func() { _ = bus.Close() }() // Test cleanup

	ns.Shutdown()

	// The client notices the shutdown asynchronously
	require.Eventually(t, func() bool {
		return !bus.nc.IsConnected()
	}, 2*time.Second, 50*time.Millisecond)

	err := bus.PublishReportCompleted(context.Background(), &ReportEvent{Tickers: []string{"SPY"}})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not connected")
}

func TestSubscribeReportCompleted_IgnoresMalformedPayload(t *testing.T) {
	bus, ns := setupTestBus(t)
	defer ns.Shutdown()
	defer func() { _ = bus.Close() }() // Test cleanup

	var receivedCount int
	var mu sync.Mutex

	sub, err := bus.SubscribeReportCompleted(func(event *ReportEvent) {
		mu.Lock()
		receivedCount++
		mu.Unlock()
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }() // Test cleanup

	// Give subscription time to establish
	time.Sleep(100 * time.Millisecond)

	err = bus.nc.Publish(bus.subject(SubjectReportsCompleted), []byte("{not json"))
	require.NoError(t, err)

	// Wait a bit
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, receivedCount)
}

func TestSubscription_IsValid(t *testing.T) {
	bus, ns := setupTestBus(t)
	defer ns.Shutdown()
	defer func() { _ = bus.Close() }() // Test cleanup

	sub, err := bus.SubscribeReportCompleted(func(event *ReportEvent) {})
	require.NoError(t, err)

	// Should be valid initially
	assert.True(t, sub.IsValid())

	// Should be invalid after unsubscribe
	_ = sub.Unsubscribe() // Test cleanup
	assert.False(t, sub.IsValid())
}

func TestBusStats(t *testing.T) {
	bus, ns := setupTestBus(t)
	defer ns.Shutdown()
	defer func() { _ = bus.Close() }() // Test cleanup

	stats := bus.Stats()

	assert.NotNil(t, stats)
	assert.Equal(t, true, stats["connected"])
	assert.NotNil(t, stats["status"])
	assert.NotNil(t, stats["connected_url"])
}

func TestNopPublisher(t *testing.T) {
	var pub Publisher = NopPublisher{}

	assert.NoError(t, pub.PublishReportCompleted(context.Background(), &ReportEvent{}))
	assert.Equal(t, false, pub.Stats()["connected"])
	assert.Equal(t, "disabled", pub.Stats()["status"])
	assert.NoError(t, pub.Close())
}
