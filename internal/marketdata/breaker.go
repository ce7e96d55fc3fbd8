package marketdata

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

// Circuit breaker states for Prometheus metrics
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"

	// Metric result labels
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Circuit breaker thresholds per backing service
const (
	// Provider circuit breaker settings (external market data API)
	ProviderMinRequests     = 5                // Minimum requests before tripping
	ProviderFailureRatio    = 0.6              // Failure ratio threshold (60%)
	ProviderOpenTimeout     = 30 * time.Second // How long circuit stays open
	ProviderHalfOpenMaxReqs = 3                // Max requests in half-open state
	ProviderCountInterval   = 10 * time.Second // Window for counting failures

	// Database circuit breaker settings (faster recovery)
	DatabaseMinRequests     = 10               // Minimum requests before tripping
	DatabaseFailureRatio    = 0.6              // Failure ratio threshold (60%)
	DatabaseOpenTimeout     = 15 * time.Second // How long circuit stays open
	DatabaseHalfOpenMaxReqs = 5                // Max requests in half-open state
	DatabaseCountInterval   = 10 * time.Second // Window for counting failures
)

// BreakerManager manages circuit breakers for the price data path.
type BreakerManager struct {
	provider *gobreaker.CircuitBreaker
	database *gobreaker.CircuitBreaker
	metrics  *BreakerMetrics
}

// BreakerMetrics holds Prometheus metrics for circuit breakers.
type BreakerMetrics struct {
	state    *prometheus.GaugeVec
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
}

var (
	globalBreakerMetrics *BreakerMetrics
	breakerMetricsOnce   sync.Once
)

// initBreakerMetrics registers the metric set exactly once.
func initBreakerMetrics() {
	breakerMetricsOnce.Do(func() {
		globalBreakerMetrics = &BreakerMetrics{
			state: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "riskd_circuit_breaker_state",
					Help: "Circuit breaker state (0=closed, 1=open, 2=half_open)",
				},
				[]string{"service"},
			),
			requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "riskd_circuit_breaker_requests_total",
					Help: "Total number of requests through circuit breaker",
				},
				[]string{"service", "result"},
			),
			failures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "riskd_circuit_breaker_failures_total",
					Help: "Total number of failures tracked by circuit breaker",
				},
				[]string{"service"},
			),
		}
	})
}

// ServiceSettings holds circuit breaker configuration for a single service.
type ServiceSettings struct {
	MinRequests     uint32
	FailureRatio    float64
	OpenTimeout     time.Duration
	HalfOpenMaxReqs uint32
	CountInterval   time.Duration
}

// ParseDuration parses a duration string, falling back to a default.
func ParseDuration(durationStr string, defaultValue time.Duration) time.Duration {
	if durationStr == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultValue
	}
	return duration
}

// NewBreakerManager creates a breaker manager with default settings.
func NewBreakerManager() *BreakerManager {
	return NewBreakerManagerWithSettings(nil, nil)
}

// NewBreakerManagerWithSettings creates a breaker manager with Prometheus
// metrics. Nil settings fall back to the constants above.
func NewBreakerManagerWithSettings(providerSettings, databaseSettings *ServiceSettings) *BreakerManager {
	initBreakerMetrics()

	manager := &BreakerManager{
		metrics: globalBreakerMetrics,
	}

	if providerSettings == nil {
		providerSettings = &ServiceSettings{
			MinRequests:     ProviderMinRequests,
			FailureRatio:    ProviderFailureRatio,
			OpenTimeout:     ProviderOpenTimeout,
			HalfOpenMaxReqs: ProviderHalfOpenMaxReqs,
			CountInterval:   ProviderCountInterval,
		}
	}
	if databaseSettings == nil {
		databaseSettings = &ServiceSettings{
			MinRequests:     DatabaseMinRequests,
			FailureRatio:    DatabaseFailureRatio,
			OpenTimeout:     DatabaseOpenTimeout,
			HalfOpenMaxReqs: DatabaseHalfOpenMaxReqs,
			CountInterval:   DatabaseCountInterval,
		}
	}

	manager.provider = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "provider",
		MaxRequests: providerSettings.HalfOpenMaxReqs,
		Interval:    providerSettings.CountInterval,
		Timeout:     providerSettings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= providerSettings.MinRequests && failureRatio >= providerSettings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			manager.updateMetrics("provider", to)
		},
	})

	manager.database = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "database",
		MaxRequests: databaseSettings.HalfOpenMaxReqs,
		Interval:    databaseSettings.CountInterval,
		Timeout:     databaseSettings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= databaseSettings.MinRequests && failureRatio >= databaseSettings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			manager.updateMetrics("database", to)
		},
	})

	manager.updateMetrics("provider", manager.provider.State())
	manager.updateMetrics("database", manager.database.State())

	return manager
}

// NewPassthroughBreakerManager creates a breaker manager that never trips,
// for tests that exercise other components.
func NewPassthroughBreakerManager() *BreakerManager {
	initBreakerMetrics()

	manager := &BreakerManager{
		metrics: globalBreakerMetrics,
	}

	neverTrip := func(counts gobreaker.Counts) bool {
		return false
	}

	manager.provider = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "provider_passthrough",
		MaxRequests: 1000,
		Interval:    0,
		Timeout:     1 * time.Millisecond,
		ReadyToTrip: neverTrip,
	})

	manager.database = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "database_passthrough",
		MaxRequests: 1000,
		Interval:    0,
		Timeout:     1 * time.Millisecond,
		ReadyToTrip: neverTrip,
	})

	return manager
}

// Provider returns the market data provider circuit breaker.
func (m *BreakerManager) Provider() *gobreaker.CircuitBreaker {
	return m.provider
}

// Database returns the database circuit breaker.
func (m *BreakerManager) Database() *gobreaker.CircuitBreaker {
	return m.database
}

// updateMetrics records a circuit breaker state change.
func (m *BreakerManager) updateMetrics(service string, state gobreaker.State) {
	var stateValue float64
	switch state {
	case gobreaker.StateClosed:
		stateValue = 0
	case gobreaker.StateOpen:
		stateValue = 1
	case gobreaker.StateHalfOpen:
		stateValue = 2
	}
	m.metrics.state.WithLabelValues(service).Set(stateValue)
}

// RecordRequest records a request result for metrics.
func (m *BreakerMetrics) RecordRequest(service string, success bool) {
	result := ResultSuccess
	if !success {
		result = ResultFailure
		m.failures.WithLabelValues(service).Inc()
	}
	m.requests.WithLabelValues(service, result).Inc()
}

// Metrics returns the metrics instance for manual recording.
func (m *BreakerManager) Metrics() *BreakerMetrics {
	return m.metrics
}
