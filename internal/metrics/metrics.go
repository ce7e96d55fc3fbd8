package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded cardinality constants for metric labels.
// These ensure metrics don't have unbounded label values which can cause memory issues.
const (
	// Report computation statuses (bounded set)
	ReportStatusOK       = "ok"
	ReportStatusDegraded = "degraded"

	// Catalog validation failure reasons (bounded set)
	ValidationReasonSchemaInvalid   = "schema_invalid"
	ValidationReasonFieldMissing    = "field_missing"
	ValidationReasonValueOutOfRange = "value_out_of_range"
	ValidationReasonIncompatible    = "incompatible"
	ValidationReasonOther           = "other"

	// Provider error categories (bounded set)
	ProviderErrorTimeout     = "timeout"
	ProviderErrorRateLimit   = "rate_limit"
	ProviderErrorAuth        = "authentication"
	ProviderErrorNetwork     = "network"
	ProviderErrorBreakerOpen = "breaker_open"
	ProviderErrorInvalidReq  = "invalid_request"
	ProviderErrorServerError = "server_error"
	ProviderErrorOther       = "other"
)

// NormalizeValidationReason maps arbitrary validation failures to bounded set
func NormalizeValidationReason(reason string) string {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "schema") || strings.Contains(lower, "version"):
		return ValidationReasonSchemaInvalid
	case strings.Contains(lower, "missing") || strings.Contains(lower, "required"):
		return ValidationReasonFieldMissing
	case strings.Contains(lower, "range") || strings.Contains(lower, "between") || strings.Contains(lower, "value") || strings.Contains(lower, "invalid"):
		return ValidationReasonValueOutOfRange
	case strings.Contains(lower, "compatible") || strings.Contains(lower, "migration"):
		return ValidationReasonIncompatible
	default:
		return ValidationReasonOther
	}
}

// NormalizeProviderError maps arbitrary provider errors to bounded set
func NormalizeProviderError(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "circuit") || strings.Contains(errStr, "breaker"):
		return ProviderErrorBreakerOpen
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return ProviderErrorTimeout
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "429"):
		return ProviderErrorRateLimit
	case strings.Contains(errStr, "auth") || strings.Contains(errStr, "401") || strings.Contains(errStr, "403"):
		return ProviderErrorAuth
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection"):
		return ProviderErrorNetwork
	case strings.Contains(errStr, "400") || strings.Contains(errStr, "invalid"):
		return ProviderErrorInvalidReq
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") || strings.Contains(errStr, "503"):
		return ProviderErrorServerError
	default:
		return ProviderErrorOther
	}
}

// Risk Engine Metrics
var (
	// Report computations by status
	ReportComputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskd_report_computations_total",
		Help: "Total number of risk report computations by status",
	}, []string{"status"})

	// Report computation duration
	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskd_report_duration_ms",
		Help:    "Risk report computation duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	// Aligned observations per report
	ReportObservations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskd_report_observations",
		Help:    "Number of aligned observations used per risk report",
		Buckets: []float64{30, 60, 90, 126, 180, 252, 378, 504},
	})

	// Assets per report basket
	ReportBasketSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskd_report_basket_size",
		Help:    "Number of assets per risk report basket",
		Buckets: []float64{2, 3, 5, 10, 20, 50, 100},
	})

	// Stress test runs
	StressRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskd_stress_runs_total",
		Help: "Total number of stress test runs",
	})
)

// Market Data Metrics
var (
	// Provider requests by source and status
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskd_provider_requests_total",
		Help: "Total number of price provider requests by source and status",
	}, []string{"source", "status"})

	// Provider request latency
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskd_provider_latency_ms",
		Help:    "Price provider request latency in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"source"})

	// Provider errors by category
	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskd_provider_errors_total",
		Help: "Total price provider errors by source and category",
	}, []string{"source", "error_type"})

	// Cache hits and misses
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskd_cache_hits_total",
		Help: "Total number of price cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskd_cache_misses_total",
		Help: "Total number of price cache misses",
	})

	// Redis cache hit rate
	RedisCacheHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskd_redis_cache_hit_rate",
		Help: "Redis cache hit rate as a ratio (0.0 to 1.0)",
	})

	// Redis operations
	RedisOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskd_redis_operations_total",
		Help: "Total number of Redis operations by type",
	}, []string{"operation"})

	// Sync runs by status
	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskd_sync_runs_total",
		Help: "Total number of price sync runs by status",
	}, []string{"status"})

	// Sync run duration
	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "riskd_sync_duration_ms",
		Help:    "Price sync run duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})
)

// System Health Metrics
var (
	// Database connections
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskd_database_connections_active",
		Help: "Number of active database connections",
	})

	DatabaseConnectionsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskd_database_connections_idle",
		Help: "Number of idle database connections",
	})

	// Database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskd_database_query_duration_ms",
		Help:    "Database query duration in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"query_type"})

	// Stored price history coverage
	PriceRowsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskd_price_rows_upserted_total",
		Help: "Total number of daily price rows upserted into storage",
	})

	PriceHistoryRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskd_price_history_rows",
		Help: "Number of daily price rows currently stored",
	})

	ActiveAssets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskd_active_assets",
		Help: "Number of active assets tracked for price history",
	})

	// Price staleness per ticker (bounded by the active asset set)
	PriceAgeDays = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "riskd_price_age_days",
		Help: "Days since the most recent stored close per ticker",
	}, []string{"ticker"})

	// API request duration
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskd_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "path", "status_code"})

	// HTTP requests
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskd_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status_code"})

	// Errors
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskd_errors_total",
		Help: "Total number of errors by type",
	}, []string{"type", "component"})

	// NATS messages
	NATSMessagesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskd_nats_messages_published_total",
		Help: "Total number of NATS messages published",
	})

	NATSMessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "riskd_nats_messages_received_total",
		Help: "Total number of NATS messages received",
	})

	// WebSocket connections
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "riskd_websocket_connections",
		Help: "Number of currently connected WebSocket clients",
	})

	// MCP tool call duration
	MCPToolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "riskd_mcp_tool_call_duration_ms",
		Help:    "MCP tool call duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"tool_name", "server"})
)

// Alerting and Delivery Metrics
var (
	// Alerts sent by channel and severity
	AlertsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskd_alerts_sent_total",
		Help: "Total number of alerts sent by channel and severity",
	}, []string{"channel", "severity"})

	// Alert delivery failures
	AlertFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskd_alert_failures_total",
		Help: "Total number of alert delivery failures by channel",
	}, []string{"channel"})

	// Push notifications by status
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskd_notifications_sent_total",
		Help: "Total number of push notifications by status",
	}, []string{"status"})
)

// Catalog Metrics
var (
	// Scenario catalog operations
	CatalogOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskd_catalog_operations_total",
		Help: "Total number of scenario catalog operations by type and status",
	}, []string{"operation", "status"})

	// Scenario catalog validation failures
	CatalogValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "riskd_catalog_validation_failures_total",
		Help: "Total number of scenario catalog validation failures by reason",
	}, []string{"reason"})
)

// Helper functions to update metrics

// RecordReportComputation records a risk report computation. Observations
// and basket size are only observed when known (non-zero).
func RecordReportComputation(status string, durationMs float64, observations, assets int) {
	ReportComputations.WithLabelValues(status).Inc()
	ReportDuration.Observe(durationMs)
	if observations > 0 {
		ReportObservations.Observe(float64(observations))
	}
	if assets > 0 {
		ReportBasketSize.Observe(float64(assets))
	}
}

// RecordStressRun records a stress test run
func RecordStressRun() {
	StressRuns.Inc()
}

// RecordProviderRequest records a price provider request with normalized error category
func RecordProviderRequest(source string, durationMs float64, err error) {
	ProviderLatency.WithLabelValues(source).Observe(durationMs)
	if err != nil {
		ProviderRequests.WithLabelValues(source, "error").Inc()
		ProviderErrors.WithLabelValues(source, NormalizeProviderError(err)).Inc()
		return
	}
	ProviderRequests.WithLabelValues(source, "success").Inc()
}

// RecordCacheHit records a price cache hit
func RecordCacheHit() {
	CacheHits.Inc()
}

// RecordCacheMiss records a price cache miss
func RecordCacheMiss() {
	CacheMisses.Inc()
}

// RecordRedisOperation records a Redis operation
func RecordRedisOperation(operation string) {
	RedisOperations.WithLabelValues(operation).Inc()
}

// RecordSyncRun records a price sync run
func RecordSyncRun(success bool, durationMs float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	SyncRuns.WithLabelValues(status).Inc()
	SyncDuration.Observe(durationMs)
}

// UpdateDatabaseConnections updates database connection metrics
func UpdateDatabaseConnections(active, idle int32) {
	DatabaseConnectionsActive.Set(float64(active))
	DatabaseConnectionsIdle.Set(float64(idle))
}

// RecordDatabaseQuery records a database query
func RecordDatabaseQuery(queryType string, durationMs float64) {
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(durationMs)
}

// RecordPriceRowsUpserted records rows written by a price backfill
func RecordPriceRowsUpserted(rows int) {
	if rows > 0 {
		PriceRowsUpserted.Add(float64(rows))
	}
}

// RecordAPIRequest records an API request with duration
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	Errors.WithLabelValues(errorType, component).Inc()
}

// RecordNATSPublished records a published NATS message
func RecordNATSPublished() {
	NATSMessagesPublished.Inc()
}

// RecordNATSReceived records a received NATS message
func RecordNATSReceived() {
	NATSMessagesReceived.Inc()
}

// SetWebSocketConnections updates the connected WebSocket client count
func SetWebSocketConnections(count int) {
	WebSocketConnections.Set(float64(count))
}

// RecordMCPToolCall records an MCP tool call
func RecordMCPToolCall(toolName, server string, durationMs float64) {
	MCPToolCallDuration.WithLabelValues(toolName, server).Observe(durationMs)
}

// RecordAlertSent records a delivered alert
func RecordAlertSent(channel, severity string) {
	AlertsSent.WithLabelValues(channel, severity).Inc()
}

// RecordAlertFailure records an alert delivery failure
func RecordAlertFailure(channel string) {
	AlertFailures.WithLabelValues(channel).Inc()
}

// RecordNotification records a push notification attempt
func RecordNotification(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	NotificationsSent.WithLabelValues(status).Inc()
}

// RecordCatalogOperation records a scenario catalog operation
func RecordCatalogOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	CatalogOperations.WithLabelValues(operation, status).Inc()
}

// RecordCatalogValidationFailure records a catalog validation failure with normalized reason
func RecordCatalogValidationFailure(reason string) {
	CatalogValidationFailures.WithLabelValues(NormalizeValidationReason(reason)).Inc()
}
