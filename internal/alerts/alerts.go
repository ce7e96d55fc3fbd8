// Package alerts fans risk findings out to operator channels.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfolio/riskd/internal/metrics"
)

// Severity levels for alerts
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity maps a config value onto a severity. Unknown values
// read as INFO, which filters nothing.
func ParseSeverity(s string) Severity {
	switch s {
	case "critical", "CRITICAL":
		return SeverityCritical
	case "warning", "WARNING":
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// severityRank orders severities for minimum-severity filtering.
func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Alert represents an alert message
type Alert struct {
	Title     string
	Message   string
	Severity  Severity
	Timestamp time.Time
	Metadata  map[string]interface{}
}

// Alerter defines the interface for sending alerts
type Alerter interface {
	// Name labels the channel in logs and metrics.
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// Manager fans alerts out to the configured channels. Alerts below the
// minimum severity are dropped, and repeats of the same title inside
// the throttle window are suppressed.
type Manager struct {
	alerters    []Alerter
	minSeverity Severity
	throttle    time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewManager creates a new alert manager
func NewManager(alerters ...Alerter) *Manager {
	return &Manager{
		alerters:    alerters,
		minSeverity: SeverityInfo,
		lastSent:    make(map[string]time.Time),
	}
}

// WithMinSeverity drops alerts below the given severity.
func (m *Manager) WithMinSeverity(severity Severity) *Manager {
	m.minSeverity = severity
	return m
}

// WithThrottle suppresses repeats of the same alert title inside the window.
func (m *Manager) WithThrottle(window time.Duration) *Manager {
	m.throttle = window
	return m
}

// Send sends an alert to all configured alerters
func (m *Manager) Send(ctx context.Context, alert Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	if severityRank(alert.Severity) < severityRank(m.minSeverity) {
		log.Debug().
			Str("title", alert.Title).
			Str("severity", string(alert.Severity)).
			Msg("Alert below minimum severity, dropped")
		return nil
	}

	if m.throttled(alert.Title) {
		log.Debug().
			Str("title", alert.Title).
			Dur("window", m.throttle).
			Msg("Alert throttled")
		return nil
	}

	var lastErr error
	for _, alerter := range m.alerters {
		if err := alerter.Send(ctx, alert); err != nil {
			log.Error().
				Err(err).
				Str("channel", alerter.Name()).
				Str("title", alert.Title).
				Msg("Failed to send alert")
			metrics.RecordAlertFailure(alerter.Name())
			lastErr = err
			continue
		}
		metrics.RecordAlertSent(alerter.Name(), string(alert.Severity))
	}

	return lastErr
}

// throttled reports whether the title fired inside the suppression
// window, marking it as fired otherwise.
func (m *Manager) throttled(title string) bool {
	if m.throttle <= 0 {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.lastSent[title]; ok && time.Since(last) < m.throttle {
		return true
	}
	m.lastSent[title] = time.Now()
	return false
}

// SendCritical is a convenience method for sending critical alerts
func (m *Manager) SendCritical(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityCritical,
		Metadata: metadata,
	})
}

// SendWarning is a convenience method for sending warning alerts
func (m *Manager) SendWarning(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityWarning,
		Metadata: metadata,
	})
}

// SendInfo is a convenience method for sending info alerts
func (m *Manager) SendInfo(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityInfo,
		Metadata: metadata,
	})
}

// LogAlerter logs alerts using zerolog
type LogAlerter struct{}

// NewLogAlerter creates a new log-based alerter
func NewLogAlerter() *LogAlerter {
	return &LogAlerter{}
}

func (l *LogAlerter) Name() string { return "log" }

// Send sends an alert by logging it
func (l *LogAlerter) Send(ctx context.Context, alert Alert) error {
	event := log.Log()

	// Set log level based on severity
	switch alert.Severity {
	case SeverityCritical:
		event = log.Error()
	case SeverityWarning:
		event = log.Warn()
	case SeverityInfo:
		event = log.Info()
	}

	// Add metadata fields
	if alert.Metadata != nil {
		for key, value := range alert.Metadata {
			event = event.Interface(key, value)
		}
	}

	event.
		Str("alert_title", alert.Title).
		Str("alert_severity", string(alert.Severity)).
		Time("alert_time", alert.Timestamp).
		Msg(fmt.Sprintf("ALERT: %s", alert.Message))

	return nil
}
