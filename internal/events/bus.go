// Package events provides the NATS bus that distributes completed risk
// reports to subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/quantfolio/riskd/internal/metrics"
	"github.com/quantfolio/riskd/internal/risk"
)

// SubjectReportsCompleted is the bus topic for finished report runs. The
// full subject carries the configured prefix: riskd.reports.completed.
const SubjectReportsCompleted = "reports.completed"

// ReportEvent is the wire form of one completed report run.
type ReportEvent struct {
	ID             string    `json:"id"`
	Tickers        []string  `json:"tickers"`
	Capital        float64   `json:"capital"`
	Confidence     float64   `json:"confidence"`
	DiversifiedVaR float64   `json:"diversified_var"`
	Error          string    `json:"error,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// NewReportEvent summarizes a computed report for the bus. The report
// formats its figures as fixed-point strings; the event carries numbers
// so consumers can compare without re-parsing.
func NewReportEvent(report *risk.Report, durationMs int64) *ReportEvent {
	event := &ReportEvent{
		ID:          uuid.New().String(),
		Tickers:     report.Assets,
		Confidence:  report.Confidence,
		Error:       report.Error,
		DurationMs:  durationMs,
		GeneratedAt: time.Now(),
	}
	if v, err := strconv.ParseFloat(report.Capital, 64); err == nil {
		event.Capital = v
	}
	if v, err := strconv.ParseFloat(report.VaR.Diversified, 64); err == nil {
		event.DiversifiedVaR = v
	}
	return event
}

// Publisher abstracts event publication so the API server runs with or
// without a broker.
type Publisher interface {
	PublishReportCompleted(ctx context.Context, event *ReportEvent) error
	Stats() map[string]interface{}
	Close() error
}

// NopPublisher discards events. It stands in when NATS is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishReportCompleted(ctx context.Context, event *ReportEvent) error {
	return nil
}

func (NopPublisher) Stats() map[string]interface{} {
	return map[string]interface{}{
		"connected": false,
		"status":    "disabled",
	}
}

func (NopPublisher) Close() error { return nil }

// BusConfig configures the event bus connection.
type BusConfig struct {
	URL    string
	Prefix string // Subject prefix (default: "riskd")
}

// DefaultBusConfig returns default configuration
func DefaultBusConfig() BusConfig {
	return BusConfig{
		URL:    "nats://localhost:4222",
		Prefix: "riskd",
	}
}

// Bus publishes and subscribes to report events over NATS.
type Bus struct {
	nc     *nats.Conn
	prefix string
}

// Connect creates a bus connected to the given NATS server.
func Connect(config BusConfig) (*Bus, error) {
	nc, err := nats.Connect(
		config.URL,
		nats.Name("riskd"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	prefix := strings.TrimSuffix(strings.TrimSpace(config.Prefix), ".")
	if prefix == "" {
		prefix = "riskd"
	}

	log.Info().
		Str("nats_url", config.URL).
		Str("prefix", prefix).
		Msg("Event bus connected")

	return &Bus{nc: nc, prefix: prefix}, nil
}

// subject builds the full subject for a topic.
func (b *Bus) subject(topic string) string {
	return b.prefix + "." + topic
}

// PublishReportCompleted publishes one report summary.
func (b *Bus) PublishReportCompleted(ctx context.Context, event *ReportEvent) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !b.nc.IsConnected() {
		return fmt.Errorf("event bus not connected")
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.GeneratedAt.IsZero() {
		event.GeneratedAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal report event: %w", err)
	}

	subject := b.subject(SubjectReportsCompleted)
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish report event: %w", err)
	}
	metrics.RecordNATSPublished()

	log.Debug().
		Str("event_id", event.ID).
		Str("subject", subject).
		Strs("tickers", event.Tickers).
		Msg("Published report event")

	return nil
}

// ReportHandler is a callback for received report events.
type ReportHandler func(event *ReportEvent)

// SubscribeReportCompleted delivers every completed-report event to the
// handler until the subscription is dropped.
func (b *Bus) SubscribeReportCompleted(handler ReportHandler) (*Subscription, error) {
	subject := b.subject(SubjectReportsCompleted)

	sub, err := b.nc.Subscribe(subject, func(natsMsg *nats.Msg) {
		var event ReportEvent
		if err := json.Unmarshal(natsMsg.Data, &event); err != nil {
			log.Warn().Err(err).Msg("Failed to unmarshal report event")
			return
		}
		metrics.RecordNATSReceived()
		handler(&event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	log.Info().Str("subject", subject).Msg("Subscribed to report events")

	return &Subscription{sub: sub, subject: subject}, nil
}

// Stats reports connection statistics for the status endpoint.
func (b *Bus) Stats() map[string]interface{} {
	stats := make(map[string]interface{})

	if b.nc != nil {
		stats["connected"] = b.nc.IsConnected()
		stats["status"] = b.nc.Status().String()
		stats["connected_url"] = b.nc.ConnectedUrl()
		stats["in_msgs"] = b.nc.Stats().InMsgs
		stats["out_msgs"] = b.nc.Stats().OutMsgs
		stats["reconnects"] = b.nc.Stats().Reconnects
	}

	return stats
}

// Close closes the bus connection.
func (b *Bus) Close() error {
	if b.nc != nil {
		b.nc.Close()
		log.Info().Msg("Event bus closed")
	}
	return nil
}

// Subscription represents an active subscription.
type Subscription struct {
	sub     *nats.Subscription
	subject string
}

// Unsubscribe stops event delivery.
func (s *Subscription) Unsubscribe() error {
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}

	log.Info().Str("subject", s.subject).Msg("Unsubscribed from report events")

	return nil
}

// IsValid returns whether the subscription is still active.
func (s *Subscription) IsValid() bool {
	return s.sub.IsValid()
}
