package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/quantfolio/riskd/internal/metrics"
)

// ErrDeviceNotFound is returned when a device token is not registered.
var ErrDeviceNotFound = errors.New("device not found")

// Backend defines the interface for notification backends (FCM, APNs, etc.)
type Backend interface {
	// Send sends a notification to a device
	Send(ctx context.Context, deviceToken string, notification Notification) error

	// Name returns the backend name
	Name() string

	// Close closes the backend connection
	Close() error
}

// Pool is the subset of pgxpool.Pool the service uses. Tests substitute
// a pgxmock pool through the same interface.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Service pushes notifications to every enabled device in the registry.
type Service struct {
	db      Pool
	backend Backend
}

// NewService creates a new notification service
func NewService(db Pool, backend Backend) *Service {
	return &Service{
		db:      db,
		backend: backend,
	}
}

// Broadcast sends a notification to all enabled devices. It fails only
// when no device accepted the delivery.
func (s *Service) Broadcast(ctx context.Context, notification Notification) error {
	devices, err := s.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	if len(devices) == 0 {
		log.Debug().
			Str("notification_type", string(notification.Type)).
			Msg("No enabled devices registered, notification dropped")
		return nil
	}

	var lastErr error
	sentCount := 0
	for _, device := range devices {
		if err := s.sendAndLog(ctx, device.DeviceToken, notification); err != nil {
			log.Error().
				Err(err).
				Str("device_token", maskToken(device.DeviceToken)).
				Msg("Failed to send notification to device")
			lastErr = err
		} else {
			sentCount++
		}
	}

	if sentCount > 0 {
		log.Info().
			Int("sent_count", sentCount).
			Int("total_devices", len(devices)).
			Str("notification_type", string(notification.Type)).
			Msg("Sent notifications to registered devices")
	}

	// Return error only if all sends failed
	if sentCount == 0 && lastErr != nil {
		return fmt.Errorf("failed to send to any device: %w", lastErr)
	}

	return nil
}

// SendToDevice sends a notification to a specific registered device.
func (s *Service) SendToDevice(ctx context.Context, deviceToken string, notification Notification) error {
	var enabled bool
	err := s.db.QueryRow(ctx, `
		SELECT enabled FROM devices
		WHERE device_token = $1
	`, deviceToken).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDeviceNotFound
		}
		return fmt.Errorf("failed to query device: %w", err)
	}
	if !enabled {
		return ErrDeviceNotFound
	}

	return s.sendAndLog(ctx, deviceToken, notification)
}

// sendAndLog sends a notification and records the delivery.
func (s *Service) sendAndLog(ctx context.Context, deviceToken string, notification Notification) error {
	status := NotificationStatusSent
	errorMsg := ""

	err := s.backend.Send(ctx, deviceToken, notification)
	if err != nil {
		status = NotificationStatusFailed
		errorMsg = err.Error()
	} else {
		_ = s.touchDevice(ctx, deviceToken)
	}
	metrics.RecordNotification(err == nil)

	dataJSON, _ := json.Marshal(notification.Data)
	_, logErr := s.db.Exec(ctx, `
		INSERT INTO notification_log (
			device_token, notification_type, title, body, data, status, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, deviceToken, notification.Type, notification.Title, notification.Body, dataJSON, status, errorMsg)
	if logErr != nil {
		log.Error().Err(logErr).Msg("Failed to log notification")
	}

	return err
}

// RegisterDevice adds a device to the registry, re-enabling and
// re-labelling it when the token is already known.
func (s *Service) RegisterDevice(ctx context.Context, deviceToken string, platform Platform, label string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO devices (device_token, platform, label)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_token) DO UPDATE
		SET platform = EXCLUDED.platform,
		    label = EXCLUDED.label,
		    enabled = TRUE,
		    last_used_at = NOW()
	`, deviceToken, platform, label)

	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}

	log.Info().
		Str("platform", string(platform)).
		Str("label", label).
		Str("device_token", maskToken(deviceToken)).
		Msg("Registered device for notifications")

	return nil
}

// UnregisterDevice disables a device token.
func (s *Service) UnregisterDevice(ctx context.Context, deviceToken string) error {
	result, err := s.db.Exec(ctx, `
		UPDATE devices
		SET enabled = FALSE
		WHERE device_token = $1
	`, deviceToken)

	if err != nil {
		return fmt.Errorf("failed to unregister device: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}

	log.Info().
		Str("device_token", maskToken(deviceToken)).
		Msg("Unregistered device")

	return nil
}

// ListDevices returns all enabled devices, most recently used first.
func (s *Service) ListDevices(ctx context.Context) ([]Device, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, device_token, platform, label, enabled, created_at, last_used_at
		FROM devices
		WHERE enabled = TRUE
		ORDER BY last_used_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		err := rows.Scan(
			&d.ID,
			&d.DeviceToken,
			&d.Platform,
			&d.Label,
			&d.Enabled,
			&d.CreatedAt,
			&d.LastUsedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating devices: %w", err)
	}

	return devices, nil
}

// touchDevice updates the last used timestamp after a delivery.
func (s *Service) touchDevice(ctx context.Context, deviceToken string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE devices
		SET last_used_at = NOW()
		WHERE device_token = $1
	`, deviceToken)

	if err != nil {
		return fmt.Errorf("failed to update device last used: %w", err)
	}

	return nil
}

// Close closes the notification service
func (s *Service) Close() error {
	if s.backend != nil {
		return s.backend.Close()
	}
	return nil
}
