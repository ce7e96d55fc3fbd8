package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockBackend is a mock notification backend for testing
type MockBackend struct {
	sentNotifications []SentNotification
	shouldFail        bool
	failTokens        map[string]bool
}

type SentNotification struct {
	DeviceToken  string
	Notification Notification
}

func (m *MockBackend) Send(ctx context.Context, deviceToken string, notification Notification) error {
	if m.shouldFail || m.failTokens[deviceToken] {
		return assert.AnError
	}
	m.sentNotifications = append(m.sentNotifications, SentNotification{
		DeviceToken:  deviceToken,
		Notification: notification,
	})
	return nil
}

func (m *MockBackend) Name() string {
	return "mock"
}

func (m *MockBackend) Close() error {
	return nil
}

func (m *MockBackend) Reset() {
	m.sentNotifications = nil
	m.shouldFail = false
	m.failTokens = nil
}

func riskAlertNotification() Notification {
	return Notification{
		Type:  NotificationTypeRiskAlert,
		Title: "Portfolio VaR Breach",
		Body:  "Diversified VaR 150000.00 exceeds 10% of capital 1000000.00",
		Data: map[string]string{
			"severity": "CRITICAL",
		},
		Priority: "high",
	}
}

func deviceRows(tokens ...string) *pgxmock.Rows {
	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "device_token", "platform", "label", "enabled", "created_at", "last_used_at",
	})
	for i, token := range tokens {
		rows.AddRow(int64(i+1), token, PlatformIOS, "ops phone", true, now, now)
	}
	return rows
}

func TestRegisterDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("registers a new device", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		service := NewService(mock, &MockBackend{})

		mock.ExpectExec("INSERT INTO devices").
			WithArgs("token-1", PlatformIOS, "ops phone").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = service.RegisterDevice(ctx, "token-1", PlatformIOS, "ops phone")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates database errors", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		service := NewService(mock, &MockBackend{})

		mock.ExpectExec("INSERT INTO devices").
			WithArgs("token-1", PlatformAndroid, "").
			WillReturnError(assert.AnError)

		err = service.RegisterDevice(ctx, "token-1", PlatformAndroid, "")
		assert.ErrorContains(t, err, "failed to register device")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUnregisterDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("disables a registered device", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		service := NewService(mock, &MockBackend{})

		mock.ExpectExec("UPDATE devices").
			WithArgs("token-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err = service.UnregisterDevice(ctx, "token-1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown token reports device not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		service := NewService(mock, &MockBackend{})

		mock.ExpectExec("UPDATE devices").
			WithArgs("missing-token").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err = service.UnregisterDevice(ctx, "missing-token")
		assert.ErrorIs(t, err, ErrDeviceNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestListDevices(t *testing.T) {
	ctx := context.Background()

	t.Run("returns enabled devices", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		service := NewService(mock, &MockBackend{})

		mock.ExpectQuery("SELECT id, device_token, platform").
			WillReturnRows(deviceRows("token-1", "token-2"))

		devices, err := service.ListDevices(ctx)
		require.NoError(t, err)
		require.Len(t, devices, 2)
		assert.Equal(t, "token-1", devices[0].DeviceToken)
		assert.Equal(t, PlatformIOS, devices[0].Platform)
		assert.Equal(t, "ops phone", devices[0].Label)
		assert.True(t, devices[0].Enabled)
		assert.Equal(t, "token-2", devices[1].DeviceToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty registry returns no devices", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		service := NewService(mock, &MockBackend{})

		mock.ExpectQuery("SELECT id, device_token, platform").
			WillReturnRows(deviceRows())

		devices, err := service.ListDevices(ctx)
		require.NoError(t, err)
		assert.Empty(t, devices)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to every enabled device", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		backend := &MockBackend{}
		service := NewService(mock, backend)
		notification := riskAlertNotification()

		mock.ExpectQuery("SELECT id, device_token, platform").
			WillReturnRows(deviceRows("token-1", "token-2"))
		for _, token := range []string{"token-1", "token-2"} {
			mock.ExpectExec("UPDATE devices").
				WithArgs(token).
				WillReturnResult(pgxmock.NewResult("UPDATE", 1))
			mock.ExpectExec("INSERT INTO notification_log").
				WithArgs(token, NotificationTypeRiskAlert, notification.Title, notification.Body,
					pgxmock.AnyArg(), NotificationStatusSent, "").
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}

		err = service.Broadcast(ctx, notification)
		assert.NoError(t, err)
		require.Len(t, backend.sentNotifications, 2)
		assert.Equal(t, "token-1", backend.sentNotifications[0].DeviceToken)
		assert.Equal(t, "token-2", backend.sentNotifications[1].DeviceToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no registered devices drops the notification", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		backend := &MockBackend{}
		service := NewService(mock, backend)

		mock.ExpectQuery("SELECT id, device_token, platform").
			WillReturnRows(deviceRows())

		err = service.Broadcast(ctx, riskAlertNotification())
		assert.NoError(t, err)
		assert.Empty(t, backend.sentNotifications)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fails only when every device rejects", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		backend := &MockBackend{shouldFail: true}
		service := NewService(mock, backend)
		notification := riskAlertNotification()

		mock.ExpectQuery("SELECT id, device_token, platform").
			WillReturnRows(deviceRows("token-1", "token-2"))
		for _, token := range []string{"token-1", "token-2"} {
			mock.ExpectExec("INSERT INTO notification_log").
				WithArgs(token, NotificationTypeRiskAlert, notification.Title, notification.Body,
					pgxmock.AnyArg(), NotificationStatusFailed, assert.AnError.Error()).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
		}

		err = service.Broadcast(ctx, notification)
		assert.ErrorContains(t, err, "failed to send to any device")
		assert.Empty(t, backend.sentNotifications)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("partial failure still counts as delivered", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		backend := &MockBackend{failTokens: map[string]bool{"token-1": true}}
		service := NewService(mock, backend)
		notification := riskAlertNotification()

		mock.ExpectQuery("SELECT id, device_token, platform").
			WillReturnRows(deviceRows("token-1", "token-2"))
		mock.ExpectExec("INSERT INTO notification_log").
			WithArgs("token-1", NotificationTypeRiskAlert, notification.Title, notification.Body,
				pgxmock.AnyArg(), NotificationStatusFailed, assert.AnError.Error()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec("UPDATE devices").
			WithArgs("token-2").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("INSERT INTO notification_log").
			WithArgs("token-2", NotificationTypeRiskAlert, notification.Title, notification.Body,
				pgxmock.AnyArg(), NotificationStatusSent, "").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = service.Broadcast(ctx, notification)
		assert.NoError(t, err)
		require.Len(t, backend.sentNotifications, 1)
		assert.Equal(t, "token-2", backend.sentNotifications[0].DeviceToken)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSendToDevice(t *testing.T) {
	ctx := context.Background()

	t.Run("sends to an enabled device", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		backend := &MockBackend{}
		service := NewService(mock, backend)
		notification := riskAlertNotification()

		mock.ExpectQuery("SELECT enabled FROM devices").
			WithArgs("token-1").
			WillReturnRows(pgxmock.NewRows([]string{"enabled"}).AddRow(true))
		mock.ExpectExec("UPDATE devices").
			WithArgs("token-1").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("INSERT INTO notification_log").
			WithArgs("token-1", NotificationTypeRiskAlert, notification.Title, notification.Body,
				pgxmock.AnyArg(), NotificationStatusSent, "").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = service.SendToDevice(ctx, "token-1", notification)
		assert.NoError(t, err)
		require.Len(t, backend.sentNotifications, 1)
		assert.Equal(t, "Portfolio VaR Breach", backend.sentNotifications[0].Notification.Title)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown token reports device not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		backend := &MockBackend{}
		service := NewService(mock, backend)

		mock.ExpectQuery("SELECT enabled FROM devices").
			WithArgs("missing-token").
			WillReturnError(pgx.ErrNoRows)

		err = service.SendToDevice(ctx, "missing-token", riskAlertNotification())
		assert.ErrorIs(t, err, ErrDeviceNotFound)
		assert.Empty(t, backend.sentNotifications)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("disabled device reports device not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		backend := &MockBackend{}
		service := NewService(mock, backend)

		mock.ExpectQuery("SELECT enabled FROM devices").
			WithArgs("token-1").
			WillReturnRows(pgxmock.NewRows([]string{"enabled"}).AddRow(false))

		err = service.SendToDevice(ctx, "token-1", riskAlertNotification())
		assert.ErrorIs(t, err, ErrDeviceNotFound)
		assert.Empty(t, backend.sentNotifications)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("backend failure is recorded and returned", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		backend := &MockBackend{shouldFail: true}
		service := NewService(mock, backend)
		notification := riskAlertNotification()

		mock.ExpectQuery("SELECT enabled FROM devices").
			WithArgs("token-1").
			WillReturnRows(pgxmock.NewRows([]string{"enabled"}).AddRow(true))
		mock.ExpectExec("INSERT INTO notification_log").
			WithArgs("token-1", NotificationTypeRiskAlert, notification.Title, notification.Body,
				pgxmock.AnyArg(), NotificationStatusFailed, assert.AnError.Error()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = service.SendToDevice(ctx, "token-1", notification)
		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected string
	}{
		{
			name:     "short token",
			token:    "abc",
			expected: "***",
		},
		{
			name:     "normal token",
			token:    "abcd1234efgh5678",
			expected: "abcd...5678",
		},
		{
			name:     "long token",
			token:    "very_long_firebase_token_here_1234567890",
			expected: "very...7890",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskToken(tt.token)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMockBackend(t *testing.T) {
	mockBackend := &MockBackend{}
	ctx := context.Background()

	t.Run("successful send", func(t *testing.T) {
		mockBackend.Reset()

		err := mockBackend.Send(ctx, "test-token", riskAlertNotification())
		require.NoError(t, err)
		assert.Len(t, mockBackend.sentNotifications, 1)
		assert.Equal(t, "test-token", mockBackend.sentNotifications[0].DeviceToken)
		assert.Equal(t, "Portfolio VaR Breach", mockBackend.sentNotifications[0].Notification.Title)
	})

	t.Run("failed send", func(t *testing.T) {
		mockBackend.Reset()
		mockBackend.shouldFail = true

		err := mockBackend.Send(ctx, "test-token", riskAlertNotification())
		require.Error(t, err)
	})

	t.Run("backend name", func(t *testing.T) {
		assert.Equal(t, "mock", mockBackend.Name())
	})

	t.Run("backend close", func(t *testing.T) {
		err := mockBackend.Close()
		require.NoError(t, err)
	})
}

func TestServiceClose(t *testing.T) {
	service := NewService(nil, &MockBackend{})
	assert.NoError(t, service.Close())

	bare := NewService(nil, nil)
	assert.NoError(t, bare.Close())
}
