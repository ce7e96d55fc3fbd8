package notifications_test

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantfolio/riskd/internal/alerts"
	"github.com/quantfolio/riskd/internal/notifications"
)

// Example_basicUsage demonstrates basic notification service usage
func Example_basicUsage() {
	ctx := context.Background()

	// In production, use real database connection
	// db, _ := pgxpool.New(ctx, "postgres://...")
	var db *pgxpool.Pool // nil for example

	// Initialize FCM backend (mock mode for development)
	backend, _ := notifications.NewFCMBackend(ctx, "")

	// Create notification service
	service := notifications.NewService(db, backend)
	defer service.Close()

	// Create notification
	notification := notifications.Notification{
		Type:     notifications.NotificationTypeRiskAlert,
		Title:    "Portfolio VaR Breach",
		Body:     "Diversified VaR 150000.00 exceeds 10% of capital 1000000.00",
		Data:     map[string]string{"severity": "CRITICAL"},
		Priority: "high",
	}

	fmt.Println("Notification type:", notification.Type)
	fmt.Println("Title:", notification.Title)
	// Output:
	// Notification type: risk_alert
	// Title: Portfolio VaR Breach
}

// Example_alertChannel shows how push delivery plugs into the alert manager
func Example_alertChannel() {
	ctx := context.Background()

	// Setup (mock for demonstration)
	backend, _ := notifications.NewFCMBackend(ctx, "")
	service := notifications.NewService(nil, backend)
	defer service.Close()

	// Critical findings fan out to the log and to registered devices
	manager := alerts.NewManager(
		alerts.NewLogAlerter(),
		notifications.NewPushAlerter(service),
	).WithMinSeverity(alerts.SeverityWarning)

	_ = manager

	push := notifications.NewPushAlerter(service)
	fmt.Println("Channel:", push.Name())
	// Output:
	// Channel: push
}

// Example_deviceRegistration demonstrates device registration flow
func Example_deviceRegistration() {
	deviceToken := "fcm-device-token-here"
	platform := notifications.PlatformIOS

	fmt.Println("Platform:", platform)
	fmt.Println("Platform valid:", notifications.ValidPlatform(platform))
	fmt.Println("Token valid:", notifications.ValidateToken(deviceToken))

	// In production:
	// err := service.RegisterDevice(ctx, deviceToken, platform, "ops phone")
	// if err != nil {
	//     log.Error().Err(err).Msg("Failed to register device")
	// }

	// Output:
	// Platform: ios
	// Platform valid: true
	// Token valid: false
}
