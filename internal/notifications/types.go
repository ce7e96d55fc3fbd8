// Package notifications delivers push notifications to registered
// operator devices through Firebase Cloud Messaging.
package notifications

import (
	"time"
)

// NotificationType labels what a push notification is about.
type NotificationType string

const (
	// NotificationTypeRiskAlert is a critical finding forwarded from the
	// alert manager.
	NotificationTypeRiskAlert NotificationType = "risk_alert"
	// NotificationTypeTest is an operator-triggered delivery check.
	NotificationTypeTest NotificationType = "test"
)

// Platform represents the device platform
type Platform string

const (
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
	PlatformWeb     Platform = "web"
)

// ValidPlatform reports whether the registry accepts the platform value.
func ValidPlatform(p Platform) bool {
	switch p {
	case PlatformIOS, PlatformAndroid, PlatformWeb:
		return true
	default:
		return false
	}
}

// Notification represents a push notification to be sent
type Notification struct {
	Type     NotificationType  `json:"type"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority,omitempty"` // "high" or "normal"
}

// Device is one registered push target.
type Device struct {
	ID          int64     `json:"id"`
	DeviceToken string    `json:"device_token"`
	Platform    Platform  `json:"platform"`
	Label       string    `json:"label,omitempty"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

// NotificationStatus represents the status of a sent notification
type NotificationStatus string

const (
	NotificationStatusSent   NotificationStatus = "sent"
	NotificationStatusFailed NotificationStatus = "failed"
)

// ValidateToken checks if a device token is plausible for FCM.
// Real validation happens when sending.
func ValidateToken(token string) bool {
	// FCM tokens are typically 152-163 characters long
	if len(token) < 100 || len(token) > 200 {
		return false
	}

	// Check for valid characters (alphanumeric, hyphens, underscores, colons)
	for _, ch := range token {
		valid := (ch >= 'a' && ch <= 'z') ||
			(ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') ||
			ch == '-' || ch == '_' || ch == ':'
		if !valid {
			return false
		}
	}

	return true
}

// maskToken keeps device tokens out of logs.
func maskToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
