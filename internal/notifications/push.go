package notifications

import (
	"context"
	"fmt"
	"strconv"

	"github.com/quantfolio/riskd/internal/alerts"
)

// PushAlerter forwards critical alerts to registered devices. It plugs
// into the alert manager as one more channel; lower severities pass
// through silently so the config decides what reaches phones.
type PushAlerter struct {
	service *Service
}

// NewPushAlerter creates the alert-manager channel backed by the service.
func NewPushAlerter(service *Service) *PushAlerter {
	return &PushAlerter{service: service}
}

func (p *PushAlerter) Name() string { return "push" }

// Send forwards a critical alert as a high-priority push notification.
func (p *PushAlerter) Send(ctx context.Context, alert alerts.Alert) error {
	if alert.Severity != alerts.SeverityCritical {
		return nil
	}

	data := make(map[string]string, len(alert.Metadata)+1)
	for key, value := range alert.Metadata {
		// FCM data payloads are string-to-string. Floats keep their
		// plain decimal form rather than %v's scientific notation.
		switch v := value.(type) {
		case float64:
			data[key] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			data[key] = fmt.Sprint(v)
		}
	}
	data["severity"] = string(alert.Severity)

	return p.service.Broadcast(ctx, Notification{
		Type:     NotificationTypeRiskAlert,
		Title:    alert.Title,
		Body:     alert.Message,
		Data:     data,
		Priority: "high",
	})
}
