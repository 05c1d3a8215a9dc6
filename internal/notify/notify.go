package notify

import (
	"time"

	"github.com/guonaihong/gout"
	"go.uber.org/zap"

	"github.com/miguelvacuau169-jpg/rincon-laurel-app/internal/broadcast"
)

// Sink delivers role-addressed alerts to waitstaff. Delivery is best
// effort: errors are logged and never surfaced to the caller.
type Sink interface {
	Notify(role string, orderID string, message string)
}

// SettingsSource exposes the push provider settings kept in sys_config.
type SettingsSource interface {
	GetString(category, name string) string
}

// PushSink posts alerts to an external push provider when configured and
// always mirrors them onto the notification broadcast topic.
type PushSink struct {
	settings SettingsSource
	bus      *broadcast.Broadcaster
}

func NewPushSink(settings SettingsSource, bus *broadcast.Broadcaster) *PushSink {
	return &PushSink{settings: settings, bus: bus}
}

type notification struct {
	Role      string    `json:"role"`
	OrderID   string    `json:"order_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *PushSink) Notify(role string, orderID string, message string) {
	payload := notification{Role: role, OrderID: orderID, Message: message, Timestamp: time.Now()}
	s.bus.Publish(broadcast.TopicNotification, payload)

	appID := s.settings.GetString("push", "app_id")
	apiKey := s.settings.GetString("push", "api_key")
	endpoint := s.settings.GetString("push", "endpoint")
	if appID == "" || apiKey == "" || endpoint == "" {
		zap.S().Warn("push provider not configured, notification broadcast only")
		return
	}

	go func() {
		err := gout.POST(endpoint).
			SetHeader(gout.H{"Authorization": "Basic " + apiKey}).
			SetJSON(gout.H{
				"app_id":   appID,
				"filters":  []gout.H{{"field": "tag", "key": "role", "relation": "=", "value": role}},
				"contents": gout.H{"en": message},
				"data":     gout.H{"order_id": orderID},
			}).
			SetTimeout(5 * time.Second).
			Do()
		if err != nil {
			zap.S().Errorf("push notify failed for role %s: %s", role, err.Error())
		}
	}()
}
