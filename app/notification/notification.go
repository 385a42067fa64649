package notification

import "context"

type EventType string

const (
	EventBrowseLimitWarning       EventType = "browse_limit_warning"
	EventListingLimitReached      EventType = "listing_limit_reached"
	EventSubscriptionExpiringSoon EventType = "subscription_expiring_soon"
	EventSubscriptionExpired      EventType = "subscription_expired"
)

type Event struct {
	UserID  string
	Type    EventType
	Payload map[string]interface{}
}

// Trigger receives threshold events. Persistence and delivery (push,
// real-time channels) belong to the implementation, not to the metering
// engine.
type Trigger interface {
	Notify(ctx context.Context, event Event)
}
