package models

import "time"

// Notification channel constants
const (
	ChannelToast    = "toast"
	ChannelSound    = "sound"
	ChannelTelegram = "telegram"
)

// Delivery status constants
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusRetrying  = "retrying"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
)

// MaxDeliveryRetries is the number of scheduled retries after the
// initial attempt. Once RetryCount reaches this value and the attempt
// still fails, the delivery is terminally failed.
const MaxDeliveryRetries = 5

// RetryBackoff is the fixed delay before each scheduled retry:
// RetryBackoff[n-1] precedes retry n.
var RetryBackoff = []time.Duration{
	30 * time.Second,
	2 * time.Minute,
	8 * time.Minute,
	32 * time.Minute,
	128 * time.Minute,
}

// Channels lists all known notification channels.
var Channels = []string{ChannelToast, ChannelSound, ChannelTelegram}

// NotificationDelivery is one delivery attempt stream for a single
// (AlertTrigger, channel) pair. RetryCount counts scheduled retries
// consumed so far, never the initial attempt and never a successful one.
type NotificationDelivery struct {
	ID               int        `json:"id"`
	AlertTriggerID   int        `json:"alert_trigger_id"`
	UserID           string     `json:"user_id"`
	NotificationType string     `json:"notification_type"`
	Status           string     `json:"status"`
	RetryCount       int        `json:"retry_count"`
	LastRetryAt      *time.Time `json:"last_retry_at,omitempty"`
	NextAttemptAt    time.Time  `json:"next_attempt_at"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the delivery reached a final status.
func (d *NotificationDelivery) IsTerminal() bool {
	return d.Status == DeliveryStatusDelivered || d.Status == DeliveryStatusFailed
}
