package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chartwatch/alert-engine/internal/models"
)

// DeliveryStore defines the delivery persistence operations the
// dispatcher and worker need
type DeliveryStore interface {
	CreateDeliveries(ctx context.Context, deliveries []*models.NotificationDelivery) error
	ClaimDueDeliveries(ctx context.Context, limit int) ([]*models.NotificationDelivery, error)
	MarkDelivered(ctx context.Context, id int, attemptedAt time.Time) (bool, error)
	ScheduleRetry(ctx context.Context, id int, retryCount int, nextAttemptAt time.Time, errMessage string, attemptedAt time.Time) error
	MarkFailed(ctx context.Context, id int, errMessage string, attemptedAt time.Time) error
}

// ChannelResolver resolves a user's global channel settings and the
// per-alert override
type ChannelResolver interface {
	GetChannelSettings(ctx context.Context, userID string) (*models.ChannelSettings, error)
	GetChannelOverride(ctx context.Context, alertID int) (*models.ChannelOverride, error)
}

// Dispatcher fans a recorded trigger out to the alert's enabled
// channels, creating one pending delivery per channel. The delivery
// worker takes it from there.
type Dispatcher struct {
	deliveries DeliveryStore
	channels   ChannelResolver
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(deliveries DeliveryStore, channels ChannelResolver) *Dispatcher {
	return &Dispatcher{
		deliveries: deliveries,
		channels:   channels,
	}
}

// Dispatch resolves the enabled channel set for the alert (per-alert
// override over global settings, nil override fields inherit global)
// and creates one pending NotificationDelivery per enabled channel.
func (d *Dispatcher) Dispatch(ctx context.Context, alert *models.Alert, trigger *models.AlertTrigger) error {
	settings, err := d.channels.GetChannelSettings(ctx, alert.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve channel settings: %w", err)
	}
	override, err := d.channels.GetChannelOverride(ctx, alert.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve channel override: %w", err)
	}

	enabled := override.Resolve(settings)
	if len(enabled) == 0 {
		log.Printf("no channels enabled for alert %d trigger %d, nothing to deliver", alert.ID, trigger.ID)
		return nil
	}

	deliveries := make([]*models.NotificationDelivery, 0, len(enabled))
	for _, channel := range enabled {
		deliveries = append(deliveries, &models.NotificationDelivery{
			AlertTriggerID:   trigger.ID,
			UserID:           alert.UserID,
			NotificationType: channel,
			Status:           models.DeliveryStatusPending,
		})
	}

	if err := d.deliveries.CreateDeliveries(ctx, deliveries); err != nil {
		return fmt.Errorf("failed to create deliveries for trigger %d: %w", trigger.ID, err)
	}
	return nil
}
