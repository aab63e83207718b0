package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chartwatch/alert-engine/internal/models"
)

// TriggerStore resolves the trigger a delivery belongs to
type TriggerStore interface {
	GetTriggerByID(ctx context.Context, id int) (*models.AlertTrigger, error)
}

// WorkerConfig tunes the delivery worker pool
type WorkerConfig struct {
	PoolSize       int
	PollInterval   time.Duration
	AttemptTimeout time.Duration
}

// Worker pulls due pending/retrying deliveries and attempts them
// across a pool of goroutines. Claims are exclusive per delivery, so
// running several Worker instances is safe.
type Worker struct {
	deliveries DeliveryStore
	triggers   TriggerStore
	channels   ChannelResolver
	transports map[string]Transport
	config     WorkerConfig
}

// NewWorker creates a delivery worker
func NewWorker(deliveries DeliveryStore, triggers TriggerStore, channels ChannelResolver, transports map[string]Transport, config WorkerConfig) *Worker {
	if config.PoolSize <= 0 {
		config.PoolSize = 4
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = 30 * time.Second
	}
	return &Worker{
		deliveries: deliveries,
		triggers:   triggers,
		channels:   channels,
		transports: transports,
		config:     config,
	}
}

// Run polls for due deliveries until the context is cancelled
func (w *Worker) Run(ctx context.Context) {
	log.Printf("Starting delivery worker: pool=%d poll=%s", w.config.PoolSize, w.config.PollInterval)

	jobs := make(chan *models.NotificationDelivery)
	var wg sync.WaitGroup
	for i := 0; i < w.config.PoolSize; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for delivery := range jobs {
				w.Attempt(ctx, delivery)
			}
		}()
	}

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			log.Println("Delivery worker stopped")
			return
		case <-ticker.C:
			claimed, err := w.deliveries.ClaimDueDeliveries(ctx, w.config.PoolSize*2)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("Failed to claim due deliveries: %v", err)
				}
				continue
			}
			for _, delivery := range claimed {
				select {
				case jobs <- delivery:
				case <-ctx.Done():
				}
			}
		}
	}
}

// Attempt performs one delivery attempt and persists the outcome. The
// claim made the delivery exclusively ours; the terminal-status guard
// in the store keeps a crashed-and-resumed attempt from double-sending.
func (w *Worker) Attempt(ctx context.Context, delivery *models.NotificationDelivery) {
	if delivery.IsTerminal() {
		return
	}

	transport, ok := w.transports[delivery.NotificationType]
	if !ok {
		w.finalize(ctx, delivery, fmt.Sprintf("unknown channel: %s", delivery.NotificationType))
		return
	}

	payload, err := w.buildPayload(ctx, delivery)
	if err != nil {
		log.Printf("Failed to build payload for delivery %d: %v", delivery.ID, err)
		// The trigger row is missing or unreadable; leave the delivery
		// claimed until the lease expires, then it gets retried.
		return
	}

	attemptCtx, cancel := context.WithTimeout(ctx, w.config.AttemptTimeout)
	sendErr := transport.Send(attemptCtx, payload)
	cancel()

	now := time.Now()
	if sendErr == nil {
		won, err := w.deliveries.MarkDelivered(ctx, delivery.ID, now)
		if err != nil {
			log.Printf("Failed to mark delivery %d delivered: %v", delivery.ID, err)
			return
		}
		if !won {
			log.Printf("Delivery %d already finalized elsewhere, skipping", delivery.ID)
			return
		}
		log.Printf("Delivered notification %d via %s (retries used: %d)",
			delivery.ID, delivery.NotificationType, delivery.RetryCount)
		return
	}

	message := truncateError(sendErr.Error())
	if IsPermanent(sendErr) {
		log.Printf("Delivery %d permanently rejected by %s: %s", delivery.ID, delivery.NotificationType, message)
		w.finalize(ctx, delivery, message)
		return
	}

	if delivery.RetryCount >= models.MaxDeliveryRetries {
		log.Printf("Delivery %d exhausted retry budget on %s: %s", delivery.ID, delivery.NotificationType, message)
		w.finalize(ctx, delivery, message)
		return
	}

	retryCount := delivery.RetryCount + 1
	nextAttempt := now.Add(models.RetryBackoff[retryCount-1])
	if err := w.deliveries.ScheduleRetry(ctx, delivery.ID, retryCount, nextAttempt, message, now); err != nil {
		log.Printf("Failed to schedule retry for delivery %d: %v", delivery.ID, err)
		return
	}
	log.Printf("Delivery %d attempt failed (%s), retry %d/%d at %s",
		delivery.ID, message, retryCount, models.MaxDeliveryRetries, nextAttempt.Format(time.RFC3339))
}

func (w *Worker) finalize(ctx context.Context, delivery *models.NotificationDelivery, message string) {
	if err := w.deliveries.MarkFailed(ctx, delivery.ID, message, time.Now()); err != nil {
		log.Printf("Failed to mark delivery %d failed: %v", delivery.ID, err)
	}
}

func (w *Worker) buildPayload(ctx context.Context, delivery *models.NotificationDelivery) (Payload, error) {
	trigger, err := w.triggers.GetTriggerByID(ctx, delivery.AlertTriggerID)
	if err != nil {
		return Payload{}, err
	}

	payload := Payload{
		UserID:  delivery.UserID,
		Channel: delivery.NotificationType,
		Symbol:  trigger.Symbol,
		Message: trigger.TriggerMessage,
	}

	if delivery.NotificationType == models.ChannelSound {
		settings, err := w.channels.GetChannelSettings(ctx, delivery.UserID)
		if err != nil {
			return Payload{}, err
		}
		payload.SoundType = settings.SoundType
	}
	return payload, nil
}

// truncateError bounds stored error messages. Transports already
// sanitize credential material before errors get here.
func truncateError(message string) string {
	const maxLen = 500
	if len(message) > maxLen {
		return message[:maxLen]
	}
	return message
}
