package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chartwatch/alert-engine/internal/models"
)

// claimLease is how long a worker holds an exclusive claim on a
// delivery before other workers may pick it up again. Long enough to
// cover the per-attempt timeout plus the status write.
const claimLease = 2 * time.Minute

const deliveryColumns = `id, alert_trigger_id, user_id, notification_type, status, retry_count, last_retry_at, next_attempt_at, error_message, created_at, updated_at`

// CreateDeliveries inserts one pending delivery per channel for a
// trigger, all in one transaction and immediately due.
func (db *DB) CreateDeliveries(ctx context.Context, deliveries []*models.NotificationDelivery) error {
	if len(deliveries) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO notification_deliveries (
			alert_trigger_id, user_id, notification_type, status,
			retry_count, next_attempt_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	now := time.Now()
	for _, d := range deliveries {
		if d.Status == "" {
			d.Status = models.DeliveryStatusPending
		}
		if d.NextAttemptAt.IsZero() {
			d.NextAttemptAt = now
		}
		err := tx.QueryRowContext(ctx, query,
			d.AlertTriggerID, d.UserID, d.NotificationType, d.Status,
			d.RetryCount, d.NextAttemptAt, now, now,
		).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("failed to create notification delivery: %w", err)
		}
		d.CreatedAt = now
		d.UpdatedAt = now
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delivery inserts: %w", err)
	}
	return nil
}

// ClaimDueDeliveries atomically claims up to limit deliveries that are
// due for an attempt. The lease plus SKIP LOCKED guarantees no two
// workers ever hold the same delivery at once.
func (db *DB) ClaimDueDeliveries(ctx context.Context, limit int) ([]*models.NotificationDelivery, error) {
	query := `
		UPDATE notification_deliveries SET
			claimed_until = $1, updated_at = $2
		WHERE id IN (
			SELECT id FROM notification_deliveries
			WHERE status IN ($3, $4)
			  AND next_attempt_at <= $2
			  AND (claimed_until IS NULL OR claimed_until < $2)
			ORDER BY next_attempt_at
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + deliveryColumns

	now := time.Now()
	rows, err := db.conn.QueryContext(ctx, query,
		now.Add(claimLease), now,
		models.DeliveryStatusPending, models.DeliveryStatusRetrying, limit,
	)
	return db.scanDeliveries(rows, err)
}

// MarkDelivered records terminal success. The status guard makes the
// transition idempotent: a delivery that already reached a terminal
// status is left untouched and false is returned.
func (db *DB) MarkDelivered(ctx context.Context, id int, attemptedAt time.Time) (bool, error) {
	query := `
		UPDATE notification_deliveries SET
			status = $2, last_retry_at = $3, error_message = NULL,
			claimed_until = NULL, updated_at = $3
		WHERE id = $1 AND status IN ($4, $5)
	`
	result, err := db.conn.ExecContext(ctx, query,
		id, models.DeliveryStatusDelivered, attemptedAt,
		models.DeliveryStatusPending, models.DeliveryStatusRetrying,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark delivery delivered: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	return rowsAffected > 0, nil
}

// ScheduleRetry records a failed attempt: bumps retry_count, stores the
// sanitized error and sets the next attempt time.
func (db *DB) ScheduleRetry(ctx context.Context, id int, retryCount int, nextAttemptAt time.Time, errMessage string, attemptedAt time.Time) error {
	query := `
		UPDATE notification_deliveries SET
			status = $2, retry_count = $3, last_retry_at = $4,
			next_attempt_at = $5, error_message = $6,
			claimed_until = NULL, updated_at = $4
		WHERE id = $1 AND status IN ($7, $8)
	`
	_, err := db.conn.ExecContext(ctx, query,
		id, models.DeliveryStatusRetrying, retryCount, attemptedAt,
		nextAttemptAt, errMessage,
		models.DeliveryStatusPending, models.DeliveryStatusRetrying,
	)
	if err != nil {
		return fmt.Errorf("failed to schedule delivery retry: %w", err)
	}
	return nil
}

// MarkFailed records terminal failure after the retry budget is spent
// or the channel reported a permanent rejection.
func (db *DB) MarkFailed(ctx context.Context, id int, errMessage string, attemptedAt time.Time) error {
	query := `
		UPDATE notification_deliveries SET
			status = $2, last_retry_at = $3, error_message = $4,
			claimed_until = NULL, updated_at = $3
		WHERE id = $1 AND status IN ($5, $6)
	`
	_, err := db.conn.ExecContext(ctx, query,
		id, models.DeliveryStatusFailed, attemptedAt, errMessage,
		models.DeliveryStatusPending, models.DeliveryStatusRetrying,
	)
	if err != nil {
		return fmt.Errorf("failed to mark delivery failed: %w", err)
	}
	return nil
}

// ReleaseClaim drops a worker's lease without changing status, so the
// delivery becomes claimable again immediately.
func (db *DB) ReleaseClaim(ctx context.Context, id int) error {
	query := `UPDATE notification_deliveries SET claimed_until = NULL, updated_at = $2 WHERE id = $1`
	if _, err := db.conn.ExecContext(ctx, query, id, time.Now()); err != nil {
		return fmt.Errorf("failed to release delivery claim: %w", err)
	}
	return nil
}

// GetDeliveryByID retrieves a single notification delivery
func (db *DB) GetDeliveryByID(ctx context.Context, id int) (*models.NotificationDelivery, error) {
	query := `SELECT ` + deliveryColumns + ` FROM notification_deliveries WHERE id = $1`

	deliveries, err := db.scanDeliveries(db.conn.QueryContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if len(deliveries) == 0 {
		return nil, fmt.Errorf("notification delivery not found: %d", id)
	}
	return deliveries[0], nil
}

// GetDeliveriesByTriggerID retrieves all deliveries for one trigger
func (db *DB) GetDeliveriesByTriggerID(ctx context.Context, triggerID int) ([]*models.NotificationDelivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM notification_deliveries
		WHERE alert_trigger_id = $1
		ORDER BY id
	`
	return db.scanDeliveries(db.conn.QueryContext(ctx, query, triggerID))
}

// GetDeliveriesByStatus retrieves deliveries by status, newest first
func (db *DB) GetDeliveriesByStatus(ctx context.Context, status string, limit int) ([]*models.NotificationDelivery, error) {
	query := `
		SELECT ` + deliveryColumns + `
		FROM notification_deliveries
		WHERE status = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`
	return db.scanDeliveries(db.conn.QueryContext(ctx, query, status, limit))
}

func (db *DB) scanDeliveries(rows *sql.Rows, err error) ([]*models.NotificationDelivery, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query notification deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*models.NotificationDelivery
	for rows.Next() {
		var d models.NotificationDelivery
		var lastRetryAt sql.NullTime
		var errMessage sql.NullString

		err := rows.Scan(
			&d.ID, &d.AlertTriggerID, &d.UserID, &d.NotificationType, &d.Status,
			&d.RetryCount, &lastRetryAt, &d.NextAttemptAt, &errMessage,
			&d.CreatedAt, &d.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification delivery: %w", err)
		}

		if lastRetryAt.Valid {
			d.LastRetryAt = &lastRetryAt.Time
		}
		if errMessage.Valid {
			d.ErrorMessage = &errMessage.String
		}
		deliveries = append(deliveries, &d)
	}
	return deliveries, rows.Err()
}
