package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chartwatch/alert-engine/internal/models"
)

const alertColumns = `
	id, user_id, symbol, condition_type, enabled_conditions, params,
	indicator_name, indicator_field, cooldown_seconds, trigger_mode,
	is_active, is_muted, last_triggered_at, last_bar_triggered,
	message_templates, created_at, updated_at`

// CreateAlert inserts a new alert rule
func (db *DB) CreateAlert(ctx context.Context, a *models.Alert) error {
	query := `
		INSERT INTO alerts (
			user_id, symbol, condition_type, enabled_conditions, params,
			indicator_name, indicator_field, cooldown_seconds, trigger_mode,
			is_active, is_muted, message_templates, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id
	`
	enabledConditions, err := json.Marshal(a.EnabledConditions)
	if err != nil {
		return fmt.Errorf("failed to marshal enabled conditions: %w", err)
	}
	params, err := json.Marshal(a.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal condition params: %w", err)
	}
	templates, err := json.Marshal(a.MessageTemplates)
	if err != nil {
		return fmt.Errorf("failed to marshal message templates: %w", err)
	}

	now := time.Now()
	err = db.conn.QueryRowContext(ctx, query,
		a.UserID, a.Symbol, a.ConditionType, enabledConditions, params,
		a.IndicatorName, a.IndicatorField, a.CooldownSeconds, a.TriggerMode,
		a.IsActive, a.IsMuted, templates, now, now,
	).Scan(&a.ID)

	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// GetAlertByID retrieves an alert by ID
func (db *DB) GetAlertByID(ctx context.Context, id int) (*models.Alert, error) {
	query := `SELECT` + alertColumns + ` FROM alerts WHERE id = $1`
	row := db.conn.QueryRowContext(ctx, query, id)

	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// GetAlertsByUser retrieves all alerts owned by a user
func (db *DB) GetAlertsByUser(ctx context.Context, userID string) ([]*models.Alert, error) {
	query := `SELECT` + alertColumns + ` FROM alerts WHERE user_id = $1 ORDER BY created_at DESC`
	return db.scanAlerts(db.conn.QueryContext(ctx, query, userID))
}

// GetActiveAlertsBySymbol retrieves active alerts for a symbol, ordered
// by ID so evaluation order is stable across ticks. Muted alerts are
// included: muting suppresses triggers, not evaluation.
func (db *DB) GetActiveAlertsBySymbol(ctx context.Context, symbol string) ([]*models.Alert, error) {
	query := `SELECT` + alertColumns + ` FROM alerts WHERE symbol = $1 AND is_active = true ORDER BY id`
	return db.scanAlerts(db.conn.QueryContext(ctx, query, symbol))
}

// UpdateAlert updates an existing alert's rule definition
func (db *DB) UpdateAlert(ctx context.Context, a *models.Alert) error {
	query := `
		UPDATE alerts SET
			condition_type = $2, enabled_conditions = $3, params = $4,
			indicator_name = $5, indicator_field = $6, cooldown_seconds = $7,
			trigger_mode = $8, is_active = $9, message_templates = $10, updated_at = $11
		WHERE id = $1
	`
	enabledConditions, err := json.Marshal(a.EnabledConditions)
	if err != nil {
		return fmt.Errorf("failed to marshal enabled conditions: %w", err)
	}
	params, err := json.Marshal(a.Params)
	if err != nil {
		return fmt.Errorf("failed to marshal condition params: %w", err)
	}
	templates, err := json.Marshal(a.MessageTemplates)
	if err != nil {
		return fmt.Errorf("failed to marshal message templates: %w", err)
	}

	a.UpdatedAt = time.Now()
	result, err := db.conn.ExecContext(ctx, query,
		a.ID, a.ConditionType, enabledConditions, params,
		a.IndicatorName, a.IndicatorField, a.CooldownSeconds,
		a.TriggerMode, a.IsActive, templates, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("alert not found: %d", a.ID)
	}
	return nil
}

// SetAlertMuted flips the mute flag on an alert
func (db *DB) SetAlertMuted(ctx context.Context, id int, muted bool) error {
	query := `UPDATE alerts SET is_muted = $2, updated_at = $3 WHERE id = $1`
	result, err := db.conn.ExecContext(ctx, query, id, muted, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set alert muted: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("alert not found: %d", id)
	}
	return nil
}

// DeleteAlert removes an alert by ID. Recorded triggers and their
// deliveries are kept for audit.
func (db *DB) DeleteAlert(ctx context.Context, id int) error {
	query := `DELETE FROM alerts WHERE id = $1`
	result, err := db.conn.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("alert not found: %d", id)
	}
	return nil
}

// RecordTriggers inserts the tick's fired triggers and updates the
// alert's trigger state in one transaction, so a crash can never leave
// a trigger recorded without the cooldown applied or vice versa.
//
// The caller sets LastTriggeredAt/LastBarTriggered/IsActive on the
// alert before calling; this persists them together with the inserts.
func (db *DB) RecordTriggers(ctx context.Context, a *models.Alert, triggers []*models.AlertTrigger) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO alert_triggers (alert_id, symbol, trigger_type, observed_value, trigger_message, triggered_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	now := time.Now()
	for _, trigger := range triggers {
		err := tx.QueryRowContext(ctx, insert,
			trigger.AlertID, trigger.Symbol, trigger.TriggerType,
			trigger.ObservedValue, trigger.TriggerMessage, trigger.TriggeredAt, now,
		).Scan(&trigger.ID)
		if err != nil {
			return fmt.Errorf("failed to insert alert trigger: %w", err)
		}
		trigger.CreatedAt = now
	}

	update := `
		UPDATE alerts SET
			is_active = $2, last_triggered_at = $3, last_bar_triggered = $4, updated_at = $5
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, update,
		a.ID, a.IsActive, a.LastTriggeredAt, a.LastBarTriggered, now,
	); err != nil {
		return fmt.Errorf("failed to update alert trigger state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trigger transaction: %w", err)
	}
	return nil
}

func (db *DB) scanAlerts(rows *sql.Rows, err error) ([]*models.Alert, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var enabledConditions, params, templates []byte
	var indicatorName, indicatorField sql.NullString
	var lastTriggeredAt, lastBarTriggered sql.NullTime

	err := row.Scan(
		&a.ID, &a.UserID, &a.Symbol, &a.ConditionType, &enabledConditions, &params,
		&indicatorName, &indicatorField, &a.CooldownSeconds, &a.TriggerMode,
		&a.IsActive, &a.IsMuted, &lastTriggeredAt, &lastBarTriggered,
		&templates, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(enabledConditions) > 0 {
		if err := json.Unmarshal(enabledConditions, &a.EnabledConditions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal enabled conditions: %w", err)
		}
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &a.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal condition params: %w", err)
		}
	}
	if len(templates) > 0 {
		if err := json.Unmarshal(templates, &a.MessageTemplates); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message templates: %w", err)
		}
	}
	if indicatorName.Valid {
		a.IndicatorName = &indicatorName.String
	}
	if indicatorField.Valid {
		a.IndicatorField = &indicatorField.String
	}
	if lastTriggeredAt.Valid {
		a.LastTriggeredAt = &lastTriggeredAt.Time
	}
	if lastBarTriggered.Valid {
		a.LastBarTriggered = &lastBarTriggered.Time
	}

	return &a, nil
}
