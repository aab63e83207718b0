package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chartwatch/alert-engine/internal/models"
)

// Trigger query bounds for the paginated read path.
const (
	DefaultTriggerLimit = 500
	MaxTriggerLimit     = 1000
)

const triggerColumns = `id, alert_id, symbol, trigger_type, observed_value, trigger_message, triggered_at, created_at`

// GetTriggerByID retrieves a single alert trigger
func (db *DB) GetTriggerByID(ctx context.Context, id int) (*models.AlertTrigger, error) {
	query := `SELECT ` + triggerColumns + ` FROM alert_triggers WHERE id = $1`

	var t models.AlertTrigger
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.AlertID, &t.Symbol, &t.TriggerType,
		&t.ObservedValue, &t.TriggerMessage, &t.TriggeredAt, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert trigger not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert trigger: %w", err)
	}
	return &t, nil
}

// GetTriggersByAlertID retrieves all triggers for one alert, newest first
func (db *DB) GetTriggersByAlertID(ctx context.Context, alertID int) ([]*models.AlertTrigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM alert_triggers
		WHERE alert_id = $1
		ORDER BY triggered_at DESC, id DESC
	`
	return db.scanTriggers(db.conn.QueryContext(ctx, query, alertID))
}

// GetRecentTriggers retrieves recent triggers across all symbols,
// newest first, bounded and paginated.
func (db *DB) GetRecentTriggers(ctx context.Context, limit, offset int) ([]*models.AlertTrigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM alert_triggers
		ORDER BY triggered_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	return db.scanTriggers(db.conn.QueryContext(ctx, query, clampTriggerLimit(limit), offset))
}

// GetRecentTriggersBySymbol retrieves recent triggers for one symbol,
// newest first, bounded and paginated.
func (db *DB) GetRecentTriggersBySymbol(ctx context.Context, symbol string, limit, offset int) ([]*models.AlertTrigger, error) {
	query := `
		SELECT ` + triggerColumns + `
		FROM alert_triggers
		WHERE symbol = $1
		ORDER BY triggered_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	return db.scanTriggers(db.conn.QueryContext(ctx, query, symbol, clampTriggerLimit(limit), offset))
}

func clampTriggerLimit(limit int) int {
	if limit <= 0 {
		return DefaultTriggerLimit
	}
	if limit > MaxTriggerLimit {
		return MaxTriggerLimit
	}
	return limit
}

func (db *DB) scanTriggers(rows *sql.Rows, err error) ([]*models.AlertTrigger, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query alert triggers: %w", err)
	}
	defer rows.Close()

	var triggers []*models.AlertTrigger
	for rows.Next() {
		var t models.AlertTrigger
		err := rows.Scan(
			&t.ID, &t.AlertID, &t.Symbol, &t.TriggerType,
			&t.ObservedValue, &t.TriggerMessage, &t.TriggeredAt, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert trigger: %w", err)
		}
		triggers = append(triggers, &t)
	}
	return triggers, rows.Err()
}
