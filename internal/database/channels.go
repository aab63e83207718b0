package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chartwatch/alert-engine/internal/models"
)

// GetChannelSettings retrieves a user's global channel enablement.
// A user with no stored row gets the defaults (toast and sound on,
// telegram off until credentials are configured).
func (db *DB) GetChannelSettings(ctx context.Context, userID string) (*models.ChannelSettings, error) {
	query := `
		SELECT user_id, toast_enabled, sound_enabled, telegram_enabled, sound_type, updated_at
		FROM channel_settings
		WHERE user_id = $1
	`
	var s models.ChannelSettings
	var soundType sql.NullString
	err := db.conn.QueryRowContext(ctx, query, userID).Scan(
		&s.UserID, &s.ToastEnabled, &s.SoundEnabled, &s.TelegramEnabled, &soundType, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return &models.ChannelSettings{
			UserID:       userID,
			ToastEnabled: true,
			SoundEnabled: true,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel settings: %w", err)
	}
	if soundType.Valid {
		s.SoundType = soundType.String
	}
	return &s, nil
}

// UpsertChannelSettings stores a user's global channel enablement
func (db *DB) UpsertChannelSettings(ctx context.Context, s *models.ChannelSettings) error {
	query := `
		INSERT INTO channel_settings (user_id, toast_enabled, sound_enabled, telegram_enabled, sound_type, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			toast_enabled = EXCLUDED.toast_enabled,
			sound_enabled = EXCLUDED.sound_enabled,
			telegram_enabled = EXCLUDED.telegram_enabled,
			sound_type = EXCLUDED.sound_type,
			updated_at = EXCLUDED.updated_at
	`
	s.UpdatedAt = time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		s.UserID, s.ToastEnabled, s.SoundEnabled, s.TelegramEnabled, s.SoundType, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert channel settings: %w", err)
	}
	return nil
}

// GetChannelOverride retrieves the per-alert channel override.
// Returns nil when the alert has none, meaning "inherit global".
func (db *DB) GetChannelOverride(ctx context.Context, alertID int) (*models.ChannelOverride, error) {
	query := `
		SELECT alert_id, toast_enabled, sound_enabled, telegram_enabled, updated_at
		FROM alert_channel_overrides
		WHERE alert_id = $1
	`
	var o models.ChannelOverride
	var toast, sound, telegram sql.NullBool
	err := db.conn.QueryRowContext(ctx, query, alertID).Scan(
		&o.AlertID, &toast, &sound, &telegram, &o.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel override: %w", err)
	}

	if toast.Valid {
		o.ToastEnabled = &toast.Bool
	}
	if sound.Valid {
		o.SoundEnabled = &sound.Bool
	}
	if telegram.Valid {
		o.TelegramEnabled = &telegram.Bool
	}
	return &o, nil
}

// UpsertChannelOverride stores the per-alert channel override. Nil
// fields persist as NULL, which means "inherit global" for that channel.
func (db *DB) UpsertChannelOverride(ctx context.Context, o *models.ChannelOverride) error {
	query := `
		INSERT INTO alert_channel_overrides (alert_id, toast_enabled, sound_enabled, telegram_enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (alert_id) DO UPDATE SET
			toast_enabled = EXCLUDED.toast_enabled,
			sound_enabled = EXCLUDED.sound_enabled,
			telegram_enabled = EXCLUDED.telegram_enabled,
			updated_at = EXCLUDED.updated_at
	`
	o.UpdatedAt = time.Now()
	_, err := db.conn.ExecContext(ctx, query,
		o.AlertID, o.ToastEnabled, o.SoundEnabled, o.TelegramEnabled, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert channel override: %w", err)
	}
	return nil
}

// DeleteChannelOverride removes a per-alert override so the alert
// falls back to the user's global settings.
func (db *DB) DeleteChannelOverride(ctx context.Context, alertID int) error {
	query := `DELETE FROM alert_channel_overrides WHERE alert_id = $1`
	if _, err := db.conn.ExecContext(ctx, query, alertID); err != nil {
		return fmt.Errorf("failed to delete channel override: %w", err)
	}
	return nil
}
