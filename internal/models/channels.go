package models

import "time"

// ChannelSettings holds a user's global notification channel enablement.
type ChannelSettings struct {
	UserID          string    `json:"user_id"`
	ToastEnabled    bool      `json:"toast_enabled"`
	SoundEnabled    bool      `json:"sound_enabled"`
	TelegramEnabled bool      `json:"telegram_enabled"`
	SoundType       string    `json:"sound_type,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Enabled reports whether the given channel is globally enabled.
func (s *ChannelSettings) Enabled(channel string) bool {
	switch channel {
	case ChannelToast:
		return s.ToastEnabled
	case ChannelSound:
		return s.SoundEnabled
	case ChannelTelegram:
		return s.TelegramEnabled
	default:
		return false
	}
}

// ChannelOverride holds per-alert channel overrides. A nil field means
// "inherit the user's global setting" for that channel.
type ChannelOverride struct {
	AlertID         int       `json:"alert_id"`
	ToastEnabled    *bool     `json:"toast_enabled,omitempty"`
	SoundEnabled    *bool     `json:"sound_enabled,omitempty"`
	TelegramEnabled *bool     `json:"telegram_enabled,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Resolve applies the override on top of the global settings and
// returns the effective channel set for an alert.
func (o *ChannelOverride) Resolve(global *ChannelSettings) []string {
	resolve := func(channel string, override *bool) bool {
		if override != nil {
			return *override
		}
		return global.Enabled(channel)
	}

	var enabled []string
	if resolve(ChannelToast, o.toastPtr()) {
		enabled = append(enabled, ChannelToast)
	}
	if resolve(ChannelSound, o.soundPtr()) {
		enabled = append(enabled, ChannelSound)
	}
	if resolve(ChannelTelegram, o.telegramPtr()) {
		enabled = append(enabled, ChannelTelegram)
	}
	return enabled
}

func (o *ChannelOverride) toastPtr() *bool {
	if o == nil {
		return nil
	}
	return o.ToastEnabled
}

func (o *ChannelOverride) soundPtr() *bool {
	if o == nil {
		return nil
	}
	return o.SoundEnabled
}

func (o *ChannelOverride) telegramPtr() *bool {
	if o == nil {
		return nil
	}
	return o.TelegramEnabled
}
