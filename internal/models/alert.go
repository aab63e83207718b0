package models

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Condition type constants
const (
	ConditionAbove          = "above"
	ConditionBelow          = "below"
	ConditionCrossesUp      = "crosses_up"
	ConditionCrossesDown    = "crosses_down"
	ConditionBandUpperCross = "band_upper_cross"
	ConditionBandLowerCross = "band_lower_cross"
	ConditionTurnsPositive  = "turns_positive"
	ConditionTurnsNegative  = "turns_negative"
	ConditionSlopeBullish   = "slope_bullish"
	ConditionSlopeBearish   = "slope_bearish"
	ConditionSignalChange   = "signal_change"
)

// Trigger mode constants
const (
	TriggerModeOnce            = "once"
	TriggerModeOncePerBar      = "once_per_bar"
	TriggerModeOncePerBarClose = "once_per_bar_close"
)

// DefaultCooldownSeconds is applied when an alert is created without one.
const DefaultCooldownSeconds = 60

// ConditionParams holds the closed parameter schema for a condition.
// Which fields are required depends on the condition type; ValidateFor
// enforces that at creation time so the evaluator never sees a
// malformed parameter set.
type ConditionParams struct {
	Threshold      *decimal.Decimal `json:"threshold,omitempty"`
	UpperBand      *decimal.Decimal `json:"upper_band,omitempty"`
	LowerBand      *decimal.Decimal `json:"lower_band,omitempty"`
	UpperThreshold *decimal.Decimal `json:"upper_threshold,omitempty"`
	LowerThreshold *decimal.Decimal `json:"lower_threshold,omitempty"`
}

// Alert represents a user-owned alert rule bound to one symbol.
//
// ConditionType is the primary condition; EnabledConditions optionally
// bundles additional directional conditions (e.g. both band crosses),
// each independently enableable. An empty map means only ConditionType
// is evaluated.
type Alert struct {
	ID                int               `json:"id"`
	UserID            string            `json:"user_id"`
	Symbol            string            `json:"symbol"`
	ConditionType     string            `json:"condition_type"`
	EnabledConditions map[string]bool   `json:"enabled_conditions,omitempty"`
	Params            ConditionParams   `json:"params"`
	IndicatorName     *string           `json:"indicator_name,omitempty"`
	IndicatorField    *string           `json:"indicator_field,omitempty"`
	CooldownSeconds   int               `json:"cooldown_seconds"`
	TriggerMode       string            `json:"trigger_mode"`
	IsActive          bool              `json:"is_active"`
	IsMuted           bool              `json:"is_muted"`
	LastTriggeredAt   *time.Time        `json:"last_triggered_at,omitempty"`
	LastBarTriggered  *time.Time        `json:"last_bar_triggered,omitempty"`
	MessageTemplates  map[string]string `json:"message_templates,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Conditions returns the set of condition types this alert evaluates:
// the primary condition plus every enabled entry of EnabledConditions,
// in stable order so multi-condition fan-out is deterministic.
func (a *Alert) Conditions() []string {
	conditions := []string{a.ConditionType}
	var extra []string
	for cond, enabled := range a.EnabledConditions {
		if enabled && cond != a.ConditionType {
			extra = append(extra, cond)
		}
	}
	sort.Strings(extra)
	return append(conditions, extra...)
}

// SeriesKey identifies the value series this alert observes: the close
// price when no indicator is configured, otherwise the indicator field.
func (a *Alert) SeriesKey() string {
	if a.IndicatorName == nil {
		return SeriesPriceClose
	}
	field := "value"
	if a.IndicatorField != nil {
		field = *a.IndicatorField
	}
	return "ind:" + *a.IndicatorName + ":" + field
}

// Validate checks alert invariants and the per-condition parameter schema.
func (a *Alert) Validate() error {
	if a.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if a.CooldownSeconds < 1 {
		return fmt.Errorf("cooldown_seconds must be >= 1")
	}
	if a.IndicatorName != nil && a.IndicatorField == nil {
		return fmt.Errorf("indicator_field is required when indicator_name is set")
	}
	switch a.TriggerMode {
	case TriggerModeOnce, TriggerModeOncePerBar, TriggerModeOncePerBarClose:
	default:
		return fmt.Errorf("invalid trigger_mode: %s", a.TriggerMode)
	}
	for _, cond := range a.Conditions() {
		if err := a.Params.ValidateFor(cond); err != nil {
			return err
		}
	}
	return nil
}

// ValidateFor checks that the parameters a condition type needs are present.
func (p *ConditionParams) ValidateFor(conditionType string) error {
	switch conditionType {
	case ConditionAbove, ConditionBelow, ConditionCrossesUp, ConditionCrossesDown:
		if p.Threshold == nil {
			return fmt.Errorf("condition %s requires threshold", conditionType)
		}
	case ConditionBandUpperCross:
		if p.UpperBand == nil {
			return fmt.Errorf("condition %s requires upper_band", conditionType)
		}
	case ConditionBandLowerCross:
		if p.LowerBand == nil {
			return fmt.Errorf("condition %s requires lower_band", conditionType)
		}
	case ConditionTurnsPositive, ConditionTurnsNegative:
		if p.UpperThreshold == nil || p.LowerThreshold == nil {
			return fmt.Errorf("condition %s requires upper_threshold and lower_threshold", conditionType)
		}
	case ConditionSlopeBullish, ConditionSlopeBearish, ConditionSignalChange:
		// no parameters
	default:
		return fmt.Errorf("unknown condition type: %s", conditionType)
	}
	return nil
}
