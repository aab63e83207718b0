package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertTrigger is the immutable record of one fired condition. The
// engine only ever inserts these; nothing in the evaluation path
// updates or deletes a trigger after it is written.
type AlertTrigger struct {
	ID             int             `json:"id"`
	AlertID        int             `json:"alert_id"`
	Symbol         string          `json:"symbol"`
	TriggerType    string          `json:"trigger_type"`
	ObservedValue  decimal.Decimal `json:"observed_value"`
	TriggerMessage string          `json:"trigger_message"`
	TriggeredAt    time.Time       `json:"triggered_at"`
	CreatedAt      time.Time       `json:"created_at"`
}
