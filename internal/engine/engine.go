package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chartwatch/alert-engine/internal/models"
)

// AlertStore defines the alert persistence operations the engine needs
type AlertStore interface {
	GetActiveAlertsBySymbol(ctx context.Context, symbol string) ([]*models.Alert, error)
	RecordTriggers(ctx context.Context, a *models.Alert, triggers []*models.AlertTrigger) error
}

// SeriesStore is the per-(symbol, series) keyed history owned by the
// value source. History returns up to the three most recent closed
// values, newest first, excluding the tick currently being evaluated.
type SeriesStore interface {
	History(ctx context.Context, symbol, series string) ([]decimal.Decimal, error)
	SignalHistory(ctx context.Context, symbol, indicator string) ([]string, error)
	Record(ctx context.Context, tick *models.CandleTick) error
}

// Dispatcher fans a recorded trigger out to its notification channels
type Dispatcher interface {
	Dispatch(ctx context.Context, alert *models.Alert, trigger *models.AlertTrigger) error
}

// Engine evaluates completed candle ticks against the alerts for that
// symbol. Callers must not invoke HandleTick concurrently for the same
// symbol; different symbols are safe in parallel since the engine keeps
// no per-symbol state of its own.
type Engine struct {
	alerts     AlertStore
	series     SeriesStore
	dispatcher Dispatcher
}

// New creates a new evaluation engine
func New(alerts AlertStore, series SeriesStore, dispatcher Dispatcher) *Engine {
	return &Engine{
		alerts:     alerts,
		series:     series,
		dispatcher: dispatcher,
	}
}

// HandleTick evaluates one completed bar for one symbol: all alerts for
// the symbol sequentially, then the series history update. The history
// push happens last so a failed tick is replayed from scratch against
// the same prev/prev_prev values.
func (e *Engine) HandleTick(ctx context.Context, tick *models.CandleTick) error {
	alerts, err := e.alerts.GetActiveAlertsBySymbol(ctx, tick.Symbol)
	if err != nil {
		return fmt.Errorf("failed to load alerts for %s: %w", tick.Symbol, err)
	}

	values := tick.SeriesValues()

	for _, alert := range alerts {
		if err := e.evaluateAlert(ctx, alert, tick, values); err != nil {
			return err
		}
	}

	if err := e.series.Record(ctx, tick); err != nil {
		return fmt.Errorf("failed to record series history for %s: %w", tick.Symbol, err)
	}
	return nil
}

func (e *Engine) evaluateAlert(ctx context.Context, alert *models.Alert, tick *models.CandleTick, values map[string]decimal.Decimal) error {
	inputs, err := e.buildInputs(ctx, alert, tick, values)
	if err != nil {
		// Missing or unreadable history means no transition observed.
		log.Printf("history unavailable for alert %d (%s %s): %v", alert.ID, alert.Symbol, alert.SeriesKey(), err)
		return nil
	}

	var fired []string
	for _, cond := range alert.Conditions() {
		if Evaluate(cond, inputs, alert.Params) {
			fired = append(fired, cond)
		}
	}
	if len(fired) == 0 {
		return nil
	}

	// Muting suppresses triggers entirely; evaluation above still ran
	// so series history stays current.
	if alert.IsMuted {
		return nil
	}
	if e.inCooldown(alert, tick.BarCloseTime) {
		return nil
	}

	barTime := triggerBarTime(alert.TriggerMode, tick)
	if alert.LastBarTriggered != nil && alert.LastBarTriggered.Equal(barTime) {
		return nil
	}

	observed := decimal.Zero
	if inputs.Curr != nil {
		observed = *inputs.Curr
	}

	triggers := make([]*models.AlertTrigger, 0, len(fired))
	for _, cond := range fired {
		triggers = append(triggers, &models.AlertTrigger{
			AlertID:        alert.ID,
			Symbol:         alert.Symbol,
			TriggerType:    cond,
			ObservedValue:  observed,
			TriggerMessage: renderMessage(alert, cond, observed),
			TriggeredAt:    tick.BarCloseTime,
		})
	}

	// One cooldown per alert per tick, even when several conditions
	// fired simultaneously.
	triggeredAt := tick.BarCloseTime
	alert.LastTriggeredAt = &triggeredAt
	alert.LastBarTriggered = &barTime
	if alert.TriggerMode == models.TriggerModeOnce {
		alert.IsActive = false
	}

	if err := e.alerts.RecordTriggers(ctx, alert, triggers); err != nil {
		return fmt.Errorf("failed to record triggers for alert %d: %w", alert.ID, err)
	}

	for _, trigger := range triggers {
		if err := e.dispatcher.Dispatch(ctx, alert, trigger); err != nil {
			// The trigger is durably recorded; delivery fan-out errors
			// must not fail the tick.
			log.Printf("failed to dispatch trigger %d for alert %d: %v", trigger.ID, alert.ID, err)
		}
	}
	return nil
}

func (e *Engine) buildInputs(ctx context.Context, alert *models.Alert, tick *models.CandleTick, values map[string]decimal.Decimal) (Inputs, error) {
	var in Inputs

	if curr, ok := values[alert.SeriesKey()]; ok {
		c := curr
		in.Curr = &c
	}

	history, err := e.series.History(ctx, tick.Symbol, alert.SeriesKey())
	if err != nil {
		return Inputs{}, err
	}
	if len(history) > 0 {
		in.Prev = &history[0]
	}
	if len(history) > 1 {
		in.PrevPrev = &history[1]
	}

	if alert.IndicatorName != nil {
		in.CurrSignal = tick.Signals[*alert.IndicatorName]
		signals, err := e.series.SignalHistory(ctx, tick.Symbol, *alert.IndicatorName)
		if err != nil {
			return Inputs{}, err
		}
		if len(signals) > 0 {
			in.PrevSignal = signals[0]
		}
	}
	return in, nil
}

// inCooldown checks the alert's cached last trigger time against the
// bar clock, keeping replays deterministic.
func (e *Engine) inCooldown(alert *models.Alert, barClose time.Time) bool {
	if alert.LastTriggeredAt == nil {
		return false
	}
	cooldown := time.Duration(alert.CooldownSeconds) * time.Second
	return barClose.Sub(*alert.LastTriggeredAt) < cooldown
}

func triggerBarTime(triggerMode string, tick *models.CandleTick) time.Time {
	if triggerMode == models.TriggerModeOncePerBar {
		return tick.BarOpenTime
	}
	return tick.BarCloseTime
}

// renderMessage resolves the alert's message template for a condition
// at trigger time. The rendered message is stored on the trigger and
// never re-resolved, so later template edits cannot rewrite history.
func renderMessage(alert *models.Alert, conditionType string, observed decimal.Decimal) string {
	tmpl := alert.MessageTemplates[conditionType]
	if tmpl == "" {
		return fmt.Sprintf("%s: %s fired at %s", alert.Symbol, conditionType, observed.String())
	}
	return strings.NewReplacer(
		"{{symbol}}", alert.Symbol,
		"{{condition}}", conditionType,
		"{{value}}", observed.String(),
		"{{threshold}}", thresholdFor(conditionType, alert.Params),
	).Replace(tmpl)
}

func thresholdFor(conditionType string, params models.ConditionParams) string {
	var v *decimal.Decimal
	switch conditionType {
	case models.ConditionAbove, models.ConditionBelow, models.ConditionCrossesUp, models.ConditionCrossesDown:
		v = params.Threshold
	case models.ConditionBandUpperCross:
		v = params.UpperBand
	case models.ConditionBandLowerCross:
		v = params.LowerBand
	case models.ConditionTurnsPositive:
		v = params.UpperThreshold
	case models.ConditionTurnsNegative:
		v = params.LowerThreshold
	}
	if v == nil {
		return ""
	}
	return v.String()
}
