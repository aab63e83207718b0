package engine

import (
	"github.com/shopspring/decimal"

	"github.com/chartwatch/alert-engine/internal/models"
)

// Inputs carries the observed values for one condition evaluation.
// Nil means the history point does not exist yet; missing history never
// fires a condition, it just means no transition was observed.
type Inputs struct {
	PrevPrev   *decimal.Decimal
	Prev       *decimal.Decimal
	Curr       *decimal.Decimal
	PrevSignal string
	CurrSignal string
}

// Evaluate reports whether a single condition fired for the given
// inputs. It is pure and never errors: malformed or missing inputs
// evaluate to not-fired.
//
// The band-cross predicates are intentionally asymmetric (strict on one
// side, inclusive on the other) to match the legacy charting behavior.
func Evaluate(conditionType string, in Inputs, params models.ConditionParams) bool {
	switch conditionType {
	case models.ConditionAbove:
		if in.Prev == nil || in.Curr == nil || params.Threshold == nil {
			return false
		}
		return in.Curr.GreaterThan(*params.Threshold) && in.Prev.LessThanOrEqual(*params.Threshold)

	case models.ConditionBelow:
		if in.Prev == nil || in.Curr == nil || params.Threshold == nil {
			return false
		}
		return in.Curr.LessThan(*params.Threshold) && in.Prev.GreaterThanOrEqual(*params.Threshold)

	case models.ConditionCrossesUp:
		if in.Prev == nil || in.Curr == nil || params.Threshold == nil {
			return false
		}
		return in.Prev.LessThan(*params.Threshold) && in.Curr.GreaterThanOrEqual(*params.Threshold)

	case models.ConditionCrossesDown:
		if in.Prev == nil || in.Curr == nil || params.Threshold == nil {
			return false
		}
		return in.Prev.GreaterThan(*params.Threshold) && in.Curr.LessThanOrEqual(*params.Threshold)

	case models.ConditionBandUpperCross:
		if in.Prev == nil || in.Curr == nil || params.UpperBand == nil {
			return false
		}
		return in.Prev.LessThanOrEqual(*params.UpperBand) && in.Curr.GreaterThan(*params.UpperBand)

	case models.ConditionBandLowerCross:
		if in.Prev == nil || in.Curr == nil || params.LowerBand == nil {
			return false
		}
		return in.Prev.GreaterThanOrEqual(*params.LowerBand) && in.Curr.LessThan(*params.LowerBand)

	case models.ConditionTurnsPositive:
		if in.Prev == nil || in.Curr == nil || params.UpperThreshold == nil || params.LowerThreshold == nil {
			return false
		}
		return in.Prev.LessThanOrEqual(*params.LowerThreshold) && in.Curr.GreaterThanOrEqual(*params.UpperThreshold)

	case models.ConditionTurnsNegative:
		if in.Prev == nil || in.Curr == nil || params.UpperThreshold == nil || params.LowerThreshold == nil {
			return false
		}
		return in.Prev.GreaterThanOrEqual(*params.UpperThreshold) && in.Curr.LessThanOrEqual(*params.LowerThreshold)

	case models.ConditionSlopeBullish:
		if in.PrevPrev == nil || in.Prev == nil || in.Curr == nil {
			return false
		}
		prevSlope := in.Prev.Sub(*in.PrevPrev)
		currSlope := in.Curr.Sub(*in.Prev)
		return prevSlope.LessThanOrEqual(decimal.Zero) && currSlope.GreaterThan(decimal.Zero)

	case models.ConditionSlopeBearish:
		if in.PrevPrev == nil || in.Prev == nil || in.Curr == nil {
			return false
		}
		prevSlope := in.Prev.Sub(*in.PrevPrev)
		currSlope := in.Curr.Sub(*in.Prev)
		return prevSlope.GreaterThanOrEqual(decimal.Zero) && currSlope.LessThan(decimal.Zero)

	case models.ConditionSignalChange:
		if in.PrevSignal == "" || in.CurrSignal == "" {
			return false
		}
		return in.PrevSignal != in.CurrSignal

	default:
		return false
	}
}
