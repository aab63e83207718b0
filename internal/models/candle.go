package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeriesPriceClose is the series key for the candle close price.
const SeriesPriceClose = "price:close"

// CandleEvent represents a Kafka event for a completed candle, carrying
// the bar's price fields plus every indicator value and discrete signal
// computed for it by the upstream indicator pipeline.
type CandleEvent struct {
	EventType string      `json:"event_type"`
	Symbol    string      `json:"symbol"`
	Tick      *CandleTick `json:"tick,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// CandleTick is one completed bar for one symbol. Indicators maps
// indicator name to its fields (e.g. "BBANDS" -> {"upper": ..., "lower": ...});
// Signals carries discrete indicator signals (e.g. "TDFI" -> "long").
type CandleTick struct {
	Symbol       string                                `json:"symbol"`
	BarOpenTime  time.Time                             `json:"bar_open_time"`
	BarCloseTime time.Time                             `json:"bar_close_time"`
	Open         decimal.Decimal                       `json:"open"`
	High         decimal.Decimal                       `json:"high"`
	Low          decimal.Decimal                       `json:"low"`
	Close        decimal.Decimal                       `json:"close"`
	Volume       int64                                 `json:"volume"`
	Indicators   map[string]map[string]decimal.Decimal `json:"indicators,omitempty"`
	Signals      map[string]string                     `json:"signals,omitempty"`
}

// SeriesValues flattens the tick into series-key form: the close price
// plus every indicator field, keyed the way Alert.SeriesKey keys them.
func (t *CandleTick) SeriesValues() map[string]decimal.Decimal {
	values := map[string]decimal.Decimal{
		SeriesPriceClose: t.Close,
	}
	for name, fields := range t.Indicators {
		for field, value := range fields {
			values["ind:"+name+":"+field] = value
		}
	}
	return values
}
