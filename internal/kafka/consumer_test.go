package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConsumer(shards int) *Consumer {
	return &Consumer{shards: shards}
}

func TestParseMessage(t *testing.T) {
	c := testConsumer(4)

	t.Run("parses candle closed event", func(t *testing.T) {
		payload := `{
			"event_type": "CANDLE_CLOSED",
			"symbol": "AAPL",
			"tick": {
				"symbol": "AAPL",
				"bar_open_time": "2025-06-02T14:30:00Z",
				"bar_close_time": "2025-06-02T14:31:00Z",
				"open": "200.10",
				"high": "201.00",
				"low": "199.90",
				"close": "200.25",
				"volume": 15000,
				"indicators": {"RSI": {"value": "55.2"}},
				"signals": {"TDFI": "long"}
			},
			"timestamp": "2025-06-02T14:31:00Z"
		}`

		tick, err := c.parseMessage(kafka.Message{Value: []byte(payload)})
		require.NoError(t, err)
		require.NotNil(t, tick)
		assert.Equal(t, "AAPL", tick.Symbol)
		assert.Equal(t, time.Date(2025, 6, 2, 14, 31, 0, 0, time.UTC), tick.BarCloseTime)
		assert.True(t, decimal.NewFromFloat(200.25).Equal(tick.Close))
		assert.True(t, decimal.NewFromFloat(55.2).Equal(tick.Indicators["RSI"]["value"]))
		assert.Equal(t, "long", tick.Signals["TDFI"])
	})

	t.Run("fills symbol from envelope", func(t *testing.T) {
		payload := `{
			"event_type": "CANDLE_CLOSED",
			"symbol": "TSLA",
			"tick": {"bar_close_time": "2025-06-02T14:31:00Z", "close": "300"},
			"timestamp": "2025-06-02T14:31:00Z"
		}`

		tick, err := c.parseMessage(kafka.Message{Value: []byte(payload)})
		require.NoError(t, err)
		require.NotNil(t, tick)
		assert.Equal(t, "TSLA", tick.Symbol)
	})

	t.Run("skips non-candle events", func(t *testing.T) {
		payload := `{"event_type": "PRICE_UPDATE", "symbol": "AAPL"}`

		tick, err := c.parseMessage(kafka.Message{Value: []byte(payload)})
		require.NoError(t, err)
		assert.Nil(t, tick)
	})

	t.Run("rejects candle event without tick payload", func(t *testing.T) {
		payload := `{"event_type": "CANDLE_CLOSED", "symbol": "AAPL"}`

		_, err := c.parseMessage(kafka.Message{Value: []byte(payload)})
		assert.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := c.parseMessage(kafka.Message{Value: []byte(`{nope`)})
		assert.Error(t, err)
	})
}

func TestShardFor(t *testing.T) {
	c := testConsumer(4)

	t.Run("same symbol always lands on same shard", func(t *testing.T) {
		for _, symbol := range []string{"AAPL", "TSLA", "BTC-USD", "ES=F"} {
			first := c.shardFor(symbol)
			for i := 0; i < 10; i++ {
				assert.Equal(t, first, c.shardFor(symbol))
			}
		}
	})

	t.Run("shard index stays in range", func(t *testing.T) {
		symbols := []string{"AAPL", "TSLA", "GOOGL", "AMZN", "MSFT", "NVDA", "AMD", "SPY", "QQQ"}
		for _, symbol := range symbols {
			shard := c.shardFor(symbol)
			assert.GreaterOrEqual(t, shard, 0)
			assert.Less(t, shard, c.shards)
		}
	})

	t.Run("single shard takes everything", func(t *testing.T) {
		single := testConsumer(1)
		assert.Equal(t, 0, single.shardFor("AAPL"))
		assert.Equal(t, 0, single.shardFor("TSLA"))
	})
}
