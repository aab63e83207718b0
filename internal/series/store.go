// Package series keeps the bounded per-(symbol, series) value history
// the evaluation engine reads prev and prev_prev from. Redis owns the
// state so engine replicas and restarts see the same history.
package series

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/chartwatch/alert-engine/internal/models"
)

// historyDepth is how many closed values are retained per series:
// enough for prev and prev_prev plus one spare.
const historyDepth = 3

// historyTTL expires series for symbols that stopped ticking.
const historyTTL = 7 * 24 * time.Hour

// Store is a Redis-backed series history store
type Store struct {
	client *redis.Client
}

// NewStore creates a series store and verifies the Redis connection
func NewStore(addr, password string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &Store{client: client}, nil
}

func valueKey(symbol, series string) string {
	return "series:" + symbol + ":" + series
}

func signalKey(symbol, indicator string) string {
	return "signal:" + symbol + ":" + indicator
}

// History returns up to historyDepth most recent values for a series,
// newest first.
func (s *Store) History(ctx context.Context, symbol, series string) ([]decimal.Decimal, error) {
	raw, err := s.client.LRange(ctx, valueKey(symbol, series), 0, historyDepth-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read series history: %w", err)
	}

	values := make([]decimal.Decimal, 0, len(raw))
	for _, v := range raw {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("corrupt series value %q: %w", v, err)
		}
		values = append(values, d)
	}
	return values, nil
}

// SignalHistory returns up to historyDepth most recent discrete signals
// for an indicator, newest first.
func (s *Store) SignalHistory(ctx context.Context, symbol, indicator string) ([]string, error) {
	signals, err := s.client.LRange(ctx, signalKey(symbol, indicator), 0, historyDepth-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read signal history: %w", err)
	}
	return signals, nil
}

// Record pushes the tick's close price, indicator values and signals
// onto their histories, trimmed to historyDepth. One pipeline round
// trip per tick.
func (s *Store) Record(ctx context.Context, tick *models.CandleTick) error {
	pipe := s.client.TxPipeline()

	for series, value := range tick.SeriesValues() {
		key := valueKey(tick.Symbol, series)
		pipe.LPush(ctx, key, value.String())
		pipe.LTrim(ctx, key, 0, historyDepth-1)
		pipe.Expire(ctx, key, historyTTL)
	}
	for indicator, signal := range tick.Signals {
		key := signalKey(tick.Symbol, indicator)
		pipe.LPush(ctx, key, signal)
		pipe.LTrim(ctx, key, 0, historyDepth-1)
		pipe.Expire(ctx, key, historyTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record series history: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}
