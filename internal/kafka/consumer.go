package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/chartwatch/alert-engine/internal/models"
)

// TickHandler processes one completed candle tick. HandleTick is never
// called concurrently for the same symbol.
type TickHandler interface {
	HandleTick(ctx context.Context, tick *models.CandleTick) error
}

// Consumer handles consuming candle-closed events from Kafka and
// fanning them out to a sharded worker pool: ticks for the same symbol
// always land on the same worker, so per-symbol evaluation stays
// sequential while different symbols evaluate in parallel.
type Consumer struct {
	reader  *kafka.Reader
	handler TickHandler
	shards  int
}

// NewConsumer creates a new Kafka consumer for candle events
func NewConsumer(brokers []string, topic, groupID string, handler TickHandler, shards int) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	if shards <= 0 {
		shards = 4
	}
	return &Consumer{
		reader:  reader,
		handler: handler,
		shards:  shards,
	}
}

// Start begins consuming candle events until the context is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting candle consumer for topic: %s (shards: %d)", c.reader.Config().Topic, c.shards)

	jobs := make([]chan *models.CandleTick, c.shards)
	var wg sync.WaitGroup
	for i := 0; i < c.shards; i++ {
		jobs[i] = make(chan *models.CandleTick, 16)
		wg.Add(1)
		go func(ticks <-chan *models.CandleTick) {
			defer wg.Done()
			for tick := range ticks {
				if err := c.handler.HandleTick(ctx, tick); err != nil {
					// The tick is replayed from scratch on the next bar
					// for this symbol; nothing partial was applied.
					log.Printf("Error evaluating tick for %s: %v", tick.Symbol, err)
				}
			}
		}(jobs[i])
	}

	for {
		select {
		case <-ctx.Done():
			for _, ch := range jobs {
				close(ch)
			}
			wg.Wait()
			log.Println("Candle consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					continue // context cancelled, drain via ctx.Done
				}
				log.Printf("Error reading message: %v", err)
				continue
			}

			tick, err := c.parseMessage(msg)
			if err != nil {
				log.Printf("Error parsing candle message: %v", err)
				continue
			}
			if tick == nil {
				continue
			}
			select {
			case jobs[c.shardFor(tick.Symbol)] <- tick:
			case <-ctx.Done():
			}
		}
	}
}

// parseMessage decodes a candle event; non-candle event types are skipped
func (c *Consumer) parseMessage(msg kafka.Message) (*models.CandleTick, error) {
	var event models.CandleEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal candle event: %w", err)
	}

	if event.EventType != "CANDLE_CLOSED" {
		return nil, nil
	}
	if event.Tick == nil {
		return nil, fmt.Errorf("candle event for %s has no tick payload", event.Symbol)
	}
	if event.Tick.Symbol == "" {
		event.Tick.Symbol = event.Symbol
	}
	return event.Tick, nil
}

func (c *Consumer) shardFor(symbol string) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32()) % c.shards
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
