package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// UIEvent represents a Kafka event for the UI push layer: a toast to
// render or a sound to play for one user.
type UIEvent struct {
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id"`
	Symbol    string    `json:"symbol,omitempty"`
	Message   string    `json:"message,omitempty"`
	SoundType string    `json:"sound_type,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UI event type constants
const (
	EventToast = "TOAST"
	EventSound = "SOUND"
)

// Producer handles publishing UI notification events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishToast publishes a toast notification event for a user
func (p *Producer) PublishToast(ctx context.Context, userID, symbol, message string) error {
	event := UIEvent{
		EventType: EventToast,
		UserID:    userID,
		Symbol:    symbol,
		Message:   message,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, userID, event)
}

// PublishSound publishes a sound trigger event for a user
func (p *Producer) PublishSound(ctx context.Context, userID, soundType string) error {
	event := UIEvent{
		EventType: EventSound,
		UserID:    userID,
		SoundType: soundType,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, userID, event)
}

func (p *Producer) publish(ctx context.Context, key string, event UIEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
