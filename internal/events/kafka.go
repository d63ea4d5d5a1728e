package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter defines the interface for a Kafka message writer.
// This allows for easy mocking in unit tests.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes session events to a Kafka topic keyed by session
type KafkaPublisher struct {
	writer KafkaWriter
}

// NewKafkaPublisher creates a publisher backed by a kafka-go writer
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal map event", "session_id", event.SessionID, "error", err)
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SessionID),
		Value: data,
		Time:  event.Timestamp,
	})
	if err != nil {
		slog.Error("Failed to publish map event", "session_id", event.SessionID, "event_type", event.Type, "error", err)
		return
	}

	slog.Debug("Published map event", "session_id", event.SessionID, "event_type", event.Type)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
