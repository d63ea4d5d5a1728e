package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/kinesis"
)

// KinesisAPI interface for mocking
type KinesisAPI interface {
	PutRecord(ctx context.Context, params *kinesis.PutRecordInput, optFns ...func(*kinesis.Options)) (*kinesis.PutRecordOutput, error)
}

// KinesisStreamer writes session events to a Kinesis stream, partitioned by session
type KinesisStreamer struct {
	client     KinesisAPI
	streamName string
}

func NewKinesisStreamer(client KinesisAPI, streamName string) *KinesisStreamer {
	return &KinesisStreamer{
		client:     client,
		streamName: streamName,
	}
}

func (s *KinesisStreamer) Publish(ctx context.Context, event Event) {
	if s.client == nil {
		return // Kinesis not enabled
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal map event", "session_id", event.SessionID, "error", err)
		return
	}

	_, err = s.client.PutRecord(ctx, &kinesis.PutRecordInput{
		StreamName:   &s.streamName,
		Data:         data,
		PartitionKey: &event.SessionID,
	})

	if err != nil {
		slog.Error("Failed to stream map event", "session_id", event.SessionID, "event_type", event.Type, "error", err)
	} else {
		slog.Debug("Streamed map event", "session_id", event.SessionID, "event_type", event.Type)
	}
}

func (s *KinesisStreamer) Close() error {
	return nil
}
