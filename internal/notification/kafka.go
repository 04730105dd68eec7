package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	// event type header values, so consumers can route without decoding
	eventTypeNewApplication = "kyc.application.new"
	eventTypeStatusUpdate   = "kyc.application.status"
)

// KafkaEmitter publishes onboarding events to a Kafka topic keyed by
// application ID, so per-application ordering holds across partitions.
// Produces are asynchronous; delivery failures are logged and dropped.
type KafkaEmitter struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaEmitter connects to the brokers and ensures the topic exists.
func NewKafkaEmitter(brokers []string, topic string, logger *slog.Logger) (*KafkaEmitter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	return &KafkaEmitter{client: client, topic: topic, logger: logger}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	existing, err := adm.ListTopics(ctx, topic)
	if err != nil {
		return fmt.Errorf("list kafka topics: %w", err)
	}
	if existing.Has(topic) {
		return nil
	}
	resp, err := adm.CreateTopic(ctx, -1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create kafka topic %q: %w", topic, err)
	}
	// A racing creator is fine.
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create kafka topic %q: %w", topic, resp.Err)
	}
	return nil
}

func (e *KafkaEmitter) EmitNewApplication(ctx context.Context, event NewApplicationEvent) {
	e.produce(ctx, eventTypeNewApplication, event.ApplicationID.String(), event)
}

func (e *KafkaEmitter) EmitStatusUpdate(ctx context.Context, event StatusUpdateEvent) {
	e.produce(ctx, eventTypeStatusUpdate, event.ApplicationID.String(), event)
}

func (e *KafkaEmitter) produce(ctx context.Context, eventType, key string, payload any) {
	value, err := json.Marshal(payload)
	if err != nil {
		e.logger.ErrorContext(ctx, "encode notification event",
			"event_type", eventType, "key", key, "error", err)
		return
	}
	record := &kgo.Record{
		Topic:   e.topic,
		Key:     []byte(key),
		Value:   value,
		Headers: []kgo.RecordHeader{{Key: "event-type", Value: []byte(eventType)}},
	}
	// Detach from the request context: the caller's response must not wait on
	// broker acks, and a canceled request must not abort delivery.
	e.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			e.logger.Error("notification delivery failed",
				"event_type", eventType, "key", key, "error", err)
		}
	})
}

// Close flushes buffered records and releases the client.
func (e *KafkaEmitter) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.client.Flush(ctx); err != nil {
		e.logger.Error("flush notifications on close", "error", err)
	}
	e.client.Close()
}

var _ Emitter = (*KafkaEmitter)(nil)
var _ Emitter = (*LogEmitter)(nil)
var _ Emitter = (*CaptureEmitter)(nil)
