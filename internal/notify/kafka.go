package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	TopicRequestCreated   = "blood.requests.created"
	TopicRequestFulfilled = "blood.requests.fulfilled"
)

// KafkaNotifier publishes notification events to Kafka topics consumed by the
// delivery service (email/SMS/push fan-out lives there, not here). Produce is
// asynchronous; delivery failures are logged and dropped.
type KafkaNotifier struct {
	client *kgo.Client
	logger *slog.Logger
}

// NewKafkaNotifier connects a producer to the given brokers.
func NewKafkaNotifier(brokers []string, logger *slog.Logger) (*KafkaNotifier, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaNotifier{client: client, logger: logger}, nil
}

// Close flushes pending records and releases the producer.
func (n *KafkaNotifier) Close() {
	_ = n.client.Flush(context.Background())
	n.client.Close()
}

func (n *KafkaNotifier) NewBloodRequest(ctx context.Context, note NewRequestNote) error {
	return n.produce(ctx, TopicRequestCreated, note.Request.String(), note)
}

func (n *KafkaNotifier) RequestFulfilled(ctx context.Context, note FulfilledNote) error {
	return n.produce(ctx, TopicRequestFulfilled, note.Request.String(), note)
}

func (n *KafkaNotifier) produce(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	record := &kgo.Record{Topic: topic, Key: []byte(key), Value: value}
	n.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			n.logger.Warn("notification publish failed",
				"topic", r.Topic,
				"error", err)
		}
	})
	return nil
}
