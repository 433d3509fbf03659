package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"trialgate/internal/platform/config"
)

// KafkaSink forwards ledger events to a Kafka topic for downstream audit and
// dashboard consumers. Events are keyed by participant id so one participant's
// trail stays ordered within a partition.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

func NewKafkaSink(cfg config.KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.ProduceRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaSink{client: client, topic: cfg.Topic}, nil
}

type kafkaEvent struct {
	ID            string            `json:"id"`
	ParticipantID string            `json:"participant_id,omitempty"`
	Site          string            `json:"site,omitempty"`
	Type          string            `json:"event_type"`
	Description   string            `json:"description"`
	Details       map[string]string `json:"details,omitempty"`
	RecordedBy    string            `json:"recorded_by"`
	RecordedAt    time.Time         `json:"recorded_at"`
}

func (s *KafkaSink) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(kafkaEvent{
		ID:            event.ID.String(),
		ParticipantID: string(event.ParticipantID),
		Site:          string(event.Site),
		Type:          string(event.Type),
		Description:   event.Description,
		Details:       event.Details,
		RecordedBy:    event.RecordedBy,
		RecordedAt:    event.RecordedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal ledger event: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.ParticipantID),
		Value: payload,
	}
	return s.client.ProduceSync(ctx, record).FirstErr()
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
