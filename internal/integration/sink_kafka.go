package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

//go:generate mockgen -source=sink_kafka.go -destination=mocks/mocks.go -package=mocks Sink

// Sink delivers one notification payload keyed by block version id. The
// downstream contract is at-least-once, keyed for consumer-side upsert.
type Sink interface {
	Publish(ctx context.Context, key string, payload []byte) error
	Close()
}

// notification is the wire payload the downstream consumer receives.
type notification struct {
	BlockVersionID string `json:"blockVersionId"`
	PartyID        string `json:"partyId"`
	Kind           string `json:"kind"`
	FinalStatus    string `json:"finalStatus"`
	CreatedAt      string `json:"createdAt"`
}

// EncodeRecord serializes an outbox record into the downstream payload.
func EncodeRecord(rec Record) ([]byte, error) {
	return json.Marshal(notification{
		BlockVersionID: rec.BlockVersionID.String(),
		PartyID:        rec.PartyID.String(),
		Kind:           rec.Kind,
		FinalStatus:    rec.FinalStatus,
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

// KafkaSink publishes notifications to a Kafka topic.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to the brokers and ensures the topic exists.
func NewKafkaSink(ctx context.Context, brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}
	return &KafkaSink{client: client, topic: topic}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

func (s *KafkaSink) Publish(ctx context.Context, key string, payload []byte) error {
	rec := &kgo.Record{Topic: s.topic, Key: []byte(key), Value: payload}
	if err := s.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() {
	s.client.Close()
}
