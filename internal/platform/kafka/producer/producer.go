// Package producer wraps franz-go's client for synchronous, per-record
// production, implemented against pkg/platform/outbox.Bus so the outbox
// Publisher never imports kgo directly.
package producer

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"credo/pkg/platform/outbox"
)

// Producer delivers outbox.Event rows to Kafka, one topic per aggregate
// type named "<TopicPrefix>.<aggregate type>" (e.g. "credo.sanction",
// "credo.dsr_request"), keyed by aggregate ID so per-aggregate ordering holds.
type Producer struct {
	client      *kgo.Client
	topicPrefix string
}

type Config struct {
	Brokers     []string
	TopicPrefix string
}

func New(cfg Config) (*Producer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, err
	}
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "credo"
	}
	return &Producer{client: client, topicPrefix: prefix}, nil
}

// Publish implements outbox.Bus.
func (p *Producer) Publish(ctx context.Context, event outbox.Event) error {
	topic := fmt.Sprintf("%s.%s", p.topicPrefix, event.AggregateType)
	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.ID.String())},
		},
	}

	result := p.client.ProduceSync(ctx, record)
	return result.FirstErr()
}

func (p *Producer) Close() {
	p.client.Close()
}
