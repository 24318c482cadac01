// Package consumer wraps franz-go's consumer group client behind the
// narrow Message shape that topic handlers depend on, so handler code never
// imports kgo directly.
package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the minimal shape a TopicHandler needs to process one record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Offset    int64
	Partition int32
}

// Handler processes one Message. Returning an error prevents the consumer
// from committing that record's offset; the record will be redelivered.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Consumer polls a set of topics under a shared consumer group and
// dispatches each fetched record to Handler, committing offsets only after
// a successful Handle call (at-least-once delivery, matching the outbox
// publisher's at-least-once guarantee on the producer side).
type Consumer struct {
	client *kgo.Client
	log    *slog.Logger
}

type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
}

func New(cfg Config, log *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{client: client, log: log}, nil
}

// Run polls and dispatches until ctx is cancelled. Per-partition order is
// preserved by committing each record's offset before fetching the next
// batch from that partition.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.log.ErrorContext(ctx, "kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})

		// Partitions whose handler failed in this batch are rewound to the
		// failed record; their later records are skipped until redelivery.
		rewind := make(map[string]map[int32]kgo.EpochOffset)
		fetches.EachRecord(func(record *kgo.Record) {
			if _, failed := rewind[record.Topic][record.Partition]; failed {
				return
			}
			msg := &Message{
				Topic:     record.Topic,
				Key:       record.Key,
				Value:     record.Value,
				Timestamp: record.Timestamp,
				Offset:    record.Offset,
				Partition: record.Partition,
			}
			if err := handler.Handle(ctx, msg); err != nil {
				c.log.ErrorContext(ctx, "kafka handler failed, offset will be redelivered",
					"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
				if rewind[record.Topic] == nil {
					rewind[record.Topic] = make(map[int32]kgo.EpochOffset)
				}
				rewind[record.Topic][record.Partition] = kgo.EpochOffset{Epoch: -1, Offset: record.Offset}
				return
			}
			if err := c.client.CommitRecords(ctx, record); err != nil {
				c.log.ErrorContext(ctx, "kafka commit failed", "topic", msg.Topic, "offset", msg.Offset, "error", err)
			}
		})
		if len(rewind) > 0 {
			c.client.SetOffsets(rewind)
		}
	}
}

func (c *Consumer) Close() {
	c.client.Close()
}
