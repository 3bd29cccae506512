package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Consumer reads the event topic, hands each record to a Processor and sends
// malformed records to the DLQ topic. Offsets are committed after a batch is
// fully handled.
type Consumer struct {
	client    *kgo.Client
	dlq       *kgo.Client
	dlqTopic  string
	processor *Processor
	logger    *slog.Logger
}

// NewConsumer joins group and subscribes to topic.
func NewConsumer(brokers []string, group, topic, dlqTopic string, processor *Processor, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	dlq, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create kafka producer for DLQ: %w", err)
	}

	return &Consumer{
		client:    client,
		dlq:       dlq,
		dlqTopic:  dlqTopic,
		processor: processor,
		logger:    logger,
	}, nil
}

// Run consumes until ctx is cancelled or a record cannot be stored. On a
// storage failure the batch is left uncommitted so a restart replays it.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}

		fetches.EachError(func(t string, p int32, err error) {
			c.logger.Error("failed to fetch from kafka", "topic", t, "partition", p, "error", err)
		})

		var runErr error
		fetches.EachRecord(func(record *kgo.Record) {
			if runErr != nil {
				return
			}
			runErr = c.handle(ctx, record)
		})
		if runErr != nil {
			if ctx.Err() != nil {
				return nil
			}
			return runErr
		}

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.logger.Error("error committing offsets", "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, record *kgo.Record) error {
	err := c.processor.Handle(ctx, record)
	var malformed *MalformedError
	switch {
	case err == nil:
		c.logger.Debug("event stored", "key", string(record.Key), "offset", record.Offset)
		return nil
	case errors.As(err, &malformed):
		c.logger.Error("malformed event, sending to DLQ", "offset", record.Offset, "error", err)
		return c.deadLetter(ctx, record, malformed)
	default:
		return fmt.Errorf("store record %d/%d: %w", record.Partition, record.Offset, err)
	}
}

// deadLetter sends the original record to the DLQ synchronously so its offset
// is only committed once the copy is durable.
func (c *Consumer) deadLetter(ctx context.Context, original *kgo.Record, cause *MalformedError) error {
	headers := append([]kgo.RecordHeader{
		{Key: "error_type", Value: []byte(cause.Type)},
		{Key: "error_string", Value: []byte(cause.Err.Error())},
		{Key: "original_topic", Value: []byte(original.Topic)},
	}, original.Headers...)

	dlqRecord := &kgo.Record{
		Topic:   c.dlqTopic,
		Key:     original.Key,
		Value:   original.Value,
		Headers: headers,
	}
	if err := c.dlq.ProduceSync(ctx, dlqRecord).FirstErr(); err != nil {
		return fmt.Errorf("failed to send record to DLQ: %w", err)
	}
	return nil
}

// Close leaves the group and closes both clients.
func (c *Consumer) Close() {
	c.client.Close()
	c.dlq.Close()
}
