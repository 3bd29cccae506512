package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"

	"loan-payment-service/internal/core/domain"
)

// Broker is an implementation of the EventPublisher port for Kafka.
type Broker struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	wg     sync.WaitGroup
	// onFailure is told about every record Kafka did not accept.
	onFailure func(eventType string)
}

// NewBroker creates a new Kafka broker instance.
func NewBroker(ctx context.Context, bootstrapServers []string, topic string, logger *slog.Logger, onFailure func(eventType string)) (*Broker, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(bootstrapServers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.RecordDeliveryTimeout(10 * time.Second),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	// Checking the connection
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to kafka: %w", err)
	}

	if onFailure == nil {
		onFailure = func(string) {}
	}
	return &Broker{
		client:    client,
		topic:     topic,
		logger:    logger,
		onFailure: onFailure,
	}, nil
}

// PublishPaymentProcessed publishes an event about an accepted payment.
func (b *Broker) PublishPaymentProcessed(ctx context.Context, p domain.Payment, loan domain.Loan, outstanding decimal.Decimal) error {
	return b.produce(ctx, EventPaymentProcessed, p.LoanID, NewPaymentProcessedEvent(p, loan, outstanding))
}

// PublishLoanSettled publishes an event about a loan reaching SETTLED.
func (b *Broker) PublishLoanSettled(ctx context.Context, loan domain.Loan) error {
	return b.produce(ctx, EventLoanSettled, loan.ID, NewLoanSettledEvent(loan))
}

// produce keys records by loan id so all events of one loan stay ordered on a
// single partition.
func (b *Broker) produce(ctx context.Context, eventType, loanID string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	record := &kgo.Record{
		Key:     []byte(loanID),
		Value:   payload,
		Headers: []kgo.RecordHeader{{Key: "event_type", Value: []byte(eventType)}},
	}

	b.wg.Add(1)
	// Produce sends a record asynchronously. The request may finish before
	// delivery, so it must not cancel the produce.
	b.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		defer b.wg.Done()
		if err != nil {
			b.onFailure(eventType)
			b.logger.Error("failed to deliver message to kafka", "topic", r.Topic, "event_type", eventType, "error", err)
			return
		}
		b.logger.Debug("message delivered to kafka", "topic", r.Topic, "partition", r.Partition, "offset", r.Offset)
	})

	return nil
}

// Ping checks that at least one broker answers.
func (b *Broker) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBrokerUnavailable, err)
	}
	return nil
}

// Close gracefully stops the producer.
func (b *Broker) Close() {
	b.logger.Info("waiting for pending kafka deliveries...")
	b.wg.Wait()
	b.client.Close()
	b.logger.Info("kafka client stopped")
}
