// Package audit moves loan events from Kafka into the reporting store.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/twmb/franz-go/pkg/kgo"

	"loan-payment-service/internal/adapters/messaging/kafka"
)

// DLQ error types, carried in the "error_type" header of dead-lettered records.
const (
	ErrorTypeUnmarshal        = "unmarshal_error"
	ErrorTypeUnknownEventType = "unknown_event_type"
)

// Sink stores decoded events. Writes must be idempotent per event.
type Sink interface {
	RecordPayment(ctx context.Context, e kafka.PaymentProcessedEvent) error
	RecordSettlement(ctx context.Context, e kafka.LoanSettledEvent) error
}

// MalformedError marks a record that will never decode. It belongs in the DLQ.
type MalformedError struct {
	Type string
	Err  error
}

func (e *MalformedError) Error() string { return e.Type + ": " + e.Err.Error() }

func (e *MalformedError) Unwrap() error { return e.Err }

// Processor decodes records and writes them to a Sink, retrying sink failures.
type Processor struct {
	sink     Sink
	logger   *slog.Logger
	maxTries uint
	backoff  func() backoff.BackOff
}

// NewProcessor creates a processor that tries each sink write up to maxTries times.
func NewProcessor(sink Sink, maxTries uint, logger *slog.Logger) *Processor {
	if maxTries == 0 {
		maxTries = 5
	}
	return &Processor{
		sink:     sink,
		logger:   logger,
		maxTries: maxTries,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

// Handle stores one record. It returns a *MalformedError for records that must
// be dead-lettered and the last sink error once retries are exhausted.
func (p *Processor) Handle(ctx context.Context, r *kgo.Record) error {
	store, err := p.decode(r)
	if err != nil {
		return err
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, store(ctx)
	}, backoff.WithBackOff(p.backoff()), backoff.WithMaxTries(p.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.Warn("sink write failed, retrying", "offset", r.Offset, "partition", r.Partition, "retry_in", next, "error", err)
		}))
	return err
}

func (p *Processor) decode(r *kgo.Record) (func(ctx context.Context) error, error) {
	eventType := header(r, "event_type")
	switch eventType {
	case kafka.EventPaymentProcessed:
		var e kafka.PaymentProcessedEvent
		if err := unmarshal(r.Value, &e); err != nil {
			return nil, err
		}
		if e.PaymentID == "" || e.LoanID == "" {
			return nil, &MalformedError{Type: ErrorTypeUnmarshal, Err: errors.New("payment event without ids")}
		}
		return func(ctx context.Context) error { return p.sink.RecordPayment(ctx, e) }, nil

	case kafka.EventLoanSettled:
		var e kafka.LoanSettledEvent
		if err := unmarshal(r.Value, &e); err != nil {
			return nil, err
		}
		if e.LoanID == "" {
			return nil, &MalformedError{Type: ErrorTypeUnmarshal, Err: errors.New("settlement event without loan id")}
		}
		return func(ctx context.Context) error { return p.sink.RecordSettlement(ctx, e) }, nil

	default:
		return nil, &MalformedError{Type: ErrorTypeUnknownEventType, Err: fmt.Errorf("event type %q", eventType)}
	}
}

func unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &MalformedError{Type: ErrorTypeUnmarshal, Err: err}
	}
	return nil
}

func header(r *kgo.Record, key string) string {
	for _, h := range r.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
