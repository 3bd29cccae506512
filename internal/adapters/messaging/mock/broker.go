package mock

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"loan-payment-service/internal/core/domain"
)

// Broker is a stand-in EventPublisher that only logs, for running without Kafka.
type Broker struct {
	logger *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{logger: logger}
}

func (b *Broker) PublishPaymentProcessed(ctx context.Context, p domain.Payment, loan domain.Loan, outstanding decimal.Decimal) error {
	b.logger.DebugContext(ctx, "[MOCK] payment processed",
		"payment_id", p.ID,
		"loan_id", p.LoanID,
		"amount", p.Amount.Decimal.StringFixed(domain.CurrencyScale),
		"loan_status", loan.Status,
		"outstanding", outstanding.StringFixed(domain.CurrencyScale),
	)
	return nil
}

func (b *Broker) PublishLoanSettled(ctx context.Context, loan domain.Loan) error {
	b.logger.DebugContext(ctx, "[MOCK] loan settled", "loan_id", loan.ID)
	return nil
}

func (b *Broker) Close() {}
