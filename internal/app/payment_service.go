package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"loan-payment-service/internal/core/domain"
	"loan-payment-service/internal/core/ports"
	"loan-payment-service/internal/observability"
)

var tracer = otel.Tracer("loan-payment-service/internal/app")

// paymentService is the implementation of the PaymentService port
type paymentService struct {
	loans    ports.LoanRepository
	payments ports.PaymentRepository
	tx       ports.Transactor
	locker   ports.LoanLocker
	ids      ports.IDGenerator
	events   ports.EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewPaymentService wires the payment processor to its stores and collaborators.
func NewPaymentService(
	loans ports.LoanRepository,
	payments ports.PaymentRepository,
	tx ports.Transactor,
	locker ports.LoanLocker,
	ids ports.IDGenerator,
	events ports.EventPublisher,
	logger *slog.Logger,
) ports.PaymentService {
	return &paymentService{
		loans:    loans,
		payments: payments,
		tx:       tx,
		locker:   locker,
		ids:      ids,
		events:   events,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// processed is what a committed payment leaves behind for event publishing.
type processed struct {
	payment     domain.Payment
	loan        domain.Loan
	outstanding decimal.Decimal
	settled     bool
}

// ProcessPayment applies amount to the loan. Everything from the loan lookup to
// the final write runs under the loan's lock and inside one store transaction,
// so concurrent payments on the same loan observe each other's writes.
func (s *paymentService) ProcessPayment(ctx context.Context, loanID string, amount decimal.Decimal) (_ *domain.Payment, err error) {
	ctx, span := tracer.Start(ctx, "PaymentService.ProcessPayment",
		trace.WithAttributes(attribute.String("loan.id", loanID)))
	var res processed
	defer func() {
		observability.RecordPayment(outcome(err), err == nil && res.settled)
		span.SetAttributes(attribute.String("payment.outcome", outcome(err)))
		if err != nil && domain.Kind(err) == "ServiceUnavailable" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if !domain.IsCurrencyAmount(amount) {
		return nil, domain.ErrInvalidAmount
	}
	span.SetAttributes(attribute.String("payment.amount", amount.StringFixed(domain.CurrencyScale)))

	unlock, err := s.locker.Lock(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLockUnavailable, err)
	}
	defer unlock()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		res, err = s.apply(ctx, loanID, amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment processed",
		"payment_id", res.payment.ID,
		"loan_id", loanID,
		"amount", amount.StringFixed(domain.CurrencyScale),
		"outstanding", res.outstanding.StringFixed(domain.CurrencyScale),
		"settled", res.settled,
	)
	s.publish(ctx, res)

	return &res.payment, nil
}

// apply is the check-then-act sequence. It must only run inside the loan's
// critical section; a transactor may call it again on a transient store error.
func (s *paymentService) apply(ctx context.Context, loanID string, amount decimal.Decimal) (processed, error) {
	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return processed{}, err
	}
	if err := loan.AssertPayable(); err != nil {
		return processed{}, err
	}

	history, err := s.payments.ListByLoan(ctx, loanID)
	if err != nil {
		return processed{}, err
	}
	outstanding := domain.OutstandingBalance(loan, history)

	now := s.now()
	settled := false
	switch amount.Cmp(outstanding) {
	case 1:
		return processed{}, fmt.Errorf("%w: outstanding %s, requested %s", domain.ErrExceedsOutstanding,
			outstanding.StringFixed(domain.CurrencyScale), amount.StringFixed(domain.CurrencyScale))
	case 0:
		loan.MarkSettled(now)
		settled = true
	}

	payment := domain.NewPayment(s.ids.Next(domain.PaymentIDPrefix), loanID, amount, now)
	if err := s.payments.Put(ctx, payment); err != nil {
		return processed{}, err
	}
	if settled {
		if err := s.loans.Put(ctx, loan); err != nil {
			return processed{}, err
		}
	}

	return processed{
		payment:     payment,
		loan:        loan,
		outstanding: outstanding.Sub(amount),
		settled:     settled,
	}, nil
}

// publish announces a committed payment. The payment is durable at this point,
// so a broker failure is logged rather than returned.
func (s *paymentService) publish(ctx context.Context, res processed) {
	if err := s.events.PublishPaymentProcessed(ctx, res.payment, res.loan, res.outstanding); err != nil {
		s.logger.WarnContext(ctx, "failed to publish payment event", "payment_id", res.payment.ID, "error", err)
	}
	if !res.settled {
		return
	}
	if err := s.events.PublishLoanSettled(ctx, res.loan); err != nil {
		s.logger.WarnContext(ctx, "failed to publish settlement event", "loan_id", res.loan.ID, "error", err)
	}
}

// ListPayments returns the payments recorded against an existing loan.
func (s *paymentService) ListPayments(ctx context.Context, loanID string) ([]domain.Payment, error) {
	if _, err := s.loans.Get(ctx, loanID); err != nil {
		return nil, err
	}
	return s.payments.ListByLoan(ctx, loanID)
}

func outcome(err error) string {
	if err == nil {
		return "accepted"
	}
	return domain.Kind(err)
}
