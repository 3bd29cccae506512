package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"loan-payment-service/internal/core/domain"
)

// LoanRepository is an outgoing port for loan records.
// Get returns domain.ErrLoanNotFound when no loan has the given id.
type LoanRepository interface {
	Get(ctx context.Context, loanID string) (domain.Loan, error)
	Put(ctx context.Context, loan domain.Loan) error
}

// PaymentRepository is an outgoing port for payment records. The order of
// ListByLoan results carries no meaning for balance evaluation.
type PaymentRepository interface {
	Put(ctx context.Context, payment domain.Payment) error
	ListByLoan(ctx context.Context, loanID string) ([]domain.Payment, error)
}

// Transactor runs fn so that every repository write made with the ctx passed
// to fn is committed together or not at all.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LoanLocker serializes payment processing per loan. The returned unlock
// function must be called exactly once.
type LoanLocker interface {
	Lock(ctx context.Context, loanID string) (unlock func(), err error)
}

// IDGenerator hands out prefixed identifiers, unique within and across calls
// made in the same millisecond.
type IDGenerator interface {
	Next(prefix string) string
}

// EventPublisher announces committed state changes to the outside world.
type EventPublisher interface {
	PublishPaymentProcessed(ctx context.Context, payment domain.Payment, loan domain.Loan, outstanding decimal.Decimal) error
	PublishLoanSettled(ctx context.Context, loan domain.Loan) error
}

// LoanService is an incoming port for loan creation and lookups.
type LoanService interface {
	CreateLoan(ctx context.Context, principal decimal.Decimal, termMonths int) (*domain.Loan, error)
	GetLoan(ctx context.Context, loanID string) (*domain.Loan, error)
	GetStatement(ctx context.Context, loanID string) (*domain.LoanStatement, error)
}

// PaymentService is an incoming port for applying payments to loans.
type PaymentService interface {
	ProcessPayment(ctx context.Context, loanID string, amount decimal.Decimal) (*domain.Payment, error)
	ListPayments(ctx context.Context, loanID string) ([]domain.Payment, error)
}

// RateLimiterRepository counts requests per key in a fixed window.
type RateLimiterRepository interface {
	IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
