package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"loan-payment-service/internal/core/domain"
	"loan-payment-service/internal/core/ports"
)

// loanService is the implementation of the LoanService port
type loanService struct {
	loans    ports.LoanRepository
	payments ports.PaymentRepository
	ids      ports.IDGenerator
	logger   *slog.Logger
	now      func() time.Time
}

// NewLoanService is the constructor of the loan service.
func NewLoanService(loans ports.LoanRepository, payments ports.PaymentRepository, ids ports.IDGenerator, logger *slog.Logger) ports.LoanService {
	return &loanService{
		loans:    loans,
		payments: payments,
		ids:      ids,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *loanService) CreateLoan(ctx context.Context, principal decimal.Decimal, termMonths int) (*domain.Loan, error) {
	loan, err := domain.NewLoan(s.ids.Next(domain.LoanIDPrefix), principal, termMonths, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.loans.Put(ctx, loan); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "loan created", "loan_id", loan.ID, "principal", principal.StringFixed(domain.CurrencyScale), "term_months", termMonths)
	return &loan, nil
}

func (s *loanService) GetLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	return &loan, nil
}

// GetStatement returns the loan with its payment history and current balance.
func (s *loanService) GetStatement(ctx context.Context, loanID string) (*domain.LoanStatement, error) {
	loan, err := s.loans.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	st := domain.NewLoanStatement(loan, payments)
	return &st, nil
}
