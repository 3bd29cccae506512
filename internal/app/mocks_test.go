package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"loan-payment-service/internal/core/domain"
)

// Mock - implementation of the loan repository
type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) Get(ctx context.Context, loanID string) (domain.Loan, error) {
	args := m.Called(ctx, loanID)
	loan, _ := args.Get(0).(domain.Loan)
	return loan, args.Error(1)
}

func (m *MockLoanRepository) Put(ctx context.Context, loan domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

// Mock - implementation of the payment repository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Put(ctx context.Context, payment domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) ListByLoan(ctx context.Context, loanID string) ([]domain.Payment, error) {
	args := m.Called(ctx, loanID)
	payments, _ := args.Get(0).([]domain.Payment)
	return payments, args.Error(1)
}

// Mock - implementation of the loan locker
type MockLoanLocker struct {
	mock.Mock
}

func (m *MockLoanLocker) Lock(ctx context.Context, loanID string) (func(), error) {
	args := m.Called(ctx, loanID)
	unlock, _ := args.Get(0).(func())
	return unlock, args.Error(1)
}

// Mock - implementation of the id generator
type MockIDGenerator struct {
	mock.Mock
}

func (m *MockIDGenerator) Next(prefix string) string {
	args := m.Called(prefix)
	return args.String(0)
}

// Mock - implementation of a broker
type MockBroker struct {
	mock.Mock
}

func (m *MockBroker) PublishPaymentProcessed(ctx context.Context, p domain.Payment, loan domain.Loan, outstanding decimal.Decimal) error {
	args := m.Called(ctx, p, loan, outstanding)
	return args.Error(0)
}

func (m *MockBroker) PublishLoanSettled(ctx context.Context, loan domain.Loan) error {
	args := m.Called(ctx, loan)
	return args.Error(0)
}

// passthroughTx runs fn directly and counts invocations.
type passthroughTx struct {
	calls int
}

func (t *passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decimalEq(s string) interface{} {
	want := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
