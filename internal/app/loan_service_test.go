package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"loan-payment-service/internal/core/domain"
)

func newLoanFixture() (*loanService, *MockLoanRepository, *MockPaymentRepository, *MockIDGenerator) {
	loans := new(MockLoanRepository)
	payments := new(MockPaymentRepository)
	ids := new(MockIDGenerator)
	svc := NewLoanService(loans, payments, ids, discardLogger()).(*loanService)
	svc.now = func() time.Time { return fixedNow }
	return svc, loans, payments, ids
}

func TestLoanService_CreateLoan_Success(t *testing.T) {
	// --- Arrange ---
	svc, loans, _, ids := newLoanFixture()
	ids.On("Next", domain.LoanIDPrefix).Return("LOAN_1")
	loans.On("Put", mock.Anything, mock.MatchedBy(func(l domain.Loan) bool {
		return l.ID == "LOAN_1" && l.Status == domain.LoanStatusActive && l.Principal.Equal(dec("1000"))
	})).Return(nil)

	// --- Act ---
	loan, err := svc.CreateLoan(context.Background(), dec("1000"), 12)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "LOAN_1", loan.ID)
	assert.Equal(t, 12, loan.TermMonths)
	assert.Equal(t, fixedNow, loan.CreatedAt)
	loans.AssertExpectations(t)
}

func TestLoanService_CreateLoan_Invalid(t *testing.T) {
	testCases := []struct {
		name      string
		principal string
		term      int
		want      error
	}{
		{"zero principal", "0", 12, domain.ErrInvalidPrincipal},
		{"negative principal", "-1", 12, domain.ErrInvalidPrincipal},
		{"sub-cent principal", "10.001", 12, domain.ErrInvalidPrincipal},
		{"zero term", "1000", 0, domain.ErrInvalidTerm},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, loans, _, ids := newLoanFixture()
			ids.On("Next", domain.LoanIDPrefix).Return("LOAN_1")

			_, err := svc.CreateLoan(context.Background(), dec(tc.principal), tc.term)

			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, domain.ErrInvalidLoan)
			loans.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
		})
	}
}

func TestLoanService_CreateLoan_StorageFailure(t *testing.T) {
	svc, loans, _, ids := newLoanFixture()
	ids.On("Next", domain.LoanIDPrefix).Return("LOAN_1")
	loans.On("Put", mock.Anything, mock.Anything).Return(fmt.Errorf("%w: timeout", domain.ErrStorageUnavailable))

	loan, err := svc.CreateLoan(context.Background(), dec("1000"), 12)

	assert.Nil(t, loan)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestLoanService_GetStatement(t *testing.T) {
	svc, loans, payments, _ := newLoanFixture()
	loan := activeLoan("LOAN_1", "1000")
	loans.On("Get", mock.Anything, loan.ID).Return(loan, nil)
	payments.On("ListByLoan", mock.Anything, loan.ID).Return([]domain.Payment{
		domain.NewPayment("PAYMENT_1", loan.ID, dec("250"), fixedNow),
		{ID: "PAYMENT_2", LoanID: loan.ID, PaidAt: fixedNow},
	}, nil)

	st, err := svc.GetStatement(context.Background(), loan.ID)

	require.NoError(t, err)
	assert.Equal(t, loan, st.Loan)
	assert.Len(t, st.Payments, 2)
	assert.True(t, st.Outstanding.Equal(dec("750")))
}

func TestLoanService_GetLoan_NotFound(t *testing.T) {
	svc, loans, payments, _ := newLoanFixture()
	loans.On("Get", mock.Anything, "LOAN_MISSING").Return(domain.Loan{}, domain.ErrLoanNotFound)

	_, err := svc.GetLoan(context.Background(), "LOAN_MISSING")
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)

	_, err = svc.GetStatement(context.Background(), "LOAN_MISSING")
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
	payments.AssertNotCalled(t, "ListByLoan", mock.Anything, mock.Anything)
}
