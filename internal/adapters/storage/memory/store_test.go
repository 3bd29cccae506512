package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-payment-service/internal/core/domain"
)

func newLoan(t *testing.T, id string) domain.Loan {
	t.Helper()
	loan, err := domain.NewLoan(id, decimal.NewFromInt(1000), 12, time.Now())
	require.NoError(t, err)
	return loan
}

func TestLoanRepository_GetMissing(t *testing.T) {
	store := NewStore()

	_, err := store.Loans().Get(context.Background(), "LOAN_NOPE")

	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestStore_WithinTx_CommitsAllWrites(t *testing.T) {
	// --- Arrange ---
	store := NewStore()
	ctx := context.Background()
	loan := newLoan(t, "LOAN_1")
	require.NoError(t, store.Loans().Put(ctx, loan))

	// --- Act ---
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		p := domain.NewPayment("PAYMENT_1", loan.ID, decimal.NewFromInt(1000), time.Now())
		if err := store.Payments().Put(ctx, p); err != nil {
			return err
		}
		settled := loan
		settled.MarkSettled(time.Now())
		return store.Loans().Put(ctx, settled)
	})

	// --- Assert ---
	require.NoError(t, err)
	got, err := store.Loans().Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusSettled, got.Status)
	payments, err := store.Payments().ListByLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestStore_WithinTx_RollsBackOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	loan := newLoan(t, "LOAN_1")
	require.NoError(t, store.Loans().Put(ctx, loan))
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		p := domain.NewPayment("PAYMENT_1", loan.ID, decimal.NewFromInt(10), time.Now())
		require.NoError(t, store.Payments().Put(ctx, p))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	payments, err := store.Payments().ListByLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestStore_WithinTx_ReadsOwnWrites(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	loan := newLoan(t, "LOAN_1")
	require.NoError(t, store.Loans().Put(ctx, loan))

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		p := domain.NewPayment("PAYMENT_1", loan.ID, decimal.NewFromInt(10), time.Now())
		require.NoError(t, store.Payments().Put(ctx, p))

		inTx, err := store.Payments().ListByLoan(ctx, loan.ID)
		require.NoError(t, err)
		assert.Len(t, inTx, 1)

		outside, err := store.Payments().ListByLoan(context.Background(), loan.ID)
		require.NoError(t, err)
		assert.Empty(t, outside)
		return nil
	})

	require.NoError(t, err)
}

func TestPaymentRepository_ListByLoan_ReturnsCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	p := domain.NewPayment("PAYMENT_1", "LOAN_1", decimal.NewFromInt(10), time.Now())
	require.NoError(t, store.Payments().Put(ctx, p))

	list, err := store.Payments().ListByLoan(ctx, "LOAN_1")
	require.NoError(t, err)
	list[0].LoanID = "tampered"

	again, err := store.Payments().ListByLoan(ctx, "LOAN_1")
	require.NoError(t, err)
	assert.Equal(t, "LOAN_1", again[0].LoanID)
}
