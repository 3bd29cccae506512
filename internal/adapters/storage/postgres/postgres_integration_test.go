//go:build integration

package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"loan-payment-service/internal/adapters/messaging/mock"
	"loan-payment-service/internal/app"
	"loan-payment-service/internal/core/domain"
	"loan-payment-service/internal/idgen"
	"loan-payment-service/internal/syncutil"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("loans"),
		tcpostgres.WithUsername("loans"),
		tcpostgres.WithPassword("loans"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("warning: failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewStoreFromPool(pool, Options{})
	require.NoError(t, store.Migrate(ctx))
	return store
}

func TestStore_MigrateIsIdempotentAndReversible(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))

	var tables int
	count := func() int {
		require.NoError(t, store.pool.QueryRow(ctx,
			`SELECT count(*) FROM information_schema.tables WHERE table_name IN ('loans', 'payments')`).Scan(&tables))
		return tables
	}
	assert.Equal(t, 2, count())

	require.NoError(t, store.MigrateDown(ctx))
	assert.Equal(t, 0, count())

	require.NoError(t, store.Migrate(ctx))
	assert.Equal(t, 2, count())
}

func TestStore_MaxAmountFitsColumn(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	loan, err := domain.NewLoan("LOAN_MAX", domain.MaxAmount, 12, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.Loans().Put(ctx, loan))

	got, err := store.Loans().Get(ctx, "LOAN_MAX")
	require.NoError(t, err)
	assert.True(t, domain.MaxAmount.Equal(got.Principal))
}

func TestStore_LoanRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	loan, err := domain.NewLoan("LOAN_RT", decimal.RequireFromString("1000.50"), 12, now)
	require.NoError(t, err)
	require.NoError(t, store.Loans().Put(ctx, loan))

	got, err := store.Loans().Get(ctx, "LOAN_RT")
	require.NoError(t, err)
	assert.True(t, loan.Principal.Equal(got.Principal))
	assert.Equal(t, domain.LoanStatusActive, got.Status)
	assert.Nil(t, got.SettledAt)

	_, err = store.Loans().Get(ctx, "LOAN_MISSING")
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestStore_SettledLoanStaysSettled(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	loan, err := domain.NewLoan("LOAN_S", decimal.NewFromInt(100), 1, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.Loans().Put(ctx, loan))

	settled := loan
	settled.MarkSettled(time.Now().UTC())
	require.NoError(t, store.Loans().Put(ctx, settled))
	require.NoError(t, store.Loans().Put(ctx, loan))

	got, err := store.Loans().Get(ctx, "LOAN_S")
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusSettled, got.Status)
}

func TestStore_WithinTx_RollsBack(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	loan, err := domain.NewLoan("LOAN_TX", decimal.NewFromInt(100), 1, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.Loans().Put(ctx, loan))

	boom := errors.New("boom")
	err = store.WithinTx(ctx, func(ctx context.Context) error {
		p := domain.NewPayment("PAYMENT_TX", loan.ID, decimal.NewFromInt(10), time.Now().UTC())
		require.NoError(t, store.Payments().Put(ctx, p))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	payments, err := store.Payments().ListByLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestStore_NullAmountExcludedFromBalance(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	loan, err := domain.NewLoan("LOAN_NULL", decimal.NewFromInt(1000), 12, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.Loans().Put(ctx, loan))
	_, err = store.pool.Exec(ctx,
		`INSERT INTO payments (id, loan_id, amount, paid_at) VALUES ('PAYMENT_LEGACY', $1, NULL, now())`, loan.ID)
	require.NoError(t, err)

	payments, err := store.Payments().ListByLoan(ctx, loan.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.False(t, payments[0].Amount.Valid)
	assert.True(t, domain.OutstandingBalance(loan, payments).Equal(decimal.NewFromInt(1000)))
}

// Two service instances with their own in-process lockers stand in for two
// replicas; only the row lock keeps them from overdrawing the loan.
func TestPaymentService_ConcurrentReplicasNeverOverdraw(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ids := idgen.New()

	loan, err := domain.NewLoan("LOAN_RACE", decimal.NewFromInt(1000), 12, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, store.Loans().Put(ctx, loan))

	replicas := []interface {
		ProcessPayment(context.Context, string, decimal.Decimal) (*domain.Payment, error)
	}{
		app.NewPaymentService(store.Loans(), store.Payments(), store, syncutil.NewLoanLocker(), ids, mock.NewBroker(logger), logger),
		app.NewPaymentService(store.Loans(), store.Payments(), store, syncutil.NewLoanLocker(), ids, mock.NewBroker(logger), logger),
	}

	const attempts = 10
	amount := decimal.NewFromInt(150)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		exceeded int
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		svc := replicas[i%len(replicas)]
		go func() {
			defer wg.Done()
			_, err := svc.ProcessPayment(ctx, loan.ID, amount)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, domain.ErrExceedsOutstanding):
				exceeded++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, accepted)
	assert.Equal(t, 4, exceeded)

	payments, err := store.Payments().ListByLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, domain.OutstandingBalance(loan, payments).Equal(decimal.NewFromInt(100)))
}
