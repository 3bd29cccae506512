// Package memory is an in-process implementation of the loan and payment
// stores. Writes made inside WithinTx are buffered and applied atomically on
// commit.
package memory

import (
	"context"
	"slices"
	"sync"

	"loan-payment-service/internal/core/domain"
)

// Store keeps loans and payments in maps guarded by one RWMutex. The mutex
// is held only for map access, never across a caller's transaction body.
type Store struct {
	mu       sync.RWMutex
	loans    map[string]domain.Loan
	payments map[string][]domain.Payment
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		loans:    make(map[string]domain.Loan),
		payments: make(map[string][]domain.Payment),
	}
}

type txKey struct{}

// journal records the writes of one transaction until it commits.
type journal struct {
	loans    map[string]domain.Loan
	payments []domain.Payment
}

func journalFrom(ctx context.Context) *journal {
	j, _ := ctx.Value(txKey{}).(*journal)
	return j
}

// WithinTx runs fn and applies its writes only if fn returns nil. Nested
// calls join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if journalFrom(ctx) != nil {
		return fn(ctx)
	}

	j := &journal{loans: make(map[string]domain.Loan)}
	if err := fn(context.WithValue(ctx, txKey{}, j)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, loan := range j.loans {
		s.loans[id] = loan
	}
	for _, p := range j.payments {
		s.payments[p.LoanID] = append(s.payments[p.LoanID], p)
	}
	return nil
}

// Loans returns the loan repository view of the store.
func (s *Store) Loans() *LoanRepository {
	return &LoanRepository{s: s}
}

// Payments returns the payment repository view of the store.
func (s *Store) Payments() *PaymentRepository {
	return &PaymentRepository{s: s}
}

// LoanRepository implements ports.LoanRepository.
type LoanRepository struct {
	s *Store
}

func (r *LoanRepository) Get(ctx context.Context, loanID string) (domain.Loan, error) {
	if j := journalFrom(ctx); j != nil {
		if loan, ok := j.loans[loanID]; ok {
			return loan, nil
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	loan, ok := r.s.loans[loanID]
	if !ok {
		return domain.Loan{}, domain.ErrLoanNotFound
	}
	return loan, nil
}

func (r *LoanRepository) Put(ctx context.Context, loan domain.Loan) error {
	if j := journalFrom(ctx); j != nil {
		j.loans[loan.ID] = loan
		return nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.loans[loan.ID] = loan
	return nil
}

// PaymentRepository implements ports.PaymentRepository.
type PaymentRepository struct {
	s *Store
}

func (r *PaymentRepository) Put(ctx context.Context, payment domain.Payment) error {
	if j := journalFrom(ctx); j != nil {
		j.payments = append(j.payments, payment)
		return nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[payment.LoanID] = append(r.s.payments[payment.LoanID], payment)
	return nil
}

// ListByLoan returns a copy of the loan's payments, including ones written
// earlier in the caller's transaction.
func (r *PaymentRepository) ListByLoan(ctx context.Context, loanID string) ([]domain.Payment, error) {
	r.s.mu.RLock()
	out := slices.Clone(r.s.payments[loanID])
	r.s.mu.RUnlock()

	if j := journalFrom(ctx); j != nil {
		for _, p := range j.payments {
			if p.LoanID == loanID {
				out = append(out, p)
			}
		}
	}
	if out == nil {
		out = []domain.Payment{}
	}
	return out, nil
}
