package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"loan-payment-service/internal/core/domain"
)

// LoanRepository implements ports.LoanRepository.
type LoanRepository struct {
	s *Store
}

const selectLoan = `
	SELECT id, principal, term_months, status, created_at, settled_at
	FROM loans
	WHERE id = $1`

// Get reads a loan. Inside a transaction the row is locked until commit so
// concurrent payment processors on other instances queue behind this one.
func (r *LoanRepository) Get(ctx context.Context, loanID string) (domain.Loan, error) {
	query := selectLoan
	if _, ok := txFrom(ctx); ok {
		query += " FOR UPDATE"
	}

	var (
		loan      domain.Loan
		status    string
		settledAt *time.Time
	)
	err := r.s.querier(ctx).QueryRow(ctx, query, loanID).Scan(
		&loan.ID, &loan.Principal, &loan.TermMonths, &status, &loan.CreatedAt, &settledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Loan{}, domain.ErrLoanNotFound
	}
	if err != nil {
		return domain.Loan{}, unavailable("get loan", err)
	}

	loan.Status = domain.LoanStatus(status)
	if !loan.Status.Valid() {
		return domain.Loan{}, fmt.Errorf("loan %s has unknown status %q", loanID, status)
	}
	loan.SettledAt = settledAt
	return loan, nil
}

// Put inserts a loan or records its settlement. A settled row is never
// turned back to ACTIVE.
func (r *LoanRepository) Put(ctx context.Context, loan domain.Loan) error {
	const sql = `
		INSERT INTO loans (id, principal, term_months, status, created_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status     = EXCLUDED.status,
			settled_at = EXCLUDED.settled_at
		WHERE loans.status = 'ACTIVE'
	`
	_, err := r.s.querier(ctx).Exec(ctx, sql,
		loan.ID,
		loan.Principal,
		loan.TermMonths,
		string(loan.Status),
		loan.CreatedAt,
		loan.SettledAt,
	)
	if err != nil {
		return unavailable("save loan", err)
	}
	return nil
}

// PaymentRepository implements ports.PaymentRepository.
type PaymentRepository struct {
	s *Store
}

func (r *PaymentRepository) Put(ctx context.Context, payment domain.Payment) error {
	const sql = `
		INSERT INTO payments (id, loan_id, amount, paid_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.s.querier(ctx).Exec(ctx, sql,
		payment.ID,
		payment.LoanID,
		payment.Amount,
		payment.PaidAt,
	)
	if err != nil {
		return unavailable("save payment", err)
	}
	return nil
}

func (r *PaymentRepository) ListByLoan(ctx context.Context, loanID string) ([]domain.Payment, error) {
	const sql = `
		SELECT id, loan_id, amount, paid_at
		FROM payments
		WHERE loan_id = $1
		ORDER BY paid_at, id
	`
	rows, err := r.s.querier(ctx).Query(ctx, sql, loanID)
	if err != nil {
		return nil, unavailable("query payments", err)
	}
	defer rows.Close()

	payments := []domain.Payment{}
	for rows.Next() {
		var (
			p      domain.Payment
			amount decimal.NullDecimal
		)
		if err := rows.Scan(&p.ID, &p.LoanID, &amount, &p.PaidAt); err != nil {
			return nil, unavailable("scan payment", err)
		}
		p.Amount = amount
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate payments", err)
	}
	return payments, nil
}
