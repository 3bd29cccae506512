package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanIDPrefix prefixes every generated loan identifier.
const LoanIDPrefix = "LOAN"

// LoanStatus is the lifecycle state of a loan.
type LoanStatus string

const (
	LoanStatusActive  LoanStatus = "ACTIVE"
	LoanStatusSettled LoanStatus = "SETTLED"
)

// Valid reports whether s is a known status.
func (s LoanStatus) Valid() bool {
	return s == LoanStatusActive || s == LoanStatusSettled
}

// Loan is a principal owed, with a one-way ACTIVE -> SETTLED lifecycle.
type Loan struct {
	ID         string
	Principal  decimal.Decimal
	TermMonths int
	Status     LoanStatus
	CreatedAt  time.Time
	SettledAt  *time.Time
}

// NewLoan validates the inputs and returns an ACTIVE loan.
func NewLoan(id string, principal decimal.Decimal, termMonths int, now time.Time) (Loan, error) {
	if !IsCurrencyAmount(principal) {
		return Loan{}, ErrInvalidPrincipal
	}
	if termMonths <= 0 {
		return Loan{}, ErrInvalidTerm
	}
	return Loan{
		ID:         id,
		Principal:  principal,
		TermMonths: termMonths,
		Status:     LoanStatusActive,
		CreatedAt:  now,
	}, nil
}

// AssertPayable fails with ErrAlreadySettled once the loan has reached its
// terminal state.
func (l Loan) AssertPayable() error {
	if l.Status == LoanStatusSettled {
		return ErrAlreadySettled
	}
	return nil
}

// MarkSettled moves the loan to SETTLED. Calling it on a settled loan leaves
// the original settlement time untouched.
func (l *Loan) MarkSettled(now time.Time) {
	if l.Status == LoanStatusSettled {
		return
	}
	l.Status = LoanStatusSettled
	l.SettledAt = &now
}

// IsSettled reports whether the loan accepts no more payments.
func (l Loan) IsSettled() bool {
	return l.Status == LoanStatusSettled
}
