package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentIDPrefix prefixes every generated payment identifier.
const PaymentIDPrefix = "PAYMENT"

// Payment is an immutable record of funds applied against one loan.
// Amount is nullable because rows written by older tooling may lack it;
// such rows never count towards the balance.
type Payment struct {
	ID     string
	LoanID string
	Amount decimal.NullDecimal
	PaidAt time.Time
}

// NewPayment builds a payment for the given amount.
func NewPayment(id, loanID string, amount decimal.Decimal, now time.Time) Payment {
	return Payment{
		ID:     id,
		LoanID: loanID,
		Amount: decimal.NewNullDecimal(amount),
		PaidAt: now,
	}
}
