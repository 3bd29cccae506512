package kafka

import (
	"time"

	"github.com/shopspring/decimal"

	"loan-payment-service/internal/core/domain"
)

// Event types, carried in the "event_type" record header.
const (
	EventPaymentProcessed = "payment.processed"
	EventLoanSettled      = "loan.settled"
)

// PaymentProcessedEvent is published for every accepted payment.
type PaymentProcessedEvent struct {
	PaymentID          string          `json:"payment_id"`
	LoanID             string          `json:"loan_id"`
	Amount             decimal.Decimal `json:"amount"`
	PaidAt             time.Time       `json:"paid_at"`
	LoanStatus         string          `json:"loan_status"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
}

// LoanSettledEvent is published once, when a payment settles its loan.
type LoanSettledEvent struct {
	LoanID    string          `json:"loan_id"`
	Principal decimal.Decimal `json:"principal"`
	SettledAt time.Time       `json:"settled_at"`
}

// NewPaymentProcessedEvent builds the event body for a committed payment.
func NewPaymentProcessedEvent(p domain.Payment, loan domain.Loan, outstanding decimal.Decimal) PaymentProcessedEvent {
	return PaymentProcessedEvent{
		PaymentID:          p.ID,
		LoanID:             p.LoanID,
		Amount:             p.Amount.Decimal,
		PaidAt:             p.PaidAt,
		LoanStatus:         string(loan.Status),
		OutstandingBalance: outstanding,
	}
}

// NewLoanSettledEvent builds the event body for a settled loan.
func NewLoanSettledEvent(loan domain.Loan) LoanSettledEvent {
	e := LoanSettledEvent{LoanID: loan.ID, Principal: loan.Principal}
	if loan.SettledAt != nil {
		e.SettledAt = *loan.SettledAt
	}
	return e
}
