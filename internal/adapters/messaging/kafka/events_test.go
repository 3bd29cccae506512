package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-payment-service/internal/core/domain"
)

func TestNewPaymentProcessedEvent_WireFormat(t *testing.T) {
	paidAt := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	loan, err := domain.NewLoan("LOAN_1", decimal.NewFromInt(1000), 12, paidAt)
	require.NoError(t, err)
	payment := domain.NewPayment("PAYMENT_1", loan.ID, decimal.RequireFromString("250.50"), paidAt)

	body, err := json.Marshal(NewPaymentProcessedEvent(payment, loan, decimal.RequireFromString("749.50")))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "PAYMENT_1", decoded["payment_id"])
	assert.Equal(t, "LOAN_1", decoded["loan_id"])
	assert.Equal(t, "250.5", decoded["amount"])
	assert.Equal(t, "749.5", decoded["outstanding_balance"])
	assert.Equal(t, "ACTIVE", decoded["loan_status"])
	assert.Equal(t, "2026-10-16T12:00:00Z", decoded["paid_at"])
}

func TestNewLoanSettledEvent_CarriesSettlementTime(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	loan, err := domain.NewLoan("LOAN_1", decimal.NewFromInt(1000), 12, now)
	require.NoError(t, err)
	loan.MarkSettled(now.Add(time.Hour))

	e := NewLoanSettledEvent(loan)

	assert.Equal(t, "LOAN_1", e.LoanID)
	assert.Equal(t, now.Add(time.Hour), e.SettledAt)
}
