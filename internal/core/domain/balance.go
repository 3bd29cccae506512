package domain

import "github.com/shopspring/decimal"

// OutstandingBalance returns the loan principal minus the sum of the given
// payments. Payments without an amount are skipped. The result does not
// depend on the order of payments.
func OutstandingBalance(loan Loan, payments []Payment) decimal.Decimal {
	paid := decimal.Zero
	for _, p := range payments {
		if !p.Amount.Valid {
			continue
		}
		paid = paid.Add(p.Amount.Decimal)
	}
	return loan.Principal.Sub(paid)
}

// LoanStatement is a read model of a loan together with its payment history.
type LoanStatement struct {
	Loan        Loan
	Payments    []Payment
	Outstanding decimal.Decimal
}

// NewLoanStatement computes the outstanding balance for the statement.
func NewLoanStatement(loan Loan, payments []Payment) LoanStatement {
	return LoanStatement{
		Loan:        loan,
		Payments:    payments,
		Outstanding: OutstandingBalance(loan, payments),
	}
}
