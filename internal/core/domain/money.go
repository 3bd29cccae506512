package domain

import "github.com/shopspring/decimal"

// CurrencyScale is the number of minor-unit digits an amount may carry.
const CurrencyScale = 2

// maxIntegerDigits matches the NUMERIC(18,2) columns amounts are stored in.
const maxIntegerDigits = 16

// MaxAmount is the largest principal or payment the service accepts.
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

// IsCurrencyAmount reports whether d is strictly positive, no larger than
// MaxAmount and representable in minor units without rounding.
func IsCurrencyAmount(d decimal.Decimal) bool {
	if !d.IsPositive() {
		return false
	}
	digits, exp := d.NumDigits(), int(d.Exponent())
	if digits+exp > maxIntegerDigits {
		return false
	}
	// Dropping the extra fraction digits is only exact when they are trailing
	// zeros of the coefficient, so there must be fewer of them than digits.
	if -exp-CurrencyScale >= digits {
		return false
	}
	return d.Equal(d.Round(CurrencyScale)) && d.LessThanOrEqual(MaxAmount)
}
