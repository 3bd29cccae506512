package domain

import (
	"errors"
	"fmt"
)

// Payment outcomes the caller is expected to branch on with errors.Is.
// They are deterministic and must never be retried.
var (
	ErrInvalidAmount      = errors.New("payment amount must be positive with at most 2 decimal places and within range")
	ErrLoanNotFound       = errors.New("loan not found")
	ErrAlreadySettled     = errors.New("loan is already settled")
	ErrExceedsOutstanding = errors.New("payment exceeds outstanding balance")
)

// Loan creation input errors. Both wrap ErrInvalidLoan.
var (
	ErrInvalidLoan      = errors.New("invalid loan")
	ErrInvalidPrincipal = fmt.Errorf("%w: principal must be positive with at most 2 decimal places and within range", ErrInvalidLoan)
	ErrInvalidTerm      = fmt.Errorf("%w: term months must be positive", ErrInvalidLoan)
)

// Infrastructure failures. Adapters wrap the underlying cause with these so the
// transport layer can tell a dependency outage from a client error.
var (
	ErrStorageUnavailable = errors.New("storage is unavailable")
	ErrBrokerUnavailable  = errors.New("message broker is unavailable")
	ErrLockUnavailable    = errors.New("loan lock could not be acquired")
)

// Kind returns a stable, client-facing name for a domain error.
// Infrastructure errors map to "ServiceUnavailable", anything else to "InternalError".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "InvalidAmount"
	case errors.Is(err, ErrLoanNotFound):
		return "LoanNotFound"
	case errors.Is(err, ErrAlreadySettled):
		return "AlreadySettled"
	case errors.Is(err, ErrExceedsOutstanding):
		return "ExceedsOutstanding"
	case errors.Is(err, ErrInvalidLoan):
		return "InvalidLoan"
	case errors.Is(err, ErrStorageUnavailable),
		errors.Is(err, ErrBrokerUnavailable),
		errors.Is(err, ErrLockUnavailable):
		return "ServiceUnavailable"
	default:
		return "InternalError"
	}
}
