package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"loan-payment-service/internal/core/domain"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"wrapped deadlock", unavailable("commit tx", &pgconn.PgError{Code: "40P01"}), true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"domain error", domain.ErrExceedsOutstanding, false},
		{"wrapped domain error", fmt.Errorf("%w: outstanding 400.00", domain.ErrExceedsOutstanding), false},
		{"plain error", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}

func TestUnavailable_KeepsCause(t *testing.T) {
	cause := &pgconn.PgError{Code: "08006"}

	err := unavailable("get loan", cause)

	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	var pgErr *pgconn.PgError
	assert.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "08006", pgErr.Code)
}
