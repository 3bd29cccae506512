// Package clickhouse stores the payment event stream for reporting.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"loan-payment-service/internal/adapters/messaging/kafka"
)

// Config holds the ClickHouse connection parameters.
type Config struct {
	Addr     string
	Database string
	User     string
	Password string
}

const schemaPayments = `
CREATE TABLE IF NOT EXISTS loan_payments (
	payment_id          String,
	loan_id             String,
	amount              Decimal(18, 2),
	outstanding_balance Decimal(18, 2),
	loan_status         LowCardinality(String),
	paid_at             DateTime64(3, 'UTC'),
	ingested_at         DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY (loan_id, payment_id)`

const schemaSettlements = `
CREATE TABLE IF NOT EXISTS loan_settlements (
	loan_id     String,
	principal   Decimal(18, 2),
	settled_at  DateTime64(3, 'UTC'),
	ingested_at DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY loan_id`

// Sink writes payment events to ClickHouse. Replacing tables make redelivered
// Kafka records harmless.
type Sink struct {
	conn driver.Conn
	now  func() time.Time
}

// Open connects to ClickHouse and pings it.
func Open(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("clickhouse address is not configured")
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	return &Sink{conn: conn, now: func() time.Time { return time.Now().UTC() }}, nil
}

// EnsureSchema creates the reporting tables.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	for _, ddl := range []string{schemaPayments, schemaSettlements} {
		if err := s.conn.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create clickhouse table: %w", err)
		}
	}
	return nil
}

// RecordPayment stores one payment.processed event.
func (s *Sink) RecordPayment(ctx context.Context, e kafka.PaymentProcessedEvent) error {
	err := s.conn.Exec(ctx, `
		INSERT INTO loan_payments (payment_id, loan_id, amount, outstanding_balance, loan_status, paid_at, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.PaymentID, e.LoanID, e.Amount, e.OutstandingBalance, e.LoanStatus, e.PaidAt, s.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment %s: %w", e.PaymentID, err)
	}
	return nil
}

// RecordSettlement stores one loan.settled event.
func (s *Sink) RecordSettlement(ctx context.Context, e kafka.LoanSettledEvent) error {
	err := s.conn.Exec(ctx, `
		INSERT INTO loan_settlements (loan_id, principal, settled_at, ingested_at)
		VALUES (?, ?, ?, ?)`,
		e.LoanID, e.Principal, e.SettledAt, s.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement %s: %w", e.LoanID, err)
	}
	return nil
}

// SettledLoan is one row of the settled-loans report.
type SettledLoan struct {
	LoanID       string
	Principal    decimal.Decimal
	PaymentCount uint64
	SettledAt    time.Time
}

// SettledLoans returns the most recently settled loans with their payment counts.
func (s *Sink) SettledLoans(ctx context.Context, limit int) ([]SettledLoan, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT st.loan_id, st.principal, count(p.payment_id) AS payments, st.settled_at
		FROM loan_settlements AS st FINAL
		LEFT JOIN loan_payments AS p FINAL ON p.loan_id = st.loan_id
		GROUP BY st.loan_id, st.principal, st.settled_at
		ORDER BY st.settled_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query settled loans: %w", err)
	}
	defer rows.Close()

	var out []SettledLoan
	for rows.Next() {
		var r SettledLoan
		if err := rows.Scan(&r.LoanID, &r.Principal, &r.PaymentCount, &r.SettledAt); err != nil {
			return nil, fmt.Errorf("failed to scan settled loan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ping checks the connection.
func (s *Sink) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the connection.
func (s *Sink) Close() error {
	return s.conn.Close()
}
