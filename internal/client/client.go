// Package client is a small HTTP client for the loan service API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	httphandler "loan-payment-service/internal/adapters/http"
)

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
}

// Client calls the /api/v1 endpoints.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the service at baseURL. token may be empty.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateLoan creates a loan.
func (c *Client) CreateLoan(ctx context.Context, principal decimal.Decimal, termMonths int) (*httphandler.LoanResponse, error) {
	var out httphandler.LoanResponse
	body := map[string]any{"principal": principal.String(), "term_months": termMonths}
	if err := c.do(ctx, http.MethodPost, "/loans", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetLoan returns a loan with its outstanding balance.
func (c *Client) GetLoan(ctx context.Context, loanID string) (*httphandler.LoanResponse, error) {
	var out httphandler.LoanResponse
	if err := c.do(ctx, http.MethodGet, "/loans/"+loanID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPayments returns the payments recorded against a loan.
func (c *Client) ListPayments(ctx context.Context, loanID string) ([]httphandler.PaymentResponse, error) {
	var out []httphandler.PaymentResponse
	if err := c.do(ctx, http.MethodGet, "/loans/"+loanID+"/payments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Pay applies a payment to a loan.
func (c *Client) Pay(ctx context.Context, loanID string, amount decimal.Decimal) (*httphandler.PaymentResponse, error) {
	var out httphandler.PaymentResponse
	body := map[string]any{"loan_id": loanID, "amount": amount.String()}
	if err := c.do(ctx, http.MethodPost, "/payments", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Kind: http.StatusText(resp.StatusCode)}
		var e httphandler.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			apiErr.Kind, apiErr.Message = e.Error, e.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
