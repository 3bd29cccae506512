package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"loan-payment-service/internal/core/domain"
	"loan-payment-service/internal/core/ports"
	"loan-payment-service/internal/observability"
)

// PaymentHandler serves the payment resources.
type PaymentHandler struct {
	service ports.PaymentService
	logger  *slog.Logger
}

// NewPaymentHandler creates a new PaymentHandler instance.
func NewPaymentHandler(service ports.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger,
	}
}

type createPaymentRequest struct {
	LoanID string          `json:"loan_id"`
	Amount decimal.Decimal `json:"amount"`
}

// PaymentResponse is the JSON view of a payment. Amount is null for a record
// without an amount.
type PaymentResponse struct {
	ID     string    `json:"id"`
	LoanID string    `json:"loan_id"`
	Amount *string   `json:"amount"`
	PaidAt time.Time `json:"paid_at"`
}

func newPaymentResponse(p domain.Payment) PaymentResponse {
	resp := PaymentResponse{ID: p.ID, LoanID: p.LoanID, PaidAt: p.PaidAt}
	if p.Amount.Valid {
		amount := p.Amount.Decimal.StringFixed(domain.CurrencyScale)
		resp.Amount = &amount
	}
	return resp
}

// HandleCreatePayment handles POST /payments.
func (h *PaymentHandler) HandleCreatePayment(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "InvalidRequest", "invalid request body", http.StatusBadRequest, logger)
		return
	}

	payment, err := h.service.ProcessPayment(r.Context(), req.LoanID, req.Amount)
	if err != nil {
		writeDomainError(w, err, logger)
		return
	}

	writeJSON(w, http.StatusCreated, newPaymentResponse(*payment), logger)
}

// HandleListPayments handles GET /loans/{loanID}/payments.
func (h *PaymentHandler) HandleListPayments(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	payments, err := h.service.ListPayments(r.Context(), chi.URLParam(r, "loanID"))
	if err != nil {
		writeDomainError(w, err, logger)
		return
	}

	resp := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, newPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, resp, logger)
}
