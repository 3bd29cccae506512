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

// LoanHandler serves the loan resources.
type LoanHandler struct {
	service ports.LoanService
	logger  *slog.Logger
}

// NewLoanHandler creates a new LoanHandler instance.
func NewLoanHandler(service ports.LoanService, logger *slog.Logger) *LoanHandler {
	return &LoanHandler{
		service: service,
		logger:  logger,
	}
}

type createLoanRequest struct {
	Principal  decimal.Decimal `json:"principal"`
	TermMonths int             `json:"term_months"`
}

// LoanResponse is the JSON view of a loan. OutstandingBalance is only set on
// single-loan lookups.
type LoanResponse struct {
	ID                 string     `json:"id"`
	Principal          string     `json:"principal"`
	TermMonths         int        `json:"term_months"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	SettledAt          *time.Time `json:"settled_at,omitempty"`
	OutstandingBalance *string    `json:"outstanding_balance,omitempty"`
}

func newLoanResponse(l domain.Loan) LoanResponse {
	return LoanResponse{
		ID:         l.ID,
		Principal:  l.Principal.StringFixed(domain.CurrencyScale),
		TermMonths: l.TermMonths,
		Status:     string(l.Status),
		CreatedAt:  l.CreatedAt,
		SettledAt:  l.SettledAt,
	}
}

// HandleCreateLoan handles POST /loans.
func (h *LoanHandler) HandleCreateLoan(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	var req createLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "InvalidRequest", "invalid request body", http.StatusBadRequest, logger)
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), req.Principal, req.TermMonths)
	if err != nil {
		writeDomainError(w, err, logger)
		return
	}

	writeJSON(w, http.StatusCreated, newLoanResponse(*loan), logger)
}

// HandleGetLoan handles GET /loans/{loanID}.
func (h *LoanHandler) HandleGetLoan(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFromContext(r.Context(), h.logger)

	st, err := h.service.GetStatement(r.Context(), chi.URLParam(r, "loanID"))
	if err != nil {
		writeDomainError(w, err, logger)
		return
	}

	resp := newLoanResponse(st.Loan)
	outstanding := st.Outstanding.StringFixed(domain.CurrencyScale)
	resp.OutstandingBalance = &outstanding
	writeJSON(w, http.StatusOK, resp, logger)
}
