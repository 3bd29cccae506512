package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"loan-payment-service/internal/core/ports"
	"loan-payment-service/internal/observability"
)

// RouterConfig carries everything the HTTP surface depends on.
type RouterConfig struct {
	ServiceName string
	Logger      *slog.Logger
	Loans       ports.LoanService
	Payments    ports.PaymentService
	// JWTSecret enables bearer auth on /api/v1 when non-empty.
	JWTSecret string
	// RateLimiter is skipped when nil.
	RateLimiter *RateLimiterMiddleware
	// Health reports dependency readiness for GET /health.
	Health func(ctx context.Context) error
}

// NewRouter builds the chi router with public and /api/v1 routes.
func NewRouter(cfg RouterConfig) http.Handler {
	loanHandler := NewLoanHandler(cfg.Loans, cfg.Logger)
	paymentHandler := NewPaymentHandler(cfg.Payments, cfg.Logger)

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		observability.NewLoggerMiddleware(cfg.Logger),
		observability.NewMetricsMiddleware(cfg.ServiceName),
		observability.NewTracingMiddleware(cfg.ServiceName),
	)
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Handler)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				cfg.Logger.Warn("health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status":  "unhealthy",
					"service": cfg.ServiceName,
				}, cfg.Logger)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": cfg.ServiceName,
		}, cfg.Logger)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(JWTMiddleware([]byte(cfg.JWTSecret), cfg.Logger))
		}
		r.Post("/loans", loanHandler.HandleCreateLoan)
		r.Get("/loans/{loanID}", loanHandler.HandleGetLoan)
		r.Get("/loans/{loanID}/payments", paymentHandler.HandleListPayments)
		r.Post("/payments", paymentHandler.HandleCreatePayment)
	})

	return r
}
