package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	loanPaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_payments_total",
			Help: "Payments processed, by outcome.",
		},
		[]string{"outcome"},
	)
	loansSettledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loans_settled_total",
			Help: "Loans settled by a payment.",
		},
	)
	eventPublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_event_publish_failures_total",
			Help: "Events that could not be delivered to the broker.",
		},
		[]string{"event_type"},
	)
)

// RecordPayment counts one ProcessPayment call. outcome is "accepted" or an error kind.
func RecordPayment(outcome string, settled bool) {
	loanPaymentsTotal.WithLabelValues(outcome).Inc()
	if settled {
		loansSettledTotal.Inc()
	}
}

// RecordPublishFailure counts one undelivered event.
func RecordPublishFailure(eventType string) {
	eventPublishFailuresTotal.WithLabelValues(eventType).Inc()
}

// NewMetricsMiddleware Creates HTTP middleware for collecting Prometheus metrics.
// Paths are labelled with the matched chi route pattern to keep cardinality bounded.
func NewMetricsMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				duration := time.Since(start)
				path := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						path = pattern
					}
				}

				httpRequestDuration.WithLabelValues(serviceName, r.Method, path).Observe(duration.Seconds())
				httpRequestsTotal.WithLabelValues(serviceName, r.Method, path, strconv.Itoa(ww.Status())).Inc()
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
