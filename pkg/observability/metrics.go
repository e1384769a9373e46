package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecommendationsTotal counts recommendation results by mode (exact or
	// fallback).
	RecommendationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_recommendations_total",
		Help: "Recommendation results served, partitioned by mode.",
	}, []string{"mode"})

	// ExplanationFallbacksTotal counts explanation calls that degraded to the
	// locally synthesized fallback text.
	ExplanationFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "concierge_explanation_fallbacks_total",
		Help: "Explanation requests resolved with the local fallback sentence.",
	})

	// ExplanationDuration observes end-to-end explanation latency including
	// retries.
	ExplanationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "concierge_explanation_duration_seconds",
		Help:    "Latency of explanation generation including retries.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// LuckOutcomesTotal counts discount-game resolutions by outcome.
	LuckOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_luck_outcomes_total",
		Help: "Discount game resolutions, partitioned by outcome (win or lose).",
	}, []string{"outcome"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "concierge_http_request_duration_seconds",
		Help:    "HTTP request latency by matched route, method and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records request durations per matched route. The route
// label uses the ServeMux pattern, not the raw URL path, so unmatched or
// attacker-chosen paths cannot mint unbounded series.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		route := req.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestDuration.WithLabelValues(
			route,
			req.Method,
			strconv.Itoa(rec.status),
		).Observe(time.Since(start).Seconds())
	})
}
