// Package observability provides logging, metrics, and tracing.
package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	AIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Total number of AI requests by provider and operation",
		},
		[]string{"provider", "operation"},
	)
	AIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_request_duration_seconds",
			Help:    "AI request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider", "operation"},
	)

	EssaysScoredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "essays_scored_total",
			Help: "Total number of essays scored, by parse outcome",
		},
		[]string{"outcome"},
	)
	CriterionScoreHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evaluation_criterion_score",
			Help:    "Distribution of criterion band scores ([0,9])",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9},
		},
		[]string{"criterion"},
	)
	ReferenceExcerptsRetrieved = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retrieval_reference_excerpts",
			Help:    "Number of reference excerpts retrieved per scoring request",
			Buckets: []float64{0, 1, 2, 3, 4, 5},
		},
	)
)

// InitMetrics registers all Prometheus collectors; call once per process.
func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(AIRequestsTotal)
	prometheus.MustRegister(AIRequestDuration)
	prometheus.MustRegister(EssaysScoredTotal)
	prometheus.MustRegister(CriterionScoreHistogram)
	prometheus.MustRegister(ReferenceExcerptsRetrieved)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

// ObserveScoring records the outcome and criterion scores of one scored essay.
func ObserveScoring(degraded bool, scores map[string]float64) {
	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	EssaysScoredTotal.WithLabelValues(outcome).Inc()
	for criterion, score := range scores {
		if score >= 0 && score <= 9 {
			CriterionScoreHistogram.WithLabelValues(criterion).Observe(score)
		}
	}
}
