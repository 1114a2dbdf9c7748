package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brody/brody-back/internal/ai"
)

// Metrics holds the Prometheus collectors for the API. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests  *prometheus.CounterVec
	HTTPLatency   *prometheus.HistogramVec
	ModelAttempts *prometheus.CounterVec
	ModelLatency  *prometheus.HistogramVec
	AICalls       *prometheus.CounterVec
	AIAttempts    prometheus.Histogram
	JobsProcessed *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brody_http_requests_total",
			Help: "HTTP requests by route pattern, method and status code",
		}, []string{"route", "method", "status"}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brody_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ModelAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brody_ai_model_attempts_total",
			Help: "Gateway attempts per model, split by whether text came back",
		}, []string{"task", "model", "outcome"}),
		ModelLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "brody_ai_model_attempt_duration_seconds",
			Help:    "Latency of a single model attempt in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
		}, []string{"task"}),
		AICalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brody_ai_calls_total",
			Help: "Gateway calls by task and final outcome",
		}, []string{"task", "outcome"}),
		AIAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "brody_ai_attempts_per_call",
			Help:    "Number of models tried per gateway call",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8},
		}),
		JobsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "brody_triage_jobs_total",
			Help: "Triage jobs finished by the worker, by final status",
		}, []string{"status"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveAttempt(task ai.Task, model string, hasContent bool, duration time.Duration) {
	m.ModelAttempts.WithLabelValues(string(task), model, outcome(hasContent)).Inc()
	m.ModelLatency.WithLabelValues(string(task)).Observe(duration.Seconds())
}

func (m *Metrics) ObserveCompletion(task ai.Task, attempts int, hasContent bool) {
	m.AICalls.WithLabelValues(string(task), outcome(hasContent)).Inc()
	m.AIAttempts.Observe(float64(attempts))
}

func (m *Metrics) ObserveJob(status string) {
	m.JobsProcessed.WithLabelValues(status).Inc()
}

// Middleware records request count and latency. Routes are labelled by their
// ServeMux pattern to keep cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(recorder.status)).Inc()
		m.HTTPLatency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func outcome(hasContent bool) string {
	if hasContent {
		return "content"
	}
	return "empty"
}

var _ ai.Observer = (*Metrics)(nil)
