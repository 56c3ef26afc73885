package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the Prometheus metrics for the service: the HTTP surface
// plus the calculation engine counters.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	calcRuns        *prometheus.CounterVec
	calcDuration    prometheus.Histogram
	versionsPruned  prometheus.Counter
}

// NewMetrics initialises the registry and the base metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	calcRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "meridian_calc_runs_total",
		Help: "Quote calculation runs by outcome.",
	}, []string{"outcome"})
	calcDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "meridian_calc_duration_seconds",
		Help:    "Duration of one quote calculation run.",
		Buckets: prometheus.DefBuckets,
	})
	versionsPruned := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meridian_versions_pruned_total",
		Help: "Quote versions removed by the retention job.",
	})
	registry.MustRegister(requests, duration, calcRuns, calcDuration, versionsPruned)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		calcRuns:        calcRuns,
		calcDuration:    calcDuration,
		versionsPruned:  versionsPruned,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveCalc records one engine run.
func (m *Metrics) ObserveCalc(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calcRuns.WithLabelValues(outcome).Inc()
	m.calcDuration.Observe(elapsed.Seconds())
}

// AddPruned records versions removed by the retention job.
func (m *Metrics) AddPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.versionsPruned.Add(float64(n))
}

// Registerer exposes the registry for extra metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
