// Package monitoring exposes Prometheus metrics for analyses and HTTP traffic.
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soaringjerry/psymetrics/internal/services"
)

// Metrics owns its registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	UnavailableTotal *prometheus.CounterVec
	FactorsRetained  prometheus.Histogram

	RequestCounter  *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AnalysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "psymetrics_analyses_total",
				Help: "Analyses run, by outcome",
			},
			[]string{"outcome"},
		),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "psymetrics_analysis_duration_seconds",
			Help:    "Duration of a single analysis run",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		UnavailableTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "psymetrics_metric_unavailable_total",
				Help: "Metrics left empty by successful analyses",
			},
			[]string{"metric"},
		),
		FactorsRetained: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "psymetrics_factors_retained",
			Help:    "Factors retained by the Kaiser criterion when EFA ran",
			Buckets: []float64{2, 3, 4, 5, 6, 8, 10},
		}),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
	}
	m.registry.MustRegister(
		m.AnalysesTotal,
		m.AnalysisDuration,
		m.UnavailableTotal,
		m.FactorsRetained,
		m.RequestCounter,
		m.RequestDuration,
	)
	return m
}

// ObserveAnalysis records the outcome of one run.
func (m *Metrics) ObserveAnalysis(r *services.AnalysisResult, elapsed time.Duration) {
	m.AnalysisDuration.Observe(elapsed.Seconds())
	if r == nil || r.Error != "" {
		m.AnalysesTotal.WithLabelValues("failed").Inc()
		return
	}
	m.AnalysesTotal.WithLabelValues("ok").Inc()
	if r.CronbachAlpha == nil {
		m.UnavailableTotal.WithLabelValues("cronbach_alpha").Inc()
	}
	if r.KMOValue == nil {
		m.UnavailableTotal.WithLabelValues("kmo").Inc()
	}
	if r.BartlettP == nil {
		m.UnavailableTotal.WithLabelValues("bartlett").Inc()
	}
	if r.EFAPerformed && r.NFactors != nil {
		m.FactorsRetained.Observe(float64(*r.NFactors))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests by the matched ServeMux pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		m.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
