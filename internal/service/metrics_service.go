package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// sync engine.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	syncRunDuration  *prometheus.HistogramVec
	syncRunTotal     *prometheus.CounterVec
	providerAPICalls prometheus.Counter

	writeBackTotal    *prometheus.CounterVec
	writeBackAttempts prometheus.Histogram
}

// NewMetricsService registers the core collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	syncRunDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "calendar_sync_run_duration_seconds",
		Help:    "Wall-clock duration of calendar sync runs",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"status"})

	syncRunTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_sync_runs_total",
		Help: "Total sync runs by terminal status",
	}, []string{"status"})

	providerAPICalls := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "calendar_provider_api_calls_total",
		Help: "Total calendar provider API calls spent on fetching",
	})

	writeBackTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calendar_writeback_total",
		Help: "Total write-back outcomes",
	}, []string{"outcome"})

	writeBackAttempts := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "calendar_writeback_attempts",
		Help:    "Attempts spent per write-back",
		Buckets: []float64{1, 2, 3, 4, 5},
	})

	registry.MustRegister(requestDuration, requestTotal, syncRunDuration, syncRunTotal, providerAPICalls, writeBackTotal, writeBackAttempts)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		syncRunDuration:   syncRunDuration,
		syncRunTotal:      syncRunTotal,
		providerAPICalls:  providerAPICalls,
		writeBackTotal:    writeBackTotal,
		writeBackAttempts: writeBackAttempts,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveSyncRun records a terminal sync run.
func (s *MetricsService) ObserveSyncRun(status string, duration time.Duration, apiCalls int) {
	s.syncRunDuration.WithLabelValues(status).Observe(duration.Seconds())
	s.syncRunTotal.WithLabelValues(status).Inc()
	s.providerAPICalls.Add(float64(apiCalls))
}

// ObserveWriteBack records a write-back outcome and its attempt count.
func (s *MetricsService) ObserveWriteBack(success bool, attempts int) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	s.writeBackTotal.WithLabelValues(outcome).Inc()
	s.writeBackAttempts.Observe(float64(attempts))
}
