package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerMetrics owns the process registry: HTTP server traffic plus the
// retrieval engine's own counters. The attribution-desync counter is
// the observable for index/store misalignment that slips past the
// startup check.
type ServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalTotal      *prometheus.CounterVec
	retrievalDuration   *prometheus.HistogramVec
	retrievalResults    *prometheus.HistogramVec
	retrievalEmptyTotal *prometheus.CounterVec
	retrievalTimeouts   *prometheus.CounterVec
	attributionDesyncs  *prometheus.CounterVec
}

func NewServerMetrics(service string) *ServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ldr",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ldr",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ldr",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ldr",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total completed retrieval requests.",
		},
		[]string{"service"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ldr",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Hybrid retrieval duration in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"service"},
	)
	retrievalResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ldr",
			Subsystem: "retrieval",
			Name:      "result_count",
			Help:      "Distribution of results returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	retrievalEmptyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ldr",
			Subsystem: "retrieval",
			Name:      "empty_total",
			Help:      "Total retrievals that returned no results.",
		},
		[]string{"service"},
	)
	retrievalTimeouts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ldr",
			Subsystem: "retrieval",
			Name:      "timeout_total",
			Help:      "Total retrievals abandoned at the query deadline.",
		},
		[]string{"service"},
	)
	attributionDesyncs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ldr",
			Subsystem: "retrieval",
			Name:      "attribution_desync_total",
			Help:      "Total fused chunk ids that failed to resolve in the chunk store.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalTotal,
		retrievalDuration,
		retrievalResults,
		retrievalEmptyTotal,
		retrievalTimeouts,
		attributionDesyncs,
	)

	return &ServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		retrievalTotal:      retrievalTotal,
		retrievalDuration:   retrievalDuration,
		retrievalResults:    retrievalResults,
		retrievalEmptyTotal: retrievalEmptyTotal,
		retrievalTimeouts:   retrievalTimeouts,
		attributionDesyncs:  attributionDesyncs,
	}
}

func (m *ServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// Observer binds the retrieval counters to one service label so the
// usecase layer records outcomes without knowing prometheus.
type Observer struct {
	metrics *ServerMetrics
	service string
}

func (m *ServerMetrics) Observer(service string) *Observer {
	return &Observer{metrics: m, service: service}
}

func (o *Observer) ObserveRetrieval(resultCount int, durationSeconds float64) {
	o.metrics.retrievalTotal.WithLabelValues(o.service).Inc()
	o.metrics.retrievalResults.WithLabelValues(o.service).Observe(float64(resultCount))
	o.metrics.retrievalDuration.WithLabelValues(o.service).Observe(durationSeconds)
	if resultCount == 0 {
		o.metrics.retrievalEmptyTotal.WithLabelValues(o.service).Inc()
	}
}

func (o *Observer) RecordTimeout() {
	o.metrics.retrievalTimeouts.WithLabelValues(o.service).Inc()
}

func (o *Observer) RecordAttributionDesync() {
	o.metrics.attributionDesyncs.WithLabelValues(o.service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
