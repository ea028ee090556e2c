package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryRequestsTotal  *prometheus.CounterVec
	queryHitTotal       *prometheus.CounterVec
	queryNoContextTotal *prometheus.CounterVec
	queryRetrievedDocs  *prometheus.HistogramVec
	queryDuration       *prometheus.HistogramVec

	sparseIndexBuilds *prometheus.CounterVec
	sparseCacheHits   *prometheus.CounterVec
	sparseCacheMisses *prometheus.CounterVec

	service string
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finquery",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finquery",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "finquery",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finquery",
			Subsystem: "rag",
			Name:      "requests_total",
			Help:      "Total successful document QA requests.",
		},
		[]string{"service"},
	)
	queryHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finquery",
			Subsystem: "rag",
			Name:      "retrieval_hit_total",
			Help:      "Total QA requests with at least one retrieved source.",
		},
		[]string{"service"},
	)
	queryNoContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finquery",
			Subsystem: "rag",
			Name:      "no_context_total",
			Help:      "Total QA requests without retrieved sources.",
		},
		[]string{"service"},
	)
	queryRetrievedDocs := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finquery",
			Subsystem: "rag",
			Name:      "retrieved_chunks",
			Help:      "Distribution of retrieved chunks per successful QA request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finquery",
			Subsystem: "rag",
			Name:      "duration_seconds",
			Help:      "End-to-end QA execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	sparseIndexBuilds := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finquery",
			Subsystem: "retrieval",
			Name:      "sparse_index_builds_total",
			Help:      "Total keyword indexes built from stored chunk sets.",
		},
		[]string{"service"},
	)
	sparseCacheHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finquery",
			Subsystem: "retrieval",
			Name:      "sparse_cache_hits_total",
			Help:      "Total keyword index cache hits.",
		},
		[]string{"service"},
	)
	sparseCacheMisses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finquery",
			Subsystem: "retrieval",
			Name:      "sparse_cache_misses_total",
			Help:      "Total keyword index cache misses.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryRequestsTotal,
		queryHitTotal,
		queryNoContextTotal,
		queryRetrievedDocs,
		queryDuration,
		sparseIndexBuilds,
		sparseCacheHits,
		sparseCacheMisses,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		queryRequestsTotal:  queryRequestsTotal,
		queryHitTotal:       queryHitTotal,
		queryNoContextTotal: queryNoContextTotal,
		queryRetrievedDocs:  queryRetrievedDocs,
		queryDuration:       queryDuration,
		sparseIndexBuilds:   sparseIndexBuilds,
		sparseCacheHits:     sparseCacheHits,
		sparseCacheMisses:   sparseCacheMisses,
		service:             service,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
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
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{doc_name}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordQueryObservation(service string, sourceCount int, duration time.Duration) {
	m.queryRequestsTotal.WithLabelValues(service).Inc()
	m.queryRetrievedDocs.WithLabelValues(service).Observe(float64(sourceCount))
	m.queryDuration.WithLabelValues(service).Observe(duration.Seconds())

	if sourceCount > 0 {
		m.queryHitTotal.WithLabelValues(service).Inc()
		return
	}
	m.queryNoContextTotal.WithLabelValues(service).Inc()
}

// SparseIndexBuilt, CacheHit and CacheMiss implement the retrieval
// observer consumed by the retrieve use case.
func (m *HTTPServerMetrics) SparseIndexBuilt(string) {
	m.sparseIndexBuilds.WithLabelValues(m.service).Inc()
}

func (m *HTTPServerMetrics) CacheHit() {
	m.sparseCacheHits.WithLabelValues(m.service).Inc()
}

func (m *HTTPServerMetrics) CacheMiss() {
	m.sparseCacheMisses.WithLabelValues(m.service).Inc()
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
