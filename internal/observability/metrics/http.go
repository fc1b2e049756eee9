package metrics

import (
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

	recordsListedTotal  *prometheus.CounterVec
	recordsDeletedTotal *prometheus.CounterVec
	exportsTotal        *prometheus.CounterVec

	geocodeLookupsTotal   *prometheus.CounterVec
	geocodeCacheHitsTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plantadmin",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plantadmin",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "plantadmin",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	recordsListedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plantadmin",
			Subsystem: "history",
			Name:      "records_listed_total",
			Help:      "Total classification records returned by history loads.",
		},
		[]string{"service"},
	)
	recordsDeletedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plantadmin",
			Subsystem: "history",
			Name:      "records_deleted_total",
			Help:      "Total classification records deleted, by mode (single/bulk).",
		},
		[]string{"service", "mode"},
	)
	exportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plantadmin",
			Subsystem: "history",
			Name:      "exports_total",
			Help:      "Total history spreadsheet exports.",
		},
		[]string{"service"},
	)
	geocodeLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plantadmin",
			Subsystem: "geocode",
			Name:      "lookups_total",
			Help:      "Total reverse-geocoding lookups by outcome.",
		},
		[]string{"service", "outcome"},
	)
	geocodeCacheHitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plantadmin",
			Subsystem: "geocode",
			Name:      "cache_hits_total",
			Help:      "Total reverse-geocoding lookups served from cache.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		recordsListedTotal,
		recordsDeletedTotal,
		exportsTotal,
		geocodeLookupsTotal,
		geocodeCacheHitsTotal,
	)

	return &HTTPServerMetrics{
		registry:              registry,
		requestTotal:          requestTotal,
		requestDuration:       requestDuration,
		requestInFlight:       requestInFlight,
		recordsListedTotal:    recordsListedTotal,
		recordsDeletedTotal:   recordsDeletedTotal,
		exportsTotal:          exportsTotal,
		geocodeLookupsTotal:   geocodeLookupsTotal,
		geocodeCacheHitsTotal: geocodeCacheHitsTotal,
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
	case strings.HasPrefix(path, "/v1/history/") && path != "/v1/history/delete" && path != "/v1/history/export":
		return "/v1/history/{record_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordHistoryLoad(service string, count int) {
	m.recordsListedTotal.WithLabelValues(service).Add(float64(count))
}

func (m *HTTPServerMetrics) RecordDeletes(service, mode string, count int) {
	if count <= 0 {
		return
	}
	m.recordsDeletedTotal.WithLabelValues(service, mode).Add(float64(count))
}

func (m *HTTPServerMetrics) RecordExport(service string) {
	m.exportsTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordGeocodeLookup(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.geocodeLookupsTotal.WithLabelValues(service, outcome).Inc()
}

func (m *HTTPServerMetrics) RecordGeocodeCacheHit(service string) {
	m.geocodeCacheHitsTotal.WithLabelValues(service).Inc()
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
