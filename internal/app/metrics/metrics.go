package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	matchRequests = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "matching",
			Name:      "requests_total",
			Help:      "Total number of supplier match requests.",
		},
	)

	connectionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "connections",
			Name:      "transitions_total",
			Help:      "Total number of connection status transitions.",
		},
		[]string{"to_status", "accepted"},
	)

	discoverySearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "discovery",
			Name:      "searches_total",
			Help:      "Total number of external web-supplier searches.",
		},
		[]string{"outcome"},
	)

	discoverySearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: "discovery",
			Name:      "search_duration_seconds",
			Help:      "Duration of external search calls.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	discoveryLeadSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "discovery",
			Name:      "lead_saves_total",
			Help:      "Total lead save attempts by result.",
		},
		[]string{"result"},
	)

	impactGauges = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "marketplace",
			Subsystem: "impact",
			Name:      "metric",
			Help:      "Latest community impact metrics snapshot.",
		},
		[]string{"name"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		matchRequests,
		connectionTransitions,
		discoverySearches,
		discoverySearchDuration,
		discoveryLeadSaves,
		impactGauges,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordMatchRequest counts a supplier match request.
func RecordMatchRequest() {
	matchRequests.Inc()
}

// RecordConnectionTransition counts a connection transition attempt.
func RecordConnectionTransition(toStatus string, accepted bool) {
	result := "false"
	if accepted {
		result = "true"
	}
	connectionTransitions.WithLabelValues(toStatus, result).Inc()
}

// RecordDiscoverySearch records the outcome and duration of an external
// search call.
func RecordDiscoverySearch(outcome string, duration time.Duration) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	discoverySearches.WithLabelValues(outcome).Inc()
	discoverySearchDuration.Observe(duration.Seconds())
}

// RecordLeadSave counts a lead save attempt: saved, duplicate, or failed.
func RecordLeadSave(result string) {
	discoveryLeadSaves.WithLabelValues(result).Inc()
}

// SetImpactMetric publishes one figure from the latest impact snapshot.
func SetImpactMetric(name string, value float64) {
	impactGauges.WithLabelValues(name).Set(value)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "businesses" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/businesses"
	}
	if len(parts) == 2 {
		return "/businesses/:business"
	}
	return "/businesses/" + parts[1]
}
