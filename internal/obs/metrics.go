package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service considers itself ready.",
	})

	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"result"},
	)

	authzDenialsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "authz_denials_total",
		Help: "Authorization checks that were denied.",
	})

	eventsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_dispatched_total",
			Help: "Events dispatched on the in-process bus.",
		},
		[]string{"type"},
	)

	auditWriteFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_write_failures_total",
		Help: "Audit records dropped because persistence failed.",
	})
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight,
		httpRequestsTotal,
		httpRequestDuration,
		ready,
		loginsTotal,
		authzDenialsTotal,
		eventsDispatchedTotal,
		auditWriteFailures,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady flips the readiness gauge.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// CountLogin records a login attempt outcome ("ok" or "denied").
func CountLogin(result string) {
	loginsTotal.WithLabelValues(result).Inc()
}

// CountAuthzDenial records one denied authorization check.
func CountAuthzDenial() {
	authzDenialsTotal.Inc()
}

// CountEventDispatched records one dispatched bus event.
func CountEventDispatched(eventType string) {
	eventsDispatchedTotal.WithLabelValues(eventType).Inc()
}

// CountAuditWriteFailure records one dropped audit record.
func CountAuditWriteFailure() {
	auditWriteFailures.Inc()
}

// Instrument wraps a handler with request counting and latency measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response code for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
