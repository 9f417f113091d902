package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Общие HTTP-метрики
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
)

// Доменные метрики: модерация и отказы в доступе.
var (
	moderationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_decisions_total",
			Help: "Moderation decisions applied to listings, by action.",
		},
		[]string{"action"},
	)

	permissionDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_denials_total",
			Help: "Authorization denials for authenticated actors, by capability.",
		},
		[]string{"capability"},
	)

	notificationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_emit_failures_total",
		Help: "Best-effort notification deliveries that failed.",
	})
)

var registerOnce sync.Once

// Init registers all metrics in the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			moderationDecisions, permissionDenials, notificationFailures,
		)
	})
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CountModerationDecision increments the per-action moderation counter.
func CountModerationDecision(action string) {
	moderationDecisions.WithLabelValues(action).Inc()
}

// CountPermissionDenial increments the per-capability denial counter.
func CountPermissionDenial(capability string) {
	permissionDenials.WithLabelValues(capability).Inc()
}

// CountNotificationFailure increments the failed-delivery counter.
func CountNotificationFailure() {
	notificationFailures.Inc()
}

// Instrument wraps an HTTP handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
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

// statusWriter — локальная копия, чтобы знать код ответа.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush пробрасывается, иначе SSE-хендлеры не видят http.Flusher.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
