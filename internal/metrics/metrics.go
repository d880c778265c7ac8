// ABOUTME: Prometheus instruments for outreach activity, registered on the default registry
// ABOUTME: Record* helpers keep label values consistent across packages
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Message kinds for RecordMessageSent
const (
	KindOpening = "opening"
	KindReply   = "reply"
	KindExit    = "exit"
)

var (
	messagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmagent_messages_sent_total",
			Help: "Total number of direct messages delivered",
		},
		[]string{"kind"},
	)

	repliesScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmagent_replies_scored_total",
			Help: "Total number of inbound replies scored, by intent",
		},
		[]string{"intent"},
	)

	killSwitchTrips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dmagent_killswitch_trips_total",
			Help: "Total number of kill-switch pauses",
		},
	)

	generationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmagent_generation_fallbacks_total",
			Help: "Total number of generation failures recovered by fallback",
		},
		[]string{"op"},
	)

	platformErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmagent_platform_errors_total",
			Help: "Total number of platform call failures",
		},
		[]string{"op"},
	)

	cycleErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dmagent_cycle_errors_total",
			Help: "Total number of scheduler cycles that failed and backed off",
		},
	)

	paused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dmagent_paused",
			Help: "1 while the kill-switch pause is active",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dmagent_http_requests_total",
			Help: "Total number of keep-alive server requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dmagent_http_request_duration_seconds",
			Help:    "Duration of keep-alive server requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func RecordMessageSent(kind string) {
	messagesSent.WithLabelValues(kind).Inc()
}

func RecordReplyScored(intent string) {
	repliesScored.WithLabelValues(intent).Inc()
}

func RecordKillSwitchTrip() {
	killSwitchTrips.Inc()
	paused.Set(1)
}

func RecordGenerationFallback(op string) {
	generationFallbacks.WithLabelValues(op).Inc()
}

func RecordPlatformError(op string) {
	platformErrors.WithLabelValues(op).Inc()
}

func RecordCycleError() {
	cycleErrors.Inc()
}

// SetPaused mirrors the pause state into the gauge
func SetPaused(active bool) {
	if active {
		paused.Set(1)
		return
	}
	paused.Set(0)
}

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
