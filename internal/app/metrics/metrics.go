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

const namespace = "studio_layer"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "appointments_total",
			Help:      "Appointments booked, by outcome.",
		},
		[]string{"studio", "outcome"},
	)

	sweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "sweeps_total",
			Help:      "Pending-confirmation sweeps, by result.",
		},
		[]string{"result"},
	)

	aiGenerations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "generations_total",
			Help:      "Generative AI calls, by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	aiDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "generation_duration_seconds",
			Help:      "Duration of generative AI calls.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
		},
		[]string{"operation"},
	)

	realtimeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Row change events received from the realtime channel.",
		},
		[]string{"table", "type"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "published_total",
			Help:      "Notifications published to connected users.",
		},
		[]string{"kind"},
	)

	wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "websocket_clients",
			Help:      "Connected notification websocket clients.",
		},
	)

	lowStock = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "inventory",
			Name:      "low_stock_items",
			Help:      "Inventory items below their minimum stock.",
		},
		[]string{"studio"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		bookings,
		sweeps,
		aiGenerations,
		aiDuration,
		realtimeEvents,
		notifications,
		wsClients,
		lowStock,
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

// RecordBooking counts a booking attempt.
func RecordBooking(studio string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	bookings.WithLabelValues(studio, outcome).Inc()
}

// RecordSweep counts a pending-confirmation sweep. result is found, none or error.
func RecordSweep(result string) {
	sweeps.WithLabelValues(result).Inc()
}

// RecordAIGeneration records one generative AI call.
func RecordAIGeneration(operation string, duration time.Duration, err error) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	aiGenerations.WithLabelValues(operation, outcome).Inc()
	aiDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRealtimeEvent counts a realtime change event.
func RecordRealtimeEvent(table, changeType string) {
	realtimeEvents.WithLabelValues(table, changeType).Inc()
}

// RecordNotification counts a published notification.
func RecordNotification(kind string) {
	notifications.WithLabelValues(kind).Inc()
}

// WebsocketConnected adjusts the connected websocket gauge by delta.
func WebsocketConnected(delta int) {
	wsClients.Add(float64(delta))
}

// SetLowStock reports the number of low-stock items for a studio.
func SetLowStock(studio string, count int) {
	lowStock.WithLabelValues(studio).Set(float64(count))
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

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// canonicalPath collapses IDs so label cardinality stays bounded:
// /studios/bribiesca/appointments/42/complete -> /studios/:studio/appointments.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if parts[0] != "studios" {
		return "/" + parts[0]
	}
	if len(parts) == 1 {
		return "/studios"
	}
	if len(parts) == 2 {
		return "/studios/:studio"
	}
	return "/studios/:studio/" + parts[2]
}
