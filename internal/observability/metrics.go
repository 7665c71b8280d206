package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by the API, the event workers and
// the live broadcaster.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDuration        *prometheus.HistogramVec
	shipmentTransitionsTotal   *prometheus.CounterVec
	pinRejectionsTotal         *prometheus.CounterVec
	notificationsCreatedTotal  *prometheus.CounterVec
	notificationEvictionsTotal *prometheus.CounterVec
	liveConnections            prometheus.Gauge
	liveFramesDroppedTotal     prometheus.Counter
	eventDispatchFailuresTotal *prometheus.CounterVec
	eventsProcessedTotal       *prometheus.CounterVec
	eventWorkerInflight        prometheus.Gauge
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medtransit",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "medtransit",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		shipmentTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medtransit",
				Name:      "shipment_transitions_total",
				Help:      "Committed shipment status transitions grouped by target status kind.",
			},
			[]string{"status"},
		),
		pinRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medtransit",
				Name:      "pin_rejections_total",
				Help:      "Delivered transitions rejected by the delivery pin guard grouped by reason.",
			},
			[]string{"reason"},
		),
		notificationsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medtransit",
				Name:      "notifications_created_total",
				Help:      "Persisted notifications grouped by type.",
			},
			[]string{"type"},
		),
		notificationEvictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medtransit",
				Name:      "notification_evictions_total",
				Help:      "Notifications removed by retention grouped by rule.",
			},
			[]string{"rule"},
		),
		liveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "medtransit",
				Name:      "live_connections",
				Help:      "Currently registered live notification subscriptions.",
			},
		),
		liveFramesDroppedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "medtransit",
				Name:      "live_frames_dropped_total",
				Help:      "Frames dropped because a live subscription buffer was full.",
			},
		),
		eventDispatchFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medtransit",
				Name:      "event_dispatch_failures_total",
				Help:      "Status change events that could not be handed to the event queue.",
			},
			[]string{"reason"},
		),
		eventsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "medtransit",
				Name:      "events_processed_total",
				Help:      "Status change events consumed by the event workers grouped by result.",
			},
			[]string{"result"},
		),
		eventWorkerInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "medtransit",
				Name:      "event_worker_inflight",
				Help:      "Current number of status change events being handled.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.shipmentTransitionsTotal,
		m.pinRejectionsTotal,
		m.notificationsCreatedTotal,
		m.notificationEvictionsTotal,
		m.liveConnections,
		m.liveFramesDroppedTotal,
		m.eventDispatchFailuresTotal,
		m.eventsProcessedTotal,
		m.eventWorkerInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncShipmentTransition(status string) {
	if m == nil {
		return
	}
	m.shipmentTransitionsTotal.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) IncPinRejection(reason string) {
	if m == nil {
		return
	}
	m.pinRejectionsTotal.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncNotificationCreated(notificationType string) {
	if m == nil {
		return
	}
	m.notificationsCreatedTotal.WithLabelValues(normalizeLabel(notificationType)).Inc()
}

func (m *Metrics) AddNotificationEvictions(rule string, count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.notificationEvictionsTotal.WithLabelValues(normalizeLabel(rule)).Add(float64(count))
}

func (m *Metrics) IncLiveConnections() {
	if m == nil {
		return
	}
	m.liveConnections.Inc()
}

func (m *Metrics) DecLiveConnections() {
	if m == nil {
		return
	}
	m.liveConnections.Dec()
}

func (m *Metrics) IncLiveFramesDropped() {
	if m == nil {
		return
	}
	m.liveFramesDroppedTotal.Inc()
}

func (m *Metrics) IncEventDispatchFailure(reason string) {
	if m == nil {
		return
	}
	m.eventDispatchFailuresTotal.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *Metrics) IncEventProcessed(result string) {
	if m == nil {
		return
	}
	m.eventsProcessedTotal.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) IncEventWorkerInFlight() {
	if m == nil {
		return
	}
	m.eventWorkerInflight.Inc()
}

func (m *Metrics) DecEventWorkerInFlight() {
	if m == nil {
		return
	}
	m.eventWorkerInflight.Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
