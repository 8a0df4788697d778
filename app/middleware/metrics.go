package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Total HTTP requests partitioned by method, route, and status code
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	// Request duration in seconds partitioned by method, route, and status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// In-flight HTTP requests
	httpInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	dispatcherSweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_sweeps_total",
			Help: "Dispatcher sweeps partitioned by how they ended",
		},
		[]string{"result"},
	)

	dispatcherItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_items_total",
			Help: "Due steps handled by the dispatcher partitioned by outcome",
		},
		[]string{"outcome"},
	)

	dispatcherSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatcher_sweep_duration_seconds",
			Help:    "Duration of dispatcher sweeps that did work",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	ivrActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ivr_actions_total",
			Help: "IVR webhook responses partitioned by the action taken",
		},
		[]string{"action"},
	)

	webhookOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telephony_webhook_outcomes_total",
			Help: "Telephony webhook results partitioned by webhook and error code",
		},
		[]string{"webhook", "code"},
	)
)

// Metrics returns a Fiber v3 middleware that records basic Prometheus metrics.
// Labels are kept low-cardinality by using the matched route path when available.
func Metrics() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		err := c.Next()

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}

		labels := prometheus.Labels{
			"method": c.Method(),
			"route":  route,
			"status": strconv.Itoa(c.Response().StatusCode()),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())

		return err
	}
}

// SweepStats is the part of a dispatcher sweep that is exported as metrics
type SweepStats struct {
	Busy       bool
	Exhausted  bool
	Dispatched int
	Skipped    int
	Failed     int
	Duration   time.Duration
}

// RecordSweep exports the outcome of one dispatcher sweep
func RecordSweep(stats SweepStats, err error) {
	switch {
	case err != nil:
		dispatcherSweepsTotal.WithLabelValues("error").Inc()
		return
	case stats.Busy:
		dispatcherSweepsTotal.WithLabelValues("busy").Inc()
		return
	case stats.Exhausted:
		dispatcherSweepsTotal.WithLabelValues("exhausted").Inc()
	default:
		dispatcherSweepsTotal.WithLabelValues("ok").Inc()
	}

	dispatcherItemsTotal.WithLabelValues("dispatched").Add(float64(stats.Dispatched))
	dispatcherItemsTotal.WithLabelValues("skipped").Add(float64(stats.Skipped))
	dispatcherItemsTotal.WithLabelValues("failed").Add(float64(stats.Failed))
	dispatcherSweepDuration.Observe(stats.Duration.Seconds())
}

// RecordIVRAction counts an IVR response by the action it took
func RecordIVRAction(action string) {
	if action == "" {
		action = "unknown"
	}
	ivrActionsTotal.WithLabelValues(action).Inc()
}

// RecordWebhook counts a webhook result; code is "ok" or the error code returned
func RecordWebhook(webhook, code string) {
	webhookOutcomesTotal.WithLabelValues(webhook, code).Inc()
}
