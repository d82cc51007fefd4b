// Package metrics exposes Prometheus collectors for the queue.
package metrics

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"queuedesk/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "queuedesk"

var (
	TicketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticket_events_total",
		Help:      "Ticket lifecycle events by kind.",
	}, []string{"event"})

	CallNextOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "call_next_total",
		Help:      "Call-next results by action taken.",
	}, []string{"outcome"})

	WaitMinutes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "wait_minutes",
		Help:      "Minutes between ticket creation and service.",
		Buckets:   []float64{1, 2, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	})

	ConnectedViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "realtime_viewers",
		Help:      "Viewers currently connected to the realtime hub.",
	})

	DroppedMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_dropped_messages_total",
		Help:      "Realtime messages dropped because a viewer buffer was full.",
	})

	PublishFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "publish_failures_total",
		Help:      "Domain events that could not be published, by sink.",
	}, []string{"sink"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// RegisterDBStats exports database/sql pool statistics.
func RegisterDBStats(db *sql.DB, name string) {
	prometheus.MustRegister(collectors.NewDBStatsCollector(db, name))
}

// Observer counts committed ticket events.
type Observer struct{}

func (Observer) HandleEvent(_ context.Context, ev events.Event) {
	if !ev.Kind.IsTicket() {
		return
	}
	TicketEvents.WithLabelValues(string(ev.Kind)).Inc()
	if ev.Kind == events.TicketServed && ev.Ticket != nil && ev.Ticket.ServedAt != nil {
		WaitMinutes.Observe(ev.Ticket.ServedAt.Sub(ev.Ticket.CreatedAt).Minutes())
	}
}

// Middleware records request latency per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPDuration.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
