package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry          *prometheus.Registry
	rooms             prometheus.Gauge
	roomMembers       prometheus.Gauge
	sessions          prometheus.Gauge
	messagesPosted    prometheus.Counter
	eventsSent        prometheus.Counter
	eventsDropped     *prometheus.CounterVec
	heartbeatTimeouts prometheus.Counter
	protocolErrors    *prometheus.CounterVec
	httpReqCnt        *prometheus.CounterVec
	httpDur           *prometheus.HistogramVec
}

func New(ns string) *Metrics {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry:          r,
		rooms:             prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "rooms"}),
		roomMembers:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "room_members"}),
		sessions:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "sessions_connected"}),
		messagesPosted:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "messages_posted_total"}),
		eventsSent:        prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "events_sent_total"}),
		eventsDropped:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "events_dropped_total"}, []string{"reason"}),
		heartbeatTimeouts: prometheus.NewCounter(prometheus.CounterOpts{Namespace: ns, Name: "heartbeat_timeouts_total"}),
		protocolErrors:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "protocol_errors_total"}, []string{"code"}),
		httpReqCnt:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"}),
		httpDur:           prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: prometheus.DefBuckets}, []string{"method", "route", "status"}),
	}
	r.MustRegister(m.rooms, m.roomMembers, m.sessions, m.messagesPosted, m.eventsSent,
		m.eventsDropped, m.heartbeatTimeouts, m.protocolErrors, m.httpReqCnt, m.httpDur)
	return m
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.rooms.Set(float64(n))
}

func (m *Metrics) SetRoomMembers(n int) {
	if m == nil {
		return
	}
	m.roomMembers.Set(float64(n))
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}

func (m *Metrics) MessagePosted() {
	if m == nil {
		return
	}
	m.messagesPosted.Inc()
}

func (m *Metrics) EventSent() {
	if m == nil {
		return
	}
	m.eventsSent.Inc()
}

func (m *Metrics) EventDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) HeartbeatTimeout() {
	if m == nil {
		return
	}
	m.heartbeatTimeouts.Inc()
}

func (m *Metrics) ProtocolError(code string) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(code).Inc()
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
