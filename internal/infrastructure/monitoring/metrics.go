package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Command execution metrics
	CommandsTotal    *prometheus.CounterVec
	CommandsActive   prometheus.Gauge
	CommandDuration  prometheus.Histogram
	SSHSessionsTotal prometheus.Counter
	SSHForwarded     prometheus.Counter

	// PTY metrics
	PTYSessionsActive prometheus.Gauge
	PTYSessionsTotal  prometheus.Counter
	PTYBytesRead      prometheus.Counter

	// Event metrics
	EventsPublished *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// Service metrics
	ServiceCalls  *prometheus.CounterVec
	ServiceErrors *prometheus.CounterVec

	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aiterm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aiterm_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		CommandsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aiterm_commands_total",
				Help: "Total commands dispatched, by outcome (started, forwarded, password_required, error)",
			},
			[]string{"outcome"},
		),
		CommandsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "aiterm_commands_active",
				Help: "Number of foreground processes currently running",
			},
		),
		CommandDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "aiterm_command_duration_seconds",
				Help:    "Wall time from spawn to exit",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
			},
		),
		SSHSessionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "aiterm_ssh_sessions_total",
				Help: "Total interactive SSH sessions started",
			},
		),
		SSHForwarded: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "aiterm_ssh_forwarded_commands_total",
				Help: "Commands forwarded to an active SSH session instead of spawned",
			},
		),

		PTYSessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "aiterm_pty_sessions_active",
				Help: "Number of live PTY sessions",
			},
		),
		PTYSessionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "aiterm_pty_sessions_total",
				Help: "Total PTY sessions created",
			},
		),
		PTYBytesRead: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "aiterm_pty_bytes_read_total",
				Help: "Raw bytes read from PTY masters",
			},
		),

		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aiterm_events_published_total",
				Help: "Events published to the event bus, by type",
			},
			[]string{"type"},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "aiterm_ws_connections",
				Help: "Active WebSocket event stream connections",
			},
		),

		ServiceCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aiterm_service_calls_total",
				Help: "Provider tool executions, by tool",
			},
			[]string{"tool"},
		),
		ServiceErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aiterm_service_errors_total",
				Help: "Provider tool failures, by tool",
			},
			[]string{"tool"},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCommand records a command dispatch outcome
func (m *Metrics) RecordCommand(outcome string) {
	m.CommandsTotal.WithLabelValues(outcome).Inc()
}

// RecordServiceCall records a provider tool execution
func (m *Metrics) RecordServiceCall(tool string, err error) {
	m.ServiceCalls.WithLabelValues(tool).Inc()
	if err != nil {
		m.ServiceErrors.WithLabelValues(tool).Inc()
	}
}

// Uptime returns time since metrics initialization
func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}
