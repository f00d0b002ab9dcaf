package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "penguins").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are added to every metric.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registerer.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the request duration buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registerer.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "penguins",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the dashboard's Prometheus collectors. It serves as HTTP
// middleware and as the recompute recorder handed to dashboard sessions.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	recomputes      *prometheus.CounterVec
	inputChanges    *prometheus.CounterVec
	invalidInputs   *prometheus.CounterVec
	patchesTotal    prometheus.Counter
	patchOutputs    prometheus.Histogram
	activeSessions  prometheus.Gauge
	sessionsTotal   prometheus.Counter
	evictions       prometheus.Counter
	wsErrors        *prometheus.CounterVec
	reconnects      prometheus.Counter
}

// NewMetrics registers the collectors with the configured registry.
// Registering twice against the same registry panics, so callers build
// one Metrics per registry.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)
	opt := func(name, help string) prometheus.Opts {
		return prometheus.Opts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}

	return &Metrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts(opt("http_requests_total", "Total HTTP requests by route, method and status")),
			[]string{"route", "method", "status"},
		),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),
		recomputes: factory.NewCounterVec(
			prometheus.CounterOpts(opt("recomputes_total", "Recomputations by reactive node")),
			[]string{"node"},
		),
		inputChanges: factory.NewCounterVec(
			prometheus.CounterOpts(opt("input_changes_total", "Accepted input changes by field")),
			[]string{"field"},
		),
		invalidInputs: factory.NewCounterVec(
			prometheus.CounterOpts(opt("invalid_inputs_total", "Rejected input changes by field")),
			[]string{"field"},
		),
		patchesTotal: factory.NewCounter(
			prometheus.CounterOpts(opt("patches_total", "Patches delivered to clients")),
		),
		patchOutputs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "patch_outputs",
			Help:        "Outputs redrawn per patch",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 3, 4, 5},
		}),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts(opt("active_sessions", "Number of live dashboard sessions")),
		),
		sessionsTotal: factory.NewCounter(
			prometheus.CounterOpts(opt("sessions_total", "Dashboard sessions created")),
		),
		evictions: factory.NewCounter(
			prometheus.CounterOpts(opt("session_evictions_total", "Sessions closed for inactivity")),
		),
		wsErrors: factory.NewCounterVec(
			prometheus.CounterOpts(opt("websocket_errors_total", "WebSocket errors by type")),
			[]string{"type"},
		),
		reconnects: factory.NewCounter(
			prometheus.CounterOpts(opt("reconnects_total", "Sessions resumed by a returning client")),
		),
	}
}

// Handler records request count and latency. The route label is the chi
// route pattern, so path parameters do not explode cardinality.
func (m *Metrics) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := routePattern(r)
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(sw.status)).Inc()
	})
}

// RecordRecompute counts one recomputation of a reactive node.
func (m *Metrics) RecordRecompute(node string) {
	m.recomputes.WithLabelValues(node).Inc()
}

// RecordInputChange counts an accepted input change.
func (m *Metrics) RecordInputChange(field string) {
	m.inputChanges.WithLabelValues(field).Inc()
}

// RecordInvalidInput counts a rejected input change.
func (m *Metrics) RecordInvalidInput(field string) {
	if field == "" {
		field = "unknown"
	}
	m.invalidInputs.WithLabelValues(field).Inc()
}

// RecordPatch records a patch carrying n outputs.
func (m *Metrics) RecordPatch(n int) {
	m.patchesTotal.Inc()
	m.patchOutputs.Observe(float64(n))
}

// SessionOpened increments the live session gauge.
func (m *Metrics) SessionOpened() {
	m.sessionsTotal.Inc()
	m.activeSessions.Inc()
}

// SessionClosed decrements the live session gauge.
func (m *Metrics) SessionClosed(evicted bool) {
	m.activeSessions.Dec()
	if evicted {
		m.evictions.Inc()
	}
}

// RecordWebSocketError counts a WebSocket error, bucketed by kind.
func (m *Metrics) RecordWebSocketError(err error) {
	m.wsErrors.WithLabelValues(categorizeError(err)).Inc()
}

// RecordReconnect counts a session resumed from a previous connection.
func (m *Metrics) RecordReconnect() {
	m.reconnects.Inc()
}

// categorizeError maps an error to a low-cardinality label.
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return "timeout"
	case strings.Contains(msg, "closed"), strings.Contains(msg, "close 100"):
		return "closed"
	case strings.Contains(msg, "invalid"), strings.Contains(msg, "json"):
		return "protocol"
	default:
		return "other"
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusWriter captures the response status for metrics and logging.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
	wrote  bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.status = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wrote = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack hands the connection to the WebSocket upgrader.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("middleware: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	w.wrote = true
	return h.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
