package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetricsHandler_LabelsByRoutePattern(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/api/sessions/a", "/api/sessions/b", "/healthz"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("/api/sessions/{id}", "GET", "404")); got != 2 {
		t.Errorf("requests_total(/api/sessions/{id},404) = %v, want 2", got)
	}
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("/healthz", "GET", "200")); got != 1 {
		t.Errorf("requests_total(/healthz,200) = %v, want 1", got)
	}
	if got := metricHistogramCount(t, m.requestDuration.WithLabelValues("/healthz")); got != 1 {
		t.Errorf("request_duration(/healthz) count = %d, want 1", got)
	}
}

func TestMetricsHandler_Unmatched(t *testing.T) {
	m := NewMetrics(WithRegistry(prometheus.NewRegistry()))
	h := m.Handler(http.NotFoundHandler())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("unmatched", "GET", "404")); got != 1 {
		t.Errorf("requests_total(unmatched) = %v, want 1", got)
	}
}

func TestMetrics_DomainRecorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(WithRegistry(reg), WithNamespace("test"))

	m.RecordRecompute("filtered")
	m.RecordRecompute("filtered")
	m.RecordRecompute("plot1")
	m.RecordInputChange("selected_species")
	m.RecordInvalidInput("plotly_bin_count")
	m.RecordInvalidInput("")
	m.RecordPatch(3)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed(true)
	m.RecordWebSocketError(errors.New("i/o timeout"))
	m.RecordReconnect()

	if got := metricCounterValue(t, m.recomputes.WithLabelValues("filtered")); got != 2 {
		t.Errorf("recomputes(filtered) = %v, want 2", got)
	}
	if got := metricCounterValue(t, m.recomputes.WithLabelValues("plot1")); got != 1 {
		t.Errorf("recomputes(plot1) = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.inputChanges.WithLabelValues("selected_species")); got != 1 {
		t.Errorf("input_changes = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.invalidInputs.WithLabelValues("unknown")); got != 1 {
		t.Errorf("invalid_inputs(unknown) = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.patchesTotal); got != 1 {
		t.Errorf("patches_total = %v, want 1", got)
	}
	if got := metricHistogramCount(t, m.patchOutputs); got != 1 {
		t.Errorf("patch_outputs count = %d, want 1", got)
	}
	if got := metricGaugeValue(t, m.activeSessions); got != 1 {
		t.Errorf("active_sessions = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.evictions); got != 1 {
		t.Errorf("evictions = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.wsErrors.WithLabelValues("timeout")); got != 1 {
		t.Errorf("websocket_errors(timeout) = %v, want 1", got)
	}
	if got := metricCounterValue(t, m.reconnects); got != 1 {
		t.Errorf("reconnects = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	for _, f := range families {
		if !strings.HasPrefix(f.GetName(), "test_") {
			t.Errorf("metric %q missing namespace prefix", f.GetName())
		}
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{errors.New("read tcp: i/o timeout"), "timeout"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("websocket: close 1006 (abnormal closure)"), "closed"},
		{errors.New("invalid character 'x' looking for beginning of value"), "protocol"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		if got := categorizeError(tt.err); got != tt.want {
			t.Errorf("categorizeError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

type recordingProvider struct {
	noop.TracerProvider
	mu    sync.Mutex
	spans []string
}

func (p *recordingProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return &recordingTracer{provider: p}
}

func (p *recordingProvider) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.spans...)
}

type recordingTracer struct {
	noop.Tracer
	provider *recordingProvider
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.provider.mu.Lock()
	t.provider.spans = append(t.provider.spans, name)
	t.provider.mu.Unlock()
	return t.Tracer.Start(ctx, name, opts...)
}

func TestTracing_StartsSpanPerRequest(t *testing.T) {
	tp := &recordingProvider{}
	h := Tracing(
		WithTracerProvider(tp),
		WithRequestFilter(func(r *http.Request) bool { return r.URL.Path != "/healthz" }),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/sessions/x/inputs", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	names := tp.names()
	if len(names) != 1 {
		t.Fatalf("spans = %v, want exactly one", names)
	}
	if names[0] != "POST /api/sessions/x/inputs" {
		t.Errorf("span name = %q", names[0])
	}
}

func TestTracing_PassesStatusThrough(t *testing.T) {
	h := Tracing()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTeapot)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestLogger(logger))
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fine"))
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "level=INFO") || !strings.Contains(lines[0], "path=/ok") ||
		!strings.Contains(lines[0], "status=200") || !strings.Contains(lines[0], "bytes=4") {
		t.Errorf("unexpected ok line: %s", lines[0])
	}
	if !strings.Contains(lines[0], "request_id=") {
		t.Errorf("missing request id: %s", lines[0])
	}
	if !strings.Contains(lines[1], "level=WARN") || !strings.Contains(lines[1], "status=500") {
		t.Errorf("unexpected error line: %s", lines[1])
	}
}
