// Package middleware provides the HTTP middleware of the penguins dashboard
// server and the Prometheus recorder its sessions report to.
//
// All middleware has the func(http.Handler) http.Handler shape, so it plugs
// into a chi router with r.Use.
//
// # Prometheus Metrics
//
// NewMetrics registers the dashboard's collectors:
//
//	m := middleware.NewMetrics(middleware.WithNamespace("penguins"))
//	r.Use(m.Handler)
//
// Request metrics are labelled by chi route pattern. The same Metrics value
// records reactive recomputations, input changes and patches, and is passed
// to each dashboard session as its recorder.
//
// Exposed metrics (with the default namespace):
//   - penguins_http_requests_total{route,method,status}
//   - penguins_http_request_duration_seconds{route}
//   - penguins_recomputes_total{node}
//   - penguins_input_changes_total{field}
//   - penguins_invalid_inputs_total{field}
//   - penguins_patches_total
//   - penguins_patch_outputs
//   - penguins_active_sessions
//   - penguins_sessions_total
//   - penguins_session_evictions_total
//   - penguins_websocket_errors_total{type}
//   - penguins_reconnects_total
//
// # OpenTelemetry
//
// Tracing starts a server span per request. Session operations started
// from the request context become child spans.
//
//	r.Use(middleware.Tracing(
//	    middleware.WithRequestFilter(func(r *http.Request) bool {
//	        return r.URL.Path != "/healthz"
//	    }),
//	))
//
// # Logging
//
// RequestLogger writes a structured slog line per request.
package middleware
