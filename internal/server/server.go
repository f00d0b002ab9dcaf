package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/penguins/internal/config"
	"github.com/vango-dev/penguins/internal/render"
	"github.com/vango-dev/penguins/internal/store"
	"github.com/vango-dev/penguins/pkg/dataset"
	"github.com/vango-dev/penguins/pkg/middleware"
)

// SessionCookie carries the session ID between page loads.
const SessionCookie = "penguins_sid"

// Page constants shown around the outputs.
const (
	PageTitle = "Penguin Data"
	SourceURL = "https://github.com/sshres10/cintel-03-reactive"
)

// Server is the HTTP and WebSocket front of the dashboard.
type Server struct {
	config   *config.Config
	table    *dataset.Table
	renderer render.Renderer
	sessions *Manager
	metrics  *middleware.Metrics
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	live     LiveConfig
	router   chi.Router

	liveMu sync.Mutex
	conns  map[*liveConn]struct{}

	httpServer *http.Server
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*serverOptions)

type serverOptions struct {
	logger   *slog.Logger
	store    store.Store
	renderer render.Renderer
	registry *prometheus.Registry
	cleanup  time.Duration
}

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

// WithStore sets the snapshot store. The caller keeps ownership and closes
// it after Shutdown.
func WithStore(s store.Store) Option {
	return func(o *serverOptions) { o.store = s }
}

// WithRenderer replaces the go-chart renderer.
func WithRenderer(r render.Renderer) Option {
	return func(o *serverOptions) { o.renderer = r }
}

// WithRegistry registers metrics with reg and serves it on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *serverOptions) { o.registry = reg }
}

// WithCleanupInterval sets how often idle sessions are swept.
func WithCleanupInterval(d time.Duration) Option {
	return func(o *serverOptions) { o.cleanup = d }
}

// New builds a server for table. cfg must already be validated.
func New(cfg *config.Config, table *dataset.Table, opts ...Option) *Server {
	o := serverOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.renderer == nil {
		o.renderer = render.NewChartRenderer()
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	logger := o.logger.With("component", "server")
	metrics := middleware.NewMetrics(
		middleware.WithRegistry(o.registry),
		middleware.WithNamespace(cfg.Telemetry.Namespace),
	)

	s := &Server{
		config:   cfg,
		table:    table,
		renderer: o.renderer,
		metrics:  metrics,
		gatherer: o.registry,
		live: LiveConfig{
			HeartbeatInterval: cfg.Session.HeartbeatInterval.Std(),
			WriteTimeout:      cfg.Server.WriteTimeout.Std(),
			MaxMessageSize:    DefaultLiveConfig().MaxMessageSize,
			EventQueueSize:    DefaultLiveConfig().EventQueueSize,
		},
		conns:  make(map[*liveConn]struct{}),
		logger: logger,
	}
	s.sessions = NewManager(table, o.renderer, o.store, ManagerConfig{
		MaxSessions:     cfg.Session.MaxSessions,
		IdleTimeout:     cfg.Session.IdleTimeout.Std(),
		CleanupInterval: o.cleanup,
		TTL:             cfg.Session.TTL.Std(),
	}, metrics, o.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(s.metrics.Handler)
	r.Use(middleware.Tracing(
		middleware.WithTracerName(s.config.Telemetry.TracerName),
		middleware.WithRequestFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		}),
	))

	r.Get("/", s.handlePage)
	r.Get("/ws", s.HandleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(render.Static()))))

	r.Route("/api", func(r chi.Router) {
		r.Get("/filtered", s.handleFiltered)
		r.Get("/dataset/summary", s.handleSummary)
		r.Post("/sessions/{id}/inputs", s.handleInputs)
		r.Get("/sessions/{id}", s.handleSession)
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Sessions returns the session manager.
func (s *Server) Sessions() *Manager {
	return s.sessions
}

// Metrics returns the server's Prometheus collectors.
func (s *Server) Metrics() *middleware.Metrics {
	return s.metrics
}

// checkOrigin accepts same-origin upgrades, requests without an Origin
// header, and any origin listed in the configuration.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(s.config.Server.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// HandleWebSocket upgrades the request and runs the live session named by
// the sid query parameter or the session cookie.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sid")
	if id == "" {
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}
	}

	sess, err := s.sessions.ResumeOrCreate(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		s.metrics.RecordWebSocketError(err)
		return
	}

	lc := newLiveConn(conn, sess, s.sessions, s.live, s.logger)
	s.track(lc, true)
	defer s.track(lc, false)

	s.logger.Debug("live connection opened", "session_id", sess.ID)
	lc.run(sess)
	s.logger.Debug("live connection closed", "session_id", sess.ID)
}

func (s *Server) track(lc *liveConn, add bool) {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	if add {
		s.conns[lc] = struct{}{}
	} else {
		delete(s.conns, lc)
	}
}

// closeLive ends every live connection. Hijacked connections are not
// tracked by http.Server.Shutdown.
func (s *Server) closeLive() int {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	for lc := range s.conns {
		lc.close()
	}
	return len(s.conns)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	// WriteTimeout stays unset: it would cut live connections. Frame
	// writes carry their own deadline.
	s.httpServer = &http.Server{
		Addr:              s.config.Server.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       s.config.Server.ReadTimeout.Std(),
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Server.Address, "rows", s.table.Len())
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout.Std())
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown saves and closes every session, then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if n := s.closeLive(); n > 0 {
		s.logger.Info("closed live connections", "count", n)
	}
	if err := s.sessions.Shutdown(ctx); err != nil {
		s.logger.Warn("session shutdown incomplete", "error", err)
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.logger.Info("server shutdown complete")
	return nil
}
