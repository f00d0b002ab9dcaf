package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vango-dev/penguins/internal/dashboard"
	"github.com/vango-dev/penguins/internal/errors"
	"github.com/vango-dev/penguins/internal/render"
	"github.com/vango-dev/penguins/internal/store"
	"github.com/vango-dev/penguins/pkg/dataset"
)

// Recorder receives session lifecycle and protocol metrics. It is satisfied
// by *middleware.Metrics.
type Recorder interface {
	dashboard.Recorder
	SessionOpened()
	SessionClosed(evicted bool)
	RecordWebSocketError(err error)
	RecordInvalidInput(field string)
	RecordReconnect()
}

type nopRecorder struct{}

func (nopRecorder) RecordRecompute(string)     {}
func (nopRecorder) RecordInputChange(string)   {}
func (nopRecorder) RecordPatch(int)            {}
func (nopRecorder) SessionOpened()             {}
func (nopRecorder) SessionClosed(bool)         {}
func (nopRecorder) RecordWebSocketError(error) {}
func (nopRecorder) RecordInvalidInput(string)  {}
func (nopRecorder) RecordReconnect()           {}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// MaxSessions caps live sessions. Zero means no limit.
	MaxSessions int

	// IdleTimeout closes sessions with no input for this long.
	IdleTimeout time.Duration

	// CleanupInterval is how often idle sessions and expired snapshots are
	// swept.
	CleanupInterval time.Duration

	// TTL is how long a persisted snapshot stays resumable.
	TTL time.Duration
}

// DefaultManagerConfig returns the settings used when none are given.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxSessions:     1000,
		IdleTimeout:     30 * time.Minute,
		CleanupInterval: time.Minute,
		TTL:             24 * time.Hour,
	}
}

// Manager owns every live dashboard session. Sessions share the dataset
// and renderer; each has its own reactive graph.
//
// Inputs are saved to the store after every accepted change, so a session
// closed for inactivity or lost in a restart resumes where it left off.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*dashboard.Session

	table    *dataset.Table
	renderer render.Renderer
	store    store.Store
	config   ManagerConfig
	recorder Recorder
	logger   *slog.Logger

	done        chan struct{}
	cleanupDone chan struct{}
	closeOnce   sync.Once
}

// NewManager starts a manager and its cleanup loop. A nil store keeps
// snapshots in memory.
func NewManager(table *dataset.Table, renderer render.Renderer, st store.Store, config ManagerConfig, recorder Recorder, logger *slog.Logger) *Manager {
	defaults := DefaultManagerConfig()
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.TTL <= 0 {
		config.TTL = defaults.TTL
	}
	if st == nil {
		st = store.NewMemoryStore()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		sessions:    make(map[string]*dashboard.Session),
		table:       table,
		renderer:    renderer,
		store:       st,
		config:      config,
		recorder:    recorder,
		logger:      logger.With("component", "session_manager"),
		done:        make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Create starts a session with default inputs and a fresh ID.
func (m *Manager) Create(ctx context.Context) (*dashboard.Session, error) {
	return m.open(ctx, uuid.NewString())
}

// Resume returns the live session id, or rebuilds it from its stored
// snapshot. The boolean reports whether the session came from the store.
// An unknown or expired id yields CodeSessionNotFound.
func (m *Manager) Resume(ctx context.Context, id string) (*dashboard.Session, bool, error) {
	if sess := m.Get(id); sess != nil {
		return sess, false, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, false, errors.New(errors.CodeSessionNotFound).WithField("id")
	}

	data, err := m.store.Load(ctx, id)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, false, errors.New(errors.CodeSessionNotFound)
	}
	if err != nil {
		return nil, false, errors.New(errors.CodeStoreFailed).Wrap(err)
	}
	snap, err := dashboard.UnmarshalSnapshot(data)
	if err != nil {
		m.logger.Warn("discarding unreadable snapshot", "session_id", id, "error", err)
		_ = m.store.Delete(ctx, id)
		return nil, false, errors.New(errors.CodeSessionNotFound)
	}

	sess, err := m.open(ctx, id, snap.Options()...)
	if err != nil {
		return nil, false, err
	}
	m.recorder.RecordReconnect()
	m.logger.Info("session restored", "session_id", id)
	return sess, true, nil
}

// ResumeOrCreate resumes id when possible and otherwise creates a new
// session.
func (m *Manager) ResumeOrCreate(ctx context.Context, id string) (*dashboard.Session, error) {
	if id != "" {
		sess, _, err := m.Resume(ctx, id)
		if err == nil {
			return sess, nil
		}
		if !errors.HasCode(err, errors.CodeSessionNotFound) {
			return nil, err
		}
	}
	return m.Create(ctx)
}

func (m *Manager) open(ctx context.Context, id string, opts ...dashboard.SessionOption) (*dashboard.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[id]; ok {
		return sess, nil
	}
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		return nil, errors.New(errors.CodeSessionLimit)
	}

	opts = append(opts,
		dashboard.WithLogger(m.logger),
		dashboard.WithRecorder(m.recorder),
	)
	sess, err := dashboard.NewSession(id, m.table, m.renderer, opts...)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = sess
	m.recorder.SessionOpened()
	m.logger.Debug("session opened", "session_id", id, "active", len(m.sessions))

	if err := m.persist(ctx, sess); err != nil {
		m.logger.Warn("persist failed", "session_id", id, "error", err)
	}
	return sess, nil
}

// Get returns the live session id, or nil.
func (m *Manager) Get(id string) *dashboard.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Apply applies changes to sess and saves its new inputs. The inputs are
// saved whenever an output was redrawn, even if a render failed, since
// the change itself was accepted. A store failure is logged, not
// returned: the live state is already consistent.
func (m *Manager) Apply(ctx context.Context, sess *dashboard.Session, changes ...dashboard.Change) ([]dashboard.OutputID, error) {
	ids, err := sess.Apply(ctx, changes...)
	if len(ids) > 0 {
		if perr := m.persist(ctx, sess); perr != nil {
			m.logger.Warn("persist failed", "session_id", sess.ID, "error", perr)
		}
	}
	if err != nil && errors.Status(err) == http.StatusBadRequest {
		m.recorder.RecordInvalidInput(errors.FromError(err, errors.CodeMalformedValue).Field)
	}
	return ids, err
}

func (m *Manager) persist(ctx context.Context, sess *dashboard.Session) error {
	data, err := dashboard.MarshalSnapshot(sess.Snapshot())
	if err != nil {
		return err
	}
	return m.store.Save(ctx, sess.ID, data, time.Now().Add(m.config.TTL))
}

// Close saves and closes the session id. Its snapshot stays in the store.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	sess := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if sess != nil {
		m.closeSession(context.Background(), sess, false)
	}
}

func (m *Manager) closeSession(ctx context.Context, sess *dashboard.Session, evicted bool) {
	if err := m.persist(ctx, sess); err != nil {
		m.logger.Warn("persist failed", "session_id", sess.ID, "error", err)
	}
	sess.Close()
	m.recorder.SessionClosed(evicted)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) cleanupLoop() {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.cleanupExpired(now)
		case <-m.done:
			return
		}
	}
}

// cleanupExpired closes sessions idle since before now-IdleTimeout and
// sweeps expired snapshots. It returns the number of sessions closed.
func (m *Manager) cleanupExpired(now time.Time) int {
	m.mu.Lock()
	var expired []*dashboard.Session
	for id, sess := range m.sessions {
		if now.Sub(sess.LastActive()) > m.config.IdleTimeout {
			expired = append(expired, sess)
			delete(m.sessions, id)
		}
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	ctx := context.Background()
	for _, sess := range expired {
		m.closeSession(ctx, sess, true)
	}
	if len(expired) > 0 {
		m.logger.Info("cleaned up idle sessions",
			"count", len(expired),
			"remaining", remaining)
	}

	if n, err := m.store.Sweep(ctx, now); err != nil {
		m.logger.Warn("snapshot sweep failed", "error", err)
	} else if n > 0 {
		m.logger.Debug("swept expired snapshots", "count", n)
	}
	return len(expired)
}

// Shutdown stops the cleanup loop, then saves and closes every session.
// The store is left open; its owner closes it.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeOnce.Do(func() { close(m.done) })
	<-m.cleanupDone

	m.mu.Lock()
	sessions := make([]*dashboard.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*dashboard.Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(s *dashboard.Session) {
			defer wg.Done()
			m.closeSession(ctx, s, false)
		}(sess)
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		m.logger.Info("session manager shutdown", "closed_sessions", len(sessions))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
