// Package session implements the session manager: creation,
// ownership-checked lookup, idle reaping, and per-session command
// serialization. A session is decoupled from any one connection, owned
// by a client identifier instead, and backed by a pooled pool.Context
// rather than a connection-scoped browser launch.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/browsergate/gateway/internal/engine"
	"github.com/browsergate/gateway/internal/gatewayerr"
	"github.com/browsergate/gateway/internal/pool"
)

// Session is one client's isolated browser context and page, plus the
// bookkeeping the manager and reaper need.
type Session struct {
	ID         string
	ClientID   string
	CreatedAt  time.Time
	PoolCtx    *pool.Context
	Page       *engine.Page

	mu           sync.Mutex
	lastActivity time.Time
	commandCount int64
	unhealthy    bool

	queue *worker
}

// Touch updates last-activity to now.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the last recorded activity time.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// IncrementCommandCount bumps the per-session command counter and returns
// the new value.
func (s *Session) IncrementCommandCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commandCount++
	return s.commandCount
}

// MarkUnhealthy flags the session, set when a deadline expiry abandons an
// in-flight primitive that cannot be cancelled cleanly. The flag only
// decides teardown: an unhealthy session's pooled context is discarded
// instead of returned to the pool. Later commands on the session run
// against the same page; no page reset is performed.
func (s *Session) MarkUnhealthy() {
	s.mu.Lock()
	s.unhealthy = true
	s.mu.Unlock()
}

// Unhealthy reports whether the session was flagged by MarkUnhealthy.
func (s *Session) Unhealthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unhealthy
}

// Run enqueues fn on this session's single-worker queue and blocks for its
// completion, serializing concurrent commands against the same session in
// arrival order.
func (s *Session) Run(ctx context.Context, fn func() error) error {
	return s.queue.run(ctx, fn)
}

// CreateOptions configures a new session's page.
type CreateOptions struct {
	ViewportWidth  int
	ViewportHeight int
}

// Manager owns the session table, a pool to acquire/release contexts
// against, and the background reaper.
type Manager struct {
	p           *pool.Pool
	idleTimeout time.Duration
	log         zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	stop    chan struct{}
	stopped chan struct{}
}

// New constructs a Manager and starts its background reaper.
func New(p *pool.Pool, idleTimeout time.Duration, reapEvery time.Duration, log zerolog.Logger) *Manager {
	m := &Manager{
		p:           p,
		idleTimeout: idleTimeout,
		log:         log.With().Str("component", "session_manager").Logger(),
		sessions:    make(map[string]*Session),
		stop:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	if reapEvery <= 0 {
		reapEvery = 10 * time.Second
	}
	go m.reapLoop(reapEvery)
	return m
}

// Create acquires a pooled context, takes the page that context already
// holds, and stores a new Session owned by clientID.
func (m *Manager) Create(ctx context.Context, clientID string, opts CreateOptions) (*Session, error) {
	pc, err := m.p.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:           uuid.NewString(),
		ClientID:     clientID,
		CreatedAt:    time.Now(),
		lastActivity: time.Now(),
		PoolCtx:      pc,
		Page:         pc.Page,
		queue:        newWorker(),
	}

	if opts.ViewportWidth > 0 && opts.ViewportHeight > 0 && s.Page != nil {
		if err := s.Page.SetViewport(opts.ViewportWidth, opts.ViewportHeight, 5*time.Second); err != nil {
			m.log.Warn().Err(err).Str("session_id", s.ID).Msg("failed to install default viewport")
		}
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.log.Debug().Str("session_id", s.ID).Str("client_id", clientID).Msg("session created")
	return s, nil
}

// Resolve looks up sessionID, failing with session-not-found if absent or
// session-not-owned if it belongs to a different client.
func (m *Manager) Resolve(sessionID, clientID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, gatewayerr.NewSessionNotFound(sessionID)
	}
	if s.ClientID != clientID {
		return nil, gatewayerr.NewSessionNotOwned(sessionID)
	}
	return s, nil
}

// Close tears down sessionID: stops its worker, releases or discards its
// pooled context, and removes the record. The page is not closed; it stays
// with the pooled context, which a later session may acquire.
func (m *Manager) Close(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !ok {
		return gatewayerr.NewSessionNotFound(sessionID)
	}
	return m.teardown(s)
}

func (m *Manager) teardown(s *Session) error {
	s.queue.stop()

	if s.Unhealthy() {
		m.p.Discard(s.PoolCtx)
		return nil
	}
	m.p.Release(s.PoolCtx)
	return nil
}

// CloseAllForClient tears down every session owned by clientID, used on
// connection close after the disconnect grace period.
func (m *Manager) CloseAllForClient(clientID string) {
	m.mu.Lock()
	var victims []*Session
	for id, s := range m.sessions {
		if s.ClientID == clientID {
			victims = append(victims, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range victims {
		m.teardown(s)
	}
}

// CloseAll tears down every session, for process shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	victims := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		victims = append(victims, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range victims {
		m.teardown(s)
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) reapLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	defer close(m.stopped)

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.reapOnce()
		}
	}
}

func (m *Manager) reapOnce() {
	cutoff := time.Now().Add(-m.idleTimeout)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.log.Info().Str("session_id", s.ID).Msg("reaping idle session")
		m.teardown(s)
	}
}

// Shutdown stops the reaper and closes every session.
func (m *Manager) Shutdown() {
	close(m.stop)
	<-m.stopped
	m.CloseAll()
}
