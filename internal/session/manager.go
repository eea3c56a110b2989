package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/config"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/dashboard"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/metrics"
)

var ErrNotFound = errors.New("session not found")

type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	idleTimeout   time.Duration
	sweepInterval time.Duration
	dashOpts      []dashboard.Option

	metrics *metrics.Collector
	log     *zap.Logger
	now     func() time.Time
}

func NewManager(cfg config.SessionConfig, m *metrics.Collector, log *zap.Logger, dashOpts ...dashboard.Option) *Manager {
	return &Manager{
		sessions:      make(map[uuid.UUID]*Session),
		idleTimeout:   cfg.IdleTimeout,
		sweepInterval: cfg.SweepInterval,
		dashOpts:      dashOpts,
		metrics:       m,
		log:           log.Named("session"),
		now:           time.Now,
	}
}

func (m *Manager) Create() *Session {
	s := newSession(uuid.New(), m.now(), defaultLoopBuffer, m.dashOpts...)

	m.mu.Lock()
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.setActive(n)
	m.log.Info("session started", zap.String("session_id", s.ID.String()))
	return s
}

// Get returns the session and marks it as seen.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	s.Touch(m.now())
	return s, nil
}

// Remove tears the session down. In-flight reads and uploads for it are
// discarded.
func (m *Manager) Remove(id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	s.Close()
	m.setActive(n)
	m.log.Info("session closed", zap.String("session_id", id.String()))
	return nil
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the idle timeout and returns
// how many it closed.
func (m *Manager) Sweep(now time.Time) int {
	if m.idleTimeout <= 0 {
		return 0
	}

	var expired []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > m.idleTimeout {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
		m.log.Info("session expired",
			zap.String("session_id", s.ID.String()),
			zap.Time("last_seen", s.LastSeen()),
		)
	}
	if m.metrics != nil && len(expired) > 0 {
		m.metrics.SessionsExpired.Add(float64(len(expired)))
	}
	m.setActive(n)
	return len(expired)
}

// Run sweeps on every interval until ctx ends, then closes every session.
func (m *Manager) Run(ctx context.Context) error {
	if m.sweepInterval <= 0 {
		<-ctx.Done()
		m.CloseAll()
		return nil
	}

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.CloseAll()
			return nil
		case <-ticker.C:
			if n := m.Sweep(m.now()); n > 0 {
				m.log.Debug("idle sessions swept", zap.Int("count", n))
			}
		}
	}
}

func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
	m.setActive(0)
}

func (m *Manager) setActive(n int) {
	if m.metrics != nil {
		m.metrics.SessionsActive.Set(float64(n))
	}
}
