// Package session keeps one intake session per browser tab. A session owns a
// registration form and a dashboard and serialises every change to them on
// its own event loop.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/dashboard"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/registration"
)

const defaultLoopBuffer = 64

// State is what loop functions get access to.
type State struct {
	Form      *registration.Form
	Dashboard *dashboard.Coordinator
}

type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	loop   *Loop
	state  State
	ctx    context.Context
	cancel context.CancelFunc

	lastSeen atomic.Int64

	mu     sync.Mutex
	timers []*time.Timer
	closed bool
	async  sync.WaitGroup
}

func newSession(id uuid.UUID, now time.Time, loopBuffer int, dashOpts ...dashboard.Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:        id,
		CreatedAt: now,
		loop:      NewLoop(loopBuffer),
		state: State{
			Form:      registration.NewForm(),
			Dashboard: dashboard.NewCoordinator(dashOpts...),
		},
		ctx:    ctx,
		cancel: cancel,
	}
	s.lastSeen.Store(now.UnixNano())
	return s
}

// Do runs fn on the session loop and waits for it.
func (s *Session) Do(ctx context.Context, fn func(st State)) error {
	return s.loop.Do(ctx, func() { fn(s.state) })
}

// Post queues fn on the session loop. It reports false once the session is
// closed.
func (s *Session) Post(fn func(st State)) bool {
	return s.loop.Post(func() { fn(s.state) })
}

// Go runs work off the loop with a context that ends when the session closes.
// work hands its result back with Post.
func (s *Session) Go(work func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.async.Add(1)
	go func() {
		defer s.async.Done()
		work(s.ctx)
	}()
	return true
}

// AfterFunc posts fn to the loop once d has elapsed. Timers are stopped when
// the session closes.
func (s *Session) AfterFunc(d time.Duration, fn func(st State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	t := time.AfterFunc(d, func() { s.Post(fn) })
	s.timers = append(s.timers, t)
	return true
}

// Context ends when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

func (s *Session) Touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close cancels async work, stops timers and shuts the loop down. Results
// that arrive afterwards are dropped. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = nil
	s.mu.Unlock()

	s.cancel()
	s.loop.Close()
	s.async.Wait()

	// The loop has stopped, nothing else touches state now.
	s.state.Dashboard.Close()
}
