package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/config"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/dashboard"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/registration"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/metrics"
)

func newTestManager(t *testing.T, idle time.Duration) *Manager {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := NewManager(config.SessionConfig{IdleTimeout: idle}, metrics.NewCollectorWith("rxintake_test", reg, reg), zap.NewNop())
	t.Cleanup(m.CloseAll)
	return m
}

func TestLoop_SerialisesWork(t *testing.T) {
	l := NewLoop(8)
	defer l.Close()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.Do(context.Background(), func() { counter++ }))
		}()
	}
	wg.Wait()

	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Equal(t, 100, counter)
}

func TestLoop_PostRunsInOrder(t *testing.T) {
	l := NewLoop(8)
	defer l.Close()

	var got []int
	for i := 1; i <= 3; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestLoop_ClosedRejectsWork(t *testing.T) {
	l := NewLoop(1)
	l.Close()
	l.Close()

	assert.False(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrClosed)
}

func TestLoop_DoHonoursContextWhileQueueFull(t *testing.T) {
	l := NewLoop(0)
	defer l.Close()

	release := make(chan struct{})
	require.True(t, l.Post(func() { <-release }))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Do(ctx, func() {}), context.DeadlineExceeded)
}

func TestSession_DoGivesState(t *testing.T) {
	m := newTestManager(t, 0)
	s := m.Create()

	err := s.Do(context.Background(), func(st State) {
		assert.NoError(t, st.Form.SetField(registration.FieldFullName, "Jane Doe"))
		st.Dashboard.SetActiveSection(dashboard.SectionReminders)
	})
	require.NoError(t, err)

	var name string
	var section dashboard.Section
	require.NoError(t, s.Do(context.Background(), func(st State) {
		name = st.Form.Profile().FullName
		section = st.Dashboard.ActiveSection()
	}))
	assert.Equal(t, "Jane Doe", name)
	assert.Equal(t, dashboard.SectionReminders, section)
}

func TestSession_GoAndPostBack(t *testing.T) {
	m := newTestManager(t, 0)
	s := m.Create()

	done := make(chan struct{})
	require.True(t, s.Go(func(ctx context.Context) {
		s.Post(func(st State) {
			st.Dashboard.SetVoiceInput("hello")
			close(done)
		})
	}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("posted completion never ran")
	}
}

func TestSession_CloseCancelsAsyncAndTimers(t *testing.T) {
	m := newTestManager(t, 0)
	s := m.Create()

	var fired atomic.Bool
	require.True(t, s.AfterFunc(20*time.Millisecond, func(State) { fired.Store(true) }))

	cancelled := make(chan struct{})
	require.True(t, s.Go(func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	}))

	require.NoError(t, m.Remove(s.ID))
	<-cancelled

	time.Sleep(50 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.True(t, s.Closed())
	assert.False(t, s.Go(func(context.Context) {}))
	assert.ErrorIs(t, s.Do(context.Background(), func(State) {}), ErrClosed)
}

func TestManager_GetAndRemove(t *testing.T) {
	m := newTestManager(t, 0)
	s := m.Create()

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.Remove(s.ID))
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Remove(s.ID), ErrNotFound)
	_, err = m.Get(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_SweepIdle(t *testing.T) {
	m := newTestManager(t, time.Minute)
	now := time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	stale := m.Create()
	fresh := m.Create()
	fresh.Touch(now.Add(90 * time.Second))

	assert.Equal(t, 1, m.Sweep(now.Add(2*time.Minute)))
	assert.True(t, stale.Closed())
	assert.False(t, fresh.Closed())
	assert.Equal(t, 1, m.Len())
}

func TestManager_RunClosesEverythingOnShutdown(t *testing.T) {
	m := newTestManager(t, time.Minute)
	m.sweepInterval = 10 * time.Millisecond
	s := m.Create()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- m.Run(ctx) }()

	cancel()
	require.NoError(t, <-errCh)
	assert.True(t, s.Closed())
	assert.Zero(t, m.Len())
}
