package session

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("session closed")

// Loop runs functions one at a time on a single goroutine. Everything that
// touches a session's form or dashboard goes through it, so domain state needs
// no locking. Functions running on the loop must not call Do or Close on it.
type Loop struct {
	events  chan func()
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func NewLoop(buffer int) *Loop {
	l := &Loop{
		events:  make(chan func(), buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		// done wins over pending events
		select {
		case <-l.done:
			return
		default:
		}

		select {
		case fn := <-l.events:
			fn()
		case <-l.done:
			return
		}
	}
}

// Do runs fn on the loop and waits for it. ctx only bounds the wait for a
// place in the queue; once queued, fn either runs to completion or is
// dropped by Close, which Do reports as ErrClosed.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case <-l.done:
		return ErrClosed
	default:
	}

	select {
	case l.events <- wrapped:
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-l.stopped:
		select {
		case <-finished:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Post queues fn without waiting. Completions of async work use it; it
// reports false when the loop is closed and fn was dropped.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.events <- fn:
		return true
	case <-l.done:
		return false
	}
}

// Close stops the loop once the function in progress returns. Queued
// functions are dropped.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.done) })
	<-l.stopped
}

func (l *Loop) Done() <-chan struct{} { return l.done }
