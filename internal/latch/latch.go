// Package latch implements the single-waiter completion primitive spec
// §4.10 describes: exactly one tool call per component may wait for a
// given indexing epoch, so that cancellation semantics stay simple
// (spec §9's "Latch without subscription lists" design note — a
// condvar/flag pair is sufficient, no general pub-sub needed).
package latch

import (
	"context"
	"errors"
	"sync"
)

// ErrMultipleWaiters is returned to every concurrent caller of Wait past
// the first.
var ErrMultipleWaiters = errors.New("latch: another wait is already in progress")

// Result is the outcome of a Wait call.
type Result int

const (
	// ResultOK means trigger_success fired before the wait ended.
	ResultOK Result = iota
	// ResultTimeout means ctx was done before any trigger fired.
	ResultTimeout
	// ResultFailed means trigger_failure fired; see Err for the reason.
	ResultFailed
	// ResultMultipleWaiters means a wait was already in progress when
	// this call arrived; see spec §4.10/§8's distinct MultipleWaiters
	// outcome. ErrMultipleWaiters is also returned so callers that only
	// check the error still see it.
	ResultMultipleWaiters
)

// Latch is a one-shot, single-waiter completion primitive with timeout.
type Latch struct {
	mu        sync.Mutex
	completed bool
	err       error
	hasWaiter bool
	signal    chan struct{}
}

// New returns a latch in its initial (untriggered, no waiter) state.
func New() *Latch {
	return &Latch{signal: make(chan struct{})}
}

// TriggerSuccess marks the latch complete. Idempotent: only the first
// trigger_success/trigger_failure call has any observable effect.
func (l *Latch) TriggerSuccess() {
	l.trigger(nil)
}

// TriggerFailure marks the latch complete with an error. Idempotent like
// TriggerSuccess.
func (l *Latch) TriggerFailure(err error) {
	if err == nil {
		err = errors.New("latch: indexing failed")
	}
	l.trigger(err)
}

func (l *Latch) trigger(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.completed {
		return
	}
	l.completed = true
	l.err = err
	close(l.signal)
}

// Wait blocks until triggered or ctx is done. A call made while another
// Wait is already in progress returns ErrMultipleWaiters at once, and the
// earlier waiter keeps waiting. has_waiter is always cleared on every
// exit path, per spec §5's cancellation guarantee.
func (l *Latch) Wait(ctx context.Context) (Result, error) {
	l.mu.Lock()
	if l.completed {
		err := l.err
		l.mu.Unlock()
		if err != nil {
			return ResultFailed, err
		}
		return ResultOK, nil
	}
	if l.hasWaiter {
		l.mu.Unlock()
		return ResultMultipleWaiters, ErrMultipleWaiters
	}
	l.hasWaiter = true
	signal := l.signal
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.hasWaiter = false
		l.mu.Unlock()
	}()

	select {
	case <-signal:
		l.mu.Lock()
		err := l.err
		l.mu.Unlock()
		if err != nil {
			return ResultFailed, err
		}
		return ResultOK, nil
	case <-ctx.Done():
		return ResultTimeout, ctx.Err()
	}
}

// Reset returns the latch to its initial state. Used only in tests, per
// spec §4.10.
func (l *Latch) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completed = false
	l.err = nil
	l.hasWaiter = false
	l.signal = make(chan struct{})
}
