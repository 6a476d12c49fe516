// Package permit implements the binary permits the readers-writers gate is
// built from.
//
// A Permit is a binary semaphore: Acquire blocks until the permit is free
// and marks it held, Release marks it free and wakes at most one waiter.
// Wake-up order is whatever the underlying semaphore gives; no FIFO
// guarantee is made by this package. There is no timeout and no
// cancellation.
//
// A permit may be released by a task other than the one that acquired it:
// the last reader leaving releases the resource permit the first reader
// took. Misuse panics with a *MisuseError:
//   - Release of a permit that is not held
//   - Acquire by the task that already holds the permit
//   - any use after Dispose
package permit

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/kolkov/rwgate/internal/race/task"
)

// Misuse conditions carried by MisuseError.
var (
	ErrNotHeld      = errors.New("release of a permit that is not held")
	ErrSelfDeadlock = errors.New("acquire of a permit already held by the same task")
	ErrDisposed     = errors.New("use of a disposed permit")
	ErrDisposeHeld  = errors.New("dispose of a held permit")
)

// MisuseError describes a permit programming error.
type MisuseError struct {
	Permit string // permit name
	Task   string // offending task, empty for supervisor calls
	Err    error  // one of the Err* sentinels
}

// Error implements the error interface.
//
// Format: "permit <name>: <task>: <reason>"
func (e *MisuseError) Error() string {
	if e.Task == "" {
		return "permit " + e.Permit + ": " + e.Err.Error()
	}
	return "permit " + e.Permit + ": " + e.Task + ": " + e.Err.Error()
}

// Unwrap returns the sentinel so callers can use errors.Is.
func (e *MisuseError) Unwrap() error {
	return e.Err
}

// Tracker observes permit operations. The happens-before checker implements
// it.
//
// OnAcquire is called after the permit is taken, OnRelease before it is
// given back, so calls arrive in permit order.
type Tracker interface {
	OnAcquire(permit string, tc *task.Context)
	OnRelease(permit string, tc *task.Context)
}

// Option configures a Permit.
type Option func(*Permit)

// WithTracker wires a Tracker into the permit.
func WithTracker(t Tracker) Option {
	return func(p *Permit) {
		p.tracker = t
	}
}

const noHolder = -1

// Permit is a named binary permit.
type Permit struct {
	name    string
	sem     *semaphore.Weighted
	tracker Tracker

	// mu guards held, holder and disposed. It is never held while blocking
	// on sem.
	mu       sync.Mutex
	held     bool
	holder   int
	disposed bool

	acquisitions atomic.Uint64
}

// New creates an available permit.
func New(name string, opts ...Option) *Permit {
	p := &Permit{
		name:   name,
		sem:    semaphore.NewWeighted(1),
		holder: noHolder,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the permit name.
func (p *Permit) Name() string {
	return p.name
}

// Acquire blocks until the permit is available, then marks it held by tc.
//
// Panics with ErrSelfDeadlock if tc already holds the permit, and with
// ErrDisposed after Dispose.
func (p *Permit) Acquire(tc *task.Context) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		p.misuse(tc, ErrDisposed)
	}
	if p.held && p.holder == tc.TID {
		p.mu.Unlock()
		p.misuse(tc, ErrSelfDeadlock)
	}
	p.mu.Unlock()

	// Background never cancels, so Acquire cannot fail.
	_ = p.sem.Acquire(context.Background(), 1)
	p.take(tc)
}

// Release marks the permit available, waking at most one waiter.
//
// tc need not be the task that acquired the permit. Panics with ErrNotHeld
// if the permit is free, and with ErrDisposed after Dispose.
func (p *Permit) Release(tc *task.Context) {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		p.misuse(tc, ErrDisposed)
	}
	if !p.held {
		p.mu.Unlock()
		p.misuse(tc, ErrNotHeld)
	}
	p.held = false
	p.holder = noHolder
	p.mu.Unlock()

	if p.tracker != nil {
		p.tracker.OnRelease(p.name, tc)
	}
	p.sem.Release(1)
}

// Held reports whether the permit is currently held.
func (p *Permit) Held() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held
}

// Acquisitions returns how many times the permit was taken.
func (p *Permit) Acquisitions() uint64 {
	return p.acquisitions.Load()
}

// Dispose retires the permit. Every later call panics with ErrDisposed.
//
// Disposing a held permit fails with ErrDisposeHeld and leaves the permit
// usable; disposing twice is a no-op.
func (p *Permit) Dispose() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.disposed {
		return nil
	}
	if p.held {
		return &MisuseError{Permit: p.name, Err: ErrDisposeHeld}
	}
	p.disposed = true
	return nil
}

func (p *Permit) take(tc *task.Context) {
	p.mu.Lock()
	p.held = true
	p.holder = tc.TID
	p.mu.Unlock()

	p.acquisitions.Inc()
	if p.tracker != nil {
		p.tracker.OnAcquire(p.name, tc)
	}
}

func (p *Permit) misuse(tc *task.Context, err error) {
	e := &MisuseError{Permit: p.name, Err: err}
	if tc != nil {
		e.Task = tc.String()
	}
	panic(e)
}
