// Package gate implements the readers-preferring SharedAccessGate.
//
// The gate is built from two binary permits:
//   - the resource permit: held by one writer, or on behalf of every reader
//     currently counted in
//   - the counter permit: serializes updates of the reader count
//
// The first reader in takes the resource permit, the last reader out gives
// it back. Arriving readers are never blocked by a waiting writer while
// another reader is counted in, so a steady stream of readers can starve
// writers.
//
// Legal configurations:
//
//	readers >= 0 counted in, no writer
//	exactly one writer,     no reader counted in
package gate

import (
	"errors"

	"go.uber.org/atomic"

	"github.com/kolkov/rwgate/internal/race/task"
	"github.com/kolkov/rwgate/internal/rw/permit"
)

// Permit names, as seen by a permit.Tracker.
const (
	ResourcePermit = "resource"
	CounterPermit  = "counter"
)

// ErrNoActiveReader is the misuse reason for ExitRead without EnterRead.
var ErrNoActiveReader = errors.New("exit of the read side with no reader counted in")

// Tracer observes gate transitions. Calls are made inside the critical
// section they describe:
//   - ReadEntered, ReadExited under the counter permit, after the count changed
//   - WriteEntered after the resource permit is taken
//   - WriteExited before it is released
type Tracer interface {
	ReadEntered(tc *task.Context, readers int)
	ReadExited(tc *task.Context, readers int)
	WriteEntered(tc *task.Context)
	WriteExited(tc *task.Context)
}

type options struct {
	tracker permit.Tracker
	tracers []Tracer
}

// Option configures a Gate.
type Option func(*options)

// WithTracker forwards permit operations to t (the happens-before checker).
func WithTracker(t permit.Tracker) Option {
	return func(o *options) {
		o.tracker = t
	}
}

// WithTracer reports gate transitions to t. May be given more than once;
// tracers are called in the order they were added.
func WithTracer(t Tracer) Option {
	return func(o *options) {
		o.tracers = append(o.tracers, t)
	}
}

// tracers fans one transition out to every wired Tracer.
type tracers []Tracer

func (ts tracers) ReadEntered(tc *task.Context, readers int) {
	for _, t := range ts {
		t.ReadEntered(tc, readers)
	}
}

func (ts tracers) ReadExited(tc *task.Context, readers int) {
	for _, t := range ts {
		t.ReadExited(tc, readers)
	}
}

func (ts tracers) WriteEntered(tc *task.Context) {
	for _, t := range ts {
		t.WriteEntered(tc)
	}
}

func (ts tracers) WriteExited(tc *task.Context) {
	for _, t := range ts {
		t.WriteExited(tc)
	}
}

// Gate is the SharedAccessGate.
type Gate struct {
	resource *permit.Permit
	counter  *permit.Permit
	tracer   tracers

	// readers is the access counter; guarded by the counter permit.
	readers int
	// active mirrors readers for lock-free observation.
	active atomic.Int32
}

// New creates a gate with both permits available and the counter at 0.
func New(opts ...Option) *Gate {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var popts []permit.Option
	if o.tracker != nil {
		popts = append(popts, permit.WithTracker(o.tracker))
	}
	return &Gate{
		resource: permit.New(ResourcePermit, popts...),
		counter:  permit.New(CounterPermit, popts...),
		tracer:   o.tracers,
	}
}

// EnterRead counts tc in as a reader and returns the new count.
//
// The first reader in blocks writers by taking the resource permit. If the
// tracer panics, tc is counted out again before the panic propagates, so
// no permit stays held.
func (g *Gate) EnterRead(tc *task.Context) int {
	g.counter.Acquire(tc)
	defer g.counter.Release(tc)

	if g.readers == 0 {
		g.resource.Acquire(tc)
	}
	g.readers++
	n := g.readers
	g.active.Store(int32(n)) //nolint:gosec // G115: reader count is bounded by task count.

	entered := false
	defer func() {
		if !entered {
			g.countOut(tc)
		}
	}()
	g.tracer.ReadEntered(tc, n)
	entered = true
	return n
}

// ExitRead counts tc out and returns the new count.
//
// The last reader out re-enables writers by releasing the resource permit.
// Panics with ErrNoActiveReader if no reader is counted in.
func (g *Gate) ExitRead(tc *task.Context) int {
	g.counter.Acquire(tc)
	defer g.counter.Release(tc)

	if g.readers == 0 {
		panic(&permit.MisuseError{Permit: CounterPermit, Task: tc.String(), Err: ErrNoActiveReader})
	}
	g.readers--
	n := g.readers
	g.active.Store(int32(n)) //nolint:gosec // G115: reader count is bounded by task count.
	if n == 0 {
		// Runs before the counter release, after the tracer.
		defer g.resource.Release(tc)
	}
	g.tracer.ReadExited(tc, n)
	return n
}

// countOut undoes a count-in; caller holds the counter permit.
func (g *Gate) countOut(tc *task.Context) {
	g.readers--
	g.active.Store(int32(g.readers)) //nolint:gosec // G115: reader count is bounded by task count.
	if g.readers == 0 {
		g.resource.Release(tc)
	}
}

// EnterWrite blocks until no reader is counted in and no writer is inside,
// then gives tc exclusive access. If the tracer panics the resource permit
// is given back.
func (g *Gate) EnterWrite(tc *task.Context) {
	g.resource.Acquire(tc)
	entered := false
	defer func() {
		if !entered {
			g.resource.Release(tc)
		}
	}()
	g.tracer.WriteEntered(tc)
	entered = true
}

// ExitWrite ends tc's exclusive section.
func (g *Gate) ExitWrite(tc *task.Context) {
	defer g.resource.Release(tc)
	g.tracer.WriteExited(tc)
}

// Read runs fn with tc counted in as a reader.
func (g *Gate) Read(tc *task.Context, fn func()) {
	g.EnterRead(tc)
	defer g.ExitRead(tc)
	fn()
}

// Readers returns the number of readers currently counted in.
func (g *Gate) Readers() int {
	return int(g.active.Load())
}

// Acquisitions returns how often the resource and counter permits were taken.
func (g *Gate) Acquisitions() (resource, counter uint64) {
	return g.resource.Acquisitions(), g.counter.Acquisitions()
}

// Dispose retires both permits. It fails if either is still held.
func (g *Gate) Dispose() error {
	return errors.Join(g.resource.Dispose(), g.counter.Dispose())
}
