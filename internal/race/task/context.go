// Package task carries the identity and logical time of one reader or
// writer task.
package task

import (
	"strconv"

	"github.com/kolkov/rwgate/internal/race/epoch"
	"github.com/kolkov/rwgate/internal/race/vectorclock"
)

// Role distinguishes reader tasks from writer tasks.
type Role uint8

const (
	// Reader tasks observe the shared buffer.
	Reader Role = iota
	// Writer tasks shrink the shared buffer.
	Writer
)

// String returns "reader" or "writer".
func (r Role) String() string {
	switch r {
	case Reader:
		return "reader"
	case Writer:
		return "writer"
	default:
		return "unknown"
	}
}

// Context represents one task of a run.
//
// Layout:
//   - Role, ID: identity used for logging; ID is in [0, count) per role
//   - TID: dense index over all tasks of the run, used by clocks
//   - C: the task's vector clock
//   - Epoch: cached value of C[TID]
//
// Invariant: for a tracked Context, Epoch == epoch.NewEpoch(TID, C[TID]).
// IncrementClock keeps the two in step. Untracked contexts (C == nil) must
// not be passed to the race checker. A Context is owned by its task; the race checker mutates C
// only from the owning task's calls.
type Context struct {
	Role Role
	ID   int
	TID  int

	C     *vectorclock.VectorClock
	Epoch epoch.Epoch
}

// New creates a Context for task tid of a run with width tasks.
//
// The own clock starts at 1 so that a recorded access never has the zero
// epoch. A width of 0 creates an untracked Context with no clock, for runs
// without the race checker; its TID is then not range checked.
//
// Example:
//
//	tc := task.New(task.Writer, 0, 5, 6)
//	// tc.C = {5:1}, tc.Epoch = 1@5
func New(role Role, id, tid, width int) *Context {
	tc := &Context{
		Role: role,
		ID:   id,
		TID:  tid,
	}
	if width <= 0 {
		return tc
	}
	if tid < 0 || tid > epoch.MaxTID {
		panic("task: tid out of range: " + strconv.Itoa(tid))
	}
	if width <= tid {
		width = tid + 1
	}
	tc.C = vectorclock.New(width)
	tc.C.Set(tid, 1)
	tc.syncEpoch()
	return tc
}

// Tracked reports whether the Context carries a clock.
func (tc *Context) Tracked() bool {
	return tc.C != nil
}

// IncrementClock advances the task's own logical clock.
func (tc *Context) IncrementClock() {
	tc.C.Increment(tc.TID)
	tc.syncEpoch()
}

// Join merges another clock into the task's clock, keeping the epoch cache
// in step.
func (tc *Context) Join(other *vectorclock.VectorClock) {
	tc.C.Join(other)
	tc.syncEpoch()
}

// GetEpoch returns the cached epoch for this task.
func (tc *Context) GetEpoch() epoch.Epoch {
	return tc.Epoch
}

// String returns the log name, e.g. "reader 3".
func (tc *Context) String() string {
	return tc.Role.String() + " " + strconv.Itoa(tc.ID)
}

func (tc *Context) syncEpoch() {
	//nolint:gosec // G115: tid range is checked in New.
	tc.Epoch = epoch.NewEpoch(uint16(tc.TID), uint64(tc.C.Get(tc.TID)))
}
