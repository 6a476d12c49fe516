// Package resource holds the shared byte buffer readers observe and writers
// shrink.
package resource

import (
	"go.uber.org/atomic"

	"github.com/kolkov/rwgate/internal/race/task"
)

// Cell names reported to the AccessTracker.
const (
	CellContent = "content"
	CellLength  = "length"
)

// AccessTracker observes buffer accesses. The happens-before checker
// implements it.
type AccessTracker interface {
	OnRead(cell string, tc *task.Context)
	OnWrite(cell string, tc *task.Context)
}

// Buffer is the shared resource: a fixed byte sequence and its current
// length.
//
// The length only decreases. Shrink must be called with the resource permit
// held; Len and Snapshot with the read side of the gate entered or the
// resource permit held. The length is stored atomically so that
// UnsynchronizedLen stays within the Go memory model; the protocol ordering
// is still what the tracker checks.
type Buffer struct {
	data    []byte
	length  atomic.Int64
	tracker AccessTracker
}

// New creates a buffer holding content. tracker may be nil.
func New(content string, tracker AccessTracker) *Buffer {
	b := &Buffer{
		data:    []byte(content),
		tracker: tracker,
	}
	b.length.Store(int64(len(b.data)))
	return b
}

// Cap returns the initial length.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Len returns the current length.
func (b *Buffer) Len(tc *task.Context) int {
	b.onRead(CellLength, tc)
	return int(b.length.Load())
}

// UnsynchronizedLen returns the current length for a check made outside
// every permit. It is reported to the tracker like any other read.
func (b *Buffer) UnsynchronizedLen(tc *task.Context) int {
	return b.Len(tc)
}

// Snapshot returns a copy of the current content.
func (b *Buffer) Snapshot(tc *task.Context) string {
	b.onRead(CellLength, tc)
	b.onRead(CellContent, tc)
	return string(b.data[:b.length.Load()])
}

// Shrink removes the last byte.
//
// Returns the removed byte, the remaining length, and false when the buffer
// was already empty (nothing is mutated then).
func (b *Buffer) Shrink(tc *task.Context) (removed byte, remaining int, ok bool) {
	n := b.length.Load()
	b.onRead(CellLength, tc)
	if n == 0 {
		return 0, 0, false
	}
	b.onWrite(CellContent, tc)
	b.onWrite(CellLength, tc)
	removed = b.data[n-1]
	b.data[n-1] = 0
	b.length.Store(n - 1)
	return removed, int(n - 1), true
}

func (b *Buffer) onRead(cell string, tc *task.Context) {
	if b.tracker != nil {
		b.tracker.OnRead(cell, tc)
	}
}

func (b *Buffer) onWrite(cell string, tc *task.Context) {
	if b.tracker != nil {
		b.tracker.OnWrite(cell, tc)
	}
}
