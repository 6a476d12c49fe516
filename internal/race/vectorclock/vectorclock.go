// Package vectorclock implements vector clocks for tracking happens-before
// relations between reader and writer tasks.
//
// A run has a fixed task population (readers + writers), so clocks are sized
// once to that population instead of a fixed maximum thread count.
//
// Key operations:
//   - Join: point-wise maximum, used on permit acquire
//   - LessOrEqual: partial order check, used for conflict detection
package vectorclock

import (
	"strconv"
	"strings"
)

// VectorClock represents logical time across every task of a run.
//
// Element vc[tid] stores the clock value for task tid.
// Example: {0:5, 2:3} means task 0 at 5, task 2 at 3, the others at 0.
type VectorClock []uint32

// New creates a zero-initialized vector clock for width tasks.
func New(width int) *VectorClock {
	vc := make(VectorClock, width)
	return &vc
}

// Len returns the number of tasks the clock covers.
func (vc *VectorClock) Len() int {
	return len(*vc)
}

// Clone creates a deep copy of the vector clock.
func (vc *VectorClock) Clone() *VectorClock {
	clone := make(VectorClock, len(*vc))
	copy(clone, *vc)
	return &clone
}

// CopyFrom overwrites vc with other, reusing vc's storage when it is wide enough.
func (vc *VectorClock) CopyFrom(other *VectorClock) {
	if len(*vc) < len(*other) {
		*vc = make(VectorClock, len(*other))
	}
	n := copy(*vc, *other)
	for i := n; i < len(*vc); i++ {
		(*vc)[i] = 0
	}
}

// Join performs point-wise maximum: vc = vc ⊔ other.
//
// Used when a task acquires a permit: Ct := Ct ⊔ Lp.
// A narrower other is treated as zero beyond its width; a wider other
// grows vc.
func (vc *VectorClock) Join(other *VectorClock) {
	if len(*other) > len(*vc) {
		grown := make(VectorClock, len(*other))
		copy(grown, *vc)
		*vc = grown
	}
	for i, c := range *other {
		if c > (*vc)[i] {
			(*vc)[i] = c
		}
	}
}

// LessOrEqual checks partial order: vc ⊑ other.
//
// Returns true if vc[i] <= other[i] for all tasks i.
func (vc *VectorClock) LessOrEqual(other *VectorClock) bool {
	for i, c := range *vc {
		if c > other.Get(i) {
			return false
		}
	}
	return true
}

// HappensBefore is an alias for LessOrEqual.
func (vc *VectorClock) HappensBefore(other *VectorClock) bool {
	return vc.LessOrEqual(other)
}

// Increment advances the clock for task tid.
func (vc *VectorClock) Increment(tid int) {
	(*vc)[tid]++
}

// Get returns the clock value for task tid, or 0 outside the clock's width.
func (vc *VectorClock) Get(tid int) uint32 {
	if tid < 0 || tid >= len(*vc) {
		return 0
	}
	return (*vc)[tid]
}

// Set sets the clock value for task tid.
func (vc *VectorClock) Set(tid int, clock uint32) {
	(*vc)[tid] = clock
}

// String returns "{tid:clock, ...}" listing only non-zero clocks.
func (vc *VectorClock) String() string {
	var parts []string
	for i, c := range *vc {
		if c != 0 {
			parts = append(parts, strconv.Itoa(i)+":"+strconv.FormatUint(uint64(c), 10))
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
