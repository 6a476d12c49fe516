// Package epoch implements the compact logical timestamps used by the
// happens-before checker.
//
// An Epoch packs one task's identity and its logical clock into 64 bits:
//   - Top 16 bits: task TID (dense index over every reader and writer)
//   - Bottom 48 bits: clock value
//
// Clocks start at 1, so the zero Epoch always means "no access recorded".
package epoch

import (
	"strconv"

	"github.com/kolkov/rwgate/internal/race/vectorclock"
)

// Epoch is a 64-bit logical timestamp encoding both task TID and clock value.
// Layout: [TID:16][Clock:48]
//
// Example: 0x0002000000000007 represents TID=2, Clock=7.
type Epoch uint64

const (
	// TIDBits is the number of bits allocated for the task TID.
	TIDBits = 16

	// ClockBits is the number of bits allocated for the clock value.
	ClockBits = 48

	// ClockMask extracts the clock value (0x0000FFFFFFFFFFFF).
	ClockMask = (1 << ClockBits) - 1

	// MaxTID is the largest TID an epoch can carry.
	MaxTID = (1 << TIDBits) - 1
)

// NewEpoch creates an epoch from a TID and clock value.
//
// Clock values beyond 48 bits are truncated.
func NewEpoch(tid uint16, clock uint64) Epoch {
	return Epoch(uint64(tid)<<ClockBits | (clock & ClockMask))
}

// Decode extracts the TID and clock value from an epoch.
func (e Epoch) Decode() (tid uint16, clock uint64) {
	//nolint:gosec // G115: top 16 bits always fit in uint16.
	tid = uint16(uint64(e) >> ClockBits)
	clock = uint64(e) & ClockMask
	return
}

// TID returns the task TID stored in the epoch.
func (e Epoch) TID() uint16 {
	tid, _ := e.Decode()
	return tid
}

// HappensBefore reports whether this epoch is ordered before the
// vector clock: clock <= vc[tid].
//
// This is the O(1) check the checker runs on every access.
func (e Epoch) HappensBefore(vc *vectorclock.VectorClock) bool {
	tid, clock := e.Decode()
	return clock <= uint64(vc.Get(int(tid)))
}

// Same checks if two epochs are identical (same TID and clock).
func (e Epoch) Same(other Epoch) bool {
	return e == other
}

// IsZero reports whether no access is recorded in this epoch.
func (e Epoch) IsZero() bool {
	return e == 0
}

// String returns "clock@tid", e.g. "42@5".
func (e Epoch) String() string {
	tid, clock := e.Decode()
	return strconv.FormatUint(clock, 10) + "@" + strconv.FormatUint(uint64(tid), 10)
}
