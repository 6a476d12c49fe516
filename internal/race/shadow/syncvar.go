package shadow

import (
	"github.com/kolkov/rwgate/internal/race/vectorclock"
)

// SyncVar tracks the release clock of one permit.
//
// releaseClock is nil until the first Release. Permits are released by a
// task other than the acquirer (the last reader releases the resource
// permit the first reader took), so the clock is always copied, never
// aliased.
type SyncVar struct {
	releaseClock *vectorclock.VectorClock
	releases     uint64
}

// GetReleaseClock returns the clock captured at the last Release, or nil.
func (sv *SyncVar) GetReleaseClock() *vectorclock.VectorClock {
	return sv.releaseClock
}

// SetReleaseClock captures the releasing task's clock.
func (sv *SyncVar) SetReleaseClock(clock *vectorclock.VectorClock) {
	if sv.releaseClock == nil {
		sv.releaseClock = clock.Clone()
	} else {
		sv.releaseClock.CopyFrom(clock)
	}
	sv.releases++
}

// Releases returns how many releases were recorded.
func (sv *SyncVar) Releases() uint64 {
	return sv.releases
}
