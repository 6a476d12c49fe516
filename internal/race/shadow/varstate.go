package shadow

import (
	"github.com/kolkov/rwgate/internal/race/epoch"
	"github.com/kolkov/rwgate/internal/race/vectorclock"
)

// VarState is the access history of one buffer cell.
//
// Representation:
//   - W: epoch of the last write (zero if never written)
//   - readEpoch: last read when reads are totally ordered (fast path)
//   - readClock: joined clock of overlapping reads (promoted)
//
// Exactly one of readEpoch/readClock is meaningful at a time; a write
// demotes back to the epoch form.
type VarState struct {
	W epoch.Epoch

	readEpoch epoch.Epoch
	readClock *vectorclock.VectorClock
}

// NewVarState creates an empty cell history.
func NewVarState() *VarState {
	return &VarState{}
}

// IsPromoted reports whether overlapping reads forced a read vector clock.
func (vs *VarState) IsPromoted() bool {
	return vs.readClock != nil
}

// GetReadEpoch returns the single-reader epoch (zero when promoted or unread).
func (vs *VarState) GetReadEpoch() epoch.Epoch {
	return vs.readEpoch
}

// SetReadEpoch records a read on the fast path. Ignored once promoted.
func (vs *VarState) SetReadEpoch(e epoch.Epoch) {
	if vs.readClock == nil {
		vs.readEpoch = e
	}
}

// GetReadClock returns the promoted read clock, or nil.
func (vs *VarState) GetReadClock() *vectorclock.VectorClock {
	return vs.readClock
}

// PromoteToReadClock switches to the vector form, folding in the current
// read epoch and the new reader's clock.
func (vs *VarState) PromoteToReadClock(width int, reader *vectorclock.VectorClock) {
	rc := vectorclock.New(width)
	if !vs.readEpoch.IsZero() {
		tid, clock := vs.readEpoch.Decode()
		//nolint:gosec // G115: clocks stay far below 2^32 in a run.
		rc.Set(int(tid), uint32(clock))
	}
	rc.Join(reader)
	vs.readClock = rc
	vs.readEpoch = 0
}

// JoinRead adds another overlapping reader to the promoted clock.
func (vs *VarState) JoinRead(tid int, clock uint32) {
	if vs.readClock.Get(tid) < clock {
		vs.readClock.Set(tid, clock)
	}
}

// Demote clears read history; a write dominates every earlier read.
func (vs *VarState) Demote() {
	vs.readEpoch = 0
	vs.readClock = nil
}

// String returns a debug representation.
func (vs *VarState) String() string {
	w := "W:" + vs.W.String()
	if vs.readClock != nil {
		return w + " R:" + vs.readClock.String() + " [PROMOTED]"
	}
	return w + " R:" + vs.readEpoch.String()
}
