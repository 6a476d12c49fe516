package shadow

import (
	"strings"
	"testing"

	"github.com/kolkov/rwgate/internal/race/epoch"
	"github.com/kolkov/rwgate/internal/race/vectorclock"
)

// TestVarState_FastPathRead verifies single-reader bookkeeping.
func TestVarState_FastPathRead(t *testing.T) {
	vs := NewVarState()
	e := epoch.NewEpoch(1, 4)

	vs.SetReadEpoch(e)

	if vs.IsPromoted() {
		t.Fatal("fresh VarState promoted after one read")
	}
	if vs.GetReadEpoch() != e {
		t.Errorf("GetReadEpoch() = %s, want %s", vs.GetReadEpoch(), e)
	}
}

// TestVarState_Promote verifies promotion keeps both readers.
func TestVarState_Promote(t *testing.T) {
	vs := NewVarState()
	vs.SetReadEpoch(epoch.NewEpoch(0, 3))

	reader := vectorclock.New(2)
	reader.Set(1, 6)
	vs.PromoteToReadClock(2, reader)

	if !vs.IsPromoted() {
		t.Fatal("PromoteToReadClock() did not promote")
	}
	rc := vs.GetReadClock()
	if rc.Get(0) != 3 || rc.Get(1) != 6 {
		t.Errorf("read clock = %s, want {0:3, 1:6}", rc)
	}
	if !vs.GetReadEpoch().IsZero() {
		t.Errorf("read epoch after promotion = %s, want zero", vs.GetReadEpoch())
	}

	// Fast-path writes are ignored while promoted.
	vs.SetReadEpoch(epoch.NewEpoch(1, 9))
	if !vs.GetReadEpoch().IsZero() {
		t.Error("SetReadEpoch() took effect on a promoted cell")
	}

	vs.JoinRead(0, 8)
	if rc.Get(0) != 8 {
		t.Errorf("JoinRead() clock[0] = %d, want 8", rc.Get(0))
	}
}

// TestVarState_Demote verifies writes clear the read history.
func TestVarState_Demote(t *testing.T) {
	vs := NewVarState()
	vs.PromoteToReadClock(1, vectorclock.New(1))
	vs.Demote()

	if vs.IsPromoted() || !vs.GetReadEpoch().IsZero() {
		t.Errorf("Demote() left read history: %s", vs)
	}
	if !strings.HasPrefix(vs.String(), "W:") {
		t.Errorf("String() = %q, want W: prefix", vs.String())
	}
}

// TestSyncVar_SetReleaseClock verifies copies are not aliased.
func TestSyncVar_SetReleaseClock(t *testing.T) {
	sv := &SyncVar{}
	if sv.GetReleaseClock() != nil {
		t.Fatal("fresh SyncVar has a release clock")
	}

	clock := vectorclock.New(2)
	clock.Set(0, 10)
	sv.SetReleaseClock(clock)
	clock.Set(0, 99)

	if sv.GetReleaseClock().Get(0) != 10 {
		t.Errorf("release clock aliased caller clock: got %d, want 10", sv.GetReleaseClock().Get(0))
	}

	sv.SetReleaseClock(clock)
	if sv.GetReleaseClock().Get(0) != 99 || sv.Releases() != 2 {
		t.Errorf("second release = (%d, %d releases), want (99, 2)", sv.GetReleaseClock().Get(0), sv.Releases())
	}
}
