package detector

import (
	"strconv"
	"sync"

	"github.com/kolkov/rwgate/internal/race/epoch"
	"github.com/kolkov/rwgate/internal/race/shadow"
	"github.com/kolkov/rwgate/internal/race/task"
)

// Stats counts the events the checker has seen.
type Stats struct {
	Reads      uint64
	Writes     uint64
	Acquires   uint64
	Releases   uint64
	Promotions uint64
}

// Detector checks happens-before ordering of buffer accesses against
// permit operations.
//
// All methods are safe for concurrent calls. Hooks are serialized by one
// mutex: the gate calls OnAcquire after the permit is taken and OnRelease
// before it is given back, so hook order matches permit order.
type Detector struct {
	mu sync.Mutex

	width   int
	cells   map[string]*shadow.VarState
	permits map[string]*shadow.SyncVar
	names   map[int]string

	reported map[string]struct{}
	reports  []Report
	stats    Stats
}

// New creates a checker for a run with width tasks.
func New(width int) *Detector {
	return &Detector{
		width:    width,
		cells:    make(map[string]*shadow.VarState),
		permits:  make(map[string]*shadow.SyncVar),
		names:    make(map[int]string),
		reported: make(map[string]struct{}),
	}
}

// Register records the log name of a task so reports can name both sides.
func (d *Detector) Register(tc *task.Context) {
	d.mu.Lock()
	d.names[tc.TID] = tc.String()
	d.mu.Unlock()
}

// OnAcquire joins the permit's release clock into the acquiring task.
//
// Algorithm: [FT ACQUIRE] Ct := Ct ⊔ Lp
func (d *Detector) OnAcquire(permit string, tc *task.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.Acquires++
	if rc := d.syncVar(permit).GetReleaseClock(); rc != nil {
		tc.Join(rc)
	}
}

// OnRelease captures the releasing task's clock into the permit.
//
// Algorithm: [FT RELEASE] Lp := Ct; Ct[t]++
func (d *Detector) OnRelease(permit string, tc *task.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.Releases++
	d.syncVar(permit).SetReleaseClock(tc.C)
	tc.IncrementClock()
}

// OnRead checks a read of cell by tc.
//
// Algorithm: FastTrack [FT READ] with adaptive read state:
//  1. The last write must happen-before this read, else write-read race
//  2. Same epoch: nothing to record
//  3. Previous reader ordered before us (or us): replace the read epoch
//  4. Previous reader concurrent: promote to a read vector clock
//  5. Already promoted: add our clock entry
func (d *Detector) OnRead(cell string, tc *task.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.Reads++
	vs := d.varState(cell)
	cur := tc.GetEpoch()

	if !vs.W.IsZero() && !vs.W.HappensBefore(tc.C) {
		d.report(RaceTypeWriteRead, cell, Access{Type: AccessRead, Epoch: cur}, Access{Type: AccessWrite, Epoch: vs.W})
		return
	}

	if vs.IsPromoted() {
		vs.JoinRead(tc.TID, tc.C.Get(tc.TID))
		return
	}

	prev := vs.GetReadEpoch()
	switch {
	case prev.Same(cur):
	case prev.IsZero(), int(prev.TID()) == tc.TID, prev.HappensBefore(tc.C):
		vs.SetReadEpoch(cur)
	default:
		vs.PromoteToReadClock(d.width, tc.C)
		d.stats.Promotions++
	}
}

// OnWrite checks a write of cell by tc.
//
// Algorithm: FastTrack [FT WRITE]:
//  1. Same epoch as last write: nothing to do
//  2. The last write must happen-before this write, else write-write race
//  3. Every recorded read must happen-before this write, else read-write race
//  4. Record the write and drop read history
func (d *Detector) OnWrite(cell string, tc *task.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.Writes++
	vs := d.varState(cell)
	cur := tc.GetEpoch()

	if vs.W.Same(cur) {
		return
	}

	if !vs.W.IsZero() && !vs.W.HappensBefore(tc.C) {
		d.report(RaceTypeWriteWrite, cell, Access{Type: AccessWrite, Epoch: cur}, Access{Type: AccessWrite, Epoch: vs.W})
		return
	}

	if vs.IsPromoted() {
		rc := vs.GetReadClock()
		for tid := 0; tid < rc.Len(); tid++ {
			if rc.Get(tid) > tc.C.Get(tid) {
				//nolint:gosec // G115: tid is bounded by the run's task count.
				prev := epoch.NewEpoch(uint16(tid), uint64(rc.Get(tid)))
				d.report(RaceTypeReadWrite, cell, Access{Type: AccessWrite, Epoch: cur}, Access{Type: AccessRead, Epoch: prev})
				return
			}
		}
	} else if prev := vs.GetReadEpoch(); !prev.IsZero() && !prev.HappensBefore(tc.C) {
		d.report(RaceTypeReadWrite, cell, Access{Type: AccessWrite, Epoch: cur}, Access{Type: AccessRead, Epoch: prev})
		return
	}

	vs.W = cur
	vs.Demote()
}

// RacesDetected returns the number of distinct conflicts found.
func (d *Detector) RacesDetected() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reports)
}

// Reports returns a copy of the collected conflicts in detection order.
func (d *Detector) Reports() []Report {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Report, len(d.reports))
	copy(out, d.reports)
	return out
}

// Stats returns a snapshot of the event counters.
func (d *Detector) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// report records a conflict unless the same pair was already reported.
// Caller holds d.mu.
func (d *Detector) report(raceType, cell string, cur, prev Access) {
	cur.TID = int(cur.Epoch.TID())
	prev.TID = int(prev.Epoch.TID())
	key := deduplicationKey(raceType, cell, cur.TID, prev.TID)
	if _, ok := d.reported[key]; ok {
		return
	}
	d.reported[key] = struct{}{}

	cur.Task = d.nameOf(cur.TID)
	prev.Task = d.nameOf(prev.TID)
	d.reports = append(d.reports, Report{
		Type:     raceType,
		Cell:     cell,
		Current:  cur,
		Previous: prev,
		Key:      key,
	})
}

func (d *Detector) nameOf(tid int) string {
	if name, ok := d.names[tid]; ok {
		return name
	}
	return "task " + strconv.Itoa(tid)
}

func (d *Detector) varState(cell string) *shadow.VarState {
	vs, ok := d.cells[cell]
	if !ok {
		vs = shadow.NewVarState()
		d.cells[cell] = vs
	}
	return vs
}

func (d *Detector) syncVar(permit string) *shadow.SyncVar {
	sv, ok := d.permits[permit]
	if !ok {
		sv = &shadow.SyncVar{}
		d.permits[permit] = sv
	}
	return sv
}
