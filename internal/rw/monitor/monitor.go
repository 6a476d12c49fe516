// Package monitor checks the gate's safety properties while a run is in
// progress.
//
// A Monitor is wired into the gate as a gate.Tracer and into the tasks as a
// protocol.Observer. Tracer calls arrive inside the critical section they
// describe, so the counters below always reflect a legal configuration of
// the gate unless the protocol is broken.
package monitor

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/atomic"

	"github.com/kolkov/rwgate/internal/race/task"
)

// Violation kinds.
const (
	WriterWithReaders  = "writer-with-readers"
	ConcurrentWriters  = "concurrent-writers"
	NegativeCounter    = "negative-counter"
	LengthIncreased    = "length-increased"
	MutationAfterDrain = "mutation-after-drain"
)

// ErrViolation is wrapped by Monitor.Err when any violation was recorded.
var ErrViolation = errors.New("gate invariant violated")

// Violation is one observed breach of a safety property.
type Violation struct {
	Kind   string
	Task   string
	Detail string
}

func (v Violation) String() string {
	return v.Kind + " by " + v.Task + ": " + v.Detail
}

// Summary is a snapshot of what the monitor has seen.
type Summary struct {
	TasksStarted   int
	TasksExited    int
	WriterSections int
	Mutations      int
	Reads          int
	FinalLength    int
	// ReadersAtWriterEntry holds the reader count seen at each writer
	// entry, in entry order. Every value is 0 in a correct run.
	ReadersAtWriterEntry []int
	Violations           []Violation
}

// Monitor records gate transitions and protocol events.
type Monitor struct {
	writers atomic.Int32
	readers atomic.Int32

	started        atomic.Int32
	exited         atomic.Int32
	writerSections atomic.Int64
	mutations      atomic.Int64
	reads          atomic.Int64
	length         atomic.Int64
	drained        atomic.Bool

	mu         sync.Mutex
	atEntry    []int
	violations []Violation
}

// New creates a monitor for a buffer that starts with length bytes.
func New(length int) *Monitor {
	m := &Monitor{}
	m.length.Store(int64(length))
	m.drained.Store(length == 0)
	return m
}

// ReadEntered implements gate.Tracer.
func (m *Monitor) ReadEntered(tc *task.Context, readers int) {
	m.checkCounter(tc, readers)
	m.readers.Store(int32(readers)) //nolint:gosec // G115: bounded by task count.
	if w := m.writers.Load(); w != 0 {
		m.violate(WriterWithReaders, tc, fmt.Sprintf("reader counted in while %d writer(s) inside", w))
	}
}

// ReadExited implements gate.Tracer.
func (m *Monitor) ReadExited(tc *task.Context, readers int) {
	m.checkCounter(tc, readers)
	m.readers.Store(int32(readers)) //nolint:gosec // G115: bounded by task count.
}

// WriteEntered implements gate.Tracer.
func (m *Monitor) WriteEntered(tc *task.Context) {
	if w := m.writers.Inc(); w > 1 {
		m.violate(ConcurrentWriters, tc, fmt.Sprintf("%d writers inside", w))
	}
	r := int(m.readers.Load())
	m.mu.Lock()
	m.atEntry = append(m.atEntry, r)
	m.mu.Unlock()
	if r != 0 {
		m.violate(WriterWithReaders, tc, fmt.Sprintf("writer entered with %d reader(s) counted in", r))
	}
	m.writerSections.Inc()
}

// WriteExited implements gate.Tracer.
func (m *Monitor) WriteExited(*task.Context) {
	m.writers.Dec()
}

// TaskStarted implements protocol.Observer.
func (m *Monitor) TaskStarted(*task.Context) {
	m.started.Inc()
}

// ReaderRead implements protocol.Observer.
func (m *Monitor) ReaderRead(tc *task.Context, content string) {
	m.reads.Inc()
	if last := m.length.Load(); int64(len(content)) > last {
		m.violate(LengthIncreased, tc, fmt.Sprintf("read %d bytes after length reached %d", len(content), last))
	}
}

// WriterWrote implements protocol.Observer.
func (m *Monitor) WriterWrote(tc *task.Context, _ byte, remaining int) {
	m.mutations.Inc()
	if m.drained.Load() {
		m.violate(MutationAfterDrain, tc, "buffer mutated after reaching length 0")
	}
	if last := m.length.Swap(int64(remaining)); int64(remaining) >= last {
		m.violate(LengthIncreased, tc, fmt.Sprintf("length went from %d to %d", last, remaining))
	}
	if remaining == 0 {
		m.drained.Store(true)
	}
}

// TaskExited implements protocol.Observer.
func (m *Monitor) TaskExited(*task.Context) {
	m.exited.Inc()
}

// Summary returns a snapshot of the counters and violations.
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Summary{
		TasksStarted:         int(m.started.Load()),
		TasksExited:          int(m.exited.Load()),
		WriterSections:       int(m.writerSections.Load()),
		Mutations:            int(m.mutations.Load()),
		Reads:                int(m.reads.Load()),
		FinalLength:          int(m.length.Load()),
		ReadersAtWriterEntry: append([]int(nil), m.atEntry...),
		Violations:           append([]Violation(nil), m.violations...),
	}
}

// Err returns nil if no violation was recorded, otherwise an error wrapping
// ErrViolation that lists them.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.violations) == 0 {
		return nil
	}
	parts := make([]string, len(m.violations))
	for i, v := range m.violations {
		parts[i] = v.String()
	}
	return fmt.Errorf("%w: %s", ErrViolation, strings.Join(parts, "; "))
}

func (m *Monitor) checkCounter(tc *task.Context, readers int) {
	if readers < 0 {
		m.violate(NegativeCounter, tc, fmt.Sprintf("reader count %d", readers))
	}
}

func (m *Monitor) violate(kind string, tc *task.Context, detail string) {
	m.mu.Lock()
	m.violations = append(m.violations, Violation{Kind: kind, Task: tc.String(), Detail: detail})
	m.mu.Unlock()
}
