package monitor

import (
	"errors"
	"sync"
	"testing"

	"github.com/kolkov/rwgate/internal/race/task"
	"github.com/kolkov/rwgate/internal/rw/gate"
	"github.com/kolkov/rwgate/internal/rw/resource"
)

func kinds(vs []Violation) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Kind
	}
	return out
}

// TestMonitor_CleanSequence verifies a legal sequence records no violation.
func TestMonitor_CleanSequence(t *testing.T) {
	m := New(2)
	r := task.New(task.Reader, 0, 0, 2)
	w := task.New(task.Writer, 0, 1, 2)

	m.TaskStarted(r)
	m.TaskStarted(w)
	m.ReadEntered(r, 1)
	m.ReaderRead(r, "ab")
	m.ReadExited(r, 0)
	m.WriteEntered(w)
	m.WriterWrote(w, 'b', 1)
	m.WriteExited(w)
	m.WriteEntered(w)
	m.WriterWrote(w, 'a', 0)
	m.WriteExited(w)
	m.TaskExited(w)
	m.ReadEntered(r, 1)
	m.ReaderRead(r, "")
	m.ReadExited(r, 0)
	m.TaskExited(r)

	s := m.Summary()
	if len(s.Violations) != 0 {
		t.Fatalf("Expected no violations, got %v", s.Violations)
	}
	if err := m.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
	if s.WriterSections != 2 || s.Mutations != 2 || s.Reads != 2 {
		t.Errorf("Unexpected counts: %+v", s)
	}
	if s.TasksStarted != 2 || s.TasksExited != 2 {
		t.Errorf("Expected 2 started and 2 exited, got %d and %d", s.TasksStarted, s.TasksExited)
	}
	if s.FinalLength != 0 {
		t.Errorf("Expected final length 0, got %d", s.FinalLength)
	}
	if len(s.ReadersAtWriterEntry) != 2 || s.ReadersAtWriterEntry[0] != 0 || s.ReadersAtWriterEntry[1] != 0 {
		t.Errorf("Expected readers [0 0] at writer entry, got %v", s.ReadersAtWriterEntry)
	}
}

// TestMonitor_Violations verifies each breach is recorded with its kind.
func TestMonitor_Violations(t *testing.T) {
	r := task.New(task.Reader, 0, 0, 3)
	w0 := task.New(task.Writer, 0, 1, 3)
	w1 := task.New(task.Writer, 1, 2, 3)

	tests := []struct {
		name string
		run  func(m *Monitor)
		want string
	}{
		{
			name: "writer with readers",
			run: func(m *Monitor) {
				m.ReadEntered(r, 1)
				m.WriteEntered(w0)
			},
			want: WriterWithReaders,
		},
		{
			name: "reader joins writer",
			run: func(m *Monitor) {
				m.WriteEntered(w0)
				m.ReadEntered(r, 1)
			},
			want: WriterWithReaders,
		},
		{
			name: "two writers",
			run: func(m *Monitor) {
				m.WriteEntered(w0)
				m.WriteEntered(w1)
			},
			want: ConcurrentWriters,
		},
		{
			name: "negative counter",
			run: func(m *Monitor) {
				m.ReadExited(r, -1)
			},
			want: NegativeCounter,
		},
		{
			name: "length increase seen by reader",
			run: func(m *Monitor) {
				m.WriterWrote(w0, 'c', 2)
				m.ReaderRead(r, "abc")
			},
			want: LengthIncreased,
		},
		{
			name: "mutation after drain",
			run: func(m *Monitor) {
				m.WriterWrote(w0, 'c', 0)
				m.WriterWrote(w1, 'x', 0)
			},
			want: MutationAfterDrain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(3)
			tt.run(m)
			got := kinds(m.Summary().Violations)
			if len(got) == 0 || got[0] != tt.want {
				t.Fatalf("Expected first violation %q, got %v", tt.want, got)
			}
			if err := m.Err(); !errors.Is(err, ErrViolation) {
				t.Errorf("Err() = %v, want ErrViolation", err)
			}
		})
	}
}

// TestMonitor_WiredIntoGate runs readers and writers through a real gate.
func TestMonitor_WiredIntoGate(t *testing.T) {
	const readers, writers = 4, 2
	const content = "abcdefgh"

	m := New(len(content))
	buf := resource.New(content, nil)
	g := gate.New(gate.WithTracer(m))

	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		tc := task.New(task.Reader, i, i, readers+writers)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 1; n > 0; {
				g.EnterRead(tc)
				s := buf.Snapshot(tc)
				m.ReaderRead(tc, s)
				n = len(s)
				g.ExitRead(tc)
			}
		}()
	}
	for i := 0; i < writers; i++ {
		tc := task.New(task.Writer, i, readers+i, readers+writers)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				g.EnterWrite(tc)
				removed, remaining, ok := buf.Shrink(tc)
				if ok {
					m.WriterWrote(tc, removed, remaining)
				}
				g.ExitWrite(tc)
				if remaining == 0 {
					return
				}
			}
		}()
	}
	wg.Wait()

	s := m.Summary()
	if len(s.Violations) != 0 {
		t.Fatalf("Expected no violations, got %v", s.Violations)
	}
	if s.Mutations != len(content) {
		t.Errorf("Expected %d mutations, got %d", len(content), s.Mutations)
	}
	for i, r := range s.ReadersAtWriterEntry {
		if r != 0 {
			t.Errorf("Writer entry %d saw %d readers", i, r)
		}
	}
}
