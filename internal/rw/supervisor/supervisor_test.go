package supervisor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kolkov/rwgate/internal/race/task"
	"github.com/kolkov/rwgate/internal/rw/config"
	"github.com/kolkov/rwgate/internal/rw/permit"
	"github.com/kolkov/rwgate/internal/rw/protocol"
	"github.com/kolkov/rwgate/internal/rw/resource"
)

func testConfig(readers, writers int, buffer string) config.Config {
	cfg := config.Defaults()
	cfg.Readers = readers
	cfg.Writers = writers
	cfg.Buffer = buffer
	cfg.ReadPause = 200 * time.Microsecond
	cfg.WritePause = 0
	return cfg
}

// lengths records the buffer length every reader observed.
type lengths struct {
	mu   sync.Mutex
	seen []int
}

func (l *lengths) TaskStarted(*task.Context) {}

func (l *lengths) ReaderRead(_ *task.Context, content string) {
	l.mu.Lock()
	l.seen = append(l.seen, len(content))
	l.mu.Unlock()
}

func (l *lengths) WriterWrote(*task.Context, byte, int) {}

func (l *lengths) TaskExited(*task.Context) {}

func run(t *testing.T, cfg config.Config, opts Options) *Result {
	t.Helper()
	s, err := New(cfg, opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return res
}

// TestNew_InvalidConfig verifies bad counts are rejected before any work.
func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name             string
		readers, writers int
		field            string
	}{
		{"no readers", 0, 3, "readers"},
		{"no writers", 3, 0, "writers"},
		{"negative", -1, 1, "readers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			s, err := New(testConfig(tt.readers, tt.writers, "abc"), Options{Stdout: &out})
			if s != nil {
				t.Error("Expected nil Supervisor")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
			var ve *config.ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.field {
				t.Errorf("Expected ValidationError on %q, got %v", tt.field, err)
			}
			if out.Len() != 0 {
				t.Errorf("Expected no output, got %q", out.String())
			}
		})
	}
}

// TestRun_OneReaderOneWriter shrinks "abc" with one task of each role.
func TestRun_OneReaderOneWriter(t *testing.T) {
	var out bytes.Buffer
	seen := &lengths{}
	res := run(t, testConfig(1, 1, "abc"), Options{Stdout: &out, Observer: seen})

	prev := 3
	for _, n := range seen.seen {
		if n > prev {
			t.Errorf("Observed lengths not non-increasing: %v", seen.seen)
			break
		}
		prev = n
	}
	if res.Monitor.Mutations != 3 || res.Monitor.FinalLength != 0 {
		t.Errorf("Expected 3 mutations down to 0, got %+v", res.Monitor)
	}
	if len(res.Monitor.Violations) != 0 {
		t.Errorf("Unexpected violations: %v", res.Monitor.Violations)
	}
	if len(res.Races) != 0 {
		t.Errorf("Unexpected races: %v", res.Races)
	}
	if res.Monitor.TasksStarted != 2 || res.Monitor.TasksExited != 2 {
		t.Errorf("Expected 2 tasks started and exited, got %d/%d",
			res.Monitor.TasksStarted, res.Monitor.TasksExited)
	}
	if res.RunID == "" {
		t.Error("Expected a run ID")
	}

	text := out.String()
	for _, want := range []string{
		"Number of reader threads: 1",
		"Number of writer threads: 1",
		"reader 0 is exiting ...",
		"writer 0 is exiting ...",
		"All threads are done.",
		"Resources cleaned up.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("Output missing %q", want)
		}
	}
}

// TestRun_FiveReadersOneWriter checks the writer section count and the
// reader count seen at each writer entry.
func TestRun_FiveReadersOneWriter(t *testing.T) {
	res := run(t, testConfig(5, 1, "abcde"), Options{})

	if got := res.WriterSections(); got != 5 {
		t.Errorf("Expected 5 writer sections, got %d", got)
	}
	if res.Monitor.WriterSections != 5 {
		t.Errorf("Monitor saw %d writer sections, want 5", res.Monitor.WriterSections)
	}
	for i, n := range res.Monitor.ReadersAtWriterEntry {
		if n != 0 {
			t.Errorf("Writer entry %d saw %d readers counted in", i, n)
		}
	}
	if len(res.Races) != 0 {
		t.Errorf("Unexpected races: %v", res.Races)
	}
}

// TestRun_Liveness verifies every combination terminates with an empty buffer.
func TestRun_Liveness(t *testing.T) {
	tests := []struct {
		readers, writers int
		buffer           string
	}{
		{1, 1, "x"},
		{1, 3, "abcdef"},
		{3, 1, "abcdef"},
		{4, 4, "All work and no play"},
		{2, 2, ""},
	}
	for _, tt := range tests {
		cfg := testConfig(tt.readers, tt.writers, tt.buffer)
		res := run(t, cfg, Options{})
		if res.Monitor.FinalLength != 0 || res.Monitor.Mutations != len(tt.buffer) {
			t.Errorf("%d/%d %q: final length %d after %d mutations",
				tt.readers, tt.writers, tt.buffer, res.Monitor.FinalLength, res.Monitor.Mutations)
		}
		if len(res.Monitor.Violations) != 0 || len(res.Races) != 0 {
			t.Errorf("%d/%d: violations %v races %v", tt.readers, tt.writers, res.Monitor.Violations, res.Races)
		}
		if res.Monitor.TasksExited != tt.readers+tt.writers {
			t.Errorf("%d/%d: %d tasks exited", tt.readers, tt.writers, res.Monitor.TasksExited)
		}
	}
}

// TestRun_SpawnFailure verifies a refused spawn cancels the running tasks.
func TestRun_SpawnFailure(t *testing.T) {
	cfg := testConfig(2, 1, "abc")
	cfg.MaxTasks = 2
	cfg.ReadPause = 5 * time.Millisecond

	s, err := New(cfg, Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	res, err := s.Run(context.Background())

	var se *SpawnError
	if !errors.As(err, &se) {
		t.Fatalf("Expected *SpawnError, got %v", err)
	}
	if !errors.Is(err, ErrSpawn) {
		t.Errorf("Expected ErrSpawn, got %v", err)
	}
	if se.Role != task.Writer || se.ID != 0 || se.Spawned != 2 {
		t.Errorf("Unexpected spawn error: %+v", se)
	}
	if res == nil {
		t.Fatal("Expected a Result on spawn failure")
	}
	if res.Monitor.Mutations != 0 {
		t.Errorf("Expected no mutation without writers, got %d", res.Monitor.Mutations)
	}
	if res.Monitor.TasksExited != 2 {
		t.Errorf("Expected both readers joined, got %d", res.Monitor.TasksExited)
	}
}

// TestRun_RacyLoopCheck verifies the unsynchronized check only races on the length.
func TestRun_RacyLoopCheck(t *testing.T) {
	cfg := testConfig(3, 2, "abcdefgh")
	cfg.RacyLoopCheck = true
	res := run(t, cfg, Options{})

	if res.Monitor.FinalLength != 0 {
		t.Errorf("Expected empty buffer, got %d", res.Monitor.FinalLength)
	}
	for _, r := range res.Races {
		if r.Cell != resource.CellLength {
			t.Errorf("Unexpected race on %q: %s", r.Cell, r.String())
		}
	}
}

// TestRun_NoRaceCheck verifies the checker can be left out.
func TestRun_NoRaceCheck(t *testing.T) {
	cfg := testConfig(2, 1, "abc")
	cfg.CheckRaces = false
	res := run(t, cfg, Options{})
	if res.Races != nil {
		t.Errorf("Expected no race reports, got %v", res.Races)
	}
}

// TestRun_Quiet verifies progress lines are suppressed.
func TestRun_Quiet(t *testing.T) {
	var out bytes.Buffer
	cfg := testConfig(1, 1, "ab")
	cfg.Quiet = true
	run(t, cfg, Options{Stdout: &out})

	text := out.String()
	if strings.Contains(text, "is reading") || strings.Contains(text, "read_count") {
		t.Errorf("Quiet run printed progress:\n%s", text)
	}
	if !strings.Contains(text, "All threads are done.") {
		t.Errorf("Quiet run dropped closing lines:\n%s", text)
	}
}

// TestRun_Interrupted verifies a cancelled caller context ends the run.
func TestRun_Interrupted(t *testing.T) {
	cfg := testConfig(1, 1, "abcdef")
	cfg.WritePause = time.Hour

	s, err := New(cfg, Options{})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := s.Run(ctx)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Expected ErrInterrupted, got %v", err)
	}
	if res.Monitor.TasksExited != 2 {
		t.Errorf("Expected both tasks joined, got %d", res.Monitor.TasksExited)
	}
}

// failingReader panics inside the read section after a delay, while the
// writer is waiting for the resource permit.
type failingReader struct {
	lengths
	delay time.Duration
}

func (f *failingReader) ReaderRead(*task.Context, string) {
	time.Sleep(f.delay)
	panic("observer failed")
}

// TestRun_TaskAbortReleasesPermits verifies an aborted reader neither
// blocks the waiting writer nor leaves a permit held.
func TestRun_TaskAbortReleasesPermits(t *testing.T) {
	cfg := testConfig(1, 1, "abcdefgh")
	cfg.WritePause = 5 * time.Millisecond

	s, err := New(cfg, Options{Observer: &failingReader{delay: 50 * time.Millisecond}})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := s.Run(context.Background())
		done <- outcome{res, err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run still blocked after a task aborted")
	}

	var te *protocol.TaskError
	if !errors.As(out.err, &te) {
		t.Fatalf("Expected *protocol.TaskError, got %v", out.err)
	}
	if te.Role != task.Reader {
		t.Errorf("Expected the reader to abort, got %s %d", te.Role, te.ID)
	}
	if errors.Is(out.err, permit.ErrDisposeHeld) {
		t.Errorf("Permit left held after abort: %v", out.err)
	}
	if out.res.Monitor.TasksExited != 2 {
		t.Errorf("Expected both tasks joined, got %d", out.res.Monitor.TasksExited)
	}
}

// TestRun_LargeRunSkipsChecker verifies runs above the checker limit still
// complete, unchecked and without per-task clocks.
func TestRun_LargeRunSkipsChecker(t *testing.T) {
	cfg := testConfig(1, config.MaxCheckedTasks+100, "ab")
	res := run(t, cfg, Options{})

	if res.RaceChecked || res.Races != nil {
		t.Errorf("Expected an unchecked run, got RaceChecked=%v races=%v", res.RaceChecked, res.Races)
	}
	if res.Monitor.FinalLength != 0 || len(res.Monitor.Violations) != 0 {
		t.Errorf("Unexpected outcome: %+v", res.Monitor)
	}
	if res.Monitor.TasksExited != cfg.Tasks() {
		t.Errorf("Expected %d tasks exited, got %d", cfg.Tasks(), res.Monitor.TasksExited)
	}

	small := run(t, testConfig(1, 1, "ab"), Options{})
	if !small.RaceChecked {
		t.Error("Expected a small run to be checked")
	}
}
