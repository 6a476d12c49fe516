// Package supervisor runs one simulation: it builds the shared state,
// spawns every reader and writer, joins them and disposes the permits.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/rwgate/internal/race/detector"
	"github.com/kolkov/rwgate/internal/race/task"
	"github.com/kolkov/rwgate/internal/rw/config"
	"github.com/kolkov/rwgate/internal/rw/gate"
	"github.com/kolkov/rwgate/internal/rw/monitor"
	"github.com/kolkov/rwgate/internal/rw/protocol"
	"github.com/kolkov/rwgate/internal/rw/report"
	"github.com/kolkov/rwgate/internal/rw/resource"
)

// Options wire a Supervisor to its surroundings. Zero values are usable.
type Options struct {
	// Stdout receives progress lines; nil discards them.
	Stdout io.Writer
	// Stderr receives race reports; nil discards them.
	Stderr io.Writer
	// Logger receives diagnostics; nil uses slog.Default().
	Logger *slog.Logger
	// Observer, if set, receives protocol events after the built-in ones.
	Observer protocol.Observer
}

// TaskStats is the per-task outcome of a run.
type TaskStats struct {
	Name     string
	Sections int
}

// Result describes a finished run.
type Result struct {
	RunID    string
	Duration time.Duration

	Readers []TaskStats
	Writers []TaskStats

	Monitor monitor.Summary
	// RaceChecked reports whether the race checker watched the run; Races
	// is nil when it did not.
	RaceChecked bool
	Races       []detector.Report

	ResourceAcquisitions uint64
	CounterAcquisitions  uint64
}

// WriterSections returns the total number of exclusive sections.
func (r *Result) WriterSections() int {
	n := 0
	for _, w := range r.Writers {
		n += w.Sections
	}
	return n
}

// Supervisor owns one run.
type Supervisor struct {
	cfg    config.Config
	stdout io.Writer
	stderr io.Writer
	log    *slog.Logger
	obs    protocol.Observer
}

// New validates cfg and returns a Supervisor ready to Run.
func New(cfg config.Config, opts Options) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	s := &Supervisor{
		cfg:    cfg,
		stdout: opts.Stdout,
		stderr: opts.Stderr,
		log:    opts.Logger,
		obs:    opts.Observer,
	}
	if s.stdout == nil {
		s.stdout = io.Discard
	}
	if s.stderr == nil {
		s.stderr = io.Discard
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

// Run executes the simulation and blocks until every spawned task has been
// joined and both permits are disposed.
//
// Steps:
//  1. create the buffer, the gate (counter 0, both permits available) and
//     the checkers
//  2. spawn the readers, then the writers
//  3. join every spawned task
//  4. dispose the permits and print the closing lines
//
// If a task cannot be spawned the tasks already running are cancelled at
// their next loop check and the run ends with a *SpawnError. A task that
// aborts on a permit misuse ends the run with a *protocol.TaskError.
// The returned Result is non-nil even when err is not.
func (s *Supervisor) Run(ctx context.Context) (*Result, error) {
	cfg := s.cfg
	start := time.Now()
	runID := uuid.NewString()
	log := s.log.With("run", runID)
	width := cfg.Tasks()

	// Step 1: shared state.
	var det *detector.Detector
	var tracker resource.AccessTracker
	mon := monitor.New(len(cfg.Buffer))
	printer := report.NewPrinter(s.stdout, cfg.Quiet)
	gopts := []gate.Option{gate.WithTracer(mon), gate.WithTracer(printer)}
	// Tasks carry clocks only when the checker is wired.
	clockWidth := 0
	if cfg.RaceCheckEnabled() {
		clockWidth = width
		det = detector.New(width)
		tracker = det
		gopts = append(gopts, gate.WithTracker(det))
	} else if cfg.CheckRaces {
		log.Warn("supervisor: race checker skipped for large run",
			"tasks", width, "max_checked_tasks", config.MaxCheckedTasks)
	}
	shared := &protocol.SharedState{
		Buffer: resource.New(cfg.Buffer, tracker),
		Gate:   gate.New(gopts...),
	}

	obs := protocol.Observers{mon, printer}
	if s.obs != nil {
		obs = append(obs, s.obs)
	}
	popts := protocol.Options{
		ReadPause:     cfg.ReadPause,
		WritePause:    cfg.WritePause,
		RacyLoopCheck: cfg.RacyLoopCheck,
	}

	readers := make([]*protocol.Reader, cfg.Readers)
	writers := make([]*protocol.Writer, cfg.Writers)
	tasks := make([]protocol.Task, 0, width)
	for i := range readers {
		tc := task.New(task.Reader, i, i, clockWidth)
		readers[i] = protocol.NewReader(tc, shared, popts, obs)
		tasks = append(tasks, readers[i])
	}
	for i := range writers {
		tc := task.New(task.Writer, i, cfg.Readers+i, clockWidth)
		writers[i] = protocol.NewWriter(tc, shared, popts, obs)
		tasks = append(tasks, writers[i])
	}
	if det != nil {
		for _, t := range tasks {
			det.Register(t.Context())
		}
	}

	printer.Banner(cfg.Readers, cfg.Writers)
	log.Info("supervisor: starting run",
		"readers", cfg.Readers,
		"writers", cfg.Writers,
		"buffer_len", len(cfg.Buffer),
		"racy_loop_check", cfg.RacyLoopCheck,
		"check_races", det != nil)

	// Step 2: spawn.
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	g, gctx := errgroup.WithContext(runCtx)
	if cfg.MaxTasks > 0 {
		g.SetLimit(cfg.MaxTasks)
	}

	var spawnErr error
	spawned := 0
	for _, t := range tasks {
		t := t
		if !g.TryGo(func() error { return protocol.Run(gctx, t) }) {
			tc := t.Context()
			spawnErr = &SpawnError{Role: tc.Role, ID: tc.ID, Spawned: spawned}
			log.Error("supervisor: task creation failed", "task", tc.String(), "spawned", spawned)
			cancel(spawnErr)
			break
		}
		spawned++
	}
	log.Debug("supervisor: spawned tasks", "count", spawned)

	// Step 3: join.
	waitErr := g.Wait()
	if waitErr != nil {
		log.Error("supervisor: task aborted", "error", waitErr)
	}

	// Step 4: dispose and report.
	disposeErr := shared.Gate.Dispose()
	if disposeErr != nil {
		log.Error("supervisor: dispose failed", "error", disposeErr)
	}

	res := &Result{
		RunID:    runID,
		Duration: time.Since(start),
		Readers:  make([]TaskStats, len(readers)),
		Writers:  make([]TaskStats, len(writers)),
		Monitor:  mon.Summary(),
	}
	for i, r := range readers {
		res.Readers[i] = TaskStats{Name: r.Context().String(), Sections: r.Sections()}
	}
	for i, w := range writers {
		res.Writers[i] = TaskStats{Name: w.Context().String(), Sections: w.Sections()}
	}
	res.ResourceAcquisitions, res.CounterAcquisitions = shared.Gate.Acquisitions()
	if det != nil {
		res.RaceChecked = true
		res.Races = det.Reports()
		if err := det.Fprint(s.stderr); err != nil {
			log.Warn("supervisor: failed to write race reports", "error", err)
		}
		if len(res.Races) > 0 {
			log.Warn("supervisor: data races detected", "count", len(res.Races))
		}
	}

	printer.Finished(report.Totals{
		RunID:          runID,
		WriterSections: res.Monitor.WriterSections,
		Reads:          res.Monitor.Reads,
		Races:          len(res.Races),
		Violations:     len(res.Monitor.Violations),
		Duration:       res.Duration,
	})
	log.Info("supervisor: run finished",
		"duration", res.Duration,
		"writer_sections", res.Monitor.WriterSections,
		"races", len(res.Races))

	var runErr error
	switch {
	case spawnErr != nil:
		runErr = spawnErr
	case waitErr != nil:
		runErr = waitErr
	case ctx.Err() != nil:
		runErr = fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
	default:
		runErr = mon.Err()
	}
	return res, errors.Join(runErr, disposeErr, printer.Err())
}
