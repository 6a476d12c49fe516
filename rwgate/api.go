package rwgate

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/kolkov/rwgate/internal/rw/config"
	"github.com/kolkov/rwgate/internal/rw/supervisor"
)

// DefaultBuffer is the sentence shrunk when Options.Buffer is empty.
const DefaultBuffer = config.DefaultBuffer

// ErrInvalidConfig is returned by Run for rejected Options. No task is
// spawned in that case.
var ErrInvalidConfig = supervisor.ErrInvalidConfig

// Options configure one run.
type Options struct {
	Readers int // reader tasks, at least 1
	Writers int // writer tasks, at least 1

	// Buffer is the initial content. Empty means DefaultBuffer.
	Buffer string

	// ReadPause and WritePause are slept between sections. Zero only
	// yields the processor.
	ReadPause  time.Duration
	WritePause time.Duration

	// MaxTasks limits how many tasks may run at once; 0 means no limit.
	// A run that needs more tasks than the limit fails to spawn.
	MaxTasks int

	// RacyLoopCheck reads the length for the loop condition outside every
	// permit. The race checker then reports the length cell.
	RacyLoopCheck bool

	// DisableRaceCheck leaves the happens-before checker out.
	DisableRaceCheck bool

	// Quiet suppresses the per-transition lines on Stdout.
	Quiet bool

	// Stdout receives progress lines and Stderr race reports; nil
	// discards them. Logger receives diagnostics; nil uses slog.Default().
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Result summarizes a finished run.
type Result struct {
	RunID          string
	WriterSections int
	Reads          int
	Races          int
	Violations     int
	Duration       time.Duration

	// RaceChecked is false when the checker was disabled or the run had
	// more tasks than it watches.
	RaceChecked bool
}

// Run executes one simulation and blocks until every task has exited.
//
// The Result is nil only when opts are rejected.
func Run(ctx context.Context, opts Options) (*Result, error) {
	cfg := config.Defaults()
	cfg.Readers = opts.Readers
	cfg.Writers = opts.Writers
	if opts.Buffer != "" {
		cfg.Buffer = opts.Buffer
	}
	cfg.ReadPause = opts.ReadPause
	cfg.WritePause = opts.WritePause
	cfg.MaxTasks = opts.MaxTasks
	cfg.RacyLoopCheck = opts.RacyLoopCheck
	cfg.CheckRaces = !opts.DisableRaceCheck
	cfg.Quiet = opts.Quiet

	s, err := supervisor.New(cfg, supervisor.Options{
		Stdout: opts.Stdout,
		Stderr: opts.Stderr,
		Logger: opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	res, err := s.Run(ctx)
	return &Result{
		RunID:          res.RunID,
		WriterSections: res.Monitor.WriterSections,
		Reads:          res.Monitor.Reads,
		Races:          len(res.Races),
		Violations:     len(res.Monitor.Violations),
		Duration:       res.Duration,
		RaceChecked:    res.RaceChecked,
	}, err
}
