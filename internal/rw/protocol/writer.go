package protocol

import (
	"context"

	"go.uber.org/atomic"

	"github.com/kolkov/rwgate/internal/race/task"
)

// WriterState is the position of a writer in its loop.
type WriterState int32

const (
	WriterIdle WriterState = iota
	WriterAwaitingExclusive
	WriterWriting
	WriterExited
)

func (s WriterState) String() string {
	switch s {
	case WriterIdle:
		return "idle"
	case WriterAwaitingExclusive:
		return "awaiting-exclusive"
	case WriterWriting:
		return "writing"
	case WriterExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Writer removes one byte per exclusive section until the buffer is empty.
// It never touches the reader count.
type Writer struct {
	tc     *task.Context
	shared *SharedState
	opts   Options
	obs    Observer

	state    atomic.Int32
	sections atomic.Int64
	removed  atomic.Int64
}

// NewWriter creates the loop for writer tc. obs may be nil.
func NewWriter(tc *task.Context, shared *SharedState, opts Options, obs Observer) *Writer {
	return &Writer{
		tc:     tc,
		shared: shared,
		opts:   opts,
		obs:    observerOrNop(obs),
	}
}

// Context returns the writer's task context.
func (w *Writer) Context() *task.Context {
	return w.tc
}

// State returns the current loop state.
func (w *Writer) State() WriterState {
	return WriterState(w.state.Load())
}

// Sections returns how many exclusive sections the writer completed.
func (w *Writer) Sections() int {
	return int(w.sections.Load())
}

// Removed returns how many bytes the writer removed.
func (w *Writer) Removed() int {
	return int(w.removed.Load())
}

// Run executes the writer protocol:
//
//  1. take the resource permit
//  2. remove the last byte if the buffer is non-empty
//  3. give the resource permit back
//  4. exit if the buffer is now empty, otherwise pause and retry
//
// The length that decides the exit is read under the resource permit. With
// RacyLoopCheck the loop also tests the length outside every permit before
// asking for the resource permit.
func (w *Writer) Run(ctx context.Context) error {
	w.obs.TaskStarted(w.tc)
	defer w.exit()

	for ctx.Err() == nil {
		if w.opts.RacyLoopCheck && w.shared.Buffer.UnsynchronizedLen(w.tc) == 0 {
			return nil
		}

		remaining := w.section()
		if remaining == 0 {
			return nil
		}
		if !pause(ctx, w.opts.WritePause) {
			return nil
		}
	}
	return nil
}

// section runs one exclusive section and returns the remaining length.
func (w *Writer) section() int {
	g := w.shared.Gate

	w.setState(WriterAwaitingExclusive)
	g.EnterWrite(w.tc)
	w.setState(WriterWriting)
	defer func() {
		g.ExitWrite(w.tc)
		w.setState(WriterIdle)
	}()

	removed, remaining, ok := w.shared.Buffer.Shrink(w.tc)
	if ok {
		w.removed.Inc()
		w.obs.WriterWrote(w.tc, removed, remaining)
	}
	w.sections.Inc()
	return remaining
}

func (w *Writer) exit() {
	w.setState(WriterExited)
	w.obs.TaskExited(w.tc)
}

func (w *Writer) setState(s WriterState) {
	w.state.Store(int32(s))
}
