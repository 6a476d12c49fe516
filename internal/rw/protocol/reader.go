package protocol

import (
	"context"

	"go.uber.org/atomic"

	"github.com/kolkov/rwgate/internal/race/task"
)

// ReaderState is the position of a reader in its loop.
type ReaderState int32

const (
	ReaderIdle ReaderState = iota
	ReaderRequestingCount
	ReaderCounted
	ReaderReading
	ReaderReleasingCount
	ReaderExited
)

func (s ReaderState) String() string {
	switch s {
	case ReaderIdle:
		return "idle"
	case ReaderRequestingCount:
		return "requesting-count"
	case ReaderCounted:
		return "counted"
	case ReaderReading:
		return "reading"
	case ReaderReleasingCount:
		return "releasing-count"
	case ReaderExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Reader repeatedly observes the buffer until it is empty.
type Reader struct {
	tc     *task.Context
	shared *SharedState
	opts   Options
	obs    Observer

	state    atomic.Int32
	sections atomic.Int64
}

// NewReader creates the loop for reader tc. obs may be nil.
func NewReader(tc *task.Context, shared *SharedState, opts Options, obs Observer) *Reader {
	return &Reader{
		tc:     tc,
		shared: shared,
		opts:   opts,
		obs:    observerOrNop(obs),
	}
}

// Context returns the reader's task context.
func (r *Reader) Context() *task.Context {
	return r.tc
}

// State returns the current loop state.
func (r *Reader) State() ReaderState {
	return ReaderState(r.state.Load())
}

// Sections returns how many read sections the reader completed.
func (r *Reader) Sections() int {
	return int(r.sections.Load())
}

// Run executes the reader protocol:
//
//  1. take the counter permit, count in; the first reader takes the
//     resource permit; give the counter permit back
//  2. read the buffer holding no permit
//  3. take the counter permit, count out; the last reader gives the
//     resource permit back; give the counter permit back
//  4. pause, then re-check the loop condition
//
// The loop condition is the length seen in the last read section. With
// RacyLoopCheck it is a fresh read outside every permit instead.
func (r *Reader) Run(ctx context.Context) error {
	r.obs.TaskStarted(r.tc)
	defer r.exit()

	remaining := r.check(-1)
	for remaining > 0 {
		if ctx.Err() != nil {
			return nil
		}
		content := r.section()
		if !pause(ctx, r.opts.ReadPause) {
			return nil
		}
		remaining = r.check(len(content))
	}
	return nil
}

func (r *Reader) section() string {
	g, buf := r.shared.Gate, r.shared.Buffer

	r.setState(ReaderRequestingCount)
	g.EnterRead(r.tc)
	r.setState(ReaderCounted)
	defer func() {
		r.setState(ReaderReleasingCount)
		g.ExitRead(r.tc)
		r.setState(ReaderIdle)
	}()

	r.setState(ReaderReading)
	content := buf.Snapshot(r.tc)
	r.obs.ReaderRead(r.tc, content)

	r.sections.Inc()
	return content
}

// check returns the length the loop condition tests. observed < 0 means no
// section has run yet; the first check then counts in through Gate.Read
// without a ReaderRead event. Its count transitions are traced as usual.
func (r *Reader) check(observed int) int {
	if r.opts.RacyLoopCheck {
		return r.shared.Buffer.UnsynchronizedLen(r.tc)
	}
	if observed >= 0 {
		return observed
	}
	var n int
	r.shared.Gate.Read(r.tc, func() {
		n = r.shared.Buffer.Len(r.tc)
	})
	return n
}

func (r *Reader) exit() {
	r.setState(ReaderExited)
	r.obs.TaskExited(r.tc)
}

func (r *Reader) setState(s ReaderState) {
	r.state.Store(int32(s))
}
