package protocol

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/kolkov/rwgate/internal/race/task"
)

// Options tune the task loops.
type Options struct {
	// ReadPause is slept by a reader after each read section.
	ReadPause time.Duration
	// WritePause is slept by a writer after each exclusive section that
	// left the buffer non-empty.
	WritePause time.Duration
	// RacyLoopCheck makes the loop condition read the length outside every
	// permit, as the original program did.
	RacyLoopCheck bool
}

// Task is one reader or writer loop.
type Task interface {
	Context() *task.Context
	Run(ctx context.Context) error
}

// TaskError reports a task that aborted on a panic, usually a
// *permit.MisuseError.
type TaskError struct {
	Role task.Role
	ID   int
	Err  error
}

// Error implements error.
func (e *TaskError) Error() string {
	return fmt.Sprintf("%s %d aborted: %v", e.Role, e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// Run executes t and converts a panic raised inside it into a *TaskError.
//
// A cancelled ctx is not an error: the task stops at its next loop check
// and Run returns nil.
func Run(ctx context.Context, t Task) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		cause, ok := r.(error)
		if !ok {
			cause = fmt.Errorf("panic: %v", r)
		}
		tc := t.Context()
		err = &TaskError{Role: tc.Role, ID: tc.ID, Err: cause}
	}()
	return t.Run(ctx)
}

// pause sleeps for d or until ctx is done. It returns false if ctx is done.
// A non-positive d only yields the processor.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		runtime.Gosched()
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
