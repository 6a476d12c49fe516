// Package protocol implements the reader and writer task loops over a
// shared gate and buffer.
//
// Reader states:
//
//	Idle → RequestingCount → Counted → Reading → ReleasingCount → Idle
//	                                                               ↓
//	                                                             Exited
//
// Writer states:
//
//	Idle → AwaitingExclusive → Writing → Idle → ... → Exited
//
// Tasks loop while the buffer is non-empty. All progress is reported to an
// Observer; the loops themselves never print.
package protocol

import (
	"github.com/kolkov/rwgate/internal/race/task"
	"github.com/kolkov/rwgate/internal/rw/gate"
	"github.com/kolkov/rwgate/internal/rw/resource"
)

// SharedState bundles the objects every task of a run shares. It is
// created once by the supervisor before any task starts.
type SharedState struct {
	Buffer *resource.Buffer
	Gate   *gate.Gate
}

// Observer receives protocol events.
//
// ReaderRead is called inside the read section and WriterWrote inside the
// exclusive section, so the content and length they carry are consistent
// with the permits.
type Observer interface {
	TaskStarted(tc *task.Context)
	ReaderRead(tc *task.Context, content string)
	WriterWrote(tc *task.Context, removed byte, remaining int)
	TaskExited(tc *task.Context)
}

// Observers fans events out to several observers in order.
type Observers []Observer

func (obs Observers) TaskStarted(tc *task.Context) {
	for _, o := range obs {
		o.TaskStarted(tc)
	}
}

func (obs Observers) ReaderRead(tc *task.Context, content string) {
	for _, o := range obs {
		o.ReaderRead(tc, content)
	}
}

func (obs Observers) WriterWrote(tc *task.Context, removed byte, remaining int) {
	for _, o := range obs {
		o.WriterWrote(tc, removed, remaining)
	}
}

func (obs Observers) TaskExited(tc *task.Context) {
	for _, o := range obs {
		o.TaskExited(tc)
	}
}

// nopObserver drops every event.
type nopObserver struct{}

func (nopObserver) TaskStarted(*task.Context)            {}
func (nopObserver) ReaderRead(*task.Context, string)     {}
func (nopObserver) WriterWrote(*task.Context, byte, int) {}
func (nopObserver) TaskExited(*task.Context)             {}

func observerOrNop(obs Observer) Observer {
	if obs == nil {
		return nopObserver{}
	}
	return obs
}
