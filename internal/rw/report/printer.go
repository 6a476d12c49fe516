// Package report prints the progress of a run to stdout.
package report

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/docker/go-units"

	"github.com/kolkov/rwgate/internal/race/task"
)

// Totals summarizes a finished run for the closing lines.
type Totals struct {
	RunID          string
	WriterSections int
	Reads          int
	Races          int
	Violations     int
	Duration       time.Duration
}

// Printer writes one line per protocol transition.
//
// It is wired into the gate as a gate.Tracer (reader count lines, printed
// under the counter permit) and into the tasks as a protocol.Observer. All
// writes are serialized so lines never interleave. A quiet Printer writes
// only the banner and the closing lines.
type Printer struct {
	mu    sync.Mutex
	w     io.Writer
	quiet bool
	err   error
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, quiet bool) *Printer {
	return &Printer{w: w, quiet: quiet}
}

// Banner writes the start lines.
func (p *Printer) Banner(readers, writers int) {
	p.printf("*** Reader-Writer Problem Simulation ***\n")
	p.printf("Number of reader threads: %d\n", readers)
	p.printf("Number of writer threads: %d\n", writers)
}

// Finished writes the closing lines.
func (p *Printer) Finished(t Totals) {
	p.printf("All threads are done.\n")
	p.printf("Resources cleaned up.\n")
	p.printf("Run %s: %d writer sections, %d reads, %d races, %d violations in %s.\n",
		t.RunID, t.WriterSections, t.Reads, t.Races, t.Violations, units.HumanDuration(t.Duration))
}

// ReadEntered implements gate.Tracer.
func (p *Printer) ReadEntered(_ *task.Context, readers int) {
	p.progress("read_count increments to: %d.\n", readers)
}

// ReadExited implements gate.Tracer.
func (p *Printer) ReadExited(_ *task.Context, readers int) {
	p.progress("read_count decrements to: %d.\n", readers)
}

// WriteEntered implements gate.Tracer.
func (p *Printer) WriteEntered(*task.Context) {}

// WriteExited implements gate.Tracer.
func (p *Printer) WriteExited(*task.Context) {}

// TaskStarted implements protocol.Observer.
func (p *Printer) TaskStarted(tc *task.Context) {
	p.progress("%s is starting ...\n", tc)
}

// ReaderRead implements protocol.Observer.
func (p *Printer) ReaderRead(tc *task.Context, content string) {
	p.progress("%s is reading ... content : %s\n", tc, content)
}

// WriterWrote implements protocol.Observer.
func (p *Printer) WriterWrote(tc *task.Context, removed byte, remaining int) {
	p.progress("%s is writing ... removed %q, %d left\n", tc, removed, remaining)
}

// TaskExited implements protocol.Observer.
func (p *Printer) TaskExited(tc *task.Context) {
	p.progress("%s is exiting ...\n", tc)
}

// Err returns the first write error.
func (p *Printer) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Printer) progress(format string, args ...any) {
	if p.quiet {
		return
	}
	p.printf(format, args...)
}

func (p *Printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return
	}
	if _, err := fmt.Fprintf(p.w, format, args...); err != nil {
		p.err = err
	}
}
