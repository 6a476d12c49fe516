package gate

import (
	"testing"

	"go.uber.org/atomic"

	"github.com/kolkov/rwgate/internal/race/detector"
	"github.com/kolkov/rwgate/internal/race/task"
)

// BenchmarkReadSection measures one uncontended enter/exit of the read side.
func BenchmarkReadSection(b *testing.B) {
	g := New()
	tc := task.New(task.Reader, 0, 0, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.EnterRead(tc)
		g.ExitRead(tc)
	}
}

// BenchmarkWriteSection measures one uncontended exclusive section.
func BenchmarkWriteSection(b *testing.B) {
	g := New()
	tc := task.New(task.Writer, 0, 0, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.EnterWrite(tc)
		g.ExitWrite(tc)
	}
}

// BenchmarkReadSection_Checked measures the read side with the checker wired.
func BenchmarkReadSection_Checked(b *testing.B) {
	d := detector.New(1)
	g := New(WithTracker(d))
	tc := task.New(task.Reader, 0, 0, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.EnterRead(tc)
		g.ExitRead(tc)
	}
}

// BenchmarkReadSection_Parallel measures shared reads under contention.
func BenchmarkReadSection_Parallel(b *testing.B) {
	g := New()
	var next atomic.Int32
	b.RunParallel(func(pb *testing.PB) {
		// Each goroutine needs its own TID: permits reject re-acquire by the holder.
		id := int(next.Inc()) - 1
		tc := task.New(task.Reader, id, id, 1)
		for pb.Next() {
			g.EnterRead(tc)
			g.ExitRead(tc)
		}
	})
}
