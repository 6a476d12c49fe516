package detector

import (
	"fmt"
	"io"
	"strings"

	"github.com/kolkov/rwgate/internal/race/epoch"
)

// AccessType represents the type of buffer access (Read or Write).
type AccessType int

const (
	// AccessRead indicates a read access.
	AccessRead AccessType = iota
	// AccessWrite indicates a write access.
	AccessWrite
)

// String returns "Read" or "Write".
func (a AccessType) String() string {
	switch a {
	case AccessRead:
		return "Read"
	case AccessWrite:
		return "Write"
	default:
		return "Unknown"
	}
}

// Race type constants for deduplication and reporting.
const (
	// RaceTypeWriteWrite indicates two unordered writes.
	RaceTypeWriteWrite = "write-write"
	// RaceTypeReadWrite indicates a write unordered with an earlier read.
	RaceTypeReadWrite = "read-write"
	// RaceTypeWriteRead indicates a read unordered with an earlier write.
	RaceTypeWriteRead = "write-read"
)

// Access describes one side of a conflict.
type Access struct {
	Type  AccessType
	Task  string // log name, e.g. "writer 0"
	TID   int
	Epoch epoch.Epoch
}

// Report is one detected conflict between two accesses to the same cell.
type Report struct {
	Type     string
	Cell     string
	Current  Access
	Previous Access

	// Key identifies the conflict location: "{type}:{cell}:{tidA}:{tidB}"
	// with tidA <= tidB, so the same pair is reported once.
	Key string
}

// deduplicationKey builds Report.Key.
//
// Example:
//
//	deduplicationKey(RaceTypeWriteRead, "length", 5, 3)
//	// "write-read:length:3:5"
func deduplicationKey(raceType, cell string, tidA, tidB int) string {
	return fmt.Sprintf("%s:%s:%d:%d", raceType, cell, min(tidA, tidB), max(tidA, tidB))
}

// String formats the report as a race detector block.
func (r *Report) String() string {
	var b strings.Builder
	b.WriteString("==================\n")
	b.WriteString("WARNING: DATA RACE\n")
	fmt.Fprintf(&b, "%s at %s by %s (epoch %s)\n", r.Current.Type, r.Cell, r.Current.Task, r.Current.Epoch)
	fmt.Fprintf(&b, "Previous %s at %s by %s (epoch %s)\n",
		strings.ToLower(r.Previous.Type.String()), r.Cell, r.Previous.Task, r.Previous.Epoch)
	b.WriteString("==================\n")
	return b.String()
}

// Fprint writes every collected report followed by a one-line summary.
//
// Nothing is written when no conflict was found.
func (d *Detector) Fprint(w io.Writer) error {
	reports := d.Reports()
	if len(reports) == 0 {
		return nil
	}
	for i := range reports {
		if _, err := io.WriteString(w, reports[i].String()); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Found %d data race(s)\n", len(reports))
	return err
}
