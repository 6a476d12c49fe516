// Package detector implements a FastTrack happens-before checker for the
// readers-writers gate.
//
// The checker does not instrument arbitrary memory. It watches exactly the
// events the gate produces:
//   - permit acquire/release (resource permit, counter permit)
//   - reads and writes of the two buffer cells (content, length)
//
// A correct readers-preferring run orders every write after all earlier
// reads through the permit chain, so the checker reports nothing. A run that
// checks the buffer length outside the permits (the racy loop check) lets a
// reader observe a writer's update without ordering, and the checker reports
// a write-read conflict on the length cell.
//
// Report format follows the Go race detector:
//
//	==================
//	WARNING: DATA RACE
//	Read at length by reader 0 (epoch 3@0)
//	Previous write at length by writer 0 (epoch 7@1)
//	==================
package detector
