// Package rwgate runs the readers-writers simulation.
//
// A fixed byte buffer is shared by N reader tasks and M writer tasks.
// Readers observe the buffer concurrently; each writer removes the last
// byte in an exclusive section. Every task exits once the buffer is empty.
//
// Protocol:
//
// Readers count themselves in and out under a counter permit. The first
// reader in takes the resource permit on behalf of all readers and the
// last reader out gives it back. Writers take the resource permit alone.
// The protocol prefers readers: a writer waits as long as any reader is
// counted in, so a steady stream of readers can starve writers.
//
// Checking:
//
// Every run is watched by an invariant monitor (mutual exclusion, counter
// non-negativity, monotonic shrink) and, unless disabled, by a FastTrack
// happens-before checker over the permit operations and buffer accesses.
// A correct run reports no violation and no race.
//
// Basic usage:
//
//	res, err := rwgate.Run(ctx, rwgate.Options{Readers: 3, Writers: 2})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(res.WriterSections)
//
// The rwgate command wraps Run with argument parsing and a YAML config file:
//
//	rwgate 3 2 --read-pause 10ms --write-pause 10ms
package rwgate
