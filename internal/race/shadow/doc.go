// Package shadow holds the access history the happens-before checker keeps
// for the shared buffer and for each permit.
//
// Two kinds of shadow cells exist:
//   - VarState: last write epoch plus read history for one buffer cell
//     (content or length). Reads start as a single epoch and are promoted to
//     a read vector clock once two readers overlap without ordering.
//   - SyncVar: the release clock of one permit. Release stores the
//     releasing task's clock, Acquire joins it into the acquirer.
//
// FastTrack rules used:
//
//	Acquire(p):  Ct := Ct ⊔ Lp
//	Release(p):  Lp := Ct;  Ct[t]++
//
// None of the types here synchronize themselves; the checker serializes all
// access.
package shadow
