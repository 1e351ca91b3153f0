package cht

// Guard represents a reader's pin on the trie for the duration of a walk.
// The original engine's mtchm index threads a crossbeam_epoch Guard
// through every Get/Patch call so a node unlinked mid-walk isn't freed
// out from under a concurrent reader; Go's garbage collector already
// defers collection of any node a goroutine still holds a pointer to, so
// Guard carries no state here. It exists purely so callers that pin
// explicitly (mirroring the original's call shape) have something to
// hold and release — see DESIGN.md for why no deferred-free bookkeeping
// is needed.
type Guard struct{}

// Pin returns a Guard for the caller to hold across a sequence of Get or
// Patch calls. Release is a no-op kept for symmetry with code that pins
// once and walks the trie repeatedly under the same guard.
func Pin() *Guard { return &Guard{} }

// Release ends the pin. No-op: see Guard.
func (g *Guard) Release() {}
