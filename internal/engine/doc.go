// Package engine is the store wrapper around an atom graph.
//
// An Engine owns the authoritative snapshot for one root atom. Dispatch walks
// the engine's tree for the event type, merges the overlay into a new
// snapshot, advances the logical clock and notifies subscribers.
//
// Dispatches never overlap. A dispatch issued while another is in flight
// (from a listener, or from another goroutine) is queued and drained in FIFO
// order by the in-flight call once its listeners have returned. The number
// of dispatches one call may drain is bounded (WithMaxCascade).
//
// The engine also offers the single-writer loop pattern: Enqueue from any
// goroutine, Run in exactly one.
//
// Commits are all-or-nothing. A reducer error, or a journal failure, leaves
// the snapshot and the clock where they were.
//
// Atoms outside the root can be attached lazily with SubscribeAtom; their
// tree is unioned into the engine's tree and disunioned again after the last
// unsubscribe, dropping their values from the snapshot. The root's own atoms
// are never dropped.
package engine
