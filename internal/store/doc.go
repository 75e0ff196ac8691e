// Package store provides SQLite-backed durable storage for atomgraph
// dispatch journals.
//
// The store is an append-only log with:
//   - Sessions: one engine lifetime (graph hash, root atom)
//   - Dispatches: one committed dispatch per row, keyed by content-addressed ID
//
// # Ordering
//
// All ordering uses the engine's logical seq, never timestamps. Reads are
// ORDER BY seq ASC, id ASC COLLATE BINARY so repeated reads and replays see
// identical results.
//
// # Idempotency
//
// Dispatch IDs are derived from (session, seq, type, payload, key), so
// writing the same record twice is a no-op. A different record at an
// already used (session, seq) is a constraint violation.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Dispatches must reference a session
//
// Payloads, keys and id lists are stored as RFC 8785 canonical JSON via
// internal/ir.
package store
