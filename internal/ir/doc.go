// Package ir holds the serializable forms of atomgraph data: the sealed
// IRValue tree, RFC 8785 canonical JSON, content hashes, graph definitions
// and journal records.
//
// ir imports nothing internal. Other packages convert their live Go values
// to IR at the boundary (journal, golden traces, graph compilation).
//
// Constraints:
//   - no floats; numbers are int64 so hashes are stable across platforms
//   - object keys are ordered by UTF-16 code units when serialized
//   - JSON tags use snake_case
//   - sequence numbers are logical, never wall-clock
package ir
