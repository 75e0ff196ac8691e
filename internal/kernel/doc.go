// Package kernel provides the dependency-graph primitives of the atom runtime.
//
// The kernel knows nothing about atoms, actions or state. It holds two
// structures:
//
//   - CountedSet: an insertion-ordered multiset keyed by identity, where
//     removal only detaches an entry once its last reference is gone.
//   - Tree: a per-node adjacency map from leaf (event type) to a CountedSet
//     of transition functions.
//
// Transition functions are allocated from an Arena and identified by FnID,
// a stable comparable handle. Two structurally identical closures registered
// through different composition paths are distinct edges.
//
// # Ordering
//
// Every iteration in this package follows insertion order. Go map iteration is
// randomized, so the kernel keeps explicit order slices next to its maps; this
// is what makes a dispatch over the same snapshot reproducible.
//
// # Concurrency
//
// Nothing in this package is safe for concurrent mutation. Union and Disunion
// must be serialized with ForEach by the owner of the tree.
package kernel
