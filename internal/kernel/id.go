package kernel

// ID names a node in the graph. Action leaves and atom ids share this
// namespace, so a graph must never use the same ID for both.
type ID string

// Leaf is the ID of a dispatchable event type, used as the lookup key
// in a Tree.
type Leaf = ID
