// Package atom implements the atom runtime: named computation nodes that
// derive and cache values from immutable snapshots of a shared state map,
// recomputing only the nodes reachable from a dispatched event.
//
// # Model
//
// A Graph owns the identifier namespace and the function arena. Actions are
// leaves (dispatchable event types); atoms are state slices. Each atom owns a
// kernel.Tree which, after construction, is the transitive closure of every
// transition that any of its upstream dependencies registers. Dispatching an
// event therefore walks exactly one tree:
//
//	g := atom.NewGraph()
//	setCount, _ := g.Action("setCount")
//	count, _ := g.Atom("Count", 0, func(d *atom.Decl) {
//	    d.On(setCount, atom.Reduce(func(_ int, n int) int { return n }))
//	})
//	state, changed, err := count.Run(nil, nil)             // init
//	state, changed, err = count.Run(state, ptr(setCount.With(5)))
//
// Atom values live in the Snapshot, never inside the Atom. Run is a pure
// function of (snapshot, event) -> (snapshot, changed ids).
//
// # Transition protocol
//
// Every dependency registration produces one transition closed over the
// declaring atom, the dependency and its kind (action or atom), and an
// optional lens. A transition recomputes only when its dependency is an
// action, when the upstream atom changed in this dispatch, or when the atom is
// initializing lazily. Identity, not deep equality, decides whether a value
// changed (see Same).
//
// # Errors
//
// Misuse of the declaration API is reported as *ConfigError. A reducer that
// returns nil is reported at dispatch time with code CodeUndefinedResult.
// Errors returned by reducers propagate unmodified; the snapshot passed to
// Run is never modified.
package atom
