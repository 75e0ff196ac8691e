// Package harness runs conformance scenarios against atom graphs.
//
// A scenario names a CUE graph directory, a root atom, a list of steps
// and assertions over the result. Steps dispatch real events into an
// engine; nothing is simulated.
//
// # Scenario Format
//
//	name: counter
//	description: "Setting the count updates its derived atoms"
//	graph: ../graphs/counter     # relative to the scenario file
//	root: Dash                   # combine of every atom when empty
//	steps:
//	  - dispatch: setCount
//	    payload: 5
//	    expect:
//	      changed: [Count, Dash, Double]
//	      state: { Count: 5, Double: 10 }
//	  - subscribe: Todos         # lazily attach an atom outside the root
//	  - dispatch: toggleTodo
//	    key: "id#1"
//	  - unsubscribe: Todos
//	assertions:
//	  - type: final_state
//	    atom: Count
//	    expect: 5
//	  - type: changed_contains
//	    step: 1
//	    ids: [Double]
//	  - type: deterministic
//
// # Assertion Types
//
//   - final_state: an atom's value after the last step
//   - changed_contains: ids a dispatch step changed (default: the last one)
//   - changed_excludes: ids a dispatch step must not change
//   - changed_count: how many ids a dispatch step changed
//   - deterministic: the journal replays cleanly and a second run
//     produces the same trace
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory SQLite journal, a fixed session token
// (scenario.session or testutil.DefaultSession) and a resettable logical
// clock, so traces are byte-identical across runs and can be compared
// against golden files.
package harness
