// Package compiler turns CUE graph definitions into ir.GraphSpec values and
// builds live atom graphs from them.
//
// A graph definition lives under a top-level `graph` field:
//
//	graph: {
//		actions: ["setCount", "toggleTodo"]
//		atoms: {
//			Count: {initial: 0, on: [{action: "setCount", reduce: "set"}]}
//			Todos: {initial: {}, on: [{action: "toggleTodo", reduce: "toggle", lens: true}]}
//		}
//		maps: Double: {source: "Count", transform: "double"}
//		combines: Dash: {fields: ["Count", "Double"]}
//	}
//
// Compilation is three steps: CompileGraph parses CUE into IR, Validate
// reports every structural problem with a coded ValidationError, and Build
// declares the atoms in dependency order using named reducers and
// transforms from a Registry.
package compiler
