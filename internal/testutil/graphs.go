package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// CounterGraph is a small CUE graph: a settable counter, its double, a
// dashboard combining both and a lensed todo map.
const CounterGraph = `package counter

graph: {
	actions: ["setCount", "inc", "toggleTodo"]
	atoms: {
		Count: {
			initial: 0
			on: [
				{action: "setCount", reduce: "set"},
				{action: "inc", reduce: "inc"},
			]
		}
		Todos: {
			initial: {"id#1": false, "id#2": false}
			on: [{action: "toggleTodo", reduce: "toggle", lens: true}]
		}
	}
	maps: Double: {source: "Count", transform: "double"}
	combines: Dash: {fields: ["Count", "Double"]}
}
`

// InvalidGraph declares an unknown reducer and a dependency cycle.
const InvalidGraph = `package broken

graph: {
	actions: ["go"]
	atoms: {
		A: {initial: 0, on: [{atom: "B", reduce: "set"}]}
		B: {initial: 0, on: [{atom: "A", reduce: "set"}, {action: "go", reduce: "nope"}]}
	}
}
`

// WriteGraphDir writes src as graph.cue in a fresh temp directory and
// returns the directory.
func WriteGraphDir(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	WriteFile(t, filepath.Join(dir, "graph.cue"), src)
	return dir
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
