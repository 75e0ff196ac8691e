package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/atomgraph/internal/ir"
)

// Cycle is a dependency loop between atoms. Atoms can only depend on atoms
// declared before them, so a cycle makes the graph unbuildable.
type Cycle struct {
	Path    []string `json:"path"`    // Cycle path: ["A", "B", "A"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeCycles finds every dependency cycle among the atoms, maps and
// combines of spec.
//
// The algorithm:
//  1. Build an atom -> upstream atoms graph from on-clauses, map sources
//     and combine fields
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle
//
// Unknown names are ignored here; Validate reports them separately.
// A DAG returns an empty list.
func AnalyzeCycles(spec *ir.GraphSpec) []Cycle {
	graph := buildDependencyGraph(spec)

	cycles := []Cycle{}
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			cycles = append(cycles, sccToCycle(scc, graph))
		}
	}
	return cycles
}

// TopoOrder returns the atom names of spec ordered so that every atom comes
// after the atoms it depends on. Ties break by name, so the order is
// deterministic.
func TopoOrder(spec *ir.GraphSpec) ([]string, error) {
	graph := buildDependencyGraph(spec)

	pending := make(map[string]int, len(graph))
	dependents := make(map[string][]string)
	for node, deps := range graph {
		pending[node] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], node)
		}
	}

	var ready []string
	for node, n := range pending {
		if n == 0 {
			ready = append(ready, node)
		}
	}
	slices.Sort(ready)

	order := make([]string, 0, len(graph))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)

		var next []string
		for _, d := range dependents[node] {
			pending[d]--
			if pending[d] == 0 {
				next = append(next, d)
			}
		}
		ready = append(ready, next...)
		slices.Sort(ready)
	}

	if len(order) != len(graph) {
		cycles := AnalyzeCycles(spec)
		if len(cycles) > 0 {
			return nil, fmt.Errorf("%s", cycles[0].Message)
		}
		return nil, fmt.Errorf("dependency cycle")
	}
	return order, nil
}

// dependencyGraph maps atom name -> distinct upstream atom names, sorted.
type dependencyGraph map[string][]string

// buildDependencyGraph constructs the atom dependency graph. Edges point to
// known atom names only.
func buildDependencyGraph(spec *ir.GraphSpec) dependencyGraph {
	graph := make(dependencyGraph)
	for _, a := range spec.Atoms {
		graph[a.Name] = nil
	}
	for _, m := range spec.Maps {
		graph[m.Name] = nil
	}
	for _, c := range spec.Combines {
		graph[c.Name] = nil
	}

	add := func(node, dep string) {
		if _, ok := graph[dep]; !ok {
			return
		}
		if !slices.Contains(graph[node], dep) {
			graph[node] = append(graph[node], dep)
		}
	}
	for _, a := range spec.Atoms {
		for _, c := range a.On {
			if c.Atom != "" {
				add(a.Name, c.Atom)
			}
		}
	}
	for _, m := range spec.Maps {
		add(m.Name, m.Source)
	}
	for _, c := range spec.Combines {
		for _, f := range c.Fields {
			add(c.Name, f)
		}
	}

	for node := range graph {
		slices.Sort(graph[node])
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in name order so results are stable.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// sccToCycle converts an SCC to a Cycle with a concrete loop path.
func sccToCycle(scc []string, graph dependencyGraph) Cycle {
	if len(scc) == 1 {
		name := scc[0]
		return Cycle{
			Path:    []string{name, name},
			Message: fmt.Sprintf("atom depends on itself: %s -> %s", name, name),
		}
	}

	path := reconstructCyclePath(scc, graph)
	return Cycle{
		Path:    path,
		Message: fmt.Sprintf("dependency cycle: %s", strings.Join(path, " -> ")),
	}
}

// reconstructCyclePath walks edges inside the SCC from its first member
// until it returns to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	inSCC := make(map[string]bool, len(scc))
	for _, node := range scc {
		inSCC[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if inSCC[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
