package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/atomgraph/internal/ir"
)

// LoadDir loads the CUE package in dir and compiles its top-level graph
// field. Errors are *CompileError with Field "load" (package could not be
// loaded), "cue" (evaluation failed) or "graph" (no graph field), or
// whatever CompileGraph returns.
func LoadDir(dir string) (*ir.GraphSpec, error) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &CompileError{Field: "load", Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &CompileError{Field: "load", Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	graph := value.LookupPath(cue.ParsePath("graph"))
	if !graph.Exists() {
		return nil, &CompileError{Field: "graph", Message: fmt.Sprintf("no graph field in %s", dir)}
	}
	return CompileGraph(graph)
}

// BuildDir loads and builds the graph in dir.
func BuildDir(dir string, opts ...BuildOption) (*Graph, error) {
	spec, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return Build(spec, opts...)
}
