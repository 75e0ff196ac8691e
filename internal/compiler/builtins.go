package compiler

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/atomgraph/internal/atom"
)

// ReducerFactory builds a reducer for one atom. initial is the atom's
// declared initial value, for reducers such as reset.
type ReducerFactory func(initial any) atom.Reducer

// Registry names the reducers and transforms a graph definition can use.
type Registry struct {
	reducers   map[string]ReducerFactory
	transforms map[string]atom.Mapper
}

// NewRegistry returns a registry holding the builtin vocabulary.
func NewRegistry() *Registry {
	r := &Registry{
		reducers:   make(map[string]ReducerFactory),
		transforms: make(map[string]atom.Mapper),
	}

	r.reducers["set"] = stateless(func(_, value any) (any, error) { return value, nil })
	r.reducers["keep"] = stateless(func(state, _ any) (any, error) { return state, nil })
	r.reducers["reset"] = func(initial any) atom.Reducer {
		return func(_, _ any) (any, error) { return initial, nil }
	}
	r.reducers["add"] = stateless(atom.Reduce(func(n, by int) int { return n + by }))
	r.reducers["inc"] = stateless(atom.Reduce(func(n int, _ any) int { return n + 1 }))
	r.reducers["dec"] = stateless(atom.Reduce(func(n int, _ any) int { return n - 1 }))
	r.reducers["toggle"] = stateless(atom.Reduce(func(b bool, _ any) bool { return !b }))
	r.reducers["append"] = stateless(atom.Reduce(func(list []any, v any) []any {
		return append(slices.Clip(list), v)
	}))
	r.reducers["merge"] = stateless(atom.Reduce(func(m, patch map[string]any) map[string]any {
		out := make(map[string]any, len(m)+len(patch))
		maps.Copy(out, m)
		maps.Copy(out, patch)
		return out
	}))

	r.transforms["identity"] = func(v any) (any, error) { return v, nil }
	r.transforms["double"] = atom.Transform(func(n int) int { return n * 2 })
	r.transforms["negate"] = atom.Transform(func(n int) int { return -n })
	r.transforms["not"] = atom.Transform(func(b bool) bool { return !b })
	r.transforms["string"] = func(v any) (any, error) { return fmt.Sprint(v), nil }
	r.transforms["len"] = lengthOf
	r.transforms["keys"] = atom.Transform(func(m map[string]any) []any {
		keys := make([]any, 0, len(m))
		for _, k := range slices.Sorted(maps.Keys(m)) {
			keys = append(keys, k)
		}
		return keys
	})

	return r
}

func stateless(r atom.Reducer) ReducerFactory {
	return func(any) atom.Reducer { return r }
}

func lengthOf(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case string:
		return len(val), nil
	case []any:
		return len(val), nil
	case map[string]any:
		return len(val), nil
	default:
		return nil, fmt.Errorf("%w: len of %T", atom.ErrTypeMismatch, v)
	}
}

// RegisterReducer adds or replaces a named reducer.
func (r *Registry) RegisterReducer(name string, f ReducerFactory) {
	r.reducers[name] = f
}

// RegisterTransform adds or replaces a named transform.
func (r *Registry) RegisterTransform(name string, fn atom.Mapper) {
	r.transforms[name] = fn
}

// Reducer returns the factory registered under name.
func (r *Registry) Reducer(name string) (ReducerFactory, bool) {
	f, ok := r.reducers[name]
	return f, ok
}

// Transform returns the mapper registered under name.
func (r *Registry) Transform(name string) (atom.Mapper, bool) {
	fn, ok := r.transforms[name]
	return fn, ok
}

// ReducerNames returns the registered reducer names, sorted.
func (r *Registry) ReducerNames() []string {
	return slices.Sorted(maps.Keys(r.reducers))
}

// TransformNames returns the registered transform names, sorted.
func (r *Registry) TransformNames() []string {
	return slices.Sorted(maps.Keys(r.transforms))
}
