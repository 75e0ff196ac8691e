package atom

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Mapper derives a value from a source atom's value.
type Mapper func(value any) (any, error)

// Map declares an atom whose only dependency is source. Whenever source
// changes it holds transform(source value); its previous value is ignored.
// The initial value is transform(source.Initial()).
//
// An empty name defaults to "<source> [map]".
func (g *Graph) Map(name string, source *Atom, transform Mapper) (*Atom, error) {
	if source == nil || source.graph != g {
		return nil, newConfigError(CodeInvalidDependency, ID(name), -1, "map source must be an atom of this graph")
	}
	if transform == nil {
		return nil, newConfigError(CodeInvalidReducer, ID(name), -1, "mapper must be a function")
	}
	if name == "" {
		name = string(source.id) + " [map]"
	}

	initial, err := transform(source.initial)
	if err != nil {
		return nil, fmt.Errorf("map %q initial value: %w", name, err)
	}
	return g.Atom(name, initial, func(d *Decl) {
		d.On(source, func(_, value any) (any, error) {
			return transform(value)
		})
	})
}

// Field names one source of a keyed Combine.
type Field struct {
	Key  string
	Atom *Atom
}

// F is shorthand for Field.
func F(key string, a *Atom) Field {
	return Field{Key: key, Atom: a}
}

// Combine declares an atom holding a map[string]any with one entry per
// field. Each field's transition writes only its own key into a shallow
// clone of the combined value. Fields are wired in the given order.
//
// An empty name defaults to "{k1,k2,...}".
func (g *Graph) Combine(name string, fields ...Field) (*Atom, error) {
	if len(fields) == 0 {
		return nil, newConfigError(CodeEmptyShape, ID(name), -1, "combine needs at least one source")
	}
	keys := make([]string, len(fields))
	initial := make(map[string]any, len(fields))
	for i, f := range fields {
		if f.Atom == nil {
			return nil, newConfigError(CodeInvalidDependency, ID(name), i+1, "combine field %q has no atom", f.Key)
		}
		keys[i] = f.Key
		initial[f.Key] = f.Atom.initial
	}
	if name == "" {
		name = "{" + strings.Join(keys, ",") + "}"
	}

	return g.Atom(name, initial, func(d *Decl) {
		for _, f := range fields {
			key := f.Key
			d.On(f.Atom, func(state, value any) (any, error) {
				prev, _ := state.(map[string]any)
				next := make(map[string]any, len(prev)+1)
				maps.Copy(next, prev)
				next[key] = value
				return next, nil
			})
		}
	})
}

// CombineList declares an atom holding a []any with one element per source,
// in order. Each source's transition writes only its own index.
//
// An empty name defaults to "[a,b,...]" over the source ids.
func (g *Graph) CombineList(name string, sources ...*Atom) (*Atom, error) {
	if len(sources) == 0 {
		return nil, newConfigError(CodeEmptyShape, ID(name), -1, "combine needs at least one source")
	}
	ids := make([]string, len(sources))
	initial := make([]any, len(sources))
	for i, s := range sources {
		if s == nil {
			return nil, newConfigError(CodeInvalidDependency, ID(name), i+1, "combine index %d has no atom", i)
		}
		ids[i] = string(s.id)
		initial[i] = s.initial
	}
	if name == "" {
		name = "[" + strings.Join(ids, ",") + "]"
	}

	return g.Atom(name, initial, func(d *Decl) {
		for i, s := range sources {
			index := i
			d.On(s, func(state, value any) (any, error) {
				prev, _ := state.([]any)
				next := slices.Clone(prev)
				if len(next) < len(sources) {
					next = append(next, make([]any, len(sources)-len(next))...)
				}
				next[index] = value
				return next, nil
			})
		}
	})
}
