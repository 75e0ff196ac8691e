package compiler

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/roach88/atomgraph/internal/atom"
	"github.com/roach88/atomgraph/internal/ir"
)

// DefaultRoot names the root atom that combines every declared atom.
const DefaultRoot = "@@root"

// ValidationErrors is returned by Build when the spec does not validate.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return strings.Join(msgs, "; ")
}

// Graph is a built graph definition: the live atoms plus the spec they came
// from.
type Graph struct {
	Spec  *ir.GraphSpec
	Hash  string
	Order []string

	graph   *atom.Graph
	actions map[string]*atom.Action
	atoms   map[string]*atom.Atom

	mu   sync.Mutex
	root *atom.Atom
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	registry *Registry
}

// WithRegistry resolves reducer and transform names against r instead of
// the builtins.
func WithRegistry(r *Registry) BuildOption {
	return func(c *buildConfig) {
		c.registry = r
	}
}

// Build validates spec and declares its atoms in dependency order.
func Build(spec *ir.GraphSpec, opts ...BuildOption) (*Graph, error) {
	cfg := buildConfig{registry: NewRegistry()}
	for _, opt := range opts {
		opt(&cfg)
	}

	if errs := Validate(spec, cfg.registry); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	order, err := TopoOrder(spec)
	if err != nil {
		return nil, err
	}
	hash, err := ir.GraphHash(*spec)
	if err != nil {
		return nil, fmt.Errorf("hash graph: %w", err)
	}

	g := &Graph{
		Spec:    spec,
		Hash:    hash,
		Order:   order,
		graph:   atom.NewGraph(),
		actions: make(map[string]*atom.Action, len(spec.Actions)),
		atoms:   make(map[string]*atom.Atom, len(order)),
	}

	for _, name := range spec.Actions {
		a, err := g.graph.Action(name)
		if err != nil {
			return nil, err
		}
		g.actions[name] = a
	}

	plain := make(map[string]ir.AtomSpec, len(spec.Atoms))
	for _, a := range spec.Atoms {
		plain[a.Name] = a
	}
	mapped := make(map[string]ir.MapSpec, len(spec.Maps))
	for _, m := range spec.Maps {
		mapped[m.Name] = m
	}
	combined := make(map[string]ir.CombineSpec, len(spec.Combines))
	for _, c := range spec.Combines {
		combined[c.Name] = c
	}

	for _, name := range order {
		var (
			a   *atom.Atom
			err error
		)
		switch {
		case hasKey(plain, name):
			a, err = g.declareAtom(plain[name], cfg.registry)
		case hasKey(mapped, name):
			m := mapped[name]
			transform, _ := cfg.registry.Transform(m.Transform)
			a, err = g.graph.Map(name, g.atoms[m.Source], transform)
		default:
			a, err = g.declareCombine(combined[name])
		}
		if err != nil {
			return nil, fmt.Errorf("build %q: %w", name, err)
		}
		g.atoms[name] = a
	}

	return g, nil
}

func hasKey[V any](m map[string]V, k string) bool {
	_, ok := m[k]
	return ok
}

func (g *Graph) declareAtom(spec ir.AtomSpec, reg *Registry) (*atom.Atom, error) {
	initial := ir.ToGo(spec.Initial)
	return g.graph.Atom(spec.Name, initial, func(d *atom.Decl) {
		for _, c := range spec.On {
			factory, _ := reg.Reducer(c.Reduce)
			reducer := factory(initial)
			switch {
			case c.Lens:
				d.Lens(g.actions[c.Action], reducer)
			case c.Action != "":
				d.On(g.actions[c.Action], reducer)
			default:
				d.On(g.atoms[c.Atom], reducer)
			}
		}
	})
}

func (g *Graph) declareCombine(spec ir.CombineSpec) (*atom.Atom, error) {
	if spec.List {
		sources := make([]*atom.Atom, len(spec.Fields))
		for i, f := range spec.Fields {
			sources[i] = g.atoms[f]
		}
		return g.graph.CombineList(spec.Name, sources...)
	}
	fields := make([]atom.Field, len(spec.Fields))
	for i, f := range spec.Fields {
		fields[i] = atom.F(f, g.atoms[f])
	}
	return g.graph.Combine(spec.Name, fields...)
}

// Graph returns the underlying atom graph.
func (g *Graph) Graph() *atom.Graph { return g.graph }

// Action returns the declared action with the given name.
func (g *Graph) Action(name string) (*atom.Action, bool) {
	a, ok := g.actions[name]
	return a, ok
}

// Atom returns the declared atom, map or combine with the given name.
func (g *Graph) Atom(name string) (*atom.Atom, bool) {
	a, ok := g.atoms[name]
	return a, ok
}

// Lookup resolves an atom id, including DefaultRoot once built. It is
// suitable for engine.WithResolver.
func (g *Graph) Lookup(id atom.ID) (*atom.Atom, bool) {
	if a, ok := g.atoms[string(id)]; ok {
		return a, true
	}
	if string(id) == DefaultRoot {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.root, g.root != nil
	}
	return nil, false
}

// Root returns the named atom, or for "" and DefaultRoot an atom combining
// every declared atom keyed by name. The combined root is declared once and
// reused.
func (g *Graph) Root(name string) (*atom.Atom, error) {
	if name != "" && name != DefaultRoot {
		a, ok := g.atoms[name]
		if !ok {
			return nil, fmt.Errorf("unknown root atom %q", name)
		}
		return a, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.root != nil {
		return g.root, nil
	}
	if len(g.Order) == 0 {
		return nil, errors.New("graph declares no atoms")
	}
	fields := make([]atom.Field, len(g.Order))
	for i, n := range g.Order {
		fields[i] = atom.F(n, g.atoms[n])
	}
	root, err := g.graph.Combine(DefaultRoot, fields...)
	if err != nil {
		return nil, err
	}
	g.root = root
	return root, nil
}

// Event builds an event for the named action.
func (g *Graph) Event(action string, payload, key any) (atom.Event, error) {
	a, ok := g.actions[action]
	if !ok {
		return atom.Event{}, fmt.Errorf("unknown action %q", action)
	}
	return a.WithKey(key, payload), nil
}
