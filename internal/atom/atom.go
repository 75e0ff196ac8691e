package atom

import (
	"fmt"
	"slices"
)

// Reducer computes an atom's next value from its current value and the
// dependency's value (an action payload or an upstream atom's value).
// It must return a non-nil value; returning an error aborts the dispatch.
type Reducer func(state, value any) (any, error)

// Atom is a named, cacheable computation node. Its value lives in a
// Snapshot under ID; the Atom itself only carries the wiring.
type Atom struct {
	id      ID
	graph   *Graph
	initial any
	tree    *Tree
	deps    []ID
	depSet  map[ID]struct{}
	size    int
}

// ID returns the atom id.
func (a *Atom) ID() ID { return a.id }

// Tree returns the atom's dependency tree. Callers must not mutate it.
func (a *Atom) Tree() *Tree { return a.tree }

func (a *Atom) owner() *Graph {
	if a == nil {
		return nil
	}
	return a.graph
}

// Graph returns the graph a was declared in.
func (a *Atom) Graph() *Graph { return a.graph }

// Initial returns the declared initial value.
func (a *Atom) Initial() any { return a.initial }

// Deps returns the ids of every atom this atom transitively depends on,
// in the order they were first reached.
func (a *Atom) Deps() []ID { return slices.Clone(a.deps) }

// DependsOn reports whether id is a transitive upstream atom.
func (a *Atom) DependsOn(id ID) bool {
	_, ok := a.depSet[id]
	return ok
}

// Transitions returns the number of dependency registrations, including
// the implicit init transition.
func (a *Atom) Transitions() int { return a.size }

// Run dispatches ev against state using this atom's tree. A nil ev runs the
// init action. The input snapshot is never modified.
func (a *Atom) Run(state Snapshot, ev *Event) (Snapshot, []ID, error) {
	e := InitEvent()
	if ev != nil {
		e = *ev
	}
	return Dispatch(a.tree, state, e)
}

// Get reads a's value from state. If state has no entry the atom is lazy and
// ok is false.
func (a *Atom) Get(state Snapshot) (any, bool) {
	v, ok := state[a.id]
	return v, ok
}

// GetState reads a's value from state with a type assertion.
func GetState[T any](state Snapshot, a *Atom) (T, bool) {
	var zero T
	v, ok := state[a.id]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Decl is handed to the declaration callback of Graph.Atom. It is only valid
// during the callback; using it afterwards panics with CodeSealed.
type Decl struct {
	atom     *Atom
	direct   map[ID]struct{}
	position int
	sealed   bool
	err      error
}

// On registers reducer to run when dep fires. dep is an *Action (the reducer
// receives the payload) or an *Atom (the reducer receives its value whenever
// it changes).
func (d *Decl) On(dep Unit, reducer Reducer) {
	d.on(dep, reducer, nil)
}

// Lens registers reducer against a single keyed entry of the atom's value.
// The event's Key selects the entry. Without an explicit pair the default
// lens handles map[string]any and []any values.
func (d *Decl) Lens(dep *Action, reducer Reducer, lens ...LensPair) {
	pair := DefaultLens
	if len(lens) > 0 {
		pair = lens[0]
	}
	d.on(dep, reducer, &pair)
}

// ID returns the id of the atom being declared.
func (d *Decl) ID() ID { return d.atom.id }

func (d *Decl) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *Decl) on(dep Unit, reducer Reducer, lens *LensPair) {
	a := d.atom
	if d.sealed {
		panic(newConfigError(CodeSealed, a.id, -1, "cannot define dependencies after atom initialization"))
	}
	if d.err != nil {
		return
	}

	position := d.position
	d.position++

	if dep == nil || dep.owner() != a.graph {
		d.fail(newConfigError(CodeInvalidDependency, a.id, position, "invalid dependency"))
		return
	}
	if reducer == nil {
		d.fail(newConfigError(CodeInvalidReducer, a.id, position, "reducer must be a function"))
		return
	}

	t := &transition{
		atom:     a,
		dep:      dep.ID(),
		reducer:  reducer,
		position: position,
	}

	switch u := dep.(type) {
	case *Action:
		t.kind = DependencyAction
	case *Atom:
		t.kind = DependencyAtom
		t.depAtom = u
		if lens != nil {
			d.fail(newConfigError(CodeLensOnAtom, a.id, position, "cannot depend on atom %q in lens, use an action", u.id))
			return
		}
		if err := d.addDeps(u, position); err != nil {
			d.fail(err)
			return
		}
	default:
		d.fail(newConfigError(CodeInvalidDependency, a.id, position, "unsupported dependency %T", dep))
		return
	}
	if lens != nil {
		t.lens = *lens
		t.lensed = true
	}

	depTree := dep.Tree()
	if err := a.tree.Union(depTree); err != nil {
		d.fail(fmt.Errorf("atom %q: %w", a.id, err))
		return
	}

	fn := a.graph.arena.NewFn(a.id, t.run)
	if t.kind == DependencyAction {
		a.tree.AddFn(fn, dep.ID())
	} else {
		for _, leaf := range depTree.Leaves() {
			a.tree.AddFn(fn, leaf)
		}
	}
	a.size++
}

// addDeps records u as a direct dependency and merges u's transitive deps
// and u itself into a's dependency set. Declaring the same upstream atom
// twice is a duplicate; reaching it again through another atom (a diamond)
// is not.
func (d *Decl) addDeps(u *Atom, position int) error {
	a := d.atom
	if _, ok := d.direct[u.id]; ok {
		return newConfigError(CodeDuplicateDependency, a.id, position, "one of dependencies has the equal id %q", u.id)
	}
	d.direct[u.id] = struct{}{}
	for _, id := range append(u.Deps(), u.id) {
		if _, ok := a.depSet[id]; ok {
			continue
		}
		a.depSet[id] = struct{}{}
		a.deps = append(a.deps, id)
	}
	return nil
}

// Atom declares a new atom named name with the given initial value. declare
// receives a Decl to register dependencies on; it may be nil for an atom
// that only ever holds its initial value.
func (g *Graph) Atom(name string, initial any, declare func(d *Decl)) (*Atom, error) {
	id := g.name(name, "atom")
	if initial == nil {
		return nil, newConfigError(CodeUndefinedInitial, id, -1, "initial state can't be nil")
	}
	if err := g.reserve(id, KindAtom); err != nil {
		return nil, err
	}

	a := &Atom{
		id:      id,
		graph:   g,
		initial: initial,
		tree:    g.NewTree(id),
		depSet:  make(map[ID]struct{}),
	}

	d := &Decl{atom: a, direct: make(map[ID]struct{})}
	d.on(g.init, initReducer, nil)
	if declare != nil {
		declare(d)
	}
	d.sealed = true

	if d.err != nil {
		return nil, d.err
	}
	return a, nil
}

// initReducer keeps whatever the transition resolved as current state; for
// a lazy atom that is the declared initial value.
func initReducer(state, _ any) (any, error) {
	return state, nil
}
