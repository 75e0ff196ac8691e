package atom

import "fmt"

// DependencyKind tells a transition where its input value comes from.
// It is resolved once at registration time.
type DependencyKind int

const (
	// DependencyAction: the input is the dispatched payload.
	DependencyAction DependencyKind = iota + 1
	// DependencyAtom: the input is an upstream atom's value.
	DependencyAtom
)

// transition is the closure registered for one dependency of one atom.
type transition struct {
	atom     *Atom
	dep      ID
	depAtom  *Atom
	kind     DependencyKind
	reducer  Reducer
	lens     LensPair
	lensed   bool
	position int
}

// run applies the transition protocol to ctx:
//
//  1. resolve the atom's current value (overlay, then snapshot, else lazy)
//  2. resolve the dependency's value for this dispatch
//  3. skip unless the dependency is an action, changed, or the atom is lazy
//  4. reduce, through the lens when one is registered
//  5. write the overlay and record changed ids on an identity change
func (t *transition) run(ctx *Ctx) error {
	id := t.atom.id

	snapshot, inSnapshot := ctx.State[id]
	lazy := !inSnapshot
	if !lazy && ctx.Type == InitType {
		return nil
	}

	current, hasNew := ctx.StateNew[id]
	if !hasNew {
		current = snapshot
		if lazy {
			current = t.atom.initial
		}
	}

	var value any
	depChanged := false
	switch t.kind {
	case DependencyAction:
		value = ctx.Payload
	case DependencyAtom:
		if v, ok := ctx.StateNew[t.dep]; ok {
			value, depChanged = v, true
		} else if v, ok := ctx.State[t.dep]; ok {
			value = v
		} else {
			value = t.depAtom.initial
		}
	}

	if t.kind != DependencyAction && !depChanged && !lazy {
		return nil
	}
	ctx.steps++

	var (
		next       any
		sub        any
		subChanged bool
		err        error
	)
	if t.lensed {
		next, sub, subChanged, err = t.reduceLens(ctx, current, value)
	} else {
		next, err = t.reducer(current, value)
	}
	if err != nil {
		return err
	}
	if next == nil {
		return newConfigError(CodeUndefinedResult, id, t.position,
			"invalid state, reducer %d in %q returned nil", t.position, id)
	}

	// A lazy atom has no stored value yet, so its first result is always a write.
	if (lazy && !hasNew) || !Same(next, current) {
		ctx.StateNew[id] = next
		ctx.markChanged(id)
	}
	if subChanged {
		child := id + ID(fmt.Sprint(ctx.Key))
		ctx.StateNew[child] = sub
		ctx.markChild(child, id)
	}
	return nil
}

// reduceLens runs the reducer on the keyed sub-value and writes the result
// back into a shallow clone of the container. When the sub-value is
// unchanged the container is returned as is.
func (t *transition) reduceLens(ctx *Ctx, current, value any) (next, sub any, changed bool, err error) {
	prev, err := t.lens.Get(current, ctx.Key)
	if err != nil {
		return nil, nil, false, fmt.Errorf("atom %q lens get: %w", t.atom.id, err)
	}
	sub, err = t.reducer(prev, value)
	if err != nil {
		return nil, nil, false, err
	}
	if sub == nil {
		return nil, nil, false, newConfigError(CodeUndefinedResult, t.atom.id, t.position,
			"invalid state, lensed reducer %d in %q returned nil", t.position, t.atom.id)
	}
	if Same(prev, sub) {
		return current, nil, false, nil
	}
	next, err = t.lens.Set(current, ctx.Key, sub)
	if err != nil {
		return nil, nil, false, fmt.Errorf("atom %q lens set: %w", t.atom.id, err)
	}
	return next, sub, true, nil
}
