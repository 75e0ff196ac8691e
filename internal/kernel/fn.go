package kernel

import "sync"

// FnID is the stable identity of a transition function within an Arena.
type FnID uint64

// Fn is a registered transition function. Identity is the FnID, never the
// closure itself.
type Fn[C any] struct {
	id    FnID
	owner ID
	run   func(C) error
}

// ID returns the function's arena handle.
func (f *Fn[C]) ID() FnID { return f.id }

// Owner returns the id of the node that registered the function.
func (f *Fn[C]) Owner() ID { return f.owner }

// Call runs the function against ctx.
func (f *Fn[C]) Call(ctx C) error { return f.run(ctx) }

// Arena allocates transition functions and hands out their FnIDs.
//
// Trees can only be merged with trees from the same arena; handles from two
// arenas are not comparable.
type Arena[C any] struct {
	mu  sync.Mutex
	fns []*Fn[C]
}

// NewArena creates an empty arena.
func NewArena[C any]() *Arena[C] {
	return &Arena[C]{}
}

// NewFn registers run under owner and returns its handle.
// Handles start at 1; 0 is never allocated.
func (a *Arena[C]) NewFn(owner ID, run func(C) error) *Fn[C] {
	a.mu.Lock()
	defer a.mu.Unlock()

	fn := &Fn[C]{
		id:    FnID(len(a.fns) + 1),
		owner: owner,
		run:   run,
	}
	a.fns = append(a.fns, fn)
	return fn
}

// Lookup resolves a handle. Returns nil for unknown handles.
func (a *Arena[C]) Lookup(id FnID) *Fn[C] {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id == 0 || int(id) > len(a.fns) {
		return nil
	}
	return a.fns[id-1]
}

// Len returns the number of functions allocated so far.
func (a *Arena[C]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.fns)
}
