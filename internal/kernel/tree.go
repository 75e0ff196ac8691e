package kernel

import (
	"errors"
	"fmt"
	"slices"
)

// errStop ends a ForEach early without reporting an error.
var errStop = errors.New("stop")

// ErrForeignTree is returned when merging trees allocated from different arenas.
var ErrForeignTree = errors.New("tree belongs to a different arena")

// Tree maps each leaf to the counted set of transition functions that must
// run when that leaf is dispatched.
//
// A tree is owned by exactly one node. Union absorbs another tree's edges so
// that walking a single tree is enough to reach every transition of every
// upstream node, without recursion at dispatch time.
type Tree[C any] struct {
	id     ID
	arena  *Arena[C]
	fns    map[Leaf]*CountedSet[FnID, *Fn[C]]
	leaves []Leaf
}

// NewTree creates an empty tree owned by id.
func NewTree[C any](id ID, arena *Arena[C]) *Tree[C] {
	return &Tree[C]{
		id:    id,
		arena: arena,
		fns:   make(map[Leaf]*CountedSet[FnID, *Fn[C]]),
	}
}

// ID returns the id of the owning node.
func (t *Tree[C]) ID() ID { return t.id }

// Arena returns the arena the tree allocates from.
func (t *Tree[C]) Arena() *Arena[C] { return t.arena }

func (t *Tree[C]) set(leaf Leaf) *CountedSet[FnID, *Fn[C]] {
	s, ok := t.fns[leaf]
	if !ok {
		s = NewCountedSet[FnID, *Fn[C]]()
		t.fns[leaf] = s
		t.leaves = append(t.leaves, leaf)
	}
	return s
}

// AddFn registers fn under leaf, incrementing its count if already present.
func (t *Tree[C]) AddFn(fn *Fn[C], leaf Leaf) {
	t.set(leaf).Add(fn.id, fn)
}

// Union adds every (leaf, fn) pair of other into t. Each distinct function
// of other contributes one reference, however many references it holds there.
func (t *Tree[C]) Union(other *Tree[C]) error {
	if other.arena != t.arena {
		return fmt.Errorf("union %q into %q: %w", other.id, t.id, ErrForeignTree)
	}
	for _, leaf := range slices.Clone(other.leaves) {
		dst := t.set(leaf)
		_ = other.fns[leaf].ForEach(func(id FnID, fn *Fn[C]) error {
			dst.Add(id, fn)
			return nil
		})
	}
	return nil
}

// Disunion mirrors Union: it removes one reference for every (leaf, fn) pair
// of other. onRemoved is called with the function's owner each time a pair's
// count reaches zero. Leaves left without functions are dropped.
func (t *Tree[C]) Disunion(other *Tree[C], onRemoved func(owner ID)) error {
	if other.arena != t.arena {
		return fmt.Errorf("disunion %q from %q: %w", other.id, t.id, ErrForeignTree)
	}
	for _, leaf := range slices.Clone(other.leaves) {
		dst, ok := t.fns[leaf]
		if !ok {
			continue
		}
		_ = other.fns[leaf].ForEach(func(id FnID, fn *Fn[C]) error {
			if dst.Delete(id) && onRemoved != nil {
				onRemoved(fn.owner)
			}
			return nil
		})
		if dst.Len() == 0 {
			delete(t.fns, leaf)
			if i := slices.Index(t.leaves, leaf); i >= 0 {
				t.leaves = slices.Delete(t.leaves, i, i+1)
			}
		}
	}
	return nil
}

// ForEach runs every function registered for leaf, in insertion order,
// passing the shared ctx. The first error stops the walk and is returned.
func (t *Tree[C]) ForEach(leaf Leaf, ctx C) error {
	s, ok := t.fns[leaf]
	if !ok {
		return nil
	}
	return s.ForEach(func(_ FnID, fn *Fn[C]) error {
		return fn.Call(ctx)
	})
}

// Leaves returns the leaves with at least one function, in insertion order.
func (t *Tree[C]) Leaves() []Leaf {
	return slices.Clone(t.leaves)
}

// Has reports whether any function is registered under leaf.
func (t *Tree[C]) Has(leaf Leaf) bool {
	_, ok := t.fns[leaf]
	return ok
}

// HasOwner reports whether any function registered by owner is still
// reachable from some leaf.
func (t *Tree[C]) HasOwner(owner ID) bool {
	for _, leaf := range t.leaves {
		found := false
		_ = t.fns[leaf].ForEach(func(_ FnID, fn *Fn[C]) error {
			if fn.Owner() == owner {
				found = true
				return errStop
			}
			return nil
		})
		if found {
			return true
		}
	}
	return false
}

// Count returns the reference count of fn under leaf.
func (t *Tree[C]) Count(leaf Leaf, fn FnID) int {
	s, ok := t.fns[leaf]
	if !ok {
		return 0
	}
	return s.Count(fn)
}

// Fns returns the distinct functions registered under leaf, in run order.
func (t *Tree[C]) Fns(leaf Leaf) []*Fn[C] {
	s, ok := t.fns[leaf]
	if !ok {
		return nil
	}
	out := make([]*Fn[C], 0, s.Len())
	_ = s.ForEach(func(_ FnID, fn *Fn[C]) error {
		out = append(out, fn)
		return nil
	})
	return out
}

// Clone returns a new tree with the same owner id, arena, edges and counts.
func (t *Tree[C]) Clone() *Tree[C] {
	c := NewTree(t.id, t.arena)
	for _, leaf := range t.leaves {
		src := t.fns[leaf]
		dst := c.set(leaf)
		_ = src.ForEach(func(id FnID, fn *Fn[C]) error {
			for i := src.Count(id); i > 0; i-- {
				dst.Add(id, fn)
			}
			return nil
		})
	}
	return c
}
