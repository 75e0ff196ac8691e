package atom

import (
	"maps"

	"github.com/roach88/atomgraph/internal/kernel"
)

// ID names an atom or an action. Both kinds share one namespace per Graph.
type ID = kernel.ID

// InitType is the reserved leaf of the init action. Every atom registers a
// transition on it that writes the atom's initial value when the snapshot
// has no entry for the atom yet.
const InitType ID = "@@atomgraph/init"

// Snapshot maps node ids to values. Snapshots handed out by this package are
// never mutated; Run returns a fresh map when anything changed.
type Snapshot map[ID]any

// Get returns the value stored for id.
func (s Snapshot) Get(id ID) (any, bool) {
	v, ok := s[id]
	return v, ok
}

// Event is a dispatched (type, payload) pair. Key selects the sub-entry for
// lensed reducers and is ignored otherwise.
type Event struct {
	Type    ID
	Payload any
	Key     any
}

// InitEvent returns the init action event.
func InitEvent() Event {
	return Event{Type: InitType}
}

// Ctx is the per-dispatch record shared by every transition of one walk.
//
// State is the snapshot before the dispatch and must not be written.
// StateNew is the overlay: each transition writes at most its own atom id
// (plus, for lensed changes, a synthetic child id).
type Ctx struct {
	State      Snapshot
	StateNew   map[ID]any
	Type       ID
	Payload    any
	Key        any
	ChangedIDs []ID

	changed map[ID]struct{}
	parents map[ID]ID
	steps   int
}

// Tree is the dependency tree type used by atoms.
type Tree = kernel.Tree[*Ctx]

// NewCtx creates a dispatch context over state for ev. A nil state is
// treated as empty.
func NewCtx(state Snapshot, ev Event) *Ctx {
	if state == nil {
		state = Snapshot{}
	}
	return &Ctx{
		State:    state,
		StateNew: make(map[ID]any),
		Type:     ev.Type,
		Payload:  ev.Payload,
		Key:      ev.Key,
		changed:  make(map[ID]struct{}),
		parents:  make(map[ID]ID),
	}
}

// markChanged appends id to ChangedIDs once per dispatch.
func (c *Ctx) markChanged(id ID) {
	if _, ok := c.changed[id]; ok {
		return
	}
	c.changed[id] = struct{}{}
	c.ChangedIDs = append(c.ChangedIDs, id)
}

// markChild records a synthetic lens child id under its parent atom.
func (c *Ctx) markChild(child, parent ID) {
	c.parents[child] = parent
	c.markChanged(child)
}

// Parent returns the atom a synthetic lens child id was recorded for.
func (c *Ctx) Parent(child ID) (ID, bool) {
	p, ok := c.parents[child]
	return p, ok
}

// Steps returns the number of transitions that ran a reducer in this dispatch.
func (c *Ctx) Steps() int { return c.steps }

// Merge returns the snapshot produced by applying the overlay to State.
// When nothing changed, State itself is returned.
func (c *Ctx) Merge() Snapshot {
	if len(c.ChangedIDs) == 0 {
		return c.State
	}
	next := make(Snapshot, len(c.State)+len(c.StateNew))
	maps.Copy(next, c.State)
	maps.Copy(next, c.StateNew)
	return next
}

// Dispatch walks tree for ev against state. On success it returns the merged
// snapshot and the changed ids; on error it returns state untouched.
func Dispatch(tree *Tree, state Snapshot, ev Event) (Snapshot, []ID, error) {
	ctx := NewCtx(state, ev)
	if err := tree.ForEach(ev.Type, ctx); err != nil {
		return ctx.State, nil, err
	}
	return ctx.Merge(), ctx.ChangedIDs, nil
}
