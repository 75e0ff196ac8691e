package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/atomgraph/internal/atom"
)

// Listener receives every committed change.
type Listener func(Change)

type listenerEntry struct {
	id uint64
	fn Listener
}

type nodeEntry struct {
	id uint64
	fn func(value any)
}

type actionEntry struct {
	id uint64
	fn func(payload any)
}

// subscriptions holds listener handles in subscription order. Guarded by
// the engine mutex.
type subscriptions struct {
	next    uint64
	all     []listenerEntry
	nodes   map[atom.ID][]nodeEntry
	actions map[atom.ID][]actionEntry
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		nodes:   make(map[atom.ID][]nodeEntry),
		actions: make(map[atom.ID][]actionEntry),
	}
}

func (s *subscriptions) handle() uint64 {
	s.next++
	return s.next
}

// Subscribe registers fn for every committed change. The returned function
// unsubscribes; calling it more than once is a no-op.
func (e *Engine) Subscribe(fn Listener) func() {
	e.mu.Lock()
	id := e.subs.handle()
	e.subs.all = append(e.subs.all, listenerEntry{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.subs.all = slices.DeleteFunc(e.subs.all, func(l listenerEntry) bool { return l.id == id })
		})
	}
}

// SubscribeAction registers fn for every committed dispatch of action's type.
func (e *Engine) SubscribeAction(action *atom.Action, fn func(payload any)) func() {
	typ := action.Type()

	e.mu.Lock()
	id := e.subs.handle()
	e.subs.actions[typ] = append(e.subs.actions[typ], actionEntry{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.subs.actions[typ] = slices.DeleteFunc(e.subs.actions[typ], func(l actionEntry) bool { return l.id == id })
			if len(e.subs.actions[typ]) == 0 {
				delete(e.subs.actions, typ)
			}
		})
	}
}

// SubscribeAtom registers fn for changes of a's value.
//
// An atom outside the root is attached: its tree is unioned into the
// engine's tree and the init action is dispatched so it gets a value. The
// last unsubscribe detaches it again and drops the values that no longer
// belong to any attached atom.
func (e *Engine) SubscribeAtom(a *atom.Atom, fn func(value any)) (func(), error) {
	if a == nil {
		return nil, errors.New("engine: subscribe to nil atom")
	}
	return e.subscribeNode(a, a.ID(), fn)
}

// SubscribeKey registers fn for lensed changes of one key of a. It fires
// with the new sub-value when a lens reducer changed that key.
func (e *Engine) SubscribeKey(a *atom.Atom, key any, fn func(value any)) (func(), error) {
	if a == nil {
		return nil, errors.New("engine: subscribe to nil atom")
	}
	return e.subscribeNode(a, a.ID()+atom.ID(fmt.Sprint(key)), fn)
}

func (e *Engine) subscribeNode(a *atom.Atom, node atom.ID, fn func(value any)) (func(), error) {
	if a.Graph() != e.root.Graph() {
		return nil, fmt.Errorf("engine: atom %q belongs to another graph", a.ID())
	}
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil, newStoppedError(atom.InitType)
	}
	attached, err := e.attachLocked(a)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	id := e.subs.handle()
	e.subs.nodes[node] = append(e.subs.nodes[node], nodeEntry{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.subs.nodes[node] = slices.DeleteFunc(e.subs.nodes[node], func(l nodeEntry) bool { return l.id == id })
			if len(e.subs.nodes[node]) == 0 {
				delete(e.subs.nodes, node)
			}
			if err := e.releaseLocked(a.ID()); err != nil {
				e.logger.Error("detach failed", "atom", a.ID(), "err", err)
			}
		})
	}

	if attached {
		if _, err := e.Dispatch(atom.InitEvent()); err != nil {
			unsubscribe()
			return nil, fmt.Errorf("initialize %q: %w", a.ID(), err)
		}
	}
	return unsubscribe, nil
}

// notify calls listeners for change: global listeners, then node listeners
// in changed-id order, then action listeners. Listeners run without the
// engine lock, so they may dispatch (queued) or subscribe.
func (e *Engine) notify(change Change) {
	e.mu.Lock()
	all := slices.Clone(e.subs.all)
	type nodeCall struct {
		fn    func(any)
		value any
	}
	var nodes []nodeCall
	for _, id := range change.ChangedIDs {
		for _, l := range e.subs.nodes[id] {
			nodes = append(nodes, nodeCall{fn: l.fn, value: change.State[id]})
		}
	}
	actions := slices.Clone(e.subs.actions[change.Type])
	e.mu.Unlock()

	for _, l := range all {
		l.fn(change)
	}
	for _, c := range nodes {
		c.fn(c.value)
	}
	for _, l := range actions {
		l.fn(change.Payload)
	}
}
