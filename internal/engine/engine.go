package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/roach88/atomgraph/internal/atom"
)

// Change describes one committed dispatch, handed to listeners and returned
// from Dispatch.
type Change struct {
	Seq        int64
	Type       atom.ID
	Payload    any
	Key        any
	ChangedIDs []atom.ID
	State      atom.Snapshot

	// Queued is set when the dispatch was deferred behind one in flight.
	// Only Type, Payload and Key are filled in that case.
	Queued bool
}

// Engine owns the authoritative snapshot of one root atom.
//
// Thread-safety model:
//   - Dispatch, Subscribe*, State, Get: safe from any goroutine
//   - Enqueue: safe from any goroutine
//   - Run: exactly one goroutine
type Engine struct {
	mu sync.Mutex

	root      *atom.Atom
	tree      *atom.Tree
	state     atom.Snapshot
	permanent map[atom.ID]struct{}
	children  map[atom.ID]atom.ID
	attached  map[atom.ID]*attachment

	// Topology changes not yet carried by a journal record.
	pendingAttach []atom.ID
	pendingDetach []atom.ID

	clock      Sequencer
	session    string
	sessions   SessionGenerator
	journal    Journal
	metrics    Metrics
	logger     *slog.Logger
	maxCascade int
	resolve    func(atom.ID) (*atom.Atom, bool)

	dispatching bool
	pending     []atom.Event
	stopped     bool

	subs  *subscriptions
	queue *eventQueue
}

// attachment tracks an atom outside the root that was unioned into the
// engine tree by a subscription.
type attachment struct {
	atom *atom.Atom
	refs int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithJournal records every committed dispatch.
func WithJournal(j Journal) Option {
	return func(e *Engine) {
		e.journal = j
	}
}

// WithMaxCascade bounds the dispatches drained by one Dispatch call.
// Default: DefaultMaxCascade. Zero or less disables the bound.
func WithMaxCascade(n int) Option {
	return func(e *Engine) {
		e.maxCascade = n
	}
}

// WithClock sets the logical clock, e.g. NewClockAt to resume numbering.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithSession fixes the journal session token.
func WithSession(token string) Option {
	return func(e *Engine) {
		e.session = token
	}
}

// WithSessionGenerator sets how a session token is produced when a journal
// is attached and no token was given. Default: UUIDv7Generator.
func WithSessionGenerator(g SessionGenerator) Option {
	return func(e *Engine) {
		e.sessions = g
	}
}

// WithMetrics reports dispatch outcomes to m.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithInitialState starts from s instead of an empty snapshot. Atoms already
// present in s are not re-initialized.
func WithInitialState(s atom.Snapshot) Option {
	return func(e *Engine) {
		e.state = s
	}
}

// WithResolver lets Replay find atoms that were attached by subscriptions
// during the recorded session.
func WithResolver(fn func(atom.ID) (*atom.Atom, bool)) Option {
	return func(e *Engine) {
		e.resolve = fn
	}
}

// New creates an engine for root and dispatches the init action, so every
// atom of the root starts with a value.
func New(root *atom.Atom, opts ...Option) (*Engine, error) {
	return Replay(context.Background(), root, nil, opts...)
}

func build(root *atom.Atom, opts ...Option) (*Engine, error) {
	if root == nil {
		return nil, errors.New("engine: root atom is nil")
	}

	e := &Engine{
		root:       root,
		tree:       root.Tree().Clone(),
		state:      atom.Snapshot{},
		permanent:  make(map[atom.ID]struct{}),
		children:   make(map[atom.ID]atom.ID),
		attached:   make(map[atom.ID]*attachment),
		clock:      NewClock(),
		sessions:   UUIDv7Generator{},
		logger:     slog.Default(),
		maxCascade: DefaultMaxCascade,
		subs:       newSubscriptions(),
		queue:      newEventQueue(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.state == nil {
		e.state = atom.Snapshot{}
	}

	e.permanent[root.ID()] = struct{}{}
	for _, id := range root.Deps() {
		e.permanent[id] = struct{}{}
	}
	return e, nil
}

// Root returns the root atom.
func (e *Engine) Root() *atom.Atom { return e.root }

// Session returns the journal session token ("" without a journal).
func (e *Engine) Session() string { return e.session }

// Seq returns the sequence number of the last committed dispatch.
func (e *Engine) Seq() int64 { return e.clock.Current() }

// State returns the current snapshot. It must not be modified.
func (e *Engine) State() atom.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Get returns a's current value. When a has no value yet, its initial value
// is computed with an init run that is not committed.
func (e *Engine) Get(a *atom.Atom) (any, error) {
	e.mu.Lock()
	state := e.state
	e.mu.Unlock()

	if v, ok := a.Get(state); ok {
		return v, nil
	}
	next, _, err := a.Run(state, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize %q: %w", a.ID(), err)
	}
	v, _ := a.Get(next)
	return v, nil
}

// Dispatch runs ev against the current snapshot. See DispatchContext.
func (e *Engine) Dispatch(ev atom.Event) (Change, error) {
	return e.DispatchContext(context.Background(), ev)
}

// DispatchContext runs ev, commits the result and notifies listeners. ctx is
// passed to the journal.
//
// If another dispatch is in flight, ev is queued and a Change with Queued set
// is returned immediately. Reducer errors are returned unmodified and leave
// the snapshot untouched.
func (e *Engine) DispatchContext(ctx context.Context, ev atom.Event) (Change, error) {
	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		return Change{}, newStoppedError(ev.Type)
	}
	return e.submit(ctx, ev)
}

// submit commits ev now, or queues it behind the dispatch in flight.
func (e *Engine) submit(ctx context.Context, ev atom.Event) (Change, error) {
	e.mu.Lock()
	if e.dispatching {
		e.pending = append(e.pending, ev)
		e.mu.Unlock()
		e.logger.Debug("dispatch queued", "type", ev.Type)
		return Change{Type: ev.Type, Payload: ev.Payload, Key: ev.Key, Queued: true}, nil
	}
	e.dispatching = true
	e.mu.Unlock()

	return e.drain(ctx, ev)
}

// drain commits ev and then every event queued behind it, in FIFO order.
// Errors of queued events cannot reach their callers; they are logged.
func (e *Engine) drain(ctx context.Context, ev atom.Event) (Change, error) {
	quota := newCascadeQuota(e.maxCascade)

	// A panicking reducer or listener must not leave the engine queuing forever.
	defer func() {
		if r := recover(); r != nil {
			e.mu.Lock()
			dropped := len(e.pending)
			e.pending = nil
			e.dispatching = false
			e.mu.Unlock()
			e.logger.Error("dispatch panicked", "type", ev.Type, "dropped", dropped)
			panic(r)
		}
	}()

	var (
		result   Change
		firstErr error
	)
	for first := true; ; first = false {
		if err := quota.Check(ev.Type); err != nil {
			e.mu.Lock()
			dropped := len(e.pending)
			e.pending = nil
			e.dispatching = false
			e.mu.Unlock()

			e.logger.Error("cascade exceeded",
				"type", ev.Type,
				"steps", quota.Current(),
				"dropped", dropped,
				"err", err,
			)
			e.observeError(ev.Type)
			return result, err
		}

		change, err := e.commit(ctx, ev)
		switch {
		case err != nil && first:
			firstErr = err
		case err != nil:
			e.logger.Error("queued dispatch failed", "type", ev.Type, "err", err)
		default:
			if first {
				result = change
			}
			e.notify(change)
		}

		e.mu.Lock()
		if len(e.pending) == 0 {
			e.dispatching = false
			e.mu.Unlock()
			return result, firstErr
		}
		ev = e.pending[0]
		e.pending[0] = atom.Event{}
		e.pending = e.pending[1:]
		e.mu.Unlock()
	}
}

// commit walks the tree for ev and, if every transition succeeded and the
// journal accepted the record, replaces the snapshot and advances the clock.
func (e *Engine) commit(ctx context.Context, ev atom.Event) (Change, error) {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	c := atom.NewCtx(e.state, ev)
	if err := e.tree.ForEach(ev.Type, c); err != nil {
		e.logger.Debug("dispatch failed", "type", ev.Type, "err", err)
		e.observeError(ev.Type)
		return Change{}, err
	}

	change := Change{
		Seq:        e.clock.Current() + 1,
		Type:       ev.Type,
		Payload:    ev.Payload,
		Key:        ev.Key,
		ChangedIDs: c.ChangedIDs,
		State:      c.Merge(),
	}

	if e.journal != nil {
		rec, err := e.record(change, e.pendingAttach, e.pendingDetach)
		if err == nil {
			err = e.journal.Record(ctx, rec)
		}
		if err != nil {
			e.logger.Error("journal record failed", "type", ev.Type, "seq", change.Seq, "err", err)
			e.observeError(ev.Type)
			return Change{}, newJournalError(change.Seq, ev.Type, err)
		}
	}

	e.clock.Next()
	e.state = change.State
	e.pendingAttach, e.pendingDetach = nil, nil
	for _, id := range change.ChangedIDs {
		if parent, ok := c.Parent(id); ok {
			e.children[id] = parent
		}
	}

	if e.metrics != nil {
		e.metrics.ObserveDispatch(string(ev.Type), len(change.ChangedIDs), time.Since(start))
	}
	e.logger.Debug("dispatch committed",
		"type", ev.Type,
		"seq", change.Seq,
		"changed", change.ChangedIDs,
		"steps", c.Steps(),
	)
	return change, nil
}

func (e *Engine) observeError(eventType atom.ID) {
	if e.metrics != nil {
		e.metrics.ObserveError(string(eventType))
	}
}

// attachLocked unions a's tree into the engine tree unless a is part of the
// root or already attached. It reports whether the tree changed.
// Caller holds e.mu.
func (e *Engine) attachLocked(a *atom.Atom) (bool, error) {
	if _, ok := e.permanent[a.ID()]; ok {
		return false, nil
	}
	if at, ok := e.attached[a.ID()]; ok {
		at.refs++
		return false, nil
	}
	if err := e.tree.Union(a.Tree()); err != nil {
		return false, fmt.Errorf("attach %q: %w", a.ID(), err)
	}
	e.attached[a.ID()] = &attachment{atom: a, refs: 1}
	e.pendingAttach = append(e.pendingAttach, a.ID())
	e.logger.Debug("atom attached", "atom", a.ID())
	return true, nil
}

// releaseLocked drops one reference to an attached atom and detaches it
// when none remain. Caller holds e.mu.
func (e *Engine) releaseLocked(id atom.ID) error {
	at, ok := e.attached[id]
	if !ok {
		return nil
	}
	at.refs--
	if at.refs > 0 {
		return nil
	}
	return e.detachLocked(at.atom)
}

// detachLocked disunions a's tree and drops the values of every atom whose
// last transition left the tree, along with their lens child ids.
// Caller holds e.mu.
func (e *Engine) detachLocked(a *atom.Atom) error {
	delete(e.attached, a.ID())

	var removed []atom.ID
	if err := e.tree.Disunion(a.Tree(), func(owner atom.ID) {
		removed = append(removed, owner)
	}); err != nil {
		return fmt.Errorf("detach %q: %w", a.ID(), err)
	}
	// An attachment not yet journaled cancels out instead of being recorded.
	if i := slices.Index(e.pendingAttach, a.ID()); i >= 0 {
		e.pendingAttach = slices.Delete(e.pendingAttach, i, i+1)
	} else {
		e.pendingDetach = append(e.pendingDetach, a.ID())
	}

	drop := make(map[atom.ID]struct{})
	for _, owner := range removed {
		if _, ok := e.permanent[owner]; ok {
			continue
		}
		if e.tree.HasOwner(owner) {
			continue
		}
		drop[owner] = struct{}{}
	}
	for child, parent := range e.children {
		if _, ok := drop[parent]; ok {
			drop[child] = struct{}{}
			delete(e.children, child)
		}
	}

	var next atom.Snapshot
	for id := range drop {
		if _, ok := e.state[id]; !ok {
			continue
		}
		if next == nil {
			next = maps.Clone(e.state)
		}
		delete(next, id)
	}
	if next != nil {
		e.state = next
	}

	dropped := slices.Sorted(maps.Keys(drop))
	e.logger.Debug("atom detached", "atom", a.ID(), "dropped", dropped)
	return nil
}

// Enqueue submits ev to the Run loop. Safe from any goroutine.
// Returns false once the engine is stopped.
func (e *Engine) Enqueue(ev atom.Event) bool {
	return e.queue.Enqueue(ev)
}

// QueueLen returns the number of events waiting for Run.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run is the single-writer loop: it dispatches enqueued events until ctx is
// cancelled or Stop is called. Must be called from exactly one goroutine.
//
// A failed event is logged and the loop continues. Retrying would make the
// committed sequence depend on timing.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "session", e.session)

	for {
		if ev, ok := e.queue.TryDequeue(); ok {
			if _, err := e.submit(ctx, ev); err != nil {
				e.logger.Error("event failed", "type", ev.Type, "key", ev.Key, "err", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// A closed queue keeps firing; stop once it is drained.
			if e.queue.Len() == 0 && e.isStopped() {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue and rejects further dispatches. Run returns once the
// remaining queued events are processed.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	e.queue.Close()
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}
