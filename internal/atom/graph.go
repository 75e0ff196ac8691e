package atom

import (
	"fmt"
	"sync"

	"github.com/roach88/atomgraph/internal/kernel"
)

// Namer turns a declared name into a node id. It is injected into the Graph
// so that naming policy is explicit; the Graph rejects any id it has already
// handed out (CodeIDCollision).
type Namer interface {
	Name(name string) ID
}

// NamerFunc adapts a function to Namer.
type NamerFunc func(name string) ID

// Name implements Namer.
func (f NamerFunc) Name(name string) ID { return f(name) }

// IdentityNamer uses the declared name verbatim. It is the default.
var IdentityNamer Namer = NamerFunc(func(name string) ID { return ID(name) })

// SuffixNamer appends suffix to every name, e.g. to namespace two graphs
// that are later inspected side by side.
func SuffixNamer(suffix string) Namer {
	return NamerFunc(func(name string) ID { return ID(name + suffix) })
}

// CounterNamer returns the name verbatim on first use and appends " [n]"
// on later uses, so auto-named Map/Combine atoms never collide.
type CounterNamer struct {
	mu   sync.Mutex
	seen map[string]int
}

// NewCounterNamer creates a CounterNamer.
func NewCounterNamer() *CounterNamer {
	return &CounterNamer{seen: make(map[string]int)}
}

// Name implements Namer.
func (n *CounterNamer) Name(name string) ID {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen[name]++
	if c := n.seen[name]; c > 1 {
		return ID(fmt.Sprintf("%s [%d]", name, c))
	}
	return ID(name)
}

// Kind distinguishes the two node kinds sharing the id namespace.
type Kind int

const (
	// KindAction marks an action leaf.
	KindAction Kind = iota + 1
	// KindAtom marks an atom.
	KindAtom
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindAtom:
		return "atom"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Graph owns the id namespace and the transition arena shared by every
// action and atom declared through it. Units from different graphs cannot
// depend on each other.
type Graph struct {
	mu    sync.Mutex
	arena *kernel.Arena[*Ctx]
	namer Namer
	kinds map[ID]Kind
	order []ID
	init  *Action
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithNamer sets the identifier construction service.
// Default: IdentityNamer.
func WithNamer(n Namer) GraphOption {
	return func(g *Graph) {
		g.namer = n
	}
}

// NewGraph creates an empty graph. The init action is reserved up front.
func NewGraph(opts ...GraphOption) *Graph {
	g := &Graph{
		arena: kernel.NewArena[*Ctx](),
		namer: IdentityNamer,
		kinds: make(map[ID]Kind),
	}
	for _, opt := range opts {
		opt(g)
	}

	g.kinds[InitType] = KindAction
	g.init = &Action{id: InitType, graph: g, tree: kernel.NewTree(InitType, g.arena)}
	return g
}

// reserve claims id for kind. Any reuse is a collision, including an atom
// and an action sharing a name.
func (g *Graph) reserve(id ID, kind Kind) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.kinds[id]; ok {
		return newConfigError(CodeIDCollision, id, -1, "id already declared as %s", prev)
	}
	g.kinds[id] = kind
	g.order = append(g.order, id)
	return nil
}

func (g *Graph) name(name, fallback string) ID {
	if name == "" {
		name = fallback
	}
	return g.namer.Name(name)
}

// KindOf returns the kind registered for id.
func (g *Graph) KindOf(id ID) (Kind, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	k, ok := g.kinds[id]
	return k, ok
}

// IDs returns every declared id in declaration order (the init action excluded).
func (g *Graph) IDs() []ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]ID, len(g.order))
	copy(out, g.order)
	return out
}

// Init returns the graph's init action.
func (g *Graph) Init() *Action { return g.init }

// NewTree returns an empty tree in the graph's arena. Stores use it to build
// a root tree they can union atoms into.
func (g *Graph) NewTree(id ID) *Tree {
	return kernel.NewTree(id, g.arena)
}

// Unit is anything an atom can depend on: an *Action or an *Atom.
type Unit interface {
	ID() ID
	Tree() *Tree
	owner() *Graph
}

// Action is a dispatchable event type.
type Action struct {
	id    ID
	graph *Graph
	tree  *Tree
}

// Action declares a new action named name.
func (g *Graph) Action(name string) (*Action, error) {
	id := g.name(name, "action")
	if err := g.reserve(id, KindAction); err != nil {
		return nil, err
	}
	return &Action{id: id, graph: g, tree: kernel.NewTree(id, g.arena)}, nil
}

// ID returns the action's leaf.
func (a *Action) ID() ID { return a.id }

// Type is an alias of ID for call sites that read better with it.
func (a *Action) Type() ID { return a.id }

// Tree returns the action's (empty) leaf tree.
func (a *Action) Tree() *Tree { return a.tree }

func (a *Action) owner() *Graph {
	if a == nil {
		return nil
	}
	return a.graph
}

// With packages payload into a dispatchable event.
func (a *Action) With(payload any) Event {
	return Event{Type: a.id, Payload: payload}
}

// WithKey packages payload with a lens key.
func (a *Action) WithKey(key, payload any) Event {
	return Event{Type: a.id, Payload: payload, Key: key}
}
