package queryir

import "github.com/roach88/atomgraph/internal/ir"

// Query is a query node. Select is the only implementation.
type Query interface {
	queryNode()
}

// Predicate is a filter node.
type Predicate interface {
	predicateNode()
}

// Select reads rows from one journal table.
//
// Columns lists the fields returned, in order. An empty list means every
// column of the table in declaration order. OrderBy lists sort fields;
// the table's key columns are always appended so row order is total.
type Select struct {
	From    string
	Filter  Predicate // nil = every row
	Columns []string
	OrderBy []string
	Limit   int // 0 = no limit
}

func (Select) queryNode() {}

// Equals holds when Field equals Value.
type Equals struct {
	Field string
	Value ir.IRValue
}

func (Equals) predicateNode() {}

// AtLeast holds when the integer Field is >= Value.
type AtLeast struct {
	Field string
	Value int64
}

func (AtLeast) predicateNode() {}

// And holds when every predicate holds. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Table describes one journal table.
type Table struct {
	Columns []string
	Ints    []string // integer columns, usable with AtLeast
	Key     []string // total order tiebreaker
}

// Tables are the journal tables a query may reference.
var Tables = map[string]Table{
	"sessions": {
		Columns: []string{"id", "graph_hash", "root"},
		Key:     []string{"id"},
	},
	"dispatches": {
		Columns: []string{
			"id", "session_id", "seq", "type", "payload", "key", "changed",
			"state_hash", "attached", "detached", "engine_version", "ir_version",
		},
		Ints: []string{"seq", "ir_version"},
		Key:  []string{"seq", "id"},
	},
}

// Where builds a Select on table filtered by the conjunction of preds.
func Where(table string, preds ...Predicate) Select {
	sel := Select{From: table}
	switch len(preds) {
	case 0:
	case 1:
		sel.Filter = preds[0]
	default:
		sel.Filter = And{Predicates: preds}
	}
	return sel
}
