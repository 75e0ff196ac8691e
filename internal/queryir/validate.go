package queryir

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/atomgraph/internal/ir"
)

// ErrInvalidQuery is wrapped by every Validate failure.
var ErrInvalidQuery = errors.New("invalid query")

// Validate checks that q only references known tables and columns.
func Validate(q Query) error {
	sel, ok := asSelect(q)
	if !ok {
		return fmt.Errorf("%w: unsupported query type %T", ErrInvalidQuery, q)
	}
	table, ok := Tables[sel.From]
	if !ok {
		return fmt.Errorf("%w: unknown table %q", ErrInvalidQuery, sel.From)
	}
	for _, c := range sel.Columns {
		if !slices.Contains(table.Columns, c) {
			return fmt.Errorf("%w: unknown column %s.%s", ErrInvalidQuery, sel.From, c)
		}
	}
	for _, c := range sel.OrderBy {
		if !slices.Contains(table.Columns, c) {
			return fmt.Errorf("%w: unknown order column %s.%s", ErrInvalidQuery, sel.From, c)
		}
	}
	if sel.Limit < 0 {
		return fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, sel.Limit)
	}
	return validatePredicate(sel.From, table, sel.Filter)
}

func validatePredicate(name string, table Table, p Predicate) error {
	switch pred := p.(type) {
	case nil:
		return nil
	case Equals:
		if !slices.Contains(table.Columns, pred.Field) {
			return fmt.Errorf("%w: unknown column %s.%s", ErrInvalidQuery, name, pred.Field)
		}
		switch pred.Value.(type) {
		case nil, ir.IRNull:
			return fmt.Errorf("%w: %s compared to null", ErrInvalidQuery, pred.Field)
		case ir.IRArray, ir.IRObject:
			return fmt.Errorf("%w: %s compared to %T", ErrInvalidQuery, pred.Field, pred.Value)
		}
		return nil
	case AtLeast:
		if !slices.Contains(table.Ints, pred.Field) {
			return fmt.Errorf("%w: %s.%s is not an integer column", ErrInvalidQuery, name, pred.Field)
		}
		return nil
	case And:
		for _, sub := range pred.Predicates {
			if err := validatePredicate(name, table, sub); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported predicate type %T", ErrInvalidQuery, p)
	}
}

func asSelect(q Query) (Select, bool) {
	switch sel := q.(type) {
	case Select:
		return sel, true
	case *Select:
		if sel == nil {
			return Select{}, false
		}
		return *sel, true
	default:
		return Select{}, false
	}
}

// Match evaluates p against a row given as column values.
// Missing columns never match.
func Match(p Predicate, row map[string]ir.IRValue) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case Equals:
		v, ok := row[pred.Field]
		return ok && scalar(pred.Value) && v == pred.Value
	case AtLeast:
		v, ok := row[pred.Field].(ir.IRInt)
		return ok && int64(v) >= pred.Value
	case And:
		for _, sub := range pred.Predicates {
			if !Match(sub, row) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func scalar(v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool:
		return true
	default:
		return false
	}
}
