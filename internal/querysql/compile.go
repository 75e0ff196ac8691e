// Package querysql compiles journal queries to parameterized SQLite.
package querysql

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/atomgraph/internal/ir"
	"github.com/roach88/atomgraph/internal/queryir"
)

// Compile converts q to SQL and its parameters.
//
// Values are always bound as parameters, never interpolated. Every query
// ends with an ORDER BY that includes the table key, so results are in a
// total order. Text keys use COLLATE BINARY.
func Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, err
	}
	sel, _ := q.(queryir.Select)
	if p, ok := q.(*queryir.Select); ok {
		sel = *p
	}
	table := queryir.Tables[sel.From]

	cols := sel.Columns
	if len(cols) == 0 {
		cols = table.Columns
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), sel.From)

	var params []any
	if sel.Filter != nil {
		where, ps, err := compilePredicate(sel.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = ps
	}

	b.WriteString(" ORDER BY ")
	b.WriteString(orderBy(sel.OrderBy, table))

	if sel.Limit > 0 {
		b.WriteString(" LIMIT ?")
		params = append(params, int64(sel.Limit))
	}
	return b.String(), params, nil
}

func orderBy(fields []string, table queryir.Table) string {
	keys := slices.Clone(fields)
	for _, k := range table.Key {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		if slices.Contains(table.Ints, k) {
			parts[i] = k + " ASC"
		} else {
			parts[i] = k + " COLLATE BINARY ASC"
		}
	}
	return strings.Join(parts, ", ")
}

func compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.Equals:
		param, err := param(pred.Value)
		if err != nil {
			return "", nil, fmt.Errorf("%s: %w", pred.Field, err)
		}
		return pred.Field + " = ?", []any{param}, nil
	case queryir.AtLeast:
		return pred.Field + " >= ?", []any{pred.Value}, nil
	case queryir.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		var params []any
		for _, sub := range pred.Predicates {
			sql, ps, err := compilePredicate(sub)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, sql)
			params = append(params, ps...)
		}
		if len(parts) == 1 {
			return parts[0], params, nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", params, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// param converts a scalar IR value to a driver value.
func param(v ir.IRValue) (any, error) {
	switch val := v.(type) {
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil
	case ir.IRBool:
		return bool(val), nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %T", v)
	}
}
