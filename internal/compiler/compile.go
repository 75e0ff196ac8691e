package compiler

import (
	"cmp"
	"fmt"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/atomgraph/internal/ir"
)

// CompileGraph parses a CUE value into a GraphSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the graph struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`graph: { ... }`)
//	spec, err := CompileGraph(v.LookupPath(cue.ParsePath("graph")))
//
// Structural problems (unknown names, cycles, missing initial values) are
// left to Validate; CompileGraph only fails on malformed CUE.
func CompileGraph(v cue.Value) (*ir.GraphSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "graph", Message: "graph is required"}
	}

	spec := &ir.GraphSpec{
		Actions:  []string{},
		Atoms:    []ir.AtomSpec{},
		Maps:     []ir.MapSpec{},
		Combines: []ir.CombineSpec{},
	}

	var err error
	if spec.Actions, err = parseStringList(v, "actions"); err != nil {
		return nil, err
	}
	slices.Sort(spec.Actions)

	if err := eachField(v, "atoms", func(name string, av cue.Value) error {
		atom, err := parseAtom(name, av)
		if err != nil {
			return err
		}
		spec.Atoms = append(spec.Atoms, atom)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := eachField(v, "maps", func(name string, mv cue.Value) error {
		m := ir.MapSpec{Name: name}
		var err error
		if m.Source, err = requireString(mv, "source", "maps."+name+".source"); err != nil {
			return err
		}
		if m.Transform, err = requireString(mv, "transform", "maps."+name+".transform"); err != nil {
			return err
		}
		spec.Maps = append(spec.Maps, m)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := eachField(v, "combines", func(name string, cv cue.Value) error {
		c := ir.CombineSpec{Name: name}
		var err error
		if c.Fields, err = parseStringList(cv, "fields"); err != nil {
			return err
		}
		if lv := cv.LookupPath(cue.ParsePath("list")); lv.Exists() {
			if c.List, err = lv.Bool(); err != nil {
				return formatCUEError(err)
			}
		}
		spec.Combines = append(spec.Combines, c)
		return nil
	}); err != nil {
		return nil, err
	}

	slices.SortFunc(spec.Atoms, func(a, b ir.AtomSpec) int { return cmp.Compare(a.Name, b.Name) })
	slices.SortFunc(spec.Maps, func(a, b ir.MapSpec) int { return cmp.Compare(a.Name, b.Name) })
	slices.SortFunc(spec.Combines, func(a, b ir.CombineSpec) int { return cmp.Compare(a.Name, b.Name) })
	return spec, nil
}

// parseAtom extracts one plain atom. A missing initial value is left nil.
func parseAtom(name string, v cue.Value) (ir.AtomSpec, error) {
	atom := ir.AtomSpec{Name: name, On: []ir.OnClause{}}

	if iv := v.LookupPath(cue.ParsePath("initial")); iv.Exists() {
		initial, err := valueToIR(iv)
		if err != nil {
			return atom, err
		}
		atom.Initial = initial
	}

	onVal := v.LookupPath(cue.ParsePath("on"))
	if !onVal.Exists() {
		return atom, nil
	}
	iter, err := onVal.List()
	if err != nil {
		return atom, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		clause, err := parseOnClause(iter.Value(), fmt.Sprintf("atoms.%s.on[%d]", name, i))
		if err != nil {
			return atom, err
		}
		atom.On = append(atom.On, clause)
	}
	return atom, nil
}

func parseOnClause(v cue.Value, field string) (ir.OnClause, error) {
	var (
		c   ir.OnClause
		err error
	)
	if c.Action, err = optionalString(v, "action"); err != nil {
		return c, err
	}
	if c.Atom, err = optionalString(v, "atom"); err != nil {
		return c, err
	}
	if c.Action != "" && c.Atom != "" {
		return c, &CompileError{
			Field:   field,
			Message: "set exactly one of action or atom",
			Pos:     v.Pos(),
		}
	}
	if c.Reduce, err = requireString(v, "reduce", field+".reduce"); err != nil {
		return c, err
	}
	if lv := v.LookupPath(cue.ParsePath("lens")); lv.Exists() {
		if c.Lens, err = lv.Bool(); err != nil {
			return c, formatCUEError(err)
		}
	}
	return c, nil
}

// valueToIR converts a concrete CUE value into IR. Floats are forbidden.
func valueToIR(v cue.Value) (ir.IRValue, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.IRNull{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRBool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRInt(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.IRString(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.IRArray{}
		for iter.Next() {
			elem, err := valueToIR(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.IRObject{}
		for iter.Next() {
			elem, err := valueToIR(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	case cue.FloatKind:
		return nil, &CompileError{
			Field:   "initial",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "initial",
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// eachField calls fn for every regular field of the struct at path, if it
// exists.
func eachField(v cue.Value, path string, fn func(name string, fv cue.Value) error) error {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return nil
	}
	iter, err := sv.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		if err := fn(iter.Label(), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

func parseStringList(v cue.Value, path string) ([]string, error) {
	out := []string{}
	lv := v.LookupPath(cue.ParsePath(path))
	if !lv.Exists() {
		return out, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return "", nil
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func requireString(v cue.Value, path, field string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: path + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
