package compiler

import (
	"fmt"

	"github.com/roach88/atomgraph/internal/ir"
)

// Validation error codes (E120-E129)
const (
	ErrUnknownDependency = "E120" // on/source/field names nothing declared
	ErrUnknownReducer    = "E121" // reduce names no registered reducer
	ErrUnknownTransform  = "E122" // transform names no registered transform
	ErrDuplicateName     = "E123" // action/atom namespace collision
	ErrMissingInitial    = "E124" // plain atom without an initial value
	ErrDependencyCycle   = "E125" // atoms depend on each other
	ErrEmptyCombine      = "E126" // combine without fields
	ErrLensOnAtom        = "E127" // lens on an atom dependency
	ErrEmptyGraph        = "E128" // no atoms at all
	ErrDuplicateDep      = "E129" // same upstream atom declared twice
)

// ValidationError represents a graph validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks spec against the builtin reducers and transforms, or
// against reg when given. Returns all errors found (does not fail-fast).
func Validate(spec *ir.GraphSpec, reg ...*Registry) []ValidationError {
	r := NewRegistry()
	if len(reg) > 0 && reg[0] != nil {
		r = reg[0]
	}

	var errs []ValidationError

	// E123: one namespace for actions and atoms
	kinds := make(map[string]string)
	declare := func(name, kind, field string) {
		if prev, ok := kinds[name]; ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%s %q collides with %s of the same name", kind, name, prev),
				Code:    ErrDuplicateName,
			})
			return
		}
		kinds[name] = kind
	}
	for i, a := range spec.Actions {
		declare(a, "action", fmt.Sprintf("actions[%d]", i))
	}
	for _, a := range spec.Atoms {
		declare(a.Name, "atom", "atoms."+a.Name)
	}
	for _, m := range spec.Maps {
		declare(m.Name, "map", "maps."+m.Name)
	}
	for _, c := range spec.Combines {
		declare(c.Name, "combine", "combines."+c.Name)
	}

	isAtom := func(name string) bool {
		k := kinds[name]
		return k == "atom" || k == "map" || k == "combine"
	}

	// E128
	if len(spec.Atoms)+len(spec.Maps)+len(spec.Combines) == 0 {
		errs = append(errs, ValidationError{
			Field:   "graph",
			Message: "graph declares no atoms",
			Code:    ErrEmptyGraph,
		})
	}

	for _, a := range spec.Atoms {
		// E124
		if a.Initial == nil {
			errs = append(errs, ValidationError{
				Field:   "atoms." + a.Name + ".initial",
				Message: "initial value is required",
				Code:    ErrMissingInitial,
			})
		} else if _, ok := a.Initial.(ir.IRNull); ok {
			errs = append(errs, ValidationError{
				Field:   "atoms." + a.Name + ".initial",
				Message: "initial value can't be null",
				Code:    ErrMissingInitial,
			})
		}

		seen := make(map[string]bool)
		for i, c := range a.On {
			field := fmt.Sprintf("atoms.%s.on[%d]", a.Name, i)
			// E129
			if c.Atom != "" {
				if seen[c.Atom] {
					errs = append(errs, ValidationError{
						Field:   field + ".atom",
						Message: fmt.Sprintf("atom %q is already a dependency", c.Atom),
						Code:    ErrDuplicateDep,
					})
				}
				seen[c.Atom] = true
			}
			switch {
			case c.Action == "" && c.Atom == "":
				errs = append(errs, ValidationError{
					Field:   field,
					Message: "on-clause needs an action or an atom",
					Code:    ErrUnknownDependency,
				})
			case c.Action != "" && kinds[c.Action] != "action":
				errs = append(errs, ValidationError{
					Field:   field + ".action",
					Message: fmt.Sprintf("unknown action %q", c.Action),
					Code:    ErrUnknownDependency,
				})
			case c.Atom != "" && !isAtom(c.Atom):
				errs = append(errs, ValidationError{
					Field:   field + ".atom",
					Message: fmt.Sprintf("unknown atom %q", c.Atom),
					Code:    ErrUnknownDependency,
				})
			}

			// E127
			if c.Lens && c.Atom != "" {
				errs = append(errs, ValidationError{
					Field:   field + ".lens",
					Message: fmt.Sprintf("cannot depend on atom %q in lens, use an action", c.Atom),
					Code:    ErrLensOnAtom,
				})
			}

			// E121
			if _, ok := r.Reducer(c.Reduce); !ok {
				errs = append(errs, ValidationError{
					Field:   field + ".reduce",
					Message: fmt.Sprintf("unknown reducer %q", c.Reduce),
					Code:    ErrUnknownReducer,
				})
			}
		}
	}

	for _, m := range spec.Maps {
		if !isAtom(m.Source) {
			errs = append(errs, ValidationError{
				Field:   "maps." + m.Name + ".source",
				Message: fmt.Sprintf("unknown atom %q", m.Source),
				Code:    ErrUnknownDependency,
			})
		}
		// E122
		if _, ok := r.Transform(m.Transform); !ok {
			errs = append(errs, ValidationError{
				Field:   "maps." + m.Name + ".transform",
				Message: fmt.Sprintf("unknown transform %q", m.Transform),
				Code:    ErrUnknownTransform,
			})
		}
	}

	for _, c := range spec.Combines {
		// E126
		if len(c.Fields) == 0 {
			errs = append(errs, ValidationError{
				Field:   "combines." + c.Name + ".fields",
				Message: "combine needs at least one source",
				Code:    ErrEmptyCombine,
			})
		}
		seen := make(map[string]bool)
		for i, f := range c.Fields {
			if seen[f] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("combines.%s.fields[%d]", c.Name, i),
					Message: fmt.Sprintf("atom %q is already a field", f),
					Code:    ErrDuplicateDep,
				})
			}
			seen[f] = true
			if !isAtom(f) {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("combines.%s.fields[%d]", c.Name, i),
					Message: fmt.Sprintf("unknown atom %q", f),
					Code:    ErrUnknownDependency,
				})
			}
		}
	}

	// E125
	for _, cycle := range AnalyzeCycles(spec) {
		errs = append(errs, ValidationError{
			Field:   "atoms." + cycle.Path[0],
			Message: cycle.Message,
			Code:    ErrDependencyCycle,
		})
	}

	return errs
}
