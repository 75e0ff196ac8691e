package ir

import (
	"bytes"
	"encoding/json"
)

// GraphSpec is a compiled graph definition: the declared actions, plain
// atoms, maps and combines. Slices are in declaration order, which for
// CUE-sourced specs is sorted by name.
type GraphSpec struct {
	Actions  []string      `json:"actions"`
	Atoms    []AtomSpec    `json:"atoms"`
	Maps     []MapSpec     `json:"maps"`
	Combines []CombineSpec `json:"combines"`
}

// AtomSpec declares a plain atom with its initial value and transitions.
type AtomSpec struct {
	Name    string     `json:"name"`
	Initial IRValue    `json:"initial"`
	On      []OnClause `json:"on"`
}

// UnmarshalJSON decodes an atom read back from compiled IR. A null
// initial decodes as missing.
func (a *AtomSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name    string          `json:"name"`
		Initial json.RawMessage `json:"initial"`
		On      []OnClause      `json:"on"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Name, a.On, a.Initial = raw.Name, raw.On, nil
	if len(raw.Initial) == 0 || bytes.Equal(raw.Initial, []byte("null")) {
		return nil
	}
	v, err := UnmarshalIRValue(raw.Initial)
	if err != nil {
		return err
	}
	a.Initial = v
	return nil
}

// OnClause is one dependency registration. Exactly one of Action or Atom is
// set. Lens scopes an action reducer to the event key.
type OnClause struct {
	Action string `json:"action,omitempty"`
	Atom   string `json:"atom,omitempty"`
	Reduce string `json:"reduce"`
	Lens   bool   `json:"lens,omitempty"`
}

// Dep returns the dependency name, whichever kind it is.
func (c OnClause) Dep() string {
	if c.Action != "" {
		return c.Action
	}
	return c.Atom
}

// MapSpec declares a derived atom over one source.
type MapSpec struct {
	Name      string `json:"name"`
	Source    string `json:"source"`
	Transform string `json:"transform"`
}

// CombineSpec declares a combined atom. Fields name the source atoms; the
// combined value is keyed by those names, or a list when List is set.
type CombineSpec struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	List   bool     `json:"list,omitempty"`
}

// Names returns every declared node name: actions, atoms, maps, combines.
func (g GraphSpec) Names() []string {
	names := make([]string, 0, len(g.Actions)+len(g.Atoms)+len(g.Maps)+len(g.Combines))
	names = append(names, g.Actions...)
	for _, a := range g.Atoms {
		names = append(names, a.Name)
	}
	for _, m := range g.Maps {
		names = append(names, m.Name)
	}
	for _, c := range g.Combines {
		names = append(names, c.Name)
	}
	return names
}

// IR returns the spec as an IRObject for canonical hashing.
func (g GraphSpec) IR() IRObject {
	actions := make(IRArray, len(g.Actions))
	for i, a := range g.Actions {
		actions[i] = IRString(a)
	}

	atoms := make(IRArray, len(g.Atoms))
	for i, a := range g.Atoms {
		on := make(IRArray, len(a.On))
		for j, c := range a.On {
			on[j] = IRObject{
				"action": IRString(c.Action),
				"atom":   IRString(c.Atom),
				"reduce": IRString(c.Reduce),
				"lens":   IRBool(c.Lens),
			}
		}
		atoms[i] = IRObject{
			"name":    IRString(a.Name),
			"initial": orNull(a.Initial),
			"on":      on,
		}
	}

	maps := make(IRArray, len(g.Maps))
	for i, m := range g.Maps {
		maps[i] = IRObject{
			"name":      IRString(m.Name),
			"source":    IRString(m.Source),
			"transform": IRString(m.Transform),
		}
	}

	combines := make(IRArray, len(g.Combines))
	for i, c := range g.Combines {
		fields := make(IRArray, len(c.Fields))
		for j, f := range c.Fields {
			fields[j] = IRString(f)
		}
		combines[i] = IRObject{
			"name":   IRString(c.Name),
			"fields": fields,
			"list":   IRBool(c.List),
		}
	}

	return IRObject{
		"actions":  actions,
		"atoms":    atoms,
		"maps":     maps,
		"combines": combines,
	}
}
