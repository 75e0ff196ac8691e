package atom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func todos(n int) map[string]any {
	m := make(map[string]any, n)
	for i := 1; i <= n; i++ {
		m[fmt.Sprintf("id#%d", i)] = map[string]any{"done": false}
	}
	return m
}

func toggle() Reducer {
	return Reduce(func(todo map[string]any, _ any) map[string]any {
		return map[string]any{"done": !todo["done"].(bool)}
	})
}

func TestLens_ScopesChangeToKey(t *testing.T) {
	g := NewGraph()
	toggleTodo, _ := g.Action("toggleTodo")
	list, err := g.Atom("Todos", todos(5), func(d *Decl) {
		d.Lens(toggleTodo, toggle())
	})
	require.NoError(t, err)

	state, _, err := list.Run(nil, nil)
	require.NoError(t, err)
	before := state["Todos"].(map[string]any)

	state, changed := dispatch(t, list, state, toggleTodo.WithKey("id#3", nil))
	assert.Equal(t, []ID{"Todos", "Todosid#3"}, changed)

	after := state["Todos"].(map[string]any)
	assert.False(t, Same(before, after), "container is shallow-cloned")
	for k, v := range before {
		if k == "id#3" {
			continue
		}
		assert.True(t, Same(v, after[k]), "untouched key %s keeps its reference", k)
	}
	assert.Equal(t, map[string]any{"done": true}, after["id#3"])
	assert.Equal(t, after["id#3"], state["Todosid#3"], "child id carries the sub-value")
	assert.Equal(t, map[string]any{"done": false}, before["id#3"])
}

func TestLens_UnchangedSubValueIsNoop(t *testing.T) {
	g := NewGraph()
	touch, _ := g.Action("touch")
	list, err := g.Atom("Todos", todos(2), func(d *Decl) {
		d.Lens(touch, func(sub, _ any) (any, error) { return sub, nil })
	})
	require.NoError(t, err)

	state, _, err := list.Run(nil, nil)
	require.NoError(t, err)
	_, changed := dispatch(t, list, state, touch.WithKey("id#1", nil))
	assert.Empty(t, changed)
}

func TestLens_PerKeyDedupe(t *testing.T) {
	g := NewGraph()
	toggleTodo, _ := g.Action("toggleTodo")
	list, err := g.Atom("Todos", todos(2), func(d *Decl) {
		d.Lens(toggleTodo, toggle())
		d.Lens(toggleTodo, toggle())
		d.Lens(toggleTodo, toggle())
	})
	require.NoError(t, err)

	state, _, err := list.Run(nil, nil)
	require.NoError(t, err)
	state, changed := dispatch(t, list, state, toggleTodo.WithKey("id#1", nil))
	assert.Equal(t, []ID{"Todos", "Todosid#1"}, changed, "each (atom, key) pair recorded once")
	assert.Equal(t, map[string]any{"done": true}, state["Todos"].(map[string]any)["id#1"])
}

func TestLens_SliceIndex(t *testing.T) {
	g := NewGraph()
	setAt, _ := g.Action("setAt")
	list, err := g.Atom("List", []any{"a", "b"}, func(d *Decl) {
		d.Lens(setAt, setReducer())
	})
	require.NoError(t, err)

	state, _, err := list.Run(nil, nil)
	require.NoError(t, err)

	state, changed := dispatch(t, list, state, setAt.WithKey(1, "B"))
	assert.Equal(t, []ID{"List", "List1"}, changed)
	assert.Equal(t, []any{"a", "B"}, state["List"])

	state, _ = dispatch(t, list, state, setAt.WithKey(2, "c"))
	assert.Equal(t, []any{"a", "B", "c"}, state["List"], "index len appends")

	ev := setAt.WithKey(9, "x")
	_, _, err = list.Run(state, &ev)
	assert.ErrorIs(t, err, ErrInvalidLensKey)
}

func TestLens_CustomPair(t *testing.T) {
	type row struct{ cells []int }
	pair := LensPair{
		Get: func(c, key any) (any, error) { return c.(*row).cells[key.(int)], nil },
		Set: func(c, key, v any) (any, error) {
			cells := append([]int(nil), c.(*row).cells...)
			cells[key.(int)] = v.(int)
			return &row{cells: cells}, nil
		},
	}

	g := NewGraph()
	bump, _ := g.Action("bump")
	r, err := g.Atom("Row", &row{cells: []int{1, 2, 3}}, func(d *Decl) {
		d.Lens(bump, Reduce(func(c, n int) int { return c + n }), pair)
	})
	require.NoError(t, err)

	state, _, err := r.Run(nil, nil)
	require.NoError(t, err)
	state, changed := dispatch(t, r, state, bump.WithKey(0, 10))
	assert.Equal(t, []ID{"Row", "Row0"}, changed)
	assert.Equal(t, []int{11, 2, 3}, state["Row"].(*row).cells)
}

func TestDefaultLens_KeyErrors(t *testing.T) {
	_, err := DefaultLens.Get(map[string]any{}, 1)
	assert.ErrorIs(t, err, ErrInvalidLensKey)
	_, err = DefaultLens.Set([]any{}, "x", 1)
	assert.ErrorIs(t, err, ErrInvalidLensKey)
	_, err = DefaultLens.Get(42, "x")
	assert.ErrorIs(t, err, ErrInvalidLensKey)

	v, err := DefaultLens.Get(map[string]any{}, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestLens_ChildParentRecorded(t *testing.T) {
	g := NewGraph()
	toggleTodo, _ := g.Action("toggleTodo")
	list, err := g.Atom("Todos", todos(1), func(d *Decl) {
		d.Lens(toggleTodo, toggle())
	})
	require.NoError(t, err)

	state, _, err := list.Run(nil, nil)
	require.NoError(t, err)

	ctx := NewCtx(state, toggleTodo.WithKey("id#1", nil))
	require.NoError(t, list.Tree().ForEach(ctx.Type, ctx))

	parent, ok := ctx.Parent("Todosid#1")
	require.True(t, ok)
	assert.Equal(t, ID("Todos"), parent)
	_, ok = ctx.Parent("Todos")
	assert.False(t, ok)
}
