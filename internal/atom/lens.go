package atom

import (
	"fmt"
	"maps"
	"slices"
)

// LensPair scopes a reducer to one key of a keyed or indexed atom value.
// Set must not mutate container; it returns a new container holding value
// at key.
type LensPair struct {
	Get func(container any, key any) (any, error)
	Set func(container any, key any, value any) (any, error)
}

// DefaultLens reads and writes map[string]any entries by string key and
// []any entries by int index. Set shallow-clones the container. A missing
// map key reads as nil; writing index len(slice) appends.
var DefaultLens = LensPair{Get: defaultLensGet, Set: defaultLensSet}

func defaultLensGet(container, key any) (any, error) {
	switch c := container.(type) {
	case map[string]any:
		k, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("%w: map key %v (%T)", ErrInvalidLensKey, key, key)
		}
		return c[k], nil
	case []any:
		i, ok := key.(int)
		if !ok || i < 0 {
			return nil, fmt.Errorf("%w: index %v (%T)", ErrInvalidLensKey, key, key)
		}
		if i >= len(c) {
			return nil, nil
		}
		return c[i], nil
	default:
		return nil, fmt.Errorf("%w: unsupported container %T", ErrInvalidLensKey, container)
	}
}

func defaultLensSet(container, key, value any) (any, error) {
	switch c := container.(type) {
	case map[string]any:
		k, ok := key.(string)
		if !ok {
			return nil, fmt.Errorf("%w: map key %v (%T)", ErrInvalidLensKey, key, key)
		}
		next := make(map[string]any, len(c)+1)
		maps.Copy(next, c)
		next[k] = value
		return next, nil
	case []any:
		i, ok := key.(int)
		if !ok || i < 0 || i > len(c) {
			return nil, fmt.Errorf("%w: index %v (%T) for length %d", ErrInvalidLensKey, key, key, len(c))
		}
		next := slices.Clone(c)
		if i == len(c) {
			return append(next, value), nil
		}
		next[i] = value
		return next, nil
	default:
		return nil, fmt.Errorf("%w: unsupported container %T", ErrInvalidLensKey, container)
	}
}
