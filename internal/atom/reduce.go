package atom

import "fmt"

// Reduce adapts a typed reducer. A nil state or payload arrives as the zero
// value of its type; any other mismatch returns ErrTypeMismatch.
func Reduce[S, P any](fn func(state S, payload P) S) Reducer {
	return ReduceErr(func(state S, payload P) (S, error) {
		return fn(state, payload), nil
	})
}

// ReduceErr is Reduce for reducers that can fail.
func ReduceErr[S, P any](fn func(state S, payload P) (S, error)) Reducer {
	return func(state, value any) (any, error) {
		s, err := as[S](state, "state")
		if err != nil {
			return nil, err
		}
		p, err := as[P](value, "payload")
		if err != nil {
			return nil, err
		}
		return fn(s, p)
	}
}

// Transform adapts a typed mapper for Map.
func Transform[S, T any](fn func(S) T) Mapper {
	return func(value any) (any, error) {
		s, err := as[S](value, "value")
		if err != nil {
			return nil, err
		}
		return fn(s), nil
	}
}

func as[T any](v any, what string) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is %T, want %T", ErrTypeMismatch, what, v, zero)
	}
	return t, nil
}
