package atom

import (
	"errors"
	"fmt"
)

// ConfigError reports a graph that cannot be reasoned about: a misuse of the
// declaration API or a reducer returning nil.
type ConfigError struct {
	// Code identifies the error category.
	Code ConfigErrorCode

	// Message is a human-readable description.
	Message string

	// AtomID identifies the atom being declared or run, if any.
	AtomID ID

	// Position is the index of the offending dependency registration
	// (0 is the implicit init transition), or -1 when not applicable.
	Position int
}

// ConfigErrorCode categorizes configuration errors.
type ConfigErrorCode string

const (
	// CodeDuplicateDependency: an atom declared the same upstream atom twice.
	CodeDuplicateDependency ConfigErrorCode = "DUPLICATE_DEPENDENCY"

	// CodeInvalidReducer: a nil reducer or mapper was registered.
	CodeInvalidReducer ConfigErrorCode = "INVALID_REDUCER"

	// CodeUndefinedInitial: an atom was declared with a nil initial value.
	CodeUndefinedInitial ConfigErrorCode = "UNDEFINED_INITIAL"

	// CodeSealed: dependencies were registered after construction.
	CodeSealed ConfigErrorCode = "SEALED"

	// CodeUndefinedResult: a reducer returned nil during dispatch.
	CodeUndefinedResult ConfigErrorCode = "UNDEFINED_RESULT"

	// CodeIDCollision: the namer produced an id already used in the graph.
	CodeIDCollision ConfigErrorCode = "ID_COLLISION"

	// CodeInvalidDependency: a nil unit or a unit from another graph.
	CodeInvalidDependency ConfigErrorCode = "INVALID_DEPENDENCY"

	// CodeLensOnAtom: a lens was registered against an atom dependency.
	CodeLensOnAtom ConfigErrorCode = "LENS_ON_ATOM"

	// CodeEmptyShape: Combine was called without sources.
	CodeEmptyShape ConfigErrorCode = "EMPTY_SHAPE"
)

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.AtomID != "" && e.Position >= 0 {
		return fmt.Sprintf("%s: %s (atom=%s, position=%d)", e.Code, e.Message, e.AtomID, e.Position)
	}
	if e.AtomID != "" {
		return fmt.Sprintf("%s: %s (atom=%s)", e.Code, e.Message, e.AtomID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newConfigError(code ConfigErrorCode, id ID, position int, format string, args ...any) *ConfigError {
	return &ConfigError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		AtomID:   id,
		Position: position,
	}
}

// IsConfigError reports whether err is (or wraps) a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ErrorCode returns the code of a wrapped *ConfigError, or "" if err is not one.
func ErrorCode(err error) ConfigErrorCode {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// ErrTypeMismatch is returned by typed reducer adapters when a state or
// payload does not have the expected dynamic type.
var ErrTypeMismatch = errors.New("type mismatch")

// ErrInvalidLensKey is returned by the default lens for keys that do not fit
// the container (non-string key on a map, out-of-range index on a slice).
var ErrInvalidLensKey = errors.New("invalid lens key")
