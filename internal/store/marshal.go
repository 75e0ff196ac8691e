package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/atomgraph/internal/ir"
)

// marshalValue converts an IR value to canonical JSON TEXT for storage.
// A nil value is stored as null.
func marshalValue(v ir.IRValue) (string, error) {
	if v == nil {
		v = ir.IRNull{}
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// marshalIDs converts a node id list to canonical JSON TEXT. A nil list is
// stored as [].
func marshalIDs(ids []string) (string, error) {
	arr := make(ir.IRArray, len(ids))
	for i, id := range ids {
		arr[i] = ir.IRString(id)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal ids: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses canonical JSON TEXT to an IR value.
// Integers keep full int64 precision; floats are rejected.
func unmarshalValue(data string) (ir.IRValue, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// unmarshalIDs parses a JSON array of ids. Empty input decodes to an empty,
// non-nil slice.
func unmarshalIDs(data string) ([]string, error) {
	ids := []string{}
	if data == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal ids: %w", err)
	}
	return ids, nil
}
