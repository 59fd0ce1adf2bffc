package entity

import (
	"encoding/json"
	"math"

	"google.golang.org/protobuf/types/known/structpb"
)

// IDField is the name of the server-assigned identifier field.
const IDField = "id"

// Entity is a single record of some class: field name to value.
// Values have JSON shapes (float64 numbers, strings, bools, nested maps and slices).
type Entity map[string]any

// ID returns the server-assigned identifier, if any.
func (e Entity) ID() (int64, bool) {
	return toInt64(e[IDField])
}

// Clone returns a deep copy of the entity, independent of the original.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}

	s, err := structpb.NewStruct(e)
	if err != nil {
		return cloneViaJSON(e)
	}

	return Entity(s.AsMap())
}

// WithoutID returns a deep copy of the entity minus its identifier.
func (e Entity) WithoutID() Entity {
	cloned := e.Clone()
	if cloned == nil {
		return Entity{}
	}

	delete(cloned, IDField)

	return cloned
}

// CloneAll deep-copies a sequence of entities.
func CloneAll(items []Entity) []Entity {
	if items == nil {
		return nil
	}

	result := make([]Entity, len(items))
	for i, item := range items {
		result[i] = item.Clone()
	}

	return result
}

// cloneViaJSON is the slow path for values structpb does not understand.
func cloneViaJSON(e Entity) Entity {
	data, err := json.Marshal(e)
	if err != nil {
		return Entity{}
	}

	var cloned Entity
	if err = json.Unmarshal(data, &cloned); err != nil {
		return Entity{}
	}

	return cloned
}

// toInt64 converts the numeric shapes an id can take into int64.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}

		return int64(n), true
	case json.Number:
		i, err := n.Int64()

		return i, err == nil
	default:
		return 0, false
	}
}
