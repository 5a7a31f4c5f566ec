// Package jsonvalue provides a dynamic JSON document type for config and
// function-binding payloads whose shape is only partially known up front.
//
// Function configuration documents and their binding objects come from
// on-disk JSON files and must survive a re-marshal even when they carry
// fields this module has never heard of. Modelling them as Go structs
// would silently drop unknown fields on re-marshal. Value wraps
// encoding/json's native decode result (map[string]any, []any and
// scalars) and offers path-addressed accessors that return (value, ok)
// instead of panicking on a missing or wrong-typed field, so call sites
// need no type assertions of their own.
//
// A round trip keeps every field and value but is not byte-for-byte:
// whitespace is dropped, object keys are re-emitted in sorted order, and
// numbers pass through float64.
package jsonvalue

import (
	"encoding/json"
)

// Value is a tagged variant over the JSON type lattice: Null, Bool, Number,
// String, Array, Object. It is constructed by Parse, FromAny, Empty or
// UnmarshalJSON; its accessors never modify it.
type Value struct {
	raw any
}

// Null is the zero Value, representing JSON null (and also "absent").
var Null = Value{}

// Parse decodes data as a single JSON value.
func Parse(data []byte) (Value, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return Value{raw: v}, nil
}

// FromAny wraps an already-decoded json.Unmarshal result (or plain Go value)
// as a Value.
func FromAny(v any) Value { return Value{raw: v} }

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.raw == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v.raw)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.raw = raw
	return nil
}

// IsNull reports whether the value is JSON null or was never set.
func (v Value) IsNull() bool { return v.raw == nil }

// Object returns the value's fields if it is a JSON object.
func (v Value) Object() (map[string]Value, bool) {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]Value, len(m))
	for k, val := range m {
		out[k] = Value{raw: val}
	}
	return out, true
}

// Array returns the value's elements if it is a JSON array.
func (v Value) Array() ([]Value, bool) {
	a, ok := v.raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]Value, len(a))
	for i, val := range a {
		out[i] = Value{raw: val}
	}
	return out, true
}

// String returns the value's string content, if it is a JSON string.
func (v Value) String() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// Bool returns the value's boolean content, if it is a JSON bool.
func (v Value) Bool() (bool, bool) {
	b, ok := v.raw.(bool)
	return b, ok
}

// Number returns the value's numeric content, if it is a JSON number.
func (v Value) Number() (float64, bool) {
	n, ok := v.raw.(float64)
	return n, ok
}

// Truthy reports whether the value would be treated as "on" by
// sync_triggers' disabled check: a JSON true, or any non-empty/non-zero
// scalar. Missing or null is not truthy.
func (v Value) Truthy() bool {
	switch t := v.raw.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

// Field looks up a key on an object value. Returns Null, false if v is not
// an object or the key is absent.
func (v Value) Field(key string) (Value, bool) {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return Null, false
	}
	val, ok := m[key]
	if !ok {
		return Null, false
	}
	return Value{raw: val}, true
}

// Path walks a sequence of object-field names, stopping (and returning
// false) at the first missing field or non-object intermediate value.
func (v Value) Path(keys ...string) (Value, bool) {
	cur := v
	for _, k := range keys {
		next, ok := cur.Field(k)
		if !ok {
			return Null, false
		}
		cur = next
	}
	return cur, true
}

// Index returns the i'th element of an array value.
func (v Value) Index(i int) (Value, bool) {
	a, ok := v.raw.([]any)
	if !ok || i < 0 || i >= len(a) {
		return Null, false
	}
	return Value{raw: a[i]}, true
}

// Empty returns a fresh, empty JSON object value — used where a missing
// config document should read as "{}" rather than null.
func Empty() Value {
	return Value{raw: map[string]any{}}
}

// Raw exposes the underlying decoded value (nil, bool, float64, string,
// []any, or map[string]any) for callers that need to hand it to another
// encoding/json call verbatim.
func (v Value) Raw() any { return v.raw }
