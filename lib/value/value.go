// Copyright 2026 The GitChain Authors
// SPDX-License-Identifier: Apache-2.0

package value

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Kind discriminates the variants of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a tagged structured value: null, bool, number, string,
// array, or object. Container payloads are modeled as Values so that
// diffing and fingerprinting operate over a closed sum type instead
// of assuming a dynamic object shape.
//
// Numbers are held as float64, matching JSON semantics. Integers up
// to 2^53 round-trip exactly; payloads needing more precision should
// carry strings.
//
// The zero Value is null.
type Value struct {
	kind    Kind
	boolean bool
	number  float64
	text    string
	array   []Value
	object  map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Number returns a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, number: n} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Array returns an array value. The slice is not copied.
func Array(elements ...Value) Value { return Value{kind: KindArray, array: elements} }

// Object returns an object value. The map is not copied.
func Object(fields map[string]Value) Value { return Value{kind: KindObject, object: fields} }

// FromAny converts a decoded JSON/CBOR structure (map[string]any,
// []any, string, bool, nil, and the numeric types the decoders
// produce) into a Value. Unsupported types return an error.
func FromAny(v any) (Value, error) {
	switch typed := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(typed), nil
	case string:
		return String(typed), nil
	case float64:
		return Number(typed), nil
	case float32:
		return Number(float64(typed)), nil
	case int:
		return Number(float64(typed)), nil
	case int32:
		return Number(float64(typed)), nil
	case int64:
		return Number(float64(typed)), nil
	case uint64:
		return Number(float64(typed)), nil
	case json.Number:
		parsed, err := typed.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid number %q: %w", typed, err)
		}
		return Number(parsed), nil
	case []any:
		elements := make([]Value, len(typed))
		for i, element := range typed {
			converted, err := FromAny(element)
			if err != nil {
				return Value{}, fmt.Errorf("value: array index %d: %w", i, err)
			}
			elements[i] = converted
		}
		return Array(elements...), nil
	case map[string]any:
		fields := make(map[string]Value, len(typed))
		for key, field := range typed {
			converted, err := FromAny(field)
			if err != nil {
				return Value{}, fmt.Errorf("value: field %q: %w", key, err)
			}
			fields[key] = converted
		}
		return Object(fields), nil
	default:
		return Value{}, fmt.Errorf("value: unsupported type %T", v)
	}
}

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload. Valid only for KindBool.
func (v Value) AsBool() bool { return v.boolean }

// AsNumber returns the numeric payload. Valid only for KindNumber.
func (v Value) AsNumber() float64 { return v.number }

// AsString returns the string payload. Valid only for KindString.
func (v Value) AsString() string { return v.text }

// AsArray returns the element slice. Valid only for KindArray. The
// returned slice must not be mutated.
func (v Value) AsArray() []Value { return v.array }

// AsObject returns the field map. Valid only for KindObject. The
// returned map must not be mutated.
func (v Value) AsObject() map[string]Value { return v.object }

// Field returns the named field of an object value.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	field, ok := v.object[name]
	return field, ok
}

// Keys returns the sorted field names of an object value.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.object))
	for key := range v.object {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports deep structural equality. NaN numbers are never
// equal, matching float64 semantics.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.boolean == other.boolean
	case KindNumber:
		return v.number == other.number
	case KindString:
		return v.text == other.text
	case KindArray:
		if len(v.array) != len(other.array) {
			return false
		}
		for i := range v.array {
			if !v.array[i].Equal(other.array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.object) != len(other.object) {
			return false
		}
		for key, field := range v.object {
			otherField, ok := other.object[key]
			if !ok || !field.Equal(otherField) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts back to the plain Go form (nil, bool, float64,
// string, []any, map[string]any). This is the form handed to codec
// for canonical encoding, so fingerprints of two Equal values are
// always identical.
func (v Value) Interface() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.boolean
	case KindNumber:
		// Canonical CBOR encodes integral floats and integers to the
		// same smallest form only when handed integers, so integral
		// numbers are surfaced as int64. This keeps {"price": 10}
		// fingerprinting identically whether the 10 arrived as a JSON
		// float or a CBOR integer.
		if v.number == math.Trunc(v.number) && !math.IsInf(v.number, 0) &&
			v.number >= math.MinInt64 && v.number <= math.MaxInt64 {
			return int64(v.number)
		}
		return v.number
	case KindString:
		return v.text
	case KindArray:
		elements := make([]any, len(v.array))
		for i, element := range v.array {
			elements[i] = element.Interface()
		}
		return elements
	case KindObject:
		fields := make(map[string]any, len(v.object))
		for key, field := range v.object {
			fields[key] = field.Interface()
		}
		return fields
	}
	return nil
}

// MarshalJSON implements json.Marshaler via the plain Go form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	converted, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = converted
	return nil
}
