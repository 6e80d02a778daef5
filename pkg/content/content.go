// Package content holds the structured-value model: a tagged JSON-like union
// with typed, failable accessors. Values of this type flow between the wire
// adapters, the decode pipeline, and tool arguments.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Kind tags the variant stored in a Content value.
type Kind string

const (
	KindNull   Kind = "null"
	KindBool   Kind = "bool"
	KindNumber Kind = "number"
	KindString Kind = "string"
	KindArray  Kind = "array"
	KindObject Kind = "object"
)

func (k Kind) String() string { return string(k) }

// Content is one node of a structured value. Numeric values are stored
// uniformly as float64; AsInt additionally validates integrality. As a
// consequence 0 and 0.0 collapse to the same value: they serialize and
// re-parse identically, which is the one exception to round-trip identity.
//
// The zero value is null.
type Content struct {
	kind Kind
	b    bool
	num  float64
	str  string
	arr  []Content
	obj  map[string]Content
}

// Null returns the null value.
func Null() Content { return Content{kind: KindNull} }

// Bool wraps a boolean.
func Bool(v bool) Content { return Content{kind: KindBool, b: v} }

// Number wraps a floating-point number.
func Number(v float64) Content { return Content{kind: KindNumber, num: v} }

// Int wraps an integer as a numeric value.
func Int(v int64) Content { return Content{kind: KindNumber, num: float64(v)} }

// String wraps a string.
func String(v string) Content { return Content{kind: KindString, str: v} }

// Array wraps a list of values.
func Array(items ...Content) Content {
	return Content{kind: KindArray, arr: append([]Content(nil), items...)}
}

// Object wraps a string-keyed map of values.
func Object(fields map[string]Content) Content {
	dup := make(map[string]Content, len(fields))
	for k, v := range fields {
		dup[k] = v
	}
	return Content{kind: KindObject, obj: dup}
}

// Kind returns the variant tag. The zero value reports KindNull.
func (c Content) Kind() Kind {
	if c.kind == "" {
		return KindNull
	}
	return c.kind
}

// IsNull reports whether the value is null.
func (c Content) IsNull() bool { return c.Kind() == KindNull }

// AsBool returns the boolean payload or a TypeMismatchError.
func (c Content) AsBool() (bool, error) {
	if c.Kind() != KindBool {
		return false, &TypeMismatchError{Expected: KindBool, Actual: c.Kind()}
	}
	return c.b, nil
}

// AsString returns the string payload or a TypeMismatchError.
func (c Content) AsString() (string, error) {
	if c.Kind() != KindString {
		return "", &TypeMismatchError{Expected: KindString, Actual: c.Kind()}
	}
	return c.str, nil
}

// AsFloat returns the numeric payload or a TypeMismatchError.
func (c Content) AsFloat() (float64, error) {
	if c.Kind() != KindNumber {
		return 0, &TypeMismatchError{Expected: KindNumber, Actual: c.Kind()}
	}
	return c.num, nil
}

// AsInt returns the numeric payload as an integer. It fails with a
// TypeMismatchError for non-numbers and an InvalidIntegerError when the
// stored number has a fractional part.
func (c Content) AsInt() (int64, error) {
	if c.Kind() != KindNumber {
		return 0, &TypeMismatchError{Expected: KindNumber, Actual: c.Kind()}
	}
	if c.num != math.Trunc(c.num) || math.IsInf(c.num, 0) || math.IsNaN(c.num) {
		return 0, &InvalidIntegerError{Value: c.num}
	}
	return int64(c.num), nil
}

// AsArray returns the element slice or a TypeMismatchError. The slice is
// shared; callers must not mutate it.
func (c Content) AsArray() ([]Content, error) {
	if c.Kind() != KindArray {
		return nil, &TypeMismatchError{Expected: KindArray, Actual: c.Kind()}
	}
	return c.arr, nil
}

// AsObject returns the field map or a TypeMismatchError. The map is shared;
// callers must not mutate it.
func (c Content) AsObject() (map[string]Content, error) {
	if c.Kind() != KindObject {
		return nil, &TypeMismatchError{Expected: KindObject, Actual: c.Kind()}
	}
	return c.obj, nil
}

// Field returns the named object member, failing with MissingPropertyError
// when absent.
func (c Content) Field(name string) (Content, error) {
	obj, err := c.AsObject()
	if err != nil {
		return Content{}, err
	}
	v, ok := obj[name]
	if !ok {
		return Content{}, &MissingPropertyError{Name: name}
	}
	return v, nil
}

// Equal reports deep equality of two values.
func Equal(a, b Content) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Parse decodes generic JSON text into the tagged union.
func Parse(data []byte) (Content, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Content{}, fmt.Errorf("content: parse: %w", err)
	}
	// Reject trailing garbage after the first document.
	if dec.More() {
		return Content{}, fmt.Errorf("content: parse: trailing data after JSON value")
	}
	return fromAny(raw)
}

// FromAny converts a generic decoded JSON value (as produced by
// encoding/json into any) to Content.
func FromAny(v any) (Content, error) {
	return fromAny(v)
}

func fromAny(v any) (Content, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		// Booleans are matched before any numeric case so JSON libraries
		// that box both as number-like never leak through.
		return Bool(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Content{}, fmt.Errorf("content: number %q: %w", t.String(), err)
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case string:
		return String(t), nil
	case []any:
		items := make([]Content, len(t))
		for i, elem := range t {
			c, err := fromAny(elem)
			if err != nil {
				return Content{}, err
			}
			items[i] = c
		}
		return Content{kind: KindArray, arr: items}, nil
	case map[string]any:
		fields := make(map[string]Content, len(t))
		for k, elem := range t {
			c, err := fromAny(elem)
			if err != nil {
				return Content{}, err
			}
			fields[k] = c
		}
		return Content{kind: KindObject, obj: fields}, nil
	default:
		return Content{}, fmt.Errorf("content: unsupported value type %T", v)
	}
}

// ToAny converts the value back to the generic any representation used by
// encoding/json and by provider SDK argument maps.
func (c Content) ToAny() any {
	switch c.Kind() {
	case KindNull:
		return nil
	case KindBool:
		return c.b
	case KindNumber:
		return c.num
	case KindString:
		return c.str
	case KindArray:
		out := make([]any, len(c.arr))
		for i, elem := range c.arr {
			out[i] = elem.ToAny()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(c.obj))
		for k, elem := range c.obj {
			out[k] = elem.ToAny()
		}
		return out
	}
	return nil
}

// MarshalJSON serializes the value. Whole numbers render without a decimal
// point, so 0.0 re-parses as the same numeric content as 0.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.Kind() {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(c.b)
	case KindNumber:
		return json.Marshal(c.num)
	case KindString:
		return json.Marshal(c.str)
	case KindArray:
		if c.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.arr)
	case KindObject:
		// Deterministic key order.
		keys := make([]string, 0, len(c.obj))
		for k := range c.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := json.Marshal(c.obj[k])
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes JSON into the tagged union.
func (c *Content) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
