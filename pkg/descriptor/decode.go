package descriptor

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/cexll/structgen/pkg/content"
)

// Encode converts a Go value into structured content via its JSON form.
func (d *Typed[T]) Encode(v any) (content.Content, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return content.Null(), fmt.Errorf("descriptor: encode %T: %w", v, err)
	}
	c, err := content.Parse(raw)
	if err != nil {
		return content.Null(), fmt.Errorf("descriptor: encode %T: %w", v, err)
	}
	return c, nil
}

// Decode converts structured content into a T. Missing required fields and
// type mismatches are reported with the content error types so callers can
// tell the two failure modes apart.
func (d *Typed[T]) Decode(c content.Content) (any, error) {
	v, err := d.DecodeValue(c)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeValue is the typed form of Decode.
func (d *Typed[T]) DecodeValue(c content.Content) (T, error) {
	var out T
	rv := reflect.ValueOf(&out).Elem()
	if err := assign(rv, c, "$", false); err != nil {
		return out, err
	}
	return out, nil
}

// DecodePartial fills in whatever parts of the content fit T and leaves the
// rest at their zero values. It never fails; callers use it on repaired
// fragments mid-stream where incompleteness is expected.
func (d *Typed[T]) DecodePartial(c content.Content) any {
	var out T
	rv := reflect.ValueOf(&out).Elem()
	_ = assign(rv, c, "$", true)
	return out
}

// DecodePartialValue is the typed form of DecodePartial.
func (d *Typed[T]) DecodePartialValue(c content.Content) T {
	var out T
	rv := reflect.ValueOf(&out).Elem()
	_ = assign(rv, c, "$", true)
	return out
}

func assign(rv reflect.Value, c content.Content, path string, lenient bool) error {
	if c.IsNull() {
		if rv.Kind() == reflect.Pointer {
			rv.SetZero()
			return nil
		}
		if lenient {
			return nil
		}
		return &content.TypeMismatchError{Expected: kindOf(rv.Type()), Actual: content.KindNull, Path: path}
	}
	switch rv.Kind() {
	case reflect.Pointer:
		elem := reflect.New(rv.Type().Elem())
		if err := assign(elem.Elem(), c, path, lenient); err != nil {
			return err
		}
		rv.Set(elem)
		return nil
	case reflect.String:
		s, err := c.AsString()
		if err != nil {
			return mismatch(err, rv.Type(), c, path, lenient)
		}
		rv.SetString(s)
		return nil
	case reflect.Bool:
		b, err := c.AsBool()
		if err != nil {
			return mismatch(err, rv.Type(), c, path, lenient)
		}
		rv.SetBool(b)
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := c.AsInt()
		if err != nil {
			return mismatch(err, rv.Type(), c, path, lenient)
		}
		rv.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := c.AsInt()
		if err != nil || n < 0 {
			return mismatch(err, rv.Type(), c, path, lenient)
		}
		rv.SetUint(uint64(n))
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := c.AsFloat()
		if err != nil {
			return mismatch(err, rv.Type(), c, path, lenient)
		}
		rv.SetFloat(f)
		return nil
	case reflect.Slice:
		arr, err := c.AsArray()
		if err != nil {
			return mismatch(err, rv.Type(), c, path, lenient)
		}
		out := reflect.MakeSlice(rv.Type(), len(arr), len(arr))
		for i, elem := range arr {
			if err := assign(out.Index(i), elem, fmt.Sprintf("%s[%d]", path, i), lenient); err != nil {
				if lenient {
					// Drop the trailing elements; a truncated stream breaks
					// mid-element and everything after it is unusable.
					out = out.Slice(0, i)
					break
				}
				return err
			}
		}
		rv.Set(out)
		return nil
	case reflect.Map:
		obj, err := c.AsObject()
		if err != nil {
			return mismatch(err, rv.Type(), c, path, lenient)
		}
		out := reflect.MakeMapWithSize(rv.Type(), len(obj))
		for key, elem := range obj {
			ev := reflect.New(rv.Type().Elem()).Elem()
			if err := assign(ev, elem, path+"."+key, lenient); err != nil {
				if lenient {
					continue
				}
				return err
			}
			out.SetMapIndex(reflect.ValueOf(key), ev)
		}
		rv.Set(out)
		return nil
	case reflect.Struct:
		return assignStruct(rv, c, path, lenient)
	case reflect.Interface:
		if rv.NumMethod() == 0 {
			v := c.ToAny()
			if v == nil {
				rv.SetZero()
				return nil
			}
			rv.Set(reflect.ValueOf(v))
			return nil
		}
		return &content.TypeMismatchError{Expected: kindOf(rv.Type()), Actual: c.Kind(), Path: path}
	default:
		return &content.TypeMismatchError{Expected: kindOf(rv.Type()), Actual: c.Kind(), Path: path}
	}
}

func assignStruct(rv reflect.Value, c content.Content, path string, lenient bool) error {
	if _, err := c.AsObject(); err != nil {
		return mismatch(err, rv.Type(), c, path, lenient)
	}
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, optional := parseJSONTag(field)
		if name == "-" {
			continue
		}
		if field.Type.Kind() == reflect.Pointer {
			optional = true
		}
		fc, err := c.Field(name)
		if err != nil {
			if optional || lenient {
				continue
			}
			return &content.MissingPropertyError{Name: path + "." + name}
		}
		if err := assign(rv.Field(i), fc, path+"."+name, lenient); err != nil {
			if lenient {
				continue
			}
			return err
		}
	}
	return nil
}

// mismatch wraps an accessor failure with the decode path. Lenient decodes
// swallow the error after leaving the target at its zero value.
func mismatch(err error, want reflect.Type, c content.Content, path string, lenient bool) error {
	if lenient {
		return errLenient
	}
	if tm, ok := err.(*content.TypeMismatchError); ok {
		return &content.TypeMismatchError{Expected: tm.Expected, Actual: tm.Actual, Path: path}
	}
	if err != nil {
		return fmt.Errorf("descriptor: at %s: %w", path, err)
	}
	return &content.TypeMismatchError{Expected: kindOf(want), Actual: c.Kind(), Path: path}
}

var errLenient = fmt.Errorf("descriptor: partial decode stop")

func kindOf(t reflect.Type) content.Kind {
	switch t.Kind() {
	case reflect.String:
		return content.KindString
	case reflect.Bool:
		return content.KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return content.KindNumber
	case reflect.Slice, reflect.Array:
		return content.KindArray
	case reflect.Struct, reflect.Map:
		return content.KindObject
	case reflect.Pointer:
		return kindOf(t.Elem())
	default:
		return content.KindNull
	}
}
