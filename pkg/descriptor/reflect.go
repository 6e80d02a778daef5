package descriptor

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/cexll/structgen/pkg/schema"
)

// For builds a reflection-based descriptor for T. Struct fields map to
// object properties via their json tags; `description`, `pattern`, `enum`,
// `minimum`/`maximum`, `minLength`/`maxLength` and `minItems`/`maxItems`
// tags declare constraints. A field is optional when its json tag carries
// omitempty or its type is a pointer.
func For[T any]() (*Typed[T], error) {
	var zero T
	t := reflect.TypeOf(zero)
	if t == nil {
		return nil, fmt.Errorf("descriptor: cannot describe interface type")
	}
	s, err := schemaFor(t)
	if err != nil {
		return nil, err
	}
	return &Typed[T]{schema: s, typ: t}, nil
}

// Typed is the reflection-based Descriptor for a concrete Go type.
type Typed[T any] struct {
	schema *schema.Schema
	typ    reflect.Type
}

// Schema returns the derived schema.
func (d *Typed[T]) Schema() *schema.Schema { return d.schema }

func schemaFor(t reflect.Type) (*schema.Schema, error) {
	switch t.Kind() {
	case reflect.String:
		return schema.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return schema.Integer(), nil
	case reflect.Float32, reflect.Float64:
		return schema.Number(), nil
	case reflect.Bool:
		return schema.Boolean(), nil
	case reflect.Slice, reflect.Array:
		items, err := schemaFor(t.Elem())
		if err != nil {
			return nil, fmt.Errorf("descriptor: element of %s: %w", t, err)
		}
		return schema.Array(items), nil
	case reflect.Pointer:
		return schemaFor(t.Elem())
	case reflect.Struct:
		return structSchema(t)
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("descriptor: map key of %s must be string", t)
		}
		// Open maps have no fixed properties; model them as an empty object.
		return schema.Object(t.Name(), "")
	default:
		return nil, fmt.Errorf("descriptor: unsupported type %s", t)
	}
}

func structSchema(t reflect.Type) (*schema.Schema, error) {
	var props []schema.Property
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, optional := parseJSONTag(field)
		if name == "-" {
			continue
		}
		fs, err := schemaFor(field.Type)
		if err != nil {
			return nil, fmt.Errorf("descriptor: field %s.%s: %w", t.Name(), field.Name, err)
		}
		fs, err = applyFieldTags(fs, field)
		if err != nil {
			return nil, fmt.Errorf("descriptor: field %s.%s: %w", t.Name(), field.Name, err)
		}
		if field.Type.Kind() == reflect.Pointer {
			optional = true
		}
		props = append(props, schema.Property{
			Name:        name,
			Schema:      fs,
			Description: field.Tag.Get("description"),
			Optional:    optional,
		})
	}
	return schema.Object(t.Name(), "", props...)
}

func parseJSONTag(field reflect.StructField) (name string, optional bool) {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name, false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = field.Name
	}
	for _, part := range parts[1:] {
		if part == "omitempty" {
			optional = true
		}
	}
	return name, optional
}

func applyFieldTags(s *schema.Schema, field reflect.StructField) (*schema.Schema, error) {
	var err error
	if pattern := field.Tag.Get("pattern"); pattern != "" {
		s, err = schema.WithConstraint(s, schema.PatternConstraint(pattern))
		if err != nil {
			return nil, err
		}
	}
	if enum := field.Tag.Get("enum"); enum != "" {
		values := strings.Split(enum, ",")
		for i := range values {
			values[i] = strings.TrimSpace(values[i])
		}
		s, err = schema.WithConstraint(s, schema.EnumConstraint(values...))
		if err != nil {
			return nil, err
		}
	}
	if c, ok, cerr := numericRangeConstraint(s, field); cerr != nil {
		return nil, cerr
	} else if ok {
		s, err = schema.WithConstraint(s, c)
		if err != nil {
			return nil, err
		}
	}
	if min, max, ok := intPairTag(field, "minLength", "maxLength"); ok {
		s, err = schema.WithConstraint(s, schema.LengthConstraint(min, max))
		if err != nil {
			return nil, err
		}
	}
	if min, max, ok := intPairTag(field, "minItems", "maxItems"); ok {
		s, err = schema.WithConstraint(s, schema.CountConstraint(min, max))
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func numericRangeConstraint(s *schema.Schema, field reflect.StructField) (schema.Constraint, bool, error) {
	minTag := field.Tag.Get("minimum")
	maxTag := field.Tag.Get("maximum")
	if minTag == "" && maxTag == "" {
		return schema.Constraint{}, false, nil
	}
	if s.Kind == schema.KindInteger {
		var min, max *int64
		if minTag != "" {
			v, err := strconv.ParseInt(minTag, 10, 64)
			if err != nil {
				return schema.Constraint{}, false, fmt.Errorf("minimum tag: %w", err)
			}
			min = &v
		}
		if maxTag != "" {
			v, err := strconv.ParseInt(maxTag, 10, 64)
			if err != nil {
				return schema.Constraint{}, false, fmt.Errorf("maximum tag: %w", err)
			}
			max = &v
		}
		return schema.IntRangeConstraint(min, max), true, nil
	}
	var min, max *float64
	if minTag != "" {
		v, err := strconv.ParseFloat(minTag, 64)
		if err != nil {
			return schema.Constraint{}, false, fmt.Errorf("minimum tag: %w", err)
		}
		min = &v
	}
	if maxTag != "" {
		v, err := strconv.ParseFloat(maxTag, 64)
		if err != nil {
			return schema.Constraint{}, false, fmt.Errorf("maximum tag: %w", err)
		}
		max = &v
	}
	return schema.NumberRangeConstraint(min, max), true, nil
}

func intPairTag(field reflect.StructField, minKey, maxKey string) (*int, *int, bool) {
	minTag := field.Tag.Get(minKey)
	maxTag := field.Tag.Get(maxKey)
	if minTag == "" && maxTag == "" {
		return nil, nil, false
	}
	var min, max *int
	if v, err := strconv.Atoi(minTag); err == nil && minTag != "" {
		min = &v
	}
	if v, err := strconv.Atoi(maxTag); err == nil && maxTag != "" {
		max = &v
	}
	return min, max, true
}
