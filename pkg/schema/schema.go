// Package schema describes the expected shape of model output. A Schema is a
// recursive tree over a closed set of node kinds; Constraint values restrict
// individual nodes (patterns, ranges, enumerations) and can target the element
// schema of arbitrarily nested arrays.
package schema

import (
	"errors"
	"fmt"
)

// Kind identifies a schema node type. The set is closed; every consumer
// switches over it exhaustively.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindAnyOf   Kind = "anyOf"
)

func (k Kind) String() string { return string(k) }

// ErrDuplicateProperty reports two object properties sharing a name.
var ErrDuplicateProperty = errors.New("schema: duplicate property name")

// Schema is a recursive description of a value's shape. Only the fields
// relevant to Kind are populated.
type Schema struct {
	Kind        Kind
	Name        string // object, anyOf
	Description string // object, anyOf

	Properties   []Property // object, ordered
	Items        *Schema    // array
	Alternatives []*Schema  // anyOf

	// Constraints restrict this node. Order-preserving; appending the same
	// constraint twice keeps both entries.
	Constraints []Constraint
}

// Property is a named member of an object schema.
type Property struct {
	Name        string
	Schema      *Schema
	Description string
	Optional    bool
}

// String returns an unconstrained string schema.
func String() *Schema { return &Schema{Kind: KindString} }

// Integer returns an integer schema.
func Integer() *Schema { return &Schema{Kind: KindInteger} }

// Number returns a floating-point number schema.
func Number() *Schema { return &Schema{Kind: KindNumber} }

// Boolean returns a boolean schema.
func Boolean() *Schema { return &Schema{Kind: KindBoolean} }

// Array returns an array schema over the given item schema.
func Array(items *Schema) *Schema {
	return &Schema{Kind: KindArray, Items: items}
}

// Object builds an object schema. Property names must be unique; a duplicate
// is a construction-time error.
func Object(name, description string, props ...Property) (*Schema, error) {
	seen := make(map[string]struct{}, len(props))
	for _, p := range props {
		if _, ok := seen[p.Name]; ok {
			return nil, fmt.Errorf("%w: %q in object %q", ErrDuplicateProperty, p.Name, name)
		}
		seen[p.Name] = struct{}{}
	}
	return &Schema{
		Kind:        KindObject,
		Name:        name,
		Description: description,
		Properties:  append([]Property(nil), props...),
	}, nil
}

// MustObject is Object for static declarations where duplicates cannot occur.
func MustObject(name, description string, props ...Property) *Schema {
	s, err := Object(name, description, props...)
	if err != nil {
		panic(err)
	}
	return s
}

// AnyOf returns a schema matched by any of the alternative schemas.
func AnyOf(name, description string, alternatives ...*Schema) *Schema {
	return &Schema{
		Kind:         KindAnyOf,
		Name:         name,
		Description:  description,
		Alternatives: append([]*Schema(nil), alternatives...),
	}
}

// Prop declares a required object member.
func Prop(name string, s *Schema) Property {
	return Property{Name: name, Schema: s}
}

// OptionalProp declares an optional object member.
func OptionalProp(name string, s *Schema) Property {
	return Property{Name: name, Schema: s, Optional: true}
}

// IsTrivialString reports whether s is the bare string schema. Generation
// targets of this shape are returned as raw text instead of decoded values.
func IsTrivialString(s *Schema) bool {
	return s != nil && s.Kind == KindString && len(s.Constraints) == 0
}

// Clone returns a deep copy of the schema tree.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	dup := &Schema{
		Kind:        s.Kind,
		Name:        s.Name,
		Description: s.Description,
		Items:       s.Items.Clone(),
		Constraints: cloneConstraints(s.Constraints),
	}
	if len(s.Properties) > 0 {
		dup.Properties = make([]Property, len(s.Properties))
		for i, p := range s.Properties {
			dup.Properties[i] = Property{
				Name:        p.Name,
				Schema:      p.Schema.Clone(),
				Description: p.Description,
				Optional:    p.Optional,
			}
		}
	}
	if len(s.Alternatives) > 0 {
		dup.Alternatives = make([]*Schema, len(s.Alternatives))
		for i, alt := range s.Alternatives {
			dup.Alternatives[i] = alt.Clone()
		}
	}
	return dup
}

// Equal reports structural equality of two schema trees, including their
// constraint lists and ordering.
func Equal(a, b *Schema) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Name != b.Name || a.Description != b.Description {
		return false
	}
	if len(a.Properties) != len(b.Properties) ||
		len(a.Alternatives) != len(b.Alternatives) ||
		len(a.Constraints) != len(b.Constraints) {
		return false
	}
	for i := range a.Properties {
		pa, pb := a.Properties[i], b.Properties[i]
		if pa.Name != pb.Name || pa.Description != pb.Description || pa.Optional != pb.Optional {
			return false
		}
		if !Equal(pa.Schema, pb.Schema) {
			return false
		}
	}
	for i := range a.Alternatives {
		if !Equal(a.Alternatives[i], b.Alternatives[i]) {
			return false
		}
	}
	for i := range a.Constraints {
		if !constraintEqual(a.Constraints[i], b.Constraints[i]) {
			return false
		}
	}
	return Equal(a.Items, b.Items)
}
