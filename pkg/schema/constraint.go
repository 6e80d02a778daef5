package schema

import (
	"errors"
	"fmt"
)

// ErrConstraintKind reports a constraint applied to a schema of a different
// kind. This is a programmer error and is surfaced rather than dropped.
var ErrConstraintKind = errors.New("schema: constraint kind mismatch")

// Constraint restricts the values admitted by a single schema node. A
// constraint targets exactly one Kind; array constraints additionally split
// into count bounds (on the array itself) and element constraints, which are
// pushed into the item schema by WithConstraint.
type Constraint struct {
	target Kind

	// string
	Pattern   string
	Enum      []string
	MinLength *int
	MaxLength *int

	// integer
	MinInt *int64
	MaxInt *int64

	// number
	MinNumber *float64
	MaxNumber *float64

	// boolean
	Const *bool

	// array
	MinItems *int
	MaxItems *int
	// Element is an indirection to a constraint on the array's item schema.
	// Nesting Element inside Element reaches through array-of-array-of-T to
	// any depth.
	Element *Constraint
}

// Target returns the schema kind the constraint applies to.
func (c Constraint) Target() Kind { return c.target }

// PatternConstraint constrains a string to match a regular expression.
func PatternConstraint(expr string) Constraint {
	return Constraint{target: KindString, Pattern: expr}
}

// EnumConstraint constrains a string to one of the listed values.
func EnumConstraint(values ...string) Constraint {
	return Constraint{target: KindString, Enum: append([]string(nil), values...)}
}

// LengthConstraint bounds a string's length. Nil bounds are open.
func LengthConstraint(min, max *int) Constraint {
	return Constraint{target: KindString, MinLength: min, MaxLength: max}
}

// IntRangeConstraint bounds an integer value. Nil bounds are open.
func IntRangeConstraint(min, max *int64) Constraint {
	return Constraint{target: KindInteger, MinInt: min, MaxInt: max}
}

// NumberRangeConstraint bounds a floating-point value. Nil bounds are open.
func NumberRangeConstraint(min, max *float64) Constraint {
	return Constraint{target: KindNumber, MinNumber: min, MaxNumber: max}
}

// ConstBoolConstraint pins a boolean to a fixed value.
func ConstBoolConstraint(v bool) Constraint {
	return Constraint{target: KindBoolean, Const: &v}
}

// CountConstraint bounds an array's element count. Nil bounds are open.
func CountConstraint(min, max *int) Constraint {
	return Constraint{target: KindArray, MinItems: min, MaxItems: max}
}

// ElementConstraint wraps a constraint so that WithConstraint applies it to
// an array's item schema instead of the array node itself.
func ElementConstraint(inner Constraint) Constraint {
	return Constraint{target: KindArray, Element: &inner}
}

// WithConstraint returns a copy of s with c folded in. Element constraints
// recurse into the array's item schema; everything else appends to the
// matching node's constraint list. A kind mismatch returns ErrConstraintKind.
func WithConstraint(s *Schema, c Constraint) (*Schema, error) {
	if s == nil {
		return nil, errors.New("schema: nil schema")
	}
	if c.Element != nil {
		if s.Kind != KindArray {
			return nil, fmt.Errorf("%w: element constraint on %s schema", ErrConstraintKind, s.Kind)
		}
		items, err := WithConstraint(s.Items, *c.Element)
		if err != nil {
			return nil, err
		}
		dup := s.Clone()
		dup.Items = items
		return dup, nil
	}
	if c.target != s.Kind {
		return nil, fmt.Errorf("%w: %s constraint on %s schema", ErrConstraintKind, c.target, s.Kind)
	}
	dup := s.Clone()
	dup.Constraints = append(dup.Constraints, c)
	return dup, nil
}

func cloneConstraints(cs []Constraint) []Constraint {
	if len(cs) == 0 {
		return nil
	}
	out := make([]Constraint, len(cs))
	for i, c := range cs {
		out[i] = c
		out[i].Enum = append([]string(nil), c.Enum...)
		out[i].MinLength = cloneIntPtr(c.MinLength)
		out[i].MaxLength = cloneIntPtr(c.MaxLength)
		out[i].MinInt = cloneInt64Ptr(c.MinInt)
		out[i].MaxInt = cloneInt64Ptr(c.MaxInt)
		out[i].MinNumber = cloneFloatPtr(c.MinNumber)
		out[i].MaxNumber = cloneFloatPtr(c.MaxNumber)
		out[i].Const = cloneBoolPtr(c.Const)
		out[i].MinItems = cloneIntPtr(c.MinItems)
		out[i].MaxItems = cloneIntPtr(c.MaxItems)
		if c.Element != nil {
			inner := cloneConstraints([]Constraint{*c.Element})
			out[i].Element = &inner[0]
		}
	}
	return out
}

func constraintEqual(a, b Constraint) bool {
	if a.target != b.target || a.Pattern != b.Pattern {
		return false
	}
	if len(a.Enum) != len(b.Enum) {
		return false
	}
	for i := range a.Enum {
		if a.Enum[i] != b.Enum[i] {
			return false
		}
	}
	if !intPtrEqual(a.MinLength, b.MinLength) || !intPtrEqual(a.MaxLength, b.MaxLength) ||
		!int64PtrEqual(a.MinInt, b.MinInt) || !int64PtrEqual(a.MaxInt, b.MaxInt) ||
		!floatPtrEqual(a.MinNumber, b.MinNumber) || !floatPtrEqual(a.MaxNumber, b.MaxNumber) ||
		!boolPtrEqual(a.Const, b.Const) ||
		!intPtrEqual(a.MinItems, b.MinItems) || !intPtrEqual(a.MaxItems, b.MaxItems) {
		return false
	}
	if (a.Element == nil) != (b.Element == nil) {
		return false
	}
	if a.Element != nil && !constraintEqual(*a.Element, *b.Element) {
		return false
	}
	return true
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt64Ptr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneBoolPtr(p *bool) *bool {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func boolPtrEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
