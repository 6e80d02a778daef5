package schema

import (
	"errors"
	"testing"
)

func TestWithConstraintAppendsInOrder(t *testing.T) {
	s, err := WithConstraint(String(), PatternConstraint("^a"))
	if err != nil {
		t.Fatalf("first constraint: %v", err)
	}
	s, err = WithConstraint(s, EnumConstraint("alpha", "beta"))
	if err != nil {
		t.Fatalf("second constraint: %v", err)
	}
	if len(s.Constraints) != 2 {
		t.Fatalf("constraints = %d, want 2", len(s.Constraints))
	}
	if s.Constraints[0].Pattern != "^a" || len(s.Constraints[1].Enum) != 2 {
		t.Fatal("constraint order not preserved")
	}
}

func TestWithConstraintDuplicatesKept(t *testing.T) {
	s, _ := WithConstraint(String(), PatternConstraint("^a"))
	s, _ = WithConstraint(s, PatternConstraint("^a"))
	if len(s.Constraints) != 2 {
		t.Fatalf("duplicate constraint overwritten, len = %d", len(s.Constraints))
	}
}

func TestWithConstraintKindMismatch(t *testing.T) {
	tests := []struct {
		name   string
		schema *Schema
		c      Constraint
	}{
		{name: "string constraint on integer", schema: Integer(), c: PatternConstraint("^a")},
		{name: "int constraint on string", schema: String(), c: IntRangeConstraint(i64(0), nil)},
		{name: "count constraint on object", schema: MustObject("o", ""), c: CountConstraint(nil, nil)},
		{name: "element constraint on string", schema: String(), c: ElementConstraint(PatternConstraint("^a"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := WithConstraint(tt.schema, tt.c); !errors.Is(err, ErrConstraintKind) {
				t.Fatalf("expected ErrConstraintKind, got %v", err)
			}
		})
	}
}

func TestElementConstraintTargetsItemSchema(t *testing.T) {
	arr := Array(String())
	got, err := WithConstraint(arr, ElementConstraint(PatternConstraint("^x")))
	if err != nil {
		t.Fatalf("with constraint: %v", err)
	}
	if len(got.Constraints) != 0 {
		t.Fatalf("array node picked up %d constraints, want 0", len(got.Constraints))
	}
	if len(got.Items.Constraints) != 1 || got.Items.Constraints[0].Pattern != "^x" {
		t.Fatalf("item schema constraints = %+v", got.Items.Constraints)
	}
	// Original untouched.
	if len(arr.Items.Constraints) != 0 {
		t.Fatal("WithConstraint mutated its input")
	}
}

func TestElementConstraintNested(t *testing.T) {
	// array-of-array-of-string with a per-leaf pattern.
	arr := Array(Array(String()))
	c := ElementConstraint(ElementConstraint(PatternConstraint("^leaf")))
	got, err := WithConstraint(arr, c)
	if err != nil {
		t.Fatalf("with constraint: %v", err)
	}
	leaf := got.Items.Items
	if len(leaf.Constraints) != 1 || leaf.Constraints[0].Pattern != "^leaf" {
		t.Fatalf("leaf constraints = %+v", leaf.Constraints)
	}
	if len(got.Constraints) != 0 || len(got.Items.Constraints) != 0 {
		t.Fatal("intermediate array nodes must stay unconstrained")
	}
}

func TestCountConstraintStaysOnArray(t *testing.T) {
	arr := Array(Integer())
	got, err := WithConstraint(arr, CountConstraint(intp(1), intp(5)))
	if err != nil {
		t.Fatalf("with constraint: %v", err)
	}
	if len(got.Constraints) != 1 {
		t.Fatalf("array constraints = %d, want 1", len(got.Constraints))
	}
	if len(got.Items.Constraints) != 0 {
		t.Fatal("count constraint leaked into item schema")
	}
}

func intp(v int) *int { return &v }
