package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestObjectRejectsDuplicateProperties(t *testing.T) {
	_, err := Object("person", "",
		Prop("name", String()),
		Prop("name", Integer()),
	)
	if !errors.Is(err, ErrDuplicateProperty) {
		t.Fatalf("expected ErrDuplicateProperty, got %v", err)
	}
}

func TestObjectPreservesPropertyOrder(t *testing.T) {
	s, err := Object("person", "",
		Prop("name", String()),
		OptionalProp("age", Integer()),
		Prop("city", String()),
	)
	if err != nil {
		t.Fatalf("object: %v", err)
	}
	want := []string{"name", "age", "city"}
	for i, p := range s.Properties {
		if p.Name != want[i] {
			t.Fatalf("property %d = %q, want %q", i, p.Name, want[i])
		}
	}
	if !s.Properties[1].Optional {
		t.Fatal("age should be optional")
	}
}

func TestEqual(t *testing.T) {
	base := MustObject("person", "",
		Prop("name", String()),
		Prop("tags", Array(String())),
	)
	tests := []struct {
		name string
		a, b *Schema
		want bool
	}{
		{name: "identical trees", a: base, b: base.Clone(), want: true},
		{name: "nil vs nil", a: nil, b: nil, want: true},
		{name: "nil vs value", a: nil, b: String(), want: false},
		{name: "kind differs", a: String(), b: Integer(), want: false},
		{
			name: "property order matters",
			a:    MustObject("p", "", Prop("a", String()), Prop("b", String())),
			b:    MustObject("p", "", Prop("b", String()), Prop("a", String())),
			want: false,
		},
		{
			name: "constraints compared",
			a:    constrained(String(), PatternConstraint("^a")),
			b:    String(),
			want: false,
		},
		{
			name: "anyOf alternatives compared",
			a:    AnyOf("u", "", String(), Integer()),
			b:    AnyOf("u", "", String(), Number()),
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Fatalf("Equal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := MustObject("person", "", Prop("tags", Array(String())))
	dup := orig.Clone()
	dup.Properties[0].Schema.Items.Kind = KindInteger
	if orig.Properties[0].Schema.Items.Kind != KindString {
		t.Fatal("clone shares item schema with original")
	}
}

func TestIsTrivialString(t *testing.T) {
	if !IsTrivialString(String()) {
		t.Fatal("bare string schema should be trivial")
	}
	if IsTrivialString(constrained(String(), PatternConstraint("^a"))) {
		t.Fatal("constrained string is not trivial")
	}
	if IsTrivialString(Integer()) {
		t.Fatal("integer is not trivial string")
	}
}

func TestMarshalJSON(t *testing.T) {
	s := MustObject("person", "a person",
		Prop("name", constrained(String(), PatternConstraint("^[A-Z]"))),
		OptionalProp("age", constrained(Integer(), IntRangeConstraint(i64(0), i64(150)))),
	)
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["type"] != "object" {
		t.Fatalf("type = %v", m["type"])
	}
	req, _ := m["required"].([]any)
	if len(req) != 1 || req[0] != "name" {
		t.Fatalf("required = %v", m["required"])
	}
	props := m["properties"].(map[string]any)
	name := props["name"].(map[string]any)
	if name["pattern"] != "^[A-Z]" {
		t.Fatalf("pattern = %v", name["pattern"])
	}
	age := props["age"].(map[string]any)
	if age["minimum"] != float64(0) || age["maximum"] != float64(150) {
		t.Fatalf("age bounds = %v..%v", age["minimum"], age["maximum"])
	}
	if !strings.Contains(string(data), "additionalProperties") {
		t.Fatal("object schema should pin additionalProperties")
	}
}

func constrained(s *Schema, c Constraint) *Schema {
	out, err := WithConstraint(s, c)
	if err != nil {
		panic(err)
	}
	return out
}

func i64(v int64) *int64 { return &v }
