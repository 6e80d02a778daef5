package descriptor

import (
	"errors"
	"testing"

	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/schema"
)

type person struct {
	Name    string   `json:"name" description:"full name" minLength:"1"`
	Age     int      `json:"age" minimum:"0" maximum:"150"`
	Email   *string  `json:"email"`
	Tags    []string `json:"tags,omitempty"`
	Retired bool     `json:"retired"`
}

func TestForSchemaShape(t *testing.T) {
	d, err := For[person]()
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	s := d.Schema()
	if s.Kind != schema.KindObject {
		t.Fatalf("kind = %s, want object", s.Kind)
	}
	if len(s.Properties) != 5 {
		t.Fatalf("properties = %d, want 5", len(s.Properties))
	}
	byName := map[string]schema.Property{}
	for _, p := range s.Properties {
		byName[p.Name] = p
	}
	if byName["name"].Schema.Kind != schema.KindString {
		t.Fatalf("name kind = %s", byName["name"].Schema.Kind)
	}
	if byName["name"].Description != "full name" {
		t.Fatalf("name description = %q", byName["name"].Description)
	}
	if len(byName["name"].Schema.Constraints) != 1 {
		t.Fatalf("name constraints = %d, want 1", len(byName["name"].Schema.Constraints))
	}
	if byName["age"].Schema.Kind != schema.KindInteger {
		t.Fatalf("age kind = %s", byName["age"].Schema.Kind)
	}
	if !byName["email"].Optional {
		t.Fatal("pointer field should be optional")
	}
	if !byName["tags"].Optional {
		t.Fatal("omitempty field should be optional")
	}
	if byName["tags"].Schema.Kind != schema.KindArray || byName["tags"].Schema.Items.Kind != schema.KindString {
		t.Fatal("tags should be array of string")
	}
	if byName["retired"].Optional {
		t.Fatal("plain field should be required")
	}
}

func TestForRejectsInterfaceType(t *testing.T) {
	if _, err := For[error](); err == nil {
		t.Fatal("expected error for interface type")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	d, err := For[person]()
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	email := "ada@example.com"
	in := person{Name: "Ada", Age: 36, Email: &email, Tags: []string{"math"}}
	c, err := d.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, err := d.DecodeValue(c)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != in.Name || out.Age != in.Age || out.Retired != in.Retired {
		t.Fatalf("round trip mismatch: %+v", out)
	}
	if out.Email == nil || *out.Email != email {
		t.Fatalf("email = %v", out.Email)
	}
	if len(out.Tags) != 1 || out.Tags[0] != "math" {
		t.Fatalf("tags = %v", out.Tags)
	}
}

func TestDecodeMissingRequired(t *testing.T) {
	d, _ := For[person]()
	c, err := content.Parse([]byte(`{"name": "Ada"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = d.DecodeValue(c)
	var missing *content.MissingPropertyError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want MissingPropertyError", err)
	}
}

func TestDecodeTypeMismatchCarriesPath(t *testing.T) {
	d, _ := For[person]()
	c, err := content.Parse([]byte(`{"name": "Ada", "age": "old", "retired": false}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = d.DecodeValue(c)
	var tm *content.TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("err = %v, want TypeMismatchError", err)
	}
	if tm.Path != "$.age" {
		t.Fatalf("path = %q, want $.age", tm.Path)
	}
}

func TestDecodePartialKeepsWhatFits(t *testing.T) {
	d, _ := For[person]()
	c, err := content.Parse([]byte(`{"name": "Ada", "age": "garbled", "tags": ["a", 7, "b"]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out := d.DecodePartialValue(c)
	if out.Name != "Ada" {
		t.Fatalf("name = %q", out.Name)
	}
	if out.Age != 0 {
		t.Fatalf("age = %d, want zero", out.Age)
	}
	if len(out.Tags) != 1 || out.Tags[0] != "a" {
		t.Fatalf("tags = %v, want [a]", out.Tags)
	}
}

func TestValidateConstraints(t *testing.T) {
	min := int64(0)
	age, err := schema.WithConstraint(schema.Integer(), schema.IntRangeConstraint(&min, nil))
	if err != nil {
		t.Fatalf("WithConstraint: %v", err)
	}
	mood, err := schema.WithConstraint(schema.String(), schema.EnumConstraint("happy", "sad"))
	if err != nil {
		t.Fatalf("WithConstraint: %v", err)
	}
	s := schema.MustObject("profile", "",
		schema.Prop("age", age),
		schema.Prop("mood", mood),
	)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", `{"age": 3, "mood": "happy"}`, false},
		{"below minimum", `{"age": -1, "mood": "happy"}`, true},
		{"outside enum", `{"age": 3, "mood": "angry"}`, true},
		{"missing required", `{"age": 3}`, true},
		{"undeclared property", `{"age": 3, "mood": "sad", "extra": 1}`, true},
		{"wrong kind", `{"age": "three", "mood": "sad"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := content.Parse([]byte(tt.input))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			err = Validate(c, s)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate err = %v, wantErr = %t", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePattern(t *testing.T) {
	s, err := schema.WithConstraint(schema.String(), schema.PatternConstraint(`^\d{4}-\d{2}-\d{2}$`))
	if err != nil {
		t.Fatalf("WithConstraint: %v", err)
	}
	if err := Validate(content.String("2026-08-26"), s); err != nil {
		t.Fatalf("valid date rejected: %v", err)
	}
	if err := Validate(content.String("yesterday"), s); err == nil {
		t.Fatal("invalid date accepted")
	}
}

func TestValidateAnyOf(t *testing.T) {
	s := schema.AnyOf("id", "", schema.String(), schema.Integer())
	if err := Validate(content.String("abc"), s); err != nil {
		t.Fatalf("string leg: %v", err)
	}
	if err := Validate(content.Int(7), s); err != nil {
		t.Fatalf("integer leg: %v", err)
	}
	if err := Validate(content.Bool(true), s); err == nil {
		t.Fatal("bool should match no alternative")
	}
}

func TestPruneObject(t *testing.T) {
	s := schema.MustObject("doc", "",
		schema.Prop("title", schema.String()),
		schema.Prop("count", schema.Integer()),
		schema.Prop("items", schema.Array(schema.String())),
	)
	c, err := content.Parse([]byte(`{"title": "draft", "count": "oops", "items": ["a", 1, "c"]}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out := Prune(c, s)
	obj, err := out.AsObject()
	if err != nil {
		t.Fatalf("AsObject: %v", err)
	}
	if _, ok := obj["count"]; ok {
		t.Fatal("mismatched field should be dropped")
	}
	items, err := obj["items"].AsArray()
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1 (stop at first bad element)", len(items))
	}
}

func TestPruneMismatchedRoot(t *testing.T) {
	out := Prune(content.String("nope"), schema.MustObject("doc", ""))
	if !out.IsNull() {
		t.Fatalf("want null for unusable fragment, got %s", out.Kind())
	}
}

func TestDynamicDescriptor(t *testing.T) {
	s := schema.MustObject("point", "",
		schema.Prop("x", schema.Number()),
		schema.Prop("y", schema.Number()),
	)
	d := NewDynamic(s)
	c, err := content.Parse([]byte(`{"x": 1.5, "y": -2}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, err := d.Decode(c)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !content.Equal(got.(content.Content), c) {
		t.Fatal("Decode should return the validated content")
	}
	bad, _ := content.Parse([]byte(`{"x": "left"}`))
	if _, err := d.Decode(bad); err == nil {
		t.Fatal("invalid content accepted")
	}
}
