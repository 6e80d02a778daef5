package jsonrepair

import (
	"encoding/json"
	"testing"
)

func TestRepairTruncatedInputs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: "   ", want: ""},
		{name: "bare open brace", in: "{", want: "{}"},
		{name: "bare open bracket", in: "[", want: "[]"},
		{name: "unterminated string value", in: `{"a": "Joh`, want: `{"a": "Joh"}`},
		{name: "trailing array comma", in: `[1, 2, `, want: `[1, 2]`},
		{name: "dangling nested key", in: `{"outer": {"inner"`, want: `{}`},
		{name: "dangling key in flat object", in: `{"name`, want: `{}`},
		{name: "trailing object comma", in: `{"a": 1,`, want: `{"a": 1}`},
		{name: "partial number dropped", in: `{"a": 1`, want: `{}`},
		{name: "partial number after complete element", in: `[true, 12`, want: `[true]`},
		{name: "partial float dropped", in: `[1, 2.5, 3.`, want: `[1, 2.5]`},
		{name: "literal true complete", in: `[true`, want: `[true]`},
		{name: "literal false complete", in: `{"ok": false`, want: `{"ok": false}`},
		{name: "literal null complete", in: `[null`, want: `[null]`},
		{name: "partial literal dropped", in: `[tru`, want: `[]`},
		{name: "nested object value complete", in: `{"a": {"b": true}`, want: `{"a": {"b": true}}`},
		{name: "nested array closed", in: `{"items": [1, 2]`, want: `{"items": [1, 2]}`},
		{name: "open array value discarded with holder", in: `{"a": [`, want: `{}`},
		{name: "deep nesting closes in order", in: `[[["x"`, want: `[[["x"]]]`},
		{name: "string with escaped quote", in: `{"a": "x\"`, want: `{"a": "x\""}`},
		{name: "trailing odd escape dropped", in: `{"a": "x\`, want: `{"a": "x"}`},
		{name: "even escape run kept", in: `{"a": "x\\`, want: `{"a": "x\\"}`},
		{name: "structural chars inside string", in: `{"a": "br{ack]et, :`, want: `{"a": "br{ack]et, :"}`},
		{name: "second member trimmed to first", in: `{"a": true, "b": 17`, want: `{"a": true}`},
		{name: "second member complete", in: `{"a": 1, "b": null`, want: `{"a": 1, "b": null}`},
		{name: "unterminated key after comma", in: `{"a": 1, "b`, want: `{"a": 1}`},
		{name: "colon but no value", in: `{"a":`, want: `{}`},
		{name: "top level truncated literal", in: `tr`, want: ""},
		{name: "unmatched closer ignored", in: `}`, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Repair(tt.in); got != tt.want {
				t.Fatalf("Repair(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRepairCompleteDocumentsUnchanged(t *testing.T) {
	docs := []string{
		`{}`,
		`[]`,
		`{"a": 1, "b": [true, null, "x"]}`,
		`[1, 2, 3]`,
		`"scalar string"`,
		`42`,
		`-3.5`,
		`true`,
		`null`,
		`{"nested": {"deep": [{"leaf": "v"}]}}`,
	}
	for _, doc := range docs {
		if got := Repair(doc); got != doc {
			t.Fatalf("Repair(%q) = %q, want unchanged", doc, got)
		}
	}
}

func TestRepairTrimsSurroundingWhitespace(t *testing.T) {
	if got := Repair("  {\"a\": 1}\n"); got != `{"a": 1}` {
		t.Fatalf("got %q", got)
	}
}

func TestRepairIdempotent(t *testing.T) {
	inputs := []string{
		"", "   ", "{", "[", `{"a": "Joh`, `[1, 2, `, `{"outer": {"inner"`,
		`{"a": 1`, `[tru`, `{"a": [`, `[[["x"`, `{"a": "x\`, `tr`, `}`,
		`{"a": 1, "b": null`, `"half`,
	}
	for _, in := range inputs {
		once := Repair(in)
		twice := Repair(once)
		if once != twice {
			t.Fatalf("Repair not idempotent on %q: %q then %q", in, once, twice)
		}
	}
}

func TestRepairOutputAlwaysValidOrEmpty(t *testing.T) {
	inputs := []string{
		"", "x", "{", "[", "}", "]", `{"`, `{"a`, `{"a"`, `{"a":`, `{"a": `,
		`{"a": 1`, `{"a": 1,`, `{"a": 1, `, `{"a": 1, "`, `{"a": [1, {"b`,
		`[`, `[1`, `[1,`, `[[`, `[{`, `[{"x": [`, `"abc`, `"abc\`, `12.`, `-`,
		`{"s": "emoji \u00`, `[null,`,
	}
	for _, in := range inputs {
		got := Repair(in)
		if got == "" {
			continue
		}
		if !json.Valid([]byte(got)) {
			t.Fatalf("Repair(%q) = %q is not valid JSON", in, got)
		}
	}
}

// Every prefix of a valid document must repair to valid JSON or empty; the
// full document must repair to itself.
func TestRepairEveryPrefix(t *testing.T) {
	doc := `{"name": "Ada Lovelace", "tags": ["math", "computing"], "age": 36, "notes": {"quote": "first \"programmer\"", "verified": true, "score": 9.75, "refs": [null, false]}}`
	for i := 0; i <= len(doc); i++ {
		prefix := doc[:i]
		got := Repair(prefix)
		if got == "" {
			continue
		}
		if !json.Valid([]byte(got)) {
			t.Fatalf("prefix %q repaired to invalid %q", prefix, got)
		}
	}
	if got := Repair(doc); got != doc {
		t.Fatalf("full document altered: %q", got)
	}
}
