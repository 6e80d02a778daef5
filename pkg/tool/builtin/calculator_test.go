package builtin

import (
	"context"
	"fmt"
	"testing"

	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/message"
)

func TestCalculator(t *testing.T) {
	calc, err := Calculator()
	if err != nil {
		t.Fatalf("Calculator: %v", err)
	}
	tests := []struct {
		op      string
		a, b    float64
		want    float64
		wantErr bool
	}{
		{op: "add", a: 2, b: 3, want: 5},
		{op: "subtract", a: 10, b: 4, want: 6},
		{op: "multiply", a: 6, b: 7, want: 42},
		{op: "divide", a: 9, b: 3, want: 3},
		{op: "power", a: 2, b: 10, want: 1024},
		{op: "divide", a: 1, b: 0, wantErr: true},
		{op: "modulo", a: 1, b: 2, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%g_%g", tt.op, tt.a, tt.b), func(t *testing.T) {
			args := content.Object(map[string]content.Content{
				"operation": content.String(tt.op),
				"a":         content.Number(tt.a),
				"b":         content.Number(tt.b),
			})
			res, err := calc.Execute(context.Background(), args)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			value, ok := res.Chunks[0].(message.ContentChunk)
			if !ok {
				t.Fatalf("chunk = %+v", res.Chunks[0])
			}
			got, err := value.Value.AsFloat()
			if err != nil {
				t.Fatalf("AsFloat: %v", err)
			}
			if got != tt.want {
				t.Fatalf("result = %g, want %g", got, tt.want)
			}
		})
	}
}

func TestCalculatorRejectsUnknownEnum(t *testing.T) {
	calc, err := Calculator()
	if err != nil {
		t.Fatalf("Calculator: %v", err)
	}
	s := calc.Schema()
	if len(s.Properties) != 3 {
		t.Fatalf("properties = %d, want 3", len(s.Properties))
	}
	if len(s.Properties[0].Schema.Constraints) == 0 {
		t.Fatal("operation should carry an enum constraint")
	}
}
