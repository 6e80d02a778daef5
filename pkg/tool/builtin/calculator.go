package builtin

import (
	"context"
	"fmt"
	"math"

	"github.com/cexll/structgen/pkg/tool"
)

// CalculatorArgs is one binary arithmetic operation.
type CalculatorArgs struct {
	Operation string  `json:"operation" description:"arithmetic operation to perform" enum:"add,subtract,multiply,divide,power"`
	A         float64 `json:"a" description:"left operand"`
	B         float64 `json:"b" description:"right operand"`
}

// Calculator returns the arithmetic tool.
func Calculator() (tool.Tool, error) {
	return tool.NewFunc("calculator",
		"Performs basic arithmetic on two numbers.",
		func(_ context.Context, args CalculatorArgs) (float64, error) {
			switch args.Operation {
			case "add":
				return args.A + args.B, nil
			case "subtract":
				return args.A - args.B, nil
			case "multiply":
				return args.A * args.B, nil
			case "divide":
				if args.B == 0 {
					return 0, fmt.Errorf("calculator: division by zero")
				}
				return args.A / args.B, nil
			case "power":
				return math.Pow(args.A, args.B), nil
			default:
				return 0, fmt.Errorf("calculator: unknown operation %q", args.Operation)
			}
		})
}
