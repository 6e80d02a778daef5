package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/descriptor"
	"github.com/cexll/structgen/pkg/schema"
)

// Func adapts a plain Go function into a Tool. The argument schema is
// derived from In's struct tags; results are encoded as structured content,
// or plain text when Out is a string.
type Func[In, Out any] struct {
	name        string
	description string
	args        *descriptor.Typed[In]
	out         *descriptor.Typed[Out]
	fn          func(context.Context, In) (Out, error)
}

// NewFunc derives the schemas for In and Out and wraps fn.
func NewFunc[In, Out any](name, description string, fn func(context.Context, In) (Out, error)) (*Func[In, Out], error) {
	if name == "" {
		return nil, errors.New("tool: tool name is empty")
	}
	if fn == nil {
		return nil, errors.New("tool: fn is nil")
	}
	args, err := descriptor.For[In]()
	if err != nil {
		return nil, fmt.Errorf("tool: %s arguments: %w", name, err)
	}
	out, err := descriptor.For[Out]()
	if err != nil {
		return nil, fmt.Errorf("tool: %s result: %w", name, err)
	}
	return &Func[In, Out]{
		name:        name,
		description: description,
		args:        args,
		out:         out,
		fn:          fn,
	}, nil
}

// MustFunc is NewFunc that panics on error, for static tool tables.
func MustFunc[In, Out any](name, description string, fn func(context.Context, In) (Out, error)) *Func[In, Out] {
	t, err := NewFunc(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

func (f *Func[In, Out]) Name() string           { return f.name }
func (f *Func[In, Out]) Description() string    { return f.description }
func (f *Func[In, Out]) Schema() *schema.Schema { return f.args.Schema() }

func (f *Func[In, Out]) Execute(ctx context.Context, args content.Content) (*Result, error) {
	in, err := f.args.DecodeValue(args)
	if err != nil {
		return nil, fmt.Errorf("tool: %s: decode arguments: %w", f.name, err)
	}
	out, err := f.fn(ctx, in)
	if err != nil {
		return nil, err
	}
	encoded, err := f.out.Encode(out)
	if err != nil {
		return nil, fmt.Errorf("tool: %s: encode result: %w", f.name, err)
	}
	if s, serr := encoded.AsString(); serr == nil {
		return TextResult(s), nil
	}
	return ContentResult(encoded), nil
}
