package generate

import (
	"context"
	"errors"
	"testing"

	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/message"
	"github.com/cexll/structgen/pkg/model"
	"github.com/cexll/structgen/pkg/schema"
	"github.com/cexll/structgen/pkg/tool"
	"github.com/cexll/structgen/pkg/tool/builtin"
)

// scriptedBackend replays a fixed sequence of turns. Stream replays the
// turn's text as scripted deltas.
type scriptedBackend struct {
	turns    []*model.Turn
	deltas   [][]string
	err      error
	calls    int
	requests []model.Request
}

func (b *scriptedBackend) next(req model.Request) (*model.Turn, []string, error) {
	b.requests = append(b.requests, req)
	if b.err != nil {
		return nil, nil, b.err
	}
	if b.calls >= len(b.turns) {
		return nil, nil, errors.New("scripted backend exhausted")
	}
	turn := b.turns[b.calls]
	var deltas []string
	if b.calls < len(b.deltas) {
		deltas = b.deltas[b.calls]
	}
	b.calls++
	return turn, deltas, nil
}

func (b *scriptedBackend) Complete(_ context.Context, req model.Request) (*model.Turn, error) {
	turn, _, err := b.next(req)
	return turn, err
}

func (b *scriptedBackend) Stream(_ context.Context, req model.Request) (model.TextStream, error) {
	turn, deltas, err := b.next(req)
	if err != nil {
		return nil, err
	}
	return &replayStream{deltas: deltas, turn: turn}, nil
}

type replayStream struct {
	deltas []string
	turn   *model.Turn
	pos    int
}

func (s *replayStream) Next() bool {
	if s.pos < len(s.deltas) {
		s.pos++
		return true
	}
	return false
}

func (s *replayStream) Delta() string     { return s.deltas[s.pos-1] }
func (s *replayStream) Turn() *model.Turn { return s.turn }
func (s *replayStream) Err() error        { return nil }
func (s *replayStream) Close() error      { return nil }

func textTurn(text string) *model.Turn {
	return &model.Turn{
		Message:    message.Assistant(text),
		StopReason: model.StopEndTurn,
		Usage:      model.Usage{PromptTokens: 10, CompletionTokens: 5},
	}
}

func toolTurn(id, name string, args content.Content) *model.Turn {
	call := message.ToolCallChunk{ID: id, Name: name, Arguments: args}
	return &model.Turn{
		Message:    message.Message{Role: message.RoleAssistant, Chunks: []message.Chunk{call}},
		ToolCalls:  []message.ToolCall{{ID: id, Name: name, Arguments: args}},
		StopReason: model.StopToolUse,
	}
}

func calculatorRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	reg := tool.NewRegistry()
	calc, err := builtin.Calculator()
	if err != nil {
		t.Fatalf("Calculator: %v", err)
	}
	if err := reg.Register(calc); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return reg
}

func calcArgs(op string, a, b float64) content.Content {
	return content.Object(map[string]content.Content{
		"operation": content.String(op),
		"a":         content.Number(a),
		"b":         content.Number(b),
	})
}

func TestGenerateText(t *testing.T) {
	backend := &scriptedBackend{turns: []*model.Turn{textTurn("hello there")}}
	g, err := New(backend)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	history := message.NewHistory(message.User("say hello"))

	res, err := g.Generate(context.Background(), history, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Structured {
		t.Fatal("text target should not be structured")
	}
	if res.Text != "hello there" {
		t.Fatalf("text = %q", res.Text)
	}
	if history.Len() != 2 {
		t.Fatalf("history = %d messages, want 2", history.Len())
	}
}

func TestGenerateToolLoop(t *testing.T) {
	backend := &scriptedBackend{turns: []*model.Turn{
		toolTurn("call-1", "calculator", calcArgs("multiply", 6, 7)),
		textTurn("The answer is 42."),
	}}
	g, err := New(backend, WithTools(calculatorRegistry(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	history := message.NewHistory(message.User("what is 6 times 7?"))

	res, err := g.Generate(context.Background(), history, schema.String())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "The answer is 42." {
		t.Fatalf("text = %q", res.Text)
	}
	if res.ToolTurns != 1 {
		t.Fatalf("tool turns = %d, want 1", res.ToolTurns)
	}
	// one tool turn adds assistant + tool output, then the terminal
	// assistant: user + 2*1 + 1
	if history.Len() != 4 {
		t.Fatalf("history = %d messages, want 4", history.Len())
	}
	msgs := history.Snapshot()
	if msgs[2].Role != message.RoleTool {
		t.Fatalf("msgs[2].Role = %s", msgs[2].Role)
	}
	result, ok := msgs[2].Chunks[0].(message.ToolResultChunk)
	if !ok || result.ID != "call-1" {
		t.Fatalf("tool result chunk = %+v", msgs[2].Chunks[0])
	}
	value, ok := result.Chunks[0].(message.ContentChunk)
	if !ok {
		t.Fatalf("result payload = %+v", result.Chunks[0])
	}
	if n, _ := value.Value.AsFloat(); n != 42 {
		t.Fatalf("calculator result = %g, want 42", n)
	}
	// the second request must include the tool output
	if len(backend.requests) != 2 {
		t.Fatalf("requests = %d", len(backend.requests))
	}
	last := backend.requests[1].Messages
	if last[len(last)-1].Role != message.RoleTool {
		t.Fatalf("second request should end with the tool output, got %s", last[len(last)-1].Role)
	}
}

func TestGenerateMultipleToolTurns(t *testing.T) {
	backend := &scriptedBackend{turns: []*model.Turn{
		toolTurn("call-1", "calculator", calcArgs("add", 1, 2)),
		toolTurn("call-2", "calculator", calcArgs("add", 3, 4)),
		textTurn("done"),
	}}
	g, _ := New(backend, WithTools(calculatorRegistry(t)))
	history := message.NewHistory(message.User("chain"))

	res, err := g.Generate(context.Background(), history, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.ToolTurns != 2 {
		t.Fatalf("tool turns = %d, want 2", res.ToolTurns)
	}
	// user + 2*N + 1 with N=2
	if history.Len() != 6 {
		t.Fatalf("history = %d messages, want 6", history.Len())
	}
}

func TestGenerateStructured(t *testing.T) {
	target := schema.MustObject("answer", "",
		schema.Prop("value", schema.Integer()),
		schema.Prop("reasoning", schema.String()),
	)
	backend := &scriptedBackend{turns: []*model.Turn{
		textTurn(`{"value": 42, "reasoning": "six times seven"}`),
	}}
	g, _ := New(backend)
	history := message.NewHistory(message.User("compute"))

	res, err := g.Generate(context.Background(), history, target)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Structured {
		t.Fatal("expected structured result")
	}
	v, err := res.Value.Field("value")
	if err != nil {
		t.Fatalf("Field: %v", err)
	}
	if n, _ := v.AsInt(); n != 42 {
		t.Fatalf("value = %d", n)
	}
}

func TestGenerateStructuredViolationAborts(t *testing.T) {
	min := int64(100)
	valueSchema, err := schema.WithConstraint(schema.Integer(), schema.IntRangeConstraint(&min, nil))
	if err != nil {
		t.Fatalf("WithConstraint: %v", err)
	}
	target := schema.MustObject("answer", "", schema.Prop("value", valueSchema))
	backend := &scriptedBackend{turns: []*model.Turn{textTurn(`{"value": 42}`)}}
	g, _ := New(backend)
	history := message.NewHistory(message.User("compute"))

	if _, err := g.Generate(context.Background(), history, target); err == nil {
		t.Fatal("constraint violation should fail the run")
	}
	if history.Len() != 1 {
		t.Fatalf("failed run must not touch history, got %d messages", history.Len())
	}
}

func TestGenerateToolNotFound(t *testing.T) {
	backend := &scriptedBackend{turns: []*model.Turn{
		toolTurn("call-1", "missing", content.Object(nil)),
	}}
	g, _ := New(backend, WithTools(tool.NewRegistry()))
	history := message.NewHistory(message.User("go"))

	_, err := g.Generate(context.Background(), history, nil)
	var notFound *ToolNotFoundError
	if !errors.As(err, &notFound) || notFound.Name != "missing" {
		t.Fatalf("err = %v, want ToolNotFoundError", err)
	}
	if history.Len() != 1 {
		t.Fatalf("failed run must not touch history, got %d messages", history.Len())
	}
}

func TestGenerateToolFailureAborts(t *testing.T) {
	backend := &scriptedBackend{turns: []*model.Turn{
		toolTurn("call-1", "calculator", calcArgs("divide", 1, 0)),
		textTurn("unreachable"),
	}}
	g, _ := New(backend, WithTools(calculatorRegistry(t)))
	history := message.NewHistory(message.User("divide by zero"))

	_, err := g.Generate(context.Background(), history, nil)
	var execErr *ToolExecutionError
	if !errors.As(err, &execErr) || execErr.Name != "calculator" {
		t.Fatalf("err = %v, want ToolExecutionError", err)
	}
	if backend.calls != 1 {
		t.Fatalf("loop must abort immediately, backend called %d times", backend.calls)
	}
	if history.Len() != 1 {
		t.Fatalf("failed run must not touch history, got %d messages", history.Len())
	}
}

func TestGenerateHookVeto(t *testing.T) {
	backend := &scriptedBackend{turns: []*model.Turn{
		toolTurn("call-1", "calculator", calcArgs("add", 1, 1)),
	}}
	veto := errors.New("blocked by policy")
	g, _ := New(backend,
		WithTools(calculatorRegistry(t)),
		WithHooks(Hooks{
			PreToolCall: func(context.Context, message.ToolCall) error { return veto },
		}),
	)
	history := message.NewHistory(message.User("go"))

	if _, err := g.Generate(context.Background(), history, nil); !errors.Is(err, veto) {
		t.Fatalf("err = %v, want the hook veto", err)
	}
	if history.Len() != 1 {
		t.Fatal("vetoed run must not touch history")
	}
}

func TestGenerateRequiresUserTail(t *testing.T) {
	backend := &scriptedBackend{turns: []*model.Turn{textTurn("x")}}
	g, _ := New(backend)
	history := message.NewHistory(message.User("hi"), message.Assistant("hello"))

	if _, err := g.Generate(context.Background(), history, nil); err == nil {
		t.Fatal("history not ending in a user message should be rejected")
	}
}

func TestGenerateBackendErrorPassthrough(t *testing.T) {
	boom := &model.BackendError{Provider: "stub", Operation: "complete", Err: errors.New("boom")}
	backend := &scriptedBackend{err: boom}
	g, _ := New(backend)
	history := message.NewHistory(message.User("hi"))

	_, err := g.Generate(context.Background(), history, nil)
	var be *model.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want BackendError", err)
	}
}
