package generate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/descriptor"
	"github.com/cexll/structgen/pkg/event"
	"github.com/cexll/structgen/pkg/jsonrepair"
	"github.com/cexll/structgen/pkg/message"
	"github.com/cexll/structgen/pkg/model"
	"github.com/cexll/structgen/pkg/schema"
	"github.com/cexll/structgen/pkg/telemetry"
	"github.com/cexll/structgen/pkg/tool"
)

// Hooks observe and may veto the generation lifecycle. A non-nil error from
// any hook aborts the run before history is committed.
type Hooks struct {
	PreGenerate  func(ctx context.Context, msgs []message.Message) error
	PostGenerate func(ctx context.Context, turn *model.Turn) error
	PreToolCall  func(ctx context.Context, call message.ToolCall) error
	PostToolCall func(ctx context.Context, call message.ToolCall, res *tool.Result, err error) error
}

// Option configures a Generator.
type Option func(*Generator)

// WithTools attaches a tool registry.
func WithTools(reg *tool.Registry) Option {
	return func(g *Generator) { g.tools = reg }
}

// WithHooks attaches lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(g *Generator) { g.hooks = h }
}

// WithLogger attaches a structured logger. The generator is silent without
// one.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// WithRequestOptions sets the per-request backend options.
func WithRequestOptions(opts model.Options) Option {
	return func(g *Generator) { g.reqOpts = opts }
}

// WithTelemetry attaches a telemetry manager for metrics. Spans always go
// through the default manager.
func WithTelemetry(mgr *telemetry.Manager) Option {
	return func(g *Generator) { g.metrics = mgr }
}

// Generator runs the model/tool interaction loop against one backend.
type Generator struct {
	backend   model.Backend
	tools     *tool.Registry
	hooks     Hooks
	logger    *slog.Logger
	reqOpts   model.Options
	metrics   *telemetry.Manager
	events    EventSink
	eventConv string
}

// New builds a Generator. The backend is required; everything else is
// optional.
func New(backend model.Backend, opts ...Option) (*Generator, error) {
	if backend == nil {
		return nil, fmt.Errorf("generate: backend is nil")
	}
	g := &Generator{backend: backend}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Result is the outcome of one generation run. Exactly one of Text and
// Value is meaningful, selected by Structured: a trivial-string (or nil)
// target schema produces Text, anything else produces Value.
type Result struct {
	Text       string
	Value      content.Content
	Structured bool

	// Messages is the full history after the run, committed atomically.
	Messages  []message.Message
	Usage     model.Usage
	ToolTurns int
}

// Generate runs the loop to completion: model turns that request tools are
// dispatched strictly in call order, their outputs appended, and the model
// re-invoked; a turn without tool calls terminates the run. The caller
// bounds runaway loops through ctx. History commits once, atomically, after
// the terminal turn; any abort leaves it untouched.
func (g *Generator) Generate(ctx context.Context, history *message.History, target *schema.Schema) (_ *Result, err error) {
	started := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "generate.invoke",
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("generate.schema", schemaName(target)),
			attribute.Bool("generate.stream", false),
		)...),
	)
	defer telemetry.EndSpan(span, err)
	defer func() {
		if err != nil {
			g.publish(ctx, event.EventError, map[string]any{"error": err.Error()})
		}
	}()

	snapshot := history.Snapshot()
	if err = message.ValidateForGeneration(snapshot); err != nil {
		return nil, err
	}
	if g.hooks.PreGenerate != nil {
		if err = g.hooks.PreGenerate(ctx, snapshot); err != nil {
			return nil, fmt.Errorf("generate: pre-generate hook: %w", err)
		}
	}

	working := snapshot
	var committed []message.Message
	var usage model.Usage
	toolTurns := 0

	var result *Result
	for {
		if err = ctx.Err(); err != nil {
			return nil, err
		}
		var turn *model.Turn
		turn, err = g.backend.Complete(ctx, model.Request{
			Messages: working,
			Schema:   target,
			Tools:    g.specs(),
			Options:  g.reqOpts,
		})
		if err != nil {
			return nil, err
		}
		usage.PromptTokens += turn.Usage.PromptTokens
		usage.CompletionTokens += turn.Usage.CompletionTokens
		if g.hooks.PostGenerate != nil {
			if err = g.hooks.PostGenerate(ctx, turn); err != nil {
				return nil, fmt.Errorf("generate: post-generate hook: %w", err)
			}
		}

		working = append(working, turn.Message)
		committed = append(committed, turn.Message)

		if len(turn.ToolCalls) == 0 {
			result, err = g.terminal(turn, target)
			if err != nil {
				return nil, err
			}
			break
		}

		toolTurns++
		var outputs []message.Message
		outputs, err = g.dispatch(ctx, turn.ToolCalls)
		if err != nil {
			return nil, err
		}
		working = append(working, outputs...)
		committed = append(committed, outputs...)
	}

	history.AppendTurn(committed...)
	result.Messages = history.Snapshot()
	result.Usage = usage
	result.ToolTurns = toolTurns

	if g.logger != nil {
		g.logger.InfoContext(ctx, "generation complete",
			slog.Bool("structured", result.Structured),
			slog.Int("tool_turns", toolTurns),
			slog.Int64("prompt_tokens", usage.PromptTokens),
			slog.Int64("completion_tokens", usage.CompletionTokens),
		)
	}
	g.metrics.RecordGeneration(ctx, telemetry.GenerationData{
		Model:            g.reqOpts.Model,
		SchemaName:       schemaName(target),
		ToolTurns:        toolTurns,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		Duration:         time.Since(started),
	})
	g.publish(ctx, event.EventCompletion, map[string]any{
		"structured": result.Structured,
		"tool_turns": toolTurns,
	})
	return result, nil
}

// dispatch runs the turn's tool calls strictly in order, producing one tool
// output message carrying every result. The first failure aborts the run.
func (g *Generator) dispatch(ctx context.Context, calls []message.ToolCall) ([]message.Message, error) {
	var chunks []message.Chunk
	for _, call := range calls {
		res, err := g.invokeTool(ctx, call)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, message.ToolResultChunk{
			ID:     call.ID,
			Name:   call.Name,
			Chunks: res.Chunks,
		})
	}
	return []message.Message{{Role: message.RoleTool, Chunks: chunks}}, nil
}

func (g *Generator) invokeTool(ctx context.Context, call message.ToolCall) (_ *tool.Result, err error) {
	ctx, span := telemetry.StartSpan(ctx, "generate.tool",
		trace.WithAttributes(
			attribute.String("tool.name", call.Name),
			attribute.String("tool.call_id", call.ID),
		),
	)
	defer telemetry.EndSpan(span, err)
	defer func() {
		g.metrics.RecordToolCall(ctx, telemetry.ToolData{Name: call.Name, Error: err})
	}()

	var candidate tool.Tool
	if g.tools != nil {
		candidate, _ = g.tools.Get(call.Name)
	}
	if candidate == nil {
		err = &ToolNotFoundError{Name: call.Name}
		return nil, err
	}
	if g.hooks.PreToolCall != nil {
		if err = g.hooks.PreToolCall(ctx, call); err != nil {
			return nil, fmt.Errorf("generate: pre-tool hook: %w", err)
		}
	}
	if g.logger != nil {
		g.logger.DebugContext(ctx, "dispatching tool", slog.String("tool", call.Name), slog.String("id", call.ID))
	}
	g.publish(ctx, event.EventToolCall, map[string]any{
		"id":        call.ID,
		"name":      call.Name,
		"arguments": call.Arguments.ToAny(),
	})

	res, execErr := candidate.Execute(ctx, call.Arguments)
	if g.hooks.PostToolCall != nil {
		if hookErr := g.hooks.PostToolCall(ctx, call, res, execErr); hookErr != nil {
			err = fmt.Errorf("generate: post-tool hook: %w", hookErr)
			return nil, err
		}
	}
	if execErr != nil {
		err = &ToolExecutionError{Name: call.Name, ID: call.ID, Err: execErr}
		return nil, err
	}
	if res == nil {
		res = tool.TextResult("")
	}
	g.publish(ctx, event.EventToolResult, map[string]any{
		"id":   call.ID,
		"name": call.Name,
	})
	return res, nil
}

// terminal resolves the final turn into the Result sum.
func (g *Generator) terminal(turn *model.Turn, target *schema.Schema) (*Result, error) {
	text := turn.Message.Text()
	if target == nil || schema.IsTrivialString(target) {
		return &Result{Text: text, Structured: false}, nil
	}
	value, err := parseStructured(text)
	if err != nil {
		return nil, err
	}
	if err := descriptor.Validate(value, target); err != nil {
		return nil, fmt.Errorf("generate: terminal value: %w", err)
	}
	return &Result{Value: value, Structured: true}, nil
}

// parseStructured decodes the model's final text as a JSON document,
// falling back to structural repair when the backend cut the text short.
func parseStructured(text string) (content.Content, error) {
	value, err := content.Parse([]byte(text))
	if err == nil {
		return value, nil
	}
	repaired := jsonrepair.Repair(text)
	if repaired == "" {
		return content.Null(), fmt.Errorf("generate: terminal output is not a JSON document: %w", err)
	}
	return content.Parse([]byte(repaired))
}

func (g *Generator) specs() []model.ToolSpec {
	if g.tools == nil {
		return nil
	}
	return g.tools.Specs()
}

func schemaName(s *schema.Schema) string {
	if s == nil {
		return ""
	}
	if s.Name != "" {
		return s.Name
	}
	return string(s.Kind)
}
