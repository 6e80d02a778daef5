package generate

import (
	"context"
	"fmt"
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
)

// Partial is one streamed snapshot. For a text target only Text grows; for
// a structured target Value is the repaired, schema-pruned view of the
// accumulated output so far.
type Partial struct {
	Text  string
	Value content.Content
}

// Stream is a single-pass pull iterator over a streaming generation.
// Typical use:
//
//	st, err := g.GenerateStream(ctx, history, target)
//	for st.Next() {
//	    render(st.Current())
//	}
//	result, err := st.Result()
//
// Partials grow monotonically: a field present in one partial never
// disappears from a later one, and the final partial agrees with the
// terminal value on every fully specified field.
type Stream struct {
	ctx     context.Context
	gen     *Generator
	history *message.History
	target  *schema.Schema
	span    trace.Span
	started time.Time

	textTarget bool
	inner      model.TextStream
	buf        []byte
	current    Partial
	hasCurrent bool

	committed []message.Message
	working   []message.Message
	usage     model.Usage
	toolTurns int

	result *Result
	err    error
	done   bool
}

// GenerateStream starts a streaming run. Turns that request tools are
// dispatched exactly as in Generate; text deltas of every assistant turn
// flow through the iterator. History commits atomically when the terminal
// turn completes.
func (g *Generator) GenerateStream(ctx context.Context, history *message.History, target *schema.Schema) (*Stream, error) {
	ctx, span := telemetry.StartSpan(ctx, "generate.stream",
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("generate.schema", schemaName(target)),
			attribute.Bool("generate.stream", true),
		)...),
	)

	snapshot := history.Snapshot()
	if err := message.ValidateForGeneration(snapshot); err != nil {
		telemetry.EndSpan(span, err)
		return nil, err
	}
	if g.hooks.PreGenerate != nil {
		if err := g.hooks.PreGenerate(ctx, snapshot); err != nil {
			err = fmt.Errorf("generate: pre-generate hook: %w", err)
			telemetry.EndSpan(span, err)
			return nil, err
		}
	}

	s := &Stream{
		ctx:        ctx,
		gen:        g,
		history:    history,
		target:     target,
		span:       span,
		started:    time.Now(),
		textTarget: target == nil || schema.IsTrivialString(target),
		working:    snapshot,
	}
	if err := s.openTurn(); err != nil {
		s.fail(err)
		return nil, err
	}
	return s, nil
}

func (s *Stream) openTurn() error {
	inner, err := s.gen.backend.Stream(s.ctx, model.Request{
		Messages: s.working,
		Schema:   s.target,
		Tools:    s.gen.specs(),
		Options:  s.gen.reqOpts,
	})
	if err != nil {
		return err
	}
	s.inner = inner
	s.buf = s.buf[:0]
	return nil
}

// Next advances to the following partial. It returns false when the run
// finished or failed; consult Err and Result afterwards.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	for {
		if err := s.ctx.Err(); err != nil {
			s.fail(err)
			return false
		}
		for s.inner.Next() {
			s.buf = append(s.buf, s.inner.Delta()...)
			if s.refresh() {
				return true
			}
		}
		if err := s.inner.Err(); err != nil {
			s.fail(err)
			return false
		}
		turn := s.inner.Turn()
		if turn == nil {
			s.fail(fmt.Errorf("generate: backend stream ended without a final turn"))
			return false
		}
		_ = s.inner.Close()
		if !s.endTurn(turn) {
			return false
		}
	}
}

// refresh recomputes the current partial from the accumulated text and
// reports whether it changed.
func (s *Stream) refresh() bool {
	if s.textTarget {
		text := string(s.buf)
		if text == s.current.Text {
			return false
		}
		s.gen.publish(s.ctx, event.EventTextDelta, map[string]any{"text": text[len(s.current.Text):]})
		s.current = Partial{Text: text}
		s.hasCurrent = true
		return true
	}
	repaired := jsonrepair.Repair(string(s.buf))
	if repaired == "" {
		return false
	}
	value, err := content.Parse([]byte(repaired))
	if err != nil {
		return false
	}
	s.gen.metrics.RecordRepair(s.ctx, repaired != string(s.buf))
	pruned := descriptor.Prune(value, s.target)
	if s.hasCurrent && content.Equal(pruned, s.current.Value) {
		return false
	}
	s.gen.publish(s.ctx, event.EventPartial, map[string]any{"value": pruned.ToAny()})
	s.current = Partial{Value: pruned}
	s.hasCurrent = true
	return true
}

// endTurn consumes a finished backend turn: dispatching tools and opening
// the next turn, or finalizing the run. It reports whether iteration should
// continue.
func (s *Stream) endTurn(turn *model.Turn) bool {
	s.usage.PromptTokens += turn.Usage.PromptTokens
	s.usage.CompletionTokens += turn.Usage.CompletionTokens
	if s.gen.hooks.PostGenerate != nil {
		if err := s.gen.hooks.PostGenerate(s.ctx, turn); err != nil {
			s.fail(fmt.Errorf("generate: post-generate hook: %w", err))
			return false
		}
	}
	s.working = append(s.working, turn.Message)
	s.committed = append(s.committed, turn.Message)

	if len(turn.ToolCalls) == 0 {
		s.finish(turn)
		return false
	}

	s.toolTurns++
	outputs, err := s.gen.dispatch(s.ctx, turn.ToolCalls)
	if err != nil {
		s.fail(err)
		return false
	}
	s.working = append(s.working, outputs...)
	s.committed = append(s.committed, outputs...)
	// The next turn's text is a fresh document; partials must not mix turns.
	s.current = Partial{}
	s.hasCurrent = false
	if err := s.openTurn(); err != nil {
		s.fail(err)
		return false
	}
	return true
}

func (s *Stream) finish(turn *model.Turn) {
	result, err := s.gen.terminal(turn, s.target)
	if err != nil {
		s.fail(err)
		return
	}
	s.history.AppendTurn(s.committed...)
	result.Messages = s.history.Snapshot()
	result.Usage = s.usage
	result.ToolTurns = s.toolTurns
	s.result = result
	s.done = true
	s.gen.metrics.RecordGeneration(s.ctx, telemetry.GenerationData{
		Model:            s.gen.reqOpts.Model,
		SchemaName:       schemaName(s.target),
		ToolTurns:        s.toolTurns,
		PromptTokens:     s.usage.PromptTokens,
		CompletionTokens: s.usage.CompletionTokens,
		Duration:         time.Since(s.started),
	})
	s.gen.publish(s.ctx, event.EventCompletion, map[string]any{
		"structured": result.Structured,
		"tool_turns": s.toolTurns,
	})
	telemetry.EndSpan(s.span, nil)
	s.span = nil
}

func (s *Stream) fail(err error) {
	s.err = err
	s.done = true
	s.gen.publish(s.ctx, event.EventError, map[string]any{"error": err.Error()})
	if s.inner != nil {
		_ = s.inner.Close()
	}
	if s.span != nil {
		telemetry.EndSpan(s.span, err)
		s.span = nil
	}
}

// Current returns the latest partial. Valid only after Next returned true.
func (s *Stream) Current() Partial { return s.current }

// Err reports the failure that stopped the stream, if any.
func (s *Stream) Err() error { return s.err }

// Result returns the terminal result after Next has returned false with no
// error.
func (s *Stream) Result() (*Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		return nil, fmt.Errorf("generate: stream not finished")
	}
	return s.result, nil
}

// Close abandons the stream early. History is left untouched.
func (s *Stream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.span != nil {
		telemetry.EndSpan(s.span, nil)
		s.span = nil
	}
	if s.inner != nil {
		return s.inner.Close()
	}
	return nil
}
