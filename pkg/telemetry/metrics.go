package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	generations     metric.Int64Counter
	generationTime  metric.Float64Histogram
	promptTokens    metric.Int64Counter
	completionUnits metric.Int64Counter
	toolCalls       metric.Int64Counter
	repairs         metric.Int64Counter
}

func newInstruments(serviceName string) (*instruments, error) {
	meter := otel.GetMeterProvider().Meter(serviceName)
	generations, err := meter.Int64Counter("structgen.generations",
		metric.WithDescription("Completed generation requests, by outcome."))
	if err != nil {
		return nil, err
	}
	generationTime, err := meter.Float64Histogram("structgen.generation.duration",
		metric.WithDescription("End-to-end generation latency."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	promptTokens, err := meter.Int64Counter("structgen.tokens.prompt",
		metric.WithDescription("Prompt tokens consumed."))
	if err != nil {
		return nil, err
	}
	completionUnits, err := meter.Int64Counter("structgen.tokens.completion",
		metric.WithDescription("Completion tokens produced."))
	if err != nil {
		return nil, err
	}
	toolCalls, err := meter.Int64Counter("structgen.tool.calls",
		metric.WithDescription("Tool invocations dispatched by the generation loop."))
	if err != nil {
		return nil, err
	}
	repairs, err := meter.Int64Counter("structgen.repairs",
		metric.WithDescription("Partial JSON fragments repaired during streaming."))
	if err != nil {
		return nil, err
	}
	return &instruments{
		generations:     generations,
		generationTime:  generationTime,
		promptTokens:    promptTokens,
		completionUnits: completionUnits,
		toolCalls:       toolCalls,
		repairs:         repairs,
	}, nil
}

// GenerationData describes one finished generation request.
type GenerationData struct {
	Backend          string
	Model            string
	SchemaName       string
	ToolTurns        int
	PromptTokens     int64
	CompletionTokens int64
	Duration         time.Duration
	Error            error
}

// RecordGeneration publishes latency, token, and outcome metrics for a
// generation request.
func (m *Manager) RecordGeneration(ctx context.Context, data GenerationData) {
	if m == nil || m.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("backend", data.Backend),
		attribute.String("model", data.Model),
		attribute.String("schema", data.SchemaName),
		attribute.Bool("error", data.Error != nil),
	)
	m.metrics.generations.Add(ctx, 1, attrs)
	m.metrics.generationTime.Record(ctx, data.Duration.Seconds(), attrs)
	if data.PromptTokens > 0 {
		m.metrics.promptTokens.Add(ctx, data.PromptTokens, attrs)
	}
	if data.CompletionTokens > 0 {
		m.metrics.completionUnits.Add(ctx, data.CompletionTokens, attrs)
	}
}

// ToolData describes one tool invocation.
type ToolData struct {
	Name  string
	Error error
}

// RecordToolCall counts a tool invocation and its outcome.
func (m *Manager) RecordToolCall(ctx context.Context, data ToolData) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", data.Name),
		attribute.Bool("error", data.Error != nil),
	))
}

// RecordRepair counts a streaming fragment that needed structural repair.
func (m *Manager) RecordRepair(ctx context.Context, changed bool) {
	if m == nil || m.metrics == nil {
		return
	}
	m.metrics.repairs.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("changed", changed),
	))
}
