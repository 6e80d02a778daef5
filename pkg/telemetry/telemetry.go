package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config controls tracer, meter, and masking filter construction.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Filter         FilterConfig
}

// Manager owns the tracer, the meter instruments, and the masking filter.
// A nil Manager is safe to use; every method degrades to a no-op.
type Manager struct {
	tracer  trace.Tracer
	filter  *Filter
	metrics *instruments

	shutdownMu sync.Mutex
	shutdown   []func(context.Context) error
}

// NewManager builds a Manager on top of the globally installed OTEL
// providers. Install providers first (Setup does both) or spans and
// metrics go to the default no-op implementations.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.ServiceName == "" {
		return nil, fmt.Errorf("telemetry: service name required")
	}
	filter, err := NewFilter(cfg.Filter)
	if err != nil {
		return nil, fmt.Errorf("telemetry: filter: %w", err)
	}
	metrics, err := newInstruments(cfg.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("telemetry: instruments: %w", err)
	}
	return &Manager{
		tracer:  otel.GetTracerProvider().Tracer(cfg.ServiceName),
		filter:  filter,
		metrics: metrics,
	}, nil
}

// Setup installs an OTLP/HTTP trace pipeline as the global provider and
// returns a Manager bound to it. The endpoint follows the standard
// OTEL_EXPORTER_OTLP_* environment variables when empty.
func Setup(ctx context.Context, cfg Config, endpoint string) (*Manager, error) {
	var exporterOpts []otlptracehttp.Option
	if endpoint != "" {
		exporterOpts = append(exporterOpts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: exporter: %w", err)
	}

	res, err := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	mgr, err := NewManager(cfg)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	mgr.onShutdown(provider.Shutdown)
	return mgr, nil
}

func (m *Manager) onShutdown(fn func(context.Context) error) {
	m.shutdownMu.Lock()
	m.shutdown = append(m.shutdown, fn)
	m.shutdownMu.Unlock()
}

// Shutdown flushes and releases every pipeline the manager installed.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.shutdownMu.Lock()
	fns := m.shutdown
	m.shutdown = nil
	m.shutdownMu.Unlock()
	var firstErr error
	for _, fn := range fns {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StartSpan opens a span on the manager's tracer.
func (m *Manager) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if m == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, name)
	}
	return m.tracer.Start(ctx, name, opts...)
}

var (
	defaultMu  sync.RWMutex
	defaultMgr *Manager
)

// SetDefault installs the manager used by the package-level helpers.
func SetDefault(m *Manager) {
	defaultMu.Lock()
	defaultMgr = m
	defaultMu.Unlock()
}

// Default returns the manager installed by SetDefault, possibly nil.
func Default() *Manager {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultMgr
}

// StartSpan opens a span on the default manager.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Default().StartSpan(ctx, name, opts...)
}

// EndSpan records err on the span and ends it. Safe on a nil span.
func EndSpan(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
