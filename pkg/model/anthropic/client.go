package anthropic

import (
	"context"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cexll/structgen/pkg/model"
	"github.com/cexll/structgen/pkg/telemetry"
)

const (
	defaultModel     = "claude-sonnet-4-5"
	defaultMaxTokens = 4096
)

var _ model.Backend = (*Client)(nil)

// Client adapts the official Anthropic SDK to the Backend interface.
type Client struct {
	client anthropicsdk.Client
}

// New builds a client. An empty baseURL uses the public API endpoint.
func New(apiKey, baseURL string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{client: anthropicsdk.NewClient(opts...)}
}

func (c *Client) params(req model.Request) (anthropicsdk.MessageNewParams, error) {
	systemBlocks, messageParams, err := convertMessages(req.Messages, req.Options.SystemPrompt, req.Schema)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}

	maxTokens := req.Options.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	name := req.Options.Model
	if name == "" {
		name = defaultModel
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(name),
		MaxTokens: int64(maxTokens),
		Messages:  messageParams,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if req.Options.Temperature != nil {
		params.Temperature = anthropicsdk.Float(*req.Options.Temperature)
	}

	tools, err := convertTools(req.Tools)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	return params, nil
}

// Complete performs a blocking Messages API call.
func (c *Client) Complete(ctx context.Context, req model.Request) (_ *model.Turn, err error) {
	ctx, span := telemetry.StartSpan(ctx, "model.anthropic.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("llm.provider", "anthropic"),
			attribute.String("llm.model", req.Options.Model),
			attribute.Bool("llm.stream", false),
			attribute.Int("llm.tools_count", len(req.Tools)),
		)...),
	)
	defer telemetry.EndSpan(span, err)

	params, err := c.params(req)
	if err != nil {
		return nil, err
	}
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, &model.BackendError{Provider: "anthropic", Operation: "complete", Err: err}
	}
	return convertTurn(*msg)
}

// Stream opens a streaming Messages API call.
func (c *Client) Stream(ctx context.Context, req model.Request) (_ model.TextStream, err error) {
	ctx, span := telemetry.StartSpan(ctx, "model.anthropic.stream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("llm.provider", "anthropic"),
			attribute.String("llm.model", req.Options.Model),
			attribute.Bool("llm.stream", true),
			attribute.Int("llm.tools_count", len(req.Tools)),
		)...),
	)
	defer telemetry.EndSpan(span, err)

	params, err := c.params(req)
	if err != nil {
		return nil, err
	}
	return &textStream{stream: c.client.Messages.NewStreaming(ctx, params)}, nil
}

// textStream surfaces text deltas while accumulating the final message.
type textStream struct {
	stream *ssestream.Stream[anthropicsdk.MessageStreamEventUnion]

	acc   anthropicsdk.Message
	delta string
	turn  *model.Turn
	err   error
	done  bool
}

func (s *textStream) Next() bool {
	if s.done {
		return false
	}
	for s.stream.Next() {
		event := s.stream.Current()
		if err := s.acc.Accumulate(event); err != nil {
			s.err = &model.BackendError{Provider: "anthropic", Operation: "stream", Err: err}
			s.done = true
			return false
		}
		if delta, ok := event.AsAny().(anthropicsdk.ContentBlockDeltaEvent); ok {
			if text, ok := delta.Delta.AsAny().(anthropicsdk.TextDelta); ok && text.Text != "" {
				s.delta = text.Text
				return true
			}
		}
	}
	s.done = true
	if err := s.stream.Err(); err != nil {
		s.err = &model.BackendError{Provider: "anthropic", Operation: "stream", Err: err}
		return false
	}
	turn, err := convertTurn(s.acc)
	if err != nil {
		s.err = err
		return false
	}
	s.turn = turn
	return false
}

func (s *textStream) Delta() string     { return s.delta }
func (s *textStream) Turn() *model.Turn { return s.turn }
func (s *textStream) Err() error        { return s.err }
func (s *textStream) Close() error      { return s.stream.Close() }
