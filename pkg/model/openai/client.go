package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cexll/structgen/pkg/model"
	"github.com/cexll/structgen/pkg/telemetry"
)

const defaultModel = openaisdk.ChatModelGPT4o

var _ model.Backend = (*Client)(nil)

// Client adapts the official OpenAI SDK to the Backend interface.
type Client struct {
	client openaisdk.Client
}

// New builds a client. An empty baseURL uses the public API endpoint.
func New(apiKey, baseURL string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{client: openaisdk.NewClient(opts...)}
}

func (c *Client) params(req model.Request) (openaisdk.ChatCompletionNewParams, error) {
	msgs, err := convertMessages(req.Messages, req.Options.SystemPrompt)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}

	name := req.Options.Model
	if name == "" {
		name = defaultModel
	}
	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(name),
		Messages: msgs,
	}
	if req.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = openaisdk.Int(int64(req.Options.MaxTokens))
	}
	if req.Options.Temperature != nil {
		params.Temperature = openaisdk.Float(*req.Options.Temperature)
	}

	tools, err := convertTools(req.Tools)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	format, ok, err := responseFormat(req.Schema)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}
	if ok {
		params.ResponseFormat = format
	}
	return params, nil
}

// Complete performs a blocking chat completion call.
func (c *Client) Complete(ctx context.Context, req model.Request) (_ *model.Turn, err error) {
	ctx, span := telemetry.StartSpan(ctx, "model.openai.complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("llm.provider", "openai"),
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
	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, &model.BackendError{Provider: "openai", Operation: "complete", Err: err}
	}
	return convertTurn(completion)
}

// Stream opens a streaming chat completion call.
func (c *Client) Stream(ctx context.Context, req model.Request) (_ model.TextStream, err error) {
	ctx, span := telemetry.StartSpan(ctx, "model.openai.stream",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(telemetry.SanitizeAttributes(
			attribute.String("llm.provider", "openai"),
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
	return &textStream{stream: c.client.Chat.Completions.NewStreaming(ctx, params)}, nil
}

// textStream surfaces content deltas while the accumulator builds the
// final completion.
type textStream struct {
	stream *ssestream.Stream[openaisdk.ChatCompletionChunk]

	acc   openaisdk.ChatCompletionAccumulator
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
		chunk := s.stream.Current()
		s.acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			s.delta = chunk.Choices[0].Delta.Content
			return true
		}
	}
	s.done = true
	if err := s.stream.Err(); err != nil {
		s.err = &model.BackendError{Provider: "openai", Operation: "stream", Err: err}
		return false
	}
	turn, err := convertTurn(&s.acc.ChatCompletion)
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
