package model

import (
	"context"
	"fmt"

	"github.com/cexll/structgen/pkg/message"
	"github.com/cexll/structgen/pkg/schema"
)

// StopReason reports why a backend turn ended.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// ToolSpec is the backend-facing description of a registered tool.
type ToolSpec struct {
	Name        string
	Description string
	Schema      *schema.Schema
}

// Options tune a single backend request. Zero values defer to the
// adapter's defaults.
type Options struct {
	Model        string
	MaxTokens    int
	Temperature  *float64
	SystemPrompt string
}

// Request is one call to a backend: the conversation so far, the target
// output schema, and the tools the model may invoke. A nil Schema (or the
// trivial string schema) requests plain text.
type Request struct {
	Messages []message.Message
	Schema   *schema.Schema
	Tools    []ToolSpec
	Options  Options
}

// Usage carries the backend's token accounting for one turn.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Turn is one assistant response. ToolCalls duplicates the tool-call chunks
// of Message so the loop can dispatch without re-walking chunks.
type Turn struct {
	Message    message.Message
	ToolCalls  []message.ToolCall
	StopReason StopReason
	Usage      Usage
}

// TextStream yields the incremental text of a streamed turn. After Next
// returns false, Turn holds the accumulated final turn unless Err is set.
// Close releases the underlying connection and is safe to call early.
type TextStream interface {
	Next() bool
	Delta() string
	Turn() *Turn
	Err() error
	Close() error
}

// Backend is a wire adapter for one provider.
type Backend interface {
	Complete(ctx context.Context, req Request) (*Turn, error)
	Stream(ctx context.Context, req Request) (TextStream, error)
}

// BackendError wraps a provider transport failure without interpretation.
type BackendError struct {
	Provider  string
	Operation string
	Err       error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("model: %s %s: %v", e.Provider, e.Operation, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
