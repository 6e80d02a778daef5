package tool

import (
	"context"

	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/message"
	"github.com/cexll/structgen/pkg/schema"
)

// Tool is a callable the model may invoke mid-generation. Execute receives
// the decoded arguments; its Result becomes the tool output chunks fed back
// into the conversation.
type Tool interface {
	Name() string
	Description() string
	Schema() *schema.Schema
	Execute(ctx context.Context, args content.Content) (*Result, error)
}

// Result is what a tool hands back to the loop.
type Result struct {
	Chunks []message.Chunk
}

// TextResult wraps plain text as a tool result.
func TextResult(text string) *Result {
	return &Result{Chunks: []message.Chunk{message.TextChunk{Text: text}}}
}

// ContentResult wraps a structured value as a tool result.
func ContentResult(v content.Content) *Result {
	return &Result{Chunks: []message.Chunk{message.ContentChunk{Value: v}}}
}
