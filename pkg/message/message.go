// Package message defines conversation entities: roles, content chunks, tool
// calls and outputs, and the mutex-guarded History that owns a conversation's
// transcript.
package message

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cexll/structgen/pkg/content"
)

// Role identifies the author of a message. The set is closed.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func (r Role) String() string { return string(r) }

// Message is one conversation turn: a role plus ordered content chunks.
type Message struct {
	Role   Role    `json:"role"`
	Chunks []Chunk `json:"chunks"`
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments content.Content `json:"arguments"`
}

// System builds a system message from plain text.
func System(text string) Message {
	return Message{Role: RoleSystem, Chunks: []Chunk{TextChunk{Text: text}}}
}

// User builds a user message from plain text.
func User(text string) Message {
	return Message{Role: RoleUser, Chunks: []Chunk{TextChunk{Text: text}}}
}

// Assistant builds an assistant message from plain text.
func Assistant(text string) Message {
	return Message{Role: RoleAssistant, Chunks: []Chunk{TextChunk{Text: text}}}
}

// ToolOutput builds a tool message carrying the result of one tool call.
func ToolOutput(id, name string, chunks ...Chunk) Message {
	return Message{Role: RoleTool, Chunks: []Chunk{ToolResultChunk{ID: id, Name: name, Chunks: chunks}}}
}

// Text concatenates the message's text chunks.
func (m Message) Text() string {
	var parts []string
	for _, c := range m.Chunks {
		if t, ok := c.(TextChunk); ok {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolCalls returns the tool calls carried by the message, in order.
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, c := range m.Chunks {
		if tc, ok := c.(ToolCallChunk); ok {
			calls = append(calls, ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
	}
	return calls
}

// ErrHistoryShape reports a message sequence that violates the conversation
// invariants (see ValidateForGeneration).
var ErrHistoryShape = errors.New("message: invalid history shape")

// ValidateForGeneration checks the invariants required before requesting a
// model turn: the sequence ends in a user message, and every assistant tool
// call is answered by a matching tool output before any later user turn.
func ValidateForGeneration(msgs []Message) error {
	if len(msgs) == 0 {
		return fmt.Errorf("%w: empty history", ErrHistoryShape)
	}
	if msgs[len(msgs)-1].Role != RoleUser {
		return fmt.Errorf("%w: history must end in a user message, ends in %s", ErrHistoryShape, msgs[len(msgs)-1].Role)
	}
	pending := map[string]struct{}{}
	for _, msg := range msgs {
		switch msg.Role {
		case RoleAssistant:
			for _, call := range msg.ToolCalls() {
				pending[call.ID] = struct{}{}
			}
		case RoleTool:
			for _, c := range msg.Chunks {
				if res, ok := c.(ToolResultChunk); ok {
					delete(pending, res.ID)
				}
			}
		case RoleUser:
			if len(pending) > 0 {
				return fmt.Errorf("%w: user turn before tool outputs for %d pending call(s)", ErrHistoryShape, len(pending))
			}
		}
	}
	return nil
}
