package message

import (
	"encoding/json"
	"fmt"

	"github.com/cexll/structgen/pkg/content"
)

// ChunkType discriminates the chunk variants in serialized form.
type ChunkType string

const (
	ChunkTypeText       ChunkType = "text"
	ChunkTypeContent    ChunkType = "content"
	ChunkTypeToolCall   ChunkType = "tool_call"
	ChunkTypeToolResult ChunkType = "tool_result"
)

// Chunk is one block of message content. The variant set is closed: plain
// text, a structured value, a tool call, or a tool result.
type Chunk interface {
	ChunkType() ChunkType
}

// TextChunk carries plain text.
type TextChunk struct {
	Text string `json:"text"`
}

func (TextChunk) ChunkType() ChunkType { return ChunkTypeText }

// ContentChunk carries a structured value.
type ContentChunk struct {
	Value content.Content `json:"value"`
}

func (ContentChunk) ChunkType() ChunkType { return ChunkTypeContent }

// ToolCallChunk carries a model-issued tool invocation request.
type ToolCallChunk struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments content.Content `json:"arguments"`
}

func (ToolCallChunk) ChunkType() ChunkType { return ChunkTypeToolCall }

// ToolResultChunk carries the output of an executed tool call.
type ToolResultChunk struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Chunks []Chunk `json:"chunks"`
}

func (ToolResultChunk) ChunkType() ChunkType { return ChunkTypeToolResult }

type chunkEnvelope struct {
	Type      ChunkType         `json:"type"`
	Text      string            `json:"text,omitempty"`
	Value     *content.Content  `json:"value,omitempty"`
	ID        string            `json:"id,omitempty"`
	Name      string            `json:"name,omitempty"`
	Arguments *content.Content  `json:"arguments,omitempty"`
	Chunks    []json.RawMessage `json:"chunks,omitempty"`
}

// MarshalJSON serializes a message with a type discriminator per chunk.
func (m Message) MarshalJSON() ([]byte, error) {
	chunks := make([]chunkEnvelope, 0, len(m.Chunks))
	for _, c := range m.Chunks {
		env, err := envelopeOf(c)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, env)
	}
	return json.Marshal(struct {
		Role   Role            `json:"role"`
		Chunks []chunkEnvelope `json:"chunks"`
	}{Role: m.Role, Chunks: chunks})
}

// UnmarshalJSON restores a message from its discriminated form.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role   Role              `json:"role"`
		Chunks []json.RawMessage `json:"chunks"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("message: unmarshal: %w", err)
	}
	m.Role = raw.Role
	m.Chunks = m.Chunks[:0]
	for _, rc := range raw.Chunks {
		chunk, err := decodeChunk(rc)
		if err != nil {
			return err
		}
		m.Chunks = append(m.Chunks, chunk)
	}
	return nil
}

func envelopeOf(c Chunk) (chunkEnvelope, error) {
	switch t := c.(type) {
	case TextChunk:
		return chunkEnvelope{Type: ChunkTypeText, Text: t.Text}, nil
	case ContentChunk:
		v := t.Value
		return chunkEnvelope{Type: ChunkTypeContent, Value: &v}, nil
	case ToolCallChunk:
		args := t.Arguments
		return chunkEnvelope{Type: ChunkTypeToolCall, ID: t.ID, Name: t.Name, Arguments: &args}, nil
	case ToolResultChunk:
		nested := make([]json.RawMessage, 0, len(t.Chunks))
		for _, inner := range t.Chunks {
			env, err := envelopeOf(inner)
			if err != nil {
				return chunkEnvelope{}, err
			}
			data, err := json.Marshal(env)
			if err != nil {
				return chunkEnvelope{}, err
			}
			nested = append(nested, data)
		}
		return chunkEnvelope{Type: ChunkTypeToolResult, ID: t.ID, Name: t.Name, Chunks: nested}, nil
	default:
		return chunkEnvelope{}, fmt.Errorf("message: unknown chunk type %T", c)
	}
}

func decodeChunk(data []byte) (Chunk, error) {
	var env chunkEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("message: unmarshal chunk: %w", err)
	}
	switch env.Type {
	case ChunkTypeText:
		return TextChunk{Text: env.Text}, nil
	case ChunkTypeContent:
		if env.Value == nil {
			return ContentChunk{Value: content.Null()}, nil
		}
		return ContentChunk{Value: *env.Value}, nil
	case ChunkTypeToolCall:
		args := content.Null()
		if env.Arguments != nil {
			args = *env.Arguments
		}
		return ToolCallChunk{ID: env.ID, Name: env.Name, Arguments: args}, nil
	case ChunkTypeToolResult:
		nested := make([]Chunk, 0, len(env.Chunks))
		for _, rc := range env.Chunks {
			inner, err := decodeChunk(rc)
			if err != nil {
				return nil, err
			}
			nested = append(nested, inner)
		}
		return ToolResultChunk{ID: env.ID, Name: env.Name, Chunks: nested}, nil
	default:
		return nil, fmt.Errorf("message: unknown chunk discriminator %q", env.Type)
	}
}
