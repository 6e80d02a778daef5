package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/message"
	"github.com/cexll/structgen/pkg/model"
	"github.com/cexll/structgen/pkg/schema"
)

func convertMessages(msgs []message.Message, systemPrompt string, target *schema.Schema) ([]anthropicsdk.TextBlockParam, []anthropicsdk.MessageParam, error) {
	var systemBlocks []anthropicsdk.TextBlockParam
	if trimmed := strings.TrimSpace(systemPrompt); trimmed != "" {
		systemBlocks = append(systemBlocks, anthropicsdk.TextBlockParam{Text: trimmed})
	}
	if target != nil && !schema.IsTrivialString(target) {
		instruction, err := schemaInstruction(target)
		if err != nil {
			return nil, nil, err
		}
		systemBlocks = append(systemBlocks, anthropicsdk.TextBlockParam{Text: instruction})
	}

	params := make([]anthropicsdk.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleSystem:
			if text := strings.TrimSpace(msg.Text()); text != "" {
				systemBlocks = append(systemBlocks, anthropicsdk.TextBlockParam{Text: text})
			}
		case message.RoleAssistant:
			blocks, err := assistantBlocks(msg)
			if err != nil {
				return nil, nil, err
			}
			params = append(params, anthropicsdk.MessageParam{
				Role:    anthropicsdk.MessageParamRoleAssistant,
				Content: blocks,
			})
		case message.RoleTool:
			blocks, err := toolResultBlocks(msg)
			if err != nil {
				return nil, nil, err
			}
			// The Messages API carries tool results on the user side.
			params = append(params, anthropicsdk.MessageParam{
				Role:    anthropicsdk.MessageParamRoleUser,
				Content: blocks,
			})
		default:
			blocks, err := userBlocks(msg)
			if err != nil {
				return nil, nil, err
			}
			params = append(params, anthropicsdk.MessageParam{
				Role:    anthropicsdk.MessageParamRoleUser,
				Content: blocks,
			})
		}
	}
	return systemBlocks, params, nil
}

func schemaInstruction(target *schema.Schema) (string, error) {
	doc, err := json.Marshal(target)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal target schema: %w", err)
	}
	return "Respond with a single JSON document that conforms to this JSON Schema. " +
		"Output only the JSON document, no prose and no code fences.\n" + string(doc), nil
}

func userBlocks(msg message.Message) ([]anthropicsdk.ContentBlockParamUnion, error) {
	var blocks []anthropicsdk.ContentBlockParamUnion
	for _, chunk := range msg.Chunks {
		switch c := chunk.(type) {
		case message.TextChunk:
			blocks = append(blocks, anthropicsdk.NewTextBlock(c.Text))
		case message.ContentChunk:
			raw, err := json.Marshal(c.Value)
			if err != nil {
				return nil, fmt.Errorf("anthropic: marshal content chunk: %w", err)
			}
			blocks = append(blocks, anthropicsdk.NewTextBlock(string(raw)))
		default:
			return nil, fmt.Errorf("anthropic: unsupported chunk %q in %s message", chunk.ChunkType(), msg.Role)
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropicsdk.NewTextBlock("."))
	}
	return blocks, nil
}

func assistantBlocks(msg message.Message) ([]anthropicsdk.ContentBlockParamUnion, error) {
	var blocks []anthropicsdk.ContentBlockParamUnion
	for _, chunk := range msg.Chunks {
		switch c := chunk.(type) {
		case message.TextChunk:
			if c.Text != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(c.Text))
			}
		case message.ContentChunk:
			raw, err := json.Marshal(c.Value)
			if err != nil {
				return nil, fmt.Errorf("anthropic: marshal content chunk: %w", err)
			}
			blocks = append(blocks, anthropicsdk.NewTextBlock(string(raw)))
		case message.ToolCallChunk:
			args := c.Arguments.ToAny()
			input, ok := args.(map[string]any)
			if !ok {
				input = map[string]any{"value": args}
			}
			blocks = append(blocks, anthropicsdk.NewToolUseBlock(c.ID, input, c.Name))
		default:
			return nil, fmt.Errorf("anthropic: unsupported chunk %q in assistant message", chunk.ChunkType())
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropicsdk.NewTextBlock(""))
	}
	return blocks, nil
}

func toolResultBlocks(msg message.Message) ([]anthropicsdk.ContentBlockParamUnion, error) {
	var blocks []anthropicsdk.ContentBlockParamUnion
	for _, chunk := range msg.Chunks {
		result, ok := chunk.(message.ToolResultChunk)
		if !ok {
			return nil, fmt.Errorf("anthropic: unsupported chunk %q in tool message", chunk.ChunkType())
		}
		text, err := toolResultText(result)
		if err != nil {
			return nil, err
		}
		block := anthropicsdk.ToolResultBlockParam{
			ToolUseID: result.ID,
			Content: []anthropicsdk.ToolResultBlockParamContentUnion{
				{OfText: &anthropicsdk.TextBlockParam{Text: text}},
			},
		}
		blocks = append(blocks, anthropicsdk.ContentBlockParamUnion{OfToolResult: &block})
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("anthropic: tool message without tool results")
	}
	return blocks, nil
}

func toolResultText(result message.ToolResultChunk) (string, error) {
	var parts []string
	for _, chunk := range result.Chunks {
		switch c := chunk.(type) {
		case message.TextChunk:
			parts = append(parts, c.Text)
		case message.ContentChunk:
			raw, err := json.Marshal(c.Value)
			if err != nil {
				return "", fmt.Errorf("anthropic: marshal tool result: %w", err)
			}
			parts = append(parts, string(raw))
		default:
			return "", fmt.Errorf("anthropic: unsupported chunk %q in tool result", chunk.ChunkType())
		}
	}
	return strings.Join(parts, "\n"), nil
}

func convertTools(specs []model.ToolSpec) ([]anthropicsdk.ToolUnionParam, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	params := make([]anthropicsdk.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		input, err := toolInputSchema(spec.Schema)
		if err != nil {
			return nil, fmt.Errorf("anthropic: tool %s: %w", spec.Name, err)
		}
		tool := anthropicsdk.ToolParam{
			Name:        spec.Name,
			InputSchema: input,
		}
		if spec.Description != "" {
			tool.Description = anthropicsdk.String(spec.Description)
		}
		params = append(params, anthropicsdk.ToolUnionParam{OfTool: &tool})
	}
	return params, nil
}

func toolInputSchema(s *schema.Schema) (anthropicsdk.ToolInputSchemaParam, error) {
	if s == nil {
		return anthropicsdk.ToolInputSchemaParam{Type: "object"}, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, fmt.Errorf("marshal schema: %w", err)
	}
	var out anthropicsdk.ToolInputSchemaParam
	if err := json.Unmarshal(raw, &out); err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, fmt.Errorf("unmarshal schema: %w", err)
	}
	if out.Type == "" {
		out.Type = "object"
	}
	return out, nil
}

func convertTurn(msg anthropicsdk.Message) (*model.Turn, error) {
	var chunks []message.Chunk
	var calls []message.ToolCall
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			chunks = append(chunks, message.TextChunk{Text: b.Text})
		case anthropicsdk.ToolUseBlock:
			args, err := decodeToolInput(b.Input)
			if err != nil {
				return nil, fmt.Errorf("anthropic: tool %s arguments: %w", b.Name, err)
			}
			chunks = append(chunks, message.ToolCallChunk{ID: b.ID, Name: b.Name, Arguments: args})
			calls = append(calls, message.ToolCall{ID: b.ID, Name: b.Name, Arguments: args})
		}
	}
	return &model.Turn{
		Message:    message.Message{Role: message.RoleAssistant, Chunks: chunks},
		ToolCalls:  calls,
		StopReason: convertStopReason(msg.StopReason),
		Usage: model.Usage{
			PromptTokens:     msg.Usage.InputTokens,
			CompletionTokens: msg.Usage.OutputTokens,
		},
	}, nil
}

func decodeToolInput(raw json.RawMessage) (content.Content, error) {
	if len(raw) == 0 {
		return content.Object(nil), nil
	}
	return content.Parse(raw)
}

func convertStopReason(reason anthropicsdk.StopReason) model.StopReason {
	switch reason {
	case anthropicsdk.StopReasonToolUse:
		return model.StopToolUse
	case anthropicsdk.StopReasonMaxTokens:
		return model.StopMaxTokens
	default:
		return model.StopEndTurn
	}
}
