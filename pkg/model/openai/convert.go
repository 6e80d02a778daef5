package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/message"
	"github.com/cexll/structgen/pkg/model"
	"github.com/cexll/structgen/pkg/schema"
)

func convertMessages(msgs []message.Message, systemPrompt string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	params := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(msgs)+1)
	if trimmed := strings.TrimSpace(systemPrompt); trimmed != "" {
		params = append(params, openaisdk.SystemMessage(trimmed))
	}
	for idx, msg := range msgs {
		switch msg.Role {
		case message.RoleSystem:
			params = append(params, openaisdk.SystemMessage(msg.Text()))
		case message.RoleUser:
			text, err := flattenChunks(msg.Chunks)
			if err != nil {
				return nil, fmt.Errorf("messages[%d]: %w", idx, err)
			}
			params = append(params, openaisdk.UserMessage(text))
		case message.RoleAssistant:
			union, err := assistantMessage(msg)
			if err != nil {
				return nil, fmt.Errorf("messages[%d]: %w", idx, err)
			}
			params = append(params, union)
		case message.RoleTool:
			toolParams, err := toolMessages(msg)
			if err != nil {
				return nil, fmt.Errorf("messages[%d]: %w", idx, err)
			}
			params = append(params, toolParams...)
		default:
			return nil, fmt.Errorf("messages[%d]: unsupported role %q", idx, msg.Role)
		}
	}
	return params, nil
}

func flattenChunks(chunks []message.Chunk) (string, error) {
	var parts []string
	for _, chunk := range chunks {
		switch c := chunk.(type) {
		case message.TextChunk:
			parts = append(parts, c.Text)
		case message.ContentChunk:
			raw, err := json.Marshal(c.Value)
			if err != nil {
				return "", fmt.Errorf("openai: marshal content chunk: %w", err)
			}
			parts = append(parts, string(raw))
		default:
			return "", fmt.Errorf("openai: unsupported chunk %q", chunk.ChunkType())
		}
	}
	return strings.Join(parts, "\n"), nil
}

func assistantMessage(msg message.Message) (openaisdk.ChatCompletionMessageParamUnion, error) {
	asst := openaisdk.ChatCompletionAssistantMessageParam{}
	calls := msg.ToolCalls()
	if text := msg.Text(); text != "" || len(calls) == 0 {
		asst.Content.OfString = openaisdk.String(text)
	}
	for _, call := range calls {
		raw, err := json.Marshal(call.Arguments)
		if err != nil {
			return openaisdk.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: marshal arguments for %s: %w", call.Name, err)
		}
		asst.ToolCalls = append(asst.ToolCalls, openaisdk.ChatCompletionMessageToolCallParam{
			ID: call.ID,
			Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: string(raw),
			},
		})
	}
	return openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &asst}, nil
}

// toolMessages emits one tool message per result chunk; the chat API pairs
// each with its tool_call_id.
func toolMessages(msg message.Message) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	var params []openaisdk.ChatCompletionMessageParamUnion
	for _, chunk := range msg.Chunks {
		result, ok := chunk.(message.ToolResultChunk)
		if !ok {
			return nil, fmt.Errorf("openai: unsupported chunk %q in tool message", chunk.ChunkType())
		}
		if result.ID == "" {
			return nil, fmt.Errorf("openai: tool result missing tool_call_id")
		}
		text, err := flattenChunks(result.Chunks)
		if err != nil {
			return nil, err
		}
		params = append(params, openaisdk.ToolMessage(text, result.ID))
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("openai: tool message without tool results")
	}
	return params, nil
}

func convertTools(specs []model.ToolSpec) ([]openaisdk.ChatCompletionToolParam, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]openaisdk.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		params, err := schemaParameters(spec.Schema)
		if err != nil {
			return nil, fmt.Errorf("openai: tool %s: %w", spec.Name, err)
		}
		def := shared.FunctionDefinitionParam{
			Name:       spec.Name,
			Parameters: params,
		}
		if spec.Description != "" {
			def.Description = openaisdk.String(spec.Description)
		}
		out = append(out, openaisdk.ChatCompletionToolParam{Function: def})
	}
	return out, nil
}

func schemaParameters(s *schema.Schema) (shared.FunctionParameters, error) {
	if s == nil {
		return shared.FunctionParameters{"type": "object"}, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	return shared.FunctionParameters(params), nil
}

// responseFormat folds a non-trivial target schema into the chat API's
// json_schema response format.
func responseFormat(target *schema.Schema) (openaisdk.ChatCompletionNewParamsResponseFormatUnion, bool, error) {
	var zero openaisdk.ChatCompletionNewParamsResponseFormatUnion
	if target == nil || schema.IsTrivialString(target) {
		return zero, false, nil
	}
	raw, err := json.Marshal(target)
	if err != nil {
		return zero, false, fmt.Errorf("openai: marshal target schema: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return zero, false, fmt.Errorf("openai: unmarshal target schema: %w", err)
	}
	name := target.Name
	if name == "" {
		name = "structured_output"
	}
	return openaisdk.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
			JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   name,
				Schema: doc,
				Strict: openaisdk.Bool(true),
			},
		},
	}, true, nil
}

func convertTurn(completion *openaisdk.ChatCompletion) (*model.Turn, error) {
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai: completion carries no choices")
	}
	choice := completion.Choices[0]

	var chunks []message.Chunk
	var calls []message.ToolCall
	if choice.Message.Content != "" {
		chunks = append(chunks, message.TextChunk{Text: choice.Message.Content})
	} else if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
		chunks = append(chunks, message.TextChunk{Text: refusal})
	}
	for idx, call := range choice.Message.ToolCalls {
		args, err := decodeArguments(call.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("openai: tool_calls[%d]: %w", idx, err)
		}
		chunks = append(chunks, message.ToolCallChunk{ID: call.ID, Name: call.Function.Name, Arguments: args})
		calls = append(calls, message.ToolCall{ID: call.ID, Name: call.Function.Name, Arguments: args})
	}

	return &model.Turn{
		Message:    message.Message{Role: message.RoleAssistant, Chunks: chunks},
		ToolCalls:  calls,
		StopReason: convertFinishReason(choice.FinishReason),
		Usage: model.Usage{
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
		},
	}, nil
}

func decodeArguments(raw string) (content.Content, error) {
	if strings.TrimSpace(raw) == "" {
		return content.Object(nil), nil
	}
	return content.Parse([]byte(raw))
}

func convertFinishReason(reason string) model.StopReason {
	switch reason {
	case "tool_calls", "function_call":
		return model.StopToolUse
	case "length":
		return model.StopMaxTokens
	default:
		return model.StopEndTurn
	}
}
