package mcp

import (
	"encoding/json"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/message"
	"github.com/cexll/structgen/pkg/schema"
)

// schemaFromTool converts an MCP tool's declared input schema into the local
// schema model. A tool without an input schema takes an empty object.
func schemaFromTool(t *sdk.Tool) (*schema.Schema, error) {
	if t.InputSchema == nil {
		return schema.Object(t.Name, t.Description)
	}
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal input schema for %q: %w", t.Name, err)
	}
	var node map[string]any
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("mcp: decode input schema for %q: %w", t.Name, err)
	}
	s, err := schema.FromJSON(node, t.Name)
	if err != nil {
		return nil, fmt.Errorf("mcp: convert input schema for %q: %w", t.Name, err)
	}
	return s, nil
}

// resultChunks flattens an MCP call result into message chunks. Structured
// content wins when the server provides it; binary payloads degrade to a
// textual description.
func resultChunks(res *sdk.CallToolResult) ([]message.Chunk, error) {
	if res.StructuredContent != nil {
		value, err := content.FromAny(res.StructuredContent)
		if err != nil {
			return nil, fmt.Errorf("mcp: convert structured content: %w", err)
		}
		return []message.Chunk{message.ContentChunk{Value: value}}, nil
	}

	var chunks []message.Chunk
	for _, item := range res.Content {
		switch c := item.(type) {
		case *sdk.TextContent:
			chunks = append(chunks, message.TextChunk{Text: c.Text})
		case *sdk.ImageContent:
			chunks = append(chunks, message.TextChunk{
				Text: fmt.Sprintf("[image %s, %d bytes]", c.MIMEType, len(c.Data)),
			})
		case *sdk.AudioContent:
			chunks = append(chunks, message.TextChunk{
				Text: fmt.Sprintf("[audio %s, %d bytes]", c.MIMEType, len(c.Data)),
			})
		case *sdk.EmbeddedResource:
			chunks = append(chunks, message.TextChunk{Text: resourceText(c.Resource)})
		default:
			return nil, fmt.Errorf("mcp: unsupported content type %T", item)
		}
	}
	return chunks, nil
}

func resourceText(r *sdk.ResourceContents) string {
	if r == nil {
		return "[empty resource]"
	}
	if r.Text != "" {
		return r.Text
	}
	return fmt.Sprintf("[resource %s (%s), %d bytes]", r.URI, r.MIMEType, len(r.Blob))
}
