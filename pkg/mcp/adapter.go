package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cexll/structgen/pkg/content"
	"github.com/cexll/structgen/pkg/schema"
	"github.com/cexll/structgen/pkg/tool"
)

// remoteTool proxies a single server-declared tool over the MCP session.
type remoteTool struct {
	client      *Client
	name        string
	description string
	schema      *schema.Schema
}

func newRemoteTool(client *Client, t *sdk.Tool) (*remoteTool, error) {
	converted, err := schemaFromTool(t)
	if err != nil {
		return nil, err
	}
	description := t.Description
	if description == "" {
		description = fmt.Sprintf("tool %q on MCP server %q", t.Name, client.name)
	}
	return &remoteTool{
		client:      client,
		name:        t.Name,
		description: description,
		schema:      converted,
	}, nil
}

func (t *remoteTool) Name() string           { return t.name }
func (t *remoteTool) Description() string    { return t.description }
func (t *remoteTool) Schema() *schema.Schema { return t.schema }

func (t *remoteTool) Execute(ctx context.Context, args content.Content) (*tool.Result, error) {
	arguments, ok := args.ToAny().(map[string]any)
	if !ok {
		arguments = map[string]any{}
	}
	res, err := t.client.session.CallTool(ctx, &sdk.CallToolParams{
		Name:      t.name,
		Arguments: arguments,
	})
	if err != nil {
		return nil, fmt.Errorf("mcp: call %q on %q: %w", t.name, t.client.name, err)
	}
	if res.IsError {
		return nil, fmt.Errorf("mcp: tool %q reported an error: %s", t.name, firstText(res))
	}
	chunks, err := resultChunks(res)
	if err != nil {
		return nil, err
	}
	return &tool.Result{Chunks: chunks}, nil
}

func firstText(res *sdk.CallToolResult) string {
	for _, item := range res.Content {
		if text, ok := item.(*sdk.TextContent); ok {
			return text.Text
		}
	}
	return "no detail provided"
}
