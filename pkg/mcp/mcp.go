// Package mcp bridges Model Context Protocol servers into the tool registry.
// Each remote tool the server declares becomes a local Tool whose Execute
// proxies the call over the MCP session.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cexll/structgen/pkg/tool"
)

const clientName = "structgen"

// ErrNoEndpoint reports a server config with neither a command nor a URL.
var ErrNoEndpoint = errors.New("mcp: server config needs a command or a url")

// ServerConfig describes how to reach one MCP server. Command starts a stdio
// server as a child process; URL points at a streamable HTTP server. Command
// wins when both are set.
type ServerConfig struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Env     []string `yaml:"env,omitempty"`
	URL     string   `yaml:"url,omitempty"`
}

// Client is an open session against one MCP server.
type Client struct {
	name    string
	session *sdk.ClientSession
}

// Dial connects to the server described by cfg.
func Dial(ctx context.Context, cfg ServerConfig, version string) (*Client, error) {
	transport, err := transportFor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return Connect(ctx, cfg.Name, transport, version)
}

// Connect opens a session over an already constructed transport.
func Connect(ctx context.Context, name string, transport sdk.Transport, version string) (*Client, error) {
	client := sdk.NewClient(&sdk.Implementation{Name: clientName, Version: version}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect to %q: %w", name, err)
	}
	return &Client{name: name, session: session}, nil
}

func transportFor(ctx context.Context, cfg ServerConfig) (sdk.Transport, error) {
	switch {
	case cfg.Command != "":
		cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
		if len(cfg.Env) > 0 {
			cmd.Env = append(os.Environ(), cfg.Env...)
		}
		return &sdk.CommandTransport{Command: cmd}, nil
	case cfg.URL != "":
		return &sdk.StreamableClientTransport{Endpoint: cfg.URL}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoEndpoint, cfg.Name)
	}
}

// Tools lists the server's tools as locally callable Tool values.
func (c *Client) Tools(ctx context.Context) ([]tool.Tool, error) {
	res, err := c.session.ListTools(ctx, &sdk.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("mcp: list tools on %q: %w", c.name, err)
	}
	tools := make([]tool.Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		adapted, err := newRemoteTool(c, t)
		if err != nil {
			return nil, err
		}
		tools = append(tools, adapted)
	}
	return tools, nil
}

// RegisterTools lists the server's tools and registers those passing the
// filter. A nil filter admits everything.
func (c *Client) RegisterTools(ctx context.Context, registry *tool.Registry, allow func(name string) bool) error {
	tools, err := c.Tools(ctx)
	if err != nil {
		return err
	}
	for _, t := range tools {
		if allow != nil && !allow(t.Name()) {
			continue
		}
		if err := registry.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Close tears down the session.
func (c *Client) Close() error {
	if c == nil || c.session == nil {
		return nil
	}
	return c.session.Close()
}
