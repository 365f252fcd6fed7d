package mcp

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Implementation identifies nimbus to MCP peers
var Implementation = &mcp.Implementation{
	Name:    "nimbus",
	Version: "1.0.0",
}

// Client wraps the official MCP SDK client and session
type Client struct {
	name    string
	client  *mcp.Client
	session *mcp.ClientSession
	tools   []*mcp.Tool
}

// NewClient connects over transport and caches the server's tool list
func NewClient(ctx context.Context, name string, transport mcp.Transport) (*Client, error) {
	client := mcp.NewClient(Implementation, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server: %w", err)
	}

	// Collect tools from server
	var tools []*mcp.Tool
	for tool, err := range session.Tools(ctx, nil) {
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("failed to list tools: %w", err)
		}
		tools = append(tools, tool)
	}

	return &Client{
		name:    name,
		client:  client,
		session: session,
		tools:   tools,
	}, nil
}

// NewCommandClient starts command as a stdio MCP server and connects to it
func NewCommandClient(ctx context.Context, name string, command string, args []string, env map[string]string) (*Client, error) {
	cmd := exec.Command(command, args...)

	if len(env) > 0 {
		cmd.Env = append(cmd.Environ(), formatEnvVars(env)...)
	}

	return NewClient(ctx, name, &mcp.CommandTransport{Command: cmd})
}

// formatEnvVars converts env map to KEY=VALUE slice
func formatEnvVars(env map[string]string) []string {
	result := make([]string, 0, len(env))
	for key, value := range env {
		result = append(result, fmt.Sprintf("%s=%s", key, value))
	}
	return result
}

// Name returns the server name
func (c *Client) Name() string {
	return c.name
}

// Tools returns the cached list of tools
func (c *Client) Tools() []*mcp.Tool {
	return c.tools
}

// ServerInfo returns the implementation reported during the handshake
func (c *Client) ServerInfo() *mcp.Implementation {
	if res := c.session.InitializeResult(); res != nil {
		return res.ServerInfo
	}
	return nil
}

// CallTool executes a tool with given parameters
func (c *Client) CallTool(ctx context.Context, toolName string, arguments map[string]any) (*mcp.CallToolResult, error) {
	params := &mcp.CallToolParams{
		Name:      toolName,
		Arguments: arguments,
	}

	result, err := c.session.CallTool(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("call tool request failed: %w", err)
	}

	return result, nil
}

// Close shuts down the client and session
func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}
