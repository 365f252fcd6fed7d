package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"nimbus/internal/tool"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolAdapter exposes a remote MCP tool as a local tool.Tool
type ToolAdapter struct {
	client         *Client
	mcpTool        *mcp.Tool
	namespacedName string // e.g. "clock_now"
}

// NewToolAdapter creates an adapter for an MCP tool
func NewToolAdapter(client *Client, mcpTool *mcp.Tool) *ToolAdapter {
	return &ToolAdapter{
		client:         client,
		mcpTool:        mcpTool,
		namespacedName: fmt.Sprintf("%s_%s", client.Name(), mcpTool.Name),
	}
}

// Name returns the namespaced tool name (server_tool)
func (a *ToolAdapter) Name() string {
	return a.namespacedName
}

// Description returns the first line of the MCP tool description, tagged
// with its server. The catalog renders one line per tool.
func (a *ToolAdapter) Description() string {
	desc, _, _ := strings.Cut(strings.TrimSpace(a.mcpTool.Description), "\n")
	desc = strings.TrimSuffix(desc, ".")
	if desc == "" {
		desc = "MCP tool"
	}
	return fmt.Sprintf("%s (MCP server: %s)", desc, a.client.Name())
}

// BestPractices returns empty (MCP tools don't have this concept)
func (a *ToolAdapter) BestPractices() string {
	return ""
}

// Parameters returns the MCP tool's input schema as a map
func (a *ToolAdapter) Parameters() map[string]any {
	empty := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	if a.mcpTool.InputSchema == nil {
		return empty
	}

	if schema, ok := a.mcpTool.InputSchema.(map[string]any); ok {
		return schema
	}

	// Typed schemas round-trip through JSON
	schemaBytes, err := json.Marshal(a.mcpTool.InputSchema)
	if err != nil {
		return empty
	}
	var schema map[string]any
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		return empty
	}
	return schema
}

// Execute calls the MCP server to execute the tool
func (a *ToolAdapter) Execute(ctx context.Context, params json.RawMessage) (*tool.Result, error) {
	var args map[string]any
	if err := json.Unmarshal(params, &args); err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("invalid parameters: %v", err),
		}, nil
	}

	result, err := a.client.CallTool(ctx, a.mcpTool.Name, args)
	if err != nil {
		return &tool.Result{
			Success: false,
			Error:   fmt.Sprintf("MCP tool execution failed: %v", err),
		}, nil
	}

	if result.IsError {
		return &tool.Result{
			Success: false,
			Error:   formatMCPError(result),
		}, nil
	}

	return &tool.Result{
		Success: true,
		Output:  formatMCPContent(result.Content),
		Data: map[string]any{
			"mcp_server": a.client.Name(),
			"mcp_tool":   a.mcpTool.Name,
		},
	}, nil
}

// formatMCPContent converts MCP content array to string
func formatMCPContent(content []mcp.Content) string {
	var parts []string

	for _, item := range content {
		switch c := item.(type) {
		case *mcp.TextContent:
			parts = append(parts, c.Text)

		case *mcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[Image: %s]", c.MIMEType))

		case *mcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[Audio: %s]", c.MIMEType))

		default:
			data, err := json.Marshal(item)
			if err != nil {
				parts = append(parts, fmt.Sprintf("[Unknown content type: %T]", item))
			} else {
				parts = append(parts, string(data))
			}
		}
	}

	return strings.Join(parts, "\n")
}

// formatMCPError extracts error message from MCP result
func formatMCPError(result *mcp.CallToolResult) string {
	if len(result.Content) > 0 {
		return formatMCPContent(result.Content)
	}

	return "MCP tool returned an error"
}
