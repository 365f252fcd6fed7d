package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"nimbus/internal/tool"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewToolServer exposes every tool in the executor's registry as an MCP
// tool. Calls go through the executor, so hooks and telemetry apply.
func NewToolServer(executor *tool.Executor) *mcp.Server {
	srv := mcp.NewServer(Implementation, nil)

	for _, t := range executor.Registry().List() {
		srv.AddTool(&mcp.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Parameters(),
		}, toolHandler(executor, t.Name()))
	}

	return srv
}

// Serve runs the tool server on transport until ctx is done or the peer
// disconnects. Use &mcp.StdioTransport{} for stdio.
func Serve(ctx context.Context, executor *tool.Executor, transport mcp.Transport) error {
	if err := NewToolServer(executor).Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server stopped: %w", err)
	}
	return nil
}

func toolHandler(executor *tool.Executor, name string) mcp.ToolHandler {
	return func(ctx context.Context, request *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := map[string]any{}
		if request.Params != nil && len(request.Params.Arguments) > 0 {
			if err := json.Unmarshal(request.Params.Arguments, &args); err != nil {
				return errorResult(fmt.Sprintf("Error executing tool: invalid arguments: %v", err)), nil
			}
		}

		call := executor.Call(ctx, name, args)
		if !call.Result.Success {
			return errorResult(call.Text), nil
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: call.Text},
			},
		}, nil
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
