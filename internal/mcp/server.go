package mcp

import (
	"context"
	"fmt"

	"nimbus/internal/config"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server represents a connected MCP server instance
type Server struct {
	name   string
	config config.MCPServerConfig
	client *Client
}

// NewServer starts the configured command and connects to it
func NewServer(ctx context.Context, cfg config.MCPServerConfig) (*Server, error) {
	// Expand environment variables in the config
	expandedEnv := config.ExpandEnvMap(cfg.Env)

	client, err := NewCommandClient(ctx, cfg.Name, cfg.Command, cfg.Args, expandedEnv)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	return &Server{
		name:   cfg.Name,
		config: cfg,
		client: client,
	}, nil
}

// NewTransportServer connects to a server over an existing transport
func NewTransportServer(ctx context.Context, name string, transport mcp.Transport) (*Server, error) {
	client, err := NewClient(ctx, name, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	return &Server{
		name:   name,
		client: client,
	}, nil
}

// Name returns the server name
func (s *Server) Name() string {
	return s.name
}

// Client returns the MCP client
func (s *Server) Client() *Client {
	return s.client
}

// Close shuts down the server
func (s *Server) Close() error {
	return s.client.Close()
}

// Health checks if the server is still responsive
func (s *Server) Health(ctx context.Context) error {
	if err := s.client.session.Ping(ctx, nil); err != nil {
		return fmt.Errorf("server %s not responding: %w", s.name, err)
	}
	return nil
}
