package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"nimbus/internal/config"
	"nimbus/internal/tool"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Manager connects configured MCP servers and registers their tools
type Manager struct {
	servers  map[string]*Server
	registry *tool.Registry
	mu       sync.RWMutex
}

// NewManager creates a manager that registers into registry. The registry
// must not be sealed yet.
func NewManager(registry *tool.Registry) *Manager {
	return &Manager{
		servers:  make(map[string]*Server),
		registry: registry,
	}
}

// Initialize starts all enabled MCP servers from config. Partial failure
// is reported as an error while the healthy servers stay connected.
func (m *Manager) Initialize(ctx context.Context, cfg config.MCPConfig) error {
	if len(cfg.Servers) == 0 {
		return nil
	}

	// Validate no duplicate server names
	names := make(map[string]bool)
	for _, serverCfg := range cfg.Servers {
		if serverCfg.Disabled {
			continue
		}
		if names[serverCfg.Name] {
			return fmt.Errorf("duplicate server name: %s", serverCfg.Name)
		}
		names[serverCfg.Name] = true
	}

	// Start servers concurrently
	var wg sync.WaitGroup
	errChan := make(chan error, len(cfg.Servers))
	successChan := make(chan string, len(cfg.Servers))

	for _, serverCfg := range cfg.Servers {
		if serverCfg.Disabled {
			continue
		}

		wg.Add(1)
		go func(cfg config.MCPServerConfig) {
			defer wg.Done()
			server, err := NewServer(ctx, cfg)
			if err == nil {
				err = m.add(server)
			}
			if err != nil {
				errChan <- fmt.Errorf("server %s: %w", cfg.Name, err)
			} else {
				successChan <- cfg.Name
			}
		}(serverCfg)
	}

	wg.Wait()
	close(errChan)
	close(successChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	var successNames []string
	for name := range successChan {
		successNames = append(successNames, name)
	}

	if len(errs) > 0 && len(successNames) == 0 {
		return fmt.Errorf("all MCP servers failed to initialize: %v", errs)
	}

	// Caller logs partial failures as warnings
	if len(errs) > 0 {
		return fmt.Errorf("some MCP servers failed (loaded %d/%d): %v", len(successNames), len(successNames)+len(errs), errs)
	}

	return nil
}

// Connect attaches a server reachable over transport and registers its tools
func (m *Manager) Connect(ctx context.Context, name string, transport mcp.Transport) error {
	server, err := NewTransportServer(ctx, name, transport)
	if err != nil {
		return fmt.Errorf("server %s: %w", name, err)
	}
	if err := m.add(server); err != nil {
		return fmt.Errorf("server %s: %w", name, err)
	}
	return nil
}

// add registers every tool of server, closing it on failure
func (m *Manager) add(server *Server) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.servers[server.Name()]; exists {
		server.Close()
		return fmt.Errorf("duplicate server name: %s", server.Name())
	}

	var added []string
	for _, mcpTool := range server.Client().Tools() {
		adapter := NewToolAdapter(server.Client(), mcpTool)

		if err := m.registry.Register(adapter); err != nil {
			// A server registers all of its tools or none
			for _, name := range added {
				_ = m.registry.Unregister(name)
			}
			server.Close()
			return fmt.Errorf("failed to register tool %s: %w", adapter.Name(), err)
		}
		added = append(added, adapter.Name())
	}

	m.servers[server.Name()] = server
	return nil
}

// Close shuts down all MCP servers
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(m.servers))

	for name, server := range m.servers {
		wg.Add(1)
		go func(name string, s *Server) {
			defer wg.Done()
			if err := s.Close(); err != nil {
				errChan <- fmt.Errorf("server %s: %w", name, err)
			}
		}(name, server)
	}

	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	m.servers = make(map[string]*Server)

	if len(errs) > 0 {
		return fmt.Errorf("errors closing servers: %v", errs)
	}

	return nil
}

// GetServer returns a server by name
func (m *Manager) GetServer(name string) (*Server, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	server, ok := m.servers[name]
	return server, ok
}

// ListServers returns all active server names, sorted
func (m *Manager) ListServers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.servers))
	for name := range m.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServerCount returns the number of active servers
func (m *Manager) ServerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.servers)
}
