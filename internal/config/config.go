package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left empty in the YAML file
const (
	DefaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel          = "gemini-2.0-flash"
	DefaultMaxIterations  = 10
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = 5 * time.Second
	DefaultMaxDelay       = 60 * time.Second
	DefaultWeatherBaseURL = "https://wttr.in"
	DefaultWeatherTimeout = 10 * time.Second
	DefaultExporter       = "stdout"
)

// APIKeyEnvVars are consulted in order when no key is configured
var APIKeyEnvVars = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY"}

// ErrNoAPIKey is returned when no API key can be resolved
var ErrNoAPIKey = errors.New("no API key: set GOOGLE_API_KEY, GEMINI_API_KEY or OPENAI_API_KEY, or pass --api-key")

// Config represents the complete nimbus configuration
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Agent     AgentConfig     `yaml:"agent"`
	Retry     RetryConfig     `yaml:"retry"`
	Weather   WeatherConfig   `yaml:"weather"`
	MCP       MCPConfig       `yaml:"mcp"`
	Hooks     HooksConfig     `yaml:"hooks"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LLMConfig selects the OpenAI-compatible chat endpoint
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"` // supports ${VAR}
}

type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations"`
}

// RetryConfig controls backoff on rate-limited completions
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

type WeatherConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// HooksConfig contains hook-related settings
type HooksConfig struct {
	// ToolConfirm enables user confirmation before specified tools
	ToolConfirm []string `yaml:"tool_confirm"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Exporter     string `yaml:"exporter"` // "stdout" or "otlp"
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

// MCPConfig contains MCP-specific settings
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig defines a single MCP server
type MCPServerConfig struct {
	Name      string            `yaml:"name"`      // Unique server identifier
	Transport string            `yaml:"transport"` // "stdio" (only supported initially)
	Command   string            `yaml:"command"`   // Executable to run
	Args      []string          `yaml:"args"`      // Command arguments
	Env       map[string]string `yaml:"env"`       // Environment variables with ${VAR} support
	Disabled  bool              `yaml:"disabled"`  // Skip this server if true
}

// Default returns a config with every default filled in
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads and parses the YAML config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.ApplyDefaults()
	cfg.LLM.APIKey = ExpandEnv(cfg.LLM.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with fallback to default locations
// Checks: ./nimbus.yaml, ./configs/nimbus.yaml, ~/.config/nimbus/nimbus.yaml, /etc/nimbus/nimbus.yaml
func LoadWithDefaults() (*Config, error) {
	// Try config locations in order
	locations := []string{
		"./nimbus.yaml",
		"./configs/nimbus.yaml",
	}

	// Add user config directory if available
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "nimbus", "nimbus.yaml"))
	}

	// Add system-wide config
	locations = append(locations, "/etc/nimbus/nimbus.yaml")

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return Load(loc)
		}
	}

	// No config found - defaults only (not an error)
	return Default(), nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (./.env when none
// are given). Missing files are ignored and existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}

	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyDefaults fills empty fields
func (c *Config) ApplyDefaults() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultBaseURL
	}
	if c.LLM.Model == "" {
		c.LLM.Model = DefaultModel
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = DefaultMaxIterations
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = DefaultBaseDelay
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = DefaultMaxDelay
	}
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = DefaultWeatherBaseURL
	}
	if c.Weather.Timeout == 0 {
		c.Weather.Timeout = DefaultWeatherTimeout
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = DefaultExporter
	}
	for i := range c.MCP.Servers {
		if c.MCP.Servers[i].Transport == "" {
			c.MCP.Servers[i].Transport = "stdio"
		}
	}
}

// ResolveAPIKey returns flagValue, the configured key, or the first
// non-empty variable of APIKeyEnvVars, in that order.
func (c *Config) ResolveAPIKey(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if c.LLM.APIKey != "" {
		return c.LLM.APIKey, nil
	}
	for _, name := range APIKeyEnvVars {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", ErrNoAPIKey
}

// Validate checks config correctness
func (c *Config) Validate() error {
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry delays cannot be negative")
	}
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay (%s) is below retry.base_delay (%s)", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}
	if c.Weather.Timeout < 0 {
		return fmt.Errorf("weather.timeout cannot be negative")
	}

	switch c.Telemetry.Exporter {
	case "stdout":
	case "otlp":
		if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
			return fmt.Errorf("telemetry.otlp_endpoint is required for the otlp exporter")
		}
	default:
		return fmt.Errorf("unsupported telemetry exporter: %s (use 'stdout' or 'otlp')", c.Telemetry.Exporter)
	}

	// Check for duplicate server names
	names := make(map[string]bool)
	for i, server := range c.MCP.Servers {
		if server.Name == "" {
			return fmt.Errorf("server #%d: name cannot be empty", i+1)
		}

		if names[server.Name] {
			return fmt.Errorf("duplicate server name: %s", server.Name)
		}
		names[server.Name] = true

		// Validate server config
		if err := server.Validate(); err != nil {
			return fmt.Errorf("server %s: %w", server.Name, err)
		}
	}

	return nil
}

// Validate checks a single server config
func (s *MCPServerConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	// Server names prefix tool names, so keep them to [a-zA-Z0-9_-]
	for _, ch := range s.Name {
		if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-') {
			return fmt.Errorf("server name '%s' contains invalid character '%c' (only alphanumeric, underscore, and hyphen allowed)", s.Name, ch)
		}
	}

	if s.Transport == "" {
		return fmt.Errorf("transport is required")
	}

	if s.Transport != "stdio" {
		return fmt.Errorf("unsupported transport: %s (only 'stdio' is supported)", s.Transport)
	}

	if s.Command == "" {
		return fmt.Errorf("command is required")
	}

	return nil
}
