package tool

import (
	"context"
	"encoding/json"
	"time"
)

// Tool defines the interface that all tools must implement
type Tool interface {
	// Name returns the unique identifier for this tool
	Name() string

	// Description returns a brief description of what this tool does
	Description() string

	// BestPractices returns usage guidelines for this tool
	// Returns empty string if no special guidance is needed
	BestPractices() string

	// Parameters returns the JSON schema for the tool's parameters.
	// Each property's "description" doubles as the informal type shown to the model.
	Parameters() map[string]any

	// Execute runs the tool with the given parameters
	Execute(ctx context.Context, params json.RawMessage) (*Result, error)
}

type Result struct {
	Success bool
	Output  string
	Error   string
	Data    map[string]any
}

type CallResult struct {
	ToolName  string
	Params    json.RawMessage
	Result    *Result
	Text      string // what is relayed back to the model
	StartTime time.Time
	EndTime   time.Time
}

// Duration reports how long the call took.
func (c *CallResult) Duration() time.Duration {
	return c.EndTime.Sub(c.StartTime)
}
