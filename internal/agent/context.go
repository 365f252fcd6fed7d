package agent

import (
	"encoding/json"
	"time"

	"nimbus/internal/logger"
	"nimbus/internal/tool"
)

// ExecutionContext tracks the state of one run and provides logging utilities
type ExecutionContext struct {
	Logger        *logger.Logger
	RunID         string
	StartTime     time.Time
	Iteration     int
	MaxIterations int
	ToolCallCount int
}

// NewExecutionContext creates a new execution context for a run
func NewExecutionContext(log *logger.Logger, runID string, maxIterations int) *ExecutionContext {
	if log == nil {
		log = logger.Discard()
	}
	return &ExecutionContext{
		Logger:        log,
		RunID:         runID,
		StartTime:     time.Now(),
		MaxIterations: maxIterations,
	}
}

// LogToolCall logs a tool step before it runs
func (ctx *ExecutionContext) LogToolCall(toolName string, input map[string]any) {
	ctx.ToolCallCount++
	params, err := json.Marshal(input)
	if err != nil {
		params = []byte("{}")
	}
	ctx.Logger.ToolCall(toolName, string(params))
}

// LogToolResult logs a tool execution result
func (ctx *ExecutionContext) LogToolResult(call *tool.CallResult) {
	ctx.Logger.ToolResult(call.ToolName, call.Result.Success, call.Text, call.Duration())
}

// LogProgress logs the current iteration
func (ctx *ExecutionContext) LogProgress() {
	ctx.Logger.Debug("Iteration %d/%d: calling LLM...", ctx.Iteration, ctx.MaxIterations)
}

// Elapsed returns the time since the run started
func (ctx *ExecutionContext) Elapsed() time.Duration {
	return time.Since(ctx.StartTime)
}
