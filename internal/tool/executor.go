package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nimbus/internal/hook"
	"nimbus/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// EmptyOutputPlaceholder is relayed when a tool succeeds without output,
// since chat APIs reject empty message content.
const EmptyOutputPlaceholder = "(Tool executed successfully with no output)"

// Executor runs tools by name. It never returns an error: unknown tools,
// bad arguments, tool failures and panics all become text for the model.
type Executor struct {
	registry    *Registry
	hookManager *hook.Manager
	instruments *telemetry.Instruments
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry: registry,
	}
}

// SetHookManager sets the hook manager for tool execution hooks
func (e *Executor) SetHookManager(manager *hook.Manager) {
	e.hookManager = manager
}

// SetInstruments enables tool-call counters.
func (e *Executor) SetInstruments(inst *telemetry.Instruments) {
	e.instruments = inst
}

func (e *Executor) Registry() *Registry {
	return e.registry
}

// Execute runs the named tool and returns the text to relay to the model.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) string {
	return e.Call(ctx, name, args).Text
}

// Call runs the named tool and returns the full call record.
func (e *Executor) Call(ctx context.Context, name string, args map[string]any) *CallResult {
	ctx, span := telemetry.Tracer().Start(ctx, "Tool.Call")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", name))

	call := e.call(ctx, name, args)

	span.SetAttributes(attribute.Bool("tool.success", call.Result.Success))
	if !call.Result.Success {
		span.SetStatus(codes.Error, call.Result.Error)
	}
	e.instruments.RecordToolCall(ctx, name, call.Result.Success)

	return call
}

func (e *Executor) call(ctx context.Context, name string, args map[string]any) *CallResult {
	startTime := time.Now()

	if args == nil {
		args = map[string]any{}
	}
	params, err := json.Marshal(args)
	if err != nil {
		return failed(name, nil, startTime, fmt.Sprintf("Error executing tool: invalid arguments: %v", err))
	}

	t, err := e.registry.Get(name)
	if err != nil {
		return failed(name, params, startTime, fmt.Sprintf("Error: Tool '%s' not found", name))
	}

	feedback, err := e.hookManager.Trigger(ctx, hook.NewHookData(hook.BeforeToolExecution, name).
		Set("params", string(params)))
	if err != nil {
		return failed(name, params, startTime, fmt.Sprintf("Error executing tool: hook error: %v", err))
	}
	if !feedback.Allow {
		denyMsg := fmt.Sprintf("Tool execution was DENIED by user. Reason: %s. Please ask the user for guidance on how to proceed.", feedback.Message)
		return failed(name, params, startTime, denyMsg)
	}

	result, err := runTool(ctx, t, params)
	if err != nil {
		return failed(name, params, startTime, fmt.Sprintf("Error executing tool: %v", err))
	}

	// After hooks don't block
	_, _ = e.hookManager.Trigger(ctx, hook.NewHookData(hook.AfterToolExecution, name).
		Set("params", string(params)).
		Set("result", result).
		Set("duration", time.Since(startTime)))

	return &CallResult{
		ToolName:  name,
		Params:    params,
		Result:    result,
		Text:      resultText(result),
		StartTime: startTime,
		EndTime:   time.Now(),
	}
}

// runTool invokes t, converting a panic into an error.
func runTool(ctx context.Context, t Tool, params json.RawMessage) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("tool %s panicked: %v", t.Name(), r)
		}
	}()

	result, err = t.Execute(ctx, params)
	if err == nil && result == nil {
		err = fmt.Errorf("tool %s returned no result", t.Name())
	}
	return result, err
}

func resultText(r *Result) string {
	if !r.Success {
		if r.Output != "" {
			return r.Output
		}
		return "Error executing tool: " + r.Error
	}
	if r.Output == "" {
		return EmptyOutputPlaceholder
	}
	return r.Output
}

func failed(name string, params json.RawMessage, startTime time.Time, msg string) *CallResult {
	return &CallResult{
		ToolName:  name,
		Params:    params,
		Result:    &Result{Success: false, Error: msg},
		Text:      msg,
		StartTime: startTime,
		EndTime:   time.Now(),
	}
}
