package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"nimbus/internal/hook"
)

// funcTool is a configurable test double
type funcTool struct {
	name string
	fn   func(ctx context.Context, params json.RawMessage) (*Result, error)
}

func (t *funcTool) Name() string               { return t.name }
func (t *funcTool) Description() string        { return "test tool" }
func (t *funcTool) BestPractices() string      { return "" }
func (t *funcTool) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (t *funcTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	return t.fn(ctx, params)
}

func newTestExecutor(t *testing.T, tools ...Tool) *Executor {
	t.Helper()
	registry, err := NewRegistry(tools...)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	registry.Seal()
	return NewExecutor(registry)
}

func TestExecute_UnknownTool(t *testing.T) {
	e := newTestExecutor(t)

	got := e.Execute(context.Background(), "teleport", map[string]any{"city": "Paris"})
	if got != "Error: Tool 'teleport' not found" {
		t.Errorf("unexpected result: %q", got)
	}
	if !strings.Contains(got, "not found") {
		t.Error("result must mention 'not found'")
	}
}

func TestExecute_PassesArgumentsAsJSON(t *testing.T) {
	var received map[string]any
	e := newTestExecutor(t, &funcTool{name: "echo", fn: func(ctx context.Context, params json.RawMessage) (*Result, error) {
		if err := json.Unmarshal(params, &received); err != nil {
			return nil, err
		}
		return &Result{Success: true, Output: "ok"}, nil
	}})

	got := e.Execute(context.Background(), "echo", map[string]any{"city": "Paris", "days": 2})
	if got != "ok" {
		t.Errorf("unexpected result: %q", got)
	}
	if received["city"] != "Paris" || received["days"] != float64(2) {
		t.Errorf("unexpected params: %v", received)
	}
}

func TestExecute_NilArgsBecomeEmptyObject(t *testing.T) {
	var raw string
	e := newTestExecutor(t, &funcTool{name: "noop", fn: func(ctx context.Context, params json.RawMessage) (*Result, error) {
		raw = string(params)
		return &Result{Success: true}, nil
	}})

	got := e.Execute(context.Background(), "noop", nil)
	if raw != "{}" {
		t.Errorf("expected {}, got %q", raw)
	}
	if got != EmptyOutputPlaceholder {
		t.Errorf("expected placeholder for empty output, got %q", got)
	}
}

func TestExecute_ToolErrorBecomesText(t *testing.T) {
	e := newTestExecutor(t, &funcTool{name: "broken", fn: func(ctx context.Context, params json.RawMessage) (*Result, error) {
		return nil, errors.New("missing required parameter: city")
	}})

	got := e.Execute(context.Background(), "broken", map[string]any{})
	if got != "Error executing tool: missing required parameter: city" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestExecute_PanicIsRecovered(t *testing.T) {
	e := newTestExecutor(t, &funcTool{name: "panicky", fn: func(ctx context.Context, params json.RawMessage) (*Result, error) {
		panic("index out of range")
	}})

	call := e.Call(context.Background(), "panicky", nil)
	if call.Result.Success {
		t.Error("panicking tool should not succeed")
	}
	if !strings.HasPrefix(call.Text, "Error executing tool:") || !strings.Contains(call.Text, "index out of range") {
		t.Errorf("unexpected result: %q", call.Text)
	}
}

func TestExecute_FailedResultPrefersOutput(t *testing.T) {
	e := newTestExecutor(t,
		&funcTool{name: "fallback", fn: func(ctx context.Context, params json.RawMessage) (*Result, error) {
			return &Result{Success: false, Output: "Something went wrong fetching weather data", Error: "status 503"}, nil
		}},
		&funcTool{name: "bare", fn: func(ctx context.Context, params json.RawMessage) (*Result, error) {
			return &Result{Success: false, Error: "status 503"}, nil
		}},
	)

	if got := e.Execute(context.Background(), "fallback", nil); got != "Something went wrong fetching weather data" {
		t.Errorf("unexpected result: %q", got)
	}
	if got := e.Execute(context.Background(), "bare", nil); got != "Error executing tool: status 503" {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestExecute_HookDenial(t *testing.T) {
	ran := false
	e := newTestExecutor(t, &funcTool{name: "guarded", fn: func(ctx context.Context, params json.RawMessage) (*Result, error) {
		ran = true
		return &Result{Success: true, Output: "ran"}, nil
	}})

	manager := hook.NewManager()
	manager.Register(&hook.HandlerFunc{
		HandlerName: "deny",
		Point:       hook.BeforeToolExecution,
		Fn: func(ctx context.Context, data *hook.HookData) (*hook.Feedback, error) {
			if data.GetString("params") != `{"city":"Paris"}` {
				t.Errorf("unexpected params in hook: %q", data.GetString("params"))
			}
			return hook.DenyFeedback("not today"), nil
		},
	})
	e.SetHookManager(manager)

	got := e.Execute(context.Background(), "guarded", map[string]any{"city": "Paris"})
	if ran {
		t.Error("denied tool must not run")
	}
	if !strings.Contains(got, "DENIED") || !strings.Contains(got, "not today") {
		t.Errorf("unexpected result: %q", got)
	}
}

func TestExecute_AfterHookSeesResult(t *testing.T) {
	e := newTestExecutor(t, &funcTool{name: "ok", fn: func(ctx context.Context, params json.RawMessage) (*Result, error) {
		return &Result{Success: true, Output: "fine"}, nil
	}})

	var seen *Result
	manager := hook.NewManager()
	manager.Register(&hook.HandlerFunc{
		HandlerName: "audit",
		Point:       hook.AfterToolExecution,
		Fn: func(ctx context.Context, data *hook.HookData) (*hook.Feedback, error) {
			seen, _ = data.Get("result").(*Result)
			return hook.AllowFeedback(), nil
		},
	})
	e.SetHookManager(manager)

	call := e.Call(context.Background(), "ok", nil)
	if seen == nil || seen.Output != "fine" {
		t.Errorf("after hook did not see result: %+v", seen)
	}
	if call.Duration() < 0 {
		t.Error("duration should not be negative")
	}
}
